package promo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lunebox/storefront-backend/pkg/db/models"
)

// Repository defines the persistence surface for promo codes.
type Repository interface {
	FindActiveByCode(ctx context.Context, code string) (*models.PromoCode, error)
	IncrementUses(ctx context.Context, code string, now time.Time) (bool, error)
}

// GormRepository implements Repository over the promo_codes table.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *GormRepository) WithTx(tx *gorm.DB) *GormRepository {
	return &GormRepository{db: tx}
}

// FindActiveByCode loads an active promo code, matching case-insensitively.
// Inactive rows are indistinguishable from missing ones.
func (r *GormRepository) FindActiveByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var record models.PromoCode
	err := r.db.WithContext(ctx).
		Where("upper(code) = ? AND is_active = ?", strings.ToUpper(code), true).
		First(&record).
		Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// IncrementUses bumps current_uses by one, guarded by the activity flag,
// the expiry, and the usage cap in a single conditional UPDATE. Returns
// false when the guard rejected the bump.
func (r *GormRepository) IncrementUses(ctx context.Context, code string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("upper(code) = ? AND is_active = ?", strings.ToUpper(code), true).
		Where("valid_until IS NULL OR valid_until > ?", now).
		Where("max_uses IS NULL OR current_uses < max_uses").
		UpdateColumn("current_uses", gorm.Expr("current_uses + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
