package promo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lunebox/storefront-backend/pkg/db/models"
	"github.com/lunebox/storefront-backend/pkg/enums"
)

// promoCodesDDL mirrors the goose migration without the postgres-only
// default expressions, which sqlite cannot evaluate.
const promoCodesDDL = `
CREATE TABLE promo_codes (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    discount_type TEXT NOT NULL,
    discount_value NUMERIC NOT NULL,
    description TEXT,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    valid_until DATETIME,
    max_uses INTEGER,
    current_uses INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME,
    updated_at DATETIME
)`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:promo_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(promoCodesDDL).Error)
	return db
}

func seedCode(t *testing.T, db *gorm.DB, record *models.PromoCode) {
	t.Helper()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	require.NoError(t, db.Create(record).Error)
}

func TestFindActiveByCodeMatchesCaseInsensitively(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	seedCode(t, db, &models.PromoCode{
		Code:          "Bienvenue10",
		DiscountType:  enums.DiscountKindPercentage,
		DiscountValue: decimal.RequireFromString("10"),
		IsActive:      true,
	})

	for _, input := range []string{"bienvenue10", "BIENVENUE10", "BiEnVeNuE10"} {
		record, err := repo.FindActiveByCode(context.Background(), input)
		require.NoError(t, err, "FindActiveByCode(%q)", input)
		assert.Equal(t, "Bienvenue10", record.Code)
	}
}

func TestFindActiveByCodeHidesInactive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	seedCode(t, db, &models.PromoCode{
		Code:          "PAUSED",
		DiscountType:  enums.DiscountKindFixed,
		DiscountValue: decimal.RequireFromString("5"),
		IsActive:      false,
	})

	_, err := repo.FindActiveByCode(context.Background(), "PAUSED")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound), "expected ErrRecordNotFound, got %v", err)
}

func TestIncrementUsesStopsAtCap(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	two := 2
	seedCode(t, db, &models.PromoCode{
		Code:          "TWICE",
		DiscountType:  enums.DiscountKindPercentage,
		DiscountValue: decimal.RequireFromString("15"),
		IsActive:      true,
		MaxUses:       &two,
	})

	now := time.Now()
	for i := 0; i < 2; i++ {
		bumped, err := repo.IncrementUses(context.Background(), "twice", now)
		require.NoError(t, err, "IncrementUses #%d", i+1)
		require.True(t, bumped, "IncrementUses #%d refused below cap", i+1)
	}

	bumped, err := repo.IncrementUses(context.Background(), "TWICE", now)
	require.NoError(t, err)
	assert.False(t, bumped, "IncrementUses exceeded the cap")

	var record models.PromoCode
	require.NoError(t, db.First(&record, "code = ?", "TWICE").Error)
	assert.Equal(t, 2, record.CurrentUses)
}

func TestIncrementUsesRefusesExpired(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	past := time.Now().Add(-time.Hour)
	seedCode(t, db, &models.PromoCode{
		Code:          "OLD",
		DiscountType:  enums.DiscountKindPercentage,
		DiscountValue: decimal.RequireFromString("20"),
		IsActive:      true,
		ValidUntil:    &past,
	})

	bumped, err := repo.IncrementUses(context.Background(), "OLD", time.Now())
	require.NoError(t, err)
	assert.False(t, bumped, "expired code was redeemed")
}

func TestIncrementUsesUncappedCode(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	seedCode(t, db, &models.PromoCode{
		Code:          "FOREVER",
		DiscountType:  enums.DiscountKindFixed,
		DiscountValue: decimal.RequireFromString("5"),
		IsActive:      true,
	})

	for i := 0; i < 3; i++ {
		bumped, err := repo.IncrementUses(context.Background(), "FOREVER", time.Now())
		require.NoError(t, err, "IncrementUses #%d", i+1)
		require.True(t, bumped, "IncrementUses #%d", i+1)
	}
}
