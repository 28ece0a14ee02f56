package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lunebox/storefront-backend/pkg/enums"
)

// PromoCode is the backend-stored discount record. Codes are created
// out-of-band; the engine only reads them, except for the atomic
// redemption counter bump.
type PromoCode struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string             `gorm:"column:code;not null;uniqueIndex"`
	DiscountType  enums.DiscountKind `gorm:"column:discount_type;not null"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(10,2);not null"`
	Description   *string            `gorm:"column:description"`
	IsActive      bool               `gorm:"column:is_active;not null;default:true"`
	ValidUntil    *time.Time         `gorm:"column:valid_until"`
	MaxUses       *int               `gorm:"column:max_uses"`
	CurrentUses   int                `gorm:"column:current_uses;not null;default:0"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the goose-managed table name.
func (PromoCode) TableName() string {
	return "promo_codes"
}
