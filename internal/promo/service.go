// Package promo validates and redeems storefront discount codes. The
// hot path (Validate) never writes; Redeem is the single writer and
// exists for the order backend to bump usage after a purchase lands.
package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lunebox/storefront-backend/pkg/db/models"
	"github.com/lunebox/storefront-backend/pkg/enums"
	pkgerrors "github.com/lunebox/storefront-backend/pkg/errors"
	"github.com/lunebox/storefront-backend/pkg/logger"
	"github.com/lunebox/storefront-backend/pkg/pricing"
)

// RejectionDetails surfaces the machine-readable rejection reason in
// error envelopes so the UI can pick the right copy.
type RejectionDetails struct {
	Reason enums.PromoRejection `json:"reason"`
}

// Service owns promo code validation and redemption.
type Service struct {
	repo   Repository
	logger *logger.Logger
	now    func() time.Time
}

// NewService wires the promo service.
func NewService(repo Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		repo:   repo,
		logger: logg,
		now:    time.Now,
	}, nil
}

// Validate checks a shopper-entered code and returns the discount it
// grants. Checks run in a fixed order: presence, existence/activity,
// expiry, usage cap. It never mutates current_uses.
func (s *Service) Validate(ctx context.Context, code string) (*pricing.AppliedDiscount, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a promo code is required").
			WithDetails(RejectionDetails{Reason: enums.PromoRejectionCodeRequired})
	}

	record, err := s.repo.FindActiveByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "this promo code is not valid").
				WithDetails(RejectionDetails{Reason: enums.PromoRejectionCodeInvalid})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promo code lookup failed")
	}

	now := s.now()
	if record.ValidUntil != nil && record.ValidUntil.Before(now) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "this promo code has expired").
			WithDetails(RejectionDetails{Reason: enums.PromoRejectionCodeExpired})
	}
	if record.MaxUses != nil && record.CurrentUses >= *record.MaxUses {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "this promo code has reached its usage limit").
			WithDetails(RejectionDetails{Reason: enums.PromoRejectionCodeExhausted})
	}

	return discountFromRecord(record), nil
}

// Redeem validates the code and atomically consumes one use. A lost
// race on the usage cap comes back as exhausted, same as Validate
// would report it.
func (s *Service) Redeem(ctx context.Context, code string) (*pricing.AppliedDiscount, error) {
	discount, err := s.Validate(ctx, code)
	if err != nil {
		return nil, err
	}

	bumped, err := s.repo.IncrementUses(ctx, discount.Code, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promo code redemption failed")
	}
	if !bumped {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "this promo code has reached its usage limit").
			WithDetails(RejectionDetails{Reason: enums.PromoRejectionCodeExhausted})
	}

	s.logger.Info(s.logger.WithField(ctx, "promo_code", discount.Code), "promo code redeemed")
	return discount, nil
}

func discountFromRecord(record *models.PromoCode) *pricing.AppliedDiscount {
	discount := &pricing.AppliedDiscount{
		Code:  strings.ToUpper(record.Code),
		Kind:  record.DiscountType,
		Value: record.DiscountValue,
	}
	if record.Description != nil {
		discount.Description = *record.Description
	}
	return discount
}
