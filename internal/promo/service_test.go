package promo

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lunebox/storefront-backend/pkg/db/models"
	"github.com/lunebox/storefront-backend/pkg/enums"
	pkgerrors "github.com/lunebox/storefront-backend/pkg/errors"
	"github.com/lunebox/storefront-backend/pkg/logger"
)

type stubRepo struct {
	records    map[string]*models.PromoCode
	findErr    error
	bumpResult bool
	bumpErr    error
	bumpCalls  int
}

func (s *stubRepo) FindActiveByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	record, ok := s.records[strings.ToUpper(code)]
	if !ok || !record.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return record, nil
}

func (s *stubRepo) IncrementUses(ctx context.Context, code string, now time.Time) (bool, error) {
	s.bumpCalls++
	return s.bumpResult, s.bumpErr
}

func newTestService(t *testing.T, repo *stubRepo, at time.Time) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "promo-test", Output: io.Discard})
	svc, err := NewService(repo, logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	svc.now = func() time.Time { return at }
	return svc
}

func activeCode(code string) *models.PromoCode {
	desc := "10% off your first box"
	return &models.PromoCode{
		Code:          code,
		DiscountType:  enums.DiscountKindPercentage,
		DiscountValue: decimal.RequireFromString("10"),
		Description:   &desc,
		IsActive:      true,
	}
}

func assertRejection(t *testing.T, err error, code pkgerrors.Code, reason enums.PromoRejection) {
	t.Helper()
	domainErr := pkgerrors.As(err)
	if domainErr == nil {
		t.Fatalf("expected domain error, got %v", err)
	}
	if domainErr.Code() != code {
		t.Fatalf("code = %s, want %s", domainErr.Code(), code)
	}
	details, ok := domainErr.Details().(RejectionDetails)
	if !ok || details.Reason != reason {
		t.Fatalf("details = %+v, want reason %s", domainErr.Details(), reason)
	}
}

func TestValidateRequiresCode(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{records: map[string]*models.PromoCode{}}
	svc := newTestService(t, repo, time.Now())

	for _, input := range []string{"", "   ", "\t"} {
		_, err := svc.Validate(context.Background(), input)
		assertRejection(t, err, pkgerrors.CodeValidation, enums.PromoRejectionCodeRequired)
	}
}

func TestValidateCaseInsensitive(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{records: map[string]*models.PromoCode{
		"BIENVENUE10": activeCode("BIENVENUE10"),
	}}
	svc := newTestService(t, repo, time.Now())

	discount, err := svc.Validate(context.Background(), "bienvenue10")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if discount.Code != "BIENVENUE10" {
		t.Fatalf("code = %q, want canonical BIENVENUE10", discount.Code)
	}
	if discount.Kind != enums.DiscountKindPercentage || discount.Value.String() != "10" {
		t.Fatalf("unexpected discount: %+v", discount)
	}
	if discount.Description != "10% off your first box" {
		t.Fatalf("description = %q", discount.Description)
	}
}

func TestValidateUnknownAndInactiveLookAlike(t *testing.T) {
	t.Parallel()

	inactive := activeCode("PAUSED")
	inactive.IsActive = false
	repo := &stubRepo{records: map[string]*models.PromoCode{"PAUSED": inactive}}
	svc := newTestService(t, repo, time.Now())

	for _, input := range []string{"NOPE", "PAUSED"} {
		_, err := svc.Validate(context.Background(), input)
		assertRejection(t, err, pkgerrors.CodeNotFound, enums.PromoRejectionCodeInvalid)
	}
}

func TestValidateExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	expired := activeCode("SUMMER")
	past := now.Add(-time.Hour)
	expired.ValidUntil = &past
	repo := &stubRepo{records: map[string]*models.PromoCode{"SUMMER": expired}}
	svc := newTestService(t, repo, now)

	_, err := svc.Validate(context.Background(), "SUMMER")
	assertRejection(t, err, pkgerrors.CodeStateConflict, enums.PromoRejectionCodeExpired)
}

func TestValidateBoundaryNotYetExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	code := activeCode("TODAY")
	code.ValidUntil = &now // expiry is strictly past, equal is still valid
	repo := &stubRepo{records: map[string]*models.PromoCode{"TODAY": code}}
	svc := newTestService(t, repo, now)

	if _, err := svc.Validate(context.Background(), "TODAY"); err != nil {
		t.Fatalf("Validate at boundary: %v", err)
	}
}

func TestValidateExhausted(t *testing.T) {
	t.Parallel()

	capped := activeCode("FIVEONLY")
	five := 5
	capped.MaxUses = &five
	capped.CurrentUses = 5
	repo := &stubRepo{records: map[string]*models.PromoCode{"FIVEONLY": capped}}
	svc := newTestService(t, repo, time.Now())

	_, err := svc.Validate(context.Background(), "FIVEONLY")
	assertRejection(t, err, pkgerrors.CodeStateConflict, enums.PromoRejectionCodeExhausted)
}

func TestValidateRepositoryFailure(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{findErr: errors.New("db down")}
	svc := newTestService(t, repo, time.Now())

	_, err := svc.Validate(context.Background(), "ANY")
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeInternal {
		t.Fatalf("expected INTERNAL_ERROR, got %v", err)
	}
}

func TestRedeemConsumesOneUse(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{
		records:    map[string]*models.PromoCode{"BIENVENUE10": activeCode("BIENVENUE10")},
		bumpResult: true,
	}
	svc := newTestService(t, repo, time.Now())

	discount, err := svc.Redeem(context.Background(), "bienvenue10")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if discount.Code != "BIENVENUE10" {
		t.Fatalf("code = %q", discount.Code)
	}
	if repo.bumpCalls != 1 {
		t.Fatalf("bump called %d times, want 1", repo.bumpCalls)
	}
}

func TestRedeemLostRaceReportsExhausted(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{
		records:    map[string]*models.PromoCode{"BIENVENUE10": activeCode("BIENVENUE10")},
		bumpResult: false,
	}
	svc := newTestService(t, repo, time.Now())

	_, err := svc.Redeem(context.Background(), "BIENVENUE10")
	assertRejection(t, err, pkgerrors.CodeStateConflict, enums.PromoRejectionCodeExhausted)
}

func TestRedeemSkipsBumpWhenValidationFails(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{records: map[string]*models.PromoCode{}}
	svc := newTestService(t, repo, time.Now())

	_, err := svc.Redeem(context.Background(), "NOPE")
	assertRejection(t, err, pkgerrors.CodeNotFound, enums.PromoRejectionCodeInvalid)
	if repo.bumpCalls != 0 {
		t.Fatalf("bump called %d times, want 0", repo.bumpCalls)
	}
}
