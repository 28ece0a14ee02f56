// Package checkout turns a local cart into a hosted checkout session on
// the commerce platform and tracks the hand-off back to the shopper.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/lunebox/storefront-backend/internal/cart"
	"github.com/lunebox/storefront-backend/pkg/commerce"
	"github.com/lunebox/storefront-backend/pkg/config"
	pkgerrors "github.com/lunebox/storefront-backend/pkg/errors"
	"github.com/lunebox/storefront-backend/pkg/logger"
	"github.com/lunebox/storefront-backend/pkg/metrics"
	"github.com/lunebox/storefront-backend/pkg/pricing"
)

const defaultSessionTimeout = 12 * time.Second

type cartStore interface {
	BeginCheckout(sessionID string) (cart.Snapshot, error)
	FailCheckout(sessionID string, cause error)
	SetHandoff(sessionID, url string) error
	CompleteHandoff(sessionID string, presented bool) (string, error)
	DropDiscount(sessionID string)
}

type platformClient interface {
	CreateCartSession(ctx context.Context, lines []commerce.LineItemRequest, idempotencyKey string) (*commerce.CheckoutSession, error)
}

type promoValidator interface {
	Validate(ctx context.Context, code string) (*pricing.AppliedDiscount, error)
}

// Result is the outcome of a checkout creation.
type Result struct {
	URL string `json:"url"`
	// DroppedPromoCode is set when the cart's applied code stopped
	// validating between apply time and checkout time.
	DroppedPromoCode string `json:"dropped_promo_code,omitempty"`
}

// CompleteResult reports how a hand-off resolved.
type CompleteResult struct {
	CartCleared bool   `json:"cart_cleared"`
	FallbackURL string `json:"fallback_url,omitempty"`
}

// Service orchestrates checkout creation against the commerce platform.
type Service struct {
	carts    cartStore
	platform platformClient
	promos   promoValidator
	metrics  *metrics.CheckoutMetrics
	logger   *logger.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewService wires the checkout orchestrator.
func NewService(carts cartStore, platform platformClient, promos promoValidator, m *metrics.CheckoutMetrics, cfg config.CheckoutConfig, logg *logger.Logger) (*Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart store is required")
	}
	if platform == nil {
		return nil, fmt.Errorf("platform client is required")
	}
	if promos == nil {
		return nil, fmt.Errorf("promo validator is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	timeout := cfg.SessionTimeout
	if timeout <= 0 {
		timeout = defaultSessionTimeout
	}
	return &Service{
		carts:    carts,
		platform: platform,
		promos:   promos,
		metrics:  m,
		logger:   logg,
		timeout:  timeout,
		now:      time.Now,
	}, nil
}

// Create snapshots the cart and creates the remote checkout session in
// one atomic platform call. The cart is only ever cleared later, once
// the hand-off is confirmed presented; every failure path leaves the
// shopper's cart exactly as it was. The caller's idempotency key is
// forwarded to the platform so a replayed request cannot mint a second
// session; empty means the commerce client generates its own.
func (s *Service) Create(ctx context.Context, sessionID, idempotencyKey string) (*Result, error) {
	start := s.now()

	snapshot, err := s.carts.BeginCheckout(sessionID)
	if err != nil {
		s.recordFailure(start, err)
		return nil, err
	}

	result := &Result{}
	if snapshot.Discount != nil {
		if dropped := s.revalidatePromo(ctx, sessionID, snapshot.Discount.Code); dropped {
			result.DroppedPromoCode = snapshot.Discount.Code
		}
	}

	lines := make([]commerce.LineItemRequest, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		lines = append(lines, commerce.LineItemRequest{
			VariantID:     line.VariantID,
			Quantity:      line.Quantity,
			SellingPlanID: line.SellingPlanID,
		})
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.platform.CreateCartSession(cctx, lines, idempotencyKey)
	if err != nil {
		s.carts.FailCheckout(sessionID, err)
		s.recordFailure(start, err)
		s.logger.Error(ctx, "checkout session creation failed", err)
		return nil, err
	}

	if err := s.carts.SetHandoff(sessionID, session.WebURL); err != nil {
		s.recordFailure(start, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncSuccess("created")
		s.metrics.ObserveDuration("created", s.now().Sub(start))
	}
	s.logger.Info(s.logger.WithField(ctx, "checkout_session_id", session.ID), "checkout session created")

	result.URL = session.WebURL
	return result, nil
}

// Complete resolves the hand-off the browser reports back. presented
// means the checkout surface actually opened; anything else (popup
// blocked, navigation cancelled) keeps the cart and hands the URL back
// for a manual link.
func (s *Service) Complete(ctx context.Context, sessionID string, presented bool) (*CompleteResult, error) {
	url, err := s.carts.CompleteHandoff(sessionID, presented)
	if err != nil {
		return nil, err
	}

	if presented {
		if s.metrics != nil {
			s.metrics.IncSuccess("presented")
		}
		s.logger.Info(ctx, "checkout hand-off presented, cart cleared")
		return &CompleteResult{CartCleared: true}, nil
	}

	if s.metrics != nil {
		s.metrics.IncSuccess("popup_blocked")
	}
	s.logger.Warn(ctx, "checkout hand-off blocked, keeping cart and offering fallback link")
	return &CompleteResult{CartCleared: false, FallbackURL: url}, nil
}

// revalidatePromo re-checks the applied code at checkout time. Codes
// that expired or ran out since apply time are dropped with a warning;
// a checkout never fails because of a stale display discount.
func (s *Service) revalidatePromo(ctx context.Context, sessionID, code string) bool {
	_, err := s.promos.Validate(ctx, code)
	if err == nil {
		return false
	}
	domainErr := pkgerrors.As(err)
	if domainErr == nil {
		return false
	}
	switch domainErr.Code() {
	case pkgerrors.CodeNotFound, pkgerrors.CodeStateConflict:
		s.carts.DropDiscount(sessionID)
		s.logger.Warn(s.logger.WithField(ctx, "promo_code", code), "applied promo code no longer valid, dropped from cart")
		return true
	default:
		// Lookup trouble is not the shopper's problem; the discount is
		// display-only and the platform recomputes its own totals.
		s.logger.Warn(s.logger.WithField(ctx, "promo_code", code), "promo re-validation unavailable, keeping code")
		return false
	}
}

func (s *Service) recordFailure(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	reason := "internal"
	if domainErr := pkgerrors.As(err); domainErr != nil {
		reason = string(domainErr.Code())
	}
	s.metrics.IncFailure(reason)
	s.metrics.ObserveDuration("failed", s.now().Sub(start))
}
