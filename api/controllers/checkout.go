package controllers

import (
	"context"
	"net/http"

	"github.com/lunebox/storefront-backend/api/middleware"
	"github.com/lunebox/storefront-backend/api/responses"
	"github.com/lunebox/storefront-backend/api/validators"
	checkoutsvc "github.com/lunebox/storefront-backend/internal/checkout"
	"github.com/lunebox/storefront-backend/pkg/logger"
)

// CheckoutService is the orchestration surface the handlers call.
type CheckoutService interface {
	Create(ctx context.Context, sessionID, idempotencyKey string) (*checkoutsvc.Result, error)
	Complete(ctx context.Context, sessionID string, presented bool) (*checkoutsvc.CompleteResult, error)
}

type completeCheckoutRequest struct {
	// Presented reports whether the browser actually opened the
	// checkout surface (false when the popup was blocked).
	Presented *bool `json:"presented" validate:"required"`
}

func CheckoutCreate(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.Create(r.Context(), middleware.SessionIDFromContext(r.Context()), r.Header.Get("Idempotency-Key"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func CheckoutComplete(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload completeCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Complete(r.Context(), middleware.SessionIDFromContext(r.Context()), *payload.Presented)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
