package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lunebox/storefront-backend/api/middleware"
	"github.com/lunebox/storefront-backend/api/responses"
	"github.com/lunebox/storefront-backend/api/validators"
	cartstore "github.com/lunebox/storefront-backend/internal/cart"
	"github.com/lunebox/storefront-backend/pkg/commerce"
	pkgerrors "github.com/lunebox/storefront-backend/pkg/errors"
	"github.com/lunebox/storefront-backend/pkg/logger"
	"github.com/lunebox/storefront-backend/pkg/pricing"
)

// VariantResolver looks up catalog data when a line is added, so the
// cart stores server-side prices rather than anything client-sent.
type VariantResolver interface {
	ResolveVariant(ctx context.Context, variantID, sellingPlanID string) (*commerce.Product, *commerce.Variant, *commerce.SellingPlan, error)
}

// PromoService validates shopper-entered codes for the cart surface.
type PromoService interface {
	Validate(ctx context.Context, code string) (*pricing.AppliedDiscount, error)
}

type addItemRequest struct {
	VariantID     string `json:"variant_id" validate:"required"`
	SellingPlanID string `json:"selling_plan_id"`
	Quantity      int    `json:"quantity" validate:"min=0"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

type applyDiscountRequest struct {
	Code string `json:"code" validate:"required"`
}

func CartGet(store *cartstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, store.Get(middleware.SessionIDFromContext(r.Context())))
	}
}

func CartAddItem(store *cartstore.Store, catalog VariantResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, variant, plan, err := catalog.ResolveVariant(r.Context(), payload.VariantID, payload.SellingPlanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !variant.Available {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeStateConflict, "this item is currently unavailable"))
			return
		}
		if product.RequiresSellingPlan && plan == nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "this product requires a subscription plan"))
			return
		}

		input := cartstore.AddItemInput{
			VariantID:    variant.ID,
			Quantity:     payload.Quantity,
			ProductTitle: product.Title,
			VariantTitle: variant.Title,
			UnitPrice:    variant.Price,
		}
		for _, opt := range variant.SelectedOptions {
			input.SelectedOptions = append(input.SelectedOptions, cartstore.SelectedOption{Name: opt.Name, Value: opt.Value})
		}
		if len(product.Images) > 0 {
			input.ImageURL = product.Images[0].URL
		}
		if plan != nil {
			input.SellingPlanID = plan.ID
			input.CommitmentMonths = plan.CommitmentMonths
			input.UnitPrice.Amount = pricing.AdjustedUnitPrice(variant.Price.Amount, &plan.Adjustment)
		}

		view, err := store.AddItem(middleware.SessionIDFromContext(r.Context()), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartUpdateItem(store *cartstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := store.UpdateQuantity(
			middleware.SessionIDFromContext(r.Context()),
			chi.URLParam(r, "variantId"),
			r.URL.Query().Get("selling_plan_id"),
			*payload.Quantity,
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartRemoveItem(store *cartstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := store.RemoveItem(
			middleware.SessionIDFromContext(r.Context()),
			chi.URLParam(r, "variantId"),
			r.URL.Query().Get("selling_plan_id"),
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartClear(store *cartstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := store.Clear(middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartApplyDiscount(store *cartstore.Store, promos PromoService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload applyDiscountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discount, err := promos.Validate(r.Context(), payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := store.ApplyDiscount(middleware.SessionIDFromContext(r.Context()), discount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartRemoveDiscount(store *cartstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := store.RemoveDiscount(middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
