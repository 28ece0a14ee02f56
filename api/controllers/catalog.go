package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lunebox/storefront-backend/api/responses"
	"github.com/lunebox/storefront-backend/pkg/commerce"
	"github.com/lunebox/storefront-backend/pkg/logger"
)

// CatalogService is the read surface the catalog handlers need.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]commerce.Product, error)
	GetProductByHandle(ctx context.Context, handle string) (*commerce.Product, error)
}

func CatalogListProducts(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := svc.ListProducts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"products": products})
	}
}

func CatalogGetProduct(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, err := svc.GetProductByHandle(r.Context(), chi.URLParam(r, "handle"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product": product})
	}
}
