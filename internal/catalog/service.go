// Package catalog is the read-only storefront catalog facade. It fronts
// the commerce platform with a short-TTL cache so browse traffic does
// not hammer the remote API; cache failures degrade to direct reads.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lunebox/storefront-backend/pkg/commerce"
	"github.com/lunebox/storefront-backend/pkg/config"
	pkgerrors "github.com/lunebox/storefront-backend/pkg/errors"
	"github.com/lunebox/storefront-backend/pkg/logger"
	"github.com/lunebox/storefront-backend/pkg/redis"
)

const productListKey = "products"

type platformClient interface {
	ListProducts(ctx context.Context) ([]commerce.Product, error)
	GetProductByHandle(ctx context.Context, handle string) (*commerce.Product, error)
}

type productCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CatalogKey(parts ...string) string
}

// Service serves validated catalog reads to the API layer.
type Service struct {
	platform platformClient
	cache    productCache
	ttl      time.Duration
	logger   *logger.Logger
}

// NewService wires the catalog facade. The cache is optional: passing a
// nil interface disables caching entirely.
func NewService(platform platformClient, cache productCache, cfg config.CatalogConfig, logg *logger.Logger) (*Service, error) {
	if platform == nil {
		return nil, fmt.Errorf("platform client is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		platform: platform,
		cache:    cache,
		ttl:      ttl,
		logger:   logg,
	}, nil
}

// ListProducts returns the storefront catalog, cached.
func (s *Service) ListProducts(ctx context.Context) ([]commerce.Product, error) {
	var cached []commerce.Product
	key := s.cacheKey(productListKey)
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	products, err := s.platform.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	s.fillCache(ctx, key, products)
	return products, nil
}

// GetProductByHandle returns one product, cached per handle.
func (s *Service) GetProductByHandle(ctx context.Context, handle string) (*commerce.Product, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product handle is required")
	}

	var cached commerce.Product
	key := s.cacheKey("product", handle)
	if s.readCache(ctx, key, &cached) {
		return &cached, nil
	}

	product, err := s.platform.GetProductByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}

	s.fillCache(ctx, key, product)
	return product, nil
}

func (s *Service) cacheKey(parts ...string) string {
	if s.cache == nil {
		return ""
	}
	return s.cache.CatalogKey(parts...)
}

// readCache reports whether out was populated from the cache. Any cache
// or decode failure counts as a miss.
func (s *Service) readCache(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn(ctx, fmt.Sprintf("catalog cache read failed for %s: %v", key, err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("catalog cache entry %s is corrupt: %v", key, err))
		return false
	}
	return true
}

func (s *Service) fillCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("catalog cache encode failed for %s: %v", key, err))
		return
	}
	if err := s.cache.Set(ctx, key, string(encoded), s.ttl); err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("catalog cache write failed for %s: %v", key, err))
	}
}

// ResolveVariant finds a variant (and optionally one of its selling
// plans) across the catalog. Add-to-cart uses this to snapshot prices
// server-side instead of trusting the browser.
func (s *Service) ResolveVariant(ctx context.Context, variantID, sellingPlanID string) (*commerce.Product, *commerce.Variant, *commerce.SellingPlan, error) {
	if strings.TrimSpace(variantID) == "" {
		return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "variant_id is required")
	}

	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	for i := range products {
		product := &products[i]
		for j := range product.Variants {
			if product.Variants[j].ID != variantID {
				continue
			}
			variant := &product.Variants[j]
			if sellingPlanID == "" {
				return product, variant, nil, nil
			}
			for _, group := range product.SellingPlanGroups {
				for k := range group.Plans {
					if group.Plans[k].ID == sellingPlanID {
						return product, variant, &group.Plans[k], nil
					}
				}
			}
			return nil, nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "selling plan not offered for this product")
		}
	}
	return nil, nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
}
