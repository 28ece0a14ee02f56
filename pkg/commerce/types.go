package commerce

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lunebox/storefront-backend/pkg/enums"
	"github.com/lunebox/storefront-backend/pkg/pricing"
	"github.com/lunebox/storefront-backend/pkg/types"
)

// Product is the validated catalog entity. The engine treats it as
// immutable: fetched, never mutated locally.
type Product struct {
	ID                  string
	Title               string
	Description         string
	Handle              string
	Images              []Image
	Variants            []Variant
	SellingPlanGroups   []SellingPlanGroup
	RequiresSellingPlan bool
}

// Image is a catalog image in display order.
type Image struct {
	URL     string
	AltText string
}

// Variant is a purchasable configuration of a Product.
type Variant struct {
	ID              string
	Title           string
	Price           types.Money
	Available       bool
	SelectedOptions []SelectedOption
}

// SelectedOption is one name/value pair of a variant's configuration.
type SelectedOption struct {
	Name  string
	Value string
}

// SellingPlanGroup bundles the subscription offers attached to a product.
type SellingPlanGroup struct {
	ID    string
	Name  string
	Plans []SellingPlan
}

// SellingPlan is a subscription offer altering a variant's price and recurrence.
type SellingPlan struct {
	ID               string
	Name             string
	Description      string
	CommitmentMonths int
	Adjustment       pricing.PlanAdjustment
}

// LineItemRequest is one line of a remote cart-session creation call.
type LineItemRequest struct {
	VariantID     string `json:"variant_id"`
	Quantity      int    `json:"quantity"`
	SellingPlanID string `json:"selling_plan_id,omitempty"`
}

// CheckoutSession is the remote, platform-hosted cart that becomes the
// destination of the payment hand-off.
type CheckoutSession struct {
	ID     string
	WebURL string
}

// Wire payloads. External JSON is decoded into these and validated
// before anything typed leaves this package.

type productPayload struct {
	ID                  string                    `json:"id"`
	Title               string                    `json:"title"`
	Description         string                    `json:"description"`
	Handle              string                    `json:"handle"`
	Images              []imagePayload            `json:"images"`
	Variants            []variantPayload          `json:"variants"`
	SellingPlanGroups   []sellingPlanGroupPayload `json:"selling_plan_groups"`
	RequiresSellingPlan bool                      `json:"requires_selling_plan"`
}

type imagePayload struct {
	URL     string `json:"url"`
	AltText string `json:"alt_text"`
}

type variantPayload struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	Price           pricePayload            `json:"price"`
	Available       bool                    `json:"available"`
	SelectedOptions []selectedOptionPayload `json:"selected_options"`
}

type pricePayload struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

type selectedOptionPayload struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type sellingPlanGroupPayload struct {
	ID    string               `json:"id"`
	Name  string               `json:"name"`
	Plans []sellingPlanPayload `json:"selling_plans"`
}

type sellingPlanPayload struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Description      string                 `json:"description"`
	CommitmentMonths int                    `json:"commitment_months"`
	PriceAdjustment  priceAdjustmentPayload `json:"price_adjustment"`
}

type priceAdjustmentPayload struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type checkoutSessionPayload struct {
	ID     string `json:"id"`
	WebURL string `json:"web_url"`
}

func (p productPayload) toDomain() (Product, error) {
	if strings.TrimSpace(p.ID) == "" {
		return Product{}, fmt.Errorf("product id is missing")
	}
	if strings.TrimSpace(p.Title) == "" {
		return Product{}, fmt.Errorf("product %s has no title", p.ID)
	}
	if strings.TrimSpace(p.Handle) == "" {
		return Product{}, fmt.Errorf("product %s has no handle", p.ID)
	}
	if len(p.Variants) == 0 {
		return Product{}, fmt.Errorf("product %s has no variants", p.ID)
	}

	product := Product{
		ID:                  p.ID,
		Title:               p.Title,
		Description:         p.Description,
		Handle:              p.Handle,
		RequiresSellingPlan: p.RequiresSellingPlan,
	}

	for _, img := range p.Images {
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		product.Images = append(product.Images, Image{URL: img.URL, AltText: img.AltText})
	}

	for _, v := range p.Variants {
		variant, err := v.toDomain()
		if err != nil {
			return Product{}, fmt.Errorf("product %s: %w", p.ID, err)
		}
		product.Variants = append(product.Variants, variant)
	}

	for _, g := range p.SellingPlanGroups {
		group, err := g.toDomain()
		if err != nil {
			return Product{}, fmt.Errorf("product %s: %w", p.ID, err)
		}
		product.SellingPlanGroups = append(product.SellingPlanGroups, group)
	}

	return product, nil
}

func (v variantPayload) toDomain() (Variant, error) {
	if strings.TrimSpace(v.ID) == "" {
		return Variant{}, fmt.Errorf("variant id is missing")
	}
	amount, err := decimal.NewFromString(v.Price.Amount)
	if err != nil {
		return Variant{}, fmt.Errorf("variant %s has invalid price %q", v.ID, v.Price.Amount)
	}
	price, err := types.NewMoney(amount, v.Price.CurrencyCode)
	if err != nil {
		return Variant{}, fmt.Errorf("variant %s: %w", v.ID, err)
	}

	variant := Variant{
		ID:        v.ID,
		Title:     v.Title,
		Price:     price,
		Available: v.Available,
	}
	for _, opt := range v.SelectedOptions {
		variant.SelectedOptions = append(variant.SelectedOptions, SelectedOption{Name: opt.Name, Value: opt.Value})
	}
	return variant, nil
}

func (g sellingPlanGroupPayload) toDomain() (SellingPlanGroup, error) {
	if strings.TrimSpace(g.ID) == "" {
		return SellingPlanGroup{}, fmt.Errorf("selling plan group id is missing")
	}
	group := SellingPlanGroup{ID: g.ID, Name: g.Name}
	for _, p := range g.Plans {
		plan, err := p.toDomain()
		if err != nil {
			return SellingPlanGroup{}, fmt.Errorf("group %s: %w", g.ID, err)
		}
		group.Plans = append(group.Plans, plan)
	}
	return group, nil
}

func (p sellingPlanPayload) toDomain() (SellingPlan, error) {
	if strings.TrimSpace(p.ID) == "" {
		return SellingPlan{}, fmt.Errorf("selling plan id is missing")
	}
	kind, err := enums.ParsePlanAdjustmentKind(p.PriceAdjustment.Kind)
	if err != nil {
		return SellingPlan{}, fmt.Errorf("selling plan %s: %w", p.ID, err)
	}
	value, err := decimal.NewFromString(p.PriceAdjustment.Value)
	if err != nil {
		return SellingPlan{}, fmt.Errorf("selling plan %s has invalid adjustment value %q", p.ID, p.PriceAdjustment.Value)
	}
	if p.CommitmentMonths < 0 {
		return SellingPlan{}, fmt.Errorf("selling plan %s has negative commitment", p.ID)
	}
	return SellingPlan{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		CommitmentMonths: p.CommitmentMonths,
		Adjustment:       pricing.PlanAdjustment{Kind: kind, Value: value},
	}, nil
}

func (c checkoutSessionPayload) toDomain() (CheckoutSession, error) {
	if strings.TrimSpace(c.ID) == "" {
		return CheckoutSession{}, fmt.Errorf("checkout session id is missing")
	}
	if strings.TrimSpace(c.WebURL) == "" {
		return CheckoutSession{}, fmt.Errorf("checkout session %s has no web url", c.ID)
	}
	return CheckoutSession{ID: c.ID, WebURL: c.WebURL}, nil
}
