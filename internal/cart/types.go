package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lunebox/storefront-backend/pkg/enums"
	"github.com/lunebox/storefront-backend/pkg/pricing"
	"github.com/lunebox/storefront-backend/pkg/types"
)

// SelectedOption is one name/value pair of the variant's configuration
// (size, flavor), snapshotted so cart views render without a refetch.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Line is one cart entry, keyed by (variant, selling plan). The display
// fields are a snapshot taken when the line was added; catalog edits do
// not rewrite carts mid-session.
type Line struct {
	VariantID        string           `json:"variant_id"`
	SellingPlanID    string           `json:"selling_plan_id,omitempty"`
	ProductTitle     string           `json:"product_title"`
	VariantTitle     string           `json:"variant_title,omitempty"`
	SelectedOptions  []SelectedOption `json:"selected_options,omitempty"`
	ImageURL         string           `json:"image_url,omitempty"`
	UnitPrice        types.Money      `json:"unit_price"`
	Quantity         int              `json:"quantity"`
	CommitmentMonths int              `json:"commitment_months,omitempty"`
	// PromoEligible mirrors the display rule: one-off purchases and
	// short commitments show promo codes as inapplicable.
	PromoEligible bool `json:"promo_eligible"`
}

// LineTotal is the line's quantity-extended price.
func (l Line) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity).Amount
}

// AddItemInput carries everything needed to add or merge a line.
type AddItemInput struct {
	VariantID        string
	SellingPlanID    string
	Quantity         int
	ProductTitle     string
	VariantTitle     string
	SelectedOptions  []SelectedOption
	ImageURL         string
	UnitPrice        types.Money
	CommitmentMonths int
}

// View is the derived read model handed to the API layer. Everything in
// it is recomputed from the lines on each read; nothing is stored.
type View struct {
	SessionID          string                   `json:"session_id"`
	Status             enums.CartStatus         `json:"status"`
	Lines              []Line                   `json:"lines"`
	ItemCount          int                      `json:"item_count"`
	Currency           enums.Currency           `json:"currency,omitempty"`
	Subtotal           decimal.Decimal          `json:"subtotal"`
	DiscountedSubtotal decimal.Decimal          `json:"discounted_subtotal"`
	Discount           *pricing.AppliedDiscount `json:"discount,omitempty"`
	HandoffURL         string                   `json:"handoff_url,omitempty"`
	LastError          string                   `json:"last_error,omitempty"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// Snapshot freezes the cart contents at the moment a checkout begins,
// so the remote session is built from exactly what the shopper saw.
type Snapshot struct {
	SessionID string
	Lines     []Line
	Discount  *pricing.AppliedDiscount
	Currency  enums.Currency
}
