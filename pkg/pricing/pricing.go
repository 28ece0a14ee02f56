// Package pricing holds the pure price math used by cart totals and
// marketing surfaces. Nothing in here touches the network or the clock.
package pricing

import (
	"github.com/lunebox/storefront-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// minCommitmentMonths is the shortest subscription commitment a promo
// code applies to. Plans below this display codes as inapplicable.
const minCommitmentMonths = 2

var oneHundred = decimal.NewFromInt(100)

// AppliedDiscount is the currently-active promo effect on a cart,
// derived from exactly one validated promo code.
type AppliedDiscount struct {
	Code        string              `json:"code"`
	Kind        enums.DiscountKind  `json:"kind"`
	Value       decimal.Decimal     `json:"value"`
	Description string              `json:"description,omitempty"`
}

// PlanAdjustment is a selling plan's price rule relative to the
// variant's base price.
type PlanAdjustment struct {
	Kind  enums.PlanAdjustmentKind `json:"kind"`
	Value decimal.Decimal          `json:"value"`
}

// DiscountedPrice applies a promo discount to a unit price. A nil
// discount returns the price unchanged. Fixed discounts floor at zero.
func DiscountedPrice(price decimal.Decimal, discount *AppliedDiscount) decimal.Decimal {
	if discount == nil {
		return price
	}
	switch discount.Kind {
	case enums.DiscountKindPercentage:
		return price.Sub(price.Mul(discount.Value).Div(oneHundred))
	case enums.DiscountKindFixed:
		reduced := price.Sub(discount.Value)
		if reduced.IsNegative() {
			return decimal.Zero
		}
		return reduced
	default:
		return price
	}
}

// AdjustedUnitPrice applies a selling plan's price rule to the
// variant's base price. Results floor at zero.
func AdjustedUnitPrice(base decimal.Decimal, adj *PlanAdjustment) decimal.Decimal {
	if adj == nil {
		return base
	}
	var result decimal.Decimal
	switch adj.Kind {
	case enums.PlanAdjustmentPercentage:
		result = base.Sub(base.Mul(adj.Value).Div(oneHundred))
	case enums.PlanAdjustmentFixedAmount:
		result = base.Sub(adj.Value)
	case enums.PlanAdjustmentFixedPrice:
		result = adj.Value
	default:
		result = base
	}
	if result.IsNegative() {
		return decimal.Zero
	}
	return result
}

// RoundForDisplay rounds half away from zero to two decimal places,
// the convention used everywhere a total reaches the shopper.
func RoundForDisplay(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// EligibleForCode reports whether a subscription commitment length
// qualifies for promo codes. This is the caller-side display rule; the
// calculator itself applies any discount it is given.
func EligibleForCode(commitmentMonths int) bool {
	return commitmentMonths >= minCommitmentMonths
}
