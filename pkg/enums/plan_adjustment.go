package enums

import "fmt"

// PlanAdjustmentKind describes how a selling plan alters a variant's base price.
type PlanAdjustmentKind string

const (
	PlanAdjustmentPercentage  PlanAdjustmentKind = "percentage"
	PlanAdjustmentFixedAmount PlanAdjustmentKind = "fixed_amount"
	PlanAdjustmentFixedPrice  PlanAdjustmentKind = "fixed_price"
)

var validPlanAdjustmentKinds = []PlanAdjustmentKind{
	PlanAdjustmentPercentage,
	PlanAdjustmentFixedAmount,
	PlanAdjustmentFixedPrice,
}

// String implements fmt.Stringer.
func (p PlanAdjustmentKind) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanAdjustmentKind.
func (p PlanAdjustmentKind) IsValid() bool {
	for _, candidate := range validPlanAdjustmentKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanAdjustmentKind converts raw input into a PlanAdjustmentKind.
func ParsePlanAdjustmentKind(value string) (PlanAdjustmentKind, error) {
	for _, candidate := range validPlanAdjustmentKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan adjustment kind %q", value)
}
