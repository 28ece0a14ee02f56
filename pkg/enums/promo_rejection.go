package enums

// PromoRejection labels why a promo code failed validation. Missing and
// deactivated codes share one reason so callers cannot enumerate codes.
type PromoRejection string

const (
	PromoRejectionCodeRequired  PromoRejection = "code_required"
	PromoRejectionCodeInvalid   PromoRejection = "code_invalid"
	PromoRejectionCodeExpired   PromoRejection = "code_expired"
	PromoRejectionCodeExhausted PromoRejection = "code_exhausted"
)

// String implements fmt.Stringer.
func (p PromoRejection) String() string {
	return string(p)
}
