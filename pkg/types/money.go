package types

import (
	"fmt"

	"github.com/lunebox/storefront-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Money pairs a decimal amount with its currency code.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency enums.Currency  `json:"currency"`
}

// NewMoney builds a Money value after validating the currency code.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	cur, err := enums.ParseCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("amount cannot be negative")
	}
	return Money{Amount: amount, Currency: cur}, nil
}

// Mul returns the money multiplied by an integer quantity.
func (m Money) Mul(qty int) Money {
	return Money{
		Amount:   m.Amount.Mul(decimal.NewFromInt(int64(qty))),
		Currency: m.Currency,
	}
}

// Add sums two amounts; currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}
