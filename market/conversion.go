package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Converter converts an amount into another currency at a point in time.
type Converter interface {
	Convert(a Amount, to Currency, at time.Time) (Amount, error)
}

// NoConversion only passes through amounts already in the target currency.
// Runs use a single accounting currency unless a real converter is supplied.
type NoConversion struct{}

func (NoConversion) Convert(a Amount, to Currency, _ time.Time) (Amount, error) {
	if a.Currency == to {
		return a, nil
	}
	return Amount{}, fmt.Errorf("%w: %s to %s", ErrNoConversion, a.Currency, to)
}

// FixedRates converts with static rates, quoted as units of the target per
// unit of the source. Inverse rates are derived when missing.
type FixedRates struct {
	rates map[[2]Currency]decimal.Decimal
}

func NewFixedRates() *FixedRates {
	return &FixedRates{rates: make(map[[2]Currency]decimal.Decimal)}
}

// Set registers 1 from = rate to.
func (f *FixedRates) Set(from, to Currency, rate float64) *FixedRates {
	f.rates[[2]Currency{from, to}] = decimal.NewFromFloat(rate)
	return f
}

func (f *FixedRates) Convert(a Amount, to Currency, _ time.Time) (Amount, error) {
	if a.Currency == to {
		return a, nil
	}
	if r, ok := f.rates[[2]Currency{a.Currency, to}]; ok {
		return Amount{Currency: to, Value: a.Value.Mul(r)}, nil
	}
	if r, ok := f.rates[[2]Currency{to, a.Currency}]; ok && !r.IsZero() {
		return Amount{Currency: to, Value: a.Value.Div(r)}, nil
	}
	return Amount{}, fmt.Errorf("%w: %s to %s", ErrNoConversion, a.Currency, to)
}
