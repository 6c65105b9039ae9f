package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is an accounting unit identified by its code.
type Currency struct {
	Code string
}

var (
	USD  = Currency{"USD"}
	EUR  = Currency{"EUR"}
	GBP  = Currency{"GBP"}
	JPY  = Currency{"JPY"}
	BTC  = Currency{"BTC"}
	USDT = Currency{"USDT"}
)

// CurrencyOf returns the currency for an ISO (or crypto) code.
func CurrencyOf(code string) Currency {
	return Currency{Code: code}
}

func (c Currency) String() string { return c.Code }

// Amount is a scalar value in a single currency.
type Amount struct {
	Currency Currency
	Value    decimal.Decimal
}

func NewAmount(c Currency, value float64) Amount {
	return Amount{Currency: c, Value: decimal.NewFromFloat(value)}
}

func ZeroAmount(c Currency) Amount {
	return Amount{Currency: c, Value: decimal.Zero}
}

func (a Amount) check(o Amount) error {
	if a.Currency != o.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, a.Currency, o.Currency)
	}
	return nil
}

func (a Amount) Add(o Amount) (Amount, error) {
	if err := a.check(o); err != nil {
		return Amount{}, err
	}
	return Amount{Currency: a.Currency, Value: a.Value.Add(o.Value)}, nil
}

func (a Amount) Sub(o Amount) (Amount, error) {
	if err := a.check(o); err != nil {
		return Amount{}, err
	}
	return Amount{Currency: a.Currency, Value: a.Value.Sub(o.Value)}, nil
}

// Cmp compares two amounts of the same currency.
func (a Amount) Cmp(o Amount) (int, error) {
	if err := a.check(o); err != nil {
		return 0, err
	}
	return a.Value.Cmp(o.Value), nil
}

func (a Amount) Less(o Amount) (bool, error) {
	c, err := a.Cmp(o)
	return c < 0, err
}

func (a Amount) Greater(o Amount) (bool, error) {
	c, err := a.Cmp(o)
	return c > 0, err
}

func (a Amount) Mul(x float64) Amount {
	return Amount{Currency: a.Currency, Value: a.Value.Mul(decimal.NewFromFloat(x))}
}

func (a Amount) Neg() Amount {
	return Amount{Currency: a.Currency, Value: a.Value.Neg()}
}

func (a Amount) IsZero() bool { return a.Value.IsZero() }
func (a Amount) IsPositive() bool { return a.Value.IsPositive() }
func (a Amount) IsNegative() bool { return a.Value.IsNegative() }

func (a Amount) Float64() float64 {
	return a.Value.InexactFloat64()
}

func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.Currency.Code, a.Value.StringFixed(2))
}
