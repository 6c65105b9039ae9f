package market

import (
	"github.com/shopspring/decimal"
)

// Size is a signed quantity. Positive is long/buy, negative is short/sell and
// zero is flat (or, on an order with an id, a cancellation).
type Size struct {
	d decimal.Decimal
}

var ZeroSize = Size{}

func NewSize(x float64) Size {
	return Size{d: decimal.NewFromFloat(x)}
}

func SizeOf(n int64) Size {
	return Size{d: decimal.NewFromInt(n)}
}

func ParseSize(s string) (Size, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Size{}, err
	}
	return Size{d: d}, nil
}

func (s Size) Add(o Size) Size { return Size{d: s.d.Add(o.d)} }
func (s Size) Sub(o Size) Size { return Size{d: s.d.Sub(o.d)} }
func (s Size) Neg() Size { return Size{d: s.d.Neg()} }
func (s Size) Abs() Size { return Size{d: s.d.Abs()} }

func (s Size) Mul(x float64) Size {
	return Size{d: s.d.Mul(decimal.NewFromFloat(x))}
}

func (s Size) Sign() int { return s.d.Sign() }
func (s Size) IsZero() bool { return s.d.IsZero() }
func (s Size) IsPositive() bool { return s.d.IsPositive() }
func (s Size) IsNegative() bool { return s.d.IsNegative() }

func (s Size) Cmp(o Size) int { return s.d.Cmp(o.d) }
func (s Size) Equal(o Size) bool { return s.d.Equal(o.d) }
func (s Size) Less(o Size) bool { return s.d.LessThan(o.d) }
func (s Size) Greater(o Size) bool { return s.d.GreaterThan(o.d) }

// Truncate rounds toward zero keeping fractions decimal places. Zero
// fractions means whole units.
func (s Size) Truncate(fractions int32) Size {
	return Size{d: s.d.Truncate(fractions)}
}

func (s Size) Decimal() decimal.Decimal { return s.d }

func (s Size) Float64() float64 { return s.d.InexactFloat64() }

func (s Size) String() string { return s.d.String() }

// MinSize returns the smaller of a and b.
func MinSize(a, b Size) Size {
	if a.Less(b) {
		return a
	}
	return b
}
