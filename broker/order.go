package broker

import (
	"fmt"

	"github.com/rustyeddy/tradecore/market"
)

// ErrMissingOrderID is returned when cancelling or modifying an order that was
// never placed.
var ErrMissingOrderID = fmt.Errorf("%w: order has no id", market.ErrInvariant)

// TIF is an order's time in force.
type TIF int

const (
	// DAY orders expire when the exchange-local date advances past the day
	// the order entered the book.
	DAY TIF = iota
	// GTC orders stay open until filled or cancelled.
	GTC
)

func (t TIF) String() string {
	switch t {
	case DAY:
		return "DAY"
	case GTC:
		return "GTC"
	}
	return "UNKNOWN"
}

func ParseTIF(s string) (TIF, error) {
	switch s {
	case "", "DAY", "day":
		return DAY, nil
	case "GTC", "gtc":
		return GTC, nil
	}
	return DAY, fmt.Errorf("unknown time in force %q", s)
}

// Order is a limit order. A positive size buys, a negative size sells. An
// order with an ID and zero size cancels the open order with that ID; an
// order with an ID and non-zero size replaces it.
type Order struct {
	ID    int
	Asset market.Asset
	Size  market.Size
	Limit float64
	TIF   TIF
	Tag   string
	Fill  market.Size
}

func NewOrder(a market.Asset, size market.Size, limit float64) Order {
	return Order{Asset: a, Size: size, Limit: limit}
}

func (o Order) IsBuy() bool  { return o.Size.IsPositive() }
func (o Order) IsSell() bool { return o.Size.IsNegative() }

func (o Order) IsCancellation() bool { return o.ID != 0 && o.Size.IsZero() }
func (o Order) IsModification() bool { return o.ID != 0 && !o.Size.IsZero() }

// IsExecutable reports whether the order fills at price.
func (o Order) IsExecutable(price float64) bool {
	switch {
	case o.IsBuy():
		return price <= o.Limit
	case o.IsSell():
		return price >= o.Limit
	}
	return false
}

// Cancel returns the cancellation instruction for a placed order.
func (o Order) Cancel() (Order, error) {
	if o.ID == 0 {
		return Order{}, ErrMissingOrderID
	}
	return Order{ID: o.ID, Asset: o.Asset, Tag: o.Tag, TIF: o.TIF}, nil
}

// Modify returns a replacement for a placed order that keeps its ID.
func (o Order) Modify(size market.Size, limit float64) (Order, error) {
	if o.ID == 0 {
		return Order{}, ErrMissingOrderID
	}
	if size.IsZero() {
		return Order{}, fmt.Errorf("modify order %d: size is zero, use Cancel", o.ID)
	}
	m := o
	m.Size = size
	m.Limit = limit
	m.Fill = market.ZeroSize
	return m, nil
}

func (o Order) Remaining() market.Size { return o.Size.Sub(o.Fill) }

// Value is the notional at the limit price, in the asset's currency.
func (o Order) Value() market.Amount { return o.Asset.Value(o.Size, o.Limit) }

func (o Order) String() string {
	switch {
	case o.IsCancellation():
		return fmt.Sprintf("cancel #%d %s", o.ID, o.Asset.Symbol())
	case o.ID != 0:
		return fmt.Sprintf("#%d %s %s@%g %s", o.ID, o.Asset.Symbol(), o.Size, o.Limit, o.TIF)
	}
	return fmt.Sprintf("%s %s@%g %s", o.Asset.Symbol(), o.Size, o.Limit, o.TIF)
}
