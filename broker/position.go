package broker

import (
	"math"

	"github.com/rustyeddy/tradecore/market"
)

// Position is the quantity held in one asset.
type Position struct {
	Size     market.Size
	AvgPrice float64
	MktPrice float64
}

func NewPosition(size market.Size, avgPrice float64) Position {
	return Position{Size: size, AvgPrice: avgPrice, MktPrice: avgPrice}
}

func (p Position) IsLong() bool   { return p.Size.IsPositive() }
func (p Position) IsShort() bool  { return p.Size.IsNegative() }
func (p Position) IsClosed() bool { return p.Size.IsZero() }

// Apply fills size at price and returns the resulting position together with
// the realized PnL, in asset currency units. Adding in the same direction
// averages the entry price; reducing keeps it; crossing through zero resets it
// to price.
func (p Position) Apply(size market.Size, price float64) (Position, float64) {
	if size.IsZero() {
		return p, 0
	}
	if p.IsClosed() {
		return Position{Size: size, AvgPrice: price, MktPrice: price}, 0
	}

	next := p.Size.Add(size)
	if p.Size.Sign() == size.Sign() {
		cur, add := p.Size.Float64(), size.Float64()
		avg := (cur*p.AvgPrice + add*price) / (cur + add)
		return Position{Size: next, AvgPrice: avg, MktPrice: price}, 0
	}

	closed := math.Min(math.Abs(size.Float64()), math.Abs(p.Size.Float64()))
	realized := closed * (price - p.AvgPrice) * float64(p.Size.Sign())

	switch {
	case next.IsZero():
		return Position{}, realized
	case next.Sign() == p.Size.Sign():
		return Position{Size: next, AvgPrice: p.AvgPrice, MktPrice: price}, realized
	default:
		return Position{Size: next, AvgPrice: price, MktPrice: price}, realized
	}
}

func (p Position) MarketValue(a market.Asset) market.Amount {
	return a.Value(p.Size, p.MktPrice)
}

func (p Position) CostBasis(a market.Asset) market.Amount {
	return a.Value(p.Size, p.AvgPrice)
}

func (p Position) UnrealizedPnl(a market.Asset) market.Amount {
	return a.Value(p.Size, p.MktPrice-p.AvgPrice)
}
