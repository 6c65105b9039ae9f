package broker

import (
	"time"

	"github.com/rustyeddy/tradecore/market"
)

// Trade records one fill.
type Trade struct {
	Time    time.Time
	Asset   market.Asset
	Size    market.Size
	Price   float64
	OrderID int
	Tag     string
	// PnL realized by this fill, in the asset's currency.
	PnL market.Amount
}

// Notional is size times price in the asset's currency.
func (t Trade) Notional() market.Amount { return t.Asset.Value(t.Size, t.Price) }
