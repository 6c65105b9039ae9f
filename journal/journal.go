// Package journal records what happens during a run. A journal observes the
// worker loop once per event; it never influences trading.
package journal

import (
	"errors"
	"io"
	"time"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/strategy"
)

// Journal receives the outcome of every event cycle. Errors are reported to
// the caller, which logs them and carries on.
type Journal interface {
	Track(evt *market.Event, snap broker.Snapshot, signals []strategy.Signal, orders []broker.Order) error
}

// Close closes j if it holds resources.
func Close(j Journal) error {
	if c, ok := j.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type Noop struct{}

func (Noop) Track(*market.Event, broker.Snapshot, []strategy.Signal, []broker.Order) error {
	return nil
}

// Multi fans out to several journals.
type Multi []Journal

func (m Multi) Track(evt *market.Event, snap broker.Snapshot, signals []strategy.Signal, orders []broker.Order) error {
	var errs []error
	for _, j := range m {
		if err := j.Track(evt, snap, signals, orders); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, j := range m {
		if err := Close(j); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EquityRecord is the account state after one event.
type EquityRecord struct {
	Time          time.Time
	Currency      string
	Equity        float64
	Cash          float64
	UnrealizedPnl float64
	Positions     int
	OpenOrders    int
}

func equityRecord(evt *market.Event, snap broker.Snapshot) (EquityRecord, error) {
	eq, err := snap.Equity()
	if err != nil {
		return EquityRecord{}, err
	}
	cash, err := snap.ConvertWallet(snap.Cash)
	if err != nil {
		return EquityRecord{}, err
	}
	upnl, err := snap.UnrealizedPnl()
	if err != nil {
		return EquityRecord{}, err
	}
	return EquityRecord{
		Time:          evt.Time,
		Currency:      snap.BaseCurrency.Code,
		Equity:        eq.Float64(),
		Cash:          cash.Float64(),
		UnrealizedPnl: upnl.Float64(),
		Positions:     len(snap.Positions),
		OpenOrders:    len(snap.OpenOrders),
	}, nil
}

// FillRecord is one executed order.
type FillRecord struct {
	Time     time.Time
	OrderID  int
	Asset    string
	Size     float64
	Price    float64
	PnL      float64
	Currency string
	Tag      string
}

func fillRecord(t broker.Trade) FillRecord {
	return FillRecord{
		Time:     t.Time,
		OrderID:  t.OrderID,
		Asset:    t.Asset.Serialize(),
		Size:     t.Size.Float64(),
		Price:    t.Price,
		PnL:      t.PnL.Float64(),
		Currency: t.PnL.Currency.Code,
		Tag:      t.Tag,
	}
}

// cursor remembers how many of a snapshot's trades were already recorded.
type cursor struct {
	seen int
}

func (c *cursor) next(snap broker.Snapshot) []broker.Trade {
	if c.seen > len(snap.Trades) {
		// the broker was reset
		c.seen = 0
	}
	out := snap.Trades[c.seen:]
	c.seen = len(snap.Trades)
	return out
}
