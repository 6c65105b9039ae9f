package market

import (
	"strings"
	"time"
)

// PriceKind selects which price of a PriceItem to use.
type PriceKind int

const (
	PriceDefault PriceKind = iota
	PriceOpen
	PriceHigh
	PriceLow
	PriceClose
	PriceTypical
	PriceBid
	PriceAsk
	PriceMid
)

var priceKindNames = []string{"DEFAULT", "OPEN", "HIGH", "LOW", "CLOSE", "TYPICAL", "BID", "ASK", "MID"}

func (k PriceKind) String() string {
	if k < 0 || int(k) >= len(priceKindNames) {
		return "UNKNOWN"
	}
	return priceKindNames[k]
}

// ParsePriceKind is case-insensitive; the empty string is PriceDefault.
func ParsePriceKind(s string) (PriceKind, bool) {
	if s == "" {
		return PriceDefault, true
	}
	for i, n := range priceKindNames {
		if strings.EqualFold(n, s) {
			return PriceKind(i), true
		}
	}
	return PriceDefault, false
}

// PriceItem is one price observation for a single asset.
type PriceItem interface {
	Asset() Asset
	Price(kind PriceKind) float64
	Volume() float64
}

// PriceBar is an OHLCV bar. Only the close can change after construction, and
// only through AdjustClose.
type PriceBar struct {
	asset  Asset
	open   float64
	high   float64
	low    float64
	close  float64
	volume float64
	Span   time.Duration
}

func NewPriceBar(a Asset, open, high, low, close, volume float64, span time.Duration) *PriceBar {
	return &PriceBar{asset: a, open: open, high: high, low: low, close: close, volume: volume, Span: span}
}

func (b *PriceBar) Asset() Asset { return b.asset }
func (b *PriceBar) Open() float64 { return b.open }
func (b *PriceBar) High() float64 { return b.high }
func (b *PriceBar) Low() float64 { return b.low }
func (b *PriceBar) Close() float64 { return b.close }
func (b *PriceBar) Volume() float64 { return b.volume }

func (b *PriceBar) Price(kind PriceKind) float64 {
	switch kind {
	case PriceOpen:
		return b.open
	case PriceHigh:
		return b.high
	case PriceLow:
		return b.low
	case PriceTypical:
		return (b.high + b.low + b.close) / 3
	default:
		return b.close
	}
}

// AdjustClose replaces the close with an adjusted close and scales open, high
// and low by the same ratio, as done for split/dividend adjusted series.
func (b *PriceBar) AdjustClose(adjClose float64) {
	if b.close == 0 {
		b.close = adjClose
		return
	}
	r := adjClose / b.close
	b.open *= r
	b.high *= r
	b.low *= r
	b.close = adjClose
	if r != 0 {
		b.volume /= r
	}
}

// TradePrice is the price and volume of a single executed trade.
type TradePrice struct {
	asset  Asset
	price  float64
	volume float64
}

func NewTradePrice(a Asset, price, volume float64) TradePrice {
	return TradePrice{asset: a, price: price, volume: volume}
}

func (t TradePrice) Asset() Asset { return t.asset }
func (t TradePrice) Price(PriceKind) float64 { return t.price }
func (t TradePrice) Volume() float64 { return t.volume }

// PriceQuote is a top-of-book quote.
type PriceQuote struct {
	asset   Asset
	Ask     float64
	AskSize float64
	Bid     float64
	BidSize float64
}

func NewPriceQuote(a Asset, ask, askSize, bid, bidSize float64) PriceQuote {
	return PriceQuote{asset: a, Ask: ask, AskSize: askSize, Bid: bid, BidSize: bidSize}
}

func (q PriceQuote) Asset() Asset { return q.asset }
func (q PriceQuote) Mid() float64 { return (q.Ask + q.Bid) / 2 }
func (q PriceQuote) Spread() float64 { return q.Ask - q.Bid }
func (q PriceQuote) Volume() float64 { return q.AskSize + q.BidSize }

func (q PriceQuote) Price(kind PriceKind) float64 {
	switch kind {
	case PriceAsk:
		return q.Ask
	case PriceBid:
		return q.Bid
	default:
		return q.Mid()
	}
}
