package broker

import (
	"sort"
	"time"

	"github.com/rustyeddy/tradecore/market"
)

// ledger is the state shared by Account and Snapshot. Equity and PnL are
// always derived from it, never stored.
type ledger struct {
	BaseCurrency market.Currency
	LastUpdate   time.Time
	Cash         *market.Wallet
	BuyingPower  market.Amount
	Positions    map[market.Asset]Position
	OpenOrders   []Order
	Trades       []Trade

	converter market.Converter
}

// Convert converts a into the base currency at the last update time.
func (l ledger) Convert(a market.Amount) (market.Amount, error) {
	if a.Currency == l.BaseCurrency {
		return a, nil
	}
	conv := l.converter
	if conv == nil {
		conv = market.NoConversion{}
	}
	return conv.Convert(a, l.BaseCurrency, l.LastUpdate)
}

// ConvertWallet sums every amount in w in the base currency.
func (l ledger) ConvertWallet(w *market.Wallet) (market.Amount, error) {
	total := market.ZeroAmount(l.BaseCurrency)
	if w == nil {
		return total, nil
	}
	for _, a := range w.Amounts() {
		c, err := l.Convert(a)
		if err != nil {
			return total, err
		}
		if total, err = total.Add(c); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (l ledger) sum(assets []market.Asset, f func(market.Asset, Position) market.Amount) (market.Amount, error) {
	total := market.ZeroAmount(l.BaseCurrency)
	if len(assets) == 0 {
		assets = l.Assets()
	}
	for _, a := range assets {
		p, ok := l.Positions[a]
		if !ok {
			continue
		}
		c, err := l.Convert(f(a, p))
		if err != nil {
			return total, err
		}
		if total, err = total.Add(c); err != nil {
			return total, err
		}
	}
	return total, nil
}

// MarketValue of the positions in assets, or of all positions if none given.
func (l ledger) MarketValue(assets ...market.Asset) (market.Amount, error) {
	return l.sum(assets, func(a market.Asset, p Position) market.Amount { return p.MarketValue(a) })
}

// UnrealizedPnl is market value minus cost basis for assets, or for all
// positions if none given.
func (l ledger) UnrealizedPnl(assets ...market.Asset) (market.Amount, error) {
	return l.sum(assets, func(a market.Asset, p Position) market.Amount { return p.UnrealizedPnl(a) })
}

// Equity is cash plus the market value of every position.
func (l ledger) Equity() (market.Amount, error) {
	cash, err := l.ConvertWallet(l.Cash)
	if err != nil {
		return cash, err
	}
	mv, err := l.MarketValue()
	if err != nil {
		return cash, err
	}
	return cash.Add(mv)
}

// Assets returns the assets with an open position, sorted by symbol.
func (l ledger) Assets() []market.Asset {
	out := make([]market.Asset, 0, len(l.Positions))
	for a := range l.Positions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol() < out[j].Symbol() })
	return out
}

// Account is the mutable portfolio owned by a broker. Other components only
// ever see a Snapshot.
type Account struct {
	ledger
}

func NewAccount(base market.Currency, conv market.Converter) *Account {
	a := &Account{}
	a.BaseCurrency = base
	a.converter = conv
	a.Clear()
	return a
}

// Clear resets the account to empty, without any deposit.
func (a *Account) Clear() {
	a.LastUpdate = time.Time{}
	a.Cash = market.NewWallet()
	a.BuyingPower = market.ZeroAmount(a.BaseCurrency)
	a.Positions = make(map[market.Asset]Position)
	a.OpenOrders = nil
	a.Trades = nil
}

// SetPosition replaces the position for asset, or removes it when closed.
func (a *Account) SetPosition(asset market.Asset, p Position) {
	if p.IsClosed() {
		delete(a.Positions, asset)
		return
	}
	a.Positions[asset] = p
}

// UpdateMarketPrices refreshes the market price of every position the event
// has a price for. Other positions keep their last price.
func (a *Account) UpdateMarketPrices(evt *market.Event, kind market.PriceKind) {
	if evt.IsEmpty() {
		return
	}
	for asset, p := range a.Positions {
		if price, ok := evt.Price(asset, kind); ok {
			p.MktPrice = price
			a.Positions[asset] = p
		}
	}
}

func (a *Account) AddOrders(orders ...Order) {
	a.OpenOrders = append(a.OpenOrders, orders...)
}

// ReplaceOrder swaps the open order with o.ID for o.
func (a *Account) ReplaceOrder(o Order) bool {
	for i := range a.OpenOrders {
		if a.OpenOrders[i].ID == o.ID {
			a.OpenOrders[i] = o
			return true
		}
	}
	return false
}

func (a *Account) RemoveOrder(id int) bool {
	for i := range a.OpenOrders {
		if a.OpenOrders[i].ID == id {
			a.OpenOrders = append(a.OpenOrders[:i], a.OpenOrders[i+1:]...)
			return true
		}
	}
	return false
}

func (a *Account) AddTrade(t Trade) {
	a.Trades = append(a.Trades, t)
}

// Snapshot returns a copy that later account changes do not affect.
func (a *Account) Snapshot() Snapshot {
	s := Snapshot{ledger: ledger{
		BaseCurrency: a.BaseCurrency,
		LastUpdate:   a.LastUpdate,
		Cash:         a.Cash.Clone(),
		BuyingPower:  a.BuyingPower,
		Positions:    make(map[market.Asset]Position, len(a.Positions)),
		OpenOrders:   append([]Order(nil), a.OpenOrders...),
		// the account only appends, so a capped slice is safe to share
		Trades:    a.Trades[:len(a.Trades):len(a.Trades)],
		converter: a.converter,
	}}
	for k, v := range a.Positions {
		s.Positions[k] = v
	}
	return s
}

// Snapshot is a read-only copy of an Account at one point in time.
type Snapshot struct {
	ledger
}

func (s Snapshot) Position(a market.Asset) (Position, bool) {
	p, ok := s.Positions[a]
	return p, ok
}

// PositionSize is the held size of a, zero when flat.
func (s Snapshot) PositionSize(a market.Asset) market.Size {
	return s.Positions[a].Size
}

func (s Snapshot) OpenOrdersFor(a market.Asset) []Order {
	var out []Order
	for _, o := range s.OpenOrders {
		if o.Asset == a {
			out = append(out, o)
		}
	}
	return out
}

func (s Snapshot) HasOpenOrder(a market.Asset) bool {
	for _, o := range s.OpenOrders {
		if o.Asset == a {
			return true
		}
	}
	return false
}
