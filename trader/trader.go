package trader

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/strategy"
)

// Trader turns signals into orders. It never changes the account; the broker
// applies the orders later.
type Trader interface {
	CreateOrders(signals []strategy.Signal, snap broker.Snapshot, evt *market.Event) ([]broker.Order, error)
}

type Option func(*FlexTrader)

func WithLogger(l *slog.Logger) Option {
	return func(t *FlexTrader) { t.log = l }
}

// FlexTrader sizes every entry as a fixed share of equity and handles exits
// according to Config.ExitStrategy. Signals are processed in input order.
type FlexTrader struct {
	cfg Config
	log *slog.Logger

	mu sync.Mutex
	// exits counts consecutive exits per asset since it was last flat.
	exits map[market.Asset]int
	// recycled is the size an asset was left at by a recycle exit.
	recycled map[market.Asset]market.Size
}

func New(cfg Config, opts ...Option) (*FlexTrader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("trader: %w", err)
	}
	t := &FlexTrader{
		cfg:      cfg,
		log:      slog.Default(),
		exits:    make(map[market.Asset]int),
		recycled: make(map[market.Asset]market.Size),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *FlexTrader) Config() Config { return t.cfg }

// batch is the running state of one CreateOrders call.
type batch struct {
	snap           broker.Snapshot
	buyingPower    float64
	amountPerOrder float64
	ordered        map[market.Asset]bool
	orders         []broker.Order
}

func (t *FlexTrader) CreateOrders(signals []strategy.Signal, snap broker.Snapshot, evt *market.Event) ([]broker.Order, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.forgetFlat(snap)
	if len(signals) == 0 {
		return nil, nil
	}

	equity, err := snap.Equity()
	if err != nil {
		return nil, fmt.Errorf("trader: equity: %w", err)
	}
	bp, err := snap.Convert(snap.BuyingPower)
	if err != nil {
		return nil, fmt.Errorf("trader: buying power: %w", err)
	}

	b := &batch{
		snap:           snap,
		buyingPower:    bp.Float64() - equity.Float64()*t.cfg.SafetyMargin,
		amountPerOrder: equity.Float64() * t.cfg.OrderPercentage,
		ordered:        make(map[market.Asset]bool),
	}

	for _, s := range signals {
		price, ok := evt.Price(s.Asset, t.cfg.PriceKind)
		if !ok {
			t.log.Debug("skip signal: no price", "asset", s.Asset.Symbol())
			continue
		}
		if t.cfg.OneOrderOnly && (snap.HasOpenOrder(s.Asset) || b.ordered[s.Asset]) {
			t.log.Debug("skip signal: open order", "asset", s.Asset.Symbol())
			continue
		}

		pos := snap.PositionSize(s.Asset)
		if s.IsExit() && s.IsSell() && pos.IsPositive() {
			if err := t.exit(b, s, pos, price); err != nil {
				return b.orders, err
			}
			continue
		}
		if s.IsEntry() {
			if err := t.entry(b, s, pos, price); err != nil {
				return b.orders, err
			}
		}
	}
	return b.orders, nil
}

// forgetFlat resets the exit state of assets that no longer have a position.
func (t *FlexTrader) forgetFlat(snap broker.Snapshot) {
	for a := range t.exits {
		if _, ok := snap.Position(a); !ok {
			delete(t.exits, a)
		}
	}
	for a := range t.recycled {
		if _, ok := snap.Position(a); !ok {
			delete(t.recycled, a)
		}
	}
}

func (t *FlexTrader) exitSize(a market.Asset, pos market.Size) market.Size {
	if t.cfg.ExitStrategy == ExitFull {
		return pos
	}
	// partial exits are whole units even when entries may be fractional
	frac := math.Min(1, t.cfg.ExitFraction*float64(1+t.exits[a]))
	qty := pos.Mul(frac).Truncate(0)
	if qty.Less(market.SizeOf(1)) {
		qty = market.SizeOf(1)
	}
	return market.MinSize(qty, pos)
}

func (t *FlexTrader) exit(b *batch, s strategy.Signal, pos market.Size, price float64) error {
	qty := t.exitSize(s.Asset, pos)
	left := pos.Sub(qty)

	intent := strategy.IntentExitPartial
	if left.IsZero() {
		intent = strategy.IntentExitFull
	}

	if t.cfg.ExitStrategy == ExitRecycle {
		if mark, ok := t.recycled[s.Asset]; !ok || left.Greater(mark) {
			t.recycled[s.Asset] = left
		}
		released, err := b.snap.Convert(s.Asset.Value(qty, price))
		if err != nil {
			return fmt.Errorf("trader: %w", err)
		}
		b.buyingPower += released.Float64()
	}

	t.exits[s.Asset]++
	b.add(t.order(s.Asset, qty.Neg(), price, intent))
	t.log.Debug("exit", "asset", s.Asset.Symbol(), "size", qty.String(), "intent", intent.String())
	return nil
}

func (t *FlexTrader) entry(b *batch, s strategy.Signal, pos market.Size, price float64) error {
	dir := s.Direction()
	if dir == 0 {
		return nil
	}
	if !pos.IsZero() && pos.Sign() != dir {
		t.log.Debug("skip entry: opposite position", "asset", s.Asset.Symbol())
		return nil
	}
	if dir < 0 && !t.cfg.Shorting {
		t.log.Debug("skip entry: shorting disabled", "asset", s.Asset.Symbol())
		return nil
	}
	if price < t.cfg.MinPrice {
		t.log.Debug("skip entry: below min price", "asset", s.Asset.Symbol(), "price", price)
		return nil
	}

	intent := strategy.IntentEntry
	if !pos.IsZero() {
		intent = strategy.IntentScaleIn
	}
	mark, recycled := t.recycled[s.Asset]
	if recycled {
		intent = strategy.IntentReentry
		if t.cfg.AllowScaleInAfterRecycle && !pos.Abs().Less(mark) {
			t.log.Debug("skip entry: recycled position not reduced", "asset", s.Asset.Symbol(),
				"size", pos.String(), "mark", mark.String())
			return nil
		}
	}

	unit, err := b.snap.Convert(s.Asset.Value(market.SizeOf(1), price))
	if err != nil {
		return fmt.Errorf("trader: %w", err)
	}
	if unit.Float64() <= 0 {
		return nil
	}

	size := market.NewSize(b.amountPerOrder / unit.Float64()).Truncate(t.cfg.Fractions)
	if !size.IsPositive() {
		t.log.Debug("skip entry: size rounds to zero", "asset", s.Asset.Symbol())
		return nil
	}
	notional := size.Float64() * unit.Float64()
	if notional > b.buyingPower {
		t.log.Debug("skip entry: insufficient buying power", "asset", s.Asset.Symbol(),
			"notional", notional, "buying_power", b.buyingPower)
		return nil
	}
	if dir < 0 {
		size = size.Neg()
	}

	b.buyingPower -= notional
	if recycled {
		delete(t.recycled, s.Asset)
	}
	b.add(t.order(s.Asset, size, price, intent))
	t.log.Debug("entry", "asset", s.Asset.Symbol(), "size", size.String(), "intent", intent.String())
	return nil
}

func (t *FlexTrader) order(a market.Asset, size market.Size, price float64, intent strategy.SignalIntent) broker.Order {
	o := broker.NewOrder(a, size, price)
	o.TIF = t.cfg.TIF
	o.Tag = intent.String()
	return o
}

func (b *batch) add(o broker.Order) {
	b.ordered[o.Asset] = true
	b.orders = append(b.orders, o)
}
