package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
)

var (
	ErrNoAsset      = errors.New("order has no asset")
	ErrUnknownOrder = errors.New("unknown order id")
)

// DefaultDeposit seeds a new engine unless WithDeposit is given.
var DefaultDeposit = market.NewAmount(market.USD, 1_000_000)

// Engine is a simulated broker. Orders are queued by PlaceOrders and only
// take effect on the next Sync with an event, where they are matched against
// that event's prices.
type Engine struct {
	mu sync.Mutex

	acct    *broker.Account
	model   broker.AccountModel
	deposit market.Amount
	kind    market.PriceKind
	conv    market.Converter
	log     *slog.Logger

	pending []broker.Order
	entered map[int]time.Time
	nextID  int
}

type Option func(*Engine)

// WithDeposit sets the initial cash. The base currency follows it unless
// WithBaseCurrency is also given.
func WithDeposit(a market.Amount) Option {
	return func(e *Engine) { e.deposit = a }
}

func WithBaseCurrency(c market.Currency) Option {
	return func(e *Engine) { e.acct.BaseCurrency = c }
}

func WithAccountModel(m broker.AccountModel) Option {
	return func(e *Engine) { e.model = m }
}

// WithConverter sets the converter used for equity in the base currency.
func WithConverter(c market.Converter) Option {
	return func(e *Engine) { e.conv = c }
}

// WithPriceKind selects which price of an event orders are matched against.
func WithPriceKind(k market.PriceKind) Option {
	return func(e *Engine) { e.kind = k }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		acct:    broker.NewAccount(market.Currency{}, nil),
		model:   broker.CashAccount{},
		deposit: DefaultDeposit,
		kind:    market.PriceDefault,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	base := e.acct.BaseCurrency
	if base.Code == "" {
		base = e.deposit.Currency
	}
	e.acct = broker.NewAccount(base, e.conv)
	e.Reset()
	return e
}

// Reset clears the account and all queued orders and deposits the initial
// cash again. Order ids restart at 1.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.acct.Clear()
	e.acct.Cash.Deposit(e.deposit)
	e.pending = nil
	e.entered = make(map[int]time.Time)
	e.nextID = 0
	if err := e.model.UpdateAccount(e.acct); err != nil {
		e.log.Error("update account", "err", err)
	}
}

// PlaceOrders queues orders for the next Sync. The batch is rejected as a
// whole if any order is invalid.
func (e *Engine) PlaceOrders(orders ...broker.Order) error {
	for _, o := range orders {
		if o.Asset == nil {
			return fmt.Errorf("place order: %w", ErrNoAsset)
		}
		if o.ID == 0 && o.Size.IsZero() {
			return fmt.Errorf("place order %s: zero size: %w", o.Asset.Symbol(), broker.ErrMissingOrderID)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, orders...)
	return nil
}

// Sync processes queued orders against evt and returns the account snapshot.
// A nil event only returns the snapshot.
func (e *Engine) Sync(evt *market.Event) (broker.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if evt == nil {
		return e.acct.Snapshot(), nil
	}

	e.applyPendingLocked(evt.Time)
	e.expireLocked(evt.Time)
	err := e.executeLocked(evt)

	e.acct.UpdateMarketPrices(evt, e.kind)
	e.acct.LastUpdate = evt.Time
	if merr := e.model.UpdateAccount(e.acct); merr != nil {
		err = errors.Join(err, merr)
	}
	return e.acct.Snapshot(), err
}

func (e *Engine) applyPendingLocked(now time.Time) {
	for _, o := range e.pending {
		switch {
		case o.IsCancellation():
			if !e.acct.RemoveOrder(o.ID) {
				e.log.Debug("cancel: no open order", "id", o.ID, "err", ErrUnknownOrder)
				continue
			}
			delete(e.entered, o.ID)

		case o.IsModification():
			if !e.acct.ReplaceOrder(o) {
				e.log.Debug("modify: no open order", "id", o.ID, "err", ErrUnknownOrder)
			}

		default:
			e.nextID++
			o.ID = e.nextID
			o.Fill = market.ZeroSize
			e.acct.AddOrders(o)
			e.entered[o.ID] = now
		}
	}
	e.pending = nil
}

func (e *Engine) expireLocked(now time.Time) {
	var expired []int
	for _, o := range e.acct.OpenOrders {
		if o.TIF != broker.DAY {
			continue
		}
		start, ok := e.entered[o.ID]
		if !ok {
			continue
		}
		ex := o.Asset.Exchange()
		if ex.Date(now).After(ex.Date(start)) {
			expired = append(expired, o.ID)
		}
	}
	for _, id := range expired {
		e.acct.RemoveOrder(id)
		delete(e.entered, id)
		e.log.Debug("order expired", "id", id)
	}
}

func (e *Engine) executeLocked(evt *market.Event) error {
	var errs []error
	open := append([]broker.Order(nil), e.acct.OpenOrders...)
	for _, o := range open {
		price, ok := evt.Price(o.Asset, e.kind)
		if !ok || !o.IsExecutable(price) {
			continue
		}
		if err := e.fillLocked(o, price, evt.Time); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) fillLocked(o broker.Order, price float64, at time.Time) error {
	size := o.Remaining()
	notional := o.Asset.Value(size, price)

	if o.IsBuy() {
		if err := e.acct.Cash.Withdraw(notional); err != nil {
			return fmt.Errorf("fill order %d: %w", o.ID, err)
		}
	} else {
		e.acct.Cash.Deposit(notional.Neg())
	}

	pos, pnl := e.acct.Positions[o.Asset].Apply(size, price)
	e.acct.SetPosition(o.Asset, pos)
	e.acct.RemoveOrder(o.ID)
	delete(e.entered, o.ID)

	e.acct.AddTrade(broker.Trade{
		Time:    at,
		Asset:   o.Asset,
		Size:    size,
		Price:   price,
		OrderID: o.ID,
		Tag:     o.Tag,
		PnL:     market.NewAmount(o.Asset.Currency(), pnl),
	})
	e.log.Debug("order filled", "id", o.ID, "asset", o.Asset.Symbol(), "size", size.String(), "price", price)
	return nil
}
