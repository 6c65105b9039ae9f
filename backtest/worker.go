// Package backtest runs the event loop that ties a feed, a strategy, a
// trader, a broker and a journal together.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/feed"
	"github.com/rustyeddy/tradecore/journal"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/strategy"
	"github.com/rustyeddy/tradecore/trader"
)

// DefaultCapacity is the channel capacity unless WithCapacity is given.
const DefaultCapacity = 64

var (
	ErrAlreadyStarted = errors.New("worker already started")
	// ErrPanic wraps a panic recovered inside one event cycle.
	ErrPanic = errors.New("panic in event cycle")
)

type State int32

const (
	Starting State = iota
	Running
	Draining
	Finalizing
	Done
)

var stateNames = [...]string{"starting", "running", "draining", "finalizing", "done"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// Stats counts what the loop has processed so far.
type Stats struct {
	Events     uint64
	Heartbeats uint64
	Failures   uint64
	Dropped    uint64
}

type Option func(*Worker)

func WithTrader(t trader.Trader) Option {
	return func(w *Worker) { w.trader = t }
}

func WithJournal(j journal.Journal) Option {
	return func(w *Worker) { w.journal = j }
}

// WithTimeframe limits the run to tf instead of the feed's own timeframe.
func WithTimeframe(tf market.Timeframe) Option {
	return func(w *Worker) { w.tf = &tf }
}

func WithCapacity(n int) Option {
	return func(w *Worker) { w.capacity = n }
}

func WithOverflow(p feed.OverflowPolicy) Option {
	return func(w *Worker) { w.overflow = p }
}

// WithTimeout sets how long a channel read waits before the worker gets a
// heartbeat. Zero waits for the next event indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(w *Worker) { w.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.log = l }
}

// Worker runs one session. It is single use.
type Worker struct {
	feed     feed.Feed
	strategy strategy.Strategy
	broker   broker.Broker
	trader   trader.Trader
	journal  journal.Journal

	tf       *market.Timeframe
	capacity int
	overflow feed.OverflowPolicy
	timeout  time.Duration
	log      *slog.Logger

	state      atomic.Int32
	events     atomic.Uint64
	heartbeats atomic.Uint64
	failures   atomic.Uint64
	dropped    atomic.Uint64
}

func NewWorker(f feed.Feed, s strategy.Strategy, b broker.Broker, opts ...Option) (*Worker, error) {
	if f == nil {
		return nil, errors.New("backtest: feed is required")
	}
	if s == nil {
		return nil, errors.New("backtest: strategy is required")
	}
	if b == nil {
		return nil, errors.New("backtest: broker is required")
	}

	w := &Worker{
		feed:     f,
		strategy: s,
		broker:   b,
		journal:  journal.Noop{},
		capacity: DefaultCapacity,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.capacity < 1 {
		return nil, fmt.Errorf("backtest: capacity must be positive, got %d", w.capacity)
	}
	if w.timeout < 0 {
		return nil, fmt.Errorf("backtest: negative timeout %s", w.timeout)
	}
	if w.trader == nil {
		t, err := trader.New(trader.DefaultConfig(), trader.WithLogger(w.log))
		if err != nil {
			return nil, err
		}
		w.trader = t
	}
	if w.journal == nil {
		w.journal = journal.Noop{}
	}
	return w, nil
}

func (w *Worker) State() State { return State(w.state.Load()) }

func (w *Worker) Stats() Stats {
	return Stats{
		Events:     w.events.Load(),
		Heartbeats: w.heartbeats.Load(),
		Failures:   w.failures.Load(),
		Dropped:    w.dropped.Load(),
	}
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
	w.log.Debug("worker state", "state", s.String())
}

// Run plays the feed through the loop until the channel closes or ctx is
// cancelled, then returns the final account snapshot. Cancellation is not
// an error. An error wrapping market.ErrInvariant stops the loop and is
// returned together with the final snapshot; other per-event failures are
// logged and the event is skipped.
func (w *Worker) Run(ctx context.Context) (broker.Snapshot, error) {
	if !w.state.CompareAndSwap(int32(Starting), int32(Running)) {
		return broker.Snapshot{}, ErrAlreadyStarted
	}

	tf := w.feed.Timeframe()
	if w.tf != nil {
		tf = *w.tf
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := feed.NewChannel(tf, w.capacity, w.overflow)
	w.log.Info("run started", "timeframe", tf.String(), "capacity", w.capacity, "overflow", w.overflow.String())

	var g errgroup.Group
	g.Go(func() error {
		defer ch.Close()
		err := w.feed.Play(ctx, ch)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("feed: %w", err)
		}
		return nil
	})

	err := w.loop(ctx, ch)

	w.setState(Draining)
	cancel()
	ch.Close()
	if ferr := g.Wait(); ferr != nil {
		w.log.Error("feed failed", "err", ferr)
	}
	w.dropped.Store(ch.Dropped())

	w.setState(Finalizing)
	snap, serr := w.broker.Sync(nil)
	if serr != nil {
		err = errors.Join(err, fmt.Errorf("final sync: %w", serr))
	}
	w.setState(Done)

	st := w.Stats()
	w.log.Info("run finished", "events", st.Events, "heartbeats", st.Heartbeats,
		"failures", st.Failures, "dropped", st.Dropped, "err", err)
	return snap, err
}

func (w *Worker) loop(ctx context.Context, ch *feed.Channel) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		evt, err := ch.Receive(ctx, w.timeout)
		if err != nil {
			if errors.Is(err, feed.ErrChannelClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if evt.IsEmpty() {
			w.heartbeats.Add(1)
		} else {
			w.events.Add(1)
		}

		if err := w.cycle(evt); err != nil {
			if errors.Is(err, market.ErrInvariant) {
				w.log.Error("invariant violated", "time", evt.Time, "err", err)
				return err
			}
			w.failures.Add(1)
			w.log.Error("event skipped", "time", evt.Time, "err", err)
		}
	}
}

// cycle runs strategy, trader, broker and journal for one event.
func (w *Worker) cycle(evt *market.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	signals, err := w.strategy.CreateSignals(evt)
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	pre, err := w.broker.Sync(nil)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	orders, err := w.trader.CreateOrders(signals, pre, evt)
	if err != nil {
		return fmt.Errorf("trader: %w", err)
	}
	if len(orders) > 0 {
		if err := w.broker.PlaceOrders(orders...); err != nil {
			return fmt.Errorf("broker: %w", err)
		}
	}

	post, err := w.broker.Sync(evt)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}

	if err := w.journal.Track(evt, post, signals, orders); err != nil {
		w.log.Error("journal", "time", evt.Time, "err", err)
	}
	return nil
}

// Run builds a worker and runs it.
func Run(ctx context.Context, f feed.Feed, s strategy.Strategy, b broker.Broker, opts ...Option) (broker.Snapshot, error) {
	w, err := NewWorker(f, s, b, opts...)
	if err != nil {
		return broker.Snapshot{}, err
	}
	return w.Run(ctx)
}
