package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/feed"
	"github.com/rustyeddy/tradecore/journal"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/sim"
	"github.com/rustyeddy/tradecore/strategy"
	"github.com/rustyeddy/tradecore/trader"
)

var (
	aapl = market.NewStock("AAPL", market.USD)
	t0   = time.Date(2024, 5, 6, 14, 30, 0, 0, time.UTC)
)

func historic(prices ...float64) *feed.HistoricFeed {
	f := feed.NewHistoricFeed()
	for i, p := range prices {
		f.Add(t0.Add(time.Duration(i)*time.Minute), market.NewTradePrice(aapl, p, 1))
	}
	return f
}

func newTrader(t *testing.T, pct float64) *trader.FlexTrader {
	t.Helper()
	cfg := trader.DefaultConfig()
	cfg.OrderPercentage = pct
	tr, err := trader.New(cfg)
	require.NoError(t, err)
	return tr
}

func newBroker() *sim.Engine {
	return sim.NewEngine(sim.WithDeposit(market.NewAmount(market.USD, 100_000)))
}

func TestWorkerEndToEnd(t *testing.T) {
	t.Parallel()

	f := historic(100, 105, 95)
	s := strategy.NewScripted().At(t0.Add(time.Minute), strategy.BuySignal(aapl))
	mem := journal.NewMemory()

	w, err := NewWorker(f, s, newBroker(), WithTrader(newTrader(t, 0.1)), WithJournal(mem))
	require.NoError(t, err)
	assert.Equal(t, Starting, w.State())

	snap, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Done, w.State())

	assert.True(t, snap.PositionSize(aapl).Equal(market.SizeOf(95)))
	eq, err := snap.Equity()
	require.NoError(t, err)
	assert.InDelta(t, 100_000-950, eq.Float64(), 1e-6)
	assert.InDelta(t, 100_000-95*105, snap.Cash.Get(market.USD).Float64(), 1e-6)

	require.Len(t, snap.Trades, 1)
	assert.Equal(t, 105.0, snap.Trades[0].Price)
	assert.Equal(t, strategy.IntentEntry.String(), snap.Trades[0].Tag)

	sum := mem.Summary()
	assert.Equal(t, 3, sum.Events)
	assert.Equal(t, 1, sum.Signals)
	assert.Equal(t, 1, sum.Orders)
	assert.Equal(t, 1, sum.Fills)

	st := w.Stats()
	assert.Equal(t, uint64(3), st.Events)
	assert.Zero(t, st.Failures)

	_, err = w.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestRunWithTimeframe(t *testing.T) {
	t.Parallel()

	mem := journal.NewMemory()
	tf := market.MustTimeframe(t0, t0.Add(time.Minute), true)
	_, err := Run(context.Background(), historic(100, 101, 102, 103), strategy.Noop{}, newBroker(),
		WithTimeframe(tf), WithJournal(mem))
	require.NoError(t, err)
	assert.Equal(t, 2, mem.Summary().Events)
}

func TestNewWorkerValidation(t *testing.T) {
	t.Parallel()

	f, s, b := historic(1), strategy.Noop{}, newBroker()

	tests := []struct {
		name string
		make func() (*Worker, error)
	}{
		{"no feed", func() (*Worker, error) { return NewWorker(nil, s, b) }},
		{"no strategy", func() (*Worker, error) { return NewWorker(f, nil, b) }},
		{"no broker", func() (*Worker, error) { return NewWorker(f, s, nil) }},
		{"zero capacity", func() (*Worker, error) { return NewWorker(f, s, b, WithCapacity(0)) }},
		{"negative timeout", func() (*Worker, error) { return NewWorker(f, s, b, WithTimeout(-time.Second)) }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.make()
			assert.Error(t, err)
		})
	}

	_, err := Run(context.Background(), nil, s, b)
	assert.Error(t, err)
}

// endless sends one event per minute until it is stopped.
type endless struct{}

func (endless) Timeframe() market.Timeframe { return market.Infinite }

func (endless) Play(ctx context.Context, ch *feed.Channel) error {
	for i := 0; ; i++ {
		evt := market.NewEvent(t0.Add(time.Duration(i)*time.Minute), market.NewTradePrice(aapl, 100, 1))
		if err := ch.Send(ctx, evt); err != nil {
			return err
		}
	}
}

func TestWorkerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen atomic.Int32
	s := strategy.Func(func(evt *market.Event) ([]strategy.Signal, error) {
		if seen.Add(1) == 3 {
			cancel()
		}
		return nil, nil
	})

	w, err := NewWorker(endless{}, s, newBroker(), WithCapacity(2))
	require.NoError(t, err)

	snap, err := w.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Done, w.State())
	assert.Equal(t, int32(3), seen.Load())
	assert.Equal(t, uint64(3), w.Stats().Events)
	assert.Equal(t, 100_000.0, snap.Cash.Get(market.USD).Float64())
}

// idle never sends; the worker only sees heartbeats.
type idle struct{}

func (idle) Timeframe() market.Timeframe { return market.Infinite }

func (idle) Play(ctx context.Context, _ *feed.Channel) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestWorkerHeartbeats(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var beats atomic.Int32
	s := strategy.Func(func(evt *market.Event) ([]strategy.Signal, error) {
		if evt.IsEmpty() && beats.Add(1) == 2 {
			cancel()
		}
		return nil, nil
	})
	mem := journal.NewMemory()

	_, err := Run(ctx, idle{}, s, newBroker(), WithTimeout(5*time.Millisecond), WithJournal(mem))
	require.NoError(t, err)
	assert.Equal(t, 2, mem.Summary().Heartbeats)
	assert.Zero(t, mem.Summary().Events)
}

func TestWorkerRecoversPanic(t *testing.T) {
	t.Parallel()

	var n atomic.Int32
	s := strategy.Func(func(evt *market.Event) ([]strategy.Signal, error) {
		switch n.Add(1) {
		case 1:
			panic("bad tick")
		case 2:
			return nil, errors.New("no data")
		}
		return []strategy.Signal{strategy.BuySignal(aapl)}, nil
	})
	mem := journal.NewMemory()

	w, err := NewWorker(historic(100, 101, 102), s, newBroker(), WithTrader(newTrader(t, 0.1)), WithJournal(mem))
	require.NoError(t, err)

	snap, err := w.Run(context.Background())
	require.NoError(t, err)

	st := w.Stats()
	assert.Equal(t, uint64(3), st.Events)
	assert.Equal(t, uint64(2), st.Failures)
	assert.Equal(t, 1, mem.Summary().Events)
	assert.True(t, snap.PositionSize(aapl).IsPositive())
}

// flaky wraps an engine and fails Sync for the n-th event.
type flaky struct {
	*sim.Engine
	failAt int
	err    error
	calls  int
}

func (f *flaky) Sync(evt *market.Event) (broker.Snapshot, error) {
	if evt != nil {
		f.calls++
		if f.calls == f.failAt {
			return broker.Snapshot{}, f.err
		}
	}
	return f.Engine.Sync(evt)
}

func TestWorkerBrokerErrors(t *testing.T) {
	t.Parallel()

	t.Run("invariant stops the run", func(t *testing.T) {
		t.Parallel()

		b := &flaky{Engine: newBroker(), failAt: 2, err: fmt.Errorf("broken book: %w", market.ErrInvariant)}
		w, err := NewWorker(historic(100, 101, 102, 103), strategy.Noop{}, b)
		require.NoError(t, err)

		snap, err := w.Run(context.Background())
		assert.ErrorIs(t, err, market.ErrInvariant)
		assert.Equal(t, 2, b.calls)
		assert.Equal(t, Done, w.State())
		assert.Equal(t, market.USD, snap.BaseCurrency)
	})

	t.Run("other errors skip the event", func(t *testing.T) {
		t.Parallel()

		b := &flaky{Engine: newBroker(), failAt: 1, err: errors.New("timeout")}
		w, err := NewWorker(historic(100, 101, 102), strategy.Noop{}, b)
		require.NoError(t, err)

		_, err = w.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, b.calls)
		assert.Equal(t, uint64(1), w.Stats().Failures)
	})
}

type brokenJournal struct{ calls atomic.Int32 }

func (j *brokenJournal) Track(*market.Event, broker.Snapshot, []strategy.Signal, []broker.Order) error {
	j.calls.Add(1)
	return errors.New("disk full")
}

func TestWorkerJournalErrorsDoNotStop(t *testing.T) {
	t.Parallel()

	j := &brokenJournal{}
	w, err := NewWorker(historic(100, 101), strategy.Noop{}, newBroker(), WithJournal(j))
	require.NoError(t, err)

	_, err = w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), j.calls.Load())
	assert.Zero(t, w.Stats().Failures)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "State(9)", State(9).String())
}
