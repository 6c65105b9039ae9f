package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustyeddy/tradecore/backtest"
	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/feed"
	"github.com/rustyeddy/tradecore/journal"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/sim"
	"github.com/rustyeddy/tradecore/strategy"
	"github.com/rustyeddy/tradecore/trader"
)

func (c *Config) feedCurrency() market.Currency {
	if c.Feed.Currency != "" {
		return market.CurrencyOf(c.Feed.Currency)
	}
	return c.Currency()
}

// NewFeed builds the configured feed. Relative paths are resolved against dir.
func (c *Config) NewFeed(dir string) (feed.Feed, error) {
	switch c.Feed.Type {
	case "csv":
		span, err := parseDuration("feed.span", c.Feed.Span)
		if err != nil {
			return nil, err
		}
		return feed.NewCSVFeed(resolve(dir, c.Feed.Path), feed.CSVOptions{
			Currency: c.feedCurrency(),
			Span:     span,
		})

	case "random":
		start, err := market.ParseTime(c.Feed.Start)
		if err != nil {
			return nil, fmt.Errorf("feed.start: %w", err)
		}
		step, err := parseDuration("feed.step", c.Feed.Step)
		if err != nil {
			return nil, err
		}
		assets := make([]market.Asset, 0, len(c.Feed.Assets))
		for _, s := range c.Feed.Assets {
			a, err := market.ParseAsset(s, c.feedCurrency())
			if err != nil {
				return nil, fmt.Errorf("feed.assets: %w", err)
			}
			assets = append(assets, a)
		}
		return &feed.RandomWalkFeed{
			Assets:     assets,
			Start:      start,
			Step:       step,
			Bars:       c.Feed.Bars,
			StartPrice: c.Feed.StartPrice,
			Volatility: c.Feed.Volatility,
			Seed:       c.Feed.Seed,
		}, nil
	}
	return nil, fmt.Errorf("unknown feed type %q", c.Feed.Type)
}

// NewStrategy builds the configured strategy, filtered through the conflict
// policy unless it keeps all signals.
func (c *Config) NewStrategy(dir string) (strategy.Strategy, error) {
	var s strategy.Strategy
	switch c.Strategy.Type {
	case "noop":
		s = strategy.Noop{}
	case "script":
		sc, err := strategy.LoadScript(resolve(dir, c.Strategy.Script), c.feedCurrency())
		if err != nil {
			return nil, err
		}
		s = sc
	case "random":
		s = strategy.NewRandom(c.Strategy.Probability, c.Strategy.Seed)
	default:
		return nil, fmt.Errorf("unknown strategy type %q", c.Strategy.Type)
	}

	policy, err := strategy.ParseConflictPolicy(c.Strategy.Conflicts)
	if err != nil {
		return nil, err
	}
	if policy == strategy.KeepAll {
		return s, nil
	}
	return strategy.Func(func(evt *market.Event) ([]strategy.Signal, error) {
		signals, err := s.CreateSignals(evt)
		return strategy.ResolveConflicts(signals, policy), err
	}), nil
}

func (c *Config) NewTrader(log *slog.Logger) (*trader.FlexTrader, error) {
	tc, err := c.TraderConfig()
	if err != nil {
		return nil, err
	}
	return trader.New(tc, trader.WithLogger(orDefault(log)))
}

// NewBroker builds a simulated broker matching orders on the trader's price
// kind.
func (c *Config) NewBroker(log *slog.Logger) (*sim.Engine, error) {
	tc, err := c.TraderConfig()
	if err != nil {
		return nil, err
	}
	return sim.NewEngine(
		sim.WithDeposit(c.Deposit()),
		sim.WithAccountModel(broker.CashAccount{Minimum: c.Account.Minimum}),
		sim.WithPriceKind(tc.PriceKind),
		sim.WithLogger(orDefault(log)),
	), nil
}

// NewJournal opens every configured journal. The returned Memory journal is
// always part of the result and backs the run summary. reg may be nil to
// skip metrics.
func (c *Config) NewJournal(dir string, reg prometheus.Registerer) (journal.Multi, *journal.Memory, error) {
	mem := journal.NewMemory()
	out := journal.Multi{mem}

	fail := func(err error) (journal.Multi, *journal.Memory, error) {
		return nil, nil, errors.Join(err, out.Close())
	}

	jc := c.Journal
	if jc.EquityFile != "" {
		j, err := journal.NewCSV(resolve(dir, jc.EquityFile), resolve(dir, jc.FillsFile))
		if err != nil {
			return fail(fmt.Errorf("csv journal: %w", err))
		}
		out = append(out, j)
	}
	if jc.DBPath != "" {
		j, err := journal.NewSQLite(resolve(dir, jc.DBPath), c.Run.Name)
		if err != nil {
			return fail(fmt.Errorf("sqlite journal: %w", err))
		}
		out = append(out, j)
	}
	if jc.Postgres.Enabled {
		j, err := journal.OpenPostgres(jc.Postgres.Option, c.Run.Name)
		if err != nil {
			return fail(err)
		}
		out = append(out, j)
	}
	if reg != nil {
		j, err := journal.NewPrometheus(reg, c.Metrics.Namespace)
		if err != nil {
			return fail(err)
		}
		out = append(out, j)
	}
	return out, mem, nil
}

// WorkerOptions translates the run section into worker options.
func (c *Config) WorkerOptions() ([]backtest.Option, error) {
	overflow, err := c.Overflow()
	if err != nil {
		return nil, err
	}
	timeout, err := c.Timeout()
	if err != nil {
		return nil, err
	}
	opts := []backtest.Option{
		backtest.WithCapacity(c.Run.Capacity),
		backtest.WithOverflow(overflow),
		backtest.WithTimeout(timeout),
	}
	tf, ok, err := c.Timeframe()
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, backtest.WithTimeframe(tf))
	}
	return opts, nil
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}

func resolve(dir, path string) string {
	if dir == "" || path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
