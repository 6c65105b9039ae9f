package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradecore/backtest"
	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/feed"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/strategy"
	"github.com/rustyeddy/tradecore/trader"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	tc, err := cfg.TraderConfig()
	require.NoError(t, err)
	assert.Equal(t, trader.DefaultConfig(), tc)
	assert.Equal(t, market.NewAmount(market.USD, 100_000), cfg.Deposit())
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"run.yaml", "run.yml", "run.json"} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), name)
			cfg := Default()
			cfg.Trader.ExitStrategy = "layered"
			cfg.Trader.TIF = "GTC"
			cfg.Run.Timeout = "2s"
			require.NoError(t, cfg.SaveToFile(path))

			got, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  deposit: 5000\ntrader:\n  exit_strategy: recycle\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, cfg.Account.Deposit)
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.Equal(t, 64, cfg.Run.Capacity)

	tc, err := cfg.TraderConfig()
	require.NoError(t, err)
	assert.Equal(t, trader.ExitRecycle, tc.ExitStrategy)
}

func TestLoadFromFileErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("account: [1, 2"), 0o644))
	_, err = LoadFromFile(bad)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"account":{"deposit":-1}}`), 0o644))
	_, err = LoadFromFile(invalid)
	assert.ErrorContains(t, err, "account.deposit")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"currency", func(c *Config) { c.Account.Currency = "" }, "account.currency"},
		{"minimum", func(c *Config) { c.Account.Minimum = -1 }, "account.minimum"},
		{"order percentage", func(c *Config) { c.Trader.OrderPercentage = 2 }, "order percentage"},
		{"exit strategy", func(c *Config) { c.Trader.ExitStrategy = "panic" }, "trader.exit_strategy"},
		{"price kind", func(c *Config) { c.Trader.PriceKind = "last" }, "trader.price_kind"},
		{"tif", func(c *Config) { c.Trader.TIF = "IOC" }, "trader.tif"},
		{"capacity", func(c *Config) { c.Run.Capacity = 0 }, "run.capacity"},
		{"overflow", func(c *Config) { c.Run.Overflow = "spill" }, "run.overflow"},
		{"timeout", func(c *Config) { c.Run.Timeout = "soon" }, "run.timeout"},
		{"negative timeout", func(c *Config) { c.Run.Timeout = "-1s" }, "run.timeout"},
		{"timeframe", func(c *Config) { c.Run.Start = "yesterday" }, "run timeframe"},
		{"feed type", func(c *Config) { c.Feed.Type = "kafka" }, "feed.type"},
		{"csv path", func(c *Config) { c.Feed.Type = "csv" }, "feed.path"},
		{"random assets", func(c *Config) { c.Feed.Assets = nil }, "feed.assets"},
		{"random step", func(c *Config) { c.Feed.Step = "0s" }, "feed.step"},
		{"strategy type", func(c *Config) { c.Strategy.Type = "ml" }, "strategy.type"},
		{"script", func(c *Config) { c.Strategy.Type = "script" }, "strategy.script"},
		{"probability", func(c *Config) { c.Strategy.Probability = 1.5 }, "strategy.probability"},
		{"conflicts", func(c *Config) { c.Strategy.Conflicts = "newest" }, "conflict policy"},
		{"journal files", func(c *Config) { c.Journal.EquityFile = "eq.csv" }, "fills_file"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

// Environment tests cannot run in parallel.
func TestApplyEnv(t *testing.T) {
	t.Setenv("TRADECORE_ACCOUNT_DEPOSIT", "2500")
	t.Setenv("TRADECORE_TRADER_ORDER_PERCENTAGE", "0.25")
	t.Setenv("TRADECORE_TRADER_EXIT_STRATEGY", "layered")
	t.Setenv("TRADECORE_RUN_CAPACITY", "8")
	t.Setenv("TRADECORE_FEED_ASSETS", "IBM,Crypto;BTC-USDT;USDT")

	cfg := Default()
	cfg.Run.Name = "from-file"
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, 2500.0, cfg.Account.Deposit)
	assert.Equal(t, 0.25, cfg.Trader.OrderPercentage)
	assert.Equal(t, "layered", cfg.Trader.ExitStrategy)
	assert.Equal(t, 8, cfg.Run.Capacity)
	assert.Equal(t, []string{"IBM", "Crypto;BTC-USDT;USDT"}, cfg.Feed.Assets)
	assert.Equal(t, "from-file", cfg.Run.Name)
	assert.Equal(t, "USD", cfg.Account.Currency)

	t.Setenv("TRADECORE_RUN_CAPACITY", "lots")
	assert.Error(t, cfg.ApplyEnv())
}

func TestLoadAppliesEnvOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run:\n  name: file\n  capacity: 16\n"), 0o644))
	t.Setenv("TRADECORE_RUN_CAPACITY", "32")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Run.Name)
	assert.Equal(t, 32, cfg.Run.Capacity)

	t.Setenv("TRADECORE_RUN_CAPACITY", "0")
	_, err = Load(path)
	assert.ErrorContains(t, err, "run.capacity")
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	cfg := Default()
	tf, ok, err := cfg.Timeframe()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, tf.IsInfinite())

	cfg.Run.Start = "2024-01-01"
	cfg.Run.End = "2024-02-01"
	tf, ok, err = cfg.Timeframe()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, tf.Contains(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, tf.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))

	cfg.Run.Overflow = "drop-oldest"
	p, err := cfg.Overflow()
	require.NoError(t, err)
	assert.Equal(t, feed.DropOldest, p)

	cfg.Run.Timeout = "250ms"
	d, err := cfg.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	opts, err := cfg.WorkerOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 4)
}

func TestBuildAndRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := "time,asset,rating\n2024-01-03,AAPL,1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "signals.csv"), []byte(script), 0o644))
	bars := "time,symbol,open,high,low,close,volume\n" +
		"2024-01-02,AAPL,100,101,99,100,1000\n" +
		"2024-01-03,AAPL,100,106,99,105,1000\n" +
		"2024-01-04,AAPL,105,106,94,95,1000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bars.csv"), []byte(bars), 0o644))

	cfg := Default()
	cfg.Feed = FeedConfig{Type: "csv", Path: "bars.csv", Span: "24h"}
	cfg.Strategy = StrategyConfig{Type: "script", Script: "signals.csv", Conflicts: "keep-first"}
	cfg.Trader.OrderPercentage = 0.1
	cfg.Trader.PriceKind = "close"
	cfg.Journal = JournalConfig{EquityFile: "equity.csv", FillsFile: "fills.csv", DBPath: "runs.db"}
	require.NoError(t, cfg.Validate())

	f, err := cfg.NewFeed(dir)
	require.NoError(t, err)
	s, err := cfg.NewStrategy(dir)
	require.NoError(t, err)
	tr, err := cfg.NewTrader(nil)
	require.NoError(t, err)
	b, err := cfg.NewBroker(nil)
	require.NoError(t, err)
	j, mem, err := cfg.NewJournal(dir, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.Len(t, j, 4)

	opts, err := cfg.WorkerOptions()
	require.NoError(t, err)
	opts = append(opts, backtest.WithTrader(tr), backtest.WithJournal(j))

	snap, err := backtest.Run(context.Background(), f, s, b, opts...)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	aapl := market.NewStock("AAPL", market.USD)
	assert.True(t, snap.PositionSize(aapl).Equal(market.SizeOf(95)))
	assert.Equal(t, 1, mem.Summary().Fills)
	assert.FileExists(t, filepath.Join(dir, "fills.csv"))
	assert.FileExists(t, filepath.Join(dir, "runs.db"))
}

func TestNewStrategyTypes(t *testing.T) {
	t.Parallel()

	cfg := Default()
	s, err := cfg.NewStrategy("")
	require.NoError(t, err)
	assert.IsType(t, &strategy.Random{}, s)

	cfg.Strategy.Type = "noop"
	s, err = cfg.NewStrategy("")
	require.NoError(t, err)
	assert.Equal(t, strategy.Noop{}, s)

	cfg.Strategy.Type = "script"
	cfg.Strategy.Script = filepath.Join(t.TempDir(), "missing.csv")
	_, err = cfg.NewStrategy("")
	assert.Error(t, err)
}

func TestNewFeedRandom(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Feed.Assets = []string{"IBM@XNYS", "Forex;EUR/USD;USD"}
	f, err := cfg.NewFeed("")
	require.NoError(t, err)

	rw, ok := f.(*feed.RandomWalkFeed)
	require.True(t, ok)
	require.Len(t, rw.Assets, 2)
	assert.Equal(t, "IBM@XNYS", rw.Assets[0].Symbol())
	assert.Equal(t, 24*time.Hour, rw.Step)
	assert.Equal(t, 250, rw.Bars)
}

func TestNewBrokerUsesAccount(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Account.Deposit = 1000
	cfg.Account.Minimum = 100
	b, err := cfg.NewBroker(nil)
	require.NoError(t, err)

	var _ broker.Broker = b
	snap, err := b.Sync(nil)
	require.NoError(t, err)
	assert.Equal(t, 900.0, snap.BuyingPower.Float64())
}
