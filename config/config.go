package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/feed"
	"github.com/rustyeddy/tradecore/journal"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/strategy"
	"github.com/rustyeddy/tradecore/trader"
)

// EnvPrefix prefixes every environment override, e.g. TRADECORE_ACCOUNT_DEPOSIT.
const EnvPrefix = "TRADECORE"

// Config represents a complete run configuration
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Trader   TraderConfig   `json:"trader" yaml:"trader"`
	Run      RunConfig      `json:"run" yaml:"run"`
	Feed     FeedConfig     `json:"feed" yaml:"feed"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

// AccountConfig seeds the simulated account
type AccountConfig struct {
	Currency string  `json:"currency" yaml:"currency" split_words:"true"`
	Deposit  float64 `json:"deposit" yaml:"deposit" split_words:"true"`
	// Minimum cash kept out of buying power.
	Minimum float64 `json:"minimum" yaml:"minimum" split_words:"true"`
}

// TraderConfig mirrors trader.Config with names instead of enums
type TraderConfig struct {
	OrderPercentage          float64 `json:"order_percentage" yaml:"order_percentage" split_words:"true"`
	Shorting                 bool    `json:"shorting" yaml:"shorting" split_words:"true"`
	Fractions                int32   `json:"fractions" yaml:"fractions" split_words:"true"`
	OneOrderOnly             bool    `json:"one_order_only" yaml:"one_order_only" split_words:"true"`
	SafetyMargin             float64 `json:"safety_margin" yaml:"safety_margin" split_words:"true"`
	MinPrice                 float64 `json:"min_price" yaml:"min_price" split_words:"true"`
	ExitStrategy             string  `json:"exit_strategy" yaml:"exit_strategy" split_words:"true"`
	ExitFraction             float64 `json:"exit_fraction" yaml:"exit_fraction" split_words:"true"`
	AllowScaleInAfterRecycle bool    `json:"allow_scale_in_after_recycle" yaml:"allow_scale_in_after_recycle" split_words:"true"`
	PriceKind                string  `json:"price_kind" yaml:"price_kind" split_words:"true"`
	TIF                      string  `json:"tif" yaml:"tif" split_words:"true"`
}

// RunConfig controls the worker loop
type RunConfig struct {
	Name string `json:"name" yaml:"name" split_words:"true"`
	// Start and End limit the run; empty means the feed's own bounds.
	Start    string `json:"start,omitempty" yaml:"start,omitempty" split_words:"true"`
	End      string `json:"end,omitempty" yaml:"end,omitempty" split_words:"true"`
	Capacity int    `json:"capacity" yaml:"capacity" split_words:"true"`
	Overflow string `json:"overflow" yaml:"overflow" split_words:"true"`
	// Timeout between heartbeats, e.g. "5s". Empty waits indefinitely.
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty" split_words:"true"`
}

// FeedConfig selects the event source: "csv" or "random"
type FeedConfig struct {
	Type     string `json:"type" yaml:"type" split_words:"true"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty" split_words:"true"`
	Currency string `json:"currency,omitempty" yaml:"currency,omitempty" split_words:"true"`
	// Span of one bar, e.g. "24h".
	Span string `json:"span,omitempty" yaml:"span,omitempty" split_words:"true"`

	// random walk
	Assets     []string `json:"assets,omitempty" yaml:"assets,omitempty" split_words:"true"`
	Start      string   `json:"start,omitempty" yaml:"start,omitempty" split_words:"true"`
	Step       string   `json:"step,omitempty" yaml:"step,omitempty" split_words:"true"`
	Bars       int      `json:"bars,omitempty" yaml:"bars,omitempty" split_words:"true"`
	StartPrice float64  `json:"start_price,omitempty" yaml:"start_price,omitempty" split_words:"true"`
	Volatility float64  `json:"volatility,omitempty" yaml:"volatility,omitempty" split_words:"true"`
	Seed       uint64   `json:"seed,omitempty" yaml:"seed,omitempty" split_words:"true"`
}

// StrategyConfig selects the strategy: "noop", "script" or "random"
type StrategyConfig struct {
	Type        string  `json:"type" yaml:"type" split_words:"true"`
	Script      string  `json:"script,omitempty" yaml:"script,omitempty" split_words:"true"`
	Probability float64 `json:"probability,omitempty" yaml:"probability,omitempty" split_words:"true"`
	Seed        uint64  `json:"seed,omitempty" yaml:"seed,omitempty" split_words:"true"`
	Conflicts   string  `json:"conflicts,omitempty" yaml:"conflicts,omitempty" split_words:"true"`
}

// JournalConfig enables journals; every configured sink is written
type JournalConfig struct {
	EquityFile string         `json:"equity_file,omitempty" yaml:"equity_file,omitempty" split_words:"true"`
	FillsFile  string         `json:"fills_file,omitempty" yaml:"fills_file,omitempty" split_words:"true"`
	DBPath     string         `json:"db_path,omitempty" yaml:"db_path,omitempty" split_words:"true"`
	Postgres   PostgresConfig `json:"postgres" yaml:"postgres"`
}

type PostgresConfig struct {
	Enabled bool                   `json:"enabled" yaml:"enabled" split_words:"true"`
	Option  journal.PostgresOption `json:"option" yaml:"option"`
}

// MetricsConfig exposes prometheus metrics when Addr is set
type MetricsConfig struct {
	Addr      string `json:"addr,omitempty" yaml:"addr,omitempty" split_words:"true"`
	Namespace string `json:"namespace" yaml:"namespace" split_words:"true"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	tc := trader.DefaultConfig()
	return &Config{
		Account: AccountConfig{
			Currency: "USD",
			Deposit:  100_000,
		},
		Trader: TraderConfig{
			OrderPercentage: tc.OrderPercentage,
			Fractions:       tc.Fractions,
			OneOrderOnly:    tc.OneOrderOnly,
			SafetyMargin:    tc.SafetyMargin,
			ExitStrategy:    tc.ExitStrategy.String(),
			ExitFraction:    tc.ExitFraction,
			PriceKind:       tc.PriceKind.String(),
			TIF:             tc.TIF.String(),
		},
		Run: RunConfig{
			Name:     "backtest",
			Capacity: 64,
			Overflow: feed.Suspend.String(),
		},
		Feed: FeedConfig{
			Type:       "random",
			Currency:   "USD",
			Assets:     []string{"AAPL", "MSFT"},
			Start:      "2024-01-02",
			Step:       "24h",
			Bars:       250,
			StartPrice: 100,
			Volatility: 0.02,
			Seed:       1,
		},
		Strategy: StrategyConfig{
			Type:        "random",
			Probability: 0.1,
			Seed:        1,
		},
		Metrics: MetricsConfig{
			Namespace: "tradecore",
		},
	}
}

// LoadFromFile loads configuration from a file (YAML or JSON) on top of the
// defaults and validates it.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.read(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load builds the configuration from the defaults, the optional file, an
// optional .env file and TRADECORE_* environment variables, in that order.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := cfg.read(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) read(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, c); err != nil {
		if jerr := json.Unmarshal(data, c); jerr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}
	return nil
}

// ApplyEnv overrides fields from TRADECORE_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("config env: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid and reports every problem
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Account.Currency == "" {
		add("account.currency is required")
	}
	if c.Account.Deposit <= 0 {
		add("account.deposit must be positive")
	}
	if c.Account.Minimum < 0 {
		add("account.minimum must not be negative")
	}

	if tc, err := c.TraderConfig(); err != nil {
		errs = append(errs, err)
	} else if err := tc.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Run.Capacity < 1 {
		add("run.capacity must be positive")
	}
	if _, err := c.Overflow(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Timeout(); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := c.Timeframe(); err != nil {
		errs = append(errs, err)
	}

	switch c.Feed.Type {
	case "csv":
		if c.Feed.Path == "" {
			add("feed.path is required for csv feeds")
		}
		if _, err := parseDuration("feed.span", c.Feed.Span); err != nil {
			errs = append(errs, err)
		}
	case "random":
		if len(c.Feed.Assets) == 0 {
			add("feed.assets is required for random feeds")
		}
		if c.Feed.Bars <= 0 {
			add("feed.bars must be positive")
		}
		if c.Feed.StartPrice <= 0 {
			add("feed.start_price must be positive")
		}
		if _, err := market.ParseTime(c.Feed.Start); err != nil {
			add("feed.start: %v", err)
		}
		if d, err := parseDuration("feed.step", c.Feed.Step); err != nil {
			errs = append(errs, err)
		} else if d <= 0 {
			add("feed.step must be positive")
		}
	default:
		add("feed.type must be 'csv' or 'random', got %q", c.Feed.Type)
	}

	switch c.Strategy.Type {
	case "noop":
	case "script":
		if c.Strategy.Script == "" {
			add("strategy.script is required for script strategies")
		}
	case "random":
		if c.Strategy.Probability < 0 || c.Strategy.Probability > 1 {
			add("strategy.probability must be between 0 and 1")
		}
	default:
		add("strategy.type must be 'noop', 'script' or 'random', got %q", c.Strategy.Type)
	}
	if _, err := strategy.ParseConflictPolicy(c.Strategy.Conflicts); err != nil {
		errs = append(errs, err)
	}

	if (c.Journal.EquityFile == "") != (c.Journal.FillsFile == "") {
		add("journal equity_file and fills_file must be set together")
	}

	return errors.Join(errs...)
}

// Currency is the account's base currency.
func (c *Config) Currency() market.Currency { return market.CurrencyOf(c.Account.Currency) }

func (c *Config) Deposit() market.Amount {
	return market.NewAmount(c.Currency(), c.Account.Deposit)
}

func (c *Config) TraderConfig() (trader.Config, error) {
	t := c.Trader
	exit, err := trader.ParseExitStrategy(t.ExitStrategy)
	if err != nil {
		return trader.Config{}, fmt.Errorf("trader.exit_strategy: %w", err)
	}
	kind, ok := market.ParsePriceKind(t.PriceKind)
	if !ok {
		return trader.Config{}, fmt.Errorf("trader.price_kind: unknown price kind %q", t.PriceKind)
	}
	tif, err := broker.ParseTIF(t.TIF)
	if err != nil {
		return trader.Config{}, fmt.Errorf("trader.tif: %w", err)
	}
	return trader.Config{
		OrderPercentage:          t.OrderPercentage,
		Shorting:                 t.Shorting,
		Fractions:                t.Fractions,
		OneOrderOnly:             t.OneOrderOnly,
		SafetyMargin:             t.SafetyMargin,
		MinPrice:                 t.MinPrice,
		ExitStrategy:             exit,
		ExitFraction:             t.ExitFraction,
		AllowScaleInAfterRecycle: t.AllowScaleInAfterRecycle,
		PriceKind:                kind,
		TIF:                      tif,
	}, nil
}

func (c *Config) Overflow() (feed.OverflowPolicy, error) {
	p, err := feed.ParseOverflowPolicy(c.Run.Overflow)
	if err != nil {
		return feed.Suspend, fmt.Errorf("run.overflow: %w", err)
	}
	return p, nil
}

func (c *Config) Timeout() (time.Duration, error) {
	d, err := parseDuration("run.timeout", c.Run.Timeout)
	if err == nil && d < 0 {
		err = fmt.Errorf("run.timeout must not be negative")
	}
	return d, err
}

// Timeframe returns the configured run limits; ok is false when neither
// bound is set.
func (c *Config) Timeframe() (tf market.Timeframe, ok bool, err error) {
	if c.Run.Start == "" && c.Run.End == "" {
		return market.Infinite, false, nil
	}
	tf, err = market.ParseTimeframe(c.Run.Start, c.Run.End)
	if err != nil {
		return market.Timeframe{}, false, fmt.Errorf("run timeframe: %w", err)
	}
	return tf, true, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}
