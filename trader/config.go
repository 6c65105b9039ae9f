package trader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
)

// ExitStrategy decides how much of a long position an exit signal sells.
type ExitStrategy int

const (
	// ExitFull sells the whole position.
	ExitFull ExitStrategy = iota
	// ExitLayered sells a growing fraction on every consecutive exit.
	ExitLayered
	// ExitRecycle sells like ExitLayered and makes the released cash
	// available to later signals in the same batch.
	ExitRecycle
)

var exitNames = []string{"full", "layered", "recycle"}

func (e ExitStrategy) String() string {
	if e < 0 || int(e) >= len(exitNames) {
		return "unknown"
	}
	return exitNames[e]
}

func ParseExitStrategy(s string) (ExitStrategy, error) {
	if s == "" {
		return ExitFull, nil
	}
	for i, n := range exitNames {
		if strings.EqualFold(n, s) {
			return ExitStrategy(i), nil
		}
	}
	return ExitFull, fmt.Errorf("unknown exit strategy %q (supported: %s)", s, strings.Join(exitNames, ", "))
}

func (e ExitStrategy) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *ExitStrategy) UnmarshalText(b []byte) error {
	v, err := ParseExitStrategy(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

type Config struct {
	// OrderPercentage of equity allocated to each entry order.
	OrderPercentage float64
	// Shorting allows entries that open a short position.
	Shorting bool
	// Fractions is the number of decimals order sizes are rounded down to.
	Fractions int32
	// OneOrderOnly skips signals for assets that already have an open order.
	OneOrderOnly bool
	// SafetyMargin is the fraction of equity never used for new orders.
	SafetyMargin float64
	// MinPrice skips entries in assets priced below it.
	MinPrice float64

	ExitStrategy             ExitStrategy
	ExitFraction             float64
	AllowScaleInAfterRecycle bool

	PriceKind market.PriceKind
	TIF       broker.TIF
}

func DefaultConfig() Config {
	return Config{
		OrderPercentage: 0.01,
		OneOrderOnly:    true,
		SafetyMargin:    0.01,
		ExitStrategy:    ExitFull,
		ExitFraction:    0.5,
		PriceKind:       market.PriceDefault,
		TIF:             broker.DAY,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.OrderPercentage <= 0 || c.OrderPercentage > 1 {
		errs = append(errs, fmt.Errorf("order percentage must be in (0, 1], got %g", c.OrderPercentage))
	}
	if c.SafetyMargin < 0 || c.SafetyMargin >= 1 {
		errs = append(errs, fmt.Errorf("safety margin must be in [0, 1), got %g", c.SafetyMargin))
	}
	if c.Fractions < 0 {
		errs = append(errs, fmt.Errorf("fractions must not be negative, got %d", c.Fractions))
	}
	if c.MinPrice < 0 {
		errs = append(errs, fmt.Errorf("min price must not be negative, got %g", c.MinPrice))
	}
	if c.ExitStrategy != ExitFull && (c.ExitFraction <= 0 || c.ExitFraction > 1) {
		errs = append(errs, fmt.Errorf("exit fraction must be in (0, 1] for %s exits, got %g", c.ExitStrategy, c.ExitFraction))
	}
	if c.ExitStrategy < ExitFull || c.ExitStrategy > ExitRecycle {
		errs = append(errs, fmt.Errorf("unknown exit strategy %d", c.ExitStrategy))
	}
	return errors.Join(errs...)
}
