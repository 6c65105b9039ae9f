package market

import (
	"errors"
	"fmt"
)

// ErrInvariant is the root of every domain invariant violation. Errors that
// wrap it signal a logic bug upstream and are never retried.
var ErrInvariant = errors.New("invariant violation")

var (
	ErrCurrencyMismatch  = fmt.Errorf("%w: currency mismatch", ErrInvariant)
	ErrInsufficientFunds = fmt.Errorf("%w: insufficient funds", ErrInvariant)

	ErrNoConversion     = errors.New("no conversion rate")
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	ErrUnknownAsset     = errors.New("unknown asset type")
)
