package strategy

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/tradecore/market"
)

// SignalType limits what a signal may be used for.
type SignalType int

const (
	// Both allows the signal to open or close positions.
	Both SignalType = iota
	Entry
	Exit
)

var signalTypeNames = []string{"BOTH", "ENTRY", "EXIT"}

func (t SignalType) String() string {
	if t < 0 || int(t) >= len(signalTypeNames) {
		return "UNKNOWN"
	}
	return signalTypeNames[t]
}

func ParseSignalType(s string) (SignalType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Both, nil
	}
	for i, n := range signalTypeNames {
		if strings.EqualFold(n, s) {
			return SignalType(i), nil
		}
	}
	return Both, fmt.Errorf("unknown signal type %q", s)
}

// SignalIntent records how a trader interpreted a signal.
type SignalIntent int

const (
	IntentNone SignalIntent = iota
	IntentEntry
	IntentScaleIn
	IntentExitFull
	IntentExitPartial
	IntentReentry
	IntentIgnored
)

var intentNames = []string{"", "ENTRY", "SCALE_IN", "EXIT_FULL", "EXIT_PARTIAL", "REENTRY", "IGNORED"}

func (i SignalIntent) String() string {
	if i < 0 || int(i) >= len(intentNames) {
		return "UNKNOWN"
	}
	return intentNames[i]
}

// Signal is a strategy's opinion about one asset. A positive rating is a
// buy, a negative rating a sell.
type Signal struct {
	Asset  market.Asset
	Rating float64
	Type   SignalType
	Intent SignalIntent
	Tag    string
}

func NewSignal(a market.Asset, rating float64, typ SignalType) Signal {
	return Signal{Asset: a, Rating: rating, Type: typ}
}

func BuySignal(a market.Asset) Signal  { return NewSignal(a, 1, Both) }
func SellSignal(a market.Asset) Signal { return NewSignal(a, -1, Both) }

func (s Signal) IsBuy() bool  { return s.Rating > 0 }
func (s Signal) IsSell() bool { return s.Rating < 0 }

func (s Signal) IsEntry() bool { return s.Type == Entry || s.Type == Both }
func (s Signal) IsExit() bool  { return s.Type == Exit || s.Type == Both }

// Direction is 1 for buy, -1 for sell and 0 for a neutral rating.
func (s Signal) Direction() int {
	switch {
	case s.Rating > 0:
		return 1
	case s.Rating < 0:
		return -1
	}
	return 0
}

// Conflicts reports whether o targets the same asset in a different direction.
func (s Signal) Conflicts(o Signal) bool {
	return s.Asset == o.Asset && s.Direction() != o.Direction()
}

func (s Signal) String() string {
	return fmt.Sprintf("%s %+.2f %s", s.Asset.Symbol(), s.Rating, s.Type)
}

// ConflictPolicy selects how ResolveConflicts treats several signals for the
// same asset.
type ConflictPolicy int

const (
	// KeepAll returns the signals unchanged.
	KeepAll ConflictPolicy = iota
	// KeepFirst keeps the first signal per asset.
	KeepFirst
	// KeepLast keeps the last signal per asset.
	KeepLast
	// DropConflicts removes every signal of an asset that has conflicting
	// signals and keeps the rest.
	DropConflicts
)

var conflictNames = []string{"keep-all", "keep-first", "keep-last", "drop-conflicts"}

func (p ConflictPolicy) String() string {
	if p < 0 || int(p) >= len(conflictNames) {
		return "unknown"
	}
	return conflictNames[p]
}

// ParseConflictPolicy accepts the String form; the empty string is KeepAll.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	if s == "" {
		return KeepAll, nil
	}
	for i, n := range conflictNames {
		if strings.EqualFold(n, s) {
			return ConflictPolicy(i), nil
		}
	}
	return KeepAll, fmt.Errorf("unknown conflict policy %q (supported: %s)", s, strings.Join(conflictNames, ", "))
}

// ResolveConflicts filters signals per policy, preserving input order.
func ResolveConflicts(signals []Signal, policy ConflictPolicy) []Signal {
	if policy == KeepAll || len(signals) < 2 {
		return signals
	}

	out := make([]Signal, 0, len(signals))
	switch policy {
	case KeepFirst:
		seen := map[market.Asset]bool{}
		for _, s := range signals {
			if !seen[s.Asset] {
				seen[s.Asset] = true
				out = append(out, s)
			}
		}

	case KeepLast:
		last := map[market.Asset]int{}
		for i, s := range signals {
			last[s.Asset] = i
		}
		for i, s := range signals {
			if last[s.Asset] == i {
				out = append(out, s)
			}
		}

	case DropConflicts:
		first := map[market.Asset]Signal{}
		bad := map[market.Asset]bool{}
		for _, s := range signals {
			if f, ok := first[s.Asset]; !ok {
				first[s.Asset] = s
			} else if f.Conflicts(s) {
				bad[s.Asset] = true
			}
		}
		for _, s := range signals {
			if !bad[s.Asset] {
				out = append(out, s)
			}
		}
	}
	return out
}
