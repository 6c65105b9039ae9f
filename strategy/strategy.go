package strategy

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/tradecore/market"
)

// Strategy turns one event into zero or more signals. It is called from the
// worker loop only, once per event.
type Strategy interface {
	CreateSignals(evt *market.Event) ([]Signal, error)
}

// Func adapts a plain function to Strategy.
type Func func(evt *market.Event) ([]Signal, error)

func (f Func) CreateSignals(evt *market.Event) ([]Signal, error) { return f(evt) }

// Noop never signals.
type Noop struct{}

func (Noop) CreateSignals(*market.Event) ([]Signal, error) { return nil, nil }

// Scripted replays a fixed set of signals keyed by event time.
type Scripted struct {
	mu      sync.RWMutex
	signals map[time.Time][]Signal
}

func NewScripted() *Scripted {
	return &Scripted{signals: make(map[time.Time][]Signal)}
}

// At adds signals to be emitted for the event at t.
func (s *Scripted) At(t time.Time, signals ...Signal) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	t = t.UTC()
	s.signals[t] = append(s.signals[t], signals...)
	return s
}

func (s *Scripted) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sigs := range s.signals {
		n += len(sigs)
	}
	return n
}

func (s *Scripted) CreateSignals(evt *market.Event) ([]Signal, error) {
	if evt == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sigs := s.signals[evt.Time.UTC()]
	if len(sigs) == 0 {
		return nil, nil
	}
	return append([]Signal(nil), sigs...), nil
}

// LoadScript reads "time,asset,rating[,type]" rows. The asset column is a
// serialized asset or a plain ticker, which becomes a Stock in currency c.
// Lines starting with # and a "time" header row are skipped.
func LoadScript(path string, c market.Currency) (*Scripted, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadScript(f, c)
}

func ReadScript(r io.Reader, c market.Currency) (*Scripted, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	s := NewScripted()
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("script line %d: want time,asset,rating[,type]", line)
		}

		t, err := market.ParseTime(row[0])
		if err != nil {
			return nil, fmt.Errorf("script line %d: %w", line, err)
		}
		asset, err := market.ParseAsset(strings.TrimSpace(row[1]), c)
		if err != nil {
			return nil, fmt.Errorf("script line %d: %w", line, err)
		}
		rating, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("script line %d: bad rating: %w", line, err)
		}
		typ := Both
		if len(row) > 3 {
			if typ, err = ParseSignalType(row[3]); err != nil {
				return nil, fmt.Errorf("script line %d: %w", line, err)
			}
		}
		s.At(t, NewSignal(asset, rating, typ))
	}
}

// Random emits a buy or sell signal for each asset in an event with the given
// probability. Seeded, so runs are reproducible.
type Random struct {
	Probability float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(probability float64, seed uint64) *Random {
	return &Random{
		Probability: probability,
		rng:         rand.New(rand.NewPCG(seed, seed+1)),
	}
}

func (r *Random) CreateSignals(evt *market.Event) ([]Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Signal
	for _, a := range evt.Assets() {
		if r.rng.Float64() >= r.Probability {
			continue
		}
		if r.rng.IntN(2) == 0 {
			out = append(out, BuySignal(a))
		} else {
			out = append(out, SellSignal(a))
		}
	}
	return out, nil
}
