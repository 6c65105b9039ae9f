package feed

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/tradecore/market"
)

// Feed pushes events into a channel until its data is exhausted, the channel
// closes, or ctx is cancelled. The caller closes the channel after Play
// returns.
type Feed interface {
	Timeframe() market.Timeframe
	Play(ctx context.Context, ch *Channel) error
}

// HistoricFeed replays an in-memory, time-ordered set of events.
type HistoricFeed struct {
	mu     sync.RWMutex
	events map[time.Time][]market.PriceItem
}

func NewHistoricFeed() *HistoricFeed {
	return &HistoricFeed{events: make(map[time.Time][]market.PriceItem)}
}

// Add appends items to the event at t.
func (f *HistoricFeed) Add(t time.Time, items ...market.PriceItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t = t.UTC()
	f.events[t] = append(f.events[t], items...)
}

func (f *HistoricFeed) Timeline() market.Timeline {
	f.mu.RLock()
	defer f.mu.RUnlock()
	times := make([]time.Time, 0, len(f.events))
	for t := range f.events {
		times = append(times, t)
	}
	return market.NewTimeline(times...)
}

// Timeframe is the inclusive span from the first to the last event.
func (f *HistoricFeed) Timeframe() market.Timeframe {
	tl := f.Timeline()
	if tl.Len() == 0 {
		return market.Infinite
	}
	return tl.Timeframe()
}

// Assets returns every asset in the feed, sorted by symbol.
func (f *HistoricFeed) Assets() []market.Asset {
	f.mu.RLock()
	defer f.mu.RUnlock()
	seen := map[market.Asset]bool{}
	var out []market.Asset
	for _, items := range f.events {
		for _, it := range items {
			if !seen[it.Asset()] {
				seen[it.Asset()] = true
				out = append(out, it.Asset())
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol() < out[j].Symbol() })
	return out
}

func (f *HistoricFeed) Play(ctx context.Context, ch *Channel) error {
	for _, t := range f.Timeline() {
		if err := ctx.Err(); err != nil {
			return err
		}
		f.mu.RLock()
		items := f.events[t]
		f.mu.RUnlock()

		if err := ch.Send(ctx, market.NewEvent(t, items...)); err != nil {
			if errors.Is(err, ErrChannelClosed) {
				return nil
			}
			return err
		}
	}
	return nil
}
