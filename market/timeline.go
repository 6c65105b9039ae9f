package market

import (
	"sort"
	"time"
)

// Timeline is a sorted list of distinct timestamps.
type Timeline []time.Time

func NewTimeline(times ...time.Time) Timeline {
	tl := make(Timeline, len(times))
	copy(tl, times)
	sort.Slice(tl, func(i, j int) bool { return tl[i].Before(tl[j]) })
	out := tl[:0]
	for i, t := range tl {
		if i > 0 && t.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (tl Timeline) Len() int { return len(tl) }

// Timeframe returns the inclusive timeframe covering the whole timeline.
func (tl Timeline) Timeframe() Timeframe {
	if len(tl) == 0 {
		return Timeframe{Start: MinTime, End: MinTime}
	}
	return MustTimeframe(tl[0], tl[len(tl)-1], true)
}

// LatestNotAfter returns the index of the last timestamp <= t.
func (tl Timeline) LatestNotAfter(t time.Time) (int, bool) {
	i := sort.Search(len(tl), func(i int) bool { return tl[i].After(t) })
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

// EarliestNotBefore returns the index of the first timestamp >= t.
func (tl Timeline) EarliestNotBefore(t time.Time) (int, bool) {
	i := sort.Search(len(tl), func(i int) bool { return !tl[i].Before(t) })
	if i == len(tl) {
		return 0, false
	}
	return i, true
}

// Split cuts the timeline into chunks of size timestamps and returns the
// timeframe of each chunk. Chunks are half-open except the last one.
func (tl Timeline) Split(size int) []Timeframe {
	if size <= 0 || len(tl) == 0 {
		return nil
	}
	var out []Timeframe
	for i := 0; i < len(tl); i += size {
		j := i + size
		if j >= len(tl) {
			out = append(out, MustTimeframe(tl[i], tl[len(tl)-1], true))
			break
		}
		out = append(out, MustTimeframe(tl[i], tl[j], false))
	}
	return out
}
