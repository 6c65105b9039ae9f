package market

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// MinTime and MaxTime bound every Timeframe.
var (
	MinTime = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	MaxTime = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Timeframe is the interval [Start, End), or [Start, End] when Inclusive.
type Timeframe struct {
	Start     time.Time
	End       time.Time
	Inclusive bool
}

// Infinite covers the complete supported time range.
var Infinite = Timeframe{Start: MinTime, End: MaxTime, Inclusive: true}

// NewTimeframe fails when end is before start, then clamps both bounds to
// [MinTime, MaxTime]. A range entirely outside the supported one collapses to
// the nearest bound.
func NewTimeframe(start, end time.Time, inclusive bool) (Timeframe, error) {
	if end.Before(start) {
		return Timeframe{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidTimeframe,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Timeframe{Start: clampTime(start), End: clampTime(end), Inclusive: inclusive}, nil
}

func clampTime(t time.Time) time.Time {
	switch {
	case t.Before(MinTime):
		return MinTime
	case t.After(MaxTime):
		return MaxTime
	}
	return t.UTC()
}

// MustTimeframe is NewTimeframe for literals known to be valid.
func MustTimeframe(start, end time.Time, inclusive bool) Timeframe {
	tf, err := NewTimeframe(start, end, inclusive)
	if err != nil {
		panic(err)
	}
	return tf
}

// ParseTime accepts RFC3339 timestamps and plain dates (2006-01-02, UTC).
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// ParseTimeframe builds a half-open timeframe from two time strings. An empty
// bound is open ended.
func ParseTimeframe(start, end string) (Timeframe, error) {
	st, en := MinTime, MaxTime
	var err error
	if start != "" {
		if st, err = ParseTime(start); err != nil {
			return Timeframe{}, fmt.Errorf("%w: %v", ErrInvalidTimeframe, err)
		}
	}
	if end != "" {
		if en, err = ParseTime(end); err != nil {
			return Timeframe{}, fmt.Errorf("%w: %v", ErrInvalidTimeframe, err)
		}
	}
	return NewTimeframe(st, en, end == "")
}

// PastPeriod returns the timeframe of length d ending now.
func PastPeriod(d time.Duration) Timeframe {
	now := time.Now().UTC()
	return MustTimeframe(now.Add(-d), now, true)
}

// NextPeriod returns the timeframe of length d starting now.
func NextPeriod(d time.Duration) Timeframe {
	now := time.Now().UTC()
	return MustTimeframe(now, now.Add(d), true)
}

func (tf Timeframe) Contains(t time.Time) bool {
	if t.Before(tf.Start) {
		return false
	}
	if tf.Inclusive {
		return !t.After(tf.End)
	}
	return t.Before(tf.End)
}

// IsAfterEnd reports whether t lies past the end of the timeframe.
func (tf Timeframe) IsAfterEnd(t time.Time) bool {
	if tf.Inclusive {
		return t.After(tf.End)
	}
	return !t.Before(tf.End)
}

func (tf Timeframe) IsInfinite() bool {
	return tf.Start.Equal(MinTime) && tf.End.Equal(MaxTime)
}

func (tf Timeframe) IsEmpty() bool {
	return !tf.Inclusive && tf.Start.Equal(tf.End)
}

// Duration is End - Start. time.Duration only spans about 292 years, so the
// result saturates for longer timeframes such as Infinite.
func (tf Timeframe) Duration() time.Duration {
	return tf.End.Sub(tf.Start)
}

// nanosBetween returns b - a in nanoseconds for b not before a. It covers the
// whole [MinTime, MaxTime] range, unlike time.Time.Sub.
func nanosBetween(a, b time.Time) uint64 {
	secs := uint64(b.Unix() - a.Unix())
	return secs*uint64(time.Second) + uint64(int64(b.Nanosecond())-int64(a.Nanosecond()))
}

// addSteps returns t + n*step without overflowing time.Duration.
func addSteps(t time.Time, n uint64, step time.Duration) time.Time {
	limit := uint64(math.MaxInt64 / int64(step))
	for n > limit {
		t = t.Add(time.Duration(limit) * step)
		n -= limit
	}
	return t.Add(time.Duration(n) * step)
}

// Split cuts the timeframe into consecutive periods. Each next period starts
// overlap before the previous one ended. The last period may be shorter and
// keeps the inclusiveness of tf.
func (tf Timeframe) Split(period, overlap time.Duration) ([]Timeframe, error) {
	if period <= 0 || overlap < 0 || overlap >= period {
		return nil, fmt.Errorf("%w: split period %s overlap %s", ErrInvalidTimeframe, period, overlap)
	}
	var out []Timeframe
	start := tf.Start
	for start.Before(tf.End) {
		end := start.Add(period)
		if !end.Before(tf.End) {
			out = append(out, Timeframe{Start: start, End: tf.End, Inclusive: tf.Inclusive})
			break
		}
		out = append(out, Timeframe{Start: start, End: end})
		start = end.Add(-overlap)
	}
	return out, nil
}

// Sample returns samples random sub-timeframes of length period that fit in
// tf. Start offsets are multiples of resolution.
func (tf Timeframe) Sample(period time.Duration, samples int, resolution time.Duration, rng *rand.Rand) ([]Timeframe, error) {
	if period <= 0 || resolution <= 0 || samples < 0 {
		return nil, fmt.Errorf("%w: sample period %s resolution %s", ErrInvalidTimeframe, period, resolution)
	}
	last := tf.End.Add(-period)
	if last.Before(tf.Start) {
		return nil, fmt.Errorf("%w: period %s longer than %s", ErrInvalidTimeframe, period, tf)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	steps := nanosBetween(tf.Start, last) / uint64(resolution)
	out := make([]Timeframe, 0, samples)
	for i := 0; i < samples; i++ {
		s := addSteps(tf.Start, rng.Uint64N(steps+1), resolution)
		out = append(out, Timeframe{Start: s, End: s.Add(period)})
	}
	return out, nil
}

// Shift moves the timeframe by d, clamped to the supported range.
func (tf Timeframe) Shift(d time.Duration) Timeframe {
	out, _ := NewTimeframe(tf.Start.Add(d), tf.End.Add(d), tf.Inclusive)
	return out
}

// Extend widens the timeframe by before and after.
func (tf Timeframe) Extend(before, after time.Duration) Timeframe {
	out, err := NewTimeframe(tf.Start.Add(-before), tf.End.Add(after), tf.Inclusive)
	if err != nil {
		return tf
	}
	return out
}

// Intersect returns the overlap of tf and o; ok is false when they do not overlap.
func (tf Timeframe) Intersect(o Timeframe) (Timeframe, bool) {
	start := tf.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end, incl := tf.End, tf.Inclusive
	if o.End.Before(end) {
		end, incl = o.End, o.Inclusive
	} else if o.End.Equal(end) {
		incl = tf.Inclusive && o.Inclusive
	}
	if end.Before(start) || (!incl && end.Equal(start)) {
		return Timeframe{}, false
	}
	return Timeframe{Start: start, End: end, Inclusive: incl}, true
}

func (tf Timeframe) String() string {
	if tf.IsInfinite() {
		return "[-∞ - +∞]"
	}
	closing := ">"
	if tf.Inclusive {
		closing = "]"
	}
	return "[" + tf.Start.Format(time.RFC3339) + " - " + tf.End.Format(time.RFC3339) + closing
}
