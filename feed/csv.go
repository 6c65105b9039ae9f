package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/tradecore/market"
)

// CSVOptions controls how CSVFeed interprets rows.
type CSVOptions struct {
	// Currency of plain ticker symbols. Defaults to USD.
	Currency market.Currency
	// Span of every bar, e.g. 24h for daily bars.
	Span time.Duration
	// Optional [From, To) filter.
	From time.Time
	To   time.Time
}

// CSVFeed streams OHLCV bars from a CSV file:
//
//	time,symbol,open,high,low,close[,volume]
//
// where time is RFC3339 or a plain date and symbol is either a ticker (a
// Stock in Options.Currency) or a serialized asset ("Crypto;BTC-USDT;USDT").
// Rows sharing a timestamp form one event and must be sorted by time. A
// single header row ("time,...") is allowed.
type CSVFeed struct {
	path string
	opts CSVOptions
	tf   market.Timeframe
}

// NewCSVFeed scans the file once to determine its timeframe.
func NewCSVFeed(path string, opts CSVOptions) (*CSVFeed, error) {
	if opts.Currency.Code == "" {
		opts.Currency = market.USD
	}
	f := &CSVFeed{path: path, opts: opts}

	first, last, err := f.scanBounds()
	if err != nil {
		return nil, err
	}
	f.tf, err = market.NewTimeframe(first, last, true)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (f *CSVFeed) Timeframe() market.Timeframe { return f.tf }

func (f *CSVFeed) scanBounds() (first, last time.Time, err error) {
	err = f.each(func(t time.Time, _ market.PriceItem) error {
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
		return nil
	})
	if err != nil {
		return first, last, err
	}
	if first.IsZero() {
		return first, last, fmt.Errorf("no valid rows in %s", f.path)
	}
	return first, last, nil
}

func (f *CSVFeed) Play(ctx context.Context, ch *Channel) error {
	var (
		cur   time.Time
		items []market.PriceItem
	)
	flush := func() error {
		if len(items) == 0 {
			return nil
		}
		evt := market.NewEvent(cur, items...)
		items = nil
		return ch.Send(ctx, evt)
	}

	err := f.each(func(t time.Time, it market.PriceItem) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !t.Equal(cur) {
			if len(items) > 0 && t.Before(cur) {
				return fmt.Errorf("%s: rows not sorted by time at %s", f.path, t.Format(time.RFC3339))
			}
			if err := flush(); err != nil {
				return err
			}
			cur = t
		}
		items = append(items, it)
		return nil
	})
	if err == nil {
		err = flush()
	}
	if errors.Is(err, ErrChannelClosed) {
		return nil
	}
	return err
}

func (f *CSVFeed) each(fn func(time.Time, market.PriceItem) error) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	sawFirst := false
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}

		// Allow a single header row
		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		t, item, ok, err := f.parseRow(row)
		if err != nil {
			return err
		}
		if !ok || !inRange(t, f.opts.From, f.opts.To) {
			continue
		}
		if err := fn(t, item); err != nil {
			return err
		}
	}
}

func (f *CSVFeed) parseRow(row []string) (time.Time, market.PriceItem, bool, error) {
	// Need at least: time,symbol,open,high,low,close
	if len(row) < 6 {
		return time.Time{}, nil, false, nil
	}
	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return time.Time{}, nil, false, nil
	}
	t, err := market.ParseTime(ts)
	if err != nil {
		return time.Time{}, nil, false, err
	}

	asset, err := f.asset(strings.TrimSpace(row[1]))
	if err != nil {
		return time.Time{}, nil, false, err
	}

	var ohlcv [5]float64
	for i := 0; i < 5 && 2+i < len(row); i++ {
		v := strings.TrimSpace(row[2+i])
		if v == "" {
			continue
		}
		ohlcv[i], err = strconv.ParseFloat(v, 64)
		if err != nil {
			return time.Time{}, nil, false, fmt.Errorf("bad number %q: %w", v, err)
		}
	}
	bar := market.NewPriceBar(asset, ohlcv[0], ohlcv[1], ohlcv[2], ohlcv[3], ohlcv[4], f.opts.Span)
	return t, bar, true, nil
}

func (f *CSVFeed) asset(sym string) (market.Asset, error) {
	return market.ParseAsset(sym, f.opts.Currency)
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
