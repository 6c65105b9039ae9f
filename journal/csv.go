package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/strategy"
)

var (
	equityHeader = []string{"time", "currency", "equity", "cash", "unrealized_pnl", "positions", "open_orders"}
	fillsHeader  = []string{"time", "order_id", "asset", "size", "price", "pnl", "currency", "tag"}
)

// CSVJournal writes the equity curve and the fills to two CSV files.
// Heartbeats are not written.
type CSVJournal struct {
	equity *csv.Writer
	fills  *csv.Writer
	ef, ff *os.File
	cur    cursor
}

func NewCSV(equityPath, fillsPath string) (*CSVJournal, error) {
	ef, err := os.Create(equityPath)
	if err != nil {
		return nil, err
	}
	ff, err := os.Create(fillsPath)
	if err != nil {
		ef.Close()
		return nil, err
	}

	j := &CSVJournal{equity: csv.NewWriter(ef), fills: csv.NewWriter(ff), ef: ef, ff: ff}
	if err := j.write(j.equity, equityHeader); err != nil {
		j.Close()
		return nil, err
	}
	if err := j.write(j.fills, fillsHeader); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) Track(evt *market.Event, snap broker.Snapshot, _ []strategy.Signal, _ []broker.Order) error {
	for _, t := range j.cur.next(snap) {
		r := fillRecord(t)
		err := j.write(j.fills, []string{
			r.Time.Format(time.RFC3339),
			strconv.Itoa(r.OrderID),
			r.Asset,
			f(r.Size),
			f(r.Price),
			f(r.PnL),
			r.Currency,
			r.Tag,
		})
		if err != nil {
			return fmt.Errorf("csv journal: %w", err)
		}
	}

	if evt.IsEmpty() {
		return nil
	}
	r, err := equityRecord(evt, snap)
	if err != nil {
		return fmt.Errorf("csv journal: %w", err)
	}
	err = j.write(j.equity, []string{
		r.Time.Format(time.RFC3339),
		r.Currency,
		f(r.Equity),
		f(r.Cash),
		f(r.UnrealizedPnl),
		strconv.Itoa(r.Positions),
		strconv.Itoa(r.OpenOrders),
	})
	if err != nil {
		return fmt.Errorf("csv journal: %w", err)
	}
	return nil
}

func (j *CSVJournal) Close() error {
	j.equity.Flush()
	j.fills.Flush()
	return errors.Join(j.equity.Error(), j.fills.Error(), j.ef.Close(), j.ff.Close())
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
