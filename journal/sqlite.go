package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/id"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/strategy"
)

// SQLiteJournal stores runs in a sqlite database. Every journal opened on a
// database starts a new run with its own id.
type SQLiteJournal struct {
	db    *sql.DB
	runID string
	cur   cursor
}

// OpenSQLite opens the database at path and creates the schema.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewSQLite(path, name string) (*SQLiteJournal, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}

	j := &SQLiteJournal{db: db, runID: id.New()}
	_, err = db.Exec(`INSERT INTO runs (run_id, name, started) VALUES (?, ?, ?)`,
		j.runID, name, time.Now().UTC())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite journal: create run: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) RunID() string { return j.runID }

// DB exposes the handle for queries.
func (j *SQLiteJournal) DB() *sql.DB { return j.db }

func (j *SQLiteJournal) Track(evt *market.Event, snap broker.Snapshot, _ []strategy.Signal, _ []broker.Order) error {
	for _, t := range j.cur.next(snap) {
		if err := j.RecordFill(fillRecord(t)); err != nil {
			return err
		}
	}
	if evt.IsEmpty() {
		return nil
	}
	rec, err := equityRecord(evt, snap)
	if err != nil {
		return fmt.Errorf("sqlite journal: %w", err)
	}
	return j.RecordEquity(rec)
}

func (j *SQLiteJournal) RecordEquity(e EquityRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, currency, equity, cash, unrealized_pnl, positions, open_orders)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID, e.Time.UTC(), e.Currency, e.Equity, e.Cash, e.UnrealizedPnl, e.Positions, e.OpenOrders,
	)
	if err != nil {
		return fmt.Errorf("sqlite journal: equity: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) RecordFill(f FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(run_id, time, order_id, asset, size, price, pnl, currency, tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID, f.Time.UTC(), f.OrderID, f.Asset, f.Size, f.Price, f.PnL, f.Currency, f.Tag,
	)
	if err != nil {
		return fmt.Errorf("sqlite journal: fill: %w", err)
	}
	return nil
}

// Close marks the run finished and closes the database.
func (j *SQLiteJournal) Close() error {
	_, err := j.db.Exec(`UPDATE runs SET finished = ? WHERE run_id = ?`, time.Now().UTC(), j.runID)
	if cerr := j.db.Close(); err == nil {
		err = cerr
	}
	return err
}
