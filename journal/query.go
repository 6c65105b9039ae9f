package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run is one row of the runs table.
type Run struct {
	ID       string
	Name     string
	Started  time.Time
	Finished time.Time // zero while the run is open
}

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// ListRuns returns all runs, oldest first.
func ListRuns(ctx context.Context, db *sql.DB) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, name, started, finished
		FROM runs
		ORDER BY started ASC, run_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func GetRun(ctx context.Context, db *sql.DB, runID string) (Run, error) {
	row := db.QueryRowContext(ctx, `
		SELECT run_id, name, started, finished
		FROM runs
		WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		finished sql.NullTime
	)
	if err := s.Scan(&r.ID, &r.Name, &r.Started, &finished); err != nil {
		return Run{}, err
	}
	if finished.Valid {
		r.Finished = finished.Time
	}
	return r, nil
}

// ListEquity returns the equity curve of a run ordered by time.
func ListEquity(ctx context.Context, db *sql.DB, runID string) ([]EquityRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT time, currency, equity, cash, unrealized_pnl, positions, open_orders
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityRecord
	for rows.Next() {
		var e EquityRecord
		if err := rows.Scan(
			&e.Time,
			&e.Currency,
			&e.Equity,
			&e.Cash,
			&e.UnrealizedPnl,
			&e.Positions,
			&e.OpenOrders,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListFills returns the fills of a run in execution order.
func ListFills(ctx context.Context, db *sql.DB, runID string) ([]FillRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT time, order_id, asset, size, price, pnl, currency, tag
		FROM fills
		WHERE run_id = ?
		ORDER BY time ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var f FillRecord
		if err := rows.Scan(
			&f.Time,
			&f.OrderID,
			&f.Asset,
			&f.Size,
			&f.Price,
			&f.PnL,
			&f.Currency,
			&f.Tag,
		); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RunSummary computes the summary of a stored run. Signal and order counts
// are not stored and stay zero.
func RunSummary(ctx context.Context, db *sql.DB, runID string) (Summary, error) {
	if _, err := GetRun(ctx, db, runID); err != nil {
		return Summary{}, err
	}
	eq, err := ListEquity(ctx, db, runID)
	if err != nil {
		return Summary{}, err
	}
	fills, err := ListFills(ctx, db, runID)
	if err != nil {
		return Summary{}, err
	}
	return summarize(eq, fills), nil
}
