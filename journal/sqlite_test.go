package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradecore/id"
)

func TestSQLiteJournal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	j, err := NewSQLite(path, "first")
	require.NoError(t, err)
	runID := j.RunID()
	assert.True(t, id.Valid(runID))
	play(t, j)
	require.NoError(t, j.Close())

	j2, err := NewSQLite(path, "second")
	require.NoError(t, err)
	require.NoError(t, j2.Close())

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	runs, err := ListRuns(ctx, db)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "first", runs[0].Name)
	assert.False(t, runs[0].Finished.IsZero())
	assert.Equal(t, "second", runs[1].Name)

	run, err := GetRun(ctx, db, runID)
	require.NoError(t, err)
	assert.Equal(t, "first", run.Name)

	_, err = GetRun(ctx, db, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	eq, err := ListEquity(ctx, db, runID)
	require.NoError(t, err)
	require.Len(t, eq, 3)
	assert.True(t, eq[0].Time.Equal(t0))
	assert.InDelta(t, 102_000, eq[1].Equity, 1e-6)
	assert.Equal(t, 0, eq[2].Positions)

	fills, err := ListFills(ctx, db, runID)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, 1, fills[0].OrderID)
	assert.Equal(t, "ENTRY", fills[0].Tag)
	assert.True(t, fills[1].Time.Equal(t0.Add(2*time.Minute)))

	s, err := RunSummary(ctx, db, runID)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Events)
	assert.Equal(t, 2, s.Fills)
	assert.InDelta(t, -1_000, s.RealizedPnl, 1e-6)
	assert.InDelta(t, 3_000.0/102_000.0, s.MaxDrawdown, 1e-9)

	empty, err := RunSummary(ctx, db, j2.RunID())
	require.NoError(t, err)
	assert.Zero(t, empty.Events)

	_, err = RunSummary(ctx, db, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
