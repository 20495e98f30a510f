package recorder

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSentinel/internal/model"
)

func openTestDB(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "journal", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func count(t *testing.T, r *SQLiteRecorder, table string) int {
	t.Helper()
	var n int
	require.NoError(t, r.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSink_JournalsEvents(t *testing.T) {
	r := openTestDB(t)
	sink := NewSink(r)
	now := time.Date(2024, 5, 2, 14, 30, 0, 0, time.UTC)

	positions := []model.Position{
		{Symbol: "AAPL", Side: model.SideLong, Quantity: 10, EntryPrice: 180,
			StopLoss: model.KnownAmount(176.4), EntryTime: now},
		{Symbol: "TSLA", Side: model.SideShort, Quantity: 3, EntryPrice: 200,
			MarketValue: model.KnownAmount(-600), EntryTime: now},
	}
	ctx := context.Background()
	require.NoError(t, sink.Handle(ctx, model.StatusEvent(now, model.StatusRunning)))
	require.NoError(t, sink.Handle(ctx, model.LogEvent(now, "cycle finished")))
	require.NoError(t, sink.Handle(ctx, model.PositionsEvent(now, positions)))
	require.NoError(t, sink.Handle(ctx, model.BalanceEvent(now, 10250.5)))

	assert.Equal(t, 4, count(t, r, "agent_events"))
	assert.Equal(t, 2, count(t, r, "position_snapshots"))
	assert.Equal(t, 1, count(t, r, "balance_history"))

	var status string
	require.NoError(t, r.db.QueryRow(`SELECT status FROM agent_events WHERE kind = 'status'`).Scan(&status))
	assert.Equal(t, "Running", status)

	var stop, takeProfit sql.NullFloat64
	require.NoError(t, r.db.QueryRow(`SELECT stop_loss, take_profit FROM position_snapshots WHERE symbol = 'AAPL'`).Scan(&stop, &takeProfit))
	assert.True(t, stop.Valid)
	assert.Equal(t, 176.4, stop.Float64)
	assert.False(t, takeProfit.Valid)

	var balance float64
	var ts int64
	require.NoError(t, r.db.QueryRow(`SELECT timestamp, balance FROM balance_history`).Scan(&ts, &balance))
	assert.Equal(t, 10250.5, balance)
	assert.Equal(t, now.UnixMilli(), ts)
}

func TestSQLiteRecorder_ReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	r, err := NewSQLiteRecorder(path)
	require.NoError(t, err)
	require.NoError(t, r.RecordBalance(time.Now(), 1))
	require.NoError(t, r.Close())

	r, err = NewSQLiteRecorder(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 1, count(t, r, "balance_history"))
}

type failingRecorder struct{ NoopRecorder }

func (failingRecorder) RecordBalance(time.Time, float64) error { return errors.New("locked") }

func TestSink_WrapsErrors(t *testing.T) {
	sink := NewSink(&failingRecorder{})
	err := sink.Handle(context.Background(), model.BalanceEvent(time.Now(), 5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record balance")

	assert.NoError(t, sink.Handle(context.Background(), model.LogEvent(time.Now(), "ok")))
}
