package history

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveSamplesAndStats(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.SaveSamples([]Sample{
		{RunID: "run-1", Operation: "search", Duration: 100 * time.Millisecond, RecordedAt: now},
		{RunID: "run-1", Operation: "search", Duration: 200 * time.Millisecond, RecordedAt: now},
		{RunID: "run-1", Operation: "classify", Duration: 50 * time.Millisecond, RecordedAt: now},
	}))

	stats, err := store.Stats("search")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, 150*time.Millisecond, stats.Mean)

	stats, err = store.Stats("classify")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Count)
	assert.Equal(t, 50*time.Millisecond, stats.Mean)
}

func TestStats_UnknownOperation(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.Stats("never-recorded")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Count)
	assert.Equal(t, time.Duration(0), stats.Mean)
}

func TestSaveSamples_EmptyBatchIsNoop(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.SaveSamples(nil))
}

func TestRegressionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	detected := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRegression(Regression{
		RunID:      "run-7",
		Operation:  "search",
		Baseline:   40 * time.Millisecond,
		Recent:     90 * time.Millisecond,
		DetectedAt: detected,
	}))
	require.NoError(t, store.SaveRegression(Regression{
		RunID:     "run-7",
		Operation: "classify",
		Baseline:  10 * time.Millisecond,
		Recent:    20 * time.Millisecond,
	}))

	events, err := store.Regressions("run-7")
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Insertion order is preserved.
	assert.Equal(t, "search", events[0].Operation)
	assert.Equal(t, 40*time.Millisecond, events[0].Baseline)
	assert.Equal(t, 90*time.Millisecond, events[0].Recent)
	assert.True(t, events[0].DetectedAt.Equal(detected))

	// Zero DetectedAt is stamped on insert.
	assert.False(t, events[1].DetectedAt.IsZero())
}

func TestRegressions_UnknownRun(t *testing.T) {
	store := newTestStore(t)
	events, err := store.Regressions("no-such-run")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestNew_OpenFailure(t *testing.T) {
	orig := openDB
	openDB = func(driver, dsn string) (*sql.DB, error) {
		return nil, fmt.Errorf("disk on fire")
	}
	defer func() { openDB = orig }()

	store, err := New("irrelevant")
	assert.Nil(t, store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening history db")
}
