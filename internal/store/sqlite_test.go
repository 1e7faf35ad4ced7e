package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotamail/quotamail/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "quotamail.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestSQLiteStoreRetrieveEmpty(t *testing.T) {
	s := newTestSQLiteStore(t)

	history, err := s.Retrieve("bob@example.org", models.DimensionSize)
	require.NoError(t, err)
	assert.True(t, history.IsEmpty())
}

func TestSQLiteStoreAppendAndRetrieve(t *testing.T) {
	s := newTestSQLiteStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.Append("bob@example.org", models.DimensionSize,
		models.ThresholdChange{Threshold: models.MustThreshold(0.5), At: now.Add(-time.Hour)}))
	require.NoError(t, s.Append("bob@example.org", models.DimensionSize,
		models.ThresholdChange{Threshold: models.ThresholdZero, At: now}))

	history, err := s.Retrieve("bob@example.org", models.DimensionSize)
	require.NoError(t, err)
	require.Equal(t, 2, history.Len())

	changes := history.Changes()
	assert.Equal(t, models.MustThreshold(0.5), changes[0].Threshold)
	assert.Equal(t, models.ThresholdZero, changes[1].Threshold)
	assert.True(t, changes[0].At.Before(changes[1].At))

	last, ok := history.Last()
	require.True(t, ok)
	assert.True(t, last.Threshold.IsZero())
}

func TestSQLiteStoreOrderSurvivesEqualTimestamps(t *testing.T) {
	s := newTestSQLiteStore(t)
	now := time.Now().UTC()

	// Two changes in the same instant keep their append order.
	require.NoError(t, s.Append("bob@example.org", models.DimensionCount,
		models.ThresholdChange{Threshold: models.MustThreshold(0.5), At: now}))
	require.NoError(t, s.Append("bob@example.org", models.DimensionCount,
		models.ThresholdChange{Threshold: models.MustThreshold(0.8), At: now}))

	history, err := s.Retrieve("bob@example.org", models.DimensionCount)
	require.NoError(t, err)
	require.Equal(t, 2, history.Len())
	assert.Equal(t, models.MustThreshold(0.5), history.Changes()[0].Threshold)
	assert.Equal(t, models.MustThreshold(0.8), history.Changes()[1].Threshold)
}

func TestSQLiteStoreKeysIsolated(t *testing.T) {
	s := newTestSQLiteStore(t)
	now := time.Now().UTC()
	change := models.ThresholdChange{Threshold: models.MustThreshold(0.5), At: now}

	require.NoError(t, s.Append("bob@example.org", models.DimensionSize, change))

	history, err := s.Retrieve("bob@example.org", models.DimensionCount)
	require.NoError(t, err)
	assert.True(t, history.IsEmpty())

	history, err = s.Retrieve("alice@example.org", models.DimensionSize)
	require.NoError(t, err)
	assert.True(t, history.IsEmpty())
}

func TestSQLiteStoreListUsersAndStats(t *testing.T) {
	s := newTestSQLiteStore(t)
	now := time.Now().UTC()
	change := models.ThresholdChange{Threshold: models.MustThreshold(0.5), At: now}

	require.NoError(t, s.Append("bob@example.org", models.DimensionSize, change))
	require.NoError(t, s.Append("bob@example.org", models.DimensionCount, change))
	require.NoError(t, s.Append("alice@example.org", models.DimensionSize, change))

	users, err := s.ListUsers()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.org", "bob@example.org"}, users)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.UserCount)
	assert.Equal(t, 3, stats.ChangeCount)
}

func TestSQLiteStoreClear(t *testing.T) {
	s := newTestSQLiteStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.Append("bob@example.org", models.DimensionSize,
		models.ThresholdChange{Threshold: models.MustThreshold(0.5), At: now}))
	require.NoError(t, s.Clear())

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ChangeCount)
}

func TestSQLiteStoreRetentionCleanup(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStoreWithRetention(filepath.Join(dir, "quotamail.db"), 7)
	require.NoError(t, err)
	defer s.Close()

	old := models.ThresholdChange{Threshold: models.MustThreshold(0.5), At: time.Now().UTC().AddDate(0, 0, -30)}
	recent := models.ThresholdChange{Threshold: models.MustThreshold(0.8), At: time.Now().UTC()}

	require.NoError(t, s.Append("bob@example.org", models.DimensionSize, old))
	require.NoError(t, s.Append("bob@example.org", models.DimensionSize, recent))

	s.cleanupOldData()

	history, err := s.Retrieve("bob@example.org", models.DimensionSize)
	require.NoError(t, err)
	require.Equal(t, 1, history.Len())
	assert.Equal(t, models.MustThreshold(0.8), history.Changes()[0].Threshold)
}

func TestSQLiteStoreReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quotamail.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Append("bob@example.org", models.DimensionSize,
		models.ThresholdChange{Threshold: models.MustThreshold(0.5), At: time.Now().UTC()}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	history, err := reopened.Retrieve("bob@example.org", models.DimensionSize)
	require.NoError(t, err)
	assert.Equal(t, 1, history.Len())
}
