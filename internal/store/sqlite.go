package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quotamail/quotamail/internal/errors"
	"github.com/quotamail/quotamail/internal/logging"
	"github.com/quotamail/quotamail/internal/models"
)

// SQLiteStore provides a SQLite-based history store with WAL mode. It is
// thread-safe and supports concurrent access. The threshold_changes table is
// append-only; the pipeline itself never prunes it, but an optional retention
// window ages out old entries for installations that want bounded growth.
type SQLiteStore struct {
	db     *sql.DB
	logger *logging.Logger

	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	retentionDays int
}

// NewSQLiteStore creates a new SQLite store with retention disabled.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithRetention(dbPath, 0)
}

// NewSQLiteStoreWithRetention creates a new SQLite store that deletes changes
// older than retentionDays. Zero or negative disables retention.
func NewSQLiteStoreWithRetention(dbPath string, retentionDays int) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=cache_size(2000)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{
		db:            db,
		logger:        logging.NewLogger(),
		cleanupDone:   make(chan struct{}),
		retentionDays: retentionDays,
	}

	if retentionDays > 0 {
		store.startCleanup()
	}

	return store, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS threshold_changes (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user TEXT NOT NULL,
					dimension TEXT NOT NULL,
					ratio REAL NOT NULL,
					occurred_at DATETIME NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_changes_user_dimension ON threshold_changes(user, dimension, id);
				CREATE INDEX IF NOT EXISTS idx_changes_occurred_at ON threshold_changes(occurred_at);
			`,
		},
	}

	tx, err := db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin transaction", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := tx.Exec(m.up); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit migrations", Err: err}
	}

	return nil
}

// Retrieve reads the full ordered history for a key.
func (s *SQLiteStore) Retrieve(user string, dimension models.Dimension) (models.ThresholdHistory, error) {
	rows, err := s.db.Query(`
		SELECT ratio, occurred_at FROM threshold_changes
		WHERE user = ? AND dimension = ?
		ORDER BY id
	`, user, string(dimension))
	if err != nil {
		return models.ThresholdHistory{}, &errors.ErrDatabaseQuery{Operation: "retrieve history", Err: err}
	}
	defer rows.Close()

	var changes []models.ThresholdChange
	for rows.Next() {
		var ratio float64
		var occurredAt time.Time
		if err := rows.Scan(&ratio, &occurredAt); err != nil {
			return models.ThresholdHistory{}, &errors.ErrDatabaseQuery{Operation: "scan history row", Err: err}
		}
		threshold, err := models.NewThreshold(ratio)
		if err != nil {
			return models.ThresholdHistory{}, err
		}
		changes = append(changes, models.ThresholdChange{Threshold: threshold, At: occurredAt})
	}
	if err := rows.Err(); err != nil {
		return models.ThresholdHistory{}, &errors.ErrDatabaseQuery{Operation: "iterate history rows", Err: err}
	}

	return models.NewThresholdHistory(changes...), nil
}

// Append adds one change to the end of the key's history.
func (s *SQLiteStore) Append(user string, dimension models.Dimension, change models.ThresholdChange) error {
	_, err := s.db.Exec(`
		INSERT INTO threshold_changes (user, dimension, ratio, occurred_at)
		VALUES (?, ?, ?, ?)
	`, user, string(dimension), change.Threshold.Ratio(), change.At.UTC())
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "append change", Err: err}
	}
	return nil
}

// ListUsers returns every user with at least one recorded change, sorted.
func (s *SQLiteStore) ListUsers() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT user FROM threshold_changes ORDER BY user")
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list users", Err: err}
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan user row", Err: err}
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "iterate user rows", Err: err}
	}
	return users, nil
}

// Clear removes all recorded history.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM threshold_changes"); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "clear history", Err: err}
	}
	return nil
}

// Stats returns statistics about the store
func (s *SQLiteStore) Stats() (StoreStats, error) {
	var stats StoreStats
	err := s.db.QueryRow("SELECT COUNT(DISTINCT user), COUNT(*) FROM threshold_changes").
		Scan(&stats.UserCount, &stats.ChangeCount)
	if err != nil {
		return StoreStats{}, &errors.ErrDatabaseQuery{Operation: "stats", Err: err}
	}
	return stats, nil
}

// startCleanup starts the retention cleanup goroutine
func (s *SQLiteStore) startCleanup() {
	s.cleanupTicker = time.NewTicker(time.Hour)
	go func() {
		for {
			select {
			case <-s.cleanupTicker.C:
				s.cleanupOldData()
			case <-s.cleanupDone:
				return
			}
		}
	}()
}

// cleanupOldData removes old data based on retention policy
func (s *SQLiteStore) cleanupOldData() {
	if s.retentionDays <= 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	_, err := s.db.Exec("DELETE FROM threshold_changes WHERE occurred_at < ?", cutoff)
	if err != nil {
		s.logger.Error("cleanup failed", "table", "threshold_changes", "error", err.Error())
	}
}

// Close gracefully shuts down the store
func (s *SQLiteStore) Close() error {
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
		close(s.cleanupDone)
	}

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure SQLiteStore implements the HistoryStore interface
var _ HistoryStore = (*SQLiteStore)(nil)
