package store

import (
	"github.com/quotamail/quotamail/internal/models"
)

// HistoryStore is the durable per-(user, dimension) record of threshold
// changes. Appends are ordered; Retrieve returns entries oldest first.
//
// Implementations must be safe for concurrent use. Serializing a full
// read-modify-append sequence on one key is the caller's job (the pipeline
// holds a per-user lock around it); the store only guarantees that individual
// operations do not corrupt each other.
type HistoryStore interface {
	// Retrieve reads the full ordered history for a key. A key never
	// written before yields an empty history, not an error.
	Retrieve(user string, dimension models.Dimension) (models.ThresholdHistory, error)

	// Append adds one change to the end of the key's history.
	Append(user string, dimension models.Dimension, change models.ThresholdChange) error

	// ListUsers returns every user with at least one recorded change.
	ListUsers() ([]string, error)

	// Clear removes all recorded history.
	Clear() error

	// Stats returns statistics about the store.
	Stats() (StoreStats, error)

	// Close releases any resources held by the store.
	Close() error
}

// StoreStats contains statistics about the store
type StoreStats struct {
	UserCount   int
	ChangeCount int
}

// historyKey identifies one tracked (user, dimension) history.
type historyKey struct {
	user      string
	dimension models.Dimension
}
