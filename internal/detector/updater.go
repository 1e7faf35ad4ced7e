package detector

import (
	"github.com/quotamail/quotamail/internal/errors"
	"github.com/quotamail/quotamail/internal/models"
	"github.com/quotamail/quotamail/internal/store"
)

// HistoryUpdater persists the history change produced by Detect. Failure here
// is a hard error: the pipeline must not notify when the durable record of
// the crossing could not be written.
type HistoryUpdater struct {
	store store.HistoryStore
}

// NewHistoryUpdater creates an updater backed by the given store.
func NewHistoryUpdater(s store.HistoryStore) *HistoryUpdater {
	return &HistoryUpdater{store: s}
}

// Apply appends the newest entry of the updated history for the key. A
// no-change outcome is a no-op; the three other outcomes each persist exactly
// one entry.
func (u *HistoryUpdater) Apply(user string, dimension models.Dimension, crossing models.Crossing, updated models.ThresholdHistory) error {
	if crossing.Outcome == models.OutcomeNoChange {
		return nil
	}

	change, ok := updated.Last()
	if !ok {
		return nil
	}

	if err := u.store.Append(user, dimension, change); err != nil {
		return &errors.ErrHistoryPersistence{User: user, Dimension: string(dimension), Err: err}
	}
	return nil
}
