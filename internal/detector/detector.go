// Package detector computes threshold-crossing decisions for quota usage
// updates and persists the resulting history changes.
package detector

import (
	"time"

	"github.com/quotamail/quotamail/internal/models"
)

// Detect classifies one dimension of a usage update against the stored
// history. It is a pure function of its inputs and performs no I/O; it runs
// once per dimension per update. The returned history includes the appended
// change for every outcome except no-change.
func Detect(dimension models.Dimension, update models.UsageUpdate, thresholds models.ThresholdSet, gracePeriod time.Duration, history models.ThresholdHistory, now time.Time) (models.Crossing, models.ThresholdHistory) {
	used, limit := update.Figures(dimension)
	current := thresholds.HighestExceeded(used, limit)
	return history.Classify(current, gracePeriod, now)
}
