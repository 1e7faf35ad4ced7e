package models

import (
	"time"
)

// ThresholdChange is one entry of a user's threshold history: the threshold
// that became the highest-exceeded one, and when.
type ThresholdChange struct {
	Threshold Threshold `json:"threshold"`
	At        time.Time `json:"at"`
}

// IsWithin reports whether the change happened at most window before now.
// The boundary is inclusive: a change exactly window old is still within.
func (c ThresholdChange) IsWithin(window time.Duration, now time.Time) bool {
	return now.Sub(c.At) <= window
}

// CrossingOutcome classifies a usage update against the recorded history.
type CrossingOutcome string

const (
	// OutcomeNoChange means the highest-exceeded threshold did not move.
	OutcomeNoChange CrossingOutcome = "no_change"
	// OutcomeDroppedBelow means usage fell to a lower threshold.
	OutcomeDroppedBelow CrossingOutcome = "dropped_below"
	// OutcomeJustCrossed means a higher threshold was newly exceeded and
	// was not reached within the grace period. Only this outcome is
	// notification-worthy.
	OutcomeJustCrossed CrossingOutcome = "just_crossed"
	// OutcomeCrossedButRecent means a higher threshold was exceeded but the
	// same or a higher level was already reached within the grace period.
	OutcomeCrossedButRecent CrossingOutcome = "crossed_but_recent"
)

// Crossing is the decision produced for one dimension of one usage update.
type Crossing struct {
	Outcome   CrossingOutcome `json:"outcome"`
	Threshold Threshold       `json:"threshold"`
}

// Notifiable reports whether this crossing should trigger an email section.
func (c Crossing) Notifiable() bool {
	return c.Outcome == OutcomeJustCrossed && !c.Threshold.IsZero()
}

// ThresholdHistory is the append-ordered (oldest first) sequence of threshold
// changes for one user and one dimension. Consecutive entries never repeat the
// same threshold. This subsystem only appends; retention is an external
// concern.
type ThresholdHistory struct {
	changes []ThresholdChange
}

// NewThresholdHistory creates a history from existing changes, oldest first.
func NewThresholdHistory(changes ...ThresholdChange) ThresholdHistory {
	out := make([]ThresholdChange, len(changes))
	copy(out, changes)
	return ThresholdHistory{changes: out}
}

// IsEmpty reports whether the history has no entries.
func (h ThresholdHistory) IsEmpty() bool {
	return len(h.changes) == 0
}

// Len returns the number of entries.
func (h ThresholdHistory) Len() int {
	return len(h.changes)
}

// Last returns the most recent change, if any.
func (h ThresholdHistory) Last() (ThresholdChange, bool) {
	if len(h.changes) == 0 {
		return ThresholdChange{}, false
	}
	return h.changes[len(h.changes)-1], true
}

// Changes returns a copy of the entries, oldest first.
func (h ThresholdHistory) Changes() []ThresholdChange {
	out := make([]ThresholdChange, len(h.changes))
	copy(out, h.changes)
	return out
}

// append returns a new history with the change added, leaving the receiver
// untouched.
func (h ThresholdHistory) append(change ThresholdChange) ThresholdHistory {
	changes := make([]ThresholdChange, len(h.changes)+1)
	copy(changes, h.changes)
	changes[len(h.changes)] = change
	return ThresholdHistory{changes: changes}
}

// Classify compares the current highest-exceeded threshold against the
// recorded history and returns the crossing decision together with the
// updated history.
//
// An empty history behaves as a single virtual entry (ThresholdZero, long
// ago), so the first crossing of any non-zero threshold is always
// OutcomeJustCrossed. A no-op update never appends; the three other outcomes
// append exactly one entry. Grace-period suppression means "don't re-announce
// a level already reached within the window", which tolerates usage
// oscillating at the boundary.
func (h ThresholdHistory) Classify(current Threshold, gracePeriod time.Duration, now time.Time) (Crossing, ThresholdHistory) {
	last := ThresholdZero
	if entry, ok := h.Last(); ok {
		last = entry.Threshold
	}

	switch last.Compare(current) {
	case 0:
		return Crossing{Outcome: OutcomeNoChange, Threshold: current}, h

	case 1:
		updated := h.append(ThresholdChange{Threshold: current, At: now})
		return Crossing{Outcome: OutcomeDroppedBelow, Threshold: current}, updated

	default:
		outcome := OutcomeJustCrossed
		for _, entry := range h.changes {
			if entry.IsWithin(gracePeriod, now) && entry.Threshold.Compare(current) >= 0 {
				outcome = OutcomeCrossedButRecent
				break
			}
		}
		updated := h.append(ThresholdChange{Threshold: current, At: now})
		return Crossing{Outcome: outcome, Threshold: current}, updated
	}
}
