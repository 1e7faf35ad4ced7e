package models

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/quotamail/quotamail/internal/errors"
)

// Threshold represents a single quota occupation boundary as a ratio in [0, 1].
// The zero value is the "no threshold reached" baseline and is never reported
// as a crossing.
type Threshold struct {
	ratio float64
}

// ThresholdZero is the baseline threshold below every configured one.
var ThresholdZero = Threshold{}

// NewThreshold creates a threshold from an occupation ratio.
func NewThreshold(ratio float64) (Threshold, error) {
	if ratio < 0 || ratio > 1 {
		return ThresholdZero, &errors.ErrThresholdOutOfRange{Ratio: ratio}
	}
	return Threshold{ratio: ratio}, nil
}

// MustThreshold creates a threshold or panics. Intended for tests and
// hard-coded defaults.
func MustThreshold(ratio float64) Threshold {
	t, err := NewThreshold(ratio)
	if err != nil {
		panic(err)
	}
	return t
}

// Ratio returns the occupation ratio.
func (t Threshold) Ratio() float64 {
	return t.ratio
}

// IsZero reports whether this is the baseline threshold.
func (t Threshold) IsZero() bool {
	return t.ratio == 0
}

// Percent returns the ratio as a truncated integer percentage: 0.759 -> 75.
func (t Threshold) Percent() int {
	return int(t.ratio * 100)
}

// Exceeds reports whether used/limit is strictly greater than the ratio.
// A limit of zero or below means the quota is unbounded and nothing exceeds.
// Reaching the boundary exactly does not count as exceeding.
func (t Threshold) Exceeds(used, limit int64) bool {
	if limit <= 0 {
		return false
	}
	return float64(used)/float64(limit) > t.ratio
}

// Compare orders thresholds by ratio. It returns -1, 0 or 1.
func (t Threshold) Compare(other Threshold) int {
	switch {
	case t.ratio < other.ratio:
		return -1
	case t.ratio > other.ratio:
		return 1
	default:
		return 0
	}
}

func (t Threshold) String() string {
	return fmt.Sprintf("%d%%", t.Percent())
}

// MarshalJSON encodes the threshold as its bare ratio.
func (t Threshold) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.ratio)
}

// UnmarshalJSON decodes a bare ratio, rejecting out-of-range values.
func (t *Threshold) UnmarshalJSON(data []byte) error {
	var ratio float64
	if err := json.Unmarshal(data, &ratio); err != nil {
		return err
	}
	parsed, err := NewThreshold(ratio)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ThresholdSet is an immutable collection of thresholds. Members are kept
// sorted ascending so maximum selection is deterministic regardless of the
// order thresholds were configured in.
type ThresholdSet struct {
	members []Threshold
}

// NewThresholdSet creates a set from the given thresholds. Duplicates are
// collapsed and the input order is irrelevant.
func NewThresholdSet(thresholds ...Threshold) ThresholdSet {
	members := make([]Threshold, 0, len(thresholds))
	seen := make(map[float64]bool, len(thresholds))
	for _, t := range thresholds {
		if seen[t.ratio] {
			continue
		}
		seen[t.ratio] = true
		members = append(members, t)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].ratio < members[j].ratio
	})
	return ThresholdSet{members: members}
}

// NewThresholdSetFromRatios creates a set from raw ratios, failing on the
// first out-of-range value.
func NewThresholdSetFromRatios(ratios ...float64) (ThresholdSet, error) {
	thresholds := make([]Threshold, 0, len(ratios))
	for _, r := range ratios {
		t, err := NewThreshold(r)
		if err != nil {
			return ThresholdSet{}, err
		}
		thresholds = append(thresholds, t)
	}
	return NewThresholdSet(thresholds...), nil
}

// HighestExceeded returns the greatest member strictly exceeded by
// used/limit, or ThresholdZero when none is.
func (s ThresholdSet) HighestExceeded(used, limit int64) Threshold {
	for i := len(s.members) - 1; i >= 0; i-- {
		if s.members[i].Exceeds(used, limit) {
			return s.members[i]
		}
	}
	return ThresholdZero
}

// Members returns a copy of the thresholds, sorted ascending.
func (s ThresholdSet) Members() []Threshold {
	out := make([]Threshold, len(s.members))
	copy(out, s.members)
	return out
}

// IsEmpty reports whether the set has no members.
func (s ThresholdSet) IsEmpty() bool {
	return len(s.members) == 0
}

// Size returns the number of members.
func (s ThresholdSet) Size() int {
	return len(s.members)
}
