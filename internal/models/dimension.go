package models

import (
	"fmt"
	"time"
)

// Dimension is one of the two independently tracked quota axes.
type Dimension string

const (
	// DimensionSize tracks storage occupation in bytes.
	DimensionSize Dimension = "size"
	// DimensionCount tracks the number of messages.
	DimensionCount Dimension = "count"
)

// Dimensions lists all tracked quota axes in rendering order: size sections
// come before count sections in composed notifications.
var Dimensions = []Dimension{DimensionSize, DimensionCount}

// Valid reports whether the dimension is one of the tracked axes.
func (d Dimension) Valid() bool {
	return d == DimensionSize || d == DimensionCount
}

// UsageUpdate is the inbound event delivered by the mailbox system whenever a
// mailbox's computed quota usage changes. Limits of zero or below are
// unbounded.
type UsageUpdate struct {
	User       string    `json:"user"`
	QuotaRoot  string    `json:"quota_root"`
	SizeUsed   int64     `json:"size_used"`
	SizeLimit  int64     `json:"size_limit"`
	CountUsed  int64     `json:"count_used"`
	CountLimit int64     `json:"count_limit"`
	ObservedAt time.Time `json:"observed_at"`
}

// Validate checks if the usage update is valid.
func (u *UsageUpdate) Validate() error {
	if u.User == "" {
		return fmt.Errorf("user is required")
	}
	if u.SizeUsed < 0 {
		return fmt.Errorf("size_used cannot be negative")
	}
	if u.CountUsed < 0 {
		return fmt.Errorf("count_used cannot be negative")
	}
	return nil
}

// Figures returns the (used, limit) pair for the given dimension.
func (u *UsageUpdate) Figures(d Dimension) (used, limit int64) {
	if d == DimensionCount {
		return u.CountUsed, u.CountLimit
	}
	return u.SizeUsed, u.SizeLimit
}

// Root returns the quota root usage is attributed to, falling back to the
// user when the mailbox system did not supply one.
func (u *UsageUpdate) Root() string {
	if u.QuotaRoot != "" {
		return u.QuotaRoot
	}
	return u.User
}
