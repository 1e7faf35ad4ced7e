package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrConfigNotFound(t *testing.T) {
	err := &ErrConfigNotFound{Path: "/etc/quotamail/config.yaml"}
	assert.Contains(t, err.Error(), "/etc/quotamail/config.yaml")
}

func TestErrConfigParseUnwrap(t *testing.T) {
	inner := fmt.Errorf("bad yaml")
	err := &ErrConfigParse{Err: inner}
	assert.Contains(t, err.Error(), "bad yaml")
	assert.Equal(t, inner, stderrors.Unwrap(err))
}

func TestErrThresholdOutOfRange(t *testing.T) {
	err := &ErrThresholdOutOfRange{Ratio: 1.5}
	assert.Contains(t, err.Error(), "1.5")
	assert.Contains(t, err.Error(), "out of range")
}

func TestErrHistoryPersistence(t *testing.T) {
	inner := fmt.Errorf("disk full")
	err := &ErrHistoryPersistence{User: "bob@example.org", Dimension: "size", Err: inner}
	assert.Contains(t, err.Error(), "bob@example.org")
	assert.Contains(t, err.Error(), "size")
	assert.Equal(t, inner, stderrors.Unwrap(err))
}

func TestErrRecipientResolution(t *testing.T) {
	inner := fmt.Errorf("user directory unavailable")
	err := &ErrRecipientResolution{QuotaRoot: "#private&bob", Err: inner}
	assert.Contains(t, err.Error(), "#private&bob")
	assert.Equal(t, inner, stderrors.Unwrap(err))
}

func TestErrMailDelivery(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := &ErrMailDelivery{Recipients: []string{"bob@example.org"}, Err: inner}
	assert.Contains(t, err.Error(), "bob@example.org")
	assert.Equal(t, inner, stderrors.Unwrap(err))
}

func TestErrDatabaseQueryUnwrap(t *testing.T) {
	inner := fmt.Errorf("locked")
	err := &ErrDatabaseQuery{Operation: "append change", Err: inner}
	assert.Contains(t, err.Error(), "append change")
	assert.True(t, stderrors.Is(err, inner))
}
