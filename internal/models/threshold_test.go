package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/quotamail/quotamail/internal/errors"
)

func TestNewThreshold(t *testing.T) {
	tests := []struct {
		name    string
		ratio   float64
		wantErr bool
	}{
		{"zero", 0.0, false},
		{"half", 0.5, false},
		{"one", 1.0, false},
		{"negative", -0.1, true},
		{"above one", 1.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th, err := NewThreshold(tt.ratio)
			if tt.wantErr {
				require.Error(t, err)
				var rangeErr *qerrors.ErrThresholdOutOfRange
				assert.ErrorAs(t, err, &rangeErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ratio, th.Ratio())
		})
	}
}

func TestThresholdPercentTruncates(t *testing.T) {
	assert.Equal(t, 75, MustThreshold(0.759).Percent())
	assert.Equal(t, 75, MustThreshold(0.75).Percent())
	assert.Equal(t, 0, ThresholdZero.Percent())
	assert.Equal(t, 100, MustThreshold(1.0).Percent())
}

func TestThresholdExceeds(t *testing.T) {
	half := MustThreshold(0.5)

	tests := []struct {
		name  string
		used  int64
		limit int64
		want  bool
	}{
		{"above", 55, 100, true},
		{"exactly at boundary", 50, 100, false},
		{"below", 45, 100, false},
		{"unbounded limit", 1000, 0, false},
		{"negative limit is unbounded", 1000, -1, false},
		{"full usage", 100, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, half.Exceeds(tt.used, tt.limit))
		})
	}
}

func TestThresholdCompare(t *testing.T) {
	low := MustThreshold(0.5)
	high := MustThreshold(0.8)

	assert.Equal(t, -1, low.Compare(high))
	assert.Equal(t, 1, high.Compare(low))
	assert.Equal(t, 0, low.Compare(MustThreshold(0.5)))
	assert.Equal(t, -1, ThresholdZero.Compare(low))
}

func TestThresholdIsZero(t *testing.T) {
	assert.True(t, ThresholdZero.IsZero())
	assert.False(t, MustThreshold(0.5).IsZero())
}

func TestThresholdString(t *testing.T) {
	assert.Equal(t, "80%", MustThreshold(0.8).String())
	assert.Equal(t, "0%", ThresholdZero.String())
}

func TestThresholdJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(MustThreshold(0.8))
	require.NoError(t, err)
	assert.Equal(t, "0.8", string(data))

	var parsed Threshold
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, 0.8, parsed.Ratio())

	assert.Error(t, json.Unmarshal([]byte("1.5"), &parsed))
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &parsed))
}

func TestThresholdSetHighestExceeded(t *testing.T) {
	set := NewThresholdSet(MustThreshold(0.8), MustThreshold(0.5), MustThreshold(0.99))

	tests := []struct {
		name  string
		used  int64
		limit int64
		want  Threshold
	}{
		{"below all", 40, 100, ThresholdZero},
		{"above lowest", 55, 100, MustThreshold(0.5)},
		{"above middle", 85, 100, MustThreshold(0.8)},
		{"above all", 100, 100, MustThreshold(0.99)},
		{"unbounded", 100, 0, ThresholdZero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, set.HighestExceeded(tt.used, tt.limit))
		})
	}
}

func TestThresholdSetEmpty(t *testing.T) {
	set := NewThresholdSet()
	assert.True(t, set.IsEmpty())
	assert.Equal(t, ThresholdZero, set.HighestExceeded(100, 10))
}

func TestThresholdSetDeterministicOrder(t *testing.T) {
	a := NewThresholdSet(MustThreshold(0.8), MustThreshold(0.5))
	b := NewThresholdSet(MustThreshold(0.5), MustThreshold(0.8))

	assert.Equal(t, a.Members(), b.Members())
	assert.Equal(t, a.HighestExceeded(85, 100), b.HighestExceeded(85, 100))
}

func TestThresholdSetDeduplicates(t *testing.T) {
	set := NewThresholdSet(MustThreshold(0.5), MustThreshold(0.5), MustThreshold(0.8))
	assert.Equal(t, 2, set.Size())
}

func TestNewThresholdSetFromRatios(t *testing.T) {
	set, err := NewThresholdSetFromRatios(0.5, 0.8)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Size())

	_, err = NewThresholdSetFromRatios(0.5, 1.2)
	require.Error(t, err)
}
