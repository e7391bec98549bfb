package historical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZoneOf_StripsFixedPrefix(t *testing.T) {
	assert.Equal(t, "A1", ZoneOf("01A1-03-05-02"))
	assert.Equal(t, "B2", ZoneOf("01B2-01-01-01"))
}

func TestZoneOf_NoPrefixReturnsFirstSegmentVerbatim(t *testing.T) {
	assert.Equal(t, "A1", ZoneOf("A1-03-05-02"))
}

func TestZoneOf_EmptyInput(t *testing.T) {
	assert.Equal(t, "", ZoneOf(""))
}

func TestIQRTrim_RemovesOutliers(t *testing.T) {
	data := []float64{10, 11, 12, 13, 14, 15, 1000}
	trimmed, lower, upper, removed := iqrTrim(data, 1.5)

	assert.Equal(t, 1, removed)
	assert.NotContains(t, trimmed, 1000.0)
	assert.Less(t, lower, upper)
	assert.Len(t, trimmed, len(data)-removed)
}

func TestIQRTrim_FallsBackToFullSetWhenEverythingWouldBeTrimmed(t *testing.T) {
	data := []float64{5}
	trimmed, _, _, removed := iqrTrim(data, 0)
	assert.Equal(t, data, trimmed)
	assert.Equal(t, 0, removed)
}

func TestMin1_CapsAtOne(t *testing.T) {
	assert.Equal(t, 1.0, min1(1.5))
	assert.Equal(t, 0.5, min1(0.5))
}
