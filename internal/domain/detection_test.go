package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBox_String(t *testing.T) {
	assert.Equal(t, "-22.9,-69.6,-9.7,-57.5", BoliviaBBox.String())
}

func TestParseBoundingBox(t *testing.T) {
	got, err := ParseBoundingBox("-22.9, -69.6, -9.7, -57.5")
	require.NoError(t, err)
	assert.Equal(t, BoliviaBBox, got)

	roundTrip, err := ParseBoundingBox(got.String())
	require.NoError(t, err)
	assert.Equal(t, got, roundTrip)
}

func TestParseBoundingBox_Invalid(t *testing.T) {
	tests := map[string]string{
		"too few parts":    "1,2,3",
		"not a number":     "a,2,3,4",
		"lat out of range": "-91,0,0,0",
		"lon out of range": "0,-181,1,0",
		"inverted":         "1,0,0,1",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBoundingBox(in)
			assert.Error(t, err)
		})
	}
}

func TestBoundingBox_Contains(t *testing.T) {
	box := BoundingBox{MinLat: -17.5, MinLon: -69.5, MaxLat: -12.0, MaxLon: -66.0}

	assert.True(t, box.Contains(-16.5, -68.2))
	assert.True(t, box.Contains(-17.5, -69.5), "corner is inclusive")
	assert.True(t, box.Contains(-12.0, -66.0), "corner is inclusive")
	assert.False(t, box.Contains(-17.51, -68.2))
	assert.False(t, box.Contains(-16.5, -65.99))
}

func TestPadAcqTime(t *testing.T) {
	assert.Equal(t, "0600", padAcqTime("600"))
	assert.Equal(t, "0005", padAcqTime(" 5 "))
	assert.Equal(t, "1300", padAcqTime("1300"))
	assert.Equal(t, "", padAcqTime(""))
}
