package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimeConvertsToUTC(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, ist)

	assert.Equal(t, "2026-08-30T04:30:00Z", formatTime(ts))
	assert.Equal(t, "2026-08-30T10:00:00Z", formatTime(ts.UTC().Add(5*time.Hour+30*time.Minute)))
}

func TestSearchThresholdUsesConfiguredValue(t *testing.T) {
	h := &PersonHandler{}
	assert.InDelta(t, 0.4, h.searchThreshold(), 1e-9, "unset config falls back to the default")

	h.MatchThreshold = 0.55
	assert.InDelta(t, 0.55, h.searchThreshold(), 1e-9)
}
