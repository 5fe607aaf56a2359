package tsc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRdtscMonotonic(t *testing.T) {
	a := Rdtsc()
	b := Rdtsc()
	c := Rdtsc()
	assert.LessOrEqual(t, a, b)
	assert.LessOrEqual(t, b, c)
}

func TestMeasureFreqGHz(t *testing.T) {
	ghz := MeasureFreqGHz()

	// Anything a real machine or the nanosecond fallback produces.
	assert.Greater(t, ghz, 0.1)
	assert.Less(t, ghz, 10.5)
}

func TestToSeconds(t *testing.T) {
	// 2e9 cycles at 2 GHz is one second.
	assert.InDelta(t, 1.0, ToSeconds(2_000_000_000, 2.0), 1e-9)
}
