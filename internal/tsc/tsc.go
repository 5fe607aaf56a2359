// Package tsc measures the invariant timestamp-counter frequency so
// downstream components can convert TSC deltas to wall time.
package tsc

import "time"

// Calibration bounds. A measurement outside this range means the sample was
// disturbed (migration, frequency scaling glitch) and is retried.
const (
	minFreqGHz = 0.5
	maxFreqGHz = 10.0

	sampleInterval = 50 * time.Millisecond
	maxAttempts    = 3
)

// MeasureFreqGHz samples the timestamp counter against the monotonic clock
// over a short bounded interval and returns the counter frequency in GHz.
// This is expensive and is done once, at Nexus construction.
//
// On platforms without a cycle counter the fallback counter ticks in
// nanoseconds, so the measured frequency is ~1.0 GHz and TSC-to-time
// conversion stays correct.
func MeasureFreqGHz() float64 {
	var ghz float64
	for range maxAttempts {
		startCycles := rdtsc()
		startTime := time.Now()
		time.Sleep(sampleInterval)
		endCycles := rdtsc()
		elapsedNs := time.Since(startTime).Nanoseconds()

		if elapsedNs <= 0 || endCycles <= startCycles {
			continue
		}
		ghz = float64(endCycles-startCycles) / float64(elapsedNs)
		if ghz >= minFreqGHz && ghz <= maxFreqGHz {
			return ghz
		}
	}
	// All samples were disturbed; the last one is still the best estimate.
	return ghz
}

// Rdtsc returns the current timestamp-counter value.
func Rdtsc() uint64 {
	return rdtsc()
}

// ToSeconds converts a TSC delta to seconds at the given frequency.
func ToSeconds(cycles uint64, freqGHz float64) float64 {
	return float64(cycles) / (freqGHz * 1e9)
}
