//go:build !amd64

package tsc

import "time"

var epoch = time.Now()

// rdtsc falls back to the monotonic clock in nanoseconds on platforms
// without an accessible cycle counter.
func rdtsc() uint64 {
	return uint64(time.Since(epoch).Nanoseconds())
}
