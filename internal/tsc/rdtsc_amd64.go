//go:build amd64

package tsc

// rdtsc is implemented in rdtsc_amd64.s.
func rdtsc() uint64
