//go:build linux

package nexus

import "golang.org/x/sys/unix"

// pinToCore restricts the calling OS thread to a single CPU core. The
// caller must have locked the goroutine to its thread first.
func pinToCore(core int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	return unix.SchedSetaffinity(0, &set)
}
