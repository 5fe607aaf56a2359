// Package tlsreg hands out small dense IDs to the runtime's long-lived
// threads (the SM thread, background workers, and application endpoint
// threads). The registry lives inside the Nexus instance, not in package
// globals, so re-creating a Nexus starts the ID space fresh.
package tlsreg

import "sync/atomic"

// Registry issues eRPC thread IDs. The zero value is ready to use.
type Registry struct {
	cur atomic.Int64
}

// RegisterThread returns the next dense thread ID, starting at 0.
func (r *Registry) RegisterThread() int {
	return int(r.cur.Add(1)) - 1
}

// ThreadCount returns the number of IDs issued so far.
func (r *Registry) ThreadCount() int {
	return int(r.cur.Load())
}

// Reset clears the ID space. Called only at Nexus teardown, after every
// registered thread has been joined.
func (r *Registry) Reset() {
	r.cur.Store(0)
}
