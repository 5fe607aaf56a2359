// Package msgbuf provides the message-buffer substrate of the RPC runtime:
// slab-allocated backing buffers and the MsgBuffer view that overlays
// per-packet headers around a contiguous payload region, so the data path
// can hand whole packets to the transport without copying.
package msgbuf

import "fmt"

// Buffer is an exclusively-owned handle to a contiguous backing region,
// tagged with the slab class it was carved from so the pool can recycle it
// on release. The zero value is the invalid sentinel.
type Buffer struct {
	base      []byte
	classSize int
}

// InvalidBuffer returns the invalid sentinel, which the allocator also
// returns on failure.
func InvalidBuffer() Buffer {
	return Buffer{}
}

// IsValid reports whether the buffer owns a backing region.
func (b Buffer) IsValid() bool {
	return b.base != nil
}

// Base returns the full backing region, sized to the slab class.
func (b Buffer) Base() []byte {
	return b.base
}

// ClassSize returns the slab class this buffer recycles into.
func (b Buffer) ClassSize() int {
	return b.classSize
}

func (b Buffer) String() string {
	if !b.IsValid() {
		return "[Invalid]"
	}
	return fmt.Sprintf("[base %p, class %d]", &b.base[0], b.classSize)
}
