package msgbuf

import (
	"sync"
)

// Default slab size classes. Each class is backed by its own sync.Pool so
// releases recycle into the class the buffer was carved from.
const (
	// DefaultSmallClass covers single-packet control messages (4KB).
	DefaultSmallClass = 4 << 10

	// DefaultMediumClass covers multi-packet messages (64KB).
	DefaultMediumClass = 64 << 10

	// DefaultLargeClass covers bulk transfers (1MB).
	DefaultLargeClass = 1 << 20
)

// Pool is a tiered slab allocator for backing buffers. Requests are rounded
// up to the smallest class that fits; requests beyond the largest class fail
// with the invalid Buffer rather than falling back to direct allocation,
// because buffers that large cannot be registered with the transport.
//
// All operations are safe for concurrent use.
type Pool struct {
	small      sync.Pool
	medium     sync.Pool
	large      sync.Pool
	smallSize  int
	mediumSize int
	largeSize  int
}

// PoolConfig overrides the default class sizes. Zero fields keep defaults.
type PoolConfig struct {
	SmallClass  int
	MediumClass int
	LargeClass  int
}

// NewPool creates a slab pool. A nil config uses the default classes.
func NewPool(cfg *PoolConfig) *Pool {
	p := &Pool{
		smallSize:  DefaultSmallClass,
		mediumSize: DefaultMediumClass,
		largeSize:  DefaultLargeClass,
	}
	if cfg != nil {
		if cfg.SmallClass > 0 {
			p.smallSize = cfg.SmallClass
		}
		if cfg.MediumClass > 0 {
			p.mediumSize = cfg.MediumClass
		}
		if cfg.LargeClass > 0 {
			p.largeSize = cfg.LargeClass
		}
	}

	p.small = sync.Pool{New: func() any {
		buf := make([]byte, p.smallSize)
		return &buf
	}}
	p.medium = sync.Pool{New: func() any {
		buf := make([]byte, p.mediumSize)
		return &buf
	}}
	p.large = sync.Pool{New: func() any {
		buf := make([]byte, p.largeSize)
		return &buf
	}}
	return p
}

// Alloc returns a Buffer whose class size is at least the requested size,
// or the invalid Buffer if no class fits.
func (p *Pool) Alloc(size int) Buffer {
	switch {
	case size < 0:
		return InvalidBuffer()
	case size <= p.smallSize:
		bufPtr := p.small.Get().(*[]byte)
		return Buffer{base: *bufPtr, classSize: p.smallSize}
	case size <= p.mediumSize:
		bufPtr := p.medium.Get().(*[]byte)
		return Buffer{base: *bufPtr, classSize: p.mediumSize}
	case size <= p.largeSize:
		bufPtr := p.large.Get().(*[]byte)
		return Buffer{base: *bufPtr, classSize: p.largeSize}
	default:
		return InvalidBuffer()
	}
}

// Free returns a buffer to its slab class. Invalid buffers (e.g. from
// RX-borrowed message buffers) are ignored. Buffers whose class does not
// belong to this pool are dropped for the GC to collect.
func (p *Pool) Free(b Buffer) {
	if !b.IsValid() {
		return
	}

	buf := b.base
	switch b.classSize {
	case p.smallSize:
		p.small.Put(&buf)
	case p.mediumSize:
		p.medium.Put(&buf)
	case p.largeSize:
		p.large.Put(&buf)
	}
}
