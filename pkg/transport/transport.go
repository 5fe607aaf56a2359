// Package transport defines the data-plane capability set the RPC runtime is
// parameterized by. Concrete drivers (RDMA, DPDK, loopback) implement the
// interface and are chosen at endpoint-construction time; the runtime core
// never depends on a specific driver.
package transport

import "github.com/kramelec/eRPC/pkg/msgbuf"

// Transport is the data-plane capability set: registered-memory allocation
// and burst packet I/O. Implementations write packet headers directly into
// the header locations defined by the MsgBuffer layout.
type Transport interface {
	// AllocBuffer returns a registered backing buffer of at least the given
	// size, or the invalid Buffer on allocation failure.
	AllocBuffer(size int) msgbuf.Buffer

	// FreeBuffer returns a backing buffer to its slab class. Invalid
	// buffers are ignored.
	FreeBuffer(b msgbuf.Buffer)

	// TxBurst queues the message buffers for transmission and returns the
	// number accepted. Accepted buffers are owned by the transport until
	// their packets have been put on the wire.
	TxBurst(batch []*msgbuf.MsgBuffer) int

	// RxBurst returns message buffers for packets received since the last
	// call. Each wraps a single received packet and borrows transport-owned
	// memory; the caller must finish with them before the next RxBurst.
	RxBurst() []*msgbuf.MsgBuffer
}

// MTU of the loopback transport. Drivers export their own.
const LoopbackMTU = 4096
