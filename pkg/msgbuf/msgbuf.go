package msgbuf

import (
	"fmt"

	"github.com/kramelec/eRPC/pkg/wire"
)

// MsgBuffer is a view over a backing region that arranges space for multiple
// packet headers plus a contiguous payload. The layout is
//
//	[ pkthdr_0 | payload[0..maxDataSize) | pad | pkthdr_1 ... pkthdr_{maxNumPkts-1} ]
//
// pkthdr_0 immediately precedes the payload so the first wire packet is one
// contiguous range. Trailing headers live past the payload, word-aligned,
// at offsets computed from maxDataSize (the allocation size), never
// dataSize, so headers never move when the message is resized.
//
// A MsgBuffer is exclusively owned by one component at a time: the transport
// while packets are in flight, the endpoint otherwise. There is no reference
// counting.
type MsgBuffer struct {
	base   []byte // full backing region, pkthdr_0 at offset 0
	buffer Buffer // backing slab buffer; invalid for RX-borrowed views

	maxDataSize int // payload capacity
	dataSize    int // current payload bytes, <= maxDataSize
	maxNumPkts  int // packet capacity, >= 1
	numPkts     int // current packets, <= maxNumPkts

	// Progress counter. Interpreted as packets queued for tx_burst on the
	// TX path and packets received from rx_burst on the RX path; the two
	// uses are mutually exclusive and never observed concurrently.
	pktsProgress int
}

// RegionSize returns the backing bytes needed for a MsgBuffer with the given
// payload and packet capacity.
func RegionSize(maxDataSize, maxNumPkts int) int {
	return wire.PktHdrSize + wire.RoundUpWord(maxDataSize) + (maxNumPkts-1)*wire.PktHdrSize
}

// NewMsgBuffer constructs an owning MsgBuffer over a valid backing buffer.
// The zeroth packet header is placed at the start of the backing region and
// its magic is set here, exactly once; Resize preserves it.
//
// The buffer's class size must cover the payload plus all headers, and
// maxNumPkts must be at least 1. Violations are programmer bugs and panic.
func NewMsgBuffer(buffer Buffer, maxDataSize, maxNumPkts int) *MsgBuffer {
	if !buffer.IsValid() {
		panic("msgbuf: construction from invalid buffer")
	}
	if maxNumPkts < 1 {
		panic("msgbuf: maxNumPkts must be >= 1")
	}
	if buffer.ClassSize() < RegionSize(maxDataSize, maxNumPkts) {
		panic(fmt.Sprintf("msgbuf: class size %d short of %d bytes for %d data, %d pkts",
			buffer.ClassSize(), RegionSize(maxDataSize, maxNumPkts), maxDataSize, maxNumPkts))
	}

	m := &MsgBuffer{
		base:        buffer.Base(),
		buffer:      buffer,
		maxDataSize: maxDataSize,
		dataSize:    maxDataSize,
		maxNumPkts:  maxNumPkts,
		numPkts:     maxNumPkts,
	}
	m.PktHdr0().Magic = wire.PktHdrMagic
	return m
}

// NewRxMsgBuffer constructs a single-packet, non-owning MsgBuffer that
// borrows one received packet. pkt holds pkthdr_0 followed by up to
// maxDataSize payload bytes; the backing Buffer is the invalid sentinel and
// nothing is returned to the slab on release. The embedded header is left
// untouched, so validity reflects what actually arrived on the wire.
func NewRxMsgBuffer(pkt []byte, maxDataSize int) *MsgBuffer {
	if len(pkt) < wire.PktHdrSize+maxDataSize {
		panic(fmt.Sprintf("msgbuf: rx packet is %d bytes, need %d",
			len(pkt), wire.PktHdrSize+maxDataSize))
	}

	return &MsgBuffer{
		base:        pkt,
		buffer:      InvalidBuffer(),
		maxDataSize: maxDataSize,
		dataSize:    maxDataSize,
		maxNumPkts:  1,
		numPkts:     1,
	}
}

// InvalidMsgBuffer returns a MsgBuffer with no backing region.
func InvalidMsgBuffer() *MsgBuffer {
	return &MsgBuffer{}
}

// IsValid reports whether the buffer has a backing region whose zeroth
// packet header carries the magic constant.
func (m *MsgBuffer) IsValid() bool {
	return m.base != nil && m.PktHdr0().Magic == wire.PktHdrMagic
}

// PktHdr0 returns the pre-appended packet header. The header and the payload
// form one contiguous range, so the first packet needs a single
// scatter-gather entry.
func (m *MsgBuffer) PktHdr0() *wire.PktHdr {
	return wire.HdrAt(m.base, 0)
}

// PktHdrN returns the nth packet header for n >= 1, from the trailing array
// past the payload region. The offset uses maxDataSize, not dataSize.
func (m *MsgBuffer) PktHdrN(n int) *wire.PktHdr {
	if n < 1 {
		panic("msgbuf: PktHdrN requires n >= 1")
	}
	off := wire.PktHdrSize + wire.RoundUpWord(m.maxDataSize) + (n-1)*wire.PktHdrSize
	return wire.HdrAt(m.base, off)
}

// Buf returns the current payload region.
func (m *MsgBuffer) Buf() []byte {
	return m.base[wire.PktHdrSize : wire.PktHdrSize+m.dataSize]
}

// DataSize returns the current payload size.
func (m *MsgBuffer) DataSize() int { return m.dataSize }

// MaxDataSize returns the payload capacity.
func (m *MsgBuffer) MaxDataSize() int { return m.maxDataSize }

// NumPkts returns the current packet count.
func (m *MsgBuffer) NumPkts() int { return m.numPkts }

// MaxNumPkts returns the packet capacity.
func (m *MsgBuffer) MaxNumPkts() int { return m.maxNumPkts }

// Buffer returns the backing slab buffer; invalid for RX-borrowed views.
// The caller that releases the MsgBuffer returns it to its slab class.
func (m *MsgBuffer) Buffer() Buffer { return m.buffer }

// PktsQueued returns the TX-path progress counter.
func (m *MsgBuffer) PktsQueued() int { return m.pktsProgress }

// SetPktsQueued sets the TX-path progress counter.
func (m *MsgBuffer) SetPktsQueued(n int) { m.pktsProgress = n }

// PktsRcvd returns the RX-path progress counter.
func (m *MsgBuffer) PktsRcvd() int { return m.pktsProgress }

// SetPktsRcvd sets the RX-path progress counter.
func (m *MsgBuffer) SetPktsRcvd(n int) { m.pktsProgress = n }

// Resize shrinks the logical sizes of the MsgBuffer. It never reallocates
// and never moves headers, so header pointers held by the transport stay
// valid across resizes. Growing past the allocation is a programmer bug.
func (m *MsgBuffer) Resize(newDataSize, newNumPkts int) {
	if newDataSize > m.maxDataSize {
		panic(fmt.Sprintf("msgbuf: resize data %d past max %d", newDataSize, m.maxDataSize))
	}
	if newNumPkts > m.maxNumPkts {
		panic(fmt.Sprintf("msgbuf: resize pkts %d past max %d", newNumPkts, m.maxNumPkts))
	}
	m.dataSize = newDataSize
	m.numPkts = newNumPkts
}

func (m *MsgBuffer) String() string {
	if m.base == nil {
		return "[Invalid]"
	}
	return fmt.Sprintf("[buf %p, buffer %s, data %d(%d), pkts %d(%d), pkts queued/rcvd %d]",
		&m.base[0], m.buffer.String(), m.dataSize, m.maxDataSize,
		m.numPkts, m.maxNumPkts, m.pktsProgress)
}
