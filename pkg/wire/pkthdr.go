// Package wire defines the on-the-wire records shared by every peer in an
// eRPC cluster: the per-packet data-plane header that the transport DMAs
// alongside application payloads, and the session-management control packets
// exchanged by Nexus SM threads.
//
// Both records are fixed-size and serialized in native byte order. This is an
// intra-cluster protocol over homogeneous hardware; portability across byte
// orders is explicitly not claimed.
package wire

import "unsafe"

// PktHdrMagic is the compile-time magic constant carried by every data-plane
// packet header. It is identical on all peers and is what MsgBuffer validity
// checks look for.
const PktHdrMagic uint16 = 0x2f1d

// PktHdrSize is the wire size of a packet header in bytes. It is a multiple
// of the platform word size so that trailing header arrays stay aligned.
const PktHdrSize = int(unsafe.Sizeof(PktHdr{}))

// PktType identifies the role of a data-plane packet within a message.
type PktType uint8

const (
	// PktTypeReq is a request-message data packet.
	PktTypeReq PktType = iota
	// PktTypeRFR is a request-for-response credit packet.
	PktTypeRFR
	// PktTypeExplCR is an explicit credit return.
	PktTypeExplCR
	// PktTypeResp is a response-message data packet.
	PktTypeResp
)

func (t PktType) String() string {
	switch t {
	case PktTypeReq:
		return "req"
	case PktTypeRFR:
		return "rfr"
	case PktTypeExplCR:
		return "expl_cr"
	case PktTypeResp:
		return "resp"
	default:
		return "unknown"
	}
}

// PktHdr is the fixed-size header prepended to every wire packet. The
// transport reads and writes PktHdr values directly inside MsgBuffer memory;
// the struct layout below is the wire layout.
type PktHdr struct {
	Magic    uint16  // PktHdrMagic on every valid packet
	PktType  PktType // role of this packet within its message
	_        uint8
	MsgSize  uint32 // payload bytes in the full message, not this packet
	PktNum   uint16 // sequence number of this packet within its message
	LSessNum uint16 // session number at the sender
	RSessNum uint16 // session number at the receiver
	_        uint16
	ReqNum   uint64 // request number this packet belongs to
}

// HdrAt overlays a PktHdr on the given offset of a backing region. The caller
// guarantees that off is word-aligned and that PktHdrSize bytes are in range.
func HdrAt(b []byte, off int) *PktHdr {
	return (*PktHdr)(unsafe.Pointer(&b[off]))
}

// RoundUpWord rounds n up to the next multiple of the platform word size.
func RoundUpWord(n int) int {
	const word = int(unsafe.Sizeof(uintptr(0)))
	return (n + word - 1) &^ (word - 1)
}
