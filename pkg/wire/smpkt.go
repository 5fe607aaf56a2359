package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unsafe"
)

// MaxHostnameLen is the fixed capacity of hostname fields in SM packets.
// Hostnames are NUL-padded; longer names are rejected at construction.
const MaxHostnameLen = 64

// SmPktSize is the wire size of a serialized SM packet.
const SmPktSize = int(unsafe.Sizeof(SmPkt{}))

// SmPktType enumerates the session-management control packet kinds.
type SmPktType uint8

const (
	SmConnectReq SmPktType = iota
	SmConnectResp
	SmDisconnectReq
	SmDisconnectResp
	SmReset
)

func (t SmPktType) String() string {
	switch t {
	case SmConnectReq:
		return "connect_req"
	case SmConnectResp:
		return "connect_resp"
	case SmDisconnectReq:
		return "disconnect_req"
	case SmDisconnectResp:
		return "disconnect_resp"
	case SmReset:
		return "reset"
	default:
		return "unknown"
	}
}

// SmErrType enumerates session-management error codes carried in responses.
type SmErrType uint8

const (
	SmErrNone SmErrType = iota
	// SmErrUnresolvable: the remote hostname could not be resolved.
	SmErrUnresolvable
	// SmErrReqFuncUnavailable: no request handler registered for the type.
	SmErrReqFuncUnavailable
	// SmErrInvalidRemoteRpcID: no hook registered for the target RPC ID.
	SmErrInvalidRemoteRpcID
	// SmErrPeerReset: the control-transport peer disconnected mid-session.
	SmErrPeerReset
)

func (e SmErrType) String() string {
	switch e {
	case SmErrNone:
		return "none"
	case SmErrUnresolvable:
		return "unresolvable"
	case SmErrReqFuncUnavailable:
		return "req_func_unavailable"
	case SmErrInvalidRemoteRpcID:
		return "invalid_remote_rpc_id"
	case SmErrPeerReset:
		return "peer_reset"
	default:
		return "unknown"
	}
}

// SessionEndpoint describes one end of a session in SM packets.
type SessionEndpoint struct {
	TransportType uint8  // data-plane transport discriminator
	RpcID         uint8  // RPC endpoint ID at this host
	SmUDPPort     uint16 // management UDP port of this host's Nexus
	SessionNum    uint16 // session number at this host
	_             uint16
	Hostname      [MaxHostnameLen]byte
}

// SetHostname stores name NUL-padded. Names longer than MaxHostnameLen-1
// bytes are an error; a trailing NUL is always preserved.
func (e *SessionEndpoint) SetHostname(name string) error {
	if len(name) >= MaxHostnameLen {
		return fmt.Errorf("hostname %q exceeds %d bytes", name, MaxHostnameLen-1)
	}
	e.Hostname = [MaxHostnameLen]byte{}
	copy(e.Hostname[:], name)
	return nil
}

// HostnameStr returns the hostname field as a Go string.
func (e *SessionEndpoint) HostnameStr() string {
	if i := bytes.IndexByte(e.Hostname[:], 0); i >= 0 {
		return string(e.Hostname[:i])
	}
	return string(e.Hostname[:])
}

func (e *SessionEndpoint) String() string {
	return fmt.Sprintf("[%s:%d, rpc %d, session %d]",
		e.HostnameStr(), e.SmUDPPort, e.RpcID, e.SessionNum)
}

// SmPkt is a session-management control packet. The struct layout is the
// wire layout; serialization is a native-order copy.
type SmPkt struct {
	PktType SmPktType
	ErrType SmErrType
	_       [6]uint8
	Client  SessionEndpoint // the session creator's endpoint
	Server  SessionEndpoint // the session target's endpoint
}

// IsReq reports whether this packet is a request (as opposed to a response
// or a reset, which flow server-to-client).
func (p *SmPkt) IsReq() bool {
	return p.PktType == SmConnectReq || p.PktType == SmDisconnectReq
}

// DstRpcID returns the RPC endpoint ID this packet should be demultiplexed
// to at the receiving host: requests go to the server-side endpoint,
// everything else to the client-side endpoint.
func (p *SmPkt) DstRpcID() uint8 {
	if p.IsReq() {
		return p.Server.RpcID
	}
	return p.Client.RpcID
}

// RespFromReq derives the matching response packet for a request, carrying
// the given error code. Endpoint metadata is echoed back unchanged.
func (p *SmPkt) RespFromReq(err SmErrType) SmPkt {
	resp := *p
	resp.ErrType = err
	switch p.PktType {
	case SmConnectReq:
		resp.PktType = SmConnectResp
	case SmDisconnectReq:
		resp.PktType = SmDisconnectResp
	}
	return resp
}

func (p *SmPkt) String() string {
	return fmt.Sprintf("[%s, err %s, client %s, server %s]",
		p.PktType, p.ErrType, p.Client.String(), p.Server.String())
}

// Marshal serializes the packet in native byte order.
func (p *SmPkt) Marshal() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, SmPktSize))
	// Write on a fixed-size struct cannot fail.
	_ = binary.Write(buf, binary.NativeEndian, p)
	return buf.Bytes()
}

// UnmarshalSmPkt parses a native-order SM packet.
func UnmarshalSmPkt(b []byte) (SmPkt, error) {
	var p SmPkt
	if len(b) != SmPktSize {
		return p, fmt.Errorf("sm packet is %d bytes, want %d", len(b), SmPktSize)
	}
	if err := binary.Read(bytes.NewReader(b), binary.NativeEndian, &p); err != nil {
		return p, fmt.Errorf("decode sm packet: %w", err)
	}
	return p, nil
}
