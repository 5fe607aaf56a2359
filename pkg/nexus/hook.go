package nexus

import (
	"github.com/kramelec/eRPC/internal/ctrl"
	"github.com/kramelec/eRPC/pkg/mtlist"
	"github.com/kramelec/eRPC/pkg/wire"
)

// ReqFunc is an application request handler, invoked by a background worker
// with the application context and the session slot of the in-flight
// request.
type ReqFunc func(reqContext any, s *SSlot)

// ContFunc is a response continuation, invoked when the response for a
// request submitted by this endpoint is processed in the background.
type ContFunc func(reqContext any, tag any)

// SSlot is the per-in-flight-request state threaded through background work
// items. The runtime core reads only what dispatch needs; everything else
// belongs to the endpoint.
type SSlot struct {
	// ReqType selects the request handler for request work items.
	ReqType uint8

	// Cont is the continuation invoked for response work items.
	Cont ContFunc

	// Tag is the application tag passed to the continuation.
	Tag any

	// Err is set by the runtime when dispatch fails (e.g. no handler for
	// ReqType); the continuation observes it.
	Err wire.SmErrType
}

// SmWorkItem is exchanged between RPC endpoint threads and the SM thread.
type SmWorkItem struct {
	// RpcID is the local endpoint the item belongs to.
	RpcID uint8

	// SmPkt is the session-management packet, by value.
	SmPkt wire.SmPkt

	// Peer is the control-transport peer to respond on. Nil for items
	// originated locally; the SM thread then connects by the hostname in
	// the packet.
	Peer *ctrl.Peer
}

// BgWorkItemKind discriminates background work items.
type BgWorkItemKind uint8

const (
	// BgWorkItemReq runs a registered request handler.
	BgWorkItemReq BgWorkItemKind = iota
	// BgWorkItemResp runs the response continuation on the session slot.
	BgWorkItemResp
)

func (k BgWorkItemKind) String() string {
	if k == BgWorkItemReq {
		return "request"
	}
	return "response"
}

// BgWorkItem is submitted to a background worker by an endpoint thread.
type BgWorkItem struct {
	Kind BgWorkItemKind

	// Hook identifies the submitting endpoint. Dispatch errors are
	// signaled through SSlot.Err and the slot's continuation, not through
	// the hook's SM RX mailbox.
	Hook *Hook

	// Context is the opaque application context for the handler.
	Context any

	// SSlot is the session slot of the in-flight request.
	SSlot *SSlot
}

// IsReq reports whether this item runs a request handler.
func (wi *BgWorkItem) IsReq() bool {
	return wi.Kind == BgWorkItemReq
}

// Hook is the per-endpoint mailbox and reference pack shared between an RPC
// endpoint and the Nexus. The endpoint allocates it and fills in RpcID;
// RegisterHook installs the queue references. The endpoint reads the
// installed references but never mutates them after registration, and must
// not enqueue work before RegisterHook returns or after UnregisterHook.
type Hook struct {
	// RpcID is the 8-bit ID of the endpoint that created this hook.
	RpcID uint8

	// BgReqLists are the background worker request queues, installed by
	// the Nexus. Only the first NumBgThreads entries are non-nil.
	BgReqLists [MaxBgThreads]*mtlist.List[BgWorkItem]

	// SmTxList is the SM thread's TX queue, installed by the Nexus.
	// Endpoint threads submit SM packets to the SM thread through it.
	SmTxList *mtlist.List[SmWorkItem]

	// SmRxList is this endpoint's SM RX mailbox, owned by the endpoint.
	// Packets received by the SM thread for this endpoint land here.
	SmRxList mtlist.List[SmWorkItem]
}

// NewHook returns a hook for the given endpoint ID, ready to register.
func NewHook(rpcID uint8) *Hook {
	return &Hook{RpcID: rpcID}
}
