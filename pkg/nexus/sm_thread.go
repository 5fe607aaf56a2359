package nexus

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/kramelec/eRPC/internal/ctrl"
	"github.com/kramelec/eRPC/internal/logger"
	"github.com/kramelec/eRPC/pkg/metrics"
	"github.com/kramelec/eRPC/pkg/mtlist"
	"github.com/kramelec/eRPC/pkg/wire"
)

// smThreadCtx is the session-management thread's working state. Installed
// fields are set by the Nexus before the thread starts; the maps below them
// are touched only by the SM thread.
type smThreadCtx struct {
	// Installed by the Nexus
	mgmtUDPPort  uint16
	pollInterval time.Duration
	core         int
	killSwitch   *atomic.Bool
	nexus        *Nexus
	smTxList     *mtlist.List[SmWorkItem] // SM packets to transmit
	host         *ctrl.Host
	metrics      metrics.NexusMetrics // nil disables collection

	// Mapping maintained for client-mode peers only
	nameMap map[string]*ctrl.Peer // remote hostname -> peer
}

// smPeerData is the metadata attached to client-mode peers. A peer whose
// Data is nil is server-mode (inbound); client-mode peers always carry one
// of these.
type smPeerData struct {
	remHostname string
	connected   bool
	txQueue     []SmWorkItem // work items to TX once the peer connects
}

// smThreadFunc is the session-management event loop. Each iteration drains
// the TX queue, then services control-transport events with a bounded wait
// so an idle control plane costs almost no CPU.
func smThreadFunc(ctx *smThreadCtx) {
	// The SM thread stays on one OS thread, pinned to its isolated core,
	// so control-plane jitter never lands on fast-path cores.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if ctx.core >= 0 {
		if err := pinToCore(ctx.core); err != nil {
			logger.Warn("sm thread core pinning failed",
				logger.KeyCore, ctx.core, logger.KeyError, err.Error())
		}
	}
	tid := ctx.nexus.tlsRegistry.RegisterThread()
	log := logger.With(logger.KeyThreadID, tid, logger.KeyUDPPort, ctx.mgmtUDPPort)
	log.Info("sm thread started")

	for !ctx.killSwitch.Load() {
		smThreadTx(ctx)
		smThreadRx(ctx)
	}

	smThreadDrain(ctx)
	ctx.host.Close()
	log.Info("sm thread exiting")
}

// smThreadTx transmits session-management packets enqueued by endpoint
// threads, connecting to peers as needed.
func smThreadTx(ctx *smThreadCtx) {
	items := ctx.smTxList.TryPopAll()
	for _, wi := range items {
		if wi.Peer != nil {
			// Respond on the peer the request arrived on.
			smThreadTxOne(ctx, wi, wi.Peer)
			continue
		}

		// Locally-originated items are routed by hostname: requests to
		// the session target, responses back to the session creator.
		dst := &wi.SmPkt.Server
		if !wi.SmPkt.IsReq() {
			dst = &wi.SmPkt.Client
		}
		hostname := dst.HostnameStr()

		peer, ok := ctx.nameMap[hostname]
		if !ok {
			smThreadConnect(ctx, wi, hostname, dst.SmUDPPort)
			continue
		}

		data := peer.Data.(*smPeerData)
		if data.connected {
			smThreadTxOne(ctx, wi, peer)
		} else {
			// Connect still in flight; park the item.
			data.txQueue = append(data.txQueue, wi)
			if ctx.metrics != nil {
				ctx.metrics.RecordSmPending()
			}
		}
	}
}

// smThreadConnect initiates an outbound connect for a work item whose peer
// does not exist yet. Unresolvable hostnames are rejected immediately, with
// an error response delivered to the submitting endpoint, so the SM loop
// never blocks on name resolution.
func smThreadConnect(ctx *smThreadCtx, wi SmWorkItem, hostname string, port uint16) {
	peer, err := ctx.host.Connect(hostname, port)
	if err != nil {
		logger.Warn("sm connect failed",
			logger.KeyHostname, hostname,
			logger.KeyUDPPort, port,
			logger.KeyError, err.Error())
		if ctx.metrics != nil {
			ctx.metrics.RecordSmDrop("connect_failed")
		}
		smThreadDeliverLocalErr(ctx, wi, wire.SmErrUnresolvable)
		return
	}

	peer.Data = &smPeerData{
		remHostname: hostname,
		txQueue:     []SmWorkItem{wi},
	}
	ctx.nameMap[hostname] = peer
	if ctx.metrics != nil {
		ctx.metrics.RecordSmPending()
	}
}

// smThreadTxOne serializes and reliably sends one work item's packet.
func smThreadTxOne(ctx *smThreadCtx, wi SmWorkItem, peer *ctrl.Peer) {
	if err := peer.Send(wi.SmPkt.Marshal()); err != nil {
		logger.Warn("sm packet send failed",
			logger.KeyPeer, peer.RemoteAddr(),
			logger.KeySmPkt, wi.SmPkt.PktType.String(),
			logger.KeyError, err.Error())
		if ctx.metrics != nil {
			ctx.metrics.RecordSmDrop("send_failed")
		}
		return
	}
	if ctx.metrics != nil {
		ctx.metrics.RecordSmTx(wi.SmPkt.PktType.String())
	}
}

// smThreadDeliverLocalErr bounces an error response for a locally-submitted
// request back to the submitting endpoint's SM RX mailbox.
func smThreadDeliverLocalErr(ctx *smThreadCtx, wi SmWorkItem, errType wire.SmErrType) {
	if !wi.SmPkt.IsReq() {
		return
	}
	resp := wi.SmPkt.RespFromReq(errType)
	hook := ctx.nexus.lookupHook(wi.RpcID)
	if hook == nil {
		return
	}
	hook.SmRxList.Push(SmWorkItem{RpcID: wi.RpcID, SmPkt: resp})
}

// smThreadRx services control-transport events with a bounded wait.
func smThreadRx(ctx *smThreadCtx) {
	ev, ok := ctx.host.Service(ctx.pollInterval)
	if !ok {
		return
	}

	switch ev.Type {
	case ctrl.EventConnect:
		smThreadHandleConnect(ctx, ev)
	case ctrl.EventReceive:
		smThreadHandleReceive(ctx, ev)
	case ctrl.EventDisconnect:
		smThreadHandleDisconnect(ctx, ev)
	}
}

// smThreadHandleConnect flushes the pending queue of a client-mode peer.
// Server-mode peers (Data == nil) need no action until a packet arrives.
func smThreadHandleConnect(ctx *smThreadCtx, ev ctrl.Event) {
	data, clientMode := ev.Peer.Data.(*smPeerData)
	if ctx.metrics != nil {
		ctx.metrics.RecordPeerEvent("connect", peerModeString(clientMode))
	}
	if !clientMode {
		return
	}

	data.connected = true
	logger.Debug("sm peer connected",
		logger.KeyHostname, data.remHostname,
		logger.KeyPeer, ev.Peer.RemoteAddr(),
		logger.KeyQueueDepth, len(data.txQueue))

	for _, wi := range data.txQueue {
		smThreadTxOne(ctx, wi, ev.Peer)
	}
	data.txQueue = nil
}

// smThreadHandleReceive parses an SM packet and enqueues it onto the target
// endpoint's SM RX mailbox. Packets for unregistered endpoints are dropped;
// the peer may be shutting down.
func smThreadHandleReceive(ctx *smThreadCtx, ev ctrl.Event) {
	pkt, err := wire.UnmarshalSmPkt(ev.Payload)
	if err != nil {
		logger.Warn("bad sm packet",
			logger.KeyPeer, ev.Peer.RemoteAddr(),
			logger.KeyError, err.Error())
		if ctx.metrics != nil {
			ctx.metrics.RecordSmDrop("parse_failed")
		}
		return
	}

	dst := pkt.DstRpcID()
	hook := ctx.nexus.lookupHook(dst)
	if hook == nil {
		logger.Debug("sm packet for unregistered endpoint, dropping",
			logger.KeyRpcID, dst,
			logger.KeySmPkt, pkt.PktType.String())
		if ctx.metrics != nil {
			ctx.metrics.RecordSmDrop("no_hook")
		}
		return
	}

	hook.SmRxList.Push(SmWorkItem{RpcID: dst, SmPkt: pkt, Peer: ev.Peer})
	if ctx.metrics != nil {
		ctx.metrics.RecordSmRx(pkt.PktType.String())
	}
}

// smThreadHandleDisconnect releases client-mode peer state. Server-mode
// peers have no bookkeeping to release.
func smThreadHandleDisconnect(ctx *smThreadCtx, ev ctrl.Event) {
	data, clientMode := ev.Peer.Data.(*smPeerData)
	if ctx.metrics != nil {
		ctx.metrics.RecordPeerEvent("disconnect", peerModeString(clientMode))
	}
	if !clientMode {
		return
	}

	logger.Info("sm peer disconnected",
		logger.KeyHostname, data.remHostname,
		logger.KeyPeer, ev.Peer.RemoteAddr())
	delete(ctx.nameMap, data.remHostname)
	ev.Peer.Data = nil
}

// smThreadDrain empties the TX queue and every per-peer pending queue at
// shutdown so no enqueued packet leaks past the thread's lifetime.
func smThreadDrain(ctx *smThreadCtx) {
	dropped := len(ctx.smTxList.TryPopAll())
	ctx.smTxList.Close()

	for _, peer := range ctx.nameMap {
		if data, ok := peer.Data.(*smPeerData); ok {
			dropped += len(data.txQueue)
			data.txQueue = nil
		}
	}
	if dropped > 0 {
		logger.Warn("sm thread dropped pending packets at shutdown",
			logger.KeyQueueDepth, dropped)
	}
	ctx.nameMap = make(map[string]*ctrl.Peer)
}

func peerModeString(clientMode bool) string {
	if clientMode {
		return "client"
	}
	return "server"
}
