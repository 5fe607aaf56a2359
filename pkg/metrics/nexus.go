// Package metrics defines the observability interfaces consumed by the RPC
// runtime. Implementations are optional: pass nil to disable collection with
// zero overhead on the hot paths.
package metrics

// NexusMetrics provides observability for the Nexus control plane and the
// background worker pool.
type NexusMetrics interface {
	// RecordSmTx records a session-management packet handed to the control
	// transport, labeled by packet kind.
	RecordSmTx(pktKind string)

	// RecordSmRx records a session-management packet received and
	// demultiplexed to an endpoint mailbox.
	RecordSmRx(pktKind string)

	// RecordSmDrop records a session-management packet dropped before
	// delivery (no hook registered, parse failure, unresolvable peer).
	RecordSmDrop(reason string)

	// RecordSmPending records a work item parked on a per-peer pending
	// queue while the outbound connect is in flight.
	RecordSmPending()

	// RecordPeerEvent records a control-transport peer event, labeled by
	// event (connect, disconnect) and peer mode (client, server).
	RecordPeerEvent(event, mode string)

	// RecordBgDispatch records one background work item dispatched, labeled
	// by kind (request, response).
	RecordBgDispatch(kind string)

	// ObserveBgQueueDepth records a worker's queue depth at drain time.
	ObserveBgQueueDepth(worker int, depth int)
}
