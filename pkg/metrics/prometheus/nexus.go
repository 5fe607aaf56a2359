// Package prometheus implements the runtime's metrics interfaces on top of
// prometheus/client_golang.
package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NexusMetrics implements metrics.NexusMetrics with Prometheus collectors
// registered on the given registerer.
type NexusMetrics struct {
	smTx         *prometheus.CounterVec
	smRx         *prometheus.CounterVec
	smDrops      *prometheus.CounterVec
	smPending    prometheus.Counter
	peerEvents   *prometheus.CounterVec
	bgDispatches *prometheus.CounterVec
	bgQueueDepth *prometheus.GaugeVec
}

// NewNexusMetrics creates and registers the Nexus collectors. Pass
// prometheus.DefaultRegisterer for the usual process-wide registry.
func NewNexusMetrics(reg prometheus.Registerer) *NexusMetrics {
	factory := promauto.With(reg)

	return &NexusMetrics{
		smTx: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "erpc_sm_tx_packets_total",
			Help: "Session-management packets handed to the control transport.",
		}, []string{"kind"}),
		smRx: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "erpc_sm_rx_packets_total",
			Help: "Session-management packets demultiplexed to endpoint mailboxes.",
		}, []string{"kind"}),
		smDrops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "erpc_sm_dropped_packets_total",
			Help: "Session-management packets dropped before delivery.",
		}, []string{"reason"}),
		smPending: factory.NewCounter(prometheus.CounterOpts{
			Name: "erpc_sm_pending_work_items_total",
			Help: "Work items parked while an outbound connect is in flight.",
		}),
		peerEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "erpc_sm_peer_events_total",
			Help: "Control-transport peer events by event and peer mode.",
		}, []string{"event", "mode"}),
		bgDispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "erpc_bg_dispatches_total",
			Help: "Background work items dispatched by kind.",
		}, []string{"kind"}),
		bgQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "erpc_bg_queue_depth",
			Help: "Background worker queue depth observed at drain time.",
		}, []string{"worker"}),
	}
}

func (m *NexusMetrics) RecordSmTx(pktKind string) {
	m.smTx.WithLabelValues(pktKind).Inc()
}

func (m *NexusMetrics) RecordSmRx(pktKind string) {
	m.smRx.WithLabelValues(pktKind).Inc()
}

func (m *NexusMetrics) RecordSmDrop(reason string) {
	m.smDrops.WithLabelValues(reason).Inc()
}

func (m *NexusMetrics) RecordSmPending() {
	m.smPending.Inc()
}

func (m *NexusMetrics) RecordPeerEvent(event, mode string) {
	m.peerEvents.WithLabelValues(event, mode).Inc()
}

func (m *NexusMetrics) RecordBgDispatch(kind string) {
	m.bgDispatches.WithLabelValues(kind).Inc()
}

func (m *NexusMetrics) ObserveBgQueueDepth(worker int, depth int) {
	m.bgQueueDepth.WithLabelValues(strconv.Itoa(worker)).Set(float64(depth))
}
