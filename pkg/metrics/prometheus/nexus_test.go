package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNexusMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewNexusMetrics(reg)

	m.RecordSmTx("connect_req")
	m.RecordSmTx("connect_req")
	m.RecordSmRx("connect_resp")
	m.RecordSmDrop("no_hook")
	m.RecordSmPending()
	m.RecordPeerEvent("connect", "client")
	m.RecordBgDispatch("request")
	m.ObserveBgQueueDepth(0, 17)

	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.smTx.WithLabelValues("connect_req")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.smRx.WithLabelValues("connect_resp")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.smDrops.WithLabelValues("no_hook")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.smPending))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.peerEvents.WithLabelValues("connect", "client")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.bgDispatches.WithLabelValues("request")))
	assert.Equal(t, float64(17),
		testutil.ToFloat64(m.bgQueueDepth.WithLabelValues("0")))

	// All collectors landed in the registry.
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 7)
}
