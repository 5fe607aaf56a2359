package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkConnectReq(t *testing.T) SmPkt {
	t.Helper()

	pkt := SmPkt{PktType: SmConnectReq, ErrType: SmErrNone}
	pkt.Client.RpcID = 7
	pkt.Client.SmUDPPort = 31850
	pkt.Client.SessionNum = 3
	require.NoError(t, pkt.Client.SetHostname("client-0"))
	pkt.Server.RpcID = 9
	pkt.Server.SmUDPPort = 31851
	require.NoError(t, pkt.Server.SetHostname("server-0"))
	return pkt
}

func TestSmPktDemux(t *testing.T) {
	pkt := mkConnectReq(t)

	// Requests demux to the server-side endpoint, responses back to the
	// client-side endpoint.
	assert.True(t, pkt.IsReq())
	assert.Equal(t, uint8(9), pkt.DstRpcID())

	resp := pkt.RespFromReq(SmErrNone)
	assert.Equal(t, SmConnectResp, resp.PktType)
	assert.False(t, resp.IsReq())
	assert.Equal(t, uint8(7), resp.DstRpcID())
	assert.Equal(t, "client-0", resp.Client.HostnameStr())

	disc := SmPkt{PktType: SmDisconnectReq}
	dresp := disc.RespFromReq(SmErrPeerReset)
	assert.Equal(t, SmDisconnectResp, dresp.PktType)
	assert.Equal(t, SmErrPeerReset, dresp.ErrType)
}

func TestSmPktRoundTrip(t *testing.T) {
	pkt := mkConnectReq(t)

	b := pkt.Marshal()
	require.Len(t, b, SmPktSize)

	got, err := UnmarshalSmPkt(b)
	require.NoError(t, err)
	assert.Equal(t, pkt, got)
	assert.Equal(t, "server-0", got.Server.HostnameStr())
}

func TestSmPktUnmarshalShort(t *testing.T) {
	_, err := UnmarshalSmPkt(make([]byte, SmPktSize-1))
	assert.Error(t, err)
}

func TestSetHostnameTooLong(t *testing.T) {
	var e SessionEndpoint
	long := make([]byte, MaxHostnameLen)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, e.SetHostname(string(long)))
	assert.NoError(t, e.SetHostname(string(long[:MaxHostnameLen-1])))
}
