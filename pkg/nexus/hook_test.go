package nexus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBgWorkItemKind(t *testing.T) {
	req := BgWorkItem{Kind: BgWorkItemReq}
	resp := BgWorkItem{Kind: BgWorkItemResp}

	assert.True(t, req.IsReq())
	assert.False(t, resp.IsReq())
	assert.Equal(t, "request", BgWorkItemReq.String())
	assert.Equal(t, "response", BgWorkItemResp.String())
}

func TestNewHook(t *testing.T) {
	h := NewHook(11)
	assert.Equal(t, uint8(11), h.RpcID)
	assert.Nil(t, h.SmTxList, "queue references are installed by RegisterHook")

	// The owned mailbox is usable from the zero value.
	h.SmRxList.Push(SmWorkItem{RpcID: 11})
	assert.Len(t, h.SmRxList.TryPopAll(), 1)
}
