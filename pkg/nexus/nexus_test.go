package nexus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kramelec/eRPC/pkg/wire"
)

// newTestNexus creates a Nexus on the given port with pinning disabled and
// a fast poll interval, and tears it down with the test.
func newTestNexus(t *testing.T, port uint16, numBg int) *Nexus {
	t.Helper()
	n, err := New("localhost", port, numBg,
		WithSMThreadCore(-1),
		WithSMPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(n.Close)
	return n
}

func TestRegisterReqFuncExactlyOnce(t *testing.T) {
	n := newTestNexus(t, 32850, 0)

	handler := func(reqContext any, s *SSlot) {}
	require.NoError(t, n.RegisterReqFunc(3, handler))

	// A second registration on the same type fails without touching the
	// installed handler.
	err := n.RegisterReqFunc(3, func(reqContext any, s *SSlot) { t.Fatal("must not install") })
	assert.ErrorIs(t, err, ErrReqTypeOccupied)

	assert.ErrorIs(t, n.RegisterReqFunc(4, nil), ErrInvalidHandler)
	assert.NoError(t, n.RegisterReqFunc(4, handler))
}

func TestRegistrationClosesAtFirstHook(t *testing.T) {
	n := newTestNexus(t, 32851, 2)

	var calls atomic.Int32
	require.NoError(t, n.RegisterReqFunc(1, func(reqContext any, s *SSlot) {
		calls.Add(1)
	}))

	hook := NewHook(5)
	n.RegisterHook(hook)
	defer n.UnregisterHook(hook)

	// The handler table is frozen now.
	err := n.RegisterReqFunc(2, func(reqContext any, s *SSlot) {})
	assert.ErrorIs(t, err, ErrRegistrationClosed)

	// Worker 0 still dispatches the handler registered before closure.
	require.NotNil(t, hook.BgReqLists[0])
	hook.BgReqLists[0].Push(BgWorkItem{
		Kind:  BgWorkItemReq,
		Hook:  hook,
		SSlot: &SSlot{ReqType: 1},
	})

	require.Eventually(t, func() bool { return calls.Load() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestUniqueHookSlots(t *testing.T) {
	n := newTestNexus(t, 32852, 0)

	hook := NewHook(7)
	n.RegisterHook(hook)

	// Same slot, no intervening unregister: a programmer bug.
	assert.Panics(t, func() { n.RegisterHook(NewHook(7)) })

	assert.True(t, n.RpcIDExists(7))
	assert.False(t, n.RpcIDExists(8))

	n.UnregisterHook(hook)
	assert.False(t, n.RpcIDExists(7))

	// The slot is reusable after unregistration.
	hook2 := NewHook(7)
	n.RegisterHook(hook2)
	n.UnregisterHook(hook2)
}

func TestHookInstalledReferences(t *testing.T) {
	n := newTestNexus(t, 32853, 2)

	hook := NewHook(1)
	n.RegisterHook(hook)
	defer n.UnregisterHook(hook)

	assert.NotNil(t, hook.SmTxList)
	assert.NotNil(t, hook.BgReqLists[0])
	assert.NotNil(t, hook.BgReqLists[1])
	for i := 2; i < MaxBgThreads; i++ {
		assert.Nil(t, hook.BgReqLists[i])
	}
}

func TestHandlerDispatch(t *testing.T) {
	n := newTestNexus(t, 32854, 1)

	type appCtx struct{ hits int32 }
	myCtx := &appCtx{}

	var gotSlot atomic.Pointer[SSlot]
	require.NoError(t, n.RegisterReqFunc(3, func(reqContext any, s *SSlot) {
		atomic.AddInt32(&reqContext.(*appCtx).hits, 1)
		gotSlot.Store(s)
	}))

	hook := NewHook(2)
	n.RegisterHook(hook)
	defer n.UnregisterHook(hook)

	slot := &SSlot{ReqType: 3}
	hook.BgReqLists[0].Push(BgWorkItem{
		Kind:    BgWorkItemReq,
		Hook:    hook,
		Context: myCtx,
		SSlot:   slot,
	})

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&myCtx.hits) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Same(t, slot, gotSlot.Load())

	// Exactly once: no further invocations arrive.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&myCtx.hits))
}

func TestDispatchMissRunsContinuationWithError(t *testing.T) {
	n := newTestNexus(t, 32855, 1)

	errs := make(chan wire.SmErrType, 1)
	slot := &SSlot{
		ReqType: 99, // never registered
		Cont: func(reqContext any, tag any) {
			errs <- tag.(*SSlot).Err
		},
	}
	slot.Tag = slot

	hook := NewHook(4)
	n.RegisterHook(hook)
	defer n.UnregisterHook(hook)

	hook.BgReqLists[0].Push(BgWorkItem{
		Kind:  BgWorkItemReq,
		Hook:  hook,
		SSlot: slot,
	})

	select {
	case errType := <-errs:
		assert.Equal(t, wire.SmErrReqFuncUnavailable, errType)
	case <-time.After(time.Second):
		t.Fatal("continuation not invoked for dispatch miss")
	}
}

func TestResponseDispatch(t *testing.T) {
	n := newTestNexus(t, 32856, 1)

	hook := NewHook(6)
	n.RegisterHook(hook)
	defer n.UnregisterHook(hook)

	done := make(chan any, 1)
	slot := &SSlot{
		Cont: func(reqContext any, tag any) { done <- tag },
		Tag:  "tag-77",
	}
	hook.BgReqLists[0].Push(BgWorkItem{Kind: BgWorkItemResp, Hook: hook, SSlot: slot})

	select {
	case tag := <-done:
		assert.Equal(t, "tag-77", tag)
	case <-time.After(time.Second):
		t.Fatal("response continuation not invoked")
	}
}

func TestTooManyBgThreads(t *testing.T) {
	_, err := New("localhost", 32857, MaxBgThreads+1)
	assert.ErrorIs(t, err, ErrTooManyBgThreads)
}

func TestPortConflict(t *testing.T) {
	n := newTestNexus(t, 32858, 0)
	_ = n

	_, err := New("localhost", 32858, 0, WithSMThreadCore(-1))
	assert.Error(t, err)
}

func TestTeardownJoinsAllThreads(t *testing.T) {
	n, err := New("localhost", 32859, 4,
		WithSMThreadCore(-1),
		WithSMPollInterval(5*time.Millisecond))
	require.NoError(t, err)

	// 4 background workers plus the SM thread all return within a bounded
	// join timeout.
	done := make(chan struct{})
	go func() {
		n.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("teardown did not join all threads in time")
	}
}

func TestCloseWithLiveHookPanics(t *testing.T) {
	n, err := New("localhost", 32860, 0,
		WithSMThreadCore(-1),
		WithSMPollInterval(5*time.Millisecond))
	require.NoError(t, err)

	hook := NewHook(1)
	n.RegisterHook(hook)

	assert.Panics(t, n.Close)

	n.UnregisterHook(hook)
	n.Close()
}

func TestFreqAndAccessors(t *testing.T) {
	n := newTestNexus(t, 32861, 1)

	assert.Greater(t, n.FreqGHz(), 0.1)
	assert.Equal(t, "localhost", n.Hostname())
	assert.Equal(t, 1, n.NumBgThreads())
	// SM thread and one worker have registered with the TLS registry.
	require.Eventually(t, func() bool {
		return n.TlsRegistry().ThreadCount() >= 2
	}, time.Second, 5*time.Millisecond)
}
