// Package nexus implements the process-wide coordinator of the RPC runtime:
// the session-management thread speaking a reliable datagram protocol to
// peer Nexuses, the background worker pool that runs long request handlers
// off the fast path, the global request-handler table, and the registry of
// per-endpoint hooks. All cross-thread control traffic is mediated here;
// message buffers flow through the data-plane transport instead.
package nexus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kramelec/eRPC/internal/ctrl"
	"github.com/kramelec/eRPC/internal/logger"
	"github.com/kramelec/eRPC/internal/tlsreg"
	"github.com/kramelec/eRPC/internal/tsc"
	"github.com/kramelec/eRPC/pkg/metrics"
	"github.com/kramelec/eRPC/pkg/mtlist"
)

// Compile-time configuration constants.
const (
	// MaxRpcID is the largest RPC endpoint ID; the hook registry has
	// MaxRpcID+1 slots.
	MaxRpcID = 255

	// MaxBgThreads bounds the background worker pool.
	MaxBgThreads = 8

	// MaxReqTypes is the size of the request-handler table.
	MaxReqTypes = 256

	// DefaultSMThreadCore is the CPU core the SM thread is pinned to
	// unless overridden. Deployments isolate this core from the fast path.
	DefaultSMThreadCore = 15

	// DefaultSMPollInterval bounds each SM event-loop iteration.
	DefaultSMPollInterval = 50 * time.Millisecond
)

// Option tweaks Nexus construction.
type Option func(*options)

type options struct {
	smThreadCore   int
	smPollInterval time.Duration
	metrics        metrics.NexusMetrics
}

// WithSMThreadCore pins the SM thread to the given core; -1 disables
// pinning.
func WithSMThreadCore(core int) Option {
	return func(o *options) { o.smThreadCore = core }
}

// WithSMPollInterval overrides the SM event-loop wait bound.
func WithSMPollInterval(d time.Duration) Option {
	return func(o *options) { o.smPollInterval = d }
}

// WithMetrics attaches a metrics sink. Nil (the default) disables
// collection with zero overhead.
func WithMetrics(m metrics.NexusMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// Nexus is the one-per-process coordinator. Create it with New, share it
// among all endpoint threads, and Close it after every endpoint has
// unregistered.
type Nexus struct {
	// Read-mostly fields, set at construction and never written again.

	freqGHz      float64 // measured TSC frequency
	hostname     string  // the local host, as peers will dial it
	numBgThreads int
	tlsRegistry  tlsreg.Registry

	// reqFuncArr is the ground truth for registered request handlers.
	// Background workers hold a pointer to it, not a copy: they are
	// launched before registration opens, and observe later registrations
	// through the pointer.
	reqFuncArr [MaxReqTypes]ReqFunc

	// Padding separates the read-mostly fields above from the mutable
	// fields below, so writers never bounce cache lines under readers.
	_ [64]byte

	mu sync.Mutex // guards the two fields below

	// reqFuncRegistrationAllowed flips to false at the first successful
	// RegisterHook and never resets.
	reqFuncRegistrationAllowed bool

	// regHooksArr maps each endpoint ID to at most one registered hook.
	regHooksArr [MaxRpcID + 1]*Hook

	// killSwitch turns off the SM thread and background workers. Single
	// writer (Close); readers poll at loop tops.
	killSwitch atomic.Bool

	smCtx  *smThreadCtx
	smDone chan struct{}

	bgCtxs []*bgThreadCtx
	bgWg   sync.WaitGroup

	metrics metrics.NexusMetrics // nil disables collection
}

// New creates the one-per-process Nexus.
//
// hostname is this host's name as every peer will dial it. mgmtUDPPort is
// the UDP port all Nexuses in the cluster use for session management.
// numBgThreads background workers are spawned before handler registration
// opens.
//
// Construction fails if the port cannot be bound, the control transport
// cannot initialize, or numBgThreads exceeds MaxBgThreads. On failure no
// Nexus is produced and nothing is left running.
func New(hostname string, mgmtUDPPort uint16, numBgThreads int, opts ...Option) (*Nexus, error) {
	if numBgThreads < 0 || numBgThreads > MaxBgThreads {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyBgThreads, numBgThreads, MaxBgThreads)
	}

	o := options{
		smThreadCore:   DefaultSMThreadCore,
		smPollInterval: DefaultSMPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	n := &Nexus{
		hostname:                   hostname,
		numBgThreads:               numBgThreads,
		reqFuncRegistrationAllowed: true,
		smDone:                     make(chan struct{}),
		metrics:                    o.metrics,
	}

	// One-shot TSC calibration; cached for the life of the process.
	n.freqGHz = tsc.MeasureFreqGHz()
	logger.Info("measured TSC frequency", logger.KeyFreqGHz, fmt.Sprintf("%.3f", n.freqGHz))

	// Workers must exist before any handler registration is accepted:
	// they hold a pointer to the handler table, so registrations that
	// happen after spawn are still observed.
	for i := 0; i < numBgThreads; i++ {
		ctx := &bgThreadCtx{
			index:       i,
			killSwitch:  &n.killSwitch,
			reqFuncArr:  &n.reqFuncArr,
			tlsRegistry: &n.tlsRegistry,
			reqList:     mtlist.New[BgWorkItem](),
			metrics:     n.metrics,
		}
		n.bgCtxs = append(n.bgCtxs, ctx)
		n.bgWg.Add(1)
		go func() {
			defer n.bgWg.Done()
			bgThreadFunc(ctx)
		}()
	}

	host, err := ctrl.NewHost(mgmtUDPPort)
	if err != nil {
		n.stopBgThreads()
		return nil, fmt.Errorf("nexus: control transport init: %w", err)
	}

	n.smCtx = &smThreadCtx{
		mgmtUDPPort:  mgmtUDPPort,
		pollInterval: o.smPollInterval,
		core:         o.smThreadCore,
		killSwitch:   &n.killSwitch,
		nexus:        n,
		smTxList:     mtlist.New[SmWorkItem](),
		host:         host,
		nameMap:      make(map[string]*ctrl.Peer),
		metrics:      n.metrics,
	}
	go func() {
		defer close(n.smDone)
		smThreadFunc(n.smCtx)
	}()

	logger.Info("nexus created",
		logger.KeyHostname, hostname,
		logger.KeyUDPPort, mgmtUDPPort,
		"num_bg_threads", numBgThreads)
	return n, nil
}

// FreqGHz returns the TSC frequency measured at construction.
func (n *Nexus) FreqGHz() float64 { return n.freqGHz }

// Hostname returns the local hostname the Nexus was created with.
func (n *Nexus) Hostname() string { return n.hostname }

// NumBgThreads returns the background worker count.
func (n *Nexus) NumBgThreads() int { return n.numBgThreads }

// TlsRegistry returns the per-process thread ID registry.
func (n *Nexus) TlsRegistry() *tlsreg.Registry { return &n.tlsRegistry }

// RegisterReqFunc installs an application request handler for reqType.
// It must be called before any endpoint registers a hook: the first
// successful RegisterHook freezes the table for the life of the Nexus.
func (n *Nexus) RegisterReqFunc(reqType uint8, fn ReqFunc) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.reqFuncRegistrationAllowed {
		return fmt.Errorf("register req type %d: %w", reqType, ErrRegistrationClosed)
	}
	if n.reqFuncArr[reqType] != nil {
		return fmt.Errorf("register req type %d: %w", reqType, ErrReqTypeOccupied)
	}
	if fn == nil {
		return fmt.Errorf("register req type %d: %w", reqType, ErrInvalidHandler)
	}

	n.reqFuncArr[reqType] = fn
	return nil
}

// RegisterHook registers an endpoint's hook and installs into it the SM TX
// queue and every background worker's request queue. The first successful
// call closes request-handler registration.
//
// Registering two hooks for the same RPC ID without an intervening
// unregister is a programmer bug and panics.
func (n *Nexus) RegisterHook(hook *Hook) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.regHooksArr[hook.RpcID] != nil {
		panic(fmt.Sprintf("nexus: hook for rpc id %d already registered", hook.RpcID))
	}

	hook.SmTxList = n.smCtx.smTxList
	for i, ctx := range n.bgCtxs {
		hook.BgReqLists[i] = ctx.reqList
	}

	// The endpoint is about to start reading the handler table; freeze it.
	n.reqFuncRegistrationAllowed = false
	n.regHooksArr[hook.RpcID] = hook

	logger.Info("hook registered", logger.KeyRpcID, hook.RpcID)
}

// UnregisterHook clears the endpoint's registry slot. The endpoint must not
// touch the installed queue references afterwards.
func (n *Nexus) UnregisterHook(hook *Hook) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.regHooksArr[hook.RpcID] = nil
	logger.Info("hook unregistered", logger.KeyRpcID, hook.RpcID)
}

// RpcIDExists reports whether a hook is registered for rpcID. The caller
// must not hold the Nexus lock.
func (n *Nexus) RpcIDExists(rpcID uint8) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.regHooksArr[rpcID] != nil
}

// lookupHook is used by the SM thread when demultiplexing received packets.
// It takes the registry lock; registration traffic is rare and never on the
// data path, so the lock is uncontended.
func (n *Nexus) lookupHook(rpcID uint8) *Hook {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.regHooksArr[rpcID]
}

// liveHooks returns the registered endpoint IDs, for the teardown check.
func (n *Nexus) liveHooks() []uint8 {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ids []uint8
	for id, h := range n.regHooksArr {
		if h != nil {
			ids = append(ids, uint8(id))
		}
	}
	return ids
}

// Close shuts the Nexus down: it sets the kill switch, joins the SM thread
// and every background worker, drains pending control traffic, and tears
// down the control-transport host. Endpoints must be unregistered first;
// closing with live hooks is a usage bug.
func (n *Nexus) Close() {
	if live := n.liveHooks(); len(live) > 0 {
		panic(fmt.Sprintf("nexus: close with %d live hooks (rpc ids %v)", len(live), live))
	}

	n.killSwitch.Store(true)
	n.stopBgThreads()

	// The SM thread observes the kill switch at its next loop top, drains
	// pending packets, and closes the control host.
	<-n.smDone

	n.tlsRegistry.Reset()
	logger.Info("nexus destroyed", logger.KeyHostname, n.hostname)
}

func (n *Nexus) stopBgThreads() {
	for _, ctx := range n.bgCtxs {
		ctx.reqList.Close()
	}
	n.bgWg.Wait()
}
