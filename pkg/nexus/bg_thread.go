package nexus

import (
	"sync/atomic"

	"github.com/kramelec/eRPC/internal/logger"
	"github.com/kramelec/eRPC/internal/tlsreg"
	"github.com/kramelec/eRPC/pkg/metrics"
	"github.com/kramelec/eRPC/pkg/mtlist"
	"github.com/kramelec/eRPC/pkg/wire"
)

// bgThreadCtx is one background worker's state.
type bgThreadCtx struct {
	index       int
	killSwitch  *atomic.Bool
	tlsRegistry *tlsreg.Registry

	// reqFuncArr points at the Nexus's handler table. Workers are launched
	// before request functions are registered, so they must not copy it;
	// late registrations are observed through the pointer.
	reqFuncArr *[MaxReqTypes]ReqFunc

	// reqList is this worker's request queue. Endpoints push through the
	// references the Nexus installs into their hooks.
	reqList *mtlist.List[BgWorkItem]

	metrics metrics.NexusMetrics // nil disables collection
}

// bgThreadFunc runs one background worker: block until work arrives or the
// Nexus shuts the queue, then dispatch each item. No lock is held across a
// handler invocation; handlers may submit further work to any endpoint
// through its hook.
func bgThreadFunc(ctx *bgThreadCtx) {
	tid := ctx.tlsRegistry.RegisterThread()
	log := logger.With(logger.KeyBgThread, ctx.index, logger.KeyThreadID, tid)
	log.Info("background thread started")

	for !ctx.killSwitch.Load() {
		items, ok := ctx.reqList.PopAll()
		if !ok {
			break
		}
		if ctx.metrics != nil {
			ctx.metrics.ObserveBgQueueDepth(ctx.index, len(items))
		}

		for i := range items {
			bgDispatch(ctx, &items[i])
		}
	}
	log.Info("background thread exiting")
}

// bgDispatch runs one work item.
func bgDispatch(ctx *bgThreadCtx, wi *BgWorkItem) {
	if ctx.metrics != nil {
		ctx.metrics.RecordBgDispatch(wi.Kind.String())
	}

	switch wi.Kind {
	case BgWorkItemReq:
		fn := (*ctx.reqFuncArr)[wi.SSlot.ReqType]
		if fn == nil {
			bgDispatchMiss(ctx, wi)
			return
		}
		fn(wi.Context, wi.SSlot)

	case BgWorkItemResp:
		if wi.SSlot.Cont != nil {
			wi.SSlot.Cont(wi.Context, wi.SSlot.Tag)
		}
	}
}

// bgDispatchMiss handles a request whose type has no registered handler.
// The miss becomes an error response work item on this worker's own queue,
// so the submitting endpoint's continuation observes the failure; the
// session itself stays up.
func bgDispatchMiss(ctx *bgThreadCtx, wi *BgWorkItem) {
	logger.Warn("no handler for request type",
		logger.KeyReqType, wi.SSlot.ReqType,
		logger.KeyBgThread, ctx.index)
	if ctx.metrics != nil {
		ctx.metrics.RecordSmDrop("req_func_unavailable")
	}

	wi.SSlot.Err = wire.SmErrReqFuncUnavailable
	ctx.reqList.Push(BgWorkItem{
		Kind:    BgWorkItemResp,
		Hook:    wi.Hook,
		Context: wi.Context,
		SSlot:   wi.SSlot,
	})
}
