package routing

import (
	"bytes"
	"sync/atomic"
	"time"

	"github.com/relaygw/relay/core/constant"
	"github.com/relaygw/relay/middleware"
	"github.com/valyala/fasthttp"
)

const (
	middlewareTimeoutLimit = 1
	proxyTimeoutLimit      = 60
)

// Holder hands the current table to request handlers and lets a
// descriptor reload swap in a freshly built one atomically.
type Holder struct {
	v atomic.Value
}

func NewHolder(t *Table) *Holder {
	h := &Holder{}
	h.v.Store(t)
	return h
}

func (h *Holder) Table() *Table {
	return h.v.Load().(*Table)
}

func (h *Holder) Swap(t *Table) {
	h.v.Store(t)
}

// Reload publishes a freshly built table and retires whichever table it
// displaces, so the displaced probe and event loops terminate even when
// several reloads queue up before the first one is handled.
func (h *Holder) Reload(next *Table) {
	prev := h.Table()
	go next.HealthCheck()
	go next.HandleEvent()
	h.Swap(next)
	prev.Stop()
}

func MainRequestHandlerWrapper(holder *Holder, middle ...middleware.Middleware) fasthttp.RequestHandler {
	return fasthttp.TimeoutHandler(
		func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			ctx.SetUserValue("Table", holder.Table())
			if len(middle) > 0 {
				errChan := make(chan error, len(middle))
				for _, m := range middle {
					go m.Work(ctx, errChan)
				}
				timer := time.NewTimer(middlewareTimeoutLimit * time.Second)
				for i := 0; i < len(middle); i++ {
					timer.Reset(middlewareTimeoutLimit * time.Second)
					select {
					case <-timer.C:
						writeRejection(ctx, fasthttp.StatusServiceUnavailable, "middleware timed out")
						go middleware.Logger(ctx.Response.StatusCode(), string(ctx.Request.URI().Path()), string(ctx.Request.Header.Method()), ctx.RemoteIP().String(), start)
						return
					case e := <-errChan:
						if e != nil {
							writeRejection(ctx, fasthttp.StatusTooManyRequests, e.Error())
							go middleware.Logger(ctx.Response.StatusCode(), string(ctx.Request.URI().Path()), string(ctx.Request.Header.Method()), ctx.RemoteIP().String(), start)
							return
						}
					}
				}
			}
			ReverseProxyHandler(ctx)
			go middleware.Logger(ctx.Response.StatusCode(), string(ctx.Request.URI().Path()), string(ctx.Request.Header.Method()), ctx.RemoteIP().String(), start)
		},
		time.Second*proxyTimeoutLimit,
		"upstream timed out",
	)
}

func writeRejection(ctx *fasthttp.RequestCtx, status int, msg string) {
	ctx.Response.SetStatusCode(status)
	ctx.Response.Header.Set("Server", "Relay")
	ctx.Response.Header.SetContentTypeBytes(constant.StrApplicationJson)
	ctx.Response.SetBodyString(`{"error":"` + msg + `"}`)
}

// ReverseProxyHandler resolves the request to one upstream endpoint,
// forwards it and feeds the outcome back into the failover tracker.
func ReverseProxyHandler(ctx *fasthttp.RequestCtx) {
	var target TargetServer

	routingTable := ctx.UserValue("Table")
	if routingTable == nil {
		logger.Error("routing table not exists")
		ctx.Error("Internal Server Error", fasthttp.StatusInternalServerError)
		return
	}

	rt, ok := routingTable.(*Table)
	if !ok {
		logger.Error("wrong type of routing table")
		ctx.Error("Internal Server Error", fasthttp.StatusInternalServerError)
		return
	}

	path := ctx.Path()
	target, err := rt.Select(path)
	if err != nil {
		logger.WithError(err).Debugf("select failed for path: %s", path)
		switch err {
		case ErrNoRoute:
			ctx.Error("Not Found", fasthttp.StatusNotFound)
		case ErrNoHealthyEndpoint:
			ctx.Error("Service Unavailable", fasthttp.StatusServiceUnavailable)
		default:
			ctx.Error("Internal Server Error", fasthttp.StatusInternalServerError)
		}
		return
	}

	if target.ep.Throttled() {
		ctx.Error("Too Many Requests", fasthttp.StatusTooManyRequests)
		return
	}

	// the endpoint is committed from here on, every exit path must
	// release the gauge and report an outcome
	target.ep.Acquire()
	defer target.ep.Release()

	revReq := fasthttp.AcquireRequest()
	revReqUri := fasthttp.AcquireURI()
	revRes := fasthttp.AcquireResponse()

	defer fasthttp.ReleaseRequest(revReq)
	defer fasthttp.ReleaseResponse(revRes)
	defer fasthttp.ReleaseURI(revReqUri)

	ctx.Request.Header.VisitAll(func(key, value []byte) {
		if bytes.Equal(key, constant.StrHost) {
			// pass
		} else {
			revReq.Header.AddBytesKV(key, value)
		}
	})

	revReqUri.SetHostBytes(target.host)
	revReqUri.SetPathBytes(target.uri)
	revReqUri.SetScheme("http")

	if queryString := ctx.QueryArgs().QueryString(); len(queryString) > 0 {
		revReqUri.SetQueryStringBytes(queryString)
	}
	revReq.SetRequestURIBytes(revReqUri.FullURI())

	if body := ctx.Request.Body(); len(body) > 0 {
		revReq.SetBody(body)
	}
	revReq.Header.SetMethodBytes(ctx.Request.Header.Method())
	err = fasthttp.Do(revReq, revRes)
	rt.ReportOutcome(target.ep, err == nil)
	if err != nil {
		logger.WithError(err).Warnf("upstream [%s] call failed", target.svr)
		ctx.Error("Bad Gateway", fasthttp.StatusBadGateway)
		return
	}
	revRes.Header.VisitAll(func(key, value []byte) {
		if bytes.Equal(key, constant.StrHost) {
			// pass
		} else {
			ctx.Response.Header.SetBytesKV(key, value)
		}
	})
	ctx.Response.SetStatusCode(revRes.StatusCode())
	ctx.Response.Header.SetContentTypeBytes(revRes.Header.ContentType())
	ctx.SetBody(revRes.Body())
}
