package middleware

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("middleware: request rate limited")

// RateLimit throttles clients per remote IP with a token bucket each.
// Idle buckets are evicted after idleTTL to keep the map bounded.
type RateLimit struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	sync.RWMutex
	internal map[string]*client
}

type client struct {
	limiter *rate.Limiter
	// unix nano of the last request, accessed atomically
	lastSeen int64
}

func NewRateLimit(perSecond float64, burst int, idleTTL time.Duration) *RateLimit {
	if perSecond <= 0 {
		perSecond = 50
	}
	if burst <= 0 {
		burst = 100
	}
	if idleTTL <= 0 {
		idleTTL = 3 * time.Minute
	}
	l := &RateLimit{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  idleTTL,
		internal: map[string]*client{},
	}
	go l.evicting()
	return l
}

func (l *RateLimit) Work(ctx *fasthttp.RequestCtx, errChan chan error) {
	remoteIP := ctx.RemoteIP().String()
	c := l.client(remoteIP)
	if !c.limiter.Allow() {
		logger.Debugf("remote ip rate limited: %s", remoteIP)
		errChan <- ErrRateLimited
		return
	}
	errChan <- nil
}

func (l *RateLimit) client(remoteIP string) *client {
	now := time.Now().UnixNano()
	l.RLock()
	c, ok := l.internal[remoteIP]
	l.RUnlock()
	if ok {
		atomic.StoreInt64(&c.lastSeen, now)
		return c
	}
	l.Lock()
	if c, ok = l.internal[remoteIP]; !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.internal[remoteIP] = c
	}
	atomic.StoreInt64(&c.lastSeen, now)
	l.Unlock()
	return c
}

func (l *RateLimit) evicting() {
	for {
		time.Sleep(l.idleTTL)
		deadline := time.Now().Add(-l.idleTTL).UnixNano()
		l.Lock()
		for ip, c := range l.internal {
			if atomic.LoadInt64(&c.lastSeen) < deadline {
				delete(l.internal, ip)
			}
		}
		l.Unlock()
	}
}

// Tracked returns the number of clients currently holding a bucket.
func (l *RateLimit) Tracked() (n int) {
	l.RLock()
	n = len(l.internal)
	l.RUnlock()
	return
}
