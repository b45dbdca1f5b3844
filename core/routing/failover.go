package routing

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Passive failover tracking. Outcomes of proxied requests feed back into
// the table through ReportOutcome; the failure counter and the exclusion
// deadline are plain atomics so that concurrent reports on the same
// endpoint never lose updates. Exclusion lapses lazily, Excluded is a
// comparison against the stored deadline, no timer goroutine involved.

func (ep *Endpoint) Status() Status {
	return Status(atomic.LoadUint32(&ep.status))
}

func (ep *Endpoint) setStatus(status Status) {
	atomic.StoreUint32(&ep.status, uint32(status))
}

// Excluded reports whether the endpoint sits inside an exclusion window
// at the given instant.
func (ep *Endpoint) Excluded(now time.Time) bool {
	until := atomic.LoadInt64(&ep.excludedUntil)
	return until != 0 && now.UnixNano() < until
}

// Failures returns the current consecutive-failure count.
func (ep *Endpoint) Failures() int32 {
	return atomic.LoadInt32(&ep.failures)
}

// selectable combines probe status and passive exclusion.
func (ep *Endpoint) selectable(now time.Time) bool {
	return ep.Status() == Online && !ep.Excluded(now)
}

// Acquire marks one in-flight request on the endpoint. Callers must pair
// it with Release once the upstream call finishes or is abandoned.
func (ep *Endpoint) Acquire() {
	atomic.AddInt64(&ep.inflight, 1)
}

func (ep *Endpoint) Release() {
	atomic.AddInt64(&ep.inflight, -1)
}

func (ep *Endpoint) Inflight() int64 {
	return atomic.LoadInt64(&ep.inflight)
}

// Throttled consumes one token from the endpoint's own rate budget.
// Endpoints run unthrottled unless SetRateLimit installed a budget.
func (ep *Endpoint) Throttled() bool {
	return !ep.rate.Allow()
}

// SetRateLimit caps the request rate of this single endpoint, on top of
// any per-client middleware limits.
func (ep *Endpoint) SetRateLimit(perSecond float64, burst int) {
	ep.rate.SetLimit(rate.Limit(perSecond))
	ep.rate.SetBurst(burst)
}

// ReportOutcome records the result of one proxied request against the
// endpoint. Failures accumulate until the table's threshold, which opens
// a cooldown-long exclusion window. A success resets the counter and
// lifts any exclusion immediately, including a manual override while
// the endpoint is excluded.
func (r *Table) ReportOutcome(ep *Endpoint, success bool) {
	r.reportOutcome(ep, success, time.Now())
}

func (r *Table) reportOutcome(ep *Endpoint, success bool, now time.Time) {
	if success {
		atomic.StoreInt32(&ep.failures, 0)
		atomic.StoreInt64(&ep.excludedUntil, 0)
		return
	}
	failed := atomic.AddInt32(&ep.failures, 1)
	if failed >= r.failureThreshold {
		until := now.Add(r.cooldown).UnixNano()
		// keep the later deadline when reports race
		for {
			prev := atomic.LoadInt64(&ep.excludedUntil)
			if prev >= until {
				return
			}
			if atomic.CompareAndSwapInt64(&ep.excludedUntil, prev, until) {
				logger.Warnf("endpoint [%s] excluded after %d consecutive failures, cooldown %s",
					ep.nameString, failed, r.cooldown)
				return
			}
		}
	}
}

// SetEndpointStatus applies a probe or operator decision to the
// endpoint. Online also clears the passive failure state, mirroring a
// reported success.
func (r *Table) SetEndpointStatus(ep *Endpoint, status Status) error {
	if _, exists := r.endpointTable.Load(ep.nameString); !exists {
		logger.Warn("endpoint not exists")
		return ErrEndpointNotFound
	}
	if status == Online {
		atomic.StoreInt32(&ep.failures, 0)
		atomic.StoreInt64(&ep.excludedUntil, 0)
	}
	if ep.Status() != status {
		logger.Infof("endpoint [%s] status: %s -> %s", ep.nameString, ep.Status(), status)
	}
	ep.setStatus(status)
	return nil
}
