package routing

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/relaygw/relay/core/constant"
	"github.com/relaygw/relay/core/utils"
	"github.com/valyala/fasthttp"
)

type HealthCheck struct {
	id   string
	path []byte

	// probe request deadline, a timed-out probe counts as a failure
	timeout  time.Duration
	interval time.Duration
}

// Check probes the endpoint once over HTTP. Status codes 2xx-3xx count
// as healthy.
func (h *HealthCheck) Check(host []byte, port int) (bool, error) {
	if h.path == nil {
		return false, fmt.Errorf("health check of [%s] has no probe path", h.id)
	}
	revReq := fasthttp.AcquireRequest()
	revReqUri := fasthttp.AcquireURI()
	revRes := fasthttp.AcquireResponse()

	defer fasthttp.ReleaseRequest(revReq)
	defer fasthttp.ReleaseResponse(revRes)
	defer fasthttp.ReleaseURI(revReqUri)

	tmpHost := bytes.Join([][]byte{host, []byte(strconv.FormatInt(int64(port), 10))}, []byte(":"))
	revReqUri.SetHostBytes(tmpHost)
	revReqUri.SetPathBytes(h.path)
	revReqUri.SetScheme("http")

	revReq.SetRequestURIBytes(revReqUri.FullURI())
	revReq.Header.SetMethodBytes(constant.StrGet)
	logger.Debugf("health check request: %s", string(revReqUri.FullURI()))
	err := fasthttp.DoTimeout(revReq, revRes, h.timeout)
	if err != nil {
		return false, fmt.Errorf("health check of host %s failed: %v", string(tmpHost), err)
	}
	if statusCode := revRes.StatusCode(); statusCode >= 200 && statusCode < 400 {
		return true, nil
	} else {
		return false, fmt.Errorf("host %s answered the probe with status [%d]", string(tmpHost), statusCode)
	}
}

// HealthCheck runs the periodic probe loop over every endpoint carrying
// a probe path. It restarts itself on panic and runs until Stop.
func (r *Table) HealthCheck() {
	defer func() {
		logger.Debug("health check quit")
		if err := recover(); err != nil {
			stack := utils.Stack(3)
			logger.Errorf("[Recovery] %s panic recovered:\n%s\n%s", utils.TimeFormat(time.Now()), err, stack)
		}
		if !r.stopped() {
			go r.HealthCheck()
		}
	}()
	for {
		r.doHealthCheck()
		select {
		case <-r.quit:
			return
		case <-time.After(r.probeInterval):
		}
	}
}

func (r *Table) doHealthCheck() {
	r.endpointTable.Range(func(key EndpointNameString, value *Endpoint) bool {
		if value.healthCheck == nil {
			return false
		}
		if value.Status() == Offline {
			logger.Warnf("endpoint [%s] offline, skip health-check", value.nameString)
			return false
		}
		if check, err := value.healthCheck.Check(value.host, value.port); check {
			if value.Status() != Online {
				_ = r.SetEndpointStatus(value, Online)
			} else {
				// clear any passive exclusion once the probe confirms
				// recovery
				r.ReportOutcome(value, true)
			}
		} else {
			if err != nil {
				logger.WithError(err).Debugf("health check failed: %s", value.nameString)
			}
			r.ReportOutcome(value, false)
			if value.Failures() >= r.failureThreshold && value.Status() != BreakDown {
				_ = r.SetEndpointStatus(value, BreakDown)
			}
		}
		return false
	})
}
