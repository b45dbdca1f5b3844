/*
	Defined all component made up the routing table.
	Component:
		Route
		Upstream
		Endpoint
	Relation between component:
		Route:
			pattern
			Upstream
		Upstream:
			[]Endpoint
*/
package routing

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-ego/murmur"
	"github.com/relaygw/relay/core/constant"
	"github.com/relaygw/relay/core/descriptor"
	"golang.org/x/time/rate"
)

const (
	Offline Status = iota
	Online
	BreakDown
)

type Status uint8
type UpstreamNameString string
type EndpointNameString string
type RoutePatternString string

// Options carries the failover policy knobs shared by every endpoint in
// the table. Zero values fall back to the defaults in core/constant.
type Options struct {
	FailureThreshold int32
	Cooldown         time.Duration
	ProbeInterval    time.Duration
	ProbeTimeout     time.Duration
}

// Routing table struct, should not be copied at any time. Using function
// `InitTable()` to create it.
type Table struct {
	Version string

	// upstream table
	upstreamTable UpstreamTableMap
	// endpoint table
	endpointTable EndpointTableMap
	// route table, ordered by specificity
	routeTable RouteTableMap

	failureThreshold int32
	cooldown         time.Duration
	probeInterval    time.Duration
	probeTimeout     time.Duration

	events *Events

	quit     chan struct{}
	stopOnce sync.Once
}

// Endpoint-struct defined one concrete backend instance of an upstream
type Endpoint struct {
	id         string
	name       []byte
	nameString EndpointNameString

	host []byte
	port int
	// Status values, accessed atomically: 0 -> offline, 1 -> online, 2 -> breakdown
	status uint32

	// consecutive failures reported by callers, reset on success
	failures int32
	// unix nano deadline of the exclusion window, 0 when not excluded
	excludedUntil int64
	// in-flight request gauge, feeds least-connections selection
	inflight int64

	healthCheck *HealthCheck
	rate        *rate.Limiter
}

// Upstream-struct defined a named pool of interchangeable endpoints.
// Membership is fixed after table initialization, only endpoint state
// changes at runtime.
type Upstream struct {
	name       []byte
	nameString UpstreamNameString
	ep         *EndpointTableMap
	// declaration order, used for tie-breaking during selection
	declared []*Endpoint

	balancer Balancer
}

type TargetServer struct {
	host []byte
	uri  []byte
	svr  []byte

	ep *Endpoint
}

func (t TargetServer) Host() []byte        { return t.host }
func (t TargetServer) Uri() []byte         { return t.uri }
func (t TargetServer) Service() []byte     { return t.svr }
func (t TargetServer) Endpoint() *Endpoint { return t.ep }

func (s Status) String() string {
	switch s {
	case Online:
		return "online"
	case BreakDown:
		return "breakdown"
	default:
		return "offline"
	}
}

// InitTable materializes a routing table from a validated composition
// descriptor. The returned table is independent of the descriptor, a
// later reload builds a fresh table instead of mutating this one.
func InitTable(comp *descriptor.Composition, opt Options) (*Table, error) {
	rt := &Table{
		Version:          comp.Version,
		upstreamTable:    *NewUpstreamTableMap(),
		endpointTable:    *NewEndpointTableMap(),
		routeTable:       *NewRouteTableMap(),
		failureThreshold: opt.FailureThreshold,
		cooldown:         opt.Cooldown,
		probeInterval:    opt.ProbeInterval,
		probeTimeout:     opt.ProbeTimeout,
		events:           NewEvents(),
		quit:             make(chan struct{}),
	}
	if rt.failureThreshold <= 0 {
		rt.failureThreshold = constant.DefaultFailureThreshold
	}
	if rt.cooldown <= 0 {
		rt.cooldown = constant.DefaultCooldownSec * time.Second
	}
	if rt.probeInterval <= 0 {
		rt.probeInterval = constant.DefaultProbeIntervalSec * time.Second
	}
	if rt.probeTimeout <= 0 {
		rt.probeTimeout = constant.DefaultProbeTimeoutSec * time.Second
	}

	for _, svc := range comp.Services {
		eps := make([]*Endpoint, 0, len(svc.Endpoints()))
		for _, inst := range svc.Endpoints() {
			ep := newEndpoint(svc.Name, inst.Address, inst.Port, svc.HealthPath, rt.probeTimeout, rt.probeInterval)
			eps = append(eps, ep)
		}
		if err := rt.RegisterUpstream([]byte(svc.Name), eps, newBalancer(svc.Policy)); err != nil {
			return nil, err
		}
	}
	for _, rule := range comp.Routes {
		if err := rt.AddRoute([]byte(rule.Pattern), []byte(rule.Upstream), rule.StripPrefix); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

func newEndpoint(svc, address string, port int, healthPath string, timeout, interval time.Duration) *Endpoint {
	name := fmt.Sprintf("%s@%s:%d", svc, address, port)
	ep := &Endpoint{
		id:         strconv.FormatUint(uint64(murmur.Sum32(name)), 10),
		name:       []byte(name),
		nameString: EndpointNameString(name),
		host:       []byte(address),
		port:       port,
		status:     uint32(Online),
		rate:       rate.NewLimiter(rate.Inf, 0),
	}
	if healthPath != "" {
		ep.healthCheck = &HealthCheck{
			id:       ep.id,
			path:     []byte(healthPath),
			timeout:  timeout,
			interval: interval,
		}
	}
	return ep
}

// Stop terminates the probe and event loops, called on the old table
// after a reload swapped in a fresh one.
func (r *Table) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
	})
}

func (r *Table) stopped() bool {
	select {
	case <-r.quit:
		return true
	default:
		return false
	}
}

// RegisterUpstream installs a named endpoint pool. Registering the same
// name twice is an error, membership never changes after registration.
func (r *Table) RegisterUpstream(name []byte, eps []*Endpoint, balancer Balancer) error {
	nameString := UpstreamNameString(name)
	if _, exists := r.upstreamTable.Load(nameString); exists {
		logger.Warnf("upstream already exists: %s", nameString)
		return ErrDuplicateUpstream
	}
	if balancer == nil {
		balancer = NewLeastConnections()
	}
	u := &Upstream{
		name:       name,
		nameString: nameString,
		ep:         NewEndpointTableMap(),
		declared:   eps,
		balancer:   balancer,
	}
	for _, ep := range eps {
		u.ep.Store(ep.nameString, ep)
		r.endpointTable.Store(ep.nameString, ep)
	}
	r.upstreamTable.Store(nameString, u)
	return nil
}

func (r *Table) GetUpstreamByName(name []byte) (*Upstream, error) {
	u, exists := r.upstreamTable.Load(UpstreamNameString(name))
	if !exists {
		logger.Warnf("can not find upstream by name: %s", UpstreamNameString(name))
		return nil, ErrUpstreamNotFound
	}
	return u, nil
}

func (r *Table) GetEndpointByName(name []byte) (*Endpoint, error) {
	ep, exists := r.endpointTable.Load(EndpointNameString(name))
	if !exists {
		logger.Warnf("can not find endpoint by name: %s", EndpointNameString(name))
		return nil, ErrEndpointNotFound
	}
	return ep, nil
}

func (r *Table) GetEndpointById(id string) (*Endpoint, bool) {
	var ep *Endpoint
	r.endpointTable.Range(func(key EndpointNameString, value *Endpoint) bool {
		if value.id == id {
			ep = value
			return true
		}
		return false
	})
	if ep == nil {
		return nil, false
	}
	return ep, true
}

// SelectEndpoint applies the upstream's balance policy over the
// non-excluded members. It mutates nothing but the policy cursor, the
// caller owns the in-flight accounting and the outcome report.
func (r *Table) SelectEndpoint(name []byte) (*Endpoint, error) {
	u, err := r.GetUpstreamByName(name)
	if err != nil {
		return nil, err
	}
	return u.Select(time.Now())
}

// Select resolves an incoming request path to a concrete target server.
func (r *Table) Select(path []byte) (TargetServer, error) {
	route, rewritten, err := r.Match(path)
	if err != nil {
		return TargetServer{}, err
	}
	ep, err := route.upstream.Select(time.Now())
	if err != nil {
		return TargetServer{}, err
	}
	return TargetServer{
		host: bytes.Join([][]byte{ep.host, []byte(strconv.FormatInt(int64(ep.port), 10))}, []byte(":")),
		uri:  rewritten,
		svr:  route.upstream.name,
		ep:   ep,
	}, nil
}

// Select picks one selectable endpoint of the pool, ErrNoHealthyEndpoint
// when every member is excluded or offline.
func (u *Upstream) Select(now time.Time) (*Endpoint, error) {
	ep, err := u.balancer.Pick(u.declared, now)
	if err != nil {
		logger.Debugf("no healthy endpoint in upstream [%s]", u.nameString)
		return nil, err
	}
	return ep, nil
}

func (u *Upstream) Name() []byte { return u.name }

func (ep *Endpoint) Id() string   { return ep.id }
func (ep *Endpoint) Name() []byte { return ep.name }
func (ep *Endpoint) Host() []byte { return ep.host }
func (ep *Endpoint) Port() int    { return ep.port }

func (ep *Endpoint) Addr() string {
	return string(ep.host) + ":" + strconv.FormatInt(int64(ep.port), 10)
}
