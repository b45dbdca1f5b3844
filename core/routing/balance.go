package routing

import (
	"container/ring"
	"sync"
	"time"
)

const (
	PolicyLeastConn  = "least_conn"
	PolicyRoundRobin = "round_robin"
)

// Balancer is the pluggable distribution policy of an upstream. Pick
// receives the members in declaration order and must only consider
// endpoints selectable at `now`.
type Balancer interface {
	Pick(declared []*Endpoint, now time.Time) (*Endpoint, error)
	Name() string
}

func newBalancer(policy string) Balancer {
	switch policy {
	case PolicyRoundRobin:
		return NewRoundRobin()
	default:
		return NewLeastConnections()
	}
}

// leastConnections picks the selectable endpoint with the fewest
// in-flight requests, declaration order breaks ties.
type leastConnections struct{}

func NewLeastConnections() Balancer {
	return leastConnections{}
}

func (leastConnections) Name() string {
	return PolicyLeastConn
}

func (leastConnections) Pick(declared []*Endpoint, now time.Time) (*Endpoint, error) {
	var best *Endpoint
	var bestInflight int64
	for _, ep := range declared {
		if !ep.selectable(now) {
			continue
		}
		inflight := ep.Inflight()
		if best == nil || inflight < bestInflight {
			best = ep
			bestInflight = inflight
		}
	}
	if best == nil {
		return nil, ErrNoHealthyEndpoint
	}
	return best, nil
}

// roundRobin rotates a ring cursor over the declared members, skipping
// excluded ones.
type roundRobin struct {
	mu     sync.Mutex
	cursor *ring.Ring
	size   int
}

func NewRoundRobin() Balancer {
	return &roundRobin{}
}

func (r *roundRobin) Name() string {
	return PolicyRoundRobin
}

func (r *roundRobin) Pick(declared []*Endpoint, now time.Time) (*Endpoint, error) {
	if len(declared) == 0 {
		return nil, ErrNoHealthyEndpoint
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor == nil || r.size != len(declared) {
		r.cursor = buildRing(declared)
		r.size = len(declared)
	}
	for counts := 0; counts < r.size; counts++ {
		next := r.cursor.Value
		r.cursor = r.cursor.Move(1)
		ep, ok := next.(*Endpoint)
		if !ok {
			return nil, ErrNoHealthyEndpoint
		}
		if ep.selectable(now) {
			return ep, nil
		}
	}
	return nil, ErrNoHealthyEndpoint
}

func buildRing(declared []*Endpoint) *ring.Ring {
	var head *ring.Ring
	for idx, ep := range declared {
		newNode := ring.New(1)
		newNode.Value = ep
		if idx == 0 {
			head = newNode
		} else {
			r := head.Link(newNode)
			newNode.Link(r)
		}
	}
	return head
}
