package routing

import (
	"sync"
	"sync/atomic"
)

type UpstreamTableMap struct {
	sync.RWMutex
	internal map[UpstreamNameString]*Upstream
}

type EndpointTableMap struct {
	sync.RWMutex
	readNum  int32
	internal map[EndpointNameString]*Endpoint
}

type RouteTableMap struct {
	sync.RWMutex
	internal map[RoutePatternString]*Route
	// routes ordered by descending specificity, declaration order on ties
	ordered []*Route
}

func NewUpstreamTableMap() *UpstreamTableMap {
	return &UpstreamTableMap{
		internal: make(map[UpstreamNameString]*Upstream),
	}
}

func (m *UpstreamTableMap) Load(key UpstreamNameString) (value *Upstream, ok bool) {
	m.RLock()
	value, ok = m.internal[key]
	m.RUnlock()
	return value, ok
}

func (m *UpstreamTableMap) Delete(key UpstreamNameString) {
	m.Lock()
	delete(m.internal, key)
	m.Unlock()
}

func (m *UpstreamTableMap) Store(key UpstreamNameString, value *Upstream) {
	m.Lock()
	m.internal[key] = value
	m.Unlock()
}

func (m *UpstreamTableMap) Range(f func(key UpstreamNameString, value *Upstream) bool) {
	m.RLock()
	for k, v := range m.internal {
		ret := f(k, v)
		if ret {
			break
		}
	}
	m.RUnlock()
}

func (m *UpstreamTableMap) Len() (length int) {
	m.RLock()
	length = len(m.internal)
	m.RUnlock()
	return length
}

func NewEndpointTableMap() *EndpointTableMap {
	return &EndpointTableMap{
		internal: make(map[EndpointNameString]*Endpoint),
	}
}

func (m *EndpointTableMap) readLock() {
	if atomic.AddInt32(&m.readNum, 1) == 1 {
		m.RLock()
	}
}

func (m *EndpointTableMap) readUnlock() {
	if atomic.AddInt32(&m.readNum, -1) == 0 {
		m.RUnlock()
	}
}

func (m *EndpointTableMap) Load(key EndpointNameString) (value *Endpoint, ok bool) {
	m.readLock()
	value, ok = m.internal[key]
	m.readUnlock()
	return value, ok
}

func (m *EndpointTableMap) Delete(key EndpointNameString) {
	m.Lock()
	delete(m.internal, key)
	m.Unlock()
}

func (m *EndpointTableMap) Store(key EndpointNameString, value *Endpoint) {
	m.Lock()
	m.internal[key] = value
	m.Unlock()
}

func (m *EndpointTableMap) Range(f func(key EndpointNameString, value *Endpoint) bool) {
	m.readLock()
	for k, v := range m.internal {
		ok := f(k, v)
		if ok {
			break
		}
	}
	m.readUnlock()
}

func (m *EndpointTableMap) Len() (length int) {
	m.RLock()
	length = len(m.internal)
	m.RUnlock()
	return length
}

func NewRouteTableMap() *RouteTableMap {
	return &RouteTableMap{
		internal: make(map[RoutePatternString]*Route),
	}
}

func (m *RouteTableMap) Load(key RoutePatternString) (value *Route, ok bool) {
	m.RLock()
	value, ok = m.internal[key]
	m.RUnlock()
	return value, ok
}

func (m *RouteTableMap) Store(key RoutePatternString, value *Route) {
	m.Lock()
	m.internal[key] = value
	m.ordered = insertBySpecificity(m.ordered, value)
	m.Unlock()
}

func (m *RouteTableMap) Delete(key RoutePatternString) {
	m.Lock()
	if route, ok := m.internal[key]; ok {
		delete(m.internal, key)
		for i, r := range m.ordered {
			if r == route {
				m.ordered = append(m.ordered[:i], m.ordered[i+1:]...)
				break
			}
		}
	}
	m.Unlock()
}

func (m *RouteTableMap) Range(f func(key RoutePatternString, value *Route)) {
	m.RLock()
	for k, v := range m.internal {
		f(k, v)
	}
	m.RUnlock()
}

// RangeOrdered visits routes in match order: descending specificity,
// declaration order on ties. Stops when f returns true.
func (m *RouteTableMap) RangeOrdered(f func(value *Route) bool) {
	m.RLock()
	for _, v := range m.ordered {
		if f(v) {
			break
		}
	}
	m.RUnlock()
}

func (m *RouteTableMap) Len() (length int) {
	m.RLock()
	length = len(m.internal)
	m.RUnlock()
	return length
}

// insertBySpecificity keeps the slice sorted by descending specificity.
// Insertion after equal-specificity entries preserves declaration order.
func insertBySpecificity(ordered []*Route, route *Route) []*Route {
	idx := len(ordered)
	for i, r := range ordered {
		if route.specificity() > r.specificity() {
			idx = i
			break
		}
	}
	ordered = append(ordered, nil)
	copy(ordered[idx+1:], ordered[idx:])
	ordered[idx] = route
	return ordered
}
