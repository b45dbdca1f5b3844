package routing

import "time"

type RouteInfo struct {
	Pattern     string             `json:"pattern"`
	Upstream    UpstreamNameString `json:"upstream"`
	StripPrefix bool               `json:"strip_prefix"`
}

type UpstreamInfo struct {
	Name     string               `json:"name"`
	Policy   string               `json:"policy"`
	Healthy  bool                 `json:"healthy"`
	Endpoint []EndpointNameString `json:"endpoint"`
}

type HealthCheckInfo struct {
	Id       string `json:"id"`
	Path     string `json:"path"`
	Timeout  string `json:"timeout"`
	Interval string `json:"interval"`
}

type EndpointInfo struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Host        string           `json:"host"`
	Port        int              `json:"port"`
	Status      string           `json:"status"`
	Failures    int32            `json:"failures"`
	Excluded    bool             `json:"excluded"`
	Inflight    int64            `json:"inflight"`
	HealthCheck *HealthCheckInfo `json:"health_check"`
}

type TableInfo struct {
	Version       string                               `json:"version"`
	UpstreamTable map[UpstreamNameString]*UpstreamInfo `json:"upstream_table"`
	EndpointTable map[EndpointNameString]*EndpointInfo `json:"endpoint_table"`
	RouteTable    []*RouteInfo                         `json:"route_table"`
}

// GetTableInfo snapshots the table for the admin surface. Routes appear
// in match order.
func (r *Table) GetTableInfo() *TableInfo {
	now := time.Now()
	t := &TableInfo{
		Version:       r.Version,
		UpstreamTable: map[UpstreamNameString]*UpstreamInfo{},
		EndpointTable: map[EndpointNameString]*EndpointInfo{},
		RouteTable:    []*RouteInfo{},
	}

	r.endpointTable.Range(func(k EndpointNameString, v *Endpoint) bool {
		t.EndpointTable[k] = &EndpointInfo{
			ID:       v.id,
			Name:     string(v.name),
			Host:     string(v.host),
			Port:     v.port,
			Status:   v.Status().String(),
			Failures: v.Failures(),
			Excluded: v.Excluded(now),
			Inflight: v.Inflight(),
		}
		if v.healthCheck != nil {
			t.EndpointTable[k].HealthCheck = &HealthCheckInfo{
				Id:       v.healthCheck.id,
				Path:     string(v.healthCheck.path),
				Timeout:  v.healthCheck.timeout.String(),
				Interval: v.healthCheck.interval.String(),
			}
		}
		return false
	})

	r.upstreamTable.Range(func(k UpstreamNameString, v *Upstream) bool {
		t.UpstreamTable[k] = &UpstreamInfo{
			Name:     string(v.name),
			Policy:   v.balancer.Name(),
			Endpoint: []EndpointNameString{},
		}
		v.ep.Range(func(k1 EndpointNameString, k2 *Endpoint) bool {
			t.UpstreamTable[k].Endpoint = append(t.UpstreamTable[k].Endpoint, k1)
			if k2.selectable(now) {
				t.UpstreamTable[k].Healthy = true
			}
			return false
		})
		return false
	})

	r.routeTable.RangeOrdered(func(v *Route) bool {
		t.RouteTable = append(t.RouteTable, &RouteInfo{
			Pattern:     string(v.pattern),
			Upstream:    v.upstream.nameString,
			StripPrefix: v.strip,
		})
		return false
	})

	return t
}
