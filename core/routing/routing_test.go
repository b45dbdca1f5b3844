package routing

import (
	"bytes"
	"testing"
	"time"

	"github.com/relaygw/relay/core/descriptor"
)

func testComposition(t *testing.T) *descriptor.Composition {
	comp, err := descriptor.Parse([]byte(`
version: "1"
services:
  - name: db
    address: 127.0.0.1
    port: 5432
  - name: api
    instances:
      - address: 127.0.0.1
        port: 9001
      - address: 127.0.0.1
        port: 9002
    depends_on: [db]
    health_path: /healthz
    policy: least_conn
  - name: app
    address: 127.0.0.1
    port: 3000
    depends_on: [api]
    policy: round_robin
routes:
  - pattern: /api/*
    upstream: api
    strip_prefix: true
  - pattern: /
    upstream: app
`))
	if err != nil {
		t.Fatal(err)
	}
	return comp
}

func TestInitTable(t *testing.T) {
	rt, err := InitTable(testComposition(t), Options{})
	if err != nil {
		t.Fatal(err)
	}

	if rt.upstreamTable.Len() != 3 {
		t.Fatalf("expected 3 upstreams, got %d", rt.upstreamTable.Len())
	}
	if rt.endpointTable.Len() != 4 {
		t.Fatalf("expected 4 endpoints, got %d", rt.endpointTable.Len())
	}
	if rt.routeTable.Len() != 2 {
		t.Fatalf("expected 2 routes, got %d", rt.routeTable.Len())
	}
	if rt.failureThreshold != 3 || rt.cooldown != 30*time.Second {
		t.Fatal("defaults not applied")
	}

	api, err := rt.GetUpstreamByName([]byte("api"))
	if err != nil {
		t.Fatal(err)
	}
	if api.balancer.Name() != PolicyLeastConn {
		t.FailNow()
	}
	for _, ep := range api.declared {
		if ep.healthCheck == nil || string(ep.healthCheck.path) != "/healthz" {
			t.Fatal("health check not materialized")
		}
	}

	if _, err := rt.GetUpstreamByName([]byte("ghost")); err != ErrUpstreamNotFound {
		t.Fatalf("expected ErrUpstreamNotFound, got %v", err)
	}
}

func TestSelect(t *testing.T) {
	rt, err := InitTable(testComposition(t), Options{})
	if err != nil {
		t.Fatal(err)
	}

	target, err := rt.Select([]byte("/api/users"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(target.Service(), []byte("api")) {
		t.Fatalf("expected api, got %s", target.Service())
	}
	if !bytes.Equal(target.Uri(), []byte("/users")) {
		t.Fatalf("expected /users, got %s", target.Uri())
	}
	host := string(target.Host())
	if host != "127.0.0.1:9001" && host != "127.0.0.1:9002" {
		t.Fatalf("unexpected host %s", host)
	}
	if target.Endpoint() == nil {
		t.FailNow()
	}

	target, err = rt.Select([]byte("/index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(target.Service(), []byte("app")) {
		t.Fatalf("expected app, got %s", target.Service())
	}
	if !bytes.Equal(target.Uri(), []byte("/index.html")) {
		t.FailNow()
	}
}

func TestSelectNoHealthyEndpoint(t *testing.T) {
	rt, err := InitTable(testComposition(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	app, err := rt.GetUpstreamByName([]byte("app"))
	if err != nil {
		t.Fatal(err)
	}
	for _, ep := range app.declared {
		_ = rt.SetEndpointStatus(ep, Offline)
	}

	if _, err := rt.Select([]byte("/")); err != ErrNoHealthyEndpoint {
		t.Fatalf("expected ErrNoHealthyEndpoint, got %v", err)
	}
}

func TestSelectEndpoint(t *testing.T) {
	rt, err := InitTable(testComposition(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	ep, err := rt.SelectEndpoint([]byte("api"))
	if err != nil {
		t.Fatal(err)
	}
	if addr := ep.Addr(); addr != "127.0.0.1:9001" && addr != "127.0.0.1:9002" {
		t.Fatalf("unexpected endpoint %s", addr)
	}
	if _, err := rt.SelectEndpoint([]byte("ghost")); err != ErrUpstreamNotFound {
		t.Fatalf("expected ErrUpstreamNotFound, got %v", err)
	}
}

func TestRegisterUpstreamDuplicate(t *testing.T) {
	rt, err := InitTable(testComposition(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	err = rt.RegisterUpstream([]byte("api"), []*Endpoint{newEndpoint("api", "127.0.0.1", 9009, "", 0, 0)}, nil)
	if err != ErrDuplicateUpstream {
		t.Fatalf("expected ErrDuplicateUpstream, got %v", err)
	}
}

func TestGetEndpointById(t *testing.T) {
	rt, err := InitTable(testComposition(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	ep, err := rt.GetEndpointByName([]byte("app@127.0.0.1:3000"))
	if err != nil {
		t.Fatal(err)
	}
	found, ok := rt.GetEndpointById(ep.Id())
	if !ok || found != ep {
		t.FailNow()
	}
	if _, ok := rt.GetEndpointById("no-such-id"); ok {
		t.FailNow()
	}
}

func TestGetTableInfo(t *testing.T) {
	rt, err := InitTable(testComposition(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	info := rt.GetTableInfo()
	if len(info.UpstreamTable) != 3 || len(info.EndpointTable) != 4 {
		t.FailNow()
	}
	if len(info.RouteTable) != 2 {
		t.FailNow()
	}
	// routes appear in match order, most specific first
	if info.RouteTable[0].Pattern != "/api/*" || info.RouteTable[1].Pattern != "/" {
		t.Fatalf("unexpected route order: %+v", info.RouteTable)
	}
	api := info.UpstreamTable[UpstreamNameString("api")]
	if api == nil || !api.Healthy || len(api.Endpoint) != 2 {
		t.FailNow()
	}
}
