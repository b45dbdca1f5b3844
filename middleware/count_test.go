package middleware

import (
	"testing"
	"time"

	"github.com/valyala/fasthttp"
)

func TestCounterWork(t *testing.T) {
	c := NewCounter(2, 0, "", "")

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod("GET")
	ctx.Request.SetRequestURI("/api/users")

	errChan := make(chan error, 3)
	c.Work(ctx, errChan)
	c.Work(ctx, errChan)
	c.Work(ctx, errChan)
	for i := 0; i < 3; i++ {
		if err := <-errChan; err != nil {
			t.Fatal(err)
		}
	}

	// shard consumers drain asynchronously
	deadline := time.Now().Add(2 * time.Second)
	for {
		if c.Summary()["GET /api/users"] == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 counted requests, got %v", c.Summary())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCounterSummaryIsolated(t *testing.T) {
	c := NewCounter(0, 0, "", "")
	snapshot := c.Summary()
	snapshot["tampered"] = 1
	if len(c.Summary()) != 0 {
		t.Fatal("summary must be a copy")
	}
}
