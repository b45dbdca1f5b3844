package descriptor

import (
	"testing"

	"github.com/coreos/etcd/clientv3"
	"github.com/coreos/etcd/mvcc/mvccpb"
)

func TestApplyWatchResponse(t *testing.T) {
	var got *Composition
	onChange := func(c *Composition) { got = c }

	applyWatchResponse("/k", clientv3.WatchResponse{Events: []*clientv3.Event{
		{Type: mvccpb.PUT, Kv: &mvccpb.KeyValue{Value: validDoc}},
	}}, onChange)
	if got == nil || len(got.Services) != 3 {
		t.Fatal("valid update not applied")
	}

	got = nil
	applyWatchResponse("/k", clientv3.WatchResponse{Events: []*clientv3.Event{
		{Type: mvccpb.DELETE, Kv: &mvccpb.KeyValue{}},
	}}, onChange)
	if got != nil {
		t.Fatal("delete must keep the previous composition in effect")
	}

	applyWatchResponse("/k", clientv3.WatchResponse{Events: []*clientv3.Event{
		{Type: mvccpb.PUT, Kv: &mvccpb.KeyValue{Value: []byte("services: [")}},
	}}, onChange)
	if got != nil {
		t.Fatal("invalid update must be skipped")
	}
}
