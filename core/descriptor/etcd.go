package descriptor

import (
	"context"
	"time"

	"github.com/coreos/etcd/clientv3"
	"github.com/coreos/etcd/mvcc/mvccpb"
	"github.com/relaygw/relay/core/utils"
	"github.com/sirupsen/logrus"
)

var (
	logger = logrus.New()
)

// Fetch reads and parses the descriptor document stored at the key.
func Fetch(cli *clientv3.Client, key string) (*Composition, error) {
	resp, err := utils.GetKV(cli, key)
	if err != nil {
		return nil, err
	}
	if resp.Count == 0 {
		return nil, &DescriptorError{Reason: "no descriptor stored at " + key}
	}
	return Parse(resp.Kvs[0].Value)
}

const watchRetryDelay = time.Second

// Watch follows descriptor writes on the key and hands each valid new
// composition to onChange. Invalid documents are logged and skipped, the
// previous composition stays in effect. A watch channel closed by the
// server or the client is re-established; Watch only returns once the
// context is cancelled.
func Watch(ctx context.Context, cli *clientv3.Client, key string, onChange func(*Composition)) {
	defer func() {
		if err := recover(); err != nil {
			stack := utils.Stack(3)
			logger.Errorf("[Recovery] descriptor watch panic recovered:\n%s\n%s", err, stack)
			go Watch(ctx, cli, key, onChange)
		}
	}()

	for {
		for wresp := range cli.Watch(ctx, key) {
			applyWatchResponse(key, wresp, onChange)
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		logger.Warnf("descriptor watch on %s closed, re-establishing", key)
		time.Sleep(watchRetryDelay)
	}
}

func applyWatchResponse(key string, wresp clientv3.WatchResponse, onChange func(*Composition)) {
	if err := wresp.Err(); err != nil {
		logger.WithError(err).Error("descriptor watch error")
		return
	}
	for _, ev := range wresp.Events {
		if ev.Type != mvccpb.PUT {
			logger.Warnf("descriptor key %s deleted, keeping previous composition", key)
			continue
		}
		comp, err := Parse(ev.Kv.Value)
		if err != nil {
			logger.WithError(err).Error("rejected descriptor update")
			continue
		}
		logger.Infof("descriptor updated, version %q, %d services", comp.Version, len(comp.Services))
		onChange(comp)
	}
}
