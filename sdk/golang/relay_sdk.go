// Package golang is the operator-side client of the gateway: it
// validates a composition descriptor locally and publishes it to the
// etcd key the gateway watches, so a bad document never reaches the
// running proxy.
package golang

import (
	"github.com/coreos/etcd/clientv3"
	"github.com/relaygw/relay/core/constant"
	"github.com/relaygw/relay/core/descriptor"
	"github.com/relaygw/relay/core/utils"
	"github.com/sirupsen/logrus"
)

var (
	logger = logrus.New()
)

type CompositionPublisher struct {
	cli *clientv3.Client
	key string
}

func NewCompositionPublisher(cli *clientv3.Client, key string) *CompositionPublisher {
	if key == "" {
		key = constant.CompositionDefinition
	}
	return &CompositionPublisher{
		cli: cli,
		key: key,
	}
}

// Publish validates the document and writes it to the descriptor key.
// The gateway's watcher rebuilds its routing table from it. The parsed
// composition is returned so callers can log the start order.
func (p *CompositionPublisher) Publish(doc []byte) (*descriptor.Composition, error) {
	comp, err := descriptor.Parse(doc)
	if err != nil {
		logger.WithError(err).Error("refusing to publish an invalid descriptor")
		return nil, err
	}
	if _, err := utils.PutKV(p.cli, p.key, string(doc)); err != nil {
		return nil, err
	}
	logger.Infof("published composition version %q with %d services to %s",
		comp.Version, len(comp.Services), p.key)
	return comp, nil
}

// Fetch reads back the currently published composition.
func (p *CompositionPublisher) Fetch() (*descriptor.Composition, error) {
	return descriptor.Fetch(p.cli, p.key)
}
