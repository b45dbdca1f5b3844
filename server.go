package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coreos/etcd/clientv3"
	"github.com/relaygw/relay/admin"
	"github.com/relaygw/relay/core/descriptor"
	"github.com/relaygw/relay/core/routing"
	"github.com/relaygw/relay/middleware"
	"github.com/relaygw/relay/utils"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

var (
	logger = logrus.New()
)

func main() {
	conf := utils.ReadConfig()

	var cli *clientv3.Client
	var comp *descriptor.Composition
	var err error

	if conf.Descriptor.EtcdKey != "" {
		cli, err = clientv3.New(clientv3.Config{
			Endpoints:            conf.Etcd.Endpoints,
			Username:             conf.Etcd.Username,
			Password:             conf.Etcd.Password,
			AutoSyncInterval:     time.Duration(conf.Etcd.AutoSyncInterval) * time.Second,
			DialTimeout:          time.Duration(conf.Etcd.DialTimeout) * time.Second,
			DialKeepAliveTime:    time.Duration(conf.Etcd.DialKeepAliveTime) * time.Second,
			DialKeepAliveTimeout: time.Duration(conf.Etcd.DialKeepAliveTimeout) * time.Second,
		})
		if err != nil {
			logger.WithError(err).Error("can not connect etcd")
			os.Exit(-1)
		}
		comp, err = descriptor.Fetch(cli, conf.Descriptor.EtcdKey)
	} else {
		comp, err = descriptor.Load(conf.Descriptor.Path)
	}
	if err != nil {
		logger.WithError(err).Error("composition descriptor rejected")
		os.Exit(-1)
	}

	order, err := comp.StartOrder()
	if err != nil {
		logger.WithError(err).Error("composition descriptor rejected")
		os.Exit(-1)
	}
	logger.Infof("composition loaded, version %q, start order: %v", comp.Version, order)

	opt := routing.Options{
		FailureThreshold: int32(conf.Health.FailureThreshold),
		Cooldown:         time.Duration(conf.Health.CooldownSec) * time.Second,
		ProbeInterval:    time.Duration(conf.Health.ProbeIntervalSec) * time.Second,
		ProbeTimeout:     time.Duration(conf.Health.ProbeTimeoutSec) * time.Second,
	}
	table, err := routing.InitTable(comp, opt)
	if err != nil {
		logger.WithError(err).Error("can not materialize routing table")
		os.Exit(-1)
	}
	holder := routing.NewHolder(table)
	go table.HealthCheck()
	go table.HandleEvent()

	if cli != nil {
		go descriptor.Watch(context.Background(), cli, conf.Descriptor.EtcdKey, func(next *descriptor.Composition) {
			nextTable, err := routing.InitTable(next, opt)
			if err != nil {
				logger.WithError(err).Error("rejected descriptor update")
				return
			}
			holder.Table().PushReloadEvent(routing.ReloadMsg{Handle: func() {
				holder.Reload(nextTable)
			}})
		})
	}

	limiter := middleware.NewRateLimit(
		conf.Limiter.PerSecond,
		conf.Limiter.Burst,
		time.Duration(conf.Limiter.IdleTTLSec)*time.Second,
	)
	counter := middleware.NewCounter(
		conf.Counter.ShardNumber,
		time.Duration(conf.Counter.PersistencePeriod)*time.Second,
		conf.Counter.RedisAddr,
		conf.Counter.RedisPassword,
	)

	if conf.Admin.ListenAddr != "" {
		adm := admin.New(holder, counter, conf.Admin.JwtSecret)
		go func() {
			if err := adm.Run(conf.Admin.ListenAddr); err != nil {
				logger.WithError(err).Error("admin api stopped")
			}
		}()
	}

	server := &fasthttp.Server{
		Handler: routing.MainRequestHandlerWrapper(holder, limiter, counter),

		Name:               conf.Server.Name,
		Concurrency:        conf.Server.Concurrency,
		ReadBufferSize:     conf.Server.ReadBufferSize,
		WriteBufferSize:    conf.Server.WriteBufferSize,
		DisableKeepalive:   conf.Server.DisabledKeepAlive,
		ReduceMemoryUsage:  conf.Server.ReduceMemoryUsage,
		MaxRequestBodySize: conf.Server.MaxRequestBodySize,
	}

	addr := fmt.Sprintf("%s:%d", conf.Server.ListenHost, conf.Server.ListenPort)
	logger.Infof("%s listening on %s", conf.Server.Name, addr)
	if err := server.ListenAndServe(addr); err != nil {
		logger.WithError(err).Error("server stopped")
		os.Exit(-1)
	}
}
