package middleware

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// Middleware runs before the proxy handler. Each middleware receives the
// request context and must push exactly one value into errChan: nil to
// let the request through, an error to reject it.
type Middleware interface {
	Work(ctx *fasthttp.RequestCtx, errChan chan error)
}

var (
	logger = logrus.New()
)

func init() {
	serverDebug := os.Getenv("SERVER_DEBUG")
	logger.SetLevel(logrus.InfoLevel)
	if serverDebug != "" {
		tmp, err := strconv.ParseInt(serverDebug, 10, 64)
		if err != nil {
			logger.WithError(err).Error("invalid SERVER_DEBUG value")
		}
		if tmp > 0 {
			logger.SetLevel(logrus.DebugLevel)
		}
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}
}
