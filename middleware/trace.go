package middleware

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Logger writes one access line per proxied request.
func Logger(code int, path, method, clientIP string, start time.Time) {
	logger.WithFields(logrus.Fields{
		"status":  code,
		"method":  method,
		"client":  clientIP,
		"latency": time.Since(start).String(),
	}).Info(path)
}
