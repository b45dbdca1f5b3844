package routing

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

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
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}
}
