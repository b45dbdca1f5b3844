package admin

import (
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var (
	logger = logrus.New()
)

type BaseResponse struct {
	ErrMsg string      `json:"err_msg"`
	Data   interface{} `json:"data"`
}

func (b *BaseResponse) Init(d interface{}) {
	if d == nil {
		b.Data = map[string]string{}
	} else {
		b.Data = d
	}
}

func (b *BaseResponse) InitError(err error) {
	b.ErrMsg = err.Error()
	b.Data = map[string]string{}
}

func init() {
	serverDebug := os.Getenv("SERVER_DEBUG")
	logger.SetLevel(logrus.InfoLevel)
	gin.SetMode(gin.ReleaseMode)
	if serverDebug != "" {
		tmp, err := strconv.ParseInt(serverDebug, 10, 64)
		if err != nil {
			logger.WithError(err).Error("invalid SERVER_DEBUG value")
		}
		if tmp > 0 {
			logger.SetLevel(logrus.DebugLevel)
			gin.SetMode(gin.DebugMode)
		}
	} else {
		logger.SetLevel(logrus.DebugLevel)
		gin.SetMode(gin.DebugMode)
	}
}
