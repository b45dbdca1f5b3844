// Package admin exposes the operator surface of the gateway: routing
// table snapshots, request tallies and manual endpoint overrides.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/relaygw/relay/core/routing"
	"github.com/relaygw/relay/middleware"
)

type Server struct {
	holder  *routing.Holder
	counter *middleware.Counter
	secret  string
}

func New(holder *routing.Holder, counter *middleware.Counter, secret string) *Server {
	return &Server{
		holder:  holder,
		counter: counter,
		secret:  secret,
	}
}

func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	grp := r.Group("/admin", Auth(s.secret))
	grp.GET("/table", s.Table)
	grp.GET("/summary", s.Summary)
	grp.PUT("/endpoints/:id/status", s.SetEndpointStatus)
	grp.POST("/healthcheck", s.TriggerHealthCheck)
	return r
}

func (s *Server) Run(addr string) error {
	logger.Infof("admin api listening on %s", addr)
	return s.Engine().Run(addr)
}

func (s *Server) Table(c *gin.Context) {
	var resp BaseResponse
	resp.Init(s.holder.Table().GetTableInfo())
	c.JSON(http.StatusOK, resp)
}

func (s *Server) Summary(c *gin.Context) {
	var resp BaseResponse
	if s.counter == nil {
		resp.Init(map[string]uint64{})
	} else {
		resp.Init(s.counter.Summary())
	}
	c.JSON(http.StatusOK, resp)
}

// SetEndpointStatus applies a manual override. "online" acts like a
// reported success: the failure counter resets and any exclusion lifts
// immediately. "offline" removes the endpoint from selection until an
// operator or the probe brings it back.
func (s *Server) SetEndpointStatus(c *gin.Context) {
	var resp BaseResponse
	var request struct {
		Status string `json:"status" binding:"required"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		logger.WithError(err).Debug("bad override request")
		resp.InitError(err)
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	var status routing.Status
	switch request.Status {
	case "online":
		status = routing.Online
	case "offline":
		status = routing.Offline
	case "breakdown":
		status = routing.BreakDown
	default:
		resp.ErrMsg = "status must be online, offline or breakdown"
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	table := s.holder.Table()
	ep, found := table.GetEndpointById(c.Param("id"))
	if !found {
		resp.ErrMsg = "unknown endpoint id"
		c.JSON(http.StatusNotFound, resp)
		return
	}
	if err := table.SetEndpointStatus(ep, status); err != nil {
		resp.InitError(err)
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	resp.Init(map[string]string{"id": ep.Id(), "status": status.String()})
	c.JSON(http.StatusOK, resp)
}

func (s *Server) TriggerHealthCheck(c *gin.Context) {
	var resp BaseResponse
	go s.holder.Table().PushHealthCheckEvent()
	resp.Init(map[string]string{"triggered": "ok"})
	c.JSON(http.StatusOK, resp)
}
