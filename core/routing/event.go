package routing

import (
	"time"

	"github.com/relaygw/relay/core/utils"
)

type HealthCheckMsg int

type ReloadMsgFunc func()

type ReloadMsg struct {
	Handle ReloadMsgFunc
}

type Events struct {
	reloadCh      chan ReloadMsg
	healthCheckCh chan HealthCheckMsg
}

func NewEvents() *Events {
	return &Events{
		healthCheckCh: make(chan HealthCheckMsg),
		reloadCh:      make(chan ReloadMsg, 1000),
	}
}

// PushHealthCheckEvent requests one immediate probe pass outside the
// periodic schedule.
func (r *Table) PushHealthCheckEvent() {
	select {
	case r.events.healthCheckCh <- 1:
	case <-r.quit:
	}
}

func (r *Table) PushReloadEvent(msg ReloadMsg) {
	r.events.reloadCh <- msg
}

func (r *Table) HandleEvent() {
	defer func() {
		logger.Debug("handle event quit")
		if err := recover(); err != nil {
			stack := utils.Stack(3)
			logger.Errorf("[Recovery] %s panic recovered:\n%s\n%s", utils.TimeFormat(time.Now()), err, stack)
		}
		if !r.stopped() {
			go r.HandleEvent()
		}
	}()

	for {
		select {
		case <-r.quit:
			return
		case <-r.events.healthCheckCh:
			r.doHealthCheck()
		case msg := <-r.events.reloadCh:
			r.handleReloadEvent(&msg)
		}
	}
}

// coalesce queued reload events, only the last descriptor write is
// applied
func (r *Table) handleReloadEvent(msg *ReloadMsg) {
	for {
		select {
		case next := <-r.events.reloadCh:
			msg = &next
		default:
			msg.Handle()
			return
		}
	}
}
