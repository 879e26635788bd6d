package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/theredstring/redstring-sub011/pkg/scheduler"
)

type schedulerStartRequest struct {
	CadenceMs  int                   `json:"cadenceMs,omitempty"`
	Toggles    *scheduler.Toggles    `json:"toggles,omitempty"`
	MaxPerTick *scheduler.MaxPerTick `json:"maxPerTick,omitempty"`
}

// handleSchedulerStart handles POST /orchestration/scheduler/start; the
// body mirrors spec.md §4.5's options, each field optional (falls back to
// the Scheduler's own defaults).
func (s *Server) handleSchedulerStart(c *echo.Context) error {
	var req schedulerStartRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request: "+err.Error())
	}
	opts := scheduler.Options{
		CadenceMs:  req.CadenceMs,
		Toggles:    scheduler.Toggles{Planner: true, Executor: true, Auditor: true},
		MaxPerTick: scheduler.MaxPerTick{Planner: 10, Executor: 10, Auditor: 10},
	}
	if opts.CadenceMs == 0 {
		opts.CadenceMs = 250
	}
	if req.Toggles != nil {
		opts.Toggles = *req.Toggles
	}
	if req.MaxPerTick != nil {
		opts.MaxPerTick = *req.MaxPerTick
	}
	s.sched.Start(opts)
	return c.JSON(http.StatusOK, ok(nil))
}

// handleSchedulerStop handles POST /orchestration/scheduler/stop.
func (s *Server) handleSchedulerStop(c *echo.Context) error {
	s.sched.Stop()
	return c.JSON(http.StatusOK, ok(nil))
}

// handleSchedulerStatus handles GET /orchestration/scheduler/status.
func (s *Server) handleSchedulerStatus(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.sched.Status())
}
