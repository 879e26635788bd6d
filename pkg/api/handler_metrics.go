package api

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echo "github.com/labstack/echo/v5"
)

var metricsHandler = promhttp.Handler()

// handleMetrics handles GET /metrics: Prometheus exposition format for
// queue depth/inflight, scheduler status, committer throughput, and
// pending-action backlog (pkg/metrics).
func (s *Server) handleMetrics(c *echo.Context) error {
	metricsHandler.ServeHTTP(c.Response(), c.Request())
	return nil
}
