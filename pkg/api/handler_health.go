package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// handleHealth handles GET /health, a bare liveness probe distinct from
// the richer GET /api/bridge/health (spec.md §6).
func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, ok(map[string]interface{}{"status": "healthy"}))
}
