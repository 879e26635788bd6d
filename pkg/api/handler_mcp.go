package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/theredstring/redstring-sub011/pkg/mcpshim"
)

// handleMCPRequest handles POST /api/mcp/request: the inbound MCP shim
// (C13). The body is one JSON-RPC 2.0 request. A body that does not bind is
// answered with HTTP 400; otherwise the shim's JSON-RPC response, including
// JSON-RPC errors, is returned with HTTP 200 (spec.md §6, §7).
func (s *Server) handleMCPRequest(c *echo.Context) error {
	var req mcpshim.Request
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON-RPC request: "+err.Error())
	}
	return c.JSON(http.StatusOK, s.mcp.Handle(req))
}
