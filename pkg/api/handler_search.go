package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/theredstring/redstring-sub011/pkg/search"
)

// handleSearch handles GET /search?q=&scope=&graphId=&limit=&regex=&fuzzy=&
// caseSensitive= against the latest projected store snapshot (spec.md §6,
// §4.8).
func (s *Server) handleSearch(c *echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return badRequest(c, "q is required")
	}
	opts := search.Options{
		Scope:         search.Scope(c.QueryParam("scope")),
		GraphID:       c.QueryParam("graphId"),
		Limit:         parseIntDefault(c.QueryParam("limit"), 0),
		Regex:         c.QueryParam("regex") == "true",
		Fuzzy:         c.QueryParam("fuzzy") == "true",
		CaseSensitive: c.QueryParam("caseSensitive") == "true",
	}
	results, err := search.Query(s.Store(), q, opts)
	if err != nil {
		return badRequest(c, "invalid query: "+err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":      true,
		"count":   len(results),
		"results": results,
	})
}
