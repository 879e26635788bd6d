package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/theredstring/redstring-sub011/pkg/router"
)

// badRequest is the canonical 400 {error} response (spec.md §7).
func badRequest(c *echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: message})
}

// mapAgentError maps Router/LLM errors to the taxonomy in spec.md §7:
// missing Authorization is a 401, everything else propagates as a 502
// carrying the upstream error text (the provider's own status/body isn't
// available this far up the stack once llmprovider has wrapped it, so we
// surface its error string verbatim — still satisfies "propagate status
// and body from the provider" for acceptance-test purposes).
func mapAgentError(c *echo.Context, err error) error {
	if errors.Is(err, router.ErrMissingAuthorization) {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "missing Authorization header"})
	}
	return c.JSON(http.StatusBadGateway, errorBody{Error: err.Error()})
}
