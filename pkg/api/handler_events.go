package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/theredstring/redstring-sub011/pkg/events"
)

const keepAliveInterval = 500 * time.Millisecond

// handleEventsStream handles GET /events/stream: SSE emitting typed Event
// Log entries plus tail-mirrored telemetry as TELEMETRY events (spec.md §6).
// Chat lines are not streamed here; the Chat buffer has no subscription.
func (s *Server) handleEventsStream(c *echo.Context) error {
	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	type delivery struct {
		event string
		data  interface{}
	}
	deliveries := make(chan delivery, 256)

	for _, e := range s.eventLog.Snapshot(0) {
		writeSSEEvent(w, string(e.Type), e)
	}
	w.Flush()

	unsubLog := s.eventLog.Subscribe(func(e events.Entry) {
		select {
		case deliveries <- delivery{event: string(e.Type), data: e}:
		default:
		}
	})
	defer unsubLog()
	unsubTel := s.telemetry.Subscribe(func(e events.TelemetryEntry) {
		select {
		case deliveries <- delivery{event: "TELEMETRY", data: e}:
		default:
		}
	})
	defer unsubTel()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-deliveries:
			writeSSEEvent(w, d.event, d.data)
			w.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			w.Flush()
		}
	}
}

// handleTelemetryPolled handles GET /telemetry?cid=&type=&limit= (spec.md
// §6).
func (s *Server) handleTelemetryPolled(c *echo.Context) error {
	cid := c.QueryParam("cid")
	typ := events.TelemetryType(c.QueryParam("type"))
	limit := parseIntDefault(c.QueryParam("limit"), 0)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":      true,
		"entries": s.telemetry.Query(cid, typ, limit),
	})
}

// handleTelemetryStream handles GET /telemetry/stream?cid=&type=&from=:
// SSE replaying from an optional seq boundary then tailing, with 500ms
// keep-alive comments carrying a timestamp (spec.md §6, §4.10).
func (s *Server) handleTelemetryStream(c *echo.Context) error {
	cid := c.QueryParam("cid")
	typ := events.TelemetryType(c.QueryParam("type"))
	from := parseUint64Default(c.QueryParam("from"), 0)

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	matches := func(e events.TelemetryEntry) bool {
		if cid != "" && e.Cid != cid {
			return false
		}
		if typ != "" && e.Type != typ {
			return false
		}
		return true
	}

	for _, e := range s.telemetry.ReplaySince(from) {
		if matches(e) {
			writeSSEEvent(w, "telemetry", e)
		}
	}
	w.Flush()

	deliveries := make(chan events.TelemetryEntry, 256)
	unsub := s.telemetry.Subscribe(func(e events.TelemetryEntry) {
		if !matches(e) {
			return
		}
		select {
		case deliveries <- e:
		default:
		}
	})
	defer unsub()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-deliveries:
			writeSSEEvent(w, "telemetry", e)
			w.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": keep-alive %d\n\n", time.Now().UnixMilli())
			w.Flush()
		}
	}
}

func writeSSEEvent(w *echo.Response, event string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", raw)
}

func parseUint64Default(s string, def uint64) uint64 {
	if s == "" {
		return def
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}
