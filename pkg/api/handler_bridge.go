package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/theredstring/redstring-sub011/pkg/events"
	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
)

// handleBridgeStatePost handles POST /api/bridge/state: the UI posts its
// full ProjectedStore; this is the only place the server accepts a
// wholesale replace of graph world state (spec.md §5 "Locking").
func (s *Server) handleBridgeStatePost(c *echo.Context) error {
	var store graphmodel.ProjectedStore
	if err := c.Bind(&store); err != nil {
		return badRequest(c, "invalid ProjectedStore body: "+err.Error())
	}
	s.setStore(store)
	s.telemetry.Record(events.TelemetryBridgeState, "", map[string]interface{}{
		"graphs":     len(store.Graphs),
		"prototypes": len(store.NodePrototypes),
	})
	return c.JSON(http.StatusOK, ok(nil))
}

// handleBridgeStateGet handles GET /api/bridge/state.
func (s *Server) handleBridgeStateGet(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.Store())
}

// layoutRequest is the body of POST /api/bridge/layout (spec.md §6).
type layoutRequest struct {
	Layouts map[string]graphmodel.GraphLayout `json:"layouts"`
	Mode    string                            `json:"mode"`
}

// handleBridgeLayout handles POST /api/bridge/layout: merges or replaces
// per-graph layout data (spec.md §5 "Partial updates go through
// /api/bridge/layout using merge-or-replace semantics").
func (s *Server) handleBridgeLayout(c *echo.Context) error {
	var req layoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid layout body: "+err.Error())
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.store.GraphLayouts == nil {
		s.store.GraphLayouts = make(map[string]graphmodel.GraphLayout)
	}

	for graphID, incoming := range req.Layouts {
		if req.Mode == "replace" {
			s.store.GraphLayouts[graphID] = incoming
			continue
		}
		existing := s.store.GraphLayouts[graphID]
		if existing.Nodes == nil {
			existing.Nodes = make(map[string]interface{})
		}
		if existing.Metadata == nil {
			existing.Metadata = make(map[string]interface{})
		}
		for k, v := range incoming.Nodes {
			existing.Nodes[k] = v
		}
		for k, v := range incoming.Metadata {
			existing.Metadata[k] = v
		}
		s.store.GraphLayouts[graphID] = existing
	}
	return c.JSON(http.StatusOK, ok(nil))
}

// handleBridgeHealth handles GET /api/bridge/health.
func (s *Server) handleBridgeHealth(c *echo.Context) error {
	store := s.Store()
	hasStore := len(store.Graphs) > 0 || !store.Summary.LastUpdate.IsZero()
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "hasStore": hasStore})
}

// handlePendingActionsLease handles GET /api/bridge/pending-actions:
// lease-on-GET of the Pending-Action store (spec.md §4.3).
func (s *Server) handlePendingActionsLease(c *echo.Context) error {
	leased := s.pending.Lease()
	if leased == nil {
		leased = []graphmodel.PendingAction{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "actions": leased})
}

type actionCompletedRequest struct {
	ActionID string `json:"actionId"`
}

// handleActionCompleted handles POST /api/bridge/action-completed: ack by
// actionId (spec.md §4.3, §4.4 step 9).
func (s *Server) handleActionCompleted(c *echo.Context) error {
	var req actionCompletedRequest
	if err := c.Bind(&req); err != nil || req.ActionID == "" {
		return badRequest(c, "actionId is required")
	}
	if !s.pending.Ack(req.ActionID) {
		return c.JSON(http.StatusOK, map[string]interface{}{"ok": false, "reason": "unknown or already-acked actionId"})
	}
	return c.JSON(http.StatusOK, ok(nil))
}

type actionFeedbackRequest struct {
	Action string                   `json:"action"`
	Status string                   `json:"status"`
	Error  string                   `json:"error,omitempty"`
	Params []map[string]interface{} `json:"params,omitempty"`
}

// handleActionFeedback handles POST /api/bridge/action-feedback. Per
// spec.md §6 the body keys on "action" (the action id, historically named
// after the UI's own field), recorded without removing the lease.
func (s *Server) handleActionFeedback(c *echo.Context) error {
	var req actionFeedbackRequest
	if err := c.Bind(&req); err != nil || req.Action == "" || req.Status == "" {
		return badRequest(c, "action and status are required")
	}
	s.pending.Feedback(req.Action, req.Status, req.Error, req.Params)
	return c.JSON(http.StatusOK, ok(nil))
}

// handlePendingActionsEnqueue handles POST /api/bridge/pending-actions/enqueue,
// a server-side enqueue for external callers (spec.md §6). The Committer and
// Drainer do not go through it; they call pendingactions.Store.Enqueue
// in-process.
func (s *Server) handlePendingActionsEnqueue(c *echo.Context) error {
	var action graphmodel.PendingAction
	if err := c.Bind(&action); err != nil {
		return badRequest(c, "invalid pending action body: "+err.Error())
	}
	if action.Action == "" {
		return badRequest(c, "action is required")
	}
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	enqueued := s.pending.Enqueue(action)
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "id": enqueued.ID})
}

// handleBridgeTelemetrySnapshot handles GET /api/bridge/telemetry: a
// combined {telemetry[], chat[]} snapshot (spec.md §6).
func (s *Server) handleBridgeTelemetrySnapshot(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"telemetry": s.telemetry.Query("", "", 0),
		"chat":      s.chat.Since(0),
	})
}
