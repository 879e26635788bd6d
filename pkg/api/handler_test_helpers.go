package api

import (
	"encoding/json"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
)

// These endpoints exist only to give acceptance tests a way to drive the
// pipeline without a live LLM or Auditor (spec.md §6 "Test helpers").

type testCreateTaskRequest struct {
	ThreadID string                 `json:"threadId"`
	Payload  map[string]interface{} `json:"payload"`
}

// handleTestCreateTask handles POST /test/create-task: enqueues a task
// directly onto taskQueue, bypassing the Planner.
func (s *Server) handleTestCreateTask(c *echo.Context) error {
	var req testCreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request: "+err.Error())
	}
	payload := req.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if _, ok := payload["id"]; !ok {
		payload["id"] = uuid.NewString()
	}
	s.queues.Enqueue(taskQueueName, payload, req.ThreadID)
	return c.JSON(http.StatusOK, ok(map[string]interface{}{"id": payload["id"]}))
}

type testCommitOpsRequest struct {
	GraphID string         `json:"graphId"`
	Ops     []graphmodel.Op `json:"ops"`
	Cid     string         `json:"cid,omitempty"`
}

// handleTestCommitOps handles POST /test/commit-ops: enqueues a ready-made
// applyMutations bundle directly onto the Pending-Action Store, bypassing
// the Committer's queue pulls and merge check — useful for asserting what
// the UI would receive for a known set of ops.
func (s *Server) handleTestCommitOps(c *echo.Context) error {
	var req testCommitOpsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request: "+err.Error())
	}
	if req.GraphID == "" {
		return badRequest(c, "graphId is required")
	}
	meta := map[string]interface{}{"graphId": req.GraphID}
	if req.Cid != "" {
		meta["cid"] = req.Cid
	}
	action := s.pending.Enqueue(graphmodel.PendingAction{
		Action: graphmodel.ActionApplyMutations,
		Params: []map[string]interface{}{{"ops": req.Ops}},
		Meta:   meta,
	})
	return c.JSON(http.StatusOK, ok(map[string]interface{}{"actionId": action.ID}))
}

// handleTestReadStore handles GET /test/ai/read-store: returns the latest
// projected store snapshot exactly as the Router's StoreProvider would see
// it.
func (s *Server) handleTestReadStore(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.Store())
}

type testRoundtripAddNodeRequest struct {
	GraphID       string  `json:"graphId"`
	PrototypeName string  `json:"prototypeName"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
}

// handleTestRoundtripAddNode handles POST /test/ai/roundtrip/add-node: it
// builds an addNodeInstance Op, marshals and unmarshals it through JSON
// exactly as the queue boundary does, and echoes both forms back so a test
// can assert the round-trip preserves every field (spec.md §5 "payload-
// agnostic queue, graphmodel-aware code marshals/unmarshals at the
// boundary").
func (s *Server) handleTestRoundtripAddNode(c *echo.Context) error {
	var req testRoundtripAddNodeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request: "+err.Error())
	}
	if req.GraphID == "" || req.PrototypeName == "" {
		return badRequest(c, "graphId and prototypeName are required")
	}
	op := graphmodel.Op{
		Type:          graphmodel.OpAddNodeInstance,
		GraphID:       req.GraphID,
		PrototypeData: map[string]interface{}{"name": req.PrototypeName},
		Position:      &graphmodel.Point{X: req.X, Y: req.Y},
	}
	raw, err := json.Marshal(op)
	if err != nil {
		return badRequest(c, "marshal failed: "+err.Error())
	}
	var roundtripped graphmodel.Op
	if err := json.Unmarshal(raw, &roundtripped); err != nil {
		return badRequest(c, "unmarshal failed: "+err.Error())
	}
	rawRoundtripped, _ := json.Marshal(roundtripped)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":           true,
		"original":     op,
		"roundtripped": roundtripped,
		"identical":    string(raw) == string(rawRoundtripped),
	})
}
