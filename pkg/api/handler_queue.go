package api

import (
	"encoding/json"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
	"github.com/theredstring/redstring-sub011/pkg/queue"
)

const (
	goalQueueName   = "goalQueue"
	taskQueueName   = "taskQueue"
	patchQueueName  = "patchQueue"
	reviewQueueName = "reviewQueue"
)

type goalsEnqueueRequest struct {
	Goal     string          `json:"goal" validate:"required"`
	DAG      json.RawMessage `json:"dag"`
	ThreadID string          `json:"threadId"`
}

// handleGoalsEnqueue handles POST /queue/goals.enqueue (spec.md §6).
func (s *Server) handleGoalsEnqueue(c *echo.Context) error {
	var req goalsEnqueueRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid goal request: "+err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	id := uuid.NewString()
	var dag interface{}
	_ = json.Unmarshal(req.DAG, &dag)
	s.queues.Enqueue(goalQueueName, map[string]interface{}{
		"id": id, "type": "goal", "goal": req.Goal, "dag": dag, "threadId": req.ThreadID,
	}, req.ThreadID)
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "id": id})
}

type tasksPullRequest struct {
	ThreadID string `json:"threadId,omitempty"`
	Max      int    `json:"max"`
}

// handleTasksPull handles POST /queue/tasks.pull (spec.md §6).
func (s *Server) handleTasksPull(c *echo.Context) error {
	var req tasksPullRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request: "+err.Error())
	}
	items := s.queues.Pull(taskQueueName, queue.PullOptions{PartitionKey: req.ThreadID, Max: req.Max})
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "items": items})
}

type patchesSubmitRequest struct {
	Patch graphmodel.Patch `json:"patch"`
}

// handlePatchesSubmit handles POST /queue/patches.submit (spec.md §6,
// requires patch.graphId).
func (s *Server) handlePatchesSubmit(c *echo.Context) error {
	var req patchesSubmitRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request: "+err.Error())
	}
	if req.Patch.GraphID == "" {
		return badRequest(c, "patch.graphId is required")
	}
	if req.Patch.PatchID == "" {
		req.Patch.PatchID = uuid.NewString()
	}
	raw, _ := json.Marshal(req.Patch)
	var payload map[string]interface{}
	_ = json.Unmarshal(raw, &payload)
	s.queues.Enqueue(patchQueueName, payload, req.Patch.GraphID)
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "patchId": req.Patch.PatchID})
}

type reviewsPullRequest struct {
	Max int `json:"max"`
}

// handleReviewsPull handles POST /queue/reviews.pull (spec.md §6).
func (s *Server) handleReviewsPull(c *echo.Context) error {
	var req reviewsPullRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request: "+err.Error())
	}
	items := s.queues.Pull(reviewQueueName, queue.PullOptions{Max: req.Max})
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "items": items})
}

type reviewsSubmitRequest struct {
	LeaseID  string            `json:"leaseId"`
	Decision string            `json:"decision"`
	Reasons  []string          `json:"reasons,omitempty"`
	GraphID  string            `json:"graphId"`
	Patch    *graphmodel.Patch `json:"patch,omitempty"`
	Patches  []graphmodel.Patch `json:"patches,omitempty"`
}

// handleReviewsSubmit handles POST /queue/reviews.submit: the Auditor's
// verdict is re-enqueued onto reviewQueue for the Committer/Drainer to pull
// (spec.md §6, §4.4).
func (s *Server) handleReviewsSubmit(c *echo.Context) error {
	var req reviewsSubmitRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request: "+err.Error())
	}
	if req.LeaseID == "" || req.GraphID == "" {
		return badRequest(c, "leaseId and graphId are required")
	}
	if req.Decision != string(graphmodel.ReviewApproved) && req.Decision != string(graphmodel.ReviewRejected) {
		return badRequest(c, "decision must be approved or rejected")
	}
	review := graphmodel.Review{
		LeaseID: req.LeaseID, ReviewStatus: graphmodel.ReviewStatus(req.Decision),
		Reasons: req.Reasons, GraphID: req.GraphID, Patch: req.Patch, Patches: req.Patches,
	}
	s.queues.Ack(taskQueueName, req.LeaseID)
	raw, _ := json.Marshal(review)
	var payload map[string]interface{}
	_ = json.Unmarshal(raw, &payload)
	s.queues.Enqueue(reviewQueueName, payload, req.GraphID)
	return c.JSON(http.StatusOK, ok(nil))
}

// handleCommitApply handles POST /commit/apply: a no-op ack, since the
// Committer loop is continuous (spec.md §6).
func (s *Server) handleCommitApply(c *echo.Context) error {
	return c.JSON(http.StatusOK, ok(nil))
}

// handleQueueMetrics handles GET /queue/metrics?name=… (spec.md §6).
func (s *Server) handleQueueMetrics(c *echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		return badRequest(c, "name is required")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "name": name, "metrics": s.queues.Metrics(name)})
}

// handleQueuePeek handles GET /queue/peek?name=…&head=N (spec.md §6).
func (s *Server) handleQueuePeek(c *echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		return badRequest(c, "name is required")
	}
	head := parseIntDefault(c.QueryParam("head"), 10)
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "items": s.queues.Peek(name, head)})
}

// handlePatchesApproveNext handles POST /queue/patches.approve-next, a test
// helper that auto-approves the oldest pending review so acceptance tests
// don't need a live Auditor (spec.md §6 "Test helpers").
func (s *Server) handlePatchesApproveNext(c *echo.Context) error {
	items := s.queues.Pull(reviewQueueName, queue.PullOptions{Max: 1})
	if len(items) == 0 {
		return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "approved": false})
	}
	item := items[0]
	item.Payload["reviewStatus"] = string(graphmodel.ReviewApproved)
	s.queues.Ack(reviewQueueName, item.LeaseID)
	s.queues.Enqueue(reviewQueueName, item.Payload, item.PartitionKey)
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "approved": true})
}
