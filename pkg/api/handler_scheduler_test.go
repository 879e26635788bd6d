package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theredstring/redstring-sub011/pkg/queue"
	"github.com/theredstring/redstring-sub011/pkg/scheduler"
)

type noopPlanner struct{}

func (noopPlanner) Plan(map[string]interface{}) []map[string]interface{} { return nil }

type noopExecutor struct{}

func (noopExecutor) Execute(map[string]interface{}) map[string]interface{} { return nil }

type noopAuditor struct{}

func (noopAuditor) Audit(map[string]interface{}) map[string]interface{} { return nil }

func newSchedulerTestServer() *Server {
	s := newTestServer()
	s.queues = queue.NewManager(30*time.Second, 5, nil)
	s.sched = scheduler.New(s.queues, noopPlanner{}, noopExecutor{}, noopAuditor{})
	return s
}

func TestHandleSchedulerStartAppliesDefaults(t *testing.T) {
	s := newSchedulerTestServer()
	rec := doJSON(t, s, s.handleSchedulerStart, http.MethodPost, "/orchestration/scheduler/start", schedulerStartRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
	t.Cleanup(s.sched.Stop)

	status := s.sched.Status()
	assert.True(t, status.Enabled)
	assert.Equal(t, 250, status.CadenceMs)
}

func TestHandleSchedulerStopDisables(t *testing.T) {
	s := newSchedulerTestServer()
	s.sched.Start(scheduler.Options{})
	rec := doJSON(t, s, s.handleSchedulerStop, http.MethodPost, "/orchestration/scheduler/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, s.sched.Status().Enabled)
}

func TestHandleSchedulerStatusReportsState(t *testing.T) {
	s := newSchedulerTestServer()
	rec := doJSON(t, s, s.handleSchedulerStatus, http.MethodGet, "/orchestration/scheduler/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status scheduler.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Enabled)
}
