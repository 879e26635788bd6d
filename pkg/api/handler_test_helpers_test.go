package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
)

func TestHandleTestCreateTaskAssignsID(t *testing.T) {
	s := newQueueTestServer()
	rec := doJSON(t, s, s.handleTestCreateTask, http.MethodPost, "/test/create-task",
		testCreateTaskRequest{ThreadID: "t1", Payload: map[string]interface{}{"kind": "addNode"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
}

func TestHandleTestCommitOpsRequiresGraphID(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, s.handleTestCommitOps, http.MethodPost, "/test/commit-ops", testCommitOpsRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTestCommitOpsEnqueuesPendingAction(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, s.handleTestCommitOps, http.MethodPost, "/test/commit-ops",
		testCommitOpsRequest{GraphID: "g1", Ops: []graphmodel.Op{{Type: graphmodel.OpAddNodePrototype}}})
	require.Equal(t, http.StatusOK, rec.Code)

	leased := s.pending.Lease()
	require.Len(t, leased, 1)
	assert.Equal(t, graphmodel.ActionApplyMutations, leased[0].Action)
}

func TestHandleTestReadStoreReturnsSnapshot(t *testing.T) {
	s := newTestServer()
	s.setStore(graphmodel.ProjectedStore{Graphs: []graphmodel.Graph{{ID: "g1"}}})
	rec := doJSON(t, s, s.handleTestReadStore, http.MethodGet, "/test/ai/read-store", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var store graphmodel.ProjectedStore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &store))
	_, found := store.FindGraphByID("g1")
	assert.True(t, found)
}

func TestHandleTestRoundtripAddNodePreservesFields(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, s.handleTestRoundtripAddNode, http.MethodPost, "/test/ai/roundtrip/add-node",
		testRoundtripAddNodeRequest{GraphID: "g1", PrototypeName: "Widget", X: 12.5, Y: 8})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Identical    bool          `json:"identical"`
		Roundtripped graphmodel.Op `json:"roundtripped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Identical)
	assert.Equal(t, "g1", resp.Roundtripped.GraphID)
	require.NotNil(t, resp.Roundtripped.Position)
	assert.Equal(t, 12.5, resp.Roundtripped.Position.X)
}

func TestHandleTestRoundtripAddNodeRequiresFields(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, s.handleTestRoundtripAddNode, http.MethodPost, "/test/ai/roundtrip/add-node",
		testRoundtripAddNodeRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
