package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
)

func TestPlannerMaterializesDAGIntoTasks(t *testing.T) {
	p := NewPlanner()
	goal := map[string]interface{}{
		"id":       "goal-1",
		"threadId": "cid-1",
		"dag": []map[string]interface{}{
			{"toolName": "create_graph", "args": map[string]interface{}{"name": "Breaking Bad"}},
		},
	}

	tasks := p.Plan(goal)
	require.Len(t, tasks, 1)
	assert.Equal(t, "goal-1", tasks[0]["goalId"])
	assert.Equal(t, "cid-1", tasks[0]["threadId"])
	assert.NotEmpty(t, tasks[0]["id"])
}

func TestExecutorCreateGraphYieldsCreateNewGraphOp(t *testing.T) {
	store := func() graphmodel.ProjectedStore { return graphmodel.ProjectedStore{} }
	e := NewExecutor(store)

	patch := e.Execute(map[string]interface{}{
		"toolName": "create_graph",
		"args":     map[string]interface{}{"name": "Breaking Bad"},
	})

	require.NotNil(t, patch)
	ops, ok := patch["ops"].([]interface{})
	require.True(t, ok)
	require.Len(t, ops, 1)
	op := ops[0].(map[string]interface{})
	assert.Equal(t, graphmodel.OpCreateNewGraph, op["type"])
}

func TestExecutorVerifyStateYieldsReadResponse(t *testing.T) {
	store := func() graphmodel.ProjectedStore {
		return graphmodel.ProjectedStore{Graphs: []graphmodel.Graph{{ID: "g1", Name: "G1"}}}
	}
	e := NewExecutor(store)

	patch := e.Execute(map[string]interface{}{"toolName": "verify_state"})

	ops := patch["ops"].([]interface{})
	require.Len(t, ops, 1)
	op := ops[0].(map[string]interface{})
	assert.Equal(t, graphmodel.OpReadResponse, op["type"])
	data := op["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["graphCount"])
}

func TestAuditorApprovesEveryPatch(t *testing.T) {
	a := NewAuditor()
	review := a.Audit(map[string]interface{}{
		"patchId": "p1",
		"graphId": "g1",
		"ops":     []interface{}{},
	})

	require.NotNil(t, review)
	assert.Equal(t, string(graphmodel.ReviewApproved), review["reviewStatus"])
	assert.Equal(t, "g1", review["graphId"])
}

func TestGetGraphInstancesReportsNotFound(t *testing.T) {
	store := graphmodel.ProjectedStore{}
	result := GetGraphInstances(store, "missing")
	assert.Equal(t, false, result["found"])
}

func TestIdentifyPatternsFindsReusedPrototypesAndEmptyGraphs(t *testing.T) {
	store := graphmodel.ProjectedStore{
		NodePrototypes: []graphmodel.NodePrototype{{ID: "p1", Name: "Flour"}},
		Graphs: []graphmodel.Graph{
			{ID: "g1", Name: "G1", Instances: map[string]graphmodel.NodeInstance{"i1": {PrototypeID: "p1"}}},
			{ID: "g2", Name: "G2", Instances: map[string]graphmodel.NodeInstance{"i2": {PrototypeID: "p1"}}},
			{ID: "g3", Name: "G3", Instances: map[string]graphmodel.NodeInstance{}},
		},
	}

	result := IdentifyPatterns(store)
	reused := result["reusedPrototypes"].([]map[string]interface{})
	require.Len(t, reused, 1)
	assert.Equal(t, "p1", reused[0]["prototypeId"])

	empty := result["emptyGraphIds"].([]string)
	assert.Contains(t, empty, "g3")
}
