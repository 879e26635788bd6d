package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlanHandlesBareJSON(t *testing.T) {
	plan, err := parsePlan(`{"intent":"qa","response":"hi"}`)
	require.NoError(t, err)
	assert.Equal(t, IntentQA, plan.Intent)
	assert.Equal(t, "hi", plan.Response)
}

func TestParsePlanStripsMarkdownFences(t *testing.T) {
	plan, err := parsePlan("```json\n{\"intent\":\"create_graph\",\"graph\":{\"name\":\"Foo\"}}\n```")
	require.NoError(t, err)
	assert.Equal(t, IntentCreateGraph, plan.Intent)
	assert.Equal(t, "Foo", plan.Graph.Name)
}

func TestParsePlanExtractsJSONFromSurroundingProse(t *testing.T) {
	plan, err := parsePlan(`Sure thing! {"intent":"analyze","response":"ok"} Let me know if you need more.`)
	require.NoError(t, err)
	assert.Equal(t, IntentAnalyze, plan.Intent)
}

func TestParsePlanRejectsMissingIntent(t *testing.T) {
	_, err := parsePlan(`{"response":"hi"}`)
	assert.Error(t, err)
}

func TestParsePlanRejectsGarbage(t *testing.T) {
	_, err := parsePlan("not json at all")
	assert.Error(t, err)
}

func TestHeuristicClassifyDetectsCreateGraph(t *testing.T) {
	plan := heuristicClassify("please create a new graph for me")
	assert.Equal(t, IntentCreateGraph, plan.Intent)
}

func TestHeuristicClassifyDetectsCreateNode(t *testing.T) {
	plan := heuristicClassify("add a node called Apple")
	assert.Equal(t, IntentCreateNode, plan.Intent)
}

func TestHeuristicClassifyDefaultsToQA(t *testing.T) {
	plan := heuristicClassify("what is the weather today")
	assert.Equal(t, IntentQA, plan.Intent)
}
