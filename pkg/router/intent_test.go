package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveIntentDowngradesCreateGraphWhenMessageNamesANode(t *testing.T) {
	resolved, flags := resolveIntent(IntentCreateGraph, "add a node called Apple to the graph")
	assert.Equal(t, IntentCreateNode, resolved)
	assert.Equal(t, "create_graph_downgraded_to_create_node", flags["rule"])
}

func TestResolveIntentKeepsCreateGraphWithExplicitPhrase(t *testing.T) {
	resolved, _ := resolveIntent(IntentCreateGraph, `create a graph called "Ideas"`)
	assert.Equal(t, IntentCreateGraph, resolved)
}

func TestResolveIntentUpgradesCreateNodeWithExplicitGraphPhrase(t *testing.T) {
	resolved, flags := resolveIntent(IntentCreateNode, "make a new graph for brainstorming")
	assert.Equal(t, IntentCreateGraph, resolved)
	assert.Equal(t, "create_node_upgraded_to_create_graph", flags["rule"])
}

func TestResolveIntentLeavesQAUntouched(t *testing.T) {
	resolved, flags := resolveIntent(IntentQA, "what's in this graph?")
	assert.Equal(t, IntentQA, resolved)
	assert.Empty(t, flags["rule"])
}

func TestResolveIntentLeavesCreateNodeUntouchedWithoutGraphPhrase(t *testing.T) {
	resolved, _ := resolveIntent(IntentCreateNode, "add a concept called Banana")
	assert.Equal(t, IntentCreateNode, resolved)
}
