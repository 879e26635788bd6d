package router

import "strings"

// createGraphVerbPhrases are explicit phrasings that unambiguously mean
// "make a new graph" rather than "add a node" (spec.md §4.6 "intent
// resolution").
var createGraphVerbPhrases = []string{
	"create a graph", "create graph", "new graph",
	"make a graph", "make graph",
	"create a perspective", "new perspective",
	"create a view", "new view",
}

// resolveIntent applies the post-hoc override rules the planner's raw
// intent is checked against before dispatch (spec.md §4.6):
//
//   - create_graph is downgraded to create_node when the message names a
//     node noun and contains none of the explicit create-graph phrases
//     (the planner over-fires on "graph" appearing anywhere).
//   - create_node is upgraded to create_graph when the message contains
//     one of the explicit create-graph phrases (the planner under-fires
//     when the user explicitly asks for a new workspace).
//
// Returns the resolved intent plus a flags map recording which rule, if
// any, fired — used only for telemetry.
func resolveIntent(intent, message string) (string, map[string]interface{}) {
	lower := strings.ToLower(message)
	hasExplicitGraphPhrase := containsAny(lower, createGraphVerbPhrases)
	hasNodeNoun := strings.Contains(lower, "node") || strings.Contains(lower, "concept") || strings.Contains(lower, "thing") || strings.Contains(lower, "idea")

	flags := map[string]interface{}{}

	switch intent {
	case IntentCreateGraph:
		if !hasExplicitGraphPhrase && hasNodeNoun {
			flags["rule"] = "create_graph_downgraded_to_create_node"
			return IntentCreateNode, flags
		}
	case IntentCreateNode:
		if hasExplicitGraphPhrase {
			flags["rule"] = "create_node_upgraded_to_create_graph"
			return IntentCreateGraph, flags
		}
	}
	return intent, flags
}
