package pipeline

import (
	"github.com/google/uuid"

	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
	"github.com/theredstring/redstring-sub011/pkg/search"
)

// Tool name tags, per spec.md §3/§4.5/§6.
const (
	ToolCreateGraph         = "create_graph"
	ToolVerifyState         = "verify_state"
	ToolListAvailableGraphs = "list_available_graphs"
	ToolGetGraphInstances   = "get_graph_instances"
	ToolReadGraphStructure  = "read_graph_structure"
	ToolIdentifyPatterns    = "identify_patterns"
	ToolSearchNodes         = "search_nodes"
)

// EvaluateTool dispatches a Task's toolName against the projected store,
// returning the Ops that should populate its Patch (spec.md §4.5 "Executor
// tick"). Write-side tools yield mutation ops; read-side and no-side-effect
// tools yield a single readResponse op carrying the read result.
func EvaluateTool(store graphmodel.ProjectedStore, toolName string, args map[string]interface{}) []graphmodel.Op {
	switch toolName {
	case ToolCreateGraph:
		name, _ := args["name"].(string)
		if name == "" {
			name = "Untitled Graph"
		}
		return []graphmodel.Op{{
			Type:        graphmodel.OpCreateNewGraph,
			InitialData: map[string]interface{}{"name": name, "id": uuid.NewString()},
		}}
	case ToolVerifyState:
		return readResponse(toolName, VerifyState(store))
	case ToolListAvailableGraphs:
		return readResponse(toolName, ListAvailableGraphs(store))
	case ToolGetGraphInstances:
		graphID, _ := args["graphId"].(string)
		return readResponse(toolName, GetGraphInstances(store, graphID))
	case ToolReadGraphStructure:
		graphID, _ := args["graphId"].(string)
		if graphID == "" {
			graphID, _ = args["graph_id"].(string)
		}
		return readResponse(toolName, ReadGraphStructure(store, graphID))
	case ToolIdentifyPatterns:
		return readResponse(toolName, IdentifyPatterns(store))
	default:
		return readResponse(toolName, map[string]interface{}{"error": "unknown tool: " + toolName})
	}
}

func readResponse(toolName string, data interface{}) []graphmodel.Op {
	return []graphmodel.Op{{Type: graphmodel.OpReadResponse, ToolName: toolName, Data: data}}
}

// VerifyState reports a brief health summary of the projected store — the
// read-side twin of GET /api/bridge/health (spec.md §6, §4.13).
func VerifyState(store graphmodel.ProjectedStore) map[string]interface{} {
	return map[string]interface{}{
		"graphCount":      len(store.Graphs),
		"prototypeCount":  len(store.NodePrototypes),
		"activeGraphId":   store.ActiveGraphID,
		"activeGraphName": store.ActiveGraphName,
		"openGraphCount":  len(store.OpenGraphIDs),
		"lastUpdate":      store.Summary.LastUpdate,
	}
}

// ListAvailableGraphs lists every known graph's id, name, and instance count.
func ListAvailableGraphs(store graphmodel.ProjectedStore) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(store.Graphs))
	for _, g := range store.Graphs {
		out = append(out, map[string]interface{}{
			"id":            g.ID,
			"name":          g.Name,
			"instanceCount": len(g.Instances),
		})
	}
	return out
}

// GetGraphInstances returns every node instance placed in graphID, with its
// prototype name resolved.
func GetGraphInstances(store graphmodel.ProjectedStore, graphID string) map[string]interface{} {
	g, ok := store.FindGraphByID(graphID)
	if !ok {
		return map[string]interface{}{"graphId": graphID, "found": false}
	}
	protoNames := prototypeNames(store)
	instances := make([]map[string]interface{}, 0, len(g.Instances))
	for id, inst := range g.Instances {
		instances = append(instances, map[string]interface{}{
			"id":            id,
			"prototypeId":   inst.PrototypeID,
			"prototypeName": protoNames[inst.PrototypeID],
			"x":             inst.X,
			"y":             inst.Y,
		})
	}
	return map[string]interface{}{
		"graphId":   graphID,
		"found":     true,
		"name":      g.Name,
		"instances": instances,
	}
}

// ReadGraphStructure returns a fuller read — instances plus edge count —
// used by the read-and-continue agentic loop (spec.md testable property 3
// "A task read_graph_structure{graph_id:G} produces a readResponse").
func ReadGraphStructure(store graphmodel.ProjectedStore, graphID string) map[string]interface{} {
	result := GetGraphInstances(store, graphID)
	g, ok := store.FindGraphByID(graphID)
	if !ok {
		return result
	}
	result["edgeCount"] = len(g.EdgeIDs)
	result["edgeIds"] = g.EdgeIDs
	return result
}

// IdentifyPatterns surfaces a light structural summary: prototypes reused
// across more than one graph, and instance-less ("empty") graphs. Neither
// spec.md nor original_source/ names a precise algorithm for this tool, so
// this is a minimal, legible heuristic rather than a fabricated one.
func IdentifyPatterns(store graphmodel.ProjectedStore) map[string]interface{} {
	usageByPrototype := make(map[string]int)
	for _, g := range store.Graphs {
		seen := make(map[string]bool)
		for _, inst := range g.Instances {
			if !seen[inst.PrototypeID] {
				seen[inst.PrototypeID] = true
				usageByPrototype[inst.PrototypeID]++
			}
		}
	}
	protoNames := prototypeNames(store)

	var reused []map[string]interface{}
	for protoID, graphCount := range usageByPrototype {
		if graphCount > 1 {
			reused = append(reused, map[string]interface{}{
				"prototypeId":   protoID,
				"prototypeName": protoNames[protoID],
				"graphCount":    graphCount,
			})
		}
	}

	var empty []string
	for _, g := range store.Graphs {
		if len(g.Instances) == 0 {
			empty = append(empty, g.ID)
		}
	}

	return map[string]interface{}{
		"reusedPrototypes": reused,
		"emptyGraphIds":    empty,
	}
}

// SearchNodes wraps pkg/search for the MCP shim's search_nodes tool.
func SearchNodes(store graphmodel.ProjectedStore, query string) ([]search.Result, error) {
	return search.Query(store, query, search.Options{Scope: search.ScopeAll})
}

func prototypeNames(store graphmodel.ProjectedStore) map[string]string {
	out := make(map[string]string, len(store.NodePrototypes))
	for _, p := range store.NodePrototypes {
		out[p.ID] = p.Name
	}
	return out
}
