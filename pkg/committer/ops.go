package committer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
	"github.com/theredstring/redstring-sub011/pkg/queue"
)

// parseReviews decodes each queue item's payload into a Review. The queue
// deliberately carries map[string]interface{} payloads (it has no
// dependency on graphmodel), so decoding happens at the Committer boundary
// via a JSON round-trip — the same technique the payload shape already
// implies, since every producer marshals graphmodel.Review into the
// payload map.
func parseReviews(items []queue.Item) []graphmodel.Review {
	out := make([]graphmodel.Review, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item.Payload)
		if err != nil {
			continue
		}
		var rv graphmodel.Review
		if err := json.Unmarshal(raw, &rv); err != nil {
			continue
		}
		out = append(out, rv)
	}
	return out
}

// updateOpKey identifies the target entity of an update* op, for
// last-writer-wins coalescing.
func updateOpKey(op graphmodel.Op) (string, bool) {
	switch op.Type {
	case graphmodel.OpUpdateNodePrototype:
		return "prototype:" + op.PrototypeID, true
	case graphmodel.OpUpdateGraph:
		return "graph:" + op.GraphID, true
	case graphmodel.OpUpdateEdgeDefinition:
		return "edge:" + op.EdgeID, true
	default:
		return "", false
	}
}

// coalesceOps concatenates ops from all patches in submission order; for
// conflicting update* ops targeting the same entity id, only the
// last-submitted value survives, at the position of its first occurrence
// (spec.md §4.4 step 6).
func coalesceOps(patches []graphmodel.Patch) []graphmodel.Op {
	var out []graphmodel.Op
	slot := make(map[string]int)

	for _, p := range patches {
		for _, op := range p.Ops {
			key, isUpdate := updateOpKey(op)
			if !isUpdate {
				out = append(out, op)
				continue
			}
			if idx, ok := slot[key]; ok {
				out[idx] = op
				continue
			}
			slot[key] = len(out)
			out = append(out, op)
		}
	}
	return out
}

// resolvePlaceholders builds {"NEW_GRAPH:"+name -> realId} from every
// createNewGraph op whose initialData.id is set, then replaces any
// op.GraphID with that prefix. An unresolved placeholder is a hard failure
// (spec.md §4.4 step 7).
func resolvePlaceholders(ops []graphmodel.Op) ([]graphmodel.Op, error) {
	realIDs := make(map[string]string)
	for _, op := range ops {
		if op.Type != graphmodel.OpCreateNewGraph || op.InitialData == nil {
			continue
		}
		name, _ := op.InitialData["name"].(string)
		id, _ := op.InitialData["id"].(string)
		if name != "" && id != "" {
			realIDs[graphmodel.NewGraphPrefix+name] = id
		}
	}

	out := make([]graphmodel.Op, len(ops))
	copy(out, ops)
	for i, op := range out {
		if op.GraphID == "" || !strings.HasPrefix(op.GraphID, graphmodel.NewGraphPrefix) {
			continue
		}
		realID, ok := realIDs[op.GraphID]
		if !ok {
			return nil, fmt.Errorf("unresolved placeholder %q", op.GraphID)
		}
		out[i].GraphID = realID
	}
	return out, nil
}

// splitOps separates readResponse ops (chat-only, never sent to the UI)
// from mutation ops (sent via applyMutations).
func splitOps(ops []graphmodel.Op) (readResponses, mutations []graphmodel.Op) {
	for _, op := range ops {
		if op.IsReadResponse() {
			readResponses = append(readResponses, op)
		} else {
			mutations = append(mutations, op)
		}
	}
	return readResponses, mutations
}

// formatReadSummary renders a short natural-language digest of a read op's
// result (spec.md §4.4 step 9).
func formatReadSummary(op graphmodel.Op) string {
	switch v := op.Data.(type) {
	case map[string]interface{}:
		if count, ok := v["instanceCount"]; ok {
			return fmt.Sprintf("%s: %v instance(s) found.", op.ToolName, count)
		}
		return fmt.Sprintf("%s: done.", op.ToolName)
	case []interface{}:
		return fmt.Sprintf("%s: %d result(s).", op.ToolName, len(v))
	default:
		return fmt.Sprintf("%s: done.", op.ToolName)
	}
}

// createdGraphIDs returns the distinct ids created by createNewGraph ops in
// this batch, used to prepend openGraph pending actions (spec.md §4.4
// step 10).
func createdGraphIDs(ops []graphmodel.Op) []string {
	var out []string
	for _, op := range ops {
		if op.Type != graphmodel.OpCreateNewGraph || op.InitialData == nil {
			continue
		}
		if id, ok := op.InitialData["id"].(string); ok && id != "" {
			out = append(out, id)
		}
	}
	return out
}

// countApplied tallies node-instance and edge ops for the completion chat
// summary (spec.md §4.4 step 11).
func countApplied(ops []graphmodel.Op) (nodes, edges int) {
	for _, op := range ops {
		switch op.Type {
		case graphmodel.OpAddNodeInstance:
			nodes++
		case graphmodel.OpAddEdge:
			edges++
		}
	}
	return nodes, edges
}

// distinctThreadIDs returns the unique, non-empty threadIds across patches.
func distinctThreadIDs(patches []graphmodel.Patch) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range patches {
		if p.ThreadID == "" || seen[p.ThreadID] {
			continue
		}
		seen[p.ThreadID] = true
		out = append(out, p.ThreadID)
	}
	return out
}
