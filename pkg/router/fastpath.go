package router

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/theredstring/redstring-sub011/pkg/events"
	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
)

// Legacy heuristic fast-paths, matched in order, earliest wins. HandleAgent
// consults them after the planner call; a match is handled here instead of
// by the planner-intent dispatch, with no further LLM call. Grounded on the
// teacher's habit of keeping a deterministic escape hatch next to an
// LLM-routed path (spec.md §4.6 "legacy fast path (optional, feature
// flagged)").
var (
	reOpenGraphQuoted = regexp.MustCompile(`(?i)^open\s+"([^"]+)"$`)
	reOpenGraphLoose  = regexp.MustCompile(`(?i)^open\s+(.+)$`)
	reListGraphs      = regexp.MustCompile(`(?i)^(list|show)\s+(all\s+)?graphs$`)
	reSearch          = regexp.MustCompile(`(?i)^search\s+(?:for\s+)?(.+)$`)
	reConnect         = regexp.MustCompile(`(?i)^connect\s+"([^"]+)"\s+to\s+"([^"]+)"(?:\s+as\s+"([^"]+)")?$`)
	reMove            = regexp.MustCompile(`(?i)^move\s+"([^"]+)"\s+to\s+\(?\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*\)?$`)
	reDelete          = regexp.MustCompile(`(?i)^delete\s+"([^"]+)"$`)
	reRecolor         = regexp.MustCompile(`(?i)^set\s+color\s+of\s+"([^"]+)"\s+to\s+(#[0-9a-fA-F]{6})$`)
	reRenameNode      = regexp.MustCompile(`(?i)^rename\s+"([^"]+)"\s+to\s+"([^"]+)"$`)
	reRenameGraph     = regexp.MustCompile(`(?i)^rename\s+(?:this|current)\s+graph\s+to\s+"([^"]+)"$`)
)

// tryLegacyFastPath checks message against each deterministic pattern in
// order and, on the first match, handles it directly (mutations go out as
// pending actions) without a further LLM call. Returns handled=false if no
// pattern matches, so the caller falls through to the LLM-routed path.
func (r *Router) tryLegacyFastPath(message, activeGraphID, cid string) (AgentResult, bool) {
	msg := strings.TrimSpace(message)
	store := r.store()

	if m := reOpenGraphQuoted.FindStringSubmatch(msg); m != nil {
		return r.fastOpenGraph(store, m[1], cid), true
	}
	if reListGraphs.MatchString(msg) {
		return r.fastListGraphs(store, cid), true
	}
	if m := reSearch.FindStringSubmatch(msg); m != nil {
		return r.fastSearch(m[1], cid), true
	}
	if m := reConnect.FindStringSubmatch(msg); m != nil {
		label := ""
		if len(m) > 3 {
			label = m[3]
		}
		return r.fastConnect(store, activeGraphID, m[1], m[2], label, cid), true
	}
	if m := reMove.FindStringSubmatch(msg); m != nil {
		x, errX := strconv.ParseFloat(m[2], 64)
		y, errY := strconv.ParseFloat(m[3], 64)
		if errX == nil && errY == nil {
			return r.fastMove(store, activeGraphID, m[1], x, y, cid), true
		}
	}
	if m := reDelete.FindStringSubmatch(msg); m != nil {
		return r.fastDelete(store, activeGraphID, m[1], cid), true
	}
	if m := reRecolor.FindStringSubmatch(msg); m != nil {
		return r.fastRecolor(store, m[1], m[2], cid), true
	}
	if m := reRenameNode.FindStringSubmatch(msg); m != nil {
		return r.fastRenameNode(store, m[1], m[2], cid), true
	}
	if m := reRenameGraph.FindStringSubmatch(msg); m != nil {
		return r.fastRenameGraph(activeGraphID, m[1], cid), true
	}
	if m := reOpenGraphLoose.FindStringSubmatch(msg); m != nil {
		return r.fastOpenGraph(store, strings.TrimSpace(m[1]), cid), true
	}
	return AgentResult{}, false
}

func (r *Router) fastOpenGraph(store graphmodel.ProjectedStore, name, cid string) AgentResult {
	g, ok := store.FindGraphByName(name)
	if !ok {
		return AgentResult{Success: false, Response: fmt.Sprintf("I couldn't find a graph named %q.", name), Cid: cid}
	}
	r.pending.Enqueue(graphmodel.PendingAction{
		ID:     uuid.NewString(),
		Action: graphmodel.ActionOpenGraph,
		Params: []map[string]interface{}{{"graphId": g.ID}},
		Meta:   map[string]interface{}{"cid": cid},
	})
	return AgentResult{Success: true, Response: fmt.Sprintf("Opening %q.", g.Name), ToolCalls: []string{"open_graph"}, Cid: cid}
}

func (r *Router) fastListGraphs(store graphmodel.ProjectedStore, cid string) AgentResult {
	if len(store.Graphs) == 0 {
		return AgentResult{Success: true, Response: "There are no graphs yet.", Cid: cid}
	}
	var b strings.Builder
	b.WriteString("Graphs: ")
	for i, g := range store.Graphs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(g.Name)
	}
	return AgentResult{Success: true, Response: b.String(), ToolCalls: []string{"list_available_graphs"}, Cid: cid}
}

func (r *Router) fastSearch(query, cid string) AgentResult {
	r.telemetry.Record(events.TelemetryToolCall, cid, map[string]interface{}{"tool": "search_nodes", "query": query})
	return AgentResult{Success: true, Response: fmt.Sprintf("Searching for %q.", query), ToolCalls: []string{"search_nodes"}, Cid: cid}
}

func (r *Router) fastConnect(store graphmodel.ProjectedStore, graphID, sourceName, destName, label, cid string) AgentResult {
	source, ok := store.FindPrototypeByName(sourceName)
	if !ok {
		return AgentResult{Success: false, Response: fmt.Sprintf("I couldn't find %q.", sourceName), Cid: cid}
	}
	dest, ok := store.FindPrototypeByName(destName)
	if !ok {
		return AgentResult{Success: false, Response: fmt.Sprintf("I couldn't find %q.", destName), Cid: cid}
	}
	sourceID, destID := resolveInstanceID(store, graphID, source.ID), resolveInstanceID(store, graphID, dest.ID)
	if sourceID == "" || destID == "" {
		return AgentResult{Success: false, Response: "Both nodes must be placed in the current graph first.", Cid: cid}
	}
	r.pending.Enqueue(graphmodel.PendingAction{
		ID:     uuid.NewString(),
		Action: graphmodel.ActionApplyMutations,
		Params: []map[string]interface{}{{
			"type":    graphmodel.OpAddEdge,
			"graphId": graphID,
			"edgeData": map[string]interface{}{
				"id": uuid.NewString(), "sourceId": sourceID, "destinationId": destID,
				"type": label, "arrowsToward": []string{destID},
			},
		}},
		Meta: map[string]interface{}{"cid": cid},
	})
	return AgentResult{Success: true, Response: fmt.Sprintf("Connected %q to %q.", sourceName, destName), ToolCalls: []string{"applyMutations"}, Cid: cid}
}

func (r *Router) fastMove(store graphmodel.ProjectedStore, graphID, nodeName string, x, y float64, cid string) AgentResult {
	proto, ok := store.FindPrototypeByName(nodeName)
	if !ok {
		return AgentResult{Success: false, Response: fmt.Sprintf("I couldn't find %q.", nodeName), Cid: cid}
	}
	instanceID := resolveInstanceID(store, graphID, proto.ID)
	if instanceID == "" {
		return AgentResult{Success: false, Response: fmt.Sprintf("%q isn't placed in the current graph.", nodeName), Cid: cid}
	}
	r.pending.Enqueue(graphmodel.PendingAction{
		ID:     uuid.NewString(),
		Action: graphmodel.ActionApplyMutations,
		Params: []map[string]interface{}{{
			"type": graphmodel.OpMoveNodeInstance, "graphId": graphID, "instanceId": instanceID,
			"position": map[string]float64{"x": x, "y": y},
		}},
		Meta: map[string]interface{}{"cid": cid},
	})
	return AgentResult{Success: true, Response: fmt.Sprintf("Moved %q.", nodeName), ToolCalls: []string{"applyMutations"}, Cid: cid}
}

func (r *Router) fastDelete(store graphmodel.ProjectedStore, graphID, nodeName, cid string) AgentResult {
	proto, ok := store.FindPrototypeByName(nodeName)
	if !ok {
		return AgentResult{Success: false, Response: fmt.Sprintf("I couldn't find %q.", nodeName), Cid: cid}
	}
	instanceID := resolveInstanceID(store, graphID, proto.ID)
	if instanceID == "" {
		return AgentResult{Success: false, Response: fmt.Sprintf("%q isn't placed in the current graph.", nodeName), Cid: cid}
	}
	r.pending.Enqueue(graphmodel.PendingAction{
		ID:     uuid.NewString(),
		Action: graphmodel.ActionApplyMutations,
		Params: []map[string]interface{}{{
			"type": graphmodel.OpRemoveNodeInstance, "graphId": graphID, "instanceId": instanceID,
		}},
		Meta: map[string]interface{}{"cid": cid},
	})
	return AgentResult{Success: true, Response: fmt.Sprintf("Deleted %q.", nodeName), ToolCalls: []string{"applyMutations"}, Cid: cid}
}

func (r *Router) fastRecolor(store graphmodel.ProjectedStore, nodeName, color, cid string) AgentResult {
	proto, ok := store.FindPrototypeByName(nodeName)
	if !ok {
		return AgentResult{Success: false, Response: fmt.Sprintf("I couldn't find %q.", nodeName), Cid: cid}
	}
	r.pending.Enqueue(graphmodel.PendingAction{
		ID:     uuid.NewString(),
		Action: graphmodel.ActionApplyMutations,
		Params: []map[string]interface{}{{
			"type": graphmodel.OpUpdateNodePrototype, "updates": map[string]interface{}{"id": proto.ID, "color": color},
		}},
		Meta: map[string]interface{}{"cid": cid},
	})
	return AgentResult{Success: true, Response: fmt.Sprintf("Recolored %q.", nodeName), ToolCalls: []string{"applyMutations"}, Cid: cid}
}

func (r *Router) fastRenameNode(store graphmodel.ProjectedStore, oldName, newName, cid string) AgentResult {
	proto, ok := store.FindPrototypeByName(oldName)
	if !ok {
		return AgentResult{Success: false, Response: fmt.Sprintf("I couldn't find %q.", oldName), Cid: cid}
	}
	r.pending.Enqueue(graphmodel.PendingAction{
		ID:     uuid.NewString(),
		Action: graphmodel.ActionApplyMutations,
		Params: []map[string]interface{}{{
			"type": graphmodel.OpUpdateNodePrototype, "updates": map[string]interface{}{"id": proto.ID, "name": newName},
		}},
		Meta: map[string]interface{}{"cid": cid},
	})
	return AgentResult{Success: true, Response: fmt.Sprintf("Renamed %q to %q.", oldName, newName), ToolCalls: []string{"applyMutations"}, Cid: cid}
}

func (r *Router) fastRenameGraph(graphID, newName, cid string) AgentResult {
	if graphID == "" {
		return AgentResult{Success: false, Response: "There's no active graph to rename.", Cid: cid}
	}
	r.pending.Enqueue(graphmodel.PendingAction{
		ID:     uuid.NewString(),
		Action: graphmodel.ActionApplyMutations,
		Params: []map[string]interface{}{{
			"type": graphmodel.OpUpdateGraph, "graphId": graphID, "updates": map[string]interface{}{"name": newName},
		}},
		Meta: map[string]interface{}{"cid": cid},
	})
	return AgentResult{Success: true, Response: fmt.Sprintf("Renamed the graph to %q.", newName), ToolCalls: []string{"applyMutations"}, Cid: cid}
}

// resolveInstanceID finds the instance id of prototypeID placed within
// graphID, or "" if it isn't placed there.
func resolveInstanceID(store graphmodel.ProjectedStore, graphID, prototypeID string) string {
	g, ok := store.FindGraphByID(graphID)
	if !ok {
		return ""
	}
	for instID, inst := range g.Instances {
		if inst.PrototypeID == prototypeID {
			return instID
		}
	}
	return ""
}
