package router

import (
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
)

// ErrEmptyGraphSpec is returned when the planner's create_node intent
// carries neither a single node nor a graphSpec batch to build.
var ErrEmptyGraphSpec = errors.New("router: planner returned no node or graphSpec to build")

const (
	defaultNodeColor = "#5B6CFF"
	minPlacementX    = 320.0
	minPlacementY    = 100.0
	circleCenterX    = 520.0
	circleCenterY    = 320.0
	circleRadius     = 180.0
)

// BuildGraphSpecActions turns a planner's node/graphSpec result into the
// pending actions needed to materialize it in the active graph (the plan's
// graph name is not used to pick another target graph): an openGraph
// action if the active graph is not among the store's open graphs, then one
// applyMutations action carrying an addNodePrototype op for each node whose
// name isn't already a known prototype, an addNodeInstance op for every
// node, and an addEdge op for each requested connection whose endpoints
// resolve (spec.md §4.6 "GraphSpec executor").
func BuildGraphSpecActions(store graphmodel.ProjectedStore, plan *PlannerResult, activeGraphID, cid string) ([]graphmodel.PendingAction, error) {
	nodes, edges := collectNodes(plan)
	if len(nodes) == 0 {
		return nil, ErrEmptyGraphSpec
	}

	targetGraphID := activeGraphID
	var actions []graphmodel.PendingAction

	if targetGraphID == "" {
		return nil, errors.New("router: no active graph to place nodes in")
	}
	if g, ok := store.FindGraphByID(targetGraphID); ok && len(store.OpenGraphIDs) > 0 && !containsString(store.OpenGraphIDs, g.ID) {
		actions = append(actions, graphmodel.PendingAction{
			ID:     uuid.NewString(),
			Action: graphmodel.ActionOpenGraph,
			Params: []map[string]interface{}{{"graphId": g.ID}},
			Meta:   map[string]interface{}{"cid": cid},
		})
	}

	ops := make([]graphmodel.Op, 0, len(nodes)+len(edges))
	nameToID := make(map[string]string, len(nodes))

	for i, n := range nodes {
		instanceID := uuid.NewString()
		nameToID[n.Name] = instanceID
		var protoID string
		if proto, ok := store.FindPrototypeByName(n.Name); ok {
			protoID = proto.ID
		} else {
			protoID = uuid.NewString()
			color := n.Color
			if color == "" {
				color = defaultNodeColor
			}
			ops = append(ops, graphmodel.Op{
				Type: graphmodel.OpAddNodePrototype,
				PrototypeData: map[string]interface{}{
					"id":    protoID,
					"name":  n.Name,
					"color": color,
				},
			})
		}
		x, y := placement(n, i, len(nodes))
		ops = append(ops, graphmodel.Op{
			Type:        graphmodel.OpAddNodeInstance,
			GraphID:     targetGraphID,
			PrototypeID: protoID,
			InstanceID:  instanceID,
			Position:    &graphmodel.Point{X: x, Y: y},
		})
	}

	for _, e := range edges {
		sourceID, ok := resolveNodeRef(store, nameToID, e.Source)
		if !ok {
			continue
		}
		destID, ok := resolveNodeRef(store, nameToID, e.Target)
		if !ok {
			continue
		}
		ops = append(ops, graphmodel.Op{
			Type:    graphmodel.OpAddEdge,
			GraphID: targetGraphID,
			EdgeData: map[string]interface{}{
				"id":            uuid.NewString(),
				"sourceId":      sourceID,
				"destinationId": destID,
				"type":          e.Type,
				"arrowsToward":  []string{destID},
			},
		})
	}

	if len(ops) == 0 {
		return actions, nil
	}

	params := make([]map[string]interface{}, len(ops))
	for i, op := range ops {
		raw, err := opToParams(op)
		if err != nil {
			return nil, err
		}
		params[i] = raw
	}

	actions = append(actions, graphmodel.PendingAction{
		ID:     uuid.NewString(),
		Action: graphmodel.ActionApplyMutations,
		Params: params,
		Meta:   map[string]interface{}{"cid": cid},
	})
	return actions, nil
}

func collectNodes(plan *PlannerResult) ([]PlannerNode, []PlannerEdge) {
	if plan.GraphSpec != nil && len(plan.GraphSpec.Nodes) > 0 {
		return plan.GraphSpec.Nodes, plan.GraphSpec.Edges
	}
	if plan.Node != nil && plan.Node.Name != "" {
		return []PlannerNode{*plan.Node}, nil
	}
	return nil, nil
}

// placement clamps the planner's requested (x,y) to the minimum canvas
// margin, or lays the node out on a circle around a fixed center when no
// position was given (spec.md §4.6).
func placement(n PlannerNode, index, total int) (float64, float64) {
	if n.X > 0 || n.Y > 0 {
		x := math.Max(n.X, minPlacementX)
		y := math.Max(n.Y, minPlacementY)
		return x, y
	}
	angle := 2 * math.Pi * float64(index) / float64(total)
	x := circleCenterX + circleRadius*math.Cos(angle)
	y := circleCenterY + circleRadius*math.Sin(angle)
	return x, y
}

func resolveNodeRef(store graphmodel.ProjectedStore, fresh map[string]string, name string) (string, bool) {
	if id, ok := fresh[name]; ok {
		return id, true
	}
	if proto, ok := store.FindPrototypeByName(name); ok {
		return proto.ID, true
	}
	return "", false
}

func containsString(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// opToParams round-trips an Op through its JSON field tags into the
// generic param map pendingActions carries to the UI, matching the shape
// the teacher's queue payloads use throughout this package.
func opToParams(op graphmodel.Op) (map[string]interface{}, error) {
	out := map[string]interface{}{"type": op.Type}
	switch op.Type {
	case graphmodel.OpAddNodePrototype:
		out["prototypeData"] = op.PrototypeData
	case graphmodel.OpAddNodeInstance:
		out["graphId"] = op.GraphID
		out["prototypeId"] = op.PrototypeID
		out["instanceId"] = op.InstanceID
		if op.Position != nil {
			out["position"] = map[string]float64{"x": op.Position.X, "y": op.Position.Y}
		}
	case graphmodel.OpAddEdge:
		out["graphId"] = op.GraphID
		out["edgeData"] = op.EdgeData
	}
	return out, nil
}
