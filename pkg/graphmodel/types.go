// Package graphmodel defines the wire types shared by every stage of the
// orchestration pipeline: goals, tasks, patches, ops, reviews, pending
// actions, and the UI-projected store the server reads graph state from.
//
// The server treats graph/node/edge ids as opaque strings (see README of
// spec.md §3) except for the NEW_GRAPH:<name> placeholder prefix, which the
// Committer resolves post-hoc.
package graphmodel

import "time"

// NewGraphPrefix is the placeholder prefix used by create_graph goals before
// the Committer assigns a real graph id.
const NewGraphPrefix = "NEW_GRAPH:"

// Goal is a unit of user intent, materialized by the Router and fanned out
// into Tasks by the Scheduler's planner tick.
type Goal struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // always "goal"
	Goal      string    `json:"goal"` // create_graph | create_node | analyze_graph | populate_graph | ...
	DAG       []Task    `json:"dag"`
	ThreadID  string    `json:"threadId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task is one executable step synthesized from a Goal's DAG.
type Task struct {
	ID         string                 `json:"id"`
	ThreadID   string                 `json:"threadId"`
	ToolName   string                 `json:"toolName"`
	Args       map[string]interface{} `json:"args"`
	DependsOn  []string               `json:"dependsOn,omitempty"`
	GoalID     string                 `json:"goalId,omitempty"`
	Cid        string                 `json:"cid,omitempty"`
}

// Op is a single atomic mutation. It is a tagged variant: Type selects which
// of the optional fields below are populated. Type is not checked when a
// patch is submitted: /queue/patches.submit validates only graphId.
type Op struct {
	Type string `json:"type"`

	// createNewGraph
	InitialData map[string]interface{} `json:"initialData,omitempty"`

	// addNodePrototype
	PrototypeData map[string]interface{} `json:"prototypeData,omitempty"`

	// addNodeInstance / moveNodeInstance / removeNodeInstance
	GraphID    string   `json:"graphId,omitempty"`
	PrototypeID string  `json:"prototypeId,omitempty"`
	Position   *Point   `json:"position,omitempty"`
	InstanceID string   `json:"instanceId,omitempty"`

	// addEdge
	EdgeData map[string]interface{} `json:"edgeData,omitempty"`

	// updateEdgeDefinition
	EdgeID string `json:"edgeId,omitempty"`

	// updateNodePrototype / updateGraph
	Updates map[string]interface{} `json:"updates,omitempty"`

	// readResponse
	ToolName string      `json:"toolName,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

// Op type tags, per spec.md §3.
const (
	OpCreateNewGraph        = "createNewGraph"
	OpAddNodePrototype       = "addNodePrototype"
	OpAddNodeInstance        = "addNodeInstance"
	OpMoveNodeInstance       = "moveNodeInstance"
	OpRemoveNodeInstance     = "removeNodeInstance"
	OpAddEdge                = "addEdge"
	OpUpdateEdgeDefinition   = "updateEdgeDefinition"
	OpUpdateNodePrototype    = "updateNodePrototype"
	OpUpdateGraph            = "updateGraph"
	OpReadResponse           = "readResponse"
)

// IsReadResponse reports whether this op carries read-side results rather
// than a UI mutation.
func (o Op) IsReadResponse() bool { return o.Type == OpReadResponse }

// Point is an {x,y} position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Patch is a candidate mutation set synthesized by an Executor tick.
type Patch struct {
	PatchID  string                 `json:"patchId"`
	GraphID  string                 `json:"graphId"`
	ThreadID string                 `json:"threadId"`
	BaseHash string                 `json:"baseHash,omitempty"`
	Ops      []Op                   `json:"ops"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

// MetaString returns a string field from Meta, or "" if absent/wrong type.
func (p Patch) MetaString(key string) string {
	if p.Meta == nil {
		return ""
	}
	if v, ok := p.Meta[key].(string); ok {
		return v
	}
	return ""
}

// MetaBool returns a bool field from Meta, or false if absent/wrong type.
func (p Patch) MetaBool(key string) bool {
	if p.Meta == nil {
		return false
	}
	if v, ok := p.Meta[key].(bool); ok {
		return v
	}
	return false
}

// ReviewStatus is the auditor's verdict on a patch.
type ReviewStatus string

const (
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Review carries one or more patches plus the auditor's verdict.
type Review struct {
	LeaseID      string       `json:"leaseId"`
	ReviewStatus ReviewStatus `json:"reviewStatus"`
	Reasons      []string     `json:"reasons,omitempty"`
	GraphID      string       `json:"graphId"`
	Patch        *Patch       `json:"patch,omitempty"`
	Patches      []Patch      `json:"patches,omitempty"`
}

// FlattenPatches returns Patch (if set) and Patches concatenated, matching
// the Committer's "Flatten patches (or [patch])" step (spec.md §4.4.4).
func (r Review) FlattenPatches() []Patch {
	out := make([]Patch, 0, len(r.Patches)+1)
	if r.Patch != nil {
		out = append(out, *r.Patch)
	}
	out = append(out, r.Patches...)
	return out
}

// PendingAction is a UI-bound instruction, leased on GET and acked on POST.
type PendingAction struct {
	ID        string                   `json:"id"`
	Action    string                   `json:"action"`
	Params    []map[string]interface{} `json:"params"`
	Timestamp time.Time                `json:"timestamp"`
	Meta      map[string]interface{}   `json:"meta,omitempty"`
}

// Pending action tags, per spec.md §3.
const (
	ActionApplyMutations               = "applyMutations"
	ActionOpenGraph                    = "openGraph"
	ActionAddNodePrototype             = "addNodePrototype"
	ActionCreateNewGraph               = "createNewGraph"
	ActionCreateAndAssignGraphDefinition = "createAndAssignGraphDefinition"
	ActionRemoveNodeInstance           = "removeNodeInstance"
)

// Cid returns the correlation id stamped on this action's meta, if any.
func (a PendingAction) Cid() string {
	if a.Meta == nil {
		return ""
	}
	if v, ok := a.Meta["cid"].(string); ok {
		return v
	}
	return ""
}

// ProjectedStore is the UI-owned snapshot of the graph world, the only
// state the server reads about the graph world (spec.md §2).
type ProjectedStore struct {
	Graphs          []Graph                  `json:"graphs"`
	NodePrototypes  []NodePrototype          `json:"nodePrototypes"`
	ActiveGraphID   string                   `json:"activeGraphId"`
	ActiveGraphName string                   `json:"activeGraphName,omitempty"`
	OpenGraphIDs    []string                 `json:"openGraphIds"`
	GraphLayouts    map[string]GraphLayout   `json:"graphLayouts,omitempty"`
	GraphSummaries  map[string]interface{}   `json:"graphSummaries,omitempty"`
	FileStatus      interface{}              `json:"fileStatus,omitempty"`
	Summary         StoreSummary             `json:"summary"`
}

// StoreSummary carries the last-update timestamp the bridge/state endpoint
// records.
type StoreSummary struct {
	LastUpdate time.Time `json:"lastUpdate"`
}

// Graph is a named workspace of node instances and edges.
type Graph struct {
	ID            string                      `json:"id"`
	Name          string                      `json:"name"`
	Instances     map[string]NodeInstance     `json:"instances"`
	EdgeIDs       []string                    `json:"edgeIds"`
	InstanceCount int                         `json:"instanceCount,omitempty"`
}

// NodeInstance is a placed occurrence of a prototype in one graph.
type NodeInstance struct {
	PrototypeID string  `json:"prototypeId"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// NodePrototype is a reusable concept definition.
type NodePrototype struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Color            string `json:"color,omitempty"`
	Description      string `json:"description,omitempty"`
	DefinitionGraphID string `json:"definitionGraphId,omitempty"`
}

// GraphLayout carries per-graph layout data merged via /api/bridge/layout.
type GraphLayout struct {
	Nodes    map[string]interface{} `json:"nodes,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// InstancesByPrototype groups instance counts for this graph by prototype id,
// used by the Router's "status" QA summary (spec.md §4.6).
func (g Graph) InstancesByPrototype() map[string]int {
	counts := make(map[string]int)
	for _, inst := range g.Instances {
		counts[inst.PrototypeID]++
	}
	return counts
}

// FindGraphByName returns the graph whose name normalizes (ASCII
// case-insensitive, with every space, tab and newline removed) to the same
// string as the given name, used by the GraphSpec executor's target
// resolution (spec.md §4.6).
func (s ProjectedStore) FindGraphByName(name string) (Graph, bool) {
	norm := normalize(name)
	for _, g := range s.Graphs {
		if normalize(g.Name) == norm {
			return g, true
		}
	}
	return Graph{}, false
}

// FindGraphByID returns the graph with the given id.
func (s ProjectedStore) FindGraphByID(id string) (Graph, bool) {
	for _, g := range s.Graphs {
		if g.ID == id {
			return g, true
		}
	}
	return Graph{}, false
}

// FindPrototypeByName returns the prototype whose name normalizes to name.
func (s ProjectedStore) FindPrototypeByName(name string) (NodePrototype, bool) {
	norm := normalize(name)
	for _, p := range s.NodePrototypes {
		if normalize(p.Name) == norm {
			return p, true
		}
	}
	return NodePrototype{}, false
}

func normalize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			r = r + ('a' - 'A')
		}
		out = append(out, r)
	}
	return string(out)
}
