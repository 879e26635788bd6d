// Package pipeline implements the domain-specific Planner, Executor, and
// Auditor stages plugged into the Scheduler (C5, spec.md §4.5). The
// Scheduler itself (pkg/scheduler) only knows how to drain goals -> tasks
// -> patches -> reviews against generic map[string]interface{} payloads;
// this package supplies the graph-editing semantics: decomposing a Goal's
// pre-built DAG into Tasks, evaluating each Task's toolName against the
// projected store to synthesize a Patch, and auto-approving patches into
// Reviews.
//
// Grounded on the teacher's pkg/services layer (one small struct per
// concern, JSON-shaped inputs/outputs), adapted here to decode/encode
// through graphmodel's typed structs at the scheduler boundary rather than
// a database.
package pipeline

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
)

// StoreProvider returns the latest ProjectedStore snapshot.
type StoreProvider func() graphmodel.ProjectedStore

func decode(in map[string]interface{}, out interface{}) bool {
	raw, err := json.Marshal(in)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func encode(in interface{}) map[string]interface{} {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Planner materializes a Goal's pre-built DAG into Tasks, stamping each
// with its goal id and thread id when absent (spec.md §4.5 "Planner tick").
type Planner struct{}

// NewPlanner creates a Planner.
func NewPlanner() *Planner { return &Planner{} }

// Plan implements scheduler.Planner.
func (p *Planner) Plan(goal map[string]interface{}) []map[string]interface{} {
	var g graphmodel.Goal
	if !decode(goal, &g) {
		return nil
	}

	tasks := make([]map[string]interface{}, 0, len(g.DAG))
	for _, t := range g.DAG {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.GoalID == "" {
			t.GoalID = g.ID
		}
		if t.ThreadID == "" {
			t.ThreadID = g.ThreadID
		}
		if t.Cid == "" {
			t.Cid = g.ThreadID
		}
		if encoded := encode(t); encoded != nil {
			tasks = append(tasks, encoded)
		}
	}
	return tasks
}

// Executor evaluates a Task's toolName against the projected store and
// synthesizes a Patch (spec.md §4.5 "Executor tick").
type Executor struct {
	store StoreProvider
}

// NewExecutor creates an Executor reading snapshots from store.
func NewExecutor(store StoreProvider) *Executor {
	return &Executor{store: store}
}

// Execute implements scheduler.Executor.
func (e *Executor) Execute(task map[string]interface{}) map[string]interface{} {
	var t graphmodel.Task
	if !decode(task, &t) {
		return nil
	}

	snapshot := e.store()
	ops := EvaluateTool(snapshot, t.ToolName, t.Args)

	patch := graphmodel.Patch{
		PatchID:  uuid.NewString(),
		GraphID:  patchGraphID(t, ops),
		ThreadID: t.ThreadID,
		Ops:      ops,
		Meta: map[string]interface{}{
			"toolName": t.ToolName,
			"cid":      t.Cid,
		},
	}
	return encode(patch)
}

// patchGraphID prefers an explicit graphId task arg, falling back to the
// first op that carries one (e.g. a readResponse scoped to a graph).
func patchGraphID(t graphmodel.Task, ops []graphmodel.Op) string {
	if gid, ok := t.Args["graphId"].(string); ok && gid != "" {
		return gid
	}
	for _, op := range ops {
		if op.GraphID != "" {
			return op.GraphID
		}
	}
	return ""
}

// Auditor auto-approves every patch (spec.md §4.5 "the minimal policy
// auto-approves"). A richer policy is named as a future extension point in
// spec.md but no schema/safety-filter/LLM-critique rules are specified, so
// none are invented here.
type Auditor struct{}

// NewAuditor creates an Auditor.
func NewAuditor() *Auditor { return &Auditor{} }

// Audit implements scheduler.Auditor.
func (a *Auditor) Audit(patch map[string]interface{}) map[string]interface{} {
	var p graphmodel.Patch
	if !decode(patch, &p) {
		return nil
	}
	review := graphmodel.Review{
		ReviewStatus: graphmodel.ReviewApproved,
		GraphID:      p.GraphID,
		Patch:        &p,
	}
	return encode(review)
}
