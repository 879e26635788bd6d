// Package pendingactions implements the Pending-Action Store (C3): a FIFO
// outbox of UI mutation batches with lease-on-GET/ack-on-POST semantics and
// pre/post telemetry summaries (spec.md §4.3).
//
// Grounded on the teacher's pkg/queue/chat_executor.go submit/lease pattern
// and pkg/events/manager.go's use of a monotone sequence counter for
// total-order analysis.
package pendingactions

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theredstring/redstring-sub011/pkg/events"
	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
	"github.com/theredstring/redstring-sub011/pkg/metrics"
)

// Store is the Pending-Action Store. order holds every action id not yet
// acked, in FIFO order; inflight holds ids currently leased to the UI (not
// yet observed in another GET); inflightMeta carries per-lease bookkeeping
// (currently just the lease time, kept for future timeout policies).
type Store struct {
	mu           sync.Mutex
	order        []string
	byID         map[string]*graphmodel.PendingAction
	inflight     map[string]struct{}
	inflightMeta map[string]time.Time

	telemetry *events.Telemetry

	actionSeqMu sync.Mutex
	actionSeq   uint64
}

// New creates an empty Pending-Action Store. telemetry may be nil in tests
// that don't care about the pre/post summaries.
func New(telemetry *events.Telemetry) *Store {
	return &Store{
		byID:         make(map[string]*graphmodel.PendingAction),
		inflight:     make(map[string]struct{}),
		inflightMeta: make(map[string]time.Time),
		telemetry:    telemetry,
	}
}

// Enqueue appends one action, assigning a new id if none is set. Used by the
// Committer (mutation + openGraph bundles) and Drainer (safety-net bundles),
// and by the HTTP server-side enqueue endpoint.
func (s *Store) Enqueue(action graphmodel.PendingAction) graphmodel.PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now()
	}
	cp := action
	s.byID[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	metrics.PendingActionsOutstanding.Set(float64(len(s.byID)))
	return cp
}

// EnqueueOpenGraphActions appends one openGraph action per distinct
// non-empty id in graphIDs, in input order, after whatever is already
// queued. The Committer passes the ids of graphs its bundle created, so each
// openGraph follows the applyMutations that creates the graph (spec.md §4.3).
func (s *Store) EnqueueOpenGraphActions(graphIDs []string, cid string) {
	seen := make(map[string]bool)
	for _, id := range graphIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		meta := map[string]interface{}{}
		if cid != "" {
			meta["cid"] = cid
		}
		s.Enqueue(graphmodel.PendingAction{
			Action: graphmodel.ActionOpenGraph,
			Params: []map[string]interface{}{{"graphId": id}},
			Meta:   meta,
		})
	}
}

// Lease returns every action not currently inflight, in order, and
// atomically moves their ids into inflight so a concurrent GET cannot
// observe the same action twice (spec.md §5 "lease-on-GET must be atomic
// with the suffix filter").
func (s *Store) Lease() []graphmodel.PendingAction {
	s.mu.Lock()
	var out []graphmodel.PendingAction
	now := time.Now()
	for _, id := range s.order {
		if _, leased := s.inflight[id]; leased {
			continue
		}
		action, ok := s.byID[id]
		if !ok {
			continue
		}
		s.inflight[id] = struct{}{}
		s.inflightMeta[id] = now
		out = append(out, *action)
	}
	s.mu.Unlock()

	for _, a := range out {
		s.recordPreSummary(a)
	}
	return out
}

// Ack removes an action by id from both the main list and inflight, records
// a post-summary telemetry entry tagged with the next actionSequence value.
func (s *Store) Ack(id string) bool {
	s.mu.Lock()
	action, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.byID, id)
	delete(s.inflight, id)
	delete(s.inflightMeta, id)
	remaining := make([]string, 0, len(s.order))
	for _, oid := range s.order {
		if oid != id {
			remaining = append(remaining, oid)
		}
	}
	s.order = remaining
	metrics.PendingActionsOutstanding.Set(float64(len(s.byID)))
	s.mu.Unlock()

	seq := s.nextActionSeq()
	s.recordPostSummary(*action, seq)
	return true
}

// Feedback records status/error without removing the action — transient
// failures are reported separately from completion (spec.md §4.3).
func (s *Store) Feedback(actionID, status, errMsg string, params []map[string]interface{}) {
	if s.telemetry == nil {
		return
	}
	cid := ""
	s.mu.Lock()
	if a, ok := s.byID[actionID]; ok {
		cid = a.Cid()
	}
	s.mu.Unlock()

	s.telemetry.Record(events.TelemetryActionFeedback, cid, map[string]interface{}{
		"actionId": actionID,
		"status":   status,
		"error":    errMsg,
		"params":   params,
	})
}

func (s *Store) nextActionSeq() uint64 {
	s.actionSeqMu.Lock()
	defer s.actionSeqMu.Unlock()
	s.actionSeq++
	return s.actionSeq
}

func (s *Store) recordPreSummary(a graphmodel.PendingAction) {
	if s.telemetry == nil {
		return
	}
	s.telemetry.Record(events.TelemetryAgentAnswer, a.Cid(), map[string]interface{}{
		"phase":   "pre",
		"actionId": a.ID,
		"summary": preSummary(a),
	})
}

func (s *Store) recordPostSummary(a graphmodel.PendingAction, actionSeq uint64) {
	if s.telemetry == nil {
		return
	}
	s.telemetry.Record(events.TelemetryAgentAnswer, a.Cid(), map[string]interface{}{
		"phase":        "post",
		"actionId":     a.ID,
		"summary":      postSummary(a),
		"actionSequence": actionSeq,
	})
}

// preSummary derives a human-readable "Starting: ..." line from the action
// tag, matching spec.md §4.3's example ("Starting: create N graph(s).").
func preSummary(a graphmodel.PendingAction) string {
	switch a.Action {
	case graphmodel.ActionApplyMutations:
		return fmt.Sprintf("Starting: apply %d mutation(s).", countMutations(a))
	case graphmodel.ActionOpenGraph:
		return "Starting: open graph."
	case graphmodel.ActionCreateNewGraph:
		return "Starting: create graph."
	case graphmodel.ActionAddNodePrototype:
		return "Starting: create node prototype."
	case graphmodel.ActionRemoveNodeInstance:
		return "Starting: remove node."
	default:
		return fmt.Sprintf("Starting: %s.", a.Action)
	}
}

func postSummary(a graphmodel.PendingAction) string {
	switch a.Action {
	case graphmodel.ActionApplyMutations:
		return fmt.Sprintf("Applied %d mutation(s).", countMutations(a))
	case graphmodel.ActionOpenGraph:
		return "Opened graph."
	case graphmodel.ActionCreateNewGraph:
		return "Created graph."
	case graphmodel.ActionAddNodePrototype:
		return "Created node prototype."
	case graphmodel.ActionRemoveNodeInstance:
		return "Removed node."
	default:
		return fmt.Sprintf("Completed: %s.", a.Action)
	}
}

func countMutations(a graphmodel.PendingAction) int {
	if len(a.Params) == 0 {
		return 0
	}
	if ops, ok := a.Params[0]["ops"].([]graphmodel.Op); ok {
		return len(ops)
	}
	return len(a.Params)
}
