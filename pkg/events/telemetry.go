package events

import (
	"sync"
	"time"
)

// TelemetryType enumerates telemetry entry kinds (spec.md §3).
type TelemetryType string

const (
	TelemetryBridgeState       TelemetryType = "bridge_state"
	TelemetryToolCall          TelemetryType = "tool_call"
	TelemetryAgentPlan         TelemetryType = "agent_plan"
	TelemetryAgentAnswer       TelemetryType = "agent_answer"
	TelemetryAgentQueued       TelemetryType = "agent_queued"
	TelemetryActionFeedback    TelemetryType = "action_feedback"
	TelemetryIntentResolution  TelemetryType = "intent_resolution"
	TelemetryChat              TelemetryType = "chat"
	TelemetryAgentRequest      TelemetryType = "agent_request"
)

// ToolCallStatus is the status lifecycle tracked for tool_call telemetry
// entries (spec.md §8 invariant 6): queued -> leased -> completed|failed.
type ToolCallStatus string

const (
	ToolCallQueued    ToolCallStatus = "queued"
	ToolCallLeased    ToolCallStatus = "leased"
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallFailed    ToolCallStatus = "failed"
)

// TelemetryEntry is one correlation-tagged trace record.
type TelemetryEntry struct {
	Seq     uint64                 `json:"seq"`
	TS      time.Time              `json:"ts"`
	Type    TelemetryType          `json:"type"`
	Cid     string                 `json:"cid,omitempty"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// Telemetry is the bounded Telemetry Ring (C10), e.g. last 10k entries.
type Telemetry struct {
	mu      sync.RWMutex
	cap     int
	seq     uint64
	entries []TelemetryEntry
	subs    map[int]func(TelemetryEntry)
	nextSub int
}

// NewTelemetry creates a Telemetry Ring bounded to capacity entries.
func NewTelemetry(capacity int) *Telemetry {
	if capacity <= 0 {
		capacity = 10_000
	}
	return &Telemetry{cap: capacity, subs: make(map[int]func(TelemetryEntry))}
}

// Record appends a telemetry entry and fans it out to every subscriber
// (SSE streams, and the archival sink when enabled).
func (t *Telemetry) Record(typ TelemetryType, cid string, fields map[string]interface{}) TelemetryEntry {
	t.mu.Lock()
	t.seq++
	e := TelemetryEntry{Seq: t.seq, TS: time.Now(), Type: typ, Cid: cid, Fields: fields}
	t.entries = append(t.entries, e)
	if len(t.entries) > t.cap {
		t.entries = t.entries[len(t.entries)-t.cap:]
	}
	subs := make([]func(TelemetryEntry), 0, len(t.subs))
	for _, cb := range t.subs {
		subs = append(subs, cb)
	}
	t.mu.Unlock()

	for _, cb := range subs {
		deliverTelemetry(cb, e)
	}
	return e
}

func deliverTelemetry(cb func(TelemetryEntry), e TelemetryEntry) {
	defer func() { _ = recover() }()
	cb(e)
}

// Subscribe registers cb for every subsequent Record call.
func (t *Telemetry) Subscribe(cb func(TelemetryEntry)) func() {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = cb
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// Query returns entries filtered by cid/type (either may be empty to mean
// "any"), most-recent-first trimmed to limit (0 = unlimited).
func (t *Telemetry) Query(cid string, typ TelemetryType, limit int) []TelemetryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TelemetryEntry, 0, len(t.entries))
	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		if cid != "" && e.Cid != cid {
			continue
		}
		if typ != "" && e.Type != typ {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// ReplaySince returns entries with Seq > fromSeq, oldest first, used by the
// SSE stream's `from` query parameter.
func (t *Telemetry) ReplaySince(fromSeq uint64) []TelemetryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TelemetryEntry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.Seq > fromSeq {
			out = append(out, e)
		}
	}
	return out
}
