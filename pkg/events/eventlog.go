// Package events implements the Event Log (C1) and Telemetry Ring (C10): two
// bounded, append-only, in-process ring buffers with synchronous subscriber
// fan-out and SSE replay, per spec.md §4.1 and §4.10.
//
// Both rings share the same shape (bounded slice + monotone sequence number
// + best-effort subscriber delivery). Log is built on the common `ring` type
// in this file (and Chat is built on a Log); Telemetry keeps its own bounded
// slice of TelemetryEntry in telemetry.go and does not use `ring`.
package events

import (
	"sync"
	"time"
)

// EntryType enumerates the coarse Event Log entry kinds (spec.md §3).
type EntryType string

const (
	GoalEnqueued          EntryType = "GOAL_ENQUEUED"
	TaskEnqueued          EntryType = "TASK_ENQUEUED"
	TaskFailed            EntryType = "TASK_FAILED"
	PatchSubmitted        EntryType = "PATCH_SUBMITTED"
	ReviewEnqueued        EntryType = "REVIEW_ENQUEUED"
	PatchApplied          EntryType = "PATCH_APPLIED"
	PatchRejected         EntryType = "PATCH_REJECTED"
	PendingActionsEnqueued EntryType = "PENDING_ACTIONS_ENQUEUED"
	TelemetryEntryType    EntryType = "TELEMETRY"
	ChatEntryType         EntryType = "CHAT"
)

// Entry is one Event Log record.
type Entry struct {
	Seq     uint64                 `json:"seq"`
	TS      time.Time              `json:"ts"`
	Type    EntryType              `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ring is a bounded append-only sequence with monotone sequence numbers and
// synchronous subscriber fan-out. Not exported: Log is the public API that
// wraps it; Telemetry does not use it.
type ring struct {
	mu       sync.RWMutex
	cap      int
	seq      uint64
	entries  []Entry
	subs     map[int]func(Entry)
	nextSubID int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 10_000
	}
	return &ring{
		cap:  capacity,
		subs: make(map[int]func(Entry)),
	}
}

// append stamps ts/seq, stores the entry (trimming the oldest if over
// capacity), and delivers it to every live subscriber synchronously.
// Delivery never blocks on a slow subscriber beyond the callback's own
// execution time, and a panicking subscriber is isolated so it cannot
// affect others (spec.md §4.1 "Delivery is best-effort").
func (r *ring) append(typ EntryType, payload map[string]interface{}) Entry {
	r.mu.Lock()
	r.seq++
	e := Entry{Seq: r.seq, TS: time.Now(), Type: typ, Payload: payload}
	r.entries = append(r.entries, e)
	if len(r.entries) > r.cap {
		r.entries = r.entries[len(r.entries)-r.cap:]
	}
	subs := make([]func(Entry), 0, len(r.subs))
	for _, cb := range r.subs {
		subs = append(subs, cb)
	}
	r.mu.Unlock()

	for _, cb := range subs {
		deliver(cb, e)
	}
	return e
}

// deliver invokes cb, recovering from a panic so one broken subscriber can
// never take down append() or affect sibling subscribers.
func deliver(cb func(Entry), e Entry) {
	defer func() { _ = recover() }()
	cb(e)
}

// subscribe registers cb for every subsequent append and returns an
// unsubscribe function.
func (r *ring) subscribe(cb func(Entry)) func() {
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subs[id] = cb
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// replaySince returns all entries with Seq > sinceSeq, in order, oldest
// first. Used at startup (or SSE reconnect) to re-hydrate a consumer from a
// known boundary.
func (r *ring) replaySince(sinceSeq uint64) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Seq > sinceSeq {
			out = append(out, e)
		}
	}
	return out
}

// snapshot returns the last `limit` entries (0 = all currently retained).
func (r *ring) snapshot(limit int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit >= len(r.entries) {
		out := make([]Entry, len(r.entries))
		copy(out, r.entries)
		return out
	}
	out := make([]Entry, limit)
	copy(out, r.entries[len(r.entries)-limit:])
	return out
}

// Log is the append-only Event Log (C1).
type Log struct {
	r *ring
}

// NewLog creates an Event Log bounded to capacity entries (oldest trimmed).
func NewLog(capacity int) *Log {
	return &Log{r: newRing(capacity)}
}

// Append stamps ts/seq and delivers the entry to every live subscriber.
func (l *Log) Append(typ EntryType, payload map[string]interface{}) Entry {
	return l.r.append(typ, payload)
}

// Subscribe registers a callback for every subsequent append.
func (l *Log) Subscribe(cb func(Entry)) func() { return l.r.subscribe(cb) }

// ReplaySince returns the tail since a sequence boundary, used to re-hydrate
// chat at startup.
func (l *Log) ReplaySince(sinceSeq uint64) []Entry { return l.r.replaySince(sinceSeq) }

// Snapshot returns up to limit of the most recent entries (0 = all retained).
func (l *Log) Snapshot(limit int) []Entry { return l.r.snapshot(limit) }
