// Package queue implements the Queue Manager (C2): named, in-memory FIFO
// queues with lease/ack semantics, partitioning, batching, and depth metrics
// (spec.md §4.2). The queues do not deduplicate payloads; patchId
// idempotency is enforced by the Committer. Every named queue in the pipeline — goals,
// tasks, patches, reviews — is an instance managed by a single Manager.
package queue

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a QueueItem.
type Status string

const (
	StatusQueued Status = "queued"
	StatusLeased Status = "leased"
	StatusAcked  Status = "acked"
	StatusDead   Status = "dead"
)

// Item is one payload moving through a named queue.
type Item struct {
	ID             string
	EnqueuedAt     time.Time
	Payload        map[string]interface{}
	PartitionKey   string
	Status         Status
	LeaseID        string
	LeaseExpiresAt time.Time
	Attempts       int
}

// Metrics is the per-queue counters exposed over /queue/metrics.
type Metrics struct {
	Depth    int   `json:"depth"`
	Inflight int   `json:"inflight"`
	Enq      int64 `json:"enq"`
	Deq      int64 `json:"deq"`
	Ack      int64 `json:"ack"`
	Nack     int64 `json:"nack"`
}

// Sentinel errors for queue operations. ack/nack on an unknown leaseId are
// intentionally NOT errors (spec.md §4.2 "ack with an unknown leaseId is a
// no-op (idempotent)"). Ack and Nack return nothing, so a caller cannot tell
// "already acked" from "never existed".
var (
	// ErrUnknownQueue is not returned by any Manager method: GetQueue, Pull
	// and Enqueue all auto-vivify an unknown queue name.
	ErrUnknownQueue = errors.New("queue: unknown queue name")
)

// DeadLetterFunc is invoked when an item exceeds MaxAttempts lease
// expiries. Callers wire this to append a TASK_FAILED/PATCH_REJECTED event
// (spec.md §4.2 "After a configurable maxAttempts, items are marked dead and
// emitted as a PATCH_REJECTED/TASK_FAILED event"); queue intentionally has
// no dependency on the event log package to avoid an import cycle with
// components that both enqueue and subscribe.
type DeadLetterFunc func(queueName string, item Item)
