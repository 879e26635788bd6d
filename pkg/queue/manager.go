package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theredstring/redstring-sub011/pkg/metrics"
)

// queueState is one named FIFO. order holds queued item ids in enqueue order;
// byID holds every item that has not been acked (an item is removed on ack;
// dead items stay in byID, but Peek returns only queued items).
type queueState struct {
	mu      sync.Mutex
	order   []string // queued item ids, FIFO
	byID    map[string]*Item
	inflight map[string]*Item // leaseID -> item
	metrics Metrics
}

func newQueueState() *queueState {
	return &queueState{
		byID:     make(map[string]*Item),
		inflight: make(map[string]*Item),
	}
}

// Manager owns every named queue in the pipeline (goalQueue, taskQueue,
// patchQueue, reviewQueue, and any test/ad-hoc queue), and the lease-expiry
// sweep that runs across all of them.
type Manager struct {
	mu         sync.RWMutex
	queues     map[string]*queueState
	leaseTTL   time.Duration
	maxAttempts int
	onDead     DeadLetterFunc

	stopCh chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a Queue Manager. leaseTTL and maxAttempts are applied
// to every queue uniformly, matching spec.md §4.2's single global lease
// policy (no per-queue override is named in the spec).
func NewManager(leaseTTL time.Duration, maxAttempts int, onDead DeadLetterFunc) *Manager {
	return &Manager{
		queues:      make(map[string]*queueState),
		leaseTTL:    leaseTTL,
		maxAttempts: maxAttempts,
		onDead:      onDead,
		stopCh:      make(chan struct{}),
	}
}

// getOrCreate returns the named queue, auto-vivifying an empty one — "pull
// on an unknown name creates it empty" (spec.md §4.2 failure modes).
func (m *Manager) getOrCreate(name string) *queueState {
	m.mu.RLock()
	q, ok := m.queues[name]
	m.mu.RUnlock()
	if ok {
		return q
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[name]; ok {
		return q
	}
	q = newQueueState()
	m.queues[name] = q
	return q
}

// GetQueue exposes low-level access for tests only (spec.md §4.2).
func (m *Manager) GetQueue(name string) *queueState { return m.getOrCreate(name) }

// Enqueue appends payload to the named queue and returns a new item id.
// O(1) append; preserves insertion order even under concurrent writers
// (spec.md §4.2 failure modes).
func (m *Manager) Enqueue(name string, payload map[string]interface{}, partitionKey string) string {
	q := m.getOrCreate(name)
	id := uuid.NewString()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.byID[id] = &Item{
		ID:           id,
		EnqueuedAt:   time.Now(),
		Payload:      payload,
		PartitionKey: partitionKey,
		Status:       StatusQueued,
	}
	q.order = append(q.order, id)
	q.metrics.Enq++
	metrics.QueueTotal.WithLabelValues(name, "enqueue").Inc()
	metrics.QueueDepth.WithLabelValues(name).Set(float64(depthLocked(q)))
	return id
}

// depthLocked counts queued (not leased/acked/dead) items. Caller must hold
// q.mu.
func depthLocked(q *queueState) int {
	depth := 0
	for _, id := range q.order {
		if item, ok := q.byID[id]; ok && item.Status == StatusQueued {
			depth++
		}
	}
	return depth
}

// PullOptions configures Pull.
type PullOptions struct {
	PartitionKey string
	Max          int
	// Filter, if non-nil, is a predicate over payload. Items for which it
	// returns false remain queued (not leased, not consumed) — spec.md
	// §4.2 "MUST NOT silently drop items whose filter returned false".
	Filter func(payload map[string]interface{}) bool
}

// Pull leases up to opts.Max queued items (optionally restricted to a
// partition key and/or passing a filter predicate) and returns them with
// fresh lease ids. Items remain inflight until Ack/Nack/expiry.
func (m *Manager) Pull(name string, opts PullOptions) []Item {
	q := m.getOrCreate(name)

	q.mu.Lock()
	defer q.mu.Unlock()

	if opts.Max <= 0 {
		return nil
	}

	var leased []Item
	remaining := make([]string, 0, len(q.order))
	now := time.Now()

	for _, id := range q.order {
		item, ok := q.byID[id]
		if !ok || item.Status != StatusQueued {
			continue // acked/dead items are pruned from order lazily
		}
		if len(leased) >= opts.Max {
			remaining = append(remaining, id)
			continue
		}
		if opts.PartitionKey != "" && item.PartitionKey != opts.PartitionKey {
			remaining = append(remaining, id)
			continue
		}
		if opts.Filter != nil && !opts.Filter(item.Payload) {
			remaining = append(remaining, id)
			continue
		}

		item.Status = StatusLeased
		item.LeaseID = uuid.NewString()
		item.LeaseExpiresAt = now.Add(m.leaseTTL)
		q.inflight[item.LeaseID] = item
		leased = append(leased, *item)
	}
	q.order = remaining
	q.metrics.Deq += int64(len(leased))
	if len(leased) > 0 {
		metrics.QueueTotal.WithLabelValues(name, "dequeue").Add(float64(len(leased)))
	}
	metrics.QueueDepth.WithLabelValues(name).Set(float64(depthLocked(q)))
	metrics.QueueInflight.WithLabelValues(name).Set(float64(len(q.inflight)))
	return leased
}

// PullBatchOptions configures PullBatch.
type PullBatchOptions struct {
	WindowMs     int
	Max          int
	PartitionKey string
	Filter       func(payload map[string]interface{}) bool
}

// PullBatch behaves like Pull, but additionally waits up to WindowMs to
// coalesce newly-arriving items into the same batch (used by the Committer
// to batch per tick, spec.md §4.2). It polls at a fraction of the window so
// it returns promptly once Max is reached or the window elapses, whichever
// comes first.
func (m *Manager) PullBatch(name string, opts PullBatchOptions) []Item {
	deadline := time.Now().Add(time.Duration(opts.WindowMs) * time.Millisecond)
	pullOpts := PullOptions{PartitionKey: opts.PartitionKey, Max: opts.Max, Filter: opts.Filter}

	out := m.Pull(name, pullOpts)
	if opts.WindowMs <= 0 {
		return out
	}

	pollEvery := time.Duration(opts.WindowMs) * time.Millisecond / 5
	if pollEvery <= 0 {
		pollEvery = time.Millisecond
	}

	for len(out) < opts.Max && time.Now().Before(deadline) {
		time.Sleep(pollEvery)
		remaining := opts.Max - len(out)
		more := m.Pull(name, PullOptions{PartitionKey: opts.PartitionKey, Max: remaining, Filter: opts.Filter})
		if len(more) == 0 {
			continue
		}
		out = append(out, more...)
	}
	return out
}

// Ack removes a leased item by lease id. A no-op on an unknown lease id
// (spec.md §4.2 "ack with an unknown leaseId is a no-op (idempotent)").
func (m *Manager) Ack(name, leaseID string) {
	q := m.getOrCreate(name)
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.inflight[leaseID]
	if !ok {
		return
	}
	delete(q.inflight, leaseID)
	delete(q.byID, item.ID)
	q.metrics.Ack++
	metrics.QueueTotal.WithLabelValues(name, "ack").Inc()
	metrics.QueueInflight.WithLabelValues(name).Set(float64(len(q.inflight)))
}

// NackOptions configures Nack.
type NackOptions struct {
	// Requeue defaults to true in callers; false drops the item instead of
	// returning it to the queue.
	Requeue bool
}

// Nack returns a leased item to the head of its partition (incrementing
// Attempts), or drops it if Requeue is false or Attempts has reached
// maxAttempts (in which case it is dead-lettered).
func (m *Manager) Nack(name, leaseID string, opts NackOptions) {
	q := m.getOrCreate(name)

	q.mu.Lock()
	item, ok := q.inflight[leaseID]
	if !ok {
		q.mu.Unlock()
		return
	}
	delete(q.inflight, leaseID)
	q.metrics.Nack++
	metrics.QueueTotal.WithLabelValues(name, "nack").Inc()

	item.Attempts++
	item.LeaseID = ""
	item.LeaseExpiresAt = time.Time{}

	if !opts.Requeue || item.Attempts >= m.maxAttempts {
		item.Status = StatusDead
		metrics.QueueTotal.WithLabelValues(name, "dead").Inc()
		metrics.QueueInflight.WithLabelValues(name).Set(float64(len(q.inflight)))
		q.mu.Unlock()
		if m.onDead != nil {
			m.onDead(name, *item)
		}
		return
	}

	item.Status = StatusQueued
	q.order = append([]string{item.ID}, q.order...)
	metrics.QueueDepth.WithLabelValues(name).Set(float64(depthLocked(q)))
	metrics.QueueInflight.WithLabelValues(name).Set(float64(len(q.inflight)))
	q.mu.Unlock()
}

// Peek returns a non-leasing snapshot of the next `head` queued items
// (default 10), oldest first.
func (m *Manager) Peek(name string, head int) []Item {
	if head <= 0 {
		head = 10
	}
	q := m.getOrCreate(name)

	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Item, 0, head)
	for _, id := range q.order {
		item, ok := q.byID[id]
		if !ok || item.Status != StatusQueued {
			continue
		}
		out = append(out, *item)
		if len(out) >= head {
			break
		}
	}
	return out
}

// Metrics returns the current counters and live depth/inflight for name.
func (m *Manager) Metrics(name string) Metrics {
	q := m.getOrCreate(name)
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.metrics
	out.Depth = depthLocked(q)
	out.Inflight = len(q.inflight)
	return out
}

// Names returns every queue name that has been enqueued to or pulled from.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	return names
}
