// Package drainer implements the Safety Drainer (C9): a 1 Hz belt-and-
// suspenders timer that applies approved reviews directly when the
// Committer is stuck or disabled (spec.md §4.9).
//
// Grounded on pkg/queue/sweep.go's ticker/stopCh idiom in this same module,
// itself adapted from the teacher's pkg/queue/worker.go run loop.
package drainer

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
	"github.com/theredstring/redstring-sub011/pkg/pendingactions"
	"github.com/theredstring/redstring-sub011/pkg/queue"
)

const reviewQueueName = "reviewQueue"

// Drainer periodically applies approved reviews directly to the
// Pending-Action Store, independent of the Committer's health.
type Drainer struct {
	queues  *queue.Manager
	pending *pendingactions.Store

	maxPerPull int

	mu              sync.Mutex
	drainedPatchIDs map[string]struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Drainer. maxPerPull defaults to 5 per spec.md §4.9.
func New(queues *queue.Manager, pending *pendingactions.Store, maxPerPull int) *Drainer {
	if maxPerPull <= 0 {
		maxPerPull = 5
	}
	return &Drainer{
		queues:          queues,
		pending:         pending,
		maxPerPull:      maxPerPull,
		drainedPatchIDs: make(map[string]struct{}),
		stopCh:          make(chan struct{}),
	}
}

// Start begins the 1 Hz tick loop.
func (d *Drainer) Start(interval time.Duration) {
	d.wg.Add(1)
	go d.loop(interval)
}

// Stop halts the loop and waits for it to exit.
func (d *Drainer) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	d.wg.Wait()
}

func (d *Drainer) loop(interval time.Duration) {
	defer d.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

// tick pulls up to maxPerPull approved reviews (filtered by reviewStatus,
// unlike the Committer's unfiltered pull — spec.md §9's first Open
// Question preserves both patterns) and applies any whose patchId has not
// already been drained or committed.
func (d *Drainer) tick() {
	items := d.queues.Pull(reviewQueueName, queue.PullOptions{
		Max: d.maxPerPull,
		Filter: func(payload map[string]interface{}) bool {
			status, _ := payload["reviewStatus"].(string)
			return status == string(graphmodel.ReviewApproved)
		},
	})

	for _, item := range items {
		raw, err := json.Marshal(item.Payload)
		if err != nil {
			d.queues.Ack(reviewQueueName, item.LeaseID)
			continue
		}
		var rv graphmodel.Review
		if err := json.Unmarshal(raw, &rv); err != nil {
			d.queues.Ack(reviewQueueName, item.LeaseID)
			continue
		}

		for _, patch := range rv.FlattenPatches() {
			if d.alreadyDrained(patch.PatchID) || len(patch.Ops) == 0 {
				continue
			}
			d.pending.Enqueue(graphmodel.PendingAction{
				Action: graphmodel.ActionApplyMutations,
				Params: []map[string]interface{}{{"ops": patch.Ops}},
			})
			d.markDrained(patch.PatchID)
		}
		d.queues.Ack(reviewQueueName, item.LeaseID)
	}
}

func (d *Drainer) alreadyDrained(patchID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.drainedPatchIDs[patchID]
	return ok
}

func (d *Drainer) markDrained(patchID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drainedPatchIDs[patchID] = struct{}{}
}
