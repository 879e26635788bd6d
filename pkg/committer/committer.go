// Package committer implements the single-writer Committer (C4): a
// periodic loop that pulls approved reviews, coalesces their patches per
// graph, resolves NEW_GRAPH placeholders, and emits applyMutations bundles
// to the Pending-Action Store (spec.md §4.4).
//
// Grounded on the teacher's pkg/queue/worker.go ticker/select-over-stopCh
// idiom, generalized from a single poll-and-process loop to a per-graph
// fan-out with advisory locking.
package committer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/theredstring/redstring-sub011/pkg/events"
	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
	"github.com/theredstring/redstring-sub011/pkg/metrics"
	"github.com/theredstring/redstring-sub011/pkg/pendingactions"
	"github.com/theredstring/redstring-sub011/pkg/queue"
)

const (
	goalQueueName   = "goalQueue"
	taskQueueName   = "taskQueue"
	patchQueueName  = "patchQueue"
	reviewQueueName = "reviewQueue"
)

// MergeChecker decides whether a patch may merge into its target graph. A
// minimal implementation (DefaultMergeChecker) returns true unconditionally;
// the interface exists so a richer implementation (e.g. hash-based conflict
// detection) can be slotted in without touching the tick loop (spec.md
// §4.4 step 5).
type MergeChecker interface {
	CanMerge(patch graphmodel.Patch, graphID string) bool
}

// DefaultMergeChecker always allows the merge.
type DefaultMergeChecker struct{}

// CanMerge implements MergeChecker.
func (DefaultMergeChecker) CanMerge(graphmodel.Patch, string) bool { return true }

// ChatAppender posts a chat line for a thread, used for read-result digests
// and completion summaries (spec.md §4.4 steps 9 and 11). Injected rather
// than dialed over HTTP to itself, since Committer and the chat log share
// one process.
type ChatAppender interface {
	AppendChat(threadID, cid, text string)
}

// ContinueRequest is the payload posted to the agent's continuation hook
// (spec.md §6 "POST /api/ai/agent/continue").
type ContinueRequest struct {
	Cid        string
	ReadResult interface{}
	GraphState interface{}
	Iteration  int
	APIConfig  map[string]interface{}
}

// Continuer invokes the external agent continuation hook. Implementations
// typically forward to the Intent Router's own continue handler or, for a
// genuinely external collaborator, issue an outbound HTTP POST.
type Continuer interface {
	Continue(req ContinueRequest)
}

// Committer is the single-writer core (C4).
type Committer struct {
	queues    *queue.Manager
	pending   *pendingactions.Store
	eventLog  *events.Log
	chat      ChatAppender
	continuer Continuer
	merge     MergeChecker

	windowMs   int
	maxPerPull int

	graphLocksMu sync.Mutex
	graphLocks   map[string]*sync.Mutex

	idemMu  sync.Mutex
	idemSet map[string]struct{}
	idemLRU []string // oldest-first, bounded to idemCap
	idemCap int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Committer. merge may be nil (defaults to DefaultMergeChecker).
func New(queues *queue.Manager, pending *pendingactions.Store, eventLog *events.Log, chat ChatAppender, continuer Continuer, merge MergeChecker, windowMs, maxPerPull, idempotencyCap int) *Committer {
	if merge == nil {
		merge = DefaultMergeChecker{}
	}
	if idempotencyCap <= 0 {
		idempotencyCap = 100_000
	}
	return &Committer{
		queues:     queues,
		pending:    pending,
		eventLog:   eventLog,
		chat:       chat,
		continuer:  continuer,
		merge:      merge,
		windowMs:   windowMs,
		maxPerPull: maxPerPull,
		graphLocks: make(map[string]*sync.Mutex),
		idemSet:    make(map[string]struct{}),
		idemCap:    idempotencyCap,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the tick loop at the given interval (recommended ~10 Hz,
// i.e. 100ms).
func (c *Committer) Start(interval time.Duration) {
	c.wg.Add(1)
	go c.loop(interval)
}

// Stop halts the tick loop and waits for the in-flight tick to finish.
func (c *Committer) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Committer) loop(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick runs one full pass of spec.md §4.4 steps 1-15. Errors within a
// single graph's processing are logged and do not abort other graphs'
// processing this tick (spec.md §7 "uncaught in ticker body -> log +
// continue").
func (c *Committer) tick() {
	reviews := c.queues.PullBatch(reviewQueueName, queue.PullBatchOptions{
		WindowMs: c.windowMs,
		Max:      c.maxPerPull,
	})
	if len(reviews) == 0 {
		return
	}

	byGraph := make(map[string][]queue.Item)
	for _, item := range reviews {
		graphID, _ := item.Payload["graphId"].(string)
		byGraph[graphID] = append(byGraph[graphID], item)
	}

	for graphID, items := range byGraph {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("committer: panic processing graph tick", "graphId", graphID, "recover", r)
				}
			}()
			c.processGraph(graphID, items)
		}()
	}
}

func (c *Committer) graphLock(graphID string) *sync.Mutex {
	c.graphLocksMu.Lock()
	defer c.graphLocksMu.Unlock()
	l, ok := c.graphLocks[graphID]
	if !ok {
		l = &sync.Mutex{}
		c.graphLocks[graphID] = l
	}
	return l
}

func (c *Committer) processGraph(graphID string, items []queue.Item) {
	lock := c.graphLock(graphID)
	if !lock.TryLock() {
		// Another tick is in progress for this graph; retried next tick.
		return
	}
	defer lock.Unlock()

	reviews := parseReviews(items)

	// Inspect reviewStatus locally (spec.md §4.4 step 1): a rejected review's
	// patches are never coalesced or applied, only surfaced as
	// PATCH_REJECTED (spec.md invariant 3).
	var unseenPatches []graphmodel.Patch
	for _, rv := range reviews {
		if rv.ReviewStatus != graphmodel.ReviewApproved {
			c.eventLog.Append(events.PatchRejected, map[string]interface{}{
				"graphId": graphID,
				"reason":  "not_approved",
			})
			continue
		}
		for _, p := range rv.FlattenPatches() {
			if c.seen(p.PatchID) {
				continue
			}
			unseenPatches = append(unseenPatches, p)
		}
	}

	if len(unseenPatches) == 0 {
		c.ackAll(items)
		return
	}

	for _, p := range unseenPatches {
		if p.BaseHash == "" {
			continue
		}
		if !c.merge.CanMerge(p, graphID) {
			c.eventLog.Append(events.PatchRejected, map[string]interface{}{
				"graphId": graphID,
				"reason":  "conflict",
			})
			c.ackAll(items)
			return
		}
	}

	ops := coalesceOps(unseenPatches)

	ops, err := resolvePlaceholders(ops)
	if err != nil {
		slog.Error("committer: unresolved NEW_GRAPH placeholder", "graphId", graphID, "error", err)
		c.eventLog.Append(events.PatchRejected, map[string]interface{}{
			"graphId": graphID,
			"reason":  "unresolved_placeholder",
		})
		c.ackAll(items)
		return
	}

	readResponses, mutationOps := splitOps(ops)

	c.handleReadResponses(readResponses, unseenPatches)
	c.handleMutations(graphID, mutationOps, unseenPatches)

	for _, p := range unseenPatches {
		c.markSeen(p.PatchID)
	}

	c.eventLog.Append(events.PatchApplied, map[string]interface{}{
		"graphId":  graphID,
		"opsCount": len(mutationOps),
	})
	metrics.CommitterApplied.Add(float64(len(unseenPatches)))

	c.ackAll(items)
}

func (c *Committer) ackAll(items []queue.Item) {
	for _, item := range items {
		c.queues.Ack(reviewQueueName, item.LeaseID)
	}
}

func (c *Committer) handleReadResponses(readResponses []graphmodel.Op, patches []graphmodel.Patch) {
	if len(readResponses) == 0 {
		return
	}
	threadIDs := make(map[string]bool)
	for _, p := range patches {
		if p.ThreadID != "" {
			threadIDs[p.ThreadID] = true
		}
	}
	for threadID := range threadIDs {
		for _, op := range readResponses {
			summary := formatReadSummary(op)
			if c.chat != nil {
				c.chat.AppendChat(threadID, "", summary)
			}
			for _, p := range patches {
				if apiKey := p.MetaString("apiKey"); apiKey != "" && c.continuer != nil {
					c.continuer.Continue(ContinueRequest{
						ReadResult: op.Data,
						APIConfig:  map[string]interface{}{"apiKey": apiKey},
					})
				}
			}
		}
	}
}

func (c *Committer) handleMutations(graphID string, mutationOps []graphmodel.Op, patches []graphmodel.Patch) {
	if len(mutationOps) == 0 {
		c.maybeFinalizeAgenticLoop(graphID, 0, patches)
		return
	}

	c.pending.Enqueue(graphmodel.PendingAction{
		Action: graphmodel.ActionApplyMutations,
		Params: []map[string]interface{}{{"ops": mutationOps}},
	})

	createdGraphIDs := createdGraphIDs(mutationOps)
	if len(createdGraphIDs) > 0 {
		c.pending.EnqueueOpenGraphActions(createdGraphIDs, "")
	}

	nodeCount, edgeCount := countApplied(mutationOps)
	if c.chat != nil {
		threadIDs := distinctThreadIDs(patches)
		summary := fmt.Sprintf("Applied %d node(s) and %d edge(s).", nodeCount, edgeCount)
		for _, threadID := range threadIDs {
			c.chat.AppendChat(threadID, "", summary)
		}
	}
	c.recordToolCompletionTelemetry(mutationOps)

	c.maybeFinalizeAgenticLoop(graphID, nodeCount, patches)
}

// maybeFinalizeAgenticLoop implements spec.md §4.4 step 12: continue the
// agentic loop if warranted, else post a final "Done!" message.
func (c *Committer) maybeFinalizeAgenticLoop(graphID string, nodesCreated int, patches []graphmodel.Patch) {
	for _, p := range patches {
		apiKey := p.MetaString("apiKey")
		if apiKey == "" {
			continue
		}
		agentic := p.MetaBool("agenticLoop") || nodesCreated >= 3
		if !agentic {
			continue
		}
		iteration := 0
		if v, ok := p.Meta["iteration"].(int); ok {
			iteration = v
		}
		if c.continuer != nil {
			c.continuer.Continue(ContinueRequest{
				GraphState: graphID,
				Iteration:  iteration + 1,
				APIConfig:  map[string]interface{}{"apiKey": apiKey},
			})
		}
		return
	}
	if c.chat != nil {
		for _, threadID := range distinctThreadIDs(patches) {
			c.chat.AppendChat(threadID, "", "Done!")
		}
	}
}

func (c *Committer) recordToolCompletionTelemetry(ops []graphmodel.Op) {
	hasCreateGraph, hasAddInstance, hasAddEdge := false, false, false
	for _, op := range ops {
		switch op.Type {
		case graphmodel.OpCreateNewGraph:
			hasCreateGraph = true
		case graphmodel.OpAddNodeInstance:
			hasAddInstance = true
		case graphmodel.OpAddEdge:
			hasAddEdge = true
		}
	}
	switch {
	case hasCreateGraph && hasAddInstance:
		c.emitToolCompletion("create_populated_graph")
	case hasAddInstance:
		c.emitToolCompletion("create_subgraph")
	case hasAddEdge:
		c.emitToolCompletion("define_connections")
	}
}

func (c *Committer) emitToolCompletion(toolName string) {
	c.eventLog.Append(events.TelemetryEntryType, map[string]interface{}{
		"type":     "tool_call",
		"toolName": toolName,
		"status":   string(events.ToolCallCompleted),
	})
}

func (c *Committer) seen(patchID string) bool {
	c.idemMu.Lock()
	defer c.idemMu.Unlock()
	_, ok := c.idemSet[patchID]
	return ok
}

func (c *Committer) markSeen(patchID string) {
	c.idemMu.Lock()
	defer c.idemMu.Unlock()
	if _, ok := c.idemSet[patchID]; ok {
		return
	}
	c.idemSet[patchID] = struct{}{}
	c.idemLRU = append(c.idemLRU, patchID)
	if len(c.idemLRU) > c.idemCap {
		evict := c.idemLRU[0]
		c.idemLRU = c.idemLRU[1:]
		delete(c.idemSet, evict)
	}
}
