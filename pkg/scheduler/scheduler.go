// Package scheduler implements the cooperative Scheduler (C5): a single
// ticker that drains goals -> tasks -> patches -> reviews each tick, with
// per-tick caps and independently toggleable planner/executor/auditor
// stages (spec.md §4.5).
//
// Grounded on the teacher's pkg/queue/worker.go Start/Stop/stopOnce
// goroutine lifecycle, generalized from one poll loop into three cooperating
// stages sharing a single tick.
package scheduler

import (
	"sync"
	"time"

	"github.com/theredstring/redstring-sub011/pkg/metrics"
	"github.com/theredstring/redstring-sub011/pkg/queue"
)

const (
	goalQueueName   = "goalQueue"
	taskQueueName   = "taskQueue"
	patchQueueName  = "patchQueue"
	reviewQueueName = "reviewQueue"
)

// Planner materializes a Goal's DAG into Tasks.
type Planner interface {
	Plan(goal map[string]interface{}) []map[string]interface{}
}

// Executor evaluates a Task against the projected store and synthesizes a
// Patch (as a generic payload; the queue package has no graphmodel
// dependency, see pkg/queue/types.go).
type Executor interface {
	Execute(task map[string]interface{}) map[string]interface{}
}

// Auditor reviews a Patch and returns an approved/rejected Review payload.
type Auditor interface {
	Audit(patch map[string]interface{}) map[string]interface{}
}

// Toggles enables/disables each stage independently.
type Toggles struct {
	Planner  bool
	Executor bool
	Auditor  bool
}

// MaxPerTick bounds per-stage fan-in per tick.
type MaxPerTick struct {
	Planner  int
	Executor int
	Auditor  int
}

// Options configures Start (spec.md §4.5).
type Options struct {
	CadenceMs  int
	Toggles    Toggles
	MaxPerTick MaxPerTick
}

// Status mirrors spec.md §4.5's status() shape.
type Status struct {
	Enabled       bool
	CadenceMs     int
	Toggles       Toggles
	MaxPerTick    MaxPerTick
	LastTickAt    time.Time
	PerQueueDepth map[string]int
}

// Scheduler drives the Planner -> Executor -> Auditor stages over the
// Queue Manager.
type Scheduler struct {
	queues   *queue.Manager
	planner  Planner
	executor Executor
	auditor  Auditor

	mu         sync.Mutex
	opts       Options
	enabled    bool
	lastTickAt time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}

	depMu     sync.Mutex
	held      []map[string]interface{} // tasks withheld pending their dependsOn
	completed map[string]bool          // task ids that have produced a patch-or-response
}

// New creates a Scheduler wired to the given stages and defaults (spec.md
// §4.5's stated defaults: cadence 250ms, all stages on, maxPerTick 10).
func New(queues *queue.Manager, planner Planner, executor Executor, auditor Auditor) *Scheduler {
	return &Scheduler{
		queues:   queues,
		planner:  planner,
		executor: executor,
		auditor:  auditor,
		opts: Options{
			CadenceMs:  250,
			Toggles:    Toggles{Planner: true, Executor: true, Auditor: true},
			MaxPerTick: MaxPerTick{Planner: 10, Executor: 10, Auditor: 10},
		},
		completed: make(map[string]bool),
	}
}

// Start begins ticking with the given options, replacing any prior options.
// Calling Start while already running restarts the loop with the new
// options (stopping the old one cooperatively first).
func (s *Scheduler) Start(opts Options) {
	s.mu.Lock()
	if s.enabled {
		s.mu.Unlock()
		s.Stop()
	} else {
		s.mu.Unlock()
	}

	s.mu.Lock()
	if opts.CadenceMs <= 0 {
		opts.CadenceMs = 250
	}
	s.opts = opts
	s.enabled = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.stopOnce = sync.Once{}
	stopCh := s.stopCh
	doneCh := s.doneCh
	cadence := time.Duration(opts.CadenceMs) * time.Millisecond
	s.mu.Unlock()

	metrics.SchedulerEnabled.Set(1)
	go s.loop(cadence, stopCh, doneCh)
}

// Stop halts ticking. The current tick runs to completion; no new tick
// begins (spec.md §4.5 "Cancellation").
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	stopOnce := &s.stopOnce
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.enabled = false
	s.mu.Unlock()

	stopOnce.Do(func() { close(stopCh) })
	<-doneCh
	metrics.SchedulerEnabled.Set(0)
}

func (s *Scheduler) loop(cadence time.Duration, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	opts := s.opts
	s.mu.Unlock()

	if opts.Toggles.Planner {
		s.plannerTick(opts.MaxPerTick.Planner)
	}
	if opts.Toggles.Executor {
		s.executorTick(opts.MaxPerTick.Executor)
	}
	if opts.Toggles.Auditor {
		s.auditorTick(opts.MaxPerTick.Auditor)
	}

	s.mu.Lock()
	s.lastTickAt = time.Now()
	s.mu.Unlock()
}

// plannerTick materializes each pulled goal's DAG into tasks. Tasks whose
// dependsOn has not yet been satisfied are withheld (not enqueued to
// taskQueue) and re-evaluated on every subsequent planner tick until their
// predecessors have produced a patch-or-response (spec.md §4.5 planner
// tick).
func (s *Scheduler) plannerTick(max int) {
	if max <= 0 || s.planner == nil {
		s.releaseHeldTasks()
		return
	}
	items := s.queues.Pull(goalQueueName, queue.PullOptions{Max: max})
	for _, item := range items {
		tasks := s.planner.Plan(item.Payload)
		s.admitTasks(tasks)
		s.queues.Ack(goalQueueName, item.LeaseID)
	}
	s.releaseHeldTasks()
}

// admitTasks enqueues every task whose dependsOn ids have already produced
// a patch-or-response, and withholds the rest.
func (s *Scheduler) admitTasks(tasks []map[string]interface{}) {
	s.depMu.Lock()
	defer s.depMu.Unlock()
	for _, task := range tasks {
		if s.dependenciesSatisfiedLocked(task) {
			s.enqueueTask(task)
			continue
		}
		s.held = append(s.held, task)
	}
}

// releaseHeldTasks re-checks withheld tasks, enqueuing any whose
// dependencies have since completed.
func (s *Scheduler) releaseHeldTasks() {
	s.depMu.Lock()
	defer s.depMu.Unlock()
	if len(s.held) == 0 {
		return
	}
	var stillHeld []map[string]interface{}
	for _, task := range s.held {
		if s.dependenciesSatisfiedLocked(task) {
			s.enqueueTask(task)
			continue
		}
		stillHeld = append(stillHeld, task)
	}
	s.held = stillHeld
}

func (s *Scheduler) dependenciesSatisfiedLocked(task map[string]interface{}) bool {
	for _, dep := range taskDependsOn(task) {
		if !s.completed[dep] {
			return false
		}
	}
	return true
}

// taskDependsOn reads task["dependsOn"] defensively. Tasks reach the
// Scheduler via a JSON round trip (pkg/pipeline's decode/encode), which
// turns a JSON array into []interface{}; callers constructing tasks directly
// in-process (tests, fakes) may instead hand a literal []string.
func taskDependsOn(task map[string]interface{}) []string {
	switch raw := task["dependsOn"].(type) {
	case []string:
		deps := make([]string, 0, len(raw))
		for _, s := range raw {
			if s != "" {
				deps = append(deps, s)
			}
		}
		return deps
	case []interface{}:
		deps := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" {
				deps = append(deps, s)
			}
		}
		return deps
	default:
		return nil
	}
}

// enqueueTask must be called with depMu held.
func (s *Scheduler) enqueueTask(task map[string]interface{}) {
	partition, _ := task["threadId"].(string)
	s.queues.Enqueue(taskQueueName, task, partition)
}

func (s *Scheduler) executorTick(max int) {
	if max <= 0 || s.executor == nil {
		return
	}
	items := s.queues.Pull(taskQueueName, queue.PullOptions{Max: max})
	for _, item := range items {
		patch := s.executor.Execute(item.Payload)
		if patch != nil {
			graphID, _ := patch["graphId"].(string)
			s.queues.Enqueue(patchQueueName, patch, graphID)
		}
		if taskID, ok := item.Payload["id"].(string); ok {
			s.depMu.Lock()
			s.completed[taskID] = true
			s.depMu.Unlock()
		}
		s.queues.Ack(taskQueueName, item.LeaseID)
	}
}

func (s *Scheduler) auditorTick(max int) {
	if max <= 0 || s.auditor == nil {
		return
	}
	items := s.queues.Pull(patchQueueName, queue.PullOptions{Max: max})
	for _, item := range items {
		review := s.auditor.Audit(item.Payload)
		if review != nil {
			graphID, _ := review["graphId"].(string)
			s.queues.Enqueue(reviewQueueName, review, graphID)
		}
		s.queues.Ack(patchQueueName, item.LeaseID)
	}
}

// Status returns the current scheduler status (spec.md §4.5).
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	depths := map[string]int{}
	for _, name := range []string{goalQueueName, taskQueueName, patchQueueName, reviewQueueName} {
		depths[name] = s.queues.Metrics(name).Depth
	}
	return Status{
		Enabled:       s.enabled,
		CadenceMs:     s.opts.CadenceMs,
		Toggles:       s.opts.Toggles,
		MaxPerTick:    s.opts.MaxPerTick,
		LastTickAt:    s.lastTickAt,
		PerQueueDepth: depths,
	}
}
