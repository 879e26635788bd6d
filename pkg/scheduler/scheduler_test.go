package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theredstring/redstring-sub011/pkg/queue"
)

type fakePlanner struct {
	tasks []map[string]interface{}
}

func (f *fakePlanner) Plan(goal map[string]interface{}) []map[string]interface{} {
	return f.tasks
}

type fakeExecutor struct {
	graphID string
}

func (f *fakeExecutor) Execute(task map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"graphId": f.graphID, "patchId": "p-1"}
}

type fakeAuditor struct{}

func (fakeAuditor) Audit(patch map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{"reviewStatus": "approved"}
	if gid, ok := patch["graphId"]; ok {
		out["graphId"] = gid
	}
	return out
}

func TestPlannerTickFansOutTasksAndAcksGoal(t *testing.T) {
	qm := queue.NewManager(time.Minute, 5, nil)
	planner := &fakePlanner{tasks: []map[string]interface{}{{"id": "t1", "toolName": "create_graph"}}}
	s := New(qm, planner, nil, nil)

	qm.Enqueue(goalQueueName, map[string]interface{}{"goal": "create_graph"}, "")
	s.plannerTick(10)

	tasks := qm.Peek(taskQueueName, 10)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].Payload["id"])
	assert.Equal(t, 0, qm.Metrics(goalQueueName).Depth)
}

func TestPlannerTickWithholdsTasksWithUnsatisfiedDependencies(t *testing.T) {
	qm := queue.NewManager(time.Minute, 5, nil)
	planner := &fakePlanner{tasks: []map[string]interface{}{
		{"id": "t1", "dependsOn": []string{"t0"}},
	}}
	s := New(qm, planner, nil, nil)

	qm.Enqueue(goalQueueName, map[string]interface{}{"goal": "x"}, "")
	s.plannerTick(10)

	assert.Empty(t, qm.Peek(taskQueueName, 10), "task with unmet dependsOn must be withheld")

	s.depMu.Lock()
	s.completed["t0"] = true
	s.depMu.Unlock()

	s.releaseHeldTasks()
	tasks := qm.Peek(taskQueueName, 10)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].Payload["id"])
}

func TestExecutorTickProducesPatchAndMarksTaskCompleted(t *testing.T) {
	qm := queue.NewManager(time.Minute, 5, nil)
	executor := &fakeExecutor{graphID: "g1"}
	s := New(qm, nil, executor, nil)

	qm.Enqueue(taskQueueName, map[string]interface{}{"id": "t1"}, "")
	s.executorTick(10)

	patches := qm.Peek(patchQueueName, 10)
	require.Len(t, patches, 1)
	assert.Equal(t, "g1", patches[0].Payload["graphId"])

	s.depMu.Lock()
	assert.True(t, s.completed["t1"])
	s.depMu.Unlock()
}

func TestAuditorTickProducesReviewAndAcksPatch(t *testing.T) {
	qm := queue.NewManager(time.Minute, 5, nil)
	s := New(qm, nil, nil, fakeAuditor{})

	qm.Enqueue(patchQueueName, map[string]interface{}{"graphId": "g1"}, "g1")
	s.auditorTick(10)

	reviews := qm.Peek(reviewQueueName, 10)
	require.Len(t, reviews, 1)
	assert.Equal(t, "approved", reviews[0].Payload["reviewStatus"])
}

func TestStatusReflectsToggleAndDepth(t *testing.T) {
	qm := queue.NewManager(time.Minute, 5, nil)
	s := New(qm, &fakePlanner{}, &fakeExecutor{}, fakeAuditor{})
	qm.Enqueue(goalQueueName, map[string]interface{}{}, "")

	s.Start(Options{CadenceMs: 20, Toggles: Toggles{Planner: true}, MaxPerTick: MaxPerTick{Planner: 10}})
	time.Sleep(80 * time.Millisecond)
	st := s.Status()
	s.Stop()

	assert.True(t, st.Enabled)
	assert.Equal(t, 0, st.PerQueueDepth[goalQueueName], "goal should have drained within a couple ticks")
}

func TestStopIsCooperativeAndIdempotent(t *testing.T) {
	qm := queue.NewManager(time.Minute, 5, nil)
	s := New(qm, &fakePlanner{}, nil, nil)
	s.Start(Options{CadenceMs: 10})
	time.Sleep(25 * time.Millisecond)
	s.Stop()
	assert.NotPanics(t, func() { s.Stop() })
	assert.False(t, s.Status().Enabled)
}
