package events

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAppendAssignsMonotoneSeq(t *testing.T) {
	l := NewLog(10)
	e1 := l.Append(GoalEnqueued, nil)
	e2 := l.Append(TaskEnqueued, nil)
	assert.Equal(t, uint64(1), e1.Seq)
	assert.Equal(t, uint64(2), e2.Seq)
	assert.True(t, e2.TS.After(e1.TS) || e2.TS.Equal(e1.TS))
}

func TestLogTrimsToCapacity(t *testing.T) {
	l := NewLog(3)
	for i := 0; i < 5; i++ {
		l.Append(PatchApplied, nil)
	}
	snap := l.Snapshot(0)
	require.Len(t, snap, 3)
	assert.Equal(t, uint64(3), snap[0].Seq)
	assert.Equal(t, uint64(5), snap[2].Seq)
}

func TestLogSubscribeReceivesSubsequentAppends(t *testing.T) {
	l := NewLog(10)
	var received int32
	unsub := l.Subscribe(func(e Entry) {
		atomic.AddInt32(&received, 1)
	})
	l.Append(GoalEnqueued, nil)
	l.Append(TaskEnqueued, nil)
	assert.Equal(t, int32(2), atomic.LoadInt32(&received))

	unsub()
	l.Append(PatchApplied, nil)
	assert.Equal(t, int32(2), atomic.LoadInt32(&received), "unsubscribed callback must not fire again")
}

func TestLogSubscriberPanicIsolated(t *testing.T) {
	l := NewLog(10)
	var goodReceived int32
	l.Subscribe(func(e Entry) { panic("boom") })
	l.Subscribe(func(e Entry) { atomic.AddInt32(&goodReceived, 1) })

	require.NotPanics(t, func() {
		l.Append(GoalEnqueued, nil)
	})
	assert.Equal(t, int32(1), atomic.LoadInt32(&goodReceived))
}

func TestLogReplaySince(t *testing.T) {
	l := NewLog(10)
	l.Append(GoalEnqueued, nil)
	e2 := l.Append(TaskEnqueued, nil)
	l.Append(PatchApplied, nil)

	tail := l.ReplaySince(e2.Seq - 1)
	require.Len(t, tail, 2)
	assert.Equal(t, e2.Seq, tail[0].Seq)
}

func TestLogReplaySinceLatestReturnsEmpty(t *testing.T) {
	l := NewLog(10)
	e := l.Append(GoalEnqueued, nil)
	assert.Empty(t, l.ReplaySince(e.Seq))
}

func TestChatAppendAndSince(t *testing.T) {
	c := NewChat(10)
	c.Append("thread-1", "cid-1", "assistant", "Created graph \"Breaking Bad\".")
	c.Append("thread-1", "cid-1", "assistant", "Done!")

	lines := c.Snapshot(0)
	require.Len(t, lines, 2)
	assert.Equal(t, "thread-1", lines[0].ThreadID)
	assert.Equal(t, "Done!", lines[1].Text)

	tail := c.Since(lines[0].Seq)
	require.Len(t, tail, 1)
	assert.Equal(t, "Done!", tail[0].Text)
}

func TestTelemetryRecordAndQueryFilters(t *testing.T) {
	tel := NewTelemetry(100)
	tel.Record(TelemetryChat, "cid-a", map[string]interface{}{"x": 1})
	tel.Record(TelemetryToolCall, "cid-a", map[string]interface{}{"status": string(ToolCallQueued)})
	tel.Record(TelemetryToolCall, "cid-b", map[string]interface{}{"status": string(ToolCallCompleted)})

	byCid := tel.Query("cid-a", "", 0)
	assert.Len(t, byCid, 2)

	byType := tel.Query("", TelemetryToolCall, 0)
	assert.Len(t, byType, 2)

	byBoth := tel.Query("cid-b", TelemetryToolCall, 0)
	require.Len(t, byBoth, 1)
	assert.Equal(t, string(ToolCallCompleted), byBoth[0].Fields["status"])
}

func TestTelemetryQueryMostRecentFirst(t *testing.T) {
	tel := NewTelemetry(100)
	tel.Record(TelemetryChat, "", nil)
	time.Sleep(time.Millisecond)
	second := tel.Record(TelemetryChat, "", nil)

	out := tel.Query("", "", 1)
	require.Len(t, out, 1)
	assert.Equal(t, second.Seq, out[0].Seq)
}

func TestTelemetryReplaySince(t *testing.T) {
	tel := NewTelemetry(100)
	tel.Record(TelemetryChat, "", nil)
	e2 := tel.Record(TelemetryAgentPlan, "", nil)

	tail := tel.ReplaySince(e2.Seq - 1)
	require.Len(t, tail, 1)
	assert.Equal(t, e2.Seq, tail[0].Seq)
}
