package pendingactions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theredstring/redstring-sub011/pkg/events"
	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
)

func TestLeaseMovesIdsIntoInflightAndHidesThemFromSecondLease(t *testing.T) {
	s := New(events.NewTelemetry(100))
	s.Enqueue(graphmodel.PendingAction{Action: graphmodel.ActionOpenGraph})

	first := s.Lease()
	require.Len(t, first, 1)

	second := s.Lease()
	assert.Empty(t, second, "an inflight action must not be leased twice")
}

func TestAckRemovesFromMainListAndInflight(t *testing.T) {
	s := New(events.NewTelemetry(100))
	a := s.Enqueue(graphmodel.PendingAction{Action: graphmodel.ActionOpenGraph})
	s.Lease()

	ok := s.Ack(a.ID)
	assert.True(t, ok)

	// Acked action is gone; a fresh enqueue+lease cycle sees nothing stale.
	assert.Empty(t, s.Lease())
}

func TestAckUnknownIDReturnsFalse(t *testing.T) {
	s := New(nil)
	assert.False(t, s.Ack("never-enqueued"))
}

func TestFeedbackDoesNotRemoveAction(t *testing.T) {
	s := New(events.NewTelemetry(100))
	a := s.Enqueue(graphmodel.PendingAction{Action: graphmodel.ActionApplyMutations})
	s.Lease()

	s.Feedback(a.ID, "failed", "network timeout", nil)

	// Action must still be ackable after feedback.
	assert.True(t, s.Ack(a.ID))
}

func TestEnqueueOpenGraphActionsDeduplicatesAndPreservesOrder(t *testing.T) {
	s := New(nil)
	s.EnqueueOpenGraphActions([]string{"g1", "g1", "g2", ""}, "cid-1")

	leased := s.Lease()
	require.Len(t, leased, 2)
	assert.Equal(t, "g1", leased[0].Params[0]["graphId"])
	assert.Equal(t, "g2", leased[1].Params[0]["graphId"])
	assert.Equal(t, "cid-1", leased[0].Cid())
}

func TestActionSequenceIncrementsMonotonicallyAcrossAcks(t *testing.T) {
	s := New(events.NewTelemetry(100))
	a1 := s.Enqueue(graphmodel.PendingAction{Action: graphmodel.ActionOpenGraph})
	a2 := s.Enqueue(graphmodel.PendingAction{Action: graphmodel.ActionOpenGraph})
	s.Lease()

	s.Ack(a1.ID)
	s.Ack(a2.ID)

	assert.EqualValues(t, 2, s.actionSeq)
}
