package committer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theredstring/redstring-sub011/pkg/events"
	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
	"github.com/theredstring/redstring-sub011/pkg/pendingactions"
	"github.com/theredstring/redstring-sub011/pkg/queue"
)

type fakeChat struct {
	lines []string
}

func (f *fakeChat) AppendChat(threadID, cid, text string) {
	f.lines = append(f.lines, text)
}

type fakeContinuer struct {
	calls []ContinueRequest
}

func (f *fakeContinuer) Continue(req ContinueRequest) {
	f.calls = append(f.calls, req)
}

func submitReview(t *testing.T, qm *queue.Manager, rv graphmodel.Review) {
	t.Helper()
	raw, err := json.Marshal(rv)
	require.NoError(t, err)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	qm.Enqueue(reviewQueueName, payload, rv.GraphID)
}

func newTestCommitter(chat ChatAppender, cont Continuer) (*Committer, *queue.Manager, *pendingactions.Store) {
	qm := queue.NewManager(time.Minute, 5, nil)
	pending := pendingactions.New(events.NewTelemetry(100))
	log := events.NewLog(100)
	c := New(qm, pending, log, chat, cont, nil, 50, 200, 1000)
	return c, qm, pending
}

func TestCommitterAppliesCreateGraphAndEnqueuesOpenGraph(t *testing.T) {
	chat := &fakeChat{}
	c, qm, pending := newTestCommitter(chat, nil)

	submitReview(t, qm, graphmodel.Review{
		GraphID:      "g1",
		ReviewStatus: graphmodel.ReviewApproved,
		Patch: &graphmodel.Patch{
			PatchID: "p1",
			GraphID: "g1",
			Ops: []graphmodel.Op{
				{Type: graphmodel.OpCreateNewGraph, InitialData: map[string]interface{}{"id": "g1", "name": "Breaking Bad"}},
			},
		},
	})

	c.tick()

	leased := pending.Lease()
	require.Len(t, leased, 2, "applyMutations plus openGraph")
	assert.Equal(t, graphmodel.ActionApplyMutations, leased[0].Action)
	assert.Equal(t, graphmodel.ActionOpenGraph, leased[1].Action)
}

func TestCommitterSkipsAlreadySeenPatchID(t *testing.T) {
	chat := &fakeChat{}
	c, qm, pending := newTestCommitter(chat, nil)

	review := graphmodel.Review{
		GraphID:      "g1",
		ReviewStatus: graphmodel.ReviewApproved,
		Patch: &graphmodel.Patch{
			PatchID: "dup-1",
			GraphID: "g1",
			Ops:     []graphmodel.Op{{Type: graphmodel.OpAddNodeInstance, GraphID: "g1", InstanceID: "i1"}},
		},
	}
	submitReview(t, qm, review)
	c.tick()
	require.Len(t, pending.Lease(), 1)

	submitReview(t, qm, review)
	c.tick()
	assert.Empty(t, pending.Lease(), "a repeated patchId must not re-apply")
}

func TestCommitterRejectsUnresolvedPlaceholder(t *testing.T) {
	c, qm, pending := newTestCommitter(nil, nil)

	submitReview(t, qm, graphmodel.Review{
		GraphID:      "NEW_GRAPH:Ghost",
		ReviewStatus: graphmodel.ReviewApproved,
		Patch: &graphmodel.Patch{
			PatchID: "p-ghost",
			GraphID: "NEW_GRAPH:Ghost",
			Ops:     []graphmodel.Op{{Type: graphmodel.OpAddNodeInstance, GraphID: "NEW_GRAPH:Ghost"}},
		},
	})

	c.tick()
	assert.Empty(t, pending.Lease(), "unresolved placeholder must not emit a mutation bundle")
}

func TestCommitterReadResponseDoesNotEmitMutation(t *testing.T) {
	chat := &fakeChat{}
	c, qm, pending := newTestCommitter(chat, nil)

	submitReview(t, qm, graphmodel.Review{
		GraphID:      "g1",
		ReviewStatus: graphmodel.ReviewApproved,
		Patch: &graphmodel.Patch{
			PatchID:  "p-read",
			GraphID:  "g1",
			ThreadID: "t1",
			Ops: []graphmodel.Op{
				{Type: graphmodel.OpReadResponse, ToolName: "verify_state", Data: map[string]interface{}{"instanceCount": 3}},
			},
		},
	})

	c.tick()
	assert.Empty(t, pending.Lease(), "readResponse ops must never become a UI mutation")
	assert.NotEmpty(t, chat.lines, "a read summary chat line must be posted")
}

func TestCommitterLastWriterWinsOnConflictingUpdateOps(t *testing.T) {
	c, qm, pending := newTestCommitter(nil, nil)

	submitReview(t, qm, graphmodel.Review{
		GraphID:      "g1",
		ReviewStatus: graphmodel.ReviewApproved,
		Patches: []graphmodel.Patch{
			{
				PatchID: "p-a",
				GraphID: "g1",
				Ops: []graphmodel.Op{
					{Type: graphmodel.OpUpdateNodePrototype, PrototypeID: "proto-1", Updates: map[string]interface{}{"color": "#000000"}},
				},
			},
			{
				PatchID: "p-b",
				GraphID: "g1",
				Ops: []graphmodel.Op{
					{Type: graphmodel.OpUpdateNodePrototype, PrototypeID: "proto-1", Updates: map[string]interface{}{"color": "#ffffff"}},
				},
			},
		},
	})

	c.tick()
	leased := pending.Lease()
	require.Len(t, leased, 1)
	ops, ok := leased[0].Params[0]["ops"].([]graphmodel.Op)
	require.True(t, ok)
	require.Len(t, ops, 1, "conflicting updates to the same prototype collapse to one op")
	assert.Equal(t, "#ffffff", ops[0].Updates["color"])
}

func TestCommitterAgenticLoopTriggersContinueOnThreeOrMoreNodes(t *testing.T) {
	cont := &fakeContinuer{}
	c, qm, _ := newTestCommitter(&fakeChat{}, cont)

	submitReview(t, qm, graphmodel.Review{
		GraphID:      "g1",
		ReviewStatus: graphmodel.ReviewApproved,
		Patch: &graphmodel.Patch{
			PatchID: "p-agentic",
			GraphID: "g1",
			Meta:    map[string]interface{}{"apiKey": "sk-test"},
			Ops: []graphmodel.Op{
				{Type: graphmodel.OpAddNodeInstance, GraphID: "g1", InstanceID: "i1"},
				{Type: graphmodel.OpAddNodeInstance, GraphID: "g1", InstanceID: "i2"},
				{Type: graphmodel.OpAddNodeInstance, GraphID: "g1", InstanceID: "i3"},
			},
		},
	})

	c.tick()
	require.Len(t, cont.calls, 1)
	assert.Equal(t, 1, cont.calls[0].Iteration)
}
