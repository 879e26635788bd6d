package archive

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theredstring/redstring-sub011/pkg/events"
)

type fakePersister struct {
	mu         sync.Mutex
	events     []events.Entry
	telemetry  []events.TelemetryEntry
	failEvents bool
}

func (f *fakePersister) SaveEvent(_ context.Context, e events.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEvents {
		return assertError{}
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakePersister) SaveTelemetry(_ context.Context, e events.TelemetryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.telemetry = append(f.telemetry, e)
	return nil
}

func (f *fakePersister) count() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events), len(f.telemetry)
}

type assertError struct{}

func (assertError) Error() string { return "forced failure" }

func TestSinkFlushesEventsAndTelemetryOnInterval(t *testing.T) {
	log := events.NewLog(100)
	telemetry := events.NewTelemetry(100)
	fake := &fakePersister{}
	sink := New(fake, 10, 20*time.Millisecond)
	sink.Start(log, telemetry)
	defer sink.Stop()

	log.Append(events.PatchApplied, map[string]interface{}{"graphId": "g1"})
	telemetry.Record(events.TelemetryToolCall, "cid-1", map[string]interface{}{"status": "completed"})

	require.Eventually(t, func() bool {
		ev, tel := fake.count()
		return ev == 1 && tel == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSinkFlushesRemainingOnStop(t *testing.T) {
	log := events.NewLog(100)
	telemetry := events.NewTelemetry(100)
	fake := &fakePersister{}
	sink := New(fake, 10, time.Hour)
	sink.Start(log, telemetry)

	log.Append(events.PatchApplied, map[string]interface{}{"graphId": "g1"})
	sink.Stop()

	ev, _ := fake.count()
	assert.Equal(t, 1, ev)
}

func TestSinkDropsWhenBufferFull(t *testing.T) {
	log := events.NewLog(100)
	telemetry := events.NewTelemetry(100)
	fake := &fakePersister{}
	sink := New(fake, 1, time.Hour)

	unsub := log.Subscribe(func(e events.Entry) {
		select {
		case sink.events <- e:
		default:
		}
	})
	defer unsub()

	for i := 0; i < 5; i++ {
		log.Append(events.PatchApplied, map[string]interface{}{"i": i})
	}
	assert.LessOrEqual(t, len(sink.events), 1)
}

func TestSinkContinuesAfterPersistFailure(t *testing.T) {
	log := events.NewLog(100)
	telemetry := events.NewTelemetry(100)
	fake := &fakePersister{failEvents: true}
	sink := New(fake, 10, 20*time.Millisecond)
	sink.Start(log, telemetry)
	defer sink.Stop()

	log.Append(events.PatchApplied, map[string]interface{}{"graphId": "g1"})
	telemetry.Record(events.TelemetryToolCall, "cid-1", nil)

	require.Eventually(t, func() bool {
		_, tel := fake.count()
		return tel == 1
	}, time.Second, 10*time.Millisecond)
}
