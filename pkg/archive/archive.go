// Package archive implements the Archival Sink (C11): a best-effort async
// writer that drains Event Log and Telemetry Ring entries into Postgres
// through the generated ent client (SPEC_FULL.md §4.11). Disabled unless
// ARCHIVE_DSN is set. Never a source of truth, never on the hot path, and
// never allowed to block a tick — failures are logged and dropped.
//
// Grounded on the teacher's pkg/queue/worker.go ticker/channel idiom
// (same shape as pkg/committer and pkg/drainer), generalized from a single
// queue drain to a bounded channel fed by two independent ring subscribers.
package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/theredstring/redstring-sub011/ent"
	"github.com/theredstring/redstring-sub011/pkg/events"
)

// Persister is the write side the Sink drains into. entPersister is the
// production implementation backed by the generated ent client; tests
// inject a fake to assert drop/flush behavior without a real Postgres.
type Persister interface {
	SaveEvent(ctx context.Context, e events.Entry) error
	SaveTelemetry(ctx context.Context, e events.TelemetryEntry) error
}

// entPersister adapts *ent.Client to Persister.
type entPersister struct {
	client *ent.Client
}

// NewEntPersister wraps an already-opened ent client as a Persister.
func NewEntPersister(client *ent.Client) Persister {
	return entPersister{client: client}
}

func (p entPersister) SaveEvent(ctx context.Context, e events.Entry) error {
	_, err := p.client.EventRecord.Create().
		SetSeq(e.Seq).
		SetTs(e.TS).
		SetEventType(string(e.Type)).
		SetPayload(e.Payload).
		Save(ctx)
	return err
}

func (p entPersister) SaveTelemetry(ctx context.Context, e events.TelemetryEntry) error {
	_, err := p.client.TelemetryRecord.Create().
		SetSeq(e.Seq).
		SetTs(e.TS).
		SetTelemetryType(string(e.Type)).
		SetCid(e.Cid).
		SetFields(e.Fields).
		Save(ctx)
	return err
}

// Sink drains Event Log and Telemetry Ring entries into Postgres in
// batches, on a fixed flush interval, through a bounded channel.
type Sink struct {
	persister Persister

	events     chan events.Entry
	telemetry  chan events.TelemetryEntry
	flushEvery time.Duration

	unsubEvents    func()
	unsubTelemetry func()

	stopCh chan struct{}
	doneWg sync.WaitGroup
}

// New creates a Sink bound to a Persister. bufferSize bounds each of the
// two input channels; a full channel drops the entry rather than blocking
// the ring's append path (spec.md Non-goals: the archive must never become
// a bottleneck for the hot path).
func New(persister Persister, bufferSize int, flushEvery time.Duration) *Sink {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if flushEvery <= 0 {
		flushEvery = 2 * time.Second
	}
	return &Sink{
		persister:  persister,
		events:     make(chan events.Entry, bufferSize),
		telemetry:  make(chan events.TelemetryEntry, bufferSize),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
	}
}

// Start subscribes to log and telemetry, and launches the draining
// goroutine. Idempotent to call once; a second call is a no-op guard left
// to the caller (mirrors committer.Start/drainer.Start, which carry the
// same contract undocumented because both are internal-only callers).
func (s *Sink) Start(log *events.Log, telemetry *events.Telemetry) {
	s.unsubEvents = log.Subscribe(func(e events.Entry) {
		select {
		case s.events <- e:
		default:
			slog.Warn("archive: event buffer full, dropping entry", "seq", e.Seq)
		}
	})
	s.unsubTelemetry = telemetry.Subscribe(func(e events.TelemetryEntry) {
		select {
		case s.telemetry <- e:
		default:
			slog.Warn("archive: telemetry buffer full, dropping entry", "seq", e.Seq)
		}
	})

	s.doneWg.Add(1)
	go s.loop()
}

// Stop unsubscribes from both rings and waits for the drain loop to exit
// after flushing whatever is already buffered.
func (s *Sink) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	if s.unsubTelemetry != nil {
		s.unsubTelemetry()
	}
	close(s.stopCh)
	s.doneWg.Wait()
}

func (s *Sink) loop() {
	defer s.doneWg.Done()

	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	var eventBatch []events.Entry
	var telemetryBatch []events.TelemetryEntry

	flush := func() {
		if len(eventBatch) == 0 && len(telemetryBatch) == 0 {
			return
		}
		s.writeBatch(eventBatch, telemetryBatch)
		eventBatch = nil
		telemetryBatch = nil
	}

	for {
		select {
		case <-s.stopCh:
			s.drainRemaining(&eventBatch, &telemetryBatch)
			flush()
			return
		case e := <-s.events:
			eventBatch = append(eventBatch, e)
		case e := <-s.telemetry:
			telemetryBatch = append(telemetryBatch, e)
		case <-ticker.C:
			flush()
		}
	}
}

// drainRemaining does one non-blocking sweep of both channels so a Stop
// doesn't silently lose whatever was already buffered at shutdown.
func (s *Sink) drainRemaining(eventBatch *[]events.Entry, telemetryBatch *[]events.TelemetryEntry) {
	for {
		select {
		case e := <-s.events:
			*eventBatch = append(*eventBatch, e)
		case e := <-s.telemetry:
			*telemetryBatch = append(*telemetryBatch, e)
		default:
			return
		}
	}
}

// writeBatch persists a batch, logging (not returning) any failure — the
// archive is explicitly best-effort per spec.md Non-goals.
func (s *Sink) writeBatch(eventBatch []events.Entry, telemetryBatch []events.TelemetryEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range eventBatch {
		if err := s.persister.SaveEvent(ctx, e); err != nil {
			slog.Warn("archive: failed to persist event record", "seq", e.Seq, "error", err)
		}
	}

	for _, e := range telemetryBatch {
		if err := s.persister.SaveTelemetry(ctx, e); err != nil {
			slog.Warn("archive: failed to persist telemetry record", "seq", e.Seq, "error", err)
		}
	}
}
