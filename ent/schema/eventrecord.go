package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// EventRecord holds the schema definition for the EventRecord entity: the
// archival (best-effort) persistence of Event Log entries (C1), per
// SPEC_FULL.md §4.11. The in-memory ring is the source of truth; this
// table only exists so an operator can query history past the ring's
// bounded retention.
type EventRecord struct {
	ent.Schema
}

// Fields of the EventRecord.
func (EventRecord) Fields() []ent.Field {
	return []ent.Field{
		field.Uint64("seq").
			Immutable().
			Comment("Event Log sequence number at time of append"),
		field.Time("ts").
			Immutable(),
		field.String("event_type").
			Immutable(),
		field.JSON("payload", map[string]interface{}{}).
			Optional().
			Immutable(),
		field.Time("archived_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the EventRecord.
func (EventRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("seq").Unique(),
		index.Fields("event_type", "ts"),
	}
}
