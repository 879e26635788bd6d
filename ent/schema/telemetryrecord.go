package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// TelemetryRecord holds the schema definition for the TelemetryRecord
// entity: archival persistence of Telemetry Ring entries (C10), per
// SPEC_FULL.md §4.11.
type TelemetryRecord struct {
	ent.Schema
}

// Fields of the TelemetryRecord.
func (TelemetryRecord) Fields() []ent.Field {
	return []ent.Field{
		field.Uint64("seq").
			Immutable().
			Comment("Telemetry Ring sequence number at time of record"),
		field.Time("ts").
			Immutable(),
		field.String("telemetry_type").
			Immutable(),
		field.String("cid").
			Optional().
			Immutable(),
		field.JSON("fields", map[string]interface{}{}).
			Optional().
			Immutable(),
		field.Time("archived_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the TelemetryRecord.
func (TelemetryRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("seq").Unique(),
		index.Fields("cid"),
		index.Fields("telemetry_type", "ts"),
	}
}
