package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Entry holds the schema definition for the Entry entity.
// Each entry is one full stream event of a run, stored as its JSON payload.
type Entry struct {
	ent.Schema
}

// Annotations of the Entry.
func (Entry) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "run_events"},
	}
}

// Fields of the Entry.
func (Entry) Fields() []ent.Field {
	return []ent.Field{
		field.String("run_id").
			Immutable().
			NotEmpty(),

		field.Int("seq").
			NonNegative().
			Immutable(),

		field.String("kind").
			NotEmpty(),

		field.Text("payload"),

		field.Time("created_at").
			Default(time.Now).
			Immutable().
			Annotations(entsql.Default("CURRENT_TIMESTAMP")),
	}
}

// Indexes of the Entry.
func (Entry) Indexes() []ent.Index {
	return []ent.Index{
		// Sequence numbers are unique per run
		index.Fields("run_id", "seq").
			Unique(),
	}
}

// Edges of the Entry.
func (Entry) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("run", Run.Type).
			Ref("events").
			Field("run_id").
			Unique().
			Required().
			Immutable(),
	}
}
