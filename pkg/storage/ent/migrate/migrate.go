// Package migrate turns the ent schema definitions into SQL tables and
// creates them with ent's Atlas migration engine.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	entschema "github.com/papercomputeco/reel/pkg/storage/ent/schema"
)

var (
	// Tables holds the tables of every schema definition, runs first.
	Tables = mustBuild(entschema.Run{}, entschema.Entry{})

	// RunsTable holds the schema information for the "runs" table.
	RunsTable = Tables[0]

	// EntriesTable holds the schema information for the "run_events" table.
	EntriesTable = Tables[1]
)

// Create runs ent's auto-migration for the reel tables. It only appends:
// new tables, columns and indexes are added, nothing is dropped.
func Create(ctx context.Context, drv dialect.Driver, opts ...schema.MigrateOption) error {
	m, err := schema.NewMigrate(drv, opts...)
	if err != nil {
		return fmt.Errorf("ent/migrate: %w", err)
	}
	return m.Create(ctx, Tables...)
}

// Build returns one table per definition. Inverse edges that carry a field
// become foreign keys to the referenced definition's table.
func Build(defs ...ent.Interface) ([]*schema.Table, error) {
	tables := make([]*schema.Table, 0, len(defs))
	byType := make(map[string]*schema.Table, len(defs))

	for _, def := range defs {
		t, err := table(def)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
		byType[reflect.TypeOf(def).Name()] = t
	}

	for i, def := range defs {
		if err := foreignKeys(tables[i], def, byType); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

func mustBuild(defs ...ent.Interface) []*schema.Table {
	tables, err := Build(defs...)
	if err != nil {
		panic(err)
	}
	return tables
}

func table(def ent.Interface) (*schema.Table, error) {
	name := tableName(def)
	if name == "" {
		return nil, fmt.Errorf("ent/migrate: %s has no table annotation", reflect.TypeOf(def).Name())
	}

	t := schema.NewTable(name)
	hasID := false
	for _, f := range def.Fields() {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("ent/migrate: %s.%s: %w", name, d.Name, d.Err)
		}

		c := column(d)
		if c.Name == "id" {
			hasID = true
			t.AddPrimary(c)
			continue
		}
		t.AddColumn(c)
	}

	// Definitions without an id field get ent's auto-increment key.
	if !hasID {
		t.AddPrimary(&schema.Column{Name: "id", Type: field.TypeInt, Increment: true})
	}

	for _, idx := range def.Indexes() {
		d := idx.Descriptor()
		for _, f := range d.Fields {
			if !t.HasColumn(f) {
				return nil, fmt.Errorf("ent/migrate: index on unknown column %s.%s", name, f)
			}
		}

		idxName := d.StorageKey
		if idxName == "" {
			idxName = strings.Join(append([]string{name}, d.Fields...), "_")
		}
		t.AddIndex(idxName, d.Unique, d.Fields)
	}
	return t, nil
}

func column(d *field.Descriptor) *schema.Column {
	c := &schema.Column{
		Name:       d.Name,
		Type:       d.Info.Type,
		Unique:     d.Unique,
		Nullable:   d.Optional,
		Size:       int64(d.Size),
		SchemaType: d.SchemaType,
	}
	if d.StorageKey != "" {
		c.Name = d.StorageKey
	}

	if s, ok := d.Default.(string); ok {
		c.Default = s
	}
	for _, a := range d.Annotations {
		if ant, ok := a.(*entsql.Annotation); ok && ant.Default != "" {
			c.Default = ant.Default
		}
	}
	return c
}

func foreignKeys(t *schema.Table, def ent.Interface, byType map[string]*schema.Table) error {
	for _, e := range def.Edges() {
		d := e.Descriptor()
		if !d.Inverse || d.Field == "" {
			continue
		}

		ref, ok := byType[d.Type]
		if !ok {
			return fmt.Errorf("ent/migrate: edge %s.%s references unknown type %s", t.Name, d.Name, d.Type)
		}
		col, ok := t.Column(d.Field)
		if !ok {
			return fmt.Errorf("ent/migrate: edge %s.%s uses unknown column %s", t.Name, d.Name, d.Field)
		}
		if len(ref.PrimaryKey) != 1 {
			return errors.New("ent/migrate: foreign keys need a single-column primary key")
		}

		t.AddForeignKey(&schema.ForeignKey{
			Symbol:     t.Name + "_" + ref.Name + "_" + d.RefName,
			Columns:    []*schema.Column{col},
			RefTable:   ref,
			RefColumns: []*schema.Column{ref.PrimaryKey[0]},
			OnDelete:   schema.NoAction,
		})
	}
	return nil
}

func tableName(def ent.Interface) string {
	for _, a := range def.Annotations() {
		switch ant := a.(type) {
		case entsql.Annotation:
			return ant.Table
		case *entsql.Annotation:
			return ant.Table
		}
	}
	return ""
}
