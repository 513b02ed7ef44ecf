package qcode

import (
	"context"
	"fmt"

	"github.com/sqlcollection/sqlcollection/core/internal/sdata"
)

type fakeSchema struct {
	tables map[string][]sdata.DBColumn
	rels   map[string][]sdata.DBRelation
}

func (s fakeSchema) Table(ctx context.Context, name, alias string, root bool) (sdata.DBTable, error) {
	cols, ok := s.tables[name]
	if !ok {
		return sdata.DBTable{}, fmt.Errorf("%w: %s", sdata.ErrUnknownTable, name)
	}
	if alias == "" {
		alias = name
	}
	return sdata.DBTable{Name: name, Alias: alias, Columns: cols, IsRoot: root}, nil
}

func (s fakeSchema) Relations(ctx context.Context, table string) ([]sdata.DBRelation, error) {
	return s.rels[table], nil
}

func pk(name string) sdata.DBColumn {
	return sdata.DBColumn{Name: name, Type: sdata.TypeNumber, Required: true,
		Key: sdata.KeyPrimary, Extra: "auto_increment"}
}

func col(name string, typ sdata.ColumnType, required bool) sdata.DBColumn {
	return sdata.DBColumn{Name: name, Type: typ, Required: required}
}

func fk(name string) sdata.DBColumn {
	return sdata.DBColumn{Name: name, Type: sdata.TypeNumber, Key: sdata.KeyMulti}
}

// testSchema models a small project tracker plus a door/category
// many-to-many pair.
func testSchema() fakeSchema {
	return fakeSchema{
		tables: map[string][]sdata.DBColumn{
			"client": {pk("id"), col("name", sdata.TypeText, true)},
			"user":   {pk("id"), col("name", sdata.TypeText, true), col("email", sdata.TypeText, false)},
			"project": {
				pk("id"),
				col("name", sdata.TypeText, true),
				fk("client_id"),
				fk("project_manager_user_id"),
			},
			"task": {
				pk("id"),
				col("name", sdata.TypeText, true),
				col("hours", sdata.TypeNumber, false),
				col("created_at", sdata.TypeTimestamp, false),
				fk("project_id"),
				fk("affected_user_id"),
				fk("owner_user_id"),
			},
			"door":     {pk("id"), col("name", sdata.TypeText, true)},
			"category": {pk("id"), col("name", sdata.TypeText, true)},
			"door_category": {
				pk("id"),
				fk("door_id"),
				fk("category_id"),
			},
		},
		rels: map[string][]sdata.DBRelation{
			"project": {
				{Table: "project", Column: "client_id", ForeignTable: "client", ForeignColumn: "id"},
				{Table: "project", Column: "project_manager_user_id", ForeignTable: "user", ForeignColumn: "id"},
			},
			"task": {
				{Table: "task", Column: "project_id", ForeignTable: "project", ForeignColumn: "id"},
				{Table: "task", Column: "affected_user_id", ForeignTable: "user", ForeignColumn: "id"},
				{Table: "task", Column: "owner_user_id", ForeignTable: "user", ForeignColumn: "id"},
			},
			"door_category": {
				{Table: "door_category", Column: "door_id", ForeignTable: "door", ForeignColumn: "id"},
				{Table: "door_category", Column: "category_id", ForeignTable: "category", ForeignColumn: "id"},
			},
		},
	}
}

func newTestCompiler() *Compiler {
	return NewCompiler(testSchema(), Config{DefaultLimit: 100, MaxDepth: 3})
}

var projectLookup = Lookup{From: "project", LocalField: "project_id", ForeignField: "id", As: "project"}

var categoryLookups = []Lookup{
	{From: "door_category", LocalField: "id", ForeignField: "door_id", As: "categories", Type: CardMultiple},
	{From: "category", LocalField: "category_id", ForeignField: "id", As: "categories.category", To: "categories"},
}

func aliases(fields []Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Alias)
	}
	return out
}

func displayed(fields []Field) []string {
	var out []string
	for _, f := range fields {
		if f.Display {
			out = append(out, f.Alias)
		}
	}
	return out
}
