package psql

import (
	"fmt"
	"strings"

	"github.com/sqlcollection/sqlcollection/core/internal/qcode"
)

// Grouping tells how the rows of a select fold back into documents.
type Grouping struct {
	// Key is the alias of the root primary key. It is empty when every row
	// is a document of its own.
	Key    string
	Arrays []Array
}

// Array is a one-to-many lookup whose rows collect under Path.
type Array struct {
	Path string

	// Parent is the index of the enclosing array, or -1 for the root.
	Parent int

	// Key is the alias of the element primary key. Elements without one
	// are compared by value.
	Key string
}

// Column is a selected field. Hidden columns are only read to group rows.
type Column struct {
	qcode.Field
	Hidden bool
}

// GroupingFor works out the grouping of sel. Selects with one-to-many
// lookups need a root primary key to tell documents apart.
func GroupingFor(sel *qcode.Select) (Grouping, error) {
	var g Grouping
	if !sel.HasMultiple() {
		return g, nil
	}

	pk, ok := sel.Table.PrimaryKey()
	if !ok {
		return g, fmt.Errorf("%w: table %s needs a primary key for multiple lookups",
			qcode.ErrBadRequest, sel.Table.Name)
	}
	f, ok := fieldFor(sel.Fields, sel.Table.Alias, pk.Name)
	if !ok {
		return g, fmt.Errorf("%w: primary key of %s is not selectable", qcode.ErrBadRequest, sel.Table.Name)
	}
	g.Key = f.Alias

	for _, j := range sel.Joins {
		if j.Type != qcode.CardMultiple || !displays(sel.Fields, j.As) {
			continue
		}
		a := Array{Path: j.As, Parent: -1}

		for i, p := range g.Arrays {
			if strings.HasPrefix(j.As, p.Path+".") &&
				(a.Parent == -1 || len(p.Path) > len(g.Arrays[a.Parent].Path)) {
				a.Parent = i
			}
		}
		if pk, ok := j.To.PrimaryKey(); ok {
			if f, ok := fieldFor(sel.Fields, j.To.Alias, pk.Name); ok {
				a.Key = f.Alias
			}
		}
		g.Arrays = append(g.Arrays, a)
	}
	return g, nil
}

// Columns lists the displayed fields of sel along with the hidden keys
// its grouping reads.
func Columns(sel *qcode.Select, g Grouping) []Column {
	keys := map[string]struct{}{}
	if g.Key != "" {
		keys[g.Key] = struct{}{}
	}
	for _, a := range g.Arrays {
		if a.Key != "" {
			keys[a.Key] = struct{}{}
		}
	}

	var cols []Column
	for _, f := range sel.Fields {
		_, key := keys[f.Alias]
		if !f.Display && !key {
			continue
		}
		cols = append(cols, Column{Field: f, Hidden: !f.Display})
	}
	return cols
}

func fieldFor(fields []qcode.Field, table, col string) (qcode.Field, bool) {
	for _, f := range fields {
		if f.Table == table && f.Col.Name == col {
			return f, true
		}
	}
	return qcode.Field{}, false
}

func displays(fields []qcode.Field, path string) bool {
	for _, f := range fields {
		if f.Display && (f.Alias == path || strings.HasPrefix(f.Alias, path+".")) {
			return true
		}
	}
	return false
}
