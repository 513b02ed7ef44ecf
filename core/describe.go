package core

import (
	"context"
	"fmt"

	"github.com/sqlcollection/sqlcollection/core/internal/sdata"
)

// Description lists the columns of a table.
type Description struct {
	Table  string             `json:"table" yaml:"table" bson:"table"`
	Fields []FieldDescription `json:"fields" yaml:"fields" bson:"fields"`
}

type FieldDescription struct {
	Name     string  `json:"name" yaml:"name" bson:"name"`
	Type     string  `json:"type" yaml:"type" bson:"type"`
	SQLType  string  `json:"sql_type" yaml:"sql_type" bson:"sql_type"`
	Required bool    `json:"required" yaml:"required" bson:"required"`
	Key      string  `json:"key" yaml:"key" bson:"key"`
	Default  *string `json:"default,omitempty" yaml:"default,omitempty" bson:"default,omitempty"`
	Extra    string  `json:"extra,omitempty" yaml:"extra,omitempty" bson:"extra,omitempty"`

	// NestedDescription describes the table a foreign key points to
	NestedDescription *Description `json:"nested_description,omitempty" yaml:"nested_description,omitempty" bson:"nested_description,omitempty"`
}

// Describe returns the description of the collection. With AutoLookup set
// foreign keys carry the description of the table they reference.
func (c *Collection) Describe(ctx context.Context, opts ...*DescribeOptions) (*Description, error) {
	return c.db.Describe(ctx, c.name, opts...)
}

// Describe returns the description of a table.
func (g *DB) Describe(ctx context.Context, table string, opts ...*DescribeOptions) (*Description, error) {
	gj := g.engine()
	if _, ok := gj.colls[table]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	var depth int
	for _, o := range opts {
		if o != nil {
			depth = o.AutoLookup
		}
	}
	if depth < 0 || depth > gj.conf.MaxAutoLookupDepth {
		return nil, fmt.Errorf("%w: auto lookup depth must be between 0 and %d",
			ErrWrongParameter, gj.conf.MaxAutoLookupDepth)
	}
	return gj.describe(ctx, table, depth)
}

// DescribeAll returns the description of every collection.
func (g *DB) DescribeAll(ctx context.Context) ([]*Description, error) {
	gj := g.engine()
	out := make([]*Description, 0, len(gj.tables))
	for _, t := range gj.tables {
		d, err := gj.describe(ctx, t, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (gj *engine) describe(ctx context.Context, table string, depth int) (*Description, error) {
	cols, err := gj.catalog.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	var rels map[string]sdata.DBRelation
	if depth > 0 {
		list, err := gj.catalog.Relations(ctx, table)
		if err != nil {
			return nil, err
		}
		rels = make(map[string]sdata.DBRelation, len(list))
		for _, r := range list {
			rels[r.Column] = r
		}
	}

	d := &Description{Table: table, Fields: make([]FieldDescription, 0, len(cols))}
	for _, c := range cols {
		f := FieldDescription{
			Name:     c.Name,
			Type:     string(c.Type),
			SQLType:  c.SQLType,
			Required: c.Required,
			Key:      string(c.Key),
			Default:  c.Default,
			Extra:    c.Extra,
		}
		if r, ok := rels[c.Name]; ok {
			if f.NestedDescription, err = gj.describe(ctx, r.ForeignTable, depth-1); err != nil {
				return nil, err
			}
		}
		d.Fields = append(d.Fields, f)
	}
	return d, nil
}
