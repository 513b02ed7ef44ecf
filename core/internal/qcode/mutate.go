package qcode

import (
	"context"
	"fmt"
)

// CompileInsert maps a document onto the columns of table. A to-one lookup
// lets the document carry the related key nested under the lookup's as,
// which is written back to the local foreign key column.
func (co *Compiler) CompileInsert(ctx context.Context,
	table string,
	lookups []Lookup,
	doc any,
) (*Insert, error) {
	root, err := co.s.Table(ctx, table, table, true)
	if err != nil {
		return nil, err
	}

	remap := make(map[string]string)
	for _, l := range lookups {
		if err := l.validate(); err != nil {
			return nil, err
		}
		if l.To != "" && l.To != root.Name {
			continue
		}
		if l.Type == CardMultiple {
			continue
		}
		remap[joinPath(l.As, l.ForeignField)] = l.LocalField
	}

	flat, err := flatten(doc)
	if err != nil {
		return nil, err
	}

	ins := &Insert{Table: root}
	set := make(map[string]struct{}, len(flat))

	for _, e := range flat {
		name := e.Key
		if lf, ok := remap[name]; ok {
			name = lf
		}
		if _, ok := set[name]; ok {
			continue
		}

		col, err := root.GetColumn(name)
		if err != nil {
			continue
		}

		val, err := castValue(col, e.Val)
		if err != nil {
			return nil, err
		}

		ins.Columns = append(ins.Columns, col)
		ins.Values = append(ins.Values, val)
		set[name] = struct{}{}
	}

	for _, c := range root.Columns {
		if !c.Required || c.IsPrimary() || c.IsGenerated() {
			continue
		}
		if _, ok := set[c.Name]; !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingField, root.Name, c.Name)
		}
	}
	return ins, nil
}

// CompileUpdate builds an update from a $set document. Only fields of the
// root table can be set, others are dropped. An empty filter is refused.
func (co *Compiler) CompileUpdate(ctx context.Context,
	table string,
	lookups []Lookup,
	filter, update any,
) (*Update, error) {
	root, joins, fields, err := co.resolve(ctx, table, lookups)
	if err != nil {
		return nil, err
	}

	where, err := co.compileFilter(filter, fields)
	if err != nil {
		return nil, err
	}
	if where.IsEmpty() {
		return nil, fmt.Errorf("%w: update without a filter", ErrBadRequest)
	}

	es, err := entries(update)
	if err != nil {
		return nil, err
	}

	upd := &Update{Table: root, Fields: fields, Joins: joins, Where: where}
	seen := make(map[string]struct{})

	for _, e := range es {
		if e.Key != "$set" {
			return nil, fmt.Errorf("%w: unsupported update operator %q", ErrWrongParameter, e.Key)
		}

		flat, err := flatten(e.Val)
		if err != nil {
			return nil, err
		}

		for _, kv := range flat {
			f, ok := findField(fields, kv.Key)
			if !ok {
				col, err := root.GetColumn(kv.Key)
				if err != nil {
					continue
				}
				f = Field{Table: root.Alias, Col: col, Alias: kv.Key}
			}
			if f.Table != root.Alias {
				continue
			}
			if _, ok := seen[f.Col.Name]; ok {
				continue
			}

			val, err := castValue(f.Col, kv.Val)
			if err != nil {
				return nil, err
			}
			upd.Set = append(upd.Set, Assign{Col: f.Col, Val: val})
			seen[f.Col.Name] = struct{}{}
		}
	}

	if len(upd.Set) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrBadRequest)
	}
	return upd, nil
}

// CompileDelete builds a delete. An empty filter is refused.
func (co *Compiler) CompileDelete(ctx context.Context,
	table string,
	lookups []Lookup,
	filter any,
) (*Delete, error) {
	root, joins, fields, err := co.resolve(ctx, table, lookups)
	if err != nil {
		return nil, err
	}

	where, err := co.compileFilter(filter, fields)
	if err != nil {
		return nil, err
	}
	if where.IsEmpty() {
		return nil, fmt.Errorf("%w: delete without a filter", ErrBadRequest)
	}

	return &Delete{Table: root, Fields: fields, Joins: joins, Where: where}, nil
}
