package qcode

import (
	"context"
	"fmt"

	"github.com/sqlcollection/sqlcollection/core/internal/sdata"
)

// SortKey is one sort criterion. Dir is 1 for ascending, -1 for descending.
type SortKey struct {
	Key string
	Dir int
}

// CompileSelect builds a select over table joined through lookups.
func (co *Compiler) CompileSelect(ctx context.Context,
	table string,
	lookups []Lookup,
	filter, projection any,
) (*Select, error) {
	root, joins, fields, err := co.resolve(ctx, table, lookups)
	if err != nil {
		return nil, err
	}

	if err := applyProjection(fields, projection); err != nil {
		return nil, err
	}

	where, err := co.compileFilter(filter, fields)
	if err != nil {
		return nil, err
	}

	return &Select{
		Table:  root,
		Fields: fields,
		Joins:  joins,
		Where:  where,
		Paging: Paging{Limit: co.c.DefaultLimit},
	}, nil
}

// resolve loads the root table, materializes the joins and builds the
// field list they expose.
func (co *Compiler) resolve(ctx context.Context,
	table string,
	lookups []Lookup,
) (sdata.DBTable, []Join, []Field, error) {
	root, err := co.s.Table(ctx, table, table, true)
	if err != nil {
		return root, nil, nil, err
	}

	tables := []sdata.DBTable{root}
	byAs := map[string]sdata.DBTable{root.Alias: root}
	joins := make([]Join, 0, len(lookups))

	for _, l := range lookups {
		if err := l.validate(); err != nil {
			return root, nil, nil, err
		}
		if _, ok := byAs[l.As]; ok {
			return root, nil, nil, fmt.Errorf("%w: %q is used twice", sdata.ErrAmbiguousLookup, l.As)
		}

		from, err := resolveTo(l.To, root, byAs, joins)
		if err != nil {
			return root, nil, nil, err
		}

		to, err := co.s.Table(ctx, l.From, l.As, false)
		if err != nil {
			return root, nil, nil, err
		}

		fromCol, err := from.GetColumn(l.LocalField)
		if err != nil {
			return root, nil, nil, err
		}

		toCol, err := to.GetColumn(l.ForeignField)
		if err != nil {
			return root, nil, nil, err
		}

		typ := l.Type
		if typ == "" {
			typ = CardSimple
		}

		joins = append(joins, Join{
			From:    from,
			To:      to,
			FromCol: fromCol,
			ToCol:   toCol,
			As:      l.As,
			Type:    typ,
		})
		byAs[l.As] = to
		tables = append(tables, to)
	}

	return root, joins, buildFields(tables, joins), nil
}

// resolveTo finds the table a lookup starts from: the root, an earlier
// lookup by its as, or an earlier lookup by table name when unambiguous.
func resolveTo(to string,
	root sdata.DBTable,
	byAs map[string]sdata.DBTable,
	joins []Join,
) (sdata.DBTable, error) {
	if to == "" || to == root.Name {
		return root, nil
	}
	if t, ok := byAs[to]; ok {
		return t, nil
	}

	var match []sdata.DBTable
	for _, j := range joins {
		if j.To.Name == to {
			match = append(match, j.To)
		}
	}

	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		return sdata.DBTable{}, fmt.Errorf("%w: lookup origin %q", sdata.ErrUnknownTable, to)
	default:
		return sdata.DBTable{}, fmt.Errorf("%w: lookup origin %q matches %d lookups",
			sdata.ErrAmbiguousLookup, to, len(match))
	}
}

type colKey struct {
	table string
	col   string
}

// buildFields lists the columns of every table in join order. For a simple
// join the local foreign key takes the alias of the joined key and the joined
// key itself is left out, so the relation shows up once as a nested document.
func buildFields(tables []sdata.DBTable, joins []Join) []Field {
	renamed := make(map[colKey]string)
	represented := make(map[colKey]struct{})

	for _, j := range joins {
		if j.Type != CardSimple {
			continue
		}
		from := colKey{j.From.Alias, j.FromCol.Name}
		if _, ok := represented[from]; ok {
			continue
		}
		if _, ok := renamed[from]; ok {
			continue
		}
		renamed[from] = joinPath(j.As, j.ToCol.Name)
		represented[colKey{j.To.Alias, j.ToCol.Name}] = struct{}{}
	}

	var fields []Field
	for _, t := range tables {
		for _, c := range t.Columns {
			k := colKey{t.Alias, c.Name}
			if _, ok := represented[k]; ok {
				continue
			}

			alias := c.Name
			if !t.IsRoot {
				alias = joinPath(t.Alias, c.Name)
			}
			if r, ok := renamed[k]; ok {
				alias = r
			}

			fields = append(fields, Field{
				Table:   t.Alias,
				Col:     c,
				Alias:   alias,
				Display: true,
			})
		}
	}
	return fields
}

// applyProjection hides fields. Every value must be 1 (only listed fields
// are shown) or -1 (listed fields are hidden). A key also covers every
// field nested under it.
func applyProjection(fields []Field, projection any) error {
	es, err := entries(projection)
	if err != nil {
		return err
	}
	if len(es) == 0 {
		return nil
	}

	mode := 0
	keys := make([]string, 0, len(es))

	for _, e := range es {
		n, ok := projectionMode(e.Val)
		if !ok {
			return fmt.Errorf("%w: projection %q must be 1 or -1", ErrWrongParameter, e.Key)
		}
		if mode != 0 && n != mode {
			return fmt.Errorf("%w: projection cannot mix inclusion and exclusion", ErrWrongParameter)
		}
		mode = n
		keys = append(keys, e.Key)
	}

	for i := range fields {
		listed := false
		for _, k := range keys {
			if hasPathPrefix(fields[i].Alias, k) {
				listed = true
				break
			}
		}
		if mode == 1 {
			fields[i].Display = listed
		} else {
			fields[i].Display = !listed
		}
	}
	return nil
}

func projectionMode(v any) (int, bool) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, true
		}
		return -1, true
	}
	n, ok := toInt(v)
	if !ok || (n != 1 && n != -1) {
		return 0, false
	}
	return n, true
}

// SetLimit bounds the number of root documents. Zero restores the default
// page size.
func (co *Compiler) SetLimit(sel *Select, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrWrongParameter)
	}
	if n == 0 {
		n = co.c.DefaultLimit
	}
	sel.Paging.Limit = n
	return nil
}

func (co *Compiler) SetSkip(sel *Select, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: skip must not be negative", ErrWrongParameter)
	}
	sel.Paging.Offset = n
	return nil
}

// SetSort replaces the sort order. Fields inside one-to-many lookups
// cannot be sorted on since they do not order root documents.
func (co *Compiler) SetSort(sel *Select, keys []SortKey) error {
	ob := make([]OrderBy, 0, len(keys))

	for _, k := range keys {
		f, ok := sel.Field(k.Key)
		if !ok {
			return fmt.Errorf("%w: cannot sort by unknown field %q", ErrWrongParameter, k.Key)
		}
		if InMultiple(sel.Joins, f.Table) {
			return fmt.Errorf("%w: cannot sort by %q inside a multiple lookup", ErrWrongParameter, k.Key)
		}

		var o Order
		switch k.Dir {
		case 1:
			o = OrderAsc
		case -1:
			o = OrderDesc
		default:
			return fmt.Errorf("%w: sort direction of %q must be 1 or -1", ErrWrongParameter, k.Key)
		}
		ob = append(ob, OrderBy{Field: f, Order: o})
	}

	sel.OrderBy = ob
	return nil
}

// InMultiple reports whether a table alias is reached through a one-to-many
// join.
func InMultiple(joins []Join, alias string) bool {
	for {
		j, ok := JoinFor(joins, alias)
		if !ok {
			return false
		}
		if j.Type == CardMultiple {
			return true
		}
		alias = j.From.Alias
	}
}
