package qcode

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/sqlcollection/sqlcollection/core/internal/sdata"
)

// Lookup declares a join. To names the table or the As of an earlier
// lookup the join starts from; empty means the root table.
type Lookup struct {
	From         string      `mapstructure:"from" json:"from"`
	LocalField   string      `mapstructure:"localField" json:"localField"`
	ForeignField string      `mapstructure:"foreignField" json:"foreignField"`
	As           string      `mapstructure:"as" json:"as"`
	To           string      `mapstructure:"to" json:"to,omitempty"`
	Type         Cardinality `mapstructure:"type" json:"type,omitempty"`
}

func (l Lookup) validate() error {
	switch {
	case l.From == "":
		return fmt.Errorf("%w: lookup without from", ErrWrongParameter)
	case l.LocalField == "":
		return fmt.Errorf("%w: lookup %s without localField", ErrWrongParameter, l.From)
	case l.ForeignField == "":
		return fmt.Errorf("%w: lookup %s without foreignField", ErrWrongParameter, l.From)
	case l.As == "":
		return fmt.Errorf("%w: lookup %s without as", ErrWrongParameter, l.From)
	}

	switch l.Type {
	case "", CardSimple, CardMultiple:
	default:
		return fmt.Errorf("%w: lookup %s has unknown type %q", ErrWrongParameter, l.As, l.Type)
	}
	return nil
}

// DecodeLookups reads lookup specs from their wire form: a list of
// documents with from, localField, foreignField, as, to and type keys.
func DecodeLookups(v any) ([]Lookup, error) {
	switch l := v.(type) {
	case nil:
		return nil, nil
	case []Lookup:
		return l, nil
	}

	items, err := list(v)
	if err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}

	lookups := make([]Lookup, 0, len(items))
	for _, item := range items {
		m, err := ToMap(item)
		if err != nil {
			return nil, fmt.Errorf("lookup: %w", err)
		}

		var l Lookup
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			ErrorUnused: true,
			Result:      &l,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("%w: lookup: %v", ErrWrongParameter, err)
		}
		lookups = append(lookups, l)
	}
	return lookups, nil
}

// Lookups returns the lookups a statement on table should use: the explicit
// list when given, otherwise the ones discovered up to depth.
func (co *Compiler) Lookups(ctx context.Context, table string, explicit []Lookup, depth int) ([]Lookup, error) {
	if len(explicit) != 0 && depth != 0 {
		return nil, fmt.Errorf("%w: lookup and auto lookup are exclusive", ErrWrongParameter)
	}
	if len(explicit) != 0 {
		return explicit, nil
	}
	return co.Discover(ctx, table, depth)
}

// Discover walks foreign keys outward from table. Depth 0 returns nothing,
// depth 1 the direct relations, and so on. Cycles are only bounded by depth.
func (co *Compiler) Discover(ctx context.Context, table string, depth int) ([]Lookup, error) {
	if depth < 0 {
		return nil, fmt.Errorf("%w: auto lookup depth must be positive", ErrWrongParameter)
	}
	if co.c.MaxDepth > 0 && depth > co.c.MaxDepth {
		return nil, fmt.Errorf("%w: auto lookup depth %d exceeds %d",
			ErrWrongParameter, depth, co.c.MaxDepth)
	}

	d := discoverer{
		co:    co,
		max:   depth,
		taken: map[string]struct{}{table: {}},
	}
	if err := d.walk(ctx, table, "", 0); err != nil {
		return nil, err
	}
	return d.out, nil
}

type discoverer struct {
	co    *Compiler
	max   int
	out   []Lookup
	taken map[string]struct{}
}

func (d *discoverer) walk(ctx context.Context, table, parentAs string, depth int) error {
	if depth >= d.max {
		return nil
	}

	ti, err := d.co.s.Table(ctx, table, "", false)
	if err != nil {
		return err
	}
	rels, err := d.co.s.Relations(ctx, table)
	if err != nil {
		return err
	}

	fks := make(map[string]struct{}, len(rels))
	for _, r := range rels {
		fks[r.Column] = struct{}{}
	}
	for _, c := range ti.Columns {
		if _, ok := fks[c.Name]; !ok {
			d.taken[joinPath(parentAs, c.Name)] = struct{}{}
		}
	}

	start := len(d.out)
	for _, r := range rels {
		as, err := d.alias(parentAs, r)
		if err != nil {
			return err
		}
		d.out = append(d.out, Lookup{
			From:         r.ForeignTable,
			LocalField:   r.Column,
			ForeignField: r.ForeignColumn,
			As:           as,
			To:           parentAs,
			Type:         CardSimple,
		})
	}

	found := append([]Lookup(nil), d.out[start:]...)
	for _, l := range found {
		if err := d.walk(ctx, l.From, l.As, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// alias names a discovered lookup after the referenced table, falling back
// to the local column when that name is already used at the same level.
func (d *discoverer) alias(parentAs string, r sdata.DBRelation) (string, error) {
	for _, name := range []string{r.ForeignTable, r.Column} {
		as := joinPath(parentAs, name)
		if _, ok := d.taken[as]; !ok {
			d.taken[as] = struct{}{}
			return as, nil
		}
	}
	return "", fmt.Errorf("%w: %s.%s references %s", sdata.ErrAmbiguousLookup,
		r.Table, r.Column, r.ForeignTable)
}
