package jsn

import (
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sqlcollection/sqlcollection/core/internal/sdata"
)

type Column struct {
	Path   string
	Type   sdata.ColumnType
	Hidden bool
}

// Array collects the rows of a one-to-many relation under Path.
type Array struct {
	Path string

	// Parent is the index of the enclosing array, -1 for the document root.
	Parent int

	// Key is the column index of the element key. With -1 elements are
	// compared by value.
	Key int
}

// Layout maps the columns of a result row onto a document.
type Layout struct {
	Columns []Column

	// Key is the column index of the root key. Consecutive rows sharing it
	// build one document. With -1 every row is a document.
	Key    int
	Arrays []Array

	// Nullable lists the paths of to-one sub-documents that become null
	// when all their values are.
	Nullable []string
}

type elemKey struct {
	parent *obj
	array  int
	key    string
}

type group struct {
	key   any
	root  *obj
	elems map[elemKey]*obj
}

// Grouper folds flat rows into nested documents. Rows of one document
// must arrive one after the other.
type Grouper struct {
	l      Layout
	owner  []int
	rel    []string
	arrRel []string
	hidden map[string]struct{}
	simple map[string]struct{}
	cur    *group
}

func NewGrouper(l Layout) *Grouper {
	g := &Grouper{
		l:      l,
		owner:  make([]int, len(l.Columns)),
		rel:    make([]string, len(l.Columns)),
		arrRel: make([]string, len(l.Arrays)),
		hidden: make(map[string]struct{}),
		simple: make(map[string]struct{}, len(l.Nullable)),
	}

	for i, a := range l.Arrays {
		g.arrRel[i] = a.Path
		if a.Parent >= 0 {
			g.arrRel[i] = strings.TrimPrefix(a.Path, l.Arrays[a.Parent].Path+".")
		}
	}

	for i, c := range l.Columns {
		g.owner[i] = -1
		g.rel[i] = c.Path

		for ai, a := range l.Arrays {
			if !strings.HasPrefix(c.Path, a.Path+".") {
				continue
			}
			if o := g.owner[i]; o == -1 || len(a.Path) > len(l.Arrays[o].Path) {
				g.owner[i] = ai
				g.rel[i] = strings.TrimPrefix(c.Path, a.Path+".")
			}
		}
		if c.Hidden {
			g.hidden[c.Path] = struct{}{}
		}
	}

	for _, p := range l.Nullable {
		g.simple[p] = struct{}{}
	}
	return g
}

// Add feeds one row. When the row starts a new document the previous one
// is returned complete.
func (g *Grouper) Add(row []any) (bson.D, bool, error) {
	if len(row) != len(g.l.Columns) {
		return nil, false, fmt.Errorf("jsn: row has %d values, expected %d", len(row), len(g.l.Columns))
	}

	vals := make([]any, len(row))
	for i, v := range row {
		c, err := Coerce(v, g.l.Columns[i].Type)
		if err != nil {
			return nil, false, fmt.Errorf("jsn: %s: %w", g.l.Columns[i].Path, err)
		}
		vals[i] = c
	}

	if g.l.Key < 0 {
		grp := g.start(nil, vals)
		g.fill(grp, vals)
		return g.finish(grp.root, ""), true, nil
	}

	var (
		done bson.D
		ok   bool
	)
	key := vals[g.l.Key]
	if g.cur == nil || !reflect.DeepEqual(g.cur.key, key) {
		if g.cur != nil {
			done, ok = g.finish(g.cur.root, ""), true
		}
		g.cur = g.start(key, vals)
	}
	g.fill(g.cur, vals)
	return done, ok, nil
}

// Flush returns the document still being built, if any.
func (g *Grouper) Flush() (bson.D, bool) {
	if g.cur == nil {
		return nil, false
	}
	d := g.finish(g.cur.root, "")
	g.cur = nil
	return d, true
}

func (g *Grouper) start(key any, vals []any) *group {
	grp := &group{key: key, root: newObj(), elems: make(map[elemKey]*obj)}

	for i, v := range vals {
		if g.owner[i] == -1 {
			grp.root.set(g.rel[i], v)
		}
	}
	for i, a := range g.l.Arrays {
		if a.Parent == -1 {
			grp.root.array(g.arrRel[i])
		}
	}
	return grp
}

func (g *Grouper) fill(grp *group, vals []any) {
	elems := make([]*obj, len(g.l.Arrays))

	for ai, a := range g.l.Arrays {
		parent := grp.root
		if a.Parent >= 0 {
			if parent = elems[a.Parent]; parent == nil {
				continue
			}
		}

		var ks string
		if a.Key >= 0 {
			if vals[a.Key] == nil {
				continue
			}
			ks = fmt.Sprint(vals[a.Key])
		} else {
			owned := g.ownedValues(ai, vals)
			if allNil(owned) {
				continue
			}
			ks = fmt.Sprintf("%#v", owned)
		}

		k := elemKey{parent: parent, array: ai, key: ks}
		e, ok := grp.elems[k]
		if !ok {
			e = newObj()
			for i, v := range vals {
				if g.owner[i] == ai {
					e.set(g.rel[i], v)
				}
			}
			for ci, c := range g.l.Arrays {
				if c.Parent == ai {
					e.array(g.arrRel[ci])
				}
			}
			list := parent.array(g.arrRel[ai])
			list.items = append(list.items, e)
			grp.elems[k] = e
		}
		elems[ai] = e
	}
}

func (g *Grouper) ownedValues(ai int, vals []any) []any {
	var out []any
	for i, v := range vals {
		if g.owner[i] == ai {
			out = append(out, v)
		}
	}
	return out
}

func (g *Grouper) finish(o *obj, prefix string) bson.D {
	d := make(bson.D, 0, len(o.keys))

	for _, k := range o.keys {
		path := joinPath(prefix, k)
		if _, ok := g.hidden[path]; ok {
			continue
		}

		switch v := o.vals[k].(type) {
		case *obj:
			sub := g.finish(v, path)
			if _, ok := g.simple[path]; ok && allNil(docValues(sub)) {
				d = append(d, bson.E{Key: k, Value: nil})
				continue
			}
			d = append(d, bson.E{Key: k, Value: sub})

		case *arr:
			a := make(bson.A, 0, len(v.items))
			for _, e := range v.items {
				a = append(a, g.finish(e, path))
			}
			d = append(d, bson.E{Key: k, Value: a})

		default:
			d = append(d, bson.E{Key: k, Value: v})
		}
	}
	return d
}

func docValues(d bson.D) []any {
	out := make([]any, len(d))
	for i, e := range d {
		out[i] = e.Value
	}
	return out
}

func allNil(vals []any) bool {
	for _, v := range vals {
		if v != nil {
			return false
		}
	}
	return true
}
