package core

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/sqlcollection/sqlcollection/core/internal/jsn"
	"github.com/sqlcollection/sqlcollection/core/internal/psql"
	"github.com/sqlcollection/sqlcollection/core/internal/qcode"
)

// Cursor iterates over the documents of a find. Limit, Skip, Sort and
// BatchSize can be chained until iteration starts; their errors are
// reported by Err, Next and All.
type Cursor struct {
	gj   *engine
	conn execer
	sel  *qcode.Select

	// drain reads every row on the first call to Next. Used inside
	// transactions where the connection cannot be shared with open rows.
	drain bool
	batch int

	started bool
	done    bool
	err     error

	rows    *sql.Rows
	scan    []any
	grouper *jsn.Grouper
	buf     []Document
	cur     Document
}

func newCursor(gj *engine, conn execer, sel *qcode.Select, drain bool) *Cursor {
	return &Cursor{
		gj:    gj,
		conn:  conn,
		sel:   sel,
		drain: drain,
		batch: gj.conf.BatchSize,
	}
}

func (cur *Cursor) modify(fn func() error) *Cursor {
	if cur.err != nil {
		return cur
	}
	if cur.started {
		cur.err = fmt.Errorf("%w: cursor already started", ErrWrongParameter)
		return cur
	}
	cur.err = fn()
	return cur
}

// Limit bounds the number of documents. Zero restores the default.
func (cur *Cursor) Limit(n int) *Cursor {
	return cur.modify(func() error { return cur.gj.qc.SetLimit(cur.sel, n) })
}

func (cur *Cursor) Skip(n int) *Cursor {
	return cur.modify(func() error { return cur.gj.qc.SetSkip(cur.sel, n) })
}

// Sort replaces the sort order with the given keys, first key first.
func (cur *Cursor) Sort(keys ...SortKey) *Cursor {
	return cur.modify(func() error { return cur.gj.qc.SetSort(cur.sel, keys) })
}

// SortBy sorts on a single field, dir is 1 or -1.
func (cur *Cursor) SortBy(key string, dir int) *Cursor {
	return cur.Sort(SortKey{Key: key, Dir: dir})
}

// BatchSize sets how many rows are read at a time.
func (cur *Cursor) BatchSize(n int) *Cursor {
	return cur.modify(func() error {
		if n <= 0 {
			return fmt.Errorf("%w: batch size must be positive", ErrWrongParameter)
		}
		cur.batch = n
		return nil
	})
}

// Count returns the number of documents matching the filter, bounded by
// limit and skip when withLimitAndSkip is set.
func (cur *Cursor) Count(ctx context.Context, withLimitAndSkip bool) (int64, error) {
	if cur.err != nil {
		return 0, cur.err
	}

	st, err := cur.gj.pc.CompileCount(cur.sel, withLimitAndSkip)
	if err != nil {
		return 0, err
	}
	cur.gj.logStmt("count", st)

	var n int64
	if err := cur.conn.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&n); err != nil {
		return 0, storeError(cur.gj.dialect, err)
	}
	return n, nil
}

func (cur *Cursor) start(ctx context.Context) error {
	cur.started = true

	st, err := cur.gj.pc.CompileSelect(cur.sel)
	if err != nil {
		return err
	}
	cur.gj.logStmt("find", st)

	cur.grouper = jsn.NewGrouper(layoutFor(cur.sel, st))
	cur.scan = make([]any, len(st.Columns))

	if cur.rows, err = cur.conn.QueryContext(ctx, st.SQL, st.Args...); err != nil {
		return storeError(cur.gj.dialect, err)
	}
	if cur.drain {
		cur.batch = 0
	}
	return nil
}

// fetch reads the next batch of rows, all remaining rows when batch is 0.
func (cur *Cursor) fetch() error {
	for n := 0; cur.batch == 0 || n < cur.batch; n++ {
		if !cur.rows.Next() {
			if err := cur.rows.Err(); err != nil {
				return err
			}
			cur.done = true
			if d, ok := cur.grouper.Flush(); ok {
				cur.buf = append(cur.buf, d)
			}
			return cur.rows.Close()
		}

		vals := make([]any, len(cur.scan))
		for i := range cur.scan {
			cur.scan[i] = &vals[i]
		}
		if err := cur.rows.Scan(cur.scan...); err != nil {
			return err
		}

		d, ok, err := cur.grouper.Add(vals)
		if err != nil {
			return err
		}
		if ok {
			cur.buf = append(cur.buf, d)
		}
	}
	return nil
}

// Next moves to the next document. It returns false at the end or on error.
func (cur *Cursor) Next(ctx context.Context) bool {
	if cur.err != nil {
		return false
	}
	if !cur.started {
		if cur.err = cur.start(ctx); cur.err != nil {
			return false
		}
	}

	for len(cur.buf) == 0 && !cur.done {
		if err := ctx.Err(); err != nil {
			cur.err = err
			return false
		}
		if cur.err = cur.fetch(); cur.err != nil {
			return false
		}
	}

	if len(cur.buf) == 0 {
		cur.cur = nil
		return false
	}
	cur.cur, cur.buf = cur.buf[0], cur.buf[1:]
	return true
}

// Current returns the document Next moved to
func (cur *Cursor) Current() Document {
	return cur.cur
}

// Decode maps the current document onto v, a pointer to a struct or map.
// Struct fields are matched by their json tag.
func (cur *Cursor) Decode(v any) error {
	if cur.cur == nil {
		return fmt.Errorf("no current document")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           v,
	})
	if err != nil {
		return err
	}
	return dec.Decode(jsn.Map(cur.cur))
}

// All reads every remaining document and closes the cursor.
func (cur *Cursor) All(ctx context.Context) ([]Document, error) {
	defer cur.Close(ctx) //nolint:errcheck

	var docs []Document
	for cur.Next(ctx) {
		docs = append(docs, cur.cur)
	}
	return docs, cur.err
}

func (cur *Cursor) Err() error {
	return cur.err
}

// Close releases the rows of an unfinished iteration.
func (cur *Cursor) Close(ctx context.Context) error {
	cur.done = true
	cur.buf = nil
	if cur.rows != nil {
		return cur.rows.Close()
	}
	return nil
}

// layoutFor maps the selected columns onto the document layout.
func layoutFor(sel *qcode.Select, st psql.Stmt) jsn.Layout {
	index := make(map[string]int, len(st.Columns))
	l := jsn.Layout{Key: -1}

	for i, c := range st.Columns {
		index[c.Alias] = i
		l.Columns = append(l.Columns, jsn.Column{Path: c.Alias, Type: c.Col.Type, Hidden: c.Hidden})
	}

	if st.Grouping.Key != "" {
		l.Key = index[st.Grouping.Key]
	}
	for _, a := range st.Grouping.Arrays {
		key := -1
		if a.Key != "" {
			key = index[a.Key]
		}
		l.Arrays = append(l.Arrays, jsn.Array{Path: a.Path, Parent: a.Parent, Key: key})
	}

	for _, j := range sel.Joins {
		if j.Type == qcode.CardSimple {
			l.Nullable = append(l.Nullable, j.As)
		}
	}
	return l
}
