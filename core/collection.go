package core

import (
	"context"
	"fmt"

	"github.com/sqlcollection/sqlcollection/core/internal/jsn"
)

// Collection is a table seen as a collection of documents
type Collection struct {
	db   *DB
	name string
	tx   *Tx
}

type InsertOneResult struct {
	// InsertedID is the primary key of the new row, nil when the table
	// has none
	InsertedID any
}

type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

type DeleteResult struct {
	DeletedCount int64
}

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) engine() *engine {
	if c.tx != nil {
		return c.tx.gj
	}
	return c.db.engine()
}

func (c *Collection) conn(gj *engine) execer {
	if c.tx != nil {
		return c.tx.tx
	}
	return gj.db
}

// Find returns a cursor over the documents matching filter. Nothing is
// read until the cursor is iterated or counted.
func (c *Collection) Find(ctx context.Context, filter any, opts ...*FindOptions) (*Cursor, error) {
	gj := c.engine()
	o := mergeFindOptions(opts)

	lookups, err := gj.qc.Lookups(ctx, c.name, o.Lookup, o.AutoLookup)
	if err != nil {
		return nil, err
	}

	sel, err := gj.qc.CompileSelect(ctx, c.name, lookups, filter, o.Projection)
	if err != nil {
		return nil, err
	}
	return newCursor(gj, c.conn(gj), sel, c.tx != nil), nil
}

// FindOne returns the first document matching filter, nil when there is
// none.
func (c *Collection) FindOne(ctx context.Context, filter any, opts ...*FindOptions) (Document, error) {
	cur, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx) //nolint:errcheck

	if !cur.Limit(1).Next(ctx) {
		return nil, cur.Err()
	}
	return cur.Current(), nil
}

func (c *Collection) InsertOne(ctx context.Context, doc any, opts ...*InsertOneOptions) (*InsertOneResult, error) {
	gj := c.engine()

	var lookups []Lookup
	for _, o := range opts {
		if o != nil && o.Lookup != nil {
			lookups = o.Lookup
		}
	}

	ins, err := gj.qc.CompileInsert(ctx, c.name, lookups, doc)
	if err != nil {
		return nil, err
	}

	st, err := gj.pc.CompileInsert(ins)
	if err != nil {
		return nil, err
	}
	gj.logStmt("insert", st)

	conn := c.conn(gj)
	pk, hasPK := ins.Table.PrimaryKey()

	if st.Returning {
		var id any
		if err := conn.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&id); err != nil {
			return nil, storeError(gj.dialect, err)
		}
		if id, err = jsn.Coerce(id, pk.Type); err != nil {
			return nil, err
		}
		return &InsertOneResult{InsertedID: id}, nil
	}

	res, err := conn.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, storeError(gj.dialect, err)
	}

	r := &InsertOneResult{}
	if !hasPK {
		return r, nil
	}
	for i, col := range ins.Columns {
		if col.Name == pk.Name {
			id, err := jsn.Coerce(ins.Values[i], pk.Type)
			if err != nil {
				return nil, err
			}
			r.InsertedID = id
			return r, nil
		}
	}
	if id, err := res.LastInsertId(); err == nil {
		r.InsertedID = id
	}
	return r, nil
}

// UpdateMany applies the $set document of update to every row matching
// filter. An empty filter is refused.
func (c *Collection) UpdateMany(ctx context.Context,
	filter, update any,
	opts ...*UpdateOptions,
) (*UpdateResult, error) {
	gj := c.engine()

	var o UpdateOptions
	for _, op := range opts {
		if op == nil {
			continue
		}
		if op.Upsert {
			return nil, fmt.Errorf("%w: upsert is not supported", ErrWrongParameter)
		}
		o = *op
	}

	lookups, err := gj.qc.Lookups(ctx, c.name, o.Lookup, o.AutoLookup)
	if err != nil {
		return nil, err
	}

	upd, err := gj.qc.CompileUpdate(ctx, c.name, lookups, filter, update)
	if err != nil {
		return nil, err
	}

	st, err := gj.pc.CompileUpdate(upd)
	if err != nil {
		return nil, err
	}
	gj.logStmt("update", st)

	res, err := c.conn(gj).ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, storeError(gj.dialect, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	return &UpdateResult{MatchedCount: n, ModifiedCount: n}, nil
}

// DeleteMany removes every row matching filter. An empty filter is
// refused.
func (c *Collection) DeleteMany(ctx context.Context, filter any, opts ...*DeleteOptions) (*DeleteResult, error) {
	gj := c.engine()

	var o DeleteOptions
	for _, op := range opts {
		if op != nil {
			o = *op
		}
	}

	lookups, err := gj.qc.Lookups(ctx, c.name, o.Lookup, o.AutoLookup)
	if err != nil {
		return nil, err
	}

	del, err := gj.qc.CompileDelete(ctx, c.name, lookups, filter)
	if err != nil {
		return nil, err
	}

	st, err := gj.pc.CompileDelete(del)
	if err != nil {
		return nil, err
	}
	gj.logStmt("delete", st)

	res, err := c.conn(gj).ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, storeError(gj.dialect, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: n}, nil
}
