package sdata

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Catalog memoizes column and relation metadata per table name. Entries are
// written once and only dropped by Reload.
type Catalog struct {
	src   Source
	mu    sync.RWMutex
	cols  map[string][]DBColumn
	rels  *lru.TwoQueueCache[string, []DBRelation]
	group singleflight.Group
}

func NewCatalog(src Source, relCacheSize int) (*Catalog, error) {
	if relCacheSize <= 0 {
		relCacheSize = 1000
	}
	rels, err := lru.New2Q[string, []DBRelation](relCacheSize)
	if err != nil {
		return nil, err
	}

	return &Catalog{
		src:  src,
		cols: make(map[string][]DBColumn),
		rels: rels,
	}, nil
}

// Tables lists the tables of the connected database. It is not cached.
func (c *Catalog) Tables(ctx context.Context) ([]string, error) {
	return c.src.Tables(ctx)
}

// Columns returns the columns of a table, loading them on the first call.
func (c *Catalog) Columns(ctx context.Context, table string) ([]DBColumn, error) {
	c.mu.RLock()
	cols, ok := c.cols[table]
	c.mu.RUnlock()

	if ok {
		return cols, nil
	}

	v, err, _ := c.group.Do("cols:"+table, func() (interface{}, error) {
		raw, err := c.src.Columns(ctx, table)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
		}

		cols := make([]DBColumn, 0, len(raw))
		for _, r := range raw {
			cols = append(cols, NewDBColumn(r))
		}

		c.mu.Lock()
		c.cols[table] = cols
		c.mu.Unlock()

		return cols, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]DBColumn), nil
}

// Table returns a table reference with its columns. An empty alias
// defaults to the table name.
func (c *Catalog) Table(ctx context.Context, name, alias string, root bool) (DBTable, error) {
	cols, err := c.Columns(ctx, name)
	if err != nil {
		return DBTable{}, err
	}
	if alias == "" {
		alias = name
	}
	return DBTable{Name: name, Alias: alias, Columns: cols, IsRoot: root}, nil
}

// Relations returns the outgoing foreign keys of a table. A relation that
// does not name the referenced column points at its primary key.
func (c *Catalog) Relations(ctx context.Context, table string) ([]DBRelation, error) {
	if rels, ok := c.rels.Get(table); ok {
		return rels, nil
	}

	v, err, _ := c.group.Do("rels:"+table, func() (interface{}, error) {
		rels, err := c.src.Relations(ctx, table)
		if err != nil {
			return nil, err
		}

		for i, r := range rels {
			if r.ForeignColumn != "" {
				continue
			}
			ft, err := c.Table(ctx, r.ForeignTable, "", false)
			if err != nil {
				return nil, err
			}
			pk, ok := ft.PrimaryKey()
			if !ok {
				return nil, fmt.Errorf("%w: %s has no primary key for relation %s.%s",
					ErrUnknownColumn, r.ForeignTable, r.Table, r.Column)
			}
			rels[i].ForeignColumn = pk.Name
		}

		c.rels.Add(table, rels)
		return rels, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]DBRelation), nil
}

// Reload drops every memoized entry.
func (c *Catalog) Reload() {
	c.mu.Lock()
	c.cols = make(map[string][]DBColumn)
	c.mu.Unlock()
	c.rels.Purge()
}
