// Package core provides a document API over a relational database. Tables are
// exposed as collections that are queried with MongoDB style filters and
// joined through lookups, and rows come back as nested documents.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/sqlcollection/sqlcollection/core/internal/dialect"
	"github.com/sqlcollection/sqlcollection/core/internal/psql"
	"github.com/sqlcollection/sqlcollection/core/internal/qcode"
	"github.com/sqlcollection/sqlcollection/core/internal/sdata"
)

// Document is an ordered document as read from or written to a collection
type Document = bson.D

// Lookup joins another table into the documents of a collection
type Lookup = qcode.Lookup

// SortKey is one sort criterion, Dir is 1 for ascending and -1 for descending
type SortKey = qcode.SortKey

const (
	CardSimple   = qcode.CardSimple
	CardMultiple = qcode.CardMultiple
)

// DecodeLookups reads lookups from their document form
// {from, localField, foreignField, as, to, type}
func DecodeLookups(v any) ([]Lookup, error) {
	return qcode.DecodeLookups(v)
}

// engine holds everything learned from the database. It is replaced as a
// whole on reload.
type engine struct {
	conf    Config
	db      *sql.DB
	log     *zap.Logger
	dialect dialect.Dialect
	catalog *sdata.Catalog
	qc      *qcode.Compiler
	pc      *psql.Compiler
	tables  []string
	colls   map[string]*Collection
	opts    []Option
}

// DB is the entry point of the API. It is safe for concurrent use.
type DB struct {
	atomic.Value
	done chan bool
}

type Option func(*engine) error

// OptionSetLogger sets the logger used for statements and schema reloads
func OptionSetLogger(log *zap.Logger) Option {
	return func(gj *engine) error {
		if log == nil {
			return fmt.Errorf("logger is nil")
		}
		gj.log = log
		return nil
	}
}

// Open reads the list of tables from the database and builds a collection
// for each of them. The database handle stays owned by the caller.
func Open(ctx context.Context, conf *Config, db *sql.DB, options ...Option) (g *DB, err error) {
	g = &DB{done: make(chan bool)}
	if err = g.newEngine(ctx, conf, db, options...); err != nil {
		return
	}

	if err = g.initDBWatcher(); err != nil {
		return
	}
	return
}

func (g *DB) newEngine(ctx context.Context,
	conf *Config,
	db *sql.DB,
	options ...Option,
) (err error) {
	if conf == nil {
		conf = &Config{}
	}
	if err = conf.Validate(); err != nil {
		return
	}

	gj := &engine{
		conf: conf.withDefaults(),
		db:   db,
		log:  zap.NewNop(),
		opts: options,
	}

	for _, op := range options {
		if err = op(gj); err != nil {
			return
		}
	}

	if err = gj.initCompilers(); err != nil {
		return
	}

	if err = gj.initCollections(ctx, g); err != nil {
		return
	}

	g.Store(gj)
	return
}

func (gj *engine) initCompilers() (err error) {
	if gj.dialect, err = dialect.New(gj.conf.DBType); err != nil {
		return
	}

	src, err := sdata.NewSQLSource(gj.db, gj.conf.DBType, gj.conf.DBSchema)
	if err != nil {
		return
	}

	if gj.catalog, err = sdata.NewCatalog(src, gj.conf.RelationCacheSize); err != nil {
		return
	}

	gj.qc = qcode.NewCompiler(gj.catalog, qcode.Config{
		DefaultLimit:  gj.conf.DefaultLimit,
		MaxDepth:      gj.conf.MaxAutoLookupDepth,
		StrictFilters: gj.conf.StrictFilters,
	})
	gj.pc = psql.NewCompiler(gj.dialect)
	return
}

// initCollections lists the tables once and keeps a collection per table.
func (gj *engine) initCollections(ctx context.Context, g *DB) error {
	tables, err := gj.catalog.Tables(ctx)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}

	gj.colls = make(map[string]*Collection, len(tables))
	for _, t := range tables {
		if len(gj.conf.Tables) != 0 && !slices.Contains(gj.conf.Tables, t) {
			continue
		}
		gj.tables = append(gj.tables, t)
		gj.colls[t] = &Collection{db: g, name: t}
	}
	slices.Sort(gj.tables)

	gj.log.Debug("collections loaded", zap.Int("count", len(gj.tables)))
	return nil
}

func (g *DB) engine() *engine {
	return g.Load().(*engine)
}

// Collection returns the collection of a table
func (g *DB) Collection(name string) (*Collection, error) {
	gj := g.engine()
	c, ok := gj.colls[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return c, nil
}

// Collections returns the names of all collections in sorted order
func (g *DB) Collections() []string {
	return slices.Clone(g.engine().tables)
}

// Reload drops everything learned about the schema and reads it again.
func (g *DB) Reload(ctx context.Context) error {
	gj := g.engine()
	conf := gj.conf
	return g.newEngine(ctx, &conf, gj.db, gj.opts...)
}

// Ping checks the database connection
func (g *DB) Ping(ctx context.Context) error {
	return g.engine().db.PingContext(ctx)
}

// Close stops the schema watcher. It does not close the database handle.
func (g *DB) Close() {
	select {
	case <-g.done:
	default:
		close(g.done)
	}
}

// execer is implemented by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (gj *engine) logStmt(op string, st psql.Stmt) {
	if ce := gj.log.Check(zap.DebugLevel, op); ce != nil {
		ce.Write(zap.String("sql", prettify(st.SQL, gj.conf.DBType)), zap.Int("args", len(st.Args)))
	}
}
