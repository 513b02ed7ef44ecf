package sdata

import (
	"context"
	"database/sql"
)

// Source is the catalog collaborator: it answers raw schema questions
// about the connected database.
type Source interface {
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]DBRawColumn, error)
	Relations(ctx context.Context, table string) ([]DBRelation, error)
}

type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLSource reads the catalog with the embedded introspection queries.
type SQLSource struct {
	db     Queryer
	schema string
	stmts  catalogStmts
}

func NewSQLSource(db Queryer, dbType, schema string) (*SQLSource, error) {
	stmts, err := stmtsFor(dbType)
	if err != nil {
		return nil, err
	}
	return &SQLSource{db: db, schema: schema, stmts: stmts}, nil
}

func (s *SQLSource) args(table ...string) []any {
	var args []any
	if s.stmts.withSchema {
		args = append(args, s.schema)
	}
	for _, t := range table {
		args = append(args, t)
	}
	return args
}

func (s *SQLSource) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.stmts.tables, s.args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (s *SQLSource) Columns(ctx context.Context, table string) ([]DBRawColumn, error) {
	rows, err := s.db.QueryContext(ctx, s.stmts.columns, s.args(table)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []DBRawColumn
	for rows.Next() {
		var c DBRawColumn
		var key, extra sql.NullString

		err := rows.Scan(&c.Name, &c.Type, &c.Nullable, &key, &c.Default, &extra)
		if err != nil {
			return nil, err
		}
		c.Key = key.String
		c.Extra = extra.String
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (s *SQLSource) Relations(ctx context.Context, table string) ([]DBRelation, error) {
	rows, err := s.db.QueryContext(ctx, s.stmts.relations, s.args(table)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []DBRelation
	for rows.Next() {
		var r DBRelation
		var fcol sql.NullString

		if err := rows.Scan(&r.Table, &r.Column, &r.ForeignTable, &fcol); err != nil {
			return nil, err
		}
		r.ForeignColumn = fcol.String
		rels = append(rels, r)
	}
	return rels, rows.Err()
}
