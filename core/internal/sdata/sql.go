package sdata

import (
	_ "embed"
	"fmt"
)

//go:embed sql/mysql_tables.sql
var mysqlTablesStmt string

//go:embed sql/mysql_columns.sql
var mysqlColumnsStmt string

//go:embed sql/mysql_relations.sql
var mysqlRelationsStmt string

//go:embed sql/postgres_tables.sql
var postgresTablesStmt string

//go:embed sql/postgres_columns.sql
var postgresColumnsStmt string

//go:embed sql/postgres_relations.sql
var postgresRelationsStmt string

//go:embed sql/sqlite_tables.sql
var sqliteTablesStmt string

//go:embed sql/sqlite_columns.sql
var sqliteColumnsStmt string

//go:embed sql/sqlite_relations.sql
var sqliteRelationsStmt string

// catalogStmts holds the introspection queries for one database type.
// When withSchema is set the schema name is passed as the first argument.
type catalogStmts struct {
	tables     string
	columns    string
	relations  string
	withSchema bool
}

func stmtsFor(dbType string) (catalogStmts, error) {
	switch dbType {
	case "mysql", "mariadb":
		return catalogStmts{
			tables:     mysqlTablesStmt,
			columns:    mysqlColumnsStmt,
			relations:  mysqlRelationsStmt,
			withSchema: true,
		}, nil

	case "postgres":
		return catalogStmts{
			tables:     postgresTablesStmt,
			columns:    postgresColumnsStmt,
			relations:  postgresRelationsStmt,
			withSchema: true,
		}, nil

	case "sqlite":
		return catalogStmts{
			tables:    sqliteTablesStmt,
			columns:   sqliteColumnsStmt,
			relations: sqliteRelationsStmt,
		}, nil

	default:
		return catalogStmts{}, fmt.Errorf("catalog: unsupported database type %q", dbType)
	}
}
