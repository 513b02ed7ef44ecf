package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sqlcollection/sqlcollection/core/internal/qcode"
)

type PostgresDialect struct {
}

func (d *PostgresDialect) Name() string {
	return "postgres"
}

func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return quoteWith(s, `"`)
}

func (d *PostgresDialect) QuoteAlias(s string) string {
	return quoteWith(s, `"`)
}

func (d *PostgresDialect) BindVar(i int) string {
	return fmt.Sprintf("$%d", i)
}

func (d *PostgresDialect) RenderOp(op qcode.ExpOp) (string, error) {
	if s, ok := renderCompareOp(op); ok {
		return s, nil
	}
	if op == qcode.OpRegex {
		return `~`, nil
	}
	return "", fmt.Errorf("operator not supported in Postgres: %s", op)
}

func (d *PostgresDialect) SupportsReturning() bool {
	return true
}

func (d *PostgresDialect) SupportsJoinMutation() bool {
	return false
}

func (d *PostgresDialect) DefaultValues() string {
	return ` DEFAULT VALUES`
}

// IsIntegrityViolation matches SQLSTATE class 23.
func (d *PostgresDialect) IsIntegrityViolation(err error) bool {
	var pe *pgconn.PgError
	if !errors.As(err, &pe) {
		return false
	}
	return strings.HasPrefix(pe.Code, "23")
}
