package dialect

import (
	"fmt"
	"strings"

	"github.com/sqlcollection/sqlcollection/core/internal/qcode"
)

type Dialect interface {
	Name() string

	// Identifier and column alias quoting
	QuoteIdentifier(s string) string
	QuoteAlias(s string) string

	// Parameter placeholder for the i-th value, starting at 1
	BindVar(i int) string

	RenderOp(op qcode.ExpOp) (string, error)

	// Mutations
	SupportsReturning() bool
	SupportsJoinMutation() bool
	DefaultValues() string

	IsIntegrityViolation(err error) bool
}

// New returns the dialect for a database type.
func New(dbType string) (Dialect, error) {
	switch strings.ToLower(dbType) {
	case "mysql", "mariadb":
		return &MySQLDialect{}, nil
	case "", "postgres":
		return &PostgresDialect{}, nil
	case "sqlite":
		return &SQLiteDialect{}, nil
	}
	return nil, fmt.Errorf("dialect: unsupported database type %q", dbType)
}

// renderCompareOp covers the operators every dialect spells the same way.
func renderCompareOp(op qcode.ExpOp) (string, bool) {
	switch op {
	case qcode.OpEquals:
		return `=`, true
	case qcode.OpNotEquals:
		return `!=`, true
	case qcode.OpGreaterThan:
		return `>`, true
	case qcode.OpGreaterOrEquals:
		return `>=`, true
	case qcode.OpLesserThan:
		return `<`, true
	case qcode.OpLesserOrEquals:
		return `<=`, true
	}
	return "", false
}

func quoteWith(s string, q string) string {
	return q + strings.ReplaceAll(s, q, q+q) + q
}
