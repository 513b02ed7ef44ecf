package dialect

import (
	"fmt"
	"strings"

	"github.com/sqlcollection/sqlcollection/core/internal/qcode"
)

// SQLiteDialect expects a regexp(pattern, value) function to be registered
// on the connection for REGEXP to work.
type SQLiteDialect struct {
}

func (d *SQLiteDialect) Name() string {
	return "sqlite"
}

func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return quoteWith(s, `"`)
}

func (d *SQLiteDialect) QuoteAlias(s string) string {
	return quoteWith(s, `"`)
}

func (d *SQLiteDialect) BindVar(i int) string {
	return "?"
}

func (d *SQLiteDialect) RenderOp(op qcode.ExpOp) (string, error) {
	if s, ok := renderCompareOp(op); ok {
		return s, nil
	}
	if op == qcode.OpRegex {
		return `REGEXP`, nil
	}
	return "", fmt.Errorf("operator not supported in SQLite: %s", op)
}

func (d *SQLiteDialect) SupportsReturning() bool {
	return false
}

func (d *SQLiteDialect) SupportsJoinMutation() bool {
	return false
}

func (d *SQLiteDialect) DefaultValues() string {
	return ` DEFAULT VALUES`
}

// IsIntegrityViolation goes by the driver message so this package does not
// need the cgo driver.
func (d *SQLiteDialect) IsIntegrityViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
