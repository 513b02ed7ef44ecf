package dialect

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/sqlcollection/sqlcollection/core/internal/qcode"
)

type MySQLDialect struct {
}

func (d *MySQLDialect) Name() string {
	return "mysql"
}

func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return quoteWith(s, "`")
}

// QuoteAlias uses a string literal, which MySQL accepts as a column alias.
func (d *MySQLDialect) QuoteAlias(s string) string {
	return quoteWith(s, "'")
}

func (d *MySQLDialect) BindVar(i int) string {
	return "?"
}

func (d *MySQLDialect) RenderOp(op qcode.ExpOp) (string, error) {
	if s, ok := renderCompareOp(op); ok {
		return s, nil
	}
	if op == qcode.OpRegex {
		return `REGEXP`, nil
	}
	return "", fmt.Errorf("operator not supported in MySQL: %s", op)
}

func (d *MySQLDialect) SupportsReturning() bool {
	return false
}

// SupportsJoinMutation is true since MySQL accepts joins in UPDATE and
// multi-table DELETE.
func (d *MySQLDialect) SupportsJoinMutation() bool {
	return true
}

func (d *MySQLDialect) DefaultValues() string {
	return ` () VALUES ()`
}

var mysqlIntegrityErrors = map[uint16]struct{}{
	1048: {}, // column cannot be null
	1062: {}, // duplicate entry
	1216: {}, // child row: foreign key fails
	1217: {}, // parent row: foreign key fails
	1451: {}, // cannot delete or update a parent row
	1452: {}, // cannot add or update a child row
	3819: {}, // check constraint violated
}

func (d *MySQLDialect) IsIntegrityViolation(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	_, ok := mysqlIntegrityErrors[me.Number]
	return ok
}
