// Package sqlite registers a SQLite driver with a regexp function so the
// REGEXP operator can be used in filters.
package sqlite

import (
	"database/sql"
	"fmt"
	"regexp"

	"github.com/mattn/go-sqlite3"
)

const DriverName = "sqlite3_regexp"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("regexp", match, true)
		},
	})
}

// match implements "value REGEXP pattern", which SQLite calls as
// regexp(pattern, value). NULL never matches.
func match(re string, v any) (bool, error) {
	switch s := v.(type) {
	case nil:
		return false, nil
	case string:
		return regexp.MatchString(re, s)
	case []byte:
		return regexp.Match(re, s)
	default:
		return regexp.MatchString(re, fmt.Sprint(s))
	}
}
