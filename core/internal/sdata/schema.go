package sdata

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownTable    = errors.New("unknown table")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrAmbiguousLookup = errors.New("ambiguous lookup")
)

// ColumnType is the logical type of a column as seen by documents.
type ColumnType string

const (
	TypeNumber    ColumnType = "number"
	TypeText      ColumnType = "text"
	TypeTimestamp ColumnType = "timestamp"
)

// KeyKind is the index role of a column. The values follow the
// lowercased MySQL COLUMN_KEY convention.
type KeyKind string

const (
	KeyNone    KeyKind = ""
	KeyPrimary KeyKind = "pri"
	KeyUnique  KeyKind = "uni"
	KeyMulti   KeyKind = "mul"
)

type DBColumn struct {
	Name     string
	Type     ColumnType
	SQLType  string
	Required bool
	Key      KeyKind
	Default  *string
	Extra    string
}

// IsPrimary reports whether the column is part of the primary key.
func (c DBColumn) IsPrimary() bool {
	return c.Key == KeyPrimary
}

// IsGenerated reports whether the store fills the column on its own,
// either through auto increment or a default value.
func (c DBColumn) IsGenerated() bool {
	return strings.Contains(c.Extra, "auto_increment") || c.Default != nil
}

type DBTable struct {
	Name    string
	Alias   string
	Columns []DBColumn
	IsRoot  bool
}

// GetColumn returns the named column or ErrUnknownColumn.
func (t DBTable) GetColumn(name string) (DBColumn, error) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, nil
		}
	}
	return DBColumn{}, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, name)
}

// PrimaryKey returns the first primary key column of the table.
func (t DBTable) PrimaryKey() (DBColumn, bool) {
	for _, c := range t.Columns {
		if c.IsPrimary() {
			return c, true
		}
	}
	return DBColumn{}, false
}

// DBRawColumn is a column row as returned by the catalog queries.
type DBRawColumn struct {
	Name     string
	Type     string
	Nullable string
	Key      string
	Default  sql.NullString
	Extra    string
}

// DBRelation is an outgoing foreign key of Table.
type DBRelation struct {
	Table         string
	Column        string
	ForeignTable  string
	ForeignColumn string
}

// NewDBColumn interprets a raw catalog row.
func NewDBColumn(raw DBRawColumn) DBColumn {
	col := DBColumn{
		Name:     raw.Name,
		Type:     logicalType(raw.Type),
		SQLType:  raw.Type,
		Required: strings.EqualFold(raw.Nullable, "NO"),
		Key:      KeyKind(strings.ToLower(raw.Key)),
		Extra:    strings.ToLower(raw.Extra),
	}
	if raw.Default.Valid {
		v := raw.Default.String
		col.Default = &v
	}
	return col
}

var numericTypes = map[string]bool{
	"int": true, "integer": true, "tinyint": true, "smallint": true,
	"mediumint": true, "bigint": true, "int2": true, "int4": true, "int8": true,
	"serial": true, "smallserial": true, "bigserial": true,
	"double": true, "float": true, "float4": true, "float8": true,
	"decimal": true, "dec": true, "numeric": true, "real": true,
}

// logicalType classifies a column by the words of its type name, so
// "int(11) unsigned" and "double precision" are numbers while point or
// interval are not.
func logicalType(sqlType string) ColumnType {
	t := strings.ToLower(sqlType)
	if i := strings.IndexByte(t, '('); i != -1 {
		t = t[:i]
	}
	words := strings.Fields(t)
	if len(words) == 0 {
		return TypeText
	}

	if base := words[0]; strings.HasPrefix(base, "timestamp") || strings.HasPrefix(base, "date") {
		return TypeTimestamp
	}
	for _, w := range words {
		if numericTypes[w] {
			return TypeNumber
		}
	}
	return TypeText
}
