package qcode

import (
	"context"
	"errors"
	"strings"

	"github.com/sqlcollection/sqlcollection/core/internal/sdata"
)

var (
	ErrWrongParameter = errors.New("wrong parameter")
	ErrMissingField   = errors.New("missing field")
	ErrBadRequest     = errors.New("bad request")
)

type Cardinality string

const (
	CardSimple   Cardinality = "simple"
	CardMultiple Cardinality = "multiple"
)

type Order int8

const (
	OrderAsc Order = iota + 1
	OrderDesc
)

type ExpOp int8

const (
	OpNop ExpOp = iota
	OpAnd
	OpOr
	OpEquals
	OpNotEquals
	OpGreaterThan
	OpGreaterOrEquals
	OpLesserThan
	OpLesserOrEquals
	OpRegex
)

func (op ExpOp) String() string {
	switch op {
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpEquals:
		return "="
	case OpNotEquals:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterOrEquals:
		return ">="
	case OpLesserThan:
		return "<"
	case OpLesserOrEquals:
		return "<="
	case OpRegex:
		return "regex"
	}
	return "nop"
}

// Field is a column exposed in the result document under a dot-path alias.
// Table holds the SQL alias of the table the column is read from.
type Field struct {
	Table   string
	Col     sdata.DBColumn
	Alias   string
	Display bool
}

// Join attaches To (aliased by As) to the already joined table From.
type Join struct {
	From    sdata.DBTable
	To      sdata.DBTable
	FromCol sdata.DBColumn
	ToCol   sdata.DBColumn
	As      string
	Type    Cardinality
}

// Exp is a filter node. And/Or nodes carry Children; every other operator
// is a leaf comparing Field against Val.
type Exp struct {
	Op       ExpOp
	Field    Field
	Val      any
	Children []*Exp
}

func newExpOp(op ExpOp) *Exp {
	return &Exp{Op: op}
}

// IsEmpty reports whether the tree holds no comparison at all.
func (ex *Exp) IsEmpty() bool {
	if ex == nil {
		return true
	}
	switch ex.Op {
	case OpNop:
		return true
	case OpAnd, OpOr:
		for _, c := range ex.Children {
			if !c.IsEmpty() {
				return false
			}
		}
		return true
	}
	return false
}

// Tables returns the table aliases referenced by the leaves of the tree.
func (ex *Exp) Tables() map[string]struct{} {
	m := make(map[string]struct{})
	ex.tables(m)
	return m
}

func (ex *Exp) tables(m map[string]struct{}) {
	if ex == nil {
		return
	}
	switch ex.Op {
	case OpNop:
	case OpAnd, OpOr:
		for _, c := range ex.Children {
			c.tables(m)
		}
	default:
		m[ex.Field.Table] = struct{}{}
	}
}

type OrderBy struct {
	Field Field
	Order Order
}

type Paging struct {
	Limit  int
	Offset int
}

type Select struct {
	Table   sdata.DBTable
	Fields  []Field
	Joins   []Join
	Where   *Exp
	OrderBy []OrderBy
	Paging  Paging
}

type Insert struct {
	Table   sdata.DBTable
	Columns []sdata.DBColumn
	Values  []any
}

// Assign is one column update of an Update statement.
type Assign struct {
	Col sdata.DBColumn
	Val any
}

type Update struct {
	Table  sdata.DBTable
	Fields []Field
	Joins  []Join
	Set    []Assign
	Where  *Exp
}

type Delete struct {
	Table  sdata.DBTable
	Fields []Field
	Joins  []Join
	Where  *Exp
}

// Schema is the part of the catalog the compiler depends on.
type Schema interface {
	Table(ctx context.Context, name, alias string, root bool) (sdata.DBTable, error)
	Relations(ctx context.Context, table string) ([]sdata.DBRelation, error)
}

type Config struct {
	DefaultLimit  int
	MaxDepth      int
	StrictFilters bool
}

type Compiler struct {
	s Schema
	c Config
}

func NewCompiler(s Schema, c Config) *Compiler {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 100
	}
	return &Compiler{s: s, c: c}
}

// Field returns the field with the given alias.
func (sel *Select) Field(alias string) (Field, bool) {
	return findField(sel.Fields, alias)
}

// HasMultiple reports whether any join is one-to-many.
func (sel *Select) HasMultiple() bool {
	for _, j := range sel.Joins {
		if j.Type == CardMultiple {
			return true
		}
	}
	return false
}

// JoinFor returns the join a table alias was introduced by.
func JoinFor(joins []Join, alias string) (Join, bool) {
	for _, j := range joins {
		if j.As == alias {
			return j, true
		}
	}
	return Join{}, false
}

func findField(fields []Field, alias string) (Field, bool) {
	for _, f := range fields {
		if f.Alias == alias {
			return f, true
		}
	}
	return Field{}, false
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func hasPathPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+".")
}
