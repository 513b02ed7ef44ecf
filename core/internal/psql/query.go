package psql

import (
	"bytes"
	"fmt"

	"github.com/sqlcollection/sqlcollection/core/internal/dialect"
	"github.com/sqlcollection/sqlcollection/core/internal/qcode"
)

// Stmt is a rendered statement with its positional arguments.
type Stmt struct {
	SQL  string
	Args []any

	// Returning is set when an insert reads back the generated primary key.
	Returning bool

	// Columns and Grouping describe the rows of a select.
	Columns  []Column
	Grouping Grouping
}

type compilerContext struct {
	w    *bytes.Buffer
	args []any
	err  error
	*Compiler
}

type Compiler struct {
	dialect dialect.Dialect
}

func NewCompiler(d dialect.Dialect) *Compiler {
	return &Compiler{dialect: d}
}

func (co *Compiler) GetDialect() dialect.Dialect {
	return co.dialect
}

func (co *Compiler) newContext() *compilerContext {
	return &compilerContext{w: &bytes.Buffer{}, Compiler: co}
}

func (c *compilerContext) stmt() (Stmt, error) {
	if c.err != nil {
		return Stmt{}, c.err
	}
	return Stmt{SQL: c.w.String(), Args: c.args}, nil
}

// CompileSelect renders a select in two levels. The inner query picks the
// page of root rows, the outer one joins every lookup onto it so limit and
// skip count documents rather than joined rows.
func (co *Compiler) CompileSelect(sel *qcode.Select) (Stmt, error) {
	g, err := GroupingFor(sel)
	if err != nil {
		return Stmt{}, err
	}
	cols := Columns(sel, g)
	if len(cols) == 0 {
		return Stmt{}, fmt.Errorf("%w: projection leaves no field to select", qcode.ErrWrongParameter)
	}

	c := co.newContext()
	c.w.WriteString(`SELECT `)
	for i, col := range cols {
		if i != 0 {
			c.w.WriteString(`, `)
		}
		c.colWithTable(col.Table, col.Col.Name)
		c.w.WriteString(` AS `)
		c.w.WriteString(c.dialect.QuoteAlias(col.Alias))
	}

	c.w.WriteString(` FROM (`)
	c.renderInner(sel, true)
	c.w.WriteString(`) AS `)
	c.quoted(sel.Table.Alias)
	c.renderJoins(sel.Joins)

	if filterInMultiple(sel.Joins, sel.Where) {
		c.w.WriteString(` WHERE `)
		c.renderExp(sel.Where)
	}

	c.renderOrderBy(sel)

	st, err := c.stmt()
	st.Columns = cols
	st.Grouping = g
	return st, err
}

// CompileCount renders a count of the root documents matched by sel,
// optionally bounded by its limit and skip.
func (co *Compiler) CompileCount(sel *qcode.Select, withPaging bool) (Stmt, error) {
	c := co.newContext()
	c.w.WriteString(`SELECT COUNT(*) FROM (`)
	c.renderInner(sel, withPaging)
	c.w.WriteString(`) AS `)
	c.quoted("A1")
	return c.stmt()
}

// renderInner selects the root rows matching the filter. Joins are only
// added when the filter or the sort needs them. A filter reaching into a
// one-to-many join is moved into a key subquery so a root row never
// repeats.
func (c *compilerContext) renderInner(sel *qcode.Select, paging bool) {
	root := sel.Table

	c.w.WriteString(`SELECT `)
	c.quoted(root.Alias)
	c.w.WriteString(`.* FROM `)
	c.table(root)

	sortTables := make(map[string]struct{})
	if paging {
		for _, ob := range sel.OrderBy {
			sortTables[ob.Field.Table] = struct{}{}
		}
	}

	if filterInMultiple(sel.Joins, sel.Where) {
		c.renderJoins(neededJoins(sel.Joins, sortTables))
		c.w.WriteString(` WHERE `)
		c.renderKeyIn(sel.Table, sel.Joins, sel.Where)
	} else {
		tables := sel.Where.Tables()
		for t := range sortTables {
			tables[t] = struct{}{}
		}
		c.renderJoins(neededJoins(sel.Joins, tables))
		c.renderWhere(sel.Where)
	}

	if !paging {
		return
	}

	c.renderOrderBy(sel)
	c.w.WriteString(` LIMIT `)
	c.renderParam(sel.Paging.Limit)
	c.w.WriteString(` OFFSET `)
	c.renderParam(sel.Paging.Offset)
}

// renderOrderBy writes the sort keys followed by the root primary key,
// which keeps pages stable and the rows of one document together.
func (c *compilerContext) renderOrderBy(sel *qcode.Select) {
	var i int
	sep := func() {
		if i == 0 {
			c.w.WriteString(` ORDER BY `)
		} else {
			c.w.WriteString(`, `)
		}
		i++
	}

	for _, ob := range sel.OrderBy {
		sep()
		c.colWithTable(ob.Field.Table, ob.Field.Col.Name)
		switch ob.Order {
		case qcode.OrderDesc:
			c.w.WriteString(` DESC`)
		default:
			c.w.WriteString(` ASC`)
		}
	}

	pk, ok := sel.Table.PrimaryKey()
	if !ok {
		return
	}
	for _, ob := range sel.OrderBy {
		if ob.Field.Table == sel.Table.Alias && ob.Field.Col.Name == pk.Name {
			return
		}
	}
	sep()
	c.colWithTable(sel.Table.Alias, pk.Name)
	c.w.WriteString(` ASC`)
}
