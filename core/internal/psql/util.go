package psql

import (
	"fmt"

	"github.com/sqlcollection/sqlcollection/core/internal/qcode"
	"github.com/sqlcollection/sqlcollection/core/internal/sdata"
)

func (c *compilerContext) table(t sdata.DBTable) {
	c.quoted(t.Name)
	c.w.WriteString(` AS `)
	c.quoted(t.Alias)
}

func (c *compilerContext) colWithTable(table, col string) {
	c.quoted(table)
	c.w.WriteString(`.`)
	c.quoted(col)
}

func (c *compilerContext) quoted(identifier string) {
	c.w.WriteString(c.dialect.QuoteIdentifier(identifier))
}

func (c *compilerContext) renderParam(v any) {
	c.args = append(c.args, v)
	c.w.WriteString(c.dialect.BindVar(len(c.args)))
}

func (c *compilerContext) renderJoins(joins []qcode.Join) {
	for _, j := range joins {
		c.w.WriteString(` LEFT JOIN `)
		c.table(j.To)
		c.w.WriteString(` ON `)
		c.colWithTable(j.From.Alias, j.FromCol.Name)
		c.w.WriteString(` = `)
		c.colWithTable(j.To.Alias, j.ToCol.Name)
	}
}

func (c *compilerContext) renderWhere(ex *qcode.Exp) {
	if ex.IsEmpty() {
		return
	}
	c.w.WriteString(` WHERE `)
	c.renderExp(ex)
}

// renderKeyIn restricts the root table to the keys of the rows matching
// the filter once the joins it references are applied.
func (c *compilerContext) renderKeyIn(root sdata.DBTable, joins []qcode.Join, ex *qcode.Exp) {
	pk, ok := root.PrimaryKey()
	if !ok {
		c.err = fmt.Errorf("%w: filtering %s through lookups needs a primary key",
			qcode.ErrBadRequest, root.Name)
		return
	}

	c.colWithTable(root.Alias, pk.Name)
	c.w.WriteString(` IN (SELECT `)
	c.colWithTable(root.Alias, pk.Name)
	c.w.WriteString(` FROM `)
	c.table(root)
	c.renderJoins(neededJoins(joins, ex.Tables()))
	c.w.WriteString(` WHERE `)
	c.renderExp(ex)
	c.w.WriteString(`)`)
}

// neededJoins returns, in order, the joins reaching any of the given
// table aliases including the joins they hang off.
func neededJoins(joins []qcode.Join, tables map[string]struct{}) []qcode.Join {
	need := make(map[string]struct{})
	for t := range tables {
		for {
			j, ok := qcode.JoinFor(joins, t)
			if !ok {
				break
			}
			need[j.As] = struct{}{}
			t = j.From.Alias
		}
	}

	var out []qcode.Join
	for _, j := range joins {
		if _, ok := need[j.As]; ok {
			out = append(out, j)
		}
	}
	return out
}

func filterInMultiple(joins []qcode.Join, ex *qcode.Exp) bool {
	if ex.IsEmpty() {
		return false
	}
	for t := range ex.Tables() {
		if qcode.InMultiple(joins, t) {
			return true
		}
	}
	return false
}
