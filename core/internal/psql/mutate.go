package psql

import (
	"github.com/sqlcollection/sqlcollection/core/internal/qcode"
)

func (co *Compiler) CompileInsert(ins *qcode.Insert) (Stmt, error) {
	c := co.newContext()

	c.w.WriteString(`INSERT INTO `)
	c.quoted(ins.Table.Name)

	if len(ins.Columns) == 0 {
		c.w.WriteString(c.dialect.DefaultValues())
	} else {
		c.w.WriteString(` (`)
		for i, col := range ins.Columns {
			if i != 0 {
				c.w.WriteString(`, `)
			}
			c.quoted(col.Name)
		}
		c.w.WriteString(`) VALUES (`)
		for i, v := range ins.Values {
			if i != 0 {
				c.w.WriteString(`, `)
			}
			c.renderParam(v)
		}
		c.w.WriteString(`)`)
	}

	var returning bool
	if pk, ok := ins.Table.PrimaryKey(); ok && c.dialect.SupportsReturning() {
		c.w.WriteString(` RETURNING `)
		c.quoted(pk.Name)
		returning = true
	}

	st, err := c.stmt()
	st.Returning = returning
	return st, err
}

// CompileUpdate renders an update of the root table. Stores that can join
// in an update get the joins inline, the others select the keys to update
// in a subquery.
func (co *Compiler) CompileUpdate(upd *qcode.Update) (Stmt, error) {
	c := co.newContext()
	joins := neededJoins(upd.Joins, upd.Where.Tables())
	inline := len(joins) == 0 || c.dialect.SupportsJoinMutation()

	c.w.WriteString(`UPDATE `)
	if len(joins) != 0 && inline {
		c.table(upd.Table)
		c.renderJoins(joins)
	} else {
		c.quoted(upd.Table.Name)
	}

	c.w.WriteString(` SET `)
	for i, a := range upd.Set {
		if i != 0 {
			c.w.WriteString(`, `)
		}
		if len(joins) != 0 && inline {
			c.colWithTable(upd.Table.Alias, a.Col.Name)
		} else {
			c.quoted(a.Col.Name)
		}
		c.w.WriteString(` = `)
		c.renderParam(a.Val)
	}

	c.w.WriteString(` WHERE `)
	if inline {
		c.renderExp(upd.Where)
	} else {
		c.renderKeyIn(upd.Table, upd.Joins, upd.Where)
	}
	return c.stmt()
}

func (co *Compiler) CompileDelete(del *qcode.Delete) (Stmt, error) {
	c := co.newContext()
	joins := neededJoins(del.Joins, del.Where.Tables())

	switch {
	case len(joins) == 0:
		c.w.WriteString(`DELETE FROM `)
		c.quoted(del.Table.Name)
		c.w.WriteString(` WHERE `)
		c.renderExp(del.Where)

	case c.dialect.SupportsJoinMutation():
		c.w.WriteString(`DELETE `)
		c.quoted(del.Table.Alias)
		c.w.WriteString(` FROM `)
		c.table(del.Table)
		c.renderJoins(joins)
		c.w.WriteString(` WHERE `)
		c.renderExp(del.Where)

	default:
		c.w.WriteString(`DELETE FROM `)
		c.quoted(del.Table.Name)
		c.w.WriteString(` WHERE `)
		c.renderKeyIn(del.Table, del.Joins, del.Where)
	}
	return c.stmt()
}
