package psql

import (
	"github.com/sqlcollection/sqlcollection/core/internal/qcode"
	"github.com/sqlcollection/sqlcollection/core/internal/util"
)

// renderExp writes a filter tree. Empty branches are left out and nested
// combinators are parenthesized.
func (c *compilerContext) renderExp(ex *qcode.Exp) {
	st := util.NewStackInf()
	st.Push(ex)

	for {
		if st.Len() == 0 {
			break
		}

		intf := st.Pop()

		switch val := intf.(type) {
		case int32:
			switch val {
			case '(':
				c.w.WriteString(`(`)
			case ')':
				c.w.WriteString(`)`)
			}

		case qcode.ExpOp:
			switch val {
			case qcode.OpAnd:
				c.w.WriteString(` AND `)
			case qcode.OpOr:
				c.w.WriteString(` OR `)
			}

		case *qcode.Exp:
			if val == nil {
				continue
			}
			switch val.Op {
			case qcode.OpNop:

			case qcode.OpAnd, qcode.OpOr:
				children := nonEmpty(val.Children)
				if val != ex {
					st.Push(')')
				}
				for i := len(children) - 1; i >= 0; i-- {
					st.Push(children[i])
					if i > 0 {
						st.Push(val.Op)
					}
				}
				if val != ex {
					st.Push('(')
				}

			default:
				c.renderOp(val)
			}
		}
	}
}

func (c *compilerContext) renderOp(ex *qcode.Exp) {
	c.colWithTable(ex.Field.Table, ex.Field.Col.Name)

	if ex.Val == nil {
		switch ex.Op {
		case qcode.OpEquals:
			c.w.WriteString(` IS NULL`)
			return
		case qcode.OpNotEquals:
			c.w.WriteString(` IS NOT NULL`)
			return
		}
	}

	op, err := c.dialect.RenderOp(ex.Op)
	if err != nil {
		c.err = err
		return
	}
	c.w.WriteString(` `)
	c.w.WriteString(op)
	c.w.WriteString(` `)
	c.renderParam(ex.Val)
}

func nonEmpty(exps []*qcode.Exp) []*qcode.Exp {
	out := make([]*qcode.Exp, 0, len(exps))
	for _, ex := range exps {
		if !ex.IsEmpty() {
			out = append(out, ex)
		}
	}
	return out
}
