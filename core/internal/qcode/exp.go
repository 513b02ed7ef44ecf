package qcode

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var compOps = map[string]ExpOp{
	"$eq":    OpEquals,
	"$ne":    OpNotEquals,
	"$gt":    OpGreaterThan,
	"$gte":   OpGreaterOrEquals,
	"$lt":    OpLesserThan,
	"$lte":   OpLesserOrEquals,
	"$regex": OpRegex,
}

type expCompiler struct {
	fields  []Field
	byAlias map[string]Field
	strict  bool
}

// compileFilter builds the filter tree of a document against the resolved
// fields. The result is always an And node, possibly empty.
func (co *Compiler) compileFilter(doc any, fields []Field) (*Exp, error) {
	ec := expCompiler{
		fields:  fields,
		byAlias: make(map[string]Field, len(fields)),
		strict:  co.c.StrictFilters,
	}
	for _, f := range fields {
		ec.byAlias[f.Alias] = f
	}
	return ec.compile(doc, "", nil, OpAnd)
}

// compile handles one level of a filter document. Inside a field's operator
// document parent is that field; prefix is set while walking a nested
// document addressed by a dot-path prefix.
func (ec *expCompiler) compile(doc any, prefix string, parent *Field, op ExpOp) (*Exp, error) {
	es, err := entries(doc)
	if err != nil {
		return nil, err
	}

	ex := newExpOp(op)

	for _, e := range es {
		if e.Key == "$and" || e.Key == "$or" {
			c, err := ec.combinator(e, prefix, parent)
			if err != nil {
				return nil, err
			}
			ex.Children = append(ex.Children, c)
			continue
		}

		if parent != nil {
			cop, ok := compOps[e.Key]
			if !ok {
				if err := ec.unknown(parent.Alias + "." + e.Key); err != nil {
					return nil, err
				}
				continue
			}
			leaf, err := ec.leaf(*parent, cop, e.Val)
			if err != nil {
				return nil, err
			}
			ex.Children = append(ex.Children, leaf)
			continue
		}

		path := joinPath(prefix, e.Key)
		f, ok := ec.byAlias[path]

		switch {
		case ok && isDoc(e.Val):
			c, err := ec.compile(e.Val, "", &f, OpAnd)
			if err != nil {
				return nil, err
			}
			ex.Children = append(ex.Children, c)

		case ok:
			leaf, err := ec.leaf(f, OpEquals, e.Val)
			if err != nil {
				return nil, err
			}
			ex.Children = append(ex.Children, leaf)

		case isDoc(e.Val) && ec.isPrefix(path):
			c, err := ec.compile(e.Val, path, nil, OpAnd)
			if err != nil {
				return nil, err
			}
			ex.Children = append(ex.Children, c)

		default:
			if err := ec.unknown(path); err != nil {
				return nil, err
			}
		}
	}
	return ex, nil
}

func (ec *expCompiler) combinator(e entry, prefix string, parent *Field) (*Exp, error) {
	items, err := list(e.Val)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Key, err)
	}

	op := OpAnd
	if e.Key == "$or" {
		op = OpOr
	}

	ex := newExpOp(op)
	for _, item := range items {
		c, err := ec.compile(item, prefix, parent, OpAnd)
		if err != nil {
			return nil, err
		}
		ex.Children = append(ex.Children, c)
	}
	return ex, nil
}

func (ec *expCompiler) leaf(f Field, op ExpOp, v any) (*Exp, error) {
	if re, ok := v.(bson.Regex); ok {
		if op != OpEquals && op != OpRegex {
			return nil, fmt.Errorf("%w: %s: regex value with %s", ErrWrongParameter, f.Alias, op)
		}
		return &Exp{Op: OpRegex, Field: f, Val: re.Pattern}, nil
	}

	if op == OpRegex {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: $regex expects a string", ErrWrongParameter, f.Alias)
		}
		return &Exp{Op: OpRegex, Field: f, Val: s}, nil
	}

	val, err := castValue(f.Col, v)
	if err != nil {
		return nil, err
	}
	return &Exp{Op: op, Field: f, Val: val}, nil
}

func (ec *expCompiler) isPrefix(path string) bool {
	for _, f := range ec.fields {
		if strings.HasPrefix(f.Alias, path+".") {
			return true
		}
	}
	return false
}

// unknown keys are skipped unless strict filters are on.
func (ec *expCompiler) unknown(key string) error {
	if ec.strict {
		return fmt.Errorf("%w: unknown filter key %q", ErrWrongParameter, key)
	}
	return nil
}
