package qcode

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type entry struct {
	Key string
	Val any
}

// entries walks a document in key order. bson.D keeps the caller's order,
// unordered maps are visited by sorted key.
func entries(doc any) ([]entry, error) {
	switch d := doc.(type) {
	case nil:
		return nil, nil

	case bson.D:
		es := make([]entry, 0, len(d))
		for _, e := range d {
			es = append(es, entry{Key: e.Key, Val: e.Value})
		}
		return es, nil

	case bson.M:
		return mapEntries(d), nil

	case map[string]any:
		return mapEntries(d), nil

	default:
		return nil, fmt.Errorf("%w: expected a document, got %T", ErrWrongParameter, doc)
	}
}

func mapEntries(m map[string]any) []entry {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	es := make([]entry, 0, len(keys))
	for _, k := range keys {
		es = append(es, entry{Key: k, Val: m[k]})
	}
	return es
}

func isDoc(v any) bool {
	switch v.(type) {
	case bson.D, bson.M, map[string]any:
		return true
	}
	return false
}

func list(v any) ([]any, error) {
	switch l := v.(type) {
	case bson.A:
		return l, nil
	case []any:
		return l, nil
	case []bson.D:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: expected a list, got %T", ErrWrongParameter, v)
}

// flatten turns nested documents into dot-path entries, keeping order.
func flatten(doc any) ([]entry, error) {
	var out []entry
	if err := flattenInto(&out, "", doc); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out *[]entry, prefix string, doc any) error {
	es, err := entries(doc)
	if err != nil {
		return err
	}
	for _, e := range es {
		key := joinPath(prefix, e.Key)
		if isDoc(e.Val) {
			if err := flattenInto(out, key, e.Val); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, entry{Key: key, Val: e.Val})
	}
	return nil
}

// ToMap converts a document into a plain map, recursively.
func ToMap(doc any) (map[string]any, error) {
	es, err := entries(doc)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any, len(es))
	for _, e := range es {
		if isDoc(e.Val) {
			if m[e.Key], err = ToMap(e.Val); err != nil {
				return nil, err
			}
			continue
		}
		m[e.Key] = e.Val
	}
	return m, nil
}
