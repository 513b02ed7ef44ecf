package jsn

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// obj is a document under construction. Keys keep their first-set order.
type obj struct {
	keys []string
	vals map[string]any
}

type arr struct {
	items []*obj
}

func newObj() *obj {
	return &obj{vals: make(map[string]any)}
}

func (o *obj) put(key string, v any) {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

func (o *obj) child(key string) *obj {
	if c, ok := o.vals[key].(*obj); ok {
		return c
	}
	c := newObj()
	o.put(key, c)
	return c
}

func (o *obj) parent(path string) (*obj, string) {
	parts := strings.Split(path, ".")
	cur := o
	for _, p := range parts[:len(parts)-1] {
		cur = cur.child(p)
	}
	return cur, parts[len(parts)-1]
}

// set assigns v at a dot path, creating intermediate documents.
func (o *obj) set(path string, v any) {
	p, key := o.parent(path)
	p.put(key, v)
}

func (o *obj) array(path string) *arr {
	p, key := o.parent(path)
	if a, ok := p.vals[key].(*arr); ok {
		return a
	}
	a := &arr{}
	p.put(key, a)
	return a
}

// Map converts a document into nested maps and slices.
func Map(d bson.D) map[string]any {
	m := make(map[string]any, len(d))
	for _, e := range d {
		m[e.Key] = mapValue(e.Value)
	}
	return m
}

func mapValue(v any) any {
	switch val := v.(type) {
	case bson.D:
		return Map(val)
	case bson.A:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = mapValue(x)
		}
		return out
	}
	return v
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
