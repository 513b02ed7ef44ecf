package core

import (
	"fmt"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// FindOptions configures Collection.Find. Lookup and AutoLookup are
// mutually exclusive.
type FindOptions struct {
	Projection any
	Lookup     []Lookup
	AutoLookup int
}

func Find() *FindOptions {
	return &FindOptions{}
}

func (o *FindOptions) SetProjection(p any) *FindOptions {
	o.Projection = p
	return o
}

func (o *FindOptions) SetLookup(l []Lookup) *FindOptions {
	o.Lookup = l
	return o
}

func (o *FindOptions) SetAutoLookup(depth int) *FindOptions {
	o.AutoLookup = depth
	return o
}

// InsertOneOptions configures Collection.InsertOne. Simple lookups let the
// document carry a related key as a nested document.
type InsertOneOptions struct {
	Lookup []Lookup
}

type UpdateOptions struct {
	// Upsert is not supported and is rejected when set
	Upsert     bool
	Lookup     []Lookup
	AutoLookup int
}

type DeleteOptions struct {
	Lookup     []Lookup
	AutoLookup int
}

type DescribeOptions struct {
	// AutoLookup nests the description of related tables up to this depth
	AutoLookup int
}

func mergeFindOptions(opts []*FindOptions) FindOptions {
	var o FindOptions
	for _, op := range opts {
		if op == nil {
			continue
		}
		if op.Projection != nil {
			o.Projection = op.Projection
		}
		if op.Lookup != nil {
			o.Lookup = op.Lookup
		}
		if op.AutoLookup != 0 {
			o.AutoLookup = op.AutoLookup
		}
	}
	return o
}

// ParseSort reads a sort given as [[key, dir], ...] or as an ordered
// document {key: dir, ...}
func ParseSort(v any) ([]SortKey, error) {
	var keys []SortKey

	switch val := v.(type) {
	case nil:
		return nil, nil

	case bson.D:
		for _, e := range val {
			dir, err := cast.ToIntE(e.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: sort %s: %v", ErrWrongParameter, e.Key, err)
			}
			keys = append(keys, SortKey{Key: e.Key, Dir: dir})
		}

	case bson.A:
		for _, item := range val {
			pair, ok := item.(bson.A)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("%w: sort entries must be [key, direction]", ErrWrongParameter)
			}
			key, ok := pair[0].(string)
			if !ok {
				return nil, fmt.Errorf("%w: sort key must be a string", ErrWrongParameter)
			}
			dir, err := cast.ToIntE(pair[1])
			if err != nil {
				return nil, fmt.Errorf("%w: sort %s: %v", ErrWrongParameter, key, err)
			}
			keys = append(keys, SortKey{Key: key, Dir: dir})
		}

	default:
		return nil, fmt.Errorf("%w: sort must be an array or a document", ErrWrongParameter)
	}
	return keys, nil
}
