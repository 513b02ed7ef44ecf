package qcode

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sqlcollection/sqlcollection/core/internal/sdata"
)

// castValue converts a document value into a bind value for col.
// Numbers bound to timestamp columns are epoch seconds.
func castValue(col sdata.DBColumn, v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, time.Time:
	case bson.DateTime:
		return val.Time().UTC(), nil
	case bson.A, []any, bson.D, bson.M, map[string]any:
		return nil, fmt.Errorf("%w: unsupported value %T for %s", ErrWrongParameter, v, col.Name)
	}

	if col.Type == sdata.TypeTimestamp && isNumber(v) {
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrWrongParameter, col.Name, err)
		}
		whole := math.Floor(secs)
		return time.Unix(int64(whole), int64((secs-whole)*1e9)).UTC(), nil
	}
	return v, nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// toInt accepts any integral number, including whole floats that JSON
// decoding produces.
func toInt(v any) (int, bool) {
	if !isNumber(v) {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
