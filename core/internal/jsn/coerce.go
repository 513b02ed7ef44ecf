package jsn

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cast"

	"github.com/sqlcollection/sqlcollection/core/internal/sdata"
)

// Coerce turns a value scanned from the store into a document value.
// Numbers become int64 or float64, timestamps become epoch seconds and
// text read as bytes becomes a string.
func Coerce(v any, typ sdata.ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch typ {
	case sdata.TypeNumber:
		return toNumber(v)

	case sdata.TypeTimestamp:
		if t, ok := v.(time.Time); ok {
			return t.Unix(), nil
		}
		t, err := cast.ToTimeInDefaultLocationE(v, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("timestamp: %w", err)
		}
		return t.Unix(), nil
	}
	return v, nil
}

func toNumber(v any) (any, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToInt64E(val)
	case float32:
		return float64(val), nil
	case float64:
		return val, nil
	case string:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n, nil
		}
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, fmt.Errorf("number: %w", err)
	}
	return f, nil
}
