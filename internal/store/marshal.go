package store

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/dynquery/internal/schema"
)

// timeLayouts are the text forms a time column may come back in. The
// second is what go-sqlite3 writes for time.Time values.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Encode converts a fixture value to the Go type written for f's column.
// Times are stored in UTC; uuids are written in their canonical text form.
func Encode(f schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	out, err := convert(f.Type, v)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return out, nil
}

// Decode converts a scanned column value to the Go type of t: string,
// int64, float64, bool, or time.Time. uuid columns decode to their text
// form. An empty t only turns []byte into string.
func Decode(t schema.FieldType, raw any) (any, error) {
	if b, ok := raw.([]byte); ok {
		if t == schema.TypeUUID && len(b) == 16 {
			return uuid.UUID(b).String(), nil
		}
		raw = string(b)
	}
	if raw == nil || t == "" {
		return raw, nil
	}
	return convert(t, raw)
}

func convert(t schema.FieldType, v any) (any, error) {
	switch t {
	case schema.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case schema.TypeInt:
		return toInt(v)
	case schema.TypeFloat:
		return toFloat(v)
	case schema.TypeBool:
		return toBool(v)
	case schema.TypeTime:
		return toTime(v)
	case schema.TypeUUID:
		return toUUID(v)
	default:
		return nil, fmt.Errorf("unsupported type %q", t)
	}
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case int:
		return b != 0, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("expected boolean, got %q", b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("expected RFC 3339 time, got %q", t)
	default:
		return time.Time{}, fmt.Errorf("expected time, got %T", v)
	}
}

func toUUID(v any) (string, error) {
	switch id := v.(type) {
	case uuid.UUID:
		return id.String(), nil
	case [16]byte:
		return uuid.UUID(id).String(), nil
	case string:
		parsed, err := uuid.Parse(id)
		if err != nil {
			return "", fmt.Errorf("expected uuid, got %q", id)
		}
		return parsed.String(), nil
	default:
		return "", fmt.Errorf("expected uuid, got %T", v)
	}
}
