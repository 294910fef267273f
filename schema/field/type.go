package field

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// A Type represents the semantic value type of a column.
type Type uint8

// List of column types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt64
	TypeFloat64
	TypeString
	TypeTime
	TypeUUID
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeInt64:   "int64",
	TypeFloat64: "float64",
	TypeString:  "string",
	TypeTime:    "time.Time",
	TypeUUID:    "uuid.UUID",
}

// String returns the Go type name of the column type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type is a known type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	return t == TypeInt64 || t == TypeFloat64
}

// ParseType parses the textual form used by schema files ("int64", "int",
// "string", "text", "bool", "float64", "float", "time", "uuid").
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bool", "boolean":
		return TypeBool, nil
	case "int", "int64", "integer":
		return TypeInt64, nil
	case "float", "float64", "double":
		return TypeFloat64, nil
	case "string", "text":
		return TypeString, nil
	case "time", "time.time", "timestamp":
		return TypeTime, nil
	case "uuid", "uuid.uuid":
		return TypeUUID, nil
	default:
		return TypeInvalid, fmt.Errorf("field: unknown type %q", s)
	}
}

// sqliteTimeLayouts are the layouts drivers use when returning timestamps as text.
var sqliteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Normalize converts v into the canonical Go representation of t. Nil passes
// through unchanged; nullability is checked by the caller.
func (t Type) Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeBool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case int64:
			// SQLite stores booleans as integers.
			return v != 0, nil
		}
	case TypeInt64:
		switch v := v.(type) {
		case int:
			return int64(v), nil
		case int8:
			return int64(v), nil
		case int16:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case uint8:
			return int64(v), nil
		case uint16:
			return int64(v), nil
		case uint32:
			return int64(v), nil
		case uint:
			if uint64(v) <= math.MaxInt64 {
				return int64(v), nil
			}
		case uint64:
			if v <= math.MaxInt64 {
				return int64(v), nil
			}
		}
	case TypeFloat64:
		switch v := v.(type) {
		case float32:
			return float64(v), nil
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
	case TypeString:
		switch v := v.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case TypeTime:
		switch v := v.(type) {
		case time.Time:
			return v, nil
		case string:
			for _, layout := range sqliteTimeLayouts {
				if ts, err := time.Parse(layout, v); err == nil {
					return ts, nil
				}
			}
		}
	case TypeUUID:
		switch v := v.(type) {
		case uuid.UUID:
			return v, nil
		case [16]byte:
			return uuid.UUID(v), nil
		case string:
			if u, err := uuid.Parse(v); err == nil {
				return u, nil
			}
		case []byte:
			if len(v) == 16 {
				return uuid.FromBytes(v)
			}
			if u, err := uuid.ParseBytes(v); err == nil {
				return u, nil
			}
		}
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, t)
}

// Equal reports whether two normalized values of the same type are equal.
func Equal(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}
