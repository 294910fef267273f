package field_test

import (
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/syssam/stratum/schema/field"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt(t *testing.T) {
	fd := field.Int("age").
		Positive().
		Comment("comment").
		Descriptor()
	assert.Equal(t, "age", fd.Name)
	assert.Equal(t, field.TypeInt64, fd.Type)
	assert.Len(t, fd.Validators, 1)
	assert.Equal(t, "comment", fd.Comment)
	assert.False(t, fd.HasDefault())

	fd = field.Int64("age").
		Default(10).
		Min(10).
		Max(20).
		Descriptor()
	assert.True(t, fd.HasDefault())
	assert.Equal(t, int64(10), fd.Default)
	assert.Len(t, fd.Validators, 2)
	assert.NoError(t, fd.Validate(int64(15)))
	assert.EqualError(t, fd.Validate(int64(21)), "value out of range")
	assert.EqualError(t, fd.Validate(int64(9)), "value out of range")

	fd = field.Int64("age").Range(20, 40).Nillable().Descriptor()
	assert.Nil(t, fd.Default)
	assert.True(t, fd.Nillable)
	assert.Len(t, fd.Validators, 1)
	assert.NoError(t, fd.Validate(nil), "nil values are not validated")
	assert.NoError(t, fd.Validate(int64(40)))
	assert.Error(t, fd.Validate(int64(41)))

	fd = field.Int64("count").NonNegative().Descriptor()
	assert.NoError(t, fd.Validate(int64(0)))
	assert.Error(t, fd.Validate(int64(-1)))
	assert.EqualError(t, fd.Validate("1"), "validator expects int64, got string")
}

func TestFloat(t *testing.T) {
	fd := field.Float64("score").Comment("comment").Positive().Descriptor()
	assert.Equal(t, "score", fd.Name)
	assert.Equal(t, field.TypeFloat64, fd.Type)
	assert.Equal(t, "comment", fd.Comment)
	assert.Len(t, fd.Validators, 1)
	assert.Error(t, fd.Validate(0.0))
	assert.NoError(t, fd.Validate(0.1))

	fd = field.Float64("score").Default(0.5).Range(0, 1).Min(0.25).Max(0.75).Descriptor()
	assert.Equal(t, 0.5, fd.Default)
	assert.Len(t, fd.Validators, 3)
	assert.NoError(t, fd.Validate(0.5))
	assert.Error(t, fd.Validate(0.8))
}

func TestBool(t *testing.T) {
	fd := field.Bool("active").Default(true).Comment("comment").Descriptor()
	assert.Equal(t, "active", fd.Name)
	assert.Equal(t, field.TypeBool, fd.Type)
	assert.Equal(t, true, fd.Default)
	assert.Equal(t, "comment", fd.Comment)

	fd = field.Bool("deleted").Nillable().Validate(func(b bool) error {
		if b {
			return errors.New("deleted rows cannot be written")
		}
		return nil
	}).Descriptor()
	assert.True(t, fd.Nillable)
	assert.NoError(t, fd.Validate(false))
	assert.EqualError(t, fd.Validate(true), "deleted rows cannot be written")
}

func TestString(t *testing.T) {
	re := regexp.MustCompile("[a-zA-Z0-9]")
	fd := field.String("name").
		Match(re).
		Default("Rex").
		Comment("comment").
		Descriptor()
	assert.Equal(t, "name", fd.Name)
	assert.Equal(t, field.TypeString, fd.Type)
	assert.Equal(t, "Rex", fd.Default)
	assert.Equal(t, "comment", fd.Comment)
	assert.Len(t, fd.Validators, 1)
	assert.EqualError(t, fd.Validate("!!"), "value does not match validation")
	assert.EqualError(t, fd.Validate(1), "validator expects string, got int")

	tests := []struct {
		name  string
		field field.Field
		value string
		err   string
	}{
		{name: "NotEmpty", field: field.String("s").NotEmpty(), value: "", err: "value is less than the required length"},
		{name: "NotEmpty/OK", field: field.String("s").NotEmpty(), value: "a"},
		{name: "MinLen", field: field.String("s").MinLen(3), value: "ab", err: "value is less than the required length"},
		{name: "MinLen/Runes", field: field.String("s").MinLen(3), value: "日本語"},
		{name: "MaxLen", field: field.String("s").MaxLen(2), value: "abc", err: "value is greater than the required length"},
		{name: "MaxLen/Runes", field: field.String("s").MaxLen(3), value: "日本語"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Descriptor().Validate(tt.value)
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.err)
		})
	}
}

func TestTime(t *testing.T) {
	now := time.Now()
	fd := field.Time("created_at").
		Default(now).
		Comment("comment").
		Validate(func(ts time.Time) error {
			if ts.IsZero() {
				return errors.New("zero time")
			}
			return nil
		}).
		Descriptor()
	assert.Equal(t, "created_at", fd.Name)
	assert.Equal(t, field.TypeTime, fd.Type)
	assert.Equal(t, now, fd.Default)
	assert.NoError(t, fd.Validate(now))
	assert.EqualError(t, fd.Validate(time.Time{}), "zero time")
}

func TestUUID(t *testing.T) {
	id := uuid.New()
	fd := field.UUID("token").Default(id).Nillable().Descriptor()
	assert.Equal(t, field.TypeUUID, fd.Type)
	assert.Equal(t, id, fd.Default)
	assert.True(t, fd.Nillable)

	fd = field.UUID("token").Validate(func(u uuid.UUID) error {
		if u == uuid.Nil {
			return errors.New("nil uuid")
		}
		return nil
	}).Descriptor()
	assert.NoError(t, fd.Validate(id))
	assert.EqualError(t, fd.Validate(uuid.Nil), "nil uuid")
}

func TestSameAs(t *testing.T) {
	fd := field.Int64("id").
		SameAs("mandatories", "parent_id").
		SameAs("discretionaries", "parent_id").
		Descriptor()
	require.NoError(t, fd.Err)
	require.Len(t, fd.SameAs, 2)
	assert.Equal(t, field.Ref{Table: "mandatories", Column: "parent_id"}, fd.SameAs[0])
	assert.Equal(t, "discretionaries.parent_id", fd.SameAs[1].String())

	fd = field.String("name").SameAs("", "name").SameAs("parents", "").Descriptor()
	assert.EqualError(t, fd.Err, `field "name": same-as target must name a table and a column`)
	assert.Empty(t, fd.SameAs)
}

func TestUnsupportedValidator(t *testing.T) {
	fd := &field.Descriptor{Name: "x", Type: field.TypeInt64, Validators: []any{func(int) error { return nil }}}
	assert.EqualError(t, fd.Validate(int64(1)), "unsupported validator func(int) error")

	fd.Validators = []any{func(any) error { return errors.New("any") }}
	assert.EqualError(t, fd.Validate(int64(1)), "any")
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "int64", field.TypeInt64.String())
	assert.Equal(t, "time.Time", field.TypeTime.String())
	assert.Equal(t, "uuid.UUID", field.TypeUUID.String())
	assert.Equal(t, "invalid", field.TypeInvalid.String())
	assert.Equal(t, "invalid", field.Type(200).String())
}

func TestTypeNumeric(t *testing.T) {
	assert.True(t, field.TypeInt64.Numeric())
	assert.True(t, field.TypeFloat64.Numeric())
	assert.False(t, field.TypeString.Numeric())
	assert.False(t, field.TypeBool.Numeric())
}

func TestTypeValid(t *testing.T) {
	assert.True(t, field.TypeBool.Valid())
	assert.True(t, field.TypeUUID.Valid())
	assert.False(t, field.TypeInvalid.Valid())
	assert.False(t, field.Type(200).Valid())
}

func TestParseType(t *testing.T) {
	tests := map[string]field.Type{
		"bool":      field.TypeBool,
		"Boolean":   field.TypeBool,
		"int":       field.TypeInt64,
		" int64 ":   field.TypeInt64,
		"float":     field.TypeFloat64,
		"double":    field.TypeFloat64,
		"text":      field.TypeString,
		"timestamp": field.TypeTime,
		"uuid":      field.TypeUUID,
	}
	for s, want := range tests {
		got, err := field.ParseType(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	_, err := field.ParseType("json")
	assert.EqualError(t, err, `field: unknown type "json"`)
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		typ  field.Type
		in   any
		want any
		err  bool
	}{
		{name: "Nil", typ: field.TypeInt64, in: nil, want: nil},
		{name: "Int", typ: field.TypeInt64, in: 1, want: int64(1)},
		{name: "Int32", typ: field.TypeInt64, in: int32(7), want: int64(7)},
		{name: "Uint64", typ: field.TypeInt64, in: uint64(9), want: int64(9)},
		{name: "Uint64/Overflow", typ: field.TypeInt64, in: uint64(math.MaxUint64), err: true},
		{name: "Int/String", typ: field.TypeInt64, in: "1", err: true},
		{name: "Bool/Int64", typ: field.TypeBool, in: int64(1), want: true},
		{name: "Bool/Zero", typ: field.TypeBool, in: int64(0), want: false},
		{name: "Float/Int", typ: field.TypeFloat64, in: 2, want: 2.0},
		{name: "Float/Float32", typ: field.TypeFloat64, in: float32(0.5), want: 0.5},
		{name: "String/Bytes", typ: field.TypeString, in: []byte("abc"), want: "abc"},
		{name: "Time/SQLite", typ: field.TypeTime, in: "2024-05-01 10:30:00", want: ts},
		{name: "Time/RFC3339", typ: field.TypeTime, in: "2024-05-01T10:30:00Z", want: ts},
		{name: "Time/Invalid", typ: field.TypeTime, in: "yesterday", err: true},
		{name: "UUID/String", typ: field.TypeUUID, in: id.String(), want: id},
		{name: "UUID/Bytes", typ: field.TypeUUID, in: id[:], want: id},
		{name: "UUID/Text", typ: field.TypeUUID, in: []byte(id.String()), want: id},
		{name: "UUID/Array", typ: field.TypeUUID, in: [16]byte(id), want: id},
		{name: "UUID/Invalid", typ: field.TypeUUID, in: "not-a-uuid", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.typ.Normalize(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, field.Equal(tt.want, got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestEqual(t *testing.T) {
	ts := time.Now()
	assert.True(t, field.Equal(ts, ts.In(time.FixedZone("x", 3600))))
	assert.False(t, field.Equal(ts, ts.Add(time.Second)))
	assert.False(t, field.Equal(ts, "now"))
	assert.True(t, field.Equal(int64(1), int64(1)))
	assert.False(t, field.Equal(int64(1), 1))
}
