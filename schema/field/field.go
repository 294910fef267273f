package field

import (
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Field is the interface implemented by all field builders.
type Field interface {
	Descriptor() *Descriptor
}

// Ref names a column of another table.
type Ref struct {
	Table  string
	Column string
}

// String returns the qualified column name.
func (r Ref) String() string { return r.Table + "." + r.Column }

// A Descriptor for field configuration.
type Descriptor struct {
	Name       string // column name.
	Type       Type   // semantic value type.
	Nillable   bool   // nullable column.
	Default    any    // static default value.
	Comment    string // column comment.
	Validators []any  // typed validator functions.
	SameAs     []Ref  // same-as bindings.
	Err        error  // first declaration error.
}

// HasDefault reports if the field declares a static default.
func (d *Descriptor) HasDefault() bool { return d.Default != nil }

// Validate runs all validators of the field against a normalized value.
// Nil values are not validated.
func (d *Descriptor) Validate(v any) error {
	if v == nil {
		return nil
	}
	for _, fn := range d.Validators {
		var err error
		switch fn := fn.(type) {
		case func(string) error:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("validator expects string, got %T", v)
			}
			err = fn(s)
		case func(int64) error:
			n, ok := v.(int64)
			if !ok {
				return fmt.Errorf("validator expects int64, got %T", v)
			}
			err = fn(n)
		case func(float64) error:
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("validator expects float64, got %T", v)
			}
			err = fn(f)
		case func(bool) error:
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("validator expects bool, got %T", v)
			}
			err = fn(b)
		case func(time.Time) error:
			ts, ok := v.(time.Time)
			if !ok {
				return fmt.Errorf("validator expects time.Time, got %T", v)
			}
			err = fn(ts)
		case func(uuid.UUID) error:
			u, ok := v.(uuid.UUID)
			if !ok {
				return fmt.Errorf("validator expects uuid.UUID, got %T", v)
			}
			err = fn(u)
		case func(any) error:
			err = fn(v)
		default:
			return fmt.Errorf("unsupported validator %T", fn)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Descriptor) sameAs(table, column string) {
	if table == "" || column == "" {
		d.err(errors.New("same-as target must name a table and a column"))
		return
	}
	d.SameAs = append(d.SameAs, Ref{Table: table, Column: column})
}

func (d *Descriptor) err(err error) {
	if d.Err == nil {
		d.Err = fmt.Errorf("field %q: %w", d.Name, err)
	}
}

// String returns a new Field with type string.
func String(name string) *stringBuilder {
	return &stringBuilder{&Descriptor{Name: name, Type: TypeString}}
}

// Int64 returns a new Field with type int64.
func Int64(name string) *int64Builder {
	return &int64Builder{&Descriptor{Name: name, Type: TypeInt64}}
}

// Int is an alias of Int64; every integer column is stored as int64.
func Int(name string) *int64Builder { return Int64(name) }

// Float64 returns a new Field with type float64.
func Float64(name string) *float64Builder {
	return &float64Builder{&Descriptor{Name: name, Type: TypeFloat64}}
}

// Bool returns a new Field with type bool.
func Bool(name string) *boolBuilder {
	return &boolBuilder{&Descriptor{Name: name, Type: TypeBool}}
}

// Time returns a new Field with type time.Time.
func Time(name string) *timeBuilder {
	return &timeBuilder{&Descriptor{Name: name, Type: TypeTime}}
}

// UUID returns a new Field with type uuid.UUID.
func UUID(name string) *uuidBuilder {
	return &uuidBuilder{&Descriptor{Name: name, Type: TypeUUID}}
}

// stringBuilder is the builder for string fields.
type stringBuilder struct {
	desc *Descriptor
}

// Nillable indicates that this field is a nullable column.
func (b *stringBuilder) Nillable() *stringBuilder {
	b.desc.Nillable = true
	return b
}

// Default sets the static default value of the field.
func (b *stringBuilder) Default(s string) *stringBuilder {
	b.desc.Default = s
	return b
}

// Comment sets the comment of the field.
func (b *stringBuilder) Comment(c string) *stringBuilder {
	b.desc.Comment = c
	return b
}

// SameAs binds the field to a column of an ancestor table or of a table
// reached through a triangular edge.
func (b *stringBuilder) SameAs(table, column string) *stringBuilder {
	b.desc.sameAs(table, column)
	return b
}

// Validate adds a validator for this field.
func (b *stringBuilder) Validate(fn func(string) error) *stringBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// NotEmpty adds a length validator for this field.
// Operation fails if the length of the string is zero.
func (b *stringBuilder) NotEmpty() *stringBuilder {
	return b.MinLen(1)
}

// MinLen adds a length validator for this field.
// Operation fails if the length of the string is less than the given value.
func (b *stringBuilder) MinLen(i int) *stringBuilder {
	return b.Validate(func(v string) error {
		if utf8.RuneCountInString(v) < i {
			return errors.New("value is less than the required length")
		}
		return nil
	})
}

// MaxLen adds a length validator for this field.
// Operation fails if the length of the string is greater than the given value.
func (b *stringBuilder) MaxLen(i int) *stringBuilder {
	return b.Validate(func(v string) error {
		if utf8.RuneCountInString(v) > i {
			return errors.New("value is greater than the required length")
		}
		return nil
	})
}

// Match adds a regex matcher for this field.
// Operation fails if the regex fails.
func (b *stringBuilder) Match(re *regexp.Regexp) *stringBuilder {
	return b.Validate(func(v string) error {
		if !re.MatchString(v) {
			return errors.New("value does not match validation")
		}
		return nil
	})
}

// Descriptor implements the Field interface by returning its descriptor.
func (b *stringBuilder) Descriptor() *Descriptor {
	return b.desc
}

// int64Builder is the builder for integer fields.
type int64Builder struct {
	desc *Descriptor
}

// Nillable indicates that this field is a nullable column.
func (b *int64Builder) Nillable() *int64Builder {
	b.desc.Nillable = true
	return b
}

// Default sets the static default value of the field.
func (b *int64Builder) Default(i int64) *int64Builder {
	b.desc.Default = i
	return b
}

// Comment sets the comment of the field.
func (b *int64Builder) Comment(c string) *int64Builder {
	b.desc.Comment = c
	return b
}

// SameAs binds the field to a column of an ancestor table or of a table
// reached through a triangular edge.
func (b *int64Builder) SameAs(table, column string) *int64Builder {
	b.desc.sameAs(table, column)
	return b
}

// Validate adds a validator for this field.
func (b *int64Builder) Validate(fn func(int64) error) *int64Builder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Range adds a range validator for this field where the given value needs to be in the range of [i, j].
func (b *int64Builder) Range(i, j int64) *int64Builder {
	return b.Validate(func(v int64) error {
		if v < i || v > j {
			return errors.New("value out of range")
		}
		return nil
	})
}

// Min adds a minimum value validator for this field.
func (b *int64Builder) Min(i int64) *int64Builder {
	return b.Validate(func(v int64) error {
		if v < i {
			return errors.New("value out of range")
		}
		return nil
	})
}

// Max adds a maximum value validator for this field.
func (b *int64Builder) Max(i int64) *int64Builder {
	return b.Validate(func(v int64) error {
		if v > i {
			return errors.New("value out of range")
		}
		return nil
	})
}

// Positive adds a minimum value validator with the value of 1.
func (b *int64Builder) Positive() *int64Builder {
	return b.Min(1)
}

// NonNegative adds a minimum value validator with the value of 0.
func (b *int64Builder) NonNegative() *int64Builder {
	return b.Min(0)
}

// Descriptor implements the Field interface by returning its descriptor.
func (b *int64Builder) Descriptor() *Descriptor {
	return b.desc
}

// float64Builder is the builder for float fields.
type float64Builder struct {
	desc *Descriptor
}

// Nillable indicates that this field is a nullable column.
func (b *float64Builder) Nillable() *float64Builder {
	b.desc.Nillable = true
	return b
}

// Default sets the static default value of the field.
func (b *float64Builder) Default(f float64) *float64Builder {
	b.desc.Default = f
	return b
}

// Comment sets the comment of the field.
func (b *float64Builder) Comment(c string) *float64Builder {
	b.desc.Comment = c
	return b
}

// SameAs binds the field to a column of an ancestor table or of a table
// reached through a triangular edge.
func (b *float64Builder) SameAs(table, column string) *float64Builder {
	b.desc.sameAs(table, column)
	return b
}

// Validate adds a validator for this field.
func (b *float64Builder) Validate(fn func(float64) error) *float64Builder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Range adds a range validator for this field where the given value needs to be in the range of [i, j].
func (b *float64Builder) Range(i, j float64) *float64Builder {
	return b.Validate(func(v float64) error {
		if v < i || v > j {
			return errors.New("value out of range")
		}
		return nil
	})
}

// Min adds a minimum value validator for this field.
func (b *float64Builder) Min(i float64) *float64Builder {
	return b.Validate(func(v float64) error {
		if v < i {
			return errors.New("value out of range")
		}
		return nil
	})
}

// Max adds a maximum value validator for this field.
func (b *float64Builder) Max(i float64) *float64Builder {
	return b.Validate(func(v float64) error {
		if v > i {
			return errors.New("value out of range")
		}
		return nil
	})
}

// Positive adds a validator that rejects values less than or equal to zero.
func (b *float64Builder) Positive() *float64Builder {
	return b.Validate(func(v float64) error {
		if v <= 0 {
			return errors.New("value out of range")
		}
		return nil
	})
}

// Descriptor implements the Field interface by returning its descriptor.
func (b *float64Builder) Descriptor() *Descriptor {
	return b.desc
}

// boolBuilder is the builder for boolean fields.
type boolBuilder struct {
	desc *Descriptor
}

// Nillable indicates that this field is a nullable column.
func (b *boolBuilder) Nillable() *boolBuilder {
	b.desc.Nillable = true
	return b
}

// Default sets the static default value of the field.
func (b *boolBuilder) Default(v bool) *boolBuilder {
	b.desc.Default = v
	return b
}

// Comment sets the comment of the field.
func (b *boolBuilder) Comment(c string) *boolBuilder {
	b.desc.Comment = c
	return b
}

// SameAs binds the field to a column of another table.
func (b *boolBuilder) SameAs(table, column string) *boolBuilder {
	b.desc.sameAs(table, column)
	return b
}

// Validate adds a validator for this field.
func (b *boolBuilder) Validate(fn func(bool) error) *boolBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Descriptor implements the Field interface by returning its descriptor.
func (b *boolBuilder) Descriptor() *Descriptor {
	return b.desc
}

// timeBuilder is the builder for time fields.
type timeBuilder struct {
	desc *Descriptor
}

// Nillable indicates that this field is a nullable column.
func (b *timeBuilder) Nillable() *timeBuilder {
	b.desc.Nillable = true
	return b
}

// Default sets the static default value of the field.
func (b *timeBuilder) Default(t time.Time) *timeBuilder {
	b.desc.Default = t
	return b
}

// Comment sets the comment of the field.
func (b *timeBuilder) Comment(c string) *timeBuilder {
	b.desc.Comment = c
	return b
}

// SameAs binds the field to a column of another table.
func (b *timeBuilder) SameAs(table, column string) *timeBuilder {
	b.desc.sameAs(table, column)
	return b
}

// Validate adds a validator for this field.
func (b *timeBuilder) Validate(fn func(time.Time) error) *timeBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Descriptor implements the Field interface by returning its descriptor.
func (b *timeBuilder) Descriptor() *Descriptor {
	return b.desc
}

// uuidBuilder is the builder for UUID fields.
type uuidBuilder struct {
	desc *Descriptor
}

// Nillable indicates that this field is a nullable column.
func (b *uuidBuilder) Nillable() *uuidBuilder {
	b.desc.Nillable = true
	return b
}

// Default sets the static default value of the field.
func (b *uuidBuilder) Default(u uuid.UUID) *uuidBuilder {
	b.desc.Default = u
	return b
}

// Comment sets the comment of the field.
func (b *uuidBuilder) Comment(c string) *uuidBuilder {
	b.desc.Comment = c
	return b
}

// SameAs binds the field to a column of another table.
func (b *uuidBuilder) SameAs(table, column string) *uuidBuilder {
	b.desc.sameAs(table, column)
	return b
}

// Validate adds a validator for this field.
func (b *uuidBuilder) Validate(fn func(uuid.UUID) error) *uuidBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Descriptor implements the Field interface by returning its descriptor.
func (b *uuidBuilder) Descriptor() *Descriptor {
	return b.desc
}
