package sql

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/stratum/dialect"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// ValidIdentifier reports if s can be used as a table or column name.
func ValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// Querier wraps the basic Query method implemented by the statement builders.
type Querier interface {
	// Query returns the statement and its arguments.
	Query() (string, []any)
}

// Builder is the base of the statement builders. It writes quoted
// identifiers and dialect specific placeholders.
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
}

// Quote quotes an identifier for the dialect of the builder. Qualified
// names are quoted part by part.
func (b *Builder) Quote(ident string) string {
	q := `"`
	if b.dialect == dialect.MySQL {
		q = "`"
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, ".")
}

// Ident writes a quoted identifier.
func (b *Builder) Ident(s string) *Builder {
	b.sb.WriteString(b.Quote(s))
	return b
}

// IdentComma writes a comma separated list of quoted identifiers.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Ident(s[i])
	}
	return b
}

// WriteString writes a raw string.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Arg writes a placeholder and records its argument.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	if b.dialect == dialect.Postgres {
		b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
	} else {
		b.sb.WriteByte('?')
	}
	return b
}

// Args writes a comma separated list of placeholders.
func (b *Builder) Args(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Arg(v)
	}
	return b
}

// Query implements the Querier interface.
func (b *Builder) Query() (string, []any) {
	return b.sb.String(), b.args
}

// DialectBuilder creates statement builders for one dialect.
type DialectBuilder struct {
	dialect string
}

// Dialect returns a new DialectBuilder for the given dialect name.
//
//	query, args := sql.Dialect(dialect.Postgres).
//		Select("id", "name").
//		From("users").
//		Where(sql.EQ("id", 1)).
//		Query()
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// Insert creates an InsertBuilder for the given table.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{Builder: Builder{dialect: d.dialect}, table: table}
}

// Select creates a Selector for the given columns.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return &Selector{Builder: Builder{dialect: d.dialect}, columns: columns}
}

// Delete creates a DeleteBuilder for the given table.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{Builder: Builder{dialect: d.dialect}, table: table}
}

// InsertBuilder builds an INSERT statement of one row.
type InsertBuilder struct {
	Builder
	table     string
	columns   []string
	values    []any
	returning []string
}

// Set appends a column and its value.
func (i *InsertBuilder) Set(column string, v any) *InsertBuilder {
	i.columns = append(i.columns, column)
	i.values = append(i.values, v)
	return i
}

// Returning adds the RETURNING clause to the statement. It is ignored by
// dialects that do not support it.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns the statement and its arguments.
func (i *InsertBuilder) Query() (string, []any) {
	i.WriteString("INSERT INTO ").Ident(i.table)
	switch {
	case len(i.columns) > 0:
		i.WriteString(" (").IdentComma(i.columns...).WriteString(") VALUES (").Args(i.values...).WriteString(")")
	case i.dialect == dialect.MySQL:
		i.WriteString(" VALUES ()")
	default:
		i.WriteString(" DEFAULT VALUES")
	}
	if len(i.returning) > 0 && i.dialect != dialect.MySQL {
		i.WriteString(" RETURNING ").IdentComma(i.returning...)
	}
	return i.Builder.Query()
}

// Predicate is a condition of a WHERE clause.
type Predicate func(*Builder)

// EQ returns a "column = value" predicate.
func EQ(column string, v any) Predicate {
	return func(b *Builder) {
		b.Ident(column).WriteString(" = ").Arg(v)
	}
}

// And combines predicates with the AND operator.
func And(preds ...Predicate) Predicate {
	return func(b *Builder) {
		for i, p := range preds {
			if i > 0 {
				b.WriteString(" AND ")
			}
			p(b)
		}
	}
}

// Selector builds a SELECT statement.
type Selector struct {
	Builder
	columns []string
	table   string
	where   Predicate
}

// From sets the table of the statement.
func (s *Selector) From(table string) *Selector {
	s.table = table
	return s
}

// Where sets the condition of the statement.
func (s *Selector) Where(p Predicate) *Selector {
	s.where = p
	return s
}

// Query returns the statement and its arguments.
func (s *Selector) Query() (string, []any) {
	s.WriteString("SELECT ")
	if len(s.columns) == 0 {
		s.WriteString("*")
	} else {
		s.IdentComma(s.columns...)
	}
	s.WriteString(" FROM ").Ident(s.table)
	if s.where != nil {
		s.WriteString(" WHERE ")
		s.where(&s.Builder)
	}
	return s.Builder.Query()
}

// DeleteBuilder builds a DELETE statement.
type DeleteBuilder struct {
	Builder
	table string
	where Predicate
}

// Where sets the condition of the statement.
func (d *DeleteBuilder) Where(p Predicate) *DeleteBuilder {
	d.where = p
	return d
}

// Query returns the statement and its arguments.
func (d *DeleteBuilder) Query() (string, []any) {
	d.WriteString("DELETE FROM ").Ident(d.table)
	if d.where != nil {
		d.WriteString(" WHERE ")
		d.where(&d.Builder)
	}
	return d.Builder.Query()
}
