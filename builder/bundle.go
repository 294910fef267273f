package builder

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/store"
)

// Record is one written row. Records are immutable.
type Record struct {
	table  *schema.Table
	values store.Row
	key    []any
}

// NewRecord returns a record of t holding row, typically a row fetched from
// a store. Values are normalized to the column types.
func NewRecord(t *schema.Table, row store.Row) (*Record, error) {
	values := make(store.Row, len(row))
	for name, v := range row {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("builder: unknown column %q for %s", name, t.Name)
		}
		nv, err := c.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("builder: column %s: %w", c, err)
		}
		values[name] = nv
	}
	key := values.Key(t)
	for i, v := range key {
		if v == nil {
			return nil, fmt.Errorf("builder: record of %s has no value for key column %q", t.Name, t.PrimaryKey[i].Name)
		}
	}
	return &Record{table: t, values: values, key: key}, nil
}

// Table returns the table of the record.
func (r *Record) Table() *schema.Table { return r.table }

// Key returns the primary key of the record.
func (r *Record) Key() []any { return slices.Clone(r.key) }

// Get returns the value of a column.
func (r *Record) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Values returns a copy of the column values.
func (r *Record) Values() store.Row { return r.values.Clone() }

// String implements the fmt.Stringer interface.
func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteString(r.table.Name)
	sb.WriteByte('(')
	for i, c := range r.table.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", c.Name, r.values[c.Name])
	}
	sb.WriteByte(')')
	return sb.String()
}

// Bundle is the result of a successful insertion: the record of the target
// table, the records of its ancestors, and the rows referenced through
// triangular keys. Bundles are immutable.
type Bundle struct {
	table    *schema.Table
	lineage  []*Record // in write order; the last one is the target record.
	nested   map[*schema.Column]*Bundle
	existing map[*schema.Column]*Record
	order    []*Record
}

// Table returns the target table.
func (b *Bundle) Table() *schema.Table { return b.table }

// Record returns the record of the target table.
func (b *Bundle) Record() *Record { return b.lineage[len(b.lineage)-1] }

// Key returns the key shared by every record of the lineage.
func (b *Bundle) Key() []any { return b.Record().Key() }

// Get returns the value of a column of the target table or of one of its
// ancestors. Bare names are looked up in the target table first.
func (b *Bundle) Get(column string) (any, bool) {
	if tn, cn, ok := strings.Cut(column, "."); ok {
		r, ok := b.Ancestor(tn)
		if !ok {
			return nil, false
		}
		return r.Get(cn)
	}
	for _, r := range slices.Backward(b.lineage) {
		if v, ok := r.Get(column); ok {
			return v, true
		}
	}
	return nil, false
}

// Ancestor returns the record written for the named table of the lineage,
// including the target table itself.
func (b *Bundle) Ancestor(table string) (*Record, bool) {
	for _, r := range b.lineage {
		if r.table.Name == table {
			return r, true
		}
	}
	return nil, false
}

// Ancestors returns the records of the ancestor tables in write order.
func (b *Bundle) Ancestors() []*Record {
	return slices.Clone(b.lineage[:len(b.lineage)-1])
}

// Nested returns the bundle written through a triangular key column.
func (b *Bundle) Nested(column string) (*Bundle, bool) {
	c, ok := b.keyColumn(column)
	if !ok {
		return nil, false
	}
	n, ok := b.nested[c]
	return n, ok
}

// Referenced returns the record referenced through a triangular key column,
// whether it was written with the bundle or attached as an existing record.
func (b *Bundle) Referenced(column string) (*Record, bool) {
	c, ok := b.keyColumn(column)
	if !ok {
		return nil, false
	}
	if n, ok := b.nested[c]; ok {
		return n.Record(), true
	}
	r, ok := b.existing[c]
	return r, ok
}

// Records returns every record written by the insertion, in write order.
// Existing records referenced by the bundle are not included.
func (b *Bundle) Records() []*Record { return slices.Clone(b.order) }

func (b *Bundle) keyColumn(name string) (*schema.Column, bool) {
	tn, cn, qualified := strings.Cut(name, ".")
	for _, r := range slices.Backward(b.lineage) {
		if qualified && r.table.Name != tn {
			continue
		}
		if !qualified {
			cn = name
		}
		if c, ok := r.table.Column(cn); ok {
			return c, true
		}
	}
	return nil, false
}
