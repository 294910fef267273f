package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/stratum"
	"github.com/syssam/stratum/schema/edge"
	"github.com/syssam/stratum/schema/field"
	"github.com/syssam/stratum/schema/index"
)

// DefaultPrimaryKey is the primary key used by definitions that do not
// declare one.
var DefaultPrimaryKey = []string{"id"}

// Definition is the declaration of one table as supplied at startup.
type Definition struct {
	Name         string
	SurrogateKey bool     // The store generates the primary key.
	PrimaryKey   []string // Defaults to DefaultPrimaryKey.
	Ancestors    []string // Ordered ancestor tables.
	Fields       []field.Field
	Edges        []edge.Edge
	Indexes      []index.Index
	Comment      string
}

// Registry holds the immutable table descriptors of a schema.
type Registry struct {
	tables []*Table
	byName map[string]*Table
}

// Table is a named relation.
type Table struct {
	ID         int // Stable arena index, in declaration order.
	Name       string
	Columns    []*Column
	PrimaryKey []*Column
	Surrogate  bool
	Indexes    []*Index // Declared unique indices.
	Ancestors  []string // Declared ancestor names; resolved by the graph.
	Edges      []*edge.Descriptor
	Comment    string
	columns    map[string]*Column
}

// Column belongs to exactly one table.
type Column struct {
	Table    *Table
	Name     string
	Position int
	Type     field.Type
	Nullable bool
	Default  any // Normalized static default, nil if none.
	Comment  string
	SameAs   []field.Ref
	desc     *field.Descriptor
}

// Index is a unique tuple of columns within one table.
type Index struct {
	Name    string
	Table   *Table
	Columns []*Column
}

// NewRegistry resolves the given definitions. Structural defects are
// reported as *stratum.GraphError.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Table, len(defs))}
	for i, d := range defs {
		if d.Name == "" {
			return nil, stratum.NewGraphError(stratum.UnknownTable, fmt.Sprintf("#%d", i), "", "table name is empty")
		}
		if _, ok := r.byName[d.Name]; ok {
			return nil, stratum.NewGraphError(stratum.DuplicateName, d.Name, "", "table declared more than once")
		}
		t, err := newTable(i, d)
		if err != nil {
			return nil, err
		}
		r.tables = append(r.tables, t)
		r.byName[t.Name] = t
	}
	return r, nil
}

func newTable(id int, d Definition) (*Table, error) {
	t := &Table{
		ID:        id,
		Name:      d.Name,
		Surrogate: d.SurrogateKey,
		Ancestors: slices.Clone(d.Ancestors),
		Comment:   d.Comment,
		columns:   make(map[string]*Column, len(d.Fields)),
	}
	for _, f := range d.Fields {
		fd := f.Descriptor()
		if fd.Err != nil {
			return nil, &stratum.GraphError{Kind: stratum.InvalidDefault, Table: t.Name, Column: fd.Name, Msg: "invalid field declaration", Err: fd.Err}
		}
		if !fd.Type.Valid() {
			return nil, stratum.NewGraphError(stratum.UnknownColumn, t.Name, fd.Name, "invalid column type")
		}
		if _, ok := t.columns[fd.Name]; ok {
			return nil, stratum.NewGraphError(stratum.DuplicateName, t.Name, fd.Name, "column declared more than once")
		}
		c := &Column{
			Table:    t,
			Name:     fd.Name,
			Position: len(t.Columns),
			Type:     fd.Type,
			Nullable: fd.Nillable,
			Comment:  fd.Comment,
			SameAs:   slices.Clone(fd.SameAs),
			desc:     fd,
		}
		if fd.HasDefault() {
			v, err := fd.Type.Normalize(fd.Default)
			if err != nil {
				return nil, &stratum.GraphError{Kind: stratum.InvalidDefault, Table: t.Name, Column: c.Name, Msg: "default does not match column type", Err: err}
			}
			if err := fd.Validate(v); err != nil {
				return nil, &stratum.GraphError{Kind: stratum.InvalidDefault, Table: t.Name, Column: c.Name, Msg: "default never passes validation", Err: err}
			}
			c.Default = v
		}
		t.Columns = append(t.Columns, c)
		t.columns[c.Name] = c
	}
	pk := d.PrimaryKey
	if len(pk) == 0 {
		pk = DefaultPrimaryKey
	}
	for _, name := range pk {
		c, ok := t.columns[name]
		if !ok {
			return nil, stratum.NewGraphError(stratum.UnknownColumn, t.Name, name, "primary key column is not declared")
		}
		if c.Nullable {
			return nil, stratum.NewGraphError(stratum.InvalidEdge, t.Name, name, "primary key column cannot be nullable")
		}
		if slices.Contains(t.PrimaryKey, c) {
			return nil, stratum.NewGraphError(stratum.DuplicateName, t.Name, name, "column listed twice in primary key")
		}
		t.PrimaryKey = append(t.PrimaryKey, c)
	}
	if t.Surrogate && len(t.PrimaryKey) != 1 {
		return nil, stratum.NewGraphError(stratum.InvalidEdge, t.Name, "", "surrogate keys must be a single column")
	}
	for _, e := range d.Edges {
		ed := *e.Descriptor()
		t.Edges = append(t.Edges, &ed)
	}
	for _, ix := range d.Indexes {
		id := ix.Descriptor()
		if len(id.Fields) == 0 {
			return nil, stratum.NewGraphError(stratum.MissingIndex, t.Name, "", "index without columns")
		}
		idx := &Index{Name: id.Name, Table: t}
		for _, name := range id.Fields {
			c, ok := t.columns[name]
			if !ok {
				return nil, stratum.NewGraphError(stratum.UnknownColumn, t.Name, name, "index column is not declared")
			}
			idx.Columns = append(idx.Columns, c)
		}
		if idx.Name == "" {
			idx.Name = t.Name + "_" + strings.Join(id.Fields, "_") + "_key"
		}
		t.Indexes = append(t.Indexes, idx)
	}
	return t, nil
}

// Tables returns all tables in declaration order.
func (r *Registry) Tables() []*Table {
	return slices.Clone(r.tables)
}

// Table returns the table with the given name.
func (r *Registry) Table(name string) (*Table, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// MustTable is like Table but panics if the table does not exist.
func (r *Registry) MustTable(name string) *Table {
	t, ok := r.byName[name]
	if !ok {
		panic("schema: unknown table " + name)
	}
	return t
}

// Len returns the number of tables.
func (r *Registry) Len() int { return len(r.tables) }

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.columns[name]
	return c, ok
}

// String returns the table name.
func (t *Table) String() string { return t.Name }

// PrimaryKeyNames returns the names of the primary key columns.
func (t *Table) PrimaryKeyNames() []string {
	names := make([]string, len(t.PrimaryKey))
	for i, c := range t.PrimaryKey {
		names[i] = c.Name
	}
	return names
}

// InPrimaryKey reports if the column is part of its table's primary key.
func (c *Column) InPrimaryKey() bool {
	return slices.Contains(c.Table.PrimaryKey, c)
}

// Unique reports whether some unique tuple of the table (the primary key or
// a declared index) consists of exactly the given columns, in any order.
func (t *Table) Unique(cols ...*Column) bool {
	if sameSet(t.PrimaryKey, cols) {
		return true
	}
	for _, idx := range t.Indexes {
		if sameSet(idx.Columns, cols) {
			return true
		}
	}
	return false
}

func sameSet(a, b []*Column) bool {
	if len(a) != len(b) {
		return false
	}
	for _, c := range b {
		if !slices.Contains(a, c) {
			return false
		}
	}
	return true
}

// String returns the qualified column name.
func (c *Column) String() string { return c.Table.Name + "." + c.Name }

// HasDefault reports if the column declares a static default.
func (c *Column) HasDefault() bool { return c.Default != nil }

// Normalize converts v to the canonical representation of the column type.
func (c *Column) Normalize(v any) (any, error) {
	return c.Type.Normalize(v)
}

// Validate runs the column validators against a normalized value.
func (c *Column) Validate(v any) error {
	return c.desc.Validate(v)
}

// Check normalizes and validates v, reporting failures as *stratum.ValidationError.
func (c *Column) Check(v any) (any, error) {
	if v == nil {
		if !c.Nullable {
			return nil, stratum.NewValidationError(c.Table.Name, c.Name, stratum.ErrRequired)
		}
		return nil, nil
	}
	nv, err := c.Normalize(v)
	if err != nil {
		return nil, stratum.NewValidationError(c.Table.Name, c.Name, fmt.Errorf("%w: %v", stratum.ErrType, err))
	}
	if err := c.Validate(nv); err != nil {
		return nil, stratum.NewValidationError(c.Table.Name, c.Name, err)
	}
	return nv, nil
}
