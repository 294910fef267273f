package builder

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/syssam/stratum"
	"github.com/syssam/stratum/graph"
	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/schema/field"
)

// State is the state of one column value in a builder.
type State uint8

// Column value states.
const (
	Unset      State = iota // No value; falls back to a default or fails as required.
	Explicit                // Set by the caller.
	Propagated              // Copied from another column through vertical same-as.
	Defaulted               // Static default applied during resolution.
	Bound                   // Supplied by another row; never set by the caller.
)

var stateNames = [...]string{
	Unset:      "unset",
	Explicit:   "explicit",
	Propagated: "propagated",
	Defaulted:  "defaulted",
	Bound:      "bound",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// ErrNotValidated is returned when a builder is created on a graph that did
// not pass validation.
var ErrNotValidated = errors.New("builder: relationship graph is not validated")

// Builder accumulates the column values of one logical record spanning the
// lineage of its table: one bundle of cells per table, plus nested builders
// and existing records attached through triangular keys.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	g       *graph.Graph
	table   *schema.Table
	lineage []*schema.Table
	bundles map[int]*bundle // by table ID.
	err     error           // first error recorded by Set.

	// Set when the builder is nested under a host through a triangular edge.
	host   *Builder
	pushed map[*schema.Column]*graph.Binding
}

type bundle struct {
	table  *schema.Table
	cells  []cell // by column position.
	nested map[*schema.Column]*attachment
}

type cell struct {
	state State
	value any
	// ref names the column of the same builder the value is copied from,
	// when that value is only known while executing.
	ref *schema.Column
}

func (c cell) known() bool {
	return c.ref == nil && (c.state == Explicit || c.state == Propagated || c.state == Defaulted)
}

// New returns a builder for the named table.
func New(g *graph.Graph, table string) (*Builder, error) {
	if !g.Validated() {
		return nil, ErrNotValidated
	}
	t, ok := g.Table(table)
	if !ok {
		return nil, stratum.NewGraphError(stratum.UnknownTable, table, "", "table is not registered")
	}
	b := &Builder{
		g:       g,
		table:   t,
		lineage: g.Lineage(t),
		bundles: make(map[int]*bundle),
	}
	for _, lt := range b.lineage {
		b.bundles[lt.ID] = &bundle{
			table:  lt,
			cells:  make([]cell, len(lt.Columns)),
			nested: make(map[*schema.Column]*attachment),
		}
	}
	return b, nil
}

// MustNew is like New but panics on error.
func MustNew(g *graph.Graph, table string) *Builder {
	b, err := New(g, table)
	if err != nil {
		panic(err)
	}
	return b
}

// Table returns the target table of the builder.
func (b *Builder) Table() *schema.Table { return b.table }

// Lineage returns the tables the builder writes itself, in write order.
func (b *Builder) Lineage() []*schema.Table { return slices.Clone(b.lineage) }

// Err returns the first error recorded by Set.
func (b *Builder) Err() error { return b.err }

// Set sets the value of a column and returns the builder for chaining. The
// first failure is recorded and returned by Resolve and Insert; later calls
// are ignored once an error is recorded.
func (b *Builder) Set(column string, v any) *Builder {
	if b.err == nil {
		b.err = b.TrySet(column, v)
	}
	return b
}

// TrySet sets the value of a column. The column is either a bare name,
// looked up in the builder's own table first and then in its ancestors, or a
// qualified "table.column" name. The value is normalized and validated
// against the column and every column bound to it through vertical same-as.
// On error the builder is left unchanged and remains usable.
func (b *Builder) TrySet(column string, v any) error {
	c, err := b.column(column)
	if err != nil {
		return err
	}
	if c.InPrimaryKey() {
		return b.setKey(c, v)
	}
	if b.boundBy(c) != notBound {
		return &stratum.BoundColumnError{Table: c.Table.Name, Column: c.Name}
	}
	group := b.group(c)
	for _, m := range group[1:] {
		if b.boundBy(m) != notBound {
			return &stratum.BoundColumnError{Table: c.Table.Name, Column: c.Name}
		}
	}
	values := make([]any, len(group))
	for i, m := range group {
		nv, err := m.Check(v)
		if err != nil {
			return err
		}
		values[i] = nv
	}
	for i, m := range group[1:] {
		if cl := b.cell(m); cl.state == Explicit && !field.Equal(cl.value, values[i+1]) {
			return &stratum.PropagationConflictError{Table: m.Table.Name, Column: m.Name, Existing: cl.value, Incoming: values[i+1]}
		}
	}
	b.setCell(c, cell{state: Explicit, value: values[0]})
	for i, m := range group[1:] {
		if b.cell(m).state != Explicit {
			b.setCell(m, cell{state: Propagated, value: values[i+1]})
		}
	}
	return nil
}

// setKey sets one position of the key shared by the whole lineage. The value
// is stored on the root tables; descendant key columns follow them.
func (b *Builder) setKey(c *schema.Column, v any) error {
	pos := slices.Index(c.Table.PrimaryKey, c)
	roots := b.g.Roots(b.table)
	values := make([]any, len(roots))
	for i, r := range roots {
		if r.Surrogate {
			return &stratum.BoundColumnError{Table: c.Table.Name, Column: c.Name}
		}
		nv, err := r.PrimaryKey[pos].Check(v)
		if err != nil {
			return err
		}
		values[i] = nv
	}
	for i, r := range roots {
		b.setCell(r.PrimaryKey[pos], cell{state: Explicit, value: values[i]})
	}
	return nil
}

// Get returns the value currently held for a column, if it is known before
// execution.
func (b *Builder) Get(column string) (any, bool) {
	c, err := b.column(column)
	if err != nil {
		return nil, false
	}
	if c.InPrimaryKey() {
		c = b.rootKey(c)
	}
	if cl := b.cell(c); cl.known() {
		return cl.value, true
	}
	return nil, false
}

// State returns the state of a column value.
func (b *Builder) State(column string) (State, error) {
	c, err := b.column(column)
	if err != nil {
		return Unset, err
	}
	if b.boundBy(c) == boundAncestor {
		c = b.rootKey(c)
	}
	if b.boundBy(c) != notBound {
		return Bound, nil
	}
	cl := b.cell(c)
	if cl.ref != nil {
		return Bound, nil
	}
	return cl.state, nil
}

// Clone returns a deep copy of the builder. Nested builders are copied;
// attached existing records are shared since they are immutable.
func (b *Builder) Clone() *Builder {
	return b.clone(b.host)
}

func (b *Builder) clone(host *Builder) *Builder {
	c := &Builder{
		g:       b.g,
		table:   b.table,
		lineage: b.lineage,
		bundles: make(map[int]*bundle, len(b.bundles)),
		err:     b.err,
		host:    host,
		pushed:  maps.Clone(b.pushed),
	}
	for id, bd := range b.bundles {
		nb := &bundle{
			table:  bd.table,
			cells:  slices.Clone(bd.cells),
			nested: make(map[*schema.Column]*attachment, len(bd.nested)),
		}
		for k, a := range bd.nested {
			na := *a
			if a.builder != nil {
				na.builder = a.builder.clone(c)
			}
			nb.nested[k] = &na
		}
		c.bundles[id] = nb
	}
	return c
}

// column resolves a bare or qualified column name within the lineage.
func (b *Builder) column(name string) (*schema.Column, error) {
	if tn, cn, ok := strings.Cut(name, "."); ok {
		for _, t := range b.lineage {
			if t.Name == tn {
				if c, ok := t.Column(cn); ok {
					return c, nil
				}
			}
		}
		return nil, &stratum.UnknownColumnError{Table: b.table.Name, Column: name}
	}
	if c, ok := b.table.Column(name); ok {
		return c, nil
	}
	var found *schema.Column
	for _, t := range b.lineage {
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		if found != nil {
			return nil, &stratum.UnknownColumnError{Table: b.table.Name, Column: name, Ambiguous: true}
		}
		found = c
	}
	if found == nil {
		return nil, &stratum.UnknownColumnError{Table: b.table.Name, Column: name}
	}
	return found, nil
}

func (b *Builder) cell(c *schema.Column) cell {
	return b.bundles[c.Table.ID].cells[c.Position]
}

func (b *Builder) setCell(c *schema.Column, cl cell) {
	b.bundles[c.Table.ID].cells[c.Position] = cl
}

// inLineage reports if t is written by the builder itself.
func (b *Builder) inLineage(t *schema.Table) bool {
	_, ok := b.bundles[t.ID]
	return ok
}

// rootKey maps a key column of any lineage table to the same position of
// the first root's key.
func (b *Builder) rootKey(c *schema.Column) *schema.Column {
	pos := slices.Index(c.Table.PrimaryKey, c)
	return b.g.Roots(b.table)[0].PrimaryKey[pos]
}

type boundKind uint8

const (
	notBound       boundKind = iota
	boundAncestor            // descendant key column, copied from its first ancestor.
	boundGenerated           // surrogate key, generated by the store.
	boundPushed              // column receiving the key of the host builder.
	boundKey                 // triangular key column.
	boundMirror              // horizontal mirror column.
)

// boundBy reports why a column is bound, if it is.
func (b *Builder) boundBy(c *schema.Column) boundKind {
	switch {
	case c.InPrimaryKey() && len(b.g.Ancestors(c.Table)) > 0:
		return boundAncestor
	case c.InPrimaryKey() && c.Table.Surrogate:
		return boundGenerated
	case b.pushed[c] != nil:
		return boundPushed
	}
	if _, ok := b.g.Triangular(c); ok {
		return boundKey
	}
	if _, ok := b.g.Mirror(c); ok {
		return boundMirror
	}
	return notBound
}
