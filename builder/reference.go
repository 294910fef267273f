package builder

import (
	"errors"
	"fmt"

	"github.com/syssam/stratum"
	"github.com/syssam/stratum/graph"
	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/schema/edge"
	"github.com/syssam/stratum/schema/field"
)

// ErrNotTriangular is returned when a nested builder or record is attached
// through a column that does not declare a triangular edge.
var ErrNotTriangular = errors.New("builder: column is not a triangular key")

// attachment is the row referenced through one triangular key: either a
// nested builder written with the host, or an existing record.
type attachment struct {
	edge    *graph.Triangular
	builder *Builder
	record  *Record
}

// SetMandatory attaches the builder of the row referenced by a mandatory
// triangular key. The nested builder is copied; later changes to it are not
// seen by b. The key of the host is pushed into the nested builder's
// same-as bound columns.
func (b *Builder) SetMandatory(column string, nested *Builder) error {
	return b.attach(column, edge.Mandatory, nested)
}

// SetDiscretionary attaches the builder of a new row referenced by a
// discretionary triangular key.
func (b *Builder) SetDiscretionary(column string, nested *Builder) error {
	return b.attach(column, edge.Discretionary, nested)
}

// SetDiscretionaryRecord references an existing row through a discretionary
// triangular key. Mirrored columns are read from rec; the shared-key
// constraint of the edge is not enforced.
func (b *Builder) SetDiscretionaryRecord(column string, rec *Record) error {
	e, err := b.triangular(column, edge.Discretionary)
	if err != nil {
		return err
	}
	if rec == nil || rec.Table() != e.Target {
		return fmt.Errorf("builder: %s references %s records", e.Key, e.Target.Name)
	}
	for _, m := range e.Mirrors {
		v, _ := rec.Get(m.Target.Name)
		if _, err := m.Column.Check(v); err != nil {
			return err
		}
	}
	b.bundles[e.Host.ID].nested[e.Key] = &attachment{edge: e, record: rec}
	return nil
}

// Nested returns a copy of the builder attached through a triangular key.
func (b *Builder) Nested(column string) (*Builder, bool) {
	c, err := b.column(column)
	if err != nil {
		return nil, false
	}
	a := b.bundles[c.Table.ID].nested[c]
	if a == nil || a.builder == nil {
		return nil, false
	}
	return a.builder.clone(nil), true
}

func (b *Builder) triangular(column string, kind edge.Kind) (*graph.Triangular, error) {
	c, err := b.column(column)
	if err != nil {
		return nil, err
	}
	e, ok := b.g.Triangular(c)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotTriangular, c)
	}
	if e.Kind != kind {
		return nil, fmt.Errorf("builder: %s is a %s reference", c, e.Kind)
	}
	return e, nil
}

func (b *Builder) attach(column string, kind edge.Kind, nested *Builder) error {
	e, err := b.triangular(column, kind)
	if err != nil {
		return err
	}
	if nested == nil || nested.table != e.Target {
		return fmt.Errorf("builder: %s references %s rows", e.Key, e.Target.Name)
	}
	if nested.err != nil {
		return nested.err
	}
	n := nested.clone(b)
	if n.pushed == nil {
		n.pushed = make(map[*schema.Column]*graph.Binding)
	}
	for _, p := range e.Pushes {
		host, known := b.keyValue(p.Column)
		group := n.group(p.Target)
		for _, m := range group {
			cl := n.cell(m)
			if cl.state != Explicit {
				continue
			}
			if !known || !field.Equal(cl.value, host) {
				return &stratum.PropagationConflictError{Table: m.Table.Name, Column: m.Name, Existing: cl.value, Incoming: host}
			}
		}
		n.pushed[p.Target] = p
		n.setCell(p.Target, cell{})
		for _, m := range group[1:] {
			n.setCell(m, cell{state: Propagated, ref: p.Target})
		}
	}
	for _, m := range e.Mirrors {
		cl := n.cell(m.Target)
		if !cl.known() {
			continue
		}
		if _, err := m.Column.Check(cl.value); err != nil {
			return err
		}
	}
	b.bundles[e.Host.ID].nested[e.Key] = &attachment{edge: e, builder: n}
	return nil
}

// keyValue returns the value of a key column when the caller supplied it.
func (b *Builder) keyValue(c *schema.Column) (any, bool) {
	cl := b.cell(b.rootKey(c))
	return cl.value, cl.state == Explicit
}
