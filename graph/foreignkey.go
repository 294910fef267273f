package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/stratum/schema"
)

// ForeignKey is a referential constraint implied by the graph: the values of
// Columns in a row of Table must match RefColumns of some row of Ref.
type ForeignKey struct {
	Table      *schema.Table
	Columns    []*schema.Column
	Ref        *schema.Table
	RefColumns []*schema.Column
}

// String returns a readable description of the constraint.
func (fk *ForeignKey) String() string {
	return fmt.Sprintf("(%s) references %s(%s)", columnNames(fk.Columns), fk.Ref.Name, columnNames(fk.RefColumns))
}

func columnNames(cols []*schema.Column) string {
	s := make([]string, len(cols))
	for i, c := range cols {
		s[i] = c.Name
	}
	return strings.Join(s, ", ")
}

// ForeignKeys returns the constraints t must satisfy:
//
//   - the primary key references the primary key of every direct ancestor.
//   - the key column of a triangular edge references the target primary key.
//   - host and target columns of a mirror binding, and of a push binding on a
//     mandatory edge, are checked as a pair with the edge key.
//   - a vertical binding is checked as a pair with the primary key.
//
// Discretionary pushes are not constrained: the host value only flows into
// a referenced row created by the same insertion.
func (g *Graph) ForeignKeys(t *schema.Table) []*ForeignKey {
	var fks []*ForeignKey
	for _, a := range g.Ancestors(t) {
		fks = append(fks, &ForeignKey{Table: t, Columns: t.PrimaryKey, Ref: a, RefColumns: a.PrimaryKey})
	}
	for _, e := range g.Triangulars(t) {
		target := e.Target.PrimaryKey[0]
		fks = append(fks, &ForeignKey{Table: t, Columns: []*schema.Column{e.Key}, Ref: e.Target, RefColumns: []*schema.Column{target}})
		bindings := e.Mirrors
		if e.Mandatory() {
			bindings = append(slices.Clone(e.Pushes), e.Mirrors...)
		}
		for _, b := range bindings {
			fks = append(fks, &ForeignKey{
				Table:      t,
				Columns:    []*schema.Column{e.Key, b.Column},
				Ref:        e.Target,
				RefColumns: []*schema.Column{target, b.Target},
			})
		}
	}
	for _, c := range t.Columns {
		for _, b := range g.Vertical(c) {
			a := b.Target.Table
			fks = append(fks, &ForeignKey{
				Table:      t,
				Columns:    append(slices.Clone(t.PrimaryKey), c),
				Ref:        a,
				RefColumns: append(slices.Clone(a.PrimaryKey), b.Target),
			})
		}
	}
	return fks
}
