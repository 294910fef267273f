package builder

import (
	"fmt"
	"strings"

	"github.com/syssam/stratum/graph"
	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/schema/edge"
)

// Plan is a resolved write plan: one step per row, ancestors before
// descendants and referenced rows before the rows referencing them. A plan
// holds its own copy of the builders it was resolved from.
type Plan struct {
	root  *Builder
	steps []Step
}

// Step writes the row of one table of one builder.
type Step struct {
	Table *schema.Table
	// Via is the triangular edge the builder of the step is attached
	// through, or nil for the lineage of the target builder.
	Via   *graph.Triangular
	Depth int

	builder *Builder
}

// String returns a readable description of the step.
func (s Step) String() string {
	if s.Via == nil {
		return s.Table.Name
	}
	return fmt.Sprintf("%s (via %s)", s.Table.Name, s.Via.Key)
}

// Resolve validates the builder and computes its write plan. The builder
// itself is not modified, so resolving twice yields the same plan.
func (b *Builder) Resolve() (*Plan, error) {
	if b.err != nil {
		return nil, b.err
	}
	c := b.clone(nil)
	if err := c.resolve(); err != nil {
		return nil, err
	}
	p := &Plan{root: c}
	p.emit(c, nil, 0)
	return p, nil
}

// emit appends the steps of b: for each table of its lineage, the rows
// referenced through mandatory keys, then those referenced through
// discretionary keys, then the table itself.
func (p *Plan) emit(b *Builder, via *graph.Triangular, depth int) {
	for _, t := range b.lineage {
		for _, kind := range []edge.Kind{edge.Mandatory, edge.Discretionary} {
			for _, e := range b.g.Triangulars(t) {
				if e.Kind != kind {
					continue
				}
				if a := b.bundles[t.ID].nested[e.Key]; a != nil && a.builder != nil {
					p.emit(a.builder, e, depth+1)
				}
			}
		}
		p.steps = append(p.steps, Step{Table: t, Via: via, Depth: depth, builder: b})
	}
}

// Steps returns the steps of the plan in write order.
func (p *Plan) Steps() []Step {
	steps := make([]Step, len(p.steps))
	copy(steps, p.steps)
	return steps
}

// Len returns the number of rows the plan writes.
func (p *Plan) Len() int { return len(p.steps) }

// Tables returns the table of every step in write order.
func (p *Plan) Tables() []*schema.Table {
	tables := make([]*schema.Table, len(p.steps))
	for i, s := range p.steps {
		tables[i] = s.Table
	}
	return tables
}

// Value returns the value a step will write for a column, if it is known
// before execution.
func (p *Plan) Value(step int, column string) (any, bool) {
	s := p.steps[step]
	c, ok := s.Table.Column(column)
	if !ok {
		return nil, false
	}
	if c.InPrimaryKey() {
		c = s.builder.rootKey(c)
	}
	if cl := s.builder.cell(c); cl.known() {
		return cl.value, true
	}
	return nil, false
}

// String returns the steps of the plan, one per line.
func (p *Plan) String() string {
	var sb strings.Builder
	for i, s := range p.steps {
		fmt.Fprintf(&sb, "%d. %s%s\n", i+1, strings.Repeat("  ", s.Depth), s)
	}
	return sb.String()
}
