package builder

import (
	"slices"

	"github.com/syssam/stratum"
	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/schema/edge"
)

// group returns c followed by every lineage column connected to it through
// vertical same-as bindings, in either direction.
func (b *Builder) group(c *schema.Column) []*schema.Column {
	out := []*schema.Column{c}
	add := func(m *schema.Column) {
		if b.inLineage(m.Table) && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	for i := 0; i < len(out); i++ {
		for _, v := range b.g.Vertical(out[i]) {
			add(v.Target)
		}
		for _, v := range b.g.VerticalInto(out[i]) {
			add(v.Column)
		}
	}
	return out
}

// resolve completes the cells of b and of its nested builders: vertical
// groups are filled, defaults applied, then mandatory references and required
// columns are checked. It mutates b and must run on a clone.
func (b *Builder) resolve() error {
	b.fill()
	if err := b.checkMandatory(); err != nil {
		return err
	}
	if err := b.checkRequired(); err != nil {
		return err
	}
	for _, t := range b.lineage {
		for _, e := range b.g.Triangulars(t) {
			if a := b.bundles[t.ID].nested[e.Key]; a != nil && a.builder != nil {
				if err := a.builder.resolve(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// fill propagates values through every vertical group of the lineage and
// applies static defaults, descendants first.
func (b *Builder) fill() {
	done := make(map[*schema.Column]bool)
	for _, t := range slices.Backward(b.lineage) {
		for _, c := range t.Columns {
			if done[c] || c.InPrimaryKey() {
				continue
			}
			group := b.group(c)
			for _, m := range group {
				done[m] = true
			}
			b.fillGroup(group)
		}
	}
}

// fillGroup gives every member of a group the same value. A bound member
// wins, then an explicit value, then the default of the member declared
// closest to the builder's table.
func (b *Builder) fillGroup(group []*schema.Column) {
	var (
		src   *schema.Column
		state State
	)
	for _, m := range group {
		if b.boundBy(m) != notBound {
			src, state = m, Bound
			break
		}
	}
	if src == nil {
		for _, m := range group {
			if b.cell(m).state == Explicit {
				src, state = m, Explicit
				break
			}
		}
	}
	if src == nil {
		for _, m := range group {
			if m.HasDefault() {
				src, state = m, Defaulted
				b.setCell(m, cell{state: Defaulted, value: m.Default})
				break
			}
		}
	}
	if src == nil {
		return
	}
	for _, m := range group {
		switch {
		case m == src || b.cell(m).state == Explicit || b.boundBy(m) != notBound:
		case state == Bound:
			b.setCell(m, cell{state: Propagated, ref: src})
		default:
			b.setCell(m, cell{state: Propagated, value: b.cell(src).value})
		}
	}
}

// checkRequired reports the first non-nullable column left without a value,
// walking the lineage in write order.
func (b *Builder) checkRequired() error {
	for _, t := range b.lineage {
		for _, c := range t.Columns {
			if c.Nullable {
				continue
			}
			switch b.boundBy(c) {
			case boundAncestor, boundGenerated, boundPushed:
				continue
			case boundKey, boundMirror:
				if b.referenced(c) {
					continue
				}
				return stratum.NewValidationError(t.Name, c.Name, stratum.ErrRequired)
			}
			if cl := b.cell(c); cl.ref == nil && cl.state == Unset {
				return stratum.NewValidationError(t.Name, c.Name, stratum.ErrRequired)
			}
		}
	}
	return nil
}

// referenced reports if a triangular key or mirror column has a row attached
// to supply its value.
func (b *Builder) referenced(c *schema.Column) bool {
	e, ok := b.g.Triangular(c)
	if !ok {
		m, _ := b.g.Mirror(c)
		e = m.Edge
	}
	return b.bundles[e.Host.ID].nested[e.Key] != nil
}

func (b *Builder) checkMandatory() error {
	for _, t := range b.lineage {
		for _, e := range b.g.Triangulars(t) {
			if e.Kind == edge.Mandatory && b.bundles[t.ID].nested[e.Key] == nil {
				return &stratum.MissingMandatoryReferenceError{Table: t.Name, Column: e.Key.Name}
			}
		}
	}
	return nil
}
