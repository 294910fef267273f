package graph

import (
	"slices"

	"github.com/syssam/stratum/schema"
)

// Lineage returns the ancestors of t followed by t itself, in write order.
// Shared ancestors of a diamond appear once, before every table that
// inherits from them. The graph must be validated.
func (g *Graph) Lineage(t *schema.Table) []*schema.Table {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.lineage[t.ID]; ok {
		return slices.Clone(l)
	}
	var (
		out  []*schema.Table
		seen = make(map[int]bool)
	)
	g.postOrder(t, seen, &out, func(n *node) []*schema.Table { return n.ancestors })
	g.lineage[t.ID] = out
	return slices.Clone(out)
}

// Order returns every table that must be written for a row of t: its
// ancestors, the targets of mandatory edges on t and on its ancestors
// (transitively), and t itself. The graph must be validated.
func (g *Graph) Order(t *schema.Table) []*schema.Table {
	g.mu.Lock()
	defer g.mu.Unlock()
	if o, ok := g.order[t.ID]; ok {
		return slices.Clone(o)
	}
	var (
		out  []*schema.Table
		seen = make(map[int]bool)
	)
	g.postOrder(t, seen, &out, func(n *node) []*schema.Table {
		next := slices.Clone(n.ancestors)
		for _, e := range n.triangular {
			if e.Mandatory() {
				next = append(next, e.Target)
			}
		}
		return next
	})
	g.order[t.ID] = out
	return slices.Clone(out)
}

// postOrder appends t after everything reachable through next. The graph is
// acyclic over the edges used by Lineage and Order once validated.
func (g *Graph) postOrder(t *schema.Table, seen map[int]bool, out *[]*schema.Table, next func(*node) []*schema.Table) {
	if seen[t.ID] {
		return
	}
	seen[t.ID] = true
	for _, u := range next(g.nodes[t.ID]) {
		g.postOrder(u, seen, out, next)
	}
	*out = append(*out, t)
}

// TableOrder returns all tables ordered so that each one follows the tables
// its foreign keys reference. Discretionary edges that close a cycle are
// skipped, so the result always contains every table exactly once.
func (g *Graph) TableOrder() []*schema.Table {
	colors := make([]color, len(g.nodes))
	out := make([]*schema.Table, 0, len(g.nodes))
	var visit func(n *node)
	visit = func(n *node) {
		colors[n.table.ID] = gray
		next := slices.Clone(n.ancestors)
		for _, e := range n.triangular {
			next = append(next, e.Target)
		}
		for _, t := range next {
			if colors[t.ID] == white {
				visit(g.nodes[t.ID])
			}
		}
		colors[n.table.ID] = black
		out = append(out, n.table)
	}
	for _, n := range g.nodes {
		if colors[n.table.ID] == white {
			visit(n)
		}
	}
	return out
}

// Descendants returns the tables that have t as a transitive ancestor, in
// declaration order.
func (g *Graph) Descendants(t *schema.Table) []*schema.Table {
	var out []*schema.Table
	for _, n := range g.nodes {
		if n.closure[t.ID] {
			out = append(out, n.table)
		}
	}
	return out
}
