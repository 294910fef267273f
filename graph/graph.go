package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/syssam/stratum"
	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/schema/edge"
)

// ErrFrozen is returned when edges are added to a validated graph.
var ErrFrozen = errors.New("graph: graph is validated and read-only")

// Graph is the directed relationship graph over the tables of a registry.
// It is mutable until Validate succeeds and read-only afterwards; a validated
// graph is safe for concurrent use.
type Graph struct {
	reg    *schema.Registry
	nodes  []*node // indexed by table ID.
	sameAs []sameAsDecl
	report *Report
	frozen bool

	mu      sync.Mutex
	lineage map[int][]*schema.Table
	order   map[int][]*schema.Table
}

type node struct {
	table      *schema.Table
	ancestors  []*schema.Table
	triangular []*Triangular
	closure    map[int]bool // transitive ancestors.
	vertical   map[*schema.Column][]*Binding
	verticalIn map[*schema.Column][]*Binding
	mirror     map[*schema.Column]*Binding
}

type sameAsDecl struct {
	table, column, target, targetColumn string
}

// Triangular is a triangular edge: Key is a column of Host referencing the
// single-column primary key of Target.
type Triangular struct {
	Host   *schema.Table
	Key    *schema.Column
	Target *schema.Table
	Kind   edge.Kind
	// Pushes bind host key columns to Target columns. The host value is known
	// before the referenced row is written and flows into it.
	Pushes []*Binding
	// Mirrors bind host columns to Target columns read back after the
	// referenced row is written.
	Mirrors []*Binding
}

// Mandatory reports if the edge is a mandatory triangular edge.
func (t *Triangular) Mandatory() bool { return t.Kind == edge.Mandatory }

// String returns a readable description of the edge.
func (t *Triangular) String() string {
	return fmt.Sprintf("%s -%s-> %s", t.Key, t.Kind, t.Target.Name)
}

// Binding is a classified same-as constraint: Column must equal Target.
type Binding struct {
	Column *schema.Column
	Target *schema.Column
	Edge   *Triangular // nil for vertical bindings.
}

// Vertical reports if the binding targets an ancestor column.
func (b *Binding) Vertical() bool { return b.Edge == nil }

// String returns a readable description of the binding.
func (b *Binding) String() string {
	return b.Column.String() + " == " + b.Target.String()
}

// New returns an empty graph over the tables of reg.
func New(reg *schema.Registry) *Graph {
	g := &Graph{
		reg:     reg,
		lineage: make(map[int][]*schema.Table),
		order:   make(map[int][]*schema.Table),
	}
	for _, t := range reg.Tables() {
		g.nodes = append(g.nodes, &node{
			table:      t,
			closure:    make(map[int]bool),
			vertical:   make(map[*schema.Column][]*Binding),
			verticalIn: make(map[*schema.Column][]*Binding),
			mirror:     make(map[*schema.Column]*Binding),
		})
	}
	return g
}

// Build returns a validated graph holding every edge declared in reg.
func Build(reg *schema.Registry) (*Graph, error) {
	g, err := Assemble(reg)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Assemble adds every edge declared in reg to a new graph without
// validating it. Callers inspect the result with Report.
func Assemble(reg *schema.Registry) (*Graph, error) {
	g := New(reg)
	for _, t := range reg.Tables() {
		if len(t.Ancestors) > 0 {
			if err := g.AddAncestorEdge(t.Name, t.Ancestors...); err != nil {
				return nil, err
			}
		}
		for _, e := range t.Edges {
			if err := g.AddTriangularEdge(t.Name, e.Column, e.Target, e.Kind); err != nil {
				return nil, err
			}
		}
	}
	for _, t := range reg.Tables() {
		for _, c := range t.Columns {
			for _, ref := range c.SameAs {
				if err := g.AddSameAs(t.Name, c.Name, ref.Table, ref.Column); err != nil {
					return nil, err
				}
			}
		}
	}
	return g, nil
}

// Registry returns the registry the graph was built from.
func (g *Graph) Registry() *schema.Registry { return g.reg }

// Table returns the table with the given name.
func (g *Graph) Table(name string) (*schema.Table, bool) { return g.reg.Table(name) }

// Validated reports if Validate succeeded.
func (g *Graph) Validated() bool { return g.frozen }

func (g *Graph) lookup(name string) (*node, error) {
	t, ok := g.reg.Table(name)
	if !ok {
		return nil, stratum.NewGraphError(stratum.UnknownTable, name, "", "table is not registered")
	}
	return g.nodes[t.ID], nil
}

// AddAncestorEdge declares the ordered ancestors of table. The primary key of
// table is also a foreign key into the primary key of each ancestor.
func (g *Graph) AddAncestorEdge(table string, ancestors ...string) error {
	if g.frozen {
		return ErrFrozen
	}
	g.report = nil
	n, err := g.lookup(table)
	if err != nil {
		return err
	}
	for _, name := range ancestors {
		if name == table {
			return stratum.NewGraphError(stratum.SelfAncestor, table, "", "table is listed as its own ancestor")
		}
		a, err := g.lookup(name)
		if err != nil {
			return err
		}
		if slices.Contains(n.ancestors, a.table) {
			return stratum.NewGraphError(stratum.DuplicateAncestor, table, "", "ancestor %q is listed more than once", name)
		}
		n.ancestors = append(n.ancestors, a.table)
	}
	return nil
}

// AddTriangularEdge declares that column of table references the primary key
// of target under a triangular constraint of the given kind.
func (g *Graph) AddTriangularEdge(table, column, target string, kind edge.Kind) error {
	if g.frozen {
		return ErrFrozen
	}
	g.report = nil
	n, err := g.lookup(table)
	if err != nil {
		return err
	}
	if kind != edge.Mandatory && kind != edge.Discretionary {
		return stratum.NewGraphError(stratum.InvalidEdge, table, column, "unknown triangular kind %d", kind)
	}
	key, ok := n.table.Column(column)
	if !ok {
		return stratum.NewGraphError(stratum.UnknownColumn, table, column, "triangular key column is not declared")
	}
	if key.InPrimaryKey() {
		return stratum.NewGraphError(stratum.InvalidEdge, table, column, "triangular key cannot be part of the primary key")
	}
	tn, err := g.lookup(target)
	if err != nil {
		return err
	}
	if len(tn.table.PrimaryKey) != 1 {
		return stratum.NewGraphError(stratum.InvalidEdge, table, column, "target %q must have a single-column primary key", target)
	}
	if pk := tn.table.PrimaryKey[0]; pk.Type != key.Type {
		return stratum.NewGraphError(stratum.InvalidEdge, table, column, "type %s does not match %s of type %s", key.Type, pk, pk.Type)
	}
	for _, e := range n.triangular {
		if e.Key == key {
			return stratum.NewGraphError(stratum.InvalidEdge, table, column, "column already declares a triangular edge")
		}
	}
	n.triangular = append(n.triangular, &Triangular{Host: n.table, Key: key, Target: tn.table, Kind: kind})
	return nil
}

// AddSameAs declares that column of table must equal targetColumn of target.
// The binding is classified as vertical or horizontal by Validate.
func (g *Graph) AddSameAs(table, column, target, targetColumn string) error {
	if g.frozen {
		return ErrFrozen
	}
	g.report = nil
	n, err := g.lookup(table)
	if err != nil {
		return err
	}
	if _, ok := n.table.Column(column); !ok {
		return stratum.NewGraphError(stratum.UnknownColumn, table, column, "same-as column is not declared")
	}
	tn, err := g.lookup(target)
	if err != nil {
		return err
	}
	if _, ok := tn.table.Column(targetColumn); !ok {
		return stratum.NewGraphError(stratum.UnknownColumn, target, targetColumn, "same-as target column is not declared")
	}
	g.sameAs = append(g.sameAs, sameAsDecl{table: table, column: column, target: target, targetColumn: targetColumn})
	return nil
}

// Validate checks the graph and, on success, makes it read-only. It returns
// the first structural error found; Report lists all of them.
func (g *Graph) Validate() error {
	if g.frozen {
		return nil
	}
	r := g.check()
	g.report = r
	if len(r.Errors) > 0 {
		return r.Errors[0]
	}
	g.frozen = true
	return nil
}

// Report returns the full validation report of the graph. It does not
// freeze the graph; adding an edge discards the report.
func (g *Graph) Report() *Report {
	if g.report == nil {
		g.report = g.check()
	}
	return g.report
}

// reset discards the derived state of a previous check.
func (g *Graph) reset() {
	for _, n := range g.nodes {
		n.closure = make(map[int]bool)
		n.vertical = make(map[*schema.Column][]*Binding)
		n.verticalIn = make(map[*schema.Column][]*Binding)
		n.mirror = make(map[*schema.Column]*Binding)
		for _, e := range n.triangular {
			e.Pushes, e.Mirrors = nil, nil
		}
	}
}

func (g *Graph) check() *Report {
	g.reset()
	r := &Report{}
	g.checkAncestors(r)
	if cycle := g.findCycle(); cycle != nil {
		r.addError(cycle)
	}
	if len(r.Errors) > 0 {
		// Closures are not well defined on malformed inheritance.
		return r
	}
	for _, n := range g.nodes {
		g.collectAncestors(n, n.closure)
	}
	g.checkRoots(r)
	g.classifySameAs(r)
	g.checkWarnings(r)
	return r
}

func (g *Graph) checkAncestors(r *Report) {
	for _, n := range g.nodes {
		if len(n.ancestors) == 0 {
			continue
		}
		if n.table.Surrogate {
			r.addError(stratum.NewGraphError(stratum.InvalidEdge, n.table.Name, "", "descendant tables cannot use a surrogate key"))
		}
		for _, a := range n.ancestors {
			if len(a.PrimaryKey) != len(n.table.PrimaryKey) {
				r.addError(stratum.NewGraphError(stratum.InvalidEdge, n.table.Name, "", "primary key arity does not match ancestor %q", a.Name))
				continue
			}
			for i, c := range n.table.PrimaryKey {
				if c.Type != a.PrimaryKey[i].Type {
					r.addError(stratum.NewGraphError(stratum.InvalidEdge, n.table.Name, c.Name, "type %s does not match %s of type %s", c.Type, a.PrimaryKey[i], a.PrimaryKey[i].Type))
				}
			}
		}
	}
}

// checkRoots rejects lineages with several roots when one of them generates
// its key: the other roots would be written before the key exists.
func (g *Graph) checkRoots(r *Report) {
	for _, n := range g.nodes {
		roots := g.roots(n.table)
		if len(roots) < 2 {
			continue
		}
		for _, t := range roots {
			if t.Surrogate {
				r.addError(stratum.NewGraphError(stratum.InvalidEdge, n.table.Name, "", "lineage has several roots and %q uses a surrogate key", t.Name))
				break
			}
		}
	}
}

type color uint8

const (
	white color = iota
	gray
	black
)

// findCycle runs a three-colour DFS over ancestor and mandatory edges.
func (g *Graph) findCycle() *stratum.GraphError {
	colors := make([]color, len(g.nodes))
	var (
		path  []*schema.Table
		kinds []bool // true for ancestor edges on path.
		visit func(n *node) *stratum.GraphError
	)
	visit = func(n *node) *stratum.GraphError {
		colors[n.table.ID] = gray
		path = append(path, n.table)
		next := make([]*schema.Table, 0, len(n.ancestors)+len(n.triangular))
		next = append(next, n.ancestors...)
		for _, e := range n.triangular {
			if e.Mandatory() {
				next = append(next, e.Target)
			}
		}
		for i, t := range next {
			kinds = append(kinds, i < len(n.ancestors))
			switch colors[t.ID] {
			case gray:
				return cycleError(path, kinds, t)
			case white:
				if err := visit(g.nodes[t.ID]); err != nil {
					return err
				}
			}
			kinds = kinds[:len(kinds)-1]
		}
		path = path[:len(path)-1]
		colors[n.table.ID] = black
		return nil
	}
	for _, n := range g.nodes {
		if colors[n.table.ID] == white {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func cycleError(path []*schema.Table, kinds []bool, to *schema.Table) *stratum.GraphError {
	start := slices.Index(path, to)
	names := make([]string, 0, len(path)-start+1)
	inherit := true
	for i := start; i < len(path); i++ {
		names = append(names, path[i].Name)
		inherit = inherit && kinds[i]
	}
	names = append(names, to.Name)
	kind := stratum.Cycle
	if inherit {
		kind = stratum.SelfAncestor
	}
	return stratum.NewGraphError(kind, to.Name, "", "cycle %s", strings.Join(names, " -> "))
}

func (g *Graph) collectAncestors(n *node, into map[int]bool) {
	for _, a := range n.ancestors {
		if !into[a.ID] {
			into[a.ID] = true
			g.collectAncestors(g.nodes[a.ID], into)
		}
	}
}

func (g *Graph) classifySameAs(r *Report) {
	for _, d := range g.sameAs {
		host := g.nodes[g.reg.MustTable(d.table).ID]
		target := g.reg.MustTable(d.target)
		col, _ := host.table.Column(d.column)
		tcol, _ := target.Column(d.targetColumn)
		if col.Type != tcol.Type {
			r.addError(stratum.NewGraphError(stratum.InvalidSameAs, d.table, d.column, "type %s does not match %s of type %s", col.Type, tcol, tcol.Type))
			continue
		}
		if host.closure[target.ID] {
			g.bindVertical(r, host, col, tcol)
			continue
		}
		var edges []*Triangular
		for _, e := range host.triangular {
			if e.Target == target {
				edges = append(edges, e)
			}
		}
		switch len(edges) {
		case 0:
			r.addError(stratum.NewGraphError(stratum.InvalidSameAs, d.table, d.column, "%s is neither an ancestor nor a triangular target", target.Name))
		case 1:
			g.bindHorizontal(r, host, edges[0], col, tcol)
		default:
			r.addError(stratum.NewGraphError(stratum.InvalidSameAs, d.table, d.column, "%s is the target of several triangular edges", target.Name))
		}
	}
}

func (g *Graph) bindVertical(r *Report, host *node, col, tcol *schema.Column) {
	if col.InPrimaryKey() || tcol.InPrimaryKey() {
		r.addError(stratum.NewGraphError(stratum.InvalidSameAs, col.Table.Name, col.Name, "primary keys are shared with ancestors implicitly"))
		return
	}
	if _, ok := host.mirror[col]; ok {
		r.addError(stratum.NewGraphError(stratum.InvalidSameAs, col.Table.Name, col.Name, "column is already mirrored through a triangular edge"))
		return
	}
	target := tcol.Table
	if !target.Unique(append(slices.Clone(target.PrimaryKey), tcol)...) {
		r.addError(stratum.NewGraphError(stratum.MissingIndex, target.Name, tcol.Name, "no unique index on (%s, %s)", strings.Join(target.PrimaryKeyNames(), ", "), tcol.Name))
		return
	}
	b := &Binding{Column: col, Target: tcol}
	host.vertical[col] = append(host.vertical[col], b)
	tn := g.nodes[target.ID]
	tn.verticalIn[tcol] = append(tn.verticalIn[tcol], b)
}

func (g *Graph) bindHorizontal(r *Report, host *node, e *Triangular, col, tcol *schema.Column) {
	if col == e.Key {
		r.addError(stratum.NewGraphError(stratum.InvalidSameAs, col.Table.Name, col.Name, "triangular key cannot be bound by same-as"))
		return
	}
	if tcol.InPrimaryKey() {
		r.addError(stratum.NewGraphError(stratum.InvalidSameAs, col.Table.Name, col.Name, "%s is the referenced key itself", tcol))
		return
	}
	if _, ok := g.Triangular(tcol); ok {
		r.addError(stratum.NewGraphError(stratum.InvalidSameAs, col.Table.Name, col.Name, "%s is a triangular key of %s", tcol, e.Target.Name))
		return
	}
	if !e.Target.Unique(e.Target.PrimaryKey[0], tcol) {
		r.addError(stratum.NewGraphError(stratum.MissingIndex, e.Target.Name, tcol.Name, "no unique index on (%s, %s) for triangular edge %s", e.Target.PrimaryKey[0].Name, tcol.Name, e.Key))
		return
	}
	b := &Binding{Column: col, Target: tcol, Edge: e}
	if col.InPrimaryKey() {
		if len(host.ancestors) == 0 && host.table.Surrogate {
			r.addError(stratum.NewGraphError(stratum.InvalidSameAs, col.Table.Name, col.Name, "surrogate key is unknown before %s is written", e.Target.Name))
			return
		}
		e.Pushes = append(e.Pushes, b)
		return
	}
	if _, ok := host.mirror[col]; ok || len(host.vertical[col]) > 0 {
		r.addError(stratum.NewGraphError(stratum.InvalidSameAs, col.Table.Name, col.Name, "column is bound more than once"))
		return
	}
	e.Mirrors = append(e.Mirrors, b)
	host.mirror[col] = b
}

func (g *Graph) checkWarnings(r *Report) {
	for _, n := range g.nodes {
		if len(n.table.Columns) == len(n.table.PrimaryKey) && len(n.triangular) == 0 {
			r.addWarning(n.table.Name, "", "table has no columns besides its primary key")
		}
		for _, e := range n.triangular {
			if e.Kind == edge.Discretionary && (e.Target == n.table || n.closure[e.Target.ID]) {
				r.addWarning(n.table.Name, e.Key.Name, "discretionary edge targets the table itself or one of its ancestors")
			}
		}
	}
}

// Ancestors returns the declared direct ancestors of t.
func (g *Graph) Ancestors(t *schema.Table) []*schema.Table {
	return slices.Clone(g.nodes[t.ID].ancestors)
}

// Roots returns the tables without ancestors in the lineage of t, in
// declaration order. A root table is its own root.
func (g *Graph) Roots(t *schema.Table) []*schema.Table {
	return g.roots(t)
}

func (g *Graph) roots(t *schema.Table) []*schema.Table {
	n := g.nodes[t.ID]
	if len(n.ancestors) == 0 {
		return []*schema.Table{t}
	}
	var out []*schema.Table
	for _, m := range g.nodes {
		if n.closure[m.table.ID] && len(m.ancestors) == 0 {
			out = append(out, m.table)
		}
	}
	return out
}

// IsAncestor reports if a is a transitive ancestor of t.
func (g *Graph) IsAncestor(t, a *schema.Table) bool {
	return g.nodes[t.ID].closure[a.ID]
}

// Triangulars returns the triangular edges of t in declaration order.
func (g *Graph) Triangulars(t *schema.Table) []*Triangular {
	return g.nodes[t.ID].triangular
}

// Triangular returns the triangular edge whose key column is c.
func (g *Graph) Triangular(c *schema.Column) (*Triangular, bool) {
	for _, e := range g.nodes[c.Table.ID].triangular {
		if e.Key == c {
			return e, true
		}
	}
	return nil, false
}

// Vertical returns the vertical bindings from c to ancestor columns.
func (g *Graph) Vertical(c *schema.Column) []*Binding {
	return g.nodes[c.Table.ID].vertical[c]
}

// VerticalInto returns the vertical bindings of descendant columns that target c.
func (g *Graph) VerticalInto(c *schema.Column) []*Binding {
	return g.nodes[c.Table.ID].verticalIn[c]
}

// Mirror returns the horizontal binding that supplies the value of c, if any.
func (g *Graph) Mirror(c *schema.Column) (*Binding, bool) {
	b, ok := g.nodes[c.Table.ID].mirror[c]
	return b, ok
}
