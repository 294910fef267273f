package graph_test

import (
	"errors"
	"testing"

	"github.com/syssam/stratum"
	"github.com/syssam/stratum/graph"
	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/schema/edge"
	"github.com/syssam/stratum/schema/field"
	"github.com/syssam/stratum/schema/index"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(tables []*schema.Table) []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.Name
	}
	return out
}

func registry(t *testing.T, defs ...schema.Definition) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(defs...)
	require.NoError(t, err)
	return reg
}

func diamond() []schema.Definition {
	return []schema.Definition{
		{Name: "a", Fields: []field.Field{field.Int64("id"), field.String("a_field")}},
		{Name: "b", Ancestors: []string{"a"}, Fields: []field.Field{field.Int64("id"), field.String("b_field")}},
		{Name: "c", Ancestors: []string{"a"}, Fields: []field.Field{field.Int64("id"), field.String("c_field")}},
		{Name: "d", Ancestors: []string{"b", "c"}, Fields: []field.Field{field.Int64("id"), field.String("d_field")}},
	}
}

func triangular(kind edge.Kind) []schema.Definition {
	return []schema.Definition{
		{
			Name:   "parents",
			Fields: []field.Field{field.Int64("id"), field.String("parent_field")},
		},
		{
			Name:         "satellites",
			SurrogateKey: true,
			Fields: []field.Field{
				field.Int64("id"),
				field.Int64("parent_id"),
				field.String("field"),
			},
			Indexes: []index.Index{
				index.Fields("id", "parent_id"),
				index.Fields("id", "field"),
			},
		},
		{
			Name:      "children",
			Ancestors: []string{"parents"},
			Fields: []field.Field{
				field.Int64("id").SameAs("satellites", "parent_id"),
				field.Int64("satellite_id"),
				field.String("satellite_field").SameAs("satellites", "field"),
			},
			Edges: []edge.Edge{edge.To(kind, "satellite_id", "satellites")},
		},
	}
}

func TestLineage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		defs  []schema.Definition
		table string
		want  []string
	}{
		{
			name:  "root",
			defs:  diamond(),
			table: "a",
			want:  []string{"a"},
		},
		{
			name:  "chain",
			defs:  diamond(),
			table: "b",
			want:  []string{"a", "b"},
		},
		{
			name:  "diamond",
			defs:  diamond(),
			table: "d",
			want:  []string{"a", "b", "c", "d"},
		},
		{
			name:  "mandatory target excluded",
			defs:  triangular(edge.Mandatory),
			table: "children",
			want:  []string{"parents", "children"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reg := registry(t, tt.defs...)
			g, err := graph.Build(reg)
			require.NoError(t, err)
			got := g.Lineage(reg.MustTable(tt.table))
			assert.Equal(t, tt.want, names(got))
			// Memoised results are not shared with callers.
			got[0] = nil
			assert.Equal(t, tt.want, names(g.Lineage(reg.MustTable(tt.table))))
		})
	}
}

func TestOrder(t *testing.T) {
	t.Parallel()
	reg := registry(t, triangular(edge.Mandatory)...)
	g, err := graph.Build(reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"parents", "satellites", "children"}, names(g.Order(reg.MustTable("children"))))

	reg = registry(t, triangular(edge.Discretionary)...)
	g, err = graph.Build(reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"parents", "children"}, names(g.Order(reg.MustTable("children"))))
	assert.Equal(t, []string{"parents", "satellites", "children"}, names(g.TableOrder()))
}

func TestBindings(t *testing.T) {
	t.Parallel()
	reg := registry(t, triangular(edge.Mandatory)...)
	g, err := graph.Build(reg)
	require.NoError(t, err)

	children := reg.MustTable("children")
	key, _ := children.Column("satellite_id")
	e, ok := g.Triangular(key)
	require.True(t, ok)
	assert.True(t, e.Mandatory())
	assert.Equal(t, "satellites", e.Target.Name)
	require.Len(t, e.Pushes, 1)
	assert.Equal(t, "children.id == satellites.parent_id", e.Pushes[0].String())
	require.Len(t, e.Mirrors, 1)
	assert.Equal(t, "children.satellite_field == satellites.field", e.Mirrors[0].String())
	assert.False(t, e.Mirrors[0].Vertical())

	mirrored, _ := children.Column("satellite_field")
	b, ok := g.Mirror(mirrored)
	require.True(t, ok)
	assert.Same(t, e, b.Edge)
	_, ok = g.Triangular(mirrored)
	assert.False(t, ok)
}

func TestVerticalBindings(t *testing.T) {
	t.Parallel()
	reg := registry(t,
		schema.Definition{
			Name:    "parents",
			Fields:  []field.Field{field.Int64("id"), field.String("parent_field"), field.String("another_field")},
			Indexes: []index.Index{index.Fields("id", "parent_field"), index.Fields("id", "another_field")},
		},
		schema.Definition{
			Name:      "children",
			Ancestors: []string{"parents"},
			Fields: []field.Field{
				field.Int64("id"),
				field.String("child_field").SameAs("parents", "parent_field").SameAs("parents", "another_field"),
			},
		},
	)
	g, err := graph.Build(reg)
	require.NoError(t, err)
	c, _ := reg.MustTable("children").Column("child_field")
	bs := g.Vertical(c)
	require.Len(t, bs, 2)
	assert.True(t, bs[0].Vertical())
	assert.Equal(t, "parents.parent_field", bs[0].Target.String())
	assert.Equal(t, "parents.another_field", bs[1].Target.String())
	p, _ := reg.MustTable("parents").Column("parent_field")
	require.Len(t, g.VerticalInto(p), 1)
	assert.Same(t, c, g.VerticalInto(p)[0].Column)
	assert.True(t, g.IsAncestor(reg.MustTable("children"), reg.MustTable("parents")))
	assert.Equal(t, []string{"children"}, names(g.Descendants(reg.MustTable("parents"))))
}

func TestAddAncestorEdge(t *testing.T) {
	t.Parallel()
	reg := registry(t, diamond()...)
	g := graph.New(reg)

	err := g.AddAncestorEdge("a", "a")
	requireKind(t, err, stratum.SelfAncestor)
	err = g.AddAncestorEdge("b", "a", "a")
	requireKind(t, err, stratum.DuplicateAncestor)
	err = g.AddAncestorEdge("c", "z")
	requireKind(t, err, stratum.UnknownTable)
	err = g.AddAncestorEdge("z", "a")
	requireKind(t, err, stratum.UnknownTable)

	require.NoError(t, g.Validate())
	assert.True(t, g.Validated())
	assert.ErrorIs(t, g.AddAncestorEdge("d", "a"), graph.ErrFrozen)
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		defs []schema.Definition
		kind stratum.GraphErrorKind
	}{
		{
			name: "transitive self ancestry",
			defs: []schema.Definition{
				{Name: "a", Ancestors: []string{"b"}, Fields: []field.Field{field.Int64("id")}},
				{Name: "b", Ancestors: []string{"a"}, Fields: []field.Field{field.Int64("id")}},
			},
			kind: stratum.SelfAncestor,
		},
		{
			name: "mandatory cycle",
			defs: []schema.Definition{
				{Name: "x", Fields: []field.Field{field.Int64("id"), field.Int64("y_id")}, Edges: []edge.Edge{edge.MandatoryTo("y_id", "y")}},
				{Name: "y", Fields: []field.Field{field.Int64("id"), field.Int64("x_id")}, Edges: []edge.Edge{edge.MandatoryTo("x_id", "x")}},
			},
			kind: stratum.Cycle,
		},
		{
			name: "ancestor key type",
			defs: []schema.Definition{
				{Name: "a", Fields: []field.Field{field.Int64("id")}},
				{Name: "b", Ancestors: []string{"a"}, Fields: []field.Field{field.String("id")}},
			},
			kind: stratum.InvalidEdge,
		},
		{
			name: "ancestor key arity",
			defs: []schema.Definition{
				{Name: "a", Fields: []field.Field{field.Int64("id")}},
				{Name: "b", Ancestors: []string{"a"}, PrimaryKey: []string{"id", "n"}, Fields: []field.Field{field.Int64("id"), field.Int64("n")}},
			},
			kind: stratum.InvalidEdge,
		},
		{
			name: "surrogate descendant",
			defs: []schema.Definition{
				{Name: "a", Fields: []field.Field{field.Int64("id")}},
				{Name: "b", SurrogateKey: true, Ancestors: []string{"a"}, Fields: []field.Field{field.Int64("id")}},
			},
			kind: stratum.InvalidEdge,
		},
		{
			name: "triangular key type",
			defs: []schema.Definition{
				{Name: "a", Fields: []field.Field{field.Int64("id")}},
				{Name: "b", Fields: []field.Field{field.Int64("id"), field.String("a_id")}, Edges: []edge.Edge{edge.MandatoryTo("a_id", "a")}},
			},
			kind: stratum.InvalidEdge,
		},
		{
			name: "triangular composite target",
			defs: []schema.Definition{
				{Name: "a", PrimaryKey: []string{"x", "y"}, Fields: []field.Field{field.Int64("x"), field.Int64("y")}},
				{Name: "b", Fields: []field.Field{field.Int64("id"), field.Int64("a_id")}, Edges: []edge.Edge{edge.MandatoryTo("a_id", "a")}},
			},
			kind: stratum.InvalidEdge,
		},
		{
			name: "triangular unknown column",
			defs: []schema.Definition{
				{Name: "a", Fields: []field.Field{field.Int64("id")}},
				{Name: "b", Fields: []field.Field{field.Int64("id")}, Edges: []edge.Edge{edge.MandatoryTo("a_id", "a")}},
			},
			kind: stratum.UnknownColumn,
		},
		{
			name: "same-as to unrelated table",
			defs: []schema.Definition{
				{Name: "a", Fields: []field.Field{field.Int64("id"), field.String("name")}},
				{Name: "b", Fields: []field.Field{field.Int64("id"), field.String("name").SameAs("a", "name")}},
			},
			kind: stratum.InvalidSameAs,
		},
		{
			name: "same-as unknown target column",
			defs: []schema.Definition{
				{Name: "a", Fields: []field.Field{field.Int64("id")}},
				{Name: "b", Ancestors: []string{"a"}, Fields: []field.Field{field.Int64("id"), field.String("name").SameAs("a", "name")}},
			},
			kind: stratum.UnknownColumn,
		},
		{
			name: "vertical without index",
			defs: []schema.Definition{
				{Name: "a", Fields: []field.Field{field.Int64("id"), field.String("name")}},
				{Name: "b", Ancestors: []string{"a"}, Fields: []field.Field{field.Int64("id"), field.String("name").SameAs("a", "name")}},
			},
			kind: stratum.MissingIndex,
		},
		{
			name: "horizontal without index",
			defs: func() []schema.Definition {
				defs := triangular(edge.Mandatory)
				defs[1].Indexes = defs[1].Indexes[:1]
				return defs
			}(),
			kind: stratum.MissingIndex,
		},
		{
			name: "push-down from surrogate root",
			defs: []schema.Definition{
				{Name: "a", Fields: []field.Field{field.Int64("id"), field.Int64("owner")}, Indexes: []index.Index{index.Fields("id", "owner")}},
				{Name: "b", SurrogateKey: true, Fields: []field.Field{field.Int64("id").SameAs("a", "owner"), field.Int64("a_id")}, Edges: []edge.Edge{edge.MandatoryTo("a_id", "a")}},
			},
			kind: stratum.InvalidSameAs,
		},
		{
			name: "same-as type mismatch",
			defs: []schema.Definition{
				{Name: "a", Fields: []field.Field{field.Int64("id"), field.Int64("n")}, Indexes: []index.Index{index.Fields("id", "n")}},
				{Name: "b", Ancestors: []string{"a"}, Fields: []field.Field{field.Int64("id"), field.String("n").SameAs("a", "n")}},
			},
			kind: stratum.InvalidSameAs,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := graph.Build(registry(t, tt.defs...))
			requireKind(t, err, tt.kind)
		})
	}
}

func TestDiscretionaryCycle(t *testing.T) {
	t.Parallel()
	reg := registry(t,
		schema.Definition{Name: "x", Fields: []field.Field{field.Int64("id"), field.Int64("y_id").Nillable()}, Edges: []edge.Edge{edge.DiscretionaryTo("y_id", "y")}},
		schema.Definition{Name: "y", Fields: []field.Field{field.Int64("id"), field.Int64("x_id")}, Edges: []edge.Edge{edge.MandatoryTo("x_id", "x")}},
	)
	g, err := graph.Build(reg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y"}, names(g.TableOrder()))
	assert.Equal(t, []string{"x", "y"}, names(g.Order(reg.MustTable("y"))))
}

func TestReport(t *testing.T) {
	t.Parallel()
	g := graph.New(registry(t,
		schema.Definition{Name: "a", Fields: []field.Field{field.Int64("id")}},
		schema.Definition{Name: "b", Ancestors: []string{"a"}, Fields: []field.Field{field.Int64("id"), field.String("name").SameAs("c", "name")}},
		schema.Definition{Name: "c", SurrogateKey: true, Ancestors: []string{"a"}, Fields: []field.Field{field.Int64("id"), field.String("name")}},
	))
	require.NoError(t, g.AddAncestorEdge("b", "a"))
	require.NoError(t, g.AddAncestorEdge("c", "a"))
	require.NoError(t, g.AddSameAs("b", "name", "c", "name"))

	err := g.Validate()
	requireKind(t, err, stratum.InvalidEdge)
	assert.False(t, g.Validated())
	r := g.Report()
	assert.True(t, r.HasErrors())
	assert.Len(t, r.Errors, 1)
	assert.Contains(t, r.String(), "surrogate")

	g, err = graph.Build(registry(t, diamond()...))
	require.NoError(t, err)
	r = g.Report()
	assert.False(t, r.HasErrors())
	assert.False(t, r.HasWarnings())
	assert.Equal(t, "No issues found", r.String())

	g, err = graph.Build(registry(t, schema.Definition{Name: "bare", Fields: []field.Field{field.Int64("id")}}))
	require.NoError(t, err)
	assert.True(t, g.Report().HasWarnings())
	assert.Contains(t, g.Report().String(), "bare: table has no columns besides its primary key")
}

func TestRevalidate(t *testing.T) {
	t.Parallel()
	reg := registry(t,
		schema.Definition{
			Name:    "targets",
			Fields:  []field.Field{field.Int64("id"), field.String("f")},
			Indexes: []index.Index{index.Fields("id", "f")},
		},
		schema.Definition{
			Name:    "others",
			Fields:  []field.Field{field.Int64("id"), field.String("g")},
			Indexes: []index.Index{index.Fields("id", "g")},
		},
		schema.Definition{
			Name: "hosts",
			Fields: []field.Field{
				field.Int64("id"),
				field.Int64("t_id").Nillable(),
				field.Int64("o_id").Nillable(),
				field.String("f").Nillable().SameAs("targets", "f"),
				field.String("g").Nillable().SameAs("others", "g"),
			},
		},
	)
	g := graph.New(reg)
	require.NoError(t, g.AddTriangularEdge("hosts", "t_id", "targets", edge.Discretionary))
	require.NoError(t, g.AddSameAs("hosts", "f", "targets", "f"))
	require.NoError(t, g.AddSameAs("hosts", "g", "others", "g"))

	err := g.Validate()
	requireKind(t, err, stratum.InvalidSameAs)
	assert.Contains(t, err.Error(), "hosts.g")
	assert.False(t, g.Validated())

	require.NoError(t, g.AddTriangularEdge("hosts", "o_id", "others", edge.Discretionary))
	require.NoError(t, g.Validate())
	assert.True(t, g.Validated())
	assert.False(t, g.Report().HasErrors())

	hosts := reg.MustTable("hosts")
	f, _ := hosts.Column("f")
	m, ok := g.Mirror(f)
	require.True(t, ok)
	assert.Equal(t, "targets", m.Target.Table.Name)
	for _, e := range g.Triangulars(hosts) {
		assert.Len(t, e.Mirrors, 1, e.String())
	}
}

func TestReportKeepsGraphMutable(t *testing.T) {
	t.Parallel()
	g := graph.New(registry(t, diamond()...))
	require.NoError(t, g.AddAncestorEdge("b", "a"))
	r := g.Report()
	assert.False(t, r.HasErrors())
	assert.False(t, g.Validated())

	require.NoError(t, g.AddAncestorEdge("c", "a"))
	assert.NotSame(t, r, g.Report(), "adding an edge discards the report")
	require.NoError(t, g.Validate())
	assert.True(t, g.Validated())
}

func TestAssemble(t *testing.T) {
	t.Parallel()
	g, err := graph.Assemble(registry(t,
		schema.Definition{Name: "a", Fields: []field.Field{field.Int64("id")}},
		schema.Definition{Name: "c", SurrogateKey: true, Ancestors: []string{"a"}, Fields: []field.Field{field.Int64("id"), field.String("name")}},
	))
	require.NoError(t, err)
	assert.False(t, g.Validated())
	r := g.Report()
	require.True(t, r.HasErrors())
	assert.Equal(t, stratum.InvalidEdge, r.Errors[0].Kind)

	_, err = graph.Assemble(registry(t,
		schema.Definition{Name: "a", Ancestors: []string{"missing"}, Fields: []field.Field{field.Int64("id")}},
	))
	requireKind(t, err, stratum.UnknownTable)
}

func requireKind(t *testing.T, err error, kind stratum.GraphErrorKind) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, stratum.ErrGraph)
	var ge *stratum.GraphError
	require.True(t, errors.As(err, &ge), "unexpected error %v", err)
	assert.Equal(t, kind, ge.Kind, ge.Error())
}

func TestForeignKeys(t *testing.T) {
	t.Parallel()
	fks := func(kind edge.Kind) []string {
		reg := registry(t, triangular(kind)...)
		g, err := graph.Build(reg)
		require.NoError(t, err)
		var out []string
		for _, fk := range g.ForeignKeys(reg.MustTable("children")) {
			out = append(out, fk.String())
		}
		return out
	}
	assert.Equal(t, []string{
		"(id) references parents(id)",
		"(satellite_id) references satellites(id)",
		"(satellite_id, id) references satellites(id, parent_id)",
		"(satellite_id, satellite_field) references satellites(id, field)",
	}, fks(edge.Mandatory))
	assert.Equal(t, []string{
		"(id) references parents(id)",
		"(satellite_id) references satellites(id)",
		"(satellite_id, satellite_field) references satellites(id, field)",
	}, fks(edge.Discretionary))
}
