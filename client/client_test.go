package client_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/syssam/stratum"
	"github.com/syssam/stratum/builder"
	"github.com/syssam/stratum/client"
	"github.com/syssam/stratum/graph"
	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/schema/edge"
	"github.com/syssam/stratum/schema/field"
	"github.com/syssam/stratum/store"
	"github.com/syssam/stratum/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kennel(t *testing.T) (*schema.Registry, *graph.Graph) {
	t.Helper()
	reg, err := schema.NewRegistry(
		schema.Definition{
			Name:         "owners",
			SurrogateKey: true,
			Fields:       []field.Field{field.Int64("id"), field.String("name")},
		},
		schema.Definition{
			Name:         "animals",
			SurrogateKey: true,
			Fields:       []field.Field{field.Int64("id"), field.String("name")},
		},
		schema.Definition{
			Name:      "dogs",
			Ancestors: []string{"animals"},
			Fields: []field.Field{
				field.Int64("id"),
				field.String("breed"),
				field.Int64("owner_id").Nillable(),
			},
			Edges: []edge.Edge{edge.DiscretionaryTo("owner_id", "owners")},
		},
	)
	require.NoError(t, err)
	g, err := graph.Build(reg)
	require.NoError(t, err)
	return reg, g
}

func dog(t *testing.T, c *client.Client, name, breed string) *builder.Builder {
	t.Helper()
	b, err := c.Create("dogs")
	require.NoError(t, err)
	return b.Set("name", name).Set("breed", breed)
}

func TestNew(t *testing.T) {
	t.Parallel()
	reg, g := kennel(t)
	st := memstore.New(g)

	tests := []struct {
		name   string
		g      *graph.Graph
		st     store.Store
		opts   []client.Option
		option string
	}{
		{name: "NotValidated", g: graph.New(reg), st: st, option: "Graph"},
		{name: "NilGraph", st: st, option: "Graph"},
		{name: "NilStore", g: g, option: "Store"},
		{name: "NilLogger", g: g, st: st, opts: []client.Option{client.WithLogger(nil)}, option: "Logger"},
		{name: "Concurrency", g: g, st: st, opts: []client.Option{client.WithConcurrency(0)}, option: "Concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := client.New(tt.g, tt.st, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, client.IsConfigError(err))
			assert.ErrorIs(t, err, client.ErrInvalidConfig)
			var cerr *client.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.option, cerr.Option)
		})
	}

	c, err := client.New(g, st, client.WithConcurrency(2), client.WithLogger(slog.Default()))
	require.NoError(t, err)
	assert.Same(t, g, c.Graph())
}

func TestConfigError(t *testing.T) {
	t.Parallel()
	err := client.NewConfigError("Concurrency", 0, "concurrency must be at least 1")
	assert.Equal(t, `client: config error for "Concurrency" (value: 0): concurrency must be at least 1`, err.Error())
	err = client.NewConfigError("Store", nil, "store cannot be nil")
	assert.Equal(t, `client: config error for "Store": store cannot be nil`, err.Error())
	assert.False(t, client.IsConfigError(errors.New("other")))
}

func TestReadBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, g := kennel(t)
	c, err := client.New(g, memstore.New(g))
	require.NoError(t, err)

	owner, err := c.Create("owners")
	require.NoError(t, err)
	owner.Set("name", "Ariel")
	rex := dog(t, c, "Rex", "Lab")
	require.NoError(t, rex.SetDiscretionary("owner_id", owner))
	bundle, err := c.Insert(ctx, rex)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, bundle.Key())

	rec, err := c.Get(ctx, "dogs", 1)
	require.NoError(t, err)
	breed, _ := rec.Get("breed")
	assert.Equal(t, "Lab", breed)

	t.Run("Load", func(t *testing.T) {
		recs, err := c.Load(ctx, "dogs", int64(1))
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "animals", recs[0].Table().Name)
		assert.Equal(t, "dogs", recs[1].Table().Name)
		name, _ := recs[0].Get("name")
		assert.Equal(t, "Rex", name)
	})
	t.Run("Ancestor", func(t *testing.T) {
		a, err := c.Ancestor(ctx, rec, "animals")
		require.NoError(t, err)
		name, _ := a.Get("name")
		assert.Equal(t, "Rex", name)

		_, err = c.Ancestor(ctx, rec, "owners")
		assert.EqualError(t, err, "client: owners is not an ancestor of dogs")
		_, err = c.Ancestor(ctx, rec, "cats")
		assert.True(t, stratum.IsGraphError(err))
	})
	t.Run("Related", func(t *testing.T) {
		o, err := c.Related(ctx, rec, "owner_id")
		require.NoError(t, err)
		name, _ := o.Get("name")
		assert.Equal(t, "Ariel", name)

		_, err = c.Related(ctx, rec, "breed")
		assert.Error(t, err)
		_, err = c.Related(ctx, rec, "color")
		var uerr *stratum.UnknownColumnError
		assert.ErrorAs(t, err, &uerr)
	})
	t.Run("NullReference", func(t *testing.T) {
		b, err := c.Insert(ctx, dog(t, c, "Stray", "Mutt"))
		require.NoError(t, err)
		_, err = c.Related(ctx, b.Record(), "owner_id")
		assert.ErrorIs(t, err, client.ErrNullReference)
	})
	t.Run("NotFound", func(t *testing.T) {
		_, err := c.Get(ctx, "dogs", 42)
		assert.True(t, stratum.IsNotFound(err))
		_, err = c.Load(ctx, "dogs", 42)
		assert.True(t, stratum.IsNotFound(err))
		_, err = c.Get(ctx, "cats", 1)
		assert.True(t, stratum.IsGraphError(err))
	})
}

func TestInsertMany(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, g := kennel(t)
	st := memstore.New(g)
	c, err := client.New(g, st, client.WithConcurrency(3))
	require.NoError(t, err)

	bs := make([]*builder.Builder, 10)
	for i := range bs {
		bs[i] = dog(t, c, fmt.Sprintf("dog-%d", i), "Lab")
	}
	bundles, err := c.InsertMany(ctx, bs...)
	require.NoError(t, err)
	require.Len(t, bundles, len(bs))
	keys := make(map[int64]bool)
	for i, b := range bundles {
		name, _ := b.Get("name")
		assert.Equal(t, fmt.Sprintf("dog-%d", i), name)
		keys[b.Key()[0].(int64)] = true
	}
	assert.Len(t, keys, len(bs))
	assert.Equal(t, 10, st.Len("animals"))
	assert.Equal(t, 10, st.Len("dogs"))
}

func TestInsertManyError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, g := kennel(t)
	boom := errors.New("boom")
	st := memstore.New(g, memstore.WithInsertHook(func(_ context.Context, tbl *schema.Table, row store.Row) error {
		if tbl.Name == "dogs" && row["breed"] == "Bad" {
			return boom
		}
		return nil
	}))
	var buf bytes.Buffer
	c, err := client.New(g, st,
		client.WithConcurrency(1),
		client.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
	)
	require.NoError(t, err)

	bundles, err := c.InsertMany(ctx, dog(t, c, "a", "Lab"), dog(t, c, "b", "Bad"), dog(t, c, "c", "Lab"))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "client: builder #1")
	assert.Nil(t, bundles)
	assert.Equal(t, st.Len("animals"), st.Len("dogs"), "no partial lineage is committed")
	assert.Contains(t, buf.String(), "insert rolled back")
}

func TestDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, g := kennel(t)
	st := memstore.New(g)
	var buf bytes.Buffer
	c, err := client.New(g, st, client.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)

	owner, err := c.Create("owners")
	require.NoError(t, err)
	rex := dog(t, c, "Rex", "Lab")
	require.NoError(t, rex.SetDiscretionary("owner_id", owner.Set("name", "Ariel")))
	bundle, err := c.Insert(ctx, rex)
	require.NoError(t, err)
	ownerRec, ok := bundle.Referenced("owner_id")
	require.True(t, ok)

	err = c.Delete(ctx, "owners", ownerRec.Key()...)
	require.Error(t, err)
	assert.True(t, stratum.IsConstraintError(err))
	assert.Equal(t, 1, st.Len("owners"))

	require.NoError(t, c.Delete(ctx, "dogs", bundle.Key()...))
	assert.Zero(t, st.Len("dogs"))
	assert.Zero(t, st.Len("animals"))
	assert.Contains(t, buf.String(), "delete committed")

	require.NoError(t, c.Delete(ctx, "owners", ownerRec.Key()...))
	assert.Zero(t, st.Len("owners"))

	err = c.Delete(ctx, "dogs", bundle.Key()...)
	assert.True(t, stratum.IsNotFound(err))
	assert.Contains(t, buf.String(), "delete rolled back")
	assert.True(t, stratum.IsGraphError(c.Delete(ctx, "cats", 1)))
}
