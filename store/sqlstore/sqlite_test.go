package sqlstore_test

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"testing"

	"github.com/syssam/stratum"
	"github.com/syssam/stratum/builder"
	"github.com/syssam/stratum/dialect"
	"github.com/syssam/stratum/dialect/sql"
	migrate "github.com/syssam/stratum/dialect/sql/schema"
	"github.com/syssam/stratum/graph"
	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/schema/edge"
	"github.com/syssam/stratum/schema/field"
	"github.com/syssam/stratum/schema/index"
	"github.com/syssam/stratum/store"
	"github.com/syssam/stratum/store/sqlstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func familyGraph(t *testing.T) *graph.Graph {
	t.Helper()
	reg, err := schema.NewRegistry(
		schema.Definition{
			Name:         "parents",
			SurrogateKey: true,
			Fields:       []field.Field{field.Int64("id"), field.String("name")},
		},
		schema.Definition{
			Name:         "sponsors",
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
		schema.Definition{
			Name:      "children",
			Ancestors: []string{"parents"},
			Fields: []field.Field{
				field.Int64("id").SameAs("sponsors", "parent_id"),
				field.Int64("sponsor_id"),
				field.String("sponsor_field").SameAs("sponsors", "field"),
				field.Int64("friend_id").Nillable(),
			},
			Edges: []edge.Edge{
				edge.MandatoryTo("sponsor_id", "sponsors"),
				edge.DiscretionaryTo("friend_id", "parents"),
			},
		},
	)
	require.NoError(t, err)
	g, err := graph.Build(reg)
	require.NoError(t, err)
	return g
}

func openStore(t *testing.T, g *graph.Graph) (*sqlstore.Store, *stdsql.DB) {
	t.Helper()
	db, err := stdsql.Open(dialect.SQLite, fmt.Sprintf("file:%s?mode=memory&_pragma=foreign_keys(1)", t.Name()))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	drv := sql.OpenDB(dialect.SQLite, db)
	require.NoError(t, migrate.Create(context.Background(), drv, g))
	return sqlstore.New(drv), db
}

func count(t *testing.T, db *stdsql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM "+table).Scan(&n))
	return n
}

func TestSQLiteInsert(t *testing.T) {
	ctx := context.Background()
	g := familyGraph(t)
	st, db := openStore(t, g)

	b := builder.MustNew(g, "children").Set("name", "Ann")
	require.NoError(t, b.SetMandatory("sponsor_id", builder.MustNew(g, "sponsors").Set("field", "abc")))
	bundle, err := b.Insert(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, bundle.Key())

	sponsor, ok := bundle.Referenced("sponsor_id")
	require.True(t, ok)
	parentID, _ := sponsor.Get("parent_id")
	assert.Equal(t, int64(1), parentID)

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	row, err := tx.FetchRow(ctx, g.Registry().MustTable("children"), bundle.Key())
	require.NoError(t, err)
	assert.Equal(t, store.Row{
		"id":            int64(1),
		"sponsor_id":    sponsor.Key()[0],
		"sponsor_field": "abc",
		"friend_id":     nil,
	}, row)
	require.NoError(t, tx.Commit())

	// A second child befriends the first one.
	friend, err := builder.NewRecord(g.Registry().MustTable("parents"), store.Row{"id": 1, "name": "Ann"})
	require.NoError(t, err)
	b = builder.MustNew(g, "children").Set("name", "Bob")
	require.NoError(t, b.SetMandatory("sponsor_id", builder.MustNew(g, "sponsors").Set("field", "def")))
	require.NoError(t, b.SetDiscretionaryRecord("friend_id", friend))
	bundle, err = b.Insert(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2)}, bundle.Key())
	assert.Equal(t, 2, count(t, db, "children"))
	assert.Equal(t, 2, count(t, db, "sponsors"))
}

func TestSQLiteRollback(t *testing.T) {
	ctx := context.Background()
	g := familyGraph(t)
	st, db := openStore(t, g)

	missing, err := builder.NewRecord(g.Registry().MustTable("parents"), store.Row{"id": 42, "name": "Nobody"})
	require.NoError(t, err)
	b := builder.MustNew(g, "children").Set("name", "Ann")
	require.NoError(t, b.SetMandatory("sponsor_id", builder.MustNew(g, "sponsors").Set("field", "abc")))
	require.NoError(t, b.SetDiscretionaryRecord("friend_id", missing))
	_, err = b.Insert(ctx, st)
	require.Error(t, err)
	assert.True(t, stratum.IsConstraintError(err))

	for _, table := range []string{"parents", "sponsors", "children"} {
		assert.Zero(t, count(t, db, table), table)
	}
}
