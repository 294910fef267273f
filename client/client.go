// Package client is the entry point for applications writing records with
// stratum. It ties a validated graph to a record store and adds reads,
// deletes and concurrent insertion on top of the builder package.
//
//	c, err := client.New(g, memstore.New(g), client.WithConcurrency(4))
//	if err != nil {
//	    return err
//	}
//	b, err := c.Create("dogs")
//	if err != nil {
//	    return err
//	}
//	bundle, err := c.Insert(ctx, b.Set("name", "Rex").Set("breed", "Lab"))
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/stratum"
	"github.com/syssam/stratum/builder"
	"github.com/syssam/stratum/graph"
	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/store"
)

// ErrNullReference is returned by Related when the reference column holds
// no value.
var ErrNullReference = errors.New("client: reference is null")

// DefaultConcurrency is the number of concurrent insertions run by
// InsertMany unless configured otherwise.
const DefaultConcurrency = 8

// Client writes and reads records of one graph.
type Client struct {
	g           *graph.Graph
	st          store.Store
	exec        *builder.Executor
	logger      *slog.Logger
	concurrency int
}

// New returns a client over g and st. The graph must be validated.
func New(g *graph.Graph, st store.Store, opts ...Option) (*Client, error) {
	if g == nil || !g.Validated() {
		return nil, NewConfigError("Graph", nil, "graph must be built and validated")
	}
	if st == nil {
		return nil, NewConfigError("Store", nil, "store cannot be nil")
	}
	c := &Client{
		g:           g,
		st:          st,
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.exec = builder.NewExecutor(st, builder.WithLogger(c.logger))
	return c, nil
}

// Graph returns the graph of the client.
func (c *Client) Graph() *graph.Graph { return c.g }

// Create returns a new builder for table.
func (c *Client) Create(table string) (*builder.Builder, error) {
	return builder.New(c.g, table)
}

// Insert resolves b and writes its plan in one transaction.
func (c *Client) Insert(ctx context.Context, b *builder.Builder) (*builder.Bundle, error) {
	p, err := b.Resolve()
	if err != nil {
		return nil, err
	}
	return c.exec.Execute(ctx, p)
}

// InsertMany inserts independent builders concurrently, each in its own
// transaction. Bundles are returned in the order of the builders. On failure
// the first error is returned and the remaining insertions are canceled;
// insertions that already committed stay committed.
func (c *Client) InsertMany(ctx context.Context, bs ...*builder.Builder) ([]*builder.Bundle, error) {
	plans := make([]*builder.Plan, len(bs))
	for i, b := range bs {
		p, err := b.Resolve()
		if err != nil {
			return nil, fmt.Errorf("client: builder #%d: %w", i, err)
		}
		plans[i] = p
	}
	bundles := make([]*builder.Bundle, len(plans))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.concurrency)
	for i, p := range plans {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			bundle, err := c.exec.Execute(ctx, p)
			if err != nil {
				return fmt.Errorf("client: builder #%d: %w", i, err)
			}
			bundles[i] = bundle
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return bundles, nil
}

// Get reads the row of table with the given primary key.
func (c *Client) Get(ctx context.Context, table string, key ...any) (*builder.Record, error) {
	t, err := c.table(table)
	if err != nil {
		return nil, err
	}
	var rec *builder.Record
	err = c.read(ctx, func(tx store.Tx) error {
		rec, err = fetch(ctx, tx, t, key)
		return err
	})
	return rec, err
}

// Load reads the row of table with the given primary key together with its
// ancestor rows, in write order: ancestors first, the row of table last.
func (c *Client) Load(ctx context.Context, table string, key ...any) ([]*builder.Record, error) {
	t, err := c.table(table)
	if err != nil {
		return nil, err
	}
	lineage := c.g.Lineage(t)
	recs := make([]*builder.Record, len(lineage))
	err = c.read(ctx, func(tx store.Tx) error {
		for i, lt := range lineage {
			rec, err := fetch(ctx, tx, lt, key)
			if err != nil {
				return err
			}
			recs[i] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Ancestor reads the row of the ancestor table sharing the key of rec.
func (c *Client) Ancestor(ctx context.Context, rec *builder.Record, table string) (*builder.Record, error) {
	a, err := c.table(table)
	if err != nil {
		return nil, err
	}
	if !c.g.IsAncestor(rec.Table(), a) {
		return nil, fmt.Errorf("client: %s is not an ancestor of %s", a.Name, rec.Table().Name)
	}
	return c.Get(ctx, a.Name, rec.Key()...)
}

// Related reads the row referenced by the triangular key column of rec.
// ErrNullReference is returned if the column holds no value.
func (c *Client) Related(ctx context.Context, rec *builder.Record, column string) (*builder.Record, error) {
	col, ok := rec.Table().Column(column)
	if !ok {
		return nil, &stratum.UnknownColumnError{Table: rec.Table().Name, Column: column}
	}
	e, ok := c.g.Triangular(col)
	if !ok {
		return nil, fmt.Errorf("client: %s is not a triangular key", col)
	}
	v, _ := rec.Get(column)
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrNullReference, col)
	}
	return c.Get(ctx, e.Target.Name, v)
}

// Delete removes the row of table with the given primary key together with
// its ancestor rows, in one transaction. Rows are removed from the most
// derived table up, so ancestor edges never dangle. Rows still referenced
// by other rows make the deletion fail with a foreign key StoreError.
func (c *Client) Delete(ctx context.Context, table string, key ...any) (rerr error) {
	t, err := c.table(table)
	if err != nil {
		return err
	}
	lineage := c.g.Lineage(t)
	slices.Reverse(lineage)
	tx, err := c.st.Begin(ctx)
	if err != nil {
		return fmt.Errorf("client: begin transaction: %w", err)
	}
	defer func() {
		if rerr == nil {
			return
		}
		if err := tx.Rollback(); err != nil {
			rerr = errors.Join(rerr, &stratum.RollbackError{Err: err})
		}
		c.logger.Warn("delete rolled back", "table", t.Name, "key", key, "error", rerr)
	}()
	for _, lt := range lineage {
		if err := tx.DeleteRow(ctx, lt, key); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("client: commit: %w", err)
	}
	c.logger.Info("delete committed", "table", t.Name, "key", key, "rows", len(lineage))
	return nil
}

func (c *Client) table(name string) (*schema.Table, error) {
	t, ok := c.g.Table(name)
	if !ok {
		return nil, stratum.NewGraphError(stratum.UnknownTable, name, "", "table is not declared")
	}
	return t, nil
}

// read runs fn in a transaction that is always rolled back.
func (c *Client) read(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := c.st.Begin(ctx)
	if err != nil {
		return fmt.Errorf("client: begin transaction: %w", err)
	}
	err = fn(tx)
	if rerr := tx.Rollback(); rerr != nil {
		err = errors.Join(err, &stratum.RollbackError{Err: rerr})
	}
	return err
}

func fetch(ctx context.Context, tx store.Tx, t *schema.Table, key []any) (*builder.Record, error) {
	row, err := tx.FetchRow(ctx, t, key)
	if err != nil {
		return nil, err
	}
	return builder.NewRecord(t, row)
}
