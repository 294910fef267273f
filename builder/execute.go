package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/stratum"
	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/store"
)

// Executor writes plans to a record store, one transaction per plan.
// An Executor holds no state between executions and may be shared.
type Executor struct {
	store  store.Store
	logger *slog.Logger
}

// ExecOption configures an Executor.
type ExecOption func(*Executor)

// WithLogger sets the logger used for execution events.
// Default is slog.Default().
func WithLogger(l *slog.Logger) ExecOption {
	return func(x *Executor) {
		x.logger = l
	}
}

// NewExecutor returns an executor writing to st.
func NewExecutor(st store.Store, opts ...ExecOption) *Executor {
	x := &Executor{store: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Insert resolves the builder and writes its plan to st in one transaction.
func (b *Builder) Insert(ctx context.Context, st store.Store, opts ...ExecOption) (*Bundle, error) {
	p, err := b.Resolve()
	if err != nil {
		return nil, err
	}
	return NewExecutor(st, opts...).Execute(ctx, p)
}

type rowKey struct {
	b  *Builder
	id int // table ID.
}

// execution holds the rows written so far by one plan.
type execution struct {
	written map[rowKey]*Record
}

// Execute writes every step of the plan inside one transaction. Values only
// known once earlier rows exist (generated keys, mirrored columns) are read
// from the rows already written by the plan and validated before use. On any
// failure the transaction is rolled back and no bundle is returned.
func (x *Executor) Execute(ctx context.Context, p *Plan) (_ *Bundle, rerr error) {
	var (
		start   = time.Now()
		attempt = uuid.NewString()
		log     = x.logger.With("attempt", attempt, "table", p.root.table.Name)
	)
	tx, err := x.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("builder: begin transaction: %w", err)
	}
	defer func() {
		if rerr == nil {
			return
		}
		if err := tx.Rollback(); err != nil {
			rerr = errors.Join(rerr, &stratum.RollbackError{Err: err})
		}
		log.Warn("insert rolled back", "steps", p.Len(), "duration", time.Since(start), "error", rerr)
	}()
	ex := &execution{written: make(map[rowKey]*Record, p.Len())}
	order := make([]*Record, 0, p.Len())
	for i, s := range p.steps {
		row, err := ex.row(s)
		if err != nil {
			return nil, err
		}
		key, err := tx.InsertRow(ctx, s.Table, row)
		if err != nil {
			return nil, err
		}
		rec, err := record(s.Table, row, key)
		if err != nil {
			return nil, err
		}
		ex.written[rowKey{s.builder, s.Table.ID}] = rec
		order = append(order, rec)
		log.Debug("row written", "step", i+1, "row", s.Table.Name, "key", rec.key)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("builder: commit: %w", err)
	}
	log.Info("insert committed", "steps", p.Len(), "duration", time.Since(start))
	bundle := ex.bundle(p.root)
	bundle.order = order
	return bundle, nil
}

// row computes the values written by one step. The key of a surrogate table
// is left to the store.
func (ex *execution) row(s Step) (store.Row, error) {
	row := make(store.Row, len(s.Table.Columns))
	for _, c := range s.Table.Columns {
		if c.InPrimaryKey() && s.Table.Surrogate {
			continue
		}
		v, err := ex.value(s.builder, c)
		if err != nil {
			return nil, err
		}
		if v, err = c.Check(v); err != nil {
			return nil, err
		}
		row[c.Name] = v
	}
	return row, nil
}

// value returns the value of column c in builder b, following references to
// other columns and to rows written earlier in the plan.
func (ex *execution) value(b *Builder, c *schema.Column) (any, error) {
	if rec, ok := ex.written[rowKey{b, c.Table.ID}]; ok {
		return rec.values[c.Name], nil
	}
	switch b.boundBy(c) {
	case boundAncestor:
		a := b.g.Ancestors(c.Table)[0]
		return ex.value(b, a.PrimaryKey[slices.Index(c.Table.PrimaryKey, c)])
	case boundGenerated:
		return nil, fmt.Errorf("builder: key of %s read before the row is written", c.Table.Name)
	case boundPushed:
		return ex.value(b.host, b.pushed[c].Column)
	case boundKey:
		a := b.bundles[c.Table.ID].nested[c]
		switch {
		case a == nil:
			return nil, nil
		case a.record != nil:
			return a.record.key[0], nil
		default:
			return ex.value(a.builder, a.edge.Target.PrimaryKey[0])
		}
	case boundMirror:
		m, _ := b.g.Mirror(c)
		a := b.bundles[c.Table.ID].nested[m.Edge.Key]
		switch {
		case a == nil:
			return nil, nil
		case a.record != nil:
			v, _ := a.record.Get(m.Target.Name)
			return v, nil
		default:
			return ex.value(a.builder, m.Target)
		}
	}
	cl := b.cell(c)
	if cl.ref != nil {
		return ex.value(b, cl.ref)
	}
	return cl.value, nil
}

func (ex *execution) bundle(b *Builder) *Bundle {
	out := &Bundle{
		table:    b.table,
		nested:   make(map[*schema.Column]*Bundle),
		existing: make(map[*schema.Column]*Record),
	}
	for _, t := range b.lineage {
		out.lineage = append(out.lineage, ex.written[rowKey{b, t.ID}])
		for k, a := range b.bundles[t.ID].nested {
			if a.record != nil {
				out.existing[k] = a.record
			} else {
				out.nested[k] = ex.bundle(a.builder)
			}
		}
	}
	return out
}

// record builds the record of a written row, filling in the key returned by
// the store.
func record(t *schema.Table, row store.Row, key []any) (*Record, error) {
	if len(key) != len(t.PrimaryKey) {
		return nil, stratum.NewStoreError(t.Name, "insert", stratum.StoreOther, fmt.Errorf("store returned %d key values, want %d", len(key), len(t.PrimaryKey)))
	}
	values := row.Clone()
	for i, c := range t.PrimaryKey {
		v, err := c.Normalize(key[i])
		if err != nil {
			return nil, stratum.NewStoreError(t.Name, "insert", stratum.StoreOther, err)
		}
		values[c.Name] = v
	}
	return &Record{table: t, values: values, key: values.Key(t)}, nil
}
