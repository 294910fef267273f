// Package memstore provides an in-memory transactional record store.
//
// Transactions work on a private copy of the committed state that replaces
// it on commit, so a rolled back transaction leaves no trace. The store
// enforces the constraints a SQL schema generated from the same graph would:
// primary keys and unique indices, NOT NULL columns, and foreign keys for
// ancestor edges, triangular keys and same-as bindings.
package memstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/stratum"
	"github.com/syssam/stratum/graph"
	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/schema/field"
	"github.com/syssam/stratum/store"
)

// ErrTxDone is returned by operations on a committed or rolled back transaction.
var ErrTxDone = errors.New("memstore: transaction has already been committed or rolled back")

// InsertHook is called before a row is inserted. A non-nil error aborts the
// insert and is returned to the caller as is.
type InsertHook func(ctx context.Context, t *schema.Table, row store.Row) error

// Option configures a Store.
type Option func(*Store)

// WithInsertHook sets a hook called before every insert.
func WithInsertHook(h InsertHook) Option {
	return func(s *Store) {
		s.hook = h
	}
}

// Store is an in-memory store.Store. Transactions are serialized: Begin
// blocks until the previous transaction ends or ctx is done.
type Store struct {
	g    *graph.Graph
	fks  [][]*graph.ForeignKey // by table ID.
	hook InsertHook
	sem  chan struct{}

	mu    sync.RWMutex // guards state.
	state *state
}

type state struct {
	tables []*tableState // by table ID.
}

type tableState struct {
	rows map[string]store.Row // by encoded primary key.
	seq  int64
}

func (s *state) clone() *state {
	c := &state{tables: make([]*tableState, len(s.tables))}
	for i, t := range s.tables {
		rows := make(map[string]store.Row, len(t.rows))
		for k, r := range t.rows {
			rows[k] = r
		}
		c.tables[i] = &tableState{rows: rows, seq: t.seq}
	}
	return c
}

// New returns an empty store for the tables of g.
func New(g *graph.Graph, opts ...Option) *Store {
	reg := g.Registry()
	s := &Store{
		g:     g,
		fks:   make([][]*graph.ForeignKey, reg.Len()),
		sem:   make(chan struct{}, 1),
		state: &state{tables: make([]*tableState, reg.Len())},
	}
	for _, t := range reg.Tables() {
		s.state.tables[t.ID] = &tableState{rows: make(map[string]store.Row)}
		s.fks[t.ID] = g.ForeignKeys(t)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.RLock()
	st := s.state.clone()
	s.mu.RUnlock()
	return &Tx{s: s, state: st}, nil
}

// Rows returns the committed rows of the named table ordered by key.
func (s *Store) Rows(table string) []store.Row {
	t, ok := s.g.Table(table)
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRows(t, s.state.tables[t.ID])
}

// Len returns the number of committed rows in the named table.
func (s *Store) Len(table string) int {
	t, ok := s.g.Table(table)
	if !ok {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.tables[t.ID].rows)
}

func sortedRows(t *schema.Table, ts *tableState) []store.Row {
	rows := make([]store.Row, 0, len(ts.rows))
	for _, r := range ts.rows {
		rows = append(rows, r.Clone())
	}
	slices.SortFunc(rows, func(a, b store.Row) int {
		return compareKeys(a.Key(t), b.Key(t))
	})
	return rows
}

func compareKeys(a, b []any) int {
	for i := range a {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func compareValues(a, b any) int {
	switch a := a.(type) {
	case int64:
		if b, ok := b.(int64); ok {
			return cmp.Compare(a, b)
		}
	case float64:
		if b, ok := b.(float64); ok {
			return cmp.Compare(a, b)
		}
	case string:
		if b, ok := b.(string); ok {
			return cmp.Compare(a, b)
		}
	case time.Time:
		if b, ok := b.(time.Time); ok {
			return a.Compare(b)
		}
	}
	return cmp.Compare(encode(a), encode(b))
}

// encode returns a map key for a tuple of normalized values.
func encode(values ...any) string {
	var sb strings.Builder
	for _, v := range values {
		switch v := v.(type) {
		case time.Time:
			fmt.Fprintf(&sb, "t:%s|", v.UTC().Format(time.RFC3339Nano))
		default:
			fmt.Fprintf(&sb, "%T:%v|", v, v)
		}
	}
	return sb.String()
}

// Tx is a store transaction.
type Tx struct {
	s     *Store
	state *state
	done  bool
}

var _ store.Tx = (*Tx)(nil)

// InsertRow implements store.Tx.
func (tx *Tx) InsertRow(ctx context.Context, t *schema.Table, row store.Row) ([]any, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tx.s.hook != nil {
		if err := tx.s.hook(ctx, t, row); err != nil {
			return nil, err
		}
	}
	ts := tx.state.tables[t.ID]
	values := make(store.Row, len(t.Columns))
	for name, v := range row {
		c, ok := t.Column(name)
		if !ok {
			return nil, stratum.NewStoreError(t.Name, "insert", stratum.StoreOther, fmt.Errorf("unknown column %q", name))
		}
		nv, err := c.Normalize(v)
		if err != nil {
			return nil, stratum.NewStoreError(t.Name, "insert", stratum.StoreCheck, fmt.Errorf("column %q: %w", name, err))
		}
		values[name] = nv
	}
	if t.Surrogate {
		pk := t.PrimaryKey[0]
		switch v := values[pk.Name].(type) {
		case int64:
			ts.seq = max(ts.seq, v)
		case nil:
			switch pk.Type {
			case field.TypeInt64:
				ts.seq++
				values[pk.Name] = ts.seq
			case field.TypeUUID:
				values[pk.Name] = uuid.New()
			}
		}
	}
	for _, c := range t.Columns {
		if v, ok := values[c.Name]; !c.Nullable && (!ok || v == nil) {
			return nil, stratum.NewStoreError(t.Name, "insert", stratum.StoreNotNull, fmt.Errorf("column %q cannot be null", c.Name))
		} else if !ok {
			values[c.Name] = nil
		}
	}
	key := values.Key(t)
	if _, ok := ts.rows[encode(key...)]; ok {
		return nil, stratum.NewStoreError(t.Name, "insert", stratum.StoreUnique, fmt.Errorf("duplicate primary key %v", key))
	}
	for _, idx := range t.Indexes {
		if err := tx.checkUnique(t, idx, values); err != nil {
			return nil, err
		}
	}
	for _, fk := range tx.s.fks[t.ID] {
		if err := tx.checkReference(t, fk, values); err != nil {
			return nil, err
		}
	}
	ts.rows[encode(key...)] = values
	return key, nil
}

func (tx *Tx) checkUnique(t *schema.Table, idx *schema.Index, values store.Row) error {
	want := make([]any, len(idx.Columns))
	for i, c := range idx.Columns {
		if want[i] = values[c.Name]; want[i] == nil {
			return nil
		}
	}
	for _, r := range tx.state.tables[t.ID].rows {
		if match(r, idx.Columns, want) {
			return stratum.NewStoreError(t.Name, "insert", stratum.StoreUnique, fmt.Errorf("duplicate value for index %s", idx.Name))
		}
	}
	return nil
}

func (tx *Tx) checkReference(t *schema.Table, fk *graph.ForeignKey, values store.Row) error {
	want := make([]any, len(fk.Columns))
	for i, c := range fk.Columns {
		if want[i] = values[c.Name]; want[i] == nil {
			return nil
		}
	}
	for _, r := range tx.state.tables[fk.Ref.ID].rows {
		if match(r, fk.RefColumns, want) {
			return nil
		}
	}
	return stratum.NewStoreError(t.Name, "insert", stratum.StoreForeignKey, fmt.Errorf("%s: no row matches %v", fk, want))
}

func match(r store.Row, cols []*schema.Column, want []any) bool {
	for i, c := range cols {
		if !field.Equal(r[c.Name], want[i]) {
			return false
		}
	}
	return true
}

// FetchRow implements store.Tx.
func (tx *Tx) FetchRow(ctx context.Context, t *schema.Table, key []any) (store.Row, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := normalizeKey(t, key)
	if err != nil {
		return nil, err
	}
	r, ok := tx.state.tables[t.ID].rows[encode(k...)]
	if !ok {
		return nil, &stratum.NotFoundError{Table: t.Name, Key: key}
	}
	return r.Clone(), nil
}

// DeleteRow implements store.Tx. Rows still referenced by a foreign key
// cannot be deleted.
func (tx *Tx) DeleteRow(ctx context.Context, t *schema.Table, key []any) error {
	if tx.done {
		return ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := normalizeKey(t, key)
	if err != nil {
		return err
	}
	ek := encode(k...)
	r, ok := tx.state.tables[t.ID].rows[ek]
	if !ok {
		return &stratum.NotFoundError{Table: t.Name, Key: key}
	}
	for id, fks := range tx.s.fks {
		for _, fk := range fks {
			if fk.Ref != t {
				continue
			}
			want := make([]any, len(fk.RefColumns))
			for i, c := range fk.RefColumns {
				want[i] = r[c.Name]
			}
			for _, other := range tx.state.tables[id].rows {
				if match(other, fk.Columns, want) {
					return stratum.NewStoreError(t.Name, "delete", stratum.StoreForeignKey, fmt.Errorf("row is referenced by %s", fk))
				}
			}
		}
	}
	delete(tx.state.tables[t.ID].rows, ek)
	return nil
}

func normalizeKey(t *schema.Table, key []any) ([]any, error) {
	if len(key) != len(t.PrimaryKey) {
		return nil, fmt.Errorf("memstore: %s has %d key columns, got %d values", t.Name, len(t.PrimaryKey), len(key))
	}
	k := make([]any, len(key))
	for i, c := range t.PrimaryKey {
		v, err := c.Normalize(key[i])
		if err != nil {
			return nil, fmt.Errorf("memstore: key column %s: %w", c, err)
		}
		k[i] = v
	}
	return k, nil
}

// Commit makes the changes of the transaction visible.
func (tx *Tx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	tx.s.mu.Lock()
	tx.s.state = tx.state
	tx.s.mu.Unlock()
	<-tx.s.sem
	return nil
}

// Rollback discards the changes of the transaction.
func (tx *Tx) Rollback() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	<-tx.s.sem
	return nil
}
