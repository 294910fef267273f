// Package store defines the record store consumed by the insertion executor.
//
// A store executes single-table operations inside a transaction and knows
// nothing of the relationship graph above it. Two implementations ship with
// stratum: memstore (in-memory, used by tests and tools) and sqlstore (SQL
// databases through dialect/sql).
package store

import (
	"context"
	"maps"

	"github.com/syssam/stratum/schema"
)

// Row holds column values keyed by column name.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row { return maps.Clone(r) }

// Key returns the values of the primary key columns of t, in key order.
func (r Row) Key(t *schema.Table) []any {
	key := make([]any, len(t.PrimaryKey))
	for i, c := range t.PrimaryKey {
		key[i] = r[c.Name]
	}
	return key
}

// Store opens transactions.
type Store interface {
	Begin(context.Context) (Tx, error)
}

// Tx is a store transaction. Implementations report constraint failures as
// *stratum.StoreError and missing rows as *stratum.NotFoundError.
type Tx interface {
	// InsertRow writes one row and returns its primary key. The primary key of
	// a surrogate table is omitted from row and generated by the store.
	InsertRow(ctx context.Context, t *schema.Table, row Row) ([]any, error)
	// FetchRow reads the row with the given primary key.
	FetchRow(ctx context.Context, t *schema.Table, key []any) (Row, error)
	// DeleteRow removes the row with the given primary key.
	DeleteRow(ctx context.Context, t *schema.Table, key []any) error
	Commit() error
	Rollback() error
}
