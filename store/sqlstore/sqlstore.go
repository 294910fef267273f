// Package sqlstore implements store.Store on a SQL database through a
// dialect.Driver. Tables are expected to match the DDL generated by the
// dialect/sql/schema package for the same graph.
package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/syssam/stratum"
	"github.com/syssam/stratum/dialect"
	"github.com/syssam/stratum/dialect/sql"
	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/schema/field"
	"github.com/syssam/stratum/store"
)

// Store is a store.Store backed by a SQL database.
type Store struct {
	drv    dialect.Driver
	txOpts *sql.TxOptions
}

// Option configures a Store.
type Option func(*Store)

// WithTxOptions sets the options of the transactions started by Begin,
// e.g. the isolation level. The driver must implement BeginTx.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(s *Store) {
		s.txOpts = opts
	}
}

// New returns a store writing through drv.
func New(drv dialect.Driver, opts ...Option) *Store {
	s := &Store{drv: drv}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Driver returns the underlying driver.
func (s *Store) Driver() dialect.Driver { return s.drv }

type txBeginner interface {
	BeginTx(context.Context, *sql.TxOptions) (dialect.Tx, error)
}

// Begin starts a database transaction.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	var (
		tx  dialect.Tx
		err error
	)
	if s.txOpts == nil {
		tx, err = s.drv.Tx(ctx)
	} else if b, ok := s.drv.(txBeginner); ok {
		tx, err = b.BeginTx(ctx, s.txOpts)
	} else {
		err = fmt.Errorf("driver %T does not support transaction options", s.drv)
	}
	if err != nil {
		return nil, stratum.NewStoreError("", "begin", stratum.StoreOther, err)
	}
	return &Tx{tx: tx, dialect: s.drv.Dialect()}, nil
}

// Tx is a database transaction.
type Tx struct {
	tx      dialect.Tx
	dialect string
}

// InsertRow implements store.Tx. Surrogate integer keys are read back with
// RETURNING, or from the last insert id on MySQL; surrogate UUID keys are
// generated before the insert.
func (tx *Tx) InsertRow(ctx context.Context, t *schema.Table, row store.Row) ([]any, error) {
	var generated *schema.Column
	if pk := t.PrimaryKey[0]; t.Surrogate && row[pk.Name] == nil {
		row = row.Clone()
		switch pk.Type {
		case field.TypeUUID:
			row[pk.Name] = uuid.New()
		default:
			generated = pk
			delete(row, pk.Name)
		}
	}
	ins := sql.Dialect(tx.dialect).Insert(t.Name)
	for _, c := range t.Columns {
		if v, ok := row[c.Name]; ok {
			ins.Set(c.Name, v)
		}
	}
	key := row.Key(t)
	switch {
	case generated == nil:
		query, args := ins.Query()
		if err := tx.tx.Exec(ctx, query, args, nil); err != nil {
			return nil, wrap(t, "insert", err)
		}
	case tx.dialect == dialect.MySQL:
		var res sql.Result
		query, args := ins.Query()
		if err := tx.tx.Exec(ctx, query, args, &res); err != nil {
			return nil, wrap(t, "insert", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, wrap(t, "insert", err)
		}
		key[0] = id
	default:
		var rows sql.Rows
		query, args := ins.Returning(generated.Name).Query()
		if err := tx.tx.Query(ctx, query, args, &rows); err != nil {
			return nil, wrap(t, "insert", err)
		}
		values, ok, err := sql.ScanValues(&rows, 1)
		if err != nil {
			return nil, wrap(t, "insert", err)
		}
		if !ok {
			return nil, wrap(t, "insert", errors.New("no key returned"))
		}
		if key[0], err = generated.Normalize(values[0]); err != nil {
			return nil, wrap(t, "insert", err)
		}
	}
	return key, nil
}

// FetchRow implements store.Tx.
func (tx *Tx) FetchRow(ctx context.Context, t *schema.Table, key []any) (store.Row, error) {
	where, err := keyPredicate(t, key)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	var rows sql.Rows
	query, args := sql.Dialect(tx.dialect).Select(names...).From(t.Name).Where(where).Query()
	if err := tx.tx.Query(ctx, query, args, &rows); err != nil {
		return nil, wrap(t, "fetch", err)
	}
	values, ok, err := sql.ScanValues(&rows, len(names))
	if err != nil {
		return nil, wrap(t, "fetch", err)
	}
	if !ok {
		return nil, &stratum.NotFoundError{Table: t.Name, Key: key}
	}
	row := make(store.Row, len(values))
	for i, c := range t.Columns {
		v, err := c.Normalize(values[i])
		if err != nil {
			return nil, wrap(t, "fetch", fmt.Errorf("column %q: %w", c.Name, err))
		}
		row[c.Name] = v
	}
	return row, nil
}

// DeleteRow implements store.Tx.
func (tx *Tx) DeleteRow(ctx context.Context, t *schema.Table, key []any) error {
	where, err := keyPredicate(t, key)
	if err != nil {
		return err
	}
	var res sql.Result
	query, args := sql.Dialect(tx.dialect).Delete(t.Name).Where(where).Query()
	if err := tx.tx.Exec(ctx, query, args, &res); err != nil {
		return wrap(t, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(t, "delete", err)
	}
	if n == 0 {
		return &stratum.NotFoundError{Table: t.Name, Key: key}
	}
	return nil
}

// Commit implements store.Tx.
func (tx *Tx) Commit() error {
	if err := tx.tx.Commit(); err != nil {
		return stratum.NewStoreError("", "commit", classify(err), err)
	}
	return nil
}

// Rollback implements store.Tx.
func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}

func keyPredicate(t *schema.Table, key []any) (sql.Predicate, error) {
	if len(key) != len(t.PrimaryKey) {
		return nil, fmt.Errorf("sqlstore: %s has %d key columns, got %d values", t.Name, len(t.PrimaryKey), len(key))
	}
	preds := make([]sql.Predicate, len(key))
	for i, c := range t.PrimaryKey {
		v, err := c.Normalize(key[i])
		if err != nil {
			return nil, fmt.Errorf("sqlstore: key column %s: %w", c, err)
		}
		preds[i] = sql.EQ(c.Name, v)
	}
	return sql.And(preds...), nil
}

func wrap(t *schema.Table, op string, err error) error {
	return stratum.NewStoreError(t.Name, op, classify(err), err)
}

var _ store.Store = (*Store)(nil)
