package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/stratum/dialect"
)

// Driver runs statements of a record store over a database/sql pool.
type Driver struct {
	Conn
	dialect string
}

// NewDriver returns a Driver for the given connection. Driver names that
// extend a dialect name, such as "sqlite3" or "postgres-traced", resolve
// to that dialect.
func NewDriver(name string, c Conn) *Driver {
	name = dialectOf(name)
	c.dialect = name
	return &Driver{dialect: name, Conn: c}
}

// Open opens a pool with the database/sql driver registered under name.
// The driver package must be imported by the caller, as cmd/stratum does
// for the migrate command.
func Open(name, source string) (*Driver, error) {
	if err := dialect.Check(dialectOf(name)); err != nil {
		return nil, err
	}
	db, err := sql.Open(name, source)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: open %s: %w", name, err)
	}
	return OpenDB(name, db), nil
}

// OpenDB returns a Driver over an already opened pool.
func OpenDB(name string, db *sql.DB) *Driver {
	return NewDriver(name, Conn{ExecQuerier: db})
}

// DB returns the pool the driver was opened on.
func (d Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Dialect returns the resolved dialect name.
func (d Driver) Dialect() string { return d.dialect }

func dialectOf(name string) string {
	for _, known := range []string{dialect.Postgres, dialect.MySQL, dialect.SQLite} {
		if strings.HasPrefix(name, known) {
			return known
		}
	}
	return name
}

// Tx starts a transaction with default options.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with opts. sqlstore passes the options
// set by WithTxOptions.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (dialect.Tx, error) {
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: begin: %w", err)
	}
	return &Tx{Conn: Conn{ExecQuerier: tx, dialect: d.dialect}, Tx: tx}, nil
}

// Close closes the pool.
func (d *Driver) Close() error { return d.DB().Close() }

// Tx is a transaction on the pool. Statements run through Conn.
type Tx struct {
	Conn
	driver.Tx
}

// ExecQuerier is the subset of *sql.DB and *sql.Tx used by Conn.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn adapts an ExecQuerier to dialect.ExecQuerier.
type Conn struct {
	ExecQuerier
	dialect string
}

// Exec runs a statement. v is nil or a *Result receiving the outcome.
func (c Conn) Exec(ctx context.Context, query string, args, v any) error {
	argv, err := arguments(args)
	if err != nil {
		return err
	}
	res, ok := v.(*Result)
	if v != nil && !ok {
		return fmt.Errorf("dialect/sql: exec wants a *Result, got %T", v)
	}
	r, err := c.ExecContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: %w", err)
	}
	if res != nil {
		*res = r
	}
	return nil
}

// Query runs a statement returning rows into v, which must be a *Rows.
// The caller closes the rows.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	rows, ok := v.(*Rows)
	if !ok || rows == nil {
		return fmt.Errorf("dialect/sql: query wants a *Rows, got %T", v)
	}
	argv, err := arguments(args)
	if err != nil {
		return err
	}
	r, err := c.QueryContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	*rows = Rows{r}
	return nil
}

func arguments(args any) ([]any, error) {
	argv, ok := args.([]any)
	if !ok {
		return nil, fmt.Errorf("dialect/sql: arguments must be []any, got %T", args)
	}
	return argv, nil
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
)

type (
	// Rows holds the result set of Query behind a pointer-free wrapper.
	Rows struct{ ColumnScanner }
	// Result is the outcome of Exec.
	Result = sql.Result
	// TxOptions configures transactions started by BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the part of *sql.Rows that ScanValues reads from.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

// ScanValues reads the single remaining row of rows into a slice of n
// values. It reports false if rows holds no row.
func ScanValues(rows *Rows, n int) ([]any, bool, error) {
	defer rows.Close()
	if !rows.Next() {
		return nil, false, rows.Err()
	}
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, false, err
	}
	if rows.Next() {
		return nil, false, errors.New("dialect/sql: more than one row returned")
	}
	return values, true, rows.Err()
}
