// Package dialect defines the driver interfaces used by the SQL record store
// and the schema migrator.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL, through github.com/lib/pq
//   - MySQL: MySQL and MariaDB, through github.com/go-sql-driver/mysql
//   - SQLite: SQLite, through modernc.org/sqlite
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// A Tx carries the same Exec and Query methods plus Commit and Rollback.
//
// # Usage
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db?_pragma=foreign_keys(1)")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//	st := sqlstore.New(drv)
//
// # Sub-packages
//
//   - dialect/sql: driver implementation, statement builder and query statistics
//   - dialect/sql/schema: DDL generation and migration of relationship graphs
package dialect
