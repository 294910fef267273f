// Package sql implements the dialect.Driver interface on top of database/sql,
// along with the small statement builder used by the SQL record store.
//
// # Statements
//
// Statements quote identifiers and number placeholders for their dialect:
//
//	sql.Dialect(dialect.Postgres).
//	    Insert("animals").
//	    Set("name", "Rex").
//	    Returning("id").
//	    Query()
//	// INSERT INTO "animals" ("name") VALUES ($1) RETURNING "id"
//
//	sql.Dialect(dialect.MySQL).
//	    Select("id", "name").
//	    From("animals").
//	    Where(sql.EQ("id", 1)).
//	    Query()
//	// SELECT `id`, `name` FROM `animals` WHERE `id` = ?
//
// RETURNING is only rendered for dialects that support it; MySQL callers
// read generated keys from Result.LastInsertId.
//
// # Statistics
//
// StatsDriver wraps any dialect.Driver, counts statements, commits and
// rollbacks, and logs statements through log/slog:
//
//	sd := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithStatsLogger(logger),
//	)
package sql
