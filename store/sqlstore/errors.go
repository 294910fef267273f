package sqlstore

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/syssam/stratum"
)

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlColumnCannotBeNull     = 1048
	mysqlDuplicateEntry         = 1062
	mysqlNoDefault              = 1364
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// sqlStateError is implemented by drivers exposing SQLSTATE codes other than
// the ones matched by type below.
type sqlStateError interface {
	SQLState() string
}

// classify returns the constraint kind of a database error, or
// stratum.StoreOther if the error is not a constraint violation.
func classify(err error) stratum.StoreErrorKind {
	if err == nil {
		return stratum.StoreOther
	}
	var (
		pqErr     *pq.Error
		mysqlErr  *mysql.MySQLError
		sqliteErr *sqlite.Error
		stateErr  sqlStateError
	)
	switch {
	case errors.As(err, &pqErr):
		return postgresKind(string(pqErr.Code))
	case errors.As(err, &mysqlErr):
		switch mysqlErr.Number {
		case mysqlDuplicateEntry:
			return stratum.StoreUnique
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return stratum.StoreForeignKey
		case mysqlCheckConstraintViolate:
			return stratum.StoreCheck
		case mysqlColumnCannotBeNull, mysqlNoDefault:
			return stratum.StoreNotNull
		}
		return stratum.StoreOther
	case errors.As(err, &sqliteErr):
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return stratum.StoreUnique
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return stratum.StoreForeignKey
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return stratum.StoreCheck
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return stratum.StoreNotNull
		}
		// Without extended result codes only the message tells the kind.
	case errors.As(err, &stateErr):
		return postgresKind(stateErr.SQLState())
	}
	// Fallback to string matching for drivers that don't expose codes.
	msg := err.Error()
	switch {
	case containsAny(msg, "Error 1062", "violates unique constraint", "UNIQUE constraint failed"):
		return stratum.StoreUnique
	case containsAny(msg, "Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"):
		return stratum.StoreForeignKey
	case containsAny(msg, "Error 3819", "violates check constraint", "CHECK constraint failed"):
		return stratum.StoreCheck
	case containsAny(msg, "Error 1048", "violates not-null constraint", "NOT NULL constraint failed"):
		return stratum.StoreNotNull
	}
	return stratum.StoreOther
}

func postgresKind(code string) stratum.StoreErrorKind {
	switch code {
	case pgUniqueViolation:
		return stratum.StoreUnique
	case pgForeignKeyViolation:
		return stratum.StoreForeignKey
	case pgCheckViolation:
		return stratum.StoreCheck
	case pgNotNullViolation:
		return stratum.StoreNotNull
	}
	return stratum.StoreOther
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
