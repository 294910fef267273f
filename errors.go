package stratum

import (
	"errors"
	"fmt"
)

// Standard sentinel errors. Each typed error below matches its sentinel
// through errors.Is.
var (
	// ErrGraph is matched by every GraphError.
	ErrGraph = errors.New("stratum: invalid relationship graph")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("stratum: record not found")

	// ErrRequired is the cause of a ValidationError raised for a required
	// column that was left unset and has no default.
	ErrRequired = errors.New("required column has no value and no default")

	// ErrType is the cause of a ValidationError raised when a value does not
	// match the semantic type of its column.
	ErrType = errors.New("value does not match column type")

	// ErrMissingMandatory is matched by every MissingMandatoryReferenceError.
	ErrMissingMandatory = errors.New("stratum: missing mandatory reference")

	// ErrPropagationConflict is matched by every PropagationConflictError.
	ErrPropagationConflict = errors.New("stratum: propagation conflict")
)

// GraphErrorKind classifies structural configuration errors.
type GraphErrorKind uint8

// Graph error kinds.
const (
	SelfAncestor GraphErrorKind = iota + 1
	DuplicateAncestor
	Cycle
	MissingIndex
	UnknownTable
	UnknownColumn
	InvalidEdge
	InvalidDefault
	InvalidSameAs
	DuplicateName
)

var graphErrorKinds = [...]string{
	SelfAncestor:      "self ancestry",
	DuplicateAncestor: "duplicate ancestor",
	Cycle:             "cycle",
	MissingIndex:      "missing index",
	UnknownTable:      "unknown table",
	UnknownColumn:     "unknown column",
	InvalidEdge:       "invalid edge",
	InvalidDefault:    "invalid default",
	InvalidSameAs:     "invalid same-as",
	DuplicateName:     "duplicate name",
}

// String returns the kind name.
func (k GraphErrorKind) String() string {
	if int(k) < len(graphErrorKinds) && graphErrorKinds[k] != "" {
		return graphErrorKinds[k]
	}
	return fmt.Sprintf("GraphErrorKind(%d)", k)
}

// GraphError is a structural defect in the schema declarations or in the
// relationship graph built from them. It is detected at startup and is fatal.
type GraphError struct {
	Kind   GraphErrorKind
	Table  string
	Column string // Optional.
	Msg    string
	Err    error // Optional underlying error.
}

// Error returns the error string.
func (e *GraphError) Error() string {
	subject := e.Table
	if e.Column != "" {
		subject += "." + e.Column
	}
	if e.Err != nil {
		return fmt.Sprintf("stratum: %s: %s: %s: %v", e.Kind, subject, e.Msg, e.Err)
	}
	return fmt.Sprintf("stratum: %s: %s: %s", e.Kind, subject, e.Msg)
}

// Is reports whether the target error matches ErrGraph.
func (e *GraphError) Is(err error) bool {
	return err == ErrGraph
}

// Unwrap returns the underlying error.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// NewGraphError returns a new GraphError.
func NewGraphError(kind GraphErrorKind, table, column, format string, args ...any) *GraphError {
	return &GraphError{Kind: kind, Table: table, Column: column, Msg: fmt.Sprintf(format, args...)}
}

// IsGraphError returns true if the error is a GraphError.
func IsGraphError(err error) bool {
	if err == nil {
		return false
	}
	var e *GraphError
	return errors.As(err, &e)
}

// ValidationError represents a rejected column value.
type ValidationError struct {
	Table  string
	Column string
	Err    error // Underlying validation error.
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("stratum: validator failed for column %q of %s: %s", e.Column, e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError for the given column.
func NewValidationError(table, column string, err error) *ValidationError {
	return &ValidationError{Table: table, Column: column, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// MissingMandatoryReferenceError is returned when a mandatory triangular
// column has no nested builder at insertion time.
type MissingMandatoryReferenceError struct {
	Table  string
	Column string
}

// Error returns the error string.
func (e *MissingMandatoryReferenceError) Error() string {
	return fmt.Sprintf("stratum: missing mandatory reference %s.%s", e.Table, e.Column)
}

// Is reports whether the target error matches ErrMissingMandatory.
func (e *MissingMandatoryReferenceError) Is(err error) bool {
	return err == ErrMissingMandatory
}

// IsMissingMandatoryReference returns true if the error is a MissingMandatoryReferenceError.
func IsMissingMandatoryReference(err error) bool {
	return err != nil && errors.Is(err, ErrMissingMandatory)
}

// PropagationConflictError is returned when a same-as bound column receives
// two different explicit values.
type PropagationConflictError struct {
	Table    string
	Column   string
	Existing any
	Incoming any
}

// Error returns the error string.
func (e *PropagationConflictError) Error() string {
	return fmt.Sprintf("stratum: conflicting values for %s.%s: %v and %v", e.Table, e.Column, e.Existing, e.Incoming)
}

// Is reports whether the target error matches ErrPropagationConflict.
func (e *PropagationConflictError) Is(err error) bool {
	return err == ErrPropagationConflict
}

// IsPropagationConflict returns true if the error is a PropagationConflictError.
func IsPropagationConflict(err error) bool {
	return err != nil && errors.Is(err, ErrPropagationConflict)
}

// BoundColumnError is returned when a caller tries to set a column whose
// value is supplied by propagation from another row.
type BoundColumnError struct {
	Table  string
	Column string
}

// Error returns the error string.
func (e *BoundColumnError) Error() string {
	return fmt.Sprintf("stratum: column %s.%s is bound by reference and cannot be set", e.Table, e.Column)
}

// IsBoundColumn returns true if the error is a BoundColumnError.
func IsBoundColumn(err error) bool {
	if err == nil {
		return false
	}
	var e *BoundColumnError
	return errors.As(err, &e)
}

// UnknownColumnError is returned when a builder cannot resolve a column name.
type UnknownColumnError struct {
	Table     string
	Column    string
	Ambiguous bool // The name matched columns of several ancestors.
}

// Error returns the error string.
func (e *UnknownColumnError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("stratum: column %q is ambiguous in the lineage of %s", e.Column, e.Table)
	}
	return fmt.Sprintf("stratum: unknown column %q for %s", e.Column, e.Table)
}

// StoreErrorKind classifies failures reported by a record store.
type StoreErrorKind uint8

// Store error kinds.
const (
	StoreOther StoreErrorKind = iota
	StoreUnique
	StoreForeignKey
	StoreCheck
	StoreNotNull
)

// String returns the kind name.
func (k StoreErrorKind) String() string {
	switch k {
	case StoreUnique:
		return "unique"
	case StoreForeignKey:
		return "foreign key"
	case StoreCheck:
		return "check"
	case StoreNotNull:
		return "not null"
	default:
		return "other"
	}
}

// StoreError wraps a failure of the external record store.
type StoreError struct {
	Table string
	Op    string // e.g. "insert", "fetch", "delete", "commit".
	Kind  StoreErrorKind
	Err   error
}

// Error returns the error string.
func (e *StoreError) Error() string {
	if e.Kind != StoreOther {
		return fmt.Sprintf("stratum: %s %s: %s constraint failed: %v", e.Op, e.Table, e.Kind, e.Err)
	}
	return fmt.Sprintf("stratum: %s %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError returns a new StoreError.
func NewStoreError(table, op string, kind StoreErrorKind, err error) *StoreError {
	return &StoreError{Table: table, Op: op, Kind: kind, Err: err}
}

// IsStoreError returns true if the error is a StoreError.
func IsStoreError(err error) bool {
	if err == nil {
		return false
	}
	var e *StoreError
	return errors.As(err, &e)
}

// IsConstraintError returns true if the error is a StoreError caused by a
// constraint violation.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e *StoreError
	return errors.As(err, &e) && e.Kind != StoreOther
}

// NotFoundError represents a record that does not exist.
type NotFoundError struct {
	Table string
	Key   []any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if len(e.Key) > 0 {
		return fmt.Sprintf("stratum: %s not found (key=%v)", e.Table, e.Key)
	}
	return fmt.Sprintf("stratum: %s not found", e.Table)
}

// Is reports whether the target error matches ErrNotFound.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback.
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("stratum: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}
