package schema

import (
	"fmt"
	"strings"

	"ariga.io/atlas/sql/schema"
)

// ValidationError describes a planned change that may lose data or fail on
// a populated database.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking indicates if this is a breaking change.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of change validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if there are any breaking changes.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	write := func(title string, errs []*ValidationError) {
		if len(errs) == 0 {
			return
		}
		sb.WriteString(title)
		sb.WriteString(":\n")
		for _, e := range errs {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	write("Errors", r.Errors)
	write("Warnings", r.Warnings)
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateOption configures change validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn    bool
	allowDropTable     bool
	allowDropIndex     bool
	allowNullToNotNull bool
}

// AllowDropColumn allows dropping columns without error.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropColumn = true
	}
}

// AllowDropTable allows dropping tables without error.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropTable = true
	}
}

// AllowDropIndex allows dropping indexes without error.
func AllowDropIndex() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropIndex = true
	}
}

// AllowNullToNotNull allows changing nullable columns to not null.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) {
		c.allowNullToNotNull = true
	}
}

// ValidateChanges reports the planned changes that drop data or may fail
// on existing rows. Drops and NULL to NOT NULL changes are errors unless
// allowed by an option, in which case they are reported as warnings.
//
//	changes, err := m.Changes(ctx)
//	if err != nil {
//	    return err
//	}
//	if r := schema.ValidateChanges(changes); r.HasErrors() {
//	    log.Fatal("refusing to migrate:\n", r)
//	}
func ValidateChanges(changes []schema.Change, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	result := &ValidationResult{}
	report := func(allowed bool, err *ValidationError) {
		if allowed || !err.Breaking {
			result.Warnings = append(result.Warnings, err)
		} else {
			result.Errors = append(result.Errors, err)
		}
	}
	for _, c := range changes {
		switch c := c.(type) {
		case *schema.DropTable:
			report(cfg.allowDropTable, &ValidationError{Table: c.T.Name, Message: "table will be dropped", Breaking: true})
		case *schema.ModifyTable:
			for _, tc := range c.Changes {
				validateTableChange(c.T.Name, tc, cfg, report)
			}
		}
	}
	return result
}

func validateTableChange(table string, c schema.Change, cfg *validateConfig, report func(bool, *ValidationError)) {
	switch c := c.(type) {
	case *schema.DropColumn:
		report(cfg.allowDropColumn, &ValidationError{Table: table, Column: c.C.Name, Message: "column will be dropped", Breaking: true})
	case *schema.AddColumn:
		if !c.C.Type.Null && c.C.Default == nil {
			report(false, &ValidationError{
				Table:   table,
				Column:  c.C.Name,
				Message: "new NOT NULL column without default value may fail if table has data",
			})
		}
	case *schema.ModifyColumn:
		if c.Change.Is(schema.ChangeNull) && c.From.Type.Null && !c.To.Type.Null {
			report(cfg.allowNullToNotNull, &ValidationError{
				Table:    table,
				Column:   c.To.Name,
				Message:  "column changing from NULL to NOT NULL may fail if column has NULL values",
				Breaking: true,
			})
		}
		if c.Change.Is(schema.ChangeType) {
			report(false, &ValidationError{
				Table:   table,
				Column:  c.To.Name,
				Message: fmt.Sprintf("column type changing from %s to %s", typeName(c.From), typeName(c.To)),
			})
		}
	case *schema.DropIndex:
		report(cfg.allowDropIndex, &ValidationError{Table: table, Message: fmt.Sprintf("index %q will be dropped", c.I.Name), Breaking: true})
	case *schema.AddIndex:
		if c.I.Unique {
			report(false, &ValidationError{Table: table, Message: fmt.Sprintf("adding unique index %q may fail if duplicate values exist", c.I.Name)})
		}
	case *schema.AddForeignKey:
		report(false, &ValidationError{Table: table, Message: fmt.Sprintf("adding foreign key %q may fail if existing rows do not match", c.F.Symbol)})
	}
}

func typeName(c *schema.Column) string {
	if c.Type != nil && c.Type.Raw != "" {
		return c.Type.Raw
	}
	if c.Type != nil && c.Type.Type != nil {
		return fmt.Sprintf("%T", c.Type.Type)
	}
	return "unknown"
}
