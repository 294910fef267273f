package graph

import (
	"fmt"
	"strings"

	"github.com/syssam/stratum"
)

// Warning is a suspicious but valid part of the graph.
type Warning struct {
	Table   string
	Column  string
	Message string
}

func (w *Warning) String() string {
	if w.Column != "" {
		return fmt.Sprintf("%s.%s: %s", w.Table, w.Column, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Table, w.Message)
}

// Report holds every issue found while validating a graph.
type Report struct {
	Errors   []*stratum.GraphError
	Warnings []*Warning
}

func (r *Report) addError(err *stratum.GraphError) {
	r.Errors = append(r.Errors, err)
}

func (r *Report) addWarning(table, column, msg string) {
	r.Warnings = append(r.Warnings, &Warning{Table: table, Column: column, Message: msg})
}

// HasErrors returns true if there are any validation errors.
func (r *Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any warnings.
func (r *Report) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// String returns a human-readable summary of the report.
func (r *Report) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.String())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}
