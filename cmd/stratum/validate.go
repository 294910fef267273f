package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syssam/stratum/schema/load"
)

// ValidationResult is the JSON output of the validate command.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Tables   int      `json:"tables"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the schema graph",
		Long: `Load the schema file, build its graph and report every structural
error and warning. The command fails if the graph has errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, rootOpts)
		},
	}
}

func runValidate(cmd *cobra.Command, opts *RootOptions) error {
	s, err := load.File(opts.Schema)
	if err != nil {
		return err
	}
	g, err := s.Assemble()
	if err != nil {
		return err
	}
	_ = g.Validate()
	r := g.Report()
	res := &ValidationResult{Valid: !r.HasErrors(), Tables: g.Registry().Len()}
	for _, e := range r.Errors {
		res.Errors = append(res.Errors, e.Error())
	}
	for _, w := range r.Warnings {
		res.Warnings = append(res.Warnings, w.String())
	}
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s: %d tables\n%s\n", opts.Schema, res.Tables, r)
	}
	if !res.Valid {
		return fmt.Errorf("%s: %d error(s)", opts.Schema, len(res.Errors))
	}
	return nil
}
