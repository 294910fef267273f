package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syssam/stratum/dialect"
	"github.com/syssam/stratum/dialect/sql/schema"
)

// PlanResult is the JSON output of the plan command.
type PlanResult struct {
	Table      string   `json:"table,omitempty"`
	Order      []string `json:"order"`
	Statements []string `json:"statements,omitempty"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	var ddl string
	cmd := &cobra.Command{
		Use:   "plan [table]",
		Short: "Print the write order of a table",
		Long: `Print every table written when a row of the given table is inserted,
in write order. Without a table, print the creation order of all tables.
With --ddl, also print the CREATE statements for a dialect.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, rootOpts, args, ddl)
		},
	}
	cmd.Flags().StringVar(&ddl, "ddl", "", "print the CREATE statements for a dialect (sqlite|postgres|mysql)")
	return cmd
}

func runPlan(cmd *cobra.Command, opts *RootOptions, args []string, ddl string) error {
	if ddl != "" {
		if err := dialect.Check(ddl); err != nil {
			return err
		}
	}
	g, err := opts.graph()
	if err != nil {
		return err
	}
	res := &PlanResult{Order: names(g.TableOrder())}
	if len(args) == 1 {
		t, ok := g.Table(args[0])
		if !ok {
			return fmt.Errorf("unknown table %q", args[0])
		}
		res.Table = t.Name
		res.Order = names(g.Order(t))
	}
	if ddl != "" {
		p, err := schema.Plan(cmd.Context(), g, ddl)
		if err != nil {
			return err
		}
		for _, c := range p.Changes {
			res.Statements = append(res.Statements, c.Cmd)
		}
	}
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, res)
	}
	for i, name := range res.Order {
		fmt.Fprintf(out, "%d. %s\n", i+1, name)
	}
	for _, s := range res.Statements {
		fmt.Fprintf(out, "%s;\n", s)
	}
	return nil
}
