package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/syssam/stratum/dialect"
	"github.com/syssam/stratum/dialect/sql"
	"github.com/syssam/stratum/dialect/sql/schema"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// MigrateOptions holds the flags of the migrate command.
type MigrateOptions struct {
	Driver string
	DSN    string
	DryRun bool
	Slow   time.Duration
	Allow  []string
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the tables of the schema in a database",
		Long: `Inspect the database, compute the changes needed to match the schema
and apply them in one transaction. Destructive changes are refused
unless allowed with --allow.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, rootOpts, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Driver, "driver", dialect.SQLite, "database driver (sqlite|postgres|mysql)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "data source name")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the statements without executing them")
	cmd.Flags().DurationVar(&opts.Slow, "slow", 200*time.Millisecond, "log statements slower than this")
	cmd.Flags().StringSliceVar(&opts.Allow, "allow", nil, "allowed destructive changes (drop-column|drop-table|drop-index|null-to-not-null)")
	_ = cmd.MarkFlagRequired("dsn")
	return cmd
}

func (o *MigrateOptions) validateOptions() ([]schema.ValidateOption, error) {
	var vopts []schema.ValidateOption
	for _, a := range o.Allow {
		switch a {
		case "drop-column":
			vopts = append(vopts, schema.AllowDropColumn())
		case "drop-table":
			vopts = append(vopts, schema.AllowDropTable())
		case "drop-index":
			vopts = append(vopts, schema.AllowDropIndex())
		case "null-to-not-null":
			vopts = append(vopts, schema.AllowNullToNotNull())
		default:
			return nil, fmt.Errorf("unknown change %q for --allow", a)
		}
	}
	return vopts, nil
}

func runMigrate(cmd *cobra.Command, rootOpts *RootOptions, opts *MigrateOptions) error {
	vopts, err := opts.validateOptions()
	if err != nil {
		return err
	}
	g, err := rootOpts.graph()
	if err != nil {
		return err
	}
	drv, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return err
	}
	defer drv.Close()
	logger := rootOpts.logger(cmd.ErrOrStderr())
	sd := sql.NewStatsDriver(drv, sql.WithStatsLogger(logger), sql.WithSlowThreshold(opts.Slow))
	m, err := schema.NewMigrate(sd, g, schema.WithLogger(logger), schema.WithValidateOptions(vopts...))
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if !opts.DryRun {
		if err := m.Create(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, sd.QueryStats().Stats())
		return nil
	}
	p, err := m.Plan(ctx)
	if err != nil {
		return err
	}
	if rootOpts.Format == "json" {
		stmts := make([]string, len(p.Changes))
		for i, c := range p.Changes {
			stmts[i] = c.Cmd
		}
		return writeJSON(out, &PlanResult{Order: names(g.TableOrder()), Statements: stmts})
	}
	if len(p.Changes) == 0 {
		fmt.Fprintln(out, "schema is up to date")
	}
	for _, c := range p.Changes {
		fmt.Fprintf(out, "-- %s\n%s;\n", c.Comment, c.Cmd)
	}
	return nil
}
