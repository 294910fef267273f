// Package schema creates and upgrades the database tables of a
// relationship graph. Table descriptions are translated to Atlas schema
// objects and planned with the Atlas driver of the dialect.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/stratum/dialect"
	"github.com/syssam/stratum/dialect/sql"
	"github.com/syssam/stratum/graph"
	model "github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/schema/field"
)

// PlanName is the name given to generated migration plans.
const PlanName = "stratum"

type (
	// Differ computes the changes needed to move the database from the
	// current schema to the desired one.
	Differ interface {
		Diff(current, desired *schema.Schema) ([]schema.Change, error)
	}

	// DiffFunc allows using ordinary functions as Differ.
	DiffFunc func(current, desired *schema.Schema) ([]schema.Change, error)

	// DiffHook wraps a Differ, e.g. to filter or log changes.
	DiffHook func(Differ) Differ
)

// Diff calls f(current, desired).
func (f DiffFunc) Diff(current, desired *schema.Schema) ([]schema.Change, error) {
	return f(current, desired)
}

// MigrateOption configures a Migrate.
type MigrateOption func(*Migrate)

// WithDiffHook adds hooks to the diff step.
func WithDiffHook(hooks ...DiffHook) MigrateOption {
	return func(m *Migrate) {
		m.hooks = append(m.hooks, hooks...)
	}
}

// WithLogger sets the logger used to report applied statements.
func WithLogger(l *slog.Logger) MigrateOption {
	return func(m *Migrate) {
		m.logger = l
	}
}

// WithValidateOptions relaxes the checks applied to planned changes.
func WithValidateOptions(opts ...ValidateOption) MigrateOption {
	return func(m *Migrate) {
		m.validate = append(m.validate, opts...)
	}
}

// Migrate brings a database in line with the tables of a graph.
type Migrate struct {
	drv      dialect.Driver
	eq       schema.ExecQuerier
	g        *graph.Graph
	hooks    []DiffHook
	validate []ValidateOption
	logger   *slog.Logger
}

// NewMigrate returns a Migrate for the tables of g on drv. drv must be a
// *sql.Driver, possibly wrapped by a *sql.StatsDriver.
func NewMigrate(drv dialect.Driver, g *graph.Graph, opts ...MigrateOption) (*Migrate, error) {
	if !g.Validated() {
		return nil, errors.New("dialect/sql/schema: graph is not validated")
	}
	if err := dialect.Check(drv.Dialect()); err != nil {
		return nil, err
	}
	eq, err := execQuerier(drv)
	if err != nil {
		return nil, err
	}
	m := &Migrate{drv: drv, eq: eq, g: g, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func execQuerier(drv dialect.Driver) (schema.ExecQuerier, error) {
	switch d := drv.(type) {
	case *sql.Driver:
		return d.ExecQuerier, nil
	case *sql.StatsDriver:
		return execQuerier(d.Driver)
	}
	return nil, fmt.Errorf("dialect/sql/schema: unsupported driver %T", drv)
}

// Changes inspects the database and returns the changes needed to create or
// update the graph tables. Tables outside the graph are ignored.
func (m *Migrate) Changes(ctx context.Context) ([]schema.Change, error) {
	_, changes, err := m.changes(ctx)
	return changes, err
}

func (m *Migrate) changes(ctx context.Context) (migrate.Driver, []schema.Change, error) {
	atlas, err := open(m.drv.Dialect(), m.eq)
	if err != nil {
		return nil, nil, err
	}
	tables, err := Tables(m.g, m.drv.Dialect())
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	current, err := atlas.InspectSchema(ctx, "", &schema.InspectOptions{Tables: names})
	if err != nil {
		return nil, nil, fmt.Errorf("dialect/sql/schema: inspect: %w", err)
	}
	desired := schema.New(current.Name).AddTables(tables...)
	desired.Attrs = current.Attrs
	var differ Differ = DiffFunc(func(current, desired *schema.Schema) ([]schema.Change, error) {
		return atlas.SchemaDiff(current, desired)
	})
	for i := len(m.hooks) - 1; i >= 0; i-- {
		differ = m.hooks[i](differ)
	}
	changes, err := differ.Diff(current, desired)
	if err != nil {
		return nil, nil, fmt.Errorf("dialect/sql/schema: diff: %w", err)
	}
	return atlas, changes, nil
}

// Plan returns the statements that Create would execute. Changes rejected
// by ValidateChanges fail the plan.
func (m *Migrate) Plan(ctx context.Context) (*migrate.Plan, error) {
	atlas, changes, err := m.changes(ctx)
	if err != nil {
		return nil, err
	}
	if r := ValidateChanges(changes, m.validate...); r.HasErrors() {
		return nil, fmt.Errorf("dialect/sql/schema: unsafe changes:\n%s", r)
	}
	if len(changes) == 0 {
		return &migrate.Plan{Name: PlanName}, nil
	}
	return atlas.PlanChanges(ctx, PlanName, changes, unqualified)
}

// Create executes the plan in a single transaction.
func (m *Migrate) Create(ctx context.Context) error {
	plan, err := m.Plan(ctx)
	if err != nil {
		return err
	}
	if len(plan.Changes) == 0 {
		m.logger.InfoContext(ctx, "schema is up to date")
		return nil
	}
	tx, err := m.drv.Tx(ctx)
	if err != nil {
		return err
	}
	for _, c := range plan.Changes {
		m.logger.DebugContext(ctx, "migrate", "cmd", c.Cmd, "comment", c.Comment)
		if err := tx.Exec(ctx, c.Cmd, c.Args, nil); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				err = errors.Join(err, rerr)
			}
			return fmt.Errorf("dialect/sql/schema: %s: %w", c.Comment, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "schema migrated", "statements", len(plan.Changes))
	return nil
}

// Create runs NewMigrate(drv, g, opts...).Create(ctx).
func Create(ctx context.Context, drv dialect.Driver, g *graph.Graph, opts ...MigrateOption) error {
	m, err := NewMigrate(drv, g, opts...)
	if err != nil {
		return err
	}
	return m.Create(ctx)
}

// Plan returns the statements creating the tables of g on an empty
// database of the given dialect. It does not connect to a database.
func Plan(ctx context.Context, g *graph.Graph, name string) (*migrate.Plan, error) {
	tables, err := Tables(g, name)
	if err != nil {
		return nil, err
	}
	changes := make([]schema.Change, len(tables))
	for i, t := range tables {
		changes[i] = &schema.AddTable{T: t}
	}
	var p migrate.PlanApplier
	switch name {
	case dialect.MySQL:
		p = mysql.DefaultPlan
	case dialect.Postgres:
		p = postgres.DefaultPlan
	default:
		p = sqlite.DefaultPlan
	}
	return p.PlanChanges(ctx, PlanName, changes, unqualified)
}

// unqualified renders table names without a schema prefix.
func unqualified(o *migrate.PlanOptions) {
	q := ""
	o.SchemaQualifier = &q
}

func open(name string, eq schema.ExecQuerier) (migrate.Driver, error) {
	switch name {
	case dialect.MySQL:
		return mysql.Open(eq)
	case dialect.Postgres:
		return postgres.Open(eq)
	case dialect.SQLite:
		return sqlite.Open(eq)
	}
	return nil, fmt.Errorf("dialect/sql/schema: unsupported dialect %q", name)
}

// Tables returns the Atlas descriptions of the tables of g for the given
// dialect, in dependency order. Foreign keys are the ones reported by
// graph.ForeignKeys and are named <table>_fk<n>.
func Tables(g *graph.Graph, name string) ([]*schema.Table, error) {
	if !g.Validated() {
		return nil, errors.New("dialect/sql/schema: graph is not validated")
	}
	if err := dialect.Check(name); err != nil {
		return nil, err
	}
	order := g.TableOrder()
	tables := make([]*schema.Table, len(order))
	for i, t := range order {
		at, err := table(name, t)
		if err != nil {
			return nil, err
		}
		tables[i] = at
	}
	byID := make(map[int]*schema.Table, len(order))
	for i, t := range order {
		byID[t.ID] = tables[i]
	}
	for i, t := range order {
		at := tables[i]
		for j, fk := range g.ForeignKeys(t) {
			ref := byID[fk.Ref.ID]
			afk := schema.NewForeignKey(fmt.Sprintf("%s_fk%d", t.Name, j+1)).SetRefTable(ref)
			for _, c := range fk.Columns {
				afk.AddColumns(at.Columns[c.Position])
			}
			for _, c := range fk.RefColumns {
				afk.AddRefColumns(ref.Columns[c.Position])
			}
			at.AddForeignKeys(afk)
		}
	}
	return tables, nil
}

func table(name string, t *model.Table) (*schema.Table, error) {
	if !sql.ValidIdentifier(t.Name) {
		return nil, fmt.Errorf("dialect/sql/schema: invalid table name %q", t.Name)
	}
	at := schema.NewTable(t.Name)
	if t.Comment != "" {
		at.SetComment(t.Comment)
	}
	for _, c := range t.Columns {
		if !sql.ValidIdentifier(c.Name) {
			return nil, fmt.Errorf("dialect/sql/schema: invalid column name %q in table %q", c.Name, t.Name)
		}
		ac, err := column(name, t.Surrogate && c.InPrimaryKey(), c)
		if err != nil {
			return nil, err
		}
		at.AddColumns(ac)
	}
	pk := make([]*schema.Column, len(t.PrimaryKey))
	for i, c := range t.PrimaryKey {
		pk[i] = at.Columns[c.Position]
	}
	at.SetPrimaryKey(schema.NewPrimaryKey(pk...))
	for _, idx := range t.Indexes {
		if !sql.ValidIdentifier(idx.Name) {
			return nil, fmt.Errorf("dialect/sql/schema: invalid index name %q in table %q", idx.Name, t.Name)
		}
		ai := schema.NewUniqueIndex(idx.Name)
		for _, c := range idx.Columns {
			ai.AddColumns(at.Columns[c.Position])
		}
		at.AddIndexes(ai)
	}
	return at, nil
}

// column maps a column type to its dialect type. Surrogate keys map to the
// auto-increment type of the dialect.
func column(name string, surrogate bool, c *model.Column) (*schema.Column, error) {
	var ac *schema.Column
	switch c.Type {
	case field.TypeBool:
		switch name {
		case dialect.Postgres:
			ac = schema.NewBoolColumn(c.Name, postgres.TypeBoolean)
		case dialect.MySQL:
			ac = schema.NewBoolColumn(c.Name, mysql.TypeBool)
		default:
			ac = schema.NewBoolColumn(c.Name, "bool")
		}
	case field.TypeInt64:
		switch {
		case surrogate && name == dialect.Postgres:
			ac = schema.NewColumn(c.Name).SetType(&postgres.SerialType{T: postgres.TypeBigSerial})
		case surrogate && name == dialect.MySQL:
			ac = schema.NewIntColumn(c.Name, mysql.TypeBigInt).AddAttrs(&mysql.AutoIncrement{})
		case surrogate:
			ac = schema.NewIntColumn(c.Name, sqlite.TypeInteger).AddAttrs(&sqlite.AutoIncrement{})
		case name == dialect.SQLite:
			ac = schema.NewIntColumn(c.Name, sqlite.TypeInteger)
		default:
			ac = schema.NewIntColumn(c.Name, postgres.TypeBigInt)
		}
	case field.TypeFloat64:
		switch name {
		case dialect.Postgres:
			ac = schema.NewFloatColumn(c.Name, postgres.TypeDouble)
		case dialect.MySQL:
			ac = schema.NewFloatColumn(c.Name, mysql.TypeDouble)
		default:
			ac = schema.NewFloatColumn(c.Name, sqlite.TypeReal)
		}
	case field.TypeString:
		switch name {
		case dialect.MySQL:
			// Indexed columns need a bounded length.
			ac = schema.NewStringColumn(c.Name, mysql.TypeVarchar, schema.StringSize(255))
		case dialect.Postgres:
			ac = schema.NewStringColumn(c.Name, postgres.TypeText)
		default:
			ac = schema.NewStringColumn(c.Name, sqlite.TypeText)
		}
	case field.TypeTime:
		switch name {
		case dialect.Postgres:
			ac = schema.NewTimeColumn(c.Name, postgres.TypeTimestampWTZ)
		case dialect.MySQL:
			ac = schema.NewTimeColumn(c.Name, mysql.TypeDateTime, schema.TimePrecision(6))
		default:
			ac = schema.NewTimeColumn(c.Name, "datetime")
		}
	case field.TypeUUID:
		switch name {
		case dialect.Postgres:
			ac = schema.NewColumn(c.Name).SetType(&schema.UUIDType{T: postgres.TypeUUID})
		case dialect.MySQL:
			ac = schema.NewStringColumn(c.Name, mysql.TypeChar, schema.StringSize(36))
		default:
			ac = schema.NewStringColumn(c.Name, sqlite.TypeText)
		}
	default:
		return nil, fmt.Errorf("dialect/sql/schema: unsupported type %s for column %s", c.Type, c)
	}
	ac.SetNull(c.Nullable)
	if c.Comment != "" {
		ac.SetComment(c.Comment)
	}
	return ac, nil
}
