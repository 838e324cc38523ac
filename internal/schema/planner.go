package schema

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/postgres"
	atlas "ariga.io/atlas/sql/schema"
	"github.com/jmoiron/sqlx"

	"github.com/eleven-am/empire/internal/logger"
)

// DDL is the desired database schema.
//
//go:embed schema.sql
var DDL string

// ErrDestructive is returned by Apply when a plan drops objects and the
// caller did not allow it.
var ErrDestructive = fmt.Errorf("plan contains destructive changes")

// Change is one schema change in human terms.
type Change struct {
	Description string
	Destructive bool
}

// Plan is the ordered SQL that moves a live database to DDL.
type Plan struct {
	Statements []string
	Comments   []string
	Changes    []Change
}

// Empty reports whether the database already matches.
func (p *Plan) Empty() bool {
	return len(p.Statements) == 0
}

// Destructive lists the descriptions of changes that drop objects.
func (p *Plan) Destructive() []string {
	var out []string
	for _, c := range p.Changes {
		if c.Destructive {
			out = append(out, c.Description)
		}
	}
	return out
}

// SQL renders the plan as a script, each statement preceded by its comment.
func (p *Plan) SQL() string {
	var b strings.Builder
	for i, stmt := range p.Statements {
		if i < len(p.Comments) && p.Comments[i] != "" {
			fmt.Fprintf(&b, "-- %s\n", p.Comments[i])
		}
		b.WriteString(strings.TrimSuffix(stmt, ";"))
		b.WriteString(";\n")
	}
	return b.String()
}

// Planner diffs a live database against DDL using atlas.
type Planner struct {
	config *DBConfig
	tempDB *TempDBManager
	ddl    string
	schema string
	log    logger.Logger
}

func NewPlanner(config *DBConfig) *Planner {
	return &Planner{
		config: config,
		tempDB: NewTempDBManager(config),
		ddl:    DDL,
		schema: "public",
		log:    logger.Schema(),
	}
}

// Plan inspects db and a temp database loaded with DDL, then asks atlas for
// the statements that turn the first into the second.
func (p *Planner) Plan(ctx context.Context, db *sqlx.DB) (*Plan, error) {
	sourceDriver, err := postgres.Open(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	inspect := &atlas.InspectRealmOption{Schemas: []string{p.schema}}
	current, err := sourceDriver.InspectRealm(ctx, inspect)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect current schema: %w", err)
	}

	tempName := fmt.Sprintf("empire_plan_%d", time.Now().UnixNano())
	tempDB, cleanup, err := p.tempDB.CreateTempDB(ctx, tempName)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp database: %w", err)
	}
	defer cleanup()

	if _, err := tempDB.ExecContext(ctx, p.ddl); err != nil {
		return nil, fmt.Errorf("failed to execute DDL in temp database: %w", err)
	}

	targetDriver, err := postgres.Open(tempDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create target driver: %w", err)
	}
	desired, err := targetDriver.InspectRealm(ctx, inspect)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect target schema: %w", err)
	}

	changes, err := sourceDriver.RealmDiff(current, desired)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate diff: %w", err)
	}

	plan, err := buildPlan(ctx, sourceDriver, changes)
	if err != nil {
		return nil, err
	}
	p.log.Info("schema plan ready", "statements", len(plan.Statements), "destructive", len(plan.Destructive()))
	return plan, nil
}

func buildPlan(ctx context.Context, driver migrate.Driver, changes []atlas.Change) (*Plan, error) {
	plan := &Plan{Statements: []string{}, Comments: []string{}, Changes: []Change{}}
	if len(changes) == 0 {
		return plan, nil
	}

	for _, c := range changes {
		plan.Changes = append(plan.Changes, Change{
			Description: DescribeChange(c),
			Destructive: IsDestructiveChange(c),
		})
	}

	planned, err := driver.PlanChanges(ctx, "", changes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan: %w", err)
	}
	for _, c := range planned.Changes {
		plan.Statements = append(plan.Statements, c.Cmd)
		plan.Comments = append(plan.Comments, c.Comment)
	}
	return plan, nil
}

// Apply runs plan in one transaction. Destructive plans are refused unless
// allowDestructive is set.
func (p *Planner) Apply(ctx context.Context, db *sqlx.DB, plan *Plan, allowDestructive bool) error {
	if plan.Empty() {
		p.log.Info("schema is up to date")
		return nil
	}
	if dropped := plan.Destructive(); len(dropped) > 0 && !allowDestructive {
		return fmt.Errorf("%w: %s", ErrDestructive, strings.Join(dropped, "; "))
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for i, stmt := range plan.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("statement %d failed: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema changes: %w", err)
	}

	p.log.Info("schema applied", "statements", len(plan.Statements))
	return nil
}

func IsDestructiveChange(change atlas.Change) bool {
	switch c := change.(type) {
	case *atlas.DropTable, *atlas.DropColumn, *atlas.DropIndex, *atlas.DropForeignKey, *atlas.DropCheck:
		return true
	case *atlas.ModifyTable:
		for _, sub := range c.Changes {
			if IsDestructiveChange(sub) {
				return true
			}
		}
	}
	return false
}

func DescribeChange(change atlas.Change) string {
	switch c := change.(type) {
	case *atlas.AddTable:
		return fmt.Sprintf("Create table %s", c.T.Name)
	case *atlas.DropTable:
		return fmt.Sprintf("Drop table %s", c.T.Name)
	case *atlas.ModifyTable:
		return fmt.Sprintf("Modify table %s (%d changes)", c.T.Name, len(c.Changes))
	case *atlas.AddColumn:
		return fmt.Sprintf("Add column %s", c.C.Name)
	case *atlas.DropColumn:
		return fmt.Sprintf("Drop column %s", c.C.Name)
	case *atlas.ModifyColumn:
		return fmt.Sprintf("Modify column %s", c.To.Name)
	case *atlas.AddIndex:
		return fmt.Sprintf("Add index %s", c.I.Name)
	case *atlas.DropIndex:
		return fmt.Sprintf("Drop index %s", c.I.Name)
	case *atlas.AddForeignKey:
		return fmt.Sprintf("Add foreign key %s", c.F.Symbol)
	case *atlas.DropForeignKey:
		return fmt.Sprintf("Drop foreign key %s", c.F.Symbol)
	case *atlas.AddCheck:
		return fmt.Sprintf("Add check %s", c.C.Name)
	case *atlas.DropCheck:
		return fmt.Sprintf("Drop check %s", c.C.Name)
	default:
		return fmt.Sprintf("Change type %T", change)
	}
}
