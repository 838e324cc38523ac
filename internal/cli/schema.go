package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/eleven-am/empire/internal/schema"
)

var (
	allowDestructive  bool
	createIfNotExists bool
	planOutput        string
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Plan and apply database schema changes",
	Long: `Compares the live database with the schema embedded in this binary and
prints or applies the statements needed to reconcile them.`,
}

var schemaPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the statements needed to reach the embedded schema",
	RunE:  runSchemaPlan,
}

var schemaApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply pending schema changes",
	RunE:  runSchemaApply,
}

var schemaDDLCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Print the embedded schema",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), schema.DDL)
	},
}

func init() {
	schemaCmd.PersistentFlags().BoolVar(&createIfNotExists, "create-if-not-exists", false, "create the database if it does not exist")
	schemaPlanCmd.Flags().StringVarP(&planOutput, "output", "o", "", "write the plan to a file instead of stdout")
	schemaApplyCmd.Flags().BoolVar(&allowDestructive, "allow-destructive", false, "allow changes that drop tables, columns, indexes or constraints")

	schemaCmd.AddCommand(schemaPlanCmd)
	schemaCmd.AddCommand(schemaApplyCmd)
	schemaCmd.AddCommand(schemaDDLCmd)
}

func planSchema(cmd *cobra.Command) (*schema.Planner, *schema.Plan, *sqlx.DB, error) {
	url, err := requireDatabaseURL()
	if err != nil {
		return nil, nil, nil, err
	}
	ctx := cmd.Context()

	dbConfig := dbConfigFrom(empireConfig, url)
	if createIfNotExists {
		if err := dbConfig.EnsureDatabaseExists(ctx); err != nil {
			return nil, nil, nil, err
		}
	}

	db, err := dbConfig.Connect(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	planner := schema.NewPlanner(dbConfig)
	plan, err := planner.Plan(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return planner, plan, db, nil
}

func writePlan(path string, plan *schema.Plan) error {
	if err := os.WriteFile(path, []byte(plan.SQL()), 0644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}

func printPlan(cmd *cobra.Command, plan *schema.Plan) {
	out := cmd.OutOrStdout()
	if plan.Empty() {
		fmt.Fprintln(out, "Schema is up to date")
		return
	}

	fmt.Fprintf(out, "%d change(s):\n", len(plan.Changes))
	for _, c := range plan.Changes {
		marker := " "
		if c.Destructive {
			marker = "!"
		}
		fmt.Fprintf(out, "  %s %s\n", marker, c.Description)
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, plan.SQL())
}

func runSchemaPlan(cmd *cobra.Command, args []string) error {
	_, plan, db, err := planSchema(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if planOutput != "" {
		if err := writePlan(planOutput, plan); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d statement(s) to %s\n", len(plan.Statements), planOutput)
		return nil
	}

	printPlan(cmd, plan)
	return nil
}

func runSchemaApply(cmd *cobra.Command, args []string) error {
	planner, plan, db, err := planSchema(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	printPlan(cmd, plan)
	if plan.Empty() {
		return nil
	}

	if err := planner.Apply(cmd.Context(), db, plan, allowDestructive); err != nil {
		if errors.Is(err, schema.ErrDestructive) {
			return fmt.Errorf("%w (re-run with --allow-destructive)", err)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d statement(s)\n", len(plan.Statements))
	return nil
}
