package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eleven-am/empire/internal/goals"
	"github.com/eleven-am/empire/internal/logger"
	"github.com/eleven-am/empire/internal/metrics"
	"github.com/eleven-am/empire/internal/orm"
	"github.com/eleven-am/empire/internal/schema"
	"github.com/eleven-am/empire/internal/server"
	"github.com/eleven-am/empire/pkg/empire"
)

var (
	serveAddr          string
	serveTransactional bool
	serveMigrate       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the goals HTTP API",
	Long: `Connects to the database and serves the goals API until interrupted.
With --migrate the schema is brought up to date first; destructive changes
are never applied this way.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveTransactional, "transactional", false, "run create and link in one transaction")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply pending non-destructive schema changes before serving")
}

func dbConfigFrom(config *EmpireConfig, url string) *schema.DBConfig {
	dbConfig := schema.NewDBConfig(url)
	dbConfig.Driver = config.Database.Driver
	dbConfig.MaxOpenConns = config.Database.MaxConnections
	dbConfig.MaxIdleConns = config.Database.MaxIdle
	dbConfig.ConnMaxLifetime = config.Database.ConnMaxLifetime
	dbConfig.StatementTimeout = config.Database.StatementTimeout
	return dbConfig
}

func serverConfigFrom(config *EmpireConfig) server.Config {
	addr := config.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	return server.Config{
		Addr:            addr,
		IdentityHeader:  config.Server.IdentityHeader,
		ReadTimeout:     config.Server.ReadTimeout,
		WriteTimeout:    config.Server.WriteTimeout,
		ShutdownTimeout: config.Server.ShutdownTimeout,
	}
}

// queryLogMiddleware logs every statement at debug level.
func queryLogMiddleware(log logger.Logger) orm.QueryMiddleware {
	return func(next orm.QueryMiddlewareFunc) orm.QueryMiddlewareFunc {
		return func(mc *orm.MiddlewareContext) error {
			err := next(mc)
			fields := []interface{}{
				"operation", string(mc.Operation),
				"table", mc.TableName,
				"duration", mc.Duration,
			}
			if err != nil {
				fields = append(fields, "error", err)
			}
			log.Debug(mc.Query, fields...)
			return err
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	url, err := requireDatabaseURL()
	if err != nil {
		return err
	}
	log := logger.CLI()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig := dbConfigFrom(empireConfig, url)
	db, err := dbConfig.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if serveMigrate {
		planner := schema.NewPlanner(dbConfig)
		plan, err := planner.Plan(ctx, db)
		if err != nil {
			return err
		}
		if err := planner.Apply(ctx, db, plan, false); err != nil {
			return err
		}
	}

	m := metrics.New()
	store := orm.NewStore(db, goals.DefaultOwnerChain())
	store.Use(m.QueryMiddleware())
	store.Use(queryLogMiddleware(logger.DB()))

	svc := goals.NewService(store, goals.Options{
		Cap:           empireConfig.Goals.Cap,
		Transactional: empireConfig.Goals.Transactional || serveTransactional,
	})

	srv := server.New(serverConfigFrom(empireConfig), svc, store, m, logger.HTTP())
	log.Info("starting empire", "build", empire.Info().Short(), "driver", dbConfig.Driver)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
