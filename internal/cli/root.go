package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eleven-am/empire/internal/logger"
	"github.com/eleven-am/empire/pkg/empire"
)

// Global configuration variables
var (
	configFile   string
	empireConfig *EmpireConfig
	databaseURL  string
	debug        bool
	verbose      bool
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "empire",
		Short: "Empire - goals service",
		Long: `Empire serves the goals API: users attach short statements to their
long-term goals and tag them with categories.

Empire provides:
- An HTTP API for goals and goal/category links
- Schema planning and application against PostgreSQL
- A default configuration file generator`,
		Version:       empire.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			empireConfig, err = LoadEmpireConfig(configFile)
			if err != nil {
				return err
			}

			if databaseURL != "" {
				empireConfig.Database.URL = databaseURL
			}

			level := empireConfig.Log.Level
			if debug || verbose || level == "" {
				level = logger.LevelFor(debug, verbose)
			}
			return logger.Setup(logger.Options{
				Level:  level,
				Format: empireConfig.Log.Format,
				Writer: cmd.ErrOrStderr(),
			})
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: empire.yaml)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "url", "", "database connection URL")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

func requireDatabaseURL() (string, error) {
	if empireConfig == nil || empireConfig.Database.URL == "" {
		return "", fmt.Errorf("database URL is required (use --url, EMPIRE_DATABASE_URL or empire.yaml)")
	}
	return empireConfig.Database.URL, nil
}
