package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eleven-am/empire/pkg/empire"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display Empire version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), empire.Info().String())
	},
}
