package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgweave/pgweave/cli/internal/ui"
	"github.com/pgweave/pgweave/cli/internal/update"
	"github.com/pgweave/pgweave/cli/internal/version"
)

var (
	versionVerbose      bool
	versionCheckUpdates bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if versionVerbose {
			fmt.Println(info.Verbose())
		} else {
			fmt.Println(info.String())
		}
		if versionCheckUpdates {
			if newer, latest := update.Available(info.Version); newer {
				ui.PrintWarning("A newer release is available: %s", latest)
				ui.PrintInfo("Update with: go install github.com/pgweave/pgweave/cmd/pgweave@latest")
			} else {
				ui.PrintSuccess("pgweave is up to date")
			}
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "print full build metadata")
	versionCmd.Flags().BoolVar(&versionCheckUpdates, "check-updates", false, "check for a newer release")
	rootCmd.AddCommand(versionCmd)
}
