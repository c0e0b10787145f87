package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ow",
		Short: "OmniWatch — security patrol tracking",
		Long:  "OmniWatch tracks guard patrols from field devices: GPS paths, checkpoints, incident logs, and admin rosters.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newSignupCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newMeCmd())
	cmd.AddCommand(newPatrolCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newLocationsCmd())
	cmd.AddCommand(newAssignmentsCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newDashboardCmd())
	cmd.AddCommand(newDigestCmd())
	cmd.AddCommand(newSettingsCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ow %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
