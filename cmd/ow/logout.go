package main

import (
	"fmt"

	"github.com/omniwatch/omniwatch/internal/store"
	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear the saved session",
		Long:  "Removes the saved session and any ongoing patrol snapshot from device storage. Does not contact the server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func runLogout(cmd *cobra.Command, configPath string) error {
	app, err := openApp(configPath)
	if err != nil {
		return err
	}

	if err := app.sessions.Clear(); err != nil {
		return err
	}
	// A snapshot without a session can never be resumed; drop it too.
	if err := app.store.Delete(store.KeyOngoingPatrol); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}
