package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "me",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func runMe(cmd *cobra.Command, configPath string) error {
	app, err := openApp(configPath)
	if err != nil {
		return err
	}
	if _, err := app.requireSession(); err != nil {
		return err
	}

	user, err := app.client.Me(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:  %s\n", user.Name())
	fmt.Fprintf(out, "Phone: %s\n", user.Phone)
	fmt.Fprintf(out, "Role:  %s\n", user.Role)
	if user.InviteCode != "" {
		fmt.Fprintf(out, "Org:   %s\n", user.InviteCode)
	}
	return nil
}
