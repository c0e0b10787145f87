package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd() *cobra.Command {
	var (
		configPath string
		phone      string
		password   string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		Long:  "Authenticates against the OmniWatch server and saves the session to device storage. The password is prompted interactively unless --password is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, configPath, phone, password)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number (7-15 digits)")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.MarkFlagRequired("phone")
	return cmd
}

func runLogin(cmd *cobra.Command, configPath, phone, password string) error {
	// Validate before any prompt or network call.
	if err := validatePhone(phone); err != nil {
		return err
	}

	if password == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	app, err := openApp(configPath)
	if err != nil {
		return err
	}

	token, user, err := app.client.Login(cmd.Context(), phone, password)
	if err != nil {
		return err
	}
	if err := app.sessions.Save(token, user); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.Name(), user.Role)
	return nil
}
