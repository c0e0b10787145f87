package main

import (
	"fmt"

	"github.com/omniwatch/omniwatch/internal/api"
	"github.com/omniwatch/omniwatch/internal/models"
	"github.com/spf13/cobra"
)

func newSignupCmd() *cobra.Command {
	var (
		configPath  string
		firstName   string
		lastName    string
		phone       string
		password    string
		role        string
		companyCode string
	)

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new account",
		Long:  "Registers a new guard or admin account. A company invite code links the account to an organization and is verified before registration; without one the account starts unaffiliated.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignup(cmd, configPath, api.RegisterRequest{
				FirstName:   firstName,
				LastName:    lastName,
				Phone:       phone,
				Password:    password,
				Role:        role,
				CompanyCode: companyCode,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number (7-15 digits)")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&role, "role", models.RoleGuard, "account role (guard or admin)")
	cmd.Flags().StringVar(&companyCode, "company-code", "", "organization invite code (optional)")
	cmd.MarkFlagRequired("first-name")
	cmd.MarkFlagRequired("last-name")
	cmd.MarkFlagRequired("phone")
	cmd.MarkFlagRequired("password")
	return cmd
}

func runSignup(cmd *cobra.Command, configPath string, req api.RegisterRequest) error {
	if err := validateName("first name", req.FirstName); err != nil {
		return err
	}
	if err := validateName("last name", req.LastName); err != nil {
		return err
	}
	if err := validatePhone(req.Phone); err != nil {
		return err
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}
	if req.Role != models.RoleGuard && req.Role != models.RoleAdmin {
		return fmt.Errorf("invalid role %q: must be guard or admin", req.Role)
	}

	app, err := openApp(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if req.CompanyCode != "" {
		if err := app.client.ValidateInviteCode(cmd.Context(), req.CompanyCode); err != nil {
			return fmt.Errorf("invite code rejected: %w", err)
		}
		fmt.Fprintln(out, "Invite code accepted")
	}

	if err := app.client.Register(cmd.Context(), req); err != nil {
		return err
	}

	fmt.Fprintf(out, "Account created for %s %s. Run \"ow login\" to sign in.\n", req.FirstName, req.LastName)
	return nil
}
