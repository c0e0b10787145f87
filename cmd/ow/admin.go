package main

import (
	"fmt"

	"github.com/omniwatch/omniwatch/internal/api"
	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Roster administration commands",
	}

	cmd.AddCommand(newAdminGuardsCmd())
	cmd.AddCommand(newAdminLocationsCmd())
	cmd.AddCommand(newAdminAssignCmd())
	return cmd
}

// requireAdmin opens the app and verifies the saved session has the admin
// role. The server enforces this too; checking locally gives a clearer error.
func requireAdmin(configPath string) (*app, error) {
	a, err := openApp(configPath)
	if err != nil {
		return nil, err
	}
	sess, err := a.requireSession()
	if err != nil {
		return nil, err
	}
	if !sess.User.IsAdmin() {
		return nil, fmt.Errorf("admin commands require an admin account (current role: %s)", sess.User.Role)
	}
	return a, nil
}

func newAdminGuardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guards",
		Short: "Manage the guard roster",
	}

	cmd.AddCommand(newAdminGuardsListCmd())
	cmd.AddCommand(newAdminGuardsUpdateCmd())
	cmd.AddCommand(newAdminGuardsDeleteCmd())
	return cmd
}

func newAdminGuardsListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show all guards",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireAdmin(configPath)
			if err != nil {
				return err
			}
			guards, err := app.client.ListGuards(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(guards) == 0 {
				fmt.Fprintln(out, "No guards on the roster")
				return nil
			}
			fmt.Fprintf(out, "%-12s %-24s %-16s %s\n", "ID", "NAME", "PHONE", "ROLE")
			for _, g := range guards {
				fmt.Fprintf(out, "%-12s %-24s %-16s %s\n",
					g.ID, g.FirstName+" "+g.LastName, g.Phone, g.Role)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func newAdminGuardsUpdateCmd() *cobra.Command {
	var (
		configPath string
		firstName  string
		lastName   string
		phone      string
		role       string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a guard's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if phone != "" {
				if err := validatePhone(phone); err != nil {
					return err
				}
			}
			app, err := requireAdmin(configPath)
			if err != nil {
				return err
			}
			err = app.client.UpdateGuard(cmd.Context(), args[0], api.UpdateGuardRequest{
				FirstName: firstName,
				LastName:  lastName,
				Phone:     phone,
				Role:      role,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Guard %s updated\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	cmd.Flags().StringVar(&firstName, "first-name", "", "new first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "new last name")
	cmd.Flags().StringVar(&phone, "phone", "", "new phone number")
	cmd.Flags().StringVar(&role, "role", "", "new role")
	return cmd
}

func newAdminGuardsDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a guard from the roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireAdmin(configPath)
			if err != nil {
				return err
			}
			if err := app.client.DeleteGuard(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Guard %s removed\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func newAdminLocationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Manage patrollable locations",
	}

	cmd.AddCommand(newAdminLocationsListCmd())
	cmd.AddCommand(newAdminLocationsAddCmd())
	cmd.AddCommand(newAdminLocationsUpdateCmd())
	cmd.AddCommand(newAdminLocationsDeleteCmd())
	return cmd
}

func newAdminLocationsListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show all locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireAdmin(configPath)
			if err != nil {
				return err
			}
			locations, err := app.client.ListAdminLocations(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(locations) == 0 {
				fmt.Fprintln(out, "No locations configured")
				return nil
			}
			for _, l := range locations {
				fmt.Fprintf(out, "%-12s %-24s %s\n", l.ID, l.Name, l.AssignedAreas)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func newAdminLocationsAddCmd() *cobra.Command {
	var (
		configPath string
		areas      string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireAdmin(configPath)
			if err != nil {
				return err
			}
			if err := app.client.CreateLocation(cmd.Context(), args[0], areas); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Location %q added\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	cmd.Flags().StringVar(&areas, "areas", "", "comma-separated patrol areas")
	return cmd
}

func newAdminLocationsUpdateCmd() *cobra.Command {
	var (
		configPath string
		name       string
		areas      string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireAdmin(configPath)
			if err != nil {
				return err
			}
			if err := app.client.UpdateLocation(cmd.Context(), args[0], name, areas); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Location %s updated\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&areas, "areas", "", "new comma-separated patrol areas")
	return cmd
}

func newAdminLocationsDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireAdmin(configPath)
			if err != nil {
				return err
			}
			if err := app.client.DeleteLocation(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Location %s removed\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func newAdminAssignCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		locationID string
		areas      string
		startTime  string
		endTime    string
	)

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign a guard to a location",
		Long:  "Creates a shift assignment linking a guard to a location for a time window.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireAdmin(configPath)
			if err != nil {
				return err
			}
			err = app.client.CreateAssignment(cmd.Context(), api.CreateAssignmentRequest{
				UserID:        userID,
				LocationID:    locationID,
				AssignedAreas: areas,
				StartTime:     startTime,
				EndTime:       endTime,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Guard %s assigned to %s\n", userID, locationID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	cmd.Flags().StringVar(&userID, "guard", "", "guard user id")
	cmd.Flags().StringVar(&locationID, "location", "", "location id")
	cmd.Flags().StringVar(&areas, "areas", "", "comma-separated assigned areas")
	cmd.Flags().StringVar(&startTime, "start", "", "shift start (RFC3339)")
	cmd.Flags().StringVar(&endTime, "end", "", "shift end (RFC3339)")
	cmd.MarkFlagRequired("guard")
	cmd.MarkFlagRequired("location")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}
