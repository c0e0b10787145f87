package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLocationsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Show patrollable locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocations(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func runLocations(cmd *cobra.Command, configPath string) error {
	app, err := openApp(configPath)
	if err != nil {
		return err
	}
	if _, err := app.requireSession(); err != nil {
		return err
	}

	locations, err := app.client.ListLocations(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(locations) == 0 {
		fmt.Fprintln(out, "No locations")
		return nil
	}

	for _, l := range locations {
		fmt.Fprintf(out, "%-12s %s", l.ID, l.Name)
		if areas := l.Areas(); len(areas) > 0 {
			fmt.Fprintf(out, " (%s)", strings.Join(areas, ", "))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func newAssignmentsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "Show your shift assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssignments(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func runAssignments(cmd *cobra.Command, configPath string) error {
	app, err := openApp(configPath)
	if err != nil {
		return err
	}
	if _, err := app.requireSession(); err != nil {
		return err
	}

	assignments, err := app.client.MyAssignments(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(assignments) == 0 {
		fmt.Fprintln(out, "No assignments")
		return nil
	}

	for _, a := range assignments {
		name := a.LocationName
		if name == "" {
			name = a.LocationID
		}
		fmt.Fprintf(out, "%-20s %s – %s", name, a.StartTime, a.EndTime)
		if a.AssignedAreas != "" {
			fmt.Fprintf(out, " (%s)", a.AssignedAreas)
		}
		fmt.Fprintln(out)
	}
	return nil
}
