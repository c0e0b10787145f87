package main

import (
	"fmt"
	"strconv"

	"github.com/omniwatch/omniwatch/internal/store"
	"github.com/spf13/cobra"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Device preferences",
	}

	cmd.AddCommand(newSettingsDarkModeCmd())
	return cmd
}

func newSettingsDarkModeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "dark-mode [on|off]",
		Short: "Show or set the dashboard theme",
		Long:  "Without an argument, shows the current theme preference. With on or off, sets it. The dashboard picks the theme up on its next start.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsDarkMode(cmd, configPath, args)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func runSettingsDarkMode(cmd *cobra.Command, configPath string, args []string) error {
	app, err := openApp(configPath)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		var enabled bool
		switch args[0] {
		case "on":
			enabled = true
		case "off":
			enabled = false
		default:
			return fmt.Errorf("invalid value %q: use on or off", args[0])
		}
		if err := app.store.Put(store.KeyDarkMode, []byte(strconv.FormatBool(enabled))); err != nil {
			return err
		}
	}

	state := "off"
	if darkModeEnabled(app.store) {
		state = "on"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Dark mode: %s\n", state)
	return nil
}

// darkModeEnabled reads the stored theme preference. Dark is the default;
// a missing or unreadable record reads as on.
func darkModeEnabled(st *store.Store) bool {
	data, err := st.Get(store.KeyDarkMode)
	if err != nil {
		return true
	}
	enabled, err := strconv.ParseBool(string(data))
	if err != nil {
		return true
	}
	return enabled
}
