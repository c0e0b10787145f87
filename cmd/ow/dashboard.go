package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/omniwatch/omniwatch/internal/dashboard"
	"github.com/omniwatch/omniwatch/internal/patrol"
	"github.com/spf13/cobra"
)

func newDashboardCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Start the read-only web dashboard",
		Long:  "Launches a local web dashboard showing the live patrol, history, logbook, and admin rosters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	return cmd
}

func runDashboard(cmd *cobra.Command, configPath string, port int) error {
	app, err := openApp(configPath)
	if err != nil {
		return err
	}
	if _, err := app.requireSession(); err != nil {
		return err
	}

	manager, err := app.newManager()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pick up an ongoing patrol so the live view reflects it.
	if _, err := manager.Resume(ctx); err != nil && !errors.Is(err, patrol.ErrSamplingUnavailable) {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if port <= 0 {
		port = app.cfg.Dashboard.Port
	}

	return dashboard.Start(ctx, dashboard.StartOpts{
		Status: manager,
		API:    app.client,
		Port:   port,
		Out:    cmd.OutOrStdout(),
		Light:  !darkModeEnabled(app.store),
	})
}
