package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/omniwatch/omniwatch/internal/digest"
	"github.com/omniwatch/omniwatch/internal/notify"
	"github.com/spf13/cobra"
)

func newDigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Shift digest commands",
	}

	cmd.AddCommand(newDigestRunCmd())
	cmd.AddCommand(newDigestServeCmd())
	return cmd
}

func newDigestRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build and post one digest now",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := buildDigestRunner(configPath)
			if err != nil {
				return err
			}
			if err := runner.RunOnce(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Digest posted")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func newDigestServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Post digests on the configured schedule",
		Long:  "Runs until interrupted, posting a shift digest on the configured cron schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := buildDigestRunner(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = runner.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func buildDigestRunner(configPath string) (*digest.Runner, error) {
	app, err := openApp(configPath)
	if err != nil {
		return nil, err
	}
	if _, err := app.requireSession(); err != nil {
		return nil, err
	}

	notifier, err := notify.FromConfig(app.cfg.Notify)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		return nil, fmt.Errorf("digest requires a notification channel; configure notify.discord or notify.slack")
	}

	return digest.NewRunner(digest.Opts{
		API:      app.client,
		Notifier: notifier,
		Cron:     app.cfg.Digest.Cron,
	})
}
