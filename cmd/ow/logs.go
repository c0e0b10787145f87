package main

import (
	"fmt"
	"strings"

	"github.com/omniwatch/omniwatch/internal/logbook"
	"github.com/omniwatch/omniwatch/internal/models"
	"github.com/omniwatch/omniwatch/internal/notify"
	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Activity and incident log commands",
	}

	cmd.AddCommand(newLogsListCmd())
	cmd.AddCommand(newLogsAddCmd())
	return cmd
}

func newLogsListCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogsList(cmd, configPath, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

func runLogsList(cmd *cobra.Command, configPath string, limit int) error {
	app, err := openApp(configPath)
	if err != nil {
		return err
	}
	if _, err := app.requireSession(); err != nil {
		return err
	}

	book := logbook.New(app.client, nil)
	logs, err := book.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(logs) == 0 {
		fmt.Fprintln(out, "No log entries")
		return nil
	}

	for _, l := range logs {
		prefix := ""
		if l.Category == models.CategoryIncident {
			prefix = "[INCIDENT] "
		}
		fmt.Fprintf(out, "[%s] %s%s (%s): %s\n",
			l.Timestamp.Local().Format("Jan 2 15:04"),
			prefix, l.Title, l.Category, truncate(l.Description, 120))
	}
	return nil
}

func newLogsAddCmd() *cobra.Command {
	var (
		configPath  string
		title       string
		description string
		category    string
		images      []string
		attach      bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Submit a log entry",
		Long:  "Submits an activity or incident report. With --attach-patrol the entry is linked to the ongoing patrol. Image files are base64-encoded and uploaded with the entry.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogsAdd(cmd, configPath, logbook.Entry{
				Title:       title,
				Description: description,
				Category:    category,
				ImagePaths:  images,
			}, attach)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	cmd.Flags().StringVar(&title, "title", "", "entry title")
	cmd.Flags().StringVar(&description, "description", "", "entry description")
	cmd.Flags().StringVar(&category, "category", models.CategoryActivity,
		"category ("+strings.Join(models.Categories, ", ")+")")
	cmd.Flags().StringArrayVar(&images, "image", nil, "image file to attach (repeatable)")
	cmd.Flags().BoolVar(&attach, "attach-patrol", true, "link the entry to the ongoing patrol")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("description")
	return cmd
}

func runLogsAdd(cmd *cobra.Command, configPath string, entry logbook.Entry, attach bool) error {
	app, err := openApp(configPath)
	if err != nil {
		return err
	}
	if _, err := app.requireSession(); err != nil {
		return err
	}

	if attach {
		if snap, ok, err := loadSnapshot(app.store); err == nil && ok {
			entry.PatrolID = snap.PatrolID
		}
	}

	notifier, err := notify.FromConfig(app.cfg.Notify)
	if err != nil {
		return err
	}

	book := logbook.New(app.client, notifier)
	if err := book.Submit(cmd.Context(), entry); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if entry.PatrolID != "" {
		fmt.Fprintf(out, "Log entry submitted (patrol %s)\n", entry.PatrolID)
	} else {
		fmt.Fprintln(out, "Log entry submitted")
	}
	return nil
}
