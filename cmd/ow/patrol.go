package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/omniwatch/omniwatch/internal/models"
	"github.com/omniwatch/omniwatch/internal/patrol"
	"github.com/omniwatch/omniwatch/internal/store"
	"github.com/spf13/cobra"
)

func newPatrolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patrol",
		Short: "Patrol session commands",
	}

	cmd.AddCommand(newPatrolStartCmd())
	cmd.AddCommand(newPatrolStopCmd())
	cmd.AddCommand(newPatrolStatusCmd())
	cmd.AddCommand(newPatrolResumeCmd())
	cmd.AddCommand(newPatrolCheckpointCmd())
	cmd.AddCommand(newPatrolFlushCmd())
	cmd.AddCommand(newPatrolListCmd())
	return cmd
}

func newPatrolStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a patrol and track location until interrupted",
		Long:  "Creates a patrol on the server and starts GPS tracking. The command keeps running, uploading the path periodically; Ctrl+C detaches without ending the patrol. Use \"ow patrol stop\" to end it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatrolStart(cmd, configPath, false)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func newPatrolResumeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted patrol",
		Long:  "Restores the ongoing patrol from device storage and continues tracking. The patrol keeps its original id and start time; elapsed time includes the gap.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatrolStart(cmd, configPath, true)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func runPatrolStart(cmd *cobra.Command, configPath string, resume bool) error {
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

	out := cmd.OutOrStdout()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if resume {
		resumed, err := manager.Resume(ctx)
		if err != nil && !errors.Is(err, patrol.ErrSamplingUnavailable) {
			return err
		}
		if !resumed {
			return fmt.Errorf("no patrol to resume")
		}
		if errors.Is(err, patrol.ErrSamplingUnavailable) {
			fmt.Fprintln(out, "Warning: location source unavailable; patrol continues without new samples")
		}
		st := manager.Status()
		fmt.Fprintf(out, "Resumed patrol %s (started %s, %d samples)\n",
			st.PatrolID, st.StartTime.Local().Format("15:04:05"), st.SampleCount)
	} else {
		err := manager.Start(ctx)
		if errors.Is(err, patrol.ErrSamplingUnavailable) {
			fmt.Fprintln(out, "Warning: location source unavailable; patrol continues without samples")
		} else if errors.Is(err, patrol.ErrPatrolActive) {
			return fmt.Errorf("a patrol is already in progress; run \"ow patrol resume\" to continue it or \"ow patrol stop\" to end it")
		} else if err != nil {
			return err
		}
		st := manager.Status()
		fmt.Fprintf(out, "Patrol %s started at %s\n", st.PatrolID, st.StartTime.Local().Format("15:04:05"))
	}
	fmt.Fprintln(out, "Tracking... (Ctrl+C detaches; the patrol stays active)")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nDetached. Run \"ow patrol resume\" to continue or \"ow patrol stop\" to end.")
			return nil
		case <-ticker.C:
			st := manager.Status()
			fmt.Fprintf(out, "elapsed %s, %d samples\n", formatClock(st.Elapsed), st.SampleCount)
		}
	}
}

func newPatrolStopCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "End the ongoing patrol",
		Long:  "Ends the ongoing patrol: uploads the final path and duration, then clears local state. Local state is cleared even if the upload fails.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatrolStop(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runPatrolStop(cmd *cobra.Command, configPath string, yes bool) error {
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

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	resumed, err := manager.Resume(ctx)
	if err != nil && !errors.Is(err, patrol.ErrSamplingUnavailable) {
		return err
	}
	if !resumed {
		return fmt.Errorf("no patrol in progress")
	}

	st := manager.Status()
	if !yes {
		fmt.Fprintf(out, "End patrol %s (elapsed %s, %d samples)? [y/N] ",
			st.PatrolID, formatClock(st.Elapsed), st.SampleCount)
		reader := bufio.NewReader(cmd.InOrStdin())
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "Cancelled; patrol stays active")
			return nil
		}
	}

	result, err := manager.Stop(ctx)
	if err != nil {
		fmt.Fprintln(out, "Patrol cleared locally, but the final upload failed.")
		return err
	}

	fmt.Fprintf(out, "Patrol %s ended: %s, %d samples\n",
		result.PatrolID, formatClock(result.Duration), result.Samples)
	if result.Warning != "" {
		fmt.Fprintf(out, "Server warning: %s\n", result.Warning)
	}
	return nil
}

func newPatrolStatusCmd() *cobra.Command {
	var (
		configPath string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the ongoing patrol",
		Long:  "Shows the ongoing patrol from device storage: id, start time, elapsed time, sample and checkpoint counts. Use --watch for auto-refresh.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatrolStatus(cmd, configPath, watch)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	cmd.Flags().BoolVar(&watch, "watch", false, "auto-refresh every 5 seconds")
	return cmd
}

func runPatrolStatus(cmd *cobra.Command, configPath string, watch bool) error {
	app, err := openApp(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	for {
		if watch {
			// Clear screen.
			fmt.Fprint(out, "\033[2J\033[H")
		}

		snap, ok, err := loadSnapshot(app.store)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "No patrol in progress")
		} else {
			fmt.Fprintf(out, "Patrol:      %s\n", snap.PatrolID)
			fmt.Fprintf(out, "Started:     %s\n", snap.StartTime.Local().Format("Jan 2 15:04:05"))
			fmt.Fprintf(out, "Elapsed:     %s\n", formatClock(time.Since(snap.StartTime)))
			fmt.Fprintf(out, "Samples:     %d\n", len(snap.Samples))
			fmt.Fprintf(out, "Checkpoints: %d\n", len(snap.Checkpoints))
			if n := len(snap.Samples); n > 0 {
				last := snap.Samples[n-1]
				fmt.Fprintf(out, "Last fix:    %.6f, %.6f\n", last.Latitude, last.Longitude)
			}
		}

		if !watch {
			return nil
		}
		time.Sleep(5 * time.Second)
	}
}

// loadSnapshot reads the ongoing patrol snapshot. Corrupt or foreign-schema
// snapshots read as absent.
func loadSnapshot(st *store.Store) (models.PatrolSnapshot, bool, error) {
	data, err := st.Get(store.KeyOngoingPatrol)
	if errors.Is(err, store.ErrNotFound) {
		return models.PatrolSnapshot{}, false, nil
	}
	if err != nil {
		return models.PatrolSnapshot{}, false, err
	}
	var snap models.PatrolSnapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.SchemaVersion != models.SnapshotSchemaVersion {
		return models.PatrolSnapshot{}, false, nil
	}
	return snap, true, nil
}

func newPatrolCheckpointCmd() *cobra.Command {
	var (
		configPath string
		note       string
	)

	cmd := &cobra.Command{
		Use:   "checkpoint <area>",
		Short: "Log a checkpoint on the ongoing patrol",
		Long:  "Records a named checkpoint with an optional note. Checkpoints are kept with the patrol locally and announced on the notification channels.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatrolCheckpoint(cmd, configPath, args[0], note)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	cmd.Flags().StringVar(&note, "note", "", "optional note")
	return cmd
}

func runPatrolCheckpoint(cmd *cobra.Command, configPath, area, note string) error {
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

	ctx := cmd.Context()
	resumed, err := manager.Resume(ctx)
	if err != nil && !errors.Is(err, patrol.ErrSamplingUnavailable) {
		return err
	}
	if !resumed {
		return fmt.Errorf("no patrol in progress")
	}

	cp, err := manager.LogCheckpoint(ctx, area, note)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %q logged at %s\n", cp.Area, cp.LoggedAt.Local().Format("15:04:05"))
	return nil
}

func newPatrolFlushCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Upload the accumulated path now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatrolFlush(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	return cmd
}

func runPatrolFlush(cmd *cobra.Command, configPath string) error {
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

	ctx := cmd.Context()
	resumed, err := manager.Resume(ctx)
	if err != nil && !errors.Is(err, patrol.ErrSamplingUnavailable) {
		return err
	}
	if !resumed {
		return fmt.Errorf("no patrol in progress")
	}

	count, err := manager.Flush(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d points\n", count)
	return nil
}

func newPatrolListCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent patrols",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatrolList(cmd, configPath, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to OmniWatch config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of patrols to show")
	return cmd
}

func runPatrolList(cmd *cobra.Command, configPath string, limit int) error {
	app, err := openApp(configPath)
	if err != nil {
		return err
	}
	if _, err := app.requireSession(); err != nil {
		return err
	}

	patrols, err := app.client.ListPatrols(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(patrols) == 0 {
		fmt.Fprintln(out, "No patrols recorded")
		return nil
	}

	fmt.Fprintf(out, "%-12s %-18s %-18s %10s\n", "ID", "STARTED", "ENDED", "DURATION")
	for _, p := range patrols {
		ended := "in progress"
		if p.EndTime != nil {
			ended = p.EndTime.Local().Format("Jan 2 15:04")
		}
		fmt.Fprintf(out, "%-12s %-18s %-18s %10s\n",
			p.ID,
			p.StartTime.Local().Format("Jan 2 15:04"),
			ended,
			formatClock(time.Duration(p.Duration)*time.Second))
	}
	return nil
}
