// Package digest builds periodic shift summaries from recent patrol and log
// activity and posts them to the configured notification channels.
package digest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/omniwatch/omniwatch/internal/models"
	"github.com/omniwatch/omniwatch/internal/notify"
	"github.com/robfig/cron/v3"
)

// DefaultCron fires the digest every day at 07:00.
const DefaultCron = "0 7 * * *"

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// fetchLimit bounds how much recent activity a digest considers.
const fetchLimit = 100

// API is the remote surface the digest depends on.
type API interface {
	ListPatrols(ctx context.Context, limit int) ([]models.Patrol, error)
	ListLogs(ctx context.Context, limit int) ([]models.LogEntry, error)
}

// Opts holds parameters for creating a Runner.
type Opts struct {
	API      API
	Notifier notify.Notifier
	Cron     string // defaults to DefaultCron
	Now      func() time.Time
}

// Runner builds and delivers digests on a cron schedule.
type Runner struct {
	apiClient API
	notifier  notify.Notifier
	expr      string
	now       func() time.Time
}

// NewRunner creates a Runner, validating the cron expression up front.
func NewRunner(opts Opts) (*Runner, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("digest: api is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("digest: notifier is required")
	}
	expr := opts.Cron
	if expr == "" {
		expr = DefaultCron
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return nil, fmt.Errorf("digest: invalid cron expression %q: %w", expr, err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		apiClient: opts.API,
		notifier:  opts.Notifier,
		expr:      expr,
		now:       now,
	}, nil
}

// Report holds computed metrics for a 24-hour period.
type Report struct {
	PeriodStart   time.Time
	PeriodEnd     time.Time
	PatrolCount   int
	Completed     int
	TotalDuration time.Duration
	LogCount      int
	IncidentCount int
}

// Build fetches recent activity and computes the last-24-hours report.
// Returns nil when there was no activity in the period.
func (r *Runner) Build(ctx context.Context) (*Report, error) {
	until := r.now()
	since := until.Add(-24 * time.Hour)

	patrols, err := r.apiClient.ListPatrols(ctx, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("digest: list patrols: %w", err)
	}
	logs, err := r.apiClient.ListLogs(ctx, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("digest: list logs: %w", err)
	}

	report := &Report{PeriodStart: since, PeriodEnd: until}
	for _, p := range patrols {
		if p.StartTime.Before(since) || !p.StartTime.Before(until) {
			continue
		}
		report.PatrolCount++
		if p.EndTime != nil {
			report.Completed++
			report.TotalDuration += time.Duration(p.Duration) * time.Second
		}
	}
	for _, l := range logs {
		if l.Timestamp.Before(since) || !l.Timestamp.Before(until) {
			continue
		}
		report.LogCount++
		if l.Category == models.CategoryIncident {
			report.IncidentCount++
		}
	}

	// Suppress when no activity.
	if report.PatrolCount == 0 && report.LogCount == 0 {
		return nil, nil
	}
	return report, nil
}

// Format renders a report as a notification event.
func Format(report *Report) notify.Event {
	var bodyLines []string
	bodyLines = append(bodyLines, fmt.Sprintf("**Period**: %s – %s",
		report.PeriodStart.Format("Jan 2 15:04"),
		report.PeriodEnd.Format("Jan 2 15:04")))
	bodyLines = append(bodyLines, fmt.Sprintf("**Patrols**: %d started, %d completed",
		report.PatrolCount, report.Completed))
	if report.TotalDuration > 0 {
		bodyLines = append(bodyLines, fmt.Sprintf("**Time on patrol**: %s", formatDuration(report.TotalDuration)))
	}
	bodyLines = append(bodyLines, fmt.Sprintf("**Log entries**: %d", report.LogCount))
	if report.IncidentCount > 0 {
		bodyLines = append(bodyLines, fmt.Sprintf("**Incidents**: %d", report.IncidentCount))
	}

	return notify.Event{
		Kind:  notify.KindDigest,
		Title: "Shift Digest",
		Body:  strings.Join(bodyLines, "\n"),
	}
}

// RunOnce builds and delivers a single digest. A suppressed (empty) digest
// is not an error.
func (r *Runner) RunOnce(ctx context.Context) error {
	report, err := r.Build(ctx)
	if err != nil {
		return err
	}
	if report == nil {
		return nil
	}
	if err := r.notifier.Send(ctx, Format(report)); err != nil {
		return fmt.Errorf("digest: send: %w", err)
	}
	return nil
}

// Run delivers digests on the configured schedule until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log.Printf("digest: scheduled %q", r.expr)
	for {
		timer := time.NewTimer(r.nextFire())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if err := r.RunOnce(ctx); err != nil {
				log.Printf("digest: run: %v", err)
			}
		}
	}
}

// nextFire returns the duration until the next scheduled digest.
func (r *Runner) nextFire() time.Duration {
	sched, err := cronParser.Parse(r.expr)
	if err != nil {
		return time.Hour
	}
	now := r.now()
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}
