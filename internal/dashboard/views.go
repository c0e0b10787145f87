package dashboard

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/omniwatch/omniwatch/internal/models"
	"github.com/omniwatch/omniwatch/internal/patrol"
)

// StatusView holds the live session data for display.
type StatusView struct {
	State       string                 `json:"state"`
	PatrolID    string                 `json:"patrol_id,omitempty"`
	StartTime   time.Time              `json:"start_time,omitempty"`
	Elapsed     string                 `json:"elapsed,omitempty"`
	SampleCount int                    `json:"sample_count"`
	LastSample  *models.LocationSample `json:"last_sample,omitempty"`
	Checkpoints []models.Checkpoint    `json:"checkpoints,omitempty"`
}

func statusView(st patrol.Status) StatusView {
	v := StatusView{State: string(st.State)}
	if st.State != patrol.StateActive {
		return v
	}
	v.PatrolID = st.PatrolID
	v.StartTime = st.StartTime
	v.Elapsed = FormatClock(st.Elapsed)
	v.SampleCount = st.SampleCount
	v.LastSample = st.LastSample
	v.Checkpoints = st.Checkpoints
	return v
}

// PatrolRow holds patrol history data for display.
type PatrolRow struct {
	ID       string
	Started  time.Time
	Ended    string
	Duration string
	Points   int
}

func patrolRows(patrols []models.Patrol) []PatrolRow {
	rows := make([]PatrolRow, len(patrols))
	for i, p := range patrols {
		ended := "in progress"
		if p.EndTime != nil {
			ended = formatDateTime(*p.EndTime)
		}
		rows[i] = PatrolRow{
			ID:       p.ID,
			Started:  p.StartTime,
			Ended:    ended,
			Duration: FormatClock(time.Duration(p.Duration) * time.Second),
			Points:   pathPointCount(p.Map),
		}
	}
	return rows
}

// pathPointCount counts points in a serialized patrol path. Unparseable
// paths count as zero.
func pathPointCount(raw string) int {
	if raw == "" {
		return 0
	}
	var path []models.LocationSample
	if err := json.Unmarshal([]byte(raw), &path); err != nil {
		return 0
	}
	return len(path)
}

// LogRow holds log entry data for display.
type LogRow struct {
	Title       string
	Description string
	Category    string
	PatrolID    string
	Timestamp   time.Time
}

func logRows(logs []models.LogEntry) []LogRow {
	rows := make([]LogRow, len(logs))
	for i, l := range logs {
		rows[i] = LogRow{
			Title:       l.Title,
			Description: l.Description,
			Category:    l.Category,
			PatrolID:    l.PatrolID,
			Timestamp:   l.Timestamp,
		}
	}
	return rows
}

// LocationRow holds location data for display, with areas split out.
type LocationRow struct {
	ID    string
	Name  string
	Areas []string
}

func locationRows(locations []models.Location) []LocationRow {
	rows := make([]LocationRow, len(locations))
	for i, l := range locations {
		rows[i] = LocationRow{ID: l.ID, Name: l.Name, Areas: l.Areas()}
	}
	return rows
}

// TimeAgo formats a timestamp as a relative age. Zero times render as a dash.
func TimeAgo(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// FormatClock formats a duration as HH:MM:SS.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Local().Format("Jan 2 15:04")
}
