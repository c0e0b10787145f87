// Package models defines the domain types shared across the OmniWatch client:
// users and sessions, patrol snapshots and GPS samples, log entries, and the
// admin-side guard/location/assignment records. JSON tags match the wire
// format of the OmniWatch REST API.
package models

import (
	"strings"
	"time"
)

// User is the authenticated account profile returned by /login and /me.
type User struct {
	ID         string `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
	InviteCode string `json:"invite_code"` // organization code the account belongs to
}

// Name returns the user's display name.
func (u User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Roles recognized by the client. Unknown roles are rejected at the CLI
// boundary with an explanatory error.
const (
	RoleGuard      = "guard"
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
)

// IsAdmin reports whether the role may use the admin commands.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSupervisor
}

// Session pairs an auth token with the user it belongs to. Invariant: a
// stored session always has both fields populated — partial sessions are
// never persisted.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// LocationSample is a single GPS fix recorded during a patrol. Samples are
// immutable once created and kept in arrival order.
type LocationSample struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	CapturedAt int64   `json:"timestamp"` // unix epoch milliseconds
}

// Checkpoint is a named area a guard marked during a patrol, with an
// optional note. Checkpoints are acknowledged locally and ride along in the
// snapshot; they are not sent to the API as distinct records.
type Checkpoint struct {
	Area     string    `json:"area"`
	Note     string    `json:"note,omitempty"`
	LoggedAt time.Time `json:"logged_at"`
}

// SnapshotSchemaVersion is the current on-device patrol snapshot schema.
// Snapshots with an unknown version are treated as absent on resume.
const SnapshotSchemaVersion = 1

// PatrolSnapshot is the versioned resume record persisted to device storage
// while a patrol is in progress.
type PatrolSnapshot struct {
	SchemaVersion int              `json:"schema_version"`
	PatrolID      string           `json:"patrol_id"`
	StartTime     time.Time        `json:"start_time"`
	Samples       []LocationSample `json:"samples"`
	Checkpoints   []Checkpoint     `json:"checkpoints,omitempty"`
}

// Patrol is a completed or in-progress patrol as reported by the API.
type Patrol struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	Duration       int64      `json:"duration"` // seconds
	Map            string     `json:"map"`      // serialized coordinate list
}

// Log entry categories.
const (
	CategoryActivity   = "activity"
	CategoryUnusual    = "unusual"
	CategoryIncident   = "incident"
	CategoryCheckpoint = "checkpoint"
	CategoryOther      = "other"
)

// Categories lists the valid log categories in display order.
var Categories = []string{
	CategoryActivity,
	CategoryUnusual,
	CategoryIncident,
	CategoryCheckpoint,
	CategoryOther,
}

// ValidCategory reports whether c is a known log category.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// LogEntry is an incident/activity report. Images holds the server-side
// representation: a JSON array of base64-encoded blobs, or empty.
type LogEntry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	PatrolID    string    `json:"patrol_id,omitempty"`
	Images      string    `json:"images,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Guard is a roster entry from the admin guards endpoint.
type Guard struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}

// Name returns the guard's display name.
func (g Guard) Name() string {
	return strings.TrimSpace(g.FirstName + " " + g.LastName)
}

// Location is a patrollable site with its comma-separated assigned areas.
type Location struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	AssignedAreas string `json:"assigned_areas"`
}

// Areas splits the comma-separated assigned areas into a trimmed list.
func (l Location) Areas() []string {
	if l.AssignedAreas == "" {
		return nil
	}
	parts := strings.Split(l.AssignedAreas, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Assignment links a guard to a location for a shift window.
type Assignment struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	LocationID    string `json:"location"`
	LocationName  string `json:"location_name,omitempty"`
	AssignedAreas string `json:"assigned_areas"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}
