package api

import (
	"encoding/json"

	"github.com/omniwatch/omniwatch/internal/models"
)

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// RegisterRequest is the signup payload. CompanyCode is the optional
// organization invite code.
type RegisterRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	CompanyCode string `json:"companyCode"`
}

type createPatrolRequest struct {
	StartTime      string `json:"start_time"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// flexibleID tolerates servers that return ids as strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

func (f flexibleID) String() string { return string(f) }

// createPatrolResponse handles both envelope shapes the backend has used:
// {"data":{"id":...}} and a bare {"id":...}.
type createPatrolResponse struct {
	Data struct {
		ID flexibleID `json:"id"`
	} `json:"data"`
	ID flexibleID `json:"id"`
}

type locationUpdateRequest struct {
	LocationData []models.LocationSample `json:"location_data"`
}

type locationUpdateResponse struct {
	PointsCount int `json:"points_count"`
}

// EndPatrolRequest is the final patrol summary payload. Map is the full
// sample path serialized as a JSON coordinate list.
type EndPatrolRequest struct {
	OrganizationID string `json:"organization_id,omitempty"`
	UserID         string `json:"user_id"`
	Duration       int64  `json:"duration"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Map            string `json:"map"`
}

type endPatrolResponse struct {
	Warning string `json:"warning"`
	Details string `json:"details"`
}

type patrolListResponse struct {
	Patrols []models.Patrol `json:"patrols"`
}

type logListResponse struct {
	Logs []models.LogEntry `json:"logs"`
}

// CreateLogRequest is the log submission payload. Images is a JSON-encoded
// array of base64 blobs, or empty when no images are attached.
type CreateLogRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	PatrolID    string `json:"patrol_id,omitempty"`
	Images      string `json:"images,omitempty"`
}

type locationListResponse struct {
	Locations []models.Location `json:"locations"`
}

type assignmentListResponse struct {
	Assignments []models.Assignment `json:"assignments"`
}

type guardListResponse struct {
	Guards []models.Guard `json:"guards"`
}

// UpdateGuardRequest updates guard profile fields; empty fields are left
// unchanged by the server.
type UpdateGuardRequest struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role,omitempty"`
}

// CreateAssignmentRequest assigns a guard to a location for a shift window.
type CreateAssignmentRequest struct {
	UserID        string `json:"user_id"`
	LocationID    string `json:"location"`
	AssignedAreas string `json:"assigned_areas"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}
