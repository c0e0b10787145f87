// Package api implements the OmniWatch REST API client. All authenticated
// requests carry a bearer token; responses are JSON, and non-2xx responses
// carry a server message in the body or as plain text.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/omniwatch/omniwatch/internal/models"
)

// Client is the OmniWatch API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option is a function that configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithToken sets the bearer token for authenticated requests.
func WithToken(token string) Option {
	return func(client *Client) {
		client.token = token
	}
}

// NewClient creates an OmniWatch API client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token, typically after login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Error is a non-2xx API response. Message is the server-provided message
// when one exists, otherwise the raw response body.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

// IsAuthError reports whether err is an authentication failure (expired or
// missing token). Callers force a logout and redirect to login on it.
func IsAuthError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)
}

// Login authenticates with phone and password and returns the token and
// user profile.
func (c *Client) Login(ctx context.Context, phone, password string) (string, models.User, error) {
	req := loginRequest{Phone: phone, Password: password}
	var resp loginResponse
	if err := c.doRequest(ctx, http.MethodPost, "/login", req, &resp); err != nil {
		return "", models.User{}, fmt.Errorf("login: %w", err)
	}
	return resp.Token, resp.User, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	if err := c.doRequest(ctx, http.MethodPost, "/register", req, nil); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// ValidateInviteCode checks an organization invite code. A nil return means
// the code is valid.
func (c *Client) ValidateInviteCode(ctx context.Context, code string) error {
	body := map[string]string{"inviteCode": code}
	if err := c.doRequest(ctx, http.MethodPost, "/organizations/validate-invite-code", body, nil); err != nil {
		return fmt.Errorf("validate invite code: %w", err)
	}
	return nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var user models.User
	if err := c.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return models.User{}, fmt.Errorf("me: %w", err)
	}
	return user, nil
}

// CreatePatrol creates a remote patrol record and returns its id.
func (c *Client) CreatePatrol(ctx context.Context, startTime time.Time, userID, orgID string) (string, error) {
	req := createPatrolRequest{
		StartTime:      startTime.UTC().Format(time.RFC3339),
		UserID:         userID,
		OrganizationID: orgID,
	}
	var resp createPatrolResponse
	if err := c.doRequest(ctx, http.MethodPost, "/patrols", req, &resp); err != nil {
		return "", fmt.Errorf("create patrol: %w", err)
	}
	id := resp.Data.ID.String()
	if id == "" {
		id = resp.ID.String()
	}
	if id == "" {
		return "", fmt.Errorf("create patrol: response carries no patrol id")
	}
	return id, nil
}

// UpdatePatrolLocation uploads the full accumulated sample history for a
// patrol. The server treats this as idempotent full-state sync, so resending
// earlier points is safe. Returns the server-side point count.
func (c *Client) UpdatePatrolLocation(ctx context.Context, patrolID string, samples []models.LocationSample) (int, error) {
	req := locationUpdateRequest{LocationData: samples}
	var resp locationUpdateResponse
	path := "/patrols/" + url.PathEscape(patrolID) + "/location"
	if err := c.doRequest(ctx, http.MethodPatch, path, req, &resp); err != nil {
		return 0, fmt.Errorf("update patrol location: %w", err)
	}
	return resp.PointsCount, nil
}

// EndPatrol sends the final patrol summary: end time, wall-clock duration in
// seconds, and the full path serialized as a coordinate list. Returns a
// non-fatal server warning, if any.
func (c *Client) EndPatrol(ctx context.Context, patrolID string, req EndPatrolRequest) (string, error) {
	var resp endPatrolResponse
	path := "/patrols/" + url.PathEscape(patrolID)
	if err := c.doRequest(ctx, http.MethodPatch, path, req, &resp); err != nil {
		return "", fmt.Errorf("end patrol: %w", err)
	}
	return resp.Warning, nil
}

// ListPatrols returns the most recent patrols, newest first.
func (c *Client) ListPatrols(ctx context.Context, limit int) ([]models.Patrol, error) {
	var resp patrolListResponse
	path := "/patrols?limit=" + strconv.Itoa(limit) + "&sort=-start_time"
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list patrols: %w", err)
	}
	return resp.Patrols, nil
}

// ListLogs returns the most recent log entries, newest first.
func (c *Client) ListLogs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	var resp logListResponse
	path := "/logs?limit=" + strconv.Itoa(limit) + "&sort=-timestamp"
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return resp.Logs, nil
}

// CreateLog submits a new log entry.
func (c *Client) CreateLog(ctx context.Context, req CreateLogRequest) error {
	if err := c.doRequest(ctx, http.MethodPost, "/logs", req, nil); err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	return nil
}

// ListLocations returns the patrollable locations visible to the user.
func (c *Client) ListLocations(ctx context.Context) ([]models.Location, error) {
	var resp locationListResponse
	if err := c.doRequest(ctx, http.MethodGet, "/locations", nil, &resp); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return resp.Locations, nil
}

// MyAssignments returns the authenticated guard's assignments.
func (c *Client) MyAssignments(ctx context.Context) ([]models.Assignment, error) {
	var resp assignmentListResponse
	if err := c.doRequest(ctx, http.MethodGet, "/my-assignments", nil, &resp); err != nil {
		return nil, fmt.Errorf("my assignments: %w", err)
	}
	return resp.Assignments, nil
}

// ListGuards returns the organization's guard roster. Admin only.
func (c *Client) ListGuards(ctx context.Context) ([]models.Guard, error) {
	var resp guardListResponse
	if err := c.doRequest(ctx, http.MethodGet, "/admin/guards", nil, &resp); err != nil {
		return nil, fmt.Errorf("list guards: %w", err)
	}
	return resp.Guards, nil
}

// UpdateGuard updates a guard's profile fields. Admin only.
func (c *Client) UpdateGuard(ctx context.Context, id string, req UpdateGuardRequest) error {
	path := "/admin/guards/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodPatch, path, req, nil); err != nil {
		return fmt.Errorf("update guard: %w", err)
	}
	return nil
}

// DeleteGuard removes a guard account. Admin only.
func (c *Client) DeleteGuard(ctx context.Context, id string) error {
	path := "/admin/guards/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete guard: %w", err)
	}
	return nil
}

// ListAdminLocations returns all locations in the organization. Admin only.
func (c *Client) ListAdminLocations(ctx context.Context) ([]models.Location, error) {
	var resp locationListResponse
	if err := c.doRequest(ctx, http.MethodGet, "/admin/locations", nil, &resp); err != nil {
		return nil, fmt.Errorf("list admin locations: %w", err)
	}
	return resp.Locations, nil
}

// CreateLocation adds a patrollable location. Admin only.
func (c *Client) CreateLocation(ctx context.Context, name, assignedAreas string) error {
	body := map[string]string{"name": name, "assigned_areas": assignedAreas}
	if err := c.doRequest(ctx, http.MethodPost, "/admin/locations", body, nil); err != nil {
		return fmt.Errorf("create location: %w", err)
	}
	return nil
}

// UpdateLocation updates a location's name or areas. Admin only.
func (c *Client) UpdateLocation(ctx context.Context, id, name, assignedAreas string) error {
	body := map[string]string{"name": name, "assigned_areas": assignedAreas}
	path := "/admin/locations/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	return nil
}

// DeleteLocation removes a location. Admin only.
func (c *Client) DeleteLocation(ctx context.Context, id string) error {
	path := "/admin/locations/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return nil
}

// CreateAssignment assigns a guard to a location for a shift window. Admin
// only.
func (c *Client) CreateAssignment(ctx context.Context, req CreateAssignmentRequest) error {
	if err := c.doRequest(ctx, http.MethodPost, "/admin/assignments", req, nil); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request and decodes the response.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Status: resp.StatusCode, Message: serverMessage(respBody)}
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// serverMessage extracts the "message" field from an error body, falling
// back to the raw body text.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return string(bytes.TrimSpace(body))
}
