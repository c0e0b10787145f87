// Package patrol implements the patrol session manager: the Idle/Active
// state machine that creates the remote patrol record, runs the location
// sampler, persists a resume snapshot to device storage, periodically
// flushes the accumulated path to the API, and sends the final summary on
// stop.
package patrol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/omniwatch/omniwatch/internal/api"
	"github.com/omniwatch/omniwatch/internal/models"
	"github.com/omniwatch/omniwatch/internal/notify"
	"github.com/omniwatch/omniwatch/internal/sampler"
	"github.com/omniwatch/omniwatch/internal/session"
	"github.com/omniwatch/omniwatch/internal/store"
)

// State of the patrol session manager. There is no paused state.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

// Errors callers branch on.
var (
	ErrNotAuthenticated = errors.New("patrol: not authenticated")
	ErrPatrolActive     = errors.New("patrol: a patrol is already active")
	ErrNoActivePatrol   = errors.New("patrol: no active patrol")
	// ErrSamplingUnavailable reports that the patrol is running without
	// location sampling because the positioning source denied access.
	ErrSamplingUnavailable = errors.New("patrol: location sampling unavailable")
)

// DefaultFlushInterval is the default interval between location uploads.
const DefaultFlushInterval = 30 * time.Second

// API is the remote surface the manager depends on.
type API interface {
	CreatePatrol(ctx context.Context, startTime time.Time, userID, orgID string) (string, error)
	UpdatePatrolLocation(ctx context.Context, patrolID string, samples []models.LocationSample) (int, error)
	EndPatrol(ctx context.Context, patrolID string, req api.EndPatrolRequest) (string, error)
}

// Sampler is the location sampling surface the manager depends on.
type Sampler interface {
	Start(ctx context.Context, onSample func(models.LocationSample)) error
	Stop()
}

// Opts holds parameters for creating a Manager.
type Opts struct {
	API           API
	Sampler       Sampler
	Store         *store.Store
	Sessions      *session.Provider
	Notifier      notify.Notifier // optional
	FlushInterval time.Duration   // defaults to DefaultFlushInterval
	Now           func() time.Time
}

// Manager is the patrol session manager.
type Manager struct {
	apiClient     API
	sampler       Sampler
	store         *store.Store
	sessions      *session.Provider
	notifier      notify.Notifier
	flushInterval time.Duration
	now           func() time.Time

	mu          sync.Mutex
	state       State
	patrolID    string
	startTime   time.Time
	samples     []models.LocationSample
	checkpoints []models.Checkpoint
	flushCancel context.CancelFunc
}

// NewManager creates a patrol session manager in the Idle state.
func NewManager(opts Opts) (*Manager, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("patrol: manager: api is required")
	}
	if opts.Sampler == nil {
		return nil, fmt.Errorf("patrol: manager: sampler is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("patrol: manager: store is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("patrol: manager: session provider is required")
	}
	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		apiClient:     opts.API,
		sampler:       opts.Sampler,
		store:         opts.Store,
		sessions:      opts.Sessions,
		notifier:      opts.Notifier,
		flushInterval: flushInterval,
		now:           now,
		state:         StateIdle,
	}, nil
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status is a snapshot of the manager for display.
type Status struct {
	State       State
	PatrolID    string
	StartTime   time.Time
	Elapsed     time.Duration
	SampleCount int
	LastSample  *models.LocationSample
	Checkpoints []models.Checkpoint
}

// Status reports the current session. Elapsed is recomputed from wall clock
// so time spent with the app closed is included.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{State: m.state}
	if m.state != StateActive {
		return st
	}
	st.PatrolID = m.patrolID
	st.StartTime = m.startTime
	st.Elapsed = m.now().Sub(m.startTime)
	st.SampleCount = len(m.samples)
	if n := len(m.samples); n > 0 {
		last := m.samples[n-1]
		st.LastSample = &last
	}
	st.Checkpoints = append([]models.Checkpoint(nil), m.checkpoints...)
	return st
}

// Start transitions Idle → Active: creates the remote patrol record, starts
// the sampler, persists the resume snapshot, and launches the periodic
// flush. On remote failure the transition aborts and Idle is retained.
// Start returns ErrPatrolActive when a session is already Active, in memory
// or as a persisted snapshot from an earlier run.
//
// A positioning permission refusal does not abort the patrol: the remote
// record already exists, so the session stays Active without samples and
// Start returns ErrSamplingUnavailable for the caller to surface.
func (m *Manager) Start(ctx context.Context) error {
	sess, ok := m.sessions.Load()
	if !ok {
		return ErrNotAuthenticated
	}

	m.mu.Lock()
	if m.state == StateActive {
		m.mu.Unlock()
		return ErrPatrolActive
	}
	m.mu.Unlock()

	// A persisted snapshot means a patrol is already underway, possibly
	// started by another process. Starting over would orphan its remote
	// record and clobber the accumulated path.
	if _, ok, err := m.loadSnapshot(); err != nil {
		return fmt.Errorf("patrol: start: %w", err)
	} else if ok {
		return ErrPatrolActive
	}

	startTime := m.now()
	patrolID, err := m.apiClient.CreatePatrol(ctx, startTime, sess.User.ID, sess.User.InviteCode)
	if err != nil {
		return fmt.Errorf("patrol: start: %w", err)
	}

	m.mu.Lock()
	m.state = StateActive
	m.patrolID = patrolID
	m.startTime = startTime
	m.samples = nil
	m.checkpoints = nil
	m.mu.Unlock()

	if err := m.persistSnapshot(); err != nil {
		log.Printf("patrol: persist snapshot: %v", err)
	}

	m.startFlushLoop()
	m.send(ctx, notify.Event{
		Kind:  notify.KindPatrolStarted,
		Title: "Patrol started",
		Body:  fmt.Sprintf("%s started a patrol at %s", sess.User.Name(), startTime.Format(time.RFC3339)),
	})

	return m.startSampling(ctx)
}

// Resume restores an Active session from the persisted snapshot, reusing
// the stored patrol id without re-contacting the server. Returns false when
// no usable snapshot exists.
func (m *Manager) Resume(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if m.state == StateActive {
		m.mu.Unlock()
		return true, nil
	}
	m.mu.Unlock()

	snap, ok, err := m.loadSnapshot()
	if err != nil {
		return false, fmt.Errorf("patrol: resume: %w", err)
	}
	if !ok {
		return false, nil
	}

	m.mu.Lock()
	m.state = StateActive
	m.patrolID = snap.PatrolID
	m.startTime = snap.StartTime
	m.samples = snap.Samples
	m.checkpoints = snap.Checkpoints
	m.mu.Unlock()

	m.startFlushLoop()
	return true, m.startSampling(ctx)
}

// loadSnapshot reads the persisted patrol snapshot from device storage.
// Corrupt or foreign-schema snapshots are deleted and reported as absent so
// a bad record never blocks a fresh patrol.
func (m *Manager) loadSnapshot() (models.PatrolSnapshot, bool, error) {
	data, err := m.store.Get(store.KeyOngoingPatrol)
	if errors.Is(err, store.ErrNotFound) {
		return models.PatrolSnapshot{}, false, nil
	}
	if err != nil {
		return models.PatrolSnapshot{}, false, err
	}

	var snap models.PatrolSnapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.SchemaVersion != models.SnapshotSchemaVersion || snap.PatrolID == "" {
		log.Printf("patrol: discarding unusable snapshot (schema %d)", snap.SchemaVersion)
		if err := m.store.Delete(store.KeyOngoingPatrol); err != nil {
			log.Printf("patrol: delete unusable snapshot: %v", err)
		}
		return models.PatrolSnapshot{}, false, nil
	}
	return snap, true, nil
}

// StopResult summarizes a completed patrol.
type StopResult struct {
	PatrolID string
	Duration time.Duration
	EndTime  time.Time
	Samples  int
	Warning  string // non-fatal server warning, if any
}

// Stop transitions Active → Idle: cancels the flush loop (so no flush can
// race the final update), stops the sampler, sends the final summary, and
// clears local state. Local state is cleared even when the final request
// fails; the error is still returned for the caller to surface.
func (m *Manager) Stop(ctx context.Context) (StopResult, error) {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return StopResult{}, ErrNoActivePatrol
	}
	patrolID := m.patrolID
	startTime := m.startTime
	path := append([]models.LocationSample(nil), m.samples...)
	if m.flushCancel != nil {
		m.flushCancel()
		m.flushCancel = nil
	}
	m.mu.Unlock()

	m.sampler.Stop()

	endTime := m.now()
	duration := endTime.Sub(startTime)

	var user models.User
	if sess, ok := m.sessions.Load(); ok {
		user = sess.User
	}

	mapJSON, err := json.Marshal(path)
	if err != nil {
		mapJSON = []byte("[]")
	}

	warning, endErr := m.apiClient.EndPatrol(ctx, patrolID, api.EndPatrolRequest{
		OrganizationID: user.InviteCode,
		UserID:         user.ID,
		Duration:       int64(duration.Seconds()),
		StartTime:      startTime.UTC().Format(time.RFC3339),
		EndTime:        endTime.UTC().Format(time.RFC3339),
		Map:            string(mapJSON),
	})

	// The session is over regardless of the request outcome: no automatic
	// retry, no rollback to Active.
	m.mu.Lock()
	m.state = StateIdle
	m.patrolID = ""
	m.samples = nil
	m.checkpoints = nil
	m.mu.Unlock()

	if err := m.store.Delete(store.KeyOngoingPatrol); err != nil {
		log.Printf("patrol: clear snapshot: %v", err)
	}

	result := StopResult{
		PatrolID: patrolID,
		Duration: duration,
		EndTime:  endTime,
		Samples:  len(path),
		Warning:  warning,
	}
	if endErr != nil {
		return result, fmt.Errorf("patrol: stop: %w", endErr)
	}

	m.send(ctx, notify.Event{
		Kind:  notify.KindPatrolEnded,
		Title: "Patrol ended",
		Body:  fmt.Sprintf("%s ended patrol %s after %s (%d points)", user.Name(), patrolID, duration.Round(time.Second), len(path)),
	})
	return result, nil
}

// LogCheckpoint records a named checkpoint with an optional note while
// Active. Checkpoints are acknowledged locally and kept in the snapshot;
// they are not submitted to the API as distinct records.
func (m *Manager) LogCheckpoint(ctx context.Context, area, note string) (models.Checkpoint, error) {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return models.Checkpoint{}, ErrNoActivePatrol
	}
	cp := models.Checkpoint{Area: area, Note: note, LoggedAt: m.now()}
	m.checkpoints = append(m.checkpoints, cp)
	m.mu.Unlock()

	if err := m.persistSnapshot(); err != nil {
		log.Printf("patrol: persist snapshot: %v", err)
	}

	m.send(ctx, notify.Event{
		Kind:  notify.KindCheckpoint,
		Title: "Checkpoint: " + area,
		Body:  note,
	})
	return cp, nil
}

// Samples returns a copy of the samples accumulated so far.
func (m *Manager) Samples() []models.LocationSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LocationSample(nil), m.samples...)
}

// Flush sends the full accumulated sample history to the API immediately.
// The upload is idempotent full-state sync: the complete history is resent
// each time, trading bandwidth for crash safety.
func (m *Manager) Flush(ctx context.Context) (int, error) {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return 0, ErrNoActivePatrol
	}
	patrolID := m.patrolID
	path := append([]models.LocationSample(nil), m.samples...)
	m.mu.Unlock()

	if len(path) == 0 {
		return 0, nil
	}
	count, err := m.apiClient.UpdatePatrolLocation(ctx, patrolID, path)
	if err != nil {
		return 0, fmt.Errorf("patrol: flush: %w", err)
	}
	return count, nil
}

// startSampling starts the location sampler. Permission refusal leaves the
// patrol Active without samples and is reported as ErrSamplingUnavailable.
func (m *Manager) startSampling(ctx context.Context) error {
	err := m.sampler.Start(ctx, m.onSample)
	if err == nil {
		return nil
	}
	if errors.Is(err, sampler.ErrPermissionDenied) {
		return fmt.Errorf("%w: %v", ErrSamplingUnavailable, err)
	}
	return fmt.Errorf("patrol: start sampling: %w", err)
}

// onSample appends a sample in arrival order and refreshes the snapshot so
// a restart resumes with the path intact.
func (m *Manager) onSample(s models.LocationSample) {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return
	}
	m.samples = append(m.samples, s)
	m.mu.Unlock()

	if err := m.persistSnapshot(); err != nil {
		log.Printf("patrol: persist snapshot: %v", err)
	}
}

// startFlushLoop launches the periodic upload goroutine. The previous loop,
// if any, is cancelled first.
func (m *Manager) startFlushLoop() {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.flushCancel != nil {
		m.flushCancel()
	}
	m.flushCancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Flush(ctx); err != nil && !errors.Is(err, ErrNoActivePatrol) {
					// Best effort: the next tick resends the full
					// history anyway.
					log.Printf("patrol: periodic flush: %v", err)
				}
			}
		}
	}()
}

// persistSnapshot writes the current session to device storage.
func (m *Manager) persistSnapshot() error {
	m.mu.Lock()
	snap := models.PatrolSnapshot{
		SchemaVersion: models.SnapshotSchemaVersion,
		PatrolID:      m.patrolID,
		StartTime:     m.startTime,
		Samples:       append([]models.LocationSample(nil), m.samples...),
		Checkpoints:   append([]models.Checkpoint(nil), m.checkpoints...),
	}
	m.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("patrol: marshal snapshot: %w", err)
	}
	return m.store.Put(store.KeyOngoingPatrol, data)
}

// send delivers a notification best-effort.
func (m *Manager) send(ctx context.Context, ev notify.Event) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Send(ctx, ev); err != nil {
		log.Printf("patrol: notify: %v", err)
	}
}
