package patrol

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/omniwatch/omniwatch/internal/api"
	"github.com/omniwatch/omniwatch/internal/models"
	"github.com/omniwatch/omniwatch/internal/sampler"
	"github.com/omniwatch/omniwatch/internal/session"
	"github.com/omniwatch/omniwatch/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeAPI records remote calls and returns scripted results.
type fakeAPI struct {
	mu sync.Mutex

	createErr   error
	createdID   string
	createCalls int
	createUser  string
	createOrg   string
	createStart time.Time

	locationCalls [][]models.LocationSample
	locationErr   error

	endErr   error
	endCalls int
	endID    string
	endReq   api.EndPatrolRequest
	warning  string
}

func (f *fakeAPI) CreatePatrol(ctx context.Context, startTime time.Time, userID, orgID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.createUser = userID
	f.createOrg = orgID
	f.createStart = startTime
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createdID, nil
}

func (f *fakeAPI) UpdatePatrolLocation(ctx context.Context, patrolID string, samples []models.LocationSample) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locationErr != nil {
		return 0, f.locationErr
	}
	f.locationCalls = append(f.locationCalls, append([]models.LocationSample(nil), samples...))
	return len(samples), nil
}

func (f *fakeAPI) EndPatrol(ctx context.Context, patrolID string, req api.EndPatrolRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endCalls++
	f.endID = patrolID
	f.endReq = req
	if f.endErr != nil {
		return "", f.endErr
	}
	return f.warning, nil
}

func (f *fakeAPI) flushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.locationCalls)
}

// fakeSampler captures the sample callback so tests can inject samples.
type fakeSampler struct {
	mu       sync.Mutex
	startErr error
	started  bool
	stopped  int
	onSample func(models.LocationSample)
}

func (f *fakeSampler) Start(ctx context.Context, onSample func(models.LocationSample)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	f.onSample = onSample
	return nil
}

func (f *fakeSampler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
	f.stopped++
}

func (f *fakeSampler) emit(s models.LocationSample) {
	f.mu.Lock()
	cb := f.onSample
	started := f.started
	f.mu.Unlock()
	if started && cb != nil {
		cb(s)
	}
}

func (f *fakeSampler) isStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// fakeClock is an adjustable wall clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	api     *fakeAPI
	sampler *fakeSampler
	store   *store.Store
	session *session.Provider
	clock   *fakeClock
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	st, err := store.New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	sessions := session.New(st)
	if err := sessions.Save("tok-1", models.User{
		ID: "u-1", FirstName: "Ada", LastName: "Okafor",
		Role: models.RoleGuard, InviteCode: "ORG-9",
	}); err != nil {
		t.Fatalf("save session: %v", err)
	}

	fx := &fixture{
		api:     &fakeAPI{createdID: "p-1"},
		sampler: &fakeSampler{},
		store:   st,
		session: sessions,
		clock:   &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)},
	}
	fx.manager = fx.newManager(t, time.Hour) // flush loop effectively disabled
	return fx
}

func (fx *fixture) newManager(t *testing.T, flushInterval time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Opts{
		API:           fx.api,
		Sampler:       fx.sampler,
		Store:         fx.store,
		Sessions:      fx.session,
		FlushInterval: flushInterval,
		Now:           fx.clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func (fx *fixture) snapshot(t *testing.T) (models.PatrolSnapshot, bool) {
	t.Helper()
	data, err := fx.store.Get(store.KeyOngoingPatrol)
	if errors.Is(err, store.ErrNotFound) {
		return models.PatrolSnapshot{}, false
	}
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	var snap models.PatrolSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	return snap, true
}

func sampleAt(fx *fixture, lat, lng float64) models.LocationSample {
	return models.LocationSample{Latitude: lat, Longitude: lng, CapturedAt: fx.clock.Now().UnixMilli()}
}

func TestStart_Success(t *testing.T) {
	fx := newFixture(t)

	if err := fx.manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if got := fx.manager.State(); got != StateActive {
		t.Errorf("State() = %v, want active", got)
	}
	if fx.api.createUser != "u-1" || fx.api.createOrg != "ORG-9" {
		t.Errorf("create args = %s/%s, want u-1/ORG-9", fx.api.createUser, fx.api.createOrg)
	}
	if !fx.sampler.isStarted() {
		t.Error("sampler not started")
	}

	snap, ok := fx.snapshot(t)
	if !ok {
		t.Fatal("no snapshot persisted")
	}
	if snap.PatrolID != "p-1" {
		t.Errorf("snapshot patrol id = %q, want p-1", snap.PatrolID)
	}
	if snap.SchemaVersion != models.SnapshotSchemaVersion {
		t.Errorf("snapshot schema = %d, want %d", snap.SchemaVersion, models.SnapshotSchemaVersion)
	}
	if len(snap.Samples) != 0 {
		t.Errorf("snapshot samples = %d, want 0", len(snap.Samples))
	}
}

func TestStart_NotAuthenticated(t *testing.T) {
	fx := newFixture(t)
	if err := fx.session.Clear(); err != nil {
		t.Fatalf("clear session: %v", err)
	}

	err := fx.manager.Start(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Start() = %v, want ErrNotAuthenticated", err)
	}
	if fx.api.createCalls != 0 {
		t.Errorf("create calls = %d, want 0", fx.api.createCalls)
	}
}

func TestStart_RemoteFailureStaysIdle(t *testing.T) {
	fx := newFixture(t)
	fx.api.createErr = errors.New("connection refused")

	err := fx.manager.Start(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := fx.manager.State(); got != StateIdle {
		t.Errorf("State() = %v, want idle (no half-started patrol)", got)
	}
	if _, ok := fx.snapshot(t); ok {
		t.Error("snapshot persisted despite remote failure")
	}
	if fx.sampler.isStarted() {
		t.Error("sampler started despite remote failure")
	}
}

func TestStart_WhileActive(t *testing.T) {
	fx := newFixture(t)
	if err := fx.manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := fx.manager.Start(context.Background()); !errors.Is(err, ErrPatrolActive) {
		t.Errorf("second Start() = %v, want ErrPatrolActive", err)
	}
	if fx.api.createCalls != 1 {
		t.Errorf("create calls = %d, want 1", fx.api.createCalls)
	}
}

func TestStart_RefusesWhenSnapshotExists(t *testing.T) {
	fx := newFixture(t)
	if err := fx.manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	fx.sampler.emit(sampleAt(fx, 52.520008, 13.404954))

	// A second process over the same storage must not start over the
	// ongoing patrol.
	second := fx.newManager(t, time.Hour)
	if err := second.Start(context.Background()); !errors.Is(err, ErrPatrolActive) {
		t.Errorf("Start() = %v, want ErrPatrolActive", err)
	}
	if fx.api.createCalls != 1 {
		t.Errorf("create calls = %d, want 1", fx.api.createCalls)
	}

	snap, ok := fx.snapshot(t)
	if !ok {
		t.Fatal("snapshot gone after refused start")
	}
	if snap.PatrolID != "p-1" || len(snap.Samples) != 1 {
		t.Errorf("snapshot = %s with %d samples, want p-1 with 1", snap.PatrolID, len(snap.Samples))
	}
}

func TestStart_PermissionDeniedKeepsPatrolActive(t *testing.T) {
	fx := newFixture(t)
	fx.sampler.startErr = sampler.ErrPermissionDenied

	err := fx.manager.Start(context.Background())
	if !errors.Is(err, ErrSamplingUnavailable) {
		t.Fatalf("Start() = %v, want ErrSamplingUnavailable", err)
	}
	if got := fx.manager.State(); got != StateActive {
		t.Errorf("State() = %v, want active (remote record exists)", got)
	}
}

func TestSamples_AppendedInOrderAndSnapshotted(t *testing.T) {
	fx := newFixture(t)
	if err := fx.manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 3; i++ {
		fx.clock.Advance(10 * time.Second)
		fx.sampler.emit(sampleAt(fx, 52.52+float64(i)*0.001, 13.405))
	}

	got := fx.manager.Samples()
	if len(got) != 3 {
		t.Fatalf("samples = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CapturedAt < got[i-1].CapturedAt {
			t.Errorf("sample %d at %d before sample %d at %d", i, got[i].CapturedAt, i-1, got[i-1].CapturedAt)
		}
	}

	snap, ok := fx.snapshot(t)
	if !ok {
		t.Fatal("no snapshot")
	}
	if len(snap.Samples) != 3 {
		t.Errorf("snapshot samples = %d, want 3", len(snap.Samples))
	}
}

func TestFlush_ResendsFullHistory(t *testing.T) {
	fx := newFixture(t)
	if err := fx.manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	fx.sampler.emit(sampleAt(fx, 52.520, 13.405))
	fx.sampler.emit(sampleAt(fx, 52.521, 13.405))

	count, err := fx.manager.Flush(context.Background())
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if count != 2 {
		t.Errorf("first flush count = %d, want 2", count)
	}

	fx.sampler.emit(sampleAt(fx, 52.522, 13.405))

	if _, err := fx.manager.Flush(context.Background()); err != nil {
		t.Fatalf("second flush: %v", err)
	}

	if len(fx.api.locationCalls) != 2 {
		t.Fatalf("location calls = %d, want 2", len(fx.api.locationCalls))
	}
	// Full history each time, not a delta.
	if len(fx.api.locationCalls[0]) != 2 || len(fx.api.locationCalls[1]) != 3 {
		t.Errorf("payload sizes = %d/%d, want 2/3",
			len(fx.api.locationCalls[0]), len(fx.api.locationCalls[1]))
	}
}

func TestFlush_NoSamplesSkipsRequest(t *testing.T) {
	fx := newFixture(t)
	if err := fx.manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	count, err := fx.manager.Flush(context.Background())
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if count != 0 || fx.api.flushCount() != 0 {
		t.Errorf("empty flush made a request (count=%d, calls=%d)", count, fx.api.flushCount())
	}
}

func TestResume_RestoresActiveSession(t *testing.T) {
	fx := newFixture(t)
	if err := fx.manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	fx.sampler.emit(sampleAt(fx, 52.520, 13.405))
	startTime := fx.clock.Now()

	// A fresh manager over the same store models an app relaunch.
	fx.sampler = &fakeSampler{}
	m2 := fx.newManager(t, time.Hour)

	resumed, err := m2.Resume(context.Background())
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !resumed {
		t.Fatal("Resume() = false, want true")
	}
	if fx.api.createCalls != 1 {
		t.Errorf("create calls = %d, want 1 (resume must not re-create)", fx.api.createCalls)
	}

	st := m2.Status()
	if st.State != StateActive {
		t.Errorf("state = %v, want active", st.State)
	}
	if st.PatrolID != "p-1" {
		t.Errorf("patrol id = %q, want p-1", st.PatrolID)
	}
	if d := st.StartTime.Sub(startTime); d > time.Second || d < -time.Second {
		t.Errorf("start time = %v, want within 1s of %v", st.StartTime, startTime)
	}
	if st.SampleCount != 1 {
		t.Errorf("sample count = %d, want 1", st.SampleCount)
	}
	if !fx.sampler.isStarted() {
		t.Error("sampler not restarted on resume")
	}

	// Elapsed time is wall clock, so time spent closed is included.
	fx.clock.Advance(2 * time.Hour)
	if got := m2.Status().Elapsed; got < 2*time.Hour {
		t.Errorf("elapsed = %v, want >= 2h", got)
	}
}

func TestResume_NoSnapshot(t *testing.T) {
	fx := newFixture(t)

	resumed, err := fx.manager.Resume(context.Background())
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed {
		t.Error("Resume() = true with no snapshot, want false")
	}
	if fx.manager.State() != StateIdle {
		t.Errorf("state = %v, want idle", fx.manager.State())
	}
}

func TestResume_UnknownSchemaTreatedAsAbsent(t *testing.T) {
	fx := newFixture(t)
	bad, _ := json.Marshal(models.PatrolSnapshot{SchemaVersion: 99, PatrolID: "p-9"})
	if err := fx.store.Put(store.KeyOngoingPatrol, bad); err != nil {
		t.Fatalf("put snapshot: %v", err)
	}

	resumed, err := fx.manager.Resume(context.Background())
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed {
		t.Error("Resume() = true for unknown schema, want false")
	}
	if _, ok := fx.snapshot(t); ok {
		t.Error("unusable snapshot not discarded")
	}
}

func TestResume_CorruptSnapshotTreatedAsAbsent(t *testing.T) {
	fx := newFixture(t)
	if err := fx.store.Put(store.KeyOngoingPatrol, []byte("{broken")); err != nil {
		t.Fatalf("put snapshot: %v", err)
	}

	resumed, err := fx.manager.Resume(context.Background())
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed {
		t.Error("Resume() = true for corrupt snapshot, want false")
	}
}

func TestStop_SendsFinalSummary(t *testing.T) {
	fx := newFixture(t)
	if err := fx.manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Three points over two minutes.
	for i := 0; i < 3; i++ {
		fx.clock.Advance(40 * time.Second)
		fx.sampler.emit(sampleAt(fx, 52.52+float64(i)*0.001, 13.405))
	}

	result, err := fx.manager.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	if result.Duration != 2*time.Minute {
		t.Errorf("duration = %v, want 2m", result.Duration)
	}
	if fx.api.endReq.Duration != 120 {
		t.Errorf("payload duration = %d, want 120", fx.api.endReq.Duration)
	}
	if fx.api.endReq.EndTime != "2026-03-14T09:02:00Z" {
		t.Errorf("end_time = %q, want 2026-03-14T09:02:00Z", fx.api.endReq.EndTime)
	}

	var path []models.LocationSample
	if err := json.Unmarshal([]byte(fx.api.endReq.Map), &path); err != nil {
		t.Fatalf("unmarshal map: %v", err)
	}
	if len(path) < 3 {
		t.Errorf("serialized path has %d points, want >= 3", len(path))
	}

	if fx.manager.State() != StateIdle {
		t.Errorf("state = %v, want idle", fx.manager.State())
	}
	if _, ok := fx.snapshot(t); ok {
		t.Error("snapshot not cleared after stop")
	}
	if fx.sampler.stopped == 0 {
		t.Error("sampler not stopped")
	}
}

func TestStop_ClearsStateEvenWhenRequestFails(t *testing.T) {
	fx := newFixture(t)
	if err := fx.manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	fx.api.endErr = errors.New("gateway timeout")

	_, err := fx.manager.Stop(context.Background())
	if err == nil || !strings.Contains(err.Error(), "gateway timeout") {
		t.Fatalf("Stop() = %v, want gateway timeout error", err)
	}

	if fx.manager.State() != StateIdle {
		t.Errorf("state = %v, want idle (never Active after confirmed stop)", fx.manager.State())
	}
	if _, ok := fx.snapshot(t); ok {
		t.Error("snapshot not cleared after failed stop")
	}
}

func TestStop_WhenIdle(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.manager.Stop(context.Background()); !errors.Is(err, ErrNoActivePatrol) {
		t.Errorf("Stop() = %v, want ErrNoActivePatrol", err)
	}
}

func TestStop_SurfacesServerWarning(t *testing.T) {
	fx := newFixture(t)
	fx.api.warning = "duration_not_saved"
	if err := fx.manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	result, err := fx.manager.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if result.Warning != "duration_not_saved" {
		t.Errorf("warning = %q, want duration_not_saved", result.Warning)
	}
}

func TestLogCheckpoint(t *testing.T) {
	fx := newFixture(t)
	if err := fx.manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	cp, err := fx.manager.LogCheckpoint(context.Background(), "Gate A", "all clear")
	if err != nil {
		t.Fatalf("log checkpoint: %v", err)
	}
	if cp.Area != "Gate A" || cp.Note != "all clear" {
		t.Errorf("checkpoint = %+v, want Gate A/all clear", cp)
	}

	st := fx.manager.Status()
	if len(st.Checkpoints) != 1 {
		t.Errorf("status checkpoints = %d, want 1", len(st.Checkpoints))
	}

	snap, ok := fx.snapshot(t)
	if !ok {
		t.Fatal("no snapshot")
	}
	if len(snap.Checkpoints) != 1 || snap.Checkpoints[0].Area != "Gate A" {
		t.Errorf("snapshot checkpoints = %+v, want Gate A", snap.Checkpoints)
	}

	// Checkpoints never reach the API as distinct records.
	if fx.api.flushCount() != 0 || fx.api.endCalls != 0 {
		t.Error("checkpoint triggered an API call")
	}
}

func TestLogCheckpoint_WhenIdle(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.manager.LogCheckpoint(context.Background(), "Gate A", ""); !errors.Is(err, ErrNoActivePatrol) {
		t.Errorf("LogCheckpoint() = %v, want ErrNoActivePatrol", err)
	}
}

func TestPeriodicFlush_RunsAndStopsWithPatrol(t *testing.T) {
	fx := newFixture(t)
	m := fx.newManager(t, 25*time.Millisecond)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	fx.sampler.emit(sampleAt(fx, 52.520, 13.405))

	deadline := time.Now().Add(2 * time.Second)
	for fx.api.flushCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if fx.api.flushCount() == 0 {
		t.Fatal("periodic flush never fired")
	}

	if _, err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// The flush timer is cancelled before the final update; nothing may
	// fire afterwards.
	after := fx.api.flushCount()
	time.Sleep(100 * time.Millisecond)
	if got := fx.api.flushCount(); got != after {
		t.Errorf("flush fired after stop: %d -> %d", after, got)
	}
}
