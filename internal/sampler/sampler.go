// Package sampler turns raw position fixes from a location provider into the
// ordered, threshold-filtered samples a patrol records. The provider is
// pluggable: gpsd on real devices, fakes in tests.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/omniwatch/omniwatch/internal/geo"
	"github.com/omniwatch/omniwatch/internal/models"
)

// ErrPermissionDenied is returned by Start when the positioning source
// refuses access. The condition is terminal for that patrol attempt: the
// guard must restart the patrol to retry.
var ErrPermissionDenied = errors.New("sampler: location permission denied")

// ErrAlreadyStarted is returned by Start while a subscription is active.
var ErrAlreadyStarted = errors.New("sampler: already started")

// Fix is a raw position report from a Provider.
type Fix struct {
	Latitude  float64
	Longitude float64
	Time      time.Time
}

// Provider abstracts the device positioning API.
type Provider interface {
	// RequestPermission asks for access to the positioning source. A
	// refusal is reported as ErrPermissionDenied.
	RequestPermission(ctx context.Context) error
	// Watch streams fixes to onFix until ctx is cancelled. Watch blocks;
	// the sampler runs it on its own goroutine.
	Watch(ctx context.Context, onFix func(Fix)) error
}

// Default sampling thresholds, matching the patrol tracking requirements:
// a new sample every ~10 meters of movement, at most one per ~5 seconds.
const (
	DefaultMinDistanceM = 10.0
	DefaultMinInterval  = 5 * time.Second
)

// coordPrecision is the number of decimal places kept on coordinates
// (~0.1 m resolution).
const coordPrecision = 1e6

// Opts holds parameters for creating a Sampler.
type Opts struct {
	Provider     Provider
	MinDistanceM float64       // defaults to DefaultMinDistanceM
	MinInterval  time.Duration // defaults to DefaultMinInterval
}

// Sampler subscribes to a Provider and emits filtered LocationSamples in
// arrival order with monotonically non-decreasing timestamps.
type Sampler struct {
	provider     Provider
	minDistanceM float64
	minInterval  time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	last    *models.LocationSample
	lastAt  time.Time
	started bool
}

// New creates a Sampler.
func New(opts Opts) (*Sampler, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("sampler: provider is required")
	}
	minDistance := opts.MinDistanceM
	if minDistance <= 0 {
		minDistance = DefaultMinDistanceM
	}
	minInterval := opts.MinInterval
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Sampler{
		provider:     opts.Provider,
		minDistanceM: minDistance,
		minInterval:  minInterval,
	}, nil
}

// Start requests permission and subscribes to position updates. Each
// accepted fix is delivered to onSample as a fixed-precision sample. A
// permission refusal returns ErrPermissionDenied without subscribing.
func (s *Sampler) Start(ctx context.Context, onSample func(models.LocationSample)) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.mu.Unlock()

	if err := s.provider.RequestPermission(ctx); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("sampler: request permission: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.started = true
	s.last = nil
	s.lastAt = time.Time{}
	s.mu.Unlock()

	go func() {
		if err := s.provider.Watch(watchCtx, func(fix Fix) {
			s.handleFix(fix, onSample)
		}); err != nil && watchCtx.Err() == nil {
			log.Printf("sampler: watch ended: %v", err)
		}
	}()

	return nil
}

// Stop cancels the subscription. Safe to call when not started.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.started = false
}

// handleFix applies the distance and interval thresholds and forwards
// accepted fixes as samples.
func (s *Sampler) handleFix(fix Fix, onSample func(models.LocationSample)) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}

	if s.last != nil {
		if fix.Time.Sub(s.lastAt) < s.minInterval {
			s.mu.Unlock()
			return
		}
		moved := geo.DistanceM(s.last.Latitude, s.last.Longitude, fix.Latitude, fix.Longitude)
		if moved < s.minDistanceM {
			s.mu.Unlock()
			return
		}
	}

	sample := models.LocationSample{
		Latitude:   roundCoord(fix.Latitude),
		Longitude:  roundCoord(fix.Longitude),
		CapturedAt: fix.Time.UnixMilli(),
	}
	// Timestamps never go backwards within a session, even if the
	// source's clock hiccups.
	if s.last != nil && sample.CapturedAt < s.last.CapturedAt {
		sample.CapturedAt = s.last.CapturedAt
	}

	s.last = &sample
	s.lastAt = fix.Time
	s.mu.Unlock()

	onSample(sample)
}

// roundCoord truncates a coordinate to six decimal places.
func roundCoord(v float64) float64 {
	return math.Round(v*coordPrecision) / coordPrecision
}
