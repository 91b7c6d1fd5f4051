// Package escalation runs the timed fallback sequence that follows a
// confirmed SOS: the live alert and a text message at once, a messaging
// app deep link after a delay and finally a phone call.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/immxrtalbeast/safewatch/internal/clock"
	"github.com/immxrtalbeast/safewatch/internal/device/api"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/lib/logger/sl"
)

var (
	ErrLocationUnavailable   = errors.New("location unavailable")
	ErrRunInProgress         = errors.New("an escalation run is already in progress")
	ErrChannelDispatchFailed = errors.New("channel dispatch failed")
)

const (
	toastAlertFailed     = "SOS Alert failed to send"
	toastLocationMissing = "Location access required for SOS"
)

type Locator interface {
	Locate(ctx context.Context) (domain.Point, error)
}

type AlertSender interface {
	Alert(ctx context.Context, req api.AlertRequest) (*api.AlertResult, error)
}

// LiveTrigger pushes an sos_trigger over the device's relay connection.
type LiveTrigger interface {
	EmitAlert(point domain.Point)
}

type Launcher interface {
	Launch(ctx context.Context, intent Intent) error
}

type Reporter interface {
	StepChanged(status StepStatus)
	Toast(message string)
}

type Config struct {
	Code              string
	Contact           string
	CountryPrefix     string
	MessagingAppDelay time.Duration
	CallDelay         time.Duration
	LocateTimeout     time.Duration
	Tick              time.Duration
}

func (c *Config) setDefaults() {
	if c.CountryPrefix == "" {
		c.CountryPrefix = domain.DefaultCountryPrefix
	}
	if c.MessagingAppDelay <= 0 {
		c.MessagingAppDelay = 15 * time.Second
	}
	if c.CallDelay <= 0 {
		c.CallDelay = 45 * time.Second
	}
	if c.LocateTimeout <= 0 {
		c.LocateTimeout = 10 * time.Second
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
}

type Deps struct {
	Clock    clock.Clock
	Locator  Locator
	Alerts   AlertSender
	Trigger  LiveTrigger
	Launcher Launcher
	Reporter Reporter
}

// Sequencer starts escalation runs, at most one at a time.
type Sequencer struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	mu      sync.Mutex
	busy    bool
	current *Run
}

func New(cfg Config, deps Deps, log *slog.Logger) *Sequencer {
	cfg.setDefaults()
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sequencer{
		cfg:  cfg,
		deps: deps,
		log:  log.With(slog.String("component", "escalation")),
	}
}

// Start acquires the device location and begins a run. LiveAlert and
// DirectMessage have fired by the time Start returns.
func (s *Sequencer) Start(ctx context.Context) (*Run, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.busy = true
	s.mu.Unlock()

	locateCtx, cancel := context.WithTimeout(ctx, s.cfg.LocateTimeout)
	point, err := s.deps.Locator.Locate(locateCtx)
	cancel()
	if err == nil && !point.Valid() {
		err = fmt.Errorf("invalid fix %v,%v", point.Lat, point.Lng)
	}
	if err != nil {
		s.release(nil)
		s.log.Error("escalation aborted", sl.Err(err))
		s.report().Toast(toastLocationMissing)
		return nil, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}

	run := s.newRun(point)
	s.mu.Lock()
	s.current = run
	s.mu.Unlock()

	s.log.Warn("escalation started",
		slog.String("code", s.cfg.Code),
		slog.String("location", point.MapsLink()),
	)

	ticker := s.deps.Clock.NewTicker(s.cfg.Tick)
	run.fireDue(ctx)
	go run.drive(ctx, ticker)
	return run, nil
}

// Current returns the run in flight, if any.
func (s *Sequencer) Current() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Cancel cancels the run in flight, if any.
func (s *Sequencer) Cancel() {
	if run := s.Current(); run != nil {
		run.Cancel()
	}
}

func (s *Sequencer) release(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if s.current == run {
		s.current = nil
	}
}

func (s *Sequencer) report() Reporter {
	if s.deps.Reporter == nil {
		return nopReporter{}
	}
	return s.deps.Reporter
}

type nopReporter struct{}

func (nopReporter) StepChanged(StepStatus) {}
func (nopReporter) Toast(string)           {}
