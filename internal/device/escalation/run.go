package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/immxrtalbeast/safewatch/internal/clock"
	"github.com/immxrtalbeast/safewatch/internal/device/api"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/lib/logger/sl"
)

type scheduled struct {
	status StepStatus
	fire   func(ctx context.Context) error
	async  bool
}

// Run is one escalation. A single driver goroutine fires its steps as
// they fall due.
type Run struct {
	seq     *Sequencer
	point   domain.Point
	started time.Time

	mu        sync.Mutex
	steps     []*scheduled
	cancelled bool
	cancel    chan struct{}
	done      chan struct{}
	wake      chan struct{}
}

func (s *Sequencer) newRun(point domain.Point) *Run {
	now := s.deps.Clock.Now()
	r := &Run{
		seq:     s,
		point:   point,
		started: now,
		cancel:  make(chan struct{}),
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}

	body := Message(point)
	contact := s.cfg.Contact
	launch := func(intent Intent) func(context.Context) error {
		return func(ctx context.Context) error {
			if s.deps.Launcher == nil {
				return fmt.Errorf("no launcher for %s", intent.Channel)
			}
			return s.deps.Launcher.Launch(ctx, intent)
		}
	}

	r.steps = []*scheduled{
		{status: StepStatus{Step: StepLiveAlert, DueAt: now}, fire: r.liveAlert, async: true},
		{status: StepStatus{Step: StepDirectMessage, DueAt: now}, fire: launch(SMSIntent(contact, body))},
		{status: StepStatus{Step: StepMessagingApp, DueAt: now.Add(s.cfg.MessagingAppDelay)}, fire: launch(MessagingAppIntent(contact, s.cfg.CountryPrefix, body))},
		{status: StepStatus{Step: StepCall, DueAt: now.Add(s.cfg.CallDelay)}, fire: launch(CallIntent(contact))},
	}
	for _, st := range r.steps {
		st.status.State = StatePending
	}
	return r
}

func (r *Run) StartedAt() time.Time { return r.started }

func (r *Run) Point() domain.Point { return r.point }

// Done is closed once the driver stops, either because every step has
// finished or the run was cancelled.
func (r *Run) Done() <-chan struct{} { return r.done }

// Cancel stops the run. Steps already fired keep their state; the rest
// stay pending forever.
func (r *Run) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return
	}
	r.cancelled = true
	close(r.cancel)
}

func (r *Run) Snapshot() []StepStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.seq.deps.Clock.Now()
	out := make([]StepStatus, 0, len(r.steps))
	for _, st := range r.steps {
		out = append(out, st.withRemaining(now))
	}
	return out
}

// Status returns the current status of step.
func (r *Run) Status(step Step) StepStatus {
	for _, st := range r.Snapshot() {
		if st.Step == step {
			return st
		}
	}
	return StepStatus{Step: step}
}

func (r *Run) drive(ctx context.Context, ticker *clock.Ticker) {
	defer close(r.done)
	defer r.seq.release(r)
	defer ticker.Stop()

	for {
		if r.finished() {
			r.seq.log.Info("escalation finished")
			return
		}
		select {
		case <-r.cancel:
			r.seq.log.Info("escalation cancelled")
			return
		case <-ctx.Done():
			r.Cancel()
			r.seq.log.Info("escalation abandoned", sl.Err(ctx.Err()))
			return
		case <-ticker.C:
			r.countdown()
			r.fireDue(ctx)
		case <-r.wake:
		}
	}
}

func (r *Run) fireDue(ctx context.Context) {
	now := r.seq.deps.Clock.Now()

	r.mu.Lock()
	if r.cancelled {
		r.mu.Unlock()
		return
	}
	var due []*scheduled
	for _, st := range r.steps {
		if st.status.State == StatePending && !st.status.DueAt.After(now) {
			st.status.State = StateSending
			st.status.FiredAt = now
			due = append(due, st)
		}
	}
	r.mu.Unlock()

	for _, st := range due {
		r.publish(st)
		if st.async {
			// outlives Cancel and the caller's ctx
			go func(st *scheduled) {
				r.complete(st, st.fire(context.WithoutCancel(ctx)))
				select {
				case r.wake <- struct{}{}:
				default:
				}
			}(st)
			continue
		}
		r.complete(st, st.fire(ctx))
	}
}

func (r *Run) complete(st *scheduled, err error) {
	r.mu.Lock()
	if err != nil {
		st.status.State = StateFailed
		st.status.Err = fmt.Errorf("%w: %s: %v", ErrChannelDispatchFailed, st.status.Step, err)
	} else {
		st.status.State = StateSent
	}
	r.mu.Unlock()

	if err != nil {
		r.seq.log.Error("escalation step failed", slog.String("step", string(st.status.Step)), sl.Err(err))
	} else {
		r.seq.log.Info("escalation step sent", slog.String("step", string(st.status.Step)))
	}
	r.publish(st)
}

func (r *Run) countdown() {
	now := r.seq.deps.Clock.Now()
	var pending []StepStatus
	r.mu.Lock()
	for _, st := range r.steps {
		// a step due at this tick fires next and gets no 0s countdown
		if st.status.State == StatePending && st.status.DueAt.After(now) {
			pending = append(pending, st.withRemaining(now))
		}
	}
	r.mu.Unlock()

	for _, status := range pending {
		r.seq.report().StepChanged(status)
	}
}

func (r *Run) publish(st *scheduled) {
	r.mu.Lock()
	status := st.withRemaining(r.seq.deps.Clock.Now())
	r.mu.Unlock()
	r.seq.report().StepChanged(status)
}

func (r *Run) finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.steps {
		if !st.status.State.terminal() {
			return false
		}
	}
	return true
}

// liveAlert pushes the alert over the relay connection and posts it to the
// server. Only a failed request fails the step; a result reporting a
// failed SMS leg still counts as sent.
func (r *Run) liveAlert(ctx context.Context) error {
	cfg := r.seq.cfg
	deps := r.seq.deps

	if deps.Trigger != nil {
		deps.Trigger.EmitAlert(r.point)
	}
	if deps.Alerts == nil {
		r.seq.report().Toast(toastAlertFailed)
		return fmt.Errorf("no alert endpoint configured")
	}

	result, err := deps.Alerts.Alert(ctx, api.AlertRequest{
		Code:    cfg.Code,
		Lat:     r.point.Lat,
		Lng:     r.point.Lng,
		Contact: cfg.Contact,
	})
	if err != nil {
		r.seq.report().Toast(toastAlertFailed)
		return err
	}
	if !result.Success {
		r.seq.log.Warn("server alert degraded", slog.String("message", result.Message))
	}
	return nil
}

func (st *scheduled) withRemaining(now time.Time) StepStatus {
	status := st.status
	if status.State == StatePending && status.DueAt.After(now) {
		status.Remaining = status.DueAt.Sub(now)
	}
	return status
}
