package escalation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/immxrtalbeast/safewatch/internal/clock"
	"github.com/immxrtalbeast/safewatch/internal/device/api"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)

type fixedLocator struct {
	point domain.Point
	err   error
	block bool
}

func (l fixedLocator) Locate(ctx context.Context) (domain.Point, error) {
	if l.block {
		<-ctx.Done()
		return domain.Point{}, ctx.Err()
	}
	return l.point, l.err
}

type mockAlerts struct {
	mock.Mock
}

func (m *mockAlerts) Alert(ctx context.Context, req api.AlertRequest) (*api.AlertResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*api.AlertResult)
	return result, args.Error(1)
}

type launched struct {
	intent Intent
	at     time.Time
}

type recordingLauncher struct {
	clock clock.Clock
	fail  map[Step]error

	mu  sync.Mutex
	log []launched
}

func (l *recordingLauncher) Launch(_ context.Context, intent Intent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log = append(l.log, launched{intent: intent, at: l.clock.Now()})
	return l.fail[intent.Channel]
}

func (l *recordingLauncher) launched() []launched {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]launched(nil), l.log...)
}

func (l *recordingLauncher) find(step Step) (launched, bool) {
	for _, entry := range l.launched() {
		if entry.intent.Channel == step {
			return entry, true
		}
	}
	return launched{}, false
}

type recordingReporter struct {
	mu      sync.Mutex
	changes []StepStatus
	toasts  []string
}

func (r *recordingReporter) StepChanged(status StepStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, status)
}

func (r *recordingReporter) Toast(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, message)
}

func (r *recordingReporter) toastList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.toasts...)
}

func (r *recordingReporter) countdowns(step Step) []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []time.Duration
	for _, c := range r.changes {
		if c.Step == step && c.State == StatePending {
			out = append(out, c.Remaining)
		}
	}
	return out
}

type triggerRecorder struct {
	mu     sync.Mutex
	points []domain.Point
}

func (t *triggerRecorder) EmitAlert(point domain.Point) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.points = append(t.points, point)
}

type harness struct {
	clock    *clock.Fake
	alerts   *mockAlerts
	launcher *recordingLauncher
	reporter *recordingReporter
	trigger  *triggerRecorder
	seq      *Sequencer
}

func newHarness(t *testing.T, contact string, locator Locator) *harness {
	t.Helper()
	fake := clock.NewFake(t0)
	h := &harness{
		clock:    fake,
		alerts:   new(mockAlerts),
		launcher: &recordingLauncher{clock: fake, fail: map[Step]error{}},
		reporter: &recordingReporter{},
		trigger:  &triggerRecorder{},
	}
	h.seq = New(Config{
		Code:          "AB12CD",
		Contact:       contact,
		LocateTimeout: 50 * time.Millisecond,
	}, Deps{
		Clock:    fake,
		Locator:  locator,
		Alerts:   h.alerts,
		Trigger:  h.trigger,
		Launcher: h.launcher,
		Reporter: h.reporter,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h
}

func (h *harness) advanceTo(t *testing.T, offset time.Duration) {
	t.Helper()
	for h.clock.Now().Before(t0.Add(offset)) {
		h.clock.Advance(time.Second)
	}
}

func (h *harness) waitState(t *testing.T, run *Run, step Step, state State) StepStatus {
	t.Helper()
	var last StepStatus
	require.Eventually(t, func() bool {
		last = run.Status(step)
		return last.State == state
	}, 2*time.Second, 5*time.Millisecond, "step %s never reached %s", step, state)
	return last
}

var here = domain.Point{Lat: 12.9716, Lng: 77.5946}

func TestSequencer_FullRunTiming(t *testing.T) {
	h := newHarness(t, "9876543210", fixedLocator{point: here})
	h.alerts.On("Alert", mock.Anything, api.AlertRequest{
		Code: "AB12CD", Lat: here.Lat, Lng: here.Lng, Contact: "9876543210",
	}).Return(&api.AlertResult{Success: true, Method: "SMS"}, nil).Once()

	run, err := h.seq.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, t0, run.StartedAt())

	live := h.waitState(t, run, StepLiveAlert, StateSent)
	assert.Equal(t, t0, live.FiredAt)

	direct := run.Status(StepDirectMessage)
	assert.Equal(t, StateSent, direct.State)
	assert.Equal(t, t0, direct.FiredAt)

	assert.Equal(t, StatePending, run.Status(StepMessagingApp).State)
	assert.Equal(t, 15*time.Second, run.Status(StepMessagingApp).Remaining)

	h.advanceTo(t, 14*time.Second)
	assert.Equal(t, StatePending, run.Status(StepMessagingApp).State)

	h.advanceTo(t, 15*time.Second)
	wa := h.waitState(t, run, StepMessagingApp, StateSent)
	assert.Equal(t, t0.Add(15*time.Second), wa.FiredAt)

	h.advanceTo(t, 44*time.Second)
	assert.Equal(t, StatePending, run.Status(StepCall).State)

	h.advanceTo(t, 45*time.Second)
	call := h.waitState(t, run, StepCall, StateSent)
	assert.Equal(t, t0.Add(45*time.Second), call.FiredAt)

	select {
	case <-run.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
	assert.Nil(t, h.seq.Current())

	sms, ok := h.launcher.find(StepDirectMessage)
	require.True(t, ok)
	assert.Equal(t, t0, sms.at)
	require.NotEmpty(t, h.reporter.countdowns(StepCall))
	for step, limit := range map[Step]time.Duration{StepMessagingApp: 15 * time.Second, StepCall: 45 * time.Second} {
		for _, remaining := range h.reporter.countdowns(step) {
			assert.True(t, remaining > 0 && remaining <= limit, "%s: %s", step, remaining)
		}
	}
	h.trigger.mu.Lock()
	assert.Len(t, h.trigger.points, 1)
	h.trigger.mu.Unlock()
	assert.Empty(t, h.reporter.toastList())
	h.alerts.AssertExpectations(t)
}

func TestSequencer_IntentURIs(t *testing.T) {
	h := newHarness(t, "9876543210", fixedLocator{point: domain.Point{Lat: 10, Lng: 20}})
	h.alerts.On("Alert", mock.Anything, mock.Anything).Return(&api.AlertResult{Success: true}, nil)

	run, err := h.seq.Start(context.Background())
	require.NoError(t, err)
	h.advanceTo(t, 45*time.Second)
	h.waitState(t, run, StepCall, StateSent)

	want := "SOS! I need help. My location: https://maps.google.com/?q=10,20"

	sms, _ := h.launcher.find(StepDirectMessage)
	require.True(t, strings.HasPrefix(sms.intent.URI, "sms:9876543210?body="))
	body, err := url.PathUnescape(strings.TrimPrefix(sms.intent.URI, "sms:9876543210?body="))
	require.NoError(t, err)
	assert.Equal(t, want, body)
	assert.NotContains(t, sms.intent.URI, "+")

	wa, _ := h.launcher.find(StepMessagingApp)
	assert.True(t, strings.HasPrefix(wa.intent.URI, "https://wa.me/+919876543210?text="), wa.intent.URI)

	call, _ := h.launcher.find(StepCall)
	assert.Equal(t, "tel:9876543210", call.intent.URI)
}

func TestSequencer_InternationalContactUnchanged(t *testing.T) {
	intent := MessagingAppIntent("+447911123456", "+91", "hi")
	assert.Equal(t, "https://wa.me/+447911123456?text=hi", intent.URI)

	intent = MessagingAppIntent("9876543210", "+91", "hi")
	assert.Equal(t, "https://wa.me/+919876543210?text=hi", intent.URI)
}

func TestRun_CountdownSkipsStepsDueNow(t *testing.T) {
	h := newHarness(t, "9876543210", fixedLocator{point: domain.Point{Lat: 10, Lng: 20}})
	run := h.seq.newRun(domain.Point{Lat: 10, Lng: 20})

	h.clock.Advance(15 * time.Second)
	run.countdown()

	assert.Empty(t, h.reporter.countdowns(StepMessagingApp))
	assert.Equal(t, []time.Duration{30 * time.Second}, h.reporter.countdowns(StepCall))
}

func TestSequencer_CancelBeforeMessagingApp(t *testing.T) {
	h := newHarness(t, "9876543210", fixedLocator{point: here})
	h.alerts.On("Alert", mock.Anything, mock.Anything).Return(&api.AlertResult{Success: true}, nil)

	run, err := h.seq.Start(context.Background())
	require.NoError(t, err)
	h.waitState(t, run, StepLiveAlert, StateSent)

	h.advanceTo(t, 10*time.Second)
	h.seq.Cancel()

	select {
	case <-run.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not stop the driver")
	}

	h.advanceTo(t, 60*time.Second)

	assert.Equal(t, StateSent, run.Status(StepLiveAlert).State)
	assert.Equal(t, StateSent, run.Status(StepDirectMessage).State)
	assert.Equal(t, StatePending, run.Status(StepMessagingApp).State)
	assert.Equal(t, StatePending, run.Status(StepCall).State)

	_, fired := h.launcher.find(StepMessagingApp)
	assert.False(t, fired)
	_, fired = h.launcher.find(StepCall)
	assert.False(t, fired)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestSequencer_SingleFlight(t *testing.T) {
	h := newHarness(t, "9876543210", fixedLocator{point: here})
	h.alerts.On("Alert", mock.Anything, mock.Anything).Return(&api.AlertResult{Success: true}, nil)

	run, err := h.seq.Start(context.Background())
	require.NoError(t, err)

	_, err = h.seq.Start(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	run.Cancel()
	<-run.Done()

	again, err := h.seq.Start(context.Background())
	require.NoError(t, err)
	again.Cancel()
	<-again.Done()
}

func TestSequencer_LocationUnavailable(t *testing.T) {
	for name, locator := range map[string]Locator{
		"denied":  fixedLocator{err: errors.New("permission denied")},
		"timeout": fixedLocator{block: true},
		"invalid": fixedLocator{point: domain.Point{Lat: 200, Lng: 0}},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, "9876543210", locator)

			run, err := h.seq.Start(context.Background())
			assert.Nil(t, run)
			assert.ErrorIs(t, err, ErrLocationUnavailable)
			assert.Equal(t, []string{toastLocationMissing}, h.reporter.toastList())
			assert.Empty(t, h.launcher.launched())
			assert.Nil(t, h.seq.Current())
			h.alerts.AssertNotCalled(t, "Alert", mock.Anything, mock.Anything)
		})
	}
}

func TestSequencer_StepFailuresAreIndependent(t *testing.T) {
	h := newHarness(t, "9876543210", fixedLocator{point: here})
	h.alerts.On("Alert", mock.Anything, mock.Anything).Return(nil, errors.New("network down"))
	h.launcher.fail[StepDirectMessage] = errors.New("no sms app")

	run, err := h.seq.Start(context.Background())
	require.NoError(t, err)

	live := h.waitState(t, run, StepLiveAlert, StateFailed)
	assert.ErrorIs(t, live.Err, ErrChannelDispatchFailed)

	direct := run.Status(StepDirectMessage)
	assert.Equal(t, StateFailed, direct.State)
	assert.ErrorIs(t, direct.Err, ErrChannelDispatchFailed)

	h.advanceTo(t, 45*time.Second)
	h.waitState(t, run, StepMessagingApp, StateSent)
	h.waitState(t, run, StepCall, StateSent)

	assert.Equal(t, []string{toastAlertFailed}, h.reporter.toastList())
}

func TestSequencer_DegradedServerAlertStillSent(t *testing.T) {
	h := newHarness(t, "9876543210", fixedLocator{point: here})
	h.alerts.On("Alert", mock.Anything, mock.Anything).
		Return(&api.AlertResult{Success: false, Message: "SMS failed but web alert sent"}, nil)

	run, err := h.seq.Start(context.Background())
	require.NoError(t, err)
	h.waitState(t, run, StepLiveAlert, StateSent)
	assert.Empty(t, h.reporter.toastList())
	run.Cancel()
}
