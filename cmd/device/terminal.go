package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/immxrtalbeast/safewatch/internal/device/escalation"
	"github.com/immxrtalbeast/safewatch/internal/domain"
)

// terminal renders presence and escalation output for a human at a
// console. Launching an intent prints its URI.
type terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out}
}

func (t *terminal) printf(c *color.Color, format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c == nil {
		fmt.Fprintf(t.out, format+"\n", args...)
		return
	}
	c.Fprintf(t.out, format+"\n", args...)
}

func (t *terminal) Status(text string) {
	t.printf(color.New(color.FgCyan), "[%s]", text)
}

func (t *terminal) Show(kind domain.MessageType, ev domain.PresenceEvent) {
	c := color.New(color.FgGreen)
	if ev.Status == domain.StatusSosActive {
		c = color.New(color.FgRed, color.Bold)
	}
	at := ""
	if ev.Timestamp > 0 {
		at = time.UnixMilli(ev.Timestamp).Format(time.TimeOnly) + " "
	}
	t.printf(c, "%s%s %s %s", at, kind, ev.Status, ev.Point().MapsLink())
}

func (t *terminal) Alert(ev domain.PresenceEvent) {
	t.printf(color.New(color.FgHiRed, color.Bold, color.BlinkSlow), "\aURGENT: SOS ALERT FROM %s! %s", ev.Code, ev.Point().MapsLink())
}

func (t *terminal) Launch(_ context.Context, intent escalation.Intent) error {
	t.printf(color.New(color.FgYellow), "open %s: %s", intent.Channel, intent.URI)
	return nil
}

func (t *terminal) StepChanged(st escalation.StepStatus) {
	switch st.State {
	case escalation.StatePending:
		if st.Remaining > 0 && st.Remaining%(5*time.Second) == 0 {
			t.printf(nil, "%-15s pending (%ds)", st.Step, int(st.Remaining.Seconds()))
		}
	case escalation.StateFailed:
		t.printf(color.New(color.FgRed), "%-15s failed: %v", st.Step, st.Err)
	default:
		t.printf(nil, "%-15s %s", st.Step, st.State)
	}
}

func (t *terminal) Toast(message string) {
	t.printf(color.New(color.FgHiWhite, color.BgRed), " %s ", message)
}
