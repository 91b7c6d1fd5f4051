package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/immxrtalbeast/safewatch/internal/device/escalation"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/api/ws", relayURL("http://localhost:8080"))
	assert.Equal(t, "wss://relay.example.com/api/ws", relayURL("https://relay.example.com/"))
}

func TestStaticLocator(t *testing.T) {
	p, err := staticLocator{point: domain.Point{Lat: 10, Lng: 20}}.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10.0, p.Lat)

	_, err = staticLocator{point: domain.Point{Lat: 95}}.Locate(context.Background())
	assert.Error(t, err)
}

func TestTerminalOutput(t *testing.T) {
	var buf bytes.Buffer
	term := newTerminal(&buf)

	require.NoError(t, term.Launch(context.Background(), escalation.CallIntent("9876543210")))
	term.StepChanged(escalation.StepStatus{Step: escalation.StepMessagingApp, State: escalation.StatePending, Remaining: 10 * time.Second})
	term.StepChanged(escalation.StepStatus{Step: escalation.StepMessagingApp, State: escalation.StatePending, Remaining: 9 * time.Second})
	term.Alert(domain.PresenceEvent{Code: "AB12CD", Lat: 1, Lng: 2, Status: domain.StatusSosActive})

	out := buf.String()
	assert.Contains(t, out, "tel:9876543210")
	assert.Contains(t, out, "pending (10s)")
	assert.NotContains(t, out, "pending (9s)")
	assert.Contains(t, out, "URGENT: SOS ALERT FROM AB12CD")
}
