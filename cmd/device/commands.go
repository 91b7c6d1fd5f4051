package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/immxrtalbeast/safewatch/internal/device/api"
	"github.com/immxrtalbeast/safewatch/internal/device/escalation"
	"github.com/immxrtalbeast/safewatch/internal/device/presence"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/spf13/cobra"
)

var errNoToken = errors.New("no session token: pass --token or set SAFEWATCH_TOKEN")

// shareFlushTimeout bounds how long a one-shot share waits for the relay.
const shareFlushTimeout = 15 * time.Second

func runRegister(cmd *cobra.Command, _ []string) error {
	client := api.NewClient(serverURL, "")
	session, err := client.RegisterPrincipal(cmd.Context(), name, contact)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "share code: %s\ntoken: %s\n", session.Identity.Code, session.Token)
	return nil
}

func runLink(cmd *cobra.Command, args []string) error {
	client := api.NewClient(serverURL, "")
	session, err := client.LinkObserver(cmd.Context(), name, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "watching: %s\ntoken: %s\n", session.Identity.WatchedCode, session.Token)
	return nil
}

func runShare(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	client, identity, err := session(ctx)
	if err != nil {
		return err
	}
	if identity.Role != domain.RolePrincipal {
		return fmt.Errorf("share needs a principal session, got %s", identity.Role)
	}

	term := newTerminal(cmd.OutOrStdout())
	ch := newPresence(client, identity, term)
	go func() { _ = ch.Run(ctx) }()

	point := domain.Point{Lat: lat, Lng: lng}
	if !night {
		ch.EmitLocation(point, domain.StatusSafe)
		flushCtx, cancel := context.WithTimeout(ctx, shareFlushTimeout)
		defer cancel()
		if err := ch.Flush(flushCtx); err != nil {
			return fmt.Errorf("location not delivered: %w", err)
		}
		term.Status("Location shared")
		return nil
	}

	term.Status("Night Mode: Continuous Sharing ON")
	ticker := time.NewTicker(shareInterval)
	defer ticker.Stop()
	for {
		ch.EmitLocation(point, domain.StatusNightModeLive)
		select {
		case <-ctx.Done():
			term.Status("Night Mode Off")
			return nil
		case <-ticker.C:
		}
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	client, identity, err := session(ctx)
	if err != nil {
		return err
	}

	term := newTerminal(cmd.OutOrStdout())
	ch := newPresence(client, identity, term)
	err = ch.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runSOS(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	client, identity, err := session(ctx)
	if err != nil {
		return err
	}
	if identity.Role != domain.RolePrincipal {
		return fmt.Errorf("sos needs a principal session, got %s", identity.Role)
	}

	to := contact
	if to == "" {
		to = identity.Contact
	}

	term := newTerminal(cmd.OutOrStdout())
	ch := newPresence(client, identity, term)
	go func() { _ = ch.Run(ctx) }()

	seq := escalation.New(escalation.Config{
		Code:          identity.Code,
		Contact:       to,
		CountryPrefix: countryPrefix,
	}, escalation.Deps{
		Locator:  staticLocator{point: domain.Point{Lat: lat, Lng: lng}},
		Alerts:   client,
		Trigger:  ch,
		Launcher: term,
		Reporter: term,
	}, newLogger())

	run, err := seq.Start(ctx)
	if err != nil {
		return err
	}
	<-run.Done()
	for _, st := range run.Snapshot() {
		term.StepChanged(st)
	}
	return nil
}

func session(ctx context.Context) (*api.Client, *api.Identity, error) {
	if token == "" {
		return nil, nil, errNoToken
	}
	client := api.NewClient(serverURL, token)
	identity, err := client.Me(ctx)
	if err != nil {
		return nil, nil, err
	}
	return client, identity, nil
}

func newPresence(client *api.Client, identity *api.Identity, term *terminal) *presence.Client {
	return presence.New(presence.Config{
		URL:   relayURL(serverURL),
		Token: client.Token(),
		Role:  identity.Role,
	}, client.JoinCode, term, term, newLogger())
}

// relayURL maps the REST base URL onto the relay socket endpoint.
func relayURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/ws"
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

type staticLocator struct {
	point domain.Point
}

func (l staticLocator) Locate(context.Context) (domain.Point, error) {
	if !l.point.Valid() {
		return domain.Point{}, errors.New("no position fix")
	}
	return l.point, nil
}
