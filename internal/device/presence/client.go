// Package presence keeps a device attached to its relay room.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/lib/logger/sl"
)

const (
	StatusSearching = "Searching..."
	StatusConnected = "Connected"
	StatusOffline   = "Offline"

	alertQueueSize = 8
	writeWait      = 10 * time.Second
)

// Presenter renders what the device shows to its user.
type Presenter interface {
	Show(kind domain.MessageType, event domain.PresenceEvent)
	Status(text string)
}

// Notifier raises an urgent, attention-grabbing notification.
type Notifier interface {
	Alert(event domain.PresenceEvent)
}

// CodeSource returns the code to join, or "" while the device is not
// linked to any principal yet.
type CodeSource func(ctx context.Context) (string, error)

type Config struct {
	// URL of the relay socket endpoint, e.g. ws://host:8080/api/ws.
	URL          string
	Token        string
	Role         domain.Role
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Client owns the single relay connection of a device.
type Client struct {
	cfg       Config
	codes     CodeSource
	presenter Presenter
	notifier  Notifier
	dialer    *websocket.Dialer
	log       *slog.Logger

	location chan sample
	alerts   chan domain.PresenceEvent

	mu        sync.RWMutex
	code      string
	connected bool
	emitted   uint64
	handled   uint64
	progress  chan struct{}
}

// sample is a queued location event tagged with its emit sequence.
type sample struct {
	seq uint64
	ev  domain.PresenceEvent
}

func New(cfg Config, codes CodeSource, presenter Presenter, notifier Notifier, log *slog.Logger) *Client {
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = 500 * time.Millisecond
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:       cfg,
		codes:     codes,
		presenter: presenter,
		notifier:  notifier,
		dialer:    websocket.DefaultDialer,
		log:       log.With(slog.String("component", "presence")),
		location:  make(chan sample, 1),
		alerts:    make(chan domain.PresenceEvent, alertQueueSize),
		progress:  make(chan struct{}),
	}
}

// EmitLocation queues a location sample. Only the newest unsent sample is
// kept.
func (c *Client) EmitLocation(point domain.Point, status domain.Status) {
	ev := domain.PresenceEvent{
		Lat:       point.Lat,
		Lng:       point.Lng,
		Status:    status,
		Timestamp: time.Now().UnixMilli(),
	}
	c.mu.Lock()
	c.emitted++
	next := sample{seq: c.emitted, ev: ev}
	c.mu.Unlock()
	c.offerLocation(next)
}

// offerLocation puts s into the single slot unless a newer sample is
// already there.
func (c *Client) offerLocation(s sample) {
	for {
		select {
		case c.location <- s:
			return
		default:
		}
		select {
		case queued := <-c.location:
			if queued.seq > s.seq {
				s = queued
			}
		default:
		}
	}
}

// Flush waits until every location sample emitted so far has been
// written to the relay, superseded by a newer one that was, or dropped
// because the device has no room to publish to.
func (c *Client) Flush(ctx context.Context) error {
	c.mu.RLock()
	target := c.emitted
	c.mu.RUnlock()

	for {
		c.mu.RLock()
		handled, progress := c.handled, c.progress
		c.mu.RUnlock()
		if handled >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-progress:
		}
	}
}

func (c *Client) markHandled(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.handled {
		return
	}
	c.handled = seq
	close(c.progress)
	c.progress = make(chan struct{})
}

// EmitAlert queues an sos_trigger. Alerts are sent ahead of location
// samples and are never replaced by them.
func (c *Client) EmitAlert(point domain.Point) {
	ev := domain.PresenceEvent{
		Lat:       point.Lat,
		Lng:       point.Lng,
		Status:    domain.StatusSosActive,
		Timestamp: time.Now().UnixMilli(),
	}
	select {
	case c.alerts <- ev:
	default:
		c.log.Error("alert queue full, dropping sos trigger")
	}
}

func (c *Client) Code() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.code
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Run keeps the connection alive until ctx is done, reconnecting with
// capped exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.ReconnectMin
	for {
		attached, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attached {
			backoff = c.cfg.ReconnectMin
		}
		c.presenter.Status(StatusOffline)
		c.log.Warn("relay connection lost", slog.Duration("retry_in", backoff), sl.Err(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.cfg.ReconnectMax {
			backoff = c.cfg.ReconnectMax
		}
	}
}

// session runs one connection. It reports whether the socket was
// established.
func (c *Client) session(ctx context.Context) (bool, error) {
	endpoint, err := url.Parse(c.cfg.URL)
	if err != nil {
		return false, fmt.Errorf("presence: bad relay url: %w", err)
	}
	q := endpoint.Query()
	q.Set("token", c.cfg.Token)
	endpoint.RawQuery = q.Encode()

	ws, _, err := c.dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return false, fmt.Errorf("presence: dial: %w", err)
	}
	defer ws.Close()

	code, err := c.codes(ctx)
	if err != nil {
		return true, fmt.Errorf("presence: resolve code: %w", err)
	}
	c.setState(code, true)
	defer c.setState(code, false)

	if code == "" {
		c.presenter.Status(StatusSearching)
	} else if err := c.write(ws, domain.JoinRoomMessage(code)); err != nil {
		return true, err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readLoop(ws)
		cancel()
	}()

	err = c.writeLoop(sessionCtx, ws, code)
	_ = ws.Close()
	if rerr := <-readErr; err == nil || errors.Is(err, context.Canceled) {
		err = rerr
	}
	return true, err
}

func (c *Client) writeLoop(ctx context.Context, ws *websocket.Conn, code string) error {
	for {
		// alerts first
		select {
		case ev := <-c.alerts:
			if err := c.send(ws, domain.TypeSosTrigger, code, ev); err != nil {
				return err
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.alerts:
			if err := c.send(ws, domain.TypeSosTrigger, code, ev); err != nil {
				return err
			}
		case s := <-c.location:
			if err := c.send(ws, domain.TypeLocationUpdate, code, s.ev); err != nil {
				c.offerLocation(s)
				return err
			}
			c.markHandled(s.seq)
		}
	}
}

func (c *Client) send(ws *websocket.Conn, t domain.MessageType, code string, ev domain.PresenceEvent) error {
	if code == "" {
		c.log.Warn("not linked to a room, dropping event", slog.String("type", string(t)))
		return nil
	}
	ev.Code = code
	msg, err := domain.NewMessage(t, ev)
	if err != nil {
		return err
	}
	if err := c.write(ws, msg); err != nil {
		if t == domain.TypeSosTrigger {
			c.requeueAlert(ev)
		}
		return err
	}
	return nil
}

func (c *Client) requeueAlert(ev domain.PresenceEvent) {
	select {
	case c.alerts <- ev:
	default:
	}
}

func (c *Client) write(ws *websocket.Conn, msg domain.Message) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("presence: write %s: %w", msg.Type, err)
	}
	return nil
}

func (c *Client) readLoop(ws *websocket.Conn) error {
	for {
		var msg domain.Message
		if err := ws.ReadJSON(&msg); err != nil {
			return fmt.Errorf("presence: read: %w", err)
		}

		switch msg.Type {
		case domain.TypeRoomJoined:
			var joined domain.RoomJoined
			_ = msg.Decode(&joined)
			c.log.Info("room joined", slog.String("message", joined.Message))
			c.presenter.Status(StatusConnected)
		case domain.TypeGuardianUpdate, domain.TypeSosAlert:
			var ev domain.PresenceEvent
			if err := msg.Decode(&ev); err != nil {
				c.log.Warn("malformed event", slog.String("type", string(msg.Type)), sl.Err(err))
				continue
			}
			c.presenter.Show(msg.Type, ev)
			if msg.Type == domain.TypeSosAlert && c.cfg.Role == domain.RoleObserver && c.notifier != nil {
				c.notifier.Alert(ev)
			}
		case domain.TypeError:
			var payload domain.ErrorPayload
			_ = msg.Decode(&payload)
			c.log.Warn("relay error", slog.String("message", payload.Message))
		default:
			c.log.Debug("ignoring frame", slog.String("type", string(msg.Type)))
		}
	}
}

func (c *Client) setState(code string, connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code = code
	c.connected = connected
}
