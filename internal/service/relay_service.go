package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/internal/metrics"
	"github.com/immxrtalbeast/safewatch/lib/logger/sl"
)

var (
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnsupportedMessage = errors.New("unsupported message type")
)

const roomJoinedText = "Connected to Room"

// Fanout hands an envelope to every relay instance, this one included.
// Each instance then calls Deliver for its local members.
type Fanout interface {
	Publish(ctx context.Context, env domain.Envelope) error
}

type RelayOptions struct {
	Policy     LinkPolicy
	OutboxSize int
	Fanout     Fanout
}

// RelayService groups live connections by principal code and fans events
// out within a group. Membership changes take mu for writing; delivery
// takes it for reading, so a publish sees either the state before or after
// a concurrent join, never a half-applied one.
type RelayService struct {
	directory CodeResolver
	policy    LinkPolicy
	fanout    Fanout
	outbox    int
	log       *slog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	rooms   map[string]*domain.Room
	members map[string]string
}

func NewRelayService(directory CodeResolver, opts RelayOptions, log *slog.Logger) *RelayService {
	if log == nil {
		log = slog.Default()
	}
	return &RelayService{
		directory: directory,
		policy:    opts.Policy,
		fanout:    opts.Fanout,
		outbox:    opts.OutboxSize,
		log:       log,
		now:       time.Now,
		rooms:     make(map[string]*domain.Room),
		members:   make(map[string]string),
	}
}

// Connect registers a new live connection for identity. The connection
// belongs to no room until it joins one.
func (s *RelayService) Connect(identity domain.Identity) *domain.Connection {
	conn := domain.NewConnection(identity, s.outbox)
	conn.SetStatus(domain.ConnStatusConnected)
	metrics.Connections.Inc()

	s.log.Info("connection opened",
		slog.String("conn_id", conn.ID),
		slog.String("role", string(identity.Role)),
		slog.String("identity_id", identity.ID().String()),
	)
	return conn
}

// Disconnect removes conn from its room and closes its queue. Membership
// is dropped before the queue closes so no delivery can race the close.
func (s *RelayService) Disconnect(conn *domain.Connection) {
	code := s.Leave(conn)

	conn.Close()
	metrics.Connections.Dec()

	s.log.Info("connection closed",
		slog.String("conn_id", conn.ID),
		slog.String("code", code),
	)
}

// Leave drops conn from its room without closing it and returns the code
// it left, or "" if it was in none.
func (s *RelayService) Leave(conn *domain.Connection) string {
	s.mu.Lock()
	code := s.removeLocked(conn.ID)
	s.mu.Unlock()

	if code != "" {
		s.log.Debug("left room", slog.String("conn_id", conn.ID), slog.String("code", code))
	}
	return code
}

// Join moves conn into the room for code, replacing any prior membership,
// and announces the join to every member including conn.
func (s *RelayService) Join(ctx context.Context, conn *domain.Connection, code string) error {
	const op = "service.relay.join"
	log := s.log.With(
		slog.String("op", op),
		slog.String("conn_id", conn.ID),
	)

	code = domain.NormalizeCode(code)
	if _, err := s.directory.ResolveCode(ctx, code); err != nil {
		log.Info("join ignored", slog.String("code", code), sl.Err(err))
		return err
	}
	if err := s.policy.CanJoin(conn.Identity, code); err != nil {
		log.Warn("join rejected", slog.String("code", code), sl.Err(err))
		return err
	}

	s.mu.Lock()
	previous := s.removeLocked(conn.ID)
	room, ok := s.rooms[code]
	if !ok {
		room = domain.NewRoom(code)
		s.rooms[code] = room
		metrics.Rooms.Inc()
	}
	room.Add(conn)
	s.members[conn.ID] = code
	size := len(room.Members)
	s.mu.Unlock()

	log.Info("joined room",
		slog.String("code", code),
		slog.String("previous", previous),
		slog.Int("members", size),
	)

	return s.publish(ctx, domain.Envelope{
		Code:    code,
		Message: domain.RoomJoinedMessage(roomJoinedText),
	})
}

// PublishLocation forwards event to every member of its room except the
// sender.
func (s *RelayService) PublishLocation(ctx context.Context, sender *domain.Connection, event domain.PresenceEvent) error {
	event, err := s.prepare(event)
	if err != nil {
		return err
	}
	msg, err := domain.NewMessage(domain.TypeGuardianUpdate, event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	env := domain.Envelope{Code: event.Code, Message: msg}
	if sender != nil {
		env.Exclude = sender.ID
	}
	return s.publish(ctx, env)
}

// PublishAlert forwards event to every member of its room, the sender
// included.
func (s *RelayService) PublishAlert(ctx context.Context, event domain.PresenceEvent) error {
	if event.Status == "" {
		event.Status = domain.StatusSosActive
	}
	event, err := s.prepare(event)
	if err != nil {
		return err
	}
	msg, err := domain.NewMessage(domain.TypeSosAlert, event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	s.log.Warn("sos alert", slog.String("code", event.Code))
	return s.publish(ctx, domain.Envelope{Code: event.Code, Message: msg})
}

// Handle dispatches one inbound frame from conn.
func (s *RelayService) Handle(ctx context.Context, conn *domain.Connection, msg domain.Message) error {
	conn.Touch()

	switch msg.Type {
	case domain.TypeJoinRoom:
		metrics.Events.WithLabelValues(string(msg.Type)).Inc()
		var join domain.JoinRoom
		if err := msg.Decode(&join); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return s.Join(ctx, conn, join.Code)
	case domain.TypeLocationUpdate, domain.TypeSosTrigger:
		metrics.Events.WithLabelValues(string(msg.Type)).Inc()
		var event domain.PresenceEvent
		if err := msg.Decode(&event); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		event.Code = domain.NormalizeCode(event.Code)
		if err := s.policy.CanPublish(conn.Identity, event.Code); err != nil {
			return err
		}
		if msg.Type == domain.TypeSosTrigger {
			return s.PublishAlert(ctx, event)
		}
		return s.PublishLocation(ctx, conn, event)
	default:
		metrics.Events.WithLabelValues("unsupported").Inc()
		return fmt.Errorf("%w: %q", ErrUnsupportedMessage, msg.Type)
	}
}

// Deliver enqueues env.Message on every local member of env.Code except
// env.Exclude and returns how many members received it. An unknown room
// is a no-op.
func (s *RelayService) Deliver(env domain.Envelope) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[env.Code]
	if !ok {
		return 0
	}

	delivered := 0
	for id, conn := range room.Members {
		if id == env.Exclude {
			continue
		}
		if !conn.Enqueue(env.Message) {
			metrics.Dropped.Inc()
			s.log.Debug("dropping relay event",
				slog.String("conn_id", id),
				slog.String("type", string(env.Message.Type)),
			)
			continue
		}
		delivered++
	}
	return delivered
}

// RoomSize returns the number of local members in the room for code.
func (s *RelayService) RoomSize(code string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if room, ok := s.rooms[code]; ok {
		return len(room.Members)
	}
	return 0
}

// CodeOf returns the code conn is currently joined to.
func (s *RelayService) CodeOf(conn *domain.Connection) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.members[conn.ID]
	return code, ok
}

func (s *RelayService) publish(ctx context.Context, env domain.Envelope) error {
	if s.fanout == nil {
		s.Deliver(env)
		return nil
	}
	if err := s.fanout.Publish(ctx, env); err != nil {
		s.log.Error("fanout publish failed", slog.String("code", env.Code), sl.Err(err))
		return err
	}
	return nil
}

func (s *RelayService) prepare(event domain.PresenceEvent) (domain.PresenceEvent, error) {
	event.Code = domain.NormalizeCode(event.Code)
	if err := event.Validate(); err != nil {
		return event, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if event.Timestamp == 0 {
		event.Timestamp = s.now().UnixMilli()
	}
	return event, nil
}

// removeLocked drops connID from its room, deleting the room once empty,
// and returns the code it was in. Caller holds mu.
func (s *RelayService) removeLocked(connID string) string {
	code, ok := s.members[connID]
	if !ok {
		return ""
	}
	delete(s.members, connID)

	if room, ok := s.rooms[code]; ok {
		room.Remove(connID)
		if room.Empty() {
			delete(s.rooms, code)
			metrics.Rooms.Dec()
		}
	}
	return code
}
