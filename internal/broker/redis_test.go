package broker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/internal/repository"
	"github.com/immxrtalbeast/safewatch/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupBroker(t *testing.T) (*miniredis.Miniredis, *RedisBroker) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisBroker(client, "safewatch:test", discardLogger())
}

func TestRedisBroker_PublishSubscribe(t *testing.T) {
	_, broker := setupBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, broker.Ping(ctx))

	sub, err := broker.Subscribe(ctx)
	require.NoError(t, err)

	received := make(chan domain.Envelope, 1)
	go func() { _ = sub.Run(ctx, func(env domain.Envelope) { received <- env }) }()

	sent := domain.Envelope{Code: "AB12CD", Exclude: "conn-1", Message: domain.RoomJoinedMessage("hi")}
	require.NoError(t, broker.Publish(ctx, sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.Code, got.Code)
		assert.Equal(t, sent.Exclude, got.Exclude)
		assert.Equal(t, sent.Message.Type, got.Message.Type)
		assert.JSONEq(t, string(sent.Message.Payload), string(got.Message.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("envelope not received")
	}
}

func TestRedisBroker_SkipsGarbage(t *testing.T) {
	mr, broker := setupBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := broker.Subscribe(ctx)
	require.NoError(t, err)

	received := make(chan domain.Envelope, 2)
	go func() { _ = sub.Run(ctx, func(env domain.Envelope) { received <- env }) }()

	mr.Publish("safewatch:test", "{not json")
	require.NoError(t, broker.Publish(ctx, domain.Envelope{Code: "AB12CD", Message: domain.ErrorMessage("x")}))

	select {
	case got := <-received:
		assert.Equal(t, "AB12CD", got.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("envelope not received")
	}
}

func TestRedisBroker_CrossInstanceDelivery(t *testing.T) {
	_, broker := setupBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	principals := repository.NewInMemoryPrincipalRepository()
	observers := repository.NewInMemoryObserverRepository()
	principal := domain.NewPrincipal("Asha", "9876543210")
	principal.Code = "AB12CD"
	require.NoError(t, principals.Create(ctx, principal))

	directory := service.NewDirectoryService(principals, observers, discardLogger())
	observer, err := directory.LinkObserver(ctx, "Ravi", "AB12CD")
	require.NoError(t, err)

	opts := service.RelayOptions{OutboxSize: 8, Fanout: broker}
	relayA := service.NewRelayService(directory, opts, discardLogger())
	relayB := service.NewRelayService(directory, opts, discardLogger())

	for _, relay := range []*service.RelayService{relayA, relayB} {
		sub, err := broker.Subscribe(ctx)
		require.NoError(t, err)
		deliver := relay.Deliver
		go func() { _ = sub.Run(ctx, func(env domain.Envelope) { deliver(env) }) }()
	}

	sender := relayA.Connect(domain.PrincipalIdentity(principal))
	watcher := relayB.Connect(domain.ObserverIdentity(observer))
	require.NoError(t, relayA.Join(ctx, sender, "AB12CD"))
	require.NoError(t, relayB.Join(ctx, watcher, "AB12CD"))

	next := func(conn *domain.Connection, want domain.MessageType) domain.Message {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case msg := <-conn.Events:
				if msg.Type == want {
					return msg
				}
			case <-deadline:
				t.Fatalf("no %s received", want)
			}
		}
	}
	next(watcher, domain.TypeRoomJoined)

	require.NoError(t, relayA.PublishLocation(ctx, sender, domain.PresenceEvent{
		Code: "AB12CD", Lat: 12.97, Lng: 77.59, Status: domain.StatusSafe,
	}))

	var ev domain.PresenceEvent
	require.NoError(t, next(watcher, domain.TypeGuardianUpdate).Decode(&ev))
	assert.Equal(t, 12.97, ev.Lat)
	assert.Equal(t, domain.StatusSafe, ev.Status)
}
