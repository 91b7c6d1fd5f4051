package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/lib/logger/sl"
)

// RedisBroker fans relay envelopes out to every relay instance subscribed
// to the same channel.
type RedisBroker struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisBroker(client *redis.Client, channel string, log *slog.Logger) *RedisBroker {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBroker{client: client, channel: channel, log: log}
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Publish(ctx context.Context, env domain.Envelope) error {
	const op = "broker.redis.publish"

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type Subscription struct {
	pubsub *redis.PubSub
	log    *slog.Logger
}

// Subscribe returns once the subscription is confirmed by the server, so
// nothing published after it returns is missed.
func (b *RedisBroker) Subscribe(ctx context.Context) (*Subscription, error) {
	const op = "broker.redis.subscribe"

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Subscription{
		pubsub: pubsub,
		log:    b.log.With(slog.String("op", op), slog.String("channel", b.channel)),
	}, nil
}

// Run hands every received envelope to deliver until ctx is done or the
// subscription is closed. Undecodable payloads are logged and skipped.
func (s *Subscription) Run(ctx context.Context, deliver func(domain.Envelope)) error {
	defer s.pubsub.Close()

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env domain.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				s.log.Warn("dropping undecodable envelope", sl.Err(err))
				continue
			}
			deliver(env)
		}
	}
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
