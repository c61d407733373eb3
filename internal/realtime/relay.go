package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"sparkclean/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const relayBuffer = 1024

// RedisRelay shares changes between API instances over a redis pub/sub
// channel. Local changes are published; remote ones are injected into the
// local hub. Each hub ignores its own echoes by origin.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	out     chan models.Change
	logger  *zerolog.Logger
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger *zerolog.Logger) *RedisRelay {
	l := logger.With().Str("component", "realtime_relay").Logger()
	return &RedisRelay{
		client:  client,
		channel: channel,
		hub:     hub,
		out:     make(chan models.Change, relayBuffer),
		logger:  &l,
	}
}

// Start subscribes to the channel and begins relaying until ctx is done.
func (r *RedisRelay) Start(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	r.hub.OnPublish(func(ch models.Change) {
		select {
		case r.out <- ch:
		default:
			r.logger.Warn().Str("table", ch.Table).Msg("relay buffer full, change not shared")
		}
	})

	go r.publishLoop(ctx)
	go r.receiveLoop(ctx, pubsub)
	return nil
}

func (r *RedisRelay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch := <-r.out:
			data, err := json.Marshal(ch)
			if err != nil {
				r.logger.Error().Err(err).Msg("encode change")
				continue
			}
			if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
				r.logger.Error().Err(err).Str("table", ch.Table).Msg("publish change")
			}
		}
	}
}

func (r *RedisRelay) receiveLoop(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var ch models.Change
			if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
				r.logger.Warn().Err(err).Msg("discarding malformed change")
				continue
			}
			r.hub.Inject(ch)
		}
	}
}
