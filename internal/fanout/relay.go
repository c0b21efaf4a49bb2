package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisChannel is the pub/sub channel instances exchange events on.
const RedisChannel = "overlays:fanout"

type relayMessage struct {
	Origin  string `json:"origin"`
	Channel string `json:"channel,omitempty"`
	Kind    Kind   `json:"kind"`
	Payload string `json:"payload"`
}

// RedisRelay bridges the local hub with other instances through Redis
// pub/sub, so an update saved on one instance reaches overlays connected to
// another.
type RedisRelay struct {
	hub    *Hub
	rdb    *redis.Client
	origin string
	logger *slog.Logger
	ready  chan struct{}
}

func NewRedisRelay(hub *Hub, rdb *redis.Client, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{
		hub:    hub,
		rdb:    rdb,
		origin: uuid.NewString(),
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Publish delivers e locally, then forwards it to the other instances. The
// count is the number of local subscribers reached.
func (r *RedisRelay) Publish(e Event) (int, error) {
	n, err := r.hub.Publish(e)
	if err != nil {
		return n, err
	}

	data, err := json.Marshal(relayMessage{
		Origin:  r.origin,
		Channel: e.To.Channel,
		Kind:    e.Kind,
		Payload: e.Payload,
	})
	if err != nil {
		return n, fmt.Errorf("encoding relay message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.rdb.Publish(ctx, RedisChannel, data).Err(); err != nil {
		return n, fmt.Errorf("publishing to redis: %w", err)
	}
	return n, nil
}

// Ready is closed once Run's subscription is confirmed by Redis.
func (r *RedisRelay) Ready() <-chan struct{} { return r.ready }

// Run republishes events from other instances into the local hub until ctx
// is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.rdb.Subscribe(ctx, RedisChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", RedisChannel, err)
	}
	close(r.ready)

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("redis subscription closed")
			}
			r.deliver(msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(raw string) {
	var m relayMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		r.logger.Warn("dropping malformed relay message", "error", err)
		return
	}
	if m.Origin == r.origin {
		return
	}
	if _, err := r.hub.Publish(Event{To: ToChannel(m.Channel), Kind: m.Kind, Payload: m.Payload}); err != nil {
		r.logger.Warn("relaying event", "kind", m.Kind, "error", err)
	}
}
