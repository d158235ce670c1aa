package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the pub/sub channel shared by every instance using prefix.
func Channel(prefix string) string {
	return prefix + "eventos"
}

// RedisPublisher forwards events to the other API instances.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	origin  string
}

func NewRedisPublisher(client *redis.Client, prefix, origin string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: Channel(prefix),
		origin:  origin,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.Origin == "" {
		ev.Origin = p.origin
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", ev.ID, err)
	}
	return nil
}

// Bridge delivers events published by other instances to local until ctx is done.
// Events carrying origin were already delivered locally and are skipped.
func Bridge(ctx context.Context, client *redis.Client, prefix, origin string, local Notifier, log *zap.Logger) error {
	sub := client.Subscribe(ctx, Channel(prefix))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	log.Info("notification bridge subscribed", zap.String("channel", Channel(prefix)))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			ev, ok := decodeRemote([]byte(msg.Payload), origin)
			if !ok {
				continue
			}
			Emit(ctx, local, log, ev)
		}
	}
}

func decodeRemote(payload []byte, origin string) (Event, bool) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, false
	}
	if ev.ID == "" || ev.Origin == origin {
		return Event{}, false
	}
	return ev, true
}
