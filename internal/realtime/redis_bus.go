package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// channelPrefix namespaces bus traffic so one Redis instance can serve
// several deployments.
const channelPrefix = "devtrack:"

// RedisBus is a Publisher that routes events through Redis pub/sub so that
// every server instance, not just the one handling the triggering request,
// fans the event out to its connected clients.
type RedisBus struct {
	client redis.UniversalClient
	log    *zap.Logger
}

// NewRedisBus creates a RedisBus.
func NewRedisBus(client redis.UniversalClient, log *zap.Logger) *RedisBus {
	return &RedisBus{client: client, log: log}
}

// Publish implements Publisher.
func (b *RedisBus) Publish(channel, event string, payload any) error {
	data, err := json.Marshal(Envelope{
		Channel: channel,
		Event:   event,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	return b.client.Publish(context.Background(), channelPrefix+channel, data).Err()
}

// Subscribe consumes bus traffic and feeds it into the hub until ctx is
// canceled. Run it in its own goroutine.
func (b *RedisBus) Subscribe(ctx context.Context, hub *Hub) {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}

			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("malformed bus envelope", zap.Error(err))
				continue
			}

			channel := env.Channel
			if channel == "" {
				channel = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			if err := hub.Publish(channel, env.Event, env.Payload); err != nil {
				b.log.Warn("hub delivery failed", zap.Error(err))
			}
		}
	}
}
