package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/paddleapp/paddle/pkg/events"
)

// Channel is the pub/sub channel the realtime gateway subscribes to.
const Channel = "auction:events"

// RedisBroadcaster implements events.Broadcaster over Redis pub/sub.
// Payloads are JSON with a top-level "type" discriminator.
type RedisBroadcaster struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisBroadcaster creates a broadcaster publishing to Channel.
func NewRedisBroadcaster(client redis.UniversalClient) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: Channel}
}

// Broadcast publishes the event once. Subscriber delivery is fire and
// forget.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, ev events.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
