package bus

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"sentinel/internal/events"
)

// RedisTransport is the FallbackTransport attempted when Kafka exhausts its
// own retry budget. Each event_type is published to a Redis Pub/Sub channel
// named after the topic.
type RedisTransport struct {
	client *redis.Client
}

// NewRedisTransport connects to addr and pings to validate reachability.
func NewRedisTransport(addr string) (*RedisTransport, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("bus: redis ping failed: %w", err)
	}
	return &RedisTransport{client: client}, nil
}

func (t *RedisTransport) Publish(ctx context.Context, topic events.Topic, payloadJSON []byte) error {
	return t.client.Publish(ctx, string(topic), payloadJSON).Err()
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}
