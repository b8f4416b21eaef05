// Package notify announces alerts on the engine's publish/subscribe
// channel.
//
// The engine only depends on the narrow Publisher contract; the Redis
// Streams implementation ships built in. Publish failures are non-fatal to
// the producing session: callers log and continue.
package notify

import (
	"context"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// Publisher announces one alert body on a topic. Key identifies the alert,
// tags carry routing hints (the skill name).
type Publisher interface {
	Publish(ctx context.Context, topic, key string, tags []string, body []byte) error
	Close() error
}

// RedisPublisher appends alert records to a Redis stream, one stream per
// topic, with key/tags/body as entry fields so consumers can filter
// without decoding the body.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(ctx context.Context, addr, password string, db int) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisPublisher{client: client}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, topic, key string, tags []string, body []byte) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			"key":  key,
			"tags": strings.Join(tags, ","),
			"body": body,
		},
	}).Err()
	if err != nil {
		return err
	}

	log.Debug().
		Str("topic", topic).
		Str("key", key).
		Strs("tags", tags).
		Msg("alert published")
	return nil
}

func (p *RedisPublisher) Close() error { return p.client.Close() }
