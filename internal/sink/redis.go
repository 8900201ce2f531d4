package sink

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPubSub publishes each event to a Redis pub/sub channel named by the
// topic. Pub/sub has no tombstones; nil values are skipped.
type RedisPubSub struct {
	r *redis.Client
}

func NewRedisPubSub(addr, pass string, db int) *RedisPubSub {
	return &RedisPubSub{
		r: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: pass,
			DB:       db,
		}),
	}
}

func (p *RedisPubSub) Publish(ctx context.Context, topic, _ string, value []byte) error {
	if value == nil {
		return nil
	}
	return p.r.Publish(ctx, topic, string(value)).Err()
}

func (p *RedisPubSub) Close() error {
	return p.r.Close()
}

// RedisStream appends each event to a Redis stream named by the topic. Nil
// values are skipped.
type RedisStream struct {
	r *redis.Client
}

func NewRedisStream(addr, pass string, db int) *RedisStream {
	return &RedisStream{
		r: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: pass,
			DB:       db,
		}),
	}
}

func (s *RedisStream) Publish(ctx context.Context, topic, key string, value []byte) error {
	if value == nil {
		return nil
	}
	return s.r.XAdd(ctx, streamArgs(topic, key, value, time.Now())).Err()
}

func (s *RedisStream) Close() error {
	return s.r.Close()
}

func streamArgs(topic, key string, value []byte, now time.Time) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{
			"payload":  string(value),
			"event_id": key,
			"ts":       now.Unix(),
		},
	}
}
