// Package sink delivers encoded change events to a message transport.
package sink

import (
	"context"
	"fmt"
	"strings"
)

// Sink is a destination for encoded events.
type Sink interface {
	// Publish sends value under key to topic. A nil value is a tombstone.
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

const (
	TypeRedis       = "redis"
	TypeRedisStream = "redis-stream"
	TypeKafka       = "kafka"
	TypeNats        = "nats"
)

// Options selects and configures a sink.
type Options struct {
	Type         string
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	KafkaBrokers []string
	NatsURL      string
}

// New creates the sink named by opts.Type.
func New(opts Options) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Type)) {
	case "", TypeRedis:
		return NewRedisPubSub(opts.RedisAddr, opts.RedisPass, opts.RedisDB), nil
	case TypeRedisStream:
		return NewRedisStream(opts.RedisAddr, opts.RedisPass, opts.RedisDB), nil
	case TypeKafka:
		return NewKafkaSink(DefaultKafkaConfig(opts.KafkaBrokers))
	case TypeNats:
		if opts.NatsURL == "" {
			return nil, fmt.Errorf("nats sink requires NATS_URL")
		}
		return NewNatsSink(opts.NatsURL)
	default:
		return nil, fmt.Errorf("unknown sink type: %s", opts.Type)
	}
}
