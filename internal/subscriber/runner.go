package subscriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"changelog_emitter/internal/codec"
	"changelog_emitter/internal/event"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Handler acts on one matched event. raw is the payload as received.
type Handler func(ctx context.Context, raw []byte, ev *event.ChangeEvent) error

// Decode parses a payload in the given format (json or msgpack).
func Decode(raw []byte, format string) (*event.ChangeEvent, error) {
	if format == FormatMsgpack {
		ev, err := codec.DecodeMsgpack(raw)
		if err != nil {
			return nil, fmt.Errorf("msgpack decode: %w", err)
		}
		return ev, nil
	}
	var ev event.ChangeEvent
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&ev); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	return &ev, nil
}

// Dispatcher decodes payloads, filters them and hands matches to a Handler.
type Dispatcher struct {
	cfg     *Config
	filter  *Filter
	handler Handler
}

func NewDispatcher(cfg *Config, handler Handler) (*Dispatcher, error) {
	filter, err := NewFilter(cfg)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{cfg: cfg, filter: filter, handler: handler}, nil
}

// Dispatch reports whether the payload matched. Filtered events are not an
// error.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) (bool, error) {
	ev, err := Decode(raw, d.cfg.Format)
	if err != nil {
		return false, err
	}
	if !d.filter.Matches(ev) {
		return false, nil
	}
	return true, d.handler(ctx, raw, ev)
}

// Run subscribes to the configured Redis channel and dispatches every
// message until ctx is done.
func Run(ctx context.Context, cfg *Config, logger zerolog.Logger, handler Handler) error {
	if strings.TrimSpace(cfg.Name) != "" {
		logger = logger.With().Str("subscriber", cfg.Name).Logger()
	}
	d, err := NewDispatcher(cfg, handler)
	if err != nil {
		return err
	}
	logger.Info().
		Str("redis", cfg.RedisAddr).
		Int("db", cfg.RedisDB).
		Str("channel", cfg.RedisChannel).
		Msg("subscriber start")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	pubsub := client.Subscribe(ctx, cfg.RedisChannel)
	defer pubsub.Close()

	msgs := pubsub.Channel(redis.WithChannelHealthCheckInterval(10 * time.Second))
	for {
		select {
		case <-ctx.Done():
			if err := pubsub.Close(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("pubsub close error")
			}
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("subscription closed")
			}
			if msg == nil || msg.Payload == "" {
				continue
			}
			if _, err := d.Dispatch(ctx, []byte(msg.Payload)); err != nil {
				logger.Error().Err(err).Msg("handler error")
			}
		}
	}
}

// PrintHandler writes every matched payload to w, one per line, prefixed with
// prefix. JSON payloads are re-indented when pretty is set; msgpack payloads
// are printed as JSON.
func PrintHandler(w io.Writer, prefix string, pretty bool) Handler {
	return func(_ context.Context, raw []byte, ev *event.ChangeEvent) error {
		out := raw
		if !json.Valid(raw) {
			b, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			out = b
		}
		if pretty {
			var buf bytes.Buffer
			if err := json.Indent(&buf, out, "", "  "); err == nil {
				out = buf.Bytes()
			}
		}
		_, err := fmt.Fprintf(w, "%s%s\n", prefix, out)
		return err
	}
}
