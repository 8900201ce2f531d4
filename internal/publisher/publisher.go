// Package publisher receives assembled change events, encodes them and hands
// them to a sink.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"changelog_emitter/internal/codec"
	"changelog_emitter/internal/event"
	"changelog_emitter/internal/sink"
	"changelog_emitter/internal/table"
	"changelog_emitter/internal/telemetry"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Sink  sink.Sink
	Codec codec.Codec
	// Filter drops events of unmatched tables. Optional.
	Filter Filter
	// Tables supplies descriptors for codecs that embed a schema. Optional.
	Tables table.Resolver
	// Topic, when set, receives every event (a Redis channel or stream).
	// Otherwise events go to TopicPrefix.db.table.
	Topic       string
	TopicPrefix string
	// EmitTombstones publishes the codec's tombstone after each delete.
	EmitTombstones bool
}

// Publisher implements emitter.Receiver.
type Publisher struct {
	cfg Config
}

func New(cfg Config) (*Publisher, error) {
	if cfg.Sink == nil {
		return nil, errors.New("sink is required")
	}
	if cfg.Codec == nil {
		return nil, errors.New("codec is required")
	}
	if cfg.Topic == "" && cfg.TopicPrefix == "" {
		return nil, errors.New("topic or topic prefix is required")
	}
	return &Publisher{cfg: cfg}, nil
}

// TopicFor returns the topic an event of db.table is published to.
func (p *Publisher) TopicFor(db, tbl string) string {
	if p.cfg.Topic != "" {
		return p.cfg.Topic
	}
	return p.cfg.TopicPrefix + "." + db + "." + tbl
}

// KeyFor is the message key: the same row always maps to the same key.
func KeyFor(ev *event.ChangeEvent) string {
	return fmt.Sprintf("%s.%s:%s", ev.DB, ev.Table, ev.KeyString())
}

func (p *Publisher) ChangeRecord(ctx context.Context, ev *event.ChangeEvent) error {
	if p.cfg.Filter != nil && !p.cfg.Filter.Match(ev.DB, ev.Table) {
		telemetry.EventsFilteredTotal.Inc()
		return nil
	}

	var desc *table.Descriptor
	if p.cfg.Tables != nil {
		d, err := p.cfg.Tables.Descriptor(ctx, ev.DB, ev.Table)
		if err != nil {
			log.Warn().Err(err).Str("db", ev.DB).Str("table", ev.Table).Msg("no descriptor for codec schema")
		} else {
			desc = d
		}
	}

	data, err := p.cfg.Codec.Encode(ev, desc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.ID(), err)
	}

	topic := p.TopicFor(ev.DB, ev.Table)
	key := KeyFor(ev)
	if err := p.publish(ctx, topic, key, data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.ID(), err)
	}
	if ev.Op == event.OpDelete && p.cfg.EmitTombstones {
		if err := p.publish(ctx, topic, key, p.cfg.Codec.Tombstone()); err != nil {
			return fmt.Errorf("publish tombstone %s: %w", ev.ID(), err)
		}
	}

	telemetry.EventsEmittedTotal.WithLabelValues(ev.Op.String()).Inc()
	log.Debug().
		Str("topic", topic).
		Str("event_id", ev.ID()).
		Str("position", fmt.Sprintf("%s:%d", ev.Source.File, ev.Source.Pos)).
		Msg("event published")
	return nil
}

func (p *Publisher) publish(ctx context.Context, topic, key string, value []byte) error {
	start := time.Now()
	err := p.cfg.Sink.Publish(ctx, topic, key, value)
	telemetry.PublishSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.PublishErrorsTotal.Inc()
	}
	return err
}

func (p *Publisher) Close() error {
	return p.cfg.Sink.Close()
}
