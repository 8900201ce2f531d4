// Package codec serializes change events for publication.
package codec

import (
	"fmt"
	"strings"
	"time"

	"changelog_emitter/internal/event"
	"changelog_emitter/internal/table"
)

const (
	FormatNative   = "native"
	FormatDebezium = "debezium"
	FormatMsgpack  = "msgpack"
)

// Codec turns an event into message bytes. desc may be nil when the table
// layout is not known to the caller.
type Codec interface {
	Encode(ev *event.ChangeEvent, desc *table.Descriptor) ([]byte, error)
	// Tombstone is the value published after a delete for log compaction.
	// nil means a null message value.
	Tombstone() []byte
}

// New returns the codec for a format name. loc is used for the human
// readable timestamp of the native and msgpack formats.
func New(format string, loc *time.Location) (Codec, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatNative:
		return &Native{Location: loc}, nil
	case FormatDebezium:
		return NewDebezium(), nil
	case FormatMsgpack:
		return &Msgpack{Location: loc}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

func formatTimestamp(tsMs int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(tsMs).In(loc).Format("2006-01-02 15:04:05")
}
