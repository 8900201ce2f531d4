package sink

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Journal records every successfully published message to a file, one JSON
// line per message, in front of another Sink.
type Journal struct {
	next Sink
	mu   sync.Mutex
	out  io.WriteCloser
	log  zerolog.Logger
}

func NewJournal(next Sink, path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return newJournal(next, f), nil
}

func newJournal(next Sink, out io.WriteCloser) *Journal {
	return &Journal{
		next: next,
		out:  out,
		log:  zerolog.New(out).With().Timestamp().Logger(),
	}
}

func (j *Journal) Publish(ctx context.Context, topic, key string, value []byte) error {
	if err := j.next.Publish(ctx, topic, key, value); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.log.Log().
		Str("topic", topic).
		Str("event_id", key).
		Bool("tombstone", value == nil).
		Str("payload", string(value)).
		Send()
	return nil
}

func (j *Journal) Close() error {
	err := j.next.Close()
	j.mu.Lock()
	defer j.mu.Unlock()
	if cerr := j.out.Close(); err == nil {
		err = cerr
	}
	return err
}
