// Package pipeline feeds raw entries through the emitter into a receiver.
//
// Entries of one table always go to the same worker, so per-table log order
// is kept while different tables are processed concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"changelog_emitter/internal/clock"
	"changelog_emitter/internal/emitter"
	"changelog_emitter/internal/offset"
	"changelog_emitter/internal/rawentry"
	"changelog_emitter/internal/table"
	"changelog_emitter/internal/telemetry"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
)

// Policy says what happens to an entry the emitter rejects.
type Policy string

const (
	PolicyFail Policy = "fail"
	PolicySkip Policy = "skip"
)

// ParsePolicy accepts "fail" or "skip"; empty means fail.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFail:
		return PolicyFail, nil
	case PolicySkip:
		return PolicySkip, nil
	}
	return "", fmt.Errorf("unknown unsupported-kind policy %q", s)
}

const queueSize = 256

// Filter selects the tables whose entries are processed.
type Filter interface {
	Match(database, table string) bool
}

// ErrUnresolvedTable matches failures to look up a table descriptor.
var ErrUnresolvedTable = errors.New("table descriptor unavailable")

// UnresolvedTableError wraps the lookup failure for one table.
type UnresolvedTableError struct {
	Table string
	Err   error
}

func (e *UnresolvedTableError) Error() string {
	return fmt.Sprintf("resolve table %s: %v", e.Table, e.Err)
}

func (e *UnresolvedTableError) Unwrap() error {
	return e.Err
}

func (e *UnresolvedTableError) Is(target error) bool {
	return target == ErrUnresolvedTable
}

type Config struct {
	Partition offset.Partition
	Tables    table.Resolver
	Clock     clock.Clock
	Receiver  emitter.Receiver
	// Filter is optional; nil processes every table.
	Filter    Filter
	Policy    Policy
	Workers   int
}

type Pipeline struct {
	cfg Config
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Tables == nil {
		return nil, errors.New("table resolver is required")
	}
	if cfg.Receiver == nil {
		return nil, errors.New("receiver is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyFail
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Pipeline{cfg: cfg}, nil
}

// Process emits one entry and applies the policy to rejected entries.
// Entries of tables the filter excludes are dropped before any lookup.
func (p *Pipeline) Process(ctx context.Context, entry rawentry.Entry) error {
	if p.cfg.Filter != nil && !p.cfg.Filter.Match(entry.Schema, entry.Table) {
		telemetry.EventsFilteredTotal.Inc()
		return nil
	}

	desc, err := p.cfg.Tables.Descriptor(ctx, entry.Schema, entry.Table)
	if err != nil {
		return p.reject(entry, "unresolved_table", &UnresolvedTableError{Table: entry.QualifiedTable(), Err: err})
	}

	err = emitter.FromEntry(p.cfg.Partition, entry, desc, p.cfg.Clock).Emit(ctx, p.cfg.Receiver)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, emitter.ErrUnsupportedKind):
		return p.reject(entry, "unsupported_kind", err)
	case errors.Is(err, emitter.ErrShapeMismatch):
		return p.reject(entry, "shape_mismatch", err)
	default:
		return err
	}
}

func (p *Pipeline) reject(entry rawentry.Entry, reason string, err error) error {
	telemetry.EntriesRejectedTotal.WithLabelValues(reason).Inc()

	if p.cfg.Policy == PolicySkip {
		log.Warn().
			Err(err).
			Str("table", entry.QualifiedTable()).
			Str("kind", entry.Kind.String()).
			Str("position", entry.Position.String()).
			Msg("raw entry skipped")
		return nil
	}
	return fmt.Errorf("%s at %s: %w", entry.QualifiedTable(), entry.Position, err)
}

// Run processes entries from in until it is closed, ctx is done or an entry
// fails. It returns the first failure.
func (p *Pipeline) Run(ctx context.Context, in <-chan rawentry.Entry) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	queues := make([]chan rawentry.Entry, p.cfg.Workers)
	for i := range queues {
		queues[i] = make(chan rawentry.Entry, queueSize)
		wg.Add(1)
		go func(q <-chan rawentry.Entry) {
			defer wg.Done()
			for entry := range q {
				if ctx.Err() != nil {
					continue
				}
				if err := p.Process(ctx, entry); err != nil {
					fail(err)
				}
			}
		}(queues[i])
	}

dispatch:
	for {
		select {
		case <-ctx.Done():
			break dispatch
		case entry, ok := <-in:
			if !ok {
				break dispatch
			}
			select {
			case queues[p.shard(entry)] <- entry:
			case <-ctx.Done():
				break dispatch
			}
		}
	}

	for _, q := range queues {
		close(q)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (p *Pipeline) shard(entry rawentry.Entry) int {
	if p.cfg.Workers == 1 {
		return 0
	}
	return int(xxhash.Sum64String(entry.QualifiedTable()) % uint64(p.cfg.Workers))
}
