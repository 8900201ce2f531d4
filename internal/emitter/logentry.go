package emitter

import (
	"context"

	"changelog_emitter/internal/clock"
	"changelog_emitter/internal/event"
	"changelog_emitter/internal/offset"
	"changelog_emitter/internal/rawentry"
	"changelog_emitter/internal/row"
	"changelog_emitter/internal/table"
)

// LogEntryEmitter binds one raw log entry to the base contract. It is used
// once by one goroutine and then dropped.
type LogEntryEmitter struct {
	kind     rawentry.Kind
	before   row.Image
	after    row.Image
	base     *Emitter
	consumed bool
}

// NewLogEntryEmitter only stores its arguments. Interpretation happens when
// the event is emitted.
func NewLogEntryEmitter(
	partition offset.Partition,
	position offset.Position,
	kind rawentry.Kind,
	before, after row.Image,
	desc *table.Descriptor,
	clk clock.Clock,
) *LogEntryEmitter {
	e := &LogEntryEmitter{
		kind:   kind,
		before: before,
		after:  after,
	}
	e.base = NewEmitter(partition, position, desc, clk, e)
	return e
}

// FromEntry builds an emitter for a raw entry read from the log.
func FromEntry(partition offset.Partition, entry rawentry.Entry, desc *table.Descriptor, clk clock.Clock) *LogEntryEmitter {
	return NewLogEntryEmitter(partition, entry.Position, entry.Kind, entry.Before, entry.After, desc, clk)
}

func (e *LogEntryEmitter) Operation() (event.Op, error) {
	return ResolveOperation(e.kind)
}

func (e *LogEntryEmitter) Before() row.Image {
	return e.before
}

func (e *LogEntryEmitter) After() row.Image {
	return e.after
}

func (e *LogEntryEmitter) RawKind() rawentry.Kind {
	return e.kind
}

// Emit assembles the event and hands it to r. The emitter is consumed by the
// first call whether or not it succeeds.
func (e *LogEntryEmitter) Emit(ctx context.Context, r Receiver) error {
	if e.consumed {
		return ErrAlreadyEmitted
	}
	e.consumed = true
	return e.base.Emit(ctx, r)
}
