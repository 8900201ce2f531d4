// Package emitter turns one raw log entry into a canonical change event.
//
// A RowSource supplies the operation and the before/after row images; the
// Emitter assembles the envelope around them from the partition, position,
// table descriptor and clock it was built with, then hands it to a Receiver.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"changelog_emitter/internal/clock"
	"changelog_emitter/internal/event"
	"changelog_emitter/internal/offset"
	"changelog_emitter/internal/rawentry"
	"changelog_emitter/internal/row"
	"changelog_emitter/internal/table"

	"github.com/cespare/xxhash/v2"
)

// Connector is reported in the source block of every event.
const Connector = "mysql"

// RowSource is what a concrete emitter provides to the base contract.
type RowSource interface {
	Operation() (event.Op, error)
	Before() row.Image
	After() row.Image
}

// Receiver accepts assembled change events.
type Receiver interface {
	ChangeRecord(ctx context.Context, ev *event.ChangeEvent) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(ctx context.Context, ev *event.ChangeEvent) error

func (f ReceiverFunc) ChangeRecord(ctx context.Context, ev *event.ChangeEvent) error {
	return f(ctx, ev)
}

type kindReporter interface {
	RawKind() rawentry.Kind
}

// Emitter is the generic assembly contract.
type Emitter struct {
	partition offset.Partition
	position  offset.Position
	table     *table.Descriptor
	clock     clock.Clock
	rows      RowSource
}

func NewEmitter(partition offset.Partition, position offset.Position, desc *table.Descriptor, clk clock.Clock, rows RowSource) *Emitter {
	return &Emitter{
		partition: partition,
		position:  position,
		table:     desc,
		clock:     clk,
		rows:      rows,
	}
}

// Emit assembles the event and passes it to r. Nothing reaches r when the
// operation cannot be resolved or an image has the wrong shape.
func (e *Emitter) Emit(ctx context.Context, r Receiver) error {
	ev, err := e.Assemble()
	if err != nil {
		return err
	}
	return r.ChangeRecord(ctx, ev)
}

// Assemble builds the envelope without delivering it.
func (e *Emitter) Assemble() (*event.ChangeEvent, error) {
	if e.rows == nil {
		return nil, errors.New("emitter has no row source")
	}
	op, err := e.rows.Operation()
	if err != nil {
		return nil, err
	}
	if e.table == nil {
		return nil, errors.New("emitter has no table descriptor")
	}
	if e.clock == nil {
		return nil, errors.New("emitter has no clock")
	}

	before, after := e.rows.Before(), e.rows.After()
	if err := e.checkShape("before", before); err != nil {
		return nil, err
	}
	if err := e.checkShape("after", after); err != nil {
		return nil, err
	}

	ev := &event.ChangeEvent{
		Op:    op,
		TsMs:  e.clock.Now().UnixMilli(),
		DB:    e.table.Schema,
		Table: e.table.Table,
		Source: event.Source{
			Connector: Connector,
			Name:      e.partition.ServerName,
			File:      e.position.File,
			Pos:       e.position.Pos,
			GTID:      e.position.GTID,
			ServerID:  e.position.ServerID,
		},
	}
	if !e.position.Timestamp.IsZero() {
		ev.Source.TsMs = e.position.Timestamp.UnixMilli()
	}
	if kr, ok := e.rows.(kindReporter); ok {
		ev.Source.Kind = kr.RawKind().String()
	}

	if !before.Empty() {
		ev.Before = e.named(before)
	}
	if !after.Empty() {
		ev.After = e.named(after)
	}

	switch op {
	case event.OpCreate:
		ev.RowKey = e.rowKey(after)
	case event.OpUpdate:
		ev.Changes = e.changes(before, after)
		// A MINIMAL after image may lack the key columns.
		ev.RowKey = e.rowKey(after, before)
	case event.OpDelete:
		ev.RowKey = e.rowKey(before)
		ev.Tombstone = true
	default:
		return nil, fmt.Errorf("row source returned invalid operation %s", op)
	}
	return ev, nil
}

func (e *Emitter) checkShape(name string, img row.Image) error {
	if img.Empty() || len(img) == e.table.ColumnCount() {
		return nil
	}
	return &ShapeMismatchError{
		Table: e.table.QualifiedName(),
		Image: name,
		Got:   len(img),
		Want:  e.table.ColumnCount(),
	}
}

func (e *Emitter) named(img row.Image) map[string]any {
	m := make(map[string]any, len(img))
	for i, col := range e.table.Columns {
		m[col.Name] = row.Sanitize(img[i])
	}
	return m
}

// changes lists the columns whose value differs between the images. Slots
// the source could not recover on either side are left out.
func (e *Emitter) changes(before, after row.Image) []event.ColumnChange {
	if before.Empty() || after.Empty() {
		return nil
	}
	var out []event.ColumnChange
	for i, col := range e.table.Columns {
		if row.IsUnavailable(before[i]) || row.IsUnavailable(after[i]) {
			continue
		}
		if !row.ValueEqual(before[i], after[i]) {
			out = append(out, event.ColumnChange{
				Column: col.Name,
				From:   row.Sanitize(before[i]),
				To:     row.Sanitize(after[i]),
			})
		}
	}
	return out
}

// rowKey is the primary key value (a map for composite keys) taken from the
// first image that carries it, or a hash of every column of the first
// non-empty image when no image has a usable primary key.
func (e *Emitter) rowKey(imgs ...row.Image) any {
	var first row.Image
	for _, img := range imgs {
		if img.Empty() {
			continue
		}
		if first == nil {
			first = img
		}
		if pk, ok := e.pkValue(img); ok {
			return pk
		}
	}
	if first == nil {
		return nil
	}

	values := make([]string, len(first))
	for i, v := range first {
		values[i] = fmt.Sprintf("%v", row.Sanitize(v))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(values, "|")))
}

func (e *Emitter) pkValue(img row.Image) (any, bool) {
	if len(e.table.PKCols) == 0 {
		return nil, false
	}
	vals := make(map[string]any, len(e.table.PKCols))
	for _, c := range e.table.PKCols {
		i, ok := e.table.Index(c)
		if !ok || row.IsUnavailable(img[i]) {
			return nil, false
		}
		vals[c] = row.Sanitize(img[i])
	}
	if len(vals) == 1 {
		return vals[e.table.PKCols[0]], true
	}
	return vals, true
}
