package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"changelog_emitter/internal/clock"
	"changelog_emitter/internal/emitter"
	"changelog_emitter/internal/event"
	"changelog_emitter/internal/offset"
	"changelog_emitter/internal/rawentry"
	"changelog_emitter/internal/row"
	"changelog_emitter/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []*event.ChangeEvent
	err    error
}

func (c *collector) ChangeRecord(_ context.Context, ev *event.ChangeEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) byTable() map[string][]*event.ChangeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string][]*event.ChangeEvent{}
	for _, ev := range c.events {
		out[ev.Table] = append(out[ev.Table], ev)
	}
	return out
}

func tables() table.Static {
	cols := []table.Column{{Name: "id", Type: "int"}, {Name: "name", Type: "varchar"}}
	return table.Static{
		"shop.users":  table.NewDescriptor("shop", "users", cols, []string{"id"}),
		"shop.orders": table.NewDescriptor("shop", "orders", cols, []string{"id"}),
		"shop.items":  table.NewDescriptor("shop", "items", cols, []string{"id"}),
	}
}

func newPipeline(t *testing.T, rec emitter.Receiver, policy Policy, workers int) *Pipeline {
	t.Helper()
	p, err := New(Config{
		Partition: offset.Partition{ServerName: "inventory"},
		Tables:    tables(),
		Clock:     clock.Fixed(time.UnixMilli(1700000000000)),
		Receiver:  rec,
		Policy:    policy,
		Workers:   workers,
	})
	require.NoError(t, err)
	return p
}

func insert(tbl string, id int) rawentry.Entry {
	return rawentry.Entry{
		Kind:     rawentry.KindInsert,
		Schema:   "shop",
		Table:    tbl,
		After:    row.Image{id, fmt.Sprintf("n%d", id)},
		Position: offset.Position{File: "binlog.000001", Pos: uint32(id)},
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyFail, p)

	p, err = ParsePolicy("SKIP")
	require.NoError(t, err)
	assert.Equal(t, PolicySkip, p)

	_, err = ParsePolicy("retry")
	assert.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{Receiver: &collector{}})
	assert.Error(t, err)
	_, err = New(Config{Tables: tables()})
	assert.Error(t, err)

	p, err := New(Config{Tables: tables(), Receiver: &collector{}})
	require.NoError(t, err)
	assert.Equal(t, PolicyFail, p.cfg.Policy)
	assert.Equal(t, 1, p.cfg.Workers)
	assert.NotNil(t, p.cfg.Clock)
}

func TestProcessEmits(t *testing.T) {
	rec := &collector{}
	p := newPipeline(t, rec, PolicyFail, 1)

	require.NoError(t, p.Process(context.Background(), insert("users", 1)))
	require.Len(t, rec.events, 1)
	assert.Equal(t, event.OpCreate, rec.events[0].Op)
	assert.Equal(t, "inventory", rec.events[0].Source.Name)
	assert.Equal(t, int64(1700000000000), rec.events[0].TsMs)
}

func TestProcessUnsupportedKindFails(t *testing.T) {
	rec := &collector{}
	p := newPipeline(t, rec, PolicyFail, 1)

	entry := insert("users", 1)
	entry.Kind = rawentry.KindUnsupported
	err := p.Process(context.Background(), entry)
	require.ErrorIs(t, err, emitter.ErrUnsupportedKind)
	assert.Contains(t, err.Error(), "shop.users")
	assert.Empty(t, rec.events)
}

func TestProcessUnsupportedKindSkipped(t *testing.T) {
	rec := &collector{}
	p := newPipeline(t, rec, PolicySkip, 1)

	entry := insert("users", 1)
	entry.Kind = rawentry.KindDDL
	require.NoError(t, p.Process(context.Background(), entry))
	assert.Empty(t, rec.events)

	bad := insert("users", 2)
	bad.After = row.Image{2}
	require.NoError(t, p.Process(context.Background(), bad))
	assert.Empty(t, rec.events)
}

func TestProcessShapeMismatchFails(t *testing.T) {
	p := newPipeline(t, &collector{}, PolicyFail, 1)
	entry := insert("users", 1)
	entry.After = row.Image{1, "a", "extra"}
	assert.ErrorIs(t, p.Process(context.Background(), entry), emitter.ErrShapeMismatch)
}

func TestProcessReceiverErrorIgnoresPolicy(t *testing.T) {
	boom := errors.New("sink down")
	p := newPipeline(t, &collector{err: boom}, PolicySkip, 1)
	assert.ErrorIs(t, p.Process(context.Background(), insert("users", 1)), boom)
}

type dbFilter string

func (f dbFilter) Match(database, _ string) bool {
	return database == string(f)
}

func TestProcessUnknownTable(t *testing.T) {
	p := newPipeline(t, &collector{}, PolicyFail, 1)
	err := p.Process(context.Background(), insert("ghosts", 1))
	require.ErrorIs(t, err, ErrUnresolvedTable)
	assert.Contains(t, err.Error(), "shop.ghosts")

	rec := &collector{}
	p = newPipeline(t, rec, PolicySkip, 1)
	require.NoError(t, p.Process(context.Background(), insert("ghosts", 1)))
	require.NoError(t, p.Process(context.Background(), insert("users", 2)))
	require.Len(t, rec.events, 1)
	assert.Equal(t, "users", rec.events[0].Table)
}

func TestProcessFilteredBeforeLookup(t *testing.T) {
	rec := &collector{}
	p, err := New(Config{
		Tables:   tables(),
		Receiver: rec,
		Filter:   dbFilter("shop"),
		Policy:   PolicyFail,
	})
	require.NoError(t, err)

	gone := insert("gone", 1)
	gone.Schema = "other"
	require.NoError(t, p.Process(context.Background(), gone))
	assert.Empty(t, rec.events)

	require.NoError(t, p.Process(context.Background(), insert("users", 1)))
	assert.Len(t, rec.events, 1)
}

func TestRunKeepsPerTableOrder(t *testing.T) {
	rec := &collector{}
	p := newPipeline(t, rec, PolicyFail, 4)

	in := make(chan rawentry.Entry)
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), in) }()

	const perTable = 50
	for i := 1; i <= perTable; i++ {
		for _, tbl := range []string{"users", "orders", "items"} {
			in <- insert(tbl, i)
		}
	}
	close(in)
	require.NoError(t, <-done)

	got := rec.byTable()
	for _, tbl := range []string{"users", "orders", "items"} {
		require.Len(t, got[tbl], perTable, tbl)
		for i, ev := range got[tbl] {
			assert.Equal(t, i+1, ev.RowKey, tbl)
		}
	}
}

func TestRunStopsOnFirstError(t *testing.T) {
	rec := &collector{}
	p := newPipeline(t, rec, PolicyFail, 2)

	in := make(chan rawentry.Entry, 4)
	bad := insert("users", 2)
	bad.Kind = rawentry.KindCommit
	in <- insert("users", 1)
	in <- bad
	in <- insert("users", 3)

	err := p.Run(context.Background(), in)
	require.ErrorIs(t, err, emitter.ErrUnsupportedKind)

	var uke *emitter.UnsupportedKindError
	require.ErrorAs(t, err, &uke)
	assert.Equal(t, rawentry.KindCommit, uke.Kind)
	for _, ev := range rec.byTable()["users"] {
		assert.NotEqual(t, 3, ev.RowKey)
	}
}

func TestRunCancelled(t *testing.T) {
	p := newPipeline(t, &collector{}, PolicyFail, 2)
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan rawentry.Entry)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, in) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
