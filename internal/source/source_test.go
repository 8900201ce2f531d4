package source

import (
	"testing"
	"time"

	"changelog_emitter/internal/offset"
	"changelog_emitter/internal/rawentry"
	"changelog_emitter/internal/row"

	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsEvent(rows [][]any, skipped [][]int) *replication.RowsEvent {
	return &replication.RowsEvent{
		Table: &replication.TableMapEvent{
			Schema: []byte("shop"),
			Table:  []byte("users"),
		},
		Rows:           rows,
		SkippedColumns: skipped,
	}
}

var pos = offset.Position{File: "binlog.000003", Pos: 900, ServerID: 1, Timestamp: time.Unix(1700000000, 0)}

func TestKindFor(t *testing.T) {
	tests := []struct {
		t    replication.EventType
		want rawentry.Kind
	}{
		{replication.WRITE_ROWS_EVENTv1, rawentry.KindInsert},
		{replication.WRITE_ROWS_EVENTv2, rawentry.KindInsert},
		{replication.UPDATE_ROWS_EVENTv1, rawentry.KindUpdate},
		{replication.UPDATE_ROWS_EVENTv2, rawentry.KindUpdate},
		{replication.DELETE_ROWS_EVENTv1, rawentry.KindDelete},
		{replication.DELETE_ROWS_EVENTv2, rawentry.KindDelete},
		{replication.PARTIAL_UPDATE_ROWS_EVENT, rawentry.KindLobLocator},
		{replication.WRITE_ROWS_EVENTv0, rawentry.KindUnsupported},
		{replication.QUERY_EVENT, rawentry.KindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.t.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindFor(tt.t))
		})
	}
}

func TestEntriesFromInsert(t *testing.T) {
	e := rowsEvent([][]any{{int32(1), "a"}, {int32(2), "b"}}, nil)
	entries := EntriesFromRows(replication.WRITE_ROWS_EVENTv2, e, pos)
	require.Len(t, entries, 2)

	assert.Equal(t, rawentry.KindInsert, entries[0].Kind)
	assert.Equal(t, "shop", entries[0].Schema)
	assert.Equal(t, "users", entries[0].Table)
	assert.True(t, entries[0].Before.Empty())
	assert.Equal(t, row.Image{int32(1), "a"}, entries[0].After)
	assert.Equal(t, row.Image{int32(2), "b"}, entries[1].After)
	assert.Equal(t, pos, entries[1].Position)
}

func TestEntriesFromUpdatePairs(t *testing.T) {
	e := rowsEvent([][]any{{int32(1), "a"}, {int32(1), "b"}, {int32(2), "c"}, {int32(2), "d"}}, nil)
	entries := EntriesFromRows(replication.UPDATE_ROWS_EVENTv2, e, pos)
	require.Len(t, entries, 2)

	assert.Equal(t, row.Image{int32(1), "a"}, entries[0].Before)
	assert.Equal(t, row.Image{int32(1), "b"}, entries[0].After)
	assert.Equal(t, row.Image{int32(2), "c"}, entries[1].Before)
	assert.Equal(t, row.Image{int32(2), "d"}, entries[1].After)
}

func TestEntriesFromDelete(t *testing.T) {
	e := rowsEvent([][]any{{int32(5), "x"}}, nil)
	entries := EntriesFromRows(replication.DELETE_ROWS_EVENTv1, e, pos)
	require.Len(t, entries, 1)
	assert.Equal(t, rawentry.KindDelete, entries[0].Kind)
	assert.Equal(t, row.Image{int32(5), "x"}, entries[0].Before)
	assert.True(t, entries[0].After.Empty())
}

func TestEntriesFromPartialUpdate(t *testing.T) {
	e := rowsEvent([][]any{{int32(1), `{"a":1}`}, {int32(1), `{"a":2}`}}, nil)
	entries := EntriesFromRows(replication.PARTIAL_UPDATE_ROWS_EVENT, e, pos)
	require.Len(t, entries, 1)
	assert.Equal(t, rawentry.KindLobLocator, entries[0].Kind)
	assert.False(t, entries[0].Before.Empty())
	assert.False(t, entries[0].After.Empty())
}

func TestSkippedColumnsBecomeUnavailable(t *testing.T) {
	e := rowsEvent(
		[][]any{{int32(1), nil, "body"}, {int32(1), "t", nil}},
		[][]int{{1}, {2}},
	)
	entries := EntriesFromRows(replication.UPDATE_ROWS_EVENTv2, e, pos)
	require.Len(t, entries, 1)

	assert.True(t, row.IsUnavailable(entries[0].Before[1]))
	assert.Equal(t, "body", entries[0].Before[2])
	assert.True(t, row.IsUnavailable(entries[0].After[2]))
	assert.Equal(t, "t", entries[0].After[1])

	// the binlog row itself is left untouched
	assert.Nil(t, e.Rows[0][1])
}

func TestIsDDL(t *testing.T) {
	assert.True(t, isDDL("ALTER TABLE users ADD COLUMN x int"))
	assert.True(t, isDDL("  create table t (id int)"))
	assert.True(t, isDDL("DROP TABLE t"))
	assert.False(t, isDDL("BEGIN"))
	assert.False(t, isDDL("INSERT INTO t VALUES (1)"))
}

func TestSplitHostPort(t *testing.T) {
	h, p := splitHostPort("db.local:3307")
	assert.Equal(t, "db.local", h)
	assert.Equal(t, uint16(3307), p)

	h, p = splitHostPort("db.local")
	assert.Equal(t, "db.local", h)
	assert.Equal(t, uint16(3306), p)

	h, p = splitHostPort("db.local:notaport")
	assert.Equal(t, "db.local", h)
	assert.Equal(t, uint16(3306), p)
}

type recordingInvalidator []string

func (r *recordingInvalidator) InvalidateSchema(schema string) {
	*r = append(*r, schema)
}

func TestInvalidatorsFanOut(t *testing.T) {
	var a, b recordingInvalidator
	Invalidators{&a, &b}.InvalidateSchema("shop")
	assert.Equal(t, recordingInvalidator{"shop"}, a)
	assert.Equal(t, recordingInvalidator{"shop"}, b)
}
