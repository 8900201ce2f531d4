package subscriber

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"changelog_emitter/internal/codec"
	"changelog_emitter/internal/event"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func updateEvent() *event.ChangeEvent {
	return &event.ChangeEvent{
		Op:     event.OpUpdate,
		TsMs:   1702345678901,
		DB:     "shop",
		Table:  "orders_2024",
		RowKey: int64(42),
		Before: map[string]any{"id": int64(42), "status": "new", "total": int64(10)},
		After:  map[string]any{"id": int64(42), "status": "paid", "total": int64(10)},
		Changes: []event.ColumnChange{
			{Column: "status", From: "new", To: "paid"},
		},
		Source: event.Source{Connector: "mysql", Name: "mysql", File: "binlog.000003", Pos: 4},
	}
}

func nativePayload(t *testing.T, ev *event.ChangeEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfigFromMap(map[string]string{})
	assert.Equal(t, DefaultRedisAddr, cfg.RedisAddr)
	assert.Equal(t, DefaultRedisChannel, cfg.RedisChannel)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Empty(t, cfg.FilterDBs)

	cfg = LoadConfigFromMap(map[string]string{
		"REDIS_STREAM":   "changes",
		"REDIS_DB":       "3",
		"FORMAT":         "MsgPack",
		"FILTER_TABLES":  "orders_*, users",
		"EXCLUDE_TABLES": "orders_archive",
		"PRETTY_PRINT":   "on",
	})
	assert.Equal(t, "changes", cfg.RedisChannel)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, FormatMsgpack, cfg.Format)
	assert.Equal(t, []string{"orders_*", "users"}, cfg.FilterTables)
	assert.Equal(t, []string{"orders_archive"}, cfg.ExcludeTables)
	assert.True(t, cfg.PrettyPrint)
}

func TestFilterMatches(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"no filters", Config{}, true},
		{"db glob", Config{FilterDBs: []string{"sh*"}}, true},
		{"db mismatch", Config{FilterDBs: []string{"crm"}}, false},
		{"table glob", Config{FilterTables: []string{"orders_*"}}, true},
		{"excluded db", Config{ExcludeDBs: []string{"shop"}}, false},
		{"excluded table", Config{FilterTables: []string{"orders_*"}, ExcludeTables: []string{"*_2024"}}, false},
		{"id match", Config{FilterIDs: []string{"41", "42"}}, true},
		{"id mismatch", Config{FilterIDs: []string{"7"}}, false},
		{"op code", Config{FilterOps: []string{"u"}}, true},
		{"op name mismatch", Config{FilterOps: []string{"create", "delete"}}, false},
		{"change any", Config{FilterChangeAny: []string{"total", "status"}}, true},
		{"change any mismatch", Config{FilterChangeAny: []string{"total"}}, false},
		{"change all mismatch", Config{FilterChangeAll: []string{"status", "total"}}, false},
		{"change all", Config{FilterChangeAll: []string{"status"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(&tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Matches(updateEvent()))
		})
	}
}

func TestNewFilterRejectsBadInput(t *testing.T) {
	_, err := NewFilter(&Config{FilterOps: []string{"upsert"}})
	assert.Error(t, err)

	_, err = NewFilter(&Config{FilterTables: []string{"[unclosed"}})
	assert.Error(t, err)
}

func TestDecodeFormats(t *testing.T) {
	ev := updateEvent()

	decoded, err := Decode(nativePayload(t, ev), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, event.OpUpdate, decoded.Op)
	assert.Equal(t, json.Number("42"), decoded.RowKey)
	assert.Equal(t, "42", rowKeyToString(decoded.RowKey))

	mp, err := (&codec.Msgpack{}).Encode(ev, nil)
	require.NoError(t, err)
	decoded, err = Decode(mp, FormatMsgpack)
	require.NoError(t, err)
	assert.Equal(t, "orders_2024", decoded.Table)
	assert.Equal(t, "42", rowKeyToString(decoded.RowKey))

	_, err = Decode([]byte("{not json"), FormatJSON)
	assert.Error(t, err)
}

func TestDispatch(t *testing.T) {
	var got []*event.ChangeEvent
	handler := func(_ context.Context, _ []byte, ev *event.ChangeEvent) error {
		got = append(got, ev)
		return nil
	}
	cfg := LoadConfigFromMap(map[string]string{"FILTER_OPS": "update"})
	d, err := NewDispatcher(cfg, handler)
	require.NoError(t, err)

	matched, err := d.Dispatch(context.Background(), nativePayload(t, updateEvent()))
	require.NoError(t, err)
	assert.True(t, matched)

	del := updateEvent()
	del.Op = event.OpDelete
	matched, err = d.Dispatch(context.Background(), nativePayload(t, del))
	require.NoError(t, err)
	assert.False(t, matched)

	_, err = d.Dispatch(context.Background(), []byte("garbage"))
	assert.Error(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "orders_2024", got[0].Table)
}

func TestPrintHandler(t *testing.T) {
	var buf bytes.Buffer
	raw := []byte(`{"op":"update","db":"shop"}`)
	require.NoError(t, PrintHandler(&buf, "[audit] ", false)(context.Background(), raw, updateEvent()))
	assert.Equal(t, "[audit] {\"op\":\"update\",\"db\":\"shop\"}\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintHandler(&buf, "", true)(context.Background(), raw, updateEvent()))
	assert.Contains(t, buf.String(), "\n  \"op\": \"update\"")

	buf.Reset()
	mp, err := (&codec.Msgpack{}).Encode(updateEvent(), nil)
	require.NoError(t, err)
	require.NoError(t, PrintHandler(&buf, "", false)(context.Background(), mp, updateEvent()))
	assert.Contains(t, buf.String(), `"table":"orders_2024"`)
}

func TestWebhookDelivers(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, zerolog.Nop())
	require.NoError(t, hook.Handle(context.Background(), nil, updateEvent()))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "update", sent["op"])
	assert.Equal(t, "orders_2024", sent["table"])
}

func TestWebhookRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, zerolog.Nop()).Handle(context.Background(), nil, updateEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.env")
	b := filepath.Join(dir, "b.env")
	require.NoError(t, os.WriteFile(a, []byte("SUBSCRIBER_NAME=a\nREDIS_DB=1\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("REDIS_DB=2\n"), 0o644))

	assert.Equal(t, []string{a, b}, ParseEnvFilesList(a+" , "+b))

	vals, err := LoadEnvFiles([]string{a, b})
	require.NoError(t, err)
	cfg := LoadConfigFromMap(vals)
	assert.Equal(t, "a", cfg.Name)
	assert.Equal(t, 2, cfg.RedisDB)

	_, err = LoadEnvFiles([]string{filepath.Join(dir, "missing.env")})
	assert.Error(t, err)
}
