// Package event is the source-agnostic change event published downstream.
package event

import "fmt"

// ChangeEvent is the envelope for one row change.
type ChangeEvent struct {
	Op        Op             `json:"op" msgpack:"op"`
	Timestamp string         `json:"timestamp,omitempty" msgpack:"timestamp,omitempty"`
	TsMs      int64          `json:"ts_ms" msgpack:"ts_ms"`
	DB        string         `json:"db" msgpack:"db"`
	Table     string         `json:"table" msgpack:"table"`
	RowKey    any            `json:"row_key" msgpack:"row_key"`
	After     map[string]any `json:"after,omitempty" msgpack:"after,omitempty"`
	Before    map[string]any `json:"before,omitempty" msgpack:"before,omitempty"`
	Changes   []ColumnChange `json:"changes,omitempty" msgpack:"changes,omitempty"`
	Tombstone bool           `json:"tombstone,omitempty" msgpack:"tombstone,omitempty"`
	Source    Source         `json:"source" msgpack:"source"`
}

type ColumnChange struct {
	Column string `json:"column" msgpack:"column"`
	From   any    `json:"from" msgpack:"from"`
	To     any    `json:"to" msgpack:"to"`
}

// Source says where in the log the change was read.
type Source struct {
	Connector string `json:"connector" msgpack:"connector"`
	Name      string `json:"name" msgpack:"name"`
	File      string `json:"file" msgpack:"file"`
	Pos       uint32 `json:"pos" msgpack:"pos"`
	GTID      string `json:"gtid,omitempty" msgpack:"gtid,omitempty"`
	ServerID  uint32 `json:"server_id" msgpack:"server_id"`
	TsMs      int64  `json:"ts_ms" msgpack:"ts_ms"`
	Kind      string `json:"kind,omitempty" msgpack:"kind,omitempty"`
}

// ID is a human readable identity used for journaling: db.table:op:key.
func (e *ChangeEvent) ID() string {
	return fmt.Sprintf("%s.%s:%s:%v", e.DB, e.Table, e.Op, e.RowKey)
}

// KeyString renders the row key for partitioning.
func (e *ChangeEvent) KeyString() string {
	switch k := e.RowKey.(type) {
	case nil:
		return ""
	case string:
		return k
	default:
		return fmt.Sprintf("%v", k)
	}
}
