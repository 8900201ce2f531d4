package codec

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"changelog_emitter/internal/event"
	"changelog_emitter/internal/table"
)

// Debezium writes the Debezium JSON envelope. With a descriptor the message
// carries the schema section, without one it is payload only.
type Debezium struct {
	schemaCache sync.Map // "db.table" -> *debeziumEnvelopeSchema
}

func NewDebezium() *Debezium {
	return &Debezium{}
}

type debeziumEnvelopeSchema struct {
	Type   string                `json:"type"`
	Name   string                `json:"name"`
	Fields []debeziumSchemaField `json:"fields"`
}

type debeziumSchemaField struct {
	Field    string                `json:"field"`
	Type     string                `json:"type"`
	Optional bool                  `json:"optional,omitempty"`
	Name     string                `json:"name,omitempty"`
	Fields   []debeziumSchemaField `json:"fields,omitempty"`
}

type debeziumMessage struct {
	Schema  *debeziumEnvelopeSchema `json:"schema,omitempty"`
	Payload debeziumPayload         `json:"payload"`
}

type debeziumPayload struct {
	Before map[string]any `json:"before"`
	After  map[string]any `json:"after"`
	Op     string         `json:"op"`
	TsMs   int64          `json:"ts_ms"`
	Source debeziumSource `json:"source"`
}

type debeziumSource struct {
	Connector string `json:"connector"`
	Name      string `json:"name"`
	Db        string `json:"db"`
	Table     string `json:"table"`
	ServerID  uint32 `json:"server_id"`
	File      string `json:"file"`
	Pos       uint32 `json:"pos"`
	GTID      string `json:"gtid,omitempty"`
	TsMs      int64  `json:"ts_ms"`
}

func (d *Debezium) Encode(ev *event.ChangeEvent, desc *table.Descriptor) ([]byte, error) {
	if !ev.Op.Valid() {
		return nil, fmt.Errorf("cannot encode operation %s", ev.Op)
	}

	msg := debeziumMessage{
		Payload: debeziumPayload{
			Before: ev.Before,
			After:  ev.After,
			Op:     ev.Op.Code(),
			TsMs:   ev.TsMs,
			Source: debeziumSource{
				Connector: ev.Source.Connector,
				Name:      ev.Source.Name,
				Db:        ev.DB,
				Table:     ev.Table,
				ServerID:  ev.Source.ServerID,
				File:      ev.Source.File,
				Pos:       ev.Source.Pos,
				GTID:      ev.Source.GTID,
				TsMs:      ev.Source.TsMs,
			},
		},
	}
	if desc != nil {
		msg.Schema = d.schemaFor(desc)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

// Tombstone is a null value so Kafka log compaction drops the key.
func (d *Debezium) Tombstone() []byte {
	return nil
}

func (d *Debezium) schemaFor(desc *table.Descriptor) *debeziumEnvelopeSchema {
	key := desc.QualifiedName()
	if cached, ok := d.schemaCache.Load(key); ok {
		return cached.(*debeziumEnvelopeSchema)
	}
	s := buildEnvelopeSchema(desc)
	d.schemaCache.Store(key, s)
	return s
}

// InvalidateSchema drops the cached envelope schemas of a database after
// DDL. An empty schema drops everything.
func (d *Debezium) InvalidateSchema(schema string) {
	prefix := schema + "."
	d.schemaCache.Range(func(key, _ any) bool {
		if schema == "" || strings.HasPrefix(key.(string), prefix) {
			d.schemaCache.Delete(key)
		}
		return true
	})
}

func buildEnvelopeSchema(desc *table.Descriptor) *debeziumEnvelopeSchema {
	valueName := desc.QualifiedName() + ".Value"

	columns := make([]debeziumSchemaField, len(desc.Columns))
	for i, col := range desc.Columns {
		columns[i] = debeziumSchemaField{
			Field:    col.Name,
			Type:     mapMySQLType(col.Type),
			Optional: col.Nullable,
		}
	}

	return &debeziumEnvelopeSchema{
		Type: "struct",
		Name: desc.QualifiedName() + ".Envelope",
		Fields: []debeziumSchemaField{
			{Field: "before", Type: "struct", Optional: true, Name: valueName, Fields: columns},
			{Field: "after", Type: "struct", Optional: true, Name: valueName, Fields: columns},
			{Field: "op", Type: "string"},
			{Field: "ts_ms", Type: "int64"},
			{
				Field: "source",
				Type:  "struct",
				Name:  "io.debezium.connector.mysql.Source",
				Fields: []debeziumSchemaField{
					{Field: "connector", Type: "string"},
					{Field: "name", Type: "string"},
					{Field: "db", Type: "string"},
					{Field: "table", Type: "string"},
					{Field: "server_id", Type: "int64"},
					{Field: "file", Type: "string"},
					{Field: "pos", Type: "int64"},
					{Field: "gtid", Type: "string", Optional: true},
					{Field: "ts_ms", Type: "int64"},
				},
			},
		},
	}
}

// mapMySQLType maps an information_schema DATA_TYPE to a Debezium type.
// Decimals are carried as strings.
func mapMySQLType(dataType string) string {
	switch strings.ToLower(dataType) {
	case "tinyint", "smallint":
		return "int16"
	case "mediumint", "int", "integer", "year":
		return "int32"
	case "bigint":
		return "int64"
	case "float":
		return "float"
	case "double", "real":
		return "double"
	case "bit", "bool", "boolean":
		return "boolean"
	case "binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob", "geometry":
		return "bytes"
	}
	return "string"
}
