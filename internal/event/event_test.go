package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpNamesAndCodes(t *testing.T) {
	tests := []struct {
		op   Op
		name string
		code string
	}{
		{OpCreate, "create", "c"},
		{OpUpdate, "update", "u"},
		{OpDelete, "delete", "d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.op.String())
			assert.Equal(t, tt.code, tt.op.Code())
			assert.True(t, tt.op.Valid())

			byName, err := ParseOp(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.op, byName)

			byCode, err := ParseOp(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.op, byCode)
		})
	}
}

func TestZeroOpIsInvalid(t *testing.T) {
	var o Op
	assert.False(t, o.Valid())
	assert.Equal(t, "", o.Code())
	_, err := o.MarshalText()
	assert.Error(t, err)
}

func TestParseOpRejectsUnknown(t *testing.T) {
	_, err := ParseOp("insert")
	assert.Error(t, err)
}

func TestChangeEventJSON(t *testing.T) {
	ev := &ChangeEvent{
		Op:     OpUpdate,
		DB:     "shop",
		Table:  "users",
		RowKey: int64(7),
		Changes: []ColumnChange{
			{Column: "name", From: "a", To: "b"},
		},
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "update", decoded["op"])
	assert.NotContains(t, decoded, "before")
	assert.NotContains(t, decoded, "tombstone")

	var back ChangeEvent
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, OpUpdate, back.Op)
	assert.Equal(t, "shop.users:update:7", ev.ID())
	assert.Equal(t, "7", ev.KeyString())
}
