package row

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestUnavailableIsNotNull(t *testing.T) {
	assert.True(t, IsUnavailable(Unavailable))
	assert.False(t, IsUnavailable(nil))
	assert.False(t, ValueEqual(Unavailable, nil))
	assert.False(t, ValueEqual(nil, Unavailable))
	assert.True(t, ValueEqual(Unavailable, Unavailable))
}

func TestValueEqualBytesAndStrings(t *testing.T) {
	assert.True(t, ValueEqual([]byte("abc"), "abc"))
	assert.True(t, ValueEqual(int64(1), int64(1)))
	assert.False(t, ValueEqual(int64(1), int32(1)))
	assert.True(t, ValueEqual(nil, nil))
}

func TestImageEqual(t *testing.T) {
	assert.True(t, Equal(Image{1, "a"}, Image{1, []byte("a")}))
	assert.False(t, Equal(Image{1, "a"}, Image{1}))
	assert.False(t, Equal(Image{1, Unavailable}, Image{1, nil}))
	assert.True(t, Equal(nil, Image{}))
}

func TestImageEmpty(t *testing.T) {
	assert.True(t, Image(nil).Empty())
	assert.True(t, Image{}.Empty())
	assert.False(t, Image{nil}.Empty())
}

func TestUnavailableEncoding(t *testing.T) {
	data, err := json.Marshal(map[string]any{"doc": Unavailable, "note": nil})
	require.NoError(t, err)
	assert.JSONEq(t, `{"doc":"__debezium_unavailable_value","note":null}`, string(data))

	packed, err := msgpack.Marshal(Unavailable)
	require.NoError(t, err)
	var s string
	require.NoError(t, msgpack.Unmarshal(packed, &s))
	assert.Equal(t, Placeholder, s)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "x", Sanitize([]byte("x")))
	assert.Equal(t, 5, Sanitize(5))
	assert.Equal(t, Unavailable, Sanitize(Unavailable))
}
