// Package row holds the positional row image shared by the log reader, the
// emitter core and the codecs.
package row

import (
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Placeholder is what codecs write in place of an unavailable column value.
const Placeholder = "__debezium_unavailable_value"

// Image is the ordered column values of a row, one slot per table column.
// A nil or empty Image means the image is absent.
type Image []any

// Empty reports whether the image is absent.
func (img Image) Empty() bool {
	return len(img) == 0
}

// UnavailableValue marks a column the source could not recover, for example a
// column left out of a MINIMAL or NOBLOB binlog row image. It is not NULL.
type UnavailableValue struct{}

// Unavailable is the marker stored in an Image slot.
var Unavailable = UnavailableValue{}

func (UnavailableValue) String() string {
	return Placeholder
}

func (UnavailableValue) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Placeholder + `"`), nil
}

func (UnavailableValue) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(Placeholder)
}

// IsUnavailable reports whether v is the unavailable marker.
func IsUnavailable(v any) bool {
	_, ok := v.(UnavailableValue)
	return ok
}

// Sanitize converts []byte to string for nicer JSON. Everything else,
// including the unavailable marker, passes through.
func Sanitize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// ValueEqual compares two column values, treating []byte and string alike.
// The unavailable marker only equals itself.
func ValueEqual(a, b any) bool {
	if IsUnavailable(a) || IsUnavailable(b) {
		return IsUnavailable(a) && IsUnavailable(b)
	}
	if ab, ok := a.([]byte); ok {
		a = string(ab)
	}
	if bb, ok := b.([]byte); ok {
		b = string(bb)
	}
	return reflect.DeepEqual(a, b)
}

// Equal reports whether two images hold the same values slot by slot.
func Equal(a, b Image) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ValueEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
