package codec

import (
	"time"

	"changelog_emitter/internal/event"
	"changelog_emitter/internal/table"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack is the native event shape in msgpack.
type Msgpack struct {
	Location *time.Location
}

func (m *Msgpack) Encode(ev *event.ChangeEvent, _ *table.Descriptor) ([]byte, error) {
	out := *ev
	out.Timestamp = formatTimestamp(ev.TsMs, m.Location)
	return msgpack.Marshal(&out)
}

func (m *Msgpack) Tombstone() []byte {
	return nil
}

// DecodeMsgpack is the inverse of Msgpack.Encode.
func DecodeMsgpack(data []byte) (*event.ChangeEvent, error) {
	var ev event.ChangeEvent
	if err := msgpack.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
