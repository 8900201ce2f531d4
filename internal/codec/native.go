package codec

import (
	"encoding/json"
	"time"

	"changelog_emitter/internal/event"
	"changelog_emitter/internal/table"
)

// Native is the flat JSON row event read by internal/subscriber.
type Native struct {
	Location *time.Location
}

func (n *Native) Encode(ev *event.ChangeEvent, _ *table.Descriptor) ([]byte, error) {
	out := *ev
	out.Timestamp = formatTimestamp(ev.TsMs, n.Location)
	return json.Marshal(&out)
}

func (n *Native) Tombstone() []byte {
	return nil
}
