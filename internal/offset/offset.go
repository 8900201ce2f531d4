// Package offset carries the logical partition and log coordinate of a change.
// Nothing here is persisted; the handles travel with each event untouched.
package offset

import (
	"fmt"
	"time"
)

// Partition identifies one ordered stream of changes, usually the logical
// name of the source server.
type Partition struct {
	ServerName string `json:"server_name"`
}

func (p Partition) String() string {
	return p.ServerName
}

// Position is a binlog coordinate.
type Position struct {
	File      string    `json:"file"`
	Pos       uint32    `json:"pos"`
	GTID      string    `json:"gtid,omitempty"`
	ServerID  uint32    `json:"server_id"`
	Timestamp time.Time `json:"-"`
}

func (p Position) String() string {
	if p.GTID != "" {
		return fmt.Sprintf("%s:%d (%s)", p.File, p.Pos, p.GTID)
	}
	return fmt.Sprintf("%s:%d", p.File, p.Pos)
}
