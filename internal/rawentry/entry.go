// Package rawentry is the boundary vocabulary between a log reader and the
// emitter: the raw event kind and the raw entry carrying the row images.
package rawentry

import (
	"changelog_emitter/internal/offset"
	"changelog_emitter/internal/row"
)

// Entry is one change fact extracted from the transaction log.
type Entry struct {
	Kind     Kind
	Schema   string
	Table    string
	Before   row.Image
	After    row.Image
	Position offset.Position
}

// QualifiedTable returns "schema.table".
func (e Entry) QualifiedTable() string {
	return e.Schema + "." + e.Table
}
