package source

import (
	"changelog_emitter/internal/offset"
	"changelog_emitter/internal/rawentry"
	"changelog_emitter/internal/row"

	"github.com/go-mysql-org/go-mysql/replication"
)

// KindFor maps a binlog rows event type to a raw kind.
//
// A MySQL 8 partial JSON update changes LOB content without logging the
// whole row, which is what a LOB locator entry describes.
func KindFor(t replication.EventType) rawentry.Kind {
	switch t {
	case replication.WRITE_ROWS_EVENTv1, replication.WRITE_ROWS_EVENTv2:
		return rawentry.KindInsert
	case replication.UPDATE_ROWS_EVENTv1, replication.UPDATE_ROWS_EVENTv2:
		return rawentry.KindUpdate
	case replication.DELETE_ROWS_EVENTv1, replication.DELETE_ROWS_EVENTv2:
		return rawentry.KindDelete
	case replication.PARTIAL_UPDATE_ROWS_EVENT:
		return rawentry.KindLobLocator
	default:
		return rawentry.KindUnsupported
	}
}

// EntriesFromRows splits a rows event into one raw entry per changed row.
// Update-like kinds carry before/after pairs.
func EntriesFromRows(t replication.EventType, e *replication.RowsEvent, pos offset.Position) []rawentry.Entry {
	kind := KindFor(t)
	var schema, tbl string
	if e.Table != nil {
		schema, tbl = string(e.Table.Schema), string(e.Table.Table)
	}
	newEntry := func() rawentry.Entry {
		return rawentry.Entry{Kind: kind, Schema: schema, Table: tbl, Position: pos}
	}

	var out []rawentry.Entry
	switch kind {
	case rawentry.KindUpdate, rawentry.KindLobLocator:
		out = make([]rawentry.Entry, 0, len(e.Rows)/2)
		for i := 0; i+1 < len(e.Rows); i += 2 {
			en := newEntry()
			en.Before = imageOf(e, i)
			en.After = imageOf(e, i+1)
			out = append(out, en)
		}
	case rawentry.KindDelete:
		out = make([]rawentry.Entry, 0, len(e.Rows))
		for i := range e.Rows {
			en := newEntry()
			en.Before = imageOf(e, i)
			out = append(out, en)
		}
	default:
		out = make([]rawentry.Entry, 0, len(e.Rows))
		for i := range e.Rows {
			en := newEntry()
			en.After = imageOf(e, i)
			out = append(out, en)
		}
	}
	return out
}

// imageOf copies row i, marking columns left out of the binlog row image
// (binlog_row_image=MINIMAL or NOBLOB) as unavailable.
func imageOf(e *replication.RowsEvent, i int) row.Image {
	img := make(row.Image, len(e.Rows[i]))
	copy(img, e.Rows[i])
	if i < len(e.SkippedColumns) {
		for _, c := range e.SkippedColumns[i] {
			if c >= 0 && c < len(img) {
				img[c] = row.Unavailable
			}
		}
	}
	return img
}
