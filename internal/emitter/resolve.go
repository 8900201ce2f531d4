package emitter

import (
	"changelog_emitter/internal/event"
	"changelog_emitter/internal/rawentry"
)

// ResolveOperation maps a raw kind onto the canonical operation set.
//
// A standalone LOB locator read resolves to an update of the owning row:
// the LOB content changed but the row itself was not rewritten. Downstream
// consumers depend on this mapping.
//
// Kinds without a mapping fail with *UnsupportedKindError; there is no
// default operation.
func ResolveOperation(kind rawentry.Kind) (event.Op, error) {
	switch kind {
	case rawentry.KindInsert:
		return event.OpCreate, nil
	case rawentry.KindUpdate, rawentry.KindLobLocator:
		return event.OpUpdate, nil
	case rawentry.KindDelete:
		return event.OpDelete, nil
	default:
		return 0, &UnsupportedKindError{Kind: kind}
	}
}
