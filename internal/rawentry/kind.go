package rawentry

import (
	"fmt"
	"strings"
)

// Kind is what the log reader observed for one entry.
type Kind uint8

const (
	KindUnsupported Kind = iota
	KindInsert
	KindUpdate
	KindDelete
	// KindLobLocator is a standalone large-object locator read: LOB column
	// content changed without the row being rewritten.
	KindLobLocator
	KindLobWrite
	KindLobErase
	KindDDL
	KindCommit
	KindRollback
)

var kindNames = [...]string{
	KindUnsupported: "UNSUPPORTED",
	KindInsert:      "INSERT",
	KindUpdate:      "UPDATE",
	KindDelete:      "DELETE",
	KindLobLocator:  "SELECT_LOB_LOCATOR",
	KindLobWrite:    "LOB_WRITE",
	KindLobErase:    "LOB_ERASE",
	KindDDL:         "DDL",
	KindCommit:      "COMMIT",
	KindRollback:    "ROLLBACK",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind maps a kind name back to its value, ignoring case.
func ParseKind(name string) (Kind, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return KindUnsupported, fmt.Errorf("unknown raw event kind %q", name)
}
