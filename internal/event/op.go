package event

import (
	"fmt"
	"strings"
)

// Op is the canonical operation every downstream consumer understands.
// The zero value is not a valid operation.
type Op uint8

const (
	OpCreate Op = iota + 1
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Code is the single-letter Debezium operation code.
func (o Op) Code() string {
	switch o {
	case OpCreate:
		return "c"
	case OpUpdate:
		return "u"
	case OpDelete:
		return "d"
	default:
		return ""
	}
}

// Valid reports whether o is one of the three canonical operations.
func (o Op) Valid() bool {
	return o >= OpCreate && o <= OpDelete
}

// ParseOp accepts the wire name ("create") or the Debezium code ("c").
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create", "c":
		return OpCreate, nil
	case "update", "u":
		return OpUpdate, nil
	case "delete", "d":
		return OpDelete, nil
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

func (o Op) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("invalid operation %d", uint8(o))
	}
	return []byte(o.String()), nil
}

func (o *Op) UnmarshalText(b []byte) error {
	v, err := ParseOp(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
