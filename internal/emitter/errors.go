package emitter

import (
	"errors"
	"fmt"

	"changelog_emitter/internal/rawentry"
)

var (
	ErrUnsupportedKind = errors.New("unsupported operation kind")
	ErrShapeMismatch   = errors.New("row image does not match table descriptor")
	ErrAlreadyEmitted  = errors.New("change record already emitted")
)

// UnsupportedKindError is returned when a raw kind has no canonical
// operation. Retrying with the same kind cannot succeed.
type UnsupportedKindError struct {
	Kind rawentry.Kind
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported operation kind: %s", e.Kind)
}

func (e *UnsupportedKindError) Is(target error) bool {
	return target == ErrUnsupportedKind
}

// ShapeMismatchError reports a row image whose column count differs from the
// table descriptor.
type ShapeMismatchError struct {
	Table string
	Image string // "before" or "after"
	Got   int
	Want  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s image of %s has %d columns, descriptor has %d", e.Image, e.Table, e.Got, e.Want)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}
