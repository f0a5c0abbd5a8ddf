package sheetorm

import (
	"errors"
	"fmt"
)

var (
	ErrMapping          = errors.New("missing column mapping")
	ErrMissingHeader    = errors.New("missing header row")
	ErrInvalidEntity    = errors.New("the entity has lost reference to its managed table")
	ErrLinkFormat       = errors.New("cell is not a HYPERLINK formula")
	ErrUnknownProperty  = errors.New("unknown property")
	ErrReadOnlyProperty = errors.New("read-only property")
	ErrNotSequence      = errors.New("property is not a sequence column")
	ErrInvalidRange     = errors.New("invalid range descriptor")
	ErrInvalidSchema    = errors.New("invalid schema")
	ErrClosed           = errors.New("client is closed")
	ErrKeyNotFound      = errors.New("key not found")
)

// MappingError reports a schema property whose column cannot be resolved or
// whose cell content cannot be mapped to the declared type.
type MappingError struct {
	Property string
	Err      error // optional cause, ErrMapping when nil
}

func (e *MappingError) Error() string {
	if e.Err != nil && e.Err != ErrMapping {
		return fmt.Sprintf("column '%s': %v", e.Property, e.Err)
	}
	return fmt.Sprintf("missing mapping information for column '%s'", e.Property)
}

// Unwrap lets errors.Is match both ErrMapping and the underlying cause.
func (e *MappingError) Unwrap() []error {
	if e.Err == nil || e.Err == ErrMapping {
		return []error{ErrMapping}
	}
	return []error{ErrMapping, e.Err}
}
