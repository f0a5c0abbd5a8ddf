package memory

import "errors"

var (
	// ErrSheetNotFound is returned when a descriptor names a missing sheet
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrNameNotFound is returned when a named range is not defined
	ErrNameNotFound = errors.New("named range not found")
)
