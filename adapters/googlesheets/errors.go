package googlesheets

import "errors"

var (
	// ErrMissingSpreadsheetID is returned when no spreadsheet ID is configured
	ErrMissingSpreadsheetID = errors.New("spreadsheet ID is required")

	// ErrSheetNotFound is returned when a descriptor names a missing sheet
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrNameNotFound is returned when a named range doesn't exist
	ErrNameNotFound = errors.New("named range not found")
)
