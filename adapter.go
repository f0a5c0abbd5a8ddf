package sheetorm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RangeDescriptor locates a table inside a workbook. Exactly one field is set.
type RangeDescriptor struct {
	Sheet string `json:"sheetName,omitempty"`
	Name  string `json:"rangeName,omitempty"`
	A1    string `json:"a1NotationRange,omitempty"`
}

// SheetRange describes the used area of a whole sheet
func SheetRange(sheet string) RangeDescriptor { return RangeDescriptor{Sheet: sheet} }

// NamedRange describes a workbook-level named range
func NamedRange(name string) RangeDescriptor { return RangeDescriptor{Name: name} }

// A1Range describes an explicit address such as "Sheet1!B2:E2"
func A1Range(address string) RangeDescriptor { return RangeDescriptor{A1: address} }

// Validate checks that exactly one locator is set
func (d RangeDescriptor) Validate() error {
	set := 0
	for _, s := range []string{d.Sheet, d.Name, d.A1} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: exactly one of sheet, name or address must be set", ErrInvalidRange)
	}
	return nil
}

// String serializes the descriptor; the output is stable and feeds sequence fingerprints
func (d RangeDescriptor) String() string {
	b, _ := json.Marshal(d)
	return string(b)
}

// Workbook is the raw tabular I/O layer a Table is bound to
type Workbook interface {
	// ID identifies the workbook; it scopes sequence counters
	ID() string

	// Range resolves a descriptor to a live range handle
	Range(ctx context.Context, desc RangeDescriptor) (Range, error)
}

// Range is a handle on a rectangular cell area. All offsets are zero-based and
// relative to the top-left cell of the range.
type Range interface {
	// RowCount returns the number of rows in the range, header included
	RowCount(ctx context.Context) (int, error)

	// ReadValues returns displayed values; blank cells are nil
	ReadValues(ctx context.Context, rowOffset, rowCount int) ([][]interface{}, error)

	// ReadFormulas returns formula text ("=...") or "" for each cell. A colCount of 0
	// reads through the last column of the range (the last used column when unbounded).
	ReadFormulas(ctx context.Context, rowOffset, colOffset, rowCount, colCount int) ([][]string, error)

	// WriteValues writes rows starting at rowOffset; nil cells are left untouched
	// and strings starting with "=" are written as formulas
	WriteValues(ctx context.Context, rowOffset int, rows [][]interface{}) error

	// InsertRows shifts the rows at rowOffset and below down by count
	InsertRows(ctx context.Context, rowOffset, count int) error

	// DeleteRows removes count rows starting at rowOffset, shifting the rest up
	DeleteRows(ctx context.Context, rowOffset, count int) error

	// SetCheckbox renders a single column block as checkboxes
	SetCheckbox(ctx context.Context, rowOffset, colOffset, rowCount int) error

	// Width returns the number of columns spanned, or 0 when unbounded
	Width() int
}

// Flusher is implemented by workbooks that buffer writes until flushed
type Flusher interface {
	Flush(ctx context.Context) error
}

// A1 is a parsed A1-notation address. Columns and rows are zero-based;
// Cols/Rows are 0 when the address leaves that extent open (e.g. "B2:E" or "B:E").
type A1 struct {
	Sheet string
	Col   int
	Row   int
	Cols  int
	Rows  int
}

var a1CellPattern = regexp.MustCompile(`^\$?([A-Za-z]*)\$?([0-9]*)$`)

// ParseA1 parses "Sheet!B2:E10", "'My Sheet'!B2", "B2:E" and similar addresses
func ParseA1(address string) (A1, error) {
	var a A1

	ref := address
	if i := strings.LastIndex(address, "!"); i >= 0 {
		a.Sheet = strings.Trim(address[:i], "'")
		a.Sheet = strings.ReplaceAll(a.Sheet, "''", "'")
		ref = address[i+1:]
	}
	if ref == "" {
		return a, fmt.Errorf("%w: empty address %q", ErrInvalidRange, address)
	}

	parts := strings.Split(ref, ":")
	if len(parts) > 2 {
		return a, fmt.Errorf("%w: %q", ErrInvalidRange, address)
	}

	startCol, startRow, err := parseA1Cell(parts[0])
	if err != nil {
		return a, fmt.Errorf("%w: %q", ErrInvalidRange, address)
	}
	if startCol < 0 {
		startCol = 0
	}
	if startRow < 0 {
		startRow = 0
	}
	a.Col, a.Row = startCol, startRow

	if len(parts) == 1 {
		a.Cols, a.Rows = 1, 1
		return a, nil
	}

	endCol, endRow, err := parseA1Cell(parts[1])
	if err != nil {
		return a, fmt.Errorf("%w: %q", ErrInvalidRange, address)
	}
	if endCol >= 0 {
		if endCol < a.Col {
			return a, fmt.Errorf("%w: %q", ErrInvalidRange, address)
		}
		a.Cols = endCol - a.Col + 1
	}
	if endRow >= 0 {
		if endRow < a.Row {
			return a, fmt.Errorf("%w: %q", ErrInvalidRange, address)
		}
		a.Rows = endRow - a.Row + 1
	}
	return a, nil
}

// parseA1Cell returns -1 for a missing column or row part
func parseA1Cell(ref string) (col, row int, err error) {
	m := a1CellPattern.FindStringSubmatch(ref)
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, 0, fmt.Errorf("bad cell reference %q", ref)
	}

	col, row = -1, -1
	if m[1] != "" {
		col = ColumnNumber(m[1]) - 1
	}
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("bad row in %q", ref)
		}
		row = n - 1
	}
	return col, row, nil
}

// ColumnName converts a column number to its letter name (1 -> A, 26 -> Z, 27 -> AA)
func ColumnName(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}

// ColumnNumber converts a letter name back to a column number (A -> 1)
func ColumnNumber(name string) int {
	n := 0
	for _, r := range strings.ToUpper(name) {
		n = n*26 + int(r-'A'+1)
	}
	return n
}

// CellName builds an A1 cell name from zero-based coordinates
func CellName(col, row int) string {
	return ColumnName(col+1) + strconv.Itoa(row+1)
}
