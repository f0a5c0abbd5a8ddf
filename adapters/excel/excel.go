package excel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	sheetorm "github.com/ideamans/go-sheetorm"
	"github.com/xuri/excelize/v2"
)

// Workbook implements sheetorm.Workbook over an Excel file. Changes stay in memory
// until Flush saves the file.
type Workbook struct {
	config Config
	path   string
	file   *excelize.File
	dirty  bool
	mu     sync.RWMutex
}

// New opens the Excel file named by config, or starts an empty workbook when the
// file doesn't exist yet
func New(config *Config) (*Workbook, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	path, err := filepath.Abs(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file path: %w", err)
	}

	var f *excelize.File
	if _, err := os.Stat(path); err == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFileFormat, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
	} else {
		return nil, fmt.Errorf("failed to stat Excel file: %w", err)
	}

	return &Workbook{
		config: *config,
		path:   path,
		file:   f,
	}, nil
}

// ID returns the absolute path of the file
func (w *Workbook) ID() string { return w.path }

// File exposes the underlying excelize file
func (w *Workbook) File() *excelize.File { return w.file }

// AddSheet creates a sheet unless it already exists
func (w *Workbook) AddSheet(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx, err := w.file.GetSheetIndex(name)
	if err != nil {
		return fmt.Errorf("failed to get sheet index: %w", err)
	}
	if idx >= 0 {
		return nil
	}
	if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	w.dirty = true
	return nil
}

// Range resolves a descriptor. Sheet descriptors span the used rows of the sheet;
// defined names and A1 addresses span their columns and the contiguous non-blank
// rows below their top-left cell.
func (w *Workbook) Range(ctx context.Context, desc sheetorm.RangeDescriptor) (sheetorm.Range, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if desc.Sheet != "" {
		if err := w.checkSheet(desc.Sheet); err != nil {
			return nil, err
		}
		return &Range{wb: w, sheet: desc.Sheet, whole: true}, nil
	}

	address := desc.A1
	if desc.Name != "" {
		found := false
		for _, dn := range w.file.GetDefinedName() {
			if dn.Name == desc.Name {
				address = strings.TrimPrefix(dn.RefersTo, "=")
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrNameNotFound, desc.Name)
		}
	}

	a, err := sheetorm.ParseA1(address)
	if err != nil {
		return nil, err
	}
	if a.Sheet == "" {
		a.Sheet = w.config.DefaultSheet
		if a.Sheet == "" {
			a.Sheet = w.file.GetSheetName(w.file.GetActiveSheetIndex())
		}
	}
	if err := w.checkSheet(a.Sheet); err != nil {
		return nil, err
	}

	return &Range{wb: w, sheet: a.Sheet, top: a.Row, left: a.Col, width: a.Cols}, nil
}

// Flush saves the file if anything changed since the last save
func (w *Workbook) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Check if context is cancelled
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !w.dirty {
		return nil
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	w.dirty = false
	return nil
}

// Close releases the file without saving
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Close()
}

func (w *Workbook) checkSheet(name string) error {
	idx, err := w.file.GetSheetIndex(name)
	if err != nil {
		return fmt.Errorf("failed to get sheet index: %w", err)
	}
	if idx == -1 {
		return fmt.Errorf("%w: %s", ErrSheetNotFound, name)
	}
	return nil
}

// Range is a live handle on part of a worksheet. Row insertion and deletion move
// whole worksheet rows, which keeps excelize's formula and defined name adjustments intact.
type Range struct {
	wb    *Workbook
	sheet string
	top   int
	left  int
	width int  // 0 when unbounded
	whole bool // spans the whole sheet
}

// Width returns the number of columns spanned, 0 when unbounded
func (r *Range) Width() int { return r.width }

func (r *Range) RowCount(ctx context.Context) (int, error) {
	r.wb.mu.RLock()
	defer r.wb.mu.RUnlock()

	rows, err := r.wb.file.GetRows(r.sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to get rows: %w", err)
	}

	if r.whole {
		n := len(rows)
		for n > 0 && r.blank(rows[n-1]) {
			n--
		}
		return n, nil
	}

	n := 0
	for row := r.top; row < len(rows) && !r.blank(rows[row]); row++ {
		n++
	}
	return n, nil
}

func (r *Range) ReadValues(ctx context.Context, rowOffset, rowCount int) ([][]interface{}, error) {
	r.wb.mu.RLock()
	defer r.wb.mu.RUnlock()

	rows, err := r.wb.file.GetRows(r.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	cols := r.columns(rows, 0, 0)
	out := make([][]interface{}, rowCount)
	for i := range out {
		out[i] = make([]interface{}, cols)
		row := r.top + rowOffset + i
		if row >= len(rows) {
			continue
		}
		for c := 0; c < cols; c++ {
			col := r.left + c
			if col >= len(rows[row]) || rows[row][col] == "" {
				continue
			}
			v, err := r.convert(sheetorm.CellName(col, row), rows[row][col])
			if err != nil {
				return nil, err
			}
			out[i][c] = v
		}
	}
	return out, nil
}

func (r *Range) ReadFormulas(ctx context.Context, rowOffset, colOffset, rowCount, colCount int) ([][]string, error) {
	r.wb.mu.RLock()
	defer r.wb.mu.RUnlock()

	cols := colCount
	if cols == 0 {
		rows, err := r.wb.file.GetRows(r.sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to get rows: %w", err)
		}
		cols = r.columns(rows, colOffset, 0)
	}

	out := make([][]string, rowCount)
	for i := range out {
		out[i] = make([]string, cols)
		for c := 0; c < cols; c++ {
			cell := sheetorm.CellName(r.left+colOffset+c, r.top+rowOffset+i)
			f, err := r.wb.file.GetCellFormula(r.sheet, cell)
			if err != nil {
				return nil, fmt.Errorf("failed to get formula of %s: %w", cell, err)
			}
			if f != "" {
				out[i][c] = "=" + strings.TrimPrefix(f, "=")
			}
		}
	}
	return out, nil
}

func (r *Range) WriteValues(ctx context.Context, rowOffset int, rows [][]interface{}) error {
	r.wb.mu.Lock()
	defer r.wb.mu.Unlock()

	for i, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			if r.width > 0 && c >= r.width {
				return fmt.Errorf("column %d is outside the %d columns of the range", c, r.width)
			}

			cell := sheetorm.CellName(r.left+c, r.top+rowOffset+i)
			if s, ok := v.(string); ok && strings.HasPrefix(s, "=") {
				if err := r.wb.file.SetCellFormula(r.sheet, cell, strings.TrimPrefix(s, "=")); err != nil {
					return fmt.Errorf("failed to write formula to %s: %w", cell, err)
				}
				continue
			}

			// A plain value replaces any formula held by the cell
			if err := r.wb.file.SetCellFormula(r.sheet, cell, ""); err != nil {
				return fmt.Errorf("failed to clear formula of %s: %w", cell, err)
			}
			if err := r.wb.file.SetCellValue(r.sheet, cell, v); err != nil {
				return fmt.Errorf("failed to write %s: %w", cell, err)
			}
		}
	}
	r.wb.dirty = true
	return nil
}

func (r *Range) InsertRows(ctx context.Context, rowOffset, count int) error {
	r.wb.mu.Lock()
	defer r.wb.mu.Unlock()

	if err := r.wb.file.InsertRows(r.sheet, r.top+rowOffset+1, count); err != nil {
		return fmt.Errorf("failed to insert rows: %w", err)
	}
	r.wb.dirty = true
	return nil
}

func (r *Range) DeleteRows(ctx context.Context, rowOffset, count int) error {
	r.wb.mu.Lock()
	defer r.wb.mu.Unlock()

	row := r.top + rowOffset + 1
	for i := 0; i < count; i++ {
		if err := r.wb.file.RemoveRow(r.sheet, row); err != nil {
			return fmt.Errorf("failed to remove row %d: %w", row, err)
		}
	}
	r.wb.dirty = true
	return nil
}

// SetCheckbox renders the cells as a TRUE/FALSE drop list, the closest Excel has
// to a checkbox, and fills blank cells with FALSE
func (r *Range) SetCheckbox(ctx context.Context, rowOffset, colOffset, rowCount int) error {
	r.wb.mu.Lock()
	defer r.wb.mu.Unlock()

	col := r.left + colOffset
	first := r.top + rowOffset
	last := first + rowCount - 1

	dv := excelize.NewDataValidation(true)
	dv.Sqref = sheetorm.CellName(col, first) + ":" + sheetorm.CellName(col, last)
	if err := dv.SetDropList([]string{"TRUE", "FALSE"}); err != nil {
		return fmt.Errorf("failed to build validation: %w", err)
	}
	if err := r.wb.file.AddDataValidation(r.sheet, dv); err != nil {
		return fmt.Errorf("failed to add validation: %w", err)
	}

	for row := first; row <= last; row++ {
		cell := sheetorm.CellName(col, row)
		v, err := r.wb.file.GetCellValue(r.sheet, cell)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", cell, err)
		}
		if v == "" {
			if err := r.wb.file.SetCellBool(r.sheet, cell, false); err != nil {
				return fmt.Errorf("failed to write %s: %w", cell, err)
			}
		}
	}
	r.wb.dirty = true
	return nil
}

// convert types a displayed cell string the way it was stored
func (r *Range) convert(cell, value string) (interface{}, error) {
	typ, err := r.wb.file.GetCellType(r.sheet, cell)
	if err != nil {
		return nil, fmt.Errorf("failed to get type of %s: %w", cell, err)
	}

	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return value, nil
	case excelize.CellTypeBool:
		return value == "1" || strings.EqualFold(value, "TRUE"), nil
	}

	// Try to parse as number first
	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		// Check if it's an integer
		if intVal := int64(floatVal); float64(intVal) == floatVal {
			return intVal, nil
		}
		return floatVal, nil
	}
	if value == "TRUE" || value == "FALSE" {
		return value == "TRUE", nil
	}
	return value, nil
}

// columns returns how many columns to read from colOffset
func (r *Range) columns(rows [][]string, colOffset, colCount int) int {
	if colCount > 0 {
		return colCount
	}
	width := r.width
	if width == 0 {
		used := 0
		for _, row := range rows {
			used = max(used, len(row))
		}
		width = used - r.left
	}
	return max(width-colOffset, 0)
}

func (r *Range) blank(row []string) bool {
	end := len(row)
	if r.width > 0 {
		end = min(end, r.left+r.width)
	}
	for c := r.left; c < end; c++ {
		if row[c] != "" {
			return false
		}
	}
	return true
}
