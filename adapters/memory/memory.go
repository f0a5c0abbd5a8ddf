// Package memory provides an in-process workbook. It keeps values and formula text
// without evaluating anything, and journals every mutation so callers can assert
// the order in which a table touched it.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	sheetorm "github.com/ideamans/go-sheetorm"
)

// MutationKind names a journaled mutation
type MutationKind string

const (
	MutationInsert   MutationKind = "insert"
	MutationDelete   MutationKind = "delete"
	MutationWrite    MutationKind = "write"
	MutationCheckbox MutationKind = "checkbox"
)

// Mutation is one journaled change. Row is the zero-based sheet row.
type Mutation struct {
	Kind  MutationKind
	Sheet string
	Row   int
	Count int
}

type cell struct {
	value    interface{}
	formula  string
	checkbox bool
}

func (c cell) blank() bool {
	if c.formula != "" {
		return false
	}
	if s, ok := c.value.(string); ok {
		return s == ""
	}
	return c.value == nil
}

type sheet struct {
	rows [][]cell
}

// Workbook is an in-memory sheetorm.Workbook
type Workbook struct {
	id      string
	mu      sync.RWMutex
	sheets  map[string]*sheet
	names   map[string]string
	journal []Mutation
	faults  map[MutationKind]error
}

// New creates an empty workbook with a random identity
func New() *Workbook {
	return NewWithID(uuid.NewString())
}

// NewWithID creates an empty workbook with a fixed identity
func NewWithID(id string) *Workbook {
	return &Workbook{
		id:     id,
		sheets: make(map[string]*sheet),
		names:  make(map[string]string),
		faults: make(map[MutationKind]error),
	}
}

// ID returns the workbook identity
func (w *Workbook) ID() string { return w.id }

// AddSheet creates an empty sheet if it does not exist
func (w *Workbook) AddSheet(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.sheets[name]; !ok {
		w.sheets[name] = &sheet{}
	}
}

// SetRows replaces the content of a sheet, creating it if needed. Strings
// starting with "=" are stored as formulas.
func (w *Workbook) SetRows(name string, rows [][]interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := &sheet{rows: make([][]cell, len(rows))}
	for r, row := range rows {
		s.rows[r] = make([]cell, len(row))
		for c, v := range row {
			s.rows[r][c] = newCell(v)
		}
	}
	w.sheets[name] = s
}

// Rows returns the stored values of a sheet up to its last non-blank row.
// Formula cells report their formula text.
func (w *Workbook) Rows(name string) [][]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s, ok := w.sheets[name]
	if !ok {
		return nil
	}
	n := s.usedRows()
	out := make([][]interface{}, n)
	for r := 0; r < n; r++ {
		row := s.rows[r]
		last := len(row)
		for last > 0 && row[last-1].blank() {
			last--
		}
		out[r] = make([]interface{}, last)
		for c := 0; c < last; c++ {
			if row[c].formula != "" {
				out[r][c] = row[c].formula
			} else {
				out[r][c] = row[c].value
			}
		}
	}
	return out
}

// IsCheckbox reports whether a cell was rendered as a checkbox
func (w *Workbook) IsCheckbox(name string, col, row int) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s, ok := w.sheets[name]
	if !ok {
		return false
	}
	return s.get(row, col).checkbox
}

// DefineName registers a named range pointing at an A1 address
func (w *Workbook) DefineName(name, address string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.names[name] = address
}

// Journal returns the mutations applied so far
func (w *Workbook) Journal() []Mutation {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Mutation, len(w.journal))
	copy(out, w.journal)
	return out
}

// ResetJournal clears the mutation journal
func (w *Workbook) ResetJournal() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.journal = nil
}

// FailOn makes every mutation of the given kind fail with err; a nil err clears it
func (w *Workbook) FailOn(kind MutationKind, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err == nil {
		delete(w.faults, kind)
		return
	}
	w.faults[kind] = err
}

// Range resolves a descriptor. Sheet descriptors span the used rows of the whole sheet;
// named and A1 descriptors span their columns and the contiguous non-blank rows below
// their top-left cell.
func (w *Workbook) Range(ctx context.Context, desc sheetorm.RangeDescriptor) (sheetorm.Range, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if desc.Sheet != "" {
		if _, ok := w.sheets[desc.Sheet]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, desc.Sheet)
		}
		return &Range{wb: w, sheet: desc.Sheet, whole: true}, nil
	}

	address := desc.A1
	if desc.Name != "" {
		var ok bool
		if address, ok = w.names[desc.Name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNameNotFound, desc.Name)
		}
	}

	a, err := sheetorm.ParseA1(address)
	if err != nil {
		return nil, err
	}
	if a.Sheet == "" {
		return nil, fmt.Errorf("%w: address %q has no sheet", sheetorm.ErrInvalidRange, address)
	}
	if _, ok := w.sheets[a.Sheet]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, a.Sheet)
	}

	return &Range{wb: w, sheet: a.Sheet, top: a.Row, left: a.Col, width: a.Cols}, nil
}

// Range is a live handle on part of a memory sheet
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

	s := r.wb.sheets[r.sheet]
	if r.whole {
		return s.usedRows(), nil
	}

	n := 0
	for row := r.top; row < len(s.rows); row++ {
		if r.rowBlank(s, row) {
			break
		}
		n++
	}
	return n, nil
}

func (r *Range) ReadValues(ctx context.Context, rowOffset, rowCount int) ([][]interface{}, error) {
	r.wb.mu.RLock()
	defer r.wb.mu.RUnlock()

	s := r.wb.sheets[r.sheet]
	cols := r.columns(s, 0, 0)
	out := make([][]interface{}, rowCount)
	for i := range out {
		out[i] = make([]interface{}, cols)
		for c := 0; c < cols; c++ {
			v := s.get(r.top+rowOffset+i, r.left+c).value
			if str, ok := v.(string); ok && str == "" {
				v = nil
			}
			out[i][c] = v
		}
	}
	return out, nil
}

func (r *Range) ReadFormulas(ctx context.Context, rowOffset, colOffset, rowCount, colCount int) ([][]string, error) {
	r.wb.mu.RLock()
	defer r.wb.mu.RUnlock()

	s := r.wb.sheets[r.sheet]
	cols := r.columns(s, colOffset, colCount)
	out := make([][]string, rowCount)
	for i := range out {
		out[i] = make([]string, cols)
		for c := 0; c < cols; c++ {
			out[i][c] = s.get(r.top+rowOffset+i, r.left+colOffset+c).formula
		}
	}
	return out, nil
}

func (r *Range) WriteValues(ctx context.Context, rowOffset int, rows [][]interface{}) error {
	r.wb.mu.Lock()
	defer r.wb.mu.Unlock()

	if err := r.wb.record(MutationWrite, r.sheet, r.top+rowOffset, len(rows)); err != nil {
		return err
	}

	s := r.wb.sheets[r.sheet]
	for i, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			if r.width > 0 && c >= r.width {
				return fmt.Errorf("column %d is outside the %d columns of the range", c, r.width)
			}
			at := s.ref(r.top+rowOffset+i, r.left+c)
			nc := newCell(v)
			nc.checkbox = at.checkbox
			*at = nc
		}
	}
	return nil
}

func (r *Range) InsertRows(ctx context.Context, rowOffset, count int) error {
	r.wb.mu.Lock()
	defer r.wb.mu.Unlock()

	row := r.top + rowOffset
	if err := r.wb.record(MutationInsert, r.sheet, row, count); err != nil {
		return err
	}

	s := r.wb.sheets[r.sheet]
	if r.width == 0 {
		for len(s.rows) < row {
			s.rows = append(s.rows, nil)
		}
		blank := make([][]cell, count)
		s.rows = append(s.rows[:row], append(blank, s.rows[row:]...)...)
		return nil
	}

	// shift only the cells of the range's columns
	last := len(s.rows) - 1
	for src := last; src >= row; src-- {
		for c := r.left; c < r.left+r.width; c++ {
			*s.ref(src+count, c) = s.get(src, c)
		}
	}
	for dst := row; dst < row+count; dst++ {
		for c := r.left; c < r.left+r.width; c++ {
			*s.ref(dst, c) = cell{}
		}
	}
	return nil
}

func (r *Range) DeleteRows(ctx context.Context, rowOffset, count int) error {
	r.wb.mu.Lock()
	defer r.wb.mu.Unlock()

	row := r.top + rowOffset
	if err := r.wb.record(MutationDelete, r.sheet, row, count); err != nil {
		return err
	}

	s := r.wb.sheets[r.sheet]
	if row >= len(s.rows) {
		return nil
	}
	if r.width == 0 {
		end := min(row+count, len(s.rows))
		s.rows = append(s.rows[:row], s.rows[end:]...)
		return nil
	}

	last := len(s.rows) - 1
	for dst := row; dst <= last; dst++ {
		for c := r.left; c < r.left+r.width; c++ {
			*s.ref(dst, c) = s.get(dst+count, c)
		}
	}
	return nil
}

func (r *Range) SetCheckbox(ctx context.Context, rowOffset, colOffset, rowCount int) error {
	r.wb.mu.Lock()
	defer r.wb.mu.Unlock()

	if err := r.wb.record(MutationCheckbox, r.sheet, r.top+rowOffset, rowCount); err != nil {
		return err
	}

	s := r.wb.sheets[r.sheet]
	for i := 0; i < rowCount; i++ {
		at := s.ref(r.top+rowOffset+i, r.left+colOffset)
		at.checkbox = true
		if at.blank() {
			at.value = false
		}
	}
	return nil
}

// columns returns how many columns to read from colOffset
func (r *Range) columns(s *sheet, colOffset, colCount int) int {
	if colCount > 0 {
		return colCount
	}
	width := r.width
	if width == 0 {
		width = s.usedCols() - r.left
	}
	return max(width-colOffset, 0)
}

func (r *Range) rowBlank(s *sheet, row int) bool {
	if row >= len(s.rows) {
		return true
	}
	end := len(s.rows[row])
	if r.width > 0 {
		end = min(end, r.left+r.width)
	}
	for c := r.left; c < end; c++ {
		if !s.rows[row][c].blank() {
			return false
		}
	}
	return true
}

func (w *Workbook) record(kind MutationKind, sheet string, row, count int) error {
	if err := w.faults[kind]; err != nil {
		return err
	}
	w.journal = append(w.journal, Mutation{Kind: kind, Sheet: sheet, Row: row, Count: count})
	return nil
}

func newCell(v interface{}) cell {
	if s, ok := v.(string); ok && strings.HasPrefix(s, "=") {
		return cell{value: s, formula: s}
	}
	return cell{value: v}
}

func (s *sheet) get(row, col int) cell {
	if row < 0 || row >= len(s.rows) || col < 0 || col >= len(s.rows[row]) {
		return cell{}
	}
	return s.rows[row][col]
}

func (s *sheet) ref(row, col int) *cell {
	for len(s.rows) <= row {
		s.rows = append(s.rows, nil)
	}
	for len(s.rows[row]) <= col {
		s.rows[row] = append(s.rows[row], cell{})
	}
	return &s.rows[row][col]
}

func (s *sheet) usedRows() int {
	n := len(s.rows)
	for n > 0 {
		blank := true
		for _, c := range s.rows[n-1] {
			if !c.blank() {
				blank = false
				break
			}
		}
		if !blank {
			break
		}
		n--
	}
	return n
}

func (s *sheet) usedCols() int {
	n := 0
	for _, row := range s.rows {
		for c := len(row) - 1; c >= 0; c-- {
			if !row[c].blank() {
				n = max(n, c+1)
				break
			}
		}
	}
	return n
}
