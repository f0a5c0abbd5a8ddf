package googlesheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	sheetorm "github.com/ideamans/go-sheetorm"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// lastColumn bounds reads of ranges without a right edge
const lastColumn = "ZZ"

// Workbook implements sheetorm.Workbook over a Google spreadsheet. Every call goes
// straight to the API; nothing is buffered.
type Workbook struct {
	service       *sheets.Service
	spreadsheetID string
}

// NewWorkbook creates a workbook handle with provided options
func NewWorkbook(ctx context.Context, config Config, opts ...option.ClientOption) (*Workbook, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Workbook{
		service:       service,
		spreadsheetID: config.SpreadsheetID,
	}, nil
}

// ID returns the spreadsheet ID
func (w *Workbook) ID() string { return w.spreadsheetID }

// Range resolves a descriptor. Sheet descriptors span the used rows of the sheet;
// named ranges and A1 addresses span their columns and the contiguous non-blank rows
// below their top-left cell.
func (w *Workbook) Range(ctx context.Context, desc sheetorm.RangeDescriptor) (sheetorm.Range, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	meta, err := w.service.Spreadsheets.Get(w.spreadsheetID).
		Fields(googleapi.Field("sheets.properties,namedRanges")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet metadata: %w", err)
	}

	byTitle := make(map[string]int64, len(meta.Sheets))
	byID := make(map[int64]string, len(meta.Sheets))
	for _, s := range meta.Sheets {
		if s.Properties == nil {
			continue
		}
		byTitle[s.Properties.Title] = s.Properties.SheetId
		byID[s.Properties.SheetId] = s.Properties.Title
	}

	switch {
	case desc.Sheet != "":
		id, ok := byTitle[desc.Sheet]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, desc.Sheet)
		}
		return &Range{wb: w, title: desc.Sheet, sheetID: id, whole: true}, nil

	case desc.Name != "":
		for _, nr := range meta.NamedRanges {
			if nr.Name != desc.Name || nr.Range == nil {
				continue
			}
			g := nr.Range
			title, ok := byID[g.SheetId]
			if !ok {
				return nil, fmt.Errorf("%w: sheet %d of named range %s", ErrSheetNotFound, g.SheetId, desc.Name)
			}
			width := 0
			if g.EndColumnIndex > g.StartColumnIndex {
				width = int(g.EndColumnIndex - g.StartColumnIndex)
			}
			return &Range{
				wb:      w,
				title:   title,
				sheetID: g.SheetId,
				top:     int(g.StartRowIndex),
				left:    int(g.StartColumnIndex),
				width:   width,
			}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNameNotFound, desc.Name)

	default:
		a, err := sheetorm.ParseA1(desc.A1)
		if err != nil {
			return nil, err
		}
		if a.Sheet == "" && len(meta.Sheets) > 0 && meta.Sheets[0].Properties != nil {
			a.Sheet = meta.Sheets[0].Properties.Title
		}
		id, ok := byTitle[a.Sheet]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, a.Sheet)
		}
		return &Range{wb: w, title: a.Sheet, sheetID: id, top: a.Row, left: a.Col, width: a.Cols}, nil
	}
}

// Range is a live handle on part of a sheet
type Range struct {
	wb      *Workbook
	title   string
	sheetID int64
	top     int
	left    int
	width   int  // 0 when unbounded
	whole   bool // spans the whole sheet
}

// Width returns the number of columns spanned, 0 when unbounded
func (r *Range) Width() int { return r.width }

func (r *Range) RowCount(ctx context.Context) (int, error) {
	readRange := quoteTitle(r.title)
	if !r.whole {
		readRange = r.address(0, 0, 0, r.width)
	}

	resp, err := r.wb.service.Spreadsheets.Values.Get(r.wb.spreadsheetID, readRange).
		ValueRenderOption("FORMULA").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet data: %w", err)
	}

	if r.whole {
		return len(resp.Values), nil
	}

	n := 0
	for _, row := range resp.Values {
		if blankRow(row) {
			break
		}
		n++
	}
	return n, nil
}

func (r *Range) ReadValues(ctx context.Context, rowOffset, rowCount int) ([][]interface{}, error) {
	if rowCount <= 0 {
		return [][]interface{}{}, nil
	}

	resp, err := r.wb.service.Spreadsheets.Values.Get(r.wb.spreadsheetID, r.address(rowOffset, 0, rowCount, r.width)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get sheet data: %w", err)
	}

	cols := r.width
	if cols == 0 {
		for _, row := range resp.Values {
			cols = max(cols, len(row))
		}
	}

	out := make([][]interface{}, rowCount)
	for i := range out {
		out[i] = make([]interface{}, cols)
		if i >= len(resp.Values) {
			continue
		}
		for c := 0; c < cols && c < len(resp.Values[i]); c++ {
			out[i][c] = convertCellValue(resp.Values[i][c])
		}
	}
	return out, nil
}

func (r *Range) ReadFormulas(ctx context.Context, rowOffset, colOffset, rowCount, colCount int) ([][]string, error) {
	if rowCount <= 0 {
		return [][]string{}, nil
	}

	cols := colCount
	if cols == 0 && r.width > 0 {
		cols = max(r.width-colOffset, 0)
	}

	resp, err := r.wb.service.Spreadsheets.Values.Get(r.wb.spreadsheetID, r.address(rowOffset, colOffset, rowCount, cols)).
		ValueRenderOption("FORMULA").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get formulas: %w", err)
	}

	if cols == 0 {
		for _, row := range resp.Values {
			cols = max(cols, len(row))
		}
	}

	out := make([][]string, rowCount)
	for i := range out {
		out[i] = make([]string, cols)
		if i >= len(resp.Values) {
			continue
		}
		for c := 0; c < cols && c < len(resp.Values[i]); c++ {
			if s, ok := resp.Values[i][c].(string); ok && strings.HasPrefix(s, "=") {
				out[i][c] = s
			}
		}
	}
	return out, nil
}

// WriteValues writes with USER_ENTERED input so "=" strings become formulas;
// the API skips null cells
func (r *Range) WriteValues(ctx context.Context, rowOffset int, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		if r.width > 0 && len(row) > r.width {
			return fmt.Errorf("row of %d cells exceeds the %d columns of the range", len(row), r.width)
		}
		values[i] = make([]interface{}, len(row))
		for c, v := range row {
			values[i][c] = convertToSheetValue(v)
		}
	}

	writeRange := quoteTitle(r.title) + "!" + sheetorm.CellName(r.left, r.top+rowOffset)
	_, err := r.wb.service.Spreadsheets.Values.Update(r.wb.spreadsheetID, writeRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update sheet: %w", err)
	}
	return nil
}

func (r *Range) InsertRows(ctx context.Context, rowOffset, count int) error {
	row := int64(r.top + rowOffset)

	req := &sheets.Request{}
	if r.width == 0 {
		req.InsertDimension = &sheets.InsertDimensionRequest{
			Range:             r.dimension(row, int64(count)),
			InheritFromBefore: row > 0,
		}
	} else {
		req.InsertRange = &sheets.InsertRangeRequest{
			Range:          r.grid(row, int64(count), int64(r.left), int64(r.width)),
			ShiftDimension: "ROWS",
		}
	}

	if err := r.batch(ctx, req); err != nil {
		return fmt.Errorf("failed to insert rows: %w", err)
	}
	return nil
}

func (r *Range) DeleteRows(ctx context.Context, rowOffset, count int) error {
	row := int64(r.top + rowOffset)

	req := &sheets.Request{}
	if r.width == 0 {
		req.DeleteDimension = &sheets.DeleteDimensionRequest{Range: r.dimension(row, int64(count))}
	} else {
		req.DeleteRange = &sheets.DeleteRangeRequest{
			Range:          r.grid(row, int64(count), int64(r.left), int64(r.width)),
			ShiftDimension: "ROWS",
		}
	}

	if err := r.batch(ctx, req); err != nil {
		return fmt.Errorf("failed to delete rows: %w", err)
	}
	return nil
}

// SetCheckbox applies a BOOLEAN validation, which Sheets renders as checkboxes
func (r *Range) SetCheckbox(ctx context.Context, rowOffset, colOffset, rowCount int) error {
	req := &sheets.Request{
		SetDataValidation: &sheets.SetDataValidationRequest{
			Range: r.grid(int64(r.top+rowOffset), int64(rowCount), int64(r.left+colOffset), 1),
			Rule: &sheets.DataValidationRule{
				Condition: &sheets.BooleanCondition{Type: "BOOLEAN"},
			},
		},
	}

	if err := r.batch(ctx, req); err != nil {
		return fmt.Errorf("failed to set checkboxes: %w", err)
	}
	return nil
}

func (r *Range) batch(ctx context.Context, reqs ...*sheets.Request) error {
	_, err := r.wb.service.Spreadsheets.BatchUpdate(r.wb.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	return err
}

func (r *Range) dimension(start, count int64) *sheets.DimensionRange {
	return &sheets.DimensionRange{
		SheetId:         r.sheetID,
		Dimension:       "ROWS",
		StartIndex:      start,
		EndIndex:        start + count,
		ForceSendFields: []string{"SheetId", "StartIndex"},
	}
}

func (r *Range) grid(row, rows, col, cols int64) *sheets.GridRange {
	return &sheets.GridRange{
		SheetId:          r.sheetID,
		StartRowIndex:    row,
		EndRowIndex:      row + rows,
		StartColumnIndex: col,
		EndColumnIndex:   col + cols,
		ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
	}
}

// address builds an A1 range relative to the range origin. A rowCount of 0 leaves
// the bottom open; a colCount of 0 reads through lastColumn.
func (r *Range) address(rowOffset, colOffset, rowCount, colCount int) string {
	startCol := r.left + colOffset
	startRow := r.top + rowOffset

	endCol := lastColumn
	if colCount > 0 {
		endCol = sheetorm.ColumnName(startCol + colCount)
	}
	end := endCol
	if rowCount > 0 {
		end += strconv.Itoa(startRow + rowCount)
	}

	return fmt.Sprintf("%s!%s:%s", quoteTitle(r.title), sheetorm.CellName(startCol, startRow), end)
}

func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func blankRow(row []interface{}) bool {
	for _, v := range row {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		if v != nil {
			return false
		}
	}
	return true
}

// convertCellValue converts an unformatted Google Sheets cell value to Go type
func convertCellValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		return val
	case float64:
		// Check if it's actually an integer
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	case bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// convertToSheetValue converts a Go value to a USER_ENTERED cell value
func convertToSheetValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case string, bool, float64, float32:
		return val
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return val
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	case sheetorm.Link:
		return val.Formula()
	default:
		return fmt.Sprintf("%v", val)
	}
}
