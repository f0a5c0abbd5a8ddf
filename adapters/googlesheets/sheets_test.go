package googlesheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	sheetorm "github.com/ideamans/go-sheetorm"
	"github.com/ideamans/go-sheetorm/internal/adaptertest"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const testMetadata = `{
	"spreadsheetId": "test-id",
	"sheets": [
		{"properties": {"sheetId": 0, "title": "Users"}},
		{"properties": {"sheetId": 7, "title": "Log"}}
	],
	"namedRanges": [
		{"namedRangeId": "nr1", "name": "People", "range": {"sheetId": 7, "startRowIndex": 1, "endRowIndex": 2, "startColumnIndex": 1, "endColumnIndex": 4}}
	]
}`

// fakeSheets serves a single grid for every sheet and records the mutations it receives
type fakeSheets struct {
	mu       sync.Mutex
	grid     [][]interface{}
	requests []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const base = "/v4/spreadsheets/test-id"
	switch {
	case r.Method == http.MethodGet && r.URL.Path == base:
		w.Write([]byte(testMetadata))

	case r.Method == http.MethodPost && r.URL.Path == base+":batchUpdate":
		var req sheets.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, q := range req.Requests {
			f.apply(q)
		}
		w.Write([]byte(`{"spreadsheetId": "test-id"}`))

	case strings.HasPrefix(r.URL.Path, base+"/values/"):
		rng := strings.TrimPrefix(r.URL.Path, base+"/values/")
		switch r.Method {
		case http.MethodGet:
			f.get(w, rng)
		case http.MethodPut:
			var vr sheets.ValueRange
			if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.put(rng, vr.Values)
			f.requests = append(f.requests, "update "+rng+" "+r.URL.Query().Get("valueInputOption"))
			w.Write([]byte(`{"updatedCells": 1}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeSheets) get(w http.ResponseWriter, rng string) {
	rows := f.grid
	if strings.Contains(rng, "!") {
		a, err := sheetorm.ParseA1(rng)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		rows = nil
		for r := a.Row; r < len(f.grid) && (a.Rows == 0 || r < a.Row+a.Rows); r++ {
			var row []interface{}
			for c := a.Col; c < len(f.grid[r]) && (a.Cols == 0 || c < a.Col+a.Cols); c++ {
				row = append(row, f.grid[r][c])
			}
			rows = append(rows, row)
		}
	}

	// the API trims trailing blanks
	out := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		n := len(row)
		for n > 0 && (row[n-1] == nil || row[n-1] == "") {
			n--
		}
		out = append(out, append([]interface{}{}, row[:n]...))
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"range":          rng,
		"majorDimension": "ROWS",
		"values":         out,
	})
}

func (f *fakeSheets) put(rng string, values [][]interface{}) {
	a, _ := sheetorm.ParseA1(rng)
	for i, row := range values {
		r := a.Row + i
		for len(f.grid) <= r {
			f.grid = append(f.grid, nil)
		}
		for c, v := range row {
			if v == nil {
				continue
			}
			col := a.Col + c
			for len(f.grid[r]) <= col {
				f.grid[r] = append(f.grid[r], nil)
			}
			f.grid[r][col] = v
		}
	}
}

func (f *fakeSheets) apply(q *sheets.Request) {
	switch {
	case q.InsertDimension != nil:
		d := q.InsertDimension.Range
		f.requests = append(f.requests, fmt.Sprintf("insertDimension %d-%d", d.StartIndex, d.EndIndex))
		blank := make([][]interface{}, d.EndIndex-d.StartIndex)
		at := min(int(d.StartIndex), len(f.grid))
		f.grid = append(f.grid[:at], append(blank, f.grid[at:]...)...)
	case q.DeleteDimension != nil:
		d := q.DeleteDimension.Range
		f.requests = append(f.requests, fmt.Sprintf("deleteDimension %d-%d", d.StartIndex, d.EndIndex))
		end := min(int(d.EndIndex), len(f.grid))
		f.grid = append(f.grid[:d.StartIndex], f.grid[end:]...)
	case q.InsertRange != nil:
		g := q.InsertRange.Range
		f.requests = append(f.requests, fmt.Sprintf("insertRange %d %d-%d %d-%d %s",
			g.SheetId, g.StartRowIndex, g.EndRowIndex, g.StartColumnIndex, g.EndColumnIndex, q.InsertRange.ShiftDimension))
	case q.DeleteRange != nil:
		g := q.DeleteRange.Range
		f.requests = append(f.requests, fmt.Sprintf("deleteRange %d %d-%d %d-%d %s",
			g.SheetId, g.StartRowIndex, g.EndRowIndex, g.StartColumnIndex, g.EndColumnIndex, q.DeleteRange.ShiftDimension))
	case q.SetDataValidation != nil:
		g := q.SetDataValidation.Range
		f.requests = append(f.requests, fmt.Sprintf("setDataValidation %s col %d rows %d-%d",
			q.SetDataValidation.Rule.Condition.Type, g.StartColumnIndex, g.StartRowIndex, g.EndRowIndex))
	}
}

func newTestWorkbook(t *testing.T, fake *fakeSheets) *Workbook {
	t.Helper()

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	wb, err := NewWorkbook(context.Background(), Config{SpreadsheetID: "test-id"},
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("Failed to create workbook: %v", err)
	}
	return wb
}

func TestAdapterSuite(t *testing.T) {
	adaptertest.Run(t, func(t *testing.T) adaptertest.WorkbookCase {
		return adaptertest.WorkbookCase{
			Name:     "GoogleSheets",
			Workbook: newTestWorkbook(t, &fakeSheets{}),
			Sheet:    "Users",
		}
	})
}

func TestNewWorkbook_Validate(t *testing.T) {
	_, err := NewWorkbook(context.Background(), Config{}, option.WithoutAuthentication())
	if !errors.Is(err, ErrMissingSpreadsheetID) {
		t.Errorf("NewWorkbook() error = %v, want %v", err, ErrMissingSpreadsheetID)
	}
}

func TestWorkbook_Range(t *testing.T) {
	wb := newTestWorkbook(t, &fakeSheets{})
	ctx := context.Background()

	tests := []struct {
		name    string
		desc    sheetorm.RangeDescriptor
		want    Range
		wantErr error
	}{
		{
			name: "whole sheet",
			desc: sheetorm.SheetRange("Users"),
			want: Range{title: "Users", sheetID: 0, whole: true},
		},
		{
			name: "named range",
			desc: sheetorm.NamedRange("People"),
			want: Range{title: "Log", sheetID: 7, top: 1, left: 1, width: 3},
		},
		{
			name: "address",
			desc: sheetorm.A1Range("Log!C5:D"),
			want: Range{title: "Log", sheetID: 7, top: 4, left: 2, width: 2},
		},
		{
			name: "address without sheet uses the first sheet",
			desc: sheetorm.A1Range("B2:B"),
			want: Range{title: "Users", sheetID: 0, top: 1, left: 1, width: 1},
		},
		{
			name:    "missing sheet",
			desc:    sheetorm.SheetRange("Nope"),
			wantErr: ErrSheetNotFound,
		},
		{
			name:    "missing named range",
			desc:    sheetorm.NamedRange("Nope"),
			wantErr: ErrNameNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wb.Range(ctx, tt.desc)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Range() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Range() error = %v", err)
			}
			r := got.(*Range)
			r.wb = nil
			if *r != tt.want {
				t.Errorf("Range() = %+v, want %+v", *r, tt.want)
			}
		})
	}
}

func TestWorkbook_Table(t *testing.T) {
	fake := &fakeSheets{grid: [][]interface{}{
		{"id", "name", "active"},
		{1, "alice", true},
		{2, "bob", false},
	}}
	wb := newTestWorkbook(t, fake)
	ctx := context.Background()

	schema := sheetorm.Schema{
		"id":     sheetorm.NumberCol(sheetorm.Named("id")).Key(),
		"name":   sheetorm.StringCol(sheetorm.Named("name")),
		"active": sheetorm.BoolCol(sheetorm.Named("active")),
	}
	table, err := sheetorm.NewTable(ctx, wb, sheetorm.SheetRange("Users"), schema, nil)
	if err != nil {
		t.Fatalf("Failed to bind table: %v", err)
	}
	if table.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", table.Count())
	}

	items, err := table.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := []sheetorm.Entity{
		{"id": int64(1), "name": "alice", "active": true},
		{"id": int64(2), "name": "bob", "active": false},
	}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("Read() = %v, want %v", items, want)
	}

	if err := table.Append(ctx, sheetorm.Entity{"id": 3, "name": "carol"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := table.DeleteAt(ctx, 0, 1); err != nil {
		t.Fatalf("DeleteAt() error = %v", err)
	}

	wantRequests := []string{
		"insertDimension 3-4",
		"setDataValidation BOOLEAN col 2 rows 3-4",
		"update 'Users'!A4 USER_ENTERED",
		"deleteDimension 1-2",
	}
	if !reflect.DeepEqual(fake.requests, wantRequests) {
		t.Errorf("requests = %v, want %v", fake.requests, wantRequests)
	}

	items, err = table.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(items) != 2 || items[0]["name"] != "bob" || items[1]["name"] != "carol" {
		t.Errorf("Read() after mutations = %v", items)
	}
	if items[1]["id"] != int64(3) {
		t.Errorf("appended id = %v (%T), want int64 3", items[1]["id"], items[1]["id"])
	}
}

func TestRange_BoundedShift(t *testing.T) {
	fake := &fakeSheets{}
	wb := newTestWorkbook(t, fake)
	ctx := context.Background()

	rng, err := wb.Range(ctx, sheetorm.NamedRange("People"))
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}

	if err := rng.InsertRows(ctx, 1, 2); err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}
	if err := rng.DeleteRows(ctx, 0, 1); err != nil {
		t.Fatalf("DeleteRows() error = %v", err)
	}

	want := []string{
		"insertRange 7 2-4 1-4 ROWS",
		"deleteRange 7 1-2 1-4 ROWS",
	}
	if !reflect.DeepEqual(fake.requests, want) {
		t.Errorf("requests = %v, want %v", fake.requests, want)
	}
}

func TestRange_ReadFormulas(t *testing.T) {
	fake := &fakeSheets{grid: [][]interface{}{
		{"a", "b", "total"},
		{1, 2, "=A2+B2"},
	}}
	wb := newTestWorkbook(t, fake)
	ctx := context.Background()

	rng, err := wb.Range(ctx, sheetorm.SheetRange("Users"))
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}

	got, err := rng.ReadFormulas(ctx, 1, 0, 1, 0)
	if err != nil {
		t.Fatalf("ReadFormulas() error = %v", err)
	}
	want := [][]string{{"", "", "=A2+B2"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadFormulas() = %q, want %q", got, want)
	}
}

func TestConvertCellValue(t *testing.T) {
	tests := []struct {
		input    interface{}
		expected interface{}
	}{
		{"hello", "hello"},
		{"", nil},
		{nil, nil},
		{float64(42), int64(42)},
		{float64(3.14), float64(3.14)},
		{true, true},
		{false, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.input), func(t *testing.T) {
			result := convertCellValue(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("convertCellValue(%v) = %v (%T), want %v (%T)",
					tt.input, result, result, tt.expected, tt.expected)
			}
		})
	}
}

func TestConvertToSheetValue(t *testing.T) {
	tests := []struct {
		input    interface{}
		expected interface{}
	}{
		{nil, nil},
		{"hello", "hello"},
		{42, 42},
		{3.14, 3.14},
		{true, true},
		{time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC), "2024-05-01 09:30:00"},
		{sheetorm.Link{URL: "https://example.com", Label: "ex"}, `=HYPERLINK("https://example.com","ex")`},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.input), func(t *testing.T) {
			result := convertToSheetValue(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("convertToSheetValue(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}
