package excel

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	sheetorm "github.com/ideamans/go-sheetorm"
	"github.com/ideamans/go-sheetorm/internal/adaptertest"
	"github.com/xuri/excelize/v2"
)

var userSchema = sheetorm.Schema{
	"id":     sheetorm.NumberCol(sheetorm.Named("id")).Key(),
	"name":   sheetorm.StringCol(sheetorm.Named("name")),
	"age":    sheetorm.NumberCol(sheetorm.Named("age")),
	"active": sheetorm.BoolCol(sheetorm.Named("active")),
}

// seedFile writes a Users sheet with a header row and two records
func seedFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.xlsx")
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet("Users"); err != nil {
		t.Fatalf("Failed to create sheet: %v", err)
	}
	rows := [][]interface{}{
		{"id", "name", "age", "active"},
		{1, "alice", 30, true},
		{2, "bob", 25, false},
	}
	for i, row := range rows {
		if err := f.SetSheetRow("Users", sheetorm.CellName(0, i), &row); err != nil {
			t.Fatalf("Failed to write row %d: %v", i, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save seed file: %v", err)
	}
	return path
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "valid config for a new file",
			config:  &Config{FilePath: filepath.Join(t.TempDir(), "new.xlsx")},
			wantErr: false,
		},
		{
			name:    "missing file path",
			config:  &Config{},
			wantErr: true,
		},
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAdapterSuite(t *testing.T) {
	adaptertest.Run(t, func(t *testing.T) adaptertest.WorkbookCase {
		path := filepath.Join(t.TempDir(), "suite.xlsx")
		wb, err := New(&Config{FilePath: path})
		if err != nil {
			t.Fatalf("Failed to create workbook: %v", err)
		}
		return adaptertest.WorkbookCase{
			Name:        "Excel",
			Workbook:    wb,
			Sheet:       "Sheet1",
			Description: "Excel file: " + path,
		}
	})
}

func TestWorkbook_ID(t *testing.T) {
	path := seedFile(t)

	wb, err := New(&Config{FilePath: path})
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer wb.Close()

	if !filepath.IsAbs(wb.ID()) {
		t.Errorf("ID() = %q, want an absolute path", wb.ID())
	}
}

func TestWorkbook_Range(t *testing.T) {
	path := seedFile(t)
	ctx := context.Background()

	wb, err := New(&Config{FilePath: path})
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer wb.Close()

	if err := wb.File().SetDefinedName(&excelize.DefinedName{Name: "People", RefersTo: "Users!$A$1:$D$1"}); err != nil {
		t.Fatalf("Failed to define name: %v", err)
	}

	tests := []struct {
		name     string
		desc     sheetorm.RangeDescriptor
		wantRows int
		wantErr  error
	}{
		{name: "whole sheet", desc: sheetorm.SheetRange("Users"), wantRows: 3},
		{name: "defined name", desc: sheetorm.NamedRange("People"), wantRows: 3},
		{name: "address", desc: sheetorm.A1Range("Users!B2:C"), wantRows: 2},
		{name: "missing sheet", desc: sheetorm.SheetRange("Nope"), wantErr: ErrSheetNotFound},
		{name: "missing name", desc: sheetorm.NamedRange("Nope"), wantErr: ErrNameNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng, err := wb.Range(ctx, tt.desc)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Range() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Range() error = %v", err)
			}
			rows, err := rng.RowCount(ctx)
			if err != nil {
				t.Fatalf("RowCount() error = %v", err)
			}
			if rows != tt.wantRows {
				t.Errorf("RowCount() = %d, want %d", rows, tt.wantRows)
			}
		})
	}
}

func TestWorkbook_TableRoundTrip(t *testing.T) {
	path := seedFile(t)
	ctx := context.Background()

	wb, err := New(&Config{FilePath: path})
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}

	table, err := sheetorm.NewTable(ctx, wb, sheetorm.SheetRange("Users"), userSchema, nil)
	if err != nil {
		t.Fatalf("Failed to bind table: %v", err)
	}

	t.Run("Read typed values", func(t *testing.T) {
		items, err := table.Read(ctx)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("Read() returned %d items, want 2", len(items))
		}
		if got := items[0]["id"]; got != int64(1) {
			t.Errorf("id = %v (%T), want int64 1", got, got)
		}
		if got := items[0]["name"]; got != "alice" {
			t.Errorf("name = %v, want alice", got)
		}
		if got := items[0]["active"]; got != true {
			t.Errorf("active = %v (%T), want true", got, got)
		}
		if got := items[1]["active"]; got != false {
			t.Errorf("active = %v (%T), want false", got, got)
		}
	})

	t.Run("Append and delete", func(t *testing.T) {
		err := table.Append(ctx, sheetorm.Entity{"id": 3, "name": "carol", "age": 41, "active": true})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if err := table.DeleteAt(ctx, 0, 1); err != nil {
			t.Fatalf("DeleteAt() error = %v", err)
		}
		if table.Count() != 2 {
			t.Errorf("Count() = %d, want 2", table.Count())
		}
	})

	if err := wb.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := wb.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to reopen file: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Users")
	if err != nil {
		t.Fatalf("Failed to get rows: %v", err)
	}
	want := [][]string{
		{"id", "name", "age", "active"},
		{"2", "bob", "25", "FALSE"},
		{"3", "carol", "41", "TRUE"},
	}
	if len(rows) != len(want) {
		t.Fatalf("file has %d rows, want %d: %v", len(rows), len(want), rows)
	}
	for i := range want {
		for j := range want[i] {
			if j >= len(rows[i]) || rows[i][j] != want[i][j] {
				t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
				break
			}
		}
	}

	dvs, err := f.GetDataValidations("Users")
	if err != nil {
		t.Fatalf("Failed to get data validations: %v", err)
	}
	if len(dvs) == 0 {
		t.Error("expected a checkbox validation on the active column")
	}
}

func TestWorkbook_FormulaRelocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "totals.xlsx")
	ctx := context.Background()

	wb, err := New(&Config{FilePath: path})
	if err != nil {
		t.Fatalf("Failed to create workbook: %v", err)
	}
	defer wb.Close()

	f := wb.File()
	if err := f.SetSheetRow("Sheet1", "A1", &[]interface{}{"a", "b", "total"}); err != nil {
		t.Fatalf("Failed to write header: %v", err)
	}
	if err := f.SetSheetRow("Sheet1", "A2", &[]interface{}{1, 2}); err != nil {
		t.Fatalf("Failed to write row: %v", err)
	}
	if err := f.SetCellFormula("Sheet1", "C2", "A2+B2"); err != nil {
		t.Fatalf("Failed to write formula: %v", err)
	}

	schema := sheetorm.Schema{
		"a":     sheetorm.NumberCol(sheetorm.Named("a")),
		"b":     sheetorm.NumberCol(sheetorm.Named("b")),
		"total": sheetorm.NumberCol(sheetorm.Named("total")).AsFormula(),
	}
	table, err := sheetorm.NewTable(ctx, wb, sheetorm.SheetRange("Sheet1"), schema, nil)
	if err != nil {
		t.Fatalf("Failed to bind table: %v", err)
	}

	if err := table.Append(ctx, sheetorm.Entity{"a": 3, "b": 4}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := f.GetCellFormula("Sheet1", "C3")
	if err != nil {
		t.Fatalf("Failed to read formula: %v", err)
	}
	if got != "A3+B3" && got != "=A3+B3" {
		t.Errorf("C3 formula = %q, want A3+B3", got)
	}
}

func TestWorkbook_FlushCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.xlsx")
	ctx := context.Background()

	wb, err := New(&Config{FilePath: path})
	if err != nil {
		t.Fatalf("Failed to create workbook: %v", err)
	}
	defer wb.Close()

	if err := wb.AddSheet("Data"); err != nil {
		t.Fatalf("AddSheet() error = %v", err)
	}
	if err := wb.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to open saved file: %v", err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex("Data")
	if err != nil || idx < 0 {
		t.Errorf("saved file lacks the Data sheet (index %d, err %v)", idx, err)
	}
}
