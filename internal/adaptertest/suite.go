// Package adaptertest runs the same table and managed-table scenarios against
// any sheetorm.Workbook implementation.
package adaptertest

import (
	"context"
	"errors"
	"testing"

	sheetorm "github.com/ideamans/go-sheetorm"
)

// WorkbookCase is one adapter under test
type WorkbookCase struct {
	Name        string
	Workbook    sheetorm.Workbook
	Sheet       string // an existing sheet the suite may overwrite
	Description string
}

// Schema is the layout seeded by Seed
var Schema = sheetorm.Schema{
	"id":     sheetorm.SequenceCol(sheetorm.Named("id")).Key(),
	"name":   sheetorm.StringCol(sheetorm.Named("name")),
	"score":  sheetorm.NumberCol(sheetorm.Named("score")),
	"active": sheetorm.BoolCol(sheetorm.Named("active")),
}

// Rows is the content written by Seed, header first
var Rows = [][]interface{}{
	{"id", "name", "score", "active"},
	{1, "alice", 90, true},
	{2, "bob", 75, false},
	{3, "carol", 82, true},
}

// Seed clears the sheet and writes Rows through the Range interface only
func Seed(ctx context.Context, wb sheetorm.Workbook, sheet string) error {
	rng, err := wb.Range(ctx, sheetorm.SheetRange(sheet))
	if err != nil {
		return err
	}
	n, err := rng.RowCount(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		if err := rng.DeleteRows(ctx, 0, n); err != nil {
			return err
		}
	}
	return rng.WriteValues(ctx, 0, Rows)
}

// CreateTestClient seeds the case's sheet and returns a client bound to it
func CreateTestClient(t *testing.T, tc WorkbookCase) *sheetorm.Client {
	t.Helper()

	ctx := context.Background()
	if err := Seed(ctx, tc.Workbook, tc.Sheet); err != nil {
		t.Fatalf("Failed to seed %s: %v", tc.Name, err)
	}
	return sheetorm.New(tc.Workbook, &sheetorm.Config{Store: sheetorm.NewMemoryStore()})
}

// CleanupClient flushes and closes the client
func CleanupClient(t *testing.T, client *sheetorm.Client) {
	t.Helper()

	if err := client.Close(context.Background()); err != nil {
		t.Errorf("Failed to close client: %v", err)
	}
}

// Run executes every scenario against the workbook returned by newCase; each
// scenario gets a freshly seeded sheet
func Run(t *testing.T, newCase func(t *testing.T) WorkbookCase) {
	scenarios := []struct {
		name string
		fn   func(t *testing.T, client *sheetorm.Client, sheet string)
	}{
		{"Read", testRead},
		{"TableCRUD", testTableCRUD},
		{"ManagedCommit", testManagedCommit},
		{"KeyLookup", testKeyLookup},
		{"DeleteAll", testDeleteAll},
	}

	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			tc := newCase(t)
			if tc.Description != "" {
				t.Log(tc.Description)
			}
			client := CreateTestClient(t, tc)
			defer CleanupClient(t, client)
			sc.fn(t, client, tc.Sheet)
		})
	}
}

func bind(t *testing.T, client *sheetorm.Client, sheet string) *sheetorm.Table {
	t.Helper()

	table, err := client.Table(context.Background(), sheetorm.SheetRange(sheet), Schema)
	if err != nil {
		t.Fatalf("Failed to bind table: %v", err)
	}
	return table
}

func readAll(t *testing.T, table *sheetorm.Table) []sheetorm.Entity {
	t.Helper()

	items, err := table.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	return items
}

func testRead(t *testing.T, client *sheetorm.Client, sheet string) {
	table := bind(t, client, sheet)
	if table.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", table.Count())
	}

	items := readAll(t, table)
	want := []struct {
		id     int64
		name   string
		score  float64
		active bool
	}{
		{1, "alice", 90, true},
		{2, "bob", 75, false},
		{3, "carol", 82, true},
	}
	if len(items) != len(want) {
		t.Fatalf("Read() returned %d items, want %d", len(items), len(want))
	}
	for i, w := range want {
		e := items[i]
		if got := e.GetAsInt64("id", -1); got != w.id {
			t.Errorf("items[%d].id = %d, want %d", i, got, w.id)
		}
		if got := e.GetAsString("name", ""); got != w.name {
			t.Errorf("items[%d].name = %q, want %q", i, got, w.name)
		}
		if got := e.GetAsFloat64("score", -1); got != w.score {
			t.Errorf("items[%d].score = %v, want %v", i, got, w.score)
		}
		if got := e.GetAsBool("active", !w.active); got != w.active {
			t.Errorf("items[%d].active = %v, want %v", i, got, w.active)
		}
	}
}

func testTableCRUD(t *testing.T, client *sheetorm.Client, sheet string) {
	ctx := context.Background()
	table := bind(t, client, sheet)

	if err := table.SeqReset(ctx, "id", 3); err != nil {
		t.Fatalf("SeqReset() error = %v", err)
	}

	dave := sheetorm.Entity{"name": "dave", "score": 60, "active": false}
	if err := table.Prepend(ctx, dave); err != nil {
		t.Fatalf("Prepend() error = %v", err)
	}
	if got := dave.GetAsInt64("id", -1); got != 4 {
		t.Errorf("prepended id = %d, want 4", got)
	}

	if err := table.UpdateAt(ctx, []sheetorm.Entity{{"score": 99}}, -1); err != nil {
		t.Fatalf("UpdateAt() error = %v", err)
	}
	if err := table.DeleteAt(ctx, 1, 1); err != nil {
		t.Fatalf("DeleteAt() error = %v", err)
	}

	// a fresh binding only sees what reached the workbook
	items := readAll(t, bind(t, client, sheet))
	names := make([]string, len(items))
	for i, e := range items {
		names[i] = e.GetAsString("name", "")
	}
	wantNames := []string{"dave", "bob", "carol"}
	if len(names) != len(wantNames) {
		t.Fatalf("names = %v, want %v", names, wantNames)
	}
	for i := range wantNames {
		if names[i] != wantNames[i] {
			t.Fatalf("names = %v, want %v", names, wantNames)
		}
	}
	if got := items[2].GetAsFloat64("score", -1); got != 99 {
		t.Errorf("carol score = %v, want 99", got)
	}
	if got := items[0].GetAsInt64("id", -1); got != 4 {
		t.Errorf("dave id = %d, want 4", got)
	}
}

func testManagedCommit(t *testing.T, client *sheetorm.Client, sheet string) {
	ctx := context.Background()

	managed, err := client.Managed(ctx, sheetorm.SheetRange(sheet), Schema)
	if err != nil {
		t.Fatalf("Failed to bind managed table: %v", err)
	}
	if err := managed.Table().SeqReset(ctx, "id", 3); err != nil {
		t.Fatalf("SeqReset() error = %v", err)
	}

	list, err := managed.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List() returned %d entities, want 3", len(list))
	}

	if err := list[1].Set("score", 80); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !managed.Remove(list[2]) {
		t.Fatal("Remove() = false, want true")
	}
	dave, err := managed.Add(ctx, sheetorm.Entity{"name": "dave", "score": 60, "active": false})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := managed.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if managed.Dirty() {
		t.Error("Dirty() = true after commit")
	}

	id, err := dave.Get("id")
	if err != nil {
		t.Fatalf("Get(id) error = %v", err)
	}
	if id != int64(4) {
		t.Errorf("committed id = %v (%T), want 4", id, id)
	}

	items := readAll(t, bind(t, client, sheet))
	if len(items) != 3 {
		t.Fatalf("Read() returned %d items, want 3", len(items))
	}
	wantNames := []string{"alice", "bob", "dave"}
	for i, name := range wantNames {
		if got := items[i].GetAsString("name", ""); got != name {
			t.Errorf("items[%d].name = %q, want %q", i, got, name)
		}
	}
	if got := items[1].GetAsFloat64("score", -1); got != 80 {
		t.Errorf("bob score = %v, want 80", got)
	}
}

func testKeyLookup(t *testing.T, client *sheetorm.Client, sheet string) {
	ctx := context.Background()
	table := bind(t, client, sheet)

	e, idx, err := table.FindByKey(ctx, 2)
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if idx != 1 || e.GetAsString("name", "") != "bob" {
		t.Errorf("FindByKey(2) = %v at %d, want bob at 1", e, idx)
	}

	if _, _, err := table.FindByKey(ctx, 42); !errors.Is(err, sheetorm.ErrKeyNotFound) {
		t.Errorf("FindByKey(42) error = %v, want %v", err, sheetorm.ErrKeyNotFound)
	}
}

func testDeleteAll(t *testing.T, client *sheetorm.Client, sheet string) {
	ctx := context.Background()
	table := bind(t, client, sheet)

	if err := table.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if table.Count() != 0 {
		t.Errorf("Count() = %d, want 0", table.Count())
	}

	rebound := bind(t, client, sheet)
	if rebound.Count() != 0 {
		t.Errorf("rebound Count() = %d, want 0", rebound.Count())
	}
	if items := readAll(t, rebound); len(items) != 0 {
		t.Errorf("Read() = %v, want empty", items)
	}
}
