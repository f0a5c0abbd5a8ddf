package main

import (
	"context"
	"fmt"
	"log"
	"time"

	sheetorm "github.com/ideamans/go-sheetorm"
	"github.com/ideamans/go-sheetorm/adapters/excel"
)

func main() {
	ctx := context.Background()

	// The file is created on the first flush if it does not exist
	wb, err := excel.New(&excel.Config{
		FilePath:     "./example_data.xlsx",
		DefaultSheet: "users",
	})
	if err != nil {
		log.Fatalf("Failed to open workbook: %v", err)
	}

	// Keep sequence counters next to the workbook
	store, err := sheetorm.OpenFileStore("./example_data.seq.yaml")
	if err != nil {
		log.Fatalf("Failed to open sequence store: %v", err)
	}
	config := excel.DefaultClientConfig()
	config.Store = store

	client := sheetorm.New(wb, config)
	defer func() {
		// Close saves the workbook
		if err := client.Close(ctx); err != nil {
			log.Printf("Error closing client: %v", err)
		}
	}()

	if err := seedHeader(ctx, wb); err != nil {
		log.Fatalf("Failed to prepare sheet: %v", err)
	}

	schema := sheetorm.Schema{
		"id":         sheetorm.SequenceCol(sheetorm.Named("id")).Key(),
		"name":       sheetorm.StringCol(sheetorm.Named("name")),
		"email":      sheetorm.StringCol(sheetorm.Named("email")),
		"age":        sheetorm.NumberCol(sheetorm.Named("age")),
		"department": sheetorm.StringCol(sheetorm.Named("department")),
		"active":     sheetorm.BoolCol(sheetorm.Named("active")),
		"joined":     sheetorm.DateCol(sheetorm.Named("joined_at")),
	}

	users, err := client.Table(ctx, sheetorm.A1Range("users!A1:G"), schema)
	if err != nil {
		log.Fatalf("Failed to bind table: %v", err)
	}

	// 1. Add some records
	fmt.Println("Adding records...")
	now := time.Now()
	batch := []sheetorm.Entity{
		{"name": "Alice Johnson", "email": "alice@example.com", "age": 30, "department": "Engineering", "active": true, "joined": now},
		{"name": "Bob Smith", "email": "bob@example.com", "age": 25, "department": "Marketing", "active": true, "joined": now.Add(-24 * time.Hour)},
		{"name": "Charlie Brown", "email": "charlie@example.com", "age": 35, "department": "Engineering", "active": false, "joined": now.Add(-48 * time.Hour)},
	}
	if err := users.Append(ctx, batch...); err != nil {
		log.Fatalf("Failed to append users: %v", err)
	}
	for _, u := range batch {
		fmt.Printf("Added user: %s (id %v)\n", u.GetAsString("name", ""), u["id"])
	}

	// 2. Query records
	fmt.Println("\nQuerying active engineers...")
	engineers, err := users.Where(ctx, func(e sheetorm.Entity) bool {
		return e["department"] == "Engineering" && e.GetAsBool("active", false)
	})
	if err != nil {
		log.Printf("Query failed: %v", err)
	}
	for _, m := range engineers {
		fmt.Printf("- %s (age: %d)\n", m.Entity.GetAsString("name", ""), m.Entity.GetAsInt64("age", 0))
	}

	// 3. Update a record in place
	fmt.Println("\nUpdating Bob's department...")
	idx, err := users.FindIndex(ctx, func(e sheetorm.Entity) bool { return e["name"] == "Bob Smith" })
	if err == nil && idx >= 0 {
		if err := users.UpdateAt(ctx, []sheetorm.Entity{{"department": "Sales"}}, idx); err != nil {
			log.Printf("Update failed: %v", err)
		} else {
			fmt.Println("Updated successfully")
		}
	}

	// 4. Transactional edits
	fmt.Println("\nDeactivating everyone older than 30...")
	managed := sheetorm.NewManaged(users)
	list, err := managed.List(ctx)
	if err != nil {
		log.Fatalf("Failed to list users: %v", err)
	}
	for _, u := range list {
		snap, _ := u.Snapshot()
		if snap.GetAsInt64("age", 0) > 30 {
			if err := u.Set("active", false); err != nil {
				log.Printf("Set failed: %v", err)
			}
		}
	}
	if err := managed.Commit(ctx); err != nil {
		log.Printf("Commit failed: %v", err)
		managed.Rollback()
	}

	// 5. Remove the oldest record
	if len(list) > 0 {
		fmt.Println("\nRemoving the last record...")
		if err := users.DeleteAt(ctx, -1, 1); err != nil {
			log.Printf("Delete failed: %v", err)
		}
	}

	fmt.Printf("\n%d records remain\n", users.Count())
}

// seedHeader writes the header row into a fresh sheet
func seedHeader(ctx context.Context, wb *excel.Workbook) error {
	if err := wb.AddSheet("users"); err != nil {
		return err
	}
	rng, err := wb.Range(ctx, sheetorm.SheetRange("users"))
	if err != nil {
		return err
	}
	n, err := rng.RowCount(ctx)
	if err != nil || n > 0 {
		return err
	}
	return rng.WriteValues(ctx, 0, [][]interface{}{
		{"id", "name", "email", "age", "department", "active", "joined_at"},
	})
}
