package main

import (
	"context"
	"fmt"
	"log"

	sheetorm "github.com/ideamans/go-sheetorm"
	"github.com/ideamans/go-sheetorm/adapters/googlesheets"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	// Spreadsheet ID and credentials come from SHEETORM_* variables or ./.env
	wb, err := googlesheets.NewFromEnvironment(ctx)
	if err != nil {
		return fmt.Errorf("failed to open spreadsheet: %w", err)
	}

	// Sequence counters live in a sheet of the same spreadsheet
	client := sheetorm.New(wb, googlesheets.DefaultClientConfig())
	counters, err := client.KeyValueStore(ctx, sheetorm.SheetRange("_counters"))
	if err != nil {
		return fmt.Errorf("failed to bind counters: %w", err)
	}
	config := googlesheets.DefaultClientConfig()
	config.Store = counters
	client = sheetorm.New(wb, config)
	defer client.Close(ctx)

	schema := sheetorm.Schema{
		"id":    sheetorm.SequenceCol(sheetorm.Named("ID")).Key(),
		"name":  sheetorm.StringCol(sheetorm.Named("Name")),
		"email": sheetorm.StringCol(sheetorm.Named("Email")),
		"age":   sheetorm.NumberCol(sheetorm.Named("Age")),
		"home":  sheetorm.LinkCol(sheetorm.Named("Homepage")),
	}

	users, err := client.Table(ctx, sheetorm.SheetRange("users"), schema)
	if err != nil {
		return fmt.Errorf("failed to bind users: %w", err)
	}

	user := sheetorm.Entity{
		"name":  "John Doe",
		"email": "john@example.com",
		"age":   30,
		"home":  sheetorm.Link{URL: "https://example.com/john", Label: "John"},
	}
	if err := users.Append(ctx, user); err != nil {
		return fmt.Errorf("failed to append user: %w", err)
	}
	fmt.Printf("Added user with id %v\n", user["id"])

	matches, err := users.Where(ctx, func(e sheetorm.Entity) bool {
		age := e.GetAsInt64("age", 0)
		return age >= 25 && age <= 35
	})
	if err != nil {
		return fmt.Errorf("failed to query: %w", err)
	}

	fmt.Printf("Found %d users aged 25-35:\n", len(matches))
	for _, m := range matches {
		fmt.Printf("  #%d: %s (age: %d)\n", m.Index, m.Entity.GetAsString("name", "Unknown"), m.Entity.GetAsInt64("age", 0))
	}

	// Edit through a managed view and write everything back at once
	managed := sheetorm.NewManaged(users)
	list, err := managed.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(list) > 0 {
		if err := list[0].Set("email", "first@example.com"); err != nil {
			return err
		}
	}
	if err := managed.Commit(ctx); err != nil {
		log.Printf("Failed to commit: %v", err)
		managed.Rollback()
	}

	return nil
}
