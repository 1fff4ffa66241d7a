//go:build ignore

// Package main demonstrates the declarative repository engine on the
// Bun adapter. Run with: go run runner/bun.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/lemmego/gdr"
	"github.com/lemmego/gdr/gdrbun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// =====================================
// Domain Models
// =====================================

// Item represents one warehouse stock line. Note stays a pointer so a
// missing note comes back as nil rather than an empty string.
type Item struct {
	ID           int64 `db:"id,pk"`
	Code         string
	Label        string
	Qty          int
	Price        float64
	Note         *string
	Discontinued bool
}

// =====================================
// Service Layer
// =====================================

// InventoryService answers stock questions through declarative
// operations.
type InventoryService struct {
	items *gdr.Repository[Item]
}

// NewInventoryService parses the operation set against the session.
func NewInventoryService(session gdr.Session, registry *gdr.Registry) (*InventoryService, error) {
	operations := []gdr.Operation{
		{Name: "findByDiscontinuedFalseOrderByLabelAsc"},
		{Name: "getByCode"},
		{Name: "findByQtyLessThanOrderByQtyAsc"},
		{Name: "findByNoteIsNull"},
		{Name: "findByPriceBetween", Returns: gdr.ShapePage},
		{Name: "countByDiscontinuedFalse"},
		{Name: "existsByCode"},
		{Name: "deleteByDiscontinuedTrue"},
		// A templated write: affected-shaped operations run through
		// Exec and report the touched row count.
		{Name: "writeOff",
			Query:   "UPDATE items SET discontinued = 1 WHERE qty = ?",
			Returns: gdr.ShapeAffected},
	}

	items, err := gdr.NewRepository[Item](session, operations,
		gdr.WithRegistry(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to build the item repository: %w", err)
	}
	return &InventoryService{items: items}, nil
}

// Catalog lists stocked lines alphabetically.
func (s *InventoryService) Catalog(ctx context.Context) ([]*Item, error) {
	items, err := s.items.Find(ctx, "findByDiscontinuedFalseOrderByLabelAsc")
	if err != nil {
		return nil, fmt.Errorf("failed to list the catalog: %w", err)
	}
	return items, nil
}

// ByCode fetches one line by its stock code, nil when absent.
func (s *InventoryService) ByCode(ctx context.Context, code string) (*Item, error) {
	item, err := s.items.FindOne(ctx, "getByCode", code)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", code, err)
	}
	return item, nil
}

// RestockList lists lines under the quantity threshold, emptiest
// first.
func (s *InventoryService) RestockList(ctx context.Context, threshold int) ([]*Item, error) {
	items, err := s.items.Find(ctx, "findByQtyLessThanOrderByQtyAsc", threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to build the restock list: %w", err)
	}
	return items, nil
}

// MissingNotes lists lines nobody has annotated yet.
func (s *InventoryService) MissingNotes(ctx context.Context) ([]*Item, error) {
	items, err := s.items.Find(ctx, "findByNoteIsNull")
	if err != nil {
		return nil, fmt.Errorf("failed to list unannotated lines: %w", err)
	}
	return items, nil
}

// PriceBand pages through lines priced inside the inclusive range.
func (s *InventoryService) PriceBand(ctx context.Context, low, high float64, page gdr.PageRequest) (*gdr.Page[Item], error) {
	result, err := s.items.FindPage(ctx, "findByPriceBetween", low, high, page)
	if err != nil {
		return nil, fmt.Errorf("failed to page the %.2f-%.2f band: %w", low, high, err)
	}
	return result, nil
}

// ActiveCount counts lines still in the catalog.
func (s *InventoryService) ActiveCount(ctx context.Context) (int64, error) {
	return s.items.Count(ctx, "countByDiscontinuedFalse")
}

// HasCode reports whether a stock code is taken.
func (s *InventoryService) HasCode(ctx context.Context, code string) (bool, error) {
	return s.items.Exists(ctx, "existsByCode", code)
}

// WriteOffEmpty discontinues every line with the given quantity and
// reports how many rows the update touched.
func (s *InventoryService) WriteOffEmpty(ctx context.Context, qty int) (int64, error) {
	result, err := s.items.Invoke(ctx, "writeOff", qty)
	if err != nil {
		return 0, fmt.Errorf("failed to write off empty lines: %w", err)
	}
	return result.(int64), nil
}

// Purge removes discontinued lines.
func (s *InventoryService) Purge(ctx context.Context) (int64, error) {
	return s.items.Delete(ctx, "deleteByDiscontinuedTrue")
}

// =====================================
// Application Setup
// =====================================

// setupInventory creates the items table and reseeds the demo rows.
func setupInventory(ctx context.Context, session gdr.Session) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE,
			label TEXT NOT NULL,
			qty INTEGER NOT NULL,
			price REAL NOT NULL,
			note TEXT,
			discontinued BOOLEAN NOT NULL DEFAULT 0
		)`,
		`DELETE FROM items`,
		`INSERT INTO items (id, code, label, qty, price, note, discontinued) VALUES
			(1, 'CBL-01', 'USB-C Cable', 140, 9.90, 'fast seller', 0),
			(2, 'KBD-02', 'Mechanical Keyboard', 12, 129.00, NULL, 0),
			(3, 'MON-03', 'Monitor Stand', 0, 49.50, 'pallet damaged', 0),
			(4, 'HUB-04', 'USB Hub', 3, 39.00, NULL, 0),
			(5, 'FAN-05', 'Desk Fan', 55, 24.90, 'seasonal', 1)`,
	}
	for _, statement := range statements {
		if _, err := session.Exec(ctx, statement, nil); err != nil {
			return fmt.Errorf("failed to prepare the inventory: %w", err)
		}
	}
	return nil
}

// =====================================
// Main Application
// =====================================

func main() {
	ctx := context.Background()

	// The bun log_level option attaches bundebug, so every statement
	// the engine renders shows up on stderr.
	session, err := gdrbun.NewSession(gdr.Config{
		Driver:       "bun:sqlite",
		Database:     "bun_runner.db",
		MaxOpenConns: 1,
		Options: map[string]interface{}{
			"bun": map[string]interface{}{
				"log_level": "debug",
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to open the session: %v", err)
	}
	defer session.Close()

	fmt.Printf("Dialect: %s\n", session.Dialect())

	if err := setupInventory(ctx, session); err != nil {
		log.Fatalf("Failed to set up the inventory: %v", err)
	}

	registry := gdr.NewRegistry()
	registry.MustRegister(Item{})

	inventory, err := NewInventoryService(session, registry)
	if err != nil {
		log.Fatalf("Failed to build the inventory service: %v", err)
	}

	fmt.Println("\n=== Running Catalog Examples ===")
	if err := runCatalogExamples(ctx, inventory); err != nil {
		log.Printf("Catalog examples failed: %v", err)
	}

	fmt.Println("\n=== Running Window Examples ===")
	if err := runWindowExamples(ctx, inventory); err != nil {
		log.Printf("Window examples failed: %v", err)
	}

	fmt.Println("\n=== Running Write Examples ===")
	if err := runWriteExamples(ctx, inventory); err != nil {
		log.Printf("Write examples failed: %v", err)
	}

	fmt.Println("\n=== Running Transaction Examples ===")
	if err := runTransactionExamples(ctx, session, registry); err != nil {
		log.Printf("Transaction examples failed: %v", err)
	}

	fmt.Println("\n=== Running Adoption Example ===")
	if err := runAdoptionExample(ctx); err != nil {
		log.Printf("Adoption example failed: %v", err)
	}
}

// =====================================
// Example Functions
// =====================================

// runCatalogExamples exercises derived reads.
func runCatalogExamples(ctx context.Context, inventory *InventoryService) error {
	fmt.Println("1. Catalog, alphabetical...")
	catalog, err := inventory.Catalog(ctx)
	if err != nil {
		return err
	}
	for _, item := range catalog {
		fmt.Printf("  - %s %s ($%.2f, %d on hand)\n", item.Code, item.Label, item.Price, item.Qty)
	}

	fmt.Println("\n2. Single fetch by code...")
	keyboard, err := inventory.ByCode(ctx, "KBD-02")
	if err != nil {
		return err
	}
	fmt.Printf("  KBD-02 is %q\n", keyboard.Label)

	fmt.Println("\n3. Restock candidates...")
	low, err := inventory.RestockList(ctx, 20)
	if err != nil {
		return err
	}
	for _, item := range low {
		fmt.Printf("  - %s down to %d\n", item.Code, item.Qty)
	}

	fmt.Println("\n4. Lines with no note...")
	bare, err := inventory.MissingNotes(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  %d lines are unannotated\n", len(bare))

	fmt.Println("\n5. Counts and probes...")
	active, err := inventory.ActiveCount(ctx)
	if err != nil {
		return err
	}
	taken, err := inventory.HasCode(ctx, "HUB-04")
	if err != nil {
		return err
	}
	fmt.Printf("  %d active lines, HUB-04 taken: %t\n", active, taken)

	return nil
}

// runWindowExamples pages through a price band.
func runWindowExamples(ctx context.Context, inventory *InventoryService) error {
	fmt.Println("1. First page of the mid-price band...")
	page, err := inventory.PriceBand(ctx, 10, 150,
		gdr.PageOf(0, 2).WithSort(gdr.Order{Property: "price", Direction: gdr.OrderAsc}))
	if err != nil {
		return err
	}
	for _, item := range page.Items {
		fmt.Printf("  - %s at $%.2f\n", item.Code, item.Price)
	}
	fmt.Printf("  %d of %d matches, more: %t\n", len(page.Items), page.Total, page.HasNext())

	return nil
}

// runWriteExamples issues a templated update and a derived delete.
func runWriteExamples(ctx context.Context, inventory *InventoryService) error {
	fmt.Println("1. Writing off empty lines...")
	writtenOff, err := inventory.WriteOffEmpty(ctx, 0)
	if err != nil {
		return err
	}
	fmt.Printf("  wrote off %d lines\n", writtenOff)

	fmt.Println("\n2. Purging discontinued lines...")
	purged, err := inventory.Purge(ctx)
	if err != nil {
		return err
	}
	remaining, err := inventory.ActiveCount(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  purged %d lines, %d remain\n", purged, remaining)

	return nil
}

// runTransactionExamples scopes a repository to a Bun transaction.
func runTransactionExamples(ctx context.Context, session *gdrbun.Session, registry *gdr.Registry) error {
	fmt.Println("1. Committing an insert...")
	err := session.InTransaction(ctx, func(tx gdr.Session) error {
		txInventory, err := NewInventoryService(tx, registry)
		if err != nil {
			return err
		}

		insert := `INSERT INTO items (code, label, qty, price, discontinued)
			VALUES ('LMP-06', 'Desk Lamp', 30, 34.00, 0)`
		if _, err := tx.Exec(ctx, insert, nil); err != nil {
			return err
		}

		active, err := txInventory.ActiveCount(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("  active lines inside the transaction: %d\n", active)
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	fmt.Println("\n2. Rolling back on error...")
	reject := errors.New("intake rejected the shipment")
	err = session.InTransaction(ctx, func(tx gdr.Session) error {
		insert := `INSERT INTO items (code, label, qty, price, discontinued)
			VALUES ('BAD-07', 'Mystery Box', 99, 1.00, 0)`
		if _, err := tx.Exec(ctx, insert, nil); err != nil {
			return err
		}
		return reject
	})
	if !errors.Is(err, reject) {
		return fmt.Errorf("expected the intake error back, got: %v", err)
	}

	mini, err := NewInventoryService(session, registry)
	if err != nil {
		return err
	}
	persisted, err := mini.HasCode(ctx, "BAD-07")
	if err != nil {
		return err
	}
	fmt.Printf("  BAD-07 persisted after rollback: %t\n", persisted)

	return nil
}

// runAdoptionExample hands an application-owned bun.DB to the engine.
func runAdoptionExample(ctx context.Context) error {
	fmt.Println("1. Wrapping an existing bun.DB...")

	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open the scratch database: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	session := gdrbun.WrapDB(bun.NewDB(sqldb, sqlitedialect.New()))
	defer session.Close()

	if err := setupInventory(ctx, session); err != nil {
		return err
	}

	registry := gdr.NewRegistry()
	registry.MustRegister(Item{})
	inventory, err := NewInventoryService(session, registry)
	if err != nil {
		return err
	}

	fan, err := inventory.ByCode(ctx, "FAN-05")
	if err != nil {
		return err
	}
	fmt.Printf("  adopted database answers: FAN-05 is %q\n", fan.Label)

	return nil
}
