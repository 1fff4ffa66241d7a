//go:build ignore

// Package main demonstrates the declarative repository engine on the
// GORM adapter. Run with: go run runner/gorm.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lemmego/gdr"
	"github.com/lemmego/gdr/gdrgorm"
)

// =====================================
// Domain Models
// =====================================

// User represents a registered account.
type User struct {
	ID        int64 `db:"id,pk"`
	Email     string
	Name      string
	Age       int
	Status    string
	CreatedAt time.Time
}

// Order represents a purchase placed by a user.
type Order struct {
	ID          int64 `db:"id,pk"`
	ProductName string
	Amount      float64
	Status      string
	OrderDate   time.Time
	User        *User `rel:"many_to_one"`
}

// =====================================
// Query Tracing
// =====================================

// traceHook logs every statement the engine sends to the session.
type traceHook struct{}

func (traceHook) BeforeQuery(ctx context.Context, event *gdr.QueryEvent) context.Context {
	return ctx
}

func (traceHook) AfterQuery(ctx context.Context, event *gdr.QueryEvent) {
	if event.Err != nil {
		log.Printf("[trace] %s failed after %v: %v", event.Operation, event.Duration, event.Err)
		return
	}
	log.Printf("[trace] %s took %v", event.Operation, event.Duration)
}

// =====================================
// Service Layer
// =====================================

// AccountService answers account and purchase questions through
// declarative operations.
type AccountService struct {
	users  *gdr.Repository[User]
	orders *gdr.Repository[Order]
}

// NewAccountService builds the repositories. Every operation name is
// parsed here, so a malformed name fails at startup rather than on
// first use.
func NewAccountService(session gdr.Session, registry *gdr.Registry) (*AccountService, error) {
	userOps := []gdr.Operation{
		{Name: "findByStatusOrderByNameAsc"},
		{Name: "getByEmail"},
		{Name: "findByAgeGreaterThanOrderByAgeDesc"},
		{Name: "findByAgeBetween", Returns: gdr.ShapePage},
		{Name: "countByStatus"},
		{Name: "existsByEmail"},
		{Name: "deleteByStatus"},
		{Name: "searchUsers",
			Query:  "SELECT * FROM users WHERE name LIKE :needle OR email LIKE :needle ORDER BY name",
			Params: []gdr.Param{{Name: "needle"}}},
		{Name: "activeHeadcount",
			Query:   "SELECT COUNT(*) FROM users WHERE status = ? AND age >= ?",
			Returns: gdr.ShapeCount},
	}
	users, err := gdr.NewRepository[User](session, userOps,
		gdr.WithRegistry(registry), gdr.WithQueryHook(traceHook{}))
	if err != nil {
		return nil, fmt.Errorf("failed to build the user repository: %w", err)
	}

	orderOps := []gdr.Operation{
		{Name: "findByUserEmailOrderByAmountDesc"},
		{Name: "findByAmountGreaterThanOrderByAmountDesc"},
		{Name: "findByStatusIn"},
		{Name: "countByStatus"},
	}
	orders, err := gdr.NewRepository[Order](session, orderOps,
		gdr.WithRegistry(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to build the order repository: %w", err)
	}

	return &AccountService{users: users, orders: orders}, nil
}

// UsersIn lists accounts in the given status, sorted by name.
func (s *AccountService) UsersIn(ctx context.Context, status string) ([]*User, error) {
	users, err := s.users.Find(ctx, "findByStatusOrderByNameAsc", status)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s users: %w", status, err)
	}
	return users, nil
}

// LookupByEmail returns the account under the address, or nil when no
// account matches.
func (s *AccountService) LookupByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.users.FindOne(ctx, "getByEmail", email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", email, err)
	}
	return user, nil
}

// OlderThan lists accounts above an age cutoff, oldest first.
func (s *AccountService) OlderThan(ctx context.Context, age int) ([]*User, error) {
	users, err := s.users.Find(ctx, "findByAgeGreaterThanOrderByAgeDesc", age)
	if err != nil {
		return nil, fmt.Errorf("failed to list users older than %d: %w", age, err)
	}
	return users, nil
}

// AgeBand returns one page of the accounts whose age falls in the
// inclusive range.
func (s *AccountService) AgeBand(ctx context.Context, low, high int, page gdr.PageRequest) (*gdr.Page[User], error) {
	result, err := s.users.FindPage(ctx, "findByAgeBetween", low, high, page)
	if err != nil {
		return nil, fmt.Errorf("failed to page the %d-%d age band: %w", low, high, err)
	}
	return result, nil
}

// Search matches the needle against names and addresses.
func (s *AccountService) Search(ctx context.Context, needle string) ([]*User, error) {
	users, err := s.users.Find(ctx, "searchUsers", "%"+needle+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search for %q: %w", needle, err)
	}
	return users, nil
}

// Headcount counts the accounts in a status.
func (s *AccountService) Headcount(ctx context.Context, status string) (int64, error) {
	return s.users.Count(ctx, "countByStatus", status)
}

// ActiveAdults counts active accounts at or above the age.
func (s *AccountService) ActiveAdults(ctx context.Context, age int) (int64, error) {
	return s.users.Count(ctx, "activeHeadcount", "active", age)
}

// HasAccount reports whether an address is registered.
func (s *AccountService) HasAccount(ctx context.Context, email string) (bool, error) {
	return s.users.Exists(ctx, "existsByEmail", email)
}

// Prune removes every account in the given status and reports how
// many rows went away.
func (s *AccountService) Prune(ctx context.Context, status string) (int64, error) {
	return s.users.Delete(ctx, "deleteByStatus", status)
}

// PurchasesBy lists a user's orders through the relationship, highest
// amount first.
func (s *AccountService) PurchasesBy(ctx context.Context, email string) ([]*Order, error) {
	orders, err := s.orders.Find(ctx, "findByUserEmailOrderByAmountDesc", email)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases by %s: %w", email, err)
	}
	return orders, nil
}

// OrdersIn lists orders in any of the given statuses.
func (s *AccountService) OrdersIn(ctx context.Context, statuses []string) ([]*Order, error) {
	orders, err := s.orders.Find(ctx, "findByStatusIn", statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders in %v: %w", statuses, err)
	}
	return orders, nil
}

// ReviewQueue builds an ad hoc filter: cancelled orders plus any
// order over the flag amount.
func (s *AccountService) ReviewQueue(ctx context.Context, flagAmount float64) ([]*Order, error) {
	orders, err := s.orders.Query().
		WhereCondition(gdr.Or(
			gdr.Where("status", gdr.CompEquals, "cancelled"),
			gdr.Where("amount", gdr.CompGreaterThan, flagAmount),
		)).
		OrderBy("amount", gdr.OrderDesc).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build the review queue: %w", err)
	}
	return orders, nil
}

// =====================================
// Application Setup
// =====================================

// App wires the session, the registry and the service together.
type App struct {
	session  *gdrgorm.Session
	registry *gdr.Registry
	accounts *AccountService
}

// NewApp opens the database, prepares the schema and builds the
// service layer.
func NewApp() (*App, error) {
	config := gdr.Config{
		Driver:   "gorm:sqlite",
		Database: "gorm_runner.db",
		Options: map[string]interface{}{
			"gorm": map[string]interface{}{
				"log_level": "warn",
			},
		},
	}

	session, err := gdrgorm.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open the session: %w", err)
	}

	ctx := context.Background()
	if err := session.Health(ctx); err != nil {
		session.Close()
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	if err := setupSchema(ctx, session); err != nil {
		session.Close()
		return nil, err
	}

	// Both entities go in before either repository freezes the
	// registry, so the Order -> User relationship resolves.
	registry := gdr.NewRegistry()
	registry.MustRegister(User{})
	registry.MustRegister(Order{})

	accounts, err := NewAccountService(session, registry)
	if err != nil {
		session.Close()
		return nil, err
	}

	return &App{session: session, registry: registry, accounts: accounts}, nil
}

// Close releases the database connection.
func (app *App) Close() error {
	return app.session.Close()
}

// setupSchema creates the tables and reseeds the demo rows.
func setupSchema(ctx context.Context, session gdr.Session) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			age INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_name TEXT NOT NULL,
			amount REAL NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			order_date DATETIME NOT NULL,
			user_id INTEGER NOT NULL REFERENCES users(id)
		)`,
		`DELETE FROM orders`,
		`DELETE FROM users`,
		`INSERT INTO users (id, email, name, age, status, created_at) VALUES
			(1, 'alice@example.com', 'Alice Johnson', 28, 'active', '2024-01-15 10:30:00'),
			(2, 'bob@example.com', 'Bob Smith', 35, 'active', '2024-02-20 14:45:00'),
			(3, 'charlie@example.com', 'Charlie Brown', 22, 'dormant', '2024-03-05 09:10:00'),
			(4, 'diane@example.com', 'Diane Fox', 41, 'active', '2024-04-12 16:05:00')`,
		`INSERT INTO orders (id, product_name, amount, status, order_date, user_id) VALUES
			(1, 'Laptop', 1299.99, 'shipped', '2024-05-01 11:00:00', 1),
			(2, 'Desk Lamp', 45.50, 'pending', '2024-05-03 13:30:00', 1),
			(3, 'Monitor', 389.00, 'shipped', '2024-05-04 10:15:00', 2),
			(4, 'Keyboard', 129.90, 'cancelled', '2024-05-06 17:40:00', 2),
			(5, 'Headphones', 219.00, 'pending', '2024-05-08 08:50:00', 4)`,
	}

	for _, statement := range statements {
		if _, err := session.Exec(ctx, statement, nil); err != nil {
			return fmt.Errorf("failed to prepare the schema: %w", err)
		}
	}
	return nil
}

// =====================================
// Main Application
// =====================================

func main() {
	app, err := NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer app.Close()

	ctx := context.Background()

	fmt.Println("=== Running Derived Query Examples ===")
	if err := runDerivedQueryExamples(ctx, app); err != nil {
		log.Printf("Derived query examples failed: %v", err)
	}

	fmt.Println("\n=== Running Templated Query Examples ===")
	if err := runTemplatedQueryExamples(ctx, app); err != nil {
		log.Printf("Templated query examples failed: %v", err)
	}

	fmt.Println("\n=== Running Relationship Examples ===")
	if err := runRelationshipExamples(ctx, app); err != nil {
		log.Printf("Relationship examples failed: %v", err)
	}

	fmt.Println("\n=== Running Transaction Examples ===")
	if err := runTransactionExamples(ctx, app); err != nil {
		log.Printf("Transaction examples failed: %v", err)
	}

	fmt.Println("\n=== Running Maintenance Examples ===")
	if err := runMaintenanceExamples(ctx, app); err != nil {
		log.Printf("Maintenance examples failed: %v", err)
	}
}

// =====================================
// Example Functions
// =====================================

// runDerivedQueryExamples exercises queries parsed from method names.
func runDerivedQueryExamples(ctx context.Context, app *App) error {
	fmt.Println("1. Listing active users...")
	active, err := app.accounts.UsersIn(ctx, "active")
	if err != nil {
		return err
	}
	for _, user := range active {
		fmt.Printf("  - %s <%s>, age %d\n", user.Name, user.Email, user.Age)
	}

	fmt.Println("\n2. Looking up accounts by email...")
	alice, err := app.accounts.LookupByEmail(ctx, "alice@example.com")
	if err != nil {
		return err
	}
	fmt.Printf("  found: %s (created %s)\n", alice.Name, alice.CreatedAt.Format("2006-01-02"))

	nobody, err := app.accounts.LookupByEmail(ctx, "nobody@example.com")
	if err != nil {
		return err
	}
	fmt.Printf("  nobody@example.com registered: %t\n", nobody != nil)

	fmt.Println("\n3. Sorting by a derived order clause...")
	older, err := app.accounts.OlderThan(ctx, 25)
	if err != nil {
		return err
	}
	for _, user := range older {
		fmt.Printf("  - %s is %d\n", user.Name, user.Age)
	}

	fmt.Println("\n4. Paging through an age band...")
	page, err := app.accounts.AgeBand(ctx, 20, 40,
		gdr.PageOf(0, 2).WithSort(gdr.Order{Property: "age", Direction: gdr.OrderAsc}))
	if err != nil {
		return err
	}
	fmt.Printf("  page holds %d of %d matches, more: %t\n", len(page.Items), page.Total, page.HasNext())

	fmt.Println("\n5. Counting and probing...")
	headcount, err := app.accounts.Headcount(ctx, "active")
	if err != nil {
		return err
	}
	registered, err := app.accounts.HasAccount(ctx, "bob@example.com")
	if err != nil {
		return err
	}
	fmt.Printf("  %d active accounts, bob registered: %t\n", headcount, registered)

	return nil
}

// runTemplatedQueryExamples exercises explicit query templates.
func runTemplatedQueryExamples(ctx context.Context, app *App) error {
	fmt.Println("1. Named placeholders, one value bound twice...")
	matches, err := app.accounts.Search(ctx, "li")
	if err != nil {
		return err
	}
	for _, user := range matches {
		fmt.Printf("  - %s <%s>\n", user.Name, user.Email)
	}

	fmt.Println("\n2. Positional placeholders feeding a count...")
	adults, err := app.accounts.ActiveAdults(ctx, 30)
	if err != nil {
		return err
	}
	fmt.Printf("  %d active accounts at 30 or older\n", adults)

	return nil
}

// runRelationshipExamples traverses the order -> user relationship.
func runRelationshipExamples(ctx context.Context, app *App) error {
	fmt.Println("1. Orders found through the owner's email...")
	purchases, err := app.accounts.PurchasesBy(ctx, "alice@example.com")
	if err != nil {
		return err
	}
	for _, order := range purchases {
		fmt.Printf("  - %s ($%.2f, %s)\n", order.ProductName, order.Amount, order.Status)
	}

	fmt.Println("\n2. Orders in a status set...")
	open, err := app.accounts.OrdersIn(ctx, []string{"pending", "shipped"})
	if err != nil {
		return err
	}
	fmt.Printf("  %d orders are pending or shipped\n", len(open))

	fmt.Println("\n3. Ad hoc criteria for the review queue...")
	queue, err := app.accounts.ReviewQueue(ctx, 1000)
	if err != nil {
		return err
	}
	for _, order := range queue {
		fmt.Printf("  - #%d %s ($%.2f, %s)\n", order.ID, order.ProductName, order.Amount, order.Status)
	}

	return nil
}

// runTransactionExamples scopes repositories to a transaction.
func runTransactionExamples(ctx context.Context, app *App) error {
	fmt.Println("1. Committing an insert...")
	err := app.session.InTransaction(ctx, func(tx gdr.Session) error {
		txAccounts, err := gdr.NewRepository[User](tx,
			[]gdr.Operation{{Name: "countByStatus"}},
			gdr.WithRegistry(app.registry))
		if err != nil {
			return err
		}

		insert := `INSERT INTO users (email, name, age, status, created_at)
			VALUES ('erin@example.com', 'Erin Vale', 31, 'active', '2024-06-01 09:00:00')`
		if _, err := tx.Exec(ctx, insert, nil); err != nil {
			return err
		}

		active, err := txAccounts.Count(ctx, "countByStatus", "active")
		if err != nil {
			return err
		}
		fmt.Printf("  active accounts inside the transaction: %d\n", active)
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	committed, err := app.accounts.Headcount(ctx, "active")
	if err != nil {
		return err
	}
	fmt.Printf("  active accounts after commit: %d\n", committed)

	fmt.Println("\n2. Rolling back on error...")
	discard := errors.New("audit rejected the batch")
	err = app.session.InTransaction(ctx, func(tx gdr.Session) error {
		insert := `INSERT INTO users (email, name, age, status, created_at)
			VALUES ('frank@example.com', 'Frank Stone', 27, 'active', '2024-06-02 10:00:00')`
		if _, err := tx.Exec(ctx, insert, nil); err != nil {
			return err
		}
		return discard
	})
	if !errors.Is(err, discard) {
		return fmt.Errorf("expected the audit error back, got: %v", err)
	}

	rolledBack, err := app.accounts.HasAccount(ctx, "frank@example.com")
	if err != nil {
		return err
	}
	fmt.Printf("  frank persisted after rollback: %t\n", rolledBack)

	return nil
}

// runMaintenanceExamples removes rows through a derived delete.
func runMaintenanceExamples(ctx context.Context, app *App) error {
	fmt.Println("1. Pruning dormant accounts...")
	removed, err := app.accounts.Prune(ctx, "dormant")
	if err != nil {
		return err
	}
	fmt.Printf("  removed %d dormant accounts\n", removed)

	remaining, err := app.accounts.Headcount(ctx, "active")
	if err != nil {
		return err
	}
	fmt.Printf("  %d active accounts remain\n", remaining)

	return nil
}
