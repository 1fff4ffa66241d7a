//go:build ignore

// Package main demonstrates the declarative repository engine on the
// Redis adapter. Run with: go run runner/redis.go
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lemmego/gdr"
	"github.com/lemmego/gdr/gdrredis"
)

// =====================================
// Demo Models
// =====================================

// Account represents a player account stored as a JSON document under
// accounts:<id>.
type Account struct {
	ID      string `db:"id,pk"`
	Handle  string
	Score   int
	Premium bool
}

// LoginSession represents a live login, stored with an expiry.
type LoginSession struct {
	ID      string `db:"id,pk"`
	Account string
	IP      string
	Active  bool
}

func main() {
	fmt.Println("🚀 Redis Adapter Demo")
	fmt.Println("=====================")

	config := gdr.Config{
		Driver:   "redis",
		Host:     "localhost",
		Port:     6379,
		Database: "0",
		Options: map[string]interface{}{
			"redis": map[string]interface{}{
				"dial_timeout":  time.Second * 5,
				"read_timeout":  time.Second * 3,
				"write_timeout": time.Second * 3,
			},
		},
	}

	session, err := gdrredis.NewSession(config)
	if err != nil {
		log.Fatalf("Redis must be running on localhost:6379: %v", err)
	}
	defer session.Close()

	ctx := context.Background()
	if err := session.Health(ctx); err != nil {
		log.Fatalf("Redis health check failed: %v", err)
	}
	fmt.Printf("✅ Connected to Redis at %s:%d (DB: %s)\n", config.Host, config.Port, config.Database)

	defer cleanup(ctx, session)

	demoRecordStorage(ctx, session)
	demoDeclarativeQueries(ctx, session)
	demoCaching(ctx, session)
	demoSessionManagement(ctx, session)
	demoDirectClient(ctx, session)

	fmt.Println("\n🎉 Redis demo completed!")
}

// =====================================
// Record Storage
// =====================================

func demoRecordStorage(ctx context.Context, session *gdrredis.Session) {
	fmt.Println("\n📝 Demo: Record Storage")
	fmt.Println("-----------------------")

	accounts := []*Account{
		{ID: "a1", Handle: "ada", Score: 4200, Premium: true},
		{ID: "a2", Handle: "brin", Score: 1800, Premium: false},
		{ID: "a3", Handle: "cho", Score: 3100, Premium: true},
		{ID: "a4", Handle: "dot", Score: 600, Premium: false},
	}
	for _, account := range accounts {
		if err := session.Store(ctx, account); err != nil {
			log.Fatalf("Failed to store account %s: %v", account.ID, err)
		}
	}
	fmt.Printf("✅ Stored %d accounts\n", len(accounts))

	keys, err := session.Client().Keys(ctx, "accounts:*").Result()
	if err != nil {
		log.Fatalf("Failed to list account keys: %v", err)
	}
	fmt.Printf("✅ Keyspace now holds %d accounts:* documents\n", len(keys))
}

// =====================================
// Declarative Queries
// =====================================

func demoDeclarativeQueries(ctx context.Context, session *gdrredis.Session) {
	fmt.Println("\n🔎 Demo: Declarative Queries")
	fmt.Println("----------------------------")

	operations := []gdr.Operation{
		{Name: "findByPremiumTrueOrderByScoreDesc"},
		{Name: "getByHandle"},
		{Name: "findByHandleStartingWith"},
		{Name: "findByScoreGreaterThan", Returns: gdr.ShapePage},
		{Name: "countByPremiumTrue"},
		{Name: "existsByHandle"},
	}
	repo, err := gdr.NewPlanRepository[Account](session, operations,
		gdr.WithRegistry(gdr.NewRegistry()))
	if err != nil {
		log.Fatalf("Failed to build the account repository: %v", err)
	}

	premium, err := repo.Find(ctx, "findByPremiumTrueOrderByScoreDesc")
	if err != nil {
		log.Fatalf("Premium query failed: %v", err)
	}
	fmt.Println("✅ Premium accounts by score:")
	for _, account := range premium {
		fmt.Printf("   - %s (%d)\n", account.Handle, account.Score)
	}

	ada, err := repo.FindOne(ctx, "getByHandle", "ada")
	if err != nil {
		log.Fatalf("Handle lookup failed: %v", err)
	}
	fmt.Printf("✅ ada resolves to account %s\n", ada.ID)

	prefixed, err := repo.Find(ctx, "findByHandleStartingWith", "d")
	if err != nil {
		log.Fatalf("Prefix query failed: %v", err)
	}
	fmt.Printf("✅ %d handles start with d\n", len(prefixed))

	page, err := repo.FindPage(ctx, "findByScoreGreaterThan", 1000,
		gdr.PageOf(0, 2).WithSort(gdr.Order{Property: "score", Direction: gdr.OrderDesc}))
	if err != nil {
		log.Fatalf("Page query failed: %v", err)
	}
	fmt.Printf("✅ Top scorers over 1000: %d of %d, more: %t\n", len(page.Items), page.Total, page.HasNext())

	count, err := repo.Count(ctx, "countByPremiumTrue")
	if err != nil {
		log.Fatalf("Count failed: %v", err)
	}
	taken, err := repo.Exists(ctx, "existsByHandle", "brin")
	if err != nil {
		log.Fatalf("Exists failed: %v", err)
	}
	fmt.Printf("✅ %d premium accounts, brin taken: %t\n", count, taken)
}

// =====================================
// Caching with TTL
// =====================================

func demoCaching(ctx context.Context, session *gdrredis.Session) {
	fmt.Println("\n⏱  Demo: Caching with TTL")
	fmt.Println("-------------------------")

	flash := &Account{ID: "flash", Handle: "weekend-bonus", Score: 0, Premium: false}
	if err := session.StoreWithTTL(ctx, flash, time.Second); err != nil {
		log.Fatalf("Failed to store the flash record: %v", err)
	}

	live, err := session.Client().Exists(ctx, "accounts:flash").Result()
	if err != nil {
		log.Fatalf("Failed to probe the flash record: %v", err)
	}
	fmt.Printf("✅ Flash record present immediately: %t\n", live == 1)

	time.Sleep(1200 * time.Millisecond)

	gone, err := session.Client().Exists(ctx, "accounts:flash").Result()
	if err != nil {
		log.Fatalf("Failed to re-probe the flash record: %v", err)
	}
	fmt.Printf("✅ Flash record present after expiry: %t\n", gone == 1)
}

// =====================================
// Session Management
// =====================================

func demoSessionManagement(ctx context.Context, session *gdrredis.Session) {
	fmt.Println("\n🔐 Demo: Session Management")
	fmt.Println("---------------------------")

	logins := []*LoginSession{
		{ID: "s1", Account: "a1", IP: "10.0.0.5", Active: true},
		{ID: "s2", Account: "a2", IP: "10.0.0.9", Active: true},
		{ID: "s3", Account: "a1", IP: "10.0.0.5", Active: false},
	}
	for _, login := range logins {
		if err := session.StoreWithTTL(ctx, login, time.Hour); err != nil {
			log.Fatalf("Failed to store login %s: %v", login.ID, err)
		}
	}

	repo, err := gdr.NewPlanRepository[LoginSession](session,
		[]gdr.Operation{
			{Name: "findByActiveTrue"},
			{Name: "countByAccount"},
		},
		gdr.WithRegistry(gdr.NewRegistry()))
	if err != nil {
		log.Fatalf("Failed to build the login repository: %v", err)
	}

	active, err := repo.Find(ctx, "findByActiveTrue")
	if err != nil {
		log.Fatalf("Active session query failed: %v", err)
	}
	fmt.Printf("✅ %d sessions are live\n", len(active))

	perAccount, err := repo.Count(ctx, "countByAccount", "a1")
	if err != nil {
		log.Fatalf("Per-account count failed: %v", err)
	}
	fmt.Printf("✅ Account a1 has %d sessions on record\n", perAccount)

	if err := session.Remove(ctx, &LoginSession{}, "s2"); err != nil {
		log.Fatalf("Logout failed: %v", err)
	}
	err = session.Remove(ctx, &LoginSession{}, "s2")
	fmt.Printf("✅ Second logout reports not found: %t\n", gdr.IsNotFound(err))
}

// =====================================
// Direct Client Access
// =====================================

func demoDirectClient(ctx context.Context, session *gdrredis.Session) {
	fmt.Println("\n🛠  Demo: Direct Client Access")
	fmt.Println("-----------------------------")

	client := session.Client()

	visits, err := client.Incr(ctx, "counters:visits").Result()
	if err != nil {
		log.Fatalf("Counter increment failed: %v", err)
	}
	fmt.Printf("✅ Raw INCR alongside stored records: visits=%d\n", visits)

	ttl, err := client.TTL(ctx, "login_sessions:s1").Result()
	if err != nil {
		log.Fatalf("TTL probe failed: %v", err)
	}
	fmt.Printf("✅ Session s1 expires in %v\n", ttl.Round(time.Minute))
}

// cleanup removes every key the demo wrote.
func cleanup(ctx context.Context, session *gdrredis.Session) {
	client := session.Client()
	for _, pattern := range []string{"accounts:*", "login_sessions:*", "counters:visits"} {
		keys, err := client.Keys(ctx, pattern).Result()
		if err != nil || len(keys) == 0 {
			continue
		}
		client.Del(ctx, keys...)
	}
}
