//go:build ignore

// Package main demonstrates the declarative repository engine on the
// MongoDB adapter. Run with: go run runner/mongo.go
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lemmego/gdr"
	"github.com/lemmego/gdr/gdrmongo"
	"go.mongodb.org/mongo-driver/bson"
)

// =====================================
// Domain Models
// =====================================

// Article represents a published piece. The identifier stays a string
// on the Go side; the adapter converts hex values to ObjectIDs when
// filtering on it.
type Article struct {
	ID          string `db:"id,pk"`
	Title       string
	Author      string
	Words       int
	Published   bool
	PublishedAt time.Time
}

func (Article) TableName() string { return "articles" }

// =====================================
// Service Layer
// =====================================

// NewsService answers editorial questions against the article
// collection.
type NewsService struct {
	articles *gdr.Repository[Article]
	session  *gdrmongo.Session
}

// NewNewsService parses the operation set and binds it to the
// document session.
func NewNewsService(session *gdrmongo.Session) (*NewsService, error) {
	operations := []gdr.Operation{
		{Name: "findByPublishedTrueOrderByPublishedAtDesc"},
		{Name: "findByAuthorOrderByWordsDesc"},
		{Name: "getByTitle"},
		{Name: "findByWordsBetween"},
		{Name: "findByTitleStartingWith"},
		{Name: "findByWordsGreaterThan", Returns: gdr.ShapePage},
		{Name: "countByAuthor"},
		{Name: "existsByTitle"},
		{Name: "deleteByPublishedFalse"},
		// SQL templates have no translation on a document session;
		// invoking this one shows the unsupported error.
		{Name: "headlines", Query: "SELECT title FROM articles"},
	}

	articles, err := gdr.NewPlanRepository[Article](session, operations,
		gdr.WithRegistry(gdr.NewRegistry()))
	if err != nil {
		return nil, fmt.Errorf("failed to build the article repository: %w", err)
	}

	return &NewsService{articles: articles, session: session}, nil
}

// FrontPage lists published articles, newest first.
func (s *NewsService) FrontPage(ctx context.Context) ([]*Article, error) {
	articles, err := s.articles.Find(ctx, "findByPublishedTrueOrderByPublishedAtDesc")
	if err != nil {
		return nil, fmt.Errorf("failed to load the front page: %w", err)
	}
	return articles, nil
}

// ByAuthor lists an author's pieces, longest first.
func (s *NewsService) ByAuthor(ctx context.Context, author string) ([]*Article, error) {
	articles, err := s.articles.Find(ctx, "findByAuthorOrderByWordsDesc", author)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles by %s: %w", author, err)
	}
	return articles, nil
}

// Headline fetches one article by exact title, nil when absent.
func (s *NewsService) Headline(ctx context.Context, title string) (*Article, error) {
	article, err := s.articles.FindOne(ctx, "getByTitle", title)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %q: %w", title, err)
	}
	return article, nil
}

// MidLength lists articles whose word count falls in the inclusive
// range.
func (s *NewsService) MidLength(ctx context.Context, low, high int) ([]*Article, error) {
	articles, err := s.articles.Find(ctx, "findByWordsBetween", low, high)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles between %d and %d words: %w", low, high, err)
	}
	return articles, nil
}

// SeriesPrefix lists articles whose title starts with the prefix,
// matched case-insensitively.
func (s *NewsService) SeriesPrefix(ctx context.Context, prefix string) ([]*Article, error) {
	articles, err := s.articles.Find(ctx, "findByTitleStartingWith", prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list the %q series: %w", prefix, err)
	}
	return articles, nil
}

// LongReads pages through articles over the word floor.
func (s *NewsService) LongReads(ctx context.Context, words int, page gdr.PageRequest) (*gdr.Page[Article], error) {
	result, err := s.articles.FindPage(ctx, "findByWordsGreaterThan", words, page)
	if err != nil {
		return nil, fmt.Errorf("failed to page long reads: %w", err)
	}
	return result, nil
}

// Portfolio counts an author's articles.
func (s *NewsService) Portfolio(ctx context.Context, author string) (int64, error) {
	return s.articles.Count(ctx, "countByAuthor", author)
}

// Covered reports whether a title is already taken.
func (s *NewsService) Covered(ctx context.Context, title string) (bool, error) {
	return s.articles.Exists(ctx, "existsByTitle", title)
}

// DropDrafts removes unpublished articles.
func (s *NewsService) DropDrafts(ctx context.Context) (int64, error) {
	return s.articles.Delete(ctx, "deleteByPublishedFalse")
}

// ByIdentifier fetches an article through its hex identifier using an
// ad hoc criteria query.
func (s *NewsService) ByIdentifier(ctx context.Context, id string) (*Article, error) {
	article, err := s.articles.Query().
		Where("id", gdr.CompEquals, id).
		One(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article %s: %w", id, err)
	}
	return article, nil
}

// =====================================
// Application Setup
// =====================================

// newSession connects to a local MongoDB instance.
func newSession() (*gdrmongo.Session, error) {
	return gdrmongo.NewSession(gdr.Config{
		Driver:   "mongodb",
		Host:     "localhost",
		Port:     27017,
		Database: "gdr_runner",
	})
}

// seedArticles resets the collection to a known data set.
func seedArticles(ctx context.Context, session *gdrmongo.Session) error {
	collection := session.Database().Collection("articles")

	if _, err := collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear the collection: %w", err)
	}

	day := func(offset int) time.Time {
		return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
	}
	docs := []interface{}{
		bson.M{"title": "Go Ships Generics", "author": "Ada", "words": 1800, "published": true, "published_at": day(0)},
		bson.M{"title": "Go Modules in Depth", "author": "Ada", "words": 2600, "published": true, "published_at": day(2)},
		bson.M{"title": "Parsing Without Tears", "author": "Brin", "words": 950, "published": true, "published_at": day(4)},
		bson.M{"title": "Untitled Draft", "author": "Brin", "words": 120, "published": false, "published_at": day(5)},
		bson.M{"title": "Scheduler Internals", "author": "Cho", "words": 3200, "published": true, "published_at": day(6)},
	}
	if _, err := collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert the seed articles: %w", err)
	}
	return nil
}

// =====================================
// Main Application
// =====================================

func main() {
	ctx := context.Background()

	session, err := newSession()
	if err != nil {
		log.Fatalf("MongoDB must be running on localhost:27017: %v", err)
	}
	defer session.Close()
	defer session.Database().Collection("articles").Drop(context.Background())

	if err := seedArticles(ctx, session); err != nil {
		log.Fatalf("Failed to seed articles: %v", err)
	}

	news, err := NewNewsService(session)
	if err != nil {
		log.Fatalf("Failed to build the news service: %v", err)
	}

	fmt.Println("=== Running Query Examples ===")
	if err := runQueryExamples(ctx, news); err != nil {
		log.Printf("Query examples failed: %v", err)
	}

	fmt.Println("\n=== Running Window Examples ===")
	if err := runWindowExamples(ctx, news); err != nil {
		log.Printf("Window examples failed: %v", err)
	}

	fmt.Println("\n=== Running Identifier Examples ===")
	if err := runIdentifierExamples(ctx, news); err != nil {
		log.Printf("Identifier examples failed: %v", err)
	}

	fmt.Println("\n=== Running Guardrail Examples ===")
	runGuardrailExamples(ctx, news)

	fmt.Println("\n=== Running Maintenance Examples ===")
	if err := runMaintenanceExamples(ctx, news); err != nil {
		log.Printf("Maintenance examples failed: %v", err)
	}
}

// =====================================
// Example Functions
// =====================================

// runQueryExamples exercises filters translated to MongoDB documents.
func runQueryExamples(ctx context.Context, news *NewsService) error {
	fmt.Println("1. Front page, newest first...")
	front, err := news.FrontPage(ctx)
	if err != nil {
		return err
	}
	for _, article := range front {
		fmt.Printf("  - %s (%s, %d words)\n", article.Title, article.PublishedAt.Format("2006-01-02"), article.Words)
	}

	fmt.Println("\n2. One author's portfolio...")
	byAda, err := news.ByAuthor(ctx, "Ada")
	if err != nil {
		return err
	}
	portfolio, err := news.Portfolio(ctx, "Ada")
	if err != nil {
		return err
	}
	fmt.Printf("  Ada has %d articles, longest is %q\n", portfolio, byAda[0].Title)

	fmt.Println("\n3. Range and prefix filters...")
	mid, err := news.MidLength(ctx, 900, 2000)
	if err != nil {
		return err
	}
	fmt.Printf("  %d articles run 900-2000 words\n", len(mid))

	series, err := news.SeriesPrefix(ctx, "go ")
	if err != nil {
		return err
	}
	fmt.Printf("  %d titles start with \"go \"\n", len(series))

	fmt.Println("\n4. Single fetch and probes...")
	scheduler, err := news.Headline(ctx, "Scheduler Internals")
	if err != nil {
		return err
	}
	fmt.Printf("  fetched %q by %s\n", scheduler.Title, scheduler.Author)

	covered, err := news.Covered(ctx, "Go Ships Generics")
	if err != nil {
		return err
	}
	fmt.Printf("  \"Go Ships Generics\" already covered: %t\n", covered)

	return nil
}

// runWindowExamples pages through a filtered collection.
func runWindowExamples(ctx context.Context, news *NewsService) error {
	fmt.Println("1. First page of long reads...")
	first, err := news.LongReads(ctx, 500,
		gdr.PageOf(0, 2).WithSort(gdr.Order{Property: "words", Direction: gdr.OrderDesc}))
	if err != nil {
		return err
	}
	for _, article := range first.Items {
		fmt.Printf("  - %s (%d words)\n", article.Title, article.Words)
	}
	fmt.Printf("  %d of %d matches, more: %t\n", len(first.Items), first.Total, first.HasNext())

	fmt.Println("\n2. Second page...")
	second, err := news.LongReads(ctx, 500,
		gdr.OffsetLimit(2, 2).WithSort(gdr.Order{Property: "words", Direction: gdr.OrderDesc}))
	if err != nil {
		return err
	}
	for _, article := range second.Items {
		fmt.Printf("  - %s (%d words)\n", article.Title, article.Words)
	}

	return nil
}

// runIdentifierExamples round-trips a MongoDB ObjectID through the
// string identifier field.
func runIdentifierExamples(ctx context.Context, news *NewsService) error {
	fmt.Println("1. Fetching by generated identifier...")
	article, err := news.Headline(ctx, "Parsing Without Tears")
	if err != nil {
		return err
	}
	fmt.Printf("  hex identifier: %s\n", article.ID)

	again, err := news.ByIdentifier(ctx, article.ID)
	if err != nil {
		return err
	}
	fmt.Printf("  refetched %q through its identifier\n", again.Title)

	return nil
}

// runGuardrailExamples shows the errors a document session reports
// for SQL-only features.
func runGuardrailExamples(ctx context.Context, news *NewsService) {
	fmt.Println("1. Invoking a SQL template...")
	_, err := news.articles.Find(ctx, "headlines")
	if gdr.IsErrorKind(err, gdr.ErrorKindUnsupported) {
		fmt.Printf("  rejected as expected: %v\n", err)
	} else {
		log.Printf("  expected an unsupported error, got: %v", err)
	}
}

// runMaintenanceExamples removes drafts through a derived delete.
func runMaintenanceExamples(ctx context.Context, news *NewsService) error {
	fmt.Println("1. Dropping drafts...")
	removed, err := news.DropDrafts(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  removed %d drafts\n", removed)

	published, err := news.FrontPage(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  %d published articles remain\n", len(published))

	return nil
}
