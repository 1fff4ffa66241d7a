package gdrmongo

import (
	"context"
	"testing"

	"github.com/lemmego/gdr"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
)

// Test model stored as documents in the test database
type TestArticle struct {
	ID       string `db:"id,pk"`
	Title    string
	Views    int
	Featured bool
}

func (TestArticle) TableName() string { return "test_articles" }

// Test suite
type MongoAdapterTestSuite struct {
	suite.Suite
	session *Session
	repo    *gdr.Repository[TestArticle]
	ctx     context.Context
}

func (suite *MongoAdapterTestSuite) SetupSuite() {
	config := gdr.Config{
		Driver:   "mongodb",
		Host:     "localhost",
		Port:     27017,
		Database: "gdr_test",
	}

	// Skip tests if MongoDB is not available
	session, err := NewSession(config)
	if err != nil {
		suite.T().Skip("MongoDB not available for testing:", err)
		return
	}

	suite.session = session
	suite.ctx = context.Background()

	registry := gdr.NewRegistry()
	operations := []gdr.Operation{
		{Name: "findByFeaturedTrue"},
		{Name: "getByTitle"},
		{Name: "findByViewsGreaterThanOrderByViewsDesc"},
		{Name: "findByViewsGreaterThan", Returns: gdr.ShapePage},
		{Name: "countByFeaturedTrue"},
		{Name: "existsByTitle"},
		{Name: "deleteByFeaturedFalse"},
		{Name: "rawTitles", Query: "SELECT title FROM test_articles"},
	}

	repo, err := gdr.NewPlanRepository[TestArticle](session, operations, gdr.WithRegistry(registry))
	suite.Require().NoError(err)
	suite.repo = repo
}

func (suite *MongoAdapterTestSuite) TearDownSuite() {
	if suite.session != nil {
		_ = suite.session.Database().Collection("test_articles").Drop(context.Background())
		suite.session.Close()
	}
}

func (suite *MongoAdapterTestSuite) SetupTest() {
	coll := suite.session.Database().Collection("test_articles")
	_, err := coll.DeleteMany(suite.ctx, bson.M{})
	suite.Require().NoError(err)

	_, err = coll.InsertMany(suite.ctx, []interface{}{
		bson.M{"title": "Go Weekly", "views": 100, "featured": true},
		bson.M{"title": "Rust Digest", "views": 80, "featured": false},
		bson.M{"title": "Systems Letter", "views": 250, "featured": true},
		bson.M{"title": "Parser Notes", "views": 40, "featured": false},
	})
	suite.Require().NoError(err)
}

// =====================================
// Derived Query Tests
// =====================================

func (suite *MongoAdapterTestSuite) TestFindByProperty() {
	articles, err := suite.repo.Find(suite.ctx, "findByFeaturedTrue")
	suite.Require().NoError(err)
	suite.Len(articles, 2)
	for _, article := range articles {
		suite.True(article.Featured)
		suite.Len(article.ID, 24)
	}
}

func (suite *MongoAdapterTestSuite) TestFindOne() {
	article, err := suite.repo.FindOne(suite.ctx, "getByTitle", "Go Weekly")
	suite.Require().NoError(err)
	suite.Require().NotNil(article)
	suite.Equal(100, article.Views)

	missing, err := suite.repo.FindOne(suite.ctx, "getByTitle", "No Such Title")
	suite.Require().NoError(err)
	suite.Nil(missing)
}

func (suite *MongoAdapterTestSuite) TestOrdering() {
	articles, err := suite.repo.Find(suite.ctx, "findByViewsGreaterThanOrderByViewsDesc", 50)
	suite.Require().NoError(err)
	suite.Require().Len(articles, 3)

	titles := []string{articles[0].Title, articles[1].Title, articles[2].Title}
	suite.Equal([]string{"Systems Letter", "Go Weekly", "Rust Digest"}, titles)
}

func (suite *MongoAdapterTestSuite) TestCount() {
	count, err := suite.repo.Count(suite.ctx, "countByFeaturedTrue")
	suite.Require().NoError(err)
	suite.Equal(int64(2), count)
}

func (suite *MongoAdapterTestSuite) TestExists() {
	exists, err := suite.repo.Exists(suite.ctx, "existsByTitle", "Rust Digest")
	suite.Require().NoError(err)
	suite.True(exists)

	exists, err = suite.repo.Exists(suite.ctx, "existsByTitle", "Nothing Here")
	suite.Require().NoError(err)
	suite.False(exists)
}

func (suite *MongoAdapterTestSuite) TestDelete() {
	affected, err := suite.repo.Delete(suite.ctx, "deleteByFeaturedFalse")
	suite.Require().NoError(err)
	suite.Equal(int64(2), affected)

	remaining, err := suite.repo.Query().Count(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(int64(2), remaining)
}

func (suite *MongoAdapterTestSuite) TestPage() {
	page, err := suite.repo.FindPage(suite.ctx, "findByViewsGreaterThan", 0,
		gdr.PageOf(0, 2).WithSort(gdr.Order{Property: "views", Direction: gdr.OrderAsc}))
	suite.Require().NoError(err)
	suite.Require().Len(page.Items, 2)
	suite.Equal(40, page.Items[0].Views)
	suite.Equal(80, page.Items[1].Views)
	suite.Equal(int64(4), page.Total)
	suite.True(page.HasNext())

	page, err = suite.repo.FindPage(suite.ctx, "findByViewsGreaterThan", 0,
		gdr.OffsetLimit(2, 2).WithSort(gdr.Order{Property: "views", Direction: gdr.OrderAsc}))
	suite.Require().NoError(err)
	suite.Require().Len(page.Items, 2)
	suite.Equal(100, page.Items[0].Views)
	suite.Equal(250, page.Items[1].Views)
	suite.False(page.HasNext())
}

// =====================================
// Criteria Query Tests
// =====================================

func (suite *MongoAdapterTestSuite) TestCriteriaQuery() {
	articles, err := suite.repo.Query().
		Where("featured", gdr.CompTrue).
		OrderBy("views", gdr.OrderDesc).
		All(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(articles, 2)
	suite.Equal("Systems Letter", articles[0].Title)
	suite.Equal("Go Weekly", articles[1].Title)
}

func (suite *MongoAdapterTestSuite) TestCriteriaByIdentifier() {
	article, err := suite.repo.FindOne(suite.ctx, "getByTitle", "Parser Notes")
	suite.Require().NoError(err)
	suite.Require().NotNil(article)

	found, err := suite.repo.Query().
		Where("id", gdr.CompEquals, article.ID).
		One(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().NotNil(found)
	suite.Equal("Parser Notes", found.Title)
}

func (suite *MongoAdapterTestSuite) TestCriteriaExists() {
	exists, err := suite.repo.Query().
		Where("views", gdr.CompGreaterThan, 200).
		Exists(suite.ctx)
	suite.Require().NoError(err)
	suite.True(exists)

	exists, err = suite.repo.Query().
		Where("views", gdr.CompGreaterThan, 1000).
		Exists(suite.ctx)
	suite.Require().NoError(err)
	suite.False(exists)
}

// =====================================
// Session Tests
// =====================================

func (suite *MongoAdapterTestSuite) TestTemplatedRejected() {
	_, err := suite.repo.Invoke(suite.ctx, "rawTitles")
	suite.True(gdr.IsErrorKind(err, gdr.ErrorKindUnsupported))
}

func (suite *MongoAdapterTestSuite) TestSessionHealth() {
	suite.NoError(suite.session.Health(suite.ctx))
}

func (suite *MongoAdapterTestSuite) TestProviderRegistration() {
	info, ok := gdr.Describe("mongodb")
	suite.True(ok)
	suite.Equal("MongoDB", info.Name)
	suite.Equal(gdr.DatabaseTypeDocument, info.DatabaseType)
}

func TestMongoAdapterTestSuite(t *testing.T) {
	suite.Run(t, new(MongoAdapterTestSuite))
}
