package gdrbun

import (
	"context"
	"errors"
	"testing"

	"github.com/lemmego/gdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Test model
type TestNote struct {
	ID       int64 `db:"id,pk"`
	Title    string
	Body     string
	Stars    int
	Archived bool
}

func (TestNote) TableName() string { return "test_notes" }

// Test suite
type BunAdapterTestSuite struct {
	suite.Suite
	session *Session
	repo    *gdr.Repository[TestNote]
	ctx     context.Context
}

func (suite *BunAdapterTestSuite) SetupSuite() {
	// Use SQLite for testing
	config := gdr.Config{
		Driver:   "bun:sqlite",
		Database: ":memory:",
		// A single pooled connection keeps the in-memory database
		// alive across statements.
		MaxOpenConns: 1,
		Options: map[string]interface{}{
			"bun": map[string]interface{}{
				"log_level": "silent",
			},
		},
	}

	session, err := NewSession(config)
	require.NoError(suite.T(), err)
	suite.session = session
	suite.ctx = context.Background()

	suite.mustExec(`CREATE TABLE test_notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		stars INTEGER NOT NULL DEFAULT 0,
		archived BOOLEAN NOT NULL DEFAULT 0
	)`)

	operations := []gdr.Operation{
		{Name: "findByArchivedFalse"},
		{Name: "getByTitle"},
		{Name: "findByStarsGreaterThanOrderByStarsDesc"},
		{Name: "findByStarsGreaterThan", Returns: gdr.ShapePage},
		{Name: "countByArchivedTrue"},
		{Name: "existsByTitle"},
		{Name: "deleteByArchivedTrue"},
		{Name: "searchByBody",
			Query:  "SELECT * FROM test_notes WHERE body LIKE :needle",
			Params: []gdr.Param{{Name: "needle"}}},
	}

	repo, err := gdr.NewRepository[TestNote](session, operations, gdr.WithRegistry(gdr.NewRegistry()))
	require.NoError(suite.T(), err)
	suite.repo = repo
}

func (suite *BunAdapterTestSuite) TearDownSuite() {
	if suite.session != nil {
		suite.session.Close()
	}
}

func (suite *BunAdapterTestSuite) SetupTest() {
	suite.mustExec("DELETE FROM test_notes")
	suite.mustExec(`INSERT INTO test_notes (id, title, body, stars, archived) VALUES
		(1, 'Sprint Plan', 'Q3 goals and staffing', 5, 0),
		(2, 'Retro Notes', 'What went well last cycle', 2, 1),
		(3, 'Design Doc', 'Renderer layout draft', 8, 0),
		(4, 'Old Memo', 'Archive me', 1, 1)`)
}

func (suite *BunAdapterTestSuite) mustExec(query string) {
	_, err := suite.session.Exec(suite.ctx, query, nil)
	require.NoError(suite.T(), err)
}

// =====================================
// Provider Tests
// =====================================

func (suite *BunAdapterTestSuite) TestProviderRegistration() {
	assert.ElementsMatch(suite.T(),
		[]string{"bun:postgres", "bun:mysql", "bun:sqlite"}, SupportedDrivers())

	info, ok := gdr.Describe("bun:sqlite")
	require.True(suite.T(), ok)
	assert.Equal(suite.T(), "Bun", info.Name)
	assert.Equal(suite.T(), gdr.DatabaseTypeSQL, info.DatabaseType)
	assert.Contains(suite.T(), info.Features, gdr.FeatureTransactions)
}

func (suite *BunAdapterTestSuite) TestUnsupportedDriver() {
	_, err := NewSession(gdr.Config{Driver: "bun:oracle"})
	assert.True(suite.T(), gdr.IsErrorKind(err, gdr.ErrorKindUnsupported))
}

func (suite *BunAdapterTestSuite) TestDialect() {
	assert.Equal(suite.T(), gdr.DialectSQLite, suite.session.Dialect())
}

func (suite *BunAdapterTestSuite) TestSessionHealth() {
	assert.NoError(suite.T(), suite.session.Health(suite.ctx))
}

func (suite *BunAdapterTestSuite) TestWrapDB() {
	wrapped := WrapDB(suite.session.DB())
	assert.Equal(suite.T(), gdr.DialectSQLite, wrapped.Dialect())
	assert.NoError(suite.T(), wrapped.Health(suite.ctx))
}

// =====================================
// Derived Query Tests
// =====================================

func (suite *BunAdapterTestSuite) TestFindByProperty() {
	notes, err := suite.repo.Find(suite.ctx, "findByArchivedFalse")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), notes, 2)

	titles := []string{notes[0].Title, notes[1].Title}
	assert.ElementsMatch(suite.T(), []string{"Sprint Plan", "Design Doc"}, titles)
	for _, note := range notes {
		assert.False(suite.T(), note.Archived)
	}
}

func (suite *BunAdapterTestSuite) TestFindOne() {
	note, err := suite.repo.FindOne(suite.ctx, "getByTitle", "Design Doc")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), note)
	assert.Equal(suite.T(), 8, note.Stars)
	assert.Equal(suite.T(), "Renderer layout draft", note.Body)

	missing, err := suite.repo.FindOne(suite.ctx, "getByTitle", "No Such Note")
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), missing)
}

func (suite *BunAdapterTestSuite) TestOrdering() {
	notes, err := suite.repo.Find(suite.ctx, "findByStarsGreaterThanOrderByStarsDesc", 1)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), notes, 3)
	assert.Equal(suite.T(), 8, notes[0].Stars)
	assert.Equal(suite.T(), 5, notes[1].Stars)
	assert.Equal(suite.T(), 2, notes[2].Stars)
}

func (suite *BunAdapterTestSuite) TestCount() {
	count, err := suite.repo.Count(suite.ctx, "countByArchivedTrue")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), count)
}

func (suite *BunAdapterTestSuite) TestExists() {
	exists, err := suite.repo.Exists(suite.ctx, "existsByTitle", "Old Memo")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), exists)

	exists, err = suite.repo.Exists(suite.ctx, "existsByTitle", "Nothing Here")
	require.NoError(suite.T(), err)
	assert.False(suite.T(), exists)
}

func (suite *BunAdapterTestSuite) TestDelete() {
	affected, err := suite.repo.Delete(suite.ctx, "deleteByArchivedTrue")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), affected)

	remaining, err := suite.repo.Query().Count(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), remaining)
}

func (suite *BunAdapterTestSuite) TestPage() {
	page, err := suite.repo.FindPage(suite.ctx, "findByStarsGreaterThan", 0,
		gdr.PageOf(0, 3).WithSort(gdr.Order{Property: "stars", Direction: gdr.OrderAsc}))
	require.NoError(suite.T(), err)
	require.Len(suite.T(), page.Items, 3)
	assert.Equal(suite.T(), 1, page.Items[0].Stars)
	assert.Equal(suite.T(), 2, page.Items[1].Stars)
	assert.Equal(suite.T(), 5, page.Items[2].Stars)
	assert.Equal(suite.T(), int64(4), page.Total)
	assert.True(suite.T(), page.HasNext())

	page, err = suite.repo.FindPage(suite.ctx, "findByStarsGreaterThan", 0,
		gdr.OffsetLimit(3, 3).WithSort(gdr.Order{Property: "stars", Direction: gdr.OrderAsc}))
	require.NoError(suite.T(), err)
	require.Len(suite.T(), page.Items, 1)
	assert.Equal(suite.T(), 8, page.Items[0].Stars)
	assert.False(suite.T(), page.HasNext())
}

// =====================================
// Templated and Criteria Tests
// =====================================

func (suite *BunAdapterTestSuite) TestTemplatedNamed() {
	notes, err := suite.repo.Find(suite.ctx, "searchByBody", "%went%")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), notes, 1)
	assert.Equal(suite.T(), "Retro Notes", notes[0].Title)
}

func (suite *BunAdapterTestSuite) TestCriteriaQuery() {
	notes, err := suite.repo.Query().
		Where("stars", gdr.CompBetween, 2, 6).
		OrderBy("stars", gdr.OrderDesc).
		All(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), notes, 2)
	assert.Equal(suite.T(), "Sprint Plan", notes[0].Title)
	assert.Equal(suite.T(), "Retro Notes", notes[1].Title)
}

// =====================================
// Transaction Tests
// =====================================

func (suite *BunAdapterTestSuite) TestTransactionCommit() {
	err := suite.session.InTransaction(suite.ctx, func(tx gdr.Session) error {
		_, err := tx.Exec(suite.ctx, `INSERT INTO test_notes (id, title, body, stars, archived)
			VALUES (5, 'Tx Note', 'Committed', 3, 0)`, nil)
		return err
	})
	require.NoError(suite.T(), err)

	n, err := suite.repo.Query().Count(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(5), n)
}

func (suite *BunAdapterTestSuite) TestTransactionRollback() {
	boom := errors.New("boom")
	err := suite.session.InTransaction(suite.ctx, func(tx gdr.Session) error {
		if _, execErr := tx.Exec(suite.ctx, `INSERT INTO test_notes (id, title, body, stars, archived)
			VALUES (6, 'Doomed', 'Rolled back', 0, 0)`, nil); execErr != nil {
			return execErr
		}
		return boom
	})
	assert.ErrorIs(suite.T(), err, boom)

	n, err := suite.repo.Query().Count(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(4), n)
}

func TestBunAdapterTestSuite(t *testing.T) {
	suite.Run(t, new(BunAdapterTestSuite))
}
