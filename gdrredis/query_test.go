package gdrredis

import (
	"context"
	"testing"

	"github.com/lemmego/gdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type CachedArticle struct {
	ID    string `db:"id,pk"`
	Title string
	Views int
}

func cachedArticleDescriptor(t *testing.T) *gdr.EntityDescriptor {
	t.Helper()
	return gdr.NewRegistry().MustRegister(CachedArticle{})
}

func comparisonOn(column string, comp gdr.Comparator, params ...int) gdr.Comparison {
	return gdr.Comparison{
		Property:   gdr.ResolvedProperty{Field: gdr.FieldDescriptor{Column: column}},
		Comparator: comp,
		Params:     params,
	}
}

func bound(values ...interface{}) *gdr.BoundArguments {
	return &gdr.BoundArguments{Values: values}
}

// record builds a decoded document the way loadRecords produces them:
// JSON numbers arrive as float64.
func record(id string, title string, views float64) storedRecord {
	return storedRecord{
		key: entityKey("cached_articles", id),
		doc: map[string]interface{}{"id": id, "title": title, "views": views},
	}
}

// =====================================
// Filter Evaluation Tests
// =====================================

func TestEvalComparison(t *testing.T) {
	doc := map[string]interface{}{
		"id":       "7",
		"title":    "Ada Lovelace",
		"views":    float64(35),
		"archived": false,
		"draft":    true,
		"note":     nil,
	}

	tests := []struct {
		name     string
		node     gdr.Comparison
		binds    *gdr.BoundArguments
		expected bool
	}{
		{"equals numeric", comparisonOn("views", gdr.CompEquals, 0), bound(35), true},
		{"equals mismatch", comparisonOn("views", gdr.CompEquals, 0), bound(36), false},
		{"not", comparisonOn("views", gdr.CompNot, 0), bound(36), true},
		{"greater than", comparisonOn("views", gdr.CompGreaterThan, 0), bound(30), true},
		{"greater than false", comparisonOn("views", gdr.CompGreaterThan, 0), bound(40), false},
		{"less than", comparisonOn("views", gdr.CompLessThan, 0), bound(40), true},
		{"between inside", comparisonOn("views", gdr.CompBetween, 0, 1), bound(30, 40), true},
		{"between outside", comparisonOn("views", gdr.CompBetween, 0, 1), bound(40, 50), false},
		{"like", comparisonOn("title", gdr.CompLike, 0), bound("%love%"), true},
		{"like miss", comparisonOn("title", gdr.CompLike, 0), bound("%turing%"), false},
		{"starting with", comparisonOn("title", gdr.CompStartingWith, 0), bound("ada"), true},
		{"ending with", comparisonOn("title", gdr.CompEndingWith, 0), bound("LACE"), true},
		{"in hit", comparisonOn("views", gdr.CompIn, 0), bound([]int{30, 35}), true},
		{"in miss", comparisonOn("views", gdr.CompIn, 0), bound([]int{30, 40}), false},
		{"is null missing key", comparisonOn("email", gdr.CompIsNull), bound(), true},
		{"is null present nil", comparisonOn("note", gdr.CompIsNull), bound(), true},
		{"is null has value", comparisonOn("title", gdr.CompIsNull), bound(), false},
		{"is not null", comparisonOn("title", gdr.CompIsNotNull), bound(), true},
		{"is not null missing", comparisonOn("email", gdr.CompIsNotNull), bound(), false},
		{"true", comparisonOn("draft", gdr.CompTrue), bound(), true},
		{"true non-bool", comparisonOn("views", gdr.CompTrue), bound(), false},
		{"false", comparisonOn("archived", gdr.CompFalse), bound(), true},
		{"false non-bool", comparisonOn("title", gdr.CompFalse), bound(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalComparison(tt.node, doc, tt.binds)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCompareNumericFirst(t *testing.T) {
	// Decoded numbers must not fall back to lexicographic compare,
	// where "7" would sort after "30".
	assert.Negative(t, compare(float64(7), 30))
	assert.Positive(t, compare(float64(30), 7))
	assert.Zero(t, compare(float64(30), 30))

	assert.Negative(t, compare("apple", "banana"))
	assert.Zero(t, compare("apple", "apple"))
}

func TestEvalNode(t *testing.T) {
	doc := map[string]interface{}{"title": "Ada Lovelace", "views": float64(35)}
	binds := bound(30, "%love%", "nope")

	ok, err := evalNode(nil, doc, binds)
	require.NoError(t, err)
	assert.True(t, ok)

	and := gdr.AndGroup{Nodes: []gdr.FilterNode{
		comparisonOn("views", gdr.CompGreaterThan, 0),
		comparisonOn("title", gdr.CompLike, 1),
	}}
	ok, err = evalNode(and, doc, binds)
	require.NoError(t, err)
	assert.True(t, ok)

	and.Nodes = append(and.Nodes, comparisonOn("title", gdr.CompEquals, 2))
	ok, err = evalNode(and, doc, binds)
	require.NoError(t, err)
	assert.False(t, ok)

	or := gdr.OrGroup{Nodes: []gdr.FilterNode{
		comparisonOn("title", gdr.CompEquals, 2),
		comparisonOn("views", gdr.CompGreaterThan, 0),
	}}
	ok, err = evalNode(or, doc, binds)
	require.NoError(t, err)
	assert.True(t, ok)

	or = gdr.OrGroup{Nodes: []gdr.FilterNode{
		comparisonOn("title", gdr.CompEquals, 2),
		comparisonOn("views", gdr.CompLessThan, 0),
	}}
	ok, err = evalNode(or, doc, binds)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalTraversalUnsupported(t *testing.T) {
	node := gdr.Comparison{
		Property: gdr.ResolvedProperty{
			Path:     "author.name",
			Relation: &gdr.RelationDescriptor{Property: "author"},
			Field:    gdr.FieldDescriptor{Column: "name"},
		},
		Comparator: gdr.CompEquals,
		Params:     []int{0},
	}
	_, err := evalComparison(node, map[string]interface{}{}, bound("Ada"))
	assert.True(t, gdr.IsErrorKind(err, gdr.ErrorKindUnsupported))
}

// =====================================
// Ordering and Windowing Tests
// =====================================

func TestSortRecords(t *testing.T) {
	desc := cachedArticleDescriptor(t)
	records := []storedRecord{
		record("1", "Go Weekly", 100),
		record("2", "Rust Digest", 250),
		record("3", "Parser Notes", 40),
	}

	plan := &gdr.QueryPlan{
		Entity: desc,
		Orders: []gdr.Order{{Property: "views", Direction: gdr.OrderDesc}},
	}
	require.NoError(t, sortRecords(plan, &gdr.BoundArguments{}, records))
	assert.Equal(t, "2", records[0].doc["id"])
	assert.Equal(t, "1", records[1].doc["id"])
	assert.Equal(t, "3", records[2].doc["id"])
}

func TestSortRecordsStableTies(t *testing.T) {
	desc := cachedArticleDescriptor(t)
	records := []storedRecord{
		record("1", "First", 50),
		record("2", "Second", 50),
		record("3", "Third", 20),
	}

	plan := &gdr.QueryPlan{
		Entity: desc,
		Orders: []gdr.Order{{Property: "views", Direction: gdr.OrderAsc}},
	}
	require.NoError(t, sortRecords(plan, &gdr.BoundArguments{}, records))
	assert.Equal(t, "3", records[0].doc["id"])
	assert.Equal(t, "1", records[1].doc["id"])
	assert.Equal(t, "2", records[2].doc["id"])
}

func TestSortRecordsPageOverride(t *testing.T) {
	desc := cachedArticleDescriptor(t)
	records := []storedRecord{
		record("1", "Bravo", 100),
		record("2", "Alpha", 250),
	}

	plan := &gdr.QueryPlan{
		Entity: desc,
		Orders: []gdr.Order{{Property: "views", Direction: gdr.OrderDesc}},
	}
	binds := &gdr.BoundArguments{Page: &gdr.PageRequest{
		Limit: 10,
		Sort:  []gdr.Order{{Property: "title", Direction: gdr.OrderAsc}},
	}}
	require.NoError(t, sortRecords(plan, binds, records))
	assert.Equal(t, "Alpha", records[0].doc["title"])
	assert.Equal(t, "Bravo", records[1].doc["title"])
}

func TestSortRecordsErrors(t *testing.T) {
	desc := cachedArticleDescriptor(t)
	records := []storedRecord{record("1", "Go Weekly", 100)}

	plan := &gdr.QueryPlan{Entity: desc, Orders: []gdr.Order{{Property: "author.name"}}}
	err := sortRecords(plan, &gdr.BoundArguments{}, records)
	assert.True(t, gdr.IsErrorKind(err, gdr.ErrorKindUnsupported))

	plan = &gdr.QueryPlan{Entity: desc, Orders: []gdr.Order{{Property: "missing"}}}
	err = sortRecords(plan, &gdr.BoundArguments{}, records)
	assert.True(t, gdr.IsErrorKind(err, gdr.ErrorKindUnresolvableProperty))
}

func TestApplyWindow(t *testing.T) {
	records := []storedRecord{
		record("1", "a", 1),
		record("2", "b", 2),
		record("3", "c", 3),
		record("4", "d", 4),
	}

	windowed := applyWindow(records, &gdr.BoundArguments{Page: &gdr.PageRequest{Offset: 1, Limit: 2}})
	require.Len(t, windowed, 2)
	assert.Equal(t, "2", windowed[0].doc["id"])
	assert.Equal(t, "3", windowed[1].doc["id"])

	windowed = applyWindow(records, &gdr.BoundArguments{Page: &gdr.PageRequest{Offset: 3, Limit: 5}})
	require.Len(t, windowed, 1)
	assert.Equal(t, "4", windowed[0].doc["id"])

	windowed = applyWindow(records, &gdr.BoundArguments{Page: &gdr.PageRequest{Offset: 10, Limit: 5}})
	assert.Empty(t, windowed)

	windowed = applyWindow(records, &gdr.BoundArguments{})
	assert.Len(t, windowed, 4)
}

// =====================================
// Result Decoding Tests
// =====================================

func TestBuildEnvelope(t *testing.T) {
	desc := cachedArticleDescriptor(t)
	records := []storedRecord{
		record("1", "Go Weekly", 100),
		{key: "cached_articles:2", doc: map[string]interface{}{"id": "2", "title": "Rust Digest"}},
	}

	env := buildEnvelope(desc, records)
	assert.Equal(t, []string{"id", "title", "views"}, env.Columns)
	require.Len(t, env.Rows, 2)
	assert.Equal(t, []interface{}{"1", "Go Weekly", float64(100)}, env.Rows[0])
	assert.Equal(t, []interface{}{"2", "Rust Digest", nil}, env.Rows[1])
}

func TestScalarEnvelope(t *testing.T) {
	env := scalarEnvelope(5)
	assert.Equal(t, []string{"count"}, env.Columns)
	require.Len(t, env.Rows, 1)
	assert.Equal(t, int64(5), env.Rows[0][0])
}

func TestEntityKey(t *testing.T) {
	assert.Equal(t, "cached_articles:7", entityKey("cached_articles", "7"))
}

func TestExecutePlanRejectsTemplated(t *testing.T) {
	session := &Session{}
	_, err := session.ExecutePlan(context.Background(),
		&gdr.QueryPlan{Origin: gdr.OriginTemplated}, &gdr.BoundArguments{})
	assert.True(t, gdr.IsErrorKind(err, gdr.ErrorKindUnsupported))
}
