package gdrmongo

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/lemmego/gdr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =====================================
// Filter Translation
// =====================================

// buildFilter converts a predicate tree to a MongoDB filter document.
func buildFilter(node gdr.FilterNode, binds *gdr.BoundArguments) (bson.M, error) {
	if node == nil {
		return bson.M{}, nil
	}

	switch n := node.(type) {
	case gdr.Comparison:
		return buildComparison(n, binds)
	case gdr.AndGroup:
		children, err := buildChildren(n.Nodes, binds)
		if err != nil {
			return nil, err
		}
		if len(children) == 1 {
			return children[0], nil
		}
		return bson.M{"$and": children}, nil
	case gdr.OrGroup:
		children, err := buildChildren(n.Nodes, binds)
		if err != nil {
			return nil, err
		}
		if len(children) == 1 {
			return children[0], nil
		}
		return bson.M{"$or": children}, nil
	default:
		return nil, gdr.NewErrorf(gdr.ErrorKindUnsupported, "unsupported filter node %T", node)
	}
}

func buildChildren(nodes []gdr.FilterNode, binds *gdr.BoundArguments) ([]bson.M, error) {
	children := make([]bson.M, 0, len(nodes))
	for _, child := range nodes {
		filter, err := buildFilter(child, binds)
		if err != nil {
			return nil, err
		}
		children = append(children, filter)
	}
	return children, nil
}

// buildComparison converts a single predicate clause to its MongoDB
// operator form.
func buildComparison(c gdr.Comparison, binds *gdr.BoundArguments) (bson.M, error) {
	if c.Property.Relation != nil {
		return nil, gdr.NewErrorf(gdr.ErrorKindUnsupported,
			"property %q traverses a relationship, which requires a SQL session", c.Property.Path)
	}

	field := fieldName(c.Property.Field)
	value := func(i int) interface{} { return convertValue(field, binds.Values[c.Params[i]]) }

	switch c.Comparator {
	case gdr.CompEquals:
		return bson.M{field: value(0)}, nil
	case gdr.CompNot:
		return bson.M{field: bson.M{"$ne": value(0)}}, nil
	case gdr.CompGreaterThan:
		return bson.M{field: bson.M{"$gt": value(0)}}, nil
	case gdr.CompLessThan:
		return bson.M{field: bson.M{"$lt": value(0)}}, nil
	case gdr.CompBetween:
		return bson.M{field: bson.M{"$gte": value(0), "$lte": value(1)}}, nil
	case gdr.CompLike:
		pattern := strings.ReplaceAll(fmt.Sprintf("%v", binds.Values[c.Params[0]]), "%", ".*")
		return bson.M{field: bson.M{"$regex": pattern, "$options": "i"}}, nil
	case gdr.CompStartingWith:
		pattern := fmt.Sprintf("^%v", binds.Values[c.Params[0]])
		return bson.M{field: bson.M{"$regex": pattern, "$options": "i"}}, nil
	case gdr.CompEndingWith:
		pattern := fmt.Sprintf("%v$", binds.Values[c.Params[0]])
		return bson.M{field: bson.M{"$regex": pattern, "$options": "i"}}, nil
	case gdr.CompIn:
		return bson.M{field: bson.M{"$in": expandCollection(field, binds.Values[c.Params[0]])}}, nil
	case gdr.CompIsNull:
		return bson.M{field: nil}, nil
	case gdr.CompIsNotNull:
		return bson.M{field: bson.M{"$ne": nil}}, nil
	case gdr.CompTrue:
		return bson.M{field: true}, nil
	case gdr.CompFalse:
		return bson.M{field: false}, nil
	default:
		return nil, gdr.NewErrorf(gdr.ErrorKindUnsupported, "unsupported comparator %q", c.Comparator)
	}
}

// fieldName maps a descriptor field to its MongoDB document key.
// MongoDB uses _id for the identifier.
func fieldName(field gdr.FieldDescriptor) string {
	if field.Column == "id" {
		return "_id"
	}
	return field.Column
}

// convertValue converts identifier strings to ObjectIDs when they
// parse as hex; other values pass through unchanged.
func convertValue(field string, value interface{}) interface{} {
	if field != "_id" {
		return value
	}
	if s, ok := value.(string); ok {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			return oid
		}
	}
	return value
}

// expandCollection converts an In clause's collection argument to a
// value slice, applying identifier conversion per element.
func expandCollection(field string, value interface{}) []interface{} {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []interface{}{convertValue(field, value)}
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = convertValue(field, rv.Index(i).Interface())
	}
	return out
}

// =====================================
// Find Options
// =====================================

// buildFindOptions derives sort, skip and limit from the plan and the
// bound page request.
func buildFindOptions(plan *gdr.QueryPlan, binds *gdr.BoundArguments) (*options.FindOptions, error) {
	findOpts := options.Find()

	orders := plan.Orders
	if binds.Page != nil && len(binds.Page.Sort) > 0 {
		orders = binds.Page.Sort
	}
	if len(orders) > 0 {
		sort := bson.D{}
		for _, order := range orders {
			key, err := sortKey(plan.Entity, order.Property)
			if err != nil {
				return nil, err
			}
			direction := 1
			if order.Direction == gdr.OrderDesc {
				direction = -1
			}
			sort = append(sort, bson.E{Key: key, Value: direction})
		}
		findOpts.SetSort(sort)
	}

	if binds.Page != nil && binds.Page.Limit > 0 {
		findOpts.SetSkip(int64(binds.Page.Offset))
		findOpts.SetLimit(int64(binds.Page.Limit))
	} else if plan.Shape == gdr.ShapeSingle {
		findOpts.SetLimit(2)
	}

	return findOpts, nil
}

func sortKey(desc *gdr.EntityDescriptor, property string) (string, error) {
	if strings.Contains(property, ".") {
		return "", gdr.NewErrorf(gdr.ErrorKindUnsupported,
			"sort property %q traverses a relationship, which requires a SQL session", property)
	}
	field, ok := desc.FieldByProperty(property)
	if !ok {
		return "", gdr.NewErrorf(gdr.ErrorKindUnresolvableProperty,
			"sort property %q does not resolve on entity %s", property, desc.Name)
	}
	return fieldName(field), nil
}

// =====================================
// Result Decoding
// =====================================

// decodeCursor drains a find cursor into a result envelope keyed by
// the descriptor's column names.
func decodeCursor(ctx context.Context, desc *gdr.EntityDescriptor, cursor *mongo.Cursor) (*gdr.ResultEnvelope, error) {
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	columns := make([]string, len(desc.Fields))
	for i, field := range desc.Fields {
		columns[i] = field.Column
	}

	rows := make([][]interface{}, 0, len(docs))
	for _, doc := range docs {
		row := make([]interface{}, len(desc.Fields))
		for i, field := range desc.Fields {
			row[i] = normalizeValue(doc[fieldName(field)])
		}
		rows = append(rows, row)
	}

	return &gdr.ResultEnvelope{Columns: columns, Rows: rows}, nil
}

// scalarEnvelope wraps an aggregate count as a single-value row.
func scalarEnvelope(n int64) *gdr.ResultEnvelope {
	return &gdr.ResultEnvelope{
		Columns: []string{"count"},
		Rows:    [][]interface{}{{n}},
	}
}

// normalizeValue converts BSON driver types to the plain Go values
// the materializer expects.
func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time()
	case primitive.A:
		return []interface{}(v)
	case int32:
		return int64(v)
	default:
		return value
	}
}
