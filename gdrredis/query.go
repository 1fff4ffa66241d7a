package gdrredis

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/lemmego/gdr"
)

// =====================================
// Plan Execution
// =====================================

// ExecutePlan evaluates a query plan by scanning the entity's key
// space and filtering the decoded records in memory. Templated plans
// carry SQL text and are rejected.
func (s *Session) ExecutePlan(ctx context.Context, plan *gdr.QueryPlan, binds *gdr.BoundArguments) (*gdr.ResultEnvelope, error) {
	if plan.Origin == gdr.OriginTemplated {
		return nil, gdr.NewError(gdr.ErrorKindUnsupported,
			"templated operations require a SQL session")
	}

	records, err := s.loadRecords(ctx, plan.Entity)
	if err != nil {
		return nil, err
	}

	matched := make([]storedRecord, 0, len(records))
	for _, record := range records {
		ok, err := evalNode(plan.Filter, record.doc, binds)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, record)
		}
	}

	switch plan.Projection {
	case gdr.ProjectionCount, gdr.ProjectionExists:
		return scalarEnvelope(int64(len(matched))), nil

	case gdr.ProjectionDelete:
		if len(matched) == 0 {
			return &gdr.ResultEnvelope{}, nil
		}
		keys := make([]string, len(matched))
		for i, record := range matched {
			keys[i] = record.key
		}
		deleted, err := s.client.Del(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}
		return &gdr.ResultEnvelope{Affected: deleted}, nil

	default:
		if err := sortRecords(plan, binds, matched); err != nil {
			return nil, err
		}
		matched = applyWindow(matched, binds)
		return buildEnvelope(plan.Entity, matched), nil
	}
}

// storedRecord pairs a decoded document with the key it came from so
// deletes can address it.
type storedRecord struct {
	key string
	doc map[string]interface{}
}

// loadRecords fetches and decodes every record in the entity's key
// space. Values that fail to decode are skipped.
func (s *Session) loadRecords(ctx context.Context, desc *gdr.EntityDescriptor) ([]storedRecord, error) {
	keys, err := s.client.Keys(ctx, desc.TableName+":*").Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	records := make([]storedRecord, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			continue
		}
		records = append(records, storedRecord{key: keys[i], doc: doc})
	}
	return records, nil
}

// =====================================
// Filter Evaluation
// =====================================

// evalNode checks a predicate tree against a decoded record.
func evalNode(node gdr.FilterNode, doc map[string]interface{}, binds *gdr.BoundArguments) (bool, error) {
	switch n := node.(type) {
	case nil:
		return true, nil
	case gdr.Comparison:
		return evalComparison(n, doc, binds)
	case gdr.AndGroup:
		for _, child := range n.Nodes {
			ok, err := evalNode(child, doc, binds)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case gdr.OrGroup:
		for _, child := range n.Nodes {
			ok, err := evalNode(child, doc, binds)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, gdr.NewErrorf(gdr.ErrorKindUnsupported, "unsupported filter node %T", node)
	}
}

func evalComparison(c gdr.Comparison, doc map[string]interface{}, binds *gdr.BoundArguments) (bool, error) {
	if c.Property.Relation != nil {
		return false, gdr.NewErrorf(gdr.ErrorKindUnsupported,
			"property %q traverses a relationship, which requires a SQL session", c.Property.Path)
	}

	fieldValue, present := doc[c.Property.Field.Column]
	value := func(i int) interface{} { return binds.Values[c.Params[i]] }

	switch c.Comparator {
	case gdr.CompEquals:
		return compare(fieldValue, value(0)) == 0, nil
	case gdr.CompNot:
		return compare(fieldValue, value(0)) != 0, nil
	case gdr.CompGreaterThan:
		return compare(fieldValue, value(0)) > 0, nil
	case gdr.CompLessThan:
		return compare(fieldValue, value(0)) < 0, nil
	case gdr.CompBetween:
		return compare(fieldValue, value(0)) >= 0 && compare(fieldValue, value(1)) <= 0, nil
	case gdr.CompLike:
		pattern := strings.Trim(fmt.Sprintf("%v", value(0)), "%")
		return containsFold(fmt.Sprintf("%v", fieldValue), pattern), nil
	case gdr.CompStartingWith:
		return strings.HasPrefix(lower(fieldValue), lower(value(0))), nil
	case gdr.CompEndingWith:
		return strings.HasSuffix(lower(fieldValue), lower(value(0))), nil
	case gdr.CompIn:
		return containsValue(value(0), fieldValue), nil
	case gdr.CompIsNull:
		return !present || fieldValue == nil, nil
	case gdr.CompIsNotNull:
		return present && fieldValue != nil, nil
	case gdr.CompTrue:
		b, ok := fieldValue.(bool)
		return ok && b, nil
	case gdr.CompFalse:
		b, ok := fieldValue.(bool)
		return ok && !b, nil
	default:
		return false, gdr.NewErrorf(gdr.ErrorKindUnsupported, "unsupported comparator %q", c.Comparator)
	}
}

// compare orders two values. Both numeric compares numerically since
// JSON decoding turns every number into float64; anything else falls
// back to string comparison.
func compare(field, target interface{}) int {
	if fv, ok := toFloat(field); ok {
		if tv, ok := toFloat(target); ok {
			switch {
			case fv < tv:
				return -1
			case fv > tv:
				return 1
			default:
				return 0
			}
		}
	}

	fs := fmt.Sprintf("%v", field)
	ts := fmt.Sprintf("%v", target)
	switch {
	case fs < ts:
		return -1
	case fs > ts:
		return 1
	default:
		return 0
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func containsValue(collection, field interface{}) bool {
	rv := reflect.ValueOf(collection)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return compare(field, collection) == 0
	}
	for i := 0; i < rv.Len(); i++ {
		if compare(field, rv.Index(i).Interface()) == 0 {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func lower(value interface{}) string {
	return strings.ToLower(fmt.Sprintf("%v", value))
}

// =====================================
// Ordering and Windowing
// =====================================

// sortRecords applies the effective sort keys. Page sort keys take
// precedence over the plan's declared orders.
func sortRecords(plan *gdr.QueryPlan, binds *gdr.BoundArguments, records []storedRecord) error {
	orders := plan.Orders
	if binds.Page != nil && len(binds.Page.Sort) > 0 {
		orders = binds.Page.Sort
	}
	if len(orders) == 0 {
		return nil
	}

	type sortKey struct {
		column string
		desc   bool
	}
	keys := make([]sortKey, len(orders))
	for i, order := range orders {
		if strings.Contains(order.Property, ".") {
			return gdr.NewErrorf(gdr.ErrorKindUnsupported,
				"sort property %q traverses a relationship, which requires a SQL session", order.Property)
		}
		field, ok := plan.Entity.FieldByProperty(order.Property)
		if !ok {
			return gdr.NewErrorf(gdr.ErrorKindUnresolvableProperty,
				"sort property %q does not resolve on entity %s", order.Property, plan.Entity.Name)
		}
		keys[i] = sortKey{column: field.Column, desc: order.Direction == gdr.OrderDesc}
	}

	sort.SliceStable(records, func(i, j int) bool {
		for _, key := range keys {
			c := compare(records[i].doc[key.column], records[j].doc[key.column])
			if c == 0 {
				continue
			}
			if key.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}

// applyWindow slices the matched records to the bound page request.
func applyWindow(records []storedRecord, binds *gdr.BoundArguments) []storedRecord {
	if binds.Page == nil || binds.Page.Limit <= 0 {
		return records
	}

	start := binds.Page.Offset
	if start < 0 {
		start = 0
	}
	if start > len(records) {
		start = len(records)
	}
	end := start + binds.Page.Limit
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}

// =====================================
// Result Decoding
// =====================================

// buildEnvelope converts matched records to a result envelope keyed
// by the descriptor's column names.
func buildEnvelope(desc *gdr.EntityDescriptor, records []storedRecord) *gdr.ResultEnvelope {
	columns := make([]string, len(desc.Fields))
	for i, field := range desc.Fields {
		columns[i] = field.Column
	}

	rows := make([][]interface{}, len(records))
	for i, record := range records {
		row := make([]interface{}, len(columns))
		for j, column := range columns {
			row[j] = record.doc[column]
		}
		rows[i] = row
	}

	return &gdr.ResultEnvelope{Columns: columns, Rows: rows}
}

// scalarEnvelope wraps an aggregate count as a single-value row.
func scalarEnvelope(n int64) *gdr.ResultEnvelope {
	return &gdr.ResultEnvelope{
		Columns: []string{"count"},
		Rows:    [][]interface{}{{n}},
	}
}
