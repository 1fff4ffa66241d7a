package gdr

import (
	"reflect"
)

// =====================================
// Criteria Conditions
// =====================================

// Condition is one predicate of a programmatic query. Conditions
// compose with And and Or, and compile into the same filter trees
// the method-name grammar produces, so rendering and execution are
// identical for both query styles.
type Condition interface {
	compile(reg *Registry, desc *EntityDescriptor, values *[]interface{}) (FilterNode, error)
}

// basicCondition compares one property against inline values
type basicCondition struct {
	property   string
	comparator Comparator
	values     []interface{}
}

func (c basicCondition) compile(reg *Registry, desc *EntityDescriptor, values *[]interface{}) (FilterNode, error) {
	prop, err := resolvePropertyPath(reg, desc, c.property)
	if err != nil {
		return nil, err
	}
	arity := comparatorArity(c.comparator)
	if len(c.values) != arity {
		return nil, NewErrorf(ErrorKindArityMismatch,
			"condition on %q takes %d values, got %d", c.property, arity, len(c.values))
	}

	switch c.comparator {
	case CompIn:
		v := c.values[0]
		rv := reflect.ValueOf(v)
		if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return nil, NewErrorf(ErrorKindTypeMismatch,
				"condition on %q requires a collection of values", c.property)
		}
	case CompIsNull, CompIsNotNull, CompTrue, CompFalse:
	default:
		for _, v := range c.values {
			if err := checkAssignable("criteria", c.property, v, prop.Field.Type); err != nil {
				return nil, err
			}
		}
	}

	params := make([]int, arity)
	for i, v := range c.values {
		params[i] = len(*values)
		*values = append(*values, v)
	}
	return Comparison{Property: prop, Comparator: c.comparator, Params: params}, nil
}

// compositeCondition groups conditions under one logic operator
type compositeCondition struct {
	logic      LogicOperator
	conditions []Condition
}

func (c compositeCondition) compile(reg *Registry, desc *EntityDescriptor, values *[]interface{}) (FilterNode, error) {
	if len(c.conditions) == 0 {
		return nil, NewError(ErrorKindConfiguration, "composite condition has no members")
	}
	if len(c.conditions) == 1 {
		return c.conditions[0].compile(reg, desc, values)
	}
	nodes := make([]FilterNode, 0, len(c.conditions))
	for _, child := range c.conditions {
		node, err := child.compile(reg, desc, values)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if c.logic == LogicOr {
		return OrGroup{Nodes: nodes}, nil
	}
	return AndGroup{Nodes: nodes}, nil
}

// compileConditions compiles a condition list into one filter tree,
// combining top-level conditions with AND. Values are collected in
// tree order so parameter ordinals line up with placeholder order.
func compileConditions(reg *Registry, desc *EntityDescriptor, conditions []Condition) (FilterNode, []interface{}, error) {
	if len(conditions) == 0 {
		return nil, nil, nil
	}
	var values []interface{}
	if len(conditions) == 1 {
		node, err := conditions[0].compile(reg, desc, &values)
		return node, values, err
	}
	nodes := make([]FilterNode, 0, len(conditions))
	for _, c := range conditions {
		node, err := c.compile(reg, desc, &values)
		if err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, node)
	}
	return AndGroup{Nodes: nodes}, values, nil
}

// =====================================
// Condition Constructors
// =====================================

// Where creates a basic condition on a property path. The property
// may traverse a to-one or to-many relationship with a dotted path
// such as "department.name".
func Where(property string, comparator Comparator, values ...interface{}) Condition {
	return basicCondition{property: property, comparator: comparator, values: values}
}

// WhereIn creates a membership condition. Values may be passed
// individually or as a single slice.
func WhereIn(property string, values ...interface{}) Condition {
	if len(values) == 1 {
		if rv := reflect.ValueOf(values[0]); rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			return basicCondition{property: property, comparator: CompIn, values: values}
		}
	}
	return basicCondition{property: property, comparator: CompIn, values: []interface{}{values}}
}

// WhereLike creates a pattern condition; the pattern is passed to the
// datasource as given.
func WhereLike(property string, pattern string) Condition {
	return basicCondition{property: property, comparator: CompLike, values: []interface{}{pattern}}
}

// WhereBetween creates a range condition over both bounds inclusive.
func WhereBetween(property string, low, high interface{}) Condition {
	return basicCondition{property: property, comparator: CompBetween, values: []interface{}{low, high}}
}

// WhereNull creates an absence condition
func WhereNull(property string) Condition {
	return basicCondition{property: property, comparator: CompIsNull}
}

// WhereNotNull creates a presence condition
func WhereNotNull(property string) Condition {
	return basicCondition{property: property, comparator: CompIsNotNull}
}

// And groups conditions so that all must hold
func And(conditions ...Condition) Condition {
	return compositeCondition{logic: LogicAnd, conditions: conditions}
}

// Or groups conditions so that at least one must hold
func Or(conditions ...Condition) Condition {
	return compositeCondition{logic: LogicOr, conditions: conditions}
}
