package gdr

import (
	"strings"
)

// =====================================
// Predicate Grammar
// =====================================

// MethodSignature is the parsed form of a structured operation name.
// It is derived once at registration time and cached in the operation
// arena; parsing the same name against the same descriptor always
// yields the same signature.
type MethodSignature struct {
	// Name is the operation name as declared, e.g.
	// "findByFirstNameAndLastNameOrderByLastNameDesc"
	Name string

	// Action is the leading verb
	Action Action

	// Shape is the resolved return shape
	Shape ReturnShape

	// Clauses are the predicate terms in declaration order
	Clauses []PredicateClause

	// Combinators join consecutive clauses; len(Combinators) ==
	// len(Clauses)-1. And binds tighter than Or.
	Combinators []LogicOperator

	// Orders is the OrderBy tail
	Orders []Order

	// Arity is the number of call parameters the predicate consumes
	Arity int
}

// PredicateClause is one `<Property><Comparator>` term.
type PredicateClause struct {
	Property   ResolvedProperty
	Comparator Comparator

	// Params are the 0-based ordinals of the consumed parameters
	Params []int
}

// actionTokens maps the grammar's action vocabulary. Longer entries
// are matched first so "delete" is never read as a property prefix.
var actionTokens = []struct {
	token  string
	action Action
}{
	{"find", ActionFind},
	{"get", ActionGet},
	{"read", ActionRead},
	{"query", ActionQuery},
	{"count", ActionCount},
	{"exists", ActionExists},
	{"delete", ActionDelete},
}

// comparatorTokens maps comparator keywords to their token sequences.
// Ordered longest-first so IsNotNull wins over IsNull and
// GreaterThan is never read as a property called "greater".
var comparatorTokens = []struct {
	words []string
	comp  Comparator
}{
	{[]string{"Is", "Not", "Null"}, CompIsNotNull},
	{[]string{"Starting", "With"}, CompStartingWith},
	{[]string{"Ending", "With"}, CompEndingWith},
	{[]string{"Greater", "Than"}, CompGreaterThan},
	{[]string{"Less", "Than"}, CompLessThan},
	{[]string{"Is", "Null"}, CompIsNull},
	{[]string{"Between"}, CompBetween},
	{[]string{"Equals"}, CompEquals},
	{[]string{"Not"}, CompNot},
	{[]string{"Like"}, CompLike},
	{[]string{"True"}, CompTrue},
	{[]string{"False"}, CompFalse},
	{[]string{"In"}, CompIn},
}

// defaultShape maps each action to its return shape when the
// operation declares none.
func defaultShape(action Action) ReturnShape {
	switch action {
	case ActionGet:
		return ShapeSingle
	case ActionCount:
		return ShapeCount
	case ActionExists:
		return ShapeExists
	case ActionDelete:
		return ShapeAffected
	default:
		return ShapeList
	}
}

// parseMethodName parses a structured operation name against a target
// descriptor. All grammar, property-resolution and arity failures are
// configuration-time errors; they surface here and never at call time.
func parseMethodName(reg *Registry, desc *EntityDescriptor, name string) (*MethodSignature, error) {
	action, rest, ok := splitAction(name)
	if !ok {
		return nil, NewErrorf(ErrorKindConfiguration,
			"operation name %q does not start with a recognized action verb", name)
	}
	if rest == "" {
		return nil, NewErrorf(ErrorKindConfiguration,
			"operation name %q has no predicate: expected %sBy<Property>...", name, action)
	}

	sig := &MethodSignature{
		Name:   name,
		Action: action,
		Shape:  defaultShape(action),
	}

	// The OrderBy tail may legitimately collide with a property that
	// contains the word sequence. Candidate split points are tried
	// left to right; the first one where both sides parse wins.
	var firstErr error
	for _, split := range orderBySplits(rest) {
		clauses, combinators, arity, err := parsePredicate(reg, desc, split.predicate)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		orders, err := parseOrderTail(reg, desc, split.orderTail)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sig.Clauses = clauses
		sig.Combinators = combinators
		sig.Orders = orders
		sig.Arity = arity
		return sig, nil
	}
	return nil, firstErr
}

// splitAction matches the leading action verb followed by "By".
func splitAction(name string) (Action, string, bool) {
	for _, a := range actionTokens {
		prefix := a.token + "By"
		if strings.HasPrefix(name, prefix) {
			return a.action, name[len(prefix):], true
		}
	}
	return "", "", false
}

type orderBySplit struct {
	predicate string
	orderTail string
}

// orderBySplits returns the candidate (predicate, tail) splits of the
// text after "<action>By": one per "OrderBy" occurrence, left to
// right, plus the no-tail candidate.
func orderBySplits(rest string) []orderBySplit {
	var splits []orderBySplit
	for i := 0; i+7 <= len(rest); i++ {
		if rest[i:i+7] == "OrderBy" && i > 0 {
			splits = append(splits, orderBySplit{rest[:i], rest[i+7:]})
		}
	}
	splits = append(splits, orderBySplit{rest, ""})
	return splits
}

// parsePredicate parses a predicate expression into clauses and the
// combinators joining them, assigning parameter ordinals in clause
// order.
func parsePredicate(reg *Registry, desc *EntityDescriptor, expr string) ([]PredicateClause, []LogicOperator, int, error) {
	if expr == "" {
		return nil, nil, 0, NewErrorf(ErrorKindConfiguration, "empty predicate expression")
	}
	tokens := splitCamelWords(expr)

	type parseState struct {
		clauses     []PredicateClause
		combinators []LogicOperator
	}
	var result *parseState

	// Recursive descent with backtracking over the token stream.
	// Property spans are tried longest-first, which implements the
	// longest-match-wins policy for names that embed a comparator or
	// combinator keyword.
	var parseFrom func(pos int, state parseState) bool
	parseFrom = func(pos int, state parseState) bool {
		for span := len(tokens) - pos; span >= 1; span-- {
			prop, ok := resolvePropertyTokens(reg, desc, tokens[pos:pos+span])
			if !ok {
				continue
			}
			next := pos + span
			comp := CompEquals
			if words, c, ok := matchComparator(tokens, next); ok {
				comp = c
				next += words
			}
			clause := PredicateClause{Property: prop, Comparator: comp}
			candidate := parseState{
				clauses:     append(append([]PredicateClause{}, state.clauses...), clause),
				combinators: append([]LogicOperator{}, state.combinators...),
			}

			if next == len(tokens) {
				result = &candidate
				return true
			}
			if op, ok := matchCombinator(tokens[next]); ok && next+1 < len(tokens) {
				candidate.combinators = append(candidate.combinators, op)
				if parseFrom(next+1, candidate) {
					return true
				}
			}
		}
		return false
	}

	if !parseFrom(0, parseState{}) {
		return nil, nil, 0, NewErrorf(ErrorKindUnresolvableProperty,
			"cannot resolve predicate %q against entity %s", expr, desc.Name)
	}

	arity := 0
	for i := range result.clauses {
		n := comparatorArity(result.clauses[i].Comparator)
		for j := 0; j < n; j++ {
			result.clauses[i].Params = append(result.clauses[i].Params, arity)
			arity++
		}
	}
	return result.clauses, result.combinators, arity, nil
}

// parseOrderTail parses the OrderBy tail: properties each followed by
// an optional Asc/Desc direction.
func parseOrderTail(reg *Registry, desc *EntityDescriptor, tail string) ([]Order, error) {
	if tail == "" {
		return nil, nil
	}
	tokens := splitCamelWords(tail)

	var result []Order
	var parseFrom func(pos int, acc []Order) bool
	parseFrom = func(pos int, acc []Order) bool {
		if pos == len(tokens) {
			result = acc
			return true
		}
		for span := len(tokens) - pos; span >= 1; span-- {
			prop, ok := resolvePropertyTokens(reg, desc, tokens[pos:pos+span])
			if !ok {
				continue
			}
			next := pos + span
			dir := OrderAsc
			if next < len(tokens) {
				switch tokens[next] {
				case "Asc":
					next++
				case "Desc":
					dir = OrderDesc
					next++
				}
			}
			candidate := append(append([]Order{}, acc...), Order{Property: prop.Path, Direction: dir})
			if parseFrom(next, candidate) {
				return true
			}
		}
		return false
	}

	if !parseFrom(0, nil) {
		return nil, NewErrorf(ErrorKindUnresolvableProperty,
			"cannot resolve ordering %q against entity %s", tail, desc.Name)
	}
	return result, nil
}

// matchComparator matches the longest comparator keyword at pos,
// returning the number of tokens consumed.
func matchComparator(tokens []string, pos int) (int, Comparator, bool) {
	for _, c := range comparatorTokens {
		if pos+len(c.words) > len(tokens) {
			continue
		}
		match := true
		for i, w := range c.words {
			if tokens[pos+i] != w {
				match = false
				break
			}
		}
		if match {
			return len(c.words), c.comp, true
		}
	}
	return 0, "", false
}

func matchCombinator(token string) (LogicOperator, bool) {
	switch token {
	case "And":
		return LogicAnd, true
	case "Or":
		return LogicOr, true
	}
	return "", false
}

// resolvePropertyTokens resolves a token span to a property: first as
// a field on the entity itself, then as a single-hop traversal
// through a relationship. Direct fields win over traversals so a
// flattened "departmentName" column shadows "department.name".
func resolvePropertyTokens(reg *Registry, desc *EntityDescriptor, tokens []string) (ResolvedProperty, bool) {
	joined := strings.Join(tokens, "")
	if field, ok := desc.FieldByProperty(joined); ok {
		return ResolvedProperty{
			Path:  field.Property,
			Owner: desc,
			Field: field,
		}, true
	}
	for k := len(tokens) - 1; k >= 1; k-- {
		rel, ok := desc.RelationByProperty(strings.Join(tokens[:k], ""))
		if !ok || rel.Kind == RelationManyToMany {
			continue
		}
		target, err := reg.Resolve(rel.Target)
		if err != nil {
			continue
		}
		field, ok := target.FieldByProperty(strings.Join(tokens[k:], ""))
		if !ok {
			continue
		}
		relCopy := rel
		return ResolvedProperty{
			Path:     rel.Property + "." + field.Property,
			Relation: &relCopy,
			Owner:    target,
			Field:    field,
		}, true
	}
	return ResolvedProperty{}, false
}

// resolvePropertyPath resolves a dotted property path such as
// "department.name". Used for page-request sort overrides and the
// criteria builder, which take paths rather than grammar tokens.
func resolvePropertyPath(reg *Registry, desc *EntityDescriptor, path string) (ResolvedProperty, error) {
	segments := strings.Split(path, ".")
	switch len(segments) {
	case 1:
		if field, ok := desc.FieldByProperty(segments[0]); ok {
			return ResolvedProperty{Path: field.Property, Owner: desc, Field: field}, nil
		}
	case 2:
		if rel, ok := desc.RelationByProperty(segments[0]); ok && rel.Kind != RelationManyToMany {
			if target, err := reg.Resolve(rel.Target); err == nil {
				if field, ok := target.FieldByProperty(segments[1]); ok {
					relCopy := rel
					return ResolvedProperty{
						Path:     rel.Property + "." + field.Property,
						Relation: &relCopy,
						Owner:    target,
						Field:    field,
					}, nil
				}
			}
		}
	}
	return ResolvedProperty{}, NewErrorf(ErrorKindUnresolvableProperty,
		"cannot resolve property %q on entity %s", path, desc.Name)
}

// splitCamelWords splits a CamelCase string at upper-case boundaries:
// "FirstNameAndLastName" -> [First Name And Last Name]. Digits attach
// to the preceding word.
func splitCamelWords(s string) []string {
	var words []string
	start := 0
	for i := 1; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// filterTree builds the plan's predicate tree from parsed clauses,
// honoring And-over-Or precedence: the clause sequence is grouped
// into AndGroups between Or combinators, then joined by a single
// OrGroup.
func filterTree(clauses []PredicateClause, combinators []LogicOperator) FilterNode {
	if len(clauses) == 0 {
		return nil
	}

	var orBranches []FilterNode
	var current []FilterNode
	current = append(current, Comparison{
		Property:   clauses[0].Property,
		Comparator: clauses[0].Comparator,
		Params:     clauses[0].Params,
	})
	for i, op := range combinators {
		node := Comparison{
			Property:   clauses[i+1].Property,
			Comparator: clauses[i+1].Comparator,
			Params:     clauses[i+1].Params,
		}
		if op == LogicAnd {
			current = append(current, node)
		} else {
			orBranches = append(orBranches, groupAnd(current))
			current = []FilterNode{node}
		}
	}
	orBranches = append(orBranches, groupAnd(current))

	if len(orBranches) == 1 {
		return orBranches[0]
	}
	return OrGroup{Nodes: orBranches}
}

func groupAnd(nodes []FilterNode) FilterNode {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return AndGroup{Nodes: nodes}
}
