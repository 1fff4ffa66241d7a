package gdr

import (
	"fmt"
	"strings"
)

// =====================================
// Query Plan
// =====================================

// Projection represents what a plan selects
type Projection string

const (
	ProjectionEntity Projection = "entity"
	ProjectionCount  Projection = "count"
	ProjectionExists Projection = "exists"
	ProjectionDelete Projection = "delete"
)

// PlanOrigin distinguishes how a plan was produced
type PlanOrigin string

const (
	OriginDerived   PlanOrigin = "derived"
	OriginTemplated PlanOrigin = "templated"
)

// QueryPlan is the compiled, argument-independent representation of a
// declared operation. Plans are built once at registration time,
// cached in the operation arena and shared across invocations; the
// per-invocation state (argument values, page request) travels
// separately in BoundArguments.
type QueryPlan struct {
	// Entity is the target descriptor
	Entity *EntityDescriptor

	// Projection selects entity rows, an aggregate count, an
	// existence probe or a delete
	Projection Projection

	// Origin records whether the plan came from a parsed operation
	// name or an explicit template
	Origin PlanOrigin

	// Filter is the root of the predicate tree. Nil means no
	// predicate. Only set for derived plans.
	Filter FilterNode

	// Orders are the plan's sort keys, in priority order
	Orders []Order

	// Shape is the declared return shape
	Shape ReturnShape

	// ParamCount is the number of declared call parameters the plan
	// consumes, excluding any trailing page request
	ParamCount int

	// Template carries the templated-plan parts; nil for derived plans
	Template *TemplatePlan
}

// TemplatePlan carries the compiled form of an explicit query
// template. For non-native templates the text is split at placeholder
// positions so the renderer can splice in dialect-specific markers;
// native templates keep the raw text untouched.
type TemplatePlan struct {
	// Raw is the original template text
	Raw string

	// Native marks pass-through templates written in the backend's
	// own dialect. Their text is never rewritten and arguments bind
	// in declaration order.
	Native bool

	// Fragments are the literal text pieces between placeholders;
	// len(Fragments) == len(Placeholders)+1. Empty for native plans.
	Fragments []string

	// Placeholders lists the scanned placeholders in textual order.
	// Empty for native plans.
	Placeholders []Placeholder

	// Style is the placeholder style the template uses
	Style PlaceholderStyle
}

// PlaceholderStyle represents the placeholder convention of a template
type PlaceholderStyle string

const (
	StyleNone       PlaceholderStyle = "none"
	StyleNamed      PlaceholderStyle = "named"
	StylePositional PlaceholderStyle = "positional"
)

// Placeholder represents one placeholder occurrence in a template
type Placeholder struct {
	// Name is the identifier of a named placeholder, e.g. "department"
	Name string

	// Ordinal is the 1-based parameter ordinal of a positional
	// placeholder. Bare `?` markers number by occurrence.
	Ordinal int
}

// =====================================
// Filter Tree
// =====================================

// FilterNode is one node of a plan's predicate tree. The variant set
// is closed: Comparison leaves combined by AndGroup and OrGroup. The
// renderer and the plan-level adapters switch over it exhaustively.
type FilterNode interface {
	filterNode()
	String() string
}

// Comparison is a single predicate clause against one property.
type Comparison struct {
	// Property is the resolved target of the clause
	Property ResolvedProperty

	// Comparator is the clause's comparison kind
	Comparator Comparator

	// Params are the ordinals (0-based, in declaration order) of the
	// call parameters this clause consumes: none for IsNull/IsNotNull/
	// True/False, two for Between, one otherwise. The In collection
	// parameter expands to its runtime length at bind time.
	Params []int
}

// AndGroup combines nodes conjunctively.
type AndGroup struct {
	Nodes []FilterNode
}

// OrGroup combines nodes disjunctively. And binds tighter than Or, so
// a derived plan's root is an OrGroup of AndGroups.
type OrGroup struct {
	Nodes []FilterNode
}

func (Comparison) filterNode() {}
func (AndGroup) filterNode()   {}
func (OrGroup) filterNode()    {}

func (c Comparison) String() string {
	if len(c.Params) == 0 {
		return fmt.Sprintf("%s %s", c.Property.Path, c.Comparator)
	}
	return fmt.Sprintf("%s %s ?", c.Property.Path, c.Comparator)
}

func (g AndGroup) String() string {
	parts := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		parts[i] = n.String()
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

func (g OrGroup) String() string {
	parts := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		parts[i] = n.String()
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// ResolvedProperty is a property path resolved against the target
// descriptor: either a field on the entity itself or a single-hop
// traversal through a relationship to a field on the related entity.
type ResolvedProperty struct {
	// Path is the dotted property path, e.g. "firstName" or
	// "department.name"
	Path string

	// Relation is the traversed relationship; nil when the field is
	// on the entity itself
	Relation *RelationDescriptor

	// Owner is the descriptor the field belongs to: the target entity
	// or, for traversals, the relation's target
	Owner *EntityDescriptor

	// Field is the terminal field
	Field FieldDescriptor
}

// comparatorArity returns how many declared parameters a comparator
// consumes. In consumes one declared collection parameter; its
// placeholder count is only known at bind time.
func comparatorArity(c Comparator) int {
	switch c {
	case CompIsNull, CompIsNotNull, CompTrue, CompFalse:
		return 0
	case CompBetween:
		return 2
	default:
		return 1
	}
}

// walkComparisons visits every comparison leaf in clause order.
func walkComparisons(node FilterNode, visit func(*Comparison)) {
	switch n := node.(type) {
	case nil:
	case Comparison:
		visit(&n)
	case AndGroup:
		for _, child := range n.Nodes {
			walkComparisons(child, visit)
		}
	case OrGroup:
		for _, child := range n.Nodes {
			walkComparisons(child, visit)
		}
	}
}
