package gdr

import (
	"reflect"
)

// =====================================
// Declared Operations
// =====================================

// Operation declares one repository operation. An empty Query means
// the operation is derived: its name is parsed against the predicate
// grammar. A non-empty Query supplies an explicit template; Native
// marks it as written in the backend's own dialect and passes the
// text through untouched.
type Operation struct {
	// Name identifies the operation, e.g. "findByLastName". For
	// derived operations the name is also the query definition.
	Name string

	// Query is the explicit template, when any
	Query string

	// Native marks a pass-through template
	Native bool

	// Params declares the call parameters. Optional for derived and
	// positional-templated operations; required, with names, for
	// named-templated ones.
	Params []Param

	// Returns overrides the default return shape
	Returns ReturnShape
}

// Param describes one declared call parameter.
type Param struct {
	Name string
	Type reflect.Type
}

/// compiledOperation is an arena entry: the declaration, its parsed
// signature (derived operations only) and the shared plan skeleton.
type compiledOperation struct {
	op   Operation
	sig  *MethodSignature
	plan *QueryPlan
}

// operationArena stores compiled operations in a slice with stable
// indices; lookups go through a name index. All entries are built at
// repository construction and immutable afterwards.
type operationArena struct {
	ops   []compiledOperation
	index map[string]int
}

func newOperationArena() *operationArena {
	return &operationArena{index: make(map[string]int)}
}

func (a *operationArena) add(c compiledOperation) (int, error) {
	if _, exists := a.index[c.op.Name]; exists {
		return 0, NewErrorf(ErrorKindConfiguration,
			"operation %q is declared twice", c.op.Name)
	}
	a.ops = append(a.ops, c)
	idx := len(a.ops) - 1
	a.index[c.op.Name] = idx
	return idx, nil
}

func (a *operationArena) lookup(name string) (*compiledOperation, bool) {
	idx, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return &a.ops[idx], true
}

func (a *operationArena) names() []string {
	out := make([]string, len(a.ops))
	for i := range a.ops {
		out[i] = a.ops[i].op.Name
	}
	return out
}

// compileOperation compiles a declaration into its plan skeleton.
// Every failure here is a configuration-time error; a repository
// cannot be constructed over a declaration set that does not compile.
func compileOperation(reg *Registry, desc *EntityDescriptor, op Operation) (compiledOperation, error) {
	if op.Name == "" {
		return compiledOperation{}, NewError(ErrorKindConfiguration, "operation has no name")
	}
	if op.Query == "" {
		return compileDerived(reg, desc, op)
	}
	return compileTemplated(desc, op)
}

func compileDerived(reg *Registry, desc *EntityDescriptor, op Operation) (compiledOperation, error) {
	sig, err := parseMethodName(reg, desc, op.Name)
	if err != nil {
		return compiledOperation{}, err
	}
	if len(op.Params) > 0 && len(op.Params) != sig.Arity {
		return compiledOperation{}, NewErrorf(ErrorKindArityMismatch,
			"operation %q consumes %d parameters but declares %d",
			op.Name, sig.Arity, len(op.Params))
	}

	shape := sig.Shape
	if op.Returns != "" {
		if err := validateShape(sig.Action, op.Returns); err != nil {
			return compiledOperation{}, err
		}
		shape = op.Returns
	}

	plan := &QueryPlan{
		Entity:     desc,
		Projection: actionProjection(sig.Action),
		Origin:     OriginDerived,
		Filter:     filterTree(sig.Clauses, sig.Combinators),
		Orders:     sig.Orders,
		Shape:      shape,
		ParamCount: sig.Arity,
	}
	return compiledOperation{op: op, sig: sig, plan: plan}, nil
}

func compileTemplated(desc *EntityDescriptor, op Operation) (compiledOperation, error) {
	shape := op.Returns
	if shape == "" {
		shape = ShapeList
	}

	plan := &QueryPlan{
		Entity:     desc,
		Projection: shapeProjection(shape),
		Origin:     OriginTemplated,
		Shape:      shape,
	}

	if op.Native {
		plan.Template = &TemplatePlan{Raw: op.Query, Native: true, Style: StyleNone}
		plan.ParamCount = len(op.Params)
		if len(op.Params) == 0 {
			// Native templates without a declared parameter list
			// pass arguments through uncounted.
			plan.ParamCount = -1
		}
		return compiledOperation{op: op, plan: plan}, nil
	}

	tpl, err := scanTemplate(op.Query)
	if err != nil {
		return compiledOperation{}, err
	}
	plan.Template = tpl
	plan.ParamCount = templateParamCount(tpl)

	switch tpl.Style {
	case StyleNamed:
		if err := checkNamedParams(op, tpl); err != nil {
			return compiledOperation{}, err
		}
		plan.ParamCount = len(op.Params)
	case StylePositional:
		if len(op.Params) > 0 && len(op.Params) != plan.ParamCount {
			return compiledOperation{}, NewErrorf(ErrorKindArityMismatch,
				"operation %q binds %d positional placeholders but declares %d parameters",
				op.Name, plan.ParamCount, len(op.Params))
		}
	}
	return compiledOperation{op: op, plan: plan}, nil
}

// checkNamedParams verifies that a named-style template and its
// declared parameter list agree: every parameter carries a name and
// every placeholder resolves to exactly one declared parameter.
func checkNamedParams(op Operation, tpl *TemplatePlan) error {
	if len(op.Params) == 0 {
		return NewErrorf(ErrorKindUnnamedParameter,
			"operation %q uses named placeholders but declares no named parameters", op.Name)
	}
	declared := make(map[string]struct{}, len(op.Params))
	for i, p := range op.Params {
		if p.Name == "" {
			return NewErrorf(ErrorKindUnnamedParameter,
				"operation %q uses named placeholders but parameter %d has no name", op.Name, i)
		}
		declared[p.Name] = struct{}{}
	}
	used := make(map[string]struct{}, len(tpl.Placeholders))
	for _, ph := range tpl.Placeholders {
		if _, ok := declared[ph.Name]; !ok {
			return NewErrorf(ErrorKindUnnamedParameter,
				"operation %q references :%s but declares no parameter with that name",
				op.Name, ph.Name)
		}
		used[ph.Name] = struct{}{}
	}
	for _, p := range op.Params {
		if _, ok := used[p.Name]; !ok {
			return NewErrorf(ErrorKindArityMismatch,
				"operation %q declares parameter %q which the template never binds",
				op.Name, p.Name)
		}
	}
	return nil
}

// actionProjection maps a derived action to its plan projection.
func actionProjection(action Action) Projection {
	switch action {
	case ActionCount:
		return ProjectionCount
	case ActionExists:
		return ProjectionExists
	case ActionDelete:
		return ProjectionDelete
	default:
		return ProjectionEntity
	}
}

// shapeProjection maps a templated operation's shape to a projection.
// Only the delete/affected case changes how the adapter executes;
// entity-shaped templates run as queries of the template text itself.
func shapeProjection(shape ReturnShape) Projection {
	switch shape {
	case ShapeCount:
		return ProjectionCount
	case ShapeExists:
		return ProjectionExists
	case ShapeAffected:
		return ProjectionDelete
	default:
		return ProjectionEntity
	}
}

// validateShape rejects return-shape overrides that contradict the
// action: aggregate actions keep their aggregate shapes, entity
// actions can narrow or widen between single, list and page.
func validateShape(action Action, shape ReturnShape) error {
	switch action {
	case ActionCount:
		if shape != ShapeCount {
			return NewErrorf(ErrorKindConfiguration,
				"count operations return %s, not %s", ShapeCount, shape)
		}
	case ActionExists:
		if shape != ShapeExists {
			return NewErrorf(ErrorKindConfiguration,
				"exists operations return %s, not %s", ShapeExists, shape)
		}
	case ActionDelete:
		if shape != ShapeAffected {
			return NewErrorf(ErrorKindConfiguration,
				"delete operations return %s, not %s", ShapeAffected, shape)
		}
	default:
		switch shape {
		case ShapeSingle, ShapeList, ShapePage:
		default:
			return NewErrorf(ErrorKindConfiguration,
				"%s operations cannot return %s", action, shape)
		}
	}
	return nil
}
