package gdr

import (
	"reflect"
)

// =====================================
// Parameter Binding
// =====================================

// BoundArguments carries the per-invocation argument values for a
// shared plan skeleton: positional values by declared ordinal, named
// values for named templates, and the extracted trailing page
// request. One instance per invocation; never cached.
type BoundArguments struct {
	// Values holds positional arguments in declared order. An In
	// clause keeps its collection argument intact here; it expands
	// into individual placeholders only during rendering.
	Values []interface{}

	// Named holds the arguments of a named-style template
	Named map[string]interface{}

	// Page is the extracted trailing page request, if any
	Page *PageRequest
}

// bindArguments maps call-site arguments onto a compiled operation's
// placeholders. The trailing page request is split off first; the
// remaining values are counted against the plan's declared arity and
// type-checked against the entity's field types (derived plans) or
// the declared parameter types (templated plans).
func bindArguments(c *compiledOperation, args []interface{}) (*BoundArguments, error) {
	bound := &BoundArguments{}

	values, page := splitPageRequest(args)
	bound.Page = page

	if page != nil && !acceptsPage(c.plan) {
		return nil, NewErrorf(ErrorKindTypeMismatch,
			"operation %q does not accept a page request", c.op.Name)
	}
	if c.plan.Shape == ShapePage && page == nil {
		return nil, NewErrorf(ErrorKindTypeMismatch,
			"operation %q returns a page and requires a trailing PageRequest argument", c.op.Name)
	}
	if c.plan.Shape == ShapePage && page.Limit <= 0 {
		return nil, NewErrorf(ErrorKindTypeMismatch,
			"operation %q requires a page request with a positive limit", c.op.Name)
	}

	if c.plan.ParamCount >= 0 && len(values) != c.plan.ParamCount {
		return nil, NewErrorf(ErrorKindArityMismatch,
			"operation %q takes %d arguments, got %d", c.op.Name, c.plan.ParamCount, len(values))
	}

	if c.plan.Origin == OriginDerived {
		if err := checkDerivedTypes(c, values); err != nil {
			return nil, err
		}
		bound.Values = values
		return bound, nil
	}

	tpl := c.plan.Template
	if err := checkDeclaredTypes(c, values); err != nil {
		return nil, err
	}
	if tpl.Style == StyleNamed {
		bound.Named = make(map[string]interface{}, len(values))
		for i, p := range c.op.Params {
			bound.Named[p.Name] = values[i]
		}
		return bound, nil
	}
	bound.Values = values
	return bound, nil
}

// splitPageRequest pops a trailing PageRequest from the argument list.
func splitPageRequest(args []interface{}) ([]interface{}, *PageRequest) {
	if len(args) == 0 {
		return args, nil
	}
	switch p := args[len(args)-1].(type) {
	case PageRequest:
		return args[:len(args)-1], &p
	case *PageRequest:
		return args[:len(args)-1], p
	}
	return args, nil
}

func acceptsPage(plan *QueryPlan) bool {
	switch plan.Projection {
	case ProjectionEntity:
		return true
	default:
		return false
	}
}

// checkDerivedTypes verifies argument types clause by clause against
// the resolved field types. Between checks both bounds; In checks
// that the argument is a collection whose elements match the field.
func checkDerivedTypes(c *compiledOperation, values []interface{}) error {
	for _, clause := range c.sig.Clauses {
		field := clause.Property.Field
		switch clause.Comparator {
		case CompIn:
			v := values[clause.Params[0]]
			rv := reflect.ValueOf(v)
			if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
				return NewErrorf(ErrorKindTypeMismatch,
					"operation %q: parameter %d for %s In must be a collection",
					c.op.Name, clause.Params[0], clause.Property.Path)
			}
			if !elemAssignable(rv.Type().Elem(), field.Type) {
				return NewErrorf(ErrorKindTypeMismatch,
					"operation %q: collection of %s is not compatible with field %s (%s)",
					c.op.Name, rv.Type().Elem(), clause.Property.Path, field.Type)
			}
		default:
			for _, ordinal := range clause.Params {
				if err := checkAssignable(c.op.Name, clause.Property.Path, values[ordinal], field.Type); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// checkDeclaredTypes verifies templated arguments against the
// declared parameter types, where the declaration provides them.
func checkDeclaredTypes(c *compiledOperation, values []interface{}) error {
	for i, p := range c.op.Params {
		if p.Type == nil || i >= len(values) {
			continue
		}
		if err := checkAssignable(c.op.Name, p.Name, values[i], p.Type); err != nil {
			return err
		}
	}
	return nil
}

func checkAssignable(opName, target string, value interface{}, want reflect.Type) error {
	if value == nil {
		return nil
	}
	got := reflect.TypeOf(value)
	if elemAssignable(got, want) {
		return nil
	}
	return NewErrorf(ErrorKindTypeMismatch,
		"operation %q: %s is not compatible with %s (%s)", opName, got, target, want)
}

// elemAssignable reports whether a value of type `got` may bind to a
// target of type `want`. Pointer targets accept their element type;
// numeric widths widen; beyond that, assignability rules apply
// unchanged.
func elemAssignable(got, want reflect.Type) bool {
	if want.Kind() == reflect.Ptr {
		want = want.Elem()
	}
	if got.Kind() == reflect.Ptr {
		got = got.Elem()
	}
	if got.AssignableTo(want) {
		return true
	}
	return isNumericKind(got.Kind()) && isNumericKind(want.Kind())
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// expandIn returns the elements of an In clause's collection argument
// as a flat value slice. Renderers call this to turn the single
// declared parameter into its runtime placeholder list.
func expandIn(value interface{}) []interface{} {
	rv := reflect.ValueOf(value)
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
