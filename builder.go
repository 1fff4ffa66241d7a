package gdr

import "context"

// =====================================
// Criteria Builder
// =====================================

// criteriaOperation names ad-hoc criteria queries in hook events.
const criteriaOperation = "criteria"

// CriteriaBuilder provides a fluent interface for building queries at
// runtime, for filters that cannot be fixed in an operation name.
// It compiles into the same plans registered operations use, so
// rendering, hooks and materialization behave identically.
type CriteriaBuilder[T any] struct {
	repo       *Repository[T]
	conditions []Condition
	orders     []Order
}

// Query starts a criteria query on the repository.
// Example: users, err := repo.Query().Where("age", gdr.CompGreaterThan, 18).All(ctx)
func (r *Repository[T]) Query() *CriteriaBuilder[T] {
	return &CriteriaBuilder[T]{repo: r}
}

// Where adds a condition combined with AND.
// Returns the same CriteriaBuilder instance for method chaining.
// Example: b.Where("status", gdr.CompEquals, "active").Where("age", gdr.CompGreaterThan, 18)
func (b *CriteriaBuilder[T]) Where(property string, comparator Comparator, values ...interface{}) *CriteriaBuilder[T] {
	b.conditions = append(b.conditions, Where(property, comparator, values...))
	return b
}

// WhereCondition adds pre-built conditions, for composites that the
// plain Where form cannot express.
// Example: b.WhereCondition(gdr.Or(gdr.Where("role", gdr.CompEquals, "admin"), gdr.WhereNull("deletedAt")))
func (b *CriteriaBuilder[T]) WhereCondition(conditions ...Condition) *CriteriaBuilder[T] {
	b.conditions = append(b.conditions, conditions...)
	return b
}

// OrderBy adds a sort key.
// Example: b.OrderBy("lastName", gdr.OrderAsc).OrderBy("firstName", gdr.OrderAsc)
func (b *CriteriaBuilder[T]) OrderBy(property string, direction OrderDirection) *CriteriaBuilder[T] {
	b.orders = append(b.orders, Order{Property: property, Direction: direction})
	return b
}

// =====================================
// Criteria Execution
// =====================================

// All executes the criteria and returns every matching entity.
func (b *CriteriaBuilder[T]) All(ctx context.Context) ([]*T, error) {
	plan, binds, err := b.compile(ProjectionEntity, ShapeList)
	if err != nil {
		return nil, err
	}
	return b.repo.runList(ctx, criteriaOperation, plan, binds)
}

// One executes the criteria expecting at most one match. No match
// returns nil; several matches fail with a non-unique result error.
func (b *CriteriaBuilder[T]) One(ctx context.Context) (*T, error) {
	plan, binds, err := b.compile(ProjectionEntity, ShapeSingle)
	if err != nil {
		return nil, err
	}
	return b.repo.runSingle(ctx, criteriaOperation, plan, binds)
}

// Page executes the criteria over one page window and counts the
// total matches.
func (b *CriteriaBuilder[T]) Page(ctx context.Context, req PageRequest) (*Page[T], error) {
	if req.Limit <= 0 {
		return nil, NewError(ErrorKindTypeMismatch, "page request requires a positive limit")
	}
	plan, binds, err := b.compile(ProjectionEntity, ShapePage)
	if err != nil {
		return nil, err
	}
	binds.Page = &req
	return b.repo.runPage(ctx, criteriaOperation, plan, binds)
}

// Count returns the number of matching entities.
func (b *CriteriaBuilder[T]) Count(ctx context.Context) (int64, error) {
	plan, binds, err := b.compile(ProjectionCount, ShapeCount)
	if err != nil {
		return 0, err
	}
	return b.repo.exec.runScalar(ctx, criteriaOperation, plan, binds)
}

// Exists reports whether any entity matches.
func (b *CriteriaBuilder[T]) Exists(ctx context.Context) (bool, error) {
	plan, binds, err := b.compile(ProjectionExists, ShapeExists)
	if err != nil {
		return false, err
	}
	return b.repo.runExists(ctx, criteriaOperation, plan, binds)
}

// Delete removes every matching entity and reports how many were
// removed.
func (b *CriteriaBuilder[T]) Delete(ctx context.Context) (int64, error) {
	plan, binds, err := b.compile(ProjectionDelete, ShapeAffected)
	if err != nil {
		return 0, err
	}
	return b.repo.runAffected(ctx, criteriaOperation, plan, binds)
}

// compile builds the ad-hoc plan and its bound arguments. Property
// resolution failures surface here, before anything reaches the
// session.
func (b *CriteriaBuilder[T]) compile(projection Projection, shape ReturnShape) (*QueryPlan, *BoundArguments, error) {
	exec := b.repo.exec

	filter, values, err := compileConditions(exec.reg, exec.desc, b.conditions)
	if err != nil {
		return nil, nil, err
	}
	for _, o := range b.orders {
		if _, err := resolvePropertyPath(exec.reg, exec.desc, o.Property); err != nil {
			return nil, nil, err
		}
	}

	plan := &QueryPlan{
		Entity:     exec.desc,
		Projection: projection,
		Origin:     OriginDerived,
		Filter:     filter,
		Orders:     append([]Order{}, b.orders...),
		Shape:      shape,
		ParamCount: len(values),
	}
	return plan, &BoundArguments{Values: values}, nil
}
