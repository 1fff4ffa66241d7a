package gdr

import (
	"context"
)

// =====================================
// Repository Facade
// =====================================

// RepositoryOption configures repository construction.
type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	registry *Registry
	hooks    []QueryHook
}

// WithRegistry uses the given registry instead of the process-wide
// default. Repositories sharing entities must share a registry.
func WithRegistry(reg *Registry) RepositoryOption {
	return func(o *repositoryOptions) { o.registry = reg }
}

// WithQueryHook attaches a hook that observes every executed
// operation. Hooks run in registration order.
func WithQueryHook(hook QueryHook) RepositoryOption {
	return func(o *repositoryOptions) { o.hooks = append(o.hooks, hook) }
}

// Repository executes the registered query operations of one entity
// type with compile-time type safety. Construction compiles every
// declared operation; a repository that constructs successfully can
// no longer fail for structural reasons, only for execution ones.
//
// A repository is safe for concurrent use once constructed.
type Repository[T any] struct {
	exec *executor
}

// NewRepository builds a repository over a SQL session. The entity
// type is registered (if it was not already) and the registry is
// frozen; every operation is parsed and planned up front, so all
// declaration mistakes surface here rather than at call time.
//
// Example:
//
//	repo, err := gdr.NewRepository[User](session, []gdr.Operation{
//		{Name: "findByEmail"},
//		{Name: "findByAgeGreaterThanOrderByNameAsc"},
//	})
func NewRepository[T any](session Session, operations []Operation, opts ...RepositoryOption) (*Repository[T], error) {
	if session == nil {
		return nil, NewError(ErrorKindConfiguration, "repository requires a session")
	}
	plans, _ := session.(PlanSession)
	return newRepository[T](session, plans, operations, opts)
}

// NewPlanRepository builds a repository over a plan-executing session,
// for datasources that consume query plans instead of rendered SQL.
func NewPlanRepository[T any](session PlanSession, operations []Operation, opts ...RepositoryOption) (*Repository[T], error) {
	if session == nil {
		return nil, NewError(ErrorKindConfiguration, "repository requires a session")
	}
	return newRepository[T](nil, session, operations, opts)
}

func newRepository[T any](session Session, plans PlanSession, operations []Operation, opts []RepositoryOption) (*Repository[T], error) {
	options := repositoryOptions{registry: DefaultRegistry()}
	for _, opt := range opts {
		opt(&options)
	}

	var prototype T
	desc, err := options.registry.Register(prototype)
	if err != nil {
		return nil, err
	}
	if err := options.registry.Freeze(); err != nil {
		return nil, err
	}

	exec := &executor{
		reg:     options.registry,
		desc:    desc,
		session: session,
		plans:   plans,
		ops:     newOperationArena(),
		hooks:   options.hooks,
	}
	if session != nil {
		exec.renderer = newSQLRenderer(options.registry, session.Dialect())
	}

	for _, op := range operations {
		compiled, err := compileOperation(options.registry, desc, op)
		if err != nil {
			return nil, err
		}
		if _, err := exec.ops.add(compiled); err != nil {
			return nil, err
		}
	}
	return &Repository[T]{exec: exec}, nil
}

// ===============================
// Operation Invocation
// ===============================

// Invoke executes a registered operation by name. The result's
// dynamic type follows the operation's shape: *T for single, []*T for
// list, *Page[T] for page, int64 for count and affected, bool for
// exists. The typed methods below are preferable when the shape is
// known at the call site.
//
// Example:
//
//	result, err := repo.Invoke(ctx, "findByStatus", "active")
//	users := result.([]*User)
func (r *Repository[T]) Invoke(ctx context.Context, operation string, args ...interface{}) (interface{}, error) {
	op, binds, err := r.exec.prepare(operation, args)
	if err != nil {
		return nil, err
	}
	switch op.plan.Shape {
	case ShapeSingle:
		return r.runSingle(ctx, op.op.Name, op.plan, binds)
	case ShapeList:
		return r.runList(ctx, op.op.Name, op.plan, binds)
	case ShapePage:
		return r.runPage(ctx, op.op.Name, op.plan, binds)
	case ShapeCount:
		return r.exec.runScalar(ctx, op.op.Name, op.plan, binds)
	case ShapeExists:
		return r.runExists(ctx, op.op.Name, op.plan, binds)
	case ShapeAffected:
		return r.runAffected(ctx, op.op.Name, op.plan, binds)
	}
	return nil, NewErrorf(ErrorKindConfiguration,
		"operation %q has unknown shape %q", operation, op.plan.Shape)
}

// Find executes a list-shaped operation.
//
// Example:
//
//	users, err := repo.Find(ctx, "findByDepartmentNameOrderByLastNameAsc", "Engineering")
func (r *Repository[T]) Find(ctx context.Context, operation string, args ...interface{}) ([]*T, error) {
	op, binds, err := r.prepareShaped(operation, args, ShapeList)
	if err != nil {
		return nil, err
	}
	return r.runList(ctx, op.op.Name, op.plan, binds)
}

// FindOne executes a single-shaped operation. A query that matches
// nothing returns nil without error; a query that matches more than
// one record fails with a non-unique result error.
//
// Example:
//
//	user, err := repo.FindOne(ctx, "getByEmail", "ada@example.com")
func (r *Repository[T]) FindOne(ctx context.Context, operation string, args ...interface{}) (*T, error) {
	op, binds, err := r.prepareShaped(operation, args, ShapeSingle)
	if err != nil {
		return nil, err
	}
	return r.runSingle(ctx, op.op.Name, op.plan, binds)
}

// FindPage executes a page-shaped operation. The page request rides
// as the trailing argument; its sort keys override the operation's
// own ordering.
//
// Example:
//
//	page, err := repo.FindPage(ctx, "findByStatus", "active", gdr.PageOf(2, 10))
func (r *Repository[T]) FindPage(ctx context.Context, operation string, args ...interface{}) (*Page[T], error) {
	op, binds, err := r.prepareShaped(operation, args, ShapePage)
	if err != nil {
		return nil, err
	}
	return r.runPage(ctx, op.op.Name, op.plan, binds)
}

// Count executes a count-shaped operation.
func (r *Repository[T]) Count(ctx context.Context, operation string, args ...interface{}) (int64, error) {
	op, binds, err := r.prepareShaped(operation, args, ShapeCount)
	if err != nil {
		return 0, err
	}
	return r.exec.runScalar(ctx, op.op.Name, op.plan, binds)
}

// Exists executes an exists-shaped operation.
func (r *Repository[T]) Exists(ctx context.Context, operation string, args ...interface{}) (bool, error) {
	op, binds, err := r.prepareShaped(operation, args, ShapeExists)
	if err != nil {
		return false, err
	}
	return r.runExists(ctx, op.op.Name, op.plan, binds)
}

// Delete executes a delete operation and reports the number of
// removed records.
//
// Example:
//
//	n, err := repo.Delete(ctx, "deleteByStatusAndLastSeenLessThan", "inactive", cutoff)
func (r *Repository[T]) Delete(ctx context.Context, operation string, args ...interface{}) (int64, error) {
	op, binds, err := r.prepareShaped(operation, args, ShapeAffected)
	if err != nil {
		return 0, err
	}
	return r.runAffected(ctx, op.op.Name, op.plan, binds)
}

// ===============================
// Metadata Operations
// ===============================

// Descriptor returns the entity's metadata.
func (r *Repository[T]) Descriptor() *EntityDescriptor {
	return r.exec.desc
}

// Operations returns the registered operation names in declaration
// order.
func (r *Repository[T]) Operations() []string {
	return r.exec.ops.names()
}

// AddQueryHook attaches a hook after construction. Not safe to call
// concurrently with running operations; attach hooks before the
// repository is shared.
func (r *Repository[T]) AddQueryHook(hook QueryHook) {
	r.exec.hooks = append(r.exec.hooks, hook)
}

// ===============================
// Shape Execution
// ===============================

func (r *Repository[T]) prepareShaped(operation string, args []interface{}, shape ReturnShape) (*compiledOperation, *BoundArguments, error) {
	op, binds, err := r.exec.prepare(operation, args)
	if err != nil {
		return nil, nil, err
	}
	if op.plan.Shape != shape {
		return nil, nil, NewErrorf(ErrorKindTypeMismatch,
			"operation %q returns a %s result, not %s", operation, op.plan.Shape, shape)
	}
	return op, binds, nil
}

func (r *Repository[T]) runSingle(ctx context.Context, name string, plan *QueryPlan, binds *BoundArguments) (*T, error) {
	env, err := r.exec.run(ctx, name, plan, binds)
	if err != nil {
		return nil, err
	}
	value, ok, err := decodeSingle(ctx, r.exec.desc, env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return value.Addr().Interface().(*T), nil
}

func (r *Repository[T]) runList(ctx context.Context, name string, plan *QueryPlan, binds *BoundArguments) ([]*T, error) {
	env, err := r.exec.run(ctx, name, plan, binds)
	if err != nil {
		return nil, err
	}
	values, err := decodeRows(ctx, r.exec.desc, env)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(values))
	for _, v := range values {
		out = append(out, v.Addr().Interface().(*T))
	}
	return out, nil
}

func (r *Repository[T]) runPage(ctx context.Context, name string, plan *QueryPlan, binds *BoundArguments) (*Page[T], error) {
	items, err := r.runList(ctx, name, plan, binds)
	if err != nil {
		return nil, err
	}
	total, err := r.exec.runCount(ctx, name, plan, binds)
	if err != nil {
		return nil, err
	}
	return &Page[T]{
		Items:  items,
		Total:  total,
		Offset: binds.Page.Offset,
		Limit:  binds.Page.Limit,
	}, nil
}

func (r *Repository[T]) runExists(ctx context.Context, name string, plan *QueryPlan, binds *BoundArguments) (bool, error) {
	env, err := r.exec.run(ctx, name, plan, binds)
	if err != nil {
		return false, err
	}
	if r.exec.plans == nil && plan.Origin == OriginDerived {
		// The derived probe selects a marker row, so presence is the
		// answer.
		return len(env.Rows) > 0, nil
	}
	n, err := scalarInt64(env)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository[T]) runAffected(ctx context.Context, name string, plan *QueryPlan, binds *BoundArguments) (int64, error) {
	env, err := r.exec.run(ctx, name, plan, binds)
	if err != nil {
		return 0, err
	}
	return env.Affected, nil
}
