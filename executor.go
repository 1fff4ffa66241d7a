package gdr

import (
	"context"
	"errors"
	"time"
)

// =====================================
// Operation Execution
// =====================================

// executor drives one entity's compiled operations against a session.
// It renders plans for SQL sessions, hands plans through directly for
// plan sessions, and classifies every failure into an error kind.
type executor struct {
	reg      *Registry
	desc     *EntityDescriptor
	session  Session
	plans    PlanSession
	renderer *sqlRenderer
	ops      *operationArena
	hooks    []QueryHook
}

// prepare looks up an operation and binds its arguments.
func (e *executor) prepare(name string, args []interface{}) (*compiledOperation, *BoundArguments, error) {
	op, ok := e.ops.lookup(name)
	if !ok {
		return nil, nil, NewErrorf(ErrorKindNotFound, "no operation named %q on entity %s", name, e.desc.Name)
	}
	binds, err := bindArguments(op, args)
	if err != nil {
		return nil, nil, err
	}
	return op, binds, nil
}

// run executes the operation's main statement and returns the raw
// result envelope.
func (e *executor) run(ctx context.Context, name string, plan *QueryPlan, binds *BoundArguments) (*ResultEnvelope, error) {
	if e.plans != nil {
		return e.observe(ctx, name, plan, "", binds.Values, func(ctx context.Context) (*ResultEnvelope, error) {
			return e.plans.ExecutePlan(ctx, plan, binds)
		})
	}

	text, args, err := e.renderer.Render(plan, binds)
	if err != nil {
		return nil, err
	}
	return e.observe(ctx, name, plan, text, args, func(ctx context.Context) (*ResultEnvelope, error) {
		if plan.Projection == ProjectionDelete {
			affected, err := e.session.Exec(ctx, text, args)
			if err != nil {
				return nil, err
			}
			return &ResultEnvelope{Affected: affected}, nil
		}
		rows, err := e.session.Query(ctx, text, args)
		if err != nil {
			return nil, err
		}
		return drainRows(rows)
	})
}

// runScalar executes a count-shaped operation and extracts its
// scalar result.
func (e *executor) runScalar(ctx context.Context, name string, plan *QueryPlan, binds *BoundArguments) (int64, error) {
	env, err := e.run(ctx, name, plan, binds)
	if err != nil {
		return 0, err
	}
	return scalarInt64(env)
}

// runCount executes the total-count probe of a page-shaped
// invocation.
func (e *executor) runCount(ctx context.Context, name string, plan *QueryPlan, binds *BoundArguments) (int64, error) {
	if e.plans != nil {
		probe := countProbe(plan)
		env, err := e.observe(ctx, name, probe, "", binds.Values, func(ctx context.Context) (*ResultEnvelope, error) {
			return e.plans.ExecutePlan(ctx, probe, binds)
		})
		if err != nil {
			return 0, err
		}
		return scalarInt64(env)
	}

	text, args, err := e.renderer.RenderCount(plan, binds)
	if err != nil {
		return 0, err
	}
	env, err := e.observe(ctx, name, plan, text, args, func(ctx context.Context) (*ResultEnvelope, error) {
		rows, err := e.session.Query(ctx, text, args)
		if err != nil {
			return nil, err
		}
		return drainRows(rows)
	})
	if err != nil {
		return 0, err
	}
	return scalarInt64(env)
}

// observe wraps one session call with the registered query hooks and
// failure classification.
func (e *executor) observe(ctx context.Context, name string, plan *QueryPlan, query string, args []interface{}, fn func(context.Context) (*ResultEnvelope, error)) (*ResultEnvelope, error) {
	event := &QueryEvent{
		Operation: name,
		Entity:    plan.Entity.Name,
		Query:     query,
		Args:      args,
		StartTime: time.Now(),
	}
	for _, h := range e.hooks {
		ctx = h.BeforeQuery(ctx, event)
	}

	env, err := fn(ctx)
	event.Duration = time.Since(event.StartTime)
	if err != nil {
		err = classifyExecError(ctx, err)
	}
	event.Err = err

	for _, h := range e.hooks {
		h.AfterQuery(ctx, event)
	}
	if err != nil {
		return nil, err
	}
	return env, nil
}

// countProbe derives the count-projection plan of a page-shaped plan.
// The filter and template are shared with the original; ordering is
// dropped since it cannot affect the total.
func countProbe(plan *QueryPlan) *QueryPlan {
	probe := *plan
	probe.Projection = ProjectionCount
	probe.Shape = ShapeCount
	probe.Orders = nil
	return &probe
}

// classifyExecError maps a session failure onto an error kind.
// Failures an adapter has already classified pass through untouched;
// context cancellation and deadline expiry get their own kind, and
// everything else counts as an execution failure with the driver
// error preserved as the cause.
func classifyExecError(ctx context.Context, err error) error {
	var classified Error
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return NewErrorWithCause(ErrorKindCancelled, "operation cancelled", err)
	}
	return NewErrorWithCause(ErrorKindExecution, "datasource execution failed", err)
}
