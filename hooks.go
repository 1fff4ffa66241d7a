package gdr

import (
	"context"
	"time"
)

// =====================================
// Entity Hook Interfaces
// =====================================

// AfterFindHook is called after an entity has been materialized
type AfterFindHook interface {
	AfterFind(ctx context.Context) error
}

// =====================================
// Query Hook Interfaces
// =====================================

// QueryEvent describes one executed operation
type QueryEvent struct {
	Operation string        // registered operation name
	Entity    string        // entity the operation targets
	Query     string        // rendered statement, empty for plan execution
	Args      []interface{} // bound argument values
	StartTime time.Time
	Duration  time.Duration
	Err       error
}

// QueryHook observes operation execution. BeforeQuery may derive a new
// context that is used for the rest of the invocation; AfterQuery runs
// once the session call returns, with Duration and Err filled in.
type QueryHook interface {
	BeforeQuery(ctx context.Context, event *QueryEvent) context.Context
	AfterQuery(ctx context.Context, event *QueryEvent)
}
