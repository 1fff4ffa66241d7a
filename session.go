package gdr

import (
	"context"
)

// =====================================
// Execution Sessions
// =====================================

// Rows is the cursor a session returns for a query. *sql.Rows
// satisfies it directly; adapters that do not sit on database/sql
// return their own implementation.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

// Session executes rendered statements against one datasource. All
// SQL adapters implement it; implementations must be safe for
// concurrent use.
type Session interface {
	// Dialect reports the SQL dialect statements should be rendered in.
	Dialect() Dialect

	// Query runs a statement that produces rows.
	Query(ctx context.Context, query string, args []interface{}) (Rows, error)

	// Exec runs a statement that produces no rows and reports the
	// number of affected rows.
	Exec(ctx context.Context, query string, args []interface{}) (int64, error)

	// Health checks connectivity to the underlying datasource.
	Health(ctx context.Context) error

	// Close releases the session's resources.
	Close() error
}

// PlanSession executes query plans directly instead of rendered SQL.
// Non-SQL adapters implement it and translate the plan into their
// native query form; an adapter may implement both interfaces, in
// which case plan execution is preferred.
type PlanSession interface {
	// ExecutePlan evaluates the plan with the bound arguments and
	// returns the raw result rows.
	ExecutePlan(ctx context.Context, plan *QueryPlan, binds *BoundArguments) (*ResultEnvelope, error)

	// Health checks connectivity to the underlying datasource.
	Health(ctx context.Context) error

	// Close releases the session's resources.
	Close() error
}

// Transactor is implemented by sessions that support transactions.
// The callback runs inside one transaction; a returned error rolls it
// back, nil commits.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(Session) error) error
}

// ResultEnvelope carries raw result data from a session back to the
// materializer: column names in result order and one value slice per
// row. Affected is set for statements that modify rows.
type ResultEnvelope struct {
	Columns  []string
	Rows     [][]interface{}
	Affected int64
}

// drainRows reads a cursor to completion into an envelope and closes
// it.
func drainRows(rows Rows) (*ResultEnvelope, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	env := &ResultEnvelope{Columns: cols}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		env.Rows = append(env.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return env, nil
}
