// Package gdrsql provides a database/sql session adapter for the gdr
// query engine. It supports PostgreSQL, MySQL and SQLite through
// their standard drivers.
package gdrsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lemmego/gdr"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// =====================================
// Provider Registration
// =====================================

func init() {
	for _, driver := range SupportedDrivers() {
		gdr.RegisterSessionProvider(driver, Info(), func(config gdr.Config) (gdr.Session, error) {
			return NewSession(config)
		})
	}
}

// SupportedDrivers returns the list of supported database drivers
func SupportedDrivers() []string {
	return []string{"postgres", "postgresql", "mysql", "sqlite", "sqlite3"}
}

// Info returns the provider metadata for this adapter
func Info() gdr.ProviderInfo {
	return gdr.ProviderInfo{
		Name:         "database/sql",
		Version:      "1.0.0",
		DatabaseType: gdr.DatabaseTypeSQL,
		Features: []gdr.Feature{
			gdr.FeatureTransactions,
			gdr.FeatureJoins,
			gdr.FeatureRawSQL,
			gdr.FeatureAggregation,
			gdr.FeaturePagination,
		},
	}
}

// =====================================
// Session Implementation
// =====================================

// Session implements gdr.Session over a database/sql connection pool.
type Session struct {
	db      *sql.DB
	dialect gdr.Dialect
	config  gdr.Config
}

// NewSession opens a connection pool for the configured driver.
func NewSession(config gdr.Config) (*Session, error) {
	var (
		db  *sql.DB
		err error
	)
	switch strings.ToLower(config.Driver) {
	case "postgres", "postgresql":
		db, err = openPostgres(config)
	case "mysql":
		db, err = openMySQL(config)
	case "sqlite", "sqlite3":
		db, err = openSQLite(config)
	default:
		return nil, gdr.NewErrorf(gdr.ErrorKindUnsupported, "unsupported driver: %s", config.Driver)
	}
	if err != nil {
		return nil, gdr.NewErrorWithCause(gdr.ErrorKindConfiguration, "failed to open database", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	return &Session{db: db, dialect: dialectFor(config.Driver), config: config}, nil
}

// Wrap adopts an already-open pool, for callers that manage their own
// connections.
func Wrap(db *sql.DB, dialect gdr.Dialect) *Session {
	return &Session{db: db, dialect: dialect}
}

// Dialect reports the SQL dialect of the underlying driver.
func (s *Session) Dialect() gdr.Dialect {
	return s.dialect
}

// Query runs a statement that produces rows.
func (s *Session) Query(ctx context.Context, query string, args []interface{}) (gdr.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// Exec runs a statement and reports the number of affected rows.
func (s *Session) Exec(ctx context.Context, query string, args []interface{}) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Health checks the database connection health
func (s *Session) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *Session) Close() error {
	return s.db.Close()
}

// DB exposes the underlying pool for operations outside the engine.
func (s *Session) DB() *sql.DB {
	return s.db
}

// InTransaction runs fn inside one transaction. An error from fn
// rolls back, nil commits.
func (s *Session) InTransaction(ctx context.Context, fn func(gdr.Session) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&txSession{tx: tx, root: s}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (after: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

// txSession scopes a session to one open transaction. Close is a
// no-op; the transaction's lifecycle belongs to InTransaction.
type txSession struct {
	tx   *sql.Tx
	root *Session
}

func (s *txSession) Dialect() gdr.Dialect {
	return s.root.dialect
}

func (s *txSession) Query(ctx context.Context, query string, args []interface{}) (gdr.Rows, error) {
	return s.tx.QueryContext(ctx, query, args...)
}

func (s *txSession) Exec(ctx context.Context, query string, args []interface{}) (int64, error) {
	result, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *txSession) Health(ctx context.Context) error {
	return s.root.Health(ctx)
}

func (s *txSession) Close() error {
	return nil
}

// =====================================
// Connection Helpers
// =====================================

func openPostgres(config gdr.Config) (*sql.DB, error) {
	if config.ConnectionURL != "" {
		return sql.Open("postgres", config.ConnectionURL)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		config.Username, config.Password, config.Host, config.Port, config.Database)

	if config.SSL.Enabled {
		dsn = strings.Replace(dsn, "sslmode=disable", "sslmode="+config.SSL.Mode, 1)
	}
	return sql.Open("postgres", dsn)
}

func openMySQL(config gdr.Config) (*sql.DB, error) {
	if config.ConnectionURL != "" {
		return sql.Open("mysql", config.ConnectionURL)
	}

	mysqlConfig := mysql.Config{
		User:      config.Username,
		Passwd:    config.Password,
		Net:       "tcp",
		Addr:      fmt.Sprintf("%s:%d", config.Host, config.Port),
		DBName:    config.Database,
		ParseTime: true,
	}
	return sql.Open("mysql", mysqlConfig.FormatDSN())
}

func openSQLite(config gdr.Config) (*sql.DB, error) {
	return sql.Open("sqlite3", config.Database)
}

func dialectFor(driver string) gdr.Dialect {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql":
		return gdr.DialectPgSQL
	case "mysql":
		return gdr.DialectMySQL
	default:
		return gdr.DialectSQLite
	}
}
