// Package gdrbun provides a Bun-backed session adapter for the gdr
// query engine. Statements rendered by the engine run through bun.DB,
// so Bun query hooks such as bundebug observe them.
package gdrbun

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lemmego/gdr"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
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

// SupportedDrivers returns the driver names this adapter registers
// under. The "bun:" prefix keeps them distinct from the plain
// database/sql adapter.
func SupportedDrivers() []string {
	return []string{"bun:postgres", "bun:mysql", "bun:sqlite"}
}

// Info returns the provider metadata for this adapter
func Info() gdr.ProviderInfo {
	return gdr.ProviderInfo{
		Name:         "Bun",
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

// Session implements gdr.Session over a bun.DB.
type Session struct {
	db     *bun.DB
	config gdr.Config
}

// NewSession opens a Bun database for the configured driver. The
// "bun:" prefix on the driver name is optional.
func NewSession(config gdr.Config) (*Session, error) {
	driver := strings.TrimPrefix(strings.ToLower(config.Driver), "bun:")

	var (
		sqlDB *sql.DB
		err   error
	)
	switch driver {
	case "postgres", "postgresql":
		sqlDB, err = openPostgres(config)
	case "mysql":
		sqlDB, err = openMySQL(config)
	case "sqlite", "sqlite3":
		sqlDB, err = openSQLite(config)
	default:
		return nil, gdr.NewErrorf(gdr.ErrorKindUnsupported, "unsupported driver: %s", config.Driver)
	}
	if err != nil {
		return nil, gdr.NewErrorWithCause(gdr.ErrorKindConfiguration, "failed to open database", err)
	}

	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	var bunDB *bun.DB
	switch driver {
	case "postgres", "postgresql":
		bunDB = bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		bunDB = bun.NewDB(sqlDB, mysqldialect.New())
	default:
		bunDB = bun.NewDB(sqlDB, sqlitedialect.New())
	}

	if options, ok := config.Options["bun"]; ok {
		if bunOpts, ok := options.(map[string]interface{}); ok {
			if logLevel, ok := bunOpts["log_level"].(string); ok && logLevel != "silent" {
				bunDB.AddQueryHook(bundebug.NewQueryHook(
					bundebug.WithVerbose(logLevel == "debug"),
				))
			}
		}
	}

	return &Session{db: bunDB, config: config}, nil
}

// WrapDB adopts an existing bun.DB.
func WrapDB(db *bun.DB) *Session {
	return &Session{db: db}
}

// Dialect reports the SQL dialect of the underlying Bun dialect.
func (s *Session) Dialect() gdr.Dialect {
	switch s.db.Dialect().Name() {
	case dialect.PG:
		return gdr.DialectPgSQL
	case dialect.MySQL:
		return gdr.DialectMySQL
	case dialect.MSSQL:
		return gdr.DialectMsSQL
	default:
		return gdr.DialectSQLite
	}
}

// Query runs a statement through bun.DB so query hooks fire.
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

// Close closes the database connection
func (s *Session) Close() error {
	return s.db.Close()
}

// DB exposes the underlying bun.DB for operations outside the engine.
func (s *Session) DB() *bun.DB {
	return s.db
}

// InTransaction runs fn inside one Bun-managed transaction.
func (s *Session) InTransaction(ctx context.Context, fn func(gdr.Session) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(&txSession{tx: tx, root: s})
	})
}

// txSession scopes a session to one open Bun transaction.
type txSession struct {
	tx   bun.Tx
	root *Session
}

func (s *txSession) Dialect() gdr.Dialect {
	return s.root.Dialect()
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
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(config.ConnectionURL))), nil
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		config.Username, config.Password, config.Host, config.Port, config.Database)

	if config.SSL.Enabled {
		dsn = strings.Replace(dsn, "sslmode=disable", "sslmode="+config.SSL.Mode, 1)
	}
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), nil
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
