// Package gdrgorm provides a GORM-backed session adapter for the gdr
// query engine. It is the only SQL adapter with SQL Server support.
package gdrgorm

import (
	"context"
	"fmt"
	"strings"

	"github.com/lemmego/gdr"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
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
// under.
func SupportedDrivers() []string {
	return []string{"gorm:postgres", "gorm:mysql", "gorm:sqlite", "gorm:sqlserver", "gorm:mssql"}
}

// Info returns the provider metadata for this adapter
func Info() gdr.ProviderInfo {
	return gdr.ProviderInfo{
		Name:         "GORM",
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

// Session implements gdr.Session over a gorm.DB.
type Session struct {
	db      *gorm.DB
	dialect gdr.Dialect
	config  gdr.Config
}

// NewSession opens a GORM database for the configured driver. The
// "gorm:" prefix on the driver name is optional.
func NewSession(config gdr.Config) (*Session, error) {
	driver := strings.TrimPrefix(strings.ToLower(config.Driver), "gorm:")

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}
	if options, ok := config.Options["gorm"]; ok {
		if gormOpts, ok := options.(map[string]interface{}); ok {
			if logLevel, ok := gormOpts["log_level"].(string); ok {
				switch logLevel {
				case "silent":
					gormConfig.Logger = logger.Default.LogMode(logger.Silent)
				case "error":
					gormConfig.Logger = logger.Default.LogMode(logger.Error)
				case "warn":
					gormConfig.Logger = logger.Default.LogMode(logger.Warn)
				case "info":
					gormConfig.Logger = logger.Default.LogMode(logger.Info)
				}
			}
		}
	}

	var (
		dialector gorm.Dialector
		dialect   gdr.Dialect
	)
	switch driver {
	case "postgres", "postgresql":
		dialector = postgres.Open(buildPostgresDSN(config))
		dialect = gdr.DialectPgSQL
	case "mysql":
		dialector = mysql.Open(buildMySQLDSN(config))
		dialect = gdr.DialectMySQL
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(config.Database)
		dialect = gdr.DialectSQLite
	case "sqlserver", "mssql":
		dialector = sqlserver.Open(buildSQLServerDSN(config))
		dialect = gdr.DialectMsSQL
	default:
		return nil, gdr.NewErrorf(gdr.ErrorKindUnsupported, "unsupported driver: %s", config.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, gdr.NewErrorWithCause(gdr.ErrorKindConfiguration, "failed to connect to database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, gdr.NewErrorWithCause(gdr.ErrorKindConfiguration, "failed to get underlying sql.DB", err)
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

	return &Session{db: db, dialect: dialect, config: config}, nil
}

// WrapDB adopts an existing gorm.DB.
func WrapDB(db *gorm.DB, dialect gdr.Dialect) *Session {
	return &Session{db: db, dialect: dialect}
}

// Dialect reports the SQL dialect of the configured driver.
func (s *Session) Dialect() gdr.Dialect {
	return s.dialect
}

// Query runs a statement through GORM's raw query path, so its logger
// and plugins observe it.
func (s *Session) Query(ctx context.Context, query string, args []interface{}) (gdr.Rows, error) {
	rows, err := s.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Exec runs a statement and reports the number of affected rows.
func (s *Session) Exec(ctx context.Context, query string, args []interface{}) (int64, error) {
	result := s.db.WithContext(ctx).Exec(query, args...)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Health checks the database connection health
func (s *Session) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *Session) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the underlying gorm.DB for operations outside the
// engine.
func (s *Session) DB() *gorm.DB {
	return s.db
}

// InTransaction runs fn inside one GORM-managed transaction.
func (s *Session) InTransaction(ctx context.Context, fn func(gdr.Session) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Session{db: tx, dialect: s.dialect, config: s.config})
	})
}

// =====================================
// DSN Builders
// =====================================

func buildPostgresDSN(config gdr.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database)

	if config.SSL.Enabled {
		dsn += " sslmode=" + config.SSL.Mode
		if config.SSL.CertFile != "" {
			dsn += " sslcert=" + config.SSL.CertFile
		}
		if config.SSL.KeyFile != "" {
			dsn += " sslkey=" + config.SSL.KeyFile
		}
		if config.SSL.CAFile != "" {
			dsn += " sslrootcert=" + config.SSL.CAFile
		}
	} else {
		dsn += " sslmode=disable"
	}
	return dsn
}

func buildMySQLDSN(config gdr.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.Username, config.Password, config.Host, config.Port, config.Database)

	if config.SSL.Enabled {
		dsn += "&tls=" + config.SSL.Mode
	}
	return dsn
}

func buildSQLServerDSN(config gdr.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		config.Username, config.Password, config.Host, config.Port, config.Database)
}
