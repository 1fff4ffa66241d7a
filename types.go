package gdr

import "time"

// =====================================
// Core Types and Constants
// =====================================

// Config represents database connection configuration
type Config struct {
	// Connection details
	Driver        string `json:"driver" yaml:"driver"`
	ConnectionURL string `json:"connection_url" yaml:"connection_url"`
	Host          string `json:"host" yaml:"host"`
	Port          int    `json:"port" yaml:"port"`
	Database      string `json:"database" yaml:"database"`
	Username      string `json:"username" yaml:"username"`
	Password      string `json:"password" yaml:"password"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`

	// Additional options
	Options map[string]interface{} `json:"options" yaml:"options"`

	// SSL/TLS configuration
	SSL SSLConfig `json:"ssl" yaml:"ssl"`
}

// SSLConfig represents SSL/TLS configuration
type SSLConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Mode     string `json:"mode" yaml:"mode"`
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file" yaml:"ca_file"`
}

// ProviderInfo contains information about a session provider
type ProviderInfo struct {
	Name         string
	Version      string
	DatabaseType DatabaseType
	Features     []Feature
}

// DatabaseType represents the type of database a session talks to
type DatabaseType string

const (
	DatabaseTypeSQL      DatabaseType = "sql"
	DatabaseTypeDocument DatabaseType = "document"
	DatabaseTypeKV       DatabaseType = "key-value"
)

// Feature represents a backend capability
type Feature string

const (
	FeatureTransactions Feature = "transactions"
	FeatureJoins        Feature = "joins"
	FeatureRawSQL       Feature = "raw_sql"
	FeatureAggregation  Feature = "aggregation"
	FeaturePagination   Feature = "pagination"
	FeatureTTL          Feature = "ttl"
)

// Action represents the verb of a declared repository operation.
// The action determines the default return shape and, for delete,
// the statement kind.
type Action string

const (
	ActionFind   Action = "find"
	ActionGet    Action = "get"
	ActionRead   Action = "read"
	ActionQuery  Action = "query"
	ActionCount  Action = "count"
	ActionExists Action = "exists"
	ActionDelete Action = "delete"
)

// Comparator represents a predicate comparison in a derived query.
// The set is closed; the grammar, the SQL renderer and the plan-level
// adapters each switch over it exhaustively.
type Comparator string

const (
	CompEquals       Comparator = "equals"
	CompNot          Comparator = "not"
	CompGreaterThan  Comparator = "greater_than"
	CompLessThan     Comparator = "less_than"
	CompBetween      Comparator = "between"
	CompLike         Comparator = "like"
	CompStartingWith Comparator = "starting_with"
	CompEndingWith   Comparator = "ending_with"
	CompIn           Comparator = "in"
	CompIsNull       Comparator = "is_null"
	CompIsNotNull    Comparator = "is_not_null"
	CompTrue         Comparator = "true"
	CompFalse        Comparator = "false"
)

// LogicOperator represents logic operators for combining predicate clauses
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// Order represents one sort key of a query
type Order struct {
	Property  string
	Direction OrderDirection
}

// OrderDirection represents sort direction
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// ReturnShape represents the declared shape of an operation's result.
// The materializer dispatches on it.
type ReturnShape string

const (
	ShapeSingle   ReturnShape = "single"
	ShapeList     ReturnShape = "list"
	ShapePage     ReturnShape = "page"
	ShapeCount    ReturnShape = "count"
	ShapeExists   ReturnShape = "exists"
	ShapeAffected ReturnShape = "affected"
)

// RelationType represents different types of entity relationships
type RelationType string

const (
	RelationOneToOne   RelationType = "one_to_one"
	RelationOneToMany  RelationType = "one_to_many"
	RelationManyToOne  RelationType = "many_to_one"
	RelationManyToMany RelationType = "many_to_many"
)

// ErrorKind represents different kinds of errors the engine reports
type ErrorKind string

const (
	// Configuration-time kinds. These surface from Register or
	// NewRepository and must prevent the application from starting.
	ErrorKindAmbiguousIdentifier          ErrorKind = "ambiguous_identifier"
	ErrorKindUnsupportedFieldType         ErrorKind = "unsupported_field_type"
	ErrorKindUnresolvableProperty         ErrorKind = "unresolvable_property"
	ErrorKindArityMismatch                ErrorKind = "arity_mismatch"
	ErrorKindInconsistentPlaceholderStyle ErrorKind = "inconsistent_placeholder_style"
	ErrorKindUnnamedParameter             ErrorKind = "unnamed_parameter"
	ErrorKindConfiguration                ErrorKind = "configuration"

	// Call-time kinds, surfaced synchronously to the caller.
	ErrorKindTypeMismatch    ErrorKind = "type_mismatch"
	ErrorKindExecution       ErrorKind = "execution"
	ErrorKindCancelled       ErrorKind = "cancelled"
	ErrorKindNonUniqueResult ErrorKind = "non_unique_result"
	ErrorKindNotFound        ErrorKind = "not_found"
	ErrorKindUnsupported     ErrorKind = "unsupported"
)
