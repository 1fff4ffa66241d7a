package gdr

import (
	"fmt"
	"strings"
)

// Dialect identifies a SQL dialect for rendering
type Dialect string

// Dialect constants
const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
	DialectPgSQL  Dialect = "pgsql"
	DialectMsSQL  Dialect = "mssql"
)

// SupportedDialects is a list of all supported database dialects
var SupportedDialects = []Dialect{
	DialectSQLite,
	DialectMySQL,
	DialectPgSQL,
	DialectMsSQL,
}

// IsDialectSupported checks if the given dialect is supported
func IsDialectSupported(dialect Dialect) bool {
	for _, d := range SupportedDialects {
		if d == dialect {
			return true
		}
	}
	return false
}

// QuoteIdent quotes an identifier in the dialect's quoting style.
func (d Dialect) QuoteIdent(ident string) string {
	switch d {
	case DialectMySQL:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	case DialectMsSQL:
		return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
}

// Placeholder renders the n-th (1-based) parameter marker.
func (d Dialect) Placeholder(n int) string {
	switch d {
	case DialectPgSQL:
		return fmt.Sprintf("$%d", n)
	case DialectMsSQL:
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

// BooleanLiteral renders a boolean constant.
func (d Dialect) BooleanLiteral(v bool) string {
	if d == DialectMsSQL {
		if v {
			return "1"
		}
		return "0"
	}
	if v {
		return "TRUE"
	}
	return "FALSE"
}
