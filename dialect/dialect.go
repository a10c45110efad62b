// Package dialect describes the database-specific behavior the SQL
// generation layer depends on: identifier quoting and whether the engine
// supports the window-function constructs single-query loading is built on.
package dialect

import (
	"strconv"
	"strings"
)

// Dialect reports capability flags and renders dialect-specific SQL tokens.
type Dialect interface {
	// Name identifies the dialect, e.g. "postgres".
	Name() string
	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(name string) string
	// Placeholder renders the positional bind placeholder with the given
	// 1-based index.
	Placeholder(n int) string
	// SupportsSingleQueryLoading reports whether the dialect can run the
	// window-numbered, outer-joined statements produced by the single-query
	// generator.
	SupportsSingleQueryLoading() bool
}

// Postgres is the default dialect. Identifiers are double-quoted.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) QuoteIdentifier(name string) string { return quoteWith(name, `"`) }

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) SupportsSingleQueryLoading() bool { return true }

// MySQL covers MySQL 8+ and TiDB. Identifiers are backtick-quoted.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) QuoteIdentifier(name string) string { return quoteWith(name, "`") }

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) SupportsSingleQueryLoading() bool { return true }

// SQLite quotes like Postgres but does not support single-query loading;
// every aggregate falls back to per-relation loading on it.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) QuoteIdentifier(name string) string { return quoteWith(name, `"`) }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) SupportsSingleQueryLoading() bool { return false }

// ByName resolves a dialect from its configured name.
func ByName(name string) (Dialect, bool) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql":
		return Postgres{}, true
	case "mysql", "tidb":
		return MySQL{}, true
	case "sqlite", "sqlite3":
		return SQLite{}, true
	}
	return nil, false
}

// quoteWith escapes embedded quote characters by doubling them.
func quoteWith(name, quote string) string {
	escaped := strings.ReplaceAll(name, quote, quote+quote)
	return quote + escaped + quote
}
