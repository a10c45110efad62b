// Package loader executes aggregate load operations. It routes each logical
// operation either through single-query loading (one statement returning the
// root and its child rows in one round trip) or through the conventional
// per-relation fallback, and re-assembles result rows into aggregate
// documents.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"aggload/dialect"
	"aggload/mapping"
)

// ErrNotFound indicates a by-id lookup matched no aggregate.
var ErrNotFound = errors.New("aggregate not found")

// Document is the materialized form of one aggregate: root scalar properties
// by name, with a one-to-many collection property holding its child
// documents in collection order.
type Document map[string]any

// Collection returns the child documents stored under the given property.
func (d Document) Collection(property string) []Document {
	children, _ := d[property].([]Document)
	return children
}

// Loader is the shape shared by every load strategy, so callers are unaware
// which strategy executed.
type Loader interface {
	FindByID(ctx context.Context, entity *mapping.Entity, id any) (Document, error)
	FindAll(ctx context.Context, entity *mapping.Entity) ([]Document, error)
	FindAllByID(ctx context.Context, entity *mapping.Entity, ids []any) ([]Document, error)
}

// Option customizes a loader or strategy at construction.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger attaches a structured logger; the default logger is used
// otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Rows abstracts sql.Rows so tests and wrappers can substitute row sources.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor abstracts SQL execution. Statement execution, including
// cancellation and timeouts, lives here; SQL generation itself carries no
// context.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}

// StandardExecutor executes queries directly against a database handle.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor creates an executor that runs queries directly against
// the database.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.QueryContext(ctx, query, args...)
}

// bindNamed replaces one named placeholder (":id" or ":ids") of a generated
// statement with the dialect's positional placeholders, one per value.
// Generated statements carry named placeholders; binding happens here.
func bindNamed(d dialect.Dialect, query, name string, values ...any) (string, []any) {
	placeholders := make([]string, len(values))
	for i := range values {
		placeholders[i] = d.Placeholder(i + 1)
	}
	return strings.Replace(query, ":"+name, strings.Join(placeholders, ", "), 1), values
}

// placeholderFormat maps a dialect onto squirrel's placeholder rendering for
// the per-relation fallback statements.
func placeholderFormat(d dialect.Dialect) sq.PlaceholderFormat {
	if d.Name() == "postgres" {
		return sq.Dollar
	}
	return sq.Question
}
