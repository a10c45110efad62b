package loader

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"aggload/dialect"
	"aggload/mapping"
	"aggload/sqlgen"
)

// SingleQueryLoader loads aggregates with one generated statement per
// operation. One generator (and its alias factory) is kept per aggregate
// root type, created once and reused, so alias assignments stay consistent
// between generation and row decoding.
type SingleQueryLoader struct {
	executor QueryExecutor
	dialect  dialect.Dialect
	logger   *slog.Logger

	mu         sync.Mutex
	generators map[string]*sqlgen.SingleQueryGenerator
}

// NewSingleQueryLoader returns a loader executing single-query statements
// through the given executor.
func NewSingleQueryLoader(executor QueryExecutor, d dialect.Dialect, opts ...Option) (*SingleQueryLoader, error) {
	if executor == nil {
		return nil, errors.New("loader: executor must not be nil")
	}
	if d == nil {
		return nil, errors.New("loader: dialect must not be nil")
	}

	l := &SingleQueryLoader{
		executor:   executor,
		dialect:    d,
		generators: make(map[string]*sqlgen.SingleQueryGenerator),
	}
	o := applyOptions(opts)
	l.logger = o.logger
	return l, nil
}

// FindByID loads one aggregate by its identifier.
func (l *SingleQueryLoader) FindByID(ctx context.Context, entity *mapping.Entity, id any) (Document, error) {
	g := l.generator(entity)
	query, args := bindNamed(l.dialect, g.FindByID(), "id", id)

	documents, err := l.run(ctx, g, query, args)
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, ErrNotFound
	}
	return documents[0], nil
}

// FindAll loads every aggregate of the entity's type.
func (l *SingleQueryLoader) FindAll(ctx context.Context, entity *mapping.Entity) ([]Document, error) {
	g := l.generator(entity)
	return l.run(ctx, g, g.FindAll(), nil)
}

// FindAllByID loads the aggregates matching the given identifiers. An empty
// id list yields an empty result without a round trip.
func (l *SingleQueryLoader) FindAllByID(ctx context.Context, entity *mapping.Entity, ids []any) ([]Document, error) {
	if len(ids) == 0 {
		return []Document{}, nil
	}
	g := l.generator(entity)
	query, args := bindNamed(l.dialect, g.FindAllByID(), "ids", ids...)
	return l.run(ctx, g, query, args)
}

func (l *SingleQueryLoader) run(ctx context.Context, g *sqlgen.SingleQueryGenerator, query string, args []any) ([]Document, error) {
	l.logger.DebugContext(ctx, "executing single-query statement",
		slog.String("entity", g.Entity().Name),
		slog.Int("args", len(args)))

	rows, err := l.executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectDocuments(g.Entity(), g.Aliases(), rows)
}

// generator returns the memoized generator for an aggregate root type.
func (l *SingleQueryLoader) generator(entity *mapping.Entity) *sqlgen.SingleQueryGenerator {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.generators[entity.Name]
	if !ok {
		g = sqlgen.NewSingleQueryGenerator(entity, l.dialect)
		l.generators[entity.Name] = g
	}
	return g
}
