package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"aggload/dialect"
	"aggload/mapping"
)

// RelationLoader is the conventional per-relation strategy: one query for
// the root rows, then one query per collection per loaded root (the N+1
// pattern single-query loading exists to avoid). It handles any number of
// collections and is therefore the safe fallback for shapes the single-query
// generator does not support. Embedded and association properties carry no
// column mapping in this model and are not materialized.
type RelationLoader struct {
	executor QueryExecutor
	dialect  dialect.Dialect
	logger   *slog.Logger
}

// NewRelationLoader returns a per-relation fallback loader.
func NewRelationLoader(executor QueryExecutor, d dialect.Dialect, opts ...Option) (*RelationLoader, error) {
	if executor == nil {
		return nil, errors.New("loader: executor must not be nil")
	}
	if d == nil {
		return nil, errors.New("loader: dialect must not be nil")
	}
	o := applyOptions(opts)
	return &RelationLoader{executor: executor, dialect: d, logger: o.logger}, nil
}

// FindByID loads one aggregate by its identifier.
func (l *RelationLoader) FindByID(ctx context.Context, entity *mapping.Entity, id any) (Document, error) {
	builder := l.rootSelect(entity).
		Where(sq.Eq{l.dialect.QuoteIdentifier(entity.IDColumn): id})

	documents, err := l.loadRoots(ctx, entity, builder)
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, ErrNotFound
	}
	return documents[0], nil
}

// FindAll loads every aggregate of the entity's type.
func (l *RelationLoader) FindAll(ctx context.Context, entity *mapping.Entity) ([]Document, error) {
	return l.loadRoots(ctx, entity, l.rootSelect(entity))
}

// FindAllByID loads the aggregates matching the given identifiers.
func (l *RelationLoader) FindAllByID(ctx context.Context, entity *mapping.Entity, ids []any) ([]Document, error) {
	if len(ids) == 0 {
		return []Document{}, nil
	}
	builder := l.rootSelect(entity).
		Where(sq.Eq{l.dialect.QuoteIdentifier(entity.IDColumn): ids})
	return l.loadRoots(ctx, entity, builder)
}

func (l *RelationLoader) rootSelect(entity *mapping.Entity) sq.SelectBuilder {
	columns := make([]string, 0, len(entity.RootScalars()))
	for _, p := range entity.RootScalars() {
		columns = append(columns, l.dialect.QuoteIdentifier(p.ColumnName()))
	}
	return sq.Select(columns...).
		From(l.dialect.QuoteIdentifier(entity.Table)).
		OrderBy(l.dialect.QuoteIdentifier(entity.IDColumn)).
		PlaceholderFormat(placeholderFormat(l.dialect))
}

func (l *RelationLoader) loadRoots(ctx context.Context, entity *mapping.Entity, builder sq.SelectBuilder) ([]Document, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building root query: %w", err)
	}

	l.logger.DebugContext(ctx, "executing per-relation root query",
		slog.String("entity", entity.Name))

	rows, err := l.executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	documents, err := l.scanRoots(entity, rows)
	if err != nil {
		return nil, err
	}

	for _, doc := range documents {
		for _, collection := range entity.Collections() {
			if err := l.loadCollection(ctx, entity, collection, doc); err != nil {
				return nil, err
			}
		}
	}
	return documents, nil
}

func (l *RelationLoader) scanRoots(entity *mapping.Entity, rows Rows) ([]Document, error) {
	defer rows.Close()

	documents := []Document{}
	scalars := entity.RootScalars()
	for rows.Next() {
		values := make([]any, len(scalars))
		pointers := make([]any, len(scalars))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scanning root row: %w", err)
		}

		doc := Document{}
		for i, p := range scalars {
			doc[p.Property()] = values[i]
		}
		documents = append(documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating root rows: %w", err)
	}
	return documents, nil
}

// loadCollection fills one collection property of one loaded root.
func (l *RelationLoader) loadCollection(ctx context.Context, entity *mapping.Entity, collection *mapping.Path, doc Document) error {
	scalars := entity.ScalarsWithin(collection)
	columns := make([]string, 0, len(scalars))
	for _, p := range scalars {
		columns = append(columns, l.dialect.QuoteIdentifier(p.ColumnName()))
	}

	element := mapping.ElementName(collection.Property())

	parentID := doc[entity.IDPath().Property()]
	query, args, err := sq.Select(columns...).
		From(l.dialect.QuoteIdentifier(collection.TableName())).
		Where(sq.Eq{l.dialect.QuoteIdentifier(collection.BackReferenceColumn()): parentID}).
		OrderBy(l.childOrder(collection)).
		PlaceholderFormat(placeholderFormat(l.dialect)).
		ToSql()
	if err != nil {
		return fmt.Errorf("building %s query: %w", element, err)
	}

	rows, err := l.executor.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	children := []Document{}
	for rows.Next() {
		values := make([]any, len(scalars))
		pointers := make([]any, len(scalars))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return fmt.Errorf("scanning %s row: %w", element, err)
		}

		child := Document{}
		for i, p := range scalars {
			child[p.Property()] = values[i]
		}
		children = append(children, child)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating %s rows: %w", element, err)
	}

	doc[collection.Property()] = children
	return nil
}

func (l *RelationLoader) childOrder(collection *mapping.Path) string {
	switch {
	case collection.HasKeyColumn():
		return l.dialect.QuoteIdentifier(collection.KeyColumn())
	case collection.ColumnName() != "":
		return l.dialect.QuoteIdentifier(collection.ColumnName())
	default:
		return l.dialect.QuoteIdentifier(collection.BackReferenceColumn())
	}
}
