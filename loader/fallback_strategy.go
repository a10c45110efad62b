package loader

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"aggload/dialect"
	"aggload/mapping"
)

// FallbackStrategy routes each load operation to single-query loading when
// the aggregate type and dialect allow it, and otherwise delegates verbatim
// to a previously-configured fallback loader. A single call uses exactly one
// strategy end to end.
type FallbackStrategy struct {
	dialect  dialect.Dialect
	single   Loader
	fallback Loader
	logger   *slog.Logger

	mu       sync.Mutex
	eligible map[string]bool
}

// NewFallbackStrategy wraps the fallback loader with a single-query delegate
// running on the given executor.
func NewFallbackStrategy(executor QueryExecutor, d dialect.Dialect, fallback Loader, opts ...Option) (*FallbackStrategy, error) {
	if fallback == nil {
		return nil, errors.New("loader: fallback loader must not be nil")
	}
	single, err := NewSingleQueryLoader(executor, d, opts...)
	if err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	return &FallbackStrategy{
		dialect:  d,
		single:   single,
		fallback: fallback,
		logger:   o.logger,
		eligible: make(map[string]bool),
	}, nil
}

// FindByID loads one aggregate by id through whichever strategy applies.
func (s *FallbackStrategy) FindByID(ctx context.Context, entity *mapping.Entity, id any) (Document, error) {
	if s.supports(ctx, entity) {
		return s.single.FindByID(ctx, entity, id)
	}
	return s.fallback.FindByID(ctx, entity, id)
}

// FindAll loads every aggregate of the entity's type.
func (s *FallbackStrategy) FindAll(ctx context.Context, entity *mapping.Entity) ([]Document, error) {
	if s.supports(ctx, entity) {
		return s.single.FindAll(ctx, entity)
	}
	return s.fallback.FindAll(ctx, entity)
}

// FindAllByID loads the aggregates matching the given ids. An empty id list
// short-circuits to an empty result without touching either delegate.
func (s *FallbackStrategy) FindAllByID(ctx context.Context, entity *mapping.Entity, ids []any) ([]Document, error) {
	if len(ids) == 0 {
		return []Document{}, nil
	}
	if s.supports(ctx, entity) {
		return s.single.FindAllByID(ctx, entity, ids)
	}
	return s.fallback.FindAllByID(ctx, entity, ids)
}

// supports is the eligibility gate: the dialect must support single-query
// loading and the aggregate's structure must qualify. Decisions are cached
// per entity type.
func (s *FallbackStrategy) supports(ctx context.Context, entity *mapping.Entity) bool {
	if !s.dialect.SupportsSingleQueryLoading() {
		return false
	}

	s.mu.Lock()
	qualified, seen := s.eligible[entity.Name]
	s.mu.Unlock()
	if seen {
		return qualified
	}

	qualified = QualifiesForSingleQuery(entity)
	s.logger.DebugContext(ctx, "single-query eligibility decided",
		slog.String("entity", entity.Name),
		slog.Bool("eligible", qualified))

	s.mu.Lock()
	s.eligible[entity.Name] = qualified
	s.mu.Unlock()
	return qualified
}

// QualifiesForSingleQuery walks every property path of the aggregate and
// rejects on the first embedded path, association path, or second
// entity-valued path. A pure scalar aggregate always qualifies.
func QualifiesForSingleQuery(entity *mapping.Entity) bool {
	referenceFound := false
	for _, path := range entity.Paths() {
		if path.IsEntity() {
			if referenceFound {
				return false
			}
			referenceFound = true
		}
		if path.IsEmbedded() || path.IsAssociation() {
			return false
		}
	}
	return true
}
