package loader

import (
	"context"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggload/dialect"
	"aggload/mapping"
)

// stubLoader records which operations were invoked on it.
type stubLoader struct {
	calls []string
}

func (s *stubLoader) FindByID(ctx context.Context, entity *mapping.Entity, id any) (Document, error) {
	s.calls = append(s.calls, "FindByID")
	return Document{"id": id}, nil
}

func (s *stubLoader) FindAll(ctx context.Context, entity *mapping.Entity) ([]Document, error) {
	s.calls = append(s.calls, "FindAll")
	return []Document{}, nil
}

func (s *stubLoader) FindAllByID(ctx context.Context, entity *mapping.Entity, ids []any) ([]Document, error) {
	s.calls = append(s.calls, "FindAllByID")
	return []Document{}, nil
}

func stubbedStrategy(d dialect.Dialect) (*FallbackStrategy, *stubLoader, *stubLoader) {
	single := &stubLoader{}
	fallback := &stubLoader{}
	s := &FallbackStrategy{
		dialect:  d,
		single:   single,
		fallback: fallback,
		logger:   slog.Default(),
		eligible: make(map[string]bool),
	}
	return s, single, fallback
}

func entityWithEmbedded(t *testing.T) *mapping.Entity {
	t.Helper()
	b := mapping.NewSchemaBuilder()
	b.Entity("WithEmbedded").
		ID("id").
		Embedded("address")
	schema, err := b.Build()
	require.NoError(t, err)
	entity, err := schema.Entity("WithEmbedded")
	require.NoError(t, err)
	return entity
}

func entityWithTwoCollections(t *testing.T) *mapping.Entity {
	t.Helper()
	b := mapping.NewSchemaBuilder()
	b.Entity("Child").ID("id")
	b.Entity("Parent").
		ID("id").
		Collection("lefts", "Child").
		Collection("rights", "Child")
	schema, err := b.Build()
	require.NoError(t, err)
	entity, err := schema.Entity("Parent")
	require.NoError(t, err)
	return entity
}

func entityWithAssociation(t *testing.T) *mapping.Entity {
	t.Helper()
	b := mapping.NewSchemaBuilder()
	b.Entity("WithAssociation").
		ID("id").
		Association("other")
	schema, err := b.Build()
	require.NoError(t, err)
	entity, err := schema.Entity("WithAssociation")
	require.NoError(t, err)
	return entity
}

func TestEligibleTypeUsesSingleQuery(t *testing.T) {
	entity := fixtureEntity(t, "SingleReferenceAggregate")
	s, single, fallback := stubbedStrategy(dialect.Postgres{})

	_, err := s.FindByID(context.Background(), entity, int64(1))
	require.NoError(t, err)
	_, err = s.FindAll(context.Background(), entity)
	require.NoError(t, err)
	_, err = s.FindAllByID(context.Background(), entity, []any{int64(1)})
	require.NoError(t, err)

	assert.Equal(t, []string{"FindByID", "FindAll", "FindAllByID"}, single.calls)
	assert.Empty(t, fallback.calls)
}

func TestPureScalarAggregateIsEligible(t *testing.T) {
	entity := fixtureEntity(t, "TrivialAggregate")
	s, single, fallback := stubbedStrategy(dialect.Postgres{})

	_, err := s.FindAll(context.Background(), entity)
	require.NoError(t, err)
	assert.Equal(t, []string{"FindAll"}, single.calls)
	assert.Empty(t, fallback.calls)
}

func TestStructurallyIneligibleTypesFallBack(t *testing.T) {
	tests := []struct {
		name   string
		entity *mapping.Entity
	}{
		{"embedded path", entityWithEmbedded(t)},
		{"two collection paths", entityWithTwoCollections(t)},
		{"association path", entityWithAssociation(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, single, fallback := stubbedStrategy(dialect.Postgres{})

			_, err := s.FindByID(context.Background(), tt.entity, int64(1))
			require.NoError(t, err)

			assert.Empty(t, single.calls)
			assert.Equal(t, []string{"FindByID"}, fallback.calls)
		})
	}
}

func TestUnsupportedDialectFallsBackForEveryType(t *testing.T) {
	entity := fixtureEntity(t, "TrivialAggregate")
	s, single, fallback := stubbedStrategy(dialect.SQLite{})

	_, err := s.FindAll(context.Background(), entity)
	require.NoError(t, err)

	assert.Empty(t, single.calls)
	assert.Equal(t, []string{"FindAll"}, fallback.calls)
}

func TestFindAllByIDEmptyTouchesNeitherDelegate(t *testing.T) {
	entity := fixtureEntity(t, "SingleReferenceAggregate")
	s, single, fallback := stubbedStrategy(dialect.Postgres{})

	docs, err := s.FindAllByID(context.Background(), entity, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, single.calls)
	assert.Empty(t, fallback.calls)
}

func TestEligibilityIsCachedPerType(t *testing.T) {
	entity := fixtureEntity(t, "SingleReferenceAggregate")
	s, single, _ := stubbedStrategy(dialect.Postgres{})

	for i := 0; i < 3; i++ {
		_, err := s.FindAll(context.Background(), entity)
		require.NoError(t, err)
	}
	assert.Len(t, single.calls, 3)
	assert.True(t, s.eligible[entity.Name])
}

func TestNewFallbackStrategyValidation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	executor := NewStandardExecutor(db)

	_, err = NewFallbackStrategy(executor, dialect.Postgres{}, nil)
	require.Error(t, err)

	_, err = NewFallbackStrategy(nil, dialect.Postgres{}, &stubLoader{})
	require.Error(t, err)

	fallback, err := NewRelationLoader(executor, dialect.Postgres{})
	require.NoError(t, err)
	s, err := NewFallbackStrategy(executor, dialect.Postgres{}, fallback)
	require.NoError(t, err)
	require.NotNil(t, s)
}
