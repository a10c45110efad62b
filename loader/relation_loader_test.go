package loader

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggload/dialect"
)

func newMockedRelationLoader(t *testing.T) (*RelationLoader, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	l, err := NewRelationLoader(NewStandardExecutor(db), dialect.MySQL{})
	require.NoError(t, err)
	return l, mock
}

func TestRelationLoaderFindByID(t *testing.T) {
	entity := fixtureEntity(t, "SingleReferenceAggregate")
	l, mock := newMockedRelationLoader(t)

	rootQuery := "SELECT `id`, `name` FROM `single_reference_aggregate` WHERE `id` = ? ORDER BY `id`"
	mock.ExpectQuery(regexp.QuoteMeta(rootQuery)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "alpha"))

	childQuery := "SELECT `id`, `name` FROM `trivial_aggregate` WHERE `single_reference_aggregate` = ? ORDER BY `single_reference_aggregate_key`"
	mock.ExpectQuery(regexp.QuoteMeta(childQuery)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(10), "first").
			AddRow(int64(11), "second"))

	doc, err := l.FindByID(context.Background(), entity, int64(1))
	require.NoError(t, err)
	assert.Equal(t, "alpha", doc["name"])
	require.Len(t, doc.Collection("trivials"), 2)
	assert.Equal(t, "second", doc.Collection("trivials")[1]["name"])

	// Exactly one root query plus one query for the single collection.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationLoaderFindByIDNotFound(t *testing.T) {
	entity := fixtureEntity(t, "TrivialAggregate")
	l, mock := newMockedRelationLoader(t)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err := l.FindByID(context.Background(), entity, int64(9))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRelationLoaderFindAllIssuesOneQueryPerRelation(t *testing.T) {
	entity := fixtureEntity(t, "SingleReferenceAggregate")
	l, mock := newMockedRelationLoader(t)

	rootQuery := "SELECT `id`, `name` FROM `single_reference_aggregate` ORDER BY `id`"
	mock.ExpectQuery(regexp.QuoteMeta(rootQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "alpha").
			AddRow(int64(2), "beta"))

	childQuery := regexp.QuoteMeta("SELECT `id`, `name` FROM `trivial_aggregate` WHERE `single_reference_aggregate` = ?")
	mock.ExpectQuery(childQuery).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(10), "first"))
	mock.ExpectQuery(childQuery).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	docs, err := l.FindAll(context.Background(), entity)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Len(t, docs[0].Collection("trivials"), 1)
	assert.Empty(t, docs[1].Collection("trivials"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationLoaderFindAllByID(t *testing.T) {
	entity := fixtureEntity(t, "TrivialAggregate")
	l, mock := newMockedRelationLoader(t)

	query := "SELECT `id`, `name` FROM `trivial_aggregate` WHERE `id` IN (?,?) ORDER BY `id`"
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "alpha").
			AddRow(int64(2), "beta"))

	docs, err := l.FindAllByID(context.Background(), entity, []any{int64(1), int64(2)})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationLoaderChildScanErrorNamesElement(t *testing.T) {
	entity := fixtureEntity(t, "SingleReferenceAggregate")
	l, mock := newMockedRelationLoader(t)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "alpha"))

	// One column too many makes the child row scan fail; the error names
	// the collection's singular element.
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "extra"}).
			AddRow(int64(10), "first", "boom"))

	_, err := l.FindByID(context.Background(), entity, int64(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning trivial row")
}

func TestRelationLoaderFindAllByIDEmpty(t *testing.T) {
	entity := fixtureEntity(t, "TrivialAggregate")
	l, mock := newMockedRelationLoader(t)

	docs, err := l.FindAllByID(context.Background(), entity, []any{})
	require.NoError(t, err)
	assert.Empty(t, docs)
	require.NoError(t, mock.ExpectationsWereMet())
}
