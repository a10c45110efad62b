package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggload/mapping"
)

func fixtureSchema(t *testing.T) *mapping.Schema {
	t.Helper()

	b := mapping.NewSchemaBuilder()
	b.Entity("TrivialAggregate").
		ID("id").
		Field("name")
	b.Entity("SingleReferenceAggregate").
		ID("id").
		Field("name").
		Collection("trivials", "TrivialAggregate")

	schema, err := b.Build()
	require.NoError(t, err)
	return schema
}

func TestAliasFactoryIdempotence(t *testing.T) {
	schema := fixtureSchema(t)
	entity, err := schema.Entity("SingleReferenceAggregate")
	require.NoError(t, err)

	aliases := NewAliasFactory()
	trivials := entity.Collections()[0]

	assert.Equal(t, aliases.ColumnAlias(entity.IDPath()), aliases.ColumnAlias(entity.IDPath()))
	assert.Equal(t, aliases.RowNumberAlias(entity.Root()), aliases.RowNumberAlias(entity.Root()))
	assert.Equal(t, aliases.RowCountAlias(trivials), aliases.RowCountAlias(trivials))
	assert.Equal(t, aliases.BackReferenceAlias(trivials), aliases.BackReferenceAlias(trivials))
	assert.Equal(t, aliases.KeyAlias(trivials), aliases.KeyAlias(trivials))

	// An equal path built independently resolves to the same alias.
	other := entity.ScalarsWithin(trivials)[0]
	same := entity.ScalarsWithin(trivials)[0]
	assert.Equal(t, aliases.ColumnAlias(other), aliases.ColumnAlias(same))
}

func TestAliasFactoryUniqueness(t *testing.T) {
	schema := fixtureSchema(t)
	entity, err := schema.Entity("SingleReferenceAggregate")
	require.NoError(t, err)

	aliases := NewAliasFactory()
	trivials := entity.Collections()[0]

	seen := map[string]bool{RowNumberColumn: true}
	collect := func(alias string) {
		assert.False(t, seen[alias], "alias %s assigned twice", alias)
		seen[alias] = true
	}

	collect(aliases.RowNumberAlias(entity.Root()))
	collect(aliases.RowCountAlias(entity.Root()))
	collect(aliases.RowNumberAlias(trivials))
	collect(aliases.RowCountAlias(trivials))
	collect(aliases.BackReferenceAlias(trivials))
	collect(aliases.KeyAlias(trivials))
	for _, p := range entity.RootScalars() {
		collect(aliases.ColumnAlias(p))
	}
	for _, p := range entity.ScalarsWithin(trivials) {
		collect(aliases.ColumnAlias(p))
	}

	// Same path, distinct kinds stay distinct even though the underlying
	// table name is shared.
	assert.NotEqual(t, aliases.RowNumberAlias(trivials), aliases.RowCountAlias(trivials))
}

func TestAliasShape(t *testing.T) {
	schema := fixtureSchema(t)
	entity, err := schema.Entity("TrivialAggregate")
	require.NoError(t, err)

	aliases := NewAliasFactory()
	assert.Equal(t, "rn_trivial_aggregate_1", aliases.RowNumberAlias(entity.Root()))
	assert.Equal(t, "c_id_2", aliases.ColumnAlias(entity.IDPath()))
	assert.Equal(t, "rc_trivial_aggregate_3", aliases.RowCountAlias(entity.Root()))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "order_item", sanitize("Order-Item"))
	assert.Equal(t, "weird_name", sanitize(`weird"name`))
	assert.Equal(t, "a_b_c", sanitize("a b.c"))
	assert.Equal(t, "order_item_2", sanitize("order_item_2"))
}
