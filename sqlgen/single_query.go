// Package sqlgen builds the single SELECT statements used for single-query
// aggregate loading: one round trip returning the root entity and its child
// rows, aligned by window row numbers instead of a Cartesian join.
package sqlgen

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"aggload/dialect"
	"aggload/mapping"
)

// RowNumberColumn is the reserved name of the single outermost ordering
// column. Factory-produced aliases never collide with it.
const RowNumberColumn = "rn"

// SingleQueryGenerator produces the three statement shapes (unfiltered,
// by-id, by-id-list) for one aggregate root type as single SELECT statements.
// Generation is pure and deterministic; the memoized alias factory is the
// only state, so one generator instance must be reused across generation and
// later row decoding. Callers are expected to have passed the type through
// the eligibility gate first: constructing a generator for a root with an
// embedded path, an association path or more than one collection is a
// programming error and panics.
type SingleQueryGenerator struct {
	entity     *mapping.Entity
	dialect    dialect.Dialect
	aliases    *AliasFactory
	collection *mapping.Path
}

// NewSingleQueryGenerator returns a generator for the given aggregate root.
func NewSingleQueryGenerator(entity *mapping.Entity, d dialect.Dialect) *SingleQueryGenerator {
	var collectionCount int
	for _, p := range entity.Paths() {
		if p.IsEmbedded() || p.IsAssociation() {
			panic(fmt.Sprintf("sqlgen: %s path %q of %s is not single-query loadable", kindName(p), p.Name(), entity.Name))
		}
		if p.IsEntity() {
			collectionCount++
		}
	}
	if collectionCount > 1 {
		panic(fmt.Sprintf("sqlgen: %s has %d collections, single-query loading supports at most one", entity.Name, collectionCount))
	}
	collections := entity.Collections()

	g := &SingleQueryGenerator{
		entity:  entity,
		dialect: d,
		aliases: NewAliasFactory(),
	}
	if len(collections) == 1 {
		g.collection = collections[0]
	}
	return g
}

// Aliases returns the factory holding this generator's alias assignments.
// A row materializer uses it to map result-set columns back to paths.
func (g *SingleQueryGenerator) Aliases() *AliasFactory { return g.aliases }

// Entity returns the aggregate root the generator was built for.
func (g *SingleQueryGenerator) Entity() *mapping.Entity { return g.entity }

// FindAll returns the unfiltered statement.
func (g *SingleQueryGenerator) FindAll() string {
	return g.statement("")
}

// FindByID returns the statement filtered to one root, with the id left as
// the named placeholder :id. No value binding happens here.
func (g *SingleQueryGenerator) FindByID() string {
	return g.statement(fmt.Sprintf("%s.%s = :id",
		g.dialect.QuoteIdentifier(g.entity.Table),
		g.dialect.QuoteIdentifier(g.entity.IDColumn)))
}

// FindAllByID returns the statement filtered to an id list, with the ids
// left as the named placeholder :ids.
func (g *SingleQueryGenerator) FindAllByID() string {
	return g.statement(fmt.Sprintf("%s.%s IN (:ids)",
		g.dialect.QuoteIdentifier(g.entity.Table),
		g.dialect.QuoteIdentifier(g.entity.IDColumn)))
}

// statement assembles the shared statement shape around a root filter:
//
//	SELECT <aliases, rn> FROM (
//	    SELECT <aliases>, <positional key> AS rn
//	    FROM (root inline view) [FULL OUTER JOIN (child inline view) ON ...]
//	    [WHERE row alignment]
//	) ORDER BY <root id alias>, rn
//
// The filter applies only inside the root inline view; children are pulled
// in per matched parent through the join.
func (g *SingleQueryGenerator) statement(filter string) string {
	root := g.entity.Root()
	rootRn := g.aliases.RowNumberAlias(root)
	rootRc := g.aliases.RowCountAlias(root)
	idAlias := g.aliases.ColumnAlias(g.entity.IDPath())

	var rootAliases []string
	for _, p := range g.entity.RootScalars() {
		rootAliases = append(rootAliases, g.aliases.ColumnAlias(p))
	}

	var combined sq.SelectBuilder
	outerColumns := []string{}

	if g.collection == nil {
		columns := append([]string{rootRn + " AS " + RowNumberColumn, rootRn}, rootAliases...)
		combined = sq.Select(columns...).From("(" + g.rootView(filter) + ")")
		outerColumns = append(outerColumns, rootAliases...)
	} else {
		childRn := g.aliases.RowNumberAlias(g.collection)
		backRef := g.aliases.BackReferenceAlias(g.collection)

		var childAliases []string
		for _, p := range g.entity.ScalarsWithin(g.collection) {
			childAliases = append(childAliases, g.aliases.ColumnAlias(p))
		}

		columns := append([]string{rootRn}, rootAliases...)
		columns = append(columns, childRn)
		columns = append(columns, childAliases...)
		columns = append(columns,
			fmt.Sprintf("GREATEST(COALESCE(%s, 1), COALESCE(%s, 1)) AS %s", rootRn, childRn, RowNumberColumn),
			backRef)
		if g.collection.HasKeyColumn() {
			columns = append(columns, g.aliases.KeyAlias(g.collection))
		}

		// The alignment condition is a pure disjunction: no child row at
		// all, the child row aligned with the root's position, or a child
		// row beyond the root's own row count.
		alignment := fmt.Sprintf("%s IS NULL OR %s = %s OR %s > %s", childRn, childRn, rootRn, childRn, rootRc)

		combined = sq.Select(columns...).
			From("(" + g.rootView(filter) + ")").
			JoinClause(fmt.Sprintf("FULL OUTER JOIN (%s) ON %s = %s", g.childView(g.collection), idAlias, backRef)).
			Where(alignment)

		outerColumns = append(outerColumns, rootAliases...)
		outerColumns = append(outerColumns, childAliases...)
		outerColumns = append(outerColumns, childRn)
		if g.collection.HasKeyColumn() {
			outerColumns = append(outerColumns, g.aliases.KeyAlias(g.collection))
		}
	}

	outerColumns = append(outerColumns, RowNumberColumn)

	sql := mustSQL(sq.Select(outerColumns...).
		From("(" + mustSQL(combined.ToSql()) + ")").
		OrderBy(idAlias, RowNumberColumn).
		ToSql())
	return sql
}

// rootView selects every root scalar column under its alias plus constant
// row-number and row-count markers: the root is always exactly one logical
// row, numbered 1 of 1.
func (g *SingleQueryGenerator) rootView(filter string) string {
	root := g.entity.Root()
	columns := []string{
		"1 AS " + g.aliases.RowNumberAlias(root),
		"1 AS " + g.aliases.RowCountAlias(root),
	}
	for _, p := range g.entity.RootScalars() {
		columns = append(columns, g.dialect.QuoteIdentifier(p.ColumnName())+" AS "+g.aliases.ColumnAlias(p))
	}

	view := sq.Select(columns...).From(g.dialect.QuoteIdentifier(g.entity.Table))
	if filter != "" {
		view = view.Where(filter)
	}
	return mustSQL(view.ToSql())
}

// childView selects every child scalar column, the back-reference column,
// the key column when present, and window-computed row number and sibling
// count within each parent group. It is never filtered.
func (g *SingleQueryGenerator) childView(collection *mapping.Path) string {
	partition := g.dialect.QuoteIdentifier(collection.BackReferenceColumn())
	columns := []string{
		fmt.Sprintf("ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS %s",
			partition, g.childOrderColumn(collection), g.aliases.RowNumberAlias(collection)),
		fmt.Sprintf("COUNT(*) OVER (PARTITION BY %s) AS %s",
			partition, g.aliases.RowCountAlias(collection)),
	}
	for _, p := range g.entity.ScalarsWithin(collection) {
		columns = append(columns, g.dialect.QuoteIdentifier(p.ColumnName())+" AS "+g.aliases.ColumnAlias(p))
	}
	columns = append(columns, partition+" AS "+g.aliases.BackReferenceAlias(collection))
	if collection.HasKeyColumn() {
		columns = append(columns, g.dialect.QuoteIdentifier(collection.KeyColumn())+" AS "+g.aliases.KeyAlias(collection))
	}

	return mustSQL(sq.Select(columns...).From(g.dialect.QuoteIdentifier(collection.TableName())).ToSql())
}

// childOrderColumn picks the stable in-group ordering: the key column for
// keyed collections, else the child id column, else the back-reference.
func (g *SingleQueryGenerator) childOrderColumn(collection *mapping.Path) string {
	switch {
	case collection.HasKeyColumn():
		return g.dialect.QuoteIdentifier(collection.KeyColumn())
	case collection.ColumnName() != "":
		return g.dialect.QuoteIdentifier(collection.ColumnName())
	default:
		return g.dialect.QuoteIdentifier(collection.BackReferenceColumn())
	}
}

// mustSQL unwraps squirrel's ToSql result. The builders here always carry a
// FROM clause and bind no arguments, so an error is a defect, not input.
func mustSQL(sql string, _ []interface{}, err error) string {
	if err != nil {
		panic(fmt.Sprintf("sqlgen: %v", err))
	}
	return sql
}

func kindName(p *mapping.Path) string {
	switch p.Kind() {
	case mapping.KindEmbedded:
		return "embedded"
	case mapping.KindAssociation:
		return "association"
	case mapping.KindCollection:
		return "collection"
	default:
		return "scalar"
	}
}
