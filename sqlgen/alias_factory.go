package sqlgen

import (
	"fmt"
	"strings"
	"sync"

	"aggload/mapping"
)

// alias kind prefixes. Every generated alias carries a kind prefix and a
// global counter suffix, so no alias can collide with another or with the
// reserved synthetic "rn" ordering column.
const (
	prefixColumn        = "c"
	prefixRowNumber     = "rn"
	prefixRowCount      = "rc"
	prefixBackReference = "br"
	prefixKey           = "key"
)

// AliasFactory assigns unique, SQL-identifier-safe aliases per
// (path, kind) pair and memoizes them. The first call for a pair assigns a
// fresh alias; later calls with an equal path return the same value. A row
// materializer must reuse the factory instance the generator used so that
// result-set columns map back to the same paths.
type AliasFactory struct {
	mu      sync.Mutex
	counter int
	cache   map[aliasKey]string
}

type aliasKey struct {
	kind string
	path string
}

// NewAliasFactory returns an empty factory.
func NewAliasFactory() *AliasFactory {
	return &AliasFactory{cache: make(map[aliasKey]string)}
}

// ColumnAlias returns the alias for a scalar path's selected column. The
// alias doubles as the decoded field name in the flat result set.
func (f *AliasFactory) ColumnAlias(p *mapping.Path) string {
	return f.alias(prefixColumn, p, p.ColumnName())
}

// RowNumberAlias returns the alias of the per-parent-group row number for a
// table level (the root path or a collection path).
func (f *AliasFactory) RowNumberAlias(p *mapping.Path) string {
	return f.alias(prefixRowNumber, p, p.TableName())
}

// RowCountAlias returns the alias of the total sibling count within one
// parent group for a table level.
func (f *AliasFactory) RowCountAlias(p *mapping.Path) string {
	return f.alias(prefixRowCount, p, p.TableName())
}

// BackReferenceAlias returns the alias naming the join column that holds the
// parent identifier of a collection path.
func (f *AliasFactory) BackReferenceAlias(p *mapping.Path) string {
	return f.alias(prefixBackReference, p, p.BackReferenceColumn())
}

// KeyAlias returns the alias of a keyed collection's index/key column.
func (f *AliasFactory) KeyAlias(p *mapping.Path) string {
	return f.alias(prefixKey, p, p.KeyColumn())
}

func (f *AliasFactory) alias(kind string, p *mapping.Path, name string) string {
	key := aliasKey{kind: kind, path: p.Name()}

	f.mu.Lock()
	defer f.mu.Unlock()

	if alias, ok := f.cache[key]; ok {
		return alias
	}
	f.counter++
	alias := fmt.Sprintf("%s_%s_%d", kind, sanitize(name), f.counter)
	f.cache[key] = alias
	return alias
}

// sanitize reduces a table or column name to lowercase ASCII letters,
// digits and underscores. Disallowed runes become underscores so word
// boundaries survive.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
