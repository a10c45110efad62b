package mapping

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// TableNameFor derives the default table name for an entity name.
// Example: "SingleReferenceAggregate" -> "single_reference_aggregate".
func TableNameFor(entityName string) string {
	return toSnakeCase(entityName)
}

// KeyColumnFor derives the default key column for a keyed collection held by
// the given parent table. Example: "single_reference_aggregate" ->
// "single_reference_aggregate_key".
func KeyColumnFor(parentTable string) string {
	return parentTable + "_key"
}

// defaultCollectionProperty derives a property name for a collection of the
// given target entity. Example: "TrivialAggregate" -> "trivialAggregates".
func defaultCollectionProperty(targetEntity string) string {
	return inflection.Plural(lowerFirst(targetEntity))
}

// ElementName returns the singular form of a collection property name,
// e.g. "orderItems" -> "orderItem". Used for log and error messages.
func ElementName(property string) string {
	return inflection.Singular(property)
}

func toSnakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			// Break before an upper rune that starts a new word: either the
			// previous rune is lower, or the next one is.
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func lowerFirst(name string) string {
	if name == "" {
		return name
	}
	runes := []rune(name)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
