package mapping

import "strings"

// Kind classifies what a property path points at.
type Kind int

const (
	// KindRoot is the empty path designating the aggregate root itself.
	KindRoot Kind = iota
	// KindScalar is a leaf property mapped to a single column.
	KindScalar
	// KindCollection is a one-to-many child entity collection mapped to its
	// own table with a back-reference column.
	KindCollection
	// KindEmbedded is a one-to-one embedded value object.
	KindEmbedded
	// KindAssociation is a reference to another aggregate, stored as its id.
	KindAssociation
)

// Path is an ordered chain of property names from an aggregate root to a
// (possibly nested) property. Paths are immutable once built; two paths are
// equal iff their traversal sequences are equal.
type Path struct {
	parts     []string
	kind      Kind
	column    string
	table     string
	backRef   string
	keyColumn string
}

// Name returns the dotted traversal sequence, e.g. "trivials.name".
// The root path has the empty name.
func (p *Path) Name() string { return strings.Join(p.parts, ".") }

// Property returns the leaf property name, or "" for the root path.
func (p *Path) Property() string {
	if len(p.parts) == 0 {
		return ""
	}
	return p.parts[len(p.parts)-1]
}

// Parts returns a copy of the traversal sequence.
func (p *Path) Parts() []string {
	parts := make([]string, len(p.parts))
	copy(parts, p.parts)
	return parts
}

// Kind returns the path classification.
func (p *Path) Kind() Kind { return p.kind }

// IsRoot reports whether this is the empty path for the aggregate root.
func (p *Path) IsRoot() bool { return p.kind == KindRoot }

// IsEntity reports whether the path points at an entity-valued property,
// i.e. a one-to-many collection.
func (p *Path) IsEntity() bool { return p.kind == KindCollection }

// IsEmbedded reports whether the path points at an embedded value object.
func (p *Path) IsEmbedded() bool { return p.kind == KindEmbedded }

// IsAssociation reports whether the path points at an aggregate reference.
func (p *Path) IsAssociation() bool { return p.kind == KindAssociation }

// ColumnName returns the mapped column for a scalar path. For a collection
// path it returns the child table's id column.
func (p *Path) ColumnName() string { return p.column }

// TableName returns the mapped table: the child table for a collection path,
// the root table for the root path.
func (p *Path) TableName() string { return p.table }

// BackReferenceColumn returns the child-table column holding the parent's
// identifier. Only set on collection paths.
func (p *Path) BackReferenceColumn() string { return p.backRef }

// KeyColumn returns the collection's index/key column, or "" when the
// collection is unkeyed.
func (p *Path) KeyColumn() string { return p.keyColumn }

// HasKeyColumn reports whether the collection is index/key based.
func (p *Path) HasKeyColumn() bool { return p.keyColumn != "" }

// Equal reports whether both paths traverse the same property sequence.
func (p *Path) Equal(other *Path) bool {
	if other == nil || len(p.parts) != len(other.parts) {
		return false
	}
	for i, part := range p.parts {
		if other.parts[i] != part {
			return false
		}
	}
	return true
}

// Within reports whether p is a strict descendant of parent.
func (p *Path) Within(parent *Path) bool {
	if parent == nil || len(p.parts) <= len(parent.parts) {
		return false
	}
	for i, part := range parent.parts {
		if p.parts[i] != part {
			return false
		}
	}
	return true
}
