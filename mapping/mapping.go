// Package mapping models how aggregates map onto relational tables.
// It supplies, for an aggregate root, the set of property paths reachable
// from it, each path's classification (scalar, one-to-many collection,
// embedded, association) and its table, column, back-reference and key
// column naming. The SQL generation layer consumes this model and never
// mutates it.
package mapping

import (
	"errors"
	"fmt"
)

// ErrNoSuchEntity indicates a lookup for an entity the schema does not define.
var ErrNoSuchEntity = errors.New("no such entity")

// Schema is an immutable set of entity mappings.
type Schema struct {
	entities map[string]*Entity
	order    []string
}

// Entity returns the mapping for the named entity.
func (s *Schema) Entity(name string) (*Entity, error) {
	e, ok := s.entities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchEntity, name)
	}
	return e, nil
}

// Entities returns all entities in definition order.
func (s *Schema) Entities() []*Entity {
	entities := make([]*Entity, 0, len(s.order))
	for _, name := range s.order {
		entities = append(entities, s.entities[name])
	}
	return entities
}

// Entity is the relational mapping of one aggregate root: its table, its id
// column and every property path reachable from it.
type Entity struct {
	Name     string
	Table    string
	IDColumn string

	root   *Path
	idPath *Path
	paths  []*Path
}

// Root returns the empty path designating the aggregate root.
func (e *Entity) Root() *Path { return e.root }

// IDPath returns the scalar path of the root's identifier column.
func (e *Entity) IDPath() *Path { return e.idPath }

// Paths returns every non-root property path in definition order, including
// paths nested under collections.
func (e *Entity) Paths() []*Path { return e.paths }

// RootScalars returns the scalar paths directly on the root.
func (e *Entity) RootScalars() []*Path {
	var scalars []*Path
	for _, p := range e.paths {
		if p.kind == KindScalar && len(p.parts) == 1 {
			scalars = append(scalars, p)
		}
	}
	return scalars
}

// Collections returns the one-to-many collection paths directly on the root.
func (e *Entity) Collections() []*Path {
	var collections []*Path
	for _, p := range e.paths {
		if p.kind == KindCollection && len(p.parts) == 1 {
			collections = append(collections, p)
		}
	}
	return collections
}

// ScalarsWithin returns the scalar paths nested directly under the given
// collection path.
func (e *Entity) ScalarsWithin(collection *Path) []*Path {
	var scalars []*Path
	for _, p := range e.paths {
		if p.kind == KindScalar && len(p.parts) == len(collection.parts)+1 && p.Within(collection) {
			scalars = append(scalars, p)
		}
	}
	return scalars
}

// SchemaBuilder assembles a Schema from programmatic entity definitions.
// Collection targets are resolved when Build is called, so entities may be
// defined in any order.
type SchemaBuilder struct {
	defs   []*entityDef
	byName map[string]*entityDef
	errs   []error
}

type entityDef struct {
	name         string
	table        string
	idField      string
	idColumn     string
	fields       []fieldDef
	collections  []collectionDef
	embedded     []string
	associations []string
}

type fieldDef struct {
	name   string
	column string
}

type collectionDef struct {
	property  string
	target    string
	backRef   string
	keyColumn string
	keyed     bool
}

// NewSchemaBuilder returns an empty builder.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{byName: make(map[string]*entityDef)}
}

// EntityBuilder configures one entity definition.
type EntityBuilder struct {
	builder *SchemaBuilder
	def     *entityDef
}

// Entity starts the definition of an aggregate root. The table name defaults
// to the snake_case form of the entity name.
func (b *SchemaBuilder) Entity(name string) *EntityBuilder {
	if _, exists := b.byName[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("entity %s defined twice", name))
	}
	def := &entityDef{name: name, table: TableNameFor(name)}
	b.defs = append(b.defs, def)
	b.byName[name] = def
	return &EntityBuilder{builder: b, def: def}
}

// Table overrides the derived table name.
func (eb *EntityBuilder) Table(name string) *EntityBuilder {
	eb.def.table = name
	return eb
}

// ID declares the identifier field. Its column defaults to the snake_case
// form of the field name.
func (eb *EntityBuilder) ID(name string, opts ...FieldOption) *EntityBuilder {
	eb.def.idField = name
	eb.def.idColumn = appliedColumn(name, opts)
	eb.def.fields = append(eb.def.fields, fieldDef{name: name, column: eb.def.idColumn})
	return eb
}

// Field declares a scalar field.
func (eb *EntityBuilder) Field(name string, opts ...FieldOption) *EntityBuilder {
	eb.def.fields = append(eb.def.fields, fieldDef{name: name, column: appliedColumn(name, opts)})
	return eb
}

// Collection declares a one-to-many collection of the target entity.
// Collections are keyed (list-like, with an index column) unless Unkeyed is
// given. The back-reference column defaults to the parent table name and the
// key column to the parent table name with a "_key" suffix.
func (eb *EntityBuilder) Collection(property, target string, opts ...CollectionOption) *EntityBuilder {
	def := collectionDef{property: property, target: target, keyed: true}
	for _, opt := range opts {
		opt(&def)
	}
	if def.property == "" {
		def.property = defaultCollectionProperty(target)
	}
	eb.def.collections = append(eb.def.collections, def)
	return eb
}

// CollectionOf declares a collection whose property name is derived from the
// target entity name, e.g. a collection of "OrderItem" becomes "orderItems".
func (eb *EntityBuilder) CollectionOf(target string, opts ...CollectionOption) *EntityBuilder {
	return eb.Collection("", target, opts...)
}

// Embedded declares an embedded value object property. Embedded entities are
// mapped for completeness; the single-query eligibility gate rejects them.
func (eb *EntityBuilder) Embedded(property string) *EntityBuilder {
	eb.def.embedded = append(eb.def.embedded, property)
	return eb
}

// Association declares a reference to another aggregate, stored by id.
func (eb *EntityBuilder) Association(property string) *EntityBuilder {
	eb.def.associations = append(eb.def.associations, property)
	return eb
}

// FieldOption customizes a scalar field mapping.
type FieldOption func(*fieldDef)

// WithColumn overrides the derived column name of a field.
func WithColumn(column string) FieldOption {
	return func(f *fieldDef) { f.column = column }
}

// CollectionOption customizes a collection mapping.
type CollectionOption func(*collectionDef)

// Unkeyed maps the collection without an index/key column (set semantics).
func Unkeyed() CollectionOption {
	return func(c *collectionDef) { c.keyed = false }
}

// WithBackReference overrides the derived back-reference column.
func WithBackReference(column string) CollectionOption {
	return func(c *collectionDef) { c.backRef = column }
}

// WithKeyColumn overrides the derived key column and implies a keyed
// collection.
func WithKeyColumn(column string) CollectionOption {
	return func(c *collectionDef) {
		c.keyColumn = column
		c.keyed = true
	}
}

func appliedColumn(field string, opts []FieldOption) string {
	def := fieldDef{name: field, column: toSnakeCase(field)}
	for _, opt := range opts {
		opt(&def)
	}
	return def.column
}

// Build resolves collection targets and produces the immutable Schema.
func (b *SchemaBuilder) Build() (*Schema, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	schema := &Schema{entities: make(map[string]*Entity, len(b.defs))}
	for _, def := range b.defs {
		if def.idField == "" {
			return nil, fmt.Errorf("entity %s has no id field", def.name)
		}

		entity := &Entity{
			Name:     def.name,
			Table:    def.table,
			IDColumn: def.idColumn,
			root:     &Path{kind: KindRoot, table: def.table},
		}

		stack := map[string]bool{def.name: true}
		paths, err := b.expandPaths(def, nil, stack)
		if err != nil {
			return nil, err
		}
		entity.paths = paths

		for _, p := range paths {
			if p.kind == KindScalar && len(p.parts) == 1 && p.column == def.idColumn {
				entity.idPath = p
				break
			}
		}

		schema.entities[def.name] = entity
		schema.order = append(schema.order, def.name)
	}
	return schema, nil
}

// expandPaths enumerates the property paths of def, prefixed for nesting.
// Collection targets are expanded transitively so that a nested entity
// reference shows up in the path walk; a target already on the expansion
// stack is not descended into again.
func (b *SchemaBuilder) expandPaths(def *entityDef, prefix []string, stack map[string]bool) ([]*Path, error) {
	var paths []*Path

	for _, f := range def.fields {
		paths = append(paths, &Path{
			parts:  appendPath(prefix, f.name),
			kind:   KindScalar,
			column: f.column,
		})
	}
	for _, property := range def.embedded {
		paths = append(paths, &Path{parts: appendPath(prefix, property), kind: KindEmbedded})
	}
	for _, property := range def.associations {
		paths = append(paths, &Path{parts: appendPath(prefix, property), kind: KindAssociation})
	}

	for _, c := range def.collections {
		target, ok := b.byName[c.target]
		if !ok {
			return nil, fmt.Errorf("%w: %s (collection %s of %s)", ErrNoSuchEntity, c.target, c.property, def.name)
		}

		backRef := c.backRef
		if backRef == "" {
			backRef = def.table
		}
		keyColumn := c.keyColumn
		if keyColumn == "" && c.keyed {
			keyColumn = KeyColumnFor(def.table)
		}

		parts := appendPath(prefix, c.property)
		paths = append(paths, &Path{
			parts:     parts,
			kind:      KindCollection,
			table:     target.table,
			column:    target.idColumn,
			backRef:   backRef,
			keyColumn: keyColumn,
		})

		if stack[target.name] {
			continue
		}
		stack[target.name] = true
		nested, err := b.expandPaths(target, parts, stack)
		if err != nil {
			return nil, err
		}
		delete(stack, target.name)
		paths = append(paths, nested...)
	}

	return paths, nil
}

func appendPath(prefix []string, part string) []string {
	parts := make([]string, 0, len(prefix)+1)
	parts = append(parts, prefix...)
	return append(parts, part)
}
