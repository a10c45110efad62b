package loader

import (
	"fmt"

	"aggload/mapping"
	"aggload/sqlgen"
)

// collectDocuments re-assembles the flat row stream of a single-query
// statement into aggregate documents. It relies on the statement's ordering
// contract: rows of one aggregate are contiguous, child rows in collection
// order, and a NULL child row number marks a parent without children. The
// alias factory must be the instance the generating statement used.
func collectDocuments(entity *mapping.Entity, aliases *sqlgen.AliasFactory, rows Rows) ([]Document, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	idAlias := aliases.ColumnAlias(entity.IDPath())

	var collection *mapping.Path
	var childRnAlias string
	if collections := entity.Collections(); len(collections) == 1 {
		collection = collections[0]
		childRnAlias = aliases.RowNumberAlias(collection)
	}

	documents := []Document{}
	var current Document
	var currentID any

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		byAlias := make(map[string]any, len(columns))
		for i, column := range columns {
			byAlias[column] = values[i]
		}

		id, ok := byAlias[idAlias]
		if !ok {
			return nil, fmt.Errorf("result set is missing the id column %s", idAlias)
		}

		if current == nil || !sameID(currentID, id) {
			current = Document{}
			for _, p := range entity.RootScalars() {
				current[p.Property()] = byAlias[aliases.ColumnAlias(p)]
			}
			if collection != nil {
				current[collection.Property()] = []Document{}
			}
			documents = append(documents, current)
			currentID = id
		}

		if collection == nil || byAlias[childRnAlias] == nil {
			continue
		}

		child := Document{}
		for _, p := range entity.ScalarsWithin(collection) {
			child[p.Property()] = byAlias[aliases.ColumnAlias(p)]
		}
		property := collection.Property()
		current[property] = append(current[property].([]Document), child)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result set: %w", err)
	}

	return documents, nil
}

// sameID compares identifier values as the driver returned them; drivers
// disagree on integer widths and byte-vs-string, so compare textually.
func sameID(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}
