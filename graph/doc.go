// Package graph builds and validates the relationship graph between the
// tables of a schema registry, and derives write orders from it.
//
// # Edges
//
// Three kinds of edges are recorded:
//
//   - Ancestor edges: the primary key of a descendant is also a foreign key
//     into the primary key of each of its ancestors.
//   - Triangular edges: a non-key column references the single-column
//     primary key of another table. Mandatory edges require the referenced
//     row to be written together with the host row. Discretionary edges
//     accept either a new row or an existing one.
//   - Same-as bindings: a column must equal a column of another table.
//     Bindings into an ancestor are vertical; bindings into the target of a
//     triangular edge are horizontal.
//
// # Validation
//
// Validate rejects self ancestry, duplicate ancestors, cycles over ancestor
// and mandatory edges, key mismatches between descendants and ancestors,
// same-as bindings that cannot be classified, and bindings whose target is
// not covered by a unique index:
//
//	g := graph.New(reg)
//	if err := g.AddAncestorEdge("dogs", "animals"); err != nil {
//	    return err
//	}
//	if err := g.Validate(); err != nil {
//	    return err // *stratum.GraphError
//	}
//
// Build adds the edges declared in a registry and validates the result in one
// call. Assemble stops before validation so that tools can print the full
// Report instead of the first error.
//
// Once validated a graph is read-only and may be shared between goroutines.
//
// # Orders
//
// Lineage returns a table's ancestors followed by the table itself, with the
// shared root of a diamond visited once. Order additionally includes the
// targets of mandatory edges. Both are post-order traversals memoised per
// table, with ties broken by declaration order.
package graph
