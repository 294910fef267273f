// Package edge provides builders for triangular edges between tables.
//
// A triangular edge makes a column of the host table reference the primary
// key of a target table. Same-as bindings declared on the host fields then
// relate other columns of the two rows: a host column can mirror a target
// column, or the host key can be pushed into a target column.
//
// # Edge Kinds
//
// A mandatory edge always inserts the referenced row together with the host
// row, so the pair is written in one transaction:
//
//	edge.MandatoryTo("sponsor_id", "sponsors")
//
// A discretionary edge either inserts a new referenced row with the host or
// points at an existing row. The key column is usually nillable:
//
//	edge.DiscretionaryTo("friend_id", "parents").
//	    Comment("optional friend")
//
// Edges are declared on a schema.Definition:
//
//	schema.Definition{
//	    Name:      "children",
//	    Ancestors: []string{"parents"},
//	    Fields: []field.Field{
//	        field.Int64("id").SameAs("sponsors", "parent_id"),
//	        field.Int64("sponsor_id"),
//	    },
//	    Edges: []edge.Edge{
//	        edge.MandatoryTo("sponsor_id", "sponsors"),
//	    },
//	}
package edge
