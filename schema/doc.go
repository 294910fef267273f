// Package schema declares tables and resolves them into an immutable
// registry.
//
// This package is the entry point for schema declaration; the column, edge
// and index builders live in its subpackages:
//
//   - [field]: column builders, types and validators
//   - [edge]: triangular edge builders
//   - [index]: unique index builders
//
// # Quick Start
//
//	reg, err := schema.NewRegistry(
//	    schema.Definition{
//	        Name:         "animals",
//	        SurrogateKey: true, // the store generates the id
//	        Fields: []field.Field{
//	            field.Int64("id"),
//	            field.String("name").NotEmpty(),
//	        },
//	    },
//	    schema.Definition{
//	        Name:      "dogs",
//	        Ancestors: []string{"animals"},
//	        Fields: []field.Field{
//	            field.Int64("id"),
//	            field.String("breed"),
//	        },
//	    },
//	)
//
// Every table has a primary key, "id" unless PrimaryKey says otherwise. A
// table listing ancestors shares their key: each of its rows extends one row
// of every ancestor. The relationships between tables are checked by the
// graph package, which builds on the registry.
//
// Declaration defects (duplicate names, undeclared key columns, defaults that
// fail validation) are reported by NewRegistry as *stratum.GraphError.
package schema
