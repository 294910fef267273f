// Package field provides fluent builders for the columns of a table.
//
// # Field Types
//
// Every value is normalized to one of six Go types:
//
//	field.String("name")        // string
//	field.Int64("count")        // int64; field.Int is an alias
//	field.Float64("price")      // float64
//	field.Bool("active")        // bool
//	field.Time("created_at")    // time.Time
//	field.UUID("token")         // uuid.UUID
//
// Driver values (int32, []byte, SQLite text timestamps and so on) are
// converted with Type.Normalize.
//
// # Field Options
//
//	field.String("nickname").
//	    Nillable().            // NULL allowed
//	    Default("anonymous").  // static default
//	    Comment("shown in lists")
//
// # Validators
//
// Validators run on every value written, including values propagated from
// other rows. Nil values are not validated.
//
//	field.String("name").NotEmpty().MaxLen(32)
//	field.String("code").Match(regexp.MustCompile(`^[A-Z]{3}$`))
//	field.Int64("age").Range(0, 150)
//	field.Float64("score").Positive()
//	field.Int64("even").Validate(func(v int64) error {
//	    if v%2 != 0 {
//	        return errors.New("odd value")
//	    }
//	    return nil
//	})
//
// # Same-as Bindings
//
// SameAs declares that a column always holds the same value as a column of
// an ancestor table (vertical) or of a table reached through a triangular
// edge (horizontal). A field may carry several bindings:
//
//	field.Int64("id").
//	    SameAs("mandatories", "parent_id").
//	    SameAs("discretionaries", "parent_id")
package field
