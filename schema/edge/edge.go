package edge

import "fmt"

// Kind distinguishes mandatory from discretionary triangular edges.
type Kind uint8

// Triangular edge kinds.
const (
	Mandatory Kind = iota + 1
	Discretionary
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Mandatory:
		return "mandatory"
	case Discretionary:
		return "discretionary"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ParseKind parses the textual form used by schema files.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "mandatory":
		return Mandatory, nil
	case "discretionary":
		return Discretionary, nil
	default:
		return 0, fmt.Errorf("edge: unknown kind %q", s)
	}
}

// Edge is the interface implemented by all edge builders.
type Edge interface {
	Descriptor() *Descriptor
}

// A Descriptor for a triangular edge. Column is the foreign-key column of the
// host table that references the primary key of Target.
type Descriptor struct {
	Kind    Kind
	Column  string
	Target  string
	Comment string
}

// Builder is the builder for triangular edges.
type Builder struct {
	desc *Descriptor
}

// To returns a new triangular edge of the given kind.
func To(kind Kind, column, target string) *Builder {
	return &Builder{desc: &Descriptor{Kind: kind, Column: column, Target: target}}
}

// MandatoryTo declares a mandatory triangular edge: the referenced row is always
// inserted together with the host row.
func MandatoryTo(column, target string) *Builder {
	return To(Mandatory, column, target)
}

// DiscretionaryTo declares a discretionary triangular edge: the host may reference
// a new row inserted with it or any existing row.
func DiscretionaryTo(column, target string) *Builder {
	return To(Discretionary, column, target)
}

// Comment sets the comment of the edge.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Edge interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
