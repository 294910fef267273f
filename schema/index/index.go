package index

// Index is the interface implemented by index builders.
type Index interface {
	Descriptor() *Descriptor
}

// A Descriptor for a unique column tuple. Primary keys are indices implicitly
// and do not need to be declared.
type Descriptor struct {
	Name   string
	Fields []string
}

// Builder for indexes on fields.
type Builder struct {
	desc *Descriptor
}

// Fields creates a unique index on the given fields.
//
//	index.Fields("id", "mandatory_field")
func Fields(fields ...string) *Builder {
	return &Builder{desc: &Descriptor{Fields: fields}}
}

// StorageKey sets the storage name of the index.
func (b *Builder) StorageKey(name string) *Builder {
	b.desc.Name = name
	return b
}

// Descriptor implements the Index interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
