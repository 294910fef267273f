// Package load reads schema declarations from YAML documents.
//
//	tables:
//	  - entity: Animal            # table "animals"
//	    surrogate_key: true
//	    fields:
//	      - {name: id, type: int64}
//	      - {name: name, type: string, validate: [not_empty, max_len=32]}
//	  - entity: Dog
//	    ancestors: [Animal]
//	    fields:
//	      - {name: id, type: int64}
//	      - {name: breed, type: string, nillable: true}
//
// Tables are named explicitly with name, or derived from entity as the
// snake_case plural of the entity name. References to other tables (ancestors,
// edge targets, same_as) accept either form.
package load

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-openapi/inflect"
	"gopkg.in/yaml.v3"

	"github.com/syssam/stratum/graph"
	"github.com/syssam/stratum/schema"
	"github.com/syssam/stratum/schema/edge"
	"github.com/syssam/stratum/schema/field"
	"github.com/syssam/stratum/schema/index"
)

// Schema is a YAML schema document.
type Schema struct {
	Tables []Table `yaml:"tables"`
}

// Table declares one table.
type Table struct {
	Name         string   `yaml:"name,omitempty"`
	Entity       string   `yaml:"entity,omitempty"`
	Comment      string   `yaml:"comment,omitempty"`
	SurrogateKey bool     `yaml:"surrogate_key,omitempty"`
	PrimaryKey   []string `yaml:"primary_key,omitempty"`
	Ancestors    []string `yaml:"ancestors,omitempty"`
	Fields       []Field  `yaml:"fields"`
	Edges        []Edge   `yaml:"edges,omitempty"`
	Indexes      []Index  `yaml:"indexes,omitempty"`
}

// Field declares one column.
type Field struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Nillable bool     `yaml:"nillable,omitempty"`
	Default  any      `yaml:"default,omitempty"`
	Comment  string   `yaml:"comment,omitempty"`
	SameAs   []string `yaml:"same_as,omitempty"` // "table.column"
	Validate []string `yaml:"validate,omitempty"`
}

// Edge declares a triangular edge.
type Edge struct {
	Column  string `yaml:"column"`
	Target  string `yaml:"target"`
	Kind    string `yaml:"kind"`
	Comment string `yaml:"comment,omitempty"`
}

// Index declares a unique index. It may be written as a plain list of
// column names.
type Index struct {
	Name   string   `yaml:"name,omitempty"`
	Fields []string `yaml:"fields"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (i *Index) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.SequenceNode {
		return n.Decode(&i.Fields)
	}
	type plain Index
	return n.Decode((*plain)(i))
}

// TableName returns the table name derived from an entity name.
//
//	TableName("DogBreed") // dog_breeds
func TableName(entity string) string {
	return inflect.Pluralize(inflect.Underscore(entity))
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("load: parse: %w", err)
	}
	if len(s.Tables) == 0 {
		return nil, errors.New("load: no tables declared")
	}
	return &s, nil
}

// File reads and decodes the YAML document at path.
func File(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return Parse(data)
}

// Graph returns the validated graph of the declared tables.
func (s *Schema) Graph() (*graph.Graph, error) {
	reg, err := s.Registry()
	if err != nil {
		return nil, err
	}
	return graph.Build(reg)
}

// Assemble returns the graph of the declared tables without validating it.
func (s *Schema) Assemble() (*graph.Graph, error) {
	reg, err := s.Registry()
	if err != nil {
		return nil, err
	}
	return graph.Assemble(reg)
}

// Registry returns the registry of the declared tables.
func (s *Schema) Registry() (*schema.Registry, error) {
	defs, err := s.Definitions()
	if err != nil {
		return nil, err
	}
	return schema.NewRegistry(defs...)
}

// Definitions converts the document to table definitions.
func (s *Schema) Definitions() ([]schema.Definition, error) {
	entities := make(map[string]string)
	for _, t := range s.Tables {
		if t.Entity != "" {
			entities[t.Entity] = t.name()
		}
	}
	ref := func(name string) string {
		if table, ok := entities[name]; ok {
			return table
		}
		return name
	}
	defs := make([]schema.Definition, 0, len(s.Tables))
	for i, t := range s.Tables {
		name := t.name()
		if name == "" {
			return nil, fmt.Errorf("load: table #%d: name or entity is required", i)
		}
		d := schema.Definition{
			Name:         name,
			SurrogateKey: t.SurrogateKey,
			PrimaryKey:   t.PrimaryKey,
			Comment:      t.Comment,
		}
		for _, a := range t.Ancestors {
			d.Ancestors = append(d.Ancestors, ref(a))
		}
		for _, f := range t.Fields {
			fd, err := f.field(ref)
			if err != nil {
				return nil, fmt.Errorf("load: table %s: %w", name, err)
			}
			d.Fields = append(d.Fields, fd)
		}
		for _, e := range t.Edges {
			kind, err := edge.ParseKind(e.Kind)
			if err != nil {
				return nil, fmt.Errorf("load: table %s: column %s: %w", name, e.Column, err)
			}
			d.Edges = append(d.Edges, edge.To(kind, e.Column, ref(e.Target)).Comment(e.Comment))
		}
		for _, idx := range t.Indexes {
			d.Indexes = append(d.Indexes, index.Fields(idx.Fields...).StorageKey(idx.Name))
		}
		defs = append(defs, d)
	}
	return defs, nil
}

func (t *Table) name() string {
	if t.Name != "" {
		return t.Name
	}
	if t.Entity != "" {
		return TableName(t.Entity)
	}
	return ""
}

func (f *Field) field(ref func(string) string) (field.Field, error) {
	typ, err := field.ParseType(f.Type)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	var fb field.Field
	switch typ {
	case field.TypeString:
		fb, err = stringField(f.Name, f.Validate)
	case field.TypeInt64:
		fb, err = int64Field(f.Name, f.Validate)
	case field.TypeFloat64:
		fb, err = float64Field(f.Name, f.Validate)
	case field.TypeBool:
		fb, err = field.Bool(f.Name), noValidators(f.Validate)
	case field.TypeTime:
		fb, err = field.Time(f.Name), noValidators(f.Validate)
	case field.TypeUUID:
		fb, err = field.UUID(f.Name), noValidators(f.Validate)
	}
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	// Defaults are converted to the column type by the registry.
	d := fb.Descriptor()
	d.Nillable = f.Nillable
	d.Default = f.Default
	d.Comment = f.Comment
	for _, s := range f.SameAs {
		table, column, ok := strings.Cut(s, ".")
		if !ok || table == "" || column == "" {
			return nil, fmt.Errorf("field %s: same_as %q is not of the form table.column", f.Name, s)
		}
		d.SameAs = append(d.SameAs, field.Ref{Table: ref(table), Column: column})
	}
	return fb, nil
}

// validator splits "max_len=5" into its name and argument.
func validator(s string) (name, arg string) {
	name, arg, _ = strings.Cut(strings.TrimSpace(s), "=")
	return strings.TrimSpace(name), strings.TrimSpace(arg)
}

func stringField(name string, validators []string) (field.Field, error) {
	b := field.String(name)
	for _, v := range validators {
		switch n, arg := validator(v); n {
		case "not_empty":
			b.NotEmpty()
		case "min_len", "max_len":
			i, err := strconv.Atoi(arg)
			if err != nil {
				return nil, fmt.Errorf("validator %s: %w", n, err)
			}
			if n == "min_len" {
				b.MinLen(i)
			} else {
				b.MaxLen(i)
			}
		case "match":
			re, err := regexp.Compile(arg)
			if err != nil {
				return nil, fmt.Errorf("validator match: %w", err)
			}
			b.Match(re)
		default:
			return nil, fmt.Errorf("unknown string validator %q", v)
		}
	}
	return b, nil
}

func int64Field(name string, validators []string) (field.Field, error) {
	b := field.Int64(name)
	for _, v := range validators {
		n, arg := validator(v)
		switch n {
		case "positive":
			b.Positive()
			continue
		case "non_negative":
			b.NonNegative()
			continue
		case "range":
			lo, hi, ok := strings.Cut(arg, ",")
			i, err1 := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
			j, err2 := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
			if !ok || err1 != nil || err2 != nil {
				return nil, fmt.Errorf("validator range: invalid bounds %q", arg)
			}
			b.Range(i, j)
			continue
		}
		i, err := strconv.ParseInt(arg, 10, 64)
		switch {
		case n != "min" && n != "max":
			return nil, fmt.Errorf("unknown int64 validator %q", v)
		case err != nil:
			return nil, fmt.Errorf("validator %s: %w", n, err)
		case n == "min":
			b.Min(i)
		default:
			b.Max(i)
		}
	}
	return b, nil
}

func float64Field(name string, validators []string) (field.Field, error) {
	b := field.Float64(name)
	for _, v := range validators {
		n, arg := validator(v)
		if n == "positive" {
			b.Positive()
			continue
		}
		if n == "range" {
			lo, hi, ok := strings.Cut(arg, ",")
			i, err1 := strconv.ParseFloat(strings.TrimSpace(lo), 64)
			j, err2 := strconv.ParseFloat(strings.TrimSpace(hi), 64)
			if !ok || err1 != nil || err2 != nil {
				return nil, fmt.Errorf("validator range: invalid bounds %q", arg)
			}
			b.Range(i, j)
			continue
		}
		f, err := strconv.ParseFloat(arg, 64)
		switch {
		case n != "min" && n != "max":
			return nil, fmt.Errorf("unknown float64 validator %q", v)
		case err != nil:
			return nil, fmt.Errorf("validator %s: %w", n, err)
		case n == "min":
			b.Min(f)
		default:
			b.Max(f)
		}
	}
	return b, nil
}

func noValidators(validators []string) error {
	if len(validators) > 0 {
		return fmt.Errorf("validators are not supported for this type: %v", validators)
	}
	return nil
}
