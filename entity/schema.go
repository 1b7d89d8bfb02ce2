package entity

import (
	"fmt"

	"github.com/wippyai/particle-runtime/errors"
)

// Kind is the type of a schema field.
type Kind uint8

const (
	KindText Kind = iota + 1
	KindNumber
	KindBoolean
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindReference:
		return "reference"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) marker() byte {
	switch k {
	case KindText:
		return 'T'
	case KindNumber:
		return 'N'
	case KindBoolean:
		return 'B'
	case KindReference:
		return 'R'
	default:
		return '?'
	}
}

// Field declares one schema field.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the ordered field list of an entity type.
type Schema struct {
	index  map[string]int
	Name   string
	Fields []Field
}

// NewSchema builds a schema, rejecting duplicate or empty field names.
func NewSchema(name string, fields ...Field) (*Schema, error) {
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseRegister, "schema name cannot be empty")
	}
	s := &Schema{
		Name:   name,
		Fields: fields,
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			return nil, errors.InvalidData(errors.PhaseRegister, []string{name}, fmt.Sprintf("field %d has no name", i))
		}
		if f.Kind < KindText || f.Kind > KindReference {
			return nil, errors.InvalidData(errors.PhaseRegister, []string{name, f.Name}, "unknown field kind "+f.Kind.String())
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, errors.InvalidData(errors.PhaseRegister, []string{name, f.Name}, "duplicate field name")
		}
		s.index[f.Name] = i
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error.
// It is meant for package-level schema declarations.
func MustSchema(name string, fields ...Field) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Index returns the position of the named field.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.Fields)
}
