package entity

import (
	"fmt"
	"math"
	"strconv"

	"github.com/wippyai/particle-runtime/errors"
	"github.com/wippyai/particle-runtime/wire"
)

// Entity is implemented by every typed entity. Embedding Record provides it.
type Entity interface {
	wire.Marshaler
	wire.Unmarshaler
	ID() string
	SetID(id string)
	Schema() *Schema
	Base() *Record
}

// RefValue is the payload of a reference field.
type RefValue struct {
	ID         string
	StorageKey string
}

// MarshalWire writes the id and storage key segments.
func (v RefValue) MarshalWire(w *wire.Writer) {
	w.Segment(v.ID)
	w.Segment(v.StorageKey)
}

// UnmarshalWire reads the id and storage key segments.
func (v *RefValue) UnmarshalWire(r *wire.Reader) error {
	id, err := r.Next()
	if err != nil {
		return err
	}
	key, err := r.Next()
	if err != nil {
		return err
	}
	v.ID, v.StorageKey = id, key
	return nil
}

// Value holds one field. The zero Value is absent.
type Value struct {
	ref     RefValue
	text    string
	num     float64
	flag    bool
	present bool
}

func (v Value) equal(o Value, k Kind) bool {
	if v.present != o.present {
		return false
	}
	if !v.present {
		return true
	}
	switch k {
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.num == o.num || (math.IsNaN(v.num) && math.IsNaN(o.num))
	case KindBoolean:
		return v.flag == o.flag
	case KindReference:
		return v.ref == o.ref
	}
	return false
}

// Record stores an entity's id and field values in schema order.
type Record struct {
	schema *Schema
	id     string
	values []Value
}

// NewRecord creates an empty record for schema.
func NewRecord(schema *Schema) Record {
	return Record{
		schema: schema,
		values: make([]Value, schema.Len()),
	}
}

// Base returns the record itself.
func (r *Record) Base() *Record { return r }

// Schema returns the record's schema.
func (r *Record) Schema() *Schema { return r.schema }

// ID returns the entity id; empty until assigned.
func (r *Record) ID() string { return r.id }

// SetID assigns the entity id.
func (r *Record) SetID(id string) { r.id = id }

// Has reports whether field i is present.
func (r *Record) Has(i int) bool { return r.values[i].present }

// Clear marks field i absent.
func (r *Record) Clear(i int) { r.values[i] = Value{} }

// Text returns field i as text; empty when absent.
func (r *Record) Text(i int) string { return r.values[i].text }

// SetText sets field i.
func (r *Record) SetText(i int, v string) {
	r.values[i] = Value{text: v, present: true}
}

// Number returns field i as a number; zero when absent.
func (r *Record) Number(i int) float64 { return r.values[i].num }

// SetNumber sets field i.
func (r *Record) SetNumber(i int, v float64) {
	r.values[i] = Value{num: v, present: true}
}

// Bool returns field i as a boolean; false when absent.
func (r *Record) Bool(i int) bool { return r.values[i].flag }

// SetBool sets field i.
func (r *Record) SetBool(i int, v bool) {
	r.values[i] = Value{flag: v, present: true}
}

// Ref returns field i as a reference payload; zero when absent.
func (r *Record) Ref(i int) RefValue { return r.values[i].ref }

// SetRef sets field i.
func (r *Record) SetRef(i int, v RefValue) {
	r.values[i] = Value{ref: v, present: true}
}

// Reset clears the id and every field.
func (r *Record) Reset() {
	r.id = ""
	for i := range r.values {
		r.values[i] = Value{}
	}
}

// Set assigns a field by name from a loosely typed value. It accepts
// string, bool, RefValue, and Go numeric types matching the field kind.
func (r *Record) Set(name string, v any) error {
	i, ok := r.schema.Index(name)
	if !ok {
		return errors.NotFound(errors.PhaseEncode, "field", r.schema.Name+"."+name)
	}
	path := []string{r.schema.Name, name}
	kind := r.schema.Fields[i].Kind

	switch kind {
	case KindText:
		s, ok := v.(string)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), r.schema.Name)
		}
		r.SetText(i, s)
	case KindNumber:
		n, ok := toFloat(v)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), r.schema.Name)
		}
		r.SetNumber(i, n)
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), r.schema.Name)
		}
		r.SetBool(i, b)
	case KindReference:
		ref, ok := v.(RefValue)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(v), r.schema.Name)
		}
		r.SetRef(i, ref)
	}
	return nil
}

// Equal reports whether both records share a schema, id, and field values.
func (r *Record) Equal(o *Record) bool {
	if r.schema != o.schema || r.id != o.id || len(r.values) != len(o.values) {
		return false
	}
	for i, f := range r.schema.Fields {
		if !r.values[i].equal(o.values[i], f.Kind) {
			return false
		}
	}
	return true
}

// MarshalWire writes the id segment followed by one segment per schema
// field, in schema order. An absent field is an empty segment ("0:|"). A
// present field is its kind marker followed by the value:
//
//	T<text>              text, e.g. "4:Tabc|"
//	N<float>             number, shortest 'g' form, e.g. "3:N42|"
//	B1 or B0             boolean
//	R<len>:<id>|<len>:<key>|  reference
//
// The marker keeps a present empty text ("1:T|") distinct from absent.
func (r *Record) MarshalWire(w *wire.Writer) {
	w.Segment(r.id)
	if r.schema == nil {
		return
	}
	for i, f := range r.schema.Fields {
		v := r.values[i]
		if !v.present {
			w.Empty()
			continue
		}
		m := string(f.Kind.marker())
		switch f.Kind {
		case KindText:
			w.Segment(m + v.text)
		case KindNumber:
			w.Segment(m + strconv.FormatFloat(v.num, 'g', -1, 64))
		case KindBoolean:
			if v.flag {
				w.Segment(m + "1")
			} else {
				w.Segment(m + "0")
			}
		case KindReference:
			w.Segment(m + wire.Encode(v.ref))
		}
	}
}

// UnmarshalWire reads a record in the MarshalWire layout. On error the
// record is left unchanged. Use Decode to also reject trailing bytes
// without touching the record.
func (r *Record) UnmarshalWire(rd *wire.Reader) error {
	if r.schema == nil {
		return errors.InvalidInput(errors.PhaseDecode, "record has no schema")
	}
	id, err := rd.Next()
	if err != nil {
		return err
	}

	values := make([]Value, len(r.values))
	for i, f := range r.schema.Fields {
		start := rd.Position()
		seg, err := rd.Next()
		if err != nil {
			return err
		}
		if seg == "" {
			continue
		}
		path := []string{r.schema.Name, f.Name}
		if seg[0] != f.Kind.marker() {
			return errors.Malformed(errors.PhaseDecode, path, start, "field marker "+strconv.QuoteRune(rune(seg[0]))+" does not match kind "+f.Kind.String())
		}
		payload := seg[1:]
		v := Value{present: true}
		switch f.Kind {
		case KindText:
			v.text = payload
		case KindNumber:
			n, err := strconv.ParseFloat(payload, 64)
			if err != nil {
				return errors.Malformed(errors.PhaseDecode, path, start, "invalid number "+strconv.Quote(payload))
			}
			v.num = n
		case KindBoolean:
			switch payload {
			case "1":
				v.flag = true
			case "0":
				v.flag = false
			default:
				return errors.Malformed(errors.PhaseDecode, path, start, "invalid boolean "+strconv.Quote(payload))
			}
		case KindReference:
			if err := wire.Decode(payload, &v.ref, path...); err != nil {
				return err
			}
		}
		values[i] = v
	}

	r.id = id
	copy(r.values, values)
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
