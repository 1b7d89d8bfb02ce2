package entity

import (
	"strconv"
	"strings"

	"github.com/wippyai/particle-runtime/wire"
)

// Encode returns the wire form of e.
func Encode(e Entity) string {
	return wire.Encode(e)
}

// Decode reads src into e. A failed decode leaves e unchanged, including
// when the record itself decodes but trailing bytes follow it.
func Decode(src string, e Entity) error {
	scratch := NewRecord(e.Schema())
	if err := wire.Decode(src, &scratch, e.Schema().Name); err != nil {
		return err
	}
	CopyInto(e, &scratch)
	return nil
}

// Equal reports whether a and b hold the same schema, id, and fields.
func Equal(a, b Entity) bool {
	return a.Base().Equal(b.Base())
}

// CopyInto overwrites dst with the contents of src. Both must share a schema.
func CopyInto(dst, src Entity) {
	d, s := dst.Base(), src.Base()
	d.id = s.id
	copy(d.values, s.values)
}

// String renders e for diagnostics: the id in braces followed by the
// present fields in schema order.
//
//	{id1}, num: 3, txt: abc, flg: true
func String(e Entity) string {
	if e == nil {
		return "(null)"
	}
	r := e.Base()
	var b strings.Builder
	b.WriteByte('{')
	b.WriteString(r.id)
	b.WriteByte('}')
	if r.schema == nil {
		return b.String()
	}
	for i, f := range r.schema.Fields {
		v := r.values[i]
		if !v.present {
			continue
		}
		b.WriteString(", ")
		b.WriteString(f.Name)
		b.WriteString(": ")
		switch f.Kind {
		case KindText:
			b.WriteString(v.text)
		case KindNumber:
			b.WriteString(strconv.FormatFloat(v.num, 'g', -1, 64))
		case KindBoolean:
			b.WriteString(strconv.FormatBool(v.flag))
		case KindReference:
			b.WriteString("&<")
			b.WriteString(v.ref.ID)
			b.WriteByte('|')
			b.WriteString(v.ref.StorageKey)
			b.WriteByte('>')
		}
	}
	return b.String()
}
