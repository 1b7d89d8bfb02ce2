package wire

import (
	"strconv"
	"strings"

	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/errors"
)

const (
	lengthSep  = ':'
	segmentEnd = '|'

	// maxLengthDigits bounds the length prefix so it always fits an int.
	maxLengthDigits = 9
)

// Marshaler is implemented by values that write themselves as segments.
type Marshaler interface {
	MarshalWire(w *Writer)
}

// Unmarshaler is implemented by values that read themselves from segments.
type Unmarshaler interface {
	UnmarshalWire(r *Reader) error
}

// Writer accumulates segments.
type Writer struct {
	b     strings.Builder
	count int
}

// Segment appends one segment holding s.
func (w *Writer) Segment(s string) {
	w.b.WriteString(strconv.Itoa(len(s)))
	w.b.WriteByte(lengthSep)
	w.b.WriteString(s)
	w.b.WriteByte(segmentEnd)
	w.count++
}

// Empty appends a zero-length segment.
func (w *Writer) Empty() {
	w.b.WriteString("0:|")
	w.count++
}

// Nested appends one segment whose payload is the output of m.
func (w *Writer) Nested(m Marshaler) {
	var inner Writer
	m.MarshalWire(&inner)
	w.Segment(inner.String())
}

// Count returns the number of segments written.
func (w *Writer) Count() int {
	return w.count
}

// String returns the encoded segments.
func (w *Writer) String() string {
	return w.b.String()
}

// Reader consumes segments from an encoded string.
type Reader struct {
	src  string
	path []string
	pos  int
}

// NewReader creates a Reader over src. The path labels errors.
func NewReader(src string, path ...string) *Reader {
	return &Reader{src: src, path: path}
}

// Position returns the current byte offset.
func (r *Reader) Position() int {
	return r.pos
}

// Remaining reports whether unread input is left.
func (r *Reader) Remaining() bool {
	return r.pos < len(r.src)
}

// Next reads one segment and returns its payload.
func (r *Reader) Next() (string, error) {
	if r.pos >= len(r.src) {
		return "", r.fail(r.pos, "unexpected end of input")
	}

	start := r.pos
	i := r.pos
	for i < len(r.src) && r.src[i] >= '0' && r.src[i] <= '9' {
		i++
	}
	digits := i - start
	if digits == 0 {
		return "", r.fail(start, "missing length prefix")
	}
	if digits > maxLengthDigits {
		return "", r.fail(start, "length prefix too long")
	}
	if digits > 1 && r.src[start] == '0' {
		return "", r.fail(start, "length prefix has leading zeros")
	}
	if i >= len(r.src) {
		return "", r.fail(i, "truncated before length separator")
	}
	if r.src[i] != lengthSep {
		return "", r.fail(i, "expected ':' after length prefix")
	}

	n, err := strconv.Atoi(r.src[start:i])
	if err != nil {
		return "", r.fail(start, "invalid length prefix")
	}

	payloadStart := i + 1
	end := payloadStart + n
	if end > len(r.src) {
		return "", r.fail(payloadStart, "length "+strconv.Itoa(n)+" exceeds remaining input")
	}
	if end == len(r.src) {
		return "", r.fail(end, "missing trailing separator")
	}
	if r.src[end] != segmentEnd {
		return "", r.fail(end, "length "+strconv.Itoa(n)+" does not end at a separator")
	}

	r.pos = end + 1
	return r.src[payloadStart:end], nil
}

// Finish fails if unread input remains.
func (r *Reader) Finish() error {
	if r.pos != len(r.src) {
		return r.fail(r.pos, "trailing bytes after last segment")
	}
	return nil
}

func (r *Reader) fail(offset int, detail string) error {
	return errors.Malformed(errors.PhaseDecode, r.path, offset, detail)
}

// Encode returns the wire form of m.
func Encode(m Marshaler) string {
	var w Writer
	m.MarshalWire(&w)
	return w.String()
}

// Decode reads u from src, requiring the whole input to be consumed.
func Decode(src string, u Unmarshaler, path ...string) error {
	r := NewReader(src, path...)
	if err := u.UnmarshalWire(r); err != nil {
		return err
	}
	return r.Finish()
}

// EncodeList encodes items as one segment each.
func EncodeList(items []string) string {
	var w Writer
	for _, item := range items {
		w.Segment(item)
	}
	return w.String()
}

// DecodeList splits src into segment payloads. Empty input is an empty list.
func DecodeList(src string, path ...string) ([]string, error) {
	r := NewReader(src, path...)
	var items []string
	for r.Remaining() {
		item, err := r.Next()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// EncodeDictionary encodes d as alternating key and value segments, keys sorted.
func EncodeDictionary(d particleruntime.Dictionary) string {
	var w Writer
	for _, k := range d.Keys() {
		w.Segment(k)
		w.Segment(d[k])
	}
	return w.String()
}

// DecodeDictionary reads alternating key and value segments.
func DecodeDictionary(src string, path ...string) (particleruntime.Dictionary, error) {
	r := NewReader(src, path...)
	d := particleruntime.Dictionary{}
	for r.Remaining() {
		k, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !r.Remaining() {
			return nil, r.fail(r.pos, "dictionary key "+strconv.Quote(k)+" has no value")
		}
		v, err := r.Next()
		if err != nil {
			return nil, err
		}
		d[k] = v
	}
	return d, nil
}
