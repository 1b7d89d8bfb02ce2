// Package wire implements the textual segment format used across the
// particle/host boundary.
//
// A message is a flat sequence of segments. Each segment is the decimal byte
// length of its payload, a colon, the raw payload bytes, and a pipe:
//
//	3:idX|4:keyX|
//
// A zero-length segment ("0:|") is valid and is how entities mark absent
// fields. Segments nest: a payload may itself be a segment sequence, which is
// how collection snapshots, dictionaries, and reference fields are carried.
//
// Reader rejects length prefixes that overrun the input, payloads not
// followed by a separator, and input truncated before a segment ends. A
// failed decode returns a MalformedWireFormat error and leaves no shared
// state behind.
package wire
