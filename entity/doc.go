// Package entity defines typed records and their wire encoding.
//
// An entity is a named record of optional fields. Each field has a kind
// (text, number, boolean, reference) and its own presence bit, so an absent
// field is distinct from a present zero value.
//
// # Wire Layout
//
// An entity encodes as one segment for its id followed by one segment per
// schema field, in schema order:
//
//	<id>|<field 0>|<field 1>|...
//
// An absent field is a zero-length segment. A present field starts with a
// one-byte kind marker:
//
//	T  text     "Thello"
//	N  number   "N3.5"   (shortest float form)
//	B  boolean  "B1" / "B0"
//	R  reference "R3:idX|4:keyX|"
//
// The marker keeps a present empty text ("1:T|") apart from an absent field
// ("0:|"), so decode(encode(e)) == e for every presence combination.
//
// # Typed Entities
//
// Concrete entity types embed Record and add typed accessors:
//
//	var DataSchema = entity.MustSchema("Data",
//	    entity.Field{Name: "num", Kind: entity.KindNumber},
//	    entity.Field{Name: "txt", Kind: entity.KindText},
//	)
//
//	type Data struct{ entity.Record }
//
//	func NewData() *Data { return &Data{Record: entity.NewRecord(DataSchema)} }
//	func (d *Data) Num() float64 { return d.Number(0) }
package entity
