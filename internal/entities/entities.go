// Package entities holds the entity types used by the bundled particles,
// the reference host, and tests.
package entities

import "github.com/wippyai/particle-runtime/entity"

var DataSchema = entity.MustSchema("Data",
	entity.Field{Name: "num", Kind: entity.KindNumber},
	entity.Field{Name: "txt", Kind: entity.KindText},
	entity.Field{Name: "lnk", Kind: entity.KindText},
	entity.Field{Name: "flg", Kind: entity.KindBoolean},
	entity.Field{Name: "ref", Kind: entity.KindReference},
)

const (
	dataNum = iota
	dataTxt
	dataLnk
	dataFlg
	dataRef
)

// Data is a general purpose entity.
type Data struct{ entity.Record }

func NewData() *Data { return &Data{Record: entity.NewRecord(DataSchema)} }

func (d *Data) Num() float64 { return d.Number(dataNum) }
func (d *Data) HasNum() bool { return d.Has(dataNum) }
func (d *Data) SetNum(v float64) { d.SetNumber(dataNum, v) }
func (d *Data) ClearNum() { d.Clear(dataNum) }
func (d *Data) Txt() string { return d.Text(dataTxt) }
func (d *Data) HasTxt() bool { return d.Has(dataTxt) }
func (d *Data) SetTxt(v string) { d.SetText(dataTxt, v) }
func (d *Data) ClearTxt() { d.Clear(dataTxt) }
func (d *Data) Lnk() string { return d.Text(dataLnk) }
func (d *Data) HasLnk() bool { return d.Has(dataLnk) }
func (d *Data) SetLnk(v string) { d.SetText(dataLnk, v) }
func (d *Data) Flg() bool { return d.Bool(dataFlg) }
func (d *Data) HasFlg() bool { return d.Has(dataFlg) }
func (d *Data) SetFlg(v bool) { d.SetBool(dataFlg, v) }
func (d *Data) RefField() entity.RefValue { return d.Ref(dataRef) }
func (d *Data) HasRef() bool { return d.Has(dataRef) }
func (d *Data) SetRefField(v entity.RefValue) { d.SetRef(dataRef, v) }

var RenderFlagsSchema = entity.MustSchema("RenderFlags",
	entity.Field{Name: "template", Kind: entity.KindBoolean},
	entity.Field{Name: "model", Kind: entity.KindBoolean},
)

// RenderFlags selects which parts of a slot a particle should send.
type RenderFlags struct{ entity.Record }

func NewRenderFlags() *RenderFlags {
	return &RenderFlags{Record: entity.NewRecord(RenderFlagsSchema)}
}

func (f *RenderFlags) Template() bool { return f.Bool(0) }
func (f *RenderFlags) SetTemplate(v bool) { f.SetBool(0, v) }
func (f *RenderFlags) Model() bool { return f.Bool(1) }
func (f *RenderFlags) SetModel(v bool) { f.SetBool(1, v) }

var ServiceResponseSchema = entity.MustSchema("ServiceResponse",
	entity.Field{Name: "call", Kind: entity.KindText},
	entity.Field{Name: "tag", Kind: entity.KindText},
	entity.Field{Name: "payload", Kind: entity.KindText},
)

// ServiceResponse records a service call outcome.
type ServiceResponse struct{ entity.Record }

func NewServiceResponse() *ServiceResponse {
	return &ServiceResponse{Record: entity.NewRecord(ServiceResponseSchema)}
}

func (s *ServiceResponse) Call() string { return s.Text(0) }
func (s *ServiceResponse) SetCall(v string) { s.SetText(0, v) }
func (s *ServiceResponse) Tag() string { return s.Text(1) }
func (s *ServiceResponse) HasTag() bool { return s.Has(1) }
func (s *ServiceResponse) SetTag(v string) { s.SetText(1, v) }
func (s *ServiceResponse) Payload() string { return s.Text(2) }
func (s *ServiceResponse) SetPayload(v string) { s.SetText(2, v) }

// Catalog returns a catalog holding every schema in this package.
func Catalog() *entity.Catalog {
	c, err := entity.NewCatalog(DataSchema, RenderFlagsSchema, ServiceResponseSchema)
	if err != nil {
		panic(err)
	}
	return c
}
