// Package testparticles holds the particles used to exercise the host
// boundary end to end. They are registered explicitly with RegisterAll.
package testparticles

import (
	"strings"

	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/entity"
	"github.com/wippyai/particle-runtime/handle"
	"github.com/wippyai/particle-runtime/internal/entities"
	"github.com/wippyai/particle-runtime/particle"
	"github.com/wippyai/particle-runtime/reference"
)

var factories = map[string]particle.Factory{
	"HandleSyncUpdateTest":       NewHandleSyncUpdate,
	"RenderTest":                 NewRender,
	"AutoRenderTest":             NewAutoRender,
	"EventsTest":                 NewEvents,
	"ServicesTest":               NewServices,
	"MissingRegisterHandleTest":  NewMissingRegisterHandle,
	"UnconnectedHandlesTest":     NewUnconnectedHandles,
	"InputReferenceHandlesTest":  NewInputReferenceHandles,
	"OutputReferenceHandlesTest": NewOutputReferenceHandles,
}

// RegisterAll adds every test particle to the particle registry.
func RegisterAll() error {
	for name, f := range factories {
		if _, ok := particle.Lookup(name); ok {
			continue
		}
		if err := particle.Register(name, f); err != nil {
			return err
		}
	}
	return nil
}

// UnregisterAll removes the test particles from the registry.
func UnregisterAll() {
	for name := range factories {
		particle.Unregister(name)
	}
}

// Names returns the test particle type names.
func Names() []string {
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	return out
}

// HandleSyncUpdate reports every sync and update on its inputs into output.
type HandleSyncUpdate struct {
	particle.Base
	input1 *handle.Singleton[*entities.Data]
	input2 *handle.Singleton[*entities.Data]
	output *handle.Collection[*entities.Data]
}

func NewHandleSyncUpdate() particle.Particle {
	p := &HandleSyncUpdate{
		input1: handle.NewSingleton(entities.NewData),
		input2: handle.NewSingleton(entities.NewData),
		output: handle.NewCollection(entities.NewData),
	}
	p.RegisterHandle("input1", p.input1)
	p.RegisterHandle("input2", p.input2)
	p.RegisterHandle("output", p.output)
	return p
}

func (p *HandleSyncUpdate) OnHandleSync(name string, allSynced bool) {
	out := entities.NewData()
	out.SetTxt("sync:" + name)
	out.SetFlg(allSynced)
	p.output.Store(out)
}

func (p *HandleSyncUpdate) OnHandleUpdate(name string) {
	out := entities.NewData()
	if input, err := particle.GetSingleton[*entities.Data](p, name); err == nil {
		out.SetTxt("update:" + name)
		out.SetNum(input.Get().Num())
	} else {
		out.SetTxt("unexpected handle name: " + name)
	}
	p.output.Store(out)
}

// Render renders the root slot on every flags update, sending the parts
// the flags ask for.
type Render struct {
	particle.Base
	flags *handle.Singleton[*entities.RenderFlags]
}

func NewRender() particle.Particle {
	p := &Render{flags: handle.NewSingleton(entities.NewRenderFlags)}
	p.RegisterHandle("flags", p.flags)
	return p
}

func (p *Render) Template(slot string) string { return "abc" }

func (p *Render) PopulateModel(slot string, model particleruntime.Dictionary) {
	model["foo"] = "bar"
}

func (p *Render) OnHandleUpdate(name string) {
	flags := p.flags.Get()
	p.RenderSlot("root", flags.Template(), flags.Model())
}

// AutoRender renders its data text, or "empty".
type AutoRender struct {
	particle.Base
	data *handle.Singleton[*entities.Data]
}

func NewAutoRender() particle.Particle {
	p := &AutoRender{data: handle.NewSingleton(entities.NewData)}
	p.RegisterHandle("data", p.data)
	p.AutoRender()
	return p
}

func (p *AutoRender) Template(slot string) string {
	if d := p.data.Get(); d.HasTxt() {
		return d.Txt()
	}
	return "empty"
}

// Events writes each fired event into output.
type Events struct {
	particle.Base
	output *handle.Singleton[*entities.Data]
}

func NewEvents() particle.Particle {
	p := &Events{output: handle.NewSingleton(entities.NewData)}
	p.RegisterHandle("output", p.output)
	return p
}

func (p *Events) FireEvent(slot, handler string) {
	out := entities.NewData()
	out.SetTxt("event:" + slot + ":" + handler)
	p.output.Set(out)
}

// Services resolves a url and issues random and clock calls at init, then
// records each response.
type Services struct {
	particle.Base
	output *handle.Collection[*entities.ServiceResponse]
}

func NewServices() particle.Particle {
	p := &Services{output: handle.NewCollection(entities.NewServiceResponse)}
	p.RegisterHandle("output", p.output)
	return p
}

func (p *Services) Init() {
	url := p.ResolveURL("$resolve-me")
	out := entities.NewServiceResponse()
	out.SetCall("resolveUrl")
	out.SetPayload(url)
	p.output.Store(out)

	p.ServiceRequest("random.next", nil, "first")
	p.ServiceRequest("random.next", nil, "second")
	p.ServiceRequest("clock.now", particleruntime.Dictionary{"timeUnit": "DAYS"}, "")
}

func (p *Services) ServiceResponse(call string, payload particleruntime.Dictionary, tag string) {
	var b strings.Builder
	for _, k := range payload.Keys() {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(payload[k])
		b.WriteByte(';')
	}
	out := entities.NewServiceResponse()
	out.SetCall(call)
	out.SetTag(tag)
	out.SetPayload(b.String())
	p.output.Store(out)
}

// MissingRegisterHandle registers nothing.
type MissingRegisterHandle struct {
	particle.Base
}

func NewMissingRegisterHandle() particle.Particle { return &MissingRegisterHandle{} }

// UnconnectedHandles writes to a handle the host never connects.
type UnconnectedHandles struct {
	particle.Base
	data *handle.Singleton[*entities.Data]
}

func NewUnconnectedHandles() particle.Particle {
	p := &UnconnectedHandles{data: handle.NewSingleton(entities.NewData)}
	p.RegisterHandle("data", p.data)
	return p
}

func (p *UnconnectedHandles) FireEvent(slot, handler string) {
	p.data.Set(entities.NewData())
}

// InputReferenceHandles dereferences the references it receives and reports
// each one before and after resolution.
type InputReferenceHandles struct {
	particle.Base
	sng *handle.Singleton[*reference.Ref[*entities.Data]]
	col *handle.Collection[*reference.Ref[*entities.Data]]
	res *handle.Collection[*entities.Data]
}

func NewInputReferenceHandles() particle.Particle {
	p := &InputReferenceHandles{
		sng: handle.NewSingleton(reference.Factory(entities.NewData)),
		col: handle.NewCollection(reference.Factory(entities.NewData)),
		res: handle.NewCollection(entities.NewData),
	}
	p.RegisterHandle("sng", p.sng)
	p.RegisterHandle("col", p.col)
	p.RegisterHandle("res", p.res)
	return p
}

func (p *InputReferenceHandles) OnHandleSync(name string, allSynced bool) {
	if !allSynced {
		return
	}
	p.report("empty_before", p.sng.Get())
	_ = p.sng.Get().Dereference(func(*entities.Data) {
		p.report("empty_after", p.sng.Get())
	})
}

func (p *InputReferenceHandles) OnHandleUpdate(name string) {
	switch name {
	case "sng":
		p.report("s::before", p.sng.Get())
		_ = p.sng.Get().Dereference(func(*entities.Data) {
			p.report("s::after", p.sng.Get())
		})
	case "col":
		for ref := range p.col.All() {
			p.report("c::before", ref)
			_ = ref.Dereference(func(*entities.Data) {
				p.report("c::after", ref)
			})
		}
	}
}

func (p *InputReferenceHandles) report(label string, ref *reference.Ref[*entities.Data]) {
	d := entities.NewData()
	d.SetTxt(label + " <" + ref.ID() + "> " + entity.String(ref.Entity()))
	p.res.Store(d)
}

// OutputReferenceHandles writes decoded references at init.
type OutputReferenceHandles struct {
	particle.Base
	sng *handle.Singleton[*reference.Ref[*entities.Data]]
	col *handle.Collection[*reference.Ref[*entities.Data]]
}

func NewOutputReferenceHandles() particle.Particle {
	p := &OutputReferenceHandles{
		sng: handle.NewSingleton(reference.Factory(entities.NewData)),
		col: handle.NewCollection(reference.Factory(entities.NewData)),
	}
	p.RegisterHandle("sng", p.sng)
	p.RegisterHandle("col", p.col)
	return p
}

func (p *OutputReferenceHandles) Init() {
	r1, err := reference.Decode("3:idX|4:keyX|", entities.NewData)
	if err != nil {
		return
	}
	r2, err := reference.Decode("3:idY|4:keyY|", entities.NewData)
	if err != nil {
		return
	}
	p.sng.Set(r1)
	p.col.Store(r1)
	p.col.Store(r2)
}
