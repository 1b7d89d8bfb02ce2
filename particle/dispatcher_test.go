package particle_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/entity"
	perrors "github.com/wippyai/particle-runtime/errors"
	"github.com/wippyai/particle-runtime/handle"
	"github.com/wippyai/particle-runtime/internal/entities"
	"github.com/wippyai/particle-runtime/particle"
	"github.com/wippyai/particle-runtime/reference"
)

type recordingHost struct {
	log      []string
	urls     map[string]string
	requests []reference.Key
}

func (h *recordingHost) record(format string, args ...any) {
	h.log = append(h.log, fmt.Sprintf(format, args...))
}

func (h *recordingHost) SingletonSet(n, enc string)     { h.record("set %s %s", n, enc) }
func (h *recordingHost) SingletonClear(n string)        { h.record("clear %s", n) }
func (h *recordingHost) CollectionStore(n, enc string)  { h.record("store %s %s", n, enc) }
func (h *recordingHost) CollectionRemove(n, enc string) { h.record("remove %s %s", n, enc) }
func (h *recordingHost) CollectionClear(n string)       { h.record("clearall %s", n) }

func (h *recordingHost) Render(slot, template string, model particleruntime.Dictionary) {
	var parts []string
	for _, k := range model.Keys() {
		parts = append(parts, k+"="+model[k])
	}
	h.record("render %s %q {%s}", slot, template, strings.Join(parts, ","))
}

func (h *recordingHost) Dereference(id, key string) {
	h.requests = append(h.requests, reference.Key{ID: id, StorageKey: key})
	h.record("deref %s %s", id, key)
}

func (h *recordingHost) ServiceRequest(call string, args particleruntime.Dictionary, tag string) {
	h.record("service %s %s", call, tag)
}

func (h *recordingHost) ResolveURL(url string) string {
	if v, ok := h.urls[url]; ok {
		return v
	}
	return url
}

func (h *recordingHost) only(prefix string) []string {
	var out []string
	for _, l := range h.log {
		if strings.HasPrefix(l, prefix) {
			out = append(out, l)
		}
	}
	return out
}

type syncEvent struct {
	name      string
	allSynced bool
}

// syncRecorder registers three singletons and records sync notifications.
type syncRecorder struct {
	particle.Base
	events []syncEvent
}

func newSyncRecorder() *syncRecorder {
	p := &syncRecorder{}
	for _, n := range []string{"A", "B", "C"} {
		p.RegisterHandle(n, handle.NewSingleton(entities.NewData))
	}
	return p
}

func (p *syncRecorder) OnHandleSync(name string, allSynced bool) {
	p.events = append(p.events, syncEvent{name, allSynced})
}

func running(t *testing.T, p particle.Particle, host particle.Host) *particle.Dispatcher {
	t.Helper()
	d, err := particle.Attach("p1", p, host)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := d.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return d
}

func encodeData(id, txt string, num float64) string {
	d := entities.NewData()
	d.SetID(id)
	if txt != "" {
		d.SetTxt(txt)
	}
	d.SetNum(num)
	return entity.Encode(d)
}

func TestAllSynced_AnyOrder(t *testing.T) {
	orders := [][]string{
		{"A", "B", "C"}, {"C", "A", "B"}, {"B", "C", "A"},
		{"A", "C", "B"}, {"B", "A", "C"}, {"C", "B", "A"},
	}
	for _, order := range orders {
		t.Run(strings.Join(order, ""), func(t *testing.T) {
			p := newSyncRecorder()
			d := running(t, p, &recordingHost{})
			for _, n := range order {
				if err := d.SyncHandle(n, ""); err != nil {
					t.Fatal(err)
				}
			}
			// A repeated sync never reports all-synced again.
			if err := d.SyncHandle(order[0], ""); err != nil {
				t.Fatal(err)
			}

			trues := 0
			for i, ev := range p.events {
				if ev.allSynced {
					trues++
					if i != len(order)-1 {
						t.Errorf("all-synced reported at sync %d, want %d", i, len(order)-1)
					}
				}
			}
			if trues != 1 {
				t.Errorf("all-synced reported %d times: %+v", trues, p.events)
			}
			if !d.AllSynced() {
				t.Error("dispatcher should report all synced")
			}
		})
	}
}

func TestAllSynced_FailedSyncDoesNotCount(t *testing.T) {
	p := newSyncRecorder()
	d := running(t, p, &recordingHost{})
	_ = d.SyncHandle("A", "")
	_ = d.SyncHandle("B", "")
	if err := d.SyncHandle("C", "garbage"); !errors.Is(err, perrors.ErrMalformedWire) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if len(p.events) != 2 || d.AllSynced() {
		t.Fatalf("failed sync must not reach the hook: %+v", p.events)
	}
	_ = d.SyncHandle("C", "")
	if !p.events[2].allSynced {
		t.Error("expected all-synced on the completing sync")
	}
}

// echo mirrors its inputs into output on sync and update.
type echo struct {
	particle.Base
	input1 *handle.Singleton[*entities.Data]
	input2 *handle.Singleton[*entities.Data]
	output *handle.Collection[*entities.Data]
}

func newEcho() particle.Particle {
	p := &echo{
		input1: handle.NewSingleton(entities.NewData),
		input2: handle.NewSingleton(entities.NewData),
		output: handle.NewCollection(entities.NewData),
	}
	p.RegisterHandle("input1", p.input1)
	p.RegisterHandle("input2", p.input2)
	p.RegisterHandle("output", p.output)
	return p
}

func (p *echo) OnHandleSync(name string, allSynced bool) {
	out := entities.NewData()
	out.SetTxt("sync:" + name)
	out.SetFlg(allSynced)
	p.output.Store(out)
}

func (p *echo) OnHandleUpdate(name string) {
	out := entities.NewData()
	if in, err := particle.GetSingleton[*entities.Data](p, name); err == nil {
		out.SetTxt("update:" + name)
		out.SetNum(in.Get().Num())
	} else {
		out.SetTxt("unexpected handle name: " + name)
	}
	p.output.Store(out)
}

func TestScenario_SyncUpdate(t *testing.T) {
	host := &recordingHost{}
	p := newEcho()
	d, err := particle.Attach("p1", p, host)
	if err != nil {
		t.Fatal(err)
	}
	for name, mode := range map[string]handle.Mode{
		"input1": handle.ModeRead,
		"input2": handle.ModeRead,
		"output": handle.ModeWrite,
	} {
		if err := d.Connect(name, mode); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}

	if err := d.SyncHandle("input1", encodeData("i1", "", 1)); err != nil {
		t.Fatal(err)
	}
	if err := d.SyncHandle("input2", encodeData("i2", "", 2)); err != nil {
		t.Fatal(err)
	}
	if err := d.UpdateHandle("input1", encodeData("i1", "", 5), ""); err != nil {
		t.Fatal(err)
	}
	if err := d.UpdateHandle("output", "", ""); err != nil {
		t.Fatal(err)
	}

	var got []string
	for out := range p.(*echo).output.All() {
		s := out.Txt()
		if out.HasFlg() {
			s += fmt.Sprintf(" flg=%v", out.Flg())
		}
		if out.HasNum() {
			s += fmt.Sprintf(" num=%v", out.Num())
		}
		got = append(got, s)
	}
	want := []string{
		"sync:input1 flg=false",
		"sync:input2 flg=true",
		"update:input1 num=5",
		"unexpected handle name: output",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("output %d: got %q, want %q", i, got[i], want[i])
		}
	}
	if n := len(host.only("store output")); n != 4 {
		t.Errorf("expected 4 forwarded stores, got %d", n)
	}
	if !strings.Contains(host.log[0], "!p1:output:1") {
		t.Errorf("expected local id in first write, got %q", host.log[0])
	}
}

func TestUnregisteredHandle(t *testing.T) {
	p := newEcho()
	d := running(t, p, &recordingHost{})

	if err := d.SyncHandle("nope", ""); !errors.Is(err, perrors.ErrUnregisteredHandle) {
		t.Errorf("sync: expected unregistered handle, got %v", err)
	}
	if err := d.UpdateHandle("nope", "", ""); !errors.Is(err, perrors.ErrUnregisteredHandle) {
		t.Errorf("update: expected unregistered handle, got %v", err)
	}
	if err := d.Connect("nope", handle.ModeRead); !errors.Is(err, perrors.ErrUnregisteredHandle) {
		t.Errorf("connect: expected unregistered handle, got %v", err)
	}

	if _, err := particle.GetSingleton[*entities.Data](p, "nope"); !errors.Is(err, perrors.ErrUnregisteredHandle) {
		t.Errorf("expected unregistered handle, got %v", err)
	}
	if _, err := particle.GetSingleton[*entities.Data](p, "output"); !errors.Is(err, perrors.ErrTypeMismatch) {
		t.Errorf("expected type mismatch for collection, got %v", err)
	}
	if _, err := particle.GetSingleton[*entities.RenderFlags](p, "input1"); !errors.Is(err, perrors.ErrTypeMismatch) {
		t.Errorf("expected type mismatch for item type, got %v", err)
	}
	s, err := particle.GetSingleton[*entities.Data](p, "input1")
	if err != nil || s.IsSet() {
		t.Errorf("registered empty handle should succeed empty, got %v", err)
	}
	if _, err := particle.GetCollection[*entities.Data](p, "output"); err != nil {
		t.Errorf("GetCollection failed: %v", err)
	}
}

type bare struct{ particle.Base }

func TestNoHandles(t *testing.T) {
	d := running(t, &bare{}, &recordingHost{})
	if err := d.SyncHandle("x", ""); !errors.Is(err, perrors.ErrUnregisteredHandle) {
		t.Errorf("expected unregistered handle, got %v", err)
	}
	if err := d.FireEvent("root", "click"); err != nil {
		t.Errorf("event without hook should be a no-op, got %v", err)
	}
	if tmpl, err := d.Template("root"); err != nil || tmpl != "" {
		t.Errorf("unexpected template %q, %v", tmpl, err)
	}
}

type dupe struct{ particle.Base }

func TestDuplicateHandle(t *testing.T) {
	p := &dupe{}
	p.RegisterHandle("x", handle.NewSingleton(entities.NewData))
	p.RegisterHandle("x", handle.NewSingleton(entities.NewData))
	if _, err := particle.Attach("p1", p, &recordingHost{}); !errors.Is(err, perrors.ErrDuplicateHandle) {
		t.Errorf("expected duplicate handle, got %v", err)
	}
}

type lifecycle struct {
	particle.Base
	calls []string
}

func (p *lifecycle) Init()                    { p.calls = append(p.calls, "init") }
func (p *lifecycle) FireEvent(slot, h string) { p.calls = append(p.calls, "event:"+slot+":"+h) }
func (p *lifecycle) Dispose()                 { p.calls = append(p.calls, "dispose") }

func TestLifecycle(t *testing.T) {
	p := &lifecycle{}
	host := &recordingHost{}
	d, err := particle.Attach("p1", p, host)
	if err != nil {
		t.Fatal(err)
	}
	if d.State() != particle.Initialized {
		t.Fatalf("expected initialized, got %s", d.State())
	}
	if err := d.FireEvent("root", "early"); !errors.Is(err, perrors.ErrInvalidState) {
		t.Errorf("event before init: expected invalid state, got %v", err)
	}
	if _, err := d.Template("root"); err != nil {
		t.Errorf("template query should be valid once initialized: %v", err)
	}
	if _, err := particle.Attach("p2", p, host); !errors.Is(err, perrors.ErrInvalidState) {
		t.Errorf("second attach: expected invalid state, got %v", err)
	}

	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Init(); !errors.Is(err, perrors.ErrInvalidState) {
		t.Errorf("second init: expected invalid state, got %v", err)
	}
	if err := d.FireEvent("root", "click"); err != nil {
		t.Fatal(err)
	}
	if err := d.Dispose(); err != nil {
		t.Fatal(err)
	}

	for _, err := range []error{
		d.FireEvent("root", "late"),
		d.SyncHandle("x", ""),
		d.DeliverReference("id", "key", ""),
		d.DeliverServiceResponse("c", nil, "t"),
		d.Connect("x", handle.ModeRead),
		d.Dispose(),
	} {
		if !errors.Is(err, perrors.ErrInvalidState) {
			t.Errorf("after dispose: expected invalid state, got %v", err)
		}
	}
	if _, err := d.Model("root"); !errors.Is(err, perrors.ErrInvalidState) {
		t.Errorf("model after dispose: expected invalid state, got %v", err)
	}

	want := []string{"init", "event:root:click", "dispose"}
	if strings.Join(p.calls, ",") != strings.Join(want, ",") {
		t.Errorf("got calls %v, want %v", p.calls, want)
	}
}

type panicky struct{ particle.Base }

func (p *panicky) FireEvent(slot, handler string) {
	if handler == "boom" {
		panic("boom")
	}
}

func TestHookPanicRecovered(t *testing.T) {
	d := running(t, &panicky{}, &recordingHost{})
	err := d.FireEvent("root", "boom")
	if !errors.Is(err, perrors.ErrInvalidState) {
		t.Fatalf("expected dispatch error, got %v", err)
	}
	if err := d.FireEvent("root", "ok"); err != nil {
		t.Errorf("dispatcher unusable after panic: %v", err)
	}
}

type services struct {
	particle.Base
	out []string
}

func (p *services) Init() {
	p.out = append(p.out, "url="+p.ResolveURL("$resolve-me"))
	p.ServiceRequest("random.next", nil, "first")
	p.ServiceRequest("random.next", nil, "second")
	p.ServiceRequest("clock.now", particleruntime.Dictionary{"timeUnit": "DAYS"}, "")
}

func (p *services) ServiceResponse(call string, payload particleruntime.Dictionary, tag string) {
	p.out = append(p.out, call+"/"+tag+"/"+payload["value"])
}

func TestServices_ReversedResponses(t *testing.T) {
	host := &recordingHost{urls: map[string]string{"$resolve-me": "https://resolved"}}
	p := &services{}
	d := running(t, p, host)

	if got := d.PendingServices(); len(got) != 3 || got[2] != "clock.now#1" {
		t.Fatalf("unexpected pending tags %v", got)
	}
	_ = d.DeliverServiceResponse("random.next", particleruntime.Dictionary{"value": "0.2"}, "second")
	_ = d.DeliverServiceResponse("clock.now", particleruntime.Dictionary{"value": "19000"}, "clock.now#1")
	_ = d.DeliverServiceResponse("random.next", particleruntime.Dictionary{"value": "0.1"}, "first")
	if err := d.DeliverServiceResponse("random.next", nil, "first"); !errors.Is(err, perrors.ErrNotFound) {
		t.Errorf("duplicate response: expected not found, got %v", err)
	}

	want := []string{
		"url=https://resolved",
		"random.next/second/0.2",
		"clock.now/clock.now#1/19000",
		"random.next/first/0.1",
	}
	if strings.Join(p.out, "|") != strings.Join(want, "|") {
		t.Errorf("got %v, want %v", p.out, want)
	}
	if len(host.only("service")) != 3 {
		t.Errorf("expected 3 service requests, got %v", host.only("service"))
	}
}

type refs struct {
	particle.Base
	sng *handle.Singleton[*reference.Ref[*entities.Data]]
	out []string
}

func newRefs() *refs {
	p := &refs{sng: handle.NewSingleton(reference.Factory(entities.NewData))}
	p.RegisterHandle("sng", p.sng)
	return p
}

func (p *refs) OnHandleUpdate(name string) {
	r := p.sng.Get()
	p.out = append(p.out, "before "+entity.String(r.Entity()))
	_ = r.Dereference(func(d *entities.Data) {
		p.out = append(p.out, "after "+entity.String(d))
	})
}

func TestReferences_Delivery(t *testing.T) {
	host := &recordingHost{}
	p := newRefs()
	d := running(t, p, host)

	if err := d.UpdateHandle("sng", "3:idX|4:keyX|", ""); err != nil {
		t.Fatal(err)
	}
	if len(host.requests) != 1 || host.requests[0].ID != "idX" {
		t.Fatalf("expected one dereference request, got %v", host.requests)
	}
	if len(d.PendingReferences()) != 1 {
		t.Error("expected one pending reference")
	}
	if err := d.DeliverReference("idX", "keyX", encodeData("idX", "hi", 1)); err != nil {
		t.Fatal(err)
	}
	if err := d.DeliverReference("idX", "keyX", encodeData("idX", "hi", 1)); !errors.Is(err, perrors.ErrNotFound) {
		t.Errorf("unsolicited delivery: expected not found, got %v", err)
	}

	want := []string{"before {}", "after {idX}, num: 1, txt: hi"}
	if strings.Join(p.out, "|") != strings.Join(want, "|") {
		t.Errorf("got %v, want %v", p.out, want)
	}
}

type autoRender struct {
	particle.Base
	data *handle.Singleton[*entities.Data]
}

func newAutoRender() *autoRender {
	p := &autoRender{data: handle.NewSingleton(entities.NewData)}
	p.RegisterHandle("data", p.data)
	p.AutoRender()
	return p
}

func (p *autoRender) Template(slot string) string {
	if d := p.data.Get(); d.HasTxt() {
		return d.Txt()
	}
	return "empty"
}

func TestAutoRender(t *testing.T) {
	host := &recordingHost{}
	d := running(t, newAutoRender(), host)

	if err := d.SyncHandle("data", ""); err != nil {
		t.Fatal(err)
	}
	if err := d.UpdateHandle("data", encodeData("d1", "foo", 0), ""); err != nil {
		t.Fatal(err)
	}
	if err := d.FireEvent("root", "click"); err != nil {
		t.Fatal(err)
	}

	want := []string{`render root "empty" {}`, `render root "foo" {}`}
	got := host.only("render")
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %v, want %v", got, want)
	}
}

type manualRender struct {
	particle.Base
	flags *handle.Singleton[*entities.RenderFlags]
}

func (p *manualRender) Template(slot string) string { return "abc" }

func (p *manualRender) PopulateModel(slot string, model particleruntime.Dictionary) {
	model["foo"] = "bar"
}

func (p *manualRender) OnHandleUpdate(name string) {
	f := p.flags.Get()
	p.RenderSlot("root", f.Template(), f.Model())
}

func TestManualRender(t *testing.T) {
	host := &recordingHost{}
	p := &manualRender{flags: handle.NewSingleton(entities.NewRenderFlags)}
	p.RegisterHandle("flags", p.flags)
	d := running(t, p, host)

	for _, tc := range []struct{ tmpl, model bool }{{true, false}, {false, true}, {true, true}} {
		f := entities.NewRenderFlags()
		f.SetTemplate(tc.tmpl)
		f.SetModel(tc.model)
		if err := d.UpdateHandle("flags", entity.Encode(f), ""); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{
		`render root "abc" {}`,
		`render root "" {foo=bar}`,
		`render root "abc" {foo=bar}`,
	}
	if got := host.only("render"); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %v, want %v", got, want)
	}

	model, err := d.Model("root")
	if err != nil || model["foo"] != "bar" {
		t.Errorf("model query: %v %v", model, err)
	}
}

type writer struct {
	particle.Base
	data *handle.Singleton[*entities.Data]
}

func (p *writer) FireEvent(slot, handler string) {
	p.data.Set(entities.NewData())
}

func TestWriteModes(t *testing.T) {
	tests := []struct {
		name    string
		mode    handle.Mode
		forward int
		isSet   bool
	}{
		{"unconnected", handle.ModeNone, 0, true},
		{"write", handle.ModeWrite, 1, true},
		{"read only", handle.ModeRead, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &recordingHost{}
			p := &writer{data: handle.NewSingleton(entities.NewData)}
			p.RegisterHandle("data", p.data)
			d, err := particle.Attach("p1", p, host)
			if err != nil {
				t.Fatal(err)
			}
			_ = d.Connect("data", tt.mode)
			_ = d.Init()

			if err := d.FireEvent("root", "go"); err != nil {
				t.Fatalf("write must not fail the event: %v", err)
			}
			if n := len(host.only("set")); n != tt.forward {
				t.Errorf("forwarded %d writes, want %d", n, tt.forward)
			}
			if p.data.IsSet() != tt.isSet {
				t.Errorf("IsSet = %v, want %v", p.data.IsSet(), tt.isSet)
			}
		})
	}
}
