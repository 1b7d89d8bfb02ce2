package host_test

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/entity"
	perrors "github.com/wippyai/particle-runtime/errors"
	"github.com/wippyai/particle-runtime/handle"
	"github.com/wippyai/particle-runtime/host"
	"github.com/wippyai/particle-runtime/host/services"
	"github.com/wippyai/particle-runtime/internal/entities"
	"github.com/wippyai/particle-runtime/internal/testparticles"
	"github.com/wippyai/particle-runtime/store"
	"github.com/wippyai/particle-runtime/wire"
)

func TestMain(m *testing.M) {
	if err := testparticles.RegisterAll(); err != nil {
		panic(err)
	}
	code := m.Run()
	testparticles.UnregisterAll()
	os.Exit(code)
}

var fixedClock = time.Date(2020, 1, 2, 12, 0, 0, 0, time.UTC)

func newRuntime(st *store.Store) *host.Runtime {
	return host.New(host.Options{
		ID:       "p1",
		Store:    st,
		Services: services.NewRegistry(services.NewRandomHost(1), services.NewClockHost(func() time.Time { return fixedClock })),
		URLs:     map[string]string{"$resolve-me": "https://resolved.test/me"},
	})
}

func start(t *testing.T, rt *host.Runtime, typ string, conns ...host.Connection) {
	t.Helper()
	if err := rt.Start(context.Background(), typ, conns); err != nil {
		t.Fatalf("Start(%s) failed: %v", typ, err)
	}
}

func conn(name string, mode handle.Mode) host.Connection {
	return host.Connection{Handle: name, Mode: mode}
}

func data(id string, set func(d *entities.Data)) string {
	d := entities.NewData()
	d.SetID(id)
	if set != nil {
		set(d)
	}
	return entity.Encode(d)
}

func decodeData(t *testing.T, enc string) *entities.Data {
	t.Helper()
	d := entities.NewData()
	if err := entity.Decode(enc, d); err != nil {
		t.Fatalf("decode %q: %v", enc, err)
	}
	return d
}

func kinds(msgs []host.Message, kind host.MessageKind) []host.Message {
	var out []host.Message
	for _, m := range msgs {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func TestHandleSyncUpdate(t *testing.T) {
	rt := newRuntime(nil)
	start(t, rt, "HandleSyncUpdateTest",
		conn("input1", handle.ModeRead),
		conn("input2", handle.ModeRead),
		conn("output", handle.ModeWrite))

	steps := []func() error{
		func() error { return rt.Sync("input1", data("i1", nil)) },
		func() error { return rt.Sync("input2", data("i2", nil)) },
		func() error { return rt.Update("input1", data("i1", func(d *entities.Data) { d.SetNum(7) }), "") },
		func() error { return rt.Update("output", "", "") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	stores := kinds(rt.Outbox(), host.KindCollectionStore)
	if len(stores) != 4 {
		t.Fatalf("expected 4 stores, got %d", len(stores))
	}
	want := []struct {
		txt string
		flg *bool
		num *float64
	}{
		{"sync:input1", ptr(false), nil},
		{"sync:input2", ptr(true), nil},
		{"update:input1", nil, ptr(7.0)},
		{"unexpected handle name: output", nil, nil},
	}
	for i, w := range want {
		d := decodeData(t, stores[i].Encoded)
		if d.Txt() != w.txt {
			t.Errorf("store %d: txt %q, want %q", i, d.Txt(), w.txt)
		}
		if w.flg != nil && (!d.HasFlg() || d.Flg() != *w.flg) {
			t.Errorf("store %d: flg %v, want %v", i, d.Flg(), *w.flg)
		}
		if w.num != nil && d.Num() != *w.num {
			t.Errorf("store %d: num %v, want %v", i, d.Num(), *w.num)
		}
	}
	if n := len(rt.Store().List("output")); n != 4 {
		t.Errorf("expected 4 stored outputs, got %d", n)
	}
}

func ptr[T any](v T) *T { return &v }

func TestRender(t *testing.T) {
	rt := newRuntime(nil)
	start(t, rt, "RenderTest", conn("flags", handle.ModeRead))

	for _, f := range []struct{ tmpl, model bool }{{true, false}, {false, true}, {true, true}} {
		flags := entities.NewRenderFlags()
		flags.SetTemplate(f.tmpl)
		flags.SetModel(f.model)
		if err := rt.Update("flags", entity.Encode(flags), ""); err != nil {
			t.Fatal(err)
		}
	}

	renders := kinds(rt.Outbox(), host.KindRender)
	want := []string{
		`render root "abc" {}`,
		`render root "" {foo=bar}`,
		`render root "abc" {foo=bar}`,
	}
	if len(renders) != len(want) {
		t.Fatalf("got %d renders", len(renders))
	}
	for i := range want {
		if renders[i].String() != want[i] {
			t.Errorf("render %d: got %s, want %s", i, renders[i], want[i])
		}
	}

	tmpl, err := rt.Template("root")
	if err != nil || tmpl != "abc" {
		t.Errorf("template query: %q %v", tmpl, err)
	}
	model, err := rt.Model("root")
	if err != nil || model["foo"] != "bar" {
		t.Errorf("model query: %v %v", model, err)
	}
}

func TestAutoRender(t *testing.T) {
	rt := newRuntime(nil)
	start(t, rt, "AutoRenderTest", conn("data", handle.ModeRead))

	if err := rt.Sync("data", ""); err != nil {
		t.Fatal(err)
	}
	if err := rt.Update("data", data("d1", func(d *entities.Data) { d.SetTxt("foo") }), ""); err != nil {
		t.Fatal(err)
	}
	if err := rt.Update("data", "", ""); err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, m := range kinds(rt.Outbox(), host.KindRender) {
		got = append(got, m.Template)
	}
	if strings.Join(got, ",") != "empty,foo,empty" {
		t.Errorf("unexpected auto renders %v", got)
	}
}

func TestEvents(t *testing.T) {
	rt := newRuntime(nil)
	start(t, rt, "EventsTest", conn("output", handle.ModeWrite))

	if err := rt.FireEvent("root", "clicky"); err != nil {
		t.Fatal(err)
	}
	sets := kinds(rt.Outbox(), host.KindSingletonSet)
	if len(sets) != 1 {
		t.Fatalf("expected one set, got %d", len(sets))
	}
	if d := decodeData(t, sets[0].Encoded); d.Txt() != "event:root:clicky" {
		t.Errorf("unexpected output %q", d.Txt())
	}
}

func TestServices(t *testing.T) {
	rt := newRuntime(nil)
	start(t, rt, "ServicesTest", conn("output", handle.ModeWrite))

	msgs := rt.Drain()
	if r := kinds(msgs, host.KindResolveURL); len(r) != 1 || r[0].URL != "$resolve-me" {
		t.Fatalf("expected one resolve_url, got %v", r)
	}
	reqs := kinds(msgs, host.KindServiceRequest)
	if len(reqs) != 3 {
		t.Fatalf("expected 3 service requests, got %d", len(reqs))
	}
	if reqs[2].Call != "clock.now" || reqs[2].Args["timeUnit"] != "DAYS" || reqs[2].Tag != "clock.now#1" {
		t.Errorf("unexpected clock request %s", reqs[2])
	}

	n, err := rt.Pump(context.Background(), host.LIFO)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || rt.Pending() != 0 {
		t.Fatalf("pumped %d, pending %d", n, rt.Pending())
	}

	stores := kinds(msgs, host.KindCollectionStore)
	stores = append(stores, kinds(rt.Outbox(), host.KindCollectionStore)...)
	if len(stores) != 4 {
		t.Fatalf("expected 4 outputs, got %d", len(stores))
	}

	type out struct{ call, tag, payload string }
	var got []out
	for _, m := range stores {
		r := entities.NewServiceResponse()
		if err := entity.Decode(m.Encoded, r); err != nil {
			t.Fatal(err)
		}
		got = append(got, out{r.Call(), r.Tag(), r.Payload()})
	}

	days := fixedClock.Unix() / 86400
	if got[0] != (out{"resolveUrl", "", "https://resolved.test/me"}) {
		t.Errorf("unexpected url output %+v", got[0])
	}
	if got[1] != (out{"clock.now", "clock.now#1", "value:" + strconv.FormatInt(days, 10) + ";"}) {
		t.Errorf("unexpected clock output %+v", got[1])
	}
	if got[2].call != "random.next" || got[2].tag != "second" || !strings.HasPrefix(got[2].payload, "value:") {
		t.Errorf("unexpected second output %+v", got[2])
	}
	if got[3].call != "random.next" || got[3].tag != "first" {
		t.Errorf("unexpected first output %+v", got[3])
	}
}

func TestMissingRegisterHandle(t *testing.T) {
	rt := newRuntime(nil)
	start(t, rt, "MissingRegisterHandleTest")

	if err := rt.Sync("anything", ""); !errors.Is(err, perrors.ErrUnregisteredHandle) {
		t.Errorf("expected unregistered handle, got %v", err)
	}
	if err := rt.FireEvent("root", "click"); err != nil {
		t.Errorf("event failed: %v", err)
	}
	if len(rt.Outbox()) != 0 {
		t.Errorf("unexpected output %v", rt.Outbox())
	}

	rt2 := newRuntime(nil)
	err := rt2.Start(context.Background(), "MissingRegisterHandleTest", []host.Connection{conn("x", handle.ModeRead)})
	if !errors.Is(err, perrors.ErrUnregisteredHandle) {
		t.Errorf("connect of unknown handle: expected unregistered handle, got %v", err)
	}
}

func TestUnconnectedHandles(t *testing.T) {
	rt := newRuntime(nil)
	start(t, rt, "UnconnectedHandlesTest")

	if err := rt.FireEvent("root", "click"); err != nil {
		t.Fatalf("write to unconnected handle must not fail: %v", err)
	}
	if len(rt.Outbox()) != 0 {
		t.Errorf("unconnected write reached the host: %v", rt.Outbox())
	}
}

func TestInputReferenceHandles(t *testing.T) {
	st := store.New()
	_, _ = st.Put("keyX", "idX", data("idX", func(d *entities.Data) { d.SetTxt("x") }))
	_, _ = st.Put("keyY", "idY", data("idY", func(d *entities.Data) { d.SetNum(2) }))

	rt := newRuntime(st)
	start(t, rt, "InputReferenceHandlesTest",
		conn("sng", handle.ModeRead),
		conn("col", handle.ModeRead),
		conn("res", handle.ModeWrite))

	refX := wire.Encode(entity.RefValue{ID: "idX", StorageKey: "keyX"})
	refY := wire.Encode(entity.RefValue{ID: "idY", StorageKey: "keyY"})
	for _, step := range []func() error{
		func() error { return rt.Sync("sng", "") },
		func() error { return rt.Sync("col", "") },
		func() error { return rt.Update("sng", refX, "") },
		func() error { return rt.Update("col", wire.EncodeList([]string{refY}), "") },
	} {
		if err := step(); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(kinds(rt.Outbox(), host.KindDereference)); n != 2 {
		t.Fatalf("expected 2 dereference requests, got %d", n)
	}
	if _, err := rt.Pump(context.Background(), host.FIFO); err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, m := range kinds(rt.Outbox(), host.KindCollectionStore) {
		got = append(got, decodeData(t, m.Encoded).Txt())
	}
	want := []string{
		"empty_before <> {}",
		"empty_after <> {}",
		"s::before <idX> {}",
		"c::before <idY> {}",
		"s::after <idX> {idX}, txt: x",
		"c::after <idY> {idY}, num: 2",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("got:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestOutputReferenceHandles(t *testing.T) {
	rt := newRuntime(nil)
	start(t, rt, "OutputReferenceHandlesTest",
		conn("sng", handle.ModeWrite),
		conn("col", handle.ModeWrite))

	var got []string
	for _, m := range rt.Outbox() {
		got = append(got, m.String())
	}
	want := []string{
		"singleton.set sng 3:idX|4:keyX|",
		"collection.store col 3:idX|4:keyX|",
		"collection.store col 3:idY|4:keyY|",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPump_MissingEntityDropped(t *testing.T) {
	rt := newRuntime(nil)
	start(t, rt, "InputReferenceHandlesTest",
		conn("sng", handle.ModeRead),
		conn("res", handle.ModeWrite))

	if err := rt.Update("sng", "4:gone|4:keyZ|", ""); err != nil {
		t.Fatal(err)
	}
	n, err := rt.Pump(context.Background(), host.FIFO)
	if err != nil || n != 0 {
		t.Errorf("pumped %d, err %v", n, err)
	}
	if rt.Pending() != 0 {
		t.Error("missing entity request should leave the queue")
	}
}

func TestRuntime_Lifecycle(t *testing.T) {
	rt := newRuntime(nil)
	if err := rt.Sync("x", ""); !errors.Is(err, perrors.ErrInvalidState) {
		t.Errorf("before start: expected invalid state, got %v", err)
	}
	if err := rt.Start(context.Background(), "NoSuchParticle", nil); !errors.Is(err, perrors.ErrUnknownParticle) {
		t.Errorf("expected unknown particle, got %v", err)
	}

	start(t, rt, "EventsTest", conn("output", handle.ModeWrite))
	if err := rt.Start(context.Background(), "EventsTest", nil); !errors.Is(err, perrors.ErrInvalidState) {
		t.Errorf("second start: expected invalid state, got %v", err)
	}
	if err := rt.Dispose(); err != nil {
		t.Fatal(err)
	}
	if err := rt.FireEvent("root", "late"); !errors.Is(err, perrors.ErrInvalidState) {
		t.Errorf("after dispose: expected invalid state, got %v", err)
	}
}

func TestResolveURL(t *testing.T) {
	rt := host.New(host.Options{URLs: map[string]string{
		"$app":      "https://app.test",
		"$app/deep": "https://deep.test",
	}})
	tests := map[string]string{
		"$app/x":      "https://app.test/x",
		"$app/deep/y": "https://deep.test/y",
		"plain":       "plain",
	}
	for in, want := range tests {
		if got := rt.ResolveURL(in); got != want {
			t.Errorf("ResolveURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMessage_String(t *testing.T) {
	m := host.Message{Kind: host.KindServiceRequest, Call: "clock.now", Tag: "t", Args: particleruntime.Dictionary{"b": "2", "a": "1"}}
	if got := m.String(); got != "service.request clock.now t {a=1,b=2}" {
		t.Errorf("got %q", got)
	}
}
