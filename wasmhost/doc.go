// Package wasmhost runs particles compiled to WebAssembly on wazero.
//
// A particle module is a wasip1 reactor built from Go with the guest
// package (GOOS=wasip1 GOARCH=wasm, -buildmode=c-shared). It imports the
// particle_host module, which routes every outbound call to the
// particle.Host given at load time, and exports the entry points the host
// drives:
//
//	particle_alloc(size) -> ptr
//	particle_free(ptr)
//	particle_create(type, id) -> result
//	particle_connect(name, mode) -> result
//	particle_init() -> result
//	particle_sync(name, encoded) -> result
//	particle_update(name, encoded1, encoded2) -> result
//	particle_event(slot, handler) -> result
//	particle_template(slot) -> result
//	particle_model(slot) -> result
//	particle_deliver_reference(id, storage_key, encoded) -> result
//	particle_deliver_service(call, payload, tag) -> result
//	particle_dispose() -> result
//
// Strings are (ptr, len) pairs. A result is an i64 packing the pointer and
// length of a wire-encoded (phase, kind, detail, value) record, or 0 for
// success with no value. Errors raised inside the guest keep their kind, so
// errors.Is works across the boundary.
//
// Usage:
//
//	e := wasmhost.NewEngine(ctx, nil)
//	defer e.Close(ctx)
//
//	rt := host.New(host.Options{})
//	g, err := e.Load(ctx, wasmBytes, wasmhost.Options{Host: rt, Type: "Echo", ID: "p1"})
//	if err != nil {
//		return err
//	}
//	defer g.Close(ctx)
//	err = rt.StartGuest(ctx, g, conns)
package wasmhost
