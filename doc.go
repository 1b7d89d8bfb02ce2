// Package particleruntime provides the guest-side runtime for sandboxed particles
// and a reference host that drives them.
//
// A particle is a unit of computation that never talks to the outside world
// directly. Every input arrives as a host-initiated call, and every output is
// staged into handles or events the host consumes later.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	particleruntime/     Root package with Dictionary and guest Memory interfaces
//	├── wire/            Length-prefixed segment codec
//	├── entity/          Schemas, records, and entity encode/decode
//	├── reference/       Lazy references and the pending dereference table
//	├── handle/          Singleton and Collection handles
//	├── service/         Outbound service calls correlated by tag
//	├── slot/            Slot rendering (manual and automatic)
//	├── particle/        Dispatcher state machine, hooks, factory table
//	├── store/           Host-side entity storage with observers
//	├── host/            Reference host driving a guest
//	├── wasmhost/        wazero-backed guest for particles compiled to wasm
//	├── guest/           wasm export shims for particles (wasip1 only)
//	└── errors/          Structured error types
//
// # Quick Start
//
// Write a particle:
//
//	type Echo struct {
//	    particle.Base
//	    in  *handle.Singleton[*entities.Data]
//	    out *handle.Collection[*entities.Data]
//	}
//
//	func NewEcho() particle.Particle {
//	    p := &Echo{
//	        in:  handle.NewSingleton(entities.NewData),
//	        out: handle.NewCollection(entities.NewData),
//	    }
//	    p.RegisterHandle("in", p.in)
//	    p.RegisterHandle("out", p.out)
//	    return p
//	}
//
//	func (p *Echo) OnHandleUpdate(name string) {
//	    p.out.Store(p.in.Get())
//	}
//
// Drive it from a host:
//
//	particle.Register("Echo", NewEcho)
//	rt := host.New(host.Options{})
//	err := rt.Start(ctx, "Echo", []host.Connection{
//	    {Handle: "in", Mode: handle.ModeRead},
//	    {Handle: "out", Mode: handle.ModeWrite},
//	})
//	err = rt.Update("in", encoded, "")
//	for _, m := range rt.Drain() {
//	    fmt.Println(m)
//	}
//
// # Thread Safety
//
// A particle runs single-threaded: the host invokes at most one hook at a time
// and continuations run only inside later host calls. The host Runtime
// serializes access to its guest and is safe for concurrent use.
package particleruntime
