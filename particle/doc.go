// Package particle implements the particle side of the host boundary: the
// Base every particle embeds, the optional hook interfaces, the Dispatcher
// state machine that routes host events to hooks, and the process-wide
// factory registry.
//
// # Writing a Particle
//
// A particle embeds Base, registers its handles in its constructor, and
// implements only the hooks it needs:
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
//	    d := entities.NewData()
//	    d.SetTxt(p.in.Get().Txt())
//	    p.out.Store(d)
//	}
//
// # Lifecycle
//
//	Constructed --Attach--> Initialized --Init--> Running --Dispose--> Disposed
//
// Connect is accepted while Initialized or Running. Handle, event, and
// delivery calls require Running. Template and Model queries are accepted
// once Initialized. Disposed is terminal: every later call fails with
// InvalidState and nothing reaches the particle.
//
// # All Synced
//
// OnHandleSync receives allSynced=true exactly once, on the sync that
// completes the set of handles the host connected for reading. When the
// host connected no handles at all, every registered handle is in the set.
//
// # Hooks
//
// Hooks run on the caller's goroutine and must not block. A panicking hook
// is recovered and reported as a dispatch error.
package particle
