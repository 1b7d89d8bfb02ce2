// Package reference implements lazy references to entities and the pending
// dereference table that resolves them.
//
// A Ref starts Unresolved. Dereference moves it to Resolving and asks the
// host, through a Table, for the entity identified by (id, storage key).
// The host answers later, on a separate call, by handing the wire-encoded
// entity to Table.Deliver, which resolves every waiting reference and runs
// their continuations in registration order:
//
//	ref.Dereference(func(d *entities.Data) {
//	    report("after", d)
//	})
//	// ... later, from the host:
//	table.Deliver("idX", "keyX", encoded)
//
// Once resolved, Dereference runs the continuation immediately with the
// cached entity and sends nothing to the host. Continuations registered
// while a request is in flight share that request.
//
// Nothing here blocks or starts goroutines. A continuation whose response
// never arrives never runs.
package reference
