// Package service correlates fire-and-forget service calls with their
// responses.
//
// A particle issues a call with a tag and returns immediately. The host
// answers later, in any order, and Broker.Deliver routes each response to
// the call that carries its tag:
//
//	b.Call("random.next", nil, "first")
//	b.Call("random.next", nil, "second")
//	// host answers "second" first; each payload still reaches its own tag
//
// An empty tag is replaced with a generated one ("<call>#<n>") and Call
// returns the tag actually used. ResolveURL is a synchronous pass-through to
// the host and never touches the pending table.
package service
