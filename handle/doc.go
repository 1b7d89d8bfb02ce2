// Package handle implements the typed, named containers a particle reads and
// writes: Singleton holds zero or one item, Collection holds a set of items
// keyed by id.
//
// Items are entities or references to entities. A handle is created with a
// factory for its item type and registered under a name exactly once:
//
//	in := handle.NewSingleton(entities.NewData)
//	refs := handle.NewCollection(reference.Factory(entities.NewData))
//
// The host drives handles through Sync (a full snapshot) and Update (a
// delta). Both change visible state before the owning particle's hook runs,
// and a failed decode leaves the handle untouched.
//
// # Connection Modes
//
// The host declares what it does with each handle:
//
//	ModeNone       not connected; writes stay local
//	ModeRead       host delivers data; particle writes are rejected
//	ModeWrite      particle writes are forwarded to the host sink
//	ModeReadWrite  both
//
// Only handles connected for reading count toward a particle's all-synced
// state.
//
// # Snapshot Encoding
//
// A singleton snapshot is one encoded item, or the empty string for "no
// value". A collection snapshot is a segment list of encoded items; an
// update carries an added list and a removed list.
package handle
