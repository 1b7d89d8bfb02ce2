package reference

import (
	"github.com/wippyai/particle-runtime/entity"
	"github.com/wippyai/particle-runtime/errors"
	"github.com/wippyai/particle-runtime/wire"
)

// State is a reference's resolution state.
type State uint8

const (
	Unresolved State = iota
	Resolving
	Resolved
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Ref points at an entity of type T by id and storage key.
type Ref[T entity.Entity] struct {
	entity T
	newT   func() T
	table  *Table
	id     string
	key    string
	conts  []func(T)
	gen    uint64
	state  State
}

// New creates an empty, unresolved reference.
func New[T entity.Entity](newT func() T) *Ref[T] {
	return &Ref[T]{newT: newT, entity: newT()}
}

// To creates an unresolved reference to (id, storageKey).
func To[T entity.Entity](id, storageKey string, newT func() T) *Ref[T] {
	r := New(newT)
	r.id, r.key = id, storageKey
	return r
}

// Factory returns a constructor of empty references, for handles of
// references.
func Factory[T entity.Entity](newT func() T) func() *Ref[T] {
	return func() *Ref[T] { return New(newT) }
}

// ID returns the referenced entity id.
func (r *Ref[T]) ID() string { return r.id }

// StorageKey returns the storage key the entity lives under.
func (r *Ref[T]) StorageKey() string { return r.key }

// State returns the current resolution state.
func (r *Ref[T]) State() State { return r.state }

// Attach binds the reference to the table that resolves it.
func (r *Ref[T]) Attach(t *Table) { r.table = t }

// Attached reports whether the reference can issue dereference requests.
func (r *Ref[T]) Attached() bool { return r.table != nil }

// Entity returns the cached entity, or an empty entity when not resolved.
// It never blocks.
func (r *Ref[T]) Entity() T { return r.entity }

// Resolved returns the cached entity, or UnresolvedReference when the
// reference has not been resolved yet.
func (r *Ref[T]) Resolved() (T, error) {
	if r.state != Resolved {
		var zero T
		return zero, errors.Unresolved(r.id, r.key)
	}
	return r.entity, nil
}

// Dereference runs cont with the referenced entity. A resolved or empty
// reference runs cont immediately; otherwise cont runs when the host
// delivers the entity. If the delivered entity fails to decode, the
// reference returns to Unresolved and cont stays queued until the next
// Dereference call issues a new request.
func (r *Ref[T]) Dereference(cont func(T)) error {
	if r.state == Resolved {
		cont(r.entity)
		return nil
	}
	if r.id == "" {
		r.state = Resolved
		cont(r.entity)
		return nil
	}
	if r.table == nil {
		return errors.New(errors.PhaseResolve, errors.KindUnresolvedReference).
			Path(r.key, r.id).
			Detail("reference is not attached to a particle").
			Build()
	}

	r.conts = append(r.conts, cont)
	if r.state == Resolving {
		return nil
	}
	r.state = Resolving
	gen := r.gen
	r.table.await(Key{ID: r.id, StorageKey: r.key}, func(encoded string) error {
		if gen != r.gen {
			return nil
		}
		return r.resolve(encoded)
	})
	return nil
}

func (r *Ref[T]) resolve(encoded string) error {
	e := r.newT()
	if err := entity.Decode(encoded, e); err != nil {
		r.state = Unresolved
		return err
	}
	if e.ID() == "" {
		e.SetID(r.id)
	}

	r.entity = e
	r.state = Resolved
	conts := r.conts
	r.conts = nil
	for _, cont := range conts {
		cont(e)
	}
	return nil
}

// MarshalWire writes the id and storage key segments.
func (r *Ref[T]) MarshalWire(w *wire.Writer) {
	w.Segment(r.id)
	w.Segment(r.key)
}

// UnmarshalWire reads the id and storage key. Pointing the reference at a
// different entity drops its cached resolution and its queued
// continuations; a delivery for the old target is then ignored.
func (r *Ref[T]) UnmarshalWire(rd *wire.Reader) error {
	var v entity.RefValue
	if err := v.UnmarshalWire(rd); err != nil {
		return err
	}
	if v.ID == r.id && v.StorageKey == r.key {
		return nil
	}
	r.id, r.key = v.ID, v.StorageKey
	r.entity = r.newT()
	r.state = Unresolved
	r.conts = nil
	r.gen++
	return nil
}

// Value returns the reference as a reference field payload.
func (r *Ref[T]) Value() entity.RefValue {
	return entity.RefValue{ID: r.id, StorageKey: r.key}
}

// Decode reads a reference from its wire form, e.g. "3:idX|4:keyX|".
func Decode[T entity.Entity](src string, newT func() T) (*Ref[T], error) {
	r := New(newT)
	if err := wire.Decode(src, r, "Ref"); err != nil {
		return nil, err
	}
	return r, nil
}
