package reference

import (
	"github.com/wippyai/particle-runtime/errors"
)

// Requester is the host channel that receives dereference requests.
type Requester interface {
	Dereference(id, storageKey string)
}

// Key identifies a referenced entity.
type Key struct {
	ID         string
	StorageKey string
}

type waiter func(encoded string) error

// Table tracks in-flight dereference requests keyed by entity.
// It is owned by a single particle and is not safe for concurrent use.
type Table struct {
	requester Requester
	pending   map[Key][]waiter
	order     []Key
	requests  int
}

// NewTable creates a table that sends requests to r.
func NewTable(r Requester) *Table {
	return &Table{
		requester: r,
		pending:   make(map[Key][]waiter),
	}
}

// await registers w for k, sending a host request only when none is in flight.
func (t *Table) await(k Key, w waiter) {
	waiters, inFlight := t.pending[k]
	t.pending[k] = append(waiters, w)
	if inFlight {
		return
	}
	t.order = append(t.order, k)
	t.requests++
	t.requester.Dereference(k.ID, k.StorageKey)
}

// Deliver resolves every reference waiting on (id, storageKey) with the
// wire-encoded entity. It returns NotFound when nothing is waiting, and the
// first decode error otherwise; waiters that failed to decode stay
// unresolved and retry on their next dereference.
func (t *Table) Deliver(id, storageKey, encoded string) error {
	k := Key{ID: id, StorageKey: storageKey}
	waiters, ok := t.pending[k]
	if !ok {
		return errors.NotFound(errors.PhaseResolve, "pending dereference", storageKey+"/"+id)
	}
	delete(t.pending, k)
	for i, o := range t.order {
		if o == k {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}

	var first error
	for _, w := range waiters {
		if err := w(encoded); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Pending returns the keys with in-flight requests, oldest first.
func (t *Table) Pending() []Key {
	out := make([]Key, len(t.order))
	copy(out, t.order)
	return out
}

// InFlight reports whether a request for (id, storageKey) is outstanding.
func (t *Table) InFlight(id, storageKey string) bool {
	_, ok := t.pending[Key{ID: id, StorageKey: storageKey}]
	return ok
}

// Requests returns the number of host requests sent so far.
func (t *Table) Requests() int {
	return t.requests
}
