package store

import (
	"sync"

	"github.com/wippyai/particle-runtime/errors"
)

type entry struct {
	encoded string
	version uint64
}

// Store is an in-memory entity store with observer support.
type Store struct {
	entries   map[Key]entry
	order     []Key
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

// New creates an empty store.
func New() *Store {
	return &Store{entries: make(map[Key]entry)}
}

// Put stores encoded under (storageKey, id) and returns its new version.
func (s *Store) Put(storageKey, id, encoded string) (uint64, error) {
	if id == "" {
		return 0, errors.InvalidInput(errors.PhaseHost, "entity id is empty")
	}
	k := Key{StorageKey: storageKey, ID: id}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, errors.InvalidState(errors.PhaseHost, "put", "closed")
	}
	e, ok := s.entries[k]
	if !ok {
		s.order = append(s.order, k)
	}
	e.encoded = encoded
	e.version++
	s.entries[k] = e
	s.mu.Unlock()

	s.notify(Event{Type: EventStored, Key: k, Encoded: encoded, Version: e.version})
	return e.version, nil
}

// Get returns the encoded entity at (storageKey, id).
func (s *Store) Get(storageKey, id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[Key{StorageKey: storageKey, ID: id}]
	return e.encoded, ok
}

// Version returns the number of writes to (storageKey, id), or 0.
func (s *Store) Version(storageKey, id string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[Key{StorageKey: storageKey, ID: id}].version
}

// Remove drops the entity at (storageKey, id).
func (s *Store) Remove(storageKey, id string) bool {
	k := Key{StorageKey: storageKey, ID: id}

	s.mu.Lock()
	e, ok := s.entries[k]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.entries, k)
	for i, o := range s.order {
		if o == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notify(Event{Type: EventRemoved, Key: k, Encoded: e.encoded, Version: e.version})
	return true
}

// List returns the encoded entities under storageKey in insertion order.
func (s *Store) List(storageKey string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, k := range s.order {
		if k.StorageKey == storageKey {
			out = append(out, s.entries[k].encoded)
		}
	}
	return out
}

// ClearKey drops every entity under storageKey.
func (s *Store) ClearKey(storageKey string) {
	s.mu.RLock()
	var ids []string
	for _, k := range s.order {
		if k.StorageKey == storageKey {
			ids = append(ids, k.ID)
		}
	}
	s.mu.RUnlock()
	for _, id := range ids {
		s.Remove(storageKey, id)
	}
}

// Keys returns every key in insertion order.
func (s *Store) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Key, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of stored entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe adds an observer.
func (s *Store) Subscribe(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

// Unsubscribe removes an observer. Function observers cannot be compared
// and are never removed.
func (s *Store) Unsubscribe(o Observer) {
	if _, isFunc := o.(ObserverFunc); isFunc {
		return
	}
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for i, obs := range s.observers {
		if _, isFunc := obs.(ObserverFunc); isFunc {
			continue
		}
		if obs == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// Close stops accepting writes.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) notify(e Event) {
	s.obsMu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.obsMu.RUnlock()
	for _, o := range observers {
		o.OnStoreEvent(e)
	}
}
