// Package store provides the reference host's entity storage.
//
// Entities are kept wire-encoded and keyed by storage key and id. The host
// writes particle output here and answers dereference requests from it:
//
//	s := store.New()
//	s.Put("keyX", "idX", encoded)
//	enc, ok := s.Get("keyX", "idX")
//
// # Observers
//
// Observers see every change, in order:
//
//	s.Subscribe(store.ObserverFunc(func(e store.Event) {
//	    switch e.Type {
//	    case store.EventStored:
//	        log.Printf("%s/%s v%d", e.Key.StorageKey, e.Key.ID, e.Version)
//	    case store.EventRemoved:
//	        log.Printf("%s/%s removed", e.Key.StorageKey, e.Key.ID)
//	    }
//	}))
//
// Observers run synchronously while the store is not locked, so they may
// read the store but should not block.
package store
