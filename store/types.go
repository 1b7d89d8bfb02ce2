package store

// Key identifies a stored entity.
type Key struct {
	StorageKey string
	ID         string
}

// EventType is the kind of store change.
type EventType uint8

const (
	EventStored EventType = iota
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventStored:
		return "stored"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event describes one store change.
type Event struct {
	Key     Key
	Encoded string
	Version uint64
	Type    EventType
}

// Observer receives store change notifications.
type Observer interface {
	OnStoreEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnStoreEvent(e Event) { f(e) }
