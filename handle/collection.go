package handle

import (
	"iter"
	"slices"

	"github.com/wippyai/particle-runtime/wire"
)

// Collection holds items keyed by id, in insertion order.
type Collection[T Item] struct {
	core
	newT  func() T
	items map[string]T
	local map[T]string
	order []string
	elem  string
}

// NewCollection creates an unbound collection of items built by newT.
func NewCollection[T Item](newT func() T) *Collection[T] {
	return &Collection[T]{
		newT:  newT,
		items: make(map[string]T),
		local: make(map[T]string),
		elem:  elemName(newT),
	}
}

// Attach binds the collection to its particle.
func (c *Collection[T]) Attach(b Binding) {
	c.core.Attach(b)
	for _, k := range c.order {
		c.adopt(c.items[k], false)
	}
}

// Len returns the number of members.
func (c *Collection[T]) Len() int { return len(c.order) }

// All yields the members present when All was called. Mutating the
// collection during iteration does not affect the running iteration.
func (c *Collection[T]) All() iter.Seq[T] {
	snap := c.Snapshot()
	return func(yield func(T) bool) {
		for _, v := range snap {
			if !yield(v) {
				return
			}
		}
	}
}

// Snapshot returns the members in insertion order.
func (c *Collection[T]) Snapshot() []T {
	out := make([]T, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.items[k])
	}
	return out
}

// Get returns the member with the given id.
func (c *Collection[T]) Get(id string) (T, bool) {
	v, ok := c.items[id]
	return v, ok
}

// Store adds v, replacing any member with the same id in place. Entities
// without an id are given a local one; items that cannot carry an id, such
// as empty references, are keyed by identity, so storing one twice keeps a
// single member.
func (c *Collection[T]) Store(v T) {
	apply, forward := c.permit("store")
	if !apply {
		return
	}
	c.adopt(v, true)
	c.put(c.keyOf(v), v)
	if forward {
		c.binding.Sink.CollectionStore(c.name, wire.Encode(v))
	}
}

// Remove drops the member with v's id, or v itself when it has no id.
func (c *Collection[T]) Remove(v T) {
	apply, forward := c.permit("remove")
	if !apply {
		return
	}
	if k, ok := c.lookup(v); ok {
		c.drop(k)
	}
	if forward {
		c.binding.Sink.CollectionRemove(c.name, wire.Encode(v))
	}
}

// Clear drops every member.
func (c *Collection[T]) Clear() {
	apply, forward := c.permit("clear")
	if !apply {
		return
	}
	clear(c.items)
	clear(c.local)
	c.order = c.order[:0]
	if forward {
		c.binding.Sink.CollectionClear(c.name)
	}
}

// Sync replaces the contents with a host snapshot list.
func (c *Collection[T]) Sync(encoded string) error {
	added, err := c.decodeList(encoded)
	if err != nil {
		return err
	}
	clear(c.items)
	clear(c.local)
	c.order = c.order[:0]
	for _, v := range added {
		c.put(c.keyOf(v), v)
	}
	c.synced = true
	return nil
}

// Update applies a host delta: encoded1 lists added members, encoded2 lists
// removed ones. Removals apply first.
func (c *Collection[T]) Update(encoded1, encoded2 string) error {
	added, err := c.decodeList(encoded1)
	if err != nil {
		return err
	}
	removed, err := c.decodeList(encoded2)
	if err != nil {
		return err
	}
	for _, v := range removed {
		c.drop(v.ID())
	}
	for _, v := range added {
		c.put(c.keyOf(v), v)
	}
	return nil
}

// Encode returns the members as a segment list.
func (c *Collection[T]) Encode() string {
	items := make([]string, 0, len(c.order))
	for _, k := range c.order {
		items = append(items, wire.Encode(c.items[k]))
	}
	return wire.EncodeList(items)
}

func (c *Collection[T]) Describe() string {
	return "Collection[" + c.elem + "]"
}

func (c *Collection[T]) decodeList(encoded string) ([]T, error) {
	if encoded == "" {
		return nil, nil
	}
	list, err := wire.DecodeList(encoded, c.name)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(list))
	for _, src := range list {
		v := c.newT()
		if err := wire.Decode(src, v, c.name); err != nil {
			return nil, err
		}
		c.adopt(v, false)
		out = append(out, v)
	}
	return out, nil
}

// keyOf returns the map key for v. Items that cannot carry an id, such as
// empty references, get a local key the first time they are seen.
func (c *Collection[T]) keyOf(v T) string {
	if k, ok := c.lookup(v); ok {
		return k
	}
	k := c.localID()
	c.local[v] = k
	return k
}

// lookup returns the key v is stored under without assigning one.
func (c *Collection[T]) lookup(v T) (string, bool) {
	if k, ok := c.local[v]; ok {
		return k, true
	}
	if id := v.ID(); id != "" {
		return id, true
	}
	return "", false
}

func (c *Collection[T]) put(key string, v T) {
	if _, ok := c.items[key]; !ok {
		c.order = append(c.order, key)
	}
	c.items[key] = v
}

func (c *Collection[T]) drop(id string) {
	v, ok := c.items[id]
	if !ok {
		return
	}
	delete(c.items, id)
	if c.local[v] == id {
		delete(c.local, v)
	}
	if i := slices.Index(c.order, id); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
}
