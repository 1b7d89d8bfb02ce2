package handle

import (
	"github.com/wippyai/particle-runtime/wire"
)

// Singleton holds zero or one item.
type Singleton[T Item] struct {
	core
	newT  func() T
	value T
	empty T
	set   bool
	elem  string
}

// NewSingleton creates an unbound singleton of items built by newT.
func NewSingleton[T Item](newT func() T) *Singleton[T] {
	return &Singleton[T]{
		newT:  newT,
		empty: newT(),
		elem:  elemName(newT),
	}
}

// Attach binds the singleton to its particle.
func (s *Singleton[T]) Attach(b Binding) {
	s.core.Attach(b)
	s.adopt(s.empty, false)
	if s.set {
		s.adopt(s.value, false)
	}
}

// Get returns the current value, or an empty item when nothing is set.
func (s *Singleton[T]) Get() T {
	if !s.set {
		return s.empty
	}
	return s.value
}

// IsSet reports whether the singleton holds a value.
func (s *Singleton[T]) IsSet() bool { return s.set }

// Set replaces the current value. The singleton keeps v; callers should
// not modify it afterwards.
func (s *Singleton[T]) Set(v T) {
	apply, forward := s.permit("set")
	if !apply {
		return
	}
	s.adopt(v, true)
	s.value, s.set = v, true
	if forward {
		s.binding.Sink.SingletonSet(s.name, wire.Encode(v))
	}
}

// Clear drops the current value.
func (s *Singleton[T]) Clear() {
	apply, forward := s.permit("clear")
	if !apply {
		return
	}
	s.reset()
	if forward {
		s.binding.Sink.SingletonClear(s.name)
	}
}

func (s *Singleton[T]) reset() {
	var zero T
	s.value, s.set = zero, false
	s.empty = s.newT()
	s.adopt(s.empty, false)
}

// Sync replaces the value with a host snapshot. An empty snapshot clears it.
func (s *Singleton[T]) Sync(encoded string) error {
	if err := s.load(encoded); err != nil {
		return err
	}
	s.synced = true
	return nil
}

// Update applies a host change. The second argument is unused for
// singletons.
func (s *Singleton[T]) Update(encoded, _ string) error {
	return s.load(encoded)
}

func (s *Singleton[T]) load(encoded string) error {
	if encoded == "" {
		s.reset()
		return nil
	}
	v := s.newT()
	if err := wire.Decode(encoded, v, s.name); err != nil {
		return err
	}
	s.adopt(v, false)
	s.value, s.set = v, true
	return nil
}

// Encode returns the encoded value, or the empty string when unset.
func (s *Singleton[T]) Encode() string {
	if !s.set {
		return ""
	}
	return wire.Encode(s.value)
}

func (s *Singleton[T]) Describe() string {
	return "Singleton[" + s.elem + "]"
}
