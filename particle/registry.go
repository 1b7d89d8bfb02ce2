package particle

import (
	"sort"
	"sync"

	"github.com/wippyai/particle-runtime/errors"
)

// Factory constructs a fresh particle. Constructors register handles and
// may enable auto-render; they must not talk to the host.
type Factory func() Particle

// The single process-wide factory table.
var registry = struct {
	mu        sync.RWMutex
	factories map[string]Factory
}{factories: make(map[string]Factory)}

// Register adds a particle type.
func Register(typeName string, f Factory) error {
	if typeName == "" || f == nil {
		return errors.InvalidInput(errors.PhaseRegister, "particle type name and factory are required")
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, ok := registry.factories[typeName]; ok {
		return errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Value(typeName).
			Detail("particle type %q already registered", typeName).
			Build()
	}
	registry.factories[typeName] = f
	return nil
}

// MustRegister is Register that panics on error, for package setup code.
func MustRegister(typeName string, f Factory) {
	if err := Register(typeName, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for typeName.
func Lookup(typeName string) (Factory, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	f, ok := registry.factories[typeName]
	return f, ok
}

// Create constructs a particle of typeName.
func Create(typeName string) (Particle, error) {
	f, ok := Lookup(typeName)
	if !ok {
		return nil, errors.UnknownParticle(typeName)
	}
	p := f()
	if p == nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Value(typeName).
			Detail("factory for %q returned nil", typeName).
			Build()
	}
	return p, nil
}

// Unregister removes a particle type.
func Unregister(typeName string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.factories, typeName)
}

// Reset removes every registered type.
func Reset() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	clear(registry.factories)
}

// Types returns the registered type names, sorted.
func Types() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	out := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
