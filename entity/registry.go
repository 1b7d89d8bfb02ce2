package entity

import (
	"sort"
	"sync"

	"github.com/wippyai/particle-runtime/errors"
)

// Catalog maps schema names to schemas for code that builds entities by
// name (hosts, manifests). It is safe for concurrent use.
type Catalog struct {
	schemas map[string]*Schema
	mu      sync.RWMutex
}

// NewCatalog creates a catalog holding the given schemas.
func NewCatalog(schemas ...*Schema) (*Catalog, error) {
	c := &Catalog{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		if err := c.Register(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds s. Registering the same schema twice is a no-op; a
// different schema under the same name is an error.
func (c *Catalog) Register(s *Schema) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.schemas[s.Name]; ok {
		if existing == s {
			return nil
		}
		return errors.InvalidInput(errors.PhaseRegister, "schema "+s.Name+" already registered")
	}
	c.schemas[s.Name] = s
	return nil
}

// Lookup returns the schema registered under name.
func (c *Catalog) Lookup(name string) (*Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.schemas[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseConfig, "schema", name)
	}
	return s, nil
}

// Names returns the registered schema names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.schemas))
	for name := range c.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDynamic creates a bare record for schema, for code that has no typed
// entity at hand.
func NewDynamic(schema *Schema) *Record {
	r := NewRecord(schema)
	return &r
}
