package handle

import (
	"fmt"
	"strconv"

	"github.com/wippyai/particle-runtime/errors"
	"github.com/wippyai/particle-runtime/reference"
	"github.com/wippyai/particle-runtime/wire"
)

// Item is anything a handle can hold: an entity or a reference. Items are
// pointers, so a collection can key members that carry no id by identity.
type Item interface {
	comparable
	wire.Marshaler
	wire.Unmarshaler
	ID() string
}

// Sink receives outbound handle writes, already wire-encoded.
type Sink interface {
	SingletonSet(handle, encoded string)
	SingletonClear(handle string)
	CollectionStore(handle, encoded string)
	CollectionRemove(handle, encoded string)
	CollectionClear(handle string)
}

// Binding ties a registered handle to its particle.
type Binding struct {
	// Owner is the particle id used to build local entity ids.
	Owner string
	Sink  Sink
	// Table resolves references held by the handle.
	Table *reference.Table
	// Reject is called with the error for each write refused by the
	// connection mode. May be nil.
	Reject func(err error)
}

// Handle is the untyped view the dispatcher uses.
type Handle interface {
	Name() string
	// Bind names the handle. A handle can be bound only once.
	Bind(name string) error
	Attach(b Binding)
	Connect(m Mode)
	Mode() Mode
	// Synced reports whether at least one snapshot was delivered.
	Synced() bool
	Sync(encoded string) error
	Update(encoded1, encoded2 string) error
	// Encode returns the current contents in snapshot encoding.
	Encode() string
	// Describe names the handle's Go type, for diagnostics.
	Describe() string
}

type identifiable interface {
	SetID(id string)
}

type attachable interface {
	Attach(t *reference.Table)
}

type core struct {
	name    string
	binding Binding
	mode    Mode
	synced  bool
	seq     int
}

func (c *core) Name() string { return c.name }

func (c *core) Bind(name string) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseRegister, "handle name is empty")
	}
	if c.name != "" {
		return errors.New(errors.PhaseRegister, errors.KindInvalidState).
			Path(name).
			Detail("handle already registered as %q", c.name).
			Build()
	}
	c.name = name
	return nil
}

func (c *core) Attach(b Binding) { c.binding = b }

func (c *core) Connect(m Mode) { c.mode = m }

func (c *core) Mode() Mode { return c.mode }

func (c *core) Synced() bool { return c.synced }

// permit decides what happens to a local write. apply is false when the
// write is refused; forward is true when the host sink should see it.
func (c *core) permit(op string) (apply, forward bool) {
	switch {
	case c.mode == ModeNone || c.binding.Sink == nil:
		return true, false
	case c.mode.CanWrite():
		return true, true
	}
	if c.binding.Reject != nil {
		c.binding.Reject(errors.Permission(errors.PhaseDispatch, c.name, op))
	}
	return false, false
}

// localID returns the next particle-local entity id for this handle.
func (c *core) localID() string {
	c.seq++
	return "!" + c.binding.Owner + ":" + c.name + ":" + strconv.Itoa(c.seq)
}

// adopt prepares an item entering the handle: entities without an id get
// a local one and references are bound to the particle's table.
func (c *core) adopt(v any, local bool) {
	if local {
		if e, ok := v.(interface{ ID() string }); ok && e.ID() == "" {
			if s, ok := v.(identifiable); ok {
				s.SetID(c.localID())
			}
		}
	}
	if a, ok := v.(attachable); ok && c.binding.Table != nil {
		a.Attach(c.binding.Table)
	}
}

func elemName[T any](newT func() T) string {
	return fmt.Sprintf("%T", newT())
}
