package particle

import (
	"fmt"

	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/errors"
	"github.com/wippyai/particle-runtime/handle"
	"github.com/wippyai/particle-runtime/reference"
	"github.com/wippyai/particle-runtime/service"
	"go.uber.org/zap"
)

// State is the dispatcher lifecycle state.
type State uint8

const (
	Constructed State = iota
	Initialized
	Running
	Disposed
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "constructed"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Dispatcher routes host events to one particle's hooks. It is not safe
// for concurrent use; the host must serialize calls.
type Dispatcher struct {
	p         Particle
	b         *Base
	host      Host
	id        string
	state     State
	allSynced bool
}

// Attach binds p to host under the given particle id and moves it to
// Initialized. It fails if p registered a duplicate handle name or is
// already attached.
func Attach(id string, p Particle, host Host) (*Dispatcher, error) {
	if p == nil || host == nil {
		return nil, errors.InvalidInput(errors.PhaseRegister, "particle and host are required")
	}
	b := p.base()
	if b.table != nil {
		return nil, errors.InvalidState(errors.PhaseRegister, "attach", Initialized.String())
	}
	if b.regErr != nil {
		return nil, b.regErr
	}

	d := &Dispatcher{p: p, b: b, host: host, id: id}
	b.id = id
	b.table = reference.NewTable(host)
	b.broker = service.NewBroker(host, d.serviceResponse)
	b.renderer.Bind(host, source{d})
	for _, name := range b.order {
		b.handles[name].Attach(handle.Binding{
			Owner:  id,
			Sink:   host,
			Table:  b.table,
			Reject: d.reject,
		})
	}
	d.state = Initialized

	Logger().Debug("particle attached",
		zap.String("particle", id),
		zap.Strings("handles", b.order))
	return d, nil
}

// ID returns the particle id.
func (d *Dispatcher) ID() string { return d.id }

// Particle returns the dispatched particle.
func (d *Dispatcher) Particle() Particle { return d.p }

// State returns the lifecycle state.
func (d *Dispatcher) State() State { return d.state }

// AllSynced reports whether the all-synced notification has been sent.
func (d *Dispatcher) AllSynced() bool { return d.allSynced }

// Handle returns the handle registered under name.
func (d *Dispatcher) Handle(name string) (handle.Handle, error) {
	return d.b.Handle(name)
}

// PendingReferences returns entities with dereference requests in flight.
func (d *Dispatcher) PendingReferences() []reference.Key {
	return d.b.table.Pending()
}

// PendingServices returns the tags of unanswered service calls.
func (d *Dispatcher) PendingServices() []string {
	return d.b.broker.Pending()
}

// Connect records the access the host grants on a handle.
func (d *Dispatcher) Connect(name string, mode handle.Mode) error {
	if d.state != Initialized && d.state != Running {
		return errors.InvalidState(errors.PhaseConnect, "connect", d.state.String())
	}
	h, ok := d.b.handles[name]
	if !ok {
		return errors.UnregisteredHandle(errors.PhaseConnect, name)
	}
	h.Connect(mode)
	return nil
}

// Init runs the Initializer hook and moves the particle to Running.
func (d *Dispatcher) Init() error {
	if d.state != Initialized {
		return errors.InvalidState(errors.PhaseDispatch, "init", d.state.String())
	}
	d.state = Running
	if h, ok := d.p.(Initializer); ok {
		return d.guard("init", h.Init)
	}
	return nil
}

// SyncHandle delivers a full snapshot for name and runs the HandleSyncer
// hook.
func (d *Dispatcher) SyncHandle(name, encoded string) error {
	h, err := d.running("sync", name)
	if err != nil {
		return err
	}
	if err := h.Sync(encoded); err != nil {
		return err
	}

	completed := false
	if !d.allSynced && d.inSyncSet(h) && d.syncSetComplete() {
		d.allSynced = true
		completed = true
	}

	if hook, ok := d.p.(HandleSyncer); ok {
		if err := d.guard("sync", func() { hook.OnHandleSync(name, completed) }); err != nil {
			return err
		}
	}
	if completed {
		return d.autoRender()
	}
	return nil
}

// UpdateHandle delivers a change for name and runs the HandleUpdater hook.
func (d *Dispatcher) UpdateHandle(name, encoded1, encoded2 string) error {
	h, err := d.running("update", name)
	if err != nil {
		return err
	}
	if err := h.Update(encoded1, encoded2); err != nil {
		return err
	}
	if hook, ok := d.p.(HandleUpdater); ok {
		if err := d.guard("update", func() { hook.OnHandleUpdate(name) }); err != nil {
			return err
		}
	}
	return d.autoRender()
}

// FireEvent delivers a slot interaction event.
func (d *Dispatcher) FireEvent(slotName, handler string) error {
	if d.state != Running {
		return errors.InvalidState(errors.PhaseDispatch, "event", d.state.String())
	}
	if hook, ok := d.p.(EventHandler); ok {
		return d.guard("event", func() { hook.FireEvent(slotName, handler) })
	}
	return nil
}

// Template returns the particle's template for slotName.
func (d *Dispatcher) Template(slotName string) (string, error) {
	if d.state != Initialized && d.state != Running {
		return "", errors.InvalidState(errors.PhaseRender, "template", d.state.String())
	}
	var out string
	err := d.guard("template", func() { out = d.template(slotName) })
	return out, err
}

// Model returns the particle's model for slotName.
func (d *Dispatcher) Model(slotName string) (particleruntime.Dictionary, error) {
	if d.state != Initialized && d.state != Running {
		return nil, errors.InvalidState(errors.PhaseRender, "model", d.state.String())
	}
	var out particleruntime.Dictionary
	err := d.guard("model", func() { out = d.model(slotName) })
	return out, err
}

// DeliverReference hands a dereferenced entity to the references waiting
// on (id, storageKey).
func (d *Dispatcher) DeliverReference(id, storageKey, encoded string) error {
	if d.state != Running {
		return errors.InvalidState(errors.PhaseResolve, "dereference", d.state.String())
	}
	var derr error
	if err := d.guard("dereference", func() { derr = d.b.table.Deliver(id, storageKey, encoded) }); err != nil {
		return err
	}
	if derr != nil {
		Logger().Debug("reference delivery failed",
			zap.String("particle", d.id),
			zap.String("id", id),
			zap.String("storage_key", storageKey),
			zap.Error(derr))
	}
	return derr
}

// DeliverServiceResponse routes a service response by tag.
func (d *Dispatcher) DeliverServiceResponse(call string, payload particleruntime.Dictionary, tag string) error {
	if d.state != Running {
		return errors.InvalidState(errors.PhaseService, "service response", d.state.String())
	}
	var derr error
	if err := d.guard("service", func() { derr = d.b.broker.Deliver(call, payload, tag) }); err != nil {
		return err
	}
	if derr != nil {
		Logger().Debug("service response not routed",
			zap.String("particle", d.id),
			zap.String("call", call),
			zap.String("tag", tag),
			zap.Error(derr))
	}
	return derr
}

// Dispose runs the Disposer hook and makes the dispatcher terminal.
func (d *Dispatcher) Dispose() error {
	if d.state == Disposed {
		return errors.InvalidState(errors.PhaseDispatch, "dispose", d.state.String())
	}
	d.state = Disposed
	if h, ok := d.p.(Disposer); ok {
		return d.guard("dispose", h.Dispose)
	}
	return nil
}

func (d *Dispatcher) running(op, name string) (handle.Handle, error) {
	if d.state != Running {
		return nil, errors.InvalidState(errors.PhaseDispatch, op, d.state.String())
	}
	h, ok := d.b.handles[name]
	if !ok {
		return nil, errors.UnregisteredHandle(errors.PhaseDispatch, name)
	}
	return h, nil
}

// inSyncSet reports whether h counts toward all-synced: handles connected
// for reading, or every handle when the host connected none.
func (d *Dispatcher) inSyncSet(h handle.Handle) bool {
	if h.Mode().CanRead() {
		return true
	}
	return !d.anyConnected()
}

func (d *Dispatcher) anyConnected() bool {
	for _, h := range d.b.handles {
		if h.Mode() != handle.ModeNone {
			return true
		}
	}
	return false
}

func (d *Dispatcher) syncSetComplete() bool {
	for _, h := range d.b.handles {
		if d.inSyncSet(h) && !h.Synced() {
			return false
		}
	}
	return true
}

func (d *Dispatcher) autoRender() error {
	if !d.b.renderer.IsAuto() {
		return nil
	}
	return d.guard("render", d.b.renderer.Refresh)
}

func (d *Dispatcher) template(slotName string) string {
	if h, ok := d.p.(TemplateProvider); ok {
		return h.Template(slotName)
	}
	return ""
}

func (d *Dispatcher) model(slotName string) particleruntime.Dictionary {
	model := particleruntime.Dictionary{}
	if h, ok := d.p.(ModelProvider); ok {
		h.PopulateModel(slotName, model)
	}
	return model
}

func (d *Dispatcher) serviceResponse(call string, payload particleruntime.Dictionary, tag string) {
	if h, ok := d.p.(ServiceResponder); ok {
		h.ServiceResponse(call, payload, tag)
	}
}

func (d *Dispatcher) reject(err error) {
	Logger().Warn("handle write rejected",
		zap.String("particle", d.id),
		zap.Error(err))
}

// guard runs a hook, converting a panic into a dispatch error.
func (d *Dispatcher) guard(hook string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("particle hook panicked",
				zap.String("particle", d.id),
				zap.String("hook", hook),
				zap.Any("panic", r))
			err = errors.New(errors.PhaseDispatch, errors.KindInvalidState).
				Path(d.id, hook).
				Value(r).
				Detail("hook panicked: %s", fmt.Sprint(r)).
				Build()
		}
	}()
	fn()
	return nil
}

// source feeds the slot renderer from the particle's providers.
type source struct{ d *Dispatcher }

func (s source) Template(slotName string) string { return s.d.template(slotName) }

func (s source) Model(slotName string) particleruntime.Dictionary { return s.d.model(slotName) }
