package particle

import (
	"fmt"

	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/errors"
	"github.com/wippyai/particle-runtime/handle"
	"github.com/wippyai/particle-runtime/reference"
	"github.com/wippyai/particle-runtime/service"
	"github.com/wippyai/particle-runtime/slot"
	"go.uber.org/zap"
)

// Host is the outbound surface a particle talks to.
type Host interface {
	handle.Sink
	reference.Requester
	service.Transport
	slot.Sink
}

// Particle is implemented by embedding Base.
type Particle interface {
	base() *Base
}

// Hooks. A particle implements only the ones it needs.
type (
	Initializer interface {
		Init()
	}
	HandleSyncer interface {
		OnHandleSync(name string, allSynced bool)
	}
	HandleUpdater interface {
		OnHandleUpdate(name string)
	}
	EventHandler interface {
		FireEvent(slot, handler string)
	}
	ServiceResponder interface {
		ServiceResponse(call string, payload particleruntime.Dictionary, tag string)
	}
	TemplateProvider interface {
		Template(slot string) string
	}
	ModelProvider interface {
		PopulateModel(slot string, model particleruntime.Dictionary)
	}
	Disposer interface {
		Dispose()
	}
)

// Base carries a particle's handles and its runtime services.
type Base struct {
	handles  map[string]handle.Handle
	order    []string
	regErr   error
	renderer slot.Renderer
	broker   *service.Broker
	table    *reference.Table
	id       string
}

func (b *Base) base() *Base { return b }

// RegisterHandle binds h to name. It must be called from the particle's
// constructor; a duplicate name makes Attach fail.
func (b *Base) RegisterHandle(name string, h handle.Handle) {
	if b.handles == nil {
		b.handles = make(map[string]handle.Handle)
	}
	if _, dup := b.handles[name]; dup {
		if b.regErr == nil {
			b.regErr = errors.DuplicateHandle(name)
		}
		return
	}
	if err := h.Bind(name); err != nil {
		if b.regErr == nil {
			b.regErr = err
		}
		return
	}
	b.handles[name] = h
	b.order = append(b.order, name)
}

// AutoRender makes the dispatcher re-render the given slots, or the root
// slot when none is given, after input changes.
func (b *Base) AutoRender(slots ...string) {
	if len(slots) == 0 {
		b.renderer.Auto(slot.DefaultSlot)
		return
	}
	for _, s := range slots {
		b.renderer.Auto(s)
	}
}

// RenderSlot sends slot to the host with the requested parts.
func (b *Base) RenderSlot(name string, sendTemplate, sendModel bool) {
	if !b.renderer.Render(name, sendTemplate, sendModel) {
		Logger().Warn("render before attach dropped", zap.String("slot", name))
	}
}

// ServiceRequest issues a fire-and-forget call and returns its tag. The
// response arrives on the ServiceResponder hook.
func (b *Base) ServiceRequest(call string, args particleruntime.Dictionary, tag string) string {
	return b.ServiceRequestFunc(call, args, tag, nil)
}

// ServiceRequestFunc is ServiceRequest with a per-call response handler.
func (b *Base) ServiceRequestFunc(call string, args particleruntime.Dictionary, tag string, fn service.Handler) string {
	if b.broker == nil {
		Logger().Warn("service request before attach dropped", zap.String("call", call))
		return ""
	}
	return b.broker.CallFunc(call, args, tag, fn)
}

// ResolveURL asks the host to resolve url and returns the answer.
func (b *Base) ResolveURL(url string) string {
	if b.broker == nil {
		return url
	}
	return b.broker.ResolveURL(url)
}

// Handle returns the handle registered under name.
func (b *Base) Handle(name string) (handle.Handle, error) {
	h, ok := b.handles[name]
	if !ok {
		return nil, errors.UnregisteredHandle(errors.PhaseDispatch, name)
	}
	return h, nil
}

// HandleNames returns the registered names in registration order.
func (b *Base) HandleNames() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// ParticleID returns the id assigned at attach time.
func (b *Base) ParticleID() string { return b.id }

// GetSingleton returns the singleton registered under name with item type T.
func GetSingleton[T handle.Item](p Particle, name string) (*handle.Singleton[T], error) {
	h, err := p.base().Handle(name)
	if err != nil {
		return nil, err
	}
	s, ok := h.(*handle.Singleton[T])
	if !ok {
		var zero T
		return nil, errors.TypeMismatch(errors.PhaseDispatch, []string{name},
			fmt.Sprintf("Singleton[%T]", zero), h.Describe())
	}
	return s, nil
}

// GetCollection returns the collection registered under name with item
// type T.
func GetCollection[T handle.Item](p Particle, name string) (*handle.Collection[T], error) {
	h, err := p.base().Handle(name)
	if err != nil {
		return nil, err
	}
	c, ok := h.(*handle.Collection[T])
	if !ok {
		var zero T
		return nil, errors.TypeMismatch(errors.PhaseDispatch, []string{name},
			fmt.Sprintf("Collection[%T]", zero), h.Describe())
	}
	return c, nil
}
