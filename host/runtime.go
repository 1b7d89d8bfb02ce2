package host

import (
	"context"
	"strings"
	"sync"

	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/errors"
	"github.com/wippyai/particle-runtime/handle"
	"github.com/wippyai/particle-runtime/host/services"
	"github.com/wippyai/particle-runtime/particle"
	"github.com/wippyai/particle-runtime/store"
	"github.com/wippyai/particle-runtime/wire"
	"go.uber.org/zap"
)

// Guest is the inbound surface of a particle. *particle.Dispatcher
// implements it directly; wasmhost implements it for wasm modules.
type Guest interface {
	Connect(name string, mode handle.Mode) error
	Init() error
	SyncHandle(name, encoded string) error
	UpdateHandle(name, encoded1, encoded2 string) error
	FireEvent(slot, handler string) error
	Template(slot string) (string, error)
	Model(slot string) (particleruntime.Dictionary, error)
	DeliverReference(id, storageKey, encoded string) error
	DeliverServiceResponse(call string, payload particleruntime.Dictionary, tag string) error
	Dispose() error
}

// Connection declares how the host uses one particle handle.
type Connection struct {
	Handle string      `toml:"handle"`
	Mode   handle.Mode `toml:"mode"`
	// StorageKey is where writes to the handle are stored. Defaults to the
	// handle name.
	StorageKey string `toml:"storage_key"`
	// Schema names the entity schema, for manifests.
	Schema string `toml:"schema"`
}

// Order selects how Pump drains queued requests.
type Order uint8

const (
	FIFO Order = iota
	LIFO
)

// Options configures a Runtime.
type Options struct {
	// ID is the particle id. Defaults to "particle".
	ID       string
	Store    *store.Store
	Services *services.Registry
	// URLs maps URL prefixes such as "$resolve-me" to their expansion.
	URLs map[string]string
}

type request struct {
	args particleruntime.Dictionary
	kind MessageKind
	id   string
	key  string
	call string
	tag  string
}

// Runtime is a reference host for one particle. Guest entry is serialized;
// requests the particle makes are queued until Pump.
//
// The particle.Host methods are called by the guest while the runtime
// holds its lock and must not be called from anywhere else.
type Runtime struct {
	guest    Guest
	store    *store.Store
	services *services.Registry
	urls     map[string]string
	conns    map[string]Connection
	id       string
	outbox   []Message
	queue    []request
	mu       sync.Mutex
}

// New creates a runtime. Missing options get defaults.
func New(opts Options) *Runtime {
	r := &Runtime{
		store:    opts.Store,
		services: opts.Services,
		urls:     opts.URLs,
		id:       opts.ID,
		conns:    make(map[string]Connection),
	}
	if r.store == nil {
		r.store = store.New()
	}
	if r.services == nil {
		r.services = services.Default()
	}
	if r.id == "" {
		r.id = "particle"
	}
	return r
}

// ID returns the particle id.
func (r *Runtime) ID() string { return r.id }

// Store returns the runtime's entity store.
func (r *Runtime) Store() *store.Store { return r.store }

// Start creates a particle from the registry, attaches it to the runtime,
// connects its handles, and runs init.
func (r *Runtime) Start(ctx context.Context, particleType string, conns []Connection) error {
	p, err := particle.Create(particleType)
	if err != nil {
		return err
	}
	d, err := particle.Attach(r.id, p, r)
	if err != nil {
		return err
	}
	return r.StartGuest(ctx, d, conns)
}

// StartGuest connects g's handles and runs init.
func (r *Runtime) StartGuest(ctx context.Context, g Guest, conns []Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.guest != nil {
		return errors.InvalidState(errors.PhaseHost, "start", "started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, c := range conns {
		if err := g.Connect(c.Handle, c.Mode); err != nil {
			return err
		}
		r.conns[c.Handle] = c
	}
	r.guest = g
	Logger().Debug("guest started",
		zap.String("particle", r.id),
		zap.Int("connections", len(conns)))
	return g.Init()
}

// Connection returns the declared connection for a handle.
func (r *Runtime) Connection(name string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[name]
	return c, ok
}

func (r *Runtime) enter() (Guest, error) {
	if r.guest == nil {
		return nil, errors.InvalidState(errors.PhaseHost, "call", "not started")
	}
	return r.guest, nil
}

// Sync delivers a full snapshot for a handle.
func (r *Runtime) Sync(name, encoded string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.enter()
	if err != nil {
		return err
	}
	return g.SyncHandle(name, encoded)
}

// Update delivers a change for a handle.
func (r *Runtime) Update(name, encoded1, encoded2 string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.enter()
	if err != nil {
		return err
	}
	return g.UpdateHandle(name, encoded1, encoded2)
}

// FireEvent delivers a slot interaction event.
func (r *Runtime) FireEvent(slot, handler string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.enter()
	if err != nil {
		return err
	}
	return g.FireEvent(slot, handler)
}

// Template queries the particle's template for a slot.
func (r *Runtime) Template(slot string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.enter()
	if err != nil {
		return "", err
	}
	return g.Template(slot)
}

// Model queries the particle's model for a slot.
func (r *Runtime) Model(slot string) (particleruntime.Dictionary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.enter()
	if err != nil {
		return nil, err
	}
	return g.Model(slot)
}

// Dispose disposes the guest.
func (r *Runtime) Dispose() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.enter()
	if err != nil {
		return err
	}
	return g.Dispose()
}

// Pump answers queued dereference and service requests, including those
// issued by the continuations it runs, and returns how many it delivered.
// Dereferences of entities missing from the store are dropped. Delivery
// errors are logged and the first one is returned after the queue drains.
func (r *Runtime) Pump(ctx context.Context, order Order) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.enter()
	if err != nil {
		return 0, err
	}

	delivered := 0
	var first error
	for len(r.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		var req request
		if order == LIFO {
			req = r.queue[len(r.queue)-1]
			r.queue = r.queue[:len(r.queue)-1]
		} else {
			req = r.queue[0]
			r.queue = r.queue[1:]
		}

		var derr error
		switch req.kind {
		case KindDereference:
			enc, ok := r.store.Get(req.key, req.id)
			if !ok {
				Logger().Warn("dereference of missing entity dropped",
					zap.String("storage_key", req.key),
					zap.String("id", req.id))
				continue
			}
			derr = g.DeliverReference(req.id, req.key, enc)
		case KindServiceRequest:
			payload, err := r.services.Call(ctx, req.call, req.args)
			if err != nil {
				payload = particleruntime.Dictionary{"error": err.Error()}
			}
			derr = g.DeliverServiceResponse(req.call, payload, req.tag)
		}
		delivered++
		if derr != nil {
			Logger().Debug("delivery failed", zap.String("kind", string(req.kind)), zap.Error(derr))
			if first == nil {
				first = derr
			}
		}
	}
	return delivered, first
}

// Pending returns the number of queued requests.
func (r *Runtime) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Outbox returns every recorded message.
func (r *Runtime) Outbox() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.outbox))
	copy(out, r.outbox)
	return out
}

// Drain returns the recorded messages and clears the outbox.
func (r *Runtime) Drain() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.outbox
	r.outbox = nil
	return out
}

func (r *Runtime) record(m Message) {
	r.outbox = append(r.outbox, m)
	Logger().Debug("particle call", zap.String("particle", r.id), zap.Stringer("message", m))
}

func (r *Runtime) storageKey(name string) string {
	if c, ok := r.conns[name]; ok && c.StorageKey != "" {
		return c.StorageKey
	}
	return name
}

// leadingID returns the first segment of an encoded entity or reference.
func leadingID(encoded string) string {
	id, err := wire.NewReader(encoded).Next()
	if err != nil {
		return ""
	}
	return id
}

func (r *Runtime) put(name, encoded string) {
	id := leadingID(encoded)
	if id == "" {
		return
	}
	if _, err := r.store.Put(r.storageKey(name), id, encoded); err != nil {
		Logger().Warn("store write failed", zap.String("handle", name), zap.Error(err))
	}
}

func (r *Runtime) SingletonSet(name, encoded string) {
	r.record(Message{Kind: KindSingletonSet, Handle: name, Encoded: encoded})
	r.store.ClearKey(r.storageKey(name))
	r.put(name, encoded)
}

func (r *Runtime) SingletonClear(name string) {
	r.record(Message{Kind: KindSingletonClear, Handle: name})
	r.store.ClearKey(r.storageKey(name))
}

func (r *Runtime) CollectionStore(name, encoded string) {
	r.record(Message{Kind: KindCollectionStore, Handle: name, Encoded: encoded})
	r.put(name, encoded)
}

func (r *Runtime) CollectionRemove(name, encoded string) {
	r.record(Message{Kind: KindCollectionRemove, Handle: name, Encoded: encoded})
	if id := leadingID(encoded); id != "" {
		r.store.Remove(r.storageKey(name), id)
	}
}

func (r *Runtime) CollectionClear(name string) {
	r.record(Message{Kind: KindCollectionClear, Handle: name})
	r.store.ClearKey(r.storageKey(name))
}

func (r *Runtime) Render(slot, template string, model particleruntime.Dictionary) {
	r.record(Message{Kind: KindRender, Slot: slot, Template: template, Model: model.Clone()})
}

func (r *Runtime) Dereference(id, storageKey string) {
	r.record(Message{Kind: KindDereference, ID: id, StorageKey: storageKey})
	r.queue = append(r.queue, request{kind: KindDereference, id: id, key: storageKey})
}

func (r *Runtime) ServiceRequest(call string, args particleruntime.Dictionary, tag string) {
	r.record(Message{Kind: KindServiceRequest, Call: call, Args: args.Clone(), Tag: tag})
	r.queue = append(r.queue, request{kind: KindServiceRequest, call: call, args: args.Clone(), tag: tag})
}

// ResolveURL expands the longest matching URL prefix.
func (r *Runtime) ResolveURL(url string) string {
	r.record(Message{Kind: KindResolveURL, URL: url})
	best := ""
	for prefix := range r.urls {
		if strings.HasPrefix(url, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return url
	}
	return r.urls[best] + url[len(best):]
}

var _ particle.Host = (*Runtime)(nil)
