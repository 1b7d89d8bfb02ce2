package services

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/errors"
)

// Provider answers one service call.
type Provider interface {
	Namespace() string
	Call(ctx context.Context, args particleruntime.Dictionary) (particleruntime.Dictionary, error)
}

// Registry maps call names to providers.
type Registry struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewRegistry creates a registry holding ps.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Default returns a registry with the random and clock providers.
func Default() *Registry {
	return NewRegistry(NewRandomHost(time.Now().UnixNano()), NewClockHost(time.Now))
}

// Register adds or replaces the provider for p.Namespace().
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Namespace()] = p
}

// Lookup returns the provider for call.
func (r *Registry) Lookup(call string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[call]
	return p, ok
}

// Names returns the registered call names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Call runs the provider for call.
func (r *Registry) Call(ctx context.Context, call string, args particleruntime.Dictionary) (particleruntime.Dictionary, error) {
	p, ok := r.Lookup(call)
	if !ok {
		return nil, errors.NotFound(errors.PhaseService, "service", call)
	}
	return p.Call(ctx, args)
}

// RandomHost answers random.next with a float in [0,1).
type RandomHost struct {
	rng *rand.Rand
	mu  sync.Mutex
}

func NewRandomHost(seed int64) *RandomHost {
	return &RandomHost{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // not for security use
}

func (h *RandomHost) Namespace() string {
	return "random.next"
}

func (h *RandomHost) Call(_ context.Context, _ particleruntime.Dictionary) (particleruntime.Dictionary, error) {
	h.mu.Lock()
	v := h.rng.Float64()
	h.mu.Unlock()
	return particleruntime.Dictionary{"value": strconv.FormatFloat(v, 'g', -1, 64)}, nil
}

// ClockHost answers clock.now in the requested time unit.
type ClockHost struct {
	now func() time.Time
}

func NewClockHost(now func() time.Time) *ClockHost {
	if now == nil {
		now = time.Now
	}
	return &ClockHost{now: now}
}

func (h *ClockHost) Namespace() string {
	return "clock.now"
}

var units = map[string]time.Duration{
	"NANOSECONDS":  time.Nanosecond,
	"MICROSECONDS": time.Microsecond,
	"MILLISECONDS": time.Millisecond,
	"SECONDS":      time.Second,
	"MINUTES":      time.Minute,
	"HOURS":        time.Hour,
	"DAYS":         24 * time.Hour,
}

func (h *ClockHost) Call(_ context.Context, args particleruntime.Dictionary) (particleruntime.Dictionary, error) {
	unit := strings.ToUpper(args["timeUnit"])
	if unit == "" {
		unit = "MILLISECONDS"
	}
	d, ok := units[unit]
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseService, "unknown timeUnit "+strconv.Quote(args["timeUnit"]))
	}
	since := time.Duration(h.now().UnixNano())
	return particleruntime.Dictionary{"value": strconv.FormatInt(int64(since/d), 10)}, nil
}
