package wasmhost

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/errors"
	"github.com/wippyai/particle-runtime/handle"
	"github.com/wippyai/particle-runtime/internal/abi"
	"github.com/wippyai/particle-runtime/particle"
	"github.com/wippyai/particle-runtime/wire"
)

// Options selects the particle a module instance runs.
type Options struct {
	// Host receives the particle's outbound calls.
	Host particle.Host
	// Type is the particle type registered inside the module.
	Type string
	// ID is the particle id.
	ID string
}

// Guest drives a particle running inside a wasm module. It implements
// host.Guest.
type Guest struct {
	ctx      context.Context
	instance api.Module
	memory   *Memory
	alloc    *allocator
	call     *call
	funcs    map[string]api.Function
	mu       sync.Mutex
}

// Load compiles wasmBytes, instantiates it, and creates the particle
// named by opts.Type inside it. ctx is used for every later guest call.
func (e *Engine) Load(ctx context.Context, wasmBytes []byte, opts Options) (*Guest, error) {
	if opts.Host == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "no host for particle module")
	}
	if err := e.init(ctx); err != nil {
		return nil, errors.Load("engine init failed", err)
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile failed", err)
	}
	exports := compiled.ExportedFunctions()
	for _, name := range abi.RequiredExports {
		if _, ok := exports[name]; !ok {
			_ = compiled.Close(ctx)
			return nil, errors.Load(fmt.Sprintf("module does not export %s", name), nil)
		}
	}

	// Go wasip1 reactors run their runtime setup from _initialize.
	modConfig := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize")
	instance, err := e.runtime.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		return nil, errors.Load("instantiate failed", err)
	}
	if instance.Memory() == nil {
		_ = instance.Close(ctx)
		return nil, errors.Load("module has no memory", nil)
	}

	g := &Guest{
		instance: instance,
		memory:   &Memory{mem: instance.Memory()},
		call:     &call{host: opts.Host, id: opts.ID},
		funcs:    make(map[string]api.Function, len(abi.RequiredExports)),
	}
	g.ctx = withCall(ctx, g.call)
	for _, name := range abi.RequiredExports {
		g.funcs[name] = instance.ExportedFunction(name)
	}
	g.alloc = &allocator{ctx: g.ctx, allocFn: g.funcs[abi.ExportAlloc], freeFn: g.funcs[abi.ExportFree]}

	if _, err := g.invoke(abi.ExportCreate, nil, opts.Type, opts.ID); err != nil {
		_ = instance.Close(ctx)
		return nil, err
	}
	Logger().Debug("particle module loaded",
		zap.String("type", opts.Type),
		zap.String("particle", opts.ID),
		zap.Uint32("memory", g.memory.Size()))
	return g, nil
}

// Memory returns the guest's linear memory.
func (g *Guest) Memory() *Memory { return g.memory }

// Close releases the module instance.
func (g *Guest) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.instance == nil {
		return nil
	}
	err := g.instance.Close(ctx)
	g.instance = nil
	return err
}

func (g *Guest) Connect(name string, mode handle.Mode) error {
	_, err := g.invoke(abi.ExportConnect, []uint64{uint64(mode)}, name)
	return err
}

func (g *Guest) Init() error {
	_, err := g.invoke(abi.ExportInit, nil)
	return err
}

func (g *Guest) SyncHandle(name, encoded string) error {
	_, err := g.invoke(abi.ExportSync, nil, name, encoded)
	return err
}

func (g *Guest) UpdateHandle(name, encoded1, encoded2 string) error {
	_, err := g.invoke(abi.ExportUpdate, nil, name, encoded1, encoded2)
	return err
}

func (g *Guest) FireEvent(slot, handler string) error {
	_, err := g.invoke(abi.ExportEvent, nil, slot, handler)
	return err
}

func (g *Guest) Template(slot string) (string, error) {
	return g.invoke(abi.ExportTemplate, nil, slot)
}

func (g *Guest) Model(slot string) (particleruntime.Dictionary, error) {
	enc, err := g.invoke(abi.ExportModel, nil, slot)
	if err != nil {
		return nil, err
	}
	return wire.DecodeDictionary(enc, "model")
}

func (g *Guest) DeliverReference(id, storageKey, encoded string) error {
	_, err := g.invoke(abi.ExportDeliverReference, nil, id, storageKey, encoded)
	return err
}

func (g *Guest) DeliverServiceResponse(call string, payload particleruntime.Dictionary, tag string) error {
	_, err := g.invoke(abi.ExportDeliverService, nil, call, wire.EncodeDictionary(payload), tag)
	return err
}

func (g *Guest) Dispose() error {
	_, err := g.invoke(abi.ExportDispose, nil)
	return err
}

// invoke copies args into guest memory, calls the export with the string
// pairs followed by extra, and decodes the returned result.
func (g *Guest) invoke(name string, extra []uint64, args ...string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.instance == nil {
		return "", errors.InvalidState(errors.PhaseHost, name, "closed")
	}

	stack := make([]uint64, 0, 2*len(args)+len(extra))
	var owned []uint32
	defer func() {
		for _, ptr := range owned {
			g.alloc.Free(ptr)
		}
	}()
	for _, s := range args {
		if s == "" {
			stack = append(stack, 0, 0)
			continue
		}
		ptr, err := g.alloc.Alloc(uint32(len(s)))
		if err != nil {
			return "", errors.Wrap(errors.PhaseHost, errors.KindInvalidState, err, name)
		}
		owned = append(owned, ptr)
		if err := g.memory.Write(ptr, []byte(s)); err != nil {
			return "", errors.Wrap(errors.PhaseHost, errors.KindInvalidState, err, name)
		}
		stack = append(stack, api.EncodeU32(ptr), api.EncodeU32(uint32(len(s))))
	}
	stack = append(stack, extra...)

	out, err := g.funcs[name].Call(g.ctx, stack...)
	if err != nil {
		Logger().Error("guest call trapped", zap.String("export", name), zap.Error(err))
		return "", errors.Wrap(errors.PhaseDispatch, errors.KindInvalidState, err, name+" trapped")
	}
	if len(out) == 0 || out[0] == 0 {
		return "", nil
	}

	ptr, length := abi.Unpack(out[0])
	enc, err := g.memory.ReadString(ptr, length)
	g.alloc.Free(ptr)
	if err != nil {
		return "", errors.Wrap(errors.PhaseHost, errors.KindInvalidData, err, name+" result")
	}
	var res abi.Result
	if err := wire.Decode(enc, &res, name); err != nil {
		return "", err
	}
	return res.Value, res.Err()
}
