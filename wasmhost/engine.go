package wasmhost

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/errors"
	"github.com/wippyai/particle-runtime/internal/abi"
	"github.com/wippyai/particle-runtime/particle"
	"github.com/wippyai/particle-runtime/wire"
)

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// Engine compiles and instantiates particle modules. One engine can host
// many guests; each guest routes its host calls to its own particle.Host.
type Engine struct {
	runtime  wazero.Runtime
	initOnce sync.Once
	initErr  error
}

// NewEngine creates an engine. cfg may be nil.
func NewEngine(ctx context.Context, cfg *Config) *Engine {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &Engine{runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg)}
}

// Close releases every module the engine instantiated.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// init instantiates WASI and the particle_host module once per engine.
func (e *Engine) init(ctx context.Context) error {
	e.initOnce.Do(func() {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
			e.initErr = fmt.Errorf("instantiate WASI: %w", err)
			return
		}
		if _, err := hostModule(e.runtime.NewHostModuleBuilder(abi.HostModule)).Instantiate(ctx); err != nil {
			e.initErr = fmt.Errorf("instantiate %s: %w", abi.HostModule, err)
		}
	})
	return e.initErr
}

type callKey struct{}

// call is the per-guest state host functions reach through the context.
type call struct {
	host particle.Host
	id   string
}

func withCall(ctx context.Context, c *call) context.Context {
	return context.WithValue(ctx, callKey{}, c)
}

func callFrom(ctx context.Context) *call {
	c, _ := ctx.Value(callKey{}).(*call)
	return c
}

var i32 = api.ValueTypeI32

func params(n int) []api.ValueType {
	out := make([]api.ValueType, n)
	for i := range out {
		out[i] = i32
	}
	return out
}

// hostFunc adapts a handler over decoded string arguments. Each string is
// a (ptr, len) pair on the stack.
func hostFunc(name string, strings int, fn func(c *call, args []string)) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		c := callFrom(ctx)
		if c == nil {
			Logger().Warn("host call outside guest entry", zap.String("import", name))
			return
		}
		args, err := readStrings(mod.Memory(), stack, strings)
		if err != nil {
			// Bad pointers trap the guest.
			panic(errors.Wrap(errors.PhaseHost, errors.KindInvalidData, err, name))
		}
		fn(c, args)
	}
}

func readStrings(mem api.Memory, stack []uint64, n int) ([]string, error) {
	if mem == nil && n > 0 {
		return nil, fmt.Errorf("module has no memory")
	}
	m := &Memory{mem: mem}
	out := make([]string, n)
	for i := range out {
		s, err := m.ReadString(api.DecodeU32(stack[2*i]), api.DecodeU32(stack[2*i+1]))
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func dictionary(src, path string) particleruntime.Dictionary {
	d, err := wire.DecodeDictionary(src, path)
	if err != nil {
		Logger().Warn("malformed dictionary from guest", zap.String("arg", path), zap.Error(err))
		return nil
	}
	return d
}

func hostModule(b wazero.HostModuleBuilder) wazero.HostModuleBuilder {
	export := func(name string, strings int, fn func(c *call, args []string)) {
		b.NewFunctionBuilder().
			WithGoModuleFunction(hostFunc(name, strings, fn), params(2*strings), nil).
			Export(name)
	}

	export(abi.ImportSingletonSet, 2, func(c *call, a []string) { c.host.SingletonSet(a[0], a[1]) })
	export(abi.ImportSingletonClear, 1, func(c *call, a []string) { c.host.SingletonClear(a[0]) })
	export(abi.ImportCollectionStore, 2, func(c *call, a []string) { c.host.CollectionStore(a[0], a[1]) })
	export(abi.ImportCollectionRemove, 2, func(c *call, a []string) { c.host.CollectionRemove(a[0], a[1]) })
	export(abi.ImportCollectionClear, 1, func(c *call, a []string) { c.host.CollectionClear(a[0]) })
	export(abi.ImportRender, 3, func(c *call, a []string) {
		c.host.Render(a[0], a[1], dictionary(a[2], "model"))
	})
	export(abi.ImportDereference, 2, func(c *call, a []string) { c.host.Dereference(a[0], a[1]) })
	export(abi.ImportServiceRequest, 3, func(c *call, a []string) {
		c.host.ServiceRequest(a[0], dictionary(a[1], "args"), a[2])
	})

	// resolve_url(url_ptr, url_len, out_ptr, out_cap) -> len
	// The result is written only when it fits; callers retry with a larger
	// buffer when len exceeds out_cap.
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := callFrom(ctx)
			args, err := readStrings(mod.Memory(), stack, 1)
			if c == nil || err != nil {
				stack[0] = 0
				return
			}
			resolved := c.host.ResolveURL(args[0])
			outPtr, outCap := api.DecodeU32(stack[2]), api.DecodeU32(stack[3])
			if uint32(len(resolved)) <= outCap {
				if !mod.Memory().Write(outPtr, []byte(resolved)) {
					panic(errors.InvalidData(errors.PhaseHost, []string{abi.ImportResolveURL}, "output buffer out of bounds"))
				}
			}
			stack[0] = api.EncodeU32(uint32(len(resolved)))
		}), params(4), []api.ValueType{i32}).
		Export(abi.ImportResolveURL)

	// log(level, msg_ptr, msg_len)
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			level := api.DecodeI32(stack[0])
			args, err := readStrings(mod.Memory(), stack[1:], 1)
			if err != nil {
				return
			}
			id := ""
			if c := callFrom(ctx); c != nil {
				id = c.id
			}
			fields := []zap.Field{zap.String("particle", id)}
			switch level {
			case abi.LevelDebug:
				Logger().Debug(args[0], fields...)
			case abi.LevelInfo:
				Logger().Info(args[0], fields...)
			case abi.LevelWarn:
				Logger().Warn(args[0], fields...)
			default:
				Logger().Error(args[0], fields...)
			}
		}), params(3), nil).
		Export(abi.ImportLog)

	return b
}
