package wasmhost

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	particleruntime "github.com/wippyai/particle-runtime"
)

// Memory wraps wazero memory to implement particleruntime.Memory.
type Memory struct {
	mem api.Memory
}

func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	ok := m.mem.Write(offset, data)
	if !ok {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

// ReadString copies a guest string out of linear memory.
func (m *Memory) ReadString(offset uint32, length uint32) (string, error) {
	data, err := m.Read(offset, length)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *Memory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// allocator calls the guest's particle_alloc and particle_free exports.
type allocator struct {
	ctx     context.Context
	allocFn api.Function
	freeFn  api.Function
	stack   [1]uint64
}

func (a *allocator) Alloc(size uint32) (uint32, error) {
	if a.allocFn == nil {
		return 0, fmt.Errorf("no allocator available")
	}
	a.stack[0] = uint64(size)
	if err := a.allocFn.CallWithStack(a.ctx, a.stack[:]); err != nil {
		return 0, err
	}
	ptr := uint32(a.stack[0])
	if ptr == 0 && size > 0 {
		return 0, fmt.Errorf("guest allocation of %d bytes failed", size)
	}
	return ptr, nil
}

func (a *allocator) Free(ptr uint32) {
	if a.freeFn == nil || ptr == 0 {
		return
	}
	a.stack[0] = uint64(ptr)
	if err := a.freeFn.CallWithStack(a.ctx, a.stack[:]); err != nil {
		Logger().Warn("particle_free failed",
			zap.Uint32("ptr", ptr),
			zap.Error(err))
	}
}

// Compile-time checks
var _ particleruntime.Memory = (*Memory)(nil)
var _ particleruntime.MemorySizer = (*Memory)(nil)
var _ particleruntime.Allocator = (*allocator)(nil)
