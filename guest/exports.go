//go:build wasip1

package guest

import (
	"unsafe"

	"github.com/wippyai/particle-runtime/errors"
	"github.com/wippyai/particle-runtime/handle"
	"github.com/wippyai/particle-runtime/internal/abi"
	"github.com/wippyai/particle-runtime/particle"
	"github.com/wippyai/particle-runtime/wire"
)

var (
	// pinned keeps host-visible buffers reachable until particle_free.
	pinned     = map[uint32][]byte{}
	dispatcher *particle.Dispatcher
)

//go:wasmexport particle_alloc
func alloc(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	buf := make([]byte, size)
	p := uint32(uintptr(unsafe.Pointer(&buf[0])))
	pinned[p] = buf
	return p
}

//go:wasmexport particle_free
func free(p uint32) {
	delete(pinned, p)
}

// str copies a host-written string out of a pinned buffer.
func str(p, n uint32) string {
	if n == 0 {
		return ""
	}
	if buf, ok := pinned[p]; ok && uint32(len(buf)) >= n {
		return string(buf[:n])
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(p))), n))
}

func result(value string, err error) uint64 {
	if err == nil && value == "" {
		return 0
	}
	enc := wire.Encode(abi.FromError(value, err))
	p := alloc(uint32(len(enc)))
	copy(pinned[p], enc)
	return abi.Pack(p, uint32(len(enc)))
}

func current(op string) (*particle.Dispatcher, error) {
	if dispatcher == nil {
		return nil, errors.InvalidState(errors.PhaseDispatch, op, "no particle")
	}
	return dispatcher, nil
}

//go:wasmexport particle_create
func create(typePtr, typeLen, idPtr, idLen uint32) uint64 {
	if dispatcher != nil {
		return result("", errors.InvalidState(errors.PhaseLoad, "create", "particle exists"))
	}
	p, err := particle.Create(str(typePtr, typeLen))
	if err != nil {
		return result("", err)
	}
	d, err := particle.Attach(str(idPtr, idLen), p, host{})
	if err != nil {
		return result("", err)
	}
	dispatcher = d
	return 0
}

//go:wasmexport particle_connect
func connect(namePtr, nameLen, mode uint32) uint64 {
	d, err := current("connect")
	if err != nil {
		return result("", err)
	}
	return result("", d.Connect(str(namePtr, nameLen), handle.Mode(mode)))
}

//go:wasmexport particle_init
func initParticle() uint64 {
	d, err := current("init")
	if err != nil {
		return result("", err)
	}
	return result("", d.Init())
}

//go:wasmexport particle_sync
func syncHandle(namePtr, nameLen, encPtr, encLen uint32) uint64 {
	d, err := current("sync")
	if err != nil {
		return result("", err)
	}
	return result("", d.SyncHandle(str(namePtr, nameLen), str(encPtr, encLen)))
}

//go:wasmexport particle_update
func updateHandle(namePtr, nameLen, e1Ptr, e1Len, e2Ptr, e2Len uint32) uint64 {
	d, err := current("update")
	if err != nil {
		return result("", err)
	}
	return result("", d.UpdateHandle(str(namePtr, nameLen), str(e1Ptr, e1Len), str(e2Ptr, e2Len)))
}

//go:wasmexport particle_event
func fireEvent(slotPtr, slotLen, handlerPtr, handlerLen uint32) uint64 {
	d, err := current("event")
	if err != nil {
		return result("", err)
	}
	return result("", d.FireEvent(str(slotPtr, slotLen), str(handlerPtr, handlerLen)))
}

//go:wasmexport particle_template
func template(slotPtr, slotLen uint32) uint64 {
	d, err := current("template")
	if err != nil {
		return result("", err)
	}
	return result(d.Template(str(slotPtr, slotLen)))
}

//go:wasmexport particle_model
func model(slotPtr, slotLen uint32) uint64 {
	d, err := current("model")
	if err != nil {
		return result("", err)
	}
	m, err := d.Model(str(slotPtr, slotLen))
	return result(wire.EncodeDictionary(m), err)
}

//go:wasmexport particle_deliver_reference
func deliverReference(idPtr, idLen, keyPtr, keyLen, encPtr, encLen uint32) uint64 {
	d, err := current("dereference")
	if err != nil {
		return result("", err)
	}
	return result("", d.DeliverReference(str(idPtr, idLen), str(keyPtr, keyLen), str(encPtr, encLen)))
}

//go:wasmexport particle_deliver_service
func deliverService(callPtr, callLen, payloadPtr, payloadLen, tagPtr, tagLen uint32) uint64 {
	d, err := current("service response")
	if err != nil {
		return result("", err)
	}
	payload, err := wire.DecodeDictionary(str(payloadPtr, payloadLen), "payload")
	if err != nil {
		return result("", err)
	}
	return result("", d.DeliverServiceResponse(str(callPtr, callLen), payload, str(tagPtr, tagLen)))
}

//go:wasmexport particle_dispose
func dispose() uint64 {
	d, err := current("dispose")
	if err != nil {
		return result("", err)
	}
	return result("", d.Dispose())
}
