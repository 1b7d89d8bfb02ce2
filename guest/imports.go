//go:build wasip1

package guest

import (
	"runtime"
	"unsafe"

	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/internal/abi"
	"github.com/wippyai/particle-runtime/wire"
)

//go:wasmimport particle_host singleton_set
func hostSingletonSet(namePtr, nameLen, encPtr, encLen uint32)

//go:wasmimport particle_host singleton_clear
func hostSingletonClear(namePtr, nameLen uint32)

//go:wasmimport particle_host collection_store
func hostCollectionStore(namePtr, nameLen, encPtr, encLen uint32)

//go:wasmimport particle_host collection_remove
func hostCollectionRemove(namePtr, nameLen, encPtr, encLen uint32)

//go:wasmimport particle_host collection_clear
func hostCollectionClear(namePtr, nameLen uint32)

//go:wasmimport particle_host render
func hostRender(slotPtr, slotLen, tmplPtr, tmplLen, modelPtr, modelLen uint32)

//go:wasmimport particle_host dereference
func hostDereference(idPtr, idLen, keyPtr, keyLen uint32)

//go:wasmimport particle_host service_request
func hostServiceRequest(callPtr, callLen, argsPtr, argsLen, tagPtr, tagLen uint32)

//go:wasmimport particle_host resolve_url
func hostResolveURL(urlPtr, urlLen, outPtr, outCap uint32) uint32

//go:wasmimport particle_host log
func hostLog(level int32, msgPtr, msgLen uint32)

// ptr returns the address and length of s in linear memory.
func ptr(s string) (uint32, uint32) {
	if s == "" {
		return 0, 0
	}
	return uint32(uintptr(unsafe.Pointer(unsafe.StringData(s)))), uint32(len(s))
}

// host forwards particle calls through the particle_host imports.
type host struct{}

func (host) SingletonSet(name, encoded string) {
	np, nl := ptr(name)
	ep, el := ptr(encoded)
	hostSingletonSet(np, nl, ep, el)
	runtime.KeepAlive(name)
	runtime.KeepAlive(encoded)
}

func (host) SingletonClear(name string) {
	np, nl := ptr(name)
	hostSingletonClear(np, nl)
	runtime.KeepAlive(name)
}

func (host) CollectionStore(name, encoded string) {
	np, nl := ptr(name)
	ep, el := ptr(encoded)
	hostCollectionStore(np, nl, ep, el)
	runtime.KeepAlive(name)
	runtime.KeepAlive(encoded)
}

func (host) CollectionRemove(name, encoded string) {
	np, nl := ptr(name)
	ep, el := ptr(encoded)
	hostCollectionRemove(np, nl, ep, el)
	runtime.KeepAlive(name)
	runtime.KeepAlive(encoded)
}

func (host) CollectionClear(name string) {
	np, nl := ptr(name)
	hostCollectionClear(np, nl)
	runtime.KeepAlive(name)
}

func (host) Render(slot, template string, model particleruntime.Dictionary) {
	enc := wire.EncodeDictionary(model)
	sp, sl := ptr(slot)
	tp, tl := ptr(template)
	mp, ml := ptr(enc)
	hostRender(sp, sl, tp, tl, mp, ml)
	runtime.KeepAlive(slot)
	runtime.KeepAlive(template)
	runtime.KeepAlive(enc)
}

func (host) Dereference(id, storageKey string) {
	ip, il := ptr(id)
	kp, kl := ptr(storageKey)
	hostDereference(ip, il, kp, kl)
	runtime.KeepAlive(id)
	runtime.KeepAlive(storageKey)
}

func (host) ServiceRequest(call string, args particleruntime.Dictionary, tag string) {
	enc := wire.EncodeDictionary(args)
	cp, cl := ptr(call)
	ap, al := ptr(enc)
	tp, tl := ptr(tag)
	hostServiceRequest(cp, cl, ap, al, tp, tl)
	runtime.KeepAlive(call)
	runtime.KeepAlive(enc)
	runtime.KeepAlive(tag)
}

func (host) ResolveURL(url string) string {
	up, ul := ptr(url)
	buf := make([]byte, 256)
	for {
		n := hostResolveURL(up, ul, uint32(uintptr(unsafe.Pointer(&buf[0]))), uint32(len(buf)))
		if int(n) <= len(buf) {
			runtime.KeepAlive(url)
			return string(buf[:n])
		}
		buf = make([]byte, n)
	}
}

// Log sends a message to the host's logger.
func Log(level int32, msg string) {
	mp, ml := ptr(msg)
	hostLog(level, mp, ml)
	runtime.KeepAlive(msg)
}

// Levels for Log.
const (
	LevelDebug = abi.LevelDebug
	LevelInfo  = abi.LevelInfo
	LevelWarn  = abi.LevelWarn
	LevelError = abi.LevelError
)
