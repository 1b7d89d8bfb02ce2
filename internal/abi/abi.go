// Package abi holds the names and encodings shared by the wasm host and
// the guest shims.
//
// Strings cross the boundary as (ptr, len) pairs of i32. Dictionaries are
// wire-encoded strings. Every guest export returns an i64 that is either 0
// (success, no value) or a packed pointer to a result owned by the guest
// until the host frees it with particle_free.
package abi

import (
	stderrors "errors"

	"github.com/wippyai/particle-runtime/errors"
	"github.com/wippyai/particle-runtime/wire"
)

// HostModule is the import module the host provides.
const HostModule = "particle_host"

// Host imports.
const (
	ImportSingletonSet     = "singleton_set"
	ImportSingletonClear   = "singleton_clear"
	ImportCollectionStore  = "collection_store"
	ImportCollectionRemove = "collection_remove"
	ImportCollectionClear  = "collection_clear"
	ImportRender           = "render"
	ImportDereference      = "dereference"
	ImportServiceRequest   = "service_request"
	ImportResolveURL       = "resolve_url"
	ImportLog              = "log"
)

// Guest exports.
const (
	ExportAlloc            = "particle_alloc"
	ExportFree             = "particle_free"
	ExportCreate           = "particle_create"
	ExportConnect          = "particle_connect"
	ExportInit             = "particle_init"
	ExportSync             = "particle_sync"
	ExportUpdate           = "particle_update"
	ExportEvent            = "particle_event"
	ExportTemplate         = "particle_template"
	ExportModel            = "particle_model"
	ExportDeliverReference = "particle_deliver_reference"
	ExportDeliverService   = "particle_deliver_service"
	ExportDispose          = "particle_dispose"
)

// RequiredExports lists the exports a particle module must provide.
var RequiredExports = []string{
	ExportAlloc, ExportFree, ExportCreate, ExportConnect, ExportInit,
	ExportSync, ExportUpdate, ExportEvent, ExportTemplate, ExportModel,
	ExportDeliverReference, ExportDeliverService, ExportDispose,
}

// Log levels for the log import.
const (
	LevelDebug int32 = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Pack combines a pointer and length into one i64 result.
func Pack(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// Unpack splits a packed result.
func Unpack(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}

// Result is the decoded outcome of a guest export. Kind is empty on
// success.
type Result struct {
	Phase  string
	Kind   string
	Detail string
	Value  string
}

// MarshalWire writes phase, kind, detail, and value as four segments.
func (r Result) MarshalWire(w *wire.Writer) {
	w.Segment(r.Phase)
	w.Segment(r.Kind)
	w.Segment(r.Detail)
	w.Segment(r.Value)
}

// UnmarshalWire reads a result.
func (r *Result) UnmarshalWire(rd *wire.Reader) error {
	var out Result
	var err error
	if out.Phase, err = rd.Next(); err != nil {
		return err
	}
	if out.Kind, err = rd.Next(); err != nil {
		return err
	}
	if out.Detail, err = rd.Next(); err != nil {
		return err
	}
	if out.Value, err = rd.Next(); err != nil {
		return err
	}
	*r = out
	return nil
}

// FromError builds the result of an export that produced value and err.
// Errors that are not *errors.Error travel as invalid_state.
func FromError(value string, err error) Result {
	if err == nil {
		return Result{Value: value}
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		detail := e.Detail
		if detail == "" {
			detail = e.Error()
		}
		return Result{Phase: string(e.Phase), Kind: string(e.Kind), Detail: detail, Value: value}
	}
	return Result{
		Phase:  string(errors.PhaseDispatch),
		Kind:   string(errors.KindInvalidState),
		Detail: err.Error(),
		Value:  value,
	}
}

// Err rebuilds the guest's error, or nil on success.
func (r Result) Err() error {
	if r.Kind == "" {
		return nil
	}
	return errors.New(errors.Phase(r.Phase), errors.Kind(r.Kind)).Detail("%s", r.Detail).Build()
}
