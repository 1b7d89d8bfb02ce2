// Package errors provides structured error types for the particle runtime.
//
// Errors are categorized by Phase (where in the particle/host protocol the
// error occurred) and Kind (error category). The Error type carries the
// handle or field path, the Go type involved, the entity schema name, and a
// cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDispatch, errors.KindTypeMismatch).
//		Path("input1").
//		GoType("*handle.Collection[*entities.Data]").
//		Schema("Data").
//		Detail("handle is not a singleton").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnregisteredHandle(errors.PhaseConnect, "output")
//	err := errors.Malformed(errors.PhaseDecode, path, 7, "missing separator")
//
// Every Kind has a sentinel (ErrUnregisteredHandle, ErrMalformedWire, ...)
// that matches any error of that kind regardless of phase:
//
//	if errors.Is(err, errors.ErrUnregisteredHandle) { ... }
//
// No error in this package is fatal to the host: callers get a value back
// and decide how to report it.
package errors
