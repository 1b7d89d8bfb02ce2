// Package guest exposes registered particles to a wasm host.
//
// Import it from a wasip1 reactor that registers its particle types during
// init:
//
//	//go:build wasip1
//
//	package main
//
//	import (
//		_ "github.com/wippyai/particle-runtime/guest"
//		"github.com/wippyai/particle-runtime/particle"
//	)
//
//	func init() { particle.MustRegister("Echo", NewEcho) }
//
//	func main() {}
//
// Build with GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared. The
// module then exports the particle_* entry points wasmhost drives and
// imports particle_host for everything the particle sends back. One module
// instance runs one particle.
package guest
