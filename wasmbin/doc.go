// Package wasmbin contains the small slice of the WebAssembly binary format
// the binding pipeline needs: LEB128 primitives, a bounds-checked section
// reader for pulling exports and custom sections out of compiled modules, and
// a builder that synthesizes trampoline and test-fixture modules.
//
// It is deliberately not a general decoder. Function bodies are opaque bytes;
// only the structures the generator and host runtime inspect are modeled.
package wasmbin
