// Package gen renders the JavaScript glue for a resolved binding program:
// the runtime preamble (memory views, string transcoding, the heap table,
// abort recovery), export wrappers, classes for exported structs, enum
// objects and the import shims the wasm module links against.
//
// The output is target-agnostic; package emit wraps it in a per-target
// loader. The wasm-side trampoline module is synthesized here as well,
// through wasmbin.
package gen
