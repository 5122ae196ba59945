// Package host embeds a bindgen-ABI wasm module in Go without a JS engine.
// It registers the wbindgen import module backed by a reftable object table,
// verifies the reserved allocator exports, and marshals Go values across the
// boundary per the resolved descriptors. A guest trap poisons the instance;
// the next call transparently re-instantiates from the compiled module.
package host
