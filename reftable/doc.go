// Package reftable implements the host-side indirection table that lets wasm
// hold opaque references to host values, plus the reference-counted closure
// records the glue layer uses for reentrancy-safe teardown.
//
// The generated JS runtime embeds the same structure in JavaScript; this Go
// implementation backs the wazero host runtime and is the executable
// reference for the table's contract:
//
//   - indices 0-3 are pre-seeded to undefined, null, true, false and are
//     never allocated to real values; index 0 is the dedicated nothing
//     sentinel
//   - freed slots go onto a free list and are reused before the table grows
//   - the table grows by a fixed batch, never one slot at a time, and never
//     shrinks
package reftable
