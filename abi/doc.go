// Package abi defines the closed vocabulary of value shapes that cross the
// JS/wasm boundary.
//
// A Descriptor describes how one value is represented at the raw call
// interface: which slot kinds it occupies (i32/i64/f32/f64 and exactly those),
// whether it lives in linear memory, in the externref table, or inline in the
// slots, and how containers decompose. Every descriptor has a fixed,
// statically-known slot sequence; this is what lets the generator compute
// fixed-arity wasm signatures.
//
// Ownership obligations are attached per call-site occurrence as an
// OwnershipPlan by the resolve package; the descriptor itself is
// occurrence-independent and safe to share.
package abi
