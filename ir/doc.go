// Package ir defines the intermediate representation handed over by the
// procedural-macro front end.
//
// The front end parses source-level attributes and produces one Program per
// crate: every exported function, method, struct and enum, plus every imported
// JS function, with fully resolved types. This package is the contract the
// resolver consumes; it performs no ABI decisions of its own.
//
// # Sources
//
// A Program is constructed programmatically, parsed from JSON
// (ir.ParseJSON), or extracted from the __jsbind_ir custom section of a
// compiled wasm binary (see the wasmbin package).
//
// # Type expressions
//
// Types form a finite tree:
//
//	Prim      bool, i8..u64, i128/u128, f32/f64, char
//	String    UTF-8 string
//	Vector    list of an element type
//	Option    optional element
//	Result    fallible value (error side is always a thrown JS value)
//	Closure   callable crossing the boundary
//	Named     reference to a declared Struct or Enum
//	Any       opaque JS value (externref)
//	Union     discriminated union tried member by member
//
// Recursion is not representable through Named references alone; the resolver
// rejects cycles.
package ir
