package abi

// Reserved export names on the wasm side. Generated glue refuses to bind a
// module missing any of the required set.
const (
	SymMalloc         = "__wbindgen_malloc"
	SymRealloc        = "__wbindgen_realloc"
	SymFree           = "__wbindgen_free"
	SymExternrefAlloc = "__externref_table_alloc"
	SymExternrefDrop  = "__externref_table_dealloc"
	SymExnStore       = "__wbindgen_exn_store"
	SymStart          = "__wbindgen_start"
	SymMemory         = "memory"
	SymFuncTable      = "__indirect_function_table"
	SymClosureDestroy = "__wbindgen_closure_destroy"
)

// RequiredIntrinsics is the allocator trio plus linear memory; the externref
// pair, exception slot and start function are optional (absent in minimal
// modules).
var RequiredIntrinsics = []string{SymMalloc, SymRealloc, SymFree, SymMemory}

// ImportModule is the module name generated glue registers its intrinsic
// imports under.
const ImportModule = "wbindgen"

// Import names the wasm side may request from the host/JS glue.
const (
	ImpThrow       = "__wbindgen_throw"
	ImpStringNew   = "__wbindgen_string_new"
	ImpObjectDrop  = "__wbindgen_object_drop_ref"
	ImpObjectClone = "__wbindgen_object_clone_ref"
	ImpClosureCall = "__wbindgen_closure_invoke"
)

// IRSection is the custom section name carrying the serialized Program inside
// a compiled wasm binary.
const IRSection = "__jsbind_ir"
