// Package jsbind generates JavaScript bindings for Rust programs compiled
// to WebAssembly.
//
// The compiler front end describes every exported item as a small typed
// program (the binding IR). This library resolves that program against the
// wasm-bindgen ABI, renders the JavaScript glue that marshals values across
// the boundary, and emits a loadable module for a chosen JS target. A
// wazero-backed host runtime lets Go programs drive the same modules
// without a JS engine.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	jsbind/              Root package tying the pipeline together
//	├── ir/              Binding IR: types, declarations, JSON codec
//	├── abi/             Descriptors, slot shapes, ownership, reserved symbols
//	├── resolve/         IR -> ABI resolution and per-function call plans
//	├── gen/             JavaScript glue and wasm trampoline generation
//	├── emit/            Per-target assembly, validation and minification
//	├── host/            wazero-based host runtime for generated modules
//	├── reftable/        Externref-style object table
//	├── wasmbin/         Minimal wasm binary reader and builder
//	└── errors/          Structured error types shared by every phase
//
// # Quick Start
//
// Turn a binding program into a deployable artifact:
//
//	prog, err := ir.ParseJSON(irBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	art, err := jsbind.Generate(prog, jsbind.Options{Target: emit.TargetWeb})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile(art.JSName, []byte(art.JS), 0o644)
//	os.WriteFile(art.WasmName, art.Wasm, 0o644)
//
// Compiled modules carry their program in a custom section, so a .wasm file
// alone is enough:
//
//	art, err := jsbind.GenerateFromWasm(wasmBytes, jsbind.Options{})
//
// Or run a module from Go instead of a browser:
//
//	rt, _ := host.New(ctx)
//	defer rt.Close(ctx)
//
//	mod, _ := rt.Load(ctx, wasmBytes, plan)
//	inst, _ := mod.Instantiate(ctx, nil)
//	defer inst.Close(ctx)
//
//	result, _ := inst.Call(ctx, "greet", "World")
//
// # Ownership Model
//
// Values crossing the boundary follow the wasm-bindgen ownership rules:
// borrowed arguments are freed by the caller after the call, by-value
// arguments transfer to the callee, returned buffers are copied out and
// freed, and long-lived handles (struct instances, closures) are managed
// by finalizers. The resolve package annotates every argument and return
// with its rule; gen and host both honor the same annotations.
//
// # Thread Safety
//
// Resolvers, generators and emitters are pure transformations and safe to
// share. host.Runtime and host.Module are safe for concurrent use;
// host.Instance is NOT and must be confined to one goroutine or externally
// synchronized.
package jsbind
