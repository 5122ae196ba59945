package jsbind

import (
	"github.com/wippyai/jsbind/emit"
	"github.com/wippyai/jsbind/gen"
	"github.com/wippyai/jsbind/ir"
	"github.com/wippyai/jsbind/resolve"
	"github.com/wippyai/jsbind/wasmbin"
)

// Options configures a full pipeline run. The zero value targets bundlers
// and names the artifact "bindings".
type Options struct {
	Target emit.Target
	Name   string
	Minify bool
}

// Generate runs the whole pipeline over a binding program: resolve the ABI
// plan, render the JS glue and wasm trampoline, then assemble the artifact
// for the configured target.
func Generate(prog *ir.Program, opts Options) (*emit.Artifact, error) {
	plan, err := resolve.NewResolver(prog).PlanProgram()
	if err != nil {
		return nil, err
	}
	out, err := gen.New(plan).Generate()
	if err != nil {
		return nil, err
	}
	return emit.Emit(out, emit.Config{
		Target: opts.Target,
		Name:   opts.Name,
		Minify: opts.Minify,
	})
}

// GenerateFromWasm reads the binding program out of a compiled module's
// custom section and generates the artifact for it.
func GenerateFromWasm(wasm []byte, opts Options) (*emit.Artifact, error) {
	raw, err := wasmbin.ExtractIR(wasm)
	if err != nil {
		return nil, err
	}
	prog, err := ir.ParseJSON(raw)
	if err != nil {
		return nil, err
	}
	return Generate(prog, opts)
}
