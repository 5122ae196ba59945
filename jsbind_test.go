package jsbind

import (
	"strings"
	"testing"

	"github.com/wippyai/jsbind/abi"
	"github.com/wippyai/jsbind/emit"
	"github.com/wippyai/jsbind/ir"
	"github.com/wippyai/jsbind/wasmbin"
)

func pipelineProgram() *ir.Program {
	return &ir.Program{
		Name: "demo",
		Functions: []*ir.Function{
			{
				Name: "greet",
				Args: []ir.Arg{{Name: "name", Type: ir.StringType(), Binding: ir.ByRef}},
				Ret:  ir.StringType(),
			},
			{
				Name: "add",
				Args: []ir.Arg{
					{Name: "a", Type: ir.PrimType(ir.U32)},
					{Name: "b", Type: ir.PrimType(ir.U32)},
				},
				Ret: ir.PrimType(ir.U32),
			},
		},
	}
}

func TestGenerate(t *testing.T) {
	art, err := Generate(pipelineProgram(), Options{Target: emit.TargetWeb})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if art.JSName != "bindings.js" {
		t.Errorf("JSName = %q, want bindings.js", art.JSName)
	}
	if art.WasmName != "bindings_bg.wasm" {
		t.Errorf("WasmName = %q, want bindings_bg.wasm", art.WasmName)
	}
	// The emit stage runs the module through esbuild, which consolidates
	// export statements, so assert on the declarations and the export
	// clause rather than the pre-transform source.
	for _, want := range []string{"function greet(", "function add(", "async function init(", "export {"} {
		if !strings.Contains(art.JS, want) {
			t.Errorf("JS missing %q", want)
		}
	}
	for _, name := range []string{"greet", "add", "initSync"} {
		if !exportedName(art.JS, name) {
			t.Errorf("JS does not export %q", name)
		}
	}
	if _, err := wasmbin.Parse(art.Wasm); err != nil {
		t.Fatalf("parse trampoline: %v", err)
	}
}

func TestGenerateFromWasm(t *testing.T) {
	raw, err := pipelineProgram().EncodeJSON()
	if err != nil {
		t.Fatalf("encode program: %v", err)
	}
	b := wasmbin.NewBuilder(abi.ImportModule)
	b.AddCustomSection(abi.IRSection, raw)

	art, err := GenerateFromWasm(b.Build(), Options{Name: "demo"})
	if err != nil {
		t.Fatalf("GenerateFromWasm: %v", err)
	}
	if art.JSName != "demo.js" {
		t.Errorf("JSName = %q, want demo.js", art.JSName)
	}
	if !strings.Contains(art.JS, "function greet(") {
		t.Error("JS missing greet declaration")
	}
	if !exportedName(art.JS, "greet") {
		t.Error("JS does not export greet")
	}
}

// exportedName reports whether name appears in the consolidated export
// clause esbuild emits.
func exportedName(js, name string) bool {
	start := strings.Index(js, "export {")
	if start == -1 {
		return false
	}
	end := strings.Index(js[start:], "}")
	if end == -1 {
		return false
	}
	clause := strings.TrimPrefix(js[start:start+end], "export {")
	for _, part := range strings.Split(clause, ",") {
		fields := strings.Fields(part)
		if len(fields) > 0 && fields[0] == name {
			return true
		}
	}
	return false
}

func TestGenerateFromWasmMissingSection(t *testing.T) {
	data := wasmbin.NewBuilder(abi.ImportModule).Build()
	if _, err := GenerateFromWasm(data, Options{}); err == nil {
		t.Fatal("expected error for module without a binding program")
	}
}
