package gen

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/jsbind/abi"
	"github.com/wippyai/jsbind/resolve"
	"github.com/wippyai/jsbind/wasmbin"
)

// ImplModule is the import namespace the trampoline forwards to; the real
// compiled guest links in under this name.
const ImplModule = "impl"

// Trampoline synthesizes the wasm-side shim module: every export-facing
// function with its flat signature forwarding to the implementation symbol
// of the same name, with the allocator trio and start function re-exported.
func Trampoline(plan *resolve.ProgramPlan) []byte {
	b := wasmbin.NewBuilder(ImplModule)

	for _, p := range plan.Exports {
		b.AddTrampoline(p.ExportName, p.ExportName,
			slotTypes(p.ParamSlots), slotTypes(p.ResultSlots))
	}
	for _, s := range plan.Program.Structs {
		name := resolve.FreeSymbol(s.Name)
		b.AddTrampoline(name, name, i32Sig(1), nil)
	}

	b.AddTrampoline(abi.SymMalloc, abi.SymMalloc, i32Sig(2), i32Sig(1))
	b.AddTrampoline(abi.SymRealloc, abi.SymRealloc, i32Sig(4), i32Sig(1))
	b.AddTrampoline(abi.SymFree, abi.SymFree, i32Sig(3), nil)
	b.AddTrampoline(abi.SymExnStore, abi.SymExnStore, i32Sig(1), nil)
	b.AddTrampoline(abi.SymClosureDestroy, abi.SymClosureDestroy, i32Sig(2), nil)
	b.AddTrampoline(abi.SymStart, abi.SymStart, nil, nil)

	return b.Build()
}

// slotTypes maps ABI slots to wazero value types.
func slotTypes(slots []abi.SlotKind) []api.ValueType {
	if len(slots) == 0 {
		return nil
	}
	out := make([]api.ValueType, len(slots))
	for i, s := range slots {
		switch s {
		case abi.SlotI64:
			out[i] = api.ValueTypeI64
		case abi.SlotF32:
			out[i] = api.ValueTypeF32
		case abi.SlotF64:
			out[i] = api.ValueTypeF64
		default:
			out[i] = api.ValueTypeI32
		}
	}
	return out
}

func i32Sig(n int) []api.ValueType {
	sig := make([]api.ValueType, n)
	for i := range sig {
		sig[i] = api.ValueTypeI32
	}
	return sig
}
