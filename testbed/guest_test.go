package testbed

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/jsbind/abi"
	"github.com/wippyai/jsbind/ir"
	"github.com/wippyai/jsbind/wasmbin"
)

// Raw opcode mnemonics for the hand-assembled guest bodies.
const (
	opUnreachable = 0x00
	opEnd         = 0x0b
	opCall        = 0x10
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Load     = 0x28
	opI32Store    = 0x36
	opI64Store    = 0x37
	opI32Const    = 0x41
	opI32Add      = 0x6a
	opI32Sub      = 0x6b
	opI32And      = 0x71
	opI32Xor      = 0x73
)

type asm struct{ b []byte }

func (a *asm) op(b byte) *asm { a.b = append(a.b, b); return a }

// idx emits an opcode followed by a uleb index immediate (locals, globals,
// call targets).
func (a *asm) idx(op byte, n uint32) *asm {
	a.b = append(a.b, op)
	a.b = wasmbin.AppendUleb(a.b, n)
	return a
}
func (a *asm) i32(v int32) *asm {
	a.b = append(a.b, opI32Const)
	a.b = wasmbin.AppendSleb(a.b, v)
	return a
}
func (a *asm) load32(off uint32) *asm {
	a.b = append(a.b, opI32Load, 0x02)
	a.b = wasmbin.AppendUleb(a.b, off)
	return a
}
func (a *asm) store32(off uint32) *asm {
	a.b = append(a.b, opI32Store, 0x02)
	a.b = wasmbin.AppendUleb(a.b, off)
	return a
}
func (a *asm) store64(off uint32) *asm {
	a.b = append(a.b, opI64Store, 0x03)
	a.b = wasmbin.AppendUleb(a.b, off)
	return a
}
func (a *asm) memcopy() *asm {
	a.b = append(a.b, 0xfc, 0x0a, 0x00, 0x00)
	return a
}
func (a *asm) done() []byte { return append(a.b, opEnd) }

// guestProgram declares the interface the synthesized guest implements.
func guestProgram() *ir.Program {
	return &ir.Program{
		Name: "testbed",
		Functions: []*ir.Function{
			{
				Name: "add",
				Args: []ir.Arg{
					{Name: "a", Type: ir.PrimType(ir.U32)},
					{Name: "b", Type: ir.PrimType(ir.U32)},
				},
				Ret: ir.PrimType(ir.U32),
			},
			{
				Name: "echo_string",
				Args: []ir.Arg{{Name: "s", Type: ir.StringType()}},
				Ret:  ir.StringType(),
			},
			{
				Name: "echo_i128",
				Args: []ir.Arg{{Name: "x", Type: ir.PrimType(ir.I128)}},
				Ret:  ir.PrimType(ir.I128),
			},
			{
				Name: "echo_opt_char",
				Args: []ir.Arg{{Name: "c", Type: ir.OptionType(ir.PrimType(ir.Char))}},
				Ret:  ir.OptionType(ir.PrimType(ir.Char)),
			},
			{
				Name: "echo_mode",
				Args: []ir.Arg{{Name: "m", Type: ir.NamedType("Mode")}},
				Ret:  ir.NamedType("Mode"),
			},
			{
				Name: "echo_level",
				Args: []ir.Arg{{Name: "l", Type: ir.NamedType("Level")}},
				Ret:  ir.NamedType("Level"),
			},
			{
				Name: "call_host_add",
				Args: []ir.Arg{
					{Name: "a", Type: ir.PrimType(ir.U32)},
					{Name: "b", Type: ir.PrimType(ir.U32)},
				},
				Ret: ir.PrimType(ir.U32),
			},
			{Name: "boom"},
			{Name: "bump", Ret: ir.PrimType(ir.U32)},
			{
				Name:     "with_start",
				Receiver: "Counter",
				Kind:     ir.Constructor,
				Args:     []ir.Arg{{Name: "start", Type: ir.PrimType(ir.U32)}},
				Ret:      ir.NamedType("Counter"),
			},
			{
				Name:     "increment",
				Receiver: "Counter",
				Kind:     ir.Method,
				SelfBind: ir.ByMutRef,
			},
		},
		Structs: []*ir.Struct{
			{Name: "Counter", Fields: []ir.Field{
				{Name: "count", Type: ir.PrimType(ir.U32), Readonly: true},
			}},
		},
		Enums: []*ir.Enum{
			{Name: "Mode", Values: []string{"eager", "lazy"}},
			{Name: "Level", Variants: []ir.Variant{
				{Name: "Low", Value: 0}, {Name: "High", Value: 1}, {Name: "Max", Value: 42},
			}},
		},
		Imports: []*ir.Import{
			{Function: ir.Function{
				Name: "host_add",
				Args: []ir.Arg{
					{Name: "a", Type: ir.PrimType(ir.U32)},
					{Name: "b", Type: ir.PrimType(ir.U32)},
				},
				Ret: ir.PrimType(ir.U32),
			}},
		},
	}
}

// buildGuest assembles the guest: a bump allocator behind the reserved
// exports plus hand-written bodies for every declared function. free is a
// no-op so double frees across the ownership rules stay harmless.
func buildGuest() []byte {
	i32 := api.ValueTypeI32
	i64 := api.ValueTypeI64
	b := wasmbin.NewBuilder(abi.ImportModule)

	// Imports claim the low function indices; declare them all first.
	hostAdd := b.AddImport("host_add", []api.ValueType{i32, i32}, []api.ValueType{i32})

	b.AddMemory(2, abi.SymMemory)
	heap := b.AddGlobal("", i32, true, 1024)
	counter := b.AddGlobal("", i32, true, 0)
	exn := b.AddGlobal("", i32, true, 0)

	// malloc(size, align): bump heap to the aligned slot.
	malloc := b.AddFunc(abi.SymMalloc,
		[]api.ValueType{i32, i32}, []api.ValueType{i32}, []api.ValueType{i32},
		(&asm{}).
			idx(opGlobalGet, heap).
			idx(opLocalGet, 1).op(opI32Add).
			i32(1).op(opI32Sub).
			idx(opLocalGet, 1).i32(1).op(opI32Sub).i32(-1).op(opI32Xor).
			op(opI32And).
			idx(opLocalSet, 2).
			idx(opLocalGet, 2).idx(opLocalGet, 0).op(opI32Add).
			idx(opGlobalSet, heap).
			idx(opLocalGet, 2).
			done())

	// realloc(ptr, old, new, align): fresh allocation plus copy.
	b.AddFunc(abi.SymRealloc,
		[]api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32}, []api.ValueType{i32},
		(&asm{}).
			idx(opLocalGet, 2).idx(opLocalGet, 3).idx(opCall, malloc).
			idx(opLocalSet, 4).
			idx(opLocalGet, 4).idx(opLocalGet, 0).idx(opLocalGet, 1).memcopy().
			idx(opLocalGet, 4).
			done())

	// free is a no-op under a bump allocator.
	b.AddFunc(abi.SymFree,
		[]api.ValueType{i32, i32, i32}, nil, nil, (&asm{}).done())

	b.AddFunc(abi.SymExnStore,
		[]api.ValueType{i32}, nil, nil,
		(&asm{}).idx(opLocalGet, 0).idx(opGlobalSet, exn).done())

	b.AddFunc("add",
		[]api.ValueType{i32, i32}, []api.ValueType{i32}, nil,
		(&asm{}).idx(opLocalGet, 0).idx(opLocalGet, 1).op(opI32Add).done())

	// echo_string(retptr, ptr, len): return the input allocation as-is.
	b.AddFunc("echo_string",
		[]api.ValueType{i32, i32, i32}, nil, nil,
		(&asm{}).
			idx(opLocalGet, 0).idx(opLocalGet, 1).store32(0).
			idx(opLocalGet, 0).idx(opLocalGet, 2).store32(4).
			done())

	b.AddFunc("echo_i128",
		[]api.ValueType{i32, i64, i64}, nil, nil,
		(&asm{}).
			idx(opLocalGet, 0).idx(opLocalGet, 1).store64(0).
			idx(opLocalGet, 0).idx(opLocalGet, 2).store64(8).
			done())

	b.AddFunc("echo_opt_char",
		[]api.ValueType{i32}, []api.ValueType{i32}, nil,
		(&asm{}).idx(opLocalGet, 0).done())

	b.AddFunc("echo_mode",
		[]api.ValueType{i32}, []api.ValueType{i32}, nil,
		(&asm{}).idx(opLocalGet, 0).done())

	b.AddFunc("echo_level",
		[]api.ValueType{i32}, []api.ValueType{i32}, nil,
		(&asm{}).idx(opLocalGet, 0).done())

	b.AddFunc("call_host_add",
		[]api.ValueType{i32, i32}, []api.ValueType{i32}, nil,
		(&asm{}).idx(opLocalGet, 0).idx(opLocalGet, 1).idx(opCall, hostAdd).done())

	b.AddFunc("boom", nil, nil, nil,
		(&asm{}).op(opUnreachable).done())

	b.AddFunc("bump",
		nil, []api.ValueType{i32}, nil,
		(&asm{}).
			idx(opGlobalGet, counter).i32(1).op(opI32Add).
			idx(opGlobalSet, counter).
			idx(opGlobalGet, counter).
			done())

	// Counter: a single u32 cell in linear memory.
	b.AddFunc("counter_new",
		[]api.ValueType{i32}, []api.ValueType{i32}, []api.ValueType{i32},
		(&asm{}).
			i32(4).i32(4).idx(opCall, malloc).
			idx(opLocalSet, 1).
			idx(opLocalGet, 1).idx(opLocalGet, 0).store32(0).
			idx(opLocalGet, 1).
			done())

	b.AddFunc("counter_increment",
		[]api.ValueType{i32}, nil, nil,
		(&asm{}).
			idx(opLocalGet, 0).
			idx(opLocalGet, 0).load32(0).i32(1).op(opI32Add).
			store32(0).
			done())

	b.AddFunc("counter_count",
		[]api.ValueType{i32}, []api.ValueType{i32}, nil,
		(&asm{}).idx(opLocalGet, 0).load32(0).done())

	b.AddFunc("__wbg_counter_free",
		[]api.ValueType{i32}, nil, nil, (&asm{}).done())

	return b.Build()
}

// buildBareModule lacks the reserved allocator exports.
func buildBareModule() []byte {
	i32 := api.ValueTypeI32
	b := wasmbin.NewBuilder(abi.ImportModule)
	b.AddMemory(1, abi.SymMemory)
	b.AddFunc("noop", []api.ValueType{i32}, []api.ValueType{i32},
		nil, (&asm{}).idx(opLocalGet, 0).done())
	return b.Build()
}
