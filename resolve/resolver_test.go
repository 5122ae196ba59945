package resolve

import (
	"errors"
	"testing"

	"github.com/wippyai/jsbind/abi"
	jberrors "github.com/wippyai/jsbind/errors"
	"github.com/wippyai/jsbind/ir"
)

func testProgram() *ir.Program {
	return &ir.Program{
		Name:    "demo",
		Structs: []*ir.Struct{{Name: "Counter"}},
		Enums: []*ir.Enum{
			{Name: "Order", Variants: []ir.Variant{{Name: "Less", Value: 0}, {Name: "Equal", Value: 1}, {Name: "Greater", Value: 2}}},
			{Name: "Code", Variants: []ir.Variant{{Name: "A", Value: 0}, {Name: "B", Value: 1}, {Name: "C", Value: 42}, {Name: "D", Value: 43}}},
			{Name: "Mode", Values: []string{"auto", "manual", "off"}},
		},
	}
}

func TestResolvePrimitives(t *testing.T) {
	r := NewResolver(testProgram())

	tests := []struct {
		name string
		prim ir.Prim
		want abi.Kind
	}{
		{"bool", ir.Bool, abi.KindBool},
		{"i8 widens", ir.I8, abi.KindI32},
		{"u8 widens", ir.U8, abi.KindU32},
		{"i16 widens", ir.I16, abi.KindI32},
		{"u16 widens", ir.U16, abi.KindU32},
		{"i32", ir.I32, abi.KindI32},
		{"u32", ir.U32, abi.KindU32},
		{"i64", ir.I64, abi.KindI64},
		{"u64", ir.U64, abi.KindU64},
		{"i128", ir.I128, abi.KindI128},
		{"u128", ir.U128, abi.KindU128},
		{"f32", ir.F32, abi.KindF32},
		{"f64", ir.F64, abi.KindF64},
		{"char", ir.Char, abi.KindChar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := r.Resolve(ir.PrimType(tt.prim), DirArgument, ir.ByValue)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if d.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", d.Kind, tt.want)
			}
		})
	}
}

func TestResolveString(t *testing.T) {
	r := NewResolver(testProgram())

	d, err := r.Resolve(ir.StringType(), DirArgument, ir.ByRef)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Kind != abi.KindString || d.SlotCount() != 2 {
		t.Errorf("string = %s with %d slots", d.Kind, d.SlotCount())
	}

	if _, err := r.Resolve(ir.StringType(), DirArgument, ir.ByMutRef); err == nil {
		t.Error("&mut str should be rejected")
	}
}

func TestResolveVector(t *testing.T) {
	r := NewResolver(testProgram())

	d, err := r.Resolve(ir.VectorType(ir.PrimType(ir.F64)), DirArgument, ir.ByRef)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Kind != abi.KindSlice || d.Elem.Kind != abi.KindF64 {
		t.Errorf("slice = %s", d)
	}

	// Non-scalar elements are not representable as raw slices.
	if _, err := r.Resolve(ir.VectorType(ir.StringType()), DirArgument, ir.ByRef); err == nil {
		t.Error("Vec<String> should be rejected")
	}

	// Borrowed slices cannot be returned.
	if _, err := r.Resolve(ir.VectorType(ir.PrimType(ir.U8)), DirReturn, ir.ByRef); err == nil {
		t.Error("returning &[u8] should be rejected")
	}
	if _, err := r.Resolve(ir.VectorType(ir.PrimType(ir.U8)), DirReturn, ir.ByValue); err != nil {
		t.Errorf("returning Vec<u8> should work: %v", err)
	}
}

func TestResolveOptionSentinels(t *testing.T) {
	r := NewResolver(testProgram())

	tests := []struct {
		name         string
		typ          *ir.Type
		wantKind     abi.Kind
		wantSentinel bool
		sentinel     int64
	}{
		{"option char", ir.OptionType(ir.PrimType(ir.Char)), abi.KindOption, true, CharNone},
		{"option bool", ir.OptionType(ir.PrimType(ir.Bool)), abi.KindOption, true, BoolNone},
		{"option dense enum", ir.OptionType(ir.NamedType("Order")), abi.KindOption, true, 3},
		{"option string enum", ir.OptionType(ir.NamedType("Mode")), abi.KindOption, true, 3},
		{"option sparse enum falls back", ir.OptionType(ir.NamedType("Code")), abi.KindOption, false, 0},
		{"option f64 falls back", ir.OptionType(ir.PrimType(ir.F64)), abi.KindOption, false, 0},
		{"option any uses slot zero", ir.OptionType(ir.AnyType()), abi.KindOption, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := r.Resolve(tt.typ, DirArgument, ir.ByValue)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if d.Kind != tt.wantKind {
				t.Fatalf("Kind = %s, want %s", d.Kind, tt.wantKind)
			}
			if d.HasSentinel != tt.wantSentinel {
				t.Fatalf("HasSentinel = %v, want %v", d.HasSentinel, tt.wantSentinel)
			}
			if tt.wantSentinel && d.Sentinel != tt.sentinel {
				t.Errorf("Sentinel = %d, want %d", d.Sentinel, tt.sentinel)
			}
		})
	}
}

func TestResolveOptionStructCollapses(t *testing.T) {
	r := NewResolver(testProgram())

	d, err := r.Resolve(ir.OptionType(ir.NamedType("Counter")), DirArgument, ir.ByValue)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Option<Counter> is a nullable handle, one slot, no flag.
	if d.Kind != abi.KindStructPtr || !d.Nullable {
		t.Errorf("got %s, want nullable struct_ptr", d)
	}
	if d.SlotCount() != 1 {
		t.Errorf("SlotCount = %d, want 1", d.SlotCount())
	}
}

func TestResolveResult(t *testing.T) {
	r := NewResolver(testProgram())

	d, err := r.Resolve(ir.ResultType(ir.StringType()), DirReturn, ir.ByValue)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Kind != abi.KindResult || d.Elem.Kind != abi.KindString {
		t.Errorf("result = %s", d)
	}

	if _, err := r.Resolve(ir.ResultType(ir.StringType()), DirArgument, ir.ByValue); err == nil {
		t.Error("Result as argument should be rejected")
	}
}

func TestResolveClosure(t *testing.T) {
	r := NewResolver(testProgram())

	typ := ir.ClosureType([]*ir.Type{ir.PrimType(ir.U32), ir.PrimType(ir.I64)}, ir.PrimType(ir.F64), true)
	d, err := r.Resolve(typ, DirArgument, ir.ByRef)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Kind != abi.KindClosure || len(d.Params) != 2 || !d.Mutable {
		t.Errorf("closure = %+v", d)
	}
	if d.SlotCount() != 2 {
		t.Errorf("closures are a data+vtable pair, got %d slots", d.SlotCount())
	}

	if _, err := r.Resolve(typ, DirReturn, ir.ByValue); err == nil {
		t.Error("closure in return position should be rejected")
	}

	rejected := []struct {
		name string
		typ  *ir.Type
	}{
		{"string param", ir.ClosureType([]*ir.Type{ir.StringType()}, nil, false)},
		{"slice param", ir.ClosureType([]*ir.Type{ir.VectorType(ir.PrimType(ir.U8))}, nil, false)},
		{"any param", ir.ClosureType([]*ir.Type{ir.AnyType()}, nil, false)},
		{"string enum param", ir.ClosureType([]*ir.Type{ir.NamedType("Mode")}, nil, false)},
		{"string return", ir.ClosureType(nil, ir.StringType(), false)},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.typ, DirArgument, ir.ByRef)
			if err == nil {
				t.Fatal("non-scalar closure signature accepted")
			}
			var e *jberrors.Error
			if !errors.As(err, &e) || e.Kind != jberrors.KindUnsupportedType {
				t.Errorf("error = %v", err)
			}
		})
	}
}

func TestResolveNamed(t *testing.T) {
	r := NewResolver(testProgram())

	d, err := r.Resolve(ir.NamedType("Counter"), DirArgument, ir.ByRef)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Kind != abi.KindStructPtr || d.TypeName != "Counter" {
		t.Errorf("struct = %s", d)
	}

	d, err = r.Resolve(ir.NamedType("Code"), DirArgument, ir.ByValue)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Kind != abi.KindEnumNumeric || d.Enum.Name != "Code" {
		t.Errorf("enum = %s", d)
	}

	d, err = r.Resolve(ir.NamedType("Mode"), DirArgument, ir.ByValue)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Kind != abi.KindEnumString {
		t.Errorf("string enum = %s", d)
	}

	if _, err := r.Resolve(ir.NamedType("Ghost"), DirArgument, ir.ByValue); err == nil {
		t.Error("unknown named type should be rejected")
	}
}

func TestResolveUnion(t *testing.T) {
	r := NewResolver(testProgram())

	d, err := r.Resolve(ir.UnionType(ir.StringType(), ir.PrimType(ir.F64)), DirArgument, ir.ByValue)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Kind != abi.KindUnion || len(d.Members) != 2 {
		t.Errorf("union = %s", d)
	}
	// Declaration order is preserved for first-declared-wins matching.
	if d.Members[0].Kind != abi.KindString || d.Members[1].Kind != abi.KindF64 {
		t.Errorf("member order = %s, %s", d.Members[0], d.Members[1])
	}

	if _, err := r.Resolve(ir.UnionType(ir.StringType()), DirArgument, ir.ByValue); err == nil {
		t.Error("single-member union should be rejected")
	}
}

func TestResolveRecursiveType(t *testing.T) {
	r := NewResolver(testProgram())

	// Programmatically cyclic type graph: Vec<...self...>.
	cyc := &ir.Type{Kind: ir.KindVector}
	cyc.Elem = &ir.Type{Kind: ir.KindOption, Elem: cyc}

	_, err := r.Resolve(cyc, DirArgument, ir.ByValue)
	if err == nil {
		t.Fatal("recursive type should be rejected")
	}
	if !errors.Is(err, &jberrors.Error{Phase: jberrors.PhaseResolve, Kind: jberrors.KindRecursiveType}) {
		t.Errorf("wrong error: %v", err)
	}
}

func TestResolveUnitPosition(t *testing.T) {
	r := NewResolver(testProgram())

	d, err := r.Resolve(nil, DirReturn, ir.ByValue)
	if err != nil || d != nil {
		t.Errorf("unit return = (%v, %v), want (nil, nil)", d, err)
	}
	if _, err := r.Resolve(nil, DirArgument, ir.ByValue); err == nil {
		t.Error("unit argument should be rejected")
	}
}

func TestResolveCaching(t *testing.T) {
	r := NewResolver(testProgram())
	typ := ir.OptionType(ir.NamedType("Order"))

	d1, err := r.Resolve(typ, DirArgument, ir.ByValue)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	d2, err := r.Resolve(typ, DirArgument, ir.ByValue)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d1 != d2 {
		t.Error("identical occurrences should share one descriptor")
	}
}
