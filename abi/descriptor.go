package abi

import (
	"strings"

	"github.com/wippyai/jsbind/ir"
)

// SlotKind is one raw wasm value slot at the boundary.
type SlotKind uint8

const (
	SlotI32 SlotKind = iota
	SlotI64
	SlotF32
	SlotF64
)

var slotNames = [...]string{
	SlotI32: "i32",
	SlotI64: "i64",
	SlotF32: "f32",
	SlotF64: "f64",
}

func (s SlotKind) String() string {
	if int(s) < len(slotNames) {
		return slotNames[s]
	}
	return "unknown"
}

// Descriptor describes one cross-boundary value shape.
//
// Descriptors are trees: containers reference their element descriptors.
// Trees are finite by construction; the resolver rejects recursive types
// before a Descriptor is ever built.
type Descriptor struct {
	Elem        *Descriptor   // Slice/Option element, Result ok value, Closure return
	Params      []*Descriptor // Closure parameters
	Members     []*Descriptor // Union candidates, declaration order
	Enum        *ir.Enum      // EnumNumeric/EnumString declaration
	TypeName    string        // StructPtr class name, enum name, union spelling
	Sentinel    int64         // Option in-band None encoding (valid when HasSentinel)
	Kind        Kind
	ElemPrim    ir.Prim // Slice: declared element primitive, keeps sub-32-bit widths
	Mutable     bool    // Closure: FnMut
	Nullable    bool    // StructPtr: zero handle means absent
	HasSentinel bool
}

// Slots returns the fixed slot-kind sequence for this descriptor. The
// sequence depends only on the descriptor's structure, never on a value.
func (d *Descriptor) Slots() []SlotKind {
	switch d.Kind {
	case KindI32, KindU32, KindBool, KindChar, KindEnumNumeric, KindEnumString,
		KindStructPtr, KindExternref, KindUnion:
		return []SlotKind{SlotI32}
	case KindI64, KindU64:
		return []SlotKind{SlotI64}
	case KindF32:
		return []SlotKind{SlotF32}
	case KindF64:
		return []SlotKind{SlotF64}
	case KindI128, KindU128:
		return []SlotKind{SlotI64, SlotI64}
	case KindString, KindSlice, KindClosure:
		return []SlotKind{SlotI32, SlotI32}
	case KindOption:
		if d.HasSentinel {
			return d.Elem.Slots()
		}
		return append([]SlotKind{SlotI32}, d.Elem.Slots()...)
	case KindResult:
		var ok []SlotKind
		if d.Elem != nil {
			ok = d.Elem.Slots()
		}
		// trailing i32: externref-table index of the thrown value, 0 = success
		return append(append([]SlotKind{}, ok...), SlotI32)
	default:
		return nil
	}
}

// SlotCount returns len(Slots()) without allocating for the common shapes.
func (d *Descriptor) SlotCount() int {
	switch d.Kind {
	case KindI128, KindU128, KindString, KindSlice, KindClosure:
		return 2
	case KindOption:
		if d.HasSentinel {
			return d.Elem.SlotCount()
		}
		return 1 + d.Elem.SlotCount()
	case KindResult:
		n := 1
		if d.Elem != nil {
			n += d.Elem.SlotCount()
		}
		return n
	default:
		return 1
	}
}

// NeedsMemory reports whether marshalling this shape touches linear memory
// (and therefore participates in the deferred-free discipline).
func (d *Descriptor) NeedsMemory() bool {
	switch d.Kind {
	case KindString, KindSlice:
		return true
	case KindOption, KindResult:
		return d.Elem != nil && d.Elem.NeedsMemory()
	default:
		return false
	}
}

// String renders a compact spelling for diagnostics and the inspector.
func (d *Descriptor) String() string {
	switch d.Kind {
	case KindString:
		return "string"
	case KindSlice:
		return "slice<" + d.Elem.String() + ">"
	case KindStructPtr:
		if d.Nullable {
			return "struct_ptr?<" + d.TypeName + ">"
		}
		return "struct_ptr<" + d.TypeName + ">"
	case KindExternref:
		return "externref"
	case KindOption:
		if d.HasSentinel {
			return "option<" + d.Elem.String() + ">/sentinel"
		}
		return "option<" + d.Elem.String() + ">"
	case KindResult:
		if d.Elem == nil {
			return "result<()>"
		}
		return "result<" + d.Elem.String() + ">"
	case KindClosure:
		var b strings.Builder
		b.WriteString("closure/")
		if d.Mutable {
			b.WriteString("mut/")
		}
		b.WriteString(arityString(len(d.Params)))
		return b.String()
	case KindEnumNumeric, KindEnumString:
		return d.Kind.String() + "<" + d.Enum.Name + ">"
	case KindUnion:
		parts := make([]string, len(d.Members))
		for i, m := range d.Members {
			parts[i] = m.String()
		}
		return "union<" + strings.Join(parts, "|") + ">"
	default:
		return d.Kind.String()
	}
}

func arityString(n int) string {
	digits := "0123456789"
	if n < 10 {
		return "arity" + digits[n:n+1]
	}
	return "arity" + digits[n/10:n/10+1] + digits[n%10:n%10+1]
}
