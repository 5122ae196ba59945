package gen

import (
	"fmt"
	"strings"

	"github.com/wippyai/jsbind/abi"
	"github.com/wippyai/jsbind/errors"
	"github.com/wippyai/jsbind/ir"
)

// marshalCtx tracks temporaries while lowering one function body. With hoist
// set, deferred-free temporaries are declared by the caller ahead of the try
// block so the finally clause can reach them.
type marshalCtx struct {
	g       *Generator
	w       *writer
	hoisted []string
	tmp     int
	hoist   bool
}

func (m *marshalCtx) next() int {
	n := m.tmp
	m.tmp++
	return n
}

// pair declares the ptr/len temporaries for slot pair decoding, hoisting
// them when requested, and returns their names.
func (m *marshalCtx) pair(slots []string) (string, string) {
	n := m.next()
	ptr := fmt.Sprintf("ptr%d", n)
	length := fmt.Sprintf("len%d", n)
	if m.hoist {
		m.hoisted = append(m.hoisted, ptr, length)
		m.w.line("%s = %s;", ptr, slots[0])
		m.w.line("%s = %s;", length, slots[1])
	} else {
		m.w.line("const %s = %s;", ptr, slots[0])
		m.w.line("const %s = %s;", length, slots[1])
	}
	return ptr, length
}

// lowered is the result of marshalling one JS value down to raw slots.
type lowered struct {
	slots []string // one expression per raw wasm slot
	frees []string // statements for the finally block
}

// lower emits statements converting JS expression v into raw slot
// expressions for a value shaped like d.
func (m *marshalCtx) lower(v string, d *abi.Descriptor, own abi.OwnershipPlan) (lowered, error) {
	switch d.Kind {
	case abi.KindI32, abi.KindU32, abi.KindF32, abi.KindF64, abi.KindI64, abi.KindU64:
		return lowered{slots: []string{v}}, nil

	case abi.KindEnumNumeric:
		return lowered{slots: []string{fmt.Sprintf("__into%s(%s)", d.Enum.Name, v)}}, nil

	case abi.KindBool:
		return lowered{slots: []string{fmt.Sprintf("(%s ? 1 : 0)", v)}}, nil

	case abi.KindChar:
		return lowered{slots: []string{fmt.Sprintf("%s.codePointAt(0)", v)}}, nil

	case abi.KindI128, abi.KindU128:
		n := m.next()
		hiSign := "asIntN"
		if d.Kind == abi.KindU128 {
			hiSign = "asUintN"
		}
		m.w.line("const lo%d = BigInt.asUintN(64, %s);", n, v)
		m.w.line("const hi%d = BigInt.%s(64, %s >> 64n);", n, hiSign, v)
		return lowered{slots: []string{fmt.Sprintf("lo%d", n), fmt.Sprintf("hi%d", n)}}, nil

	case abi.KindString:
		n := m.next()
		m.w.line("const ptr%d = passStringToWasm(%s, __state.wasm.__wbindgen_malloc, __state.wasm.__wbindgen_realloc);", n, v)
		m.w.line("const len%d = WASM_VECTOR_LEN;", n)
		out := lowered{slots: []string{fmt.Sprintf("ptr%d", n), fmt.Sprintf("len%d", n)}}
		if own == abi.CallerOwnsBorrowed {
			out.frees = []string{fmt.Sprintf("__state.wasm.__wbindgen_free(ptr%d, len%d, 1);", n, n)}
		}
		return out, nil

	case abi.KindSlice:
		name, size, err := elemWidth(d)
		if err != nil {
			return lowered{}, err
		}
		m.g.arrayKinds[name] = true
		n := m.next()
		m.w.line("const ptr%d = passArray%sToWasm(%s, __state.wasm.__wbindgen_malloc);", n, name, v)
		m.w.line("const len%d = WASM_VECTOR_LEN;", n)
		out := lowered{slots: []string{fmt.Sprintf("ptr%d", n), fmt.Sprintf("len%d", n)}}
		if own == abi.CallerOwnsBorrowed {
			if d.Mutable {
				// Mutations made by the callee flow back before the copy is
				// released.
				out.frees = append(out.frees,
					fmt.Sprintf("%s.set(getArray%sFromWasm(ptr%d, len%d));", v, name, n, n))
			}
			out.frees = append(out.frees,
				fmt.Sprintf("__state.wasm.__wbindgen_free(ptr%d, len%d * %d, %d);", n, n, size, size))
		}
		return out, nil

	case abi.KindStructPtr:
		if d.Nullable {
			return lowered{slots: []string{fmt.Sprintf("(isLikeNone(%s) ? 0 : %s.__ptr)", v, v)}}, nil
		}
		if own == abi.CalleeTakesOwnership {
			n := m.next()
			m.w.line("const ptr%d = %s.__destroy_into_raw();", n, v)
			return lowered{slots: []string{fmt.Sprintf("ptr%d", n)}}, nil
		}
		return lowered{slots: []string{v + ".__ptr"}}, nil

	case abi.KindExternref, abi.KindUnion:
		return lowered{slots: []string{fmt.Sprintf("addObject(%s)", v)}}, nil

	case abi.KindEnumString:
		return lowered{slots: []string{fmt.Sprintf("__into%s(%s)", d.Enum.Name, v)}}, nil

	case abi.KindClosure:
		// JS functions travel to the wasm side as a heap index; the guest
		// invokes them through the closure-invoke import.
		return lowered{slots: []string{fmt.Sprintf("addObject(%s)", v), "0"}}, nil

	case abi.KindOption:
		return m.lowerOption(v, d, own)

	default:
		return lowered{}, errors.New(errors.PhaseGenerate, errors.KindUnsupportedType).
			Detail("cannot marshal %s to the wasm side", d).
			Build()
	}
}

func (m *marshalCtx) lowerOption(v string, d *abi.Descriptor, own abi.OwnershipPlan) (lowered, error) {
	if d.HasSentinel {
		inner, err := m.lower(v, d.Elem, own)
		if err != nil {
			return lowered{}, err
		}
		if len(inner.slots) != 1 {
			return lowered{}, errors.New(errors.PhaseGenerate, errors.KindUnsupportedType).
				Detail("sentinel option over a multi-slot shape %s", d.Elem).
				Build()
		}
		expr := fmt.Sprintf("(isLikeNone(%s) ? %d : %s)", v, d.Sentinel, inner.slots[0])
		return lowered{slots: []string{expr}, frees: inner.frees}, nil
	}

	if d.Elem.NeedsMemory() {
		// The element marshal runs under the presence check; the pointer
		// stays 0 for None so the free is a no-op either way.
		n := m.next()
		m.w.line("let ptr%d = 0;", n)
		m.w.line("let len%d = 0;", n)
		m.w.line("if (!isLikeNone(%s)) {", v)
		m.w.in()
		inner, err := m.lower(v, d.Elem, abi.CalleeTakesOwnership)
		if err != nil {
			return lowered{}, err
		}
		m.w.line("ptr%d = %s;", n, inner.slots[0])
		m.w.line("len%d = %s;", n, inner.slots[1])
		m.w.out()
		m.w.line("}")
		out := lowered{slots: []string{
			fmt.Sprintf("(isLikeNone(%s) ? 0 : 1)", v),
			fmt.Sprintf("ptr%d", n),
			fmt.Sprintf("len%d", n),
		}}
		if own == abi.CallerOwnsBorrowed {
			if d.Elem.Kind == abi.KindSlice {
				name, size, err := elemWidth(d.Elem)
				if err != nil {
					return lowered{}, err
				}
				if d.Elem.Mutable {
					out.frees = append(out.frees, fmt.Sprintf(
						"if (ptr%d !== 0) %s.set(getArray%sFromWasm(ptr%d, len%d));", n, v, name, n, n))
				}
				out.frees = append(out.frees, fmt.Sprintf(
					"if (ptr%d !== 0) __state.wasm.__wbindgen_free(ptr%d, len%d * %d, %d);", n, n, n, size, size))
			} else {
				out.frees = []string{fmt.Sprintf(
					"if (ptr%d !== 0) __state.wasm.__wbindgen_free(ptr%d, len%d, 1);", n, n, n)}
			}
		}
		return out, nil
	}

	inner, err := m.lower(v, d.Elem, own)
	if err != nil {
		return lowered{}, err
	}
	slots := []string{fmt.Sprintf("(isLikeNone(%s) ? 0 : 1)", v)}
	for _, s := range inner.slots {
		slots = append(slots, fmt.Sprintf("(isLikeNone(%s) ? 0 : %s)", v, s))
	}
	return lowered{slots: slots, frees: inner.frees}, nil
}

// lift emits statements converting raw slot expressions back into a JS
// value, returning the value expression.
func (m *marshalCtx) lift(slots []string, d *abi.Descriptor, own abi.OwnershipPlan) (string, []string, error) {
	switch d.Kind {
	case abi.KindI32, abi.KindF32, abi.KindF64, abi.KindI64:
		return slots[0], nil, nil

	case abi.KindEnumNumeric:
		return fmt.Sprintf("__into%s(%s)", d.Enum.Name, slots[0]), nil, nil

	case abi.KindU32:
		return fmt.Sprintf("(%s >>> 0)", slots[0]), nil, nil

	case abi.KindU64:
		return fmt.Sprintf("BigInt.asUintN(64, %s)", slots[0]), nil, nil

	case abi.KindBool:
		return fmt.Sprintf("(%s !== 0)", slots[0]), nil, nil

	case abi.KindChar:
		return fmt.Sprintf("String.fromCodePoint(%s)", slots[0]), nil, nil

	case abi.KindI128:
		return fmt.Sprintf("((BigInt.asIntN(64, %s) << 64n) | BigInt.asUintN(64, %s))",
			slots[1], slots[0]), nil, nil

	case abi.KindU128:
		return fmt.Sprintf("((BigInt.asUintN(64, %s) << 64n) | BigInt.asUintN(64, %s))",
			slots[1], slots[0]), nil, nil

	case abi.KindString:
		ptr, length := m.pair(slots)
		expr := fmt.Sprintf("getStringFromWasm(%s, %s)", ptr, length)
		if own == abi.CalleeReturnsOwnership {
			return expr, []string{fmt.Sprintf(
				"if (%s !== 0) __state.wasm.__wbindgen_free(%s, %s, 1);", ptr, ptr, length)}, nil
		}
		return expr, nil, nil

	case abi.KindSlice:
		name, size, err := elemWidth(d)
		if err != nil {
			return "", nil, err
		}
		m.g.arrayKinds[name] = true
		ptr, length := m.pair(slots)
		expr := fmt.Sprintf("getArray%sFromWasm(%s, %s)", name, ptr, length)
		if own == abi.CalleeReturnsOwnership {
			return expr, []string{fmt.Sprintf(
				"if (%s !== 0) __state.wasm.__wbindgen_free(%s, %s * %d, %d);", ptr, ptr, length, size, size)}, nil
		}
		return expr, nil, nil

	case abi.KindStructPtr:
		if d.Nullable {
			return fmt.Sprintf("(%s === 0 ? undefined : %s.__wrap(%s))",
				slots[0], d.TypeName, slots[0]), nil, nil
		}
		return fmt.Sprintf("%s.__wrap(%s)", d.TypeName, slots[0]), nil, nil

	case abi.KindExternref, abi.KindUnion:
		if own == abi.CallerOwnsBorrowed {
			return fmt.Sprintf("getObject(%s)", slots[0]), nil, nil
		}
		return fmt.Sprintf("takeObject(%s)", slots[0]), nil, nil

	case abi.KindEnumString:
		return fmt.Sprintf("__%sValues[%s]", d.Enum.Name, slots[0]), nil, nil

	case abi.KindClosure:
		return fmt.Sprintf("__makeClosure(%s, %s)", slots[0], slots[1]), nil, nil

	case abi.KindOption:
		return m.liftOption(slots, d, own)

	default:
		return "", nil, errors.New(errors.PhaseGenerate, errors.KindUnsupportedType).
			Detail("cannot marshal %s back from the wasm side", d).
			Build()
	}
}

func (m *marshalCtx) liftOption(slots []string, d *abi.Descriptor, own abi.OwnershipPlan) (string, []string, error) {
	if d.HasSentinel {
		inner, frees, err := m.lift(slots, d.Elem, own)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s === %d ? undefined : %s)", slots[0], d.Sentinel, inner), frees, nil
	}

	if d.Elem.NeedsMemory() {
		// Decode and release inside the presence branch; nothing is
		// deferred because the pointer is only valid when present.
		n := m.next()
		m.w.line("let opt%d = undefined;", n)
		m.w.line("if (%s !== 0) {", slots[0])
		m.w.in()
		inner, frees, err := m.lift(slots[1:], d.Elem, own)
		if err != nil {
			return "", nil, err
		}
		m.w.line("opt%d = %s;", n, inner)
		for _, f := range frees {
			m.w.line("%s", f)
		}
		m.w.out()
		m.w.line("}")
		return fmt.Sprintf("opt%d", n), nil, nil
	}

	inner, frees, err := m.lift(slots[1:], d.Elem, own)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("(%s === 0 ? undefined : %s)", slots[0], inner), frees, nil
}

// elemWidth maps a slice descriptor to its typed-array suffix and element
// byte size. The declared primitive wins so Vec<u8> stays a Uint8Array even
// though u8 widens to a full slot elsewhere.
func elemWidth(d *abi.Descriptor) (string, int, error) {
	var name string
	switch d.Elem.Kind {
	case abi.KindI32, abi.KindU32, abi.KindI64, abi.KindU64, abi.KindF32, abi.KindF64,
		abi.KindBool, abi.KindChar:
		name = primWidths[d.ElemPrim]
	case abi.KindEnumNumeric:
		name = "I32"
	}
	if name == "" {
		return "", 0, errors.New(errors.PhaseGenerate, errors.KindUnsupportedType).
			Detail("slice element %s has no typed-array representation", d.Elem).
			Build()
	}
	return name, elemSizes[name], nil
}

var primWidths = map[ir.Prim]string{
	ir.Bool: "U8",
	ir.I8:   "I8",
	ir.U8:   "U8",
	ir.I16:  "I16",
	ir.U16:  "U16",
	ir.I32:  "I32",
	ir.U32:  "U32",
	ir.I64:  "I64",
	ir.U64:  "U64",
	ir.F32:  "F32",
	ir.F64:  "F64",
	ir.Char: "U32",
}

// slotOffsets lays out raw slots in a ret area with natural alignment and
// returns the per-slot byte offsets and total size.
func slotOffsets(slots []abi.SlotKind) ([]int, int) {
	offs := make([]int, len(slots))
	pos := 0
	for i, s := range slots {
		size := 4
		if s == abi.SlotI64 || s == abi.SlotF64 {
			size = 8
		}
		if pos%size != 0 {
			pos += size - pos%size
		}
		offs[i] = pos
		pos += size
	}
	if pos%8 != 0 {
		pos += 8 - pos%8
	}
	return offs, pos
}

func slotGetter(s abi.SlotKind) string {
	switch s {
	case abi.SlotI64:
		return "getBigInt64"
	case abi.SlotF32:
		return "getFloat32"
	case abi.SlotF64:
		return "getFloat64"
	default:
		return "getInt32"
	}
}

func slotSetter(s abi.SlotKind) string {
	return "s" + slotGetter(s)[1:]
}

// callArgs renders a comma-joined argument list.
func callArgs(parts ...[]string) string {
	var all []string
	for _, p := range parts {
		all = append(all, p...)
	}
	return strings.Join(all, ", ")
}

