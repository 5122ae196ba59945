package ir

import "strings"

// Prim identifies a primitive numeric/scalar type.
type Prim uint8

const (
	Bool Prim = iota
	I8
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	I128
	U128
	F32
	F64
	Char
)

var primNames = [...]string{
	Bool: "bool",
	I8:   "i8",
	U8:   "u8",
	I16:  "i16",
	U16:  "u16",
	I32:  "i32",
	U32:  "u32",
	I64:  "i64",
	U64:  "u64",
	I128: "i128",
	U128: "u128",
	F32:  "f32",
	F64:  "f64",
	Char: "char",
}

func (p Prim) String() string {
	if int(p) < len(primNames) {
		return primNames[p]
	}
	return "unknown"
}

// Signed reports whether the primitive is a signed integer.
func (p Prim) Signed() bool {
	switch p {
	case I8, I16, I32, I64, I128:
		return true
	}
	return false
}

// TypeKind discriminates Type expressions.
type TypeKind uint8

const (
	KindPrim TypeKind = iota
	KindString
	KindVector
	KindOption
	KindResult
	KindClosure
	KindNamed
	KindAny
	KindUnion
)

var typeKindNames = [...]string{
	KindPrim:    "prim",
	KindString:  "string",
	KindVector:  "vector",
	KindOption:  "option",
	KindResult:  "result",
	KindClosure: "closure",
	KindNamed:   "named",
	KindAny:     "any",
	KindUnion:   "union",
}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return "unknown"
}

// Type is one node in a type expression tree.
type Type struct {
	Elem    *Type    `json:"elem,omitempty"`    // Vector/Option element, Result ok value
	Ret     *Type    `json:"ret,omitempty"`     // Closure result (nil = unit)
	Params  []*Type  `json:"params,omitempty"`  // Closure parameters
	Members []*Type  `json:"members,omitempty"` // Union members, declaration order
	Name    string   `json:"name,omitempty"`    // Named reference target
	Kind    TypeKind `json:"kind"`
	Prim    Prim     `json:"prim,omitempty"`
	Mutable bool     `json:"mutable,omitempty"` // Closure: FnMut rather than Fn
}

// Convenience constructors used by the front end and tests.

func PrimType(p Prim) *Type     { return &Type{Kind: KindPrim, Prim: p} }
func StringType() *Type         { return &Type{Kind: KindString} }
func VectorType(el *Type) *Type { return &Type{Kind: KindVector, Elem: el} }
func OptionType(el *Type) *Type { return &Type{Kind: KindOption, Elem: el} }
func ResultType(ok *Type) *Type { return &Type{Kind: KindResult, Elem: ok} }
func NamedType(name string) *Type {
	return &Type{Kind: KindNamed, Name: name}
}
func AnyType() *Type { return &Type{Kind: KindAny} }
func ClosureType(params []*Type, ret *Type, mutable bool) *Type {
	return &Type{Kind: KindClosure, Params: params, Ret: ret, Mutable: mutable}
}
func UnionType(members ...*Type) *Type {
	return &Type{Kind: KindUnion, Members: members}
}

// maxRenderDepth caps type rendering so a cyclic type still produces a
// finite diagnostic string.
const maxRenderDepth = 12

// String renders a Rust-flavored spelling for diagnostics.
func (t *Type) String() string { return t.render(0) }

func (t *Type) render(depth int) string {
	if t == nil {
		return "()"
	}
	if depth >= maxRenderDepth {
		return "..."
	}
	switch t.Kind {
	case KindPrim:
		return t.Prim.String()
	case KindString:
		return "String"
	case KindVector:
		return "Vec<" + t.Elem.render(depth+1) + ">"
	case KindOption:
		return "Option<" + t.Elem.render(depth+1) + ">"
	case KindResult:
		return "Result<" + t.Elem.render(depth+1) + ", JsValue>"
	case KindClosure:
		var b strings.Builder
		if t.Mutable {
			b.WriteString("FnMut(")
		} else {
			b.WriteString("Fn(")
		}
		for i, p := range t.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.render(depth + 1))
		}
		b.WriteByte(')')
		if t.Ret != nil {
			b.WriteString(" -> ")
			b.WriteString(t.Ret.render(depth + 1))
		}
		return b.String()
	case KindNamed:
		return t.Name
	case KindAny:
		return "JsValue"
	case KindUnion:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = m.render(depth + 1)
		}
		return strings.Join(parts, " | ")
	default:
		return "unknown"
	}
}
