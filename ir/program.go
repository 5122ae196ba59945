package ir

// Binding describes how an argument (or self) is taken.
type Binding uint8

const (
	ByValue Binding = iota
	ByRef
	ByMutRef
)

var bindingNames = [...]string{
	ByValue:  "value",
	ByRef:    "ref",
	ByMutRef: "ref_mut",
}

func (b Binding) String() string {
	if int(b) < len(bindingNames) {
		return bindingNames[b]
	}
	return "unknown"
}

// MethodKind discriminates how a function attaches to a struct.
type MethodKind uint8

const (
	FreeFunction MethodKind = iota
	Method
	StaticMethod
	Constructor
	Getter
	Setter
)

var methodKindNames = [...]string{
	FreeFunction: "function",
	Method:       "method",
	StaticMethod: "static",
	Constructor:  "constructor",
	Getter:       "getter",
	Setter:       "setter",
}

func (k MethodKind) String() string {
	if int(k) < len(methodKindNames) {
		return methodKindNames[k]
	}
	return "unknown"
}

// Arg is one logical argument of an exported or imported function.
type Arg struct {
	Type    *Type   `json:"type"`
	Name    string  `json:"name"`
	Binding Binding `json:"binding,omitempty"`
}

// Function describes one exported item. Methods carry their receiver in
// Receiver; free functions leave it empty.
type Function struct {
	Ret      *Type      `json:"ret,omitempty"` // nil = unit
	Args     []Arg      `json:"args,omitempty"`
	Name     string     `json:"name"`
	Receiver string     `json:"receiver,omitempty"` // owning struct for methods
	Kind     MethodKind `json:"method_kind,omitempty"`
	SelfBind Binding    `json:"self_binding,omitempty"` // meaningful when Kind == Method
	Async    bool       `json:"async,omitempty"`
	Catch    bool       `json:"catch,omitempty"` // Result return captures thrown JS values
}

// Field is one exposed struct field (rendered as getter/setter pairs).
type Field struct {
	Type     *Type  `json:"type"`
	Name     string `json:"name"`
	Readonly bool   `json:"readonly,omitempty"`
}

// Struct describes an exported Rust struct surfaced as a JS class holding an
// opaque handle.
type Struct struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields,omitempty"`
}

// Variant is one case of a numeric enum.
type Variant struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Enum describes an exported enum. Numeric enums carry Variants with explicit
// discriminants (possibly sparse or negative). String enums carry Values, an
// append-only ordered table whose integer index is the wire representation.
type Enum struct {
	Name     string    `json:"name"`
	Variants []Variant `json:"variants,omitempty"`
	Values   []string  `json:"values,omitempty"`
}

// IsString reports whether the enum is string-valued.
func (e *Enum) IsString() bool { return len(e.Values) > 0 }

// Hole returns a discriminant not used by any variant, for in-band Option
// sentinels. The second return is false when the variant domain is not dense
// starting at zero, in which case callers fall back to a flag slot.
func (e *Enum) Hole() (int64, bool) {
	if e.IsString() {
		return int64(len(e.Values)), true
	}
	// Dense check: every discriminant in 0..len-1.
	seen := make(map[int64]bool, len(e.Variants))
	for _, v := range e.Variants {
		if v.Value < 0 || v.Value >= int64(len(e.Variants)) {
			return 0, false
		}
		seen[v.Value] = true
	}
	if len(seen) != len(e.Variants) {
		return 0, false
	}
	return int64(len(e.Variants)), true
}

// VariantByValue returns the variant with the given discriminant.
func (e *Enum) VariantByValue(v int64) (Variant, bool) {
	for _, vr := range e.Variants {
		if vr.Value == v {
			return vr, true
		}
	}
	return Variant{}, false
}

// Import describes one JS function the Rust side calls through a trampoline.
type Import struct {
	Function Function `json:"function"`
	Module   string   `json:"module,omitempty"` // JS module specifier; empty = global
}

// Program is the complete per-crate description consumed by the resolver.
type Program struct {
	Name      string      `json:"name"`
	Functions []*Function `json:"functions,omitempty"`
	Structs   []*Struct   `json:"structs,omitempty"`
	Enums     []*Enum     `json:"enums,omitempty"`
	Imports   []*Import   `json:"imports,omitempty"`
}

// StructByName returns the declared struct with the given name.
func (p *Program) StructByName(name string) (*Struct, bool) {
	for _, s := range p.Structs {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// EnumByName returns the declared enum with the given name.
func (p *Program) EnumByName(name string) (*Enum, bool) {
	for _, e := range p.Enums {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}
