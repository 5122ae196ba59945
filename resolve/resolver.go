package resolve

import (
	"sync"

	"github.com/wippyai/jsbind/abi"
	"github.com/wippyai/jsbind/errors"
	"github.com/wippyai/jsbind/ir"
)

// Direction distinguishes values flowing into a call from values flowing out.
type Direction uint8

const (
	DirArgument Direction = iota
	DirReturn
)

var directionNames = [...]string{
	DirArgument: "argument",
	DirReturn:   "return",
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "unknown"
}

// Sentinel encodings for in-band Option None values.
const (
	// CharNone is one past the largest Unicode scalar value.
	CharNone = 0x110000
	// BoolNone is the reference glue's out-of-domain boolean encoding.
	BoolNone = 0xFFFFFF
)

// Resolver maps ir.Type expressions to abi.Descriptor trees against one
// Program's declarations. Safe for concurrent use.
type Resolver struct {
	prog  *ir.Program
	cache sync.Map // cacheKey -> *abi.Descriptor
}

type cacheKey struct {
	typ  *ir.Type
	dir  Direction
	bind ir.Binding
}

// NewResolver creates a resolver for the given program.
func NewResolver(prog *ir.Program) *Resolver {
	return &Resolver{prog: prog}
}

// Resolve produces the descriptor for one type occurrence. A nil type is the
// unit type and resolves to a nil descriptor (legal only in return position).
func (r *Resolver) Resolve(t *ir.Type, dir Direction, bind ir.Binding) (*abi.Descriptor, error) {
	if t == nil {
		if dir != DirReturn {
			return nil, errors.UnsupportedType(errors.PhaseResolve, nil, "()", "unit is only valid as a return type")
		}
		return nil, nil
	}

	key := cacheKey{typ: t, dir: dir, bind: bind}
	if cached, ok := r.cache.Load(key); ok {
		return cached.(*abi.Descriptor), nil
	}

	d, err := r.resolve(t, dir, bind, nil, make(map[*ir.Type]bool))
	if err != nil {
		return nil, err
	}

	r.cache.Store(key, d)
	return d, nil
}

func (r *Resolver) resolve(t *ir.Type, dir Direction, bind ir.Binding, path []string, inFlight map[*ir.Type]bool) (*abi.Descriptor, error) {
	if inFlight[t] {
		return nil, errors.RecursiveType(path, t.String())
	}
	inFlight[t] = true
	defer delete(inFlight, t)

	switch t.Kind {
	case ir.KindPrim:
		return resolvePrim(t.Prim, path)
	case ir.KindString:
		if bind == ir.ByMutRef {
			return nil, errors.UnsupportedType(errors.PhaseResolve, path, "&mut str",
				"mutable string references have no cross-boundary representation")
		}
		return &abi.Descriptor{Kind: abi.KindString}, nil
	case ir.KindVector:
		return r.resolveVector(t, dir, bind, path, inFlight)
	case ir.KindOption:
		return r.resolveOption(t, dir, bind, path, inFlight)
	case ir.KindResult:
		return r.resolveResult(t, dir, path, inFlight)
	case ir.KindClosure:
		return r.resolveClosure(t, dir, path, inFlight)
	case ir.KindNamed:
		return r.resolveNamed(t, path)
	case ir.KindAny:
		return &abi.Descriptor{Kind: abi.KindExternref}, nil
	case ir.KindUnion:
		return r.resolveUnion(t, dir, path, inFlight)
	default:
		return nil, errors.New(errors.PhaseResolve, errors.KindUnsupportedType).
			Path(path...).
			Detail("unknown type kind %d", t.Kind).
			Build()
	}
}

// resolvePrim widens sub-32-bit integers to one i32/u32 slot; each side
// truncates or sign-extends consistently. 128-bit integers always decompose
// into two 64-bit words, high word carrying sign for i128.
func resolvePrim(p ir.Prim, path []string) (*abi.Descriptor, error) {
	var k abi.Kind
	switch p {
	case ir.Bool:
		k = abi.KindBool
	case ir.I8, ir.I16, ir.I32:
		k = abi.KindI32
	case ir.U8, ir.U16, ir.U32:
		k = abi.KindU32
	case ir.I64:
		k = abi.KindI64
	case ir.U64:
		k = abi.KindU64
	case ir.I128:
		k = abi.KindI128
	case ir.U128:
		k = abi.KindU128
	case ir.F32:
		k = abi.KindF32
	case ir.F64:
		k = abi.KindF64
	case ir.Char:
		k = abi.KindChar
	default:
		return nil, errors.New(errors.PhaseResolve, errors.KindUnsupportedType).
			Path(path...).
			Detail("unknown primitive %d", p).
			Build()
	}
	return &abi.Descriptor{Kind: k}, nil
}

func (r *Resolver) resolveVector(t *ir.Type, dir Direction, bind ir.Binding, path []string, inFlight map[*ir.Type]bool) (*abi.Descriptor, error) {
	if dir == DirReturn && bind != ir.ByValue {
		return nil, errors.Ownership(path, "returned slices must be owned; a borrowed slice cannot outlive the call")
	}

	elemPath := append(append([]string{}, path...), "[elem]")
	elem, err := r.resolve(t.Elem, dir, ir.ByValue, elemPath, inFlight)
	if err != nil {
		return nil, err
	}
	if !elem.Kind.IsScalar() {
		return nil, errors.UnsupportedType(errors.PhaseResolve, elemPath, t.String(),
			"slice elements must be scalar; box non-scalar elements as JsValue arrays")
	}

	d := &abi.Descriptor{Kind: abi.KindSlice, Elem: elem, Mutable: bind == ir.ByMutRef}
	if t.Elem.Kind == ir.KindPrim {
		// The element widens to a full slot at the boundary but keeps its
		// declared width inside the slice allocation.
		d.ElemPrim = t.Elem.Prim
	}
	return d, nil
}

func (r *Resolver) resolveOption(t *ir.Type, dir Direction, bind ir.Binding, path []string, inFlight map[*ir.Type]bool) (*abi.Descriptor, error) {
	elemPath := append(append([]string{}, path...), "[some]")
	elem, err := r.resolve(t.Elem, dir, bind, elemPath, inFlight)
	if err != nil {
		return nil, err
	}

	// Prefer in-band sentinels when the element's domain has spare values.
	switch elem.Kind {
	case abi.KindStructPtr:
		// Zero handle doubles as None; no extra slot.
		out := *elem
		out.Nullable = true
		return &out, nil
	case abi.KindExternref:
		// Table index 0 is the reserved nothing sentinel.
		return &abi.Descriptor{Kind: abi.KindOption, Elem: elem, HasSentinel: true, Sentinel: 0}, nil
	case abi.KindChar:
		return &abi.Descriptor{Kind: abi.KindOption, Elem: elem, HasSentinel: true, Sentinel: CharNone}, nil
	case abi.KindBool:
		return &abi.Descriptor{Kind: abi.KindOption, Elem: elem, HasSentinel: true, Sentinel: BoolNone}, nil
	case abi.KindEnumNumeric, abi.KindEnumString:
		if hole, ok := elem.Enum.Hole(); ok {
			return &abi.Descriptor{Kind: abi.KindOption, Elem: elem, HasSentinel: true, Sentinel: hole}, nil
		}
	}

	// Out-of-band presence flag.
	return &abi.Descriptor{Kind: abi.KindOption, Elem: elem}, nil
}

func (r *Resolver) resolveResult(t *ir.Type, dir Direction, path []string, inFlight map[*ir.Type]bool) (*abi.Descriptor, error) {
	if dir != DirReturn {
		return nil, errors.UnsupportedType(errors.PhaseResolve, path, t.String(),
			"Result is only valid as a return type")
	}

	var ok *abi.Descriptor
	if t.Elem != nil {
		okPath := append(append([]string{}, path...), "[ok]")
		var err error
		ok, err = r.resolve(t.Elem, DirReturn, ir.ByValue, okPath, inFlight)
		if err != nil {
			return nil, err
		}
	}

	return &abi.Descriptor{Kind: abi.KindResult, Elem: ok}, nil
}

func (r *Resolver) resolveClosure(t *ir.Type, dir Direction, path []string, inFlight map[*ir.Type]bool) (*abi.Descriptor, error) {
	if dir == DirReturn {
		return nil, errors.UnsupportedType(errors.PhaseResolve, path, t.String(),
			"closures cannot be returned across the boundary")
	}

	params := make([]*abi.Descriptor, len(t.Params))
	for i, p := range t.Params {
		pPath := append(append([]string{}, path...), "[param]")
		d, err := r.resolve(p, DirArgument, ir.ByValue, pPath, inFlight)
		if err != nil {
			return nil, err
		}
		// The closure-invoke trampoline forwards raw slots without any
		// conversion, so only numeric scalars survive the crossing.
		if !closureScalar(d) {
			return nil, errors.UnsupportedType(errors.PhaseResolve, pPath, p.String(),
				"closure parameters must be numeric scalars")
		}
		params[i] = d
	}

	var ret *abi.Descriptor
	if t.Ret != nil {
		rPath := append(append([]string{}, path...), "[ret]")
		var err error
		ret, err = r.resolve(t.Ret, DirReturn, ir.ByValue, rPath, inFlight)
		if err != nil {
			return nil, err
		}
		if !closureScalar(ret) {
			return nil, errors.UnsupportedType(errors.PhaseResolve, rPath, t.Ret.String(),
				"closure return values must be numeric scalars")
		}
	}

	return &abi.Descriptor{Kind: abi.KindClosure, Params: params, Elem: ret, Mutable: t.Mutable}, nil
}

// closureScalar reports whether a descriptor crosses the closure-invoke
// trampoline intact. String enums are excluded: their slot is a table index
// whose meaning only exists after conversion.
func closureScalar(d *abi.Descriptor) bool {
	return d.Kind.IsScalar() && d.Kind != abi.KindEnumString
}

func (r *Resolver) resolveNamed(t *ir.Type, path []string) (*abi.Descriptor, error) {
	if _, ok := r.prog.StructByName(t.Name); ok {
		return &abi.Descriptor{Kind: abi.KindStructPtr, TypeName: t.Name}, nil
	}
	if e, ok := r.prog.EnumByName(t.Name); ok {
		if e.IsString() {
			return &abi.Descriptor{Kind: abi.KindEnumString, Enum: e, TypeName: e.Name}, nil
		}
		return &abi.Descriptor{Kind: abi.KindEnumNumeric, Enum: e, TypeName: e.Name}, nil
	}
	return nil, errors.New(errors.PhaseResolve, errors.KindNotFound).
		Path(path...).
		RustType(t.Name).
		Detail("no struct or enum declaration; is the type exported?").
		Build()
}

// resolveUnion resolves every member in declaration order. Matching at
// runtime tries members first-declared-wins on the first structurally
// compatible candidate.
func (r *Resolver) resolveUnion(t *ir.Type, dir Direction, path []string, inFlight map[*ir.Type]bool) (*abi.Descriptor, error) {
	if len(t.Members) < 2 {
		return nil, errors.InvalidData(errors.PhaseResolve, path, "union needs at least two members")
	}

	members := make([]*abi.Descriptor, len(t.Members))
	for i, m := range t.Members {
		mPath := append(append([]string{}, path...), "[member]")
		d, err := r.resolve(m, dir, ir.ByValue, mPath, inFlight)
		if err != nil {
			return nil, err
		}
		if d.Kind == abi.KindUnion {
			return nil, errors.UnsupportedType(errors.PhaseResolve, mPath, t.String(), "unions cannot nest")
		}
		members[i] = d
	}

	return &abi.Descriptor{Kind: abi.KindUnion, Members: members, TypeName: t.String()}, nil
}
