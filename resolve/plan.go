package resolve

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/jsbind/abi"
	"github.com/wippyai/jsbind/errors"
	"github.com/wippyai/jsbind/ir"
)

// ArgPlan is one logical argument with its resolved shape and ownership.
type ArgPlan struct {
	Desc    *abi.Descriptor
	Name    string
	Binding ir.Binding
	Own     abi.OwnershipPlan
}

// RetPlan is the resolved return shape.
type RetPlan struct {
	Desc *abi.Descriptor // nil = unit
	Own  abi.OwnershipPlan
}

// FuncPlan is the fully annotated ABI plan for one exported or imported
// function: everything the shim generator consumes.
type FuncPlan struct {
	Fn           *ir.Function
	Self         *ArgPlan // receiver; nil for free/static functions
	Ret          RetPlan
	Args         []ArgPlan
	ParamSlots   []abi.SlotKind // flattened raw parameters (ret-area ptr first when present)
	ResultSlots  []abi.SlotKind // raw results; empty when routed through the ret area
	ExportName   string
	NeedsRetArea bool
	CanThrow     bool
	Async        bool
}

// ProgramPlan is the resolved plan for a whole program.
type ProgramPlan struct {
	Program *ir.Program
	Exports []*FuncPlan
	Imports []*FuncPlan
}

// Plan resolves and annotates one exported function.
func (r *Resolver) Plan(fn *ir.Function) (*FuncPlan, error) {
	p := &FuncPlan{
		Fn:         fn,
		Async:      fn.Async,
		ExportName: ExportSymbol(fn),
	}

	if fn.Kind == ir.Method || fn.Kind == ir.Getter || fn.Kind == ir.Setter {
		desc := &abi.Descriptor{Kind: abi.KindStructPtr, TypeName: fn.Receiver}
		p.Self = &ArgPlan{
			Name:    "self",
			Desc:    desc,
			Binding: fn.SelfBind,
			Own:     selfOwnership(fn.SelfBind),
		}
	}

	p.Args = make([]ArgPlan, 0, len(fn.Args))
	for i, a := range fn.Args {
		path := []string{fn.Name, a.Name}
		d, err := r.resolve(a.Type, DirArgument, a.Binding, path, make(map[*ir.Type]bool))
		if err != nil {
			return nil, err
		}
		p.Args = append(p.Args, ArgPlan{
			Name:    argName(a, i),
			Desc:    d,
			Binding: a.Binding,
			Own:     argOwnership(d, a.Binding),
		})
	}

	var retDesc *abi.Descriptor
	if fn.Ret != nil {
		var err error
		retDesc, err = r.resolve(fn.Ret, DirReturn, ir.ByValue, []string{fn.Name, "[ret]"}, make(map[*ir.Type]bool))
		if err != nil {
			return nil, err
		}
	}
	if retDesc != nil && retDesc.Kind == abi.KindResult {
		p.CanThrow = true
	}
	if fn.Catch && !p.CanThrow && !fn.Async {
		return nil, errors.Ownership([]string{fn.Name}, "catch requires a Result return or an async function")
	}
	p.Ret = RetPlan{Desc: retDesc, Own: retOwnership(retDesc)}

	p.flatten()
	logPlan(p)
	return p, nil
}

// PlanProgram plans every export and import in the program.
func (r *Resolver) PlanProgram() (*ProgramPlan, error) {
	pp := &ProgramPlan{Program: r.prog}

	for _, fn := range r.prog.Functions {
		fp, err := r.Plan(fn)
		if err != nil {
			return nil, err
		}
		pp.Exports = append(pp.Exports, fp)
	}

	// Getter/setter pairs for exposed struct fields.
	for _, s := range r.prog.Structs {
		for i := range s.Fields {
			f := &s.Fields[i]
			get := &ir.Function{
				Name:     f.Name,
				Receiver: s.Name,
				Kind:     ir.Getter,
				SelfBind: ir.ByRef,
				Ret:      f.Type,
			}
			fp, err := r.Plan(get)
			if err != nil {
				return nil, err
			}
			pp.Exports = append(pp.Exports, fp)

			if !f.Readonly {
				set := &ir.Function{
					Name:     f.Name,
					Receiver: s.Name,
					Kind:     ir.Setter,
					SelfBind: ir.ByMutRef,
					Args:     []ir.Arg{{Name: f.Name, Type: f.Type}},
				}
				sp, err := r.Plan(set)
				if err != nil {
					return nil, err
				}
				pp.Exports = append(pp.Exports, sp)
			}
		}
	}

	for _, imp := range r.prog.Imports {
		fp, err := r.Plan(&imp.Function)
		if err != nil {
			return nil, err
		}
		pp.Imports = append(pp.Imports, fp)
	}

	return pp, nil
}

// flatten computes the raw wasm signature. Returns needing more than one raw
// slot are routed through a ret-area pointer prepended to the parameters;
// fallible returns always use the ret area so the error slot can be checked
// before any success decode.
func (p *FuncPlan) flatten() {
	var retSlots []abi.SlotKind
	if p.Async {
		// Promise handle in the externref table.
		retSlots = []abi.SlotKind{abi.SlotI32}
	} else if p.Ret.Desc != nil {
		retSlots = p.Ret.Desc.Slots()
	}

	if len(retSlots) > 1 {
		p.NeedsRetArea = true
	}

	var params []abi.SlotKind
	if p.NeedsRetArea {
		params = append(params, abi.SlotI32)
	}
	if p.Self != nil {
		params = append(params, abi.SlotI32)
	}
	for _, a := range p.Args {
		params = append(params, a.Desc.Slots()...)
	}
	p.ParamSlots = params

	if p.NeedsRetArea {
		p.ResultSlots = nil
	} else {
		p.ResultSlots = retSlots
	}
}

// RetSlots returns the logical return slot sequence regardless of whether it
// travels through the ret area.
func (p *FuncPlan) RetSlots() []abi.SlotKind {
	if p.Async {
		return []abi.SlotKind{abi.SlotI32}
	}
	if p.Ret.Desc == nil {
		return nil
	}
	return p.Ret.Desc.Slots()
}

func selfOwnership(b ir.Binding) abi.OwnershipPlan {
	if b == ir.ByValue {
		// Destructive read-and-clear: the handle moves into the callee.
		return abi.CalleeTakesOwnership
	}
	return abi.CallerOwnsBorrowed
}

func argOwnership(d *abi.Descriptor, b ir.Binding) abi.OwnershipPlan {
	switch d.Kind {
	case abi.KindString, abi.KindSlice:
		if b == ir.ByValue {
			return abi.CalleeTakesOwnership
		}
		return abi.CallerOwnsBorrowed
	case abi.KindStructPtr:
		if b == ir.ByValue {
			return abi.CalleeTakesOwnership
		}
		return abi.CallerOwnsBorrowed
	case abi.KindClosure:
		return abi.SharedFinalizerManaged
	case abi.KindExternref, abi.KindUnion:
		if b == ir.ByValue {
			return abi.CalleeTakesOwnership
		}
		return abi.CallerOwnsBorrowed
	default:
		return abi.CallerOwnsBorrowed
	}
}

func retOwnership(d *abi.Descriptor) abi.OwnershipPlan {
	if d == nil {
		return abi.CallerOwnsBorrowed
	}
	switch d.Kind {
	case abi.KindString, abi.KindSlice:
		// Copy out, then free the linear-memory allocation in a finally block.
		return abi.CalleeReturnsOwnership
	case abi.KindStructPtr:
		return abi.SharedFinalizerManaged
	case abi.KindExternref, abi.KindUnion:
		return abi.CalleeReturnsOwnership
	case abi.KindResult:
		return retOwnership(d.Elem)
	default:
		return abi.CallerOwnsBorrowed
	}
}

func argName(a ir.Arg, i int) string {
	if a.Name != "" {
		return a.Name
	}
	return "arg" + string(rune('0'+i%10))
}

// ExportSymbol computes the raw wasm export name for a function.
func ExportSymbol(fn *ir.Function) string {
	switch fn.Kind {
	case ir.Constructor:
		return strings.ToLower(fn.Receiver) + "_new"
	case ir.Method, ir.StaticMethod:
		return strings.ToLower(fn.Receiver) + "_" + fn.Name
	case ir.Getter:
		return strings.ToLower(fn.Receiver) + "_" + fn.Name
	case ir.Setter:
		return strings.ToLower(fn.Receiver) + "_set_" + fn.Name
	default:
		return fn.Name
	}
}

// FreeSymbol computes the raw export releasing an exported struct's handle.
func FreeSymbol(structName string) string {
	return "__wbg_" + strings.ToLower(structName) + "_free"
}

func logPlan(p *FuncPlan) {
	if ce := Logger().Check(zap.DebugLevel, "planned"); ce != nil {
		ce.Write(
			zap.String("export", p.ExportName),
			zap.Int("params", len(p.ParamSlots)),
			zap.Bool("ret_area", p.NeedsRetArea),
			zap.Bool("can_throw", p.CanThrow),
		)
	}
}
