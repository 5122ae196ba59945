package gen

import (
	"fmt"

	"github.com/wippyai/jsbind/abi"
	"github.com/wippyai/jsbind/ir"
	"github.com/wippyai/jsbind/resolve"
)

// writeFreeFunctions emits one exported wrapper per free function.
func (g *Generator) writeFreeFunctions(w *writer) error {
	for _, p := range g.plan.Exports {
		if p.Fn.Kind != ir.FreeFunction {
			continue
		}
		params := paramNames(p)
		w.line("export function %s(%s) {", exportJS(p.Fn.Name), callArgs(params))
		w.in()
		if err := g.writeWrapperBody(w, p, "", ""); err != nil {
			return err
		}
		w.out()
		w.line("}")
		w.line("")
	}
	return nil
}

// paramNames returns the public JS parameter list for a plan.
func paramNames(p *resolve.FuncPlan) []string {
	names := make([]string, 0, len(p.Args))
	for i := range p.Args {
		names = append(names, jsIdent(p.Args[i].Name))
	}
	return names
}

// writeWrapperBody emits the marshalling body shared by free functions,
// methods, accessors and constructors. selfExpr is the receiver handle
// expression ("" for free/static functions); ctorClass is non-empty when the
// decoded handle becomes this.#ptr instead of a return value.
func (g *Generator) writeWrapperBody(w *writer, p *resolve.FuncPlan, selfExpr, ctorClass string) error {
	m := &marshalCtx{g: g, w: w}
	w.line("__guard();")

	var args []string
	var frees []string

	if p.Self != nil {
		if p.Self.Own == abi.CalleeTakesOwnership {
			// By-value self: the handle moves into the callee and this
			// wrapper object goes dead.
			w.line("const ptrSelf = this.__destroy_into_raw();")
			args = append(args, "ptrSelf")
		} else {
			args = append(args, selfExpr)
		}
	}

	for i := range p.Args {
		a := &p.Args[i]
		lo, err := m.lower(jsIdent(a.Name), a.Desc, a.Own)
		if err != nil {
			return err
		}
		args = append(args, lo.slots...)
		frees = append(frees, lo.frees...)
	}

	retSlots := p.RetSlots()
	offs, retSize := slotOffsets(retSlots)

	if p.NeedsRetArea {
		w.line("const retptr = __state.wasm.__wbindgen_malloc(%d, 8);", retSize)
		frees = append(frees, fmt.Sprintf("__state.wasm.__wbindgen_free(retptr, %d, 8);", retSize))
		args = append([]string{"retptr"}, args...)
	}

	// Slot reads and the success decode render first so hoisted deferred
	// temps can be declared ahead of the try block.
	inner := &writer{indent: w.indent + 1}
	mi := &marshalCtx{g: g, w: inner, tmp: m.tmp, hoist: true}

	readExprs := make([]string, len(retSlots))
	if p.NeedsRetArea {
		inner.line("__state.wasm.%s(%s);", p.ExportName, callArgs(args))
		for i, s := range retSlots {
			inner.line("const r%d = __view().%s(retptr + %d, true);", i, slotGetter(s), offs[i])
			readExprs[i] = fmt.Sprintf("r%d", i)
		}
	} else if len(retSlots) == 1 {
		inner.line("const ret = __state.wasm.%s(%s);", p.ExportName, callArgs(args))
		readExprs[0] = "ret"
	} else {
		inner.line("__state.wasm.%s(%s);", p.ExportName, callArgs(args))
	}

	if err := g.writeDecode(inner, mi, p, readExprs, ctorClass, &frees); err != nil {
		return err
	}

	for _, h := range mi.hoisted {
		w.line("let %s = 0;", h)
	}
	w.line("try {")
	w.raw(inner.String())
	w.line("} catch (e) {")
	w.line("  __abort(e);")
	if len(frees) > 0 {
		// No cleanup on a poisoned instance; reinit reclaims the memory.
		w.line("} finally {")
		w.in()
		w.line("if (!__state.aborted) {")
		w.in()
		for _, f := range frees {
			w.line("%s", f)
		}
		w.out()
		w.line("}")
		w.out()
	}
	w.line("}")
	return nil
}

// writeDecode renders the success/error decode after the raw call: the error
// slot check always precedes any success read.
func (g *Generator) writeDecode(w *writer, m *marshalCtx, p *resolve.FuncPlan, slots []string, ctorClass string, frees *[]string) error {
	if p.Async {
		w.line("return takeObject(%s);", slots[0])
		return nil
	}

	desc := p.Ret.Desc
	if desc != nil && desc.Kind == abi.KindResult {
		errSlot := slots[len(slots)-1]
		w.line("if (%s !== 0) {", errSlot)
		w.line("  throw takeObject(%s);", errSlot)
		w.line("}")
		slots = slots[:len(slots)-1]
		desc = desc.Elem
	}
	if desc == nil {
		if ctorClass != "" {
			return fmt.Errorf("constructor for %s has no handle to decode", ctorClass)
		}
		return nil
	}

	if ctorClass != "" {
		w.line("this.#ptr = %s >>> 0;", slots[0])
		w.line("%sFinalization.register(this, this.#ptr, this);", ctorClass)
		return nil
	}

	expr, liftFrees, err := m.lift(slots, desc, p.Ret.Own)
	if err != nil {
		return err
	}
	*frees = append(*frees, liftFrees...)
	w.line("return %s;", expr)
	return nil
}
