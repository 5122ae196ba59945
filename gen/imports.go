package gen

import (
	"fmt"

	"github.com/wippyai/jsbind/abi"
	"github.com/wippyai/jsbind/resolve"
)

// writeImports emits the import-object factory the loader hands to
// WebAssembly.instantiate: the fixed intrinsic imports plus one shim per
// declared host function.
func (g *Generator) writeImports(w *writer) error {
	w.line("function __wbg_imports(host) {")
	w.in()
	w.line("host = host || {};")
	w.line("return {")
	w.in()
	w.line("wbindgen: {")
	w.in()

	w.line("__wbindgen_throw(ptr, len) {")
	w.line("  throw new Error(getStringFromWasm(ptr, len));")
	w.line("},")
	w.line("__wbindgen_string_new(ptr, len) {")
	w.line("  return addObject(getStringFromWasm(ptr, len));")
	w.line("},")
	w.line("__wbindgen_object_drop_ref(idx) {")
	w.line("  dropObject(idx);")
	w.line("},")
	w.line("__wbindgen_object_clone_ref(idx) {")
	w.line("  return addObject(getObject(idx));")
	w.line("},")
	w.line("__wbindgen_closure_invoke(idx, ...args) {")
	w.line("  const r = getObject(idx)(...args);")
	w.line("  return r === undefined ? 0 : r;")
	w.line("},")

	for i, p := range g.plan.Imports {
		module := ""
		if i < len(g.plan.Program.Imports) {
			module = g.plan.Program.Imports[i].Module
		}
		if err := g.writeImportShim(w, p, module); err != nil {
			return err
		}
	}

	w.out()
	w.line("},")
	w.out()
	w.line("};")
	w.out()
	w.line("}")
	w.line("")
	return nil
}

// writeImportShim emits one host-function shim: raw slots in, host call,
// raw slots out. With catch set, a thrown value is parked in the guest's
// exception slot instead of unwinding through wasm frames.
func (g *Generator) writeImportShim(w *writer, p *resolve.FuncPlan, module string) error {
	params := make([]string, len(p.ParamSlots))
	for i := range params {
		params[i] = fmt.Sprintf("a%d", i)
	}

	w.line("%s(%s) {", p.ExportName, callArgs(params))
	w.in()
	if p.Fn.Catch {
		w.line("try {")
		w.in()
	}
	if err := g.writeImportShimBody(w, p, params, module); err != nil {
		return err
	}
	if p.Fn.Catch {
		w.out()
		w.line("} catch (e) {")
		w.in()
		w.line("__state.wasm.__wbindgen_exn_store(addObject(e));")
		g.writeImportZeroReturn(w, p, params)
		w.out()
		w.line("}")
	}
	w.out()
	w.line("},")
	return nil
}

func (g *Generator) writeImportShimBody(w *writer, p *resolve.FuncPlan, params []string, module string) error {
	m := &marshalCtx{g: g, w: w}

	cursor := 0
	if p.NeedsRetArea {
		cursor = 1
	}

	var callParams []string
	for i := range p.Args {
		a := &p.Args[i]
		n := len(a.Desc.Slots())
		expr, _, err := m.lift(params[cursor:cursor+n], a.Desc, a.Own)
		if err != nil {
			return err
		}
		cursor += n
		callParams = append(callParams, expr)
	}

	target := "host." + jsIdent(p.Fn.Name)
	if module != "" {
		target = fmt.Sprintf("host.%s.%s", jsIdent(module), jsIdent(p.Fn.Name))
	}

	retSlots := p.RetSlots()
	if len(retSlots) == 0 {
		w.line("%s(%s);", target, callArgs(callParams))
		return nil
	}

	w.line("const res = %s(%s);", target, callArgs(callParams))

	if p.Async {
		w.line("return addObject(Promise.resolve(res));")
		return nil
	}

	// Values handed back to the guest become the guest's to release, so the
	// shim never frees what it just allocated.
	lo, err := m.lower("res", p.Ret.Desc, abi.CalleeTakesOwnership)
	if err != nil {
		return err
	}
	if !p.NeedsRetArea {
		w.line("return %s;", lo.slots[0])
		return nil
	}

	offs, _ := slotOffsets(retSlots)
	for i, s := range retSlots {
		w.line("__view().%s(%s + %d, %s, true);", slotSetter(s), params[0], offs[i], lo.slots[i])
	}
	return nil
}

// writeImportZeroReturn fills the declared result with zeros after a caught
// exception; the guest consults the exception slot before trusting them.
func (g *Generator) writeImportZeroReturn(w *writer, p *resolve.FuncPlan, params []string) {
	retSlots := p.RetSlots()
	if len(retSlots) == 0 {
		w.line("return;")
		return
	}
	if !p.NeedsRetArea {
		if retSlots[0] == abi.SlotI64 {
			w.line("return 0n;")
		} else {
			w.line("return 0;")
		}
		return
	}
	offs, _ := slotOffsets(retSlots)
	for i, s := range retSlots {
		zero := "0"
		if s == abi.SlotI64 {
			zero = "0n"
		}
		w.line("__view().%s(%s + %d, %s, true);", slotSetter(s), params[0], offs[i], zero)
	}
}
