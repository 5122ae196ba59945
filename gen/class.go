package gen

import (
	"sort"

	"github.com/wippyai/jsbind/ir"
	"github.com/wippyai/jsbind/resolve"
)

// writeClasses emits one JS class per exported struct: a private handle
// zeroed on free, a finalizer backstop, and the struct's constructor,
// methods and accessors.
func (g *Generator) writeClasses(w *writer) error {
	byReceiver := make(map[string][]*resolve.FuncPlan)
	for _, p := range g.plan.Exports {
		if p.Fn.Receiver != "" {
			byReceiver[p.Fn.Receiver] = append(byReceiver[p.Fn.Receiver], p)
		}
	}

	names := make([]string, 0, len(g.plan.Program.Structs))
	for _, s := range g.plan.Program.Structs {
		names = append(names, s.Name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := g.writeClass(w, name, byReceiver[name]); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) writeClass(w *writer, name string, plans []*resolve.FuncPlan) error {
	free := resolve.FreeSymbol(name)

	w.line("const %sFinalization = (typeof FinalizationRegistry === 'undefined')", name)
	w.line("  ? { register: () => {}, unregister: () => {} }")
	w.line("  : new FinalizationRegistry(ptr => __state.wasm.%s(ptr));", free)
	w.line("")
	w.line("export class %s {", name)
	w.in()
	w.line("#ptr = 0;")
	w.line("")

	var ctor *resolve.FuncPlan
	for _, p := range plans {
		if p.Fn.Kind == ir.Constructor {
			ctor = p
			break
		}
	}

	// The internal handle path shares the declared constructor; a sentinel
	// first argument distinguishes wrapping an existing handle from real
	// construction.
	w.line("constructor(...args) {")
	w.in()
	w.line("if (args[0] === __wrapHandle) {")
	w.line("  this.#ptr = args[1];")
	w.line("  %sFinalization.register(this, this.#ptr, this);", name)
	w.line("  return;")
	w.line("}")
	if ctor != nil {
		for i := range ctor.Args {
			w.line("const %s = args[%d];", jsIdent(ctor.Args[i].Name), i)
		}
		if err := g.writeWrapperBody(w, ctor, "", name); err != nil {
			return err
		}
	} else {
		w.line("throw new Error('%s cannot be constructed directly');", name)
	}
	w.out()
	w.line("}")
	w.line("")

	w.line("/** @internal */")
	w.line("static __wrap(ptr) {")
	w.line("  return new %s(__wrapHandle, ptr >>> 0);", name)
	w.line("}")
	w.line("")
	w.line("/** @internal */")
	w.line("get __ptr() {")
	w.line("  if (this.#ptr === 0) {")
	w.line("    throw new Error('%s has been freed');", name)
	w.line("  }")
	w.line("  return this.#ptr;")
	w.line("}")
	w.line("")
	w.line("/** @internal */")
	w.line("__destroy_into_raw() {")
	w.line("  const ptr = this.__ptr;")
	w.line("  this.#ptr = 0;")
	w.line("  %sFinalization.unregister(this);", name)
	w.line("  return ptr;")
	w.line("}")
	w.line("")
	w.line("free() {")
	w.line("  if (this.#ptr === 0) return;")
	w.line("  const ptr = this.#ptr;")
	w.line("  this.#ptr = 0;")
	w.line("  %sFinalization.unregister(this);", name)
	w.line("  __state.wasm.%s(ptr);", free)
	w.line("}")
	w.line("")
	w.line("[Symbol.dispose]() {")
	w.line("  this.free();")
	w.line("}")

	for _, p := range plans {
		if p.Fn.Kind == ir.Constructor {
			continue
		}
		w.line("")
		if err := g.writeMember(w, p); err != nil {
			return err
		}
	}

	w.out()
	w.line("}")
	w.line("")
	return nil
}

func (g *Generator) writeMember(w *writer, p *resolve.FuncPlan) error {
	params := paramNames(p)
	name := jsIdent(p.Fn.Name)

	switch p.Fn.Kind {
	case ir.Getter:
		w.line("get %s() {", name)
	case ir.Setter:
		w.line("set %s(%s) {", name, params[0])
	case ir.StaticMethod:
		w.line("static %s(%s) {", name, callArgs(params))
	default:
		w.line("%s(%s) {", name, callArgs(params))
	}
	w.in()

	selfExpr := ""
	if p.Self != nil {
		selfExpr = "this.__ptr"
	}
	if err := g.writeWrapperBody(w, p, selfExpr, ""); err != nil {
		return err
	}

	w.out()
	w.line("}")
	return nil
}

// writeWrapSentinel emits the shared private construction sentinel; it must
// precede every class declaration.
func writeWrapSentinel(w *writer) {
	w.line("const __wrapHandle = Symbol('jsbind.wrap');")
	w.line("")
}
