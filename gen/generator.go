package gen

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/jsbind/resolve"
)

// Generator renders the JS glue for one resolved program.
type Generator struct {
	plan       *resolve.ProgramPlan
	arrayKinds map[string]bool
}

// Output is the rendered glue: the target-agnostic JS body and the
// synthesized wasm trampoline.
type Output struct {
	JS         string
	Trampoline []byte
}

// New creates a Generator over a resolved program plan.
func New(plan *resolve.ProgramPlan) *Generator {
	return &Generator{
		plan:       plan,
		arrayKinds: make(map[string]bool),
	}
}

// Generate renders the complete glue body: runtime preamble, enum objects,
// struct classes, export wrappers and the import object factory. The
// per-target loader is package emit's job.
func (g *Generator) Generate() (*Output, error) {
	// Wrappers render first so the preamble only carries the array helpers
	// the program actually touches.
	body := &writer{}
	writeWrapSentinel(body)

	if err := g.writeEnums(body); err != nil {
		return nil, err
	}
	if err := g.writeClasses(body); err != nil {
		return nil, err
	}
	if err := g.writeFreeFunctions(body); err != nil {
		return nil, err
	}
	if err := g.writeImports(body); err != nil {
		return nil, err
	}
	writeInit(body)

	head := &writer{}
	writePreamble(head)
	writeArrayHelpers(head, g.arrayKinds)

	out := &Output{
		JS:         head.String() + body.String(),
		Trampoline: Trampoline(g.plan),
	}

	if ce := Logger().Check(zap.DebugLevel, "generated"); ce != nil {
		ce.Write(
			zap.Int("exports", len(g.plan.Exports)),
			zap.Int("imports", len(g.plan.Imports)),
			zap.Int("js_bytes", len(out.JS)),
		)
	}
	return out, nil
}

// writeInit emits the instantiation entry the per-target loaders call into.
func writeInit(w *writer) {
	w.raw(`function __finishInit(instance, module, imports) {
  __checkIntrinsics(instance.exports);
  __state.module = module;
  __state.wasm = instance.exports;
  __state.imports = imports;
  __state.aborted = false;
  __cachedU8 = null;
  __cachedView = null;
  if (__state.wasm.__wbindgen_start) {
    __state.wasm.__wbindgen_start();
  }
  return __state.wasm;
}
`)
	w.line("")
}

// exportJS is the public JS spelling of an export.
func exportJS(name string) string {
	return jsIdent(strings.TrimPrefix(name, "__"))
}
