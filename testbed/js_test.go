package testbed

import (
	"strings"
	"testing"

	"modernc.org/quickjs"

	"github.com/wippyai/jsbind/gen"
	"github.com/wippyai/jsbind/resolve"
)

// jsEnvStubs fills in the handful of web globals the glue touches at
// evaluation time, for engines that lack them.
const jsEnvStubs = `
if (typeof TextEncoder === 'undefined') {
  globalThis.TextEncoder = class {
    encode(s) {
      const out = [];
      for (const ch of s) {
        let c = ch.codePointAt(0);
        if (c < 0x80) out.push(c);
        else if (c < 0x800) out.push(0xc0 | (c >> 6), 0x80 | (c & 63));
        else if (c < 0x10000) out.push(0xe0 | (c >> 12), 0x80 | ((c >> 6) & 63), 0x80 | (c & 63));
        else out.push(0xf0 | (c >> 18), 0x80 | ((c >> 12) & 63), 0x80 | ((c >> 6) & 63), 0x80 | (c & 63));
      }
      return new Uint8Array(out);
    }
    encodeInto(s, view) {
      const buf = this.encode(s);
      view.set(buf.subarray(0, view.length));
      return { read: s.length, written: Math.min(buf.length, view.length) };
    }
  };
}
if (typeof TextDecoder === 'undefined') {
  globalThis.TextDecoder = class {
    constructor() {}
    decode() { return ''; }
  };
}
if (typeof WebAssembly === 'undefined') {
  globalThis.WebAssembly = {
    RuntimeError: class extends Error {},
    Instance: class {},
    Module: class {},
  };
}
`

// glueScript renders the guest program's glue as a plain script so its
// internals are reachable from follow-up evals.
func glueScript(t *testing.T) string {
	t.Helper()
	plan, err := resolve.NewResolver(guestProgram()).PlanProgram()
	if err != nil {
		t.Fatalf("PlanProgram: %v", err)
	}
	out, err := gen.New(plan).Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	js := out.JS
	js = strings.ReplaceAll(js, "export function ", "function ")
	js = strings.ReplaceAll(js, "export class ", "class ")
	js = strings.ReplaceAll(js, "export const ", "const ")
	return js
}

func glueVM(t *testing.T) *quickjs.VM {
	t.Helper()
	vm, err := quickjs.NewVM()
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	t.Cleanup(func() { vm.Close() })

	if _, err := vm.Eval(jsEnvStubs, quickjs.EvalGlobal); err != nil {
		t.Fatalf("stubs: %v", err)
	}
	if _, err := vm.Eval(glueScript(t), quickjs.EvalGlobal); err != nil {
		t.Fatalf("glue: %v", err)
	}
	return vm
}

func check(t *testing.T, vm *quickjs.VM, name, expr string) {
	t.Helper()
	res, err := vm.Eval(expr, quickjs.EvalGlobal)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	b, ok := res.(bool)
	if !ok {
		t.Fatalf("%s: result %v (%T), want bool", name, res, res)
	}
	if !b {
		t.Errorf("%s: assertion failed", name)
	}
}

func TestHeapReservedSlots(t *testing.T) {
	vm := glueVM(t)
	check(t, vm, "reserved", `
getObject(0) === undefined && getObject(1) === null &&
getObject(2) === true && getObject(3) === false`)
	check(t, vm, "drop reserved is a no-op", `
(function() { dropObject(2); dropObject(0); return getObject(2) === true; })()`)
}

func TestHeapAllocOrder(t *testing.T) {
	vm := glueVM(t)
	check(t, vm, "first alloc skips reserved", `addObject('first') === 4`)
	check(t, vm, "freed slot reused", `
(function() {
  const i = addObject('a');
  dropObject(i);
  return addObject('b') === i;
})()`)
	check(t, vm, "take removes", `
(function() {
  const i = addObject('v');
  const v = takeObject(i);
  return v === 'v' && getObject(i) === undefined;
})()`)
}

func TestHeapGrowBatch(t *testing.T) {
	vm := glueVM(t)
	check(t, vm, "grow adds a new batch", `
(function() {
  const got = [];
  for (let n = 0; n < 130; n++) got.push(addObject(n));
  const inOrder = got[0] === 4 && got[123] === 127;
  const grown = got[124] === 128 && got[129] === 133;
  for (const i of got) dropObject(i);
  return inOrder && grown;
})()`)
}

func TestAbortOnlyOnRuntimeError(t *testing.T) {
	vm := glueVM(t)
	check(t, vm, "marshalling errors pass through", `
(function() {
  try {
    __abort(new TypeError('bad arg'));
  } catch (e) {
    return e instanceof TypeError && __state.aborted === false;
  }
  return false;
})()`)
	check(t, vm, "traps poison and convert", `
(function() {
  try {
    __abort(new WebAssembly.RuntimeError('unreachable'));
  } catch (e) {
    const ok = e instanceof PanicError && __state.aborted === true;
    __state.aborted = false;
    return ok;
  }
  return false;
})()`)
}

func TestEnumTables(t *testing.T) {
	vm := glueVM(t)
	check(t, vm, "string enum mapping", `
__intoMode('eager') === 0 && __intoMode('lazy') === 1 && __ModeValues[1] === 'lazy'`)
	check(t, vm, "invalid value throws", `
(function() {
  try { __intoMode('bogus'); } catch (e) { return e instanceof TypeError; }
  return false;
})()`)
	check(t, vm, "numeric enum mapping", `
Level.Max === 42 && Level[42] === 'Max' && __intoLevel(0) === 0 && __intoLevel(42) === 42`)
	check(t, vm, "invalid discriminant throws", `
(function() {
  try { __intoLevel(7); } catch (e) { return e instanceof TypeError; }
  return false;
})()`)
}

func TestClosureLifecycle(t *testing.T) {
	vm := glueVM(t)
	check(t, vm, "invoke then drop", `
(function() {
  let destroyed = 0;
  __state.wasm = {
    __wbindgen_closure_destroy: () => { destroyed++; },
    __indirect_function_table: { get: () => ((a, x) => x + 1) },
  };
  const f = __makeClosure(8, 0);
  const before = f(41) === 42;
  f.drop();
  return before && destroyed === 1;
})()`)
	check(t, vm, "dropped closure throws", `
(function() {
  __state.wasm = {
    __wbindgen_closure_destroy: () => {},
    __indirect_function_table: { get: () => (() => 0) },
  };
  const f = __makeClosure(8, 0);
  f.drop();
  try { f(); } catch (e) { return /dropped/.test(e.message); }
  return false;
})()`)
}

func TestAbortSkipsCleanup(t *testing.T) {
	vm := glueVM(t)
	check(t, vm, "trap leaves borrowed memory alone", `
(function() {
  let freed = false;
  __state.wasm = {
    memory: { buffer: new ArrayBuffer(65536) },
    __wbindgen_malloc: () => 8,
    __wbindgen_realloc: (ptr) => ptr,
    __wbindgen_free: () => { freed = true; },
    echo_string: () => { throw new WebAssembly.RuntimeError('unreachable'); },
  };
  try {
    echoString('hi');
  } catch (e) {
    const ok = e instanceof PanicError && __state.aborted === true && !freed;
    __state.aborted = false;
    return ok;
  }
  return false;
})()`)
}

func TestIsLikeNone(t *testing.T) {
	vm := glueVM(t)
	check(t, vm, "isLikeNone", `
isLikeNone(undefined) && isLikeNone(null) && !isLikeNone(0) && !isLikeNone('')`)
}
