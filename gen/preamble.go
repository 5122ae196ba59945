package gen

// writePreamble emits the runtime support the wrappers share: module state,
// cached memory views, string transcoding, the heap table and abort
// recovery. Everything lives on a single __state holder so transparent
// re-instantiation swaps one object.
func writePreamble(w *writer) {
	w.raw(`const __state = {
  module: null,
  wasm: null,
  imports: null,
  aborted: false,
};

const __encoder = new TextEncoder();
const __decoder = new TextDecoder('utf-8', { ignoreBOM: true, fatal: true });

let __cachedU8 = null;
let __cachedView = null;

// Shared memories grow without detaching the old buffer, so the length
// check matters as much as the identity check.
function __u8() {
  const buf = __state.wasm.memory.buffer;
  if (__cachedU8 === null || __cachedU8.buffer !== buf || __cachedU8.byteLength !== buf.byteLength) {
    __cachedU8 = new Uint8Array(buf);
  }
  return __cachedU8;
}

function __view() {
  const buf = __state.wasm.memory.buffer;
  if (__cachedView === null || __cachedView.buffer !== buf || __cachedView.byteLength !== buf.byteLength) {
    __cachedView = new DataView(buf);
  }
  return __cachedView;
}

// Heap table mirroring the host-side externref table: slots 0-3 are
// reserved, freed slots are reused before the table grows, growth is one
// batch of 128 and the table never shrinks.
const __HEAP_BATCH = 128;
const __heap = [];
let __heapFree = [];

function __heapGrow() {
  const base = __heap.length;
  __heap.length = base + __HEAP_BATCH;
  for (let i = base + __HEAP_BATCH; i > base; i--) {
    __heapFree.push(i - 1);
  }
}

__heapGrow();
__heap[0] = undefined;
__heap[1] = null;
__heap[2] = true;
__heap[3] = false;
__heapFree.length = __heapFree.length - 4;

function addObject(v) {
  if (__heapFree.length === 0) __heapGrow();
  const idx = __heapFree.pop();
  __heap[idx] = v;
  return idx;
}

function getObject(idx) {
  return __heap[idx];
}

function dropObject(idx) {
  if (idx <= 3 || idx >= __heap.length) return;
  __heap[idx] = undefined;
  __heapFree.push(idx);
}

function takeObject(idx) {
  const v = __heap[idx];
  dropObject(idx);
  return v;
}

let WASM_VECTOR_LEN = 0;

function passStringToWasm(arg, malloc, realloc) {
  if (realloc === undefined) {
    const buf = __encoder.encode(arg);
    const ptr = malloc(buf.length, 1) >>> 0;
    __u8().subarray(ptr, ptr + buf.length).set(buf);
    WASM_VECTOR_LEN = buf.length;
    return ptr;
  }

  let len = arg.length;
  let ptr = malloc(len, 1) >>> 0;
  const mem = __u8();
  let offset = 0;

  for (; offset < len; offset++) {
    const code = arg.charCodeAt(offset);
    if (code > 0x7f) break;
    mem[ptr + offset] = code;
  }

  if (offset !== len) {
    if (offset !== 0) {
      arg = arg.slice(offset);
    }
    ptr = realloc(ptr, len, len = offset + arg.length * 3, 1) >>> 0;
    const view = __u8().subarray(ptr + offset, ptr + len);
    const ret = __encoder.encodeInto(arg, view);
    offset += ret.written;
    ptr = realloc(ptr, len, offset, 1) >>> 0;
  }

  WASM_VECTOR_LEN = offset;
  return ptr;
}

function getStringFromWasm(ptr, len) {
  ptr = ptr >>> 0;
  return __decoder.decode(__u8().subarray(ptr, ptr + len));
}

class PanicError extends Error {
  constructor(message) {
    super(message);
    this.name = 'PanicError';
  }
}

// Only traps poison the instance; marshalling errors and values thrown
// through a Result leave it usable.
function __abort(e) {
  if (e instanceof WebAssembly.RuntimeError) {
    __state.aborted = true;
    throw new PanicError(e.message);
  }
  throw e;
}

// __reinit swaps in a fresh instance compiled from the retained module.
// All previous handles and linear-memory state are gone; callers observe a
// reset module, never a corrupted one.
function __reinit() {
  const instance = new WebAssembly.Instance(__state.module, __state.imports);
  __state.wasm = instance.exports;
  __state.aborted = false;
  __cachedU8 = null;
  __cachedView = null;
  if (__state.wasm.__wbindgen_start) {
    __state.wasm.__wbindgen_start();
  }
}

function __guard() {
  if (__state.aborted) __reinit();
}

const CLOSURE_DTORS = (typeof FinalizationRegistry === 'undefined')
  ? { register: () => {}, unregister: () => {} }
  : new FinalizationRegistry(state => {
      if (state.a !== 0) {
        __state.wasm.__wbindgen_closure_destroy(state.a, state.b);
      }
    });

// __makeClosure wraps a wasm-side closure environment (data ptr a, function
// table index b) in a callable JS function. The count guards the environment
// while an invocation is on the stack; dropping during a call defers the
// destructor to the outermost return.
function __makeClosure(a, b) {
  const state = { a, b, cnt: 1 };
  const destroy = () => {
    __state.wasm.__wbindgen_closure_destroy(state.a, state.b);
    state.a = 0;
    CLOSURE_DTORS.unregister(real);
  };
  const real = (...args) => {
    if (state.a === 0) {
      throw new Error('closure invoked after being dropped');
    }
    state.cnt++;
    try {
      return __state.wasm.__indirect_function_table.get(state.b)(state.a, ...args);
    } finally {
      if (--state.cnt === 0) destroy();
    }
  };
  real.drop = () => {
    if (state.a === 0) return;
    if (--state.cnt === 0) destroy();
  };
  CLOSURE_DTORS.register(real, state, real);
  return real;
}

function isLikeNone(v) {
  return v === undefined || v === null;
}

function __checkIntrinsics(exports) {
  for (const name of ['__wbindgen_malloc', '__wbindgen_realloc', '__wbindgen_free', 'memory']) {
    if (!(name in exports)) {
      throw new Error('wasm module is missing required export ' + name);
    }
  }
}
`)
	w.line("")
}

// writeArrayHelpers emits the slice copy helpers for the element widths the
// program actually uses.
func writeArrayHelpers(w *writer, kinds map[string]bool) {
	names := []string{"I8", "U8", "I16", "U16", "I32", "U32", "I64", "U64", "F32", "F64"}
	ctors := map[string]string{
		"I8": "Int8Array", "U8": "Uint8Array",
		"I16": "Int16Array", "U16": "Uint16Array",
		"I32": "Int32Array", "U32": "Uint32Array",
		"I64": "BigInt64Array", "U64": "BigUint64Array",
		"F32": "Float32Array", "F64": "Float64Array",
	}
	for _, n := range names {
		if !kinds[n] {
			continue
		}
		ctor := ctors[n]
		size := elemSizes[n]
		w.line("function passArray%sToWasm(arg, malloc) {", n)
		w.line("  const ptr = malloc(arg.length * %d, %d) >>> 0;", size, size)
		w.line("  new %s(__state.wasm.memory.buffer, ptr, arg.length).set(arg);", ctor)
		w.line("  WASM_VECTOR_LEN = arg.length;")
		w.line("  return ptr;")
		w.line("}")
		w.line("")
		w.line("function getArray%sFromWasm(ptr, len) {", n)
		w.line("  ptr = ptr >>> 0;")
		w.line("  return new %s(new %s(__state.wasm.memory.buffer, ptr, len));", ctor, ctor)
		w.line("}")
		w.line("")
	}
}

var elemSizes = map[string]int{
	"I8": 1, "U8": 1,
	"I16": 2, "U16": 2,
	"I32": 4, "U32": 4,
	"I64": 8, "U64": 8,
	"F32": 4, "F64": 8,
}
