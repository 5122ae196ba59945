package emit

import (
	"fmt"
	"strings"
)

// loader renders the target-specific instantiation scaffolding appended
// after the glue body. Every loader funnels into __finishInit; sync loaders
// read the host import object from globalThis.__jsbind_host since there is
// no call site to pass one.
func loader(t Target, wasmFile string) string {
	switch t {
	case TargetBundler:
		return fmt.Sprintf(`import __wasmModule from './%s';

const __imports = __wbg_imports(globalThis.__jsbind_host);
const __instance = new WebAssembly.Instance(__wasmModule, __imports);
__finishInit(__instance, __wasmModule, __imports);
`, wasmFile)

	case TargetWeb:
		return fmt.Sprintf(webLoader, wasmFile, "")

	case TargetWebThreads:
		return fmt.Sprintf(webLoader, wasmFile, threadsImports)

	case TargetNodeCJS:
		// Converted to CommonJS afterwards; __dirname only exists there,
		// which is exactly where this loader runs.
		return fmt.Sprintf(`import { readFileSync } from 'node:fs';
import { join } from 'node:path';

const __module = new WebAssembly.Module(readFileSync(join(__dirname, '%s')));
const __imports = __wbg_imports(globalThis.__jsbind_host);
const __instance = new WebAssembly.Instance(__module, __imports);
__finishInit(__instance, __module, __imports);
`, wasmFile)

	case TargetNodeESM:
		return fmt.Sprintf(`import { readFileSync } from 'node:fs';
import { fileURLToPath } from 'node:url';

const __path = fileURLToPath(new URL('./%s', import.meta.url));
const __module = new WebAssembly.Module(readFileSync(__path));
const __imports = __wbg_imports(globalThis.__jsbind_host);
const __instance = new WebAssembly.Instance(__module, __imports);
__finishInit(__instance, __module, __imports);
`, wasmFile)

	case TargetDeno:
		return fmt.Sprintf(`const __url = new URL('./%s', import.meta.url);
const __bytes = __url.protocol === 'file:'
  ? await Deno.readFile(__url)
  : new Uint8Array(await (await fetch(__url)).arrayBuffer());
const __module = new WebAssembly.Module(__bytes);
const __imports = __wbg_imports(globalThis.__jsbind_host);
const __instance = new WebAssembly.Instance(__module, __imports);
__finishInit(__instance, __module, __imports);
`, wasmFile)
	}
	return ""
}

// webLoader is the async default-export scaffolding shared by the web and
// web-threads targets. The second placeholder injects the shared-memory
// block for threads; plain web leaves it empty.
const webLoader = `export function initSync(source, host) {
  const module = source instanceof WebAssembly.Module
    ? source
    : new WebAssembly.Module(source);
  const imports = __wbg_imports(host);
  const instance = new WebAssembly.Instance(module, imports);
  return __finishInit(instance, module, imports);
}

export default async function init(input, host, memory) {
  if (input === undefined) {
    input = new URL('./%s', import.meta.url);
  }
  const imports = __wbg_imports(host);
%s  if (typeof input === 'string' || input instanceof URL ||
      (typeof Request === 'function' && input instanceof Request)) {
    input = fetch(input);
  }
  let instance, module;
  if (input instanceof WebAssembly.Module) {
    module = input;
    instance = await WebAssembly.instantiate(module, imports);
  } else {
    const resp = await input;
    if (typeof Response === 'function' && resp instanceof Response) {
      if (typeof WebAssembly.instantiateStreaming === 'function' &&
          resp.headers.get('Content-Type') === 'application/wasm') {
        ({ instance, module } = await WebAssembly.instantiateStreaming(resp, imports));
      } else {
        module = new WebAssembly.Module(await resp.arrayBuffer());
        instance = await WebAssembly.instantiate(module, imports);
      }
    } else {
      module = new WebAssembly.Module(resp);
      instance = await WebAssembly.instantiate(module, imports);
    }
  }
  return __finishInit(instance, module, imports);
}
`

// threadsImports wires a shared linear memory into the import object. The
// caller passes an existing memory to join a running worker pool; the first
// instantiation creates one.
const threadsImports = `  if (memory === undefined) {
    memory = new WebAssembly.Memory({ initial: 18, maximum: 16384, shared: true });
  }
  imports.env = imports.env || {};
  imports.env.memory = memory;
`

// moduleExports names every symbol the glue body exports, so the CommonJS
// conversion can keep them reachable. Assembled output is one file; the
// names are recovered from the export statements themselves.
func moduleExports(body string) []string {
	var names []string
	for _, line := range strings.Split(body, "\n") {
		for _, prefix := range []string{"export function ", "export class ", "export const "} {
			rest, ok := strings.CutPrefix(line, prefix)
			if !ok {
				continue
			}
			end := strings.IndexAny(rest, "( ={")
			if end == -1 {
				end = len(rest)
			}
			names = append(names, rest[:end])
		}
	}
	return names
}
