package emit

import (
	"github.com/wippyai/jsbind/errors"
)

// Target selects the loader scaffolding wrapped around the generated glue.
type Target string

const (
	// TargetBundler emits a synchronous ES module for bundler pipelines
	// that resolve the .wasm asset at build time.
	TargetBundler Target = "bundler"
	// TargetWeb emits an async default-export init plus initSync for
	// direct browser consumption.
	TargetWeb Target = "web"
	// TargetNodeCJS emits a CommonJS module reading the .wasm from disk.
	TargetNodeCJS Target = "node-cjs"
	// TargetNodeESM emits an ES module reading the .wasm from disk.
	TargetNodeESM Target = "node-esm"
	// TargetDeno emits an ES module fetching the .wasm relative to the
	// importing module URL.
	TargetDeno Target = "deno"
	// TargetWebThreads is TargetWeb instantiating against an imported
	// shared WebAssembly.Memory.
	TargetWebThreads Target = "web-threads"
)

// Targets lists every supported target in stable order.
func Targets() []Target {
	return []Target{
		TargetBundler,
		TargetWeb,
		TargetNodeCJS,
		TargetNodeESM,
		TargetDeno,
		TargetWebThreads,
	}
}

// ParseTarget validates a target name from user input.
func ParseTarget(s string) (Target, error) {
	for _, t := range Targets() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", errors.New(errors.PhaseEmit, errors.KindInvalidInput).
		Detail("unknown target %q", s).
		Build()
}
