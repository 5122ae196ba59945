package emit

import (
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"

	"github.com/wippyai/jsbind/errors"
	"github.com/wippyai/jsbind/gen"
)

// Config selects the emitted module shape.
type Config struct {
	// Target picks the loader scaffolding. Defaults to bundler.
	Target Target
	// Name is the artifact base name, "bindings" when empty. The wasm
	// asset is referenced as <Name>_bg.wasm next to the JS file.
	Name string
	// Minify compresses the validated output.
	Minify bool
}

// Artifact is one emitted module: the JS glue and the wasm trampoline to
// place next to it.
type Artifact struct {
	JSName   string
	JS       string
	WasmName string
	Wasm     []byte
}

// Emit assembles the generated glue into a loadable module for the
// configured target and validates the result.
func Emit(out *gen.Output, cfg Config) (*Artifact, error) {
	if cfg.Target == "" {
		cfg.Target = TargetBundler
	}
	name := cfg.Name
	if name == "" {
		name = "bindings"
	}
	wasmName := name + "_bg.wasm"

	js := out.JS + "\n" + loader(cfg.Target, wasmName)

	js, err := finalize(js, cfg)
	if err != nil {
		return nil, err
	}

	ext := ".js"
	if cfg.Target == TargetNodeCJS {
		ext = ".cjs"
	}

	if ce := Logger().Check(zap.DebugLevel, "emitted"); ce != nil {
		ce.Write(
			zap.String("target", string(cfg.Target)),
			zap.Int("exports", len(moduleExports(out.JS))),
			zap.Int("js_bytes", len(js)),
		)
	}

	return &Artifact{
		JSName:   name + ext,
		JS:       js,
		WasmName: wasmName,
		Wasm:     out.Trampoline,
	}, nil
}

// finalize runs the assembled source through esbuild: syntax validation for
// every target, ESM-to-CommonJS conversion for node-cjs, and optional
// minification.
func finalize(js string, cfg Config) (string, error) {
	opts := esbuild.TransformOptions{
		Target: esbuild.ES2022,
		Format: esbuild.FormatESModule,
	}
	if cfg.Target == TargetNodeCJS {
		opts.Format = esbuild.FormatCommonJS
		opts.Platform = esbuild.PlatformNode
	}
	if cfg.Minify {
		opts.MinifyWhitespace = true
		opts.MinifySyntax = true
		opts.MinifyIdentifiers = true
	}

	result := esbuild.Transform(js, opts)
	if len(result.Errors) > 0 {
		var msgs []string
		for _, e := range result.Errors {
			msgs = append(msgs, e.Text)
		}
		return "", errors.Syntax("generated module does not parse: "+strings.Join(msgs, "; "), nil)
	}
	return string(result.Code), nil
}

// Validate checks that a JS source parses as an ES2022 module. It is the
// same esbuild pass Emit runs, exposed for callers holding raw glue.
func Validate(js string) error {
	result := esbuild.Transform(js, esbuild.TransformOptions{
		Target: esbuild.ES2022,
		Format: esbuild.FormatESModule,
	})
	if len(result.Errors) == 0 {
		return nil
	}
	var msgs []string
	for _, e := range result.Errors {
		msgs = append(msgs, e.Text)
	}
	return errors.Syntax(strings.Join(msgs, "; "), nil)
}
