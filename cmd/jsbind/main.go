package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/wippyai/jsbind"
	"github.com/wippyai/jsbind/emit"
	"github.com/wippyai/jsbind/ir"
	"github.com/wippyai/jsbind/resolve"
	"github.com/wippyai/jsbind/wasmbin"
)

func main() {
	var (
		irFile      = flag.String("ir", "", "Path to binding program JSON")
		wasmFile    = flag.String("wasm", "", "Path to compiled module carrying the binding program")
		target      = flag.String("target", "bundler", "Output target: bundler, web, web-threads, node-cjs, node-esm, deno")
		outDir      = flag.String("out", ".", "Output directory")
		baseName    = flag.String("name", "", "Artifact base name (default: program name)")
		minify      = flag.Bool("minify", false, "Minify the generated JS")
		list        = flag.Bool("list", false, "List bound functions and exit")
		interactive = flag.Bool("i", false, "Interactive inspector with TUI")
	)
	flag.Parse()

	if *irFile == "" && *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: jsbind -ir <program.json> [-target name] [-out dir]")
		fmt.Fprintln(os.Stderr, "       jsbind -wasm <module.wasm> [-target name] [-out dir]")
		fmt.Fprintln(os.Stderr, "       jsbind -ir <program.json> -list")
		fmt.Fprintln(os.Stderr, "       jsbind -ir <program.json> -i  (interactive inspector)")
		os.Exit(1)
	}

	if err := run(*irFile, *wasmFile, *target, *outDir, *baseName, *minify, *list, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(irFile, wasmFile, target, outDir, name string, minify, listOnly, interactive bool) error {
	prog, guest, err := loadProgram(irFile, wasmFile)
	if err != nil {
		return err
	}

	if interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal")
		}
		source := irFile
		if source == "" {
			source = wasmFile
		}
		return runInteractive(source, prog)
	}

	if listOnly {
		plan, err := resolve.NewResolver(prog).PlanProgram()
		if err != nil {
			return err
		}
		printPlan(prog, plan)
		return nil
	}

	tgt, err := emit.ParseTarget(target)
	if err != nil {
		return err
	}
	if name == "" {
		name = prog.Name
	}
	art, err := jsbind.Generate(prog, jsbind.Options{Target: tgt, Name: name, Minify: minify})
	if err != nil {
		return err
	}

	// A compiled guest module ships as-is; the synthesized trampoline only
	// stands in when all we have is the program description.
	wasmOut := art.Wasm
	if guest != nil {
		wasmOut = guest
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	jsPath := filepath.Join(outDir, art.JSName)
	if err := os.WriteFile(jsPath, []byte(art.JS), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", art.JSName, err)
	}
	wasmPath := filepath.Join(outDir, art.WasmName)
	if err := os.WriteFile(wasmPath, wasmOut, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", art.WasmName, err)
	}

	fmt.Printf("Wrote %s (%d bytes)\n", jsPath, len(art.JS))
	fmt.Printf("Wrote %s (%d bytes)\n", wasmPath, len(wasmOut))
	return nil
}

// loadProgram reads the binding program from a JSON file or from a compiled
// module's custom section. The module bytes come back too so they can be
// placed next to the glue.
func loadProgram(irFile, wasmFile string) (*ir.Program, []byte, error) {
	if irFile != "" {
		data, err := os.ReadFile(irFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read file: %w", err)
		}
		prog, err := ir.ParseJSON(data)
		if err != nil {
			return nil, nil, err
		}
		return prog, nil, nil
	}

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}
	raw, err := wasmbin.ExtractIR(data)
	if err != nil {
		return nil, nil, err
	}
	prog, err := ir.ParseJSON(raw)
	if err != nil {
		return nil, nil, err
	}
	return prog, data, nil
}

func printPlan(prog *ir.Program, plan *resolve.ProgramPlan) {
	fmt.Printf("Program: %s\n", prog.Name)
	fmt.Printf("Structs: %d\n", len(prog.Structs))
	fmt.Printf("Enums: %d\n", len(prog.Enums))

	fmt.Printf("\nExported functions:\n")
	for _, fp := range plan.Exports {
		fmt.Printf("  %s\n", formatPlan(fp))
	}
	if len(plan.Imports) > 0 {
		fmt.Printf("\nImported functions:\n")
		for _, fp := range plan.Imports {
			fmt.Printf("  %s\n", formatPlan(fp))
		}
	}
}

func formatPlan(fp *resolve.FuncPlan) string {
	var params []string
	if fp.Self != nil {
		params = append(params, "self: "+fp.Self.Desc.String())
	}
	for _, a := range fp.Args {
		params = append(params, a.Name+": "+a.Desc.String())
	}
	result := ""
	if fp.Ret.Desc != nil {
		result = " -> " + fp.Ret.Desc.String()
	}
	async := ""
	if fp.Async {
		async = " [async]"
	}
	return fp.ExportName + "(" + strings.Join(params, ", ") + ")" + result + async
}
