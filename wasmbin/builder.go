package wasmbin

import (
	"github.com/tetratelabs/wazero/api"
)

// Builder synthesizes small wasm modules: trampolines whose exports forward
// to imported implementation functions, and self-contained fixture modules
// with raw function bodies. Function bodies are instruction bytes terminated
// by 0x0b; the builder does not validate them.
type Builder struct {
	importModule string
	memExport    string
	types        []funcType
	imports      []importFunc
	funcs        []localFunc
	globals      []localGlobal
	customs      []customSec
	memPages     uint32
	hasMemory    bool
}

type funcType struct {
	params  []api.ValueType
	results []api.ValueType
}

type importFunc struct {
	name string
	typ  uint32
}

type localFunc struct {
	exportName string
	body       []byte
	locals     []api.ValueType
	typ        uint32
}

type localGlobal struct {
	exportName string
	init       int64
	valType    api.ValueType
	mutable    bool
}

type customSec struct {
	name string
	data []byte
}

// NewBuilder creates a builder whose function imports come from importModule.
func NewBuilder(importModule string) *Builder {
	return &Builder{importModule: importModule}
}

func (b *Builder) addType(params, results []api.ValueType) uint32 {
	for i, t := range b.types {
		if typesEqual(t.params, params) && typesEqual(t.results, results) {
			return uint32(i)
		}
	}
	b.types = append(b.types, funcType{params: params, results: results})
	return uint32(len(b.types) - 1)
}

func typesEqual(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AddImport declares a function import and returns its index in the function
// index space. Imports always precede locally defined functions.
func (b *Builder) AddImport(name string, params, results []api.ValueType) uint32 {
	b.imports = append(b.imports, importFunc{
		name: name,
		typ:  b.addType(params, results),
	})
	return uint32(len(b.imports) - 1)
}

// AddFunc defines a function with a raw body (instructions ending in 0x0b)
// and returns its index in the function index space. An empty exportName
// keeps the function internal.
func (b *Builder) AddFunc(exportName string, params, results, locals []api.ValueType, body []byte) uint32 {
	b.funcs = append(b.funcs, localFunc{
		exportName: exportName,
		typ:        b.addType(params, results),
		locals:     locals,
		body:       body,
	})
	// Local indices are assigned after all imports at Build time; with
	// imports only added through AddImport this is already final.
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// AddTrampoline imports implName and exports exportName as a function with
// the same signature that forwards every parameter to the import.
func (b *Builder) AddTrampoline(exportName, implName string, params, results []api.ValueType) {
	idx := b.AddImport(implName, params, results)

	var body []byte
	for i := range params {
		body = append(body, 0x20) // local.get
		body = AppendUleb(body, uint32(i))
	}
	body = append(body, 0x10) // call
	body = AppendUleb(body, idx)
	body = append(body, 0x0b) // end

	b.AddFunc(exportName, params, results, nil, body)
}

// AddMemory defines a linear memory of minPages and exports it.
func (b *Builder) AddMemory(minPages uint32, exportName string) {
	b.hasMemory = true
	b.memPages = minPages
	b.memExport = exportName
}

// AddGlobal defines an exported global initialized to init.
func (b *Builder) AddGlobal(exportName string, valType api.ValueType, mutable bool, init int64) uint32 {
	b.globals = append(b.globals, localGlobal{
		exportName: exportName,
		valType:    valType,
		mutable:    mutable,
		init:       init,
	})
	return uint32(len(b.globals) - 1)
}

// AddCustomSection appends a custom section, emitted after all standard
// sections.
func (b *Builder) AddCustomSection(name string, data []byte) {
	b.customs = append(b.customs, customSec{name: name, data: data})
}

// Build encodes the module.
func (b *Builder) Build() []byte {
	out := append([]byte(nil), magic...)

	if len(b.types) > 0 {
		out = appendSection(out, SecType, b.buildTypeSection())
	}
	if len(b.imports) > 0 {
		out = appendSection(out, SecImport, b.buildImportSection())
	}
	if len(b.funcs) > 0 {
		out = appendSection(out, SecFunc, b.buildFuncSection())
	}
	if b.hasMemory {
		out = appendSection(out, SecMemory, b.buildMemorySection())
	}
	if len(b.globals) > 0 {
		out = appendSection(out, SecGlobal, b.buildGlobalSection())
	}
	if sec := b.buildExportSection(); sec != nil {
		out = appendSection(out, SecExport, sec)
	}
	if len(b.funcs) > 0 {
		out = appendSection(out, SecCode, b.buildCodeSection())
	}
	for _, c := range b.customs {
		var body []byte
		body = AppendUleb(body, uint32(len(c.name)))
		body = append(body, c.name...)
		body = append(body, c.data...)
		out = appendSection(out, SecCustom, body)
	}
	return out
}

func appendSection(out []byte, id byte, body []byte) []byte {
	out = append(out, id)
	out = AppendUleb(out, uint32(len(body)))
	return append(out, body...)
}

func appendName(out []byte, name string) []byte {
	out = AppendUleb(out, uint32(len(name)))
	return append(out, name...)
}

func valTypeByte(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}

func (b *Builder) buildTypeSection() []byte {
	var sec []byte
	sec = AppendUleb(sec, uint32(len(b.types)))
	for _, t := range b.types {
		sec = append(sec, 0x60)
		sec = AppendUleb(sec, uint32(len(t.params)))
		for _, p := range t.params {
			sec = append(sec, valTypeByte(p))
		}
		sec = AppendUleb(sec, uint32(len(t.results)))
		for _, r := range t.results {
			sec = append(sec, valTypeByte(r))
		}
	}
	return sec
}

func (b *Builder) buildImportSection() []byte {
	var sec []byte
	sec = AppendUleb(sec, uint32(len(b.imports)))
	for _, imp := range b.imports {
		sec = appendName(sec, b.importModule)
		sec = appendName(sec, imp.name)
		sec = append(sec, ExtFunc)
		sec = AppendUleb(sec, imp.typ)
	}
	return sec
}

func (b *Builder) buildFuncSection() []byte {
	var sec []byte
	sec = AppendUleb(sec, uint32(len(b.funcs)))
	for _, f := range b.funcs {
		sec = AppendUleb(sec, f.typ)
	}
	return sec
}

func (b *Builder) buildMemorySection() []byte {
	var sec []byte
	sec = AppendUleb(sec, 1)
	sec = append(sec, 0x00) // no maximum
	sec = AppendUleb(sec, b.memPages)
	return sec
}

func (b *Builder) buildGlobalSection() []byte {
	var sec []byte
	sec = AppendUleb(sec, uint32(len(b.globals)))
	for _, g := range b.globals {
		sec = append(sec, valTypeByte(g.valType))
		if g.mutable {
			sec = append(sec, 0x01)
		} else {
			sec = append(sec, 0x00)
		}
		switch g.valType {
		case api.ValueTypeI64:
			sec = append(sec, 0x42)
			sec = AppendSleb(sec, g.init)
		case api.ValueTypeF32:
			sec = append(sec, 0x43, 0, 0, 0, 0)
		case api.ValueTypeF64:
			sec = append(sec, 0x44, 0, 0, 0, 0, 0, 0, 0, 0)
		default:
			sec = append(sec, 0x41)
			sec = AppendSleb(sec, int32(g.init))
		}
		sec = append(sec, 0x0b)
	}
	return sec
}

func (b *Builder) buildExportSection() []byte {
	type export struct {
		name string
		kind byte
		idx  uint32
	}
	var exports []export

	if b.hasMemory && b.memExport != "" {
		exports = append(exports, export{name: b.memExport, kind: ExtMemory})
	}
	for i, g := range b.globals {
		if g.exportName != "" {
			exports = append(exports, export{name: g.exportName, kind: ExtGlobal, idx: uint32(i)})
		}
	}
	for i, f := range b.funcs {
		if f.exportName != "" {
			exports = append(exports, export{
				name: f.exportName,
				kind: ExtFunc,
				idx:  uint32(len(b.imports) + i),
			})
		}
	}
	if len(exports) == 0 {
		return nil
	}

	var sec []byte
	sec = AppendUleb(sec, uint32(len(exports)))
	for _, e := range exports {
		sec = appendName(sec, e.name)
		sec = append(sec, e.kind)
		sec = AppendUleb(sec, e.idx)
	}
	return sec
}

func (b *Builder) buildCodeSection() []byte {
	var sec []byte
	sec = AppendUleb(sec, uint32(len(b.funcs)))
	for _, f := range b.funcs {
		var body []byte
		body = AppendUleb(body, uint32(len(f.locals)))
		for _, l := range f.locals {
			body = AppendUleb(body, 1)
			body = append(body, valTypeByte(l))
		}
		body = append(body, f.body...)

		sec = AppendUleb(sec, uint32(len(body)))
		sec = append(sec, body...)
	}
	return sec
}
