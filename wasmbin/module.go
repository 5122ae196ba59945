package wasmbin

import (
	"bytes"
	"fmt"

	"github.com/wippyai/jsbind/abi"
	"github.com/wippyai/jsbind/errors"
)

// Section IDs used by the reader and builder.
const (
	SecCustom byte = 0
	SecType   byte = 1
	SecImport byte = 2
	SecFunc   byte = 3
	SecTable  byte = 4
	SecMemory byte = 5
	SecGlobal byte = 6
	SecExport byte = 7
	SecStart  byte = 8
	SecElem   byte = 9
	SecCode   byte = 10
	SecData   byte = 11
)

// External kinds in import/export entries.
const (
	ExtFunc   byte = 0
	ExtTable  byte = 1
	ExtMemory byte = 2
	ExtGlobal byte = 3
)

var magic = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Export is one entry of a module's export section.
type Export struct {
	Name  string
	Index uint32
	Kind  byte
}

// Import is one entry of a module's import section. The type payload is not
// retained; the binding layer only matches on names and kinds.
type Import struct {
	Module string
	Name   string
	Kind   byte
}

// Module is the parsed skeleton of a wasm binary: enough structure to check
// exports, enumerate imports and read custom sections, with everything else
// left as opaque bytes.
type Module struct {
	customs map[string][]byte
	Exports []Export
	Imports []Import
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) uleb() (uint32, error) {
	v, n, err := Uleb(r.data[r.pos:])
	r.pos += n
	return v, err
}

func (r *reader) bytes(n uint32) ([]byte, error) {
	if uint32(r.remaining()) < n {
		return nil, ErrTruncated
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *reader) name() (string, error) {
	n, err := r.uleb()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Parse reads the section skeleton of a wasm binary. Malformed input returns
// an error; it never panics.
func Parse(data []byte) (*Module, error) {
	if len(data) < len(magic) || !bytes.Equal(data[:4], magic[:4]) {
		return nil, errors.Load("not a wasm binary", nil)
	}
	if !bytes.Equal(data[4:8], magic[4:]) {
		return nil, errors.Load(fmt.Sprintf("unsupported wasm version %x", data[4:8]), nil)
	}

	m := &Module{customs: make(map[string][]byte)}
	r := &reader{data: data, pos: len(magic)}

	for r.remaining() > 0 {
		id, err := r.byte()
		if err != nil {
			return nil, errors.Load("reading section id", err)
		}
		size, err := r.uleb()
		if err != nil {
			return nil, errors.Load("reading section size", err)
		}
		body, err := r.bytes(size)
		if err != nil {
			return nil, errors.Load(fmt.Sprintf("section %d truncated", id), err)
		}

		switch id {
		case SecCustom:
			if err := m.parseCustom(body); err != nil {
				return nil, err
			}
		case SecImport:
			if err := m.parseImports(body); err != nil {
				return nil, err
			}
		case SecExport:
			if err := m.parseExports(body); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Module) parseCustom(body []byte) error {
	r := &reader{data: body}
	name, err := r.name()
	if err != nil {
		return errors.Load("custom section name", err)
	}
	m.customs[name] = body[r.pos:]
	return nil
}

func (m *Module) parseImports(body []byte) error {
	r := &reader{data: body}
	count, err := r.uleb()
	if err != nil {
		return errors.Load("import count", err)
	}
	for i := uint32(0); i < count; i++ {
		mod, err := r.name()
		if err != nil {
			return errors.Load("import module name", err)
		}
		name, err := r.name()
		if err != nil {
			return errors.Load("import field name", err)
		}
		kind, err := r.byte()
		if err != nil {
			return errors.Load("import kind", err)
		}
		if err := skipImportType(r, kind); err != nil {
			return errors.Load(fmt.Sprintf("import %s.%s type", mod, name), err)
		}
		m.Imports = append(m.Imports, Import{Module: mod, Name: name, Kind: kind})
	}
	return nil
}

func skipImportType(r *reader, kind byte) error {
	switch kind {
	case ExtFunc:
		_, err := r.uleb()
		return err
	case ExtTable:
		if _, err := r.byte(); err != nil {
			return err
		}
		return skipLimits(r)
	case ExtMemory:
		return skipLimits(r)
	case ExtGlobal:
		if _, err := r.byte(); err != nil {
			return err
		}
		_, err := r.byte()
		return err
	default:
		return fmt.Errorf("unknown import kind %d", kind)
	}
}

func skipLimits(r *reader) error {
	flags, err := r.byte()
	if err != nil {
		return err
	}
	if _, err := r.uleb(); err != nil {
		return err
	}
	if flags&0x01 != 0 {
		if _, err := r.uleb(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) parseExports(body []byte) error {
	r := &reader{data: body}
	count, err := r.uleb()
	if err != nil {
		return errors.Load("export count", err)
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.name()
		if err != nil {
			return errors.Load("export name", err)
		}
		kind, err := r.byte()
		if err != nil {
			return errors.Load("export kind", err)
		}
		idx, err := r.uleb()
		if err != nil {
			return errors.Load("export index", err)
		}
		m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Index: idx})
	}
	return nil
}

// CustomSection returns the payload of the named custom section. When a name
// appears more than once, the last occurrence wins.
func (m *Module) CustomSection(name string) ([]byte, bool) {
	b, ok := m.customs[name]
	return b, ok
}

// HasExport reports whether the module exports name with the given kind.
func (m *Module) HasExport(name string, kind byte) bool {
	for _, e := range m.Exports {
		if e.Name == name && e.Kind == kind {
			return true
		}
	}
	return false
}

// MissingIntrinsics lists required allocator/memory exports the module lacks.
func (m *Module) MissingIntrinsics() []string {
	var missing []string
	for _, name := range abi.RequiredIntrinsics {
		kind := ExtFunc
		if name == abi.SymMemory {
			kind = ExtMemory
		}
		if !m.HasExport(name, kind) {
			missing = append(missing, name)
		}
	}
	return missing
}

// CheckIntrinsics returns a MissingIntrinsicsError when any required export
// is absent.
func (m *Module) CheckIntrinsics() error {
	if missing := m.MissingIntrinsics(); len(missing) > 0 {
		return errors.NewMissingIntrinsicsError(missing)
	}
	return nil
}

// ExtractIR pulls the serialized binding program out of a compiled module's
// custom section.
func ExtractIR(data []byte) ([]byte, error) {
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	ir, ok := m.CustomSection(abi.IRSection)
	if !ok {
		return nil, errors.NotFound(errors.PhaseLoad, "custom section", abi.IRSection)
	}
	return ir, nil
}
