package host

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/jsbind/abi"
	"github.com/wippyai/jsbind/errors"
	"github.com/wippyai/jsbind/resolve"
	"github.com/wippyai/jsbind/wasmbin"
)

// HostFunc implements one declared guest import on the Go side. Arguments
// arrive already lifted to Go values; the return value is lowered per the
// import's resolved descriptor.
type HostFunc func(ctx context.Context, args ...any) (any, error)

// Config holds runtime creation options.
type Config struct {
	// MemoryLimitPages caps guest memory in 64KB pages. 0 means the
	// wazero default.
	MemoryLimitPages uint32
}

// Runtime wraps a wazero runtime with the wbindgen import module. One
// Runtime binds to one compiled guest; Load a second module into a second
// Runtime.
type Runtime struct {
	rt     wazero.Runtime
	seq    atomic.Uint64
	mu     sync.Mutex
	bound  *Module
	byName map[string]*Instance
}

// New creates a runtime with default configuration.
func New(ctx context.Context) (*Runtime, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a runtime with custom configuration.
func NewWithConfig(ctx context.Context, cfg *Config) (*Runtime, error) {
	rc := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &Runtime{
		rt:     wazero.NewRuntimeWithConfig(ctx, rc),
		byName: make(map[string]*Instance),
	}, nil
}

// Close releases all runtime resources. All instances become unusable.
func (r *Runtime) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

// Load compiles a guest module and binds the wbindgen import module to its
// resolved plan. The binary must carry the reserved allocator exports.
func (r *Runtime) Load(ctx context.Context, wasm []byte, plan *resolve.ProgramPlan) (*Module, error) {
	parsed, err := wasmbin.Parse(wasm)
	if err != nil {
		return nil, err
	}
	if err := parsed.CheckIntrinsics(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	bound := r.bound
	r.mu.Unlock()
	if bound != nil {
		return nil, errors.InvalidInput(errors.PhaseLoad,
			"runtime already bound to a module; use a fresh Runtime")
	}

	compiled, err := r.rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	m := &Module{runtime: r, compiled: compiled, plan: plan}
	if err := r.instantiateBindgen(ctx, plan); err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}

	r.mu.Lock()
	r.bound = m
	r.mu.Unlock()

	Logger().Debug("module loaded",
		zap.Int("exports", len(plan.Exports)),
		zap.Int("imports", len(plan.Imports)),
		zap.Int("wasm_bytes", len(wasm)))
	return m, nil
}

// lookup resolves the Instance behind a calling guest module.
func (r *Runtime) lookup(mod api.Module) (*Instance, error) {
	r.mu.Lock()
	inst := r.byName[mod.Name()]
	r.mu.Unlock()
	if inst == nil {
		return nil, errors.NotInitialized(errors.PhaseRuntime, "instance "+mod.Name())
	}
	return inst, nil
}

func (r *Runtime) register(name string, inst *Instance) {
	r.mu.Lock()
	r.byName[name] = inst
	r.mu.Unlock()
}

func (r *Runtime) unregister(name string) {
	r.mu.Lock()
	delete(r.byName, name)
	r.mu.Unlock()
}

// instantiateBindgen registers the wbindgen host module: the fixed object
// intrinsics plus one shim per declared import.
func (r *Runtime) instantiateBindgen(ctx context.Context, plan *resolve.ProgramPlan) error {
	b := r.rt.NewHostModuleBuilder(abi.ImportModule)

	b = b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, mod api.Module, stack []uint64) {
			msg := "wasm guest panicked"
			if data, ok := mod.Memory().Read(uint32(stack[0]), uint32(stack[1])); ok {
				msg = string(data)
			}
			panic(errors.New(errors.PhaseRuntime, errors.KindAborted).
				Detail("%s", msg).
				Build())
		}), i32Params(2), nil).
		Export(abi.ImpThrow)

	b = b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			inst, err := r.lookup(mod)
			if err != nil {
				panic(err)
			}
			data, ok := mod.Memory().Read(uint32(stack[0]), uint32(stack[1]))
			if !ok {
				panic(errors.OutOfBounds(errors.PhaseRuntime, uint32(stack[0]), uint32(stack[1])))
			}
			stack[0] = uint64(inst.objects.Alloc(string(data)))
		}), i32Params(2), i32Params(1)).
		Export(abi.ImpStringNew)

	b = b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, mod api.Module, stack []uint64) {
			if inst, err := r.lookup(mod); err == nil {
				inst.objects.Dealloc(uint32(stack[0]))
			}
		}), i32Params(1), nil).
		Export(abi.ImpObjectDrop)

	b = b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, mod api.Module, stack []uint64) {
			inst, err := r.lookup(mod)
			if err != nil {
				panic(err)
			}
			v, ok := inst.objects.Get(uint32(stack[0]))
			if !ok {
				panic(errors.UseAfterFree("object"))
			}
			stack[0] = uint64(inst.objects.Alloc(v))
		}), i32Params(1), i32Params(1)).
		Export(abi.ImpObjectClone)

	for _, p := range plan.Imports {
		b = b.NewFunctionBuilder().
			WithGoModuleFunction(r.importShim(p), slotValueTypes(p.ParamSlots), slotValueTypes(p.ResultSlots)).
			Export(p.ExportName)
	}

	_, err := b.Instantiate(ctx)
	if err != nil {
		return errors.Instantiation(err)
	}
	return nil
}

// moduleName mints a unique instance name; re-instantiation after an abort
// needs a fresh one.
func (r *Runtime) moduleName() string {
	return "jsbind-" + strconv.FormatUint(r.seq.Add(1), 10)
}

func i32Params(n int) []api.ValueType {
	out := make([]api.ValueType, n)
	for i := range out {
		out[i] = api.ValueTypeI32
	}
	return out
}

func slotValueTypes(slots []abi.SlotKind) []api.ValueType {
	out := make([]api.ValueType, len(slots))
	for i, s := range slots {
		switch s {
		case abi.SlotI64:
			out[i] = api.ValueTypeI64
		case abi.SlotF32:
			out[i] = api.ValueTypeF32
		case abi.SlotF64:
			out[i] = api.ValueTypeF64
		default:
			out[i] = api.ValueTypeI32
		}
	}
	return out
}
