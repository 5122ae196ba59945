package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/jsbind/abi"
	"github.com/wippyai/jsbind/errors"
	"github.com/wippyai/jsbind/reftable"
	"github.com/wippyai/jsbind/resolve"
)

// Module is a compiled guest bound to its resolved plan.
type Module struct {
	runtime  *Runtime
	compiled wazero.CompiledModule
	plan     *resolve.ProgramPlan
}

// Instance is one live instantiation. Calls serialize on an internal lock;
// the object table survives re-instantiation after an abort, linear memory
// does not.
type Instance struct {
	module  *Module
	objects *reftable.Table
	hosts   map[string]HostFunc

	mu      sync.Mutex
	mod     api.Module
	aborted bool
}

// Thrown carries a guest-thrown value (a Result error) back to Go. The
// instance stays healthy after a Thrown error.
type Thrown struct {
	Value any
}

func (t *Thrown) Error() string {
	return fmt.Sprintf("guest error: %v", t.Value)
}

// Instantiate creates a live instance. hosts supplies the Go implementations
// of the program's declared imports, keyed by import function name; a
// missing implementation traps when the guest calls it.
func (m *Module) Instantiate(ctx context.Context, hosts map[string]HostFunc) (*Instance, error) {
	inst := &Instance{
		module:  m,
		objects: reftable.New(),
		hosts:   hosts,
	}
	if err := inst.bringUp(ctx); err != nil {
		return nil, err
	}
	return inst, nil
}

// Close releases the instance. The compiled module stays loadable.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.mod == nil {
		return nil
	}
	i.module.runtime.unregister(i.mod.Name())
	err := i.mod.Close(ctx)
	i.mod = nil
	return err
}

// Aborted reports whether the last call trapped and the next call will
// re-instantiate.
func (i *Instance) Aborted() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.aborted
}

// Objects exposes the host-side object table, mainly for tests and
// diagnostics.
func (i *Instance) Objects() *reftable.Table {
	return i.objects
}

// bringUp instantiates from the compiled module and runs the start export.
// Caller must not hold the lock for the initial bring-up; reinit calls it
// with the lock held, which is fine since bringUp itself does not lock.
func (i *Instance) bringUp(ctx context.Context) error {
	name := i.module.runtime.moduleName()
	cfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	mod, err := i.module.runtime.rt.InstantiateModule(ctx, i.module.compiled, cfg)
	if err != nil {
		return errors.Instantiation(err)
	}
	i.module.runtime.register(name, i)
	i.mod = mod
	i.aborted = false

	if start := mod.ExportedFunction(abi.SymStart); start != nil {
		if _, err := start.Call(ctx); err != nil {
			i.module.runtime.unregister(name)
			_ = mod.Close(ctx)
			i.mod = nil
			return errors.Instantiation(err)
		}
	}
	return nil
}

// reinit discards the poisoned instantiation and brings up a fresh one.
func (i *Instance) reinit(ctx context.Context) error {
	old := i.mod
	if old != nil {
		i.module.runtime.unregister(old.Name())
		_ = old.Close(ctx)
		i.mod = nil
	}
	Logger().Debug("re-instantiating after abort")
	return i.bringUp(ctx)
}

// Call invokes an exported function by its raw export name, marshalling Go
// arguments per the resolved plan. Receiver-taking exports expect the
// *Object handle as the first argument.
func (i *Instance) Call(ctx context.Context, export string, args ...any) (any, error) {
	plan := i.findPlan(export)
	if plan == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", errors.DemangleRust(export))
	}
	if plan.Async {
		return nil, errors.UnsupportedType(errors.PhaseRuntime, []string{export},
			"async fn", "promises need a JS event loop; embed the JS glue instead")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.aborted {
		if err := i.reinit(ctx); err != nil {
			return nil, err
		}
	}
	if i.mod == nil {
		return nil, errors.NotInitialized(errors.PhaseRuntime, "instance")
	}

	want := len(plan.Args)
	if plan.Self != nil {
		want++
	}
	if len(args) != want {
		return nil, errors.InvalidInput(errors.PhaseRuntime,
			fmt.Sprintf("%s takes %d arguments, got %d", export, want, len(args)))
	}

	var (
		raw   []uint64
		frees []func()
	)
	defer func() {
		// A trap leaves guest memory in an unknown state; leak rather
		// than call back into it.
		if i.aborted {
			return
		}
		for _, f := range frees {
			f()
		}
	}()

	if plan.Self != nil {
		if err := i.lower(ctx, args[0], plan.Self.Desc, plan.Self.Own, &raw, &frees); err != nil {
			return nil, err
		}
		args = args[1:]
	}
	for n, a := range plan.Args {
		if err := i.lower(ctx, args[n], a.Desc, a.Own, &raw, &frees); err != nil {
			return nil, err
		}
	}

	retSlots := plan.RetSlots()
	var retptr uint32
	if plan.NeedsRetArea {
		size, _ := slotLayout(retSlots)
		p, err := i.malloc(ctx, size, 8)
		if err != nil {
			return nil, err
		}
		retptr = p
		defer func() {
			if !i.aborted {
				_ = i.free(ctx, retptr, size, 8)
			}
		}()
		raw = append([]uint64{uint64(retptr)}, raw...)
	}

	fn := i.mod.ExportedFunction(plan.ExportName)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", plan.ExportName)
	}

	out, err := fn.Call(ctx, raw...)
	if err != nil {
		i.aborted = true
		Logger().Warn("guest trapped", zap.String("export", export), zap.Error(err))
		return nil, errors.Aborted(err)
	}

	var slots []uint64
	if plan.NeedsRetArea {
		slots, err = i.readRetArea(retptr, retSlots)
		if err != nil {
			return nil, err
		}
	} else {
		slots = out
	}

	return i.decode(ctx, plan, slots)
}

// decode turns raw result slots into a Go value, applying Result error
// checking before any success lift.
func (i *Instance) decode(ctx context.Context, plan *resolve.FuncPlan, slots []uint64) (any, error) {
	d := plan.Ret.Desc
	if d == nil {
		return nil, nil
	}

	if d.Kind == abi.KindResult {
		errSlot := uint32(slots[len(slots)-1])
		if errSlot != 0 {
			v, _ := i.objects.Take(errSlot)
			return nil, &Thrown{Value: v}
		}
		if d.Elem == nil {
			return nil, nil
		}
		return i.liftApply(ctx, slots[:len(slots)-1], d.Elem, plan.Ret.Own)
	}

	return i.liftApply(ctx, slots, d, plan.Ret.Own)
}

func (i *Instance) liftApply(ctx context.Context, slots []uint64, d *abi.Descriptor, own abi.OwnershipPlan) (any, error) {
	v, frees, err := i.lift(ctx, slots, d, own)
	for _, f := range frees {
		f()
	}
	return v, err
}

func (i *Instance) findPlan(export string) *resolve.FuncPlan {
	for _, p := range i.module.plan.Exports {
		if p.ExportName == export {
			return p
		}
	}
	return nil
}

// FreeObject releases an exported-struct handle through the guest's free
// export.
func (i *Instance) FreeObject(ctx context.Context, o *Object) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	ptr := o.take()
	if ptr == 0 {
		return nil
	}
	fn := i.mod.ExportedFunction(resolve.FreeSymbol(o.Class))
	if fn == nil {
		return errors.NotFound(errors.PhaseRuntime, "export", resolve.FreeSymbol(o.Class))
	}
	if _, err := fn.Call(ctx, uint64(ptr)); err != nil {
		i.aborted = true
		return errors.Aborted(err)
	}
	return nil
}

// importShim adapts one declared import to its HostFunc. Arguments are
// lifted from raw slots, the result is lowered back; catch-flagged imports
// park a Go error in the guest's exception slot instead of trapping.
func (r *Runtime) importShim(p *resolve.FuncPlan) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		inst, err := r.lookup(mod)
		if err != nil {
			panic(err)
		}

		fn := inst.hosts[p.Fn.Name]
		if fn == nil {
			panic(errors.NotFound(errors.PhaseRuntime, "host import", p.Fn.Name))
		}

		cursor := 0
		var retptr uint32
		if p.NeedsRetArea {
			retptr = uint32(stack[0])
			cursor = 1
		}

		var args []any
		for _, a := range p.Args {
			n := a.Desc.SlotCount()
			v, frees, err := inst.lift(ctx, stack[cursor:cursor+n], a.Desc, a.Own)
			for _, f := range frees {
				f()
			}
			if err != nil {
				panic(err)
			}
			args = append(args, v)
			cursor += n
		}

		res, err := fn(ctx, args...)
		if err != nil {
			if !p.Fn.Catch {
				panic(errors.Wrap(errors.PhaseRuntime, errors.KindAborted, err, "uncaught host error"))
			}
			inst.storeException(ctx, err)
			zeroResults(stack, p)
			return
		}

		if p.Ret.Desc == nil {
			return
		}
		var out []uint64
		var frees []func()
		if err := inst.lower(ctx, res, p.Ret.Desc, abi.CalleeTakesOwnership, &out, &frees); err != nil {
			for _, f := range frees {
				f()
			}
			panic(err)
		}
		// Returned ownership passes to the guest; nothing to free here.
		if p.NeedsRetArea {
			if err := inst.writeRetArea(retptr, p.RetSlots(), out); err != nil {
				panic(err)
			}
			return
		}
		copy(stack, out)
	}
}

func (i *Instance) storeException(ctx context.Context, err error) {
	fn := i.mod.ExportedFunction(abi.SymExnStore)
	if fn == nil {
		panic(errors.NotFound(errors.PhaseRuntime, "export", abi.SymExnStore))
	}
	idx := i.objects.Alloc(err)
	if _, callErr := fn.Call(ctx, uint64(idx)); callErr != nil {
		panic(errors.Aborted(callErr))
	}
}

func zeroResults(stack []uint64, p *resolve.FuncPlan) {
	for n := range p.ResultSlots {
		stack[n] = 0
	}
}
