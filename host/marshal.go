package host

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"sync"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/jsbind/abi"
	"github.com/wippyai/jsbind/errors"
	"github.com/wippyai/jsbind/ir"
)

// Object is a Go-held handle to an exported guest struct. Release it back
// through Instance.FreeObject; a freed handle lowers to an error.
type Object struct {
	Class string

	mu  sync.Mutex
	ptr uint32
}

// NewObject wraps a raw handle, mainly for constructor results.
func NewObject(class string, ptr uint32) *Object {
	return &Object{Class: class, ptr: ptr}
}

// Ptr returns the raw handle, 0 when freed.
func (o *Object) Ptr() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ptr
}

// take zeroes the handle and returns the previous value.
func (o *Object) take() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.ptr
	o.ptr = 0
	return p
}

func (i *Instance) malloc(ctx context.Context, size, align uint32) (uint32, error) {
	fn := i.mod.ExportedFunction(abi.SymMalloc)
	out, err := fn.Call(ctx, uint64(size), uint64(align))
	if err != nil {
		i.aborted = true
		return 0, errors.Aborted(err)
	}
	if out[0] == 0 && size > 0 {
		return 0, errors.AllocationFailed(errors.PhaseRuntime, size)
	}
	return uint32(out[0]), nil
}

func (i *Instance) free(ctx context.Context, ptr, size, align uint32) error {
	if ptr == 0 || size == 0 {
		return nil
	}
	fn := i.mod.ExportedFunction(abi.SymFree)
	if _, err := fn.Call(ctx, uint64(ptr), uint64(size), uint64(align)); err != nil {
		i.aborted = true
		return errors.Aborted(err)
	}
	return nil
}

// writeBytes copies data into fresh guest memory and returns its pointer.
func (i *Instance) writeBytes(ctx context.Context, data []byte, align uint32) (uint32, error) {
	ptr, err := i.malloc(ctx, uint32(len(data)), align)
	if err != nil {
		return 0, err
	}
	if len(data) > 0 && !i.mod.Memory().Write(ptr, data) {
		return 0, errors.OutOfBounds(errors.PhaseRuntime, ptr, uint32(len(data)))
	}
	return ptr, nil
}

// lower encodes one Go value into raw slots, collecting deferred cleanups
// for memory the guest only borrows.
func (i *Instance) lower(ctx context.Context, v any, d *abi.Descriptor, own abi.OwnershipPlan, slots *[]uint64, frees *[]func()) error {
	switch d.Kind {
	case abi.KindI32:
		n, ok := toInt64(v)
		if !ok {
			return lowerMismatch(d, v)
		}
		*slots = append(*slots, api.EncodeI32(int32(n)))
		return nil

	case abi.KindEnumNumeric:
		n, ok := toInt64(v)
		if !ok {
			return lowerMismatch(d, v)
		}
		if _, found := d.Enum.VariantByValue(n); !found {
			return errors.InvalidEnum(errors.PhaseRuntime, v, d.Enum.Name)
		}
		*slots = append(*slots, api.EncodeI32(int32(n)))
		return nil

	case abi.KindU32:
		n, ok := toInt64(v)
		if !ok {
			return lowerMismatch(d, v)
		}
		*slots = append(*slots, uint64(uint32(n)))
		return nil

	case abi.KindI64, abi.KindU64:
		n, ok := toInt64(v)
		if !ok {
			if u, uok := v.(uint64); uok {
				*slots = append(*slots, u)
				return nil
			}
			return lowerMismatch(d, v)
		}
		*slots = append(*slots, uint64(n))
		return nil

	case abi.KindF32:
		f, ok := toFloat64(v)
		if !ok {
			return lowerMismatch(d, v)
		}
		*slots = append(*slots, api.EncodeF32(float32(f)))
		return nil

	case abi.KindF64:
		f, ok := toFloat64(v)
		if !ok {
			return lowerMismatch(d, v)
		}
		*slots = append(*slots, api.EncodeF64(f))
		return nil

	case abi.KindBool:
		b, ok := v.(bool)
		if !ok {
			return lowerMismatch(d, v)
		}
		var n uint64
		if b {
			n = 1
		}
		*slots = append(*slots, n)
		return nil

	case abi.KindChar:
		switch c := v.(type) {
		case rune:
			*slots = append(*slots, uint64(uint32(c)))
			return nil
		case string:
			for _, r := range c {
				*slots = append(*slots, uint64(uint32(r)))
				return nil
			}
		}
		return lowerMismatch(d, v)

	case abi.KindI128, abi.KindU128:
		x, ok := v.(*big.Int)
		if !ok {
			return lowerMismatch(d, v)
		}
		if !fitsWords(x, d.Kind == abi.KindI128) {
			return errors.Overflow(errors.PhaseRuntime, nil, x, d.String())
		}
		lo, hi := splitWords(x)
		*slots = append(*slots, lo, hi)
		return nil

	case abi.KindString:
		s, ok := v.(string)
		if !ok {
			return lowerMismatch(d, v)
		}
		ptr, err := i.writeBytes(ctx, []byte(s), 1)
		if err != nil {
			return err
		}
		size := uint32(len(s))
		if own == abi.CallerOwnsBorrowed {
			*frees = append(*frees, func() { _ = i.free(ctx, ptr, size, 1) })
		}
		*slots = append(*slots, uint64(ptr), uint64(size))
		return nil

	case abi.KindSlice:
		data, width, err := encodeSlice(v, d)
		if err != nil {
			return err
		}
		ptr, err := i.writeBytes(ctx, data, width)
		if err != nil {
			return err
		}
		if own == abi.CallerOwnsBorrowed {
			size := uint32(len(data))
			*frees = append(*frees, func() { _ = i.free(ctx, ptr, size, width) })
		}
		*slots = append(*slots, uint64(ptr), uint64(uint32(len(data))/uint32(width)))
		return nil

	case abi.KindOption:
		return i.lowerOption(ctx, v, d, own, slots, frees)

	case abi.KindExternref, abi.KindUnion:
		*slots = append(*slots, uint64(i.objects.Alloc(v)))
		return nil

	case abi.KindEnumString:
		s, ok := v.(string)
		if !ok {
			return lowerMismatch(d, v)
		}
		for n, val := range d.Enum.Values {
			if val == s {
				*slots = append(*slots, uint64(uint32(n)))
				return nil
			}
		}
		return errors.InvalidEnum(errors.PhaseRuntime, v, d.Enum.Name)

	case abi.KindStructPtr:
		if v == nil {
			if d.Nullable {
				*slots = append(*slots, 0)
				return nil
			}
			return lowerMismatch(d, v)
		}
		o, ok := v.(*Object)
		if !ok {
			return lowerMismatch(d, v)
		}
		var ptr uint32
		if own == abi.CalleeTakesOwnership {
			ptr = o.take()
		} else {
			ptr = o.Ptr()
		}
		if ptr == 0 {
			return errors.UseAfterFree(o.Class)
		}
		*slots = append(*slots, uint64(ptr))
		return nil

	case abi.KindClosure:
		return errors.UnsupportedType(errors.PhaseRuntime, nil,
			d.String(), "callbacks need the JS glue's function table")

	default:
		return errors.UnsupportedType(errors.PhaseRuntime, nil, d.String(),
			"no host-side lowering")
	}
}

func (i *Instance) lowerOption(ctx context.Context, v any, d *abi.Descriptor, own abi.OwnershipPlan, slots *[]uint64, frees *[]func()) error {
	if d.HasSentinel {
		if v == nil {
			*slots = append(*slots, uint64(uint32(int32(d.Sentinel))))
			return nil
		}
		return i.lower(ctx, v, d.Elem, own, slots, frees)
	}

	if v == nil {
		*slots = append(*slots, 0)
		for range d.Elem.Slots() {
			*slots = append(*slots, 0)
		}
		return nil
	}
	*slots = append(*slots, 1)
	return i.lower(ctx, v, d.Elem, own, slots, frees)
}

// lift decodes raw slots into a Go value. Frees run after the caller has
// copied everything it needs out of guest memory.
func (i *Instance) lift(ctx context.Context, slots []uint64, d *abi.Descriptor, own abi.OwnershipPlan) (any, []func(), error) {
	switch d.Kind {
	case abi.KindI32:
		return api.DecodeI32(slots[0]), nil, nil
	case abi.KindU32:
		return uint32(slots[0]), nil, nil
	case abi.KindEnumNumeric:
		n := int64(api.DecodeI32(slots[0]))
		if _, found := d.Enum.VariantByValue(n); !found {
			return nil, nil, errors.InvalidEnum(errors.PhaseRuntime, n, d.Enum.Name)
		}
		return int32(n), nil, nil
	case abi.KindI64:
		return int64(slots[0]), nil, nil
	case abi.KindU64:
		return slots[0], nil, nil
	case abi.KindF32:
		return api.DecodeF32(slots[0]), nil, nil
	case abi.KindF64:
		return api.DecodeF64(slots[0]), nil, nil
	case abi.KindBool:
		return slots[0] != 0, nil, nil
	case abi.KindChar:
		return rune(uint32(slots[0])), nil, nil

	case abi.KindI128, abi.KindU128:
		return joinWords(slots[0], slots[1], d.Kind == abi.KindI128), nil, nil

	case abi.KindString:
		ptr, length := uint32(slots[0]), uint32(slots[1])
		data, ok := i.mod.Memory().Read(ptr, length)
		if !ok {
			return nil, nil, errors.OutOfBounds(errors.PhaseRuntime, ptr, length)
		}
		if !utf8.Valid(data) {
			err := errors.InvalidUTF8(errors.PhaseRuntime, data)
			if own == abi.CalleeReturnsOwnership {
				_ = i.free(ctx, ptr, length, 1)
			}
			return nil, nil, err
		}
		s := string(data)
		var frees []func()
		if own == abi.CalleeReturnsOwnership {
			frees = append(frees, func() { _ = i.free(ctx, ptr, length, 1) })
		}
		return s, frees, nil

	case abi.KindSlice:
		ptr, count := uint32(slots[0]), uint32(slots[1])
		width := elemSize(d)
		data, ok := i.mod.Memory().Read(ptr, count*width)
		if !ok {
			return nil, nil, errors.OutOfBounds(errors.PhaseRuntime, ptr, count*width)
		}
		v, err := decodeSlice(data, d)
		if err != nil {
			return nil, nil, err
		}
		var frees []func()
		if own == abi.CalleeReturnsOwnership {
			frees = append(frees, func() { _ = i.free(ctx, ptr, count*width, width) })
		}
		return v, frees, nil

	case abi.KindOption:
		if d.HasSentinel {
			if uint32(slots[0]) == uint32(int32(d.Sentinel)) {
				return nil, nil, nil
			}
			return i.lift(ctx, slots, d.Elem, own)
		}
		if slots[0] == 0 {
			return nil, nil, nil
		}
		return i.lift(ctx, slots[1:], d.Elem, own)

	case abi.KindExternref, abi.KindUnion:
		idx := uint32(slots[0])
		if own == abi.CallerOwnsBorrowed {
			v, ok := i.objects.Get(idx)
			if !ok {
				return nil, nil, errors.UseAfterFree("object")
			}
			return v, nil, nil
		}
		v, ok := i.objects.Take(idx)
		if !ok {
			return nil, nil, errors.UseAfterFree("object")
		}
		return v, nil, nil

	case abi.KindEnumString:
		n := int(uint32(slots[0]))
		if n >= len(d.Enum.Values) {
			return nil, nil, errors.InvalidEnum(errors.PhaseRuntime, n, d.Enum.Name)
		}
		return d.Enum.Values[n], nil, nil

	case abi.KindStructPtr:
		ptr := uint32(slots[0])
		if ptr == 0 && d.Nullable {
			return nil, nil, nil
		}
		return NewObject(d.TypeName, ptr), nil, nil

	default:
		return nil, nil, errors.UnsupportedType(errors.PhaseRuntime, nil, d.String(),
			"no host-side lifting")
	}
}

// readRetArea loads naturally-aligned result slots written by the guest.
func (i *Instance) readRetArea(retptr uint32, kinds []abi.SlotKind) ([]uint64, error) {
	_, offs := slotLayout(kinds)
	out := make([]uint64, len(kinds))
	mem := i.mod.Memory()
	for n, k := range kinds {
		addr := retptr + offs[n]
		var (
			v  uint64
			ok bool
		)
		switch k {
		case abi.SlotI64, abi.SlotF64:
			v, ok = mem.ReadUint64Le(addr)
		default:
			var w uint32
			w, ok = mem.ReadUint32Le(addr)
			v = uint64(w)
		}
		if !ok {
			return nil, errors.OutOfBounds(errors.PhaseRuntime, addr, 8)
		}
		out[n] = v
	}
	return out, nil
}

// writeRetArea stores lowered result slots for a ret-area import shim.
func (i *Instance) writeRetArea(retptr uint32, kinds []abi.SlotKind, slots []uint64) error {
	_, offs := slotLayout(kinds)
	mem := i.mod.Memory()
	for n, k := range kinds {
		addr := retptr + offs[n]
		var ok bool
		switch k {
		case abi.SlotI64, abi.SlotF64:
			ok = mem.WriteUint64Le(addr, slots[n])
		default:
			ok = mem.WriteUint32Le(addr, uint32(slots[n]))
		}
		if !ok {
			return errors.OutOfBounds(errors.PhaseRuntime, addr, 8)
		}
	}
	return nil
}

// slotLayout computes naturally-aligned offsets and the total size rounded
// to 8, the same layout the JS glue reads and writes.
func slotLayout(kinds []abi.SlotKind) (uint32, []uint32) {
	offs := make([]uint32, len(kinds))
	var off uint32
	for n, k := range kinds {
		var w uint32 = 4
		if k == abi.SlotI64 || k == abi.SlotF64 {
			w = 8
		}
		off = (off + w - 1) &^ (w - 1)
		offs[n] = off
		off += w
	}
	return (off + 7) &^ 7, offs
}

var (
	mask64  = new(big.Int).SetUint64(math.MaxUint64)
	i128Min = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	i128Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	u128Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// fitsWords reports whether x is representable in 128 bits.
func fitsWords(x *big.Int, signed bool) bool {
	if signed {
		return x.Cmp(i128Min) >= 0 && x.Cmp(i128Max) <= 0
	}
	return x.Sign() >= 0 && x.Cmp(u128Max) <= 0
}

// splitWords encodes a big integer as two's-complement lo/hi 64-bit words.
func splitWords(x *big.Int) (uint64, uint64) {
	m := new(big.Int).Set(x)
	if m.Sign() < 0 {
		two128 := new(big.Int).Lsh(big.NewInt(1), 128)
		m.Add(m, two128)
	}
	lo := new(big.Int).And(m, mask64).Uint64()
	hi := new(big.Int).And(new(big.Int).Rsh(m, 64), mask64).Uint64()
	return lo, hi
}

// joinWords rebuilds the big integer from its lo/hi words.
func joinWords(lo, hi uint64, signed bool) *big.Int {
	x := new(big.Int).SetUint64(hi)
	x.Lsh(x, 64)
	x.Or(x, new(big.Int).SetUint64(lo))
	if signed && hi >= 1<<63 {
		two128 := new(big.Int).Lsh(big.NewInt(1), 128)
		x.Sub(x, two128)
	}
	return x
}

func elemSize(d *abi.Descriptor) uint32 {
	if d.Elem != nil && d.Elem.Kind == abi.KindEnumNumeric {
		return 4
	}
	switch d.ElemPrim {
	case ir.I8, ir.U8, ir.Bool:
		return 1
	case ir.I16, ir.U16:
		return 2
	case ir.I64, ir.U64, ir.F64:
		return 8
	default:
		return 4
	}
}

// encodeSlice flattens a typed Go slice into little-endian bytes.
func encodeSlice(v any, d *abi.Descriptor) ([]byte, uint32, error) {
	switch s := v.(type) {
	case []byte:
		return s, 1, nil
	case []uint16:
		out := make([]byte, 2*len(s))
		for n, e := range s {
			binary.LittleEndian.PutUint16(out[2*n:], e)
		}
		return out, 2, nil
	case []int32:
		out := make([]byte, 4*len(s))
		for n, e := range s {
			binary.LittleEndian.PutUint32(out[4*n:], uint32(e))
		}
		return out, 4, nil
	case []uint32:
		out := make([]byte, 4*len(s))
		for n, e := range s {
			binary.LittleEndian.PutUint32(out[4*n:], e)
		}
		return out, 4, nil
	case []int64:
		out := make([]byte, 8*len(s))
		for n, e := range s {
			binary.LittleEndian.PutUint64(out[8*n:], uint64(e))
		}
		return out, 8, nil
	case []uint64:
		out := make([]byte, 8*len(s))
		for n, e := range s {
			binary.LittleEndian.PutUint64(out[8*n:], e)
		}
		return out, 8, nil
	case []float32:
		out := make([]byte, 4*len(s))
		for n, e := range s {
			binary.LittleEndian.PutUint32(out[4*n:], math.Float32bits(e))
		}
		return out, 4, nil
	case []float64:
		out := make([]byte, 8*len(s))
		for n, e := range s {
			binary.LittleEndian.PutUint64(out[8*n:], math.Float64bits(e))
		}
		return out, 8, nil
	}
	return nil, 0, lowerMismatch(d, v)
}

// decodeSlice rebuilds a typed Go slice, width per the declared element.
func decodeSlice(data []byte, d *abi.Descriptor) (any, error) {
	switch elemSize(d) {
	case 1:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case 2:
		out := make([]uint16, len(data)/2)
		for n := range out {
			out[n] = binary.LittleEndian.Uint16(data[2*n:])
		}
		return out, nil
	case 8:
		if d.ElemPrim == ir.F64 {
			out := make([]float64, len(data)/8)
			for n := range out {
				out[n] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*n:]))
			}
			return out, nil
		}
		out := make([]uint64, len(data)/8)
		for n := range out {
			out[n] = binary.LittleEndian.Uint64(data[8*n:])
		}
		return out, nil
	default:
		if d.ElemPrim == ir.F32 {
			out := make([]float32, len(data)/4)
			for n := range out {
				out[n] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*n:]))
			}
			return out, nil
		}
		out := make([]uint32, len(data)/4)
		for n := range out {
			out[n] = binary.LittleEndian.Uint32(data[4*n:])
		}
		return out, nil
	}
}

func lowerMismatch(d *abi.Descriptor, v any) error {
	return errors.TypeMismatch(errors.PhaseRuntime, nil, d.String(), fmt.Sprintf("%T", v))
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	default:
		if n, ok := toInt64(v); ok {
			return float64(n), true
		}
		return 0, false
	}
}
