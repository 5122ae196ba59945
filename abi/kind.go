package abi

type Kind uint8

const (
	KindI32 Kind = iota
	KindU32
	KindI64
	KindU64
	KindF32
	KindF64
	KindBool
	KindChar
	KindI128
	KindU128
	KindString
	KindSlice
	KindStructPtr
	KindExternref
	KindOption
	KindResult
	KindClosure
	KindEnumNumeric
	KindEnumString
	KindUnion
)

var kindNames = [...]string{
	KindI32:         "i32",
	KindU32:         "u32",
	KindI64:         "i64",
	KindU64:         "u64",
	KindF32:         "f32",
	KindF64:         "f64",
	KindBool:        "bool",
	KindChar:        "char",
	KindI128:        "i128",
	KindU128:        "u128",
	KindString:      "string",
	KindSlice:       "slice",
	KindStructPtr:   "struct_ptr",
	KindExternref:   "externref",
	KindOption:      "option",
	KindResult:      "result",
	KindClosure:     "closure",
	KindEnumNumeric: "enum_numeric",
	KindEnumString:  "enum_string",
	KindUnion:       "union",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsScalar reports whether the kind is a single-slot numeric/boolean value
// marshalled without touching linear memory or the externref table.
func (k Kind) IsScalar() bool {
	switch k {
	case KindI32, KindU32, KindI64, KindU64, KindF32, KindF64, KindBool, KindChar,
		KindEnumNumeric, KindEnumString:
		return true
	}
	return false
}

// UsesHeapTable reports whether values of this kind are referenced through the
// externref table.
func (k Kind) UsesHeapTable() bool {
	switch k {
	case KindExternref, KindUnion:
		return true
	}
	return false
}
