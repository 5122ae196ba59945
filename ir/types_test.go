package ir

import (
	"strings"
	"testing"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		name string
		typ  *Type
		want string
	}{
		{"prim", PrimType(U32), "u32"},
		{"i128", PrimType(I128), "i128"},
		{"string", StringType(), "String"},
		{"vector", VectorType(PrimType(U8)), "Vec<u8>"},
		{"option", OptionType(NamedType("Order")), "Option<Order>"},
		{"result", ResultType(PrimType(F64)), "Result<f64, JsValue>"},
		{"named", NamedType("Counter"), "Counter"},
		{"any", AnyType(), "JsValue"},
		{"union", UnionType(StringType(), PrimType(F64)), "String | f64"},
		{"closure", ClosureType([]*Type{PrimType(U32)}, StringType(), false), "Fn(u32) -> String"},
		{"mut closure", ClosureType(nil, nil, true), "FnMut()"},
		{"nil", nil, "()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTypeStringCyclic(t *testing.T) {
	cyc := &Type{Kind: KindVector}
	cyc.Elem = &Type{Kind: KindOption, Elem: cyc}

	got := cyc.String()
	if got == "" {
		t.Fatal("String() returned nothing for a cyclic type")
	}
	if !strings.Contains(got, "...") {
		t.Errorf("String() = %q, want a truncated rendering", got)
	}
	if len(got) > 512 {
		t.Errorf("String() produced %d bytes for a cyclic type", len(got))
	}
}

func TestPrimSigned(t *testing.T) {
	signed := []Prim{I8, I16, I32, I64, I128}
	for _, p := range signed {
		if !p.Signed() {
			t.Errorf("%s should be signed", p)
		}
	}
	unsigned := []Prim{Bool, U8, U16, U32, U64, U128, F32, F64, Char}
	for _, p := range unsigned {
		if p.Signed() {
			t.Errorf("%s should not be signed", p)
		}
	}
}

func TestEnumHole(t *testing.T) {
	tests := []struct {
		name   string
		enum   *Enum
		want   int64
		wantOK bool
	}{
		{
			name:   "dense from zero",
			enum:   &Enum{Name: "Order", Variants: []Variant{{"Less", 0}, {"Equal", 1}, {"Greater", 2}}},
			want:   3,
			wantOK: true,
		},
		{
			name:   "sparse",
			enum:   &Enum{Name: "Code", Variants: []Variant{{"A", 0}, {"B", 1}, {"C", 42}}},
			wantOK: false,
		},
		{
			name:   "negative",
			enum:   &Enum{Name: "Sign", Variants: []Variant{{"Neg", -1}, {"Pos", 1}}},
			wantOK: false,
		},
		{
			name:   "string enum",
			enum:   &Enum{Name: "Mode", Values: []string{"auto", "manual"}},
			want:   2,
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.enum.Hole()
			if ok != tt.wantOK {
				t.Fatalf("Hole() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Hole() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProgramValidate(t *testing.T) {
	tests := []struct {
		name    string
		prog    *Program
		wantErr bool
	}{
		{
			name: "valid",
			prog: &Program{
				Name:    "demo",
				Structs: []*Struct{{Name: "Counter"}},
				Enums:   []*Enum{{Name: "Order", Variants: []Variant{{"Less", 0}}}},
				Functions: []*Function{
					{Name: "increment", Receiver: "Counter", Kind: Method, SelfBind: ByRef},
				},
			},
		},
		{
			name:    "duplicate type name",
			prog:    &Program{Structs: []*Struct{{Name: "X"}}, Enums: []*Enum{{Name: "X", Variants: []Variant{{"A", 0}}}}},
			wantErr: true,
		},
		{
			name:    "unknown receiver",
			prog:    &Program{Functions: []*Function{{Name: "f", Receiver: "Ghost", Kind: Method}}},
			wantErr: true,
		},
		{
			name:    "duplicate discriminant",
			prog:    &Program{Enums: []*Enum{{Name: "E", Variants: []Variant{{"A", 1}, {"B", 1}}}}},
			wantErr: true,
		},
		{
			name:    "both numeric and string",
			prog:    &Program{Enums: []*Enum{{Name: "E", Variants: []Variant{{"A", 0}}, Values: []string{"a"}}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.prog.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseJSONRoundTrip(t *testing.T) {
	prog := &Program{
		Name: "demo",
		Functions: []*Function{
			{
				Name: "greet",
				Args: []Arg{{Name: "name", Type: StringType(), Binding: ByRef}},
				Ret:  StringType(),
			},
		},
		Enums: []*Enum{{Name: "Order", Variants: []Variant{{"Less", 0}, {"Equal", 1}}}},
	}

	data, err := prog.EncodeJSON()
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}

	back, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if back.Name != "demo" || len(back.Functions) != 1 || len(back.Enums) != 1 {
		t.Errorf("round trip lost data: %+v", back)
	}
	fn := back.Functions[0]
	if fn.Name != "greet" || fn.Args[0].Type.Kind != KindString || fn.Args[0].Binding != ByRef {
		t.Errorf("function round trip mismatch: %+v", fn)
	}
}

func TestParseJSONInvalid(t *testing.T) {
	if _, err := ParseJSON([]byte("{not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := ParseJSON([]byte(`{"functions":[{"name":""}]}`)); err == nil {
		t.Error("expected error for empty function name")
	}
}
