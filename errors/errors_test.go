package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseResolve,
				Kind:     KindTypeMismatch,
				Path:     []string{"Config", "retries", "max"},
				RustType: "String",
				JsType:   "number",
				Detail:   "cannot convert",
			},
			contains: []string{"[resolve]", "type_mismatch", "Config.retries.max", "String", "number", "cannot convert"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseRuntime,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[runtime]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRuntime,
				Kind:   KindAllocation,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[runtime]", "allocation", "memory full", "caused by", "underlying error"},
		},
		{
			name: "rust type only",
			err: &Error{
				Phase:    PhaseResolve,
				Kind:     KindRecursiveType,
				RustType: "Node",
			},
			contains: []string{"[resolve]", "recursive_type", "Rust type Node"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("Error() = %q, missing %q", msg, s)
				}
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("boom")
	err := New(PhaseGenerate, KindInvalidData).
		Path("greet", "arg0").
		RustType("&str").
		JsType("string").
		Value(42).
		Cause(cause).
		Detail("bad byte at %d", 7).
		Build()

	if err.Phase != PhaseGenerate || err.Kind != KindInvalidData {
		t.Errorf("phase/kind = %s/%s", err.Phase, err.Kind)
	}
	if len(err.Path) != 2 || err.Path[1] != "arg0" {
		t.Errorf("path = %v", err.Path)
	}
	if err.Detail != "bad byte at 7" {
		t.Errorf("detail = %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not unwrapped")
	}
}

func TestError_Is(t *testing.T) {
	a := &Error{Phase: PhaseResolve, Kind: KindRecursiveType}
	b := &Error{Phase: PhaseResolve, Kind: KindRecursiveType, Detail: "different detail"}
	c := &Error{Phase: PhaseEmit, Kind: KindRecursiveType}

	if !errors.Is(a, b) {
		t.Error("same phase/kind should match")
	}
	if errors.Is(a, c) {
		t.Error("different phase should not match")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		phase    Phase
		kind     Kind
		contains string
	}{
		{"recursive", RecursiveType([]string{"Node", "next"}, "Node"), PhaseResolve, KindRecursiveType, "finite"},
		{"use after free", UseAfterFree("Counter"), PhaseRuntime, KindUseAfterFree, "Counter"},
		{"invalid enum", InvalidEnum(PhaseRuntime, 99, "Order"), PhaseRuntime, KindInvalidEnum, "99"},
		{"unsupported", UnsupportedType(PhaseResolve, nil, "Rc<T>", "no conversion defined"), PhaseResolve, KindUnsupportedType, "no conversion"},
		{"allocation", AllocationFailed(PhaseRuntime, 1024), PhaseRuntime, KindAllocation, "1024"},
		{"out of bounds", OutOfBounds(PhaseRuntime, 16, 8), PhaseRuntime, KindOutOfBounds, "[16, 24)"},
		{"overflow", Overflow(PhaseRuntime, nil, int64(300), "i8"), PhaseRuntime, KindOverflow, "300"},
		{"not found", NotFound(PhaseLoad, "export", "greet"), PhaseLoad, KindNotFound, `"greet"`},
		{"aborted", Aborted(errors.New("trap")), PhaseRuntime, KindAborted, "panic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se, ok := tt.err.(*Error)
			if !ok {
				t.Fatalf("not a *Error: %T", tt.err)
			}
			if se.Phase != tt.phase || se.Kind != tt.kind {
				t.Errorf("phase/kind = %s/%s, want %s/%s", se.Phase, se.Kind, tt.phase, tt.kind)
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("message %q missing %q", tt.err.Error(), tt.contains)
			}
		})
	}
}

func TestMissingIntrinsicsError(t *testing.T) {
	err := NewMissingIntrinsicsError([]string{"__wbindgen_malloc", "__wbindgen_free"})
	msg := err.Error()
	if !strings.Contains(msg, "__wbindgen_malloc") || !strings.Contains(msg, "__wbindgen_free") {
		t.Errorf("message missing export names: %q", msg)
	}
	if !strings.Contains(msg, "2 reserved export(s)") {
		t.Errorf("message missing count: %q", msg)
	}
	if !errors.Is(err, &MissingIntrinsicsError{}) {
		t.Error("Is should match by type")
	}
}

func TestDemangleRust(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"_ZN4core3fmt5write17h1234567890abcdefE", "core::fmt::write"},
		{"plain_name", "plain_name"},
		{"_ZN", "_ZN"},
		{"__wbindgen_malloc", "__wbindgen_malloc"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := DemangleRust(tt.in); got != tt.want {
				t.Errorf("DemangleRust(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
