// Package errors provides structured error types for the jsbind generator and host.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: type path, Rust/JS type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindUnsupportedType).
//		Path("Config", "callbacks").
//		RustType("&mut [T]").
//		Detail("mutable slice cannot outlive the call").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.RecursiveType(path, "Node")
//	err := errors.UseAfterFree("Counter")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
