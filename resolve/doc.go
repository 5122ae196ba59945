// Package resolve maps IR type expressions onto ABI descriptors and plans
// whole function signatures.
//
// Resolution is direction- and binding-sensitive: the same type can be legal
// as a borrowed argument and illegal as a return value. The resolver also
// applies the ownership policy, annotating every descriptor occurrence with
// who allocates, who frees, and when.
//
// # Flow
//
//	Resolver.Resolve(type, direction, binding) → *abi.Descriptor
//	Resolver.Plan(function)                    → *FuncPlan
//	Resolver.PlanProgram(program)              → *ProgramPlan
//
// A FuncPlan carries everything the generator needs: per-argument descriptors
// with ownership plans, the flattened raw wasm signature, whether a return
// area is required, and the raw export symbol.
//
// # Failure
//
// Unrepresentable types (closures in return position, mutable strings,
// results outside return position, unresolved named references, recursive
// type graphs) are reported as resolve-phase errors and prevent generation.
package resolve
