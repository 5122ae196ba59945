package abi

// OwnershipPlan records who allocates, who frees, and when, for one descriptor
// occurrence at a specific call site.
type OwnershipPlan uint8

const (
	// CallerOwnsBorrowed: the caller retains ownership; the callee may use the
	// value only for the duration of the call. Strings/slices passed JS→Rust.
	CallerOwnsBorrowed OwnershipPlan = iota

	// CalleeTakesOwnership: the value is moved into the callee; the source
	// must be invalidated in the same operation that hands it over.
	CalleeTakesOwnership

	// CalleeReturnsOwnership: the callee allocated and the caller must release
	// after copying out (the deferred-free pattern).
	CalleeReturnsOwnership

	// SharedFinalizerManaged: explicit release is primary, a GC finalizer is
	// registered as a leak backstop. Exported structs and closures.
	SharedFinalizerManaged
)

var ownershipNames = [...]string{
	CallerOwnsBorrowed:     "caller_owns_borrowed",
	CalleeTakesOwnership:   "callee_takes_ownership",
	CalleeReturnsOwnership: "callee_returns_ownership",
	SharedFinalizerManaged: "shared_finalizer_managed",
}

func (p OwnershipPlan) String() string {
	if int(p) < len(ownershipNames) {
		return ownershipNames[p]
	}
	return "unknown"
}

// RequiresFree reports whether generated code must emit an explicit release
// for this plan.
func (p OwnershipPlan) RequiresFree() bool {
	return p == CallerOwnsBorrowed || p == CalleeReturnsOwnership
}
