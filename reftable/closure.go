package reftable

import (
	"sync"

	"github.com/wippyai/jsbind/errors"
)

// ClosureRef is a live reference to a wasm-side closure environment: the
// (data ptr, vtable index) pair plus a reference count guarding the
// environment against teardown while an invocation is still on the stack.
//
// The count starts at one for the owning reference. Every invocation holds an
// extra count for its duration, so a reentrant drop during a call defers the
// destructor until the outermost invocation returns. GC finalization is a
// leak backstop only; explicit Drop is the contract.
type ClosureRef struct {
	dtor    func(a, b uint32)
	mu      sync.Mutex
	A       uint32
	B       uint32
	cnt     uint32
	dropped bool
}

// NewClosureRef creates a reference owning one count.
func NewClosureRef(a, b uint32, dtor func(a, b uint32)) *ClosureRef {
	return &ClosureRef{A: a, B: b, cnt: 1, dtor: dtor}
}

// Call runs fn while holding an invocation count. Calling after the owning
// reference was dropped and the environment destroyed fails fast.
func (c *ClosureRef) Call(fn func() error) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	return fn()
}

func (c *ClosureRef) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cnt == 0 {
		return errors.New(errors.PhaseRuntime, errors.KindUseAfterFree).
			Detail("closure invoked after it was dropped").
			Build()
	}
	c.cnt++
	return nil
}

func (c *ClosureRef) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cnt--
	c.maybeDestroy()
}

// Drop releases the owning reference. Safe to call more than once; only the
// first call has an effect. The destructor runs once the count reaches zero,
// which may be later if an invocation is still in flight.
func (c *ClosureRef) Drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped {
		return
	}
	c.dropped = true
	c.cnt--
	c.maybeDestroy()
}

// maybeDestroy runs the destructor exactly once when the count hits zero.
// Caller holds c.mu.
func (c *ClosureRef) maybeDestroy() {
	if c.cnt != 0 || c.dtor == nil {
		return
	}
	dtor := c.dtor
	c.dtor = nil
	a, b := c.A, c.B
	// Run outside the lock: destructors may re-enter table machinery.
	c.mu.Unlock()
	dtor(a, b)
	c.mu.Lock()
}

// Alive reports whether the environment is still callable.
func (c *ClosureRef) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cnt > 0
}
