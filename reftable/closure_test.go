package reftable

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/jsbind/errors"
)

func TestClosureCallThenDrop(t *testing.T) {
	var destroyed []uint32
	c := NewClosureRef(7, 3, func(a, b uint32) {
		destroyed = append(destroyed, a, b)
	})

	calls := 0
	if err := c.Call(func() error { calls++; return nil }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if len(destroyed) != 0 {
		t.Fatalf("destructor ran before Drop: %v", destroyed)
	}

	c.Drop()
	if len(destroyed) != 2 || destroyed[0] != 7 || destroyed[1] != 3 {
		t.Fatalf("destructor args = %v, want [7 3]", destroyed)
	}
	if c.Alive() {
		t.Fatal("Alive() = true after Drop")
	}
}

func TestClosureCallAfterDrop(t *testing.T) {
	c := NewClosureRef(1, 2, nil)
	c.Drop()

	err := c.Call(func() error {
		t.Fatal("body ran after Drop")
		return nil
	})
	if err == nil {
		t.Fatal("Call after Drop succeeded")
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindUseAfterFree {
		t.Fatalf("error = %v, want KindUseAfterFree", err)
	}
}

func TestClosureDropIdempotent(t *testing.T) {
	runs := 0
	c := NewClosureRef(1, 2, func(a, b uint32) { runs++ })

	c.Drop()
	c.Drop()
	c.Drop()
	if runs != 1 {
		t.Fatalf("destructor ran %d times, want 1", runs)
	}
}

func TestClosureReentrantDrop(t *testing.T) {
	runs := 0
	c := NewClosureRef(9, 9, func(a, b uint32) { runs++ })

	// Drop while the invocation is on the stack: destruction is deferred
	// until the call returns.
	err := c.Call(func() error {
		c.Drop()
		if runs != 0 {
			t.Fatal("destructor ran inside the invocation")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if runs != 1 {
		t.Fatalf("destructor ran %d times after call returned, want 1", runs)
	}
	if c.Alive() {
		t.Fatal("Alive() = true after deferred destruction")
	}
}

func TestClosureErrorPropagates(t *testing.T) {
	c := NewClosureRef(0, 0, nil)
	want := stderrors.New("guest trapped")

	if err := c.Call(func() error { return want }); !stderrors.Is(err, want) {
		t.Fatalf("Call error = %v, want %v", err, want)
	}
	if !c.Alive() {
		t.Fatal("Alive() = false after failed call without Drop")
	}
}
