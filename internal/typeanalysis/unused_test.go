package typeanalysis

import (
	"testing"

	"sentra-typeanalysis/internal/hostirtest"
	"sentra-typeanalysis/internal/lattice"
	"sentra-typeanalysis/internal/summary"
)

// A value with no non-passthrough user at all must be promoted all the
// way to Anything, not Integer: nothing observes it, so nothing
// constrains it to any particular scalar kind either (spec §4.3.7).
func TestUnusedValuePromotedToAnything(t *testing.T) {
	b, params := hostirtest.NewFunc("f", hostirtest.Void, hostirtest.I32)
	dead := params[0]
	b.Block("entry")
	b.RetVoid()
	fn := b.Build()

	sum := summary.New(1, lattice.OffsetMap{})
	h := run(t, fn, sum)

	if k := h.Query(dead).Get(nil); !k.IsAnything() {
		t.Errorf("facts[%s] = %v, want Anything", dead.String(), k)
	}
}

// A value used only as a GEP index is a pure integer consumer (spec
// §4.3.7's allow-list) and must end up Integer, not left Unknown; the
// in-bounds GEP transfer function also asserts Integer on each index.
func TestGEPIndexOnlyUsePromotedToInteger(t *testing.T) {
	b, params := hostirtest.NewFunc("f", hostirtest.Void, hostirtest.I32, hostirtest.PointerTo(hostirtest.I32))
	idx, base := params[0], params[1]
	b.Block("entry")
	b.GEP("p", base, hostirtest.I32, hostirtest.PointerTo(hostirtest.I32), idx)
	b.RetVoid()
	fn := b.Build()

	sum := summary.New(2, lattice.OffsetMap{})
	h := run(t, fn, sum)

	if k := h.Query(idx).Get(nil); !k.IsInteger() {
		t.Errorf("facts[%s] = %v, want Integer (GEP-index-only use)", idx.String(), k)
	}
}

// A value passed only to a self-recursive call is a pure integer
// consumer: the argument only ever feeds back into this same
// function's own in-progress facts, so it can never demand anything
// this analysis hasn't already considered.
func TestRecursiveCallArgOnlyUsePromotedToInteger(t *testing.T) {
	b, params := hostirtest.NewFunc("f", hostirtest.Void, hostirtest.I32)
	n := params[0]
	b.Block("entry")
	b.Call("r", "f", hostirtest.Void, n)
	b.RetVoid()
	fn := b.Build()

	sum := summary.New(1, lattice.OffsetMap{})
	h := run(t, fn, sum)

	if k := h.Query(n).Get(nil); !k.IsInteger() {
		t.Errorf("facts[%s] = %v, want Integer (recursive-call-arg-only use)", n.String(), k)
	}
}

// A value used as the pointer operand of a load is not a pure integer
// consumer, so the unused-value heuristics must leave it to whatever
// the load's own transfer function asserts instead of forcing Integer.
func TestPointerUseNotPromotedToInteger(t *testing.T) {
	b, params := hostirtest.NewFunc("f", hostirtest.Double, hostirtest.PointerTo(hostirtest.Double))
	p := params[0]
	b.Block("entry")
	ld := b.Load("v", p, hostirtest.Double)
	b.Ret(ld)
	fn := b.Build()

	sum := summary.New(1, lattice.OffsetMap{})
	h := run(t, fn, sum)

	if k := h.Query(p).Get(nil); !k.IsPointer() {
		t.Errorf("facts[%s] = %v, want Pointer (from the load, not the unused-value heuristic)", p.String(), k)
	}
}

// hasAnyUse must trace through a chain of pure passthrough
// instructions (cast, phi, select) rather than stopping at the first
// level: a value whose only user is a Trunc that itself has no users
// is exactly as unused as one with no users at all, and must promote
// all the way to Anything, not stop short at Integer because a Trunc
// happened to consume it.
func TestHasAnyUseTracesThroughPassthroughChain(t *testing.T) {
	b, params := hostirtest.NewFunc("f", hostirtest.Void, hostirtest.I32)
	x := params[0]
	b.Block("entry")
	b.Trunc("t", x, hostirtest.I1)
	b.RetVoid()
	fn := b.Build()

	sum := summary.New(1, lattice.OffsetMap{})
	h := run(t, fn, sum)

	if k := h.Query(x).Get(nil); !k.IsAnything() {
		t.Errorf("facts[%s] = %v, want Anything (unused through a passthrough Trunc)", x.String(), k)
	}
}
