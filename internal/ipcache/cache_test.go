package ipcache

import (
	"context"
	"testing"

	"sentra-typeanalysis/internal/hostir"
	"sentra-typeanalysis/internal/hostirtest"
	"sentra-typeanalysis/internal/lattice"
	"sentra-typeanalysis/internal/summary"
	"sentra-typeanalysis/internal/typeanalysis"
)

// callee(double* p) = *p; identity on p's pointee fact, used below as
// the function every caller() variant calls through.
func buildCallee() hostir.Function {
	b, params := hostirtest.NewFunc("callee", hostirtest.Double, hostirtest.PointerTo(hostirtest.Double))
	p := params[0]
	b.Block("entry")
	load := b.Load("r", p, hostirtest.Double)
	b.Ret(load)
	return b.Build()
}

// caller(double* q) = callee(q); q's facts must end up carrying the
// same pointee fact callee's own analysis derives for its parameter
// (spec §4.4: an inter-procedural call's actual argument is refined by
// querying the cache, not left at whatever the caller alone could
// deduce).
func buildCaller(name string) (hostir.Function, hostir.Value, hostir.Value) {
	b, params := hostirtest.NewFunc(name, hostirtest.Double, hostirtest.PointerTo(hostirtest.Double))
	q := params[0]
	b.Block("entry")
	call := b.Call("c", "callee", hostirtest.Double, q)
	b.Ret(call)
	return b.Build(), q, call
}

func TestQueryArgRefinesActualArgument(t *testing.T) {
	callee := buildCallee()
	caller, q, _ := buildCaller("caller")
	mod := hostirtest.NewModule(callee, caller)
	dl := hostirtest.NewDataLayout()
	c := New(mod, dl, typeanalysis.Options{})

	// The caller's return is known to be a double; that fact reaches
	// callee's load result r, and from there callee's p[0] and q[0].
	a := typeanalysis.NewAnalyzer(caller, summary.New(1, lattice.FromSingle(nil, lattice.Float(lattice.FloatDouble))), c, dl, typeanalysis.Options{})
	h, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if k := h.Query(q).Get(lattice.Offset{0}); k.String() != "Float{double}" {
		t.Errorf("facts[q][0] = %v, want Float{double} (refined via callee's own analysis)", k)
	}
}

// Two call sites whose summaries compare equal must share one
// analysis. callerA queries callee twice (first with q unknown, then
// again once q is refined to Pointer), creating two entries; callerB
// issues the same two summaries and must add no entry of its own.
func TestEquivalentSummariesShareOneEntry(t *testing.T) {
	callee := buildCallee()
	callerA, _, _ := buildCaller("callerA")
	callerB, _, _ := buildCaller("callerB")
	mod := hostirtest.NewModule(callee, callerA, callerB)
	dl := hostirtest.NewDataLayout()
	c := New(mod, dl, typeanalysis.Options{})

	for _, caller := range []hostir.Function{callerA, callerB} {
		a := typeanalysis.NewAnalyzer(caller, summary.New(1, lattice.OffsetMap{}), c, dl, typeanalysis.Options{})
		if _, err := a.Run(context.Background()); err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	}

	if len(c.results) != 2 {
		t.Errorf("len(results) = %d, want 2 (callerB queries callee under the same two summaries as callerA)", len(c.results))
	}
}

// A call to a name the module does not define (an external
// declaration) must not error: QueryArg/QueryReturn answer with an
// empty map, meaning "no further information available".
func TestUnknownCalleeIsNotAnError(t *testing.T) {
	b, params := hostirtest.NewFunc("caller", hostirtest.Double, hostirtest.PointerTo(hostirtest.Double))
	q := params[0]
	b.Block("entry")
	call := b.Call("c", "extern_fn", hostirtest.Double, q)
	b.Ret(call)
	caller := b.Build()

	mod := hostirtest.NewModule(caller) // extern_fn deliberately absent
	dl := hostirtest.NewDataLayout()
	c := New(mod, dl, typeanalysis.Options{})

	a := typeanalysis.NewAnalyzer(caller, summary.New(1, lattice.OffsetMap{}), c, dl, typeanalysis.Options{})
	if _, err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v, want nil for an external declaration", err)
	}
}

// classifyConstArgs: a known constant argument in [1, 4096] is joined
// in as Integer (a literal can never be a meaningful pointer), even
// when the call site itself has not yet established any fact for it.
func TestClassifyConstArgsJoinsIntegerForSmallLiterals(t *testing.T) {
	sum := summary.New(1, lattice.OffsetMap{})
	sum.ConstArgs[0] = summary.ConstArg{Present: true, Value: 16}

	out := classifyConstArgs(sum)
	if k := out.Args[0].Get(nil); !k.IsInteger() {
		t.Errorf("classifyConstArgs Args[0] = %v, want Integer", k)
	}
}

// A constant outside [0, 4096] (spec §4.4's classification window) is
// left alone rather than forced to Integer.
func TestClassifyConstArgsLeavesLargeLiteralsAlone(t *testing.T) {
	sum := summary.New(1, lattice.OffsetMap{})
	sum.ConstArgs[0] = summary.ConstArg{Present: true, Value: 1 << 20}

	out := classifyConstArgs(sum)
	if k := out.Args[0].Get(nil); !k.IsUnknown() {
		t.Errorf("classifyConstArgs Args[0] = %v, want Unknown (literal outside the classification window)", k)
	}
}

func TestCacheKeyDistinguishesSummaries(t *testing.T) {
	s1 := summary.New(1, lattice.OffsetMap{})
	s1.Args[0] = lattice.FromSingle(nil, lattice.Integer)
	s2 := summary.New(1, lattice.OffsetMap{})
	s2.Args[0] = lattice.FromSingle(nil, lattice.Pointer)

	if cacheKey("f", s1) == cacheKey("f", s2) {
		t.Error("cacheKey equal for Integer-arg and Pointer-arg summaries, want distinct")
	}
	if cacheKey("f", s1) != cacheKey("f", s1) {
		t.Error("cacheKey not stable for the same summary")
	}
}
