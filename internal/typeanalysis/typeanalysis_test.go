package typeanalysis

import (
	"context"
	"testing"

	"sentra-typeanalysis/internal/hostir"
	"sentra-typeanalysis/internal/hostirtest"
	"sentra-typeanalysis/internal/lattice"
	"sentra-typeanalysis/internal/summary"
)

// noQueryer is a Queryer that never resolves a callee, for tests with
// no user-defined calls.
type noQueryer struct{}

func (noQueryer) QueryArg(hostir.FunctionID, int, summary.Summary) (lattice.OffsetMap, error) {
	return lattice.OffsetMap{}, nil
}
func (noQueryer) QueryReturn(hostir.FunctionID, summary.Summary) (lattice.OffsetMap, error) {
	return lattice.OffsetMap{}, nil
}

func run(t *testing.T, fn hostir.Function, sum summary.Summary) *Handle {
	t.Helper()
	dl := hostirtest.NewDataLayout()
	a := NewAnalyzer(fn, sum, noQueryer{}, dl, Options{})
	h, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return h
}

// S1: sum of two ints. f(i32 a, i32 b) = a + b, return seeded Integer.
func TestS1SumOfTwoInts(t *testing.T) {
	b, params := hostirtest.NewFunc("f", hostirtest.I32, hostirtest.I32, hostirtest.I32)
	a, bb := params[0], params[1]
	b.Block("entry")
	add := b.Add("add", a, bb)
	b.Ret(add)
	fn := b.Build()

	sum := summary.New(2, lattice.FromSingle(nil, lattice.Integer))
	h := run(t, fn, sum)

	for _, v := range []hostir.Value{a, bb, add} {
		if k := h.Query(v).Get(nil); !k.IsInteger() {
			t.Errorf("facts[%s] = %v, want Integer", v.String(), k)
		}
	}
}

// S2: pointer dereference. f(double* p) = *p.
func TestS2PointerDereference(t *testing.T) {
	b, params := hostirtest.NewFunc("f", hostirtest.Double, hostirtest.PointerTo(hostirtest.Double))
	p := params[0]
	b.Block("entry")
	load := b.Load("r", p, hostirtest.Double)
	b.Ret(load)
	fn := b.Build()

	sum := summary.New(1, lattice.FromSingle(nil, lattice.Float(lattice.FloatDouble)))
	h := run(t, fn, sum)

	pFacts := h.Query(p)
	if k := pFacts.Get(nil); !k.IsPointer() {
		t.Errorf("facts[p][] = %v, want Pointer", k)
	}
	if k := pFacts.Get(lattice.Offset{0}); k.String() != "Float{double}" {
		t.Errorf("facts[p][0] = %v, want Float{double}", k)
	}
	if k := h.ReturnAnalysis().Get(nil); k.String() != "Float{double}" {
		t.Errorf("return = %v, want Float{double}", k)
	}
}

// S3: bitcast double* -> i64*, load. The load result is Integer via
// raw-bit punning; the original pointer still carries Float{double}
// at [0].
func TestS3BitcastLoad(t *testing.T) {
	dPtr := hostirtest.PointerTo(hostirtest.Double)
	iPtr := hostirtest.PointerTo(hostirtest.I64)
	b, params := hostirtest.NewFunc("f", hostirtest.I64, dPtr)
	p := params[0]
	b.Block("entry")
	cast := b.BitCastPointer("q", p, iPtr)
	load := b.Load("r", cast, hostirtest.I64)
	b.Ret(load)
	fn := b.Build()

	sum := summary.New(1, lattice.FromSingle(nil, lattice.Integer))
	h := run(t, fn, sum)

	if k := h.Query(load).Get(nil); !k.IsInteger() {
		t.Errorf("facts[load] = %v, want Integer", k)
	}
	if k := h.Query(p).Get(lattice.Offset{0}); k.String() != "Float{double}" {
		t.Errorf("facts[p][0] = %v, want Float{double} (original pointee kind retained)", k)
	}
}

// S4: memcpy with constant length 16; src carries double at [0] and
// [8]. After analysis dst must carry the same facts.
func TestS4MemcpyPropagatesFacts(t *testing.T) {
	pt := hostirtest.PointerTo(hostirtest.Double)
	b, params := hostirtest.NewFunc("f", hostirtest.Void, pt, pt)
	dst, src := params[0], params[1]
	b.Block("entry")
	n := hostirtest.ConstInt(hostirtest.I64, 16)
	b.Call("cpy", "memcpy", hostirtest.Void, dst, src, n)
	b.RetVoid()
	fn := b.Build()

	sum := summary.New(2, lattice.OffsetMap{})
	// Seed src's facts the way a caller that already knows src's layout
	// would: two doubles at byte offsets 0 and 8.
	sum.Args[1] = lattice.Combine(
		lattice.FromSingle(lattice.Offset{0}, lattice.Float(lattice.FloatDouble)),
		lattice.FromSingle(lattice.Offset{8}, lattice.Float(lattice.FloatDouble)),
	)
	h := run(t, fn, sum)

	dstFacts := h.Query(dst)
	if k := dstFacts.Get(lattice.Offset{0}); k.String() != "Float{double}" {
		t.Errorf("facts[dst][0] = %v, want Float{double}", k)
	}
	if k := dstFacts.Get(lattice.Offset{8}); k.String() != "Float{double}" {
		t.Errorf("facts[dst][8] = %v, want Float{double}", k)
	}
}

// S5: GEP p, 0, 2 into {i32, i32, double}. The result's pointee facts
// are p's facts at [8, ...] shifted down to [0, ...].
func TestS5GEPIntoStruct(t *testing.T) {
	structTy := hostirtest.StructOf(hostirtest.I32, hostirtest.I32, hostirtest.Double)
	sPtr := hostirtest.PointerTo(structTy)
	dPtr := hostirtest.PointerTo(hostirtest.Double)
	b, params := hostirtest.NewFunc("f", hostirtest.Void, sPtr)
	p := params[0]
	b.Block("entry")
	i0 := hostirtest.ConstInt(hostirtest.I64, 0)
	i2 := hostirtest.ConstInt(hostirtest.I32, 2)
	gep := b.GEP("field", p, structTy, dPtr, i0, i2)
	load := b.Load("r", gep, hostirtest.Double)
	b.Ret(load)
	fn := b.Build()

	sum := summary.New(1, lattice.FromSingle(nil, lattice.Float(lattice.FloatDouble)))
	h := run(t, fn, sum)

	// The load seeds facts[gep][0] = Float{double}; the GEP transfer
	// function must have mapped that back to facts[p][8].
	if k := h.Query(p).Get(lattice.Offset{8}); k.String() != "Float{double}" {
		t.Errorf("facts[p][8] = %v, want Float{double} (struct field 2 at byte offset 8)", k)
	}
	if k := h.Query(gep).Get(lattice.Offset{0}); k.String() != "Float{double}" {
		t.Errorf("facts[gep][0] = %v, want Float{double}", k)
	}
}

// Invariant 2: load/store consistency. After a single store of an
// Integer value v through p, p's pointee fact at [0] must match v's.
func TestLoadStoreConsistency(t *testing.T) {
	pt := hostirtest.PointerTo(hostirtest.I64)
	b, params := hostirtest.NewFunc("f", hostirtest.Void, pt, hostirtest.I64)
	p, v := params[0], params[1]
	b.Block("entry")
	b.Store(v, p)
	b.RetVoid()
	fn := b.Build()

	sum := summary.New(2, lattice.OffsetMap{})
	sum.Args[1] = lattice.FromSingle(nil, lattice.Integer)
	h := run(t, fn, sum)

	pKind := h.Query(p).Lookup(0).Get(nil)
	vKind := h.Query(v).Get(nil)
	if pKind.String() != vKind.String() {
		t.Errorf("facts[p].Lookup(0) = %v, facts[v] = %v, want equal per invariant 2", pKind, vKind)
	}
}

// A store asserting Pointer where a prior fact asserted Integer at the
// same offset must raise a Contradiction error (spec §3.2 invariant 2,
// §7), not silently join to Anything.
func TestContradictionIsFatal(t *testing.T) {
	pt := hostirtest.PointerTo(hostirtest.I64)
	b, params := hostirtest.NewFunc("f", hostirtest.Void, pt, hostirtest.I64, pt)
	p, vInt, vPtr := params[0], params[1], params[2]
	b.Block("entry")
	b.Store(vInt, p)
	b.Store(vPtr, p)
	b.RetVoid()
	fn := b.Build()

	sum := summary.New(3, lattice.OffsetMap{})
	sum.Args[1] = lattice.FromSingle(nil, lattice.Integer)
	sum.Args[2] = lattice.FromSingle(nil, lattice.Pointer)

	dl := hostirtest.NewDataLayout()
	az := NewAnalyzer(fn, sum, noQueryer{}, dl, Options{})
	if _, err := az.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil error, want a Contradiction TypeError")
	}
}
