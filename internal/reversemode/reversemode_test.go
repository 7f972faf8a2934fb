package reversemode

import (
	"context"
	"testing"

	"sentra-typeanalysis/internal/hostir"
	"sentra-typeanalysis/internal/hostirtest"
	"sentra-typeanalysis/internal/lattice"
	"sentra-typeanalysis/internal/summary"
	"sentra-typeanalysis/internal/typeanalysis"
)

type noQueryer struct{}

func (noQueryer) QueryArg(hostir.FunctionID, int, summary.Summary) (lattice.OffsetMap, error) {
	return lattice.OffsetMap{}, nil
}
func (noQueryer) QueryReturn(hostir.FunctionID, summary.Summary) (lattice.OffsetMap, error) {
	return lattice.OffsetMap{}, nil
}

// recordingGen is a fake AdjointGenerator that records the call
// sequence CreateReverseDiff drives it through, instead of building
// any real shadow IR, so tests can assert on the *shape* of the
// rewrite (spec §4.5 steps 1-4) without a real IR backend.
type recordingGen struct {
	began       []string
	inverted    map[string][]string
	dispatched  map[string][]string
	returnSeen  []string
	finalizeErr error
}

func newRecordingGen() *recordingGen {
	return &recordingGen{inverted: make(map[string][]string), dispatched: make(map[string][]string)}
}

func (g *recordingGen) BeginShadowBlock(orig hostir.Block) (hostir.Block, error) {
	g.began = append(g.began, orig.ID())
	return orig, nil
}

func (g *recordingGen) InvertReturn(origRet hostir.Value, retActivity Activity) error {
	if retActivity == Active {
		g.returnSeen = append(g.returnSeen, origRet.String())
	}
	return nil
}

func (g *recordingGen) InvertInstruction(inst hostir.Instruction, resultKind lattice.ScalarKind) error {
	blk := inst.Block().ID()
	g.inverted[blk] = append(g.inverted[blk], inst.String())
	return nil
}

func (g *recordingGen) EmitPredecessorDispatch(orig hostir.Block, preds []hostir.Block) error {
	ids := make([]string, len(preds))
	for i, p := range preds {
		ids[i] = p.ID()
	}
	g.dispatched[orig.ID()] = ids
	return nil
}

func (g *recordingGen) Finalize() (hostir.Function, error) {
	if g.finalizeErr != nil {
		return nil, g.finalizeErr
	}
	b, _ := hostirtest.NewFunc("shadow", hostirtest.Void)
	b.Block("entry")
	b.RetVoid()
	return b.Build(), nil
}

// S6: entry -> {A, B} -> join -> ret, a diamond. The reverse pass must
// visit blocks in the *reverse* of the forward dominator-tree order
// (join's adjoint accumulation must be complete before entry, A, or B
// read it), which for this CFG's dominator tree (entry directly
// dominates all three of A, B, and join, since neither branch alone
// dominates join) is join, A, B, entry; must invert join's return; and
// must emit exactly one predecessor dispatch, for join, listing A
// before B (sorted by block ID, independent of visitation order).
func TestS6DiamondReverseOrder(t *testing.T) {
	b, params := hostirtest.NewFunc("f", hostirtest.I32, hostirtest.I32, hostirtest.I32)
	x, y := params[0], params[1]

	b.Block("entry")
	sum := b.Add("sum", x, y)
	b.Block("A")
	a1 := b.Add("a1", sum, sum)
	b.Block("B")
	b1 := b.Mul("b1", sum, sum)
	b.Block("join")
	p := b.Phi("p", hostirtest.I32,
		hostir.Incoming{Pred: entryBlock(b, "A"), Value: a1},
		hostir.Incoming{Pred: entryBlock(b, "B"), Value: b1},
	)
	b.Ret(p)

	b.Link("entry", "A")
	b.Link("entry", "B")
	b.Link("A", "join")
	b.Link("B", "join")
	b.Dominates("entry", "A", "B", "join")

	fn := b.Build()

	sm := summary.New(2, lattice.FromSingle(nil, lattice.Integer))
	dl := hostirtest.NewDataLayout()
	az := typeanalysis.NewAnalyzer(fn, sm, noQueryer{}, dl, typeanalysis.Options{})
	handle, err := az.Run(context.Background())
	if err != nil {
		t.Fatalf("forward analysis error: %v", err)
	}

	gen := newRecordingGen()
	_, err = CreateReverseDiff(fn, handle, Active, []Activity{Active, Active}, gen)
	if err != nil {
		t.Fatalf("CreateReverseDiff() error: %v", err)
	}

	wantOrder := []string{"join", "A", "B", "entry"}
	if !stringsEqual(gen.began, wantOrder) {
		t.Errorf("BeginShadowBlock order = %v, want %v", gen.began, wantOrder)
	}

	if len(gen.returnSeen) != 1 || gen.returnSeen[0] != p.String() {
		t.Errorf("InvertReturn recorded %v, want one call seeding %s's adjoint", gen.returnSeen, p.String())
	}

	if len(gen.dispatched) != 1 {
		t.Fatalf("EmitPredecessorDispatch called for %d blocks, want 1 (only join has >1 predecessor)", len(gen.dispatched))
	}
	if got := gen.dispatched["join"]; !stringsEqual(got, []string{"A", "B"}) {
		t.Errorf("EmitPredecessorDispatch(join) preds = %v, want [A B] sorted by ID", got)
	}

	if got := gen.inverted["join"]; !stringsEqual(got, []string{p.String()}) {
		t.Errorf("inverted[join] = %v, want [%s]", got, p.String())
	}
}

// A Constant return activity means InvertReturn must not seed an
// adjoint at all.
func TestConstantReturnSeedsNoAdjoint(t *testing.T) {
	b, params := hostirtest.NewFunc("f", hostirtest.I32, hostirtest.I32)
	x := params[0]
	b.Block("entry")
	b.Ret(x)
	fn := b.Build()

	sm := summary.New(1, lattice.FromSingle(nil, lattice.Integer))
	dl := hostirtest.NewDataLayout()
	az := typeanalysis.NewAnalyzer(fn, sm, noQueryer{}, dl, typeanalysis.Options{})
	handle, err := az.Run(context.Background())
	if err != nil {
		t.Fatalf("forward analysis error: %v", err)
	}

	gen := newRecordingGen()
	if _, err := CreateReverseDiff(fn, handle, Constant, []Activity{Constant}, gen); err != nil {
		t.Fatalf("CreateReverseDiff() error: %v", err)
	}
	if len(gen.returnSeen) != 0 {
		t.Errorf("returnSeen = %v, want none for a Constant return activity", gen.returnSeen)
	}
}

// A single straight-line function (no merge block) must never trigger
// a predecessor dispatch.
func TestNoMergeNoDispatch(t *testing.T) {
	b, params := hostirtest.NewFunc("f", hostirtest.I32, hostirtest.I32, hostirtest.I32)
	x, y := params[0], params[1]
	b.Block("entry")
	add := b.Add("add", x, y)
	b.Ret(add)
	fn := b.Build()

	sm := summary.New(2, lattice.FromSingle(nil, lattice.Integer))
	dl := hostirtest.NewDataLayout()
	az := typeanalysis.NewAnalyzer(fn, sm, noQueryer{}, dl, typeanalysis.Options{})
	handle, err := az.Run(context.Background())
	if err != nil {
		t.Fatalf("forward analysis error: %v", err)
	}

	gen := newRecordingGen()
	if _, err := CreateReverseDiff(fn, handle, Active, []Activity{Active, Active}, gen); err != nil {
		t.Fatalf("CreateReverseDiff() error: %v", err)
	}
	if len(gen.dispatched) != 0 {
		t.Errorf("dispatched = %v, want none for a single-block function", gen.dispatched)
	}
}

// A nil shadow function from Finalize must surface as an error rather
// than a nil *and* nil-error result.
func TestNilShadowIsAnError(t *testing.T) {
	b, params := hostirtest.NewFunc("f", hostirtest.I32, hostirtest.I32)
	x := params[0]
	b.Block("entry")
	b.Ret(x)
	fn := b.Build()

	sm := summary.New(1, lattice.FromSingle(nil, lattice.Integer))
	dl := hostirtest.NewDataLayout()
	az := typeanalysis.NewAnalyzer(fn, sm, noQueryer{}, dl, typeanalysis.Options{})
	handle, err := az.Run(context.Background())
	if err != nil {
		t.Fatalf("forward analysis error: %v", err)
	}

	gen := &nilFinalizeGen{recordingGen: newRecordingGen()}
	if _, err := CreateReverseDiff(fn, handle, Active, []Activity{Active}, gen); err == nil {
		t.Fatal("CreateReverseDiff() = nil error, want an error for a nil Finalize() result")
	}
}

type nilFinalizeGen struct{ *recordingGen }

func (g *nilFinalizeGen) Finalize() (hostir.Function, error) { return nil, nil }

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// entryBlock looks up an already-created block by name so Phi incoming
// edges can reference it by hostir.Block rather than by string.
func entryBlock(b *hostirtest.Builder, name string) hostir.Block {
	return b.BlockByName(name)
}
