package main

import (
	"fmt"
	"strings"

	"sentra-typeanalysis/internal/hostir"
	"sentra-typeanalysis/internal/lattice"
	"sentra-typeanalysis/internal/reversemode"
)

// textGenerator is the CLI's AdjointGenerator: rather than constructing
// real LLVM IR (this repo's host IR library is consumed read-only, per
// internal/hostir's contract), it renders the reverse pass as
// annotated pseudo-IR text, one line per adjoint operation, in exactly
// the block/instruction order reversemode.CreateReverseDiff visits
// them. This is enough to inspect and golden-test the rewrite's shape
// (block order, predecessor dispatch, which operands get adjoints)
// without this repo taking on a second, redundant IR-construction API
// surface alongside internal/hostir's own.
type textGenerator struct {
	fn      hostir.Function
	buf     strings.Builder
	index   map[string]int // per-block predecessor-index cache, spec §4.5 step 4
	nextIdx int
}

func newTextGenerator(fn hostir.Function) *textGenerator {
	return &textGenerator{fn: fn, index: make(map[string]int)}
}

func (g *textGenerator) String() string { return g.buf.String() }

func (g *textGenerator) BeginShadowBlock(orig hostir.Block) (hostir.Block, error) {
	fmt.Fprintf(&g.buf, "adjoint.%s:\n", orig.ID())
	return orig, nil
}

func (g *textGenerator) InvertReturn(origRet hostir.Value, retActivity reversemode.Activity) error {
	if origRet == nil {
		return nil
	}
	seed := "constant (no adjoint seeded)"
	if retActivity == reversemode.Active {
		seed = "seed d" + origRet.String() + " = %differeturn"
	}
	fmt.Fprintf(&g.buf, "  ; return %s -> %s\n", origRet.String(), seed)
	return nil
}

func (g *textGenerator) InvertInstruction(inst hostir.Instruction, resultKind lattice.ScalarKind) error {
	if resultKind.IsPointer() || resultKind.IsUnknown() {
		fmt.Fprintf(&g.buf, "  ; skip %s (kind %s, no adjoint)\n", inst.String(), resultKind.String())
		return nil
	}
	fmt.Fprintf(&g.buf, "  ; adjoint of %s (kind %s)\n", inst.String(), resultKind.String())
	for _, op := range inst.Operands() {
		if op.IsConstant() || op.IsFunction() {
			continue
		}
		fmt.Fprintf(&g.buf, "  d%s += d%s * partial\n", op.String(), inst.String())
	}
	return nil
}

func (g *textGenerator) EmitPredecessorDispatch(orig hostir.Block, preds []hostir.Block) error {
	if _, ok := g.index[orig.ID()]; !ok {
		g.index[orig.ID()] = g.nextIdx
		g.nextIdx++
	}
	fmt.Fprintf(&g.buf, "  switch %%pred.%s {\n", orig.ID())
	for i, p := range preds {
		fmt.Fprintf(&g.buf, "    case %d: br adjoint.%s\n", i, p.ID())
	}
	fmt.Fprintf(&g.buf, "  }\n")
	return nil
}

func (g *textGenerator) Finalize() (hostir.Function, error) {
	return g.fn, nil
}
