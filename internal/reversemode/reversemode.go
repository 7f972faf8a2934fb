// Package reversemode implements component E: the reverse-mode block
// rewriter that turns a forward function, together with its type
// analysis Handle, into the shadow function that accumulates adjoints
// (spec §4.5). The actual IR construction (allocating shadow values,
// wiring branches, emitting the per-instruction adjoint update) is
// delegated to an AdjointGenerator supplied by the caller — this
// package owns only the *shape* of the rewrite: block visitation
// order, predecessor dispatch, and the decision of which operands get
// an adjoint at all, all driven by the Handle's type facts.
package reversemode

import (
	"golang.org/x/exp/slices"

	"sentra-typeanalysis/internal/diag"
	"sentra-typeanalysis/internal/domtree"
	"sentra-typeanalysis/internal/hostir"
	"sentra-typeanalysis/internal/lattice"
	"sentra-typeanalysis/internal/typeanalysis"
)

// Activity marks whether a value participates in differentiation
// (spec §4.5: "active" operands accumulate adjoints, "constant"
// operands are differentiated through as zero).
type Activity int

const (
	Constant Activity = iota
	Active
)

// AdjointGenerator is the external collaborator this package defers
// all actual instruction synthesis to (spec §6's "the core never
// constructs IR directly; an injected generator does"). Every method
// is called in a specific, documented order by CreateReverseDiff so a
// generator can maintain whatever running state (a builder cursor, a
// map from original block to shadow block) it needs without this
// package knowing about it.
type AdjointGenerator interface {
	// BeginShadowBlock is called once per original block, in the
	// reverse dominator-tree breadth-first order of spec §4.5 step 1,
	// before any instruction in that block is inverted. It returns an
	// opaque shadow-block handle the generator can use for subsequent
	// InvertInstruction/EmitPredecessorDispatch calls.
	BeginShadowBlock(orig hostir.Block) (shadow hostir.Block, err error)

	// InvertReturn is called once for the function's original return
	// instruction (or once per original return if there were several),
	// seeding the adjoint of the returned value to Active's incoming
	// differential, or doing nothing if retActivity is Constant (spec
	// §4.5 step 2: "return becomes a branch to the body's adjoint
	// entry, seeding the return value's adjoint").
	InvertReturn(origRet hostir.Value, retActivity Activity) error

	// InvertInstruction inverts one instruction in reverse source
	// order within its block (spec §4.5 step 3), given the scalar kind
	// the forward analysis assigned to its result (Handle.Query),
	// which the generator uses to decide how to zero/accumulate
	// (e.g. a Float adjoint is a real accumulation; a Pointer result
	// never gets one).
	InvertInstruction(inst hostir.Instruction, resultKind lattice.ScalarKind) error

	// EmitPredecessorDispatch is called once per block that has more
	// than one predecessor, after all its instructions are inverted,
	// to emit the switch/index dispatch of spec §4.5 step 4 that
	// routes control to whichever predecessor's shadow block the
	// forward execution actually came from.
	EmitPredecessorDispatch(orig hostir.Block, preds []hostir.Block) error

	// Finalize is called once, after every block has been visited, and
	// returns the completed shadow function.
	Finalize() (hostir.Function, error)
}

// CreateReverseDiff builds the shadow (adjoint-accumulating) function
// for fn under the forward type-analysis handle, given the activity of
// the return value and of each formal argument, emitting all actual IR
// through gen (spec §4.5).
//
// The algorithm:
//  1. Compute the dominator-tree breadth-first block order (spec §4.5
//     step 1) and visit blocks in the reverse of that order, so a
//     block's adjoint accumulation is complete before any of its
//     dominance predecessors can read it.
//  2. For the function's return instruction(s), invert the return into
//     a branch plus an adjoint seed (step 2).
//  3. Within each block, in reverse source order, invert every
//     instruction (step 3).
//  4. For any block with more than one predecessor, emit the cached
//     predecessor-index dispatch (step 4).
//  5. Finalize and return the shadow function.
func CreateReverseDiff(fn hostir.Function, handle *typeanalysis.Handle, retActivity Activity, argActivities []Activity, gen AdjointGenerator) (hostir.Function, error) {
	order := breadthFirstDominatorOrder(fn)

	for _, b := range order {
		if _, err := gen.BeginShadowBlock(b); err != nil {
			return nil, err
		}

		if retVal, isRet := b.IsReturn(); isRet {
			if err := gen.InvertReturn(retVal, retActivity); err != nil {
				return nil, err
			}
		}

		insts := b.Insts()
		for i := len(insts) - 1; i >= 0; i-- {
			inst := insts[i]
			kind := handle.Query(hostir.Value(inst)).Get(nil)
			if err := gen.InvertInstruction(inst, kind); err != nil {
				return nil, err
			}
		}

		if preds := b.Preds(); len(preds) > 1 {
			// Sort predecessors by block ID before handing them to the
			// generator so the emitted dispatch switch's case order (and
			// therefore the generated IR's textual form) is stable
			// across runs regardless of the host IR library's own
			// iteration order.
			sorted := append([]hostir.Block(nil), preds...)
			slices.SortFunc(sorted, func(a, b hostir.Block) int {
				switch {
				case a.ID() < b.ID():
					return -1
				case a.ID() > b.ID():
					return 1
				default:
					return 0
				}
			})
			if err := gen.EmitPredecessorDispatch(b, sorted); err != nil {
				return nil, err
			}
		}
	}

	shadow, err := gen.Finalize()
	if err != nil {
		return nil, err
	}
	if shadow == nil {
		return nil, diag.NewReverseModeMissingNull(fn.Name(), "<shadow function>")
	}
	return shadow, nil
}

// breadthFirstDominatorOrder computes fn's dominator tree via the
// shared internal/domtree implementation, then reverses its root-first
// breadth-first order (domtree.Tree.BreadthFirst's own doc comment:
// "the order spec §4.5 step 1 asks the rewriter to reverse") to get
// the order the *reverse* pass visits blocks in: every block before
// any of its dominance predecessors, so an adjoint read in a block
// always sees a fully-accumulated successor contribution first. This
// mirrors EnzymeLogicReverse.cpp's own rbegin()/rend() walk of the
// forward dominator order.
func breadthFirstDominatorOrder(fn hostir.Function) []hostir.Block {
	entry := fn.Entry()
	if entry == nil {
		return nil
	}
	blocks := fn.Blocks()
	byID := make(map[string]hostir.Block, len(blocks))
	for _, b := range blocks {
		byID[b.ID()] = b
	}
	tree := domtree.Build(hostir.BuildBlockGraph(blocks, entry))

	var order []hostir.Block
	seen := make(map[string]bool)
	for _, id := range tree.BreadthFirst() {
		if b, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			order = append(order, b)
		}
	}
	// Any block domtree.Build omits as unreachable from the entry is
	// appended in its original declaration order, so the rewrite never
	// silently drops a block.
	for _, b := range blocks {
		if !seen[b.ID()] {
			seen[b.ID()] = true
			order = append(order, b)
		}
	}
	slices.Reverse(order)
	return order
}
