package typeanalysis

import "sentra-typeanalysis/internal/hostir"

// indexClampLow and indexClampHigh bound the index values couldBeZero
// (and friends) will ever enumerate, per spec §4.3.4: "clamp the
// enumerated set to (-20, 20)" so a loop trip count baked into the IR
// as a large literal cannot blow up GEP enumeration.
const (
	indexClampLow  = -20
	indexClampHigh = 20
)

// couldBeZero enumerates the small set of concrete integer values v
// could plausibly take, memoized per value (spec §4.3.4). It is not a
// general constant-propagation pass: it only recognizes literal
// constants, pass-through casts, phi unions (excluding back-edges from
// blocks the phi dominates, with 0 folded in as an iteration-variable
// heuristic), and binary arithmetic where one operand is itself
// enumerable and the other is a single known literal. Anything else
// yields an empty set, meaning "unknown, assume it could be any
// index" to callers.
func (a *Analyzer) couldBeZero(v hostir.Value) []int {
	if v == nil {
		return nil
	}
	// A compile-time constant needs neither memoization nor a cycle
	// guard, and every constant shares ValueID -1 (constants are never
	// entered into the per-function value table): fast-path it before
	// touching the ID-keyed memo below, or two distinct constants (e.g.
	// a GEP's literal 0 and a memcpy's literal 16) would collide on the
	// same cache entry.
	if lit, ok := v.ConstantInt(); ok {
		return clampSet([]int{int(lit)})
	}
	if cached, ok := a.couldBeZeroMemo[v.ID()]; ok {
		return cached
	}
	// Seed with nil before recursing so a cycle (phi feeding itself
	// through arithmetic) terminates instead of looping forever.
	a.couldBeZeroMemo[v.ID()] = nil
	out := a.enumerateIndex(v, make(map[hostir.ValueID]bool))
	a.couldBeZeroMemo[v.ID()] = out
	return out
}

func (a *Analyzer) enumerateIndex(v hostir.Value, seen map[hostir.ValueID]bool) []int {
	if v == nil {
		return nil
	}
	// Same reasoning as couldBeZero: check the constant case before the
	// seen-set, since every constant shares ValueID -1 and would
	// otherwise falsely look like a revisit of whichever constant this
	// walk happened to see first.
	if lit, ok := v.ConstantInt(); ok {
		return clampSet([]int{int(lit)})
	}
	if seen[v.ID()] {
		return nil
	}
	seen[v.ID()] = true

	inst, ok := a.instByID[v.ID()]
	if !ok {
		return nil
	}

	switch inst.Op() {
	case hostir.OpTrunc, hostir.OpZExt, hostir.OpSExt, hostir.OpBitCastScalar, hostir.OpAddrSpaceCast:
		ops := inst.Operands()
		if len(ops) == 0 {
			return nil
		}
		return a.enumerateIndex(ops[0], seen)

	case hostir.OpPhi:
		var out []int
		for _, inc := range inst.PHIIncoming() {
			if a.isBackEdge(inst, inc.Pred) {
				continue
			}
			out = append(out, a.enumerateIndex(inc.Value, seen)...)
		}
		out = append(out, 0) // iteration-variable heuristic, spec §4.3.4
		return clampSet(dedupInts(out))

	case hostir.OpAdd, hostir.OpSub, hostir.OpMul:
		ops := inst.Operands()
		if len(ops) < 2 {
			return nil
		}
		lhsLit, lhsOK := ops[0].ConstantInt()
		rhsLit, rhsOK := ops[1].ConstantInt()
		switch {
		case rhsOK && !lhsOK:
			base := a.enumerateIndex(ops[0], seen)
			return clampSet(applyOp(inst.Op(), base, int(rhsLit), false))
		case lhsOK && !rhsOK:
			base := a.enumerateIndex(ops[1], seen)
			return clampSet(applyOp(inst.Op(), base, int(lhsLit), true))
		default:
			return nil
		}
	default:
		return nil
	}
}

// isBackEdge reports whether pred is reached only via an edge the phi's
// owning block dominates, i.e. a loop back-edge whose incoming value
// should not seed enumeration (spec §4.3.4: "excluding dominated
// back-edges").
func (a *Analyzer) isBackEdge(phi hostir.Instruction, pred hostir.Block) bool {
	owner := phi.Block()
	if owner == nil || pred == nil {
		return false
	}
	return a.fn.Dominates(owner, pred)
}

func applyOp(op hostir.Opcode, base []int, literal int, literalOnLeft bool) []int {
	out := make([]int, 0, len(base))
	for _, b := range base {
		var r int
		switch op {
		case hostir.OpAdd:
			r = b + literal
		case hostir.OpSub:
			if literalOnLeft {
				r = literal - b
			} else {
				r = b - literal
			}
		case hostir.OpMul:
			r = b * literal
		}
		out = append(out, r)
	}
	return out
}

func clampSet(vs []int) []int {
	out := vs[:0]
	for _, v := range vs {
		if v > indexClampLow && v < indexClampHigh {
			out = append(out, v)
		}
	}
	return dedupInts(out)
}

func dedupInts(vs []int) []int {
	seen := make(map[int]bool, len(vs))
	out := make([]int, 0, len(vs))
	for _, v := range vs {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// crossProduct enumerates the cartesian product of per-index candidate
// sets up to a cap (spec §4.3.4: GEP enumeration over several indices
// at once is bounded the same way a single index is). An empty
// candidate set for any position makes that position contribute no
// combinations, matching "unknown index disables constant-offset GEP
// folding for this combination" rather than crashing.
func crossProduct(candidates [][]int, cap int) [][]int {
	if len(candidates) == 0 {
		return nil
	}
	combos := [][]int{{}}
	for _, c := range candidates {
		if len(c) == 0 {
			return nil
		}
		var next [][]int
		for _, combo := range combos {
			for _, v := range c {
				nc := make([]int, len(combo)+1)
				copy(nc, combo)
				nc[len(combo)] = v
				next = append(next, nc)
				if len(next) >= cap {
					return next
				}
			}
		}
		combos = next
	}
	return combos
}
