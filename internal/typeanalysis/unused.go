package typeanalysis

import (
	"sentra-typeanalysis/internal/hostir"
	"sentra-typeanalysis/internal/lattice"
)

// runUnusedChecks implements the two closing heuristics of spec
// §4.3.7 for an integer-typed value that reached a worklist fixed
// point still Unknown: a value with no non-passthrough user at all is
// promoted all the way to Anything (nothing ever observes it, so
// nothing constrains it either); one with only uses that are pure
// integer consumption is promoted to Integer instead — a loop counter
// that is incremented and compared but never dereferenced or stored
// through a pointer, say, where nothing in the transfer-function table
// ever asserts Integer on it directly, but its static type and use set
// rule out everything else. These are separate outcomes, not a single
// fallback: only the absence of any real use reaches Anything. It
// returns whether any fact changed, so Run can re-drain the worklist
// (a newly Integer value can unblock a dependent add/mul's operand
// propagation) until a second pass finds nothing left to default.
func (a *Analyzer) runUnusedChecks() (bool, error) {
	changed := false
	for _, v := range a.fn.AllValues() {
		if v.Type() == nil || v.Type().Kind() != hostir.TypeInteger {
			continue
		}
		cur := a.get(v.ID())
		if !cur.Get(nil).IsUnknown() {
			continue
		}
		if !a.hasAnyUse(v) {
			before := a.get(v.ID())
			if err := a.update(v, lattice.FromSingle(nil, lattice.Anything), -1); err != nil {
				return changed, err
			}
			if !a.get(v.ID()).Equal(before) {
				changed = true
			}
		} else if !a.hasNonIntegralUse(v) {
			before := a.get(v.ID())
			if err := a.update(v, lattice.FromSingle(nil, lattice.Integer), -1); err != nil {
				return changed, err
			}
			if !a.get(v.ID()).Equal(before) {
				changed = true
			}
		}
	}
	return changed, nil
}

// isPassthroughUse reports whether op merely forwards its operand's
// facts to a new value (a cast, a phi, or a select) rather than
// consuming it, so hasAnyUse/hasNonIntegralUse must trace through the
// user's own users instead of stopping at it.
func isPassthroughUse(op hostir.Opcode) bool {
	switch op {
	case hostir.OpPhi, hostir.OpSelect,
		hostir.OpTrunc, hostir.OpZExt, hostir.OpSExt:
		return true
	default:
		return false
	}
}

// hasAnyUse reports whether v has at least one non-passthrough user
// within the current function, tracing through cast/phi/select chains
// (spec §4.3.7) rather than stopping at the first level: a value whose
// only users are, say, a sequence of truncations ending in a phi that
// itself has no users is exactly as unused as one with no users at all.
func (a *Analyzer) hasAnyUse(v hostir.Value) bool {
	return a.hasAnyUseRec(v, make(map[hostir.ValueID]bool))
}

func (a *Analyzer) hasAnyUseRec(v hostir.Value, visited map[hostir.ValueID]bool) bool {
	if visited[v.ID()] {
		return false
	}
	visited[v.ID()] = true
	for _, u := range v.Users() {
		inst, ok := a.instByID[u.ID()]
		if !ok {
			continue
		}
		if isPassthroughUse(inst.Op()) {
			if a.hasAnyUseRec(u, visited) {
				return true
			}
			continue
		}
		return true
	}
	return false
}

// hasNonIntegralUse reports whether any user of v consumes it in a way
// that is not purely integer arithmetic or control flow — i.e. as a
// pointer operand of a load/store/bitcast, a float operand, a GEP base
// pointer, or an argument to a non-recursive call. A GEP index, an
// alloca's dynamic size, and a recursive call's argument (which only
// feeds back into this same function's own in-progress facts, so it
// can never demand anything this analysis hasn't already considered)
// all count as pure integer consumption, same as plain arithmetic. If
// every use is one of those, or itself a cast/phi/select whose own
// uses recursively satisfy the same rule, nothing ever demands v be
// anything but Integer.
func (a *Analyzer) hasNonIntegralUse(v hostir.Value) bool {
	return a.hasNonIntegralUseRec(v, make(map[hostir.ValueID]bool))
}

func (a *Analyzer) hasNonIntegralUseRec(v hostir.Value, visited map[hostir.ValueID]bool) bool {
	if visited[v.ID()] {
		return false
	}
	visited[v.ID()] = true
	for _, u := range v.Users() {
		inst, ok := a.instByID[u.ID()]
		if !ok {
			continue
		}
		switch inst.Op() {
		case hostir.OpAdd, hostir.OpSub, hostir.OpMul,
			hostir.OpUDiv, hostir.OpSDiv, hostir.OpURem, hostir.OpSRem,
			hostir.OpAnd, hostir.OpOr, hostir.OpXor,
			hostir.OpShl, hostir.OpAShr, hostir.OpLShr:
			continue
		case hostir.OpPhi, hostir.OpSelect,
			hostir.OpTrunc, hostir.OpZExt, hostir.OpSExt:
			if a.hasNonIntegralUseRec(u, visited) {
				return true
			}
			continue
		case hostir.OpGetElementPtr:
			if isOperandOf(inst.GEPIndices(), v) {
				continue
			}
			return true
		case hostir.OpAlloca:
			if isOperandOf(inst.Operands(), v) {
				continue
			}
			return true
		case hostir.OpCallUser:
			if inst.CalleeName() == a.fn.Name() && isOperandOf(inst.CallArgs(), v) {
				continue
			}
			return true
		default:
			return true
		}
	}
	return false
}

// isOperandOf reports whether v appears among operands by value
// identity.
func isOperandOf(operands []hostir.Value, v hostir.Value) bool {
	for _, op := range operands {
		if op.ID() == v.ID() {
			return true
		}
	}
	return false
}
