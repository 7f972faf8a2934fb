package typeanalysis

import (
	"sentra-typeanalysis/internal/hostir"
	"sentra-typeanalysis/internal/lattice"
	"sentra-typeanalysis/internal/summary"
)

// visit dispatches a single instruction to its transfer function,
// exhaustive over the opcode table of spec §4.3.3.
func (a *Analyzer) visit(inst hostir.Instruction) error {
	self := inst // an Instruction is also a Value when it produces a result
	switch inst.Op() {
	case hostir.OpAlloca:
		return a.visitAlloca(inst)
	case hostir.OpLoad:
		return a.visitLoad(inst)
	case hostir.OpStore:
		return a.visitStore(inst)
	case hostir.OpGetElementPtr:
		return a.visitGEP(inst)
	case hostir.OpPhi:
		return a.visitPhi(inst)
	case hostir.OpTrunc, hostir.OpZExt, hostir.OpSExt, hostir.OpAddrSpaceCast, hostir.OpBitCastScalar:
		return a.visitSharedFacts(self, inst.Operands()[0])
	case hostir.OpFPToUI, hostir.OpFPToSI:
		return a.update(self, lattice.FromSingle(nil, lattice.Integer), inst.ID())
	case hostir.OpUIToFP, hostir.OpSIToFP:
		return a.update(inst.Operands()[0], lattice.FromSingle(nil, lattice.Integer), inst.ID())
	case hostir.OpPtrToInt:
		return a.update(self, lattice.FromSingle(nil, lattice.Pointer), inst.ID())
	case hostir.OpIntToPtr:
		return a.update(inst.Operands()[0], lattice.FromSingle(nil, lattice.Pointer), inst.ID())
	case hostir.OpBitCastPointer:
		return a.visitBitCastPointer(inst)
	case hostir.OpSelect:
		return a.visitSelect(inst)
	case hostir.OpExtractElement:
		return a.visitExtractElement(inst)
	case hostir.OpInsertElement:
		return a.visitInsertElement(inst)
	case hostir.OpShuffleVector:
		return a.visitShuffleVector(inst)
	case hostir.OpFAdd, hostir.OpFSub, hostir.OpFMul, hostir.OpFDiv, hostir.OpFRem:
		return a.visitFPArith(inst)
	case hostir.OpAdd, hostir.OpMul:
		return a.visitAddMul(inst)
	case hostir.OpSub:
		return nil // spec §4.3.3, §9: sub is intentionally not tightened
	case hostir.OpUDiv, hostir.OpSDiv, hostir.OpURem, hostir.OpSRem,
		hostir.OpShl, hostir.OpAShr, hostir.OpLShr:
		return a.visitJointMergeOnly(inst)
	case hostir.OpAnd:
		return a.visitAnd(inst)
	case hostir.OpOr, hostir.OpXor:
		return a.visitJointMergeOnly(inst)
	case hostir.OpCallMemcpy, hostir.OpCallMemmove:
		return a.visitMemTransfer(inst)
	case hostir.OpCallMalloc:
		return a.visitMalloc(inst)
	case hostir.OpCallCpuid:
		return a.visitCpuid(inst)
	case hostir.OpExtractValue, hostir.OpInsertValue:
		return nil // opaque: no aggregate offset tracking (spec §4.3.3)
	default:
		return nil
	}
}

func (a *Analyzer) visitAlloca(inst hostir.Instruction) error {
	ops := inst.Operands()
	if len(ops) == 0 {
		return nil
	}
	return a.update(ops[0], lattice.FromSingle(nil, lattice.Integer), inst.ID())
}

func (a *Analyzer) visitLoad(inst hostir.Instruction) error {
	p := inst.Operands()[0]
	r := hostir.Value(inst)
	deltaToP := lattice.Combine(a.get(r.ID()).PurgeAnything().Only(0), lattice.FromSingle(nil, lattice.Pointer))
	if err := a.update(p, deltaToP, inst.ID()); err != nil {
		return err
	}
	deltaToR := a.get(p.ID()).Lookup(0)
	return a.update(r, deltaToR, inst.ID())
}

func (a *Analyzer) visitStore(inst hostir.Instruction) error {
	ops := inst.Operands() // [Src, Dst]
	v, p := ops[0], ops[1]
	deltaToP := lattice.Combine(a.get(v.ID()).PurgeAnything().Only(0), lattice.FromSingle(nil, lattice.Pointer))
	if err := a.update(p, deltaToP, inst.ID()); err != nil {
		return err
	}
	deltaToV := a.get(p.ID()).Lookup(0)
	return a.update(v, deltaToV, inst.ID())
}

func (a *Analyzer) visitGEP(inst hostir.Instruction) error {
	ops := inst.Operands()
	base := ops[0]
	indexVals := inst.GEPIndices()
	elemType := inst.GEPElemType()
	result := hostir.Value(inst)

	if inst.InBounds() {
		for _, idx := range indexVals {
			if err := a.update(idx, lattice.FromSingle(nil, lattice.Integer), inst.ID()); err != nil {
				return err
			}
		}
	}

	candidates := make([][]int, len(indexVals))
	for i, idx := range indexVals {
		candidates[i] = a.couldBeZero(idx)
	}
	for _, combo := range crossProduct(candidates, 64) {
		off, ok := hostir.GEPByteOffset(a.dl, elemType, combo)
		if !ok {
			continue
		}
		maxSize := -1
		if len(combo) > 0 && combo[0] == 0 {
			maxSize = hostir.ByteSizeOf(a.dl, elemType)
		}
		deltaResult := a.get(base.ID()).UnmergeIndices(off, maxSize)
		if err := a.update(result, deltaResult, inst.ID()); err != nil {
			return err
		}
		deltaBase := a.get(result.ID()).MergeIndices(off)
		if err := a.update(base, deltaBase, inst.ID()); err != nil {
			return err
		}
	}
	return a.update(result, a.get(base.ID()).KeepMinusOne(), inst.ID())
}

func (a *Analyzer) visitPhi(inst hostir.Instruction) error {
	incs := inst.PHIIncoming()
	phiFacts := a.get(inst.ID())
	for _, inc := range incs {
		if err := a.update(inc.Value, phiFacts, inst.ID()); err != nil {
			return err
		}
	}
	flat := a.flattenPhiIncoming(inst, make(map[hostir.ValueID]bool))
	if len(flat) == 0 {
		return nil
	}
	acc := a.get(flat[0].ID())
	for _, v := range flat[1:] {
		acc = acc.Meet(a.get(v.ID()))
	}
	return a.update(inst, acc, inst.ID())
}

// flattenPhiIncoming collects every transitively-reachable non-phi
// incoming value of a phi, breaking cycles with a seen set (spec §9:
// "flatten then meet" rather than a naive per-iteration meet).
func (a *Analyzer) flattenPhiIncoming(inst hostir.Instruction, seen map[hostir.ValueID]bool) []hostir.Value {
	if seen[inst.ID()] {
		return nil
	}
	seen[inst.ID()] = true
	var out []hostir.Value
	for _, inc := range inst.PHIIncoming() {
		if inner, ok := a.instByID[inc.Value.ID()]; ok && inner.Op() == hostir.OpPhi {
			if inner.ID() == inst.ID() {
				continue
			}
			out = append(out, a.flattenPhiIncoming(inner, seen)...)
			continue
		}
		out = append(out, inc.Value)
	}
	return out
}

func (a *Analyzer) visitSharedFacts(result hostir.Value, operand hostir.Value) error {
	if err := a.update(result, a.get(operand.ID()), result.ID()); err != nil {
		return err
	}
	return a.update(operand, a.get(result.ID()), result.ID())
}

func (a *Analyzer) visitBitCastPointer(inst hostir.Instruction) error {
	from := inst.Operands()[0]
	result := hostir.Value(inst)
	fromSize := hostir.ByteSizeOf(a.dl, elemTypeOf(from.Type()))
	toSize := hostir.ByteSizeOf(a.dl, elemTypeOf(result.Type()))
	if err := a.update(result, a.get(from.ID()).KeepForCast(fromSize, toSize), inst.ID()); err != nil {
		return err
	}
	return a.update(from, a.get(result.ID()).KeepForCast(toSize, fromSize), inst.ID())
}

func elemTypeOf(t hostir.Type) hostir.Type {
	if t == nil {
		return nil
	}
	if e := t.ElemType(); e != nil {
		return e
	}
	return t
}

func (a *Analyzer) visitSelect(inst hostir.Instruction) error {
	ops := inst.Operands() // [Cond, True, False]
	t, f := ops[1], ops[2]
	result := hostir.Value(inst)
	rf := a.get(result.ID())
	if err := a.update(t, rf, inst.ID()); err != nil {
		return err
	}
	if err := a.update(f, rf, inst.ID()); err != nil {
		return err
	}
	return a.update(result, a.get(t.ID()).Meet(a.get(f.ID())), inst.ID())
}

func (a *Analyzer) visitExtractElement(inst hostir.Instruction) error {
	ops := inst.Operands() // vec, index, ... adapter-dependent
	if len(ops) < 2 {
		return nil
	}
	vec, idx := ops[0], ops[1]
	result := hostir.Value(inst)
	if err := a.update(idx, lattice.FromSingle(nil, lattice.Integer), inst.ID()); err != nil {
		return err
	}
	if err := a.update(result, a.get(vec.ID()), inst.ID()); err != nil {
		return err
	}
	return a.update(vec, a.get(result.ID()), inst.ID())
}

func (a *Analyzer) visitInsertElement(inst hostir.Instruction) error {
	ops := inst.Operands() // vec, scalar, index
	if len(ops) < 3 {
		return nil
	}
	vec, scalar, idx := ops[0], ops[1], ops[2]
	result := hostir.Value(inst)
	if err := a.update(idx, lattice.FromSingle(nil, lattice.Integer), inst.ID()); err != nil {
		return err
	}
	joined := lattice.Combine(a.get(vec.ID()).PurgeAnything(), a.get(scalar.ID()))
	joined = lattice.Combine(joined, a.get(result.ID()))
	for _, v := range []hostir.Value{result, vec, scalar} {
		if err := a.update(v, joined, inst.ID()); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) visitShuffleVector(inst hostir.Instruction) error {
	ops := inst.Operands()
	if len(ops) < 2 {
		return nil
	}
	x, y := ops[0], ops[1]
	result := hostir.Value(inst)
	if err := a.update(x, a.get(result.ID()), inst.ID()); err != nil {
		return err
	}
	if err := a.update(y, a.get(result.ID()), inst.ID()); err != nil {
		return err
	}
	return a.update(result, a.get(x.ID()).Meet(a.get(y.ID())), inst.ID())
}

func (a *Analyzer) visitFPArith(inst hostir.Instruction) error {
	result := hostir.Value(inst)
	prec := result.Type().FloatPrecision()
	k := lattice.Float(prec)
	delta := lattice.FromSingle(nil, k)
	for _, v := range append([]hostir.Value{result}, inst.Operands()...) {
		if err := a.update(v, delta, inst.ID()); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) visitMemTransfer(inst hostir.Instruction) error {
	args := inst.CallArgs()
	if len(args) < 3 {
		return nil
	}
	d, s, n := args[0], args[1], args[2]
	shared := lattice.Combine(a.get(d.ID()), a.get(s.ID())).AtMost(intOrMax(a.couldBeZero(n)))
	if err := a.update(d, shared, inst.ID()); err != nil {
		return err
	}
	if err := a.update(s, shared, inst.ID()); err != nil {
		return err
	}
	if err := a.update(n, lattice.FromSingle(nil, lattice.Integer), inst.ID()); err != nil {
		return err
	}
	for _, extra := range args[3:] {
		if err := a.update(extra, lattice.FromSingle(nil, lattice.Integer), inst.ID()); err != nil {
			return err
		}
	}
	return nil
}

func intOrMax(candidates []int) int {
	best := -1
	for _, c := range candidates {
		if c > best {
			best = c
		}
	}
	if best < 0 {
		return 1 << 30
	}
	return best
}

func (a *Analyzer) visitMalloc(inst hostir.Instruction) error {
	args := inst.CallArgs()
	if len(args) == 0 {
		return nil
	}
	return a.update(args[0], lattice.FromSingle(nil, lattice.Integer), inst.ID())
}

func (a *Analyzer) visitCpuid(inst hostir.Instruction) error {
	result := hostir.Value(inst)
	delta := lattice.FromSingle(nil, lattice.Integer)
	for _, v := range append([]hostir.Value{result}, inst.Operands()...) {
		if err := a.update(v, delta, inst.ID()); err != nil {
			return err
		}
	}
	return nil
}

// visitAddMul implements spec §4.3.3's add/mul rule: if the result is
// known Integer, propagate Integer to both operands; otherwise apply
// the pointer-aware joint merge of §4.3.5.
func (a *Analyzer) visitAddMul(inst hostir.Instruction) error {
	result := hostir.Value(inst)
	if !a.get(result.ID()).JustInt().Empty() {
		for _, op := range inst.Operands() {
			if err := a.update(op, lattice.FromSingle(nil, lattice.Integer), inst.ID()); err != nil {
				return err
			}
		}
	}
	return a.visitJointMergeOnly(inst)
}

// visitJointMergeOnly applies the pointer-aware union of §4.3.5 to
// every bit-level binary operator that does not otherwise propagate a
// concrete scalar: if one side is Pointer and the other Integer, the
// result is Pointer; otherwise the result is the plain join. The
// small-literal (0..16) `and` mask rule of §4.3.3 is applied by
// visitAnd, not here.
func (a *Analyzer) visitJointMergeOnly(inst hostir.Instruction) error {
	ops := inst.Operands()
	if len(ops) < 2 {
		return nil
	}
	x, y := ops[0], ops[1]
	result := hostir.Value(inst)
	merged := jointMerge(a.get(x.ID()), a.get(y.ID()))
	merged = jointMerge(merged, a.get(result.ID()))
	for _, v := range []hostir.Value{result, x, y} {
		if err := a.update(v, merged, inst.ID()); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) visitAnd(inst hostir.Instruction) error {
	ops := inst.Operands()
	if len(ops) < 2 {
		return nil
	}
	x, y := ops[0], ops[1]
	if lit, ok := smallMaskLiteral(x); ok && lit >= 0 && lit <= 16 {
		if err := a.update(y, lattice.FromSingle(nil, lattice.Integer), inst.ID()); err != nil {
			return err
		}
	} else if lit, ok := smallMaskLiteral(y); ok && lit >= 0 && lit <= 16 {
		if err := a.update(x, lattice.FromSingle(nil, lattice.Integer), inst.ID()); err != nil {
			return err
		}
	}
	return a.visitJointMergeOnly(inst)
}

func smallMaskLiteral(v hostir.Value) (int64, bool) {
	return v.ConstantInt()
}

// visitUserCall delegates a call instruction to the inter-procedural
// cache (spec §4.4): builds a child summary from the current facts of
// the call's actual arguments and the call result's current fact as
// the declared return, then queries the cache once per actual
// argument plus once for the result, each time asking it to analyze
// the callee under that summary and propagating the refined fact back
// to the corresponding actual or to the call result.
func (a *Analyzer) visitUserCall(inst hostir.Instruction) error {
	args := inst.CallArgs()
	result := hostir.Value(inst)
	callee := hostir.FunctionID(inst.CalleeName())

	childSum := summary.New(len(args), a.get(result.ID()))
	for i, arg := range args {
		childSum.Args[i] = a.get(arg.ID())
		if lit, ok := arg.ConstantInt(); ok {
			childSum.ConstArgs[i] = summary.ConstArg{Present: true, Value: lit}
		}
	}

	for i, arg := range args {
		refined, err := a.cache.QueryArg(callee, i, childSum)
		if err != nil {
			return err
		}
		if err := a.update(arg, refined, inst.ID()); err != nil {
			return err
		}
	}
	refinedRet, err := a.cache.QueryReturn(callee, childSum)
	if err != nil {
		return err
	}
	return a.update(result, refinedRet, inst.ID())
}
