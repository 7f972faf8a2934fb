package typeanalysis

import (
	"strings"

	"sentra-typeanalysis/internal/diag"
	"sentra-typeanalysis/internal/hostir"
	"sentra-typeanalysis/internal/lattice"
)

// tbaaKind classifies a clang-emitted TBAA tag name to the scalar kind
// it asserts (spec §4.3.6). Tags are matched by substring since clang
// names them after the source type ("long long", "any pointer",
// "vtable pointer", ...) rather than a fixed enum.
func tbaaKind(tag string) (lattice.ScalarKind, bool) {
	lower := strings.ToLower(tag)
	switch {
	case lower == "":
		return lattice.Unknown, false
	case strings.Contains(lower, "vtable pointer"), strings.Contains(lower, "any pointer"),
		strings.Contains(lower, "p1 "), strings.HasSuffix(lower, "*"):
		return lattice.Pointer, true
	case strings.Contains(lower, "double"):
		return lattice.Float(lattice.FloatDouble), true
	case strings.Contains(lower, "float"):
		return lattice.Float(lattice.FloatSingle), true
	case strings.Contains(lower, "long long"), strings.Contains(lower, "long"),
		strings.Contains(lower, "int"), strings.Contains(lower, "short"),
		strings.Contains(lower, "char"), strings.Contains(lower, "bool"),
		strings.Contains(lower, "unsigned"):
		return lattice.Integer, true
	default:
		return lattice.Unknown, false
	}
}

// considerTBAA seeds facts from type-based-alias-analysis metadata
// before the worklist runs (spec §4.3.6): a load or store's TBAA tag
// asserts the scalar kind at offset 0 of the pointer operand (and, for
// a load, of the loaded result); a memcpy/memmove's tag asserts it for
// both the source and destination pointers; a call returning a pointer
// type seeds [-1] on the result so a subsequently-indexed allocation
// is recognized as an array of that kind. An instruction carrying a
// tag this function does not recognize is a hard error (spec §7) since
// silently ignoring it would make the analysis depend on alias-
// analysis metadata its caller cannot observe by inspecting the types
// alone.
func (a *Analyzer) considerTBAA() error {
	for _, b := range a.fn.Blocks() {
		for _, inst := range b.Insts() {
			tag := inst.TBAATag()
			if tag == "" {
				continue
			}
			kind, ok := tbaaKind(tag)
			if !ok {
				return diag.NewUnrecognizedTBAA(a.fn.Name(), inst.String(), tag)
			}
			if err := a.seedFromTBAA(inst, kind); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Analyzer) seedFromTBAA(inst hostir.Instruction, kind lattice.ScalarKind) error {
	delta := lattice.FromSingle(Offset0(), kind)
	switch inst.Op() {
	case hostir.OpLoad:
		p := inst.Operands()[0]
		if err := a.update(p, delta, -1); err != nil {
			return err
		}
		if !kind.IsPointer() {
			return a.update(hostir.Value(inst), lattice.FromSingle(nil, kind), -1)
		}
		return nil
	case hostir.OpStore:
		ops := inst.Operands() // [Src, Dst]
		p := ops[1]
		if kind.IsPointer() {
			// A store whose TBAA says the destination holds a pointer
			// does not, by itself, tell us the stored value's kind
			// (the store might be punning); spec §4.3.6 skips seeding
			// the value operand in this case.
			return a.update(p, delta, -1)
		}
		if err := a.update(p, delta, -1); err != nil {
			return err
		}
		return a.update(ops[0], lattice.FromSingle(nil, kind), -1)
	case hostir.OpCallMemcpy, hostir.OpCallMemmove:
		args := inst.CallArgs()
		if len(args) < 2 {
			return nil
		}
		if err := a.update(args[0], delta, -1); err != nil {
			return err
		}
		return a.update(args[1], delta, -1)
	case hostir.OpCallUser:
		// A call returning a pointer gets the tag's kind at [-1] (an
		// array of that kind); any other call's tag describes the
		// returned scalar directly.
		if t := inst.Type(); t != nil && t.Kind() == hostir.TypePointer {
			return a.update(hostir.Value(inst), lattice.FromSingle(lattice.Offset{-1}, kind), -1)
		}
		return a.update(hostir.Value(inst), lattice.FromSingle(nil, kind), -1)
	default:
		return nil
	}
}

// Offset0 is a small readability helper for the single-level offset
// [0] used throughout TBAA seeding.
func Offset0() lattice.Offset { return lattice.Offset{0} }
