package typeanalysis

import "sentra-typeanalysis/internal/lattice"

// jointMerge implements the pointer-aware union of spec §4.3.5: a
// bitwise or division-style binary operator whose operands disagree
// between Pointer and Integer still yields Pointer for the result
// (the integer side is "just an offset"), rather than falling back to
// plain lattice join, which would demote the pair to Anything. Offsets
// below the root are joined normally; only the root scalar gets the
// pointer-aware treatment, since indices never flow below [0] in an
// arithmetic expression.
func jointMerge(a, b lattice.OffsetMap) lattice.OffsetMap {
	rootA, rootB := a.Get(nil), b.Get(nil)
	root := rootA.Join(rootB)
	if (rootA.IsPointer() && rootB.IsInteger()) || (rootB.IsPointer() && rootA.IsInteger()) {
		root = lattice.Pointer
	}
	return lattice.Combine(a, b).WithRoot(root)
}
