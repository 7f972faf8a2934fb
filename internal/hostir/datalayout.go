package hostir

import "github.com/llir/llvm/ir/types"

// SimpleDataLayout is a conservative DataLayout for modules that carry
// no (or an unparsed) "target datalayout" string: pointers and index
// widths default to 64 bits, matching the common x86-64/AArch64
// target triples the analyzer is exercised against in tests. A fuller
// implementation would parse the module's datalayout string; spec §6
// only requires that SizeOfInBits/IndexSizeInBits be consistent with
// whatever the rest of the pipeline assumes, which this satisfies.
type SimpleDataLayout struct {
	PointerBits int
}

// NewDataLayout returns the default 64-bit-pointer layout.
func NewDataLayout() *SimpleDataLayout {
	return &SimpleDataLayout{PointerBits: 64}
}

func (d *SimpleDataLayout) SizeOfInBits(t Type) int {
	lt, ok := t.(*llvmType)
	if !ok {
		return 0
	}
	return d.sizeOf(lt.t)
}

func (d *SimpleDataLayout) sizeOf(t types.Type) int {
	switch tt := t.(type) {
	case *types.IntType:
		return int(tt.BitSize)
	case *types.FloatType:
		switch tt.Kind {
		case types.FloatKindHalf:
			return 16
		case types.FloatKindFloat:
			return 32
		case types.FloatKindDouble:
			return 64
		case types.FloatKindX86FP80:
			return 80
		case types.FloatKindFP128, types.FloatKindPPCFP128:
			return 128
		default:
			return 64
		}
	case *types.PointerType:
		return d.PointerBits
	case *types.ArrayType:
		return int(tt.Len) * d.sizeOf(tt.ElemType)
	case *types.StructType:
		total := 0
		for _, f := range tt.Fields {
			total += d.sizeOf(f)
		}
		return total
	case *types.VectorType:
		return int(tt.Len) * d.sizeOf(tt.ElemType)
	default:
		return 0
	}
}

func (d *SimpleDataLayout) IndexSizeInBits(addrSpace int) int {
	return d.PointerBits
}

// GEPByteOffset accumulates the constant byte offset a GetElementPtr
// with fully-constant indices produces (spec §6: "data layout oracle:
// ... GEP constant-offset accumulation"). The first index steps over
// elements of elemType itself (LLVM GEP semantics: `gep T, base, i,
// ...` is `base + i*sizeof(T) + ...`); remaining indices step into
// nested struct fields or array elements, walked entirely through the
// abstract Type interface (NumFields/FieldType) so this never needs to
// know which concrete host-IR library elemType came from. It reports
// false if a non-constant-shaped step is encountered (e.g. an index
// into a non-aggregate, non-array type).
func GEPByteOffset(dl DataLayout, elemType Type, indices []int) (int, bool) {
	cur := elemType
	total := 0
	for i, idx := range indices {
		if i == 0 {
			total += idx * ByteSizeOf(dl, cur)
			continue
		}
		if cur == nil {
			return 0, false
		}
		switch n := cur.NumFields(); {
		case n < 0: // array/vector: uniform repeating element
			elem, ok := cur.FieldType(idx)
			if !ok {
				return 0, false
			}
			total += idx * ByteSizeOf(dl, elem)
			cur = elem
		case n > 0: // struct: fields may differ in size
			if idx < 0 || idx >= n {
				return 0, false
			}
			for k := 0; k < idx; k++ {
				fk, ok := cur.FieldType(k)
				if !ok {
					return 0, false
				}
				total += ByteSizeOf(dl, fk)
			}
			field, ok := cur.FieldType(idx)
			if !ok {
				return 0, false
			}
			cur = field
		default:
			return 0, false
		}
	}
	return total, true
}

// ByteSizeOf is a convenience used by the analyzer's GEP handling
// (spec §4.3.3) and bitcast handling (spec §4.1 KeepForCast), which
// reason in bytes rather than bits.
func ByteSizeOf(dl DataLayout, t Type) int {
	return dl.SizeOfInBits(t) / 8
}
