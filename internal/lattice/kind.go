// Package lattice implements the scalar-kind/offset-map lattice that the
// type analyzer and reverse-mode rewriter share: ScalarKind is the value
// lattice (§3.1), OffsetMap indexes it by byte-offset sequence (§3.2).
package lattice

import "fmt"

// FloatPrecision enumerates the floating-point widths tracked by the
// analysis. Precisions are never joinable across variants (spec §3.1).
type FloatPrecision int

const (
	FloatHalf FloatPrecision = iota
	FloatSingle
	FloatDouble
	FloatX86Extended
	FloatQuad
)

func (p FloatPrecision) String() string {
	switch p {
	case FloatHalf:
		return "half"
	case FloatSingle:
		return "single"
	case FloatDouble:
		return "double"
	case FloatX86Extended:
		return "x86_fp80"
	case FloatQuad:
		return "fp128"
	default:
		return "float?"
	}
}

type tag int

const (
	tagUnknown tag = iota
	tagInteger
	tagPointer
	tagFloat
	tagAnything
)

// ScalarKind is a single entry of the value lattice: Unknown (bottom),
// Integer, Pointer, Float{precision}, or Anything (top).
type ScalarKind struct {
	tag   tag
	prec  FloatPrecision
	valid bool // only meaningful when tag == tagFloat
}

// Unknown is the bottom element: no information yet.
var Unknown = ScalarKind{tag: tagUnknown}

// Anything is the top element: value may be any scalar kind.
var Anything = ScalarKind{tag: tagAnything}

// Integer is the integral-value kind.
var Integer = ScalarKind{tag: tagInteger}

// Pointer is the address kind.
var Pointer = ScalarKind{tag: tagPointer}

// Float returns the kind for a specific floating-point precision.
func Float(p FloatPrecision) ScalarKind {
	return ScalarKind{tag: tagFloat, prec: p, valid: true}
}

func (k ScalarKind) IsUnknown() bool  { return k.tag == tagUnknown }
func (k ScalarKind) IsAnything() bool { return k.tag == tagAnything }
func (k ScalarKind) IsInteger() bool  { return k.tag == tagInteger }
func (k ScalarKind) IsPointer() bool  { return k.tag == tagPointer }
func (k ScalarKind) IsFloat() bool    { return k.tag == tagFloat }

// FloatPrecision reports the precision of a Float kind; the second
// return value is false for any non-Float kind.
func (k ScalarKind) FloatPrecision() (FloatPrecision, bool) {
	if k.tag != tagFloat {
		return 0, false
	}
	return k.prec, true
}

func (k ScalarKind) String() string {
	switch k.tag {
	case tagUnknown:
		return "Unknown"
	case tagInteger:
		return "Integer"
	case tagPointer:
		return "Pointer"
	case tagAnything:
		return "Anything"
	case tagFloat:
		return fmt.Sprintf("Float{%s}", k.prec)
	default:
		return "?"
	}
}

func (k ScalarKind) equal(o ScalarKind) bool {
	if k.tag != o.tag {
		return false
	}
	if k.tag == tagFloat {
		return k.prec == o.prec
	}
	return true
}

// Join implements ∨: Unknown∨x=x, Anything∨x=Anything, equal kinds
// yield themselves, otherwise Anything.
func (k ScalarKind) Join(o ScalarKind) ScalarKind {
	if k.IsUnknown() {
		return o
	}
	if o.IsUnknown() {
		return k
	}
	if k.IsAnything() || o.IsAnything() {
		return Anything
	}
	if k.equal(o) {
		return k
	}
	return Anything
}

// Meet implements ∧: a contradiction (two distinct concrete kinds)
// demotes to Unknown; Anything∧x=x; Unknown∧x=Unknown.
func (k ScalarKind) Meet(o ScalarKind) ScalarKind {
	if k.IsUnknown() || o.IsUnknown() {
		return Unknown
	}
	if k.IsAnything() {
		return o
	}
	if o.IsAnything() {
		return k
	}
	if k.equal(o) {
		return k
	}
	return Unknown
}

// Contradicts reports whether two concrete kinds can never describe the
// same offset — the Integer/Pointer clash spec §3.2 invariant 2 forbids.
func (k ScalarKind) Contradicts(o ScalarKind) bool {
	if k.IsUnknown() || o.IsUnknown() || k.IsAnything() || o.IsAnything() {
		return false
	}
	return (k.IsInteger() && o.IsPointer()) || (k.IsPointer() && o.IsInteger())
}
