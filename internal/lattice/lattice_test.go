package lattice

import "testing"

func TestScalarKindJoin(t *testing.T) {
	tests := []struct {
		name string
		a, b ScalarKind
		want ScalarKind
	}{
		{"unknown absorbs", Unknown, Integer, Integer},
		{"anything dominates", Anything, Integer, Anything},
		{"equal kinds", Integer, Integer, Integer},
		{"clash becomes anything", Integer, Pointer, Anything},
		{"distinct floats clash", Float(FloatSingle), Float(FloatDouble), Anything},
		{"same float precision", Float(FloatDouble), Float(FloatDouble), Float(FloatDouble)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Join(tt.b); !got.equal(tt.want) {
				t.Errorf("%v.Join(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := tt.b.Join(tt.a); !got.equal(tt.want) {
				t.Errorf("join not commutative: %v.Join(%v) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestScalarKindMeetContradiction(t *testing.T) {
	got := Integer.Meet(Pointer)
	if !got.IsUnknown() {
		t.Errorf("Integer.Meet(Pointer) = %v, want Unknown (contradiction demotes to bottom)", got)
	}
	if !Integer.Contradicts(Pointer) {
		t.Error("Integer.Contradicts(Pointer) = false, want true")
	}
	if Integer.Contradicts(Anything) {
		t.Error("Integer.Contradicts(Anything) = true, want false")
	}
}

func TestOffsetMapJoinIdempotentCommutative(t *testing.T) {
	var a, b OffsetMap
	a.Set(Offset{0}, Integer)
	a.Set(Offset{0, 4}, Float(FloatDouble))
	b.Set(Offset{0}, Integer)
	b.Set(nil, Pointer)

	a2 := a.Clone()
	a2.Join(a)
	if !a2.Equal(a) {
		t.Errorf("join not idempotent: got %v want %v", a2, a)
	}

	ab := a.Clone()
	ab.Join(b)
	ba := b.Clone()
	ba.Join(a)
	if !ab.Equal(ba) {
		t.Errorf("join not commutative: a∨b=%v b∨a=%v", ab, ba)
	}
}

func TestOffsetMapJoinAssociative(t *testing.T) {
	var a, b, c OffsetMap
	a.Set(Offset{0}, Integer)
	b.Set(Offset{1}, Float(FloatSingle))
	c.Set(nil, Pointer)

	left := a.Clone()
	left.Join(b)
	left.Join(c)

	bc := b.Clone()
	bc.Join(c)
	right := a.Clone()
	right.Join(bc)

	if !left.Equal(right) {
		t.Errorf("join not associative: (a∨b)∨c=%v a∨(b∨c)=%v", left, right)
	}
}

func TestOffsetMapLookupOnlyInverse(t *testing.T) {
	var base OffsetMap
	base.Set(Offset{0}, Integer)
	base.Set(Offset{1, 4}, Float(FloatDouble))

	wrapped := base.Only(0)
	back := wrapped.Lookup(0)
	if !back.Equal(base) {
		t.Errorf("Lookup(Only(m)) = %v, want %v", back, base)
	}
}

func TestOffsetMapMergeUnmergeRoundTrip(t *testing.T) {
	var base OffsetMap
	base.Set(Offset{0}, Integer)
	base.Set(Offset{8}, Float(FloatDouble))
	base.Set(Offset{-1, 2}, Pointer)

	off := 8
	merged := base.MergeIndices(off)
	back := merged.UnmergeIndices(off, -1)

	// Concrete (non -1) entries round-trip exactly; -1 entries are
	// preserved verbatim through MergeIndices per spec §4.1.
	if back.Get(Offset{0}).String() != base.Get(Offset{0}).String() {
		t.Errorf("round-trip lost [0]: got %v want %v", back.Get(Offset{0}), base.Get(Offset{0}))
	}
	if back.Get(Offset{8}).String() != base.Get(Offset{8}).String() {
		t.Errorf("round-trip lost [8]: got %v want %v", back.Get(Offset{8}), base.Get(Offset{8}))
	}
}

func TestKeepForCastIdentity(t *testing.T) {
	var base OffsetMap
	base.Set(nil, Pointer)
	base.Set(Offset{0}, Integer)
	base.Set(Offset{16}, Float(FloatDouble))

	got := base.KeepForCast(32, 32)
	if !got.Equal(base) {
		t.Errorf("KeepForCast(T,T) not identity: got %v want %v", got, base)
	}
}

func TestKeepForCastMinusOnePreservedWhenDivisible(t *testing.T) {
	var base OffsetMap
	base.Set(Offset{-1}, Integer)

	got := base.KeepForCast(4, 8)
	if got.Get(Offset{-1}).String() != "Integer" {
		t.Errorf("expected -1 entry preserved when T%%F==0, got %v", got)
	}

	got2 := base.KeepForCast(4, 6)
	if got2.Get(Offset{-1}).IsUnknown() == false && !got2.Get(Offset{0}).IsInteger() {
		// 6 % 4 != 0, so the -1 entry must collapse to [0, ...]
		t.Errorf("expected -1 entry to collapse to [0] when T%%F!=0, got %v", got2)
	}
}

// KeepForCast(T, T) must be the identity even when the map holds a
// [-1]-keyed wildcard array-stride entry (spec §8 invariant 4): a
// same-size cast never changes which stride the wildcard describes, so
// it must not collapse to [0, ...] the way a genuine size-changing
// cast with T%F!=0 does.
func TestKeepForCastIdentityWithMinusOneEntry(t *testing.T) {
	var base OffsetMap
	base.Set(Offset{-1}, Integer)
	base.Set(Offset{-1, 0}, Pointer)

	got := base.KeepForCast(8, 8)
	if !got.Equal(base) {
		t.Errorf("KeepForCast(T,T) with a -1 entry not identity: got %v want %v", got, base)
	}
}

func TestAtMostBoundsMemcpy(t *testing.T) {
	var src OffsetMap
	src.Set(Offset{0}, Float(FloatDouble))
	src.Set(Offset{8}, Float(FloatDouble))
	src.Set(Offset{20}, Integer)

	got := src.AtMost(16)
	if got.Get(Offset{20}).IsUnknown() == false {
		t.Errorf("AtMost(16) should drop offset 20, got %v", got)
	}
	if got.Get(Offset{0}).String() != "Float{double}" || got.Get(Offset{8}).String() != "Float{double}" {
		t.Errorf("AtMost(16) dropped an in-range entry: %v", got)
	}
}

func TestJustInt(t *testing.T) {
	var intsOnly OffsetMap
	intsOnly.Set(Offset{0}, Integer)
	if intsOnly.JustInt().Empty() {
		t.Error("JustInt() on an all-Integer map should not be empty")
	}

	var mixed OffsetMap
	mixed.Set(Offset{0}, Integer)
	mixed.Set(Offset{4}, Pointer)
	if !mixed.JustInt().Empty() {
		t.Error("JustInt() on a mixed map should be empty")
	}
}

func TestDepthBoundPrunes(t *testing.T) {
	var m OffsetMap
	_, pruned := m.Set(Offset{0, 1, 2, 3}, Integer)
	if !pruned {
		t.Error("offset sequence of length 4 should be pruned at MaxDepth=3")
	}
	_, pruned = m.Set(Offset{0, 1, 2}, Integer)
	if pruned {
		t.Error("offset sequence of length 3 should not be pruned")
	}
}
