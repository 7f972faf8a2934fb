package lattice

import (
	"sort"
	"strconv"
	"strings"
)

// MaxDepth bounds the length of an offset sequence a transfer function
// may materialize. Depths beyond this are pruned (spec §5): in
// practice the transfer functions in this analyzer never need more
// than three levels of nesting (value, pointee, nested aggregate).
const MaxDepth = 3

// Offset is a finite sequence of signed byte offsets; -1 denotes "any
// element of a regular array stride" (spec §3.2). The empty sequence
// describes the value itself.
type Offset []int

func (o Offset) key() string {
	if len(o) == 0 {
		return ""
	}
	parts := make([]string, len(o))
	for i, v := range o {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (o Offset) clone() Offset {
	if len(o) == 0 {
		return nil
	}
	c := make(Offset, len(o))
	copy(c, o)
	return c
}

func prepend(i int, o Offset) Offset {
	r := make(Offset, 0, len(o)+1)
	r = append(r, i)
	r = append(r, o...)
	return r
}

type entry struct {
	off  Offset
	kind ScalarKind
}

// OffsetMap is a finite, insertion-ordered mapping from offset
// sequences to ScalarKind (spec §3.2). The zero value is an empty map.
// Iteration order is insertion order so golden-test output and trace
// logs are deterministic (spec §5) — it is intentionally not backed by
// a bare Go map.
type OffsetMap struct {
	entries []entry
	index   map[string]int
}

func (m *OffsetMap) ensure() {
	if m.index == nil {
		m.index = make(map[string]int)
	}
}

// Empty reports whether the map has no entries.
func (m OffsetMap) Empty() bool { return len(m.entries) == 0 }

// Entries returns the map's entries in insertion order. Callers must
// not mutate the returned slice.
func (m *OffsetMap) Entries() []struct {
	Offset Offset
	Kind   ScalarKind
} {
	out := make([]struct {
		Offset Offset
		Kind   ScalarKind
	}, len(m.entries))
	for i, e := range m.entries {
		out[i] = struct {
			Offset Offset
			Kind   ScalarKind
		}{e.off, e.kind}
	}
	return out
}

// Get returns the kind stored at off, or Unknown if absent.
func (m OffsetMap) Get(off Offset) ScalarKind {
	if m.index == nil {
		return Unknown
	}
	if i, ok := m.index[off.key()]; ok {
		return m.entries[i].kind
	}
	return Unknown
}

// Set joins kind into the entry at off (adding the entry if absent),
// applying the depth bound of spec §5. Each offset key is stored
// independently: a specific index and a -1 entry at the same prefix
// are kept side by side and are not collapsed into one. It reports
// whether the map changed and whether the write was pruned for
// exceeding MaxDepth.
func (m *OffsetMap) Set(off Offset, kind ScalarKind) (changed, pruned bool) {
	if len(off) > MaxDepth {
		return false, true
	}
	m.ensure()
	k := off.key()
	if i, ok := m.index[k]; ok {
		merged := m.entries[i].kind.Join(kind)
		if merged.equal(m.entries[i].kind) {
			return false, false
		}
		m.entries[i].kind = merged
		return true, false
	}
	m.index[k] = len(m.entries)
	m.entries = append(m.entries, entry{off: off.clone(), kind: kind})
	return true, false
}

// Join merges delta into the receiver in place (spec §4.1 "Join").
// It returns true iff the receiver changed, which drives the worklist.
func (m *OffsetMap) Join(delta OffsetMap) (changed bool) {
	for _, e := range delta.entries {
		if c, _ := m.Set(e.off, e.kind); c {
			changed = true
		}
	}
	return changed
}

// Clone returns a deep copy.
func (m OffsetMap) Clone() OffsetMap {
	var out OffsetMap
	for _, e := range m.entries {
		out.Set(e.off, e.kind)
	}
	return out
}

// Equal reports whether two maps hold the same entries, independent
// of insertion order — used for summary-key equality (component B).
func (m OffsetMap) Equal(o OffsetMap) bool {
	if len(m.entries) != len(o.entries) {
		return false
	}
	for _, e := range m.entries {
		if !o.Get(e.off).equal(e.kind) {
			return false
		}
	}
	return true
}

// Lookup returns the sub-map rooted at prefix [i], shifted so that
// [i, a, b] becomes [a, b] (spec §4.1). Lookup and Only are inverses.
func (m OffsetMap) Lookup(i int) OffsetMap {
	var out OffsetMap
	for _, e := range m.entries {
		if len(e.off) == 0 {
			continue
		}
		if e.off[0] != i && e.off[0] != -1 {
			continue
		}
		out.Set(Offset(e.off[1:]).clone(), e.kind)
	}
	return out
}

// Only wraps the receiver under a one-level prefix [i] (spec §4.1).
func (m OffsetMap) Only(i int) OffsetMap {
	var out OffsetMap
	for _, e := range m.entries {
		out.Set(prepend(i, e.off), e.kind)
	}
	return out
}

// MergeIndices rewrites outer keys [k, ...] to [k+off, ...] for a GEP
// with constant byte offset off; [-1, ...] keys are preserved as-is
// (spec §4.1).
func (m OffsetMap) MergeIndices(off int) OffsetMap {
	var out OffsetMap
	for _, e := range m.entries {
		if len(e.off) == 0 {
			out.Set(nil, e.kind)
			continue
		}
		if e.off[0] == -1 {
			out.Set(e.off.clone(), e.kind)
			continue
		}
		if e.off[0] < 0 {
			continue
		}
		shifted := e.off.clone()
		shifted[0] += off
		out.Set(shifted, e.kind)
	}
	return out
}

// UnmergeIndices is the inverse projection: only keys within
// [off, off+maxSize) survive (maxSize<0 means unbounded) and are
// shifted by -off (spec §4.1).
func (m OffsetMap) UnmergeIndices(off, maxSize int) OffsetMap {
	var out OffsetMap
	for _, e := range m.entries {
		if len(e.off) == 0 {
			out.Set(nil, e.kind)
			continue
		}
		if e.off[0] == -1 {
			out.Set(e.off.clone(), e.kind)
			continue
		}
		if e.off[0] < off {
			continue
		}
		if maxSize >= 0 && e.off[0] >= off+maxSize {
			continue
		}
		shifted := e.off.clone()
		shifted[0] -= off
		out.Set(shifted, e.kind)
	}
	return out
}

// KeepForCast applies the type-punning rule of spec §4.1 for a
// bitcast between pointees of size from -> to (in bytes).
func (m OffsetMap) KeepForCast(from, to int) OffsetMap {
	var out OffsetMap
	for _, e := range m.entries {
		if len(e.off) == 0 {
			out.Set(nil, e.kind)
			continue
		}
		k := e.off[0]
		switch {
		case k == -1:
			if from == to {
				// ValueData::KeepForCast's early return: a same-size cast
				// never changes which array stride a wildcard entry
				// describes, so it must pass through unchanged.
				out.Set(e.off.clone(), e.kind)
			} else if from > 0 && from < to && to%from == 0 {
				out.Set(e.off.clone(), e.kind)
			} else {
				z := e.off.clone()
				z[0] = 0
				out.Set(z, e.kind)
			}
		case k >= 0 && k < to:
			out.Set(e.off.clone(), e.kind)
		case k >= to:
			out.Set(e.off.clone(), e.kind)
		}
	}
	return out
}

// PurgeAnything removes entries whose scalar is Anything, used before
// propagating an insert result so it does not contaminate the
// destination with top (spec §4.1).
func (m OffsetMap) PurgeAnything() OffsetMap {
	var out OffsetMap
	for _, e := range m.entries {
		if e.kind.IsAnything() {
			continue
		}
		out.Set(e.off.clone(), e.kind)
	}
	return out
}

// AtMost restricts to entries whose first offset is < n, bounding a
// memcpy's effective length (spec §4.1).
func (m OffsetMap) AtMost(n int) OffsetMap {
	var out OffsetMap
	for _, e := range m.entries {
		if len(e.off) == 0 {
			out.Set(nil, e.kind)
			continue
		}
		if e.off[0] == -1 || e.off[0] < n {
			out.Set(e.off.clone(), e.kind)
		}
	}
	return out
}

// JustInt returns the receiver if the only scalar present is Integer,
// otherwise an empty map (spec §4.1, used for add/mul).
func (m OffsetMap) JustInt() OffsetMap {
	sawInt := false
	for _, e := range m.entries {
		if e.kind.IsInteger() {
			sawInt = true
			continue
		}
		if !e.kind.IsUnknown() {
			return OffsetMap{}
		}
	}
	if !sawInt {
		return OffsetMap{}
	}
	return m.Clone()
}

// KeepMinusOne retains only [-1, ...] entries, the stride rule for GEP
// result propagation when the concrete index is unknown (spec §4.1).
func (m OffsetMap) KeepMinusOne() OffsetMap {
	var out OffsetMap
	for _, e := range m.entries {
		if len(e.off) > 0 && e.off[0] == -1 {
			out.Set(e.off.clone(), e.kind)
		}
	}
	return out
}

// Contradicts reports whether applying delta to the receiver would
// violate invariant 2 of spec §3.2 (Integer and Pointer asserted at
// the same key) at any shared offset — the analyzer calls this before
// Join so it can raise a diag.TypeError instead of silently joining
// to Anything.
func (m OffsetMap) Contradicts(delta OffsetMap) bool {
	for _, e := range delta.entries {
		existing := m.Get(e.off)
		if existing.Contradicts(e.kind) {
			return true
		}
	}
	return false
}

// Meet computes ∧ pointwise: a key present in only one operand (or
// whose kinds contradict) drops out of the result, since
// ScalarKind.Meet demotes to Unknown in both cases and Unknown entries
// are not stored (spec §3.1, used for phi/select intersection).
func (m OffsetMap) Meet(o OffsetMap) OffsetMap {
	var out OffsetMap
	seen := make(map[string]bool, len(m.entries))
	for _, e := range m.entries {
		seen[e.off.key()] = true
		k := e.kind.Meet(o.Get(e.off))
		if !k.IsUnknown() {
			out.Set(e.off.clone(), k)
		}
	}
	for _, e := range o.entries {
		if seen[e.off.key()] {
			continue
		}
		k := e.kind.Meet(m.Get(e.off))
		if !k.IsUnknown() {
			out.Set(e.off.clone(), k)
		}
	}
	return out
}

// Combine returns a∨b without mutating either operand, useful inline
// in transfer functions that build a delta from several sources.
func Combine(a, b OffsetMap) OffsetMap {
	out := a.Clone()
	out.Join(b)
	return out
}

// WithRoot returns a copy of m with the root ([] offset) entry
// replaced outright by kind, rather than joined — used by the
// pointer-aware joint merge of spec §4.3.5, where Pointer must win
// even though a plain join of Pointer and Integer would otherwise
// escalate to Anything.
func (m OffsetMap) WithRoot(kind ScalarKind) OffsetMap {
	var out OffsetMap
	out.Set(nil, kind)
	for _, e := range m.entries {
		if len(e.off) == 0 {
			continue
		}
		out.Set(e.off.clone(), e.kind)
	}
	return out
}

// FromSingle builds a one-entry map at the given offset.
func FromSingle(off Offset, kind ScalarKind) OffsetMap {
	var out OffsetMap
	out.Set(off, kind)
	return out
}

// sortedKeys is a test/debug helper returning entries ordered for
// stable printing irrespective of insertion order.
func (m OffsetMap) sortedKeys() []string {
	ks := make([]string, len(m.entries))
	for i, e := range m.entries {
		ks[i] = e.off.key()
	}
	sort.Strings(ks)
	return ks
}

// String renders the map deterministically (sorted by key), e.g.
// "{[] -> Pointer, [0] -> Float{double}}" — used by the CLI's
// non-verbose dump and by test failure messages.
func (m OffsetMap) String() string {
	byKey := make(map[string]string, len(m.entries))
	for _, e := range m.entries {
		label := "[" + e.off.key() + "]"
		byKey[e.off.key()] = label + " -> " + e.kind.String()
	}
	keys := m.sortedKeys()
	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(byKey[k])
	}
	b.WriteString("}")
	return b.String()
}
