// Package summary implements component B: the per-function type
// summary used both as the seed for intra-procedural analysis and as
// the cache key for the inter-procedural cache (spec §4.2).
package summary

import (
	"strconv"
	"strings"

	"sentra-typeanalysis/internal/lattice"
)

// ConstArg is a known-constant argument value at a particular call
// site, recorded for the inter-procedural cache's constant
// classification (spec §4.4); GEP index enumeration does not read it.
type ConstArg struct {
	// Present is false when the argument is not a compile-time
	// constant at this call site.
	Present bool
	Value   int64
}

// Summary is the trio of spec §4.2: known argument facts, the
// declared return fact, and any known constant arguments.
type Summary struct {
	Args      []lattice.OffsetMap
	Return    lattice.OffsetMap
	ConstArgs []ConstArg
}

// New builds a summary with n arguments, all seeded Unknown and no
// known constants, and the given return fact.
func New(n int, ret lattice.OffsetMap) Summary {
	return Summary{
		Args:      make([]lattice.OffsetMap, n),
		Return:    ret,
		ConstArgs: make([]ConstArg, n),
	}
}

// Key returns a canonical string for map-equality cache keying
// (spec §4.2: "equivalent summaries share cached results"). Summaries
// that are value-equal under map equality must produce the same key.
func (s Summary) Key() string {
	var b strings.Builder
	for i, a := range s.Args {
		if i > 0 {
			b.WriteString("|")
		}
		b.WriteString(offsetMapKey(a))
		b.WriteString("#")
		if s.ConstArgs[i].Present {
			b.WriteString("c")
			b.WriteString(strconv.FormatInt(s.ConstArgs[i].Value, 10))
		}
	}
	b.WriteString("=>")
	b.WriteString(offsetMapKey(s.Return))
	return b.String()
}

// offsetMapKey renders an OffsetMap's entries sorted by offset key so
// two value-equal maps (spec invariant: "value-equal under
// map-equality") always produce the same string regardless of the
// order facts were discovered in.
func offsetMapKey(m lattice.OffsetMap) string {
	entries := m.Entries()
	keys := make([]string, len(entries))
	for i, e := range entries {
		parts := make([]string, len(e.Offset))
		for j, v := range e.Offset {
			parts[j] = strconv.Itoa(v)
		}
		keys[i] = "[" + strings.Join(parts, ",") + "]=" + e.Kind.String()
	}
	// Entries() is insertion-ordered per-map, but two equal maps built
	// via different transfer-function paths can insert in different
	// orders; sort for a canonical key.
	sortStrings(keys)
	return strings.Join(keys, ";")
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
