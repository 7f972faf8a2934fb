// Package domtree computes dominator trees over an arbitrary directed
// graph of block identifiers. It implements the Cooper, Harvey, Kennedy
// "simple, fast dominance" algorithm (the same algorithm spec.md §9
// cites and the one the retrieval pack's golang.org/x/tools-era
// go/ssa lifting pass implements in its dominance-frontier
// computation), adapted here to operate over plain string node IDs so
// both the host-IR adapter (component F, for Function.Dominates) and
// the reverse-mode rewriter (component E, for dominator-topological
// block order) can share one implementation instead of each growing
// its own dominance pass.
package domtree

import "golang.org/x/tools/container/intsets"

// Graph is the minimal view of a CFG the dominance algorithm needs:
// a stable node-ID space, an entry node, and predecessor/successor
// edges. Implementations need not be connected beyond the entry node.
type Graph interface {
	Nodes() []string
	Entry() string
	Preds(id string) []string
	Succs(id string) []string
}

// Tree is a computed dominator tree: idom per node plus the reverse
// postorder used to build it.
type Tree struct {
	graph    Graph
	index    map[string]int // node ID -> postorder-derived index
	order    []string       // nodes in reverse-postorder (index -> ID)
	idom     []int          // idom[i] is the index of i's immediate dominator; the entry's is its own index
	children [][]int        // children[i] lists indices immediately dominated by i
}

// Build computes the dominator tree of g rooted at g.Entry().
// Unreachable nodes (no path from the entry) are omitted.
func Build(g Graph) *Tree {
	order := reversePostorder(g)
	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}

	idom := make([]int, len(order))
	for i := range idom {
		idom[i] = -2 // unprocessed sentinel
	}
	entryIdx := 0
	idom[entryIdx] = entryIdx

	changed := true
	for changed {
		changed = false
		for i := 1; i < len(order); i++ {
			id := order[i]
			newIdom := -1
			for _, predID := range g.Preds(id) {
				pi, ok := index[predID]
				if !ok || idom[pi] == -2 {
					continue
				}
				if newIdom == -1 {
					newIdom = pi
					continue
				}
				newIdom = intersect(idom, newIdom, pi)
			}
			if newIdom != -1 && idom[i] != newIdom {
				idom[i] = newIdom
				changed = true
			}
		}
	}
	idom[entryIdx] = entryIdx

	children := make([][]int, len(order))
	for i := 1; i < len(order); i++ {
		if idom[i] >= 0 {
			children[idom[i]] = append(children[idom[i]], i)
		}
	}

	return &Tree{graph: g, index: index, order: order, idom: idom, children: children}
}

// intersect walks two dominator chains up to their common ancestor,
// per the Cooper/Harvey/Kennedy algorithm's finger algorithm. Nodes
// are numbered in reverse postorder, so the entry is index 0 and a
// lower index is closer to the entry: the finger with the higher index
// is the one moved up its idom chain.
func intersect(idom []int, a, b int) int {
	for a != b {
		for a > b {
			a = idom[a]
		}
		for b > a {
			b = idom[b]
		}
	}
	return a
}

func reversePostorder(g Graph) []string {
	visited := make(map[string]bool)
	var post []string
	var visit func(string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, s := range g.Succs(id) {
			visit(s)
		}
		post = append(post, id)
	}
	visit(g.Entry())
	// reverse
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// Dominates reports whether a strictly dominates b.
func (t *Tree) Dominates(a, b string) bool {
	ai, aok := t.index[a]
	bi, bok := t.index[b]
	if !aok || !bok || a == b {
		return false
	}
	for cur := t.idom[bi]; ; cur = t.idom[cur] {
		if cur == ai {
			return true
		}
		if cur == t.idom[cur] {
			return false
		}
	}
}

// BreadthFirst returns every reachable node in breadth-first order
// over the dominator tree (root first), the order spec §4.5 step 1
// asks the rewriter to reverse.
func (t *Tree) BreadthFirst() []string {
	out := make([]string, 0, len(t.order))
	queue := []int{0}
	seen := &intsets.Sparse{}
	seen.Insert(0)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		out = append(out, t.order[i])
		for _, c := range t.children[i] {
			if seen.Insert(c) {
				queue = append(queue, c)
			}
		}
	}
	return out
}
