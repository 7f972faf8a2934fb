// Package typeanalysis implements component C: the intra-procedural
// analyzer — per-instruction transfer functions, the worklist fixed-
// point driver, TBAA seeding, and the dead-use heuristics (spec §4.3).
package typeanalysis

import (
	"context"
	"fmt"

	"sentra-typeanalysis/internal/diag"
	"sentra-typeanalysis/internal/hostir"
	"sentra-typeanalysis/internal/lattice"
	"sentra-typeanalysis/internal/summary"
)

// Options tunes analyzer behavior per the open questions of spec §9.
type Options struct {
	// Verbose enables tracing of every fact update (spec §6: "one
	// diagnostic flag controls verbose tracing of updates").
	Verbose bool
	// LegacyStoreSize1 names the store-size option of spec §9 ("Open
	// question — store size"). The analyzer does not read it: the store
	// transfer function bounds nothing by an access size, whether this
	// is true or false.
	LegacyStoreSize1 bool
	// Trace receives a line per fact update when Verbose is set;
	// defaults to a no-op so library callers never print unless asked.
	Trace func(string)
}

func (o Options) trace(format string, args ...any) {
	if !o.Verbose || o.Trace == nil {
		return
	}
	o.Trace(fmt.Sprintf(format, args...))
}

// Queryer is the subset of the inter-procedural cache (component D)
// the analyzer needs when it defers to a user-defined call (spec
// §4.4); it is an interface here so internal/ipcache can depend on
// typeanalysis (to run the intra-procedural analyzer on a callee)
// without an import cycle back to this package.
type Queryer interface {
	// QueryArg returns the refined fact for the paramIndex'th formal
	// parameter of callee, analyzed under sum.
	QueryArg(callee hostir.FunctionID, paramIndex int, sum summary.Summary) (lattice.OffsetMap, error)
	// QueryReturn returns callee's refined return fact under sum.
	QueryReturn(callee hostir.FunctionID, sum summary.Summary) (lattice.OffsetMap, error)
}

// Analyzer holds the per-function state of spec §3.3.
type Analyzer struct {
	fn    hostir.Function
	sum   summary.Summary
	cache Queryer
	dl    hostir.DataLayout
	opts  Options

	facts     map[hostir.ValueID]*lattice.OffsetMap
	factOrder []hostir.ValueID // first-seen order, for deterministic Handle iteration

	valueByID map[hostir.ValueID]hostir.Value
	instByID  map[hostir.ValueID]hostir.Instruction

	worklist     *idQueue
	pendingCalls *idQueue

	couldBeZeroMemo map[hostir.ValueID][]int
}

// NewAnalyzer builds an analyzer for fn under the given summary,
// delegating user-defined calls to cache (spec §3.3, §4.4).
func NewAnalyzer(fn hostir.Function, sum summary.Summary, cache Queryer, dl hostir.DataLayout, opts Options) *Analyzer {
	a := &Analyzer{
		fn:              fn,
		sum:             sum,
		cache:           cache,
		dl:              dl,
		opts:            opts,
		facts:           make(map[hostir.ValueID]*lattice.OffsetMap),
		valueByID:       make(map[hostir.ValueID]hostir.Value),
		instByID:        make(map[hostir.ValueID]hostir.Instruction),
		worklist:        newIDQueue(),
		pendingCalls:    newIDQueue(),
		couldBeZeroMemo: make(map[hostir.ValueID][]int),
	}
	for _, v := range fn.AllValues() {
		if v.ID() >= 0 {
			a.valueByID[v.ID()] = v
		}
	}
	for _, b := range fn.Blocks() {
		for _, inst := range b.Insts() {
			if inst.ID() >= 0 {
				a.instByID[inst.ID()] = inst
				a.valueByID[inst.ID()] = inst
			}
		}
	}
	return a
}

// Handle is the query surface returned after Run reaches a fixed
// point (component D reads through it for inter-procedural queries).
type Handle struct {
	fn     hostir.Function
	facts  map[hostir.ValueID]*lattice.OffsetMap
	ret    lattice.OffsetMap
	retSet bool
}

// Function returns the function this Handle was computed for, so a
// caller holding only a Handle (component D, the CLI) can recover its
// parameter list without threading the hostir.Function through
// separately.
func (h *Handle) Function() hostir.Function { return h.fn }

// Query returns the classified facts for v, or Unknown's empty map if
// v was never tracked (e.g. it belongs to a different function).
func (h *Handle) Query(v hostir.Value) lattice.OffsetMap {
	if m, ok := h.facts[v.ID()]; ok {
		return *m
	}
	return lattice.OffsetMap{}
}

// ReturnAnalysis returns the function's classified return fact.
func (h *Handle) ReturnAnalysis() lattice.OffsetMap { return h.ret }

// IntKind asserts v is classified as a concrete, non-Anything integer
// kind when required is true (spec §6: "Handle.intKind(value,
// required)").
func (h *Handle) IntKind(v hostir.Value, required bool) (lattice.ScalarKind, error) {
	k := h.Query(v).Get(nil)
	if required && (k.IsUnknown() || k.IsAnything()) {
		return k, diag.NewDeductionFailure(h.fn.Name(), v.String(), k)
	}
	return k, nil
}

// FirstPointer walks numLeadingOffsets levels of pointer indirection
// from v's facts and returns the scalar kind found at that depth
// (spec §6: "Handle.firstPointer(numLeadingOffsets, value, required,
// treatPointerAsInt)"). When treatPointerAsInt is true, a Pointer
// found along the way is treated as Integer instead of failing.
func (h *Handle) FirstPointer(numLeadingOffsets int, v hostir.Value, required, treatPointerAsInt bool) (lattice.ScalarKind, error) {
	cur := h.Query(v)
	k := cur.Get(nil)
	for i := 0; i < numLeadingOffsets; i++ {
		cur = cur.Lookup(0)
		k = cur.Get(nil)
	}
	if treatPointerAsInt && k.IsPointer() {
		k = lattice.Integer
	}
	if required && (k.IsUnknown() || k.IsAnything()) {
		return k, diag.NewDeductionFailure(h.fn.Name(), v.String(), k)
	}
	return k, nil
}

// Run executes prepareArgs -> considerTBAA -> worklist fixed point ->
// unused-use heuristics (spec §3.3 lifecycle, §4.3.1 step 4) and
// returns a query Handle.
func (a *Analyzer) Run(ctx context.Context) (*Handle, error) {
	a.seedInitialWorklist()
	if err := a.prepareArgs(); err != nil {
		return nil, err
	}
	if err := a.considerTBAA(); err != nil {
		return nil, err
	}

	for {
		if err := a.drainWorklist(ctx); err != nil {
			return nil, err
		}
		changed, err := a.runUnusedChecks()
		if err != nil {
			return nil, err
		}
		if !changed {
			break
		}
	}

	// Join every returned value's fixed-point facts into the return
	// sink, so ReturnAnalysis reflects more than the seeded facts.
	if sink := a.facts[a.returnSinkID()]; sink != nil {
		for _, b := range a.fn.Blocks() {
			if v, isRet := b.IsReturn(); isRet && v != nil {
				sink.Join(a.get(v.ID()))
			}
		}
	}

	h := &Handle{fn: a.fn, facts: a.facts}
	if ret, ok := a.facts[a.returnSinkID()]; ok {
		h.ret = *ret
		h.retSet = true
	}
	return h, nil
}

// returnSinkID names the synthetic slot return facts are accumulated
// under when a function has multiple return instructions: each
// `ret`'s operand is updated directly (so per-value facts stay
// accurate), and this slot separately accumulates the join of all of
// them for ReturnAnalysis. Value IDs are never negative, so -1 is a
// safe sentinel distinct from every real value.
func (a *Analyzer) returnSinkID() hostir.ValueID { return -1 }

func (a *Analyzer) seedInitialWorklist() {
	for _, v := range a.fn.AllValues() {
		a.worklist.push(v.ID())
		if inst, ok := a.instByID[v.ID()]; ok {
			for _, op := range inst.Operands() {
				a.worklist.push(op.ID())
			}
		}
	}
}

// prepareArgs seeds argument and return facts from the summary (spec
// §3.3).
func (a *Analyzer) prepareArgs() error {
	params := a.fn.Params()
	for i, p := range params {
		if i >= len(a.sum.Args) {
			break
		}
		if err := a.update(p, a.sum.Args[i], -1); err != nil {
			return err
		}
	}
	for _, b := range a.fn.Blocks() {
		v, isRet := b.IsReturn()
		if !isRet || v == nil {
			continue
		}
		if err := a.update(v, a.sum.Return, -1); err != nil {
			return err
		}
		// Accumulate into the synthetic return-sink slot too, in case
		// the function has more than one return instruction.
		sink := a.facts[a.returnSinkID()]
		if sink == nil {
			sink = &lattice.OffsetMap{}
			a.facts[a.returnSinkID()] = sink
		}
		sink.Join(a.get(v.ID()))
	}
	return nil
}

func (a *Analyzer) drainWorklist(ctx context.Context) error {
	for !a.worklist.empty() || !a.pendingCalls.empty() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if !a.worklist.empty() {
			id, _ := a.worklist.pop()
			inst, ok := a.instByID[id]
			if !ok {
				continue
			}
			if inst.Op() == hostir.OpCallUser {
				a.pendingCalls.push(id)
				continue
			}
			if err := a.visit(inst); err != nil {
				return err
			}
			continue
		}
		id, ok := a.pendingCalls.pop()
		if !ok {
			continue
		}
		inst := a.instByID[id]
		if err := a.visitUserCall(inst); err != nil {
			return err
		}
	}
	return nil
}

// get returns a copy of the current facts for id (Unknown/empty if
// untracked).
func (a *Analyzer) get(id hostir.ValueID) lattice.OffsetMap {
	if id < 0 {
		return lattice.OffsetMap{}
	}
	if m, ok := a.facts[id]; ok {
		return *m
	}
	return lattice.OffsetMap{}
}

func (a *Analyzer) getPtr(v hostir.Value) *lattice.OffsetMap {
	id := v.ID()
	if m, ok := a.facts[id]; ok {
		return m
	}
	m := &lattice.OffsetMap{}
	a.facts[id] = m
	a.factOrder = append(a.factOrder, id)
	return m
}

// update implements spec §4.3.2: skip constants/function handles,
// reject contradictions, join delta into facts[v], and on change
// re-enqueue v (unless it's the origin), its users restricted to the
// current function, and its operands.
func (a *Analyzer) update(v hostir.Value, delta lattice.OffsetMap, origin hostir.ValueID) error {
	if v == nil || v.IsConstant() || v.IsFunction() {
		return nil
	}
	id := v.ID()
	if id < 0 {
		return nil
	}
	cur := a.getPtr(v)
	if cur.Contradicts(delta) {
		return diag.NewContradiction(a.fn.Name(), v.String(), cur.Get(nil), delta.Get(nil))
	}
	changed := cur.Join(delta)
	if !changed {
		return nil
	}
	a.opts.trace("update %s -> %s", v.String(), cur.String())
	if id != origin {
		a.worklist.push(id)
	}
	for _, u := range v.Users() {
		a.worklist.push(u.ID())
	}
	if inst, ok := a.instByID[id]; ok {
		for _, op := range inst.Operands() {
			a.worklist.push(op.ID())
		}
	}
	return nil
}
