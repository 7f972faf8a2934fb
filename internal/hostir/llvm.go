package hostir

import (
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"sentra-typeanalysis/internal/domtree"
	"sentra-typeanalysis/internal/lattice"
)

// llvmModule adapts *ir.Module to the Module contract, lazily wrapping
// each *ir.Func the first time it's requested so a module with
// functions nothing ever calls never pays for dominator-tree
// construction (spec §6: NewFunction's up-front work should only run
// for functions actually analyzed).
type llvmModule struct {
	m       *ir.Module
	byName  map[string]*ir.Func
	wrapped map[string]Function
}

// NewModule wraps a parsed *ir.Module (github.com/llir/llvm/asm.ParseFile)
// as a hostir.Module.
func NewModule(m *ir.Module) Module {
	lm := &llvmModule{m: m, byName: make(map[string]*ir.Func), wrapped: make(map[string]Function)}
	for _, fn := range m.Funcs {
		lm.byName[strings.TrimPrefix(fn.Ident(), "@")] = fn
	}
	return lm
}

func (lm *llvmModule) Function(id FunctionID) (Function, bool) {
	name := string(id)
	if f, ok := lm.wrapped[name]; ok {
		return f, true
	}
	fn, ok := lm.byName[name]
	if !ok || len(fn.Blocks) == 0 {
		return nil, false
	}
	f := NewFunction(fn)
	lm.wrapped[name] = f
	return f, true
}

func (lm *llvmModule) Functions() []Function {
	out := make([]Function, 0, len(lm.m.Funcs))
	for _, fn := range lm.m.Funcs {
		if f, ok := lm.Function(FunctionID(strings.TrimPrefix(fn.Ident(), "@"))); ok {
			out = append(out, f)
		}
	}
	return out
}

// llvmFunction adapts *ir.Func to the Function contract. Value
// identity is assigned once, at adapter construction, by walking the
// function's parameters and every block's instructions in order —
// this is the stable per-function value table spec §9 calls for.
type llvmFunction struct {
	fn      *ir.Func
	blocks  []Block
	byInst  map[value.Value]ValueID
	allVals []Value
	dom     *domtree.Tree
	entry   Block
	users   map[value.Value][]Value
}

// blockGraph adapts the blocks of a function to domtree.Graph.
type blockGraph struct {
	blocks []Block
	byID   map[string]Block
	entry  string
}

func (g *blockGraph) Nodes() []string {
	out := make([]string, len(g.blocks))
	for i, b := range g.blocks {
		out[i] = b.ID()
	}
	return out
}
func (g *blockGraph) Entry() string { return g.entry }
func (g *blockGraph) Preds(id string) []string {
	b := g.byID[id]
	if b == nil {
		return nil
	}
	out := make([]string, len(b.Preds()))
	for i, p := range b.Preds() {
		out[i] = p.ID()
	}
	return out
}
func (g *blockGraph) Succs(id string) []string {
	b := g.byID[id]
	if b == nil {
		return nil
	}
	out := make([]string, len(b.Succs()))
	for i, s := range b.Succs() {
		out[i] = s.ID()
	}
	return out
}

// BuildBlockGraph exposes the function's CFG as a domtree.Graph; the
// reverse-mode rewriter (component E) uses it directly to get the
// dominator-tree breadth-first order of spec §4.5 step 1 without
// depending on the llir/llvm-specific adapter internals.
func BuildBlockGraph(blocks []Block, entry Block) domtree.Graph {
	byID := make(map[string]Block, len(blocks))
	for _, b := range blocks {
		byID[b.ID()] = b
	}
	e := ""
	if entry != nil {
		e = entry.ID()
	}
	return &blockGraph{blocks: blocks, byID: byID, entry: e}
}

// NewFunction wraps an *ir.Func (parsed by github.com/llir/llvm/asm)
// as a hostir.Function, computing the dominator tree once up front so
// Dominates is a read-only O(1)-ish query thereafter (spec §3.3).
func NewFunction(fn *ir.Func) Function {
	f := &llvmFunction{fn: fn, byInst: make(map[value.Value]ValueID)}
	id := ValueID(0)
	for _, p := range fn.Params {
		f.byInst[p] = id
		id++
	}
	blockByIR := make(map[*ir.Block]*llvmBlock, len(fn.Blocks))
	for _, b := range fn.Blocks {
		lb := &llvmBlock{ir: b, fn: f}
		blockByIR[b] = lb
		f.blocks = append(f.blocks, lb)
		for _, inst := range b.Insts {
			if v, ok := inst.(value.Value); ok {
				f.byInst[v] = id
				id++
			}
		}
	}
	for _, b := range f.blocks {
		lb := b.(*llvmBlock)
		lb.resolveEdges(blockByIR)
	}
	if len(f.blocks) > 0 {
		f.entry = f.blocks[0]
	}
	f.dom = domtree.Build(BuildBlockGraph(f.blocks, f.entry))
	for _, p := range fn.Params {
		f.allVals = append(f.allVals, &llvmValue{v: p, f: f})
	}
	for _, b := range fn.Blocks {
		for _, inst := range b.Insts {
			if v, ok := inst.(value.Value); ok {
				f.allVals = append(f.allVals, &llvmValue{v: v, f: f})
			}
		}
	}
	return f
}

func (f *llvmFunction) ID() FunctionID { return FunctionID(strings.TrimPrefix(f.fn.Ident(), "@")) }
func (f *llvmFunction) Name() string   { return strings.TrimPrefix(f.fn.Ident(), "@") }
func (f *llvmFunction) Blocks() []Block { return f.blocks }
func (f *llvmFunction) Entry() Block    { return f.entry }

func (f *llvmFunction) Params() []Value {
	out := make([]Value, len(f.fn.Params))
	for i, p := range f.fn.Params {
		out[i] = &llvmValue{v: p, f: f}
	}
	return out
}

func (f *llvmFunction) ReturnType() Type {
	return &llvmType{t: f.fn.Sig.RetType}
}

func (f *llvmFunction) Dominates(a, b Block) bool {
	return f.dom.Dominates(a.ID(), b.ID())
}

func (f *llvmFunction) AllValues() []Value { return f.allVals }

func (f *llvmFunction) idOf(v value.Value) ValueID {
	if id, ok := f.byInst[v]; ok {
		return id
	}
	return -1
}

type llvmBlock struct {
	ir     *ir.Block
	fn     *llvmFunction
	preds  []Block
	succs  []Block
}

func (b *llvmBlock) ID() string { return b.ir.Ident() }

func (b *llvmBlock) Insts() []Instruction {
	out := make([]Instruction, 0, len(b.ir.Insts))
	for _, inst := range b.ir.Insts {
		out = append(out, &llvmInst{inst: inst, block: b})
	}
	return out
}

func (b *llvmBlock) Preds() []Block { return b.preds }
func (b *llvmBlock) Succs() []Block { return b.succs }
func (b *llvmBlock) Args() []Value  { return nil }

func (b *llvmBlock) IsReturn() (Value, bool) {
	ret, ok := b.ir.Term.(*ir.TermRet)
	if !ok {
		return nil, false
	}
	if ret.X == nil {
		return nil, true
	}
	return &llvmValue{v: ret.X, f: b.fn}, true
}

func (b *llvmBlock) resolveEdges(byIR map[*ir.Block]*llvmBlock) {
	for _, succIR := range termSuccessors(b.ir.Term) {
		succ := byIR[succIR]
		if succ == nil {
			continue
		}
		b.succs = append(b.succs, succ)
		succ.preds = append(succ.preds, b)
	}
}

// termSuccessors extracts the successor blocks of a terminator. Only
// the handful of terminator kinds relevant to straight-line and
// branching control flow are handled; anything else is treated as
// having no successors (a leaf for dominance purposes).
func termSuccessors(term ir.Terminator) []*ir.Block {
	switch t := term.(type) {
	case *ir.TermBr:
		return []*ir.Block{t.Target}
	case *ir.TermCondBr:
		return []*ir.Block{t.TargetTrue, t.TargetFalse}
	case *ir.TermSwitch:
		out := []*ir.Block{t.TargetDefault}
		for _, c := range t.Cases {
			out = append(out, c.Target)
		}
		return out
	default:
		return nil
	}
}

type llvmValue struct {
	v value.Value
	f *llvmFunction
}

func (lv *llvmValue) ID() ValueID { return lv.f.idOf(lv.v) }
func (lv *llvmValue) Type() Type  { return &llvmType{t: lv.v.Type()} }

func (lv *llvmValue) IsConstant() bool {
	_, ok := lv.v.(constant.Constant)
	return ok
}

func (lv *llvmValue) ConstantInt() (int64, bool) {
	if ci, ok := lv.v.(*constant.Int); ok {
		return ci.X.Int64(), true
	}
	return 0, false
}

func (lv *llvmValue) IsFunction() bool {
	_, ok := lv.v.(*ir.Func)
	return ok
}

func (lv *llvmValue) Users() []Value {
	// github.com/llir/llvm does not maintain reverse use-def edges, so
	// the adapter builds them lazily per function on first use and
	// caches the result; the construction walks every instruction's
	// operand list once, mirroring how a host compiler's use-list
	// would normally already exist.
	return lv.f.usersOf(lv.v)
}

func (lv *llvmValue) String() string { return lv.v.Ident() }

type llvmInst struct {
	inst  ir.Instruction
	block *llvmBlock
}

func (li *llvmInst) ID() ValueID {
	if v, ok := li.inst.(value.Value); ok {
		return li.block.fn.idOf(v)
	}
	return -1
}

func (li *llvmInst) Type() Type {
	if v, ok := li.inst.(value.Value); ok {
		return &llvmType{t: v.Type()}
	}
	return &llvmType{t: types.Void}
}

func (li *llvmInst) IsConstant() bool  { return false }
func (li *llvmInst) ConstantInt() (int64, bool) { return 0, false }
func (li *llvmInst) IsFunction() bool  { return false }

func (li *llvmInst) Users() []Value {
	if v, ok := li.inst.(value.Value); ok {
		return li.block.fn.usersOf(v)
	}
	return nil
}

func (li *llvmInst) String() string { return li.inst.LLString() }

func (li *llvmInst) Block() Block { return li.block }

func (li *llvmInst) Op() Opcode {
	switch li.inst.(type) {
	case *ir.InstAlloca:
		return OpAlloca
	case *ir.InstLoad:
		return OpLoad
	case *ir.InstStore:
		return OpStore
	case *ir.InstGetElementPtr:
		return OpGetElementPtr
	case *ir.InstPhi:
		return OpPhi
	case *ir.InstTrunc:
		return OpTrunc
	case *ir.InstZExt:
		return OpZExt
	case *ir.InstSExt:
		return OpSExt
	case *ir.InstAddrSpaceCast:
		return OpAddrSpaceCast
	case *ir.InstFPToUI:
		return OpFPToUI
	case *ir.InstFPToSI:
		return OpFPToSI
	case *ir.InstUIToFP:
		return OpUIToFP
	case *ir.InstSIToFP:
		return OpSIToFP
	case *ir.InstPtrToInt:
		return OpPtrToInt
	case *ir.InstIntToPtr:
		return OpIntToPtr
	case *ir.InstBitCast:
		b := li.inst.(*ir.InstBitCast)
		if _, ok := b.To.(*types.PointerType); ok {
			return OpBitCastPointer
		}
		return OpBitCastScalar
	case *ir.InstSelect:
		return OpSelect
	case *ir.InstExtractElement:
		return OpExtractElement
	case *ir.InstInsertElement:
		return OpInsertElement
	case *ir.InstShuffleVector:
		return OpShuffleVector
	case *ir.InstExtractValue:
		return OpExtractValue
	case *ir.InstInsertValue:
		return OpInsertValue
	case *ir.InstFAdd:
		return OpFAdd
	case *ir.InstFSub:
		return OpFSub
	case *ir.InstFMul:
		return OpFMul
	case *ir.InstFDiv:
		return OpFDiv
	case *ir.InstFRem:
		return OpFRem
	case *ir.InstAdd:
		return OpAdd
	case *ir.InstMul:
		return OpMul
	case *ir.InstSub:
		return OpSub
	case *ir.InstUDiv:
		return OpUDiv
	case *ir.InstSDiv:
		return OpSDiv
	case *ir.InstURem:
		return OpURem
	case *ir.InstSRem:
		return OpSRem
	case *ir.InstAnd:
		return OpAnd
	case *ir.InstOr:
		return OpOr
	case *ir.InstXor:
		return OpXor
	case *ir.InstShl:
		return OpShl
	case *ir.InstAShr:
		return OpAShr
	case *ir.InstLShr:
		return OpLShr
	case *ir.InstCall:
		return li.classifyCall()
	default:
		return OpOther
	}
}

func (li *llvmInst) classifyCall() Opcode {
	switch li.CalleeName() {
	case "memcpy", "llvm.memcpy", "llvm.memcpy.p0.p0.i64":
		return OpCallMemcpy
	case "memmove", "llvm.memmove", "llvm.memmove.p0.p0.i64":
		return OpCallMemmove
	case "malloc":
		return OpCallMalloc
	case "llvm.x86.cpuid", "cpuid":
		return OpCallCpuid
	default:
		return OpCallUser
	}
}

func (li *llvmInst) Operands() []Value {
	var ops []value.Value
	switch v := li.inst.(type) {
	case *ir.InstAlloca:
		if v.NElems != nil {
			ops = append(ops, v.NElems)
		}
	case *ir.InstLoad:
		ops = append(ops, v.Src)
	case *ir.InstStore:
		ops = append(ops, v.Src, v.Dst)
	case *ir.InstGetElementPtr:
		ops = append(ops, v.Src)
		ops = append(ops, v.Indices...)
	case *ir.InstPhi:
		for _, inc := range v.Incs {
			ops = append(ops, inc.X)
		}
	case *ir.InstBitCast:
		ops = append(ops, v.From)
	case *ir.InstTrunc:
		ops = append(ops, v.From)
	case *ir.InstZExt:
		ops = append(ops, v.From)
	case *ir.InstSExt:
		ops = append(ops, v.From)
	case *ir.InstAddrSpaceCast:
		ops = append(ops, v.From)
	case *ir.InstFPToUI:
		ops = append(ops, v.From)
	case *ir.InstFPToSI:
		ops = append(ops, v.From)
	case *ir.InstUIToFP:
		ops = append(ops, v.From)
	case *ir.InstSIToFP:
		ops = append(ops, v.From)
	case *ir.InstPtrToInt:
		ops = append(ops, v.From)
	case *ir.InstIntToPtr:
		ops = append(ops, v.From)
	case *ir.InstSelect:
		ops = append(ops, v.Cond, v.ValueTrue, v.ValueFalse)
	case *ir.InstExtractElement:
		ops = append(ops, v.X, v.Index)
	case *ir.InstInsertElement:
		ops = append(ops, v.X, v.Elem, v.Index)
	case *ir.InstShuffleVector:
		ops = append(ops, v.X, v.Y)
	case *ir.InstExtractValue:
		ops = append(ops, v.X)
	case *ir.InstInsertValue:
		ops = append(ops, v.X, v.Elem)
	case *ir.InstFAdd:
		ops = append(ops, v.X, v.Y)
	case *ir.InstFSub:
		ops = append(ops, v.X, v.Y)
	case *ir.InstFMul:
		ops = append(ops, v.X, v.Y)
	case *ir.InstFDiv:
		ops = append(ops, v.X, v.Y)
	case *ir.InstFRem:
		ops = append(ops, v.X, v.Y)
	case *ir.InstAdd:
		ops = append(ops, v.X, v.Y)
	case *ir.InstMul:
		ops = append(ops, v.X, v.Y)
	case *ir.InstSub:
		ops = append(ops, v.X, v.Y)
	case *ir.InstUDiv:
		ops = append(ops, v.X, v.Y)
	case *ir.InstSDiv:
		ops = append(ops, v.X, v.Y)
	case *ir.InstURem:
		ops = append(ops, v.X, v.Y)
	case *ir.InstSRem:
		ops = append(ops, v.X, v.Y)
	case *ir.InstAnd:
		ops = append(ops, v.X, v.Y)
	case *ir.InstOr:
		ops = append(ops, v.X, v.Y)
	case *ir.InstXor:
		ops = append(ops, v.X, v.Y)
	case *ir.InstShl:
		ops = append(ops, v.X, v.Y)
	case *ir.InstAShr:
		ops = append(ops, v.X, v.Y)
	case *ir.InstLShr:
		ops = append(ops, v.X, v.Y)
	case *ir.InstCall:
		ops = append(ops, v.Args...)
	}
	out := make([]Value, len(ops))
	for i, o := range ops {
		out[i] = &llvmValue{v: o, f: li.block.fn}
	}
	return out
}

func (li *llvmInst) InBounds() bool {
	if g, ok := li.inst.(*ir.InstGetElementPtr); ok {
		return g.InBounds
	}
	return false
}

func (li *llvmInst) GEPIndices() []Value {
	g, ok := li.inst.(*ir.InstGetElementPtr)
	if !ok {
		return nil
	}
	out := make([]Value, len(g.Indices))
	for i, idx := range g.Indices {
		out[i] = &llvmValue{v: idx, f: li.block.fn}
	}
	return out
}

func (li *llvmInst) GEPElemType() Type {
	g, ok := li.inst.(*ir.InstGetElementPtr)
	if !ok {
		return nil
	}
	return &llvmType{t: g.ElemType}
}

func (li *llvmInst) PHIIncoming() []Incoming {
	p, ok := li.inst.(*ir.InstPhi)
	if !ok {
		return nil
	}
	out := make([]Incoming, len(p.Incs))
	for i, inc := range p.Incs {
		pred, ok := li.block.predOf(inc.Pred)
		if !ok {
			pred = li.block
		}
		out[i] = Incoming{Value: &llvmValue{v: inc.X, f: li.block.fn}, Pred: pred}
	}
	return out
}

func (b *llvmBlock) predOf(ir *ir.Block) (Block, bool) {
	for _, p := range b.preds {
		if p.(*llvmBlock).ir == ir {
			return p, true
		}
	}
	return nil, false
}

func (li *llvmInst) CalleeName() string {
	c, ok := li.inst.(*ir.InstCall)
	if !ok {
		return ""
	}
	return strings.TrimPrefix(c.Callee.Ident(), "@")
}

func (li *llvmInst) CallArgs() []Value {
	c, ok := li.inst.(*ir.InstCall)
	if !ok {
		return nil
	}
	out := make([]Value, len(c.Args))
	for i, a := range c.Args {
		out[i] = &llvmValue{v: a, f: li.block.fn}
	}
	return out
}

// tbaaCandidates is the closed set of names spec §4.3.6's table
// classifies; a !tbaa attachment's textual form is scanned for the
// first one it contains rather than walked structurally, since the
// metadata operand shape varies across LLVM TBAA encodings (scalar
// vs. struct-path) and the analyzer only ever needs the tag name.
var tbaaCandidates = []string{
	"any pointer", "vtable pointer",
	"long long", "long", "int", "bool",
	"double", "float",
}

func (li *llvmInst) TBAATag() string {
	text := li.inst.LLString()
	idx := strings.Index(text, "!tbaa")
	if idx < 0 {
		return ""
	}
	tail := text[idx:]
	for _, cand := range tbaaCandidates {
		if strings.Contains(tail, cand) {
			return cand
		}
	}
	return ""
}

func (li *llvmInst) AccessType() Type {
	switch v := li.inst.(type) {
	case *ir.InstAlloca:
		return &llvmType{t: v.ElemType}
	case *ir.InstLoad:
		return &llvmType{t: v.ElemType}
	case *ir.InstStore:
		return &llvmType{t: v.Src.Type()}
	default:
		return li.Type()
	}
}

type llvmType struct{ t types.Type }

func (lt *llvmType) Kind() TypeKind {
	switch lt.t.(type) {
	case *types.IntType:
		return TypeInteger
	case *types.FloatType:
		return TypeFloat
	case *types.PointerType:
		return TypePointer
	case *types.VectorType:
		return TypeVector
	case *types.ArrayType, *types.StructType:
		return TypeAggregate
	default:
		return TypeOther
	}
}

func (lt *llvmType) FloatPrecision() lattice.FloatPrecision {
	ft, ok := lt.t.(*types.FloatType)
	if !ok {
		return lattice.FloatDouble
	}
	switch ft.Kind {
	case types.FloatKindHalf:
		return lattice.FloatHalf
	case types.FloatKindFloat:
		return lattice.FloatSingle
	case types.FloatKindDouble:
		return lattice.FloatDouble
	case types.FloatKindX86FP80:
		return lattice.FloatX86Extended
	case types.FloatKindFP128, types.FloatKindPPCFP128:
		return lattice.FloatQuad
	default:
		return lattice.FloatDouble
	}
}

func (lt *llvmType) ElemType() Type {
	switch t := lt.t.(type) {
	case *types.PointerType:
		return &llvmType{t: t.ElemType}
	case *types.VectorType:
		return &llvmType{t: t.ElemType}
	case *types.ArrayType:
		return &llvmType{t: t.ElemType}
	default:
		return nil
	}
}

func (lt *llvmType) SizeInBits(dl DataLayout) int {
	return dl.SizeOfInBits(lt)
}

func (lt *llvmType) NumFields() int {
	switch t := lt.t.(type) {
	case *types.StructType:
		return len(t.Fields)
	case *types.ArrayType, *types.VectorType:
		return -1
	default:
		return 0
	}
}

func (lt *llvmType) FieldType(i int) (Type, bool) {
	switch t := lt.t.(type) {
	case *types.StructType:
		if i < 0 || i >= len(t.Fields) {
			return nil, false
		}
		return &llvmType{t: t.Fields[i]}, true
	case *types.ArrayType:
		return &llvmType{t: t.ElemType}, true
	case *types.VectorType:
		return &llvmType{t: t.ElemType}, true
	default:
		return nil, false
	}
}

func (lt *llvmType) String() string { return lt.t.String() }

// usersOf lazily builds and caches the reverse use-def map for a
// function: github.com/llir/llvm stores only def-use (operand) edges,
// so the analyzer's "restricted to the current function" user walk
// (spec §4.3.2) needs a use-list built once up front.
func (f *llvmFunction) usersOf(v value.Value) []Value {
	if f.users == nil {
		f.buildUsers()
	}
	return f.users[v]
}

func (f *llvmFunction) buildUsers() {
	f.users = make(map[value.Value][]Value)
	addUse := func(def value.Value, user Value) {
		if def == nil {
			return
		}
		f.users[def] = append(f.users[def], user)
	}
	for _, b := range f.fn.Blocks {
		for _, inst := range b.Insts {
			v, isVal := inst.(value.Value)
			var user Value
			if isVal {
				user = &llvmValue{v: v, f: f}
			}
			switch in := inst.(type) {
			case *ir.InstLoad:
				addUse(in.Src, user)
			case *ir.InstStore:
				addUse(in.Src, user)
				addUse(in.Dst, user)
			case *ir.InstGetElementPtr:
				addUse(in.Src, user)
				for _, idx := range in.Indices {
					addUse(idx, user)
				}
			case *ir.InstPhi:
				for _, inc := range in.Incs {
					addUse(inc.X, user)
				}
			case *ir.InstBitCast:
				addUse(in.From, user)
			case *ir.InstTrunc:
				addUse(in.From, user)
			case *ir.InstZExt:
				addUse(in.From, user)
			case *ir.InstSExt:
				addUse(in.From, user)
			case *ir.InstAddrSpaceCast:
				addUse(in.From, user)
			case *ir.InstFPToUI:
				addUse(in.From, user)
			case *ir.InstFPToSI:
				addUse(in.From, user)
			case *ir.InstUIToFP:
				addUse(in.From, user)
			case *ir.InstSIToFP:
				addUse(in.From, user)
			case *ir.InstPtrToInt:
				addUse(in.From, user)
			case *ir.InstIntToPtr:
				addUse(in.From, user)
			case *ir.InstSelect:
				addUse(in.Cond, user)
				addUse(in.ValueTrue, user)
				addUse(in.ValueFalse, user)
			case *ir.InstExtractElement:
				addUse(in.X, user)
				addUse(in.Index, user)
			case *ir.InstInsertElement:
				addUse(in.X, user)
				addUse(in.Elem, user)
				addUse(in.Index, user)
			case *ir.InstShuffleVector:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstExtractValue:
				addUse(in.X, user)
			case *ir.InstInsertValue:
				addUse(in.X, user)
				addUse(in.Elem, user)
			case *ir.InstFAdd:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstFSub:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstFMul:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstFDiv:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstFRem:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstAdd:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstMul:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstSub:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstUDiv:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstSDiv:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstURem:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstSRem:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstAnd:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstOr:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstXor:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstShl:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstAShr:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstLShr:
				addUse(in.X, user)
				addUse(in.Y, user)
			case *ir.InstCall:
				for _, a := range in.Args {
					addUse(a, user)
				}
			}
		}
		if ret, ok := b.Term.(*ir.TermRet); ok && ret.X != nil {
			addUse(ret.X, nil)
		}
	}
}
