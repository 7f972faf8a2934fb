// Package hostirtest is a minimal, in-memory implementation of the
// hostir contract, built for tests that need to drive the analyzer,
// the inter-procedural cache, and the reverse-mode rewriter against
// small hand-built functions without parsing real LLVM IR text. It
// plays the same role for this repo's tests that a small hand-built
// bytecode chunk plays for a VM's own instruction-dispatch tests.
package hostirtest

import (
	"fmt"

	"sentra-typeanalysis/internal/hostir"
	"sentra-typeanalysis/internal/lattice"
)

// Type is a hand-built IR type.
type Type struct {
	kind   hostir.TypeKind
	prec   lattice.FloatPrecision
	elem   *Type
	count  int     // element count, for an array/vector built via ArrayOf
	fields []*Type // non-nil for a struct; elem+count set instead for array/vector
	bits   int
}

var (
	I1     = &Type{kind: hostir.TypeInteger, bits: 1}
	I32    = &Type{kind: hostir.TypeInteger, bits: 32}
	I64    = &Type{kind: hostir.TypeInteger, bits: 64}
	Float  = &Type{kind: hostir.TypeFloat, prec: lattice.FloatSingle, bits: 32}
	Double = &Type{kind: hostir.TypeFloat, prec: lattice.FloatDouble, bits: 64}
	Void   = &Type{kind: hostir.TypeOther}
)

// PointerTo builds a pointer type to elem.
func PointerTo(elem *Type) *Type {
	return &Type{kind: hostir.TypePointer, elem: elem, bits: 64}
}

// ArrayOf builds a fixed-stride aggregate of n elements of elem.
// NumFields()/FieldType() still treat every index as uniform (-1), the
// same "regular stride" contract a real array or vector type gives
// GEPByteOffset; n only feeds the type's own total size.
func ArrayOf(elem *Type, n int) *Type {
	return &Type{kind: hostir.TypeAggregate, elem: elem, count: n}
}

// StructOf builds a struct aggregate with the given field types in order.
func StructOf(fields ...*Type) *Type {
	return &Type{kind: hostir.TypeAggregate, fields: fields, bits: -1}
}

func (t *Type) Kind() hostir.TypeKind             { return t.kind }
func (t *Type) FloatPrecision() lattice.FloatPrecision { return t.prec }
func (t *Type) ElemType() hostir.Type {
	if t.elem == nil {
		return nil
	}
	return t.elem
}

func (t *Type) SizeInBits(dl hostir.DataLayout) int { return dl.SizeOfInBits(t) }

func (t *Type) NumFields() int {
	if t.fields != nil {
		return len(t.fields)
	}
	if t.kind == hostir.TypeAggregate && t.elem != nil {
		return -1
	}
	return 0
}

func (t *Type) FieldType(i int) (hostir.Type, bool) {
	if t.fields != nil {
		if i < 0 || i >= len(t.fields) {
			return nil, false
		}
		return t.fields[i], true
	}
	if t.kind == hostir.TypeAggregate && t.elem != nil {
		return t.elem, true
	}
	return nil, false
}

// DataLayout is a fixed 64-bit-pointer layout good enough for tests;
// struct fields are sized individually but not padded/aligned, since
// no test scenario here depends on alignment.
type DataLayout struct{ PointerBits int }

func NewDataLayout() *DataLayout { return &DataLayout{PointerBits: 64} }

func (d *DataLayout) SizeOfInBits(t hostir.Type) int {
	ty, ok := t.(*Type)
	if !ok || ty == nil {
		return 0
	}
	switch ty.kind {
	case hostir.TypePointer:
		return d.PointerBits
	case hostir.TypeAggregate:
		if ty.fields != nil {
			total := 0
			for _, f := range ty.fields {
				total += d.SizeOfInBits(f)
			}
			return total
		}
		if ty.elem != nil {
			return ty.count * d.SizeOfInBits(ty.elem)
		}
		return 0
	default:
		return ty.bits
	}
}

func (d *DataLayout) IndexSizeInBits(addrSpace int) int { return d.PointerBits }

// V is a value: a constant, a parameter, or an instruction. One type
// covers all three so test builders don't need parallel hierarchies.
type V struct {
	id       hostir.ValueID
	typ      hostir.Type
	name     string
	constant bool
	constInt int64
	hasInt   bool
	isFn     bool
	users    []hostir.Value

	op         hostir.Opcode
	operands   []hostir.Value
	block      hostir.Block
	inBounds   bool
	gepIdx     []hostir.Value
	gepElem    hostir.Type
	phiInc     []hostir.Incoming
	calleeName string
	callArgs   []hostir.Value
	tbaaTag    string
	accessType hostir.Type
}

func (v *V) ID() hostir.ValueID           { return v.id }
func (v *V) Type() hostir.Type            { return v.typ }
func (v *V) IsConstant() bool             { return v.constant }
func (v *V) ConstantInt() (int64, bool)   { return v.constInt, v.hasInt }
func (v *V) IsFunction() bool             { return v.isFn }
func (v *V) Users() []hostir.Value        { return v.users }
func (v *V) String() string               { return v.name }

func (v *V) Op() hostir.Opcode               { return v.op }
func (v *V) Operands() []hostir.Value        { return v.operands }
func (v *V) Block() hostir.Block             { return v.block }
func (v *V) InBounds() bool                  { return v.inBounds }
func (v *V) GEPIndices() []hostir.Value      { return v.gepIdx }
func (v *V) GEPElemType() hostir.Type        { return v.gepElem }
func (v *V) PHIIncoming() []hostir.Incoming  { return v.phiInc }
func (v *V) CalleeName() string              { return v.calleeName }
func (v *V) CallArgs() []hostir.Value        { return v.callArgs }
func (v *V) TBAATag() string                 { return v.tbaaTag }
func (v *V) AccessType() hostir.Type {
	if v.accessType != nil {
		return v.accessType
	}
	return v.typ
}

// ConstInt builds an integer-constant value, e.g. a GEP index or a
// memcpy length literal.
func ConstInt(typ *Type, n int64) hostir.Value {
	return &V{typ: typ, name: fmt.Sprintf("%d", n), constant: true, hasInt: true, constInt: n, id: -1}
}

// Block is a basic block.
type Block struct {
	id     string
	insts  []hostir.Instruction
	preds  []hostir.Block
	succs  []hostir.Block
	retVal hostir.Value
	isRet  bool
}

func (b *Block) ID() string                    { return b.id }
func (b *Block) Insts() []hostir.Instruction   { return b.insts }
func (b *Block) Preds() []hostir.Block         { return b.preds }
func (b *Block) Succs() []hostir.Block         { return b.succs }
func (b *Block) Args() []hostir.Value          { return nil }
func (b *Block) IsReturn() (hostir.Value, bool) { return b.retVal, b.isRet }

// Function is a hand-built function; dominance is supplied explicitly
// by the test rather than computed, since test graphs are small enough
// to state directly and this package must not depend on internal/domtree.
type Function struct {
	id      hostir.FunctionID
	name    string
	blocks  []hostir.Block
	entry   hostir.Block
	params  []hostir.Value
	retType hostir.Type
	allVals []hostir.Value
	dom     map[string]map[string]bool
}

func (f *Function) ID() hostir.FunctionID { return f.id }
func (f *Function) Name() string          { return f.name }
func (f *Function) Blocks() []hostir.Block { return f.blocks }
func (f *Function) Entry() hostir.Block    { return f.entry }
func (f *Function) Params() []hostir.Value { return f.params }
func (f *Function) ReturnType() hostir.Type { return f.retType }
func (f *Function) AllValues() []hostir.Value { return f.allVals }

func (f *Function) Dominates(a, b hostir.Block) bool {
	if a == nil || b == nil {
		return false
	}
	m := f.dom[a.ID()]
	return m != nil && m[b.ID()]
}

// Module is a hand-built whole-program view for inter-procedural tests.
type Module struct {
	byName map[hostir.FunctionID]hostir.Function
	order  []hostir.Function
}

func NewModule(fns ...hostir.Function) *Module {
	m := &Module{byName: make(map[hostir.FunctionID]hostir.Function)}
	for _, fn := range fns {
		m.byName[fn.ID()] = fn
		m.order = append(m.order, fn)
	}
	return m
}

func (m *Module) Function(id hostir.FunctionID) (hostir.Function, bool) {
	f, ok := m.byName[id]
	return f, ok
}

func (m *Module) Functions() []hostir.Function { return m.order }

// Builder assembles a Function instruction by instruction. ID
// assignment mirrors the real adapter: parameters first, then every
// instruction in block-declaration order.
type Builder struct {
	fn           *Function
	nextID       hostir.ValueID
	cur          *Block
	blocksByName map[string]*Block
}

// NewFunc starts a new function named name, with the given parameter
// types, returning retType.
func NewFunc(name string, retType hostir.Type, paramTypes ...*Type) (*Builder, []hostir.Value) {
	f := &Function{
		id:      hostir.FunctionID(name),
		name:    name,
		retType: retType,
		dom:     make(map[string]map[string]bool),
	}
	b := &Builder{fn: f, blocksByName: make(map[string]*Block)}
	params := make([]hostir.Value, len(paramTypes))
	for i, pt := range paramTypes {
		p := &V{id: b.nextID, typ: pt, name: fmt.Sprintf("%%arg%d", i)}
		b.nextID++
		params[i] = p
	}
	f.params = params
	f.allVals = append(f.allVals, params...)
	return b, params
}

// Block starts (or resumes, if already created) a block named name and
// makes it the current block for subsequent emission. The first block
// created becomes the function's entry.
func (b *Builder) Block(name string) *Builder {
	blk, ok := b.blocksByName[name]
	if !ok {
		blk = &Block{id: name}
		b.fn.blocks = append(b.fn.blocks, blk)
		b.blocksByName[name] = blk
		if b.fn.entry == nil {
			b.fn.entry = blk
		}
	}
	b.cur = blk
	return b
}

// BlockByName returns a previously created block, for callers that
// need to reference a block (e.g. as a Phi incoming predecessor)
// without disturbing the builder's current-block cursor.
func (b *Builder) BlockByName(name string) hostir.Block {
	return b.blocksByName[name]
}

// Link records a direct CFG edge pred -> succ.
func (b *Builder) Link(pred, succ string) *Builder {
	p, s := b.blocksByName[pred], b.blocksByName[succ]
	p.succs = append(p.succs, s)
	s.preds = append(s.preds, p)
	return b
}

// Dominates records that dominator strictly dominates every block
// named in dominated, for Function.Dominates to answer from directly.
func (b *Builder) Dominates(dominator string, dominated ...string) *Builder {
	m := b.fn.dom[dominator]
	if m == nil {
		m = make(map[string]bool)
		b.fn.dom[dominator] = m
	}
	for _, d := range dominated {
		m[d] = true
	}
	return b
}

func (b *Builder) emit(op hostir.Opcode, typ hostir.Type, name string, operands ...hostir.Value) *V {
	v := &V{id: b.nextID, typ: typ, name: name, op: op, operands: operands, block: b.cur}
	b.nextID++
	b.cur.insts = append(b.cur.insts, v)
	b.fn.allVals = append(b.fn.allVals, v)
	return v
}

func (b *Builder) Alloca(name string, elemType *Type) hostir.Value {
	v := b.emit(hostir.OpAlloca, PointerTo(elemType), name)
	v.accessType = elemType
	return v
}

func (b *Builder) Load(name string, ptr hostir.Value, elemType *Type) hostir.Value {
	v := b.emit(hostir.OpLoad, elemType, name, ptr)
	v.accessType = elemType
	return v
}

func (b *Builder) Store(val, ptr hostir.Value) {
	v := b.emit(hostir.OpStore, Void, "", val, ptr)
	v.accessType = val.Type()
}

func (b *Builder) Add(name string, x, y hostir.Value) hostir.Value {
	return b.emit(hostir.OpAdd, x.Type(), name, x, y)
}

func (b *Builder) Sub(name string, x, y hostir.Value) hostir.Value {
	return b.emit(hostir.OpSub, x.Type(), name, x, y)
}

func (b *Builder) Mul(name string, x, y hostir.Value) hostir.Value {
	return b.emit(hostir.OpMul, x.Type(), name, x, y)
}

func (b *Builder) FAdd(name string, x, y hostir.Value) hostir.Value {
	return b.emit(hostir.OpFAdd, x.Type(), name, x, y)
}

func (b *Builder) BitCastPointer(name string, from hostir.Value, toType *Type) hostir.Value {
	return b.emit(hostir.OpBitCastPointer, toType, name, from)
}

// Trunc emits an integer truncation, narrowing from to toType.
func (b *Builder) Trunc(name string, from hostir.Value, toType *Type) hostir.Value {
	return b.emit(hostir.OpTrunc, toType, name, from)
}

func (b *Builder) GEP(name string, base hostir.Value, elemType *Type, resultType *Type, indices ...hostir.Value) hostir.Value {
	operands := append([]hostir.Value{base}, indices...)
	v := b.emit(hostir.OpGetElementPtr, resultType, name, operands...)
	v.gepIdx = indices
	v.gepElem = elemType
	v.inBounds = true
	return v
}

func (b *Builder) Phi(name string, typ hostir.Type, incs ...hostir.Incoming) hostir.Value {
	operands := make([]hostir.Value, len(incs))
	for i, inc := range incs {
		operands[i] = inc.Value
	}
	v := b.emit(hostir.OpPhi, typ, name, operands...)
	v.phiInc = incs
	return v
}

// Call emits a call instruction; Op() is classified from the plain
// callee names memcpy/memmove/malloc/cpuid, as the real adapter's
// classifyCall does for those names (classifyCall also accepts the
// llvm.memcpy/llvm.memmove intrinsic names, which are not recognized
// here), so tests using the plain names exercise the same dispatch
// path as a real module.
func (b *Builder) Call(name, calleeName string, retType hostir.Type, args ...hostir.Value) hostir.Value {
	v := b.emit(hostir.OpCallUser, retType, name, args...)
	v.calleeName = calleeName
	v.callArgs = args
	switch calleeName {
	case "memcpy":
		v.op = hostir.OpCallMemcpy
	case "memmove":
		v.op = hostir.OpCallMemmove
	case "malloc":
		v.op = hostir.OpCallMalloc
	case "cpuid":
		v.op = hostir.OpCallCpuid
	}
	return v
}

// TagTBAA attaches a TBAA tag name to an already-built instruction.
func TagTBAA(v hostir.Value, tag string) {
	if inst, ok := v.(*V); ok {
		inst.tbaaTag = tag
	}
}

func (b *Builder) Ret(val hostir.Value) {
	b.cur.retVal = val
	b.cur.isRet = true
}

// RetVoid marks the current block as a void return.
func (b *Builder) RetVoid() {
	b.cur.isRet = true
}

// Build finalizes the function, populating Users() from every
// instruction's recorded operands.
func (b *Builder) Build() hostir.Function {
	for _, blk := range b.fn.blocks {
		bb := blk.(*Block)
		for _, inst := range bb.insts {
			for _, op := range inst.Operands() {
				if v, ok := op.(*V); ok {
					v.users = append(v.users, inst)
				}
			}
		}
	}
	return b.fn
}
