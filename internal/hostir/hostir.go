// Package hostir defines the abstract view of the host SSA IR that
// components C, D, and E consume (spec §6: "The core consumes from
// its host IR library ... only the abstract operations we consume are
// specified"). llvm.go adapts github.com/llir/llvm's concrete IR to
// this contract; nothing outside this package imports llir/llvm
// directly except cmd/typeanalyze, which only needs it to parse a
// textual module before handing a Function to the analyzer.
package hostir

import "sentra-typeanalysis/internal/lattice"

// ValueID is a stable per-function identifier for an SSA value.
// Per spec §9's design note, facts are keyed by this integer index
// rather than by pointer identity, so re-enqueueing a value never
// invalidates an outstanding reference even while the host IR's own
// value objects are still being constructed.
type ValueID int

// FunctionID identifies a function across the whole module, used as
// half of the inter-procedural cache key (component D).
type FunctionID string

// Opcode enumerates the instruction kinds spec §4.3.3's transfer-
// function table is exhaustive over.
type Opcode int

const (
	OpOther Opcode = iota
	OpAlloca
	OpLoad
	OpStore
	OpGetElementPtr
	OpPhi
	OpTrunc
	OpZExt
	OpSExt
	OpAddrSpaceCast
	OpFPToUI
	OpFPToSI
	OpUIToFP
	OpSIToFP
	OpPtrToInt
	OpIntToPtr
	OpBitCastScalar
	OpBitCastPointer
	OpSelect
	OpExtractElement
	OpInsertElement
	OpShuffleVector
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFRem
	OpAdd
	OpMul
	OpSub
	OpUDiv
	OpSDiv
	OpURem
	OpSRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpAShr
	OpLShr
	OpCallMemcpy
	OpCallMemmove
	OpCallMalloc
	OpCallCpuid
	OpCallUser
	OpExtractValue
	OpInsertValue
)

// Value is an SSA value: an instruction result or a function
// argument. Constants and function handles implement it too so the
// analyzer can recognize and skip them in update() (spec §4.3.2).
type Value interface {
	ID() ValueID
	Type() Type
	// IsConstant reports whether this value is a compile-time
	// constant (update() skips constants per spec §4.3.2).
	IsConstant() bool
	// ConstantInt returns the constant's integer value and true, if
	// this value is an integer constant; used by component D's query
	// for the literal classification rule (spec §4.4).
	ConstantInt() (int64, bool)
	// IsFunction reports whether this value names a function handle
	// (also skipped by update()).
	IsFunction() bool
	// Users returns this value's users, restricted by the analyzer to
	// the current function (spec §4.3.2).
	Users() []Value
	String() string
}

// TypeKind classifies a static IR type for KindOfIRType (spec §6).
type TypeKind int

const (
	TypeInteger TypeKind = iota
	TypeFloat
	TypePointer
	TypeVector
	TypeAggregate
	TypeOther
)

// Type is a value's static IR type.
type Type interface {
	Kind() TypeKind
	// FloatPrecision is valid only when Kind() == TypeFloat.
	FloatPrecision() lattice.FloatPrecision
	// ElemType is the pointee type when Kind() == TypePointer, or the
	// element type when Kind() == TypeVector.
	ElemType() Type
	// SizeInBits reports the type's size via the data layout (spec
	// §6: "sizeOfInBits(T)").
	SizeInBits(dl DataLayout) int
	// NumFields is only meaningful when Kind() == TypeAggregate: -1 for
	// an array/vector's uniform repeating element, or the fixed field
	// count of a struct. It lets GEPByteOffset (spec §6's data-layout
	// oracle) walk nested aggregate offsets through this interface
	// alone, without downcasting to a concrete host-IR type.
	NumFields() int
	// FieldType returns the type found at aggregate index i: the i'th
	// struct field, or an array/vector's uniform element type
	// (regardless of i). ok is false when i is out of range or the
	// receiver is not an aggregate.
	FieldType(i int) (t Type, ok bool)
}

// Instruction is an SSA instruction: its opcode, operand list, and
// (for value-producing instructions) its Value identity.
type Instruction interface {
	Value
	Op() Opcode
	Operands() []Value
	// Block is the owning basic block.
	Block() Block
	// InBounds reports the GEP inbounds flag (only meaningful for
	// OpGetElementPtr).
	InBounds() bool
	// GEPIndices returns the index operands of a GetElementPtr in
	// operand order (a GEP's first "operand" in Operands() is its
	// base pointer; GEPIndices excludes it).
	GEPIndices() []Value
	// GEPElemType returns the pointee type a GetElementPtr indexes
	// into (only meaningful for OpGetElementPtr).
	GEPElemType() Type
	// PHIIncoming returns, for OpPhi, the incoming (value, predecessor
	// block) pairs in declared order.
	PHIIncoming() []Incoming
	// CalleeName names the callee of a call instruction, used to
	// recognize memcpy/memmove/malloc/cpuid intrinsics (spec §4.3.3).
	CalleeName() string
	// CallArgs returns a call's argument list.
	CallArgs() []Value
	// TBAATag returns the TBAA metadata tag name attached to this
	// instruction, or "" if none (spec §4.3.6).
	TBAATag() string
	// AccessType returns the declared type of the instruction's memory
	// access (load/store/alloca/memcpy length). The analyzer does not
	// call it; stores are not bounded by an access size (spec §9).
	AccessType() Type
}

// Incoming pairs a phi's incoming value with the predecessor block it
// flows in from.
type Incoming struct {
	Value Value
	Pred  Block
}

// Block is a basic block: an ordered instruction list plus
// predecessor/successor edges for the reverse-mode rewriter.
type Block interface {
	ID() string
	Insts() []Instruction
	Preds() []Block
	Succs() []Block
	// Args returns this block's formal arguments (for IR dialects with
	// block arguments rather than only entry-function arguments; for a
	// plain LLVM function this is empty except for the entry block,
	// which takes the function's Params instead).
	Args() []Value
	// IsReturn reports whether this block ends in a return with no
	// successors (spec §4.5 step 3) and, if so, the returned value (nil
	// for a void return).
	IsReturn() (Value, bool)
}

// Function is a function: ordered blocks, ordered arguments, and a
// read-only dominator tree.
type Function interface {
	ID() FunctionID
	Name() string
	Blocks() []Block
	Entry() Block
	Params() []Value
	ReturnType() Type
	// Dominates reports whether a strictly dominates b (read-only
	// dominator-tree query, spec §3.3).
	Dominates(a, b Block) bool
	// AllValues returns every instruction result and argument in the
	// function, used to seed the initial worklist (spec §4.3.1).
	AllValues() []Value
}

// DataLayout is the data-layout oracle of spec §6.
type DataLayout interface {
	SizeOfInBits(t Type) int
	IndexSizeInBits(addrSpace int) int
}

// Module is the whole-program view component D needs to resolve a
// call instruction's callee name to an analyzable Function (spec
// §4.4).
type Module interface {
	// Function looks up a function definition by ID, e.g. its name.
	// ok is false for external declarations (intrinsics, libc) and any
	// name the module does not define.
	Function(id FunctionID) (Function, bool)
	Functions() []Function
}
