package di

import "surge/internal/mir"

// UseKind classifies how an instruction touches a MemoryObject.
type UseKind uint8

const (
	// Load reads an element; requires it to be fully Yes.
	Load UseKind = iota
	// IndirectIn passes an element by immutable reference; same
	// requirement as Load.
	IndirectIn
	// InOutUse passes an element by mutable reference; requires Yes and no
	// `let` element in the touched window.
	InOutUse
	// Initialization is a store into a definitely-uninitialized element.
	Initialization
	// Assign is a store that overwrites an already-initialized element
	// (the old value must be released first).
	Assign
	// InitOrAssign is a store whose classification (Initialization vs.
	// Assign) depends on dataflow and is resolved during classify.
	InitOrAssign
	// PartialStore stores into exactly one element of a multi-element
	// aggregate (e.g. `self.field = x`).
	PartialStore
	// Escape is an address-of or other use that lets the element's address
	// outlive the current instruction (taken address, global capture).
	Escape
	// SuperInit marks a call to the parent initializer
	// (DerivedClassSelf only).
	SuperInit
	// SelfInit marks a call to self.init (DelegatingSelf only).
	SelfInit
)

// InstrIndex locates an instruction within a block's Instrs slice. A value
// equal to the block's instruction count means "at the terminator", and a
// value recorded as deleted (see Use.Deleted) means the use no longer
// applies (its instruction was rewritten away by lower/assign lowering).
type InstrIndex int

// Use is a record, attached to an instruction, that touches a
// MemoryObject.
type Use struct {
	Block        mir.BlockID
	Index        InstrIndex
	Kind         UseKind
	FirstElement int
	NumElements  int

	// Deleted marks a use whose originating instruction was rewritten away
	// (e.g. an InitOrAssign lowered to a plain store is kept as
	// Initialization/Assign and never deleted; but a use synthesized then
	// superseded during conditional-bitmap rewriting is marked deleted so
	// later iteration skips it).
	Deleted bool
}

// Release is an InstrDrop/InstrEndBorrow instruction that terminates (part
// of) a MemoryObject's lifetime.
type Release struct {
	Block mir.BlockID
	Index InstrIndex
}
