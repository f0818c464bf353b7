package di

import (
	"surge/internal/mir"
	"surge/internal/source"
)

// MemoryObjectRole distinguishes the shape of memory object a Checker
// tracks, mirroring mir.MarkUninitKind plus the plain-local/global cases
// that never go through a MarkUninit marker (function parameters are
// always fully initialized on entry, so they never need a MemoryObject).
type MemoryObjectRole uint8

const (
	// LocalVar is a plain local variable declared without an initializer.
	LocalVar MemoryObjectRole = iota
	// GlobalVar is a module-level global declared without an initializer.
	GlobalVar
	// RootClassSelf is the self of a root struct/enum/class initializer
	// with no base type and no delegation.
	RootClassSelf
	// DerivedClassSelf is the self of a derived-class initializer; element
	// N-1 is the synthetic super-init-called flag.
	DerivedClassSelf
	// DelegatingSelf is the self of an initializer that delegates via
	// self.init rather than initializing fields directly.
	DelegatingSelf
)

func (r MemoryObjectRole) isSelf() bool {
	switch r {
	case RootClassSelf, DerivedClassSelf, DelegatingSelf:
		return true
	}
	return false
}

// element describes one tracked sub-element of a MemoryObject.
type element struct {
	pathName string
	isLet    bool
	trivial  bool
}

// MemoryObject identifies one mir.Local (or mir.GlobalID) together with its
// decomposition into N elements. Element 0 is the whole object itself when
// the object has no sub-fields (N == 1, the common case for plain
// variables); for a self receiver with stored properties, elements 0..k-1
// are the stored properties in declaration order as observed by the
// Collector, and for DerivedClassSelf element N-1 is the synthetic
// super-init-called flag.
type MemoryObject struct {
	Local mir.LocalID
	Name  string
	Span  source.Span
	Role  MemoryObjectRole

	elems []element
}

// N returns the number of tracked elements.
func (m *MemoryObject) N() int {
	if m == nil {
		return 0
	}
	return len(m.elems)
}

// ElementIsLet reports whether element i may be initialized at most once.
func (m *MemoryObject) ElementIsLet(i int) bool {
	if m == nil || i < 0 || i >= len(m.elems) {
		return false
	}
	return m.elems[i].isLet
}

// TrivialType reports whether element i's type has a no-op destructor.
func (m *MemoryObject) TrivialType(i int) bool {
	if m == nil || i < 0 || i >= len(m.elems) {
		return true
	}
	return m.elems[i].trivial
}

// PathName returns a human-readable access path for element i, for use in
// diagnostics.
func (m *MemoryObject) PathName(i int) string {
	if m == nil || i < 0 || i >= len(m.elems) {
		return "<unknown>"
	}
	return m.elems[i].pathName
}

// SuperInitElement returns the index of the synthetic super-init-called
// element for a DerivedClassSelf object, or -1 if Role isn't
// DerivedClassSelf.
func (m *MemoryObject) SuperInitElement() int {
	if m == nil || m.Role != DerivedClassSelf {
		return -1
	}
	return len(m.elems) - 1
}

// NewPlainObject builds a single-element MemoryObject for a plain local or
// global variable (the overwhelmingly common case: surge has no class
// hierarchy in its frontend today, so every MarkUninitVar marker decomposes
// to exactly one element).
func NewPlainObject(local mir.LocalID, name string, span source.Span, isLet, trivial bool) *MemoryObject {
	return &MemoryObject{
		Local: local,
		Name:  name,
		Span:  span,
		Role:  LocalVar,
		elems: []element{{pathName: name, isLet: isLet, trivial: trivial}},
	}
}

// NewAggregateObject builds a multi-element MemoryObject for a self
// receiver (or any other aggregate memory object) whose stored elements
// were discovered by the Collector from the place projections actually
// used in the function body. For a DerivedClassSelf, callers append the
// synthetic super-init element themselves via AddSuperInitElement.
func NewAggregateObject(local mir.LocalID, name string, span source.Span, role MemoryObjectRole, fields []FieldDecl) *MemoryObject {
	obj := &MemoryObject{Local: local, Name: name, Span: span, Role: role}
	for _, f := range fields {
		obj.elems = append(obj.elems, element{pathName: name + "." + f.Name, isLet: f.IsLet, trivial: f.Trivial})
	}
	return obj
}

// FieldDecl describes one stored field of an aggregate memory object, as
// discovered by the Collector.
type FieldDecl struct {
	Name    string
	IsLet   bool
	Trivial bool
}

// AddSuperInitElement appends the synthetic super-init-called flag element
// used by DerivedClassSelf objects (§3: "a synthetic trailing
// super-init-called element").
func (m *MemoryObject) AddSuperInitElement() {
	if m == nil {
		return
	}
	m.elems = append(m.elems, element{pathName: "<super.init>", isLet: false, trivial: true})
}
