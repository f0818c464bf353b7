package di

import (
	"strings"

	"surge/internal/mir"
	"surge/internal/types"
)

// insertInstrs inserts instrs at position at within block bb's Instrs
// slice, then shifts every recorded Use/Release in that block whose Index
// is >= at by len(instrs), so existing use-list entries keep pointing at
// the same logical instruction. Returns the shift amount.
func (c *Checker) insertInstrs(bb mir.BlockID, at int, instrs []mir.Instr) int {
	if len(instrs) == 0 {
		return 0
	}
	block := &c.f.Blocks[bb]
	grown := make([]mir.Instr, 0, len(block.Instrs)+len(instrs))
	grown = append(grown, block.Instrs[:at]...)
	grown = append(grown, instrs...)
	grown = append(grown, block.Instrs[at:]...)
	block.Instrs = grown

	shift := len(instrs)
	for i := range c.uses {
		u := &c.uses[i]
		if u.Block == bb && int(u.Index) >= at {
			u.Index += InstrIndex(shift)
		}
	}
	for i := range c.releases {
		r := &c.releases[i]
		if r.Block == bb && int(r.Index) >= at {
			r.Index += InstrIndex(shift)
		}
	}
	return shift
}

// appendUse records a newly synthesized use so later Run iterations
// classify it too (§4.3: "Newly emitted loads/stores are appended to the
// use list").
func (c *Checker) appendUse(u Use) {
	c.uses = append(c.uses, u)
}

// addLocal allocates a fresh function-extent mir.Local, grounded on
// internal/mir/async_lowering_single.go's addLocal helper (the same
// function-scoped-temp idiom, generalized beyond async lowering).
func (c *Checker) addLocal(ty types.TypeID, hint string) mir.LocalID {
	id := mir.LocalID(len(c.f.Locals)) //nolint:gosec // bounded by function size
	c.f.Locals = append(c.f.Locals, mir.Local{
		Type: ty,
		Name: hint,
		Span: c.obj.Span,
	})
	return id
}

// placeType returns the static type of a Place's root local, used when a
// rewrite needs to allocate a temp of the same type. Field/index
// projections are approximated by the root local's type when no narrower
// type is tracked — good enough for a synthetic temp that is immediately
// moved-from and dropped, never read back typed.
func (c *Checker) placeType(p mir.Place) types.TypeID {
	if p.Kind != mir.PlaceLocal || int(p.Local) < 0 || int(p.Local) >= len(c.f.Locals) {
		return types.NoTypeID
	}
	return c.f.Locals[p.Local].Type
}

// windowTrivial reports whether every element in [first, first+count) has
// a trivial (no-op) destructor.
func (c *Checker) windowTrivial(first, count int) bool {
	for i := first; i < first+count; i++ {
		if !c.obj.TrivialType(i) {
			return false
		}
	}
	return true
}

// elementPlace builds the mir.Place the rewrite passes drop/load when
// operating on one element of c.obj: the bare local for a single-element
// object, or a field projection derived from the element's recorded path
// name for an aggregate (self) object.
func (c *Checker) elementPlace(elt int) mir.Place {
	root := mir.Place{Kind: mir.PlaceLocal, Local: c.obj.Local}
	if c.obj.N() <= 1 {
		return root
	}
	prefix := c.obj.Name + "."
	path := c.obj.PathName(elt)
	if !strings.HasPrefix(path, prefix) {
		return root
	}
	root.Proj = []mir.PlaceProj{{Kind: mir.PlaceProjField, FieldName: strings.TrimPrefix(path, prefix)}}
	return root
}

// eraseInstr removes the instruction at position idx within block bb, then
// shifts every recorded Use/Release index in that block greater than idx
// down by one. A Use/Release whose Index was exactly idx (the one being
// erased) is left pointing at idx, i.e. at whichever instruction now
// occupies that slot — the caller is expected to immediately insert
// replacement instructions there.
func (c *Checker) eraseInstr(bb mir.BlockID, idx int) {
	block := &c.f.Blocks[bb]
	block.Instrs = append(block.Instrs[:idx], block.Instrs[idx+1:]...)
	for i := range c.uses {
		u := &c.uses[i]
		if u.Block == bb && int(u.Index) > idx {
			u.Index--
		}
	}
	for i := range c.releases {
		r := &c.releases[i]
		if r.Block == bb && int(r.Index) > idx {
			r.Index--
		}
	}
}

// newBlock appends a fresh, empty block to c.f and grows the per-block
// state cache to match. internal/mir/async_lowering_single.go keeps an
// equivalent helper private to that file's async lowering; internal/di
// needs the same block-splitting idiom for its conditional bitmap/destroy
// rewrites (§4.6, §4.7), so it keeps its own copy built on mir.Func's
// exported fields.
func (c *Checker) newBlock() mir.BlockID {
	id := mir.BlockID(len(c.f.Blocks)) //nolint:gosec // bounded by block count
	c.f.Blocks = append(c.f.Blocks, mir.Block{ID: id, Term: mir.Terminator{Kind: mir.TermNone}})
	c.blocks = append(c.blocks, nil)
	return id
}

// insertDiamond splits block bb at idx into a conditional fork: the
// instructions before idx stay in bb, whose terminator becomes a TermIf on
// cond branching to a fresh "true" block (left empty for the caller to
// populate) or straight through to a fresh continuation block holding the
// instructions from idx onward plus bb's original terminator. Grounded on
// internal/mir/async_lowering_single.go's splitAwaitBlock (same
// prelude/after split, same "allocate two blocks and rewire the
// terminator" shape), generalized from async's fixed Poll wiring to a
// plain runtime conditional.
func (c *Checker) insertDiamond(bb mir.BlockID, idx int, cond mir.Operand) (trueBB, contBB mir.BlockID) {
	block := &c.f.Blocks[bb]
	prelude := append([]mir.Instr(nil), block.Instrs[:idx]...)
	after := append([]mir.Instr(nil), block.Instrs[idx:]...)
	origTerm := block.Term

	trueBB = c.newBlock()
	contBB = c.newBlock()

	block.Instrs = prelude
	block.Term = mir.Terminator{Kind: mir.TermIf, If: mir.IfTerm{Cond: cond, Then: trueBB, Else: contBB}}

	c.f.Blocks[trueBB].Term = mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: contBB}}
	c.f.Blocks[contBB].Instrs = after
	c.f.Blocks[contBB].Term = origTerm

	for i := range c.uses {
		u := &c.uses[i]
		if u.Block == bb && int(u.Index) >= idx {
			u.Block = contBB
			u.Index -= InstrIndex(idx)
		}
	}
	for i := range c.releases {
		r := &c.releases[i]
		if r.Block == bb && int(r.Index) >= idx {
			r.Block = contBB
			r.Index -= InstrIndex(idx)
		}
	}

	c.preds = buildPredecessorIndex(c.f)
	return trueBB, contBB
}
