package di

import "surge/internal/mir"

// lowerAssign replaces an InstrAssign already classified Initialization or
// Assign with its concrete lowering (§4.5). Initialization, or any
// trivially-destructed window, needs nothing beyond the retag already
// performed by the caller. Assign over a non-trivial window is expanded
// into load-old/store/drop-old.
func (c *Checker) lowerAssign(u *Use) {
	block := &c.f.Blocks[u.Block]
	idx := int(u.Index)
	if idx < 0 || idx >= len(block.Instrs) {
		invariant(c.f.Name, "lowerAssign: use index %d out of range", idx)
	}
	if block.Instrs[idx].Kind != mir.InstrAssign {
		invariant(c.f.Name, "lowerAssign: use does not reference an InstrAssign")
	}

	if u.Kind == Initialization || c.windowTrivial(u.FirstElement, u.NumElements) {
		return
	}

	orig := block.Instrs[idx].Assign
	dst := orig.Dst
	ty := c.placeType(dst)
	tmp := c.addLocal(ty, "di_old")

	loadOld := mir.Instr{
		Kind: mir.InstrAssign,
		Assign: mir.AssignInstr{
			Dst: mir.Place{Kind: mir.PlaceLocal, Local: tmp},
			Src: mir.RValue{Kind: mir.RValueUse, Use: mir.Operand{Kind: mir.OperandMove, Type: ty, Place: dst}},
		},
	}
	store := mir.Instr{Kind: mir.InstrAssign, Assign: orig}
	dropOld := mir.Instr{Kind: mir.InstrDrop, Drop: mir.DropInstr{Place: mir.Place{Kind: mir.PlaceLocal, Local: tmp}}}

	block.Instrs[idx] = loadOld
	c.insertInstrs(u.Block, idx+1, []mir.Instr{store, dropOld})
}
