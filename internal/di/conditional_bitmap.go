package di

import (
	"surge/internal/mir"
	"surge/internal/types"
)

// rewriteConditionalBitmap lowers every Use still carrying InitOrAssign
// after classify (§4.3's default case, the writes whose init-vs-assign
// status genuinely depends on which predecessor path was taken) into a
// runtime check against a per-function liveness bitmap (§4.6): the bitmap
// is allocated and zeroed once, right after c.obj's MarkUninit marker, one
// bit per element. At each ambiguous write, the corresponding bit decides
// at runtime whether the old value needs dropping before the store, and is
// then set unconditionally so a later conditional destroy (§4.7) can read
// it back.
func (c *Checker) rewriteConditionalBitmap() {
	c.allocBitmap()

	// Snapshot indices first: rewriteAmbiguousWrite/setBitsAfterWrite only
	// ever insert instructions, never append further Uses, so the current
	// length of c.uses is stable across this loop.
	n := len(c.uses)
	for i := 0; i < n; i++ {
		u := &c.uses[i]
		if u.Deleted {
			continue
		}
		switch u.Kind {
		case InitOrAssign:
			c.rewriteAmbiguousWrite(u)
		case Initialization, Assign, PartialStore:
			c.setBitsAfterWrite(u)
		}
	}
}

// setBitsAfterWrite marks element(s) [FirstElement, FirstElement+NumElements)
// live in the bitmap right after a write already resolved (statically or by
// rewriteAmbiguousWrite) to Initialization/Assign/PartialStore.
func (c *Checker) setBitsAfterWrite(u *Use) {
	idx := int(u.Index)
	block := &c.f.Blocks[u.Block]
	if idx < 0 || idx >= len(block.Instrs) || block.Instrs[idx].Kind != mir.InstrAssign {
		return
	}
	insertAt := idx + 1
	if u.Kind == Assign && !c.windowTrivial(u.FirstElement, u.NumElements) {
		// lowerAssign expanded this into load-old/store/drop-old.
		insertAt = idx + 3
	}
	ty := c.bitmapType()
	c.insertInstrs(u.Block, insertAt, c.emitSetBitMaskInstrs(maskRange(u.FirstElement, u.NumElements), ty))
}

// maskRange returns the bitmask covering elements [first, first+count).
func maskRange(first, count int) uint64 {
	var m uint64
	for i := first; i < first+count; i++ {
		m |= uint64(1) << uint(i) //nolint:gosec // element count is safecast.Conv[uint8]-checked
	}
	return m
}

func (c *Checker) bitmapType() types.TypeID {
	if c.types == nil {
		return types.NoTypeID
	}
	return c.types.Builtins().Uint
}

func (c *Checker) boolType() types.TypeID {
	if c.types == nil {
		return types.NoTypeID
	}
	return c.types.Builtins().Bool
}

// allocBitmap allocates the function-extent bitmap local and zeroes it
// immediately after c.obj's MarkUninit marker.
func (c *Checker) allocBitmap() {
	ty := c.bitmapType()
	c.bitmapLocal = c.addLocal(ty, "di_bitmap")

	bb, idx := c.findMarkUninit()
	if bb == mir.NoBlockID {
		return
	}
	zero := mir.Instr{
		Kind: mir.InstrAssign,
		Assign: mir.AssignInstr{
			Dst: mir.Place{Kind: mir.PlaceLocal, Local: c.bitmapLocal},
			Src: mir.RValue{Kind: mir.RValueUse, Use: mir.Operand{
				Kind: mir.OperandConst, Type: ty,
				Const: mir.Const{Kind: mir.ConstUint, Type: ty},
			}},
		},
	}
	c.insertInstrs(bb, idx+1, []mir.Instr{zero})
}

// findMarkUninit locates the InstrMarkUninit marker for c.obj.Local.
func (c *Checker) findMarkUninit() (mir.BlockID, int) {
	for bi := range c.f.Blocks {
		block := &c.f.Blocks[bi]
		for ii := range block.Instrs {
			if block.Instrs[ii].Kind == mir.InstrMarkUninit && block.Instrs[ii].MarkUninit.Local == c.obj.Local {
				return mir.BlockID(bi), ii //nolint:gosec // bounded by block count
			}
		}
	}
	return mir.NoBlockID, 0
}

// rewriteAmbiguousWrite replaces u's InstrAssign with a runtime diamond:
// drop the old value when the element's bit is already set, then perform
// the store unconditionally on both paths, then set the bit.
func (c *Checker) rewriteAmbiguousWrite(u *Use) {
	idx := int(u.Index)
	block := &c.f.Blocks[u.Block]
	if idx < 0 || idx >= len(block.Instrs) || block.Instrs[idx].Kind != mir.InstrAssign {
		invariant(c.f.Name, "rewriteAmbiguousWrite: use does not reference an InstrAssign")
	}

	elt := u.FirstElement
	trivial := c.windowTrivial(u.FirstElement, u.NumElements)
	ty := c.bitmapType()

	cond := c.emitBitTest(u.Block, idx, elt, ty)
	idx = int(u.Index) // emitBitTest inserted instructions ahead of it

	var trueBody []mir.Instr
	if !trivial {
		dst := block.Instrs[idx].Assign.Dst
		oldTmp := c.addLocal(c.placeType(dst), "di_old")
		trueBody = []mir.Instr{
			{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
				Dst: mir.Place{Kind: mir.PlaceLocal, Local: oldTmp},
				Src: mir.RValue{Kind: mir.RValueUse, Use: mir.Operand{Kind: mir.OperandMove, Type: c.placeType(dst), Place: dst}},
			}},
			{Kind: mir.InstrDrop, Drop: mir.DropInstr{Place: mir.Place{Kind: mir.PlaceLocal, Local: oldTmp}}},
		}
	}

	trueBB, contBB := c.insertDiamond(u.Block, idx, cond)
	c.f.Blocks[trueBB].Instrs = trueBody

	// contBB's instruction 0 is now the original store (the "after" slice
	// started at idx, which was the store). Set the bit right after it.
	c.insertInstrs(contBB, 1, c.emitSetBitMaskInstrs(uint64(1)<<uint(elt), ty)) //nolint:gosec // elt bounded by object element count

	u.Block = contBB
	u.Index = 0
	u.Kind = Assign
}

// emitBitTest inserts the lshr/trunc pair that extracts element elt's bit
// out of the bitmap as a bool, immediately before idx in bb, and returns an
// Operand referring to the resulting bool temp.
func (c *Checker) emitBitTest(bb mir.BlockID, idx, elt int, bitmapTy types.TypeID) mir.Operand {
	boolTy := c.boolType()
	shiftedTmp := c.addLocal(bitmapTy, "di_shifted")
	bitTmp := c.addLocal(boolTy, "di_bit")

	shift := mir.Instr{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
		Dst: mir.Place{Kind: mir.PlaceLocal, Local: shiftedTmp},
		Src: mir.RValue{Kind: mir.RValueBitOp, BitOp: mir.BitOp{
			Op:    mir.BitOpLshr,
			Value: mir.Operand{Kind: mir.OperandCopy, Type: bitmapTy, Place: mir.Place{Kind: mir.PlaceLocal, Local: c.bitmapLocal}},
			Operand: mir.Operand{Kind: mir.OperandConst, Type: bitmapTy,
				Const: mir.Const{Kind: mir.ConstUint, Type: bitmapTy, UintValue: uint64(elt)}}, //nolint:gosec // elt bounded by object element count
		}},
	}}
	trunc := mir.Instr{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
		Dst: mir.Place{Kind: mir.PlaceLocal, Local: bitTmp},
		Src: mir.RValue{Kind: mir.RValueBitOp, BitOp: mir.BitOp{
			Op:    mir.BitOpTrunc,
			Value: mir.Operand{Kind: mir.OperandCopy, Type: bitmapTy, Place: mir.Place{Kind: mir.PlaceLocal, Local: shiftedTmp}},
		}},
	}}
	c.insertInstrs(bb, idx, []mir.Instr{shift, trunc})
	return mir.Operand{Kind: mir.OperandCopy, Type: boolTy, Place: mir.Place{Kind: mir.PlaceLocal, Local: bitTmp}}
}

// emitSetBitMaskInstrs returns the single instruction that ORs mask into
// the bitmap.
func (c *Checker) emitSetBitMaskInstrs(mask uint64, ty types.TypeID) []mir.Instr {
	maskOp := mir.Operand{Kind: mir.OperandConst, Type: ty, Const: mir.Const{Kind: mir.ConstUint, Type: ty, UintValue: mask}}
	return []mir.Instr{{
		Kind: mir.InstrAssign,
		Assign: mir.AssignInstr{
			Dst: mir.Place{Kind: mir.PlaceLocal, Local: c.bitmapLocal},
			Src: mir.RValue{Kind: mir.RValueBitOp, BitOp: mir.BitOp{
				Op:      mir.BitOpOr,
				Value:   mir.Operand{Kind: mir.OperandCopy, Type: ty, Place: mir.Place{Kind: mir.PlaceLocal, Local: c.bitmapLocal}},
				Operand: maskOp,
			}},
		},
	}}
}
