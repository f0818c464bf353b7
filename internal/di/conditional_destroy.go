package di

import "surge/internal/mir"

// rewriteConditionalDestroys lowers every recorded Release for c.obj into
// its concrete destroy sequence (§4.7). An element statically No at the
// release point needs nothing; an element statically Yes gets an
// unconditional InstrDrop; an element still Partial gets a runtime check
// against the bitmap rewriteConditionalBitmap maintains. A self object
// left anything-but-fully-Yes at a release is additionally reported via
// DIObjectNotFullyInitializedBeforeFailure.
func (c *Checker) rewriteConditionalDestroys() {
	for i := range c.releases {
		c.rewriteRelease(&c.releases[i])
	}
}

func (c *Checker) rewriteRelease(rel *Release) {
	idx := int(rel.Index)
	block := &c.f.Blocks[rel.Block]
	if idx < 0 || idx > len(block.Instrs) {
		invariant(c.f.Name, "rewriteRelease: release index %d out of range", idx)
	}

	avail := c.LivenessAt(rel.Block, idx, 0, c.obj.N())

	var staticDrops, partialElts []int
	incomplete := false
	for i := 0; i < c.obj.N(); i++ {
		o := avail.Get(i)
		kind := Yes
		if !o.IsUnknown() {
			kind = o.Kind()
		} else {
			incomplete = true
		}
		switch kind {
		case No:
			incomplete = true
		case Yes:
			if !c.obj.TrivialType(i) {
				staticDrops = append(staticDrops, i)
			}
		default: // Partial
			incomplete = true
			partialElts = append(partialElts, i)
		}
	}

	if c.obj.Role.isSelf() && incomplete {
		c.diagObjectNotFullyInitializedBeforeFailure(rel)
	}

	// The original Release (InstrDrop/InstrEndBorrow over the whole
	// object) is fully superseded by the element-wise drops below.
	c.eraseInstr(rel.Block, idx)

	for _, elt := range staticDrops {
		drop := mir.Instr{Kind: mir.InstrDrop, Drop: mir.DropInstr{Place: c.elementPlace(elt)}}
		c.insertInstrs(rel.Block, int(rel.Index), []mir.Instr{drop})
	}

	if len(partialElts) == 0 || c.disableConditionalDestroy {
		return
	}

	ty := c.bitmapType()
	for _, elt := range partialElts {
		cond := c.emitBitTest(rel.Block, int(rel.Index), elt, ty)
		trueBB, contBB := c.insertDiamond(rel.Block, int(rel.Index), cond)
		_ = contBB
		c.f.Blocks[trueBB].Instrs = []mir.Instr{
			{Kind: mir.InstrDrop, Drop: mir.DropInstr{Place: c.elementPlace(elt)}},
		}
	}
}
