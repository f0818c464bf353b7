package di

import "surge/internal/mir"

// LivenessAt returns the availability of each element in
// [firstElt, firstElt+numElts) immediately before the instruction at
// (bb, idx) executes (idx == len(block.Instrs) means "before the
// terminator"). See §4.2.
func (c *Checker) LivenessAt(bb mir.BlockID, idx int, firstElt, numElts int) AvailabilitySet {
	if numElts == 0 {
		return NewAvailabilitySet(0)
	}
	if c.obj.N() == 1 && firstElt == 0 && numElts == 1 {
		out := NewAvailabilitySet(1)
		out.Set(0, c.livenessAt1(bb, idx))
		return out
	}

	local := c.localScan(bb, idx, firstElt, numElts)
	result := NewAvailabilitySet(numElts)
	var needPred []int
	for i := 0; i < numElts; i++ {
		o := local.Get(i)
		if o.IsUnknown() {
			needPred = append(needPred, i)
			continue
		}
		result.Set(i, o)
	}
	if len(needPred) > 0 {
		out := c.LiveOut(bb)
		for _, i := range needPred {
			result.Set(i, out.Get(firstElt+i))
		}
	}
	// Unreachable-cycle rescue (§4.2 step 5): anything still Unknown can
	// only be dead code inside a loop not dominated by the object's
	// definition.
	for i := 0; i < numElts; i++ {
		if result.Get(i).IsUnknown() {
			result.Set(i, Known(Yes))
		}
	}
	return result
}

// livenessAt1 is the single-element fast path (§4.2): identical contract to
// LivenessAt with numElts==1, expressed directly over Optional rather than
// going through an AvailabilitySet for the common case of a plain
// non-aggregate local.
func (c *Checker) livenessAt1(bb mir.BlockID, idx int) Optional {
	o := c.localScan1(bb, idx)
	if o.IsUnknown() {
		o = c.liveOut1(bb)
	}
	if o.IsUnknown() {
		return Known(Yes)
	}
	return o
}

// localScan reverse-scans block bb's instructions before idx, resolving
// each element in [firstElt, firstElt+numElts) to the fact established by
// the first (nearest to idx) non-load use that covers it. Elements no
// instruction in this window settles stay Unknown.
func (c *Checker) localScan(bb mir.BlockID, idx int, firstElt, numElts int) AvailabilitySet {
	out := NewAvailabilitySet(numElts)
	if !c.block(bb).hasNonLoadUse {
		return out
	}
	block := &c.f.Blocks[bb]
	for i := idx - 1; i >= 0; i-- {
		ins := &block.Instrs[i]
		elt, count, kind, ok := c.localFactFor(ins, bb, InstrIndex(i)) //nolint:gosec // bounded by instruction count
		if !ok {
			continue
		}
		for e := elt; e < elt+count; e++ {
			if e < firstElt || e >= firstElt+numElts {
				continue
			}
			rel := e - firstElt
			if !out.Get(rel).IsUnknown() {
				continue
			}
			out.Set(rel, Known(kind))
		}
	}
	return out
}

func (c *Checker) localScan1(bb mir.BlockID, idx int) Optional {
	out := c.localScan(bb, idx, 0, 1)
	return out.Get(0)
}

// localFactFor inspects one instruction and reports which elements (if
// any) it settles and to which DIKind, for the current object's local.
// MarkUninit settles its elements to No; any other write settles its
// elements to Yes (the write itself is only valid MIR if a prior use
// already required those elements to be live, per the classifier — the
// local scan just reports the post-condition).
func (c *Checker) localFactFor(ins *mir.Instr, bb mir.BlockID, idx InstrIndex) (elt, count int, kind DIKind, ok bool) {
	switch ins.Kind {
	case mir.InstrMarkUninit:
		if ins.MarkUninit.Local != c.obj.Local {
			return 0, 0, 0, false
		}
		return 0, c.obj.N(), No, true
	case mir.InstrAssign:
		dst := ins.Assign.Dst
		if dst.Kind != mir.PlaceLocal || dst.Local != c.obj.Local {
			return 0, 0, 0, false
		}
		if len(dst.Proj) == 0 {
			return 0, c.obj.N(), Yes, true
		}
		e := elementIndexForProj(c.obj, dst.Proj)
		return e, 1, Yes, true
	case mir.InstrCall:
		if !callArgTouchesLocal(ins, c.obj.Local) {
			return 0, 0, 0, false
		}
		switch ins.Call.Kind {
		case mir.CallSuperInit:
			if c.obj.Role != DerivedClassSelf {
				return 0, 0, 0, false
			}
			return c.obj.SuperInitElement(), 1, Yes, true
		case mir.CallSelfInit:
			if c.obj.Role != DelegatingSelf {
				return 0, 0, 0, false
			}
			return 0, 1, Yes, true
		default:
			return 0, 0, 0, false
		}
	default:
		return 0, 0, 0, false
	}
}

// LiveOut returns the memoized live-out availability of bb (§4.8).
func (c *Checker) LiveOut(bb mir.BlockID) AvailabilitySet {
	state := c.block(bb)
	switch state.loState {
	case LOKnown:
		return state.liveOut
	case LOInProgress:
		return NewAvailabilitySet(c.obj.N())
	}

	state.loState = LOInProgress
	merged := NewAvailabilitySet(c.obj.N())
	for _, pred := range c.preds[bb] {
		merged = MergeSets(merged, c.LiveOut(pred))
	}
	localEnd := c.localScan(bb, len(c.f.Blocks[bb].Instrs), 0, c.obj.N())
	for i := 0; i < c.obj.N(); i++ {
		if o := localEnd.Get(i); !o.IsUnknown() {
			merged.Set(i, o)
		}
	}

	if !merged.ContainsUnknown(0, c.obj.N()) {
		state.liveOut = merged
		state.loState = LOKnown
	} else {
		state.loState = LOUnknown
	}
	return merged
}

func (c *Checker) liveOut1(bb mir.BlockID) Optional {
	return c.LiveOut(bb).Get(0)
}
