package di

import "surge/internal/mir"

// classify dispatches on u.Kind, resolving ambiguous uses and diagnosing or
// rewriting as needed (§4.3). The use list may grow as assigns are lowered;
// Run iterates by index so newly appended uses are visited too.
func (c *Checker) classify(u *Use) {
	switch u.Kind {
	case Initialization, Assign:
		// Already resolved; nothing to check.
		return

	case InitOrAssign:
		c.classifyInitOrAssign(u)

	case PartialStore:
		c.classifyPartialStore(u)

	case Load, IndirectIn:
		c.classifyLoad(u)

	case InOutUse:
		c.classifyInOut(u)

	case Escape:
		c.classifyEscape(u)

	case SuperInit:
		c.classifySuperInit(u)

	case SelfInit:
		c.classifySelfInit(u)
	}
}

func (c *Checker) classifyInitOrAssign(u *Use) {
	avail := c.LivenessAt(u.Block, int(u.Index), u.FirstElement, u.NumElements)
	if u.NumElements == 1 && c.obj.ElementIsLet(u.FirstElement) {
		if cur := avail.Get(0); !cur.IsUnknown() && cur.Kind() != No {
			c.diagImmutablePropertyAlreadyInitialized(u, u.FirstElement)
			return
		}
	}
	switch {
	case avail.AllYes(0, u.NumElements):
		u.Kind = Assign
		c.lowerAssign(u)
	case avail.AllNo(0, u.NumElements):
		u.Kind = Initialization
		c.lowerAssign(u)
	default:
		if c.disableConditionalDestroy {
			c.diagAmbiguousInitializationRequiresRuntimeCheck(u)
			return
		}
		c.hasConditionalRewrites = true
	}
}

// classifyPartialStore handles a store through a projection deeper than one
// field (collect.go only ever produces PartialStore for those); a direct
// single-field store is classified as InitOrAssign instead and never reaches
// here.
func (c *Checker) classifyPartialStore(u *Use) {
	if u.NumElements != 1 {
		invariant(c.f.Name, "PartialStore with NumElements=%d, want 1", u.NumElements)
	}
	elt := u.FirstElement
	cur := c.LivenessAt(u.Block, int(u.Index), elt, 1).Get(0)
	if c.obj.ElementIsLet(elt) {
		if !cur.IsUnknown() && cur.Kind() != No {
			c.diagImmutablePropertyAlreadyInitialized(u, elt)
			return
		}
		if c.warnOnPartialStoreIntoLet {
			c.diagPartialStoreIntoLet(u, elt)
		}
	}

	whole := c.LivenessAt(u.Block, int(u.Index), 0, c.obj.N())
	for i := 0; i < c.obj.N(); i++ {
		if i == elt {
			continue
		}
		o := whole.Get(i)
		if o.IsUnknown() || o.Kind() != Yes {
			c.diagStructNotFullyInitialized(u)
			return
		}
	}
}

func (c *Checker) classifyLoad(u *Use) {
	avail := c.LivenessAt(u.Block, int(u.Index), u.FirstElement, u.NumElements)
	if avail.AllYes(0, u.NumElements) {
		return
	}
	c.diagnoseLoadFailure(u, avail)
}

func (c *Checker) classifyInOut(u *Use) {
	avail := c.LivenessAt(u.Block, int(u.Index), u.FirstElement, u.NumElements)
	for i := 0; i < u.NumElements; i++ {
		if c.obj.ElementIsLet(u.FirstElement + i) {
			c.diagImmutablePropertyPassedInout(u, u.FirstElement+i)
			return
		}
	}
	if avail.AllYes(0, u.NumElements) {
		return
	}
	// Passing a derived/delegating self by reference before super.init or
	// self.init has completed can't be pinned to one field or method (it's
	// an opaque escape of the whole receiver), so it gets the generic
	// self-before-init diagnostic rather than diagVariableInoutBeforeInit's
	// plain-variable wording.
	if c.obj.Role == DerivedClassSelf || c.obj.Role == DelegatingSelf {
		initElt := 0
		if c.obj.Role == DerivedClassSelf {
			initElt = c.obj.SuperInitElement()
		}
		initAvail := c.LivenessAt(u.Block, int(u.Index), initElt, 1).Get(0)
		if initAvail.IsUnknown() || initAvail.Kind() != Yes {
			c.diagSelfBeforeSuperselfinit(u)
			return
		}
	}
	c.diagVariableInoutBeforeInit(u)
}

func (c *Checker) classifyEscape(u *Use) {
	avail := c.LivenessAt(u.Block, int(u.Index), u.FirstElement, u.NumElements)
	if avail.AllYes(0, u.NumElements) {
		return
	}
	c.diagEscapeBeforeInit(u)
}

func (c *Checker) classifySuperInit(u *Use) {
	superElt := c.obj.SuperInitElement()
	if superElt < 0 || u.FirstElement != superElt || u.NumElements != 1 {
		invariant(c.f.Name, "SuperInit use not on the synthetic super-init element")
	}
	cur := c.LivenessAt(u.Block, int(u.Index), superElt, 1).Get(0)
	if !cur.IsUnknown() && cur.Kind() != No {
		c.diagSelfinitMultipleTimes(u)
		return
	}
	others := c.LivenessAt(u.Block, int(u.Index), 0, superElt)
	if !others.AllYes(0, superElt) {
		c.diagIvarNotInitializedAtSuperinit(u, others)
		return
	}
}

func (c *Checker) classifySelfInit(u *Use) {
	if c.obj.N() != 1 {
		invariant(c.f.Name, "SelfInit use on object with N=%d, want 1", c.obj.N())
	}
	cur := c.LivenessAt(u.Block, int(u.Index), 0, 1).Get(0)
	if !cur.IsUnknown() && cur.Kind() != No {
		c.diagSelfinitMultipleTimes(u)
		return
	}
	u.Kind = Initialization
}

// findSingleWriteInstr returns the InstrAssign matching u, used by
// lower_assign.go and the conditional rewrite passes.
func (c *Checker) instrAt(u *Use) *mir.Instr {
	block := &c.f.Blocks[u.Block]
	if int(u.Index) < 0 || int(u.Index) >= len(block.Instrs) {
		return nil
	}
	return &block.Instrs[u.Index]
}
