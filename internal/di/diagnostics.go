package di

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"surge/internal/diag"
	"surge/internal/mir"
)

// normPath normalizes a PathName before it is used as part of a dedup key
// or diagnostic message, exactly as internal/vm/intrinsic_string.go already
// normalizes string literals — two differently-composed-but-equivalent
// Unicode identifiers then dedup identically.
func normPath(s string) string {
	return norm.NFC.String(s)
}

// report emits one error-severity diagnostic, deduplicated by source
// location (§4.4) and suppressed for blocks unreachable from f.Entry.
func (c *Checker) report(u *Use, code diag.Code, msg string) {
	c.reportSeverity(u, code, diag.SevError, msg)
}

// reportSeverity is report's general form: only SevError severities count
// as a user error that skips the post-analysis rewrites (§7); a SevWarning
// or SevInfo diagnostic is purely advisory.
func (c *Checker) reportSeverity(u *Use, code diag.Code, sev diag.Severity, msg string) {
	if !c.isReachable(u.Block) {
		return
	}
	span := c.spanForUse(u)
	if _, dup := c.reported[span]; dup {
		return
	}
	c.reported[span] = struct{}{}
	if sev >= diag.SevError {
		c.hadError = true
	}
	if c.reporter != nil {
		c.reporter.Report(code, sev, span, msg, nil, nil)
	}
}

// diagPartialStoreIntoLet warns (rather than errors) on a PartialStore into
// a 'let' element that is still uninitialized, when the project's [di]
// warn_on_partial_store_into_let is enabled (§9's "let-PartialStore"
// open question — resolved as opt-in warning, not silent acceptance).
func (c *Checker) diagPartialStoreIntoLet(u *Use, elt int) {
	c.reportSeverity(u, diag.DIPartialStoreIntoLet, diag.SevWarning,
		fmt.Sprintf("partial store into immutable property %q before it is fully initialized", normPath(c.obj.PathName(elt))))
}

func (c *Checker) diagVariableInoutBeforeInit(u *Use) {
	c.report(u, diag.DIVariableInoutBeforeInit,
		fmt.Sprintf("variable %q passed inout before being initialized", normPath(c.obj.Name)))
}

func (c *Checker) diagImmutablePropertyPassedInout(u *Use, elt int) {
	c.report(u, diag.DIImmutablePropertyPassedInout,
		fmt.Sprintf("immutable property %q cannot be passed inout", normPath(c.obj.PathName(elt))))
}

func (c *Checker) diagImmutablePropertyAlreadyInitialized(u *Use, elt int) {
	c.report(u, diag.DIImmutablePropertyAlreadyInitialized,
		fmt.Sprintf("immutable property %q already initialized", normPath(c.obj.PathName(elt))))
	// A plain 'let' local/global (as opposed to a stored property of an
	// aggregate self) is declared with its pattern's own initial value —
	// `let y = 1; y = 2` — so point back at the declaration itself, the
	// way immutable_property_already_initialized's originating check also
	// notes the decl's inline initializer when one is present.
	if (c.obj.Role == LocalVar || c.obj.Role == GlobalVar) && c.reporter != nil {
		c.reporter.Report(diag.DIInitialValueProvidedInLetDecl, diag.SevInfo, c.obj.Span,
			fmt.Sprintf("%q already has an initial value here", normPath(c.obj.Name)), nil, nil)
	}
}

func (c *Checker) diagStructNotFullyInitialized(u *Use) {
	c.report(u, diag.DIStructNotFullyInitialized,
		fmt.Sprintf("%q must be fully initialized before this partial store", normPath(c.obj.Name)))
}

func (c *Checker) diagEscapeBeforeInit(u *Use) {
	code := diag.DIVariableEscapeBeforeInit
	if u.Kind == IndirectIn {
		code = diag.DIVariableAddrTakenBeforeInit
	}
	if c.obj.Role == GlobalVar {
		code = diag.DIGlobalVariableFunctionUseUninit
	}
	c.report(u, code, fmt.Sprintf("%q escapes before being initialized", normPath(c.obj.Name)))
}

func (c *Checker) diagSelfBeforeSuperselfinit(u *Use) {
	c.report(u, diag.DISelfBeforeSuperselfinit,
		"self used before super.init/self.init completes")
}

func (c *Checker) diagSelfinitMultipleTimes(u *Use) {
	c.report(u, diag.DISelfinitMultipleTimes, "self.init/super.init called multiple times")
}

func (c *Checker) diagIvarNotInitializedAtSuperinit(u *Use, others AvailabilitySet) {
	c.report(u, diag.DIIvarNotInitializedAtSuperinit,
		"not all stored properties are initialized before calling super.init")
	c.noteUninitializedMembers(u, others, others.Len())
}

func (c *Checker) diagAmbiguousInitializationRequiresRuntimeCheck(u *Use) {
	c.report(u, diag.DIStoredPropertyNotInitialized,
		fmt.Sprintf("initialization of %q is ambiguous on some paths and disable_conditional_destroy forbids a runtime check", normPath(c.obj.Name)))
}

func (c *Checker) diagObjectNotFullyInitializedBeforeFailure(rel *Release) {
	span := c.obj.Span
	if _, dup := c.reported[span]; dup {
		return
	}
	c.reported[span] = struct{}{}
	c.hadError = true
	if c.reporter != nil {
		c.reporter.Report(diag.DIObjectNotFullyInitializedBeforeFailure, diag.SevError, span,
			fmt.Sprintf("%q not fully initialized before this failure exit", normPath(c.obj.Name)), nil, nil)
	}
}

// noteUninitializedMembers lists each uninitialized stored property by
// path name, skipping the synthetic super-init element.
func (c *Checker) noteUninitializedMembers(u *Use, avail AvailabilitySet, limit int) {
	if c.reporter == nil {
		return
	}
	superElt := c.obj.SuperInitElement()
	for i := 0; i < limit && i < avail.Len(); i++ {
		if i == superElt {
			continue
		}
		o := avail.Get(i)
		if !o.IsUnknown() && o.Kind() == Yes {
			continue
		}
		c.reporter.Report(diag.DIVariableDefinedHere, diag.SevInfo, c.obj.Span,
			fmt.Sprintf("stored property %q is not initialized here", normPath(c.obj.PathName(i))), nil, nil)
	}
}

// diagnoseLoadFailure implements the 5-case dispatch of §4.4 for a Load/
// IndirectIn use that failed its liveness check.
func (c *Checker) diagnoseLoadFailure(u *Use, avail AvailabilitySet) {
	block := &c.f.Blocks[u.Block]
	atTerminator := int(u.Index) >= len(block.Instrs)

	// Case 1 & 2: a load whose sole user is a TermReturn.
	if atTerminator && block.Term.Kind == mir.TermReturn {
		if c.obj.Role.isSelf() {
			if c.obj.Role == DerivedClassSelf {
				superElt := c.obj.SuperInitElement()
				superAvail := c.LivenessAt(u.Block, int(u.Index), superElt, 1).Get(0)
				if superAvail.IsUnknown() || superAvail.Kind() != Yes {
					c.report(u, diag.DISuperselfinitNotCalledBeforeReturn,
						"super.init must be called before returning from this initializer")
					return
				}
				c.report(u, diag.DIReturnFromInitWithoutInitingStoredProperties,
					"not all stored properties are initialized before this return")
				c.noteUninitializedMembers(u, avail, avail.Len())
				return
			}
			if c.obj.Role == DelegatingSelf {
				c.report(u, diag.DIReturnFromInitWithoutSelfInit,
					"self.init must be called before returning from this initializer")
				return
			}
			c.report(u, diag.DIReturnFromInitWithoutInitingSelf,
				"return without initializing self")
			c.noteUninitializedMembers(u, avail, avail.Len())
			return
		}
	}

	// Case 3 & 4: a use of a derived self's storage/method before
	// super.init completes.
	if c.obj.Role == DerivedClassSelf {
		superElt := c.obj.SuperInitElement()
		superAvail := c.LivenessAt(u.Block, int(u.Index), superElt, 1).Get(0)
		if superAvail.IsUnknown() || superAvail.Kind() != Yes {
			c.report(u, diag.DISelfUseBeforeFullyInit,
				fmt.Sprintf("use of %q before super.init completes", normPath(c.obj.PathName(u.FirstElement))))
			return
		}
	}

	// A delegating self read before self.init has been called.
	if c.obj.Role == DelegatingSelf {
		selfAvail := c.LivenessAt(u.Block, int(u.Index), 0, 1).Get(0)
		if selfAvail.IsUnknown() || selfAvail.Kind() != Yes {
			c.report(u, diag.DISelfUseBeforeInitInDelegatingInit,
				"use of self before self.init is called")
			return
		}
	}

	// Fallback: plain used-before-init, with per-element notes.
	code := diag.DIVariableUsedBeforeInit
	if c.obj.Role.isSelf() {
		code = diag.DIUseOfSelfBeforeFullyInit
	}
	c.report(u, code, fmt.Sprintf("%q used before being initialized", normPath(c.obj.Name)))
	c.noteUninitializedMembers(u, avail, u.NumElements)
}
