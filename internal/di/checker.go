package di

import (
	"surge/internal/diag"
	"surge/internal/mir"
	"surge/internal/source"
	"surge/internal/types"
)

// Checker runs the definite-initialization analysis for one MemoryObject
// within one mir.Func. A Checker is single-threaded and synchronous (§5);
// internal/driver may run many Checkers concurrently, one per mir.Func, but
// never two against the same *mir.Func at once.
type Checker struct {
	f        *mir.Func
	obj      *MemoryObject
	reporter diag.Reporter
	types    *types.Interner

	uses     []Use
	releases []Release

	blocks []*PerBlockState
	preds  predecessorIndex

	reported  map[source.Span]struct{}
	reachable map[mir.BlockID]bool

	hadError               bool
	hasConditionalRewrites bool
	bitmapLocal            mir.LocalID

	// disableConditionalDestroy, when set, rejects ambiguous
	// initialization with a diagnostic instead of inserting runtime
	// diamonds (internal/project's [di] disable_conditional_destroy).
	disableConditionalDestroy bool

	// warnOnPartialStoreIntoLet, when set, emits a warning-severity
	// diagnostic for a PartialStore into a 'let' element that is still No
	// (internal/project's [di] warn_on_partial_store_into_let — see
	// spec.md §9's open question on this shape).
	warnOnPartialStoreIntoLet bool
}

// Options configures a Checker run beyond the MemoryObject and mir.Func
// themselves, sourced from the project's [di] config table (§9).
type Options struct {
	DisableConditionalDestroy bool
	WarnOnPartialStoreIntoLet bool
}

// NewChecker constructs a Checker for obj within f, reporting diagnostics
// to reporter. typesIn resolves the runtime liveness bitmap's element type
// (§4.6) and is otherwise unused.
func NewChecker(f *mir.Func, obj *MemoryObject, reporter diag.Reporter, typesIn *types.Interner, opts Options) *Checker {
	c := &Checker{
		f:                         f,
		obj:                       obj,
		reporter:                  reporter,
		types:                     typesIn,
		blocks:                    make([]*PerBlockState, len(f.Blocks)),
		preds:                     buildPredecessorIndex(f),
		reported:                  make(map[source.Span]struct{}),
		disableConditionalDestroy: opts.DisableConditionalDestroy,
		warnOnPartialStoreIntoLet: opts.WarnOnPartialStoreIntoLet,
	}
	return c
}

func (c *Checker) block(bb mir.BlockID) *PerBlockState {
	if int(bb) < 0 || int(bb) >= len(c.blocks) {
		invariant(c.f.Name, "block id %d out of range", bb)
	}
	if c.blocks[bb] == nil {
		state := newPerBlockState(c.obj.N())
		state.hasNonLoadUse = c.computeHasNonLoadUse(bb)
		c.blocks[bb] = state
	}
	return c.blocks[bb]
}

// computeHasNonLoadUse scans bb once for any instruction that settles an
// element of c.obj (a MarkUninit marker or a store), mirroring
// localFactFor's own notion of "settles". Cached on the block's
// PerBlockState so LivenessAt's local scan (§4.2 step 2) can skip
// reverse-scanning a block that could not possibly resolve anything.
func (c *Checker) computeHasNonLoadUse(bb mir.BlockID) bool {
	block := &c.f.Blocks[bb]
	for i := range block.Instrs {
		if _, _, _, ok := c.localFactFor(&block.Instrs[i], bb, InstrIndex(i)); ok { //nolint:gosec // bounded by instruction count
			return true
		}
	}
	return false
}

// Run collects uses/releases for c.obj, classifies every use (lowering
// InstrAssign as it goes), then — unless a user error was reported —
// inserts the runtime bitmap and conditional destroys for any residual
// ambiguity. Mirrors internal/mir/validate.go's style of returning
// ordinary errors for invariant violations rather than ever panicking
// across the internal/di package boundary; callers (internal/driver) wrap
// the call with `defer di.Recover(&err)`.
func (c *Checker) Run() {
	uses, releases := NewCollector(c.f, c.obj).Collect()
	c.uses = uses
	c.releases = releases

	for i := 0; i < len(c.uses); i++ {
		if c.uses[i].Deleted {
			continue
		}
		c.classify(&c.uses[i])
	}

	if c.hadError {
		return
	}

	if c.hasConditionalRewrites || c.anyReleaseHasPartial() {
		c.rewriteConditionalBitmap()
	}
	c.rewriteConditionalDestroys()
}

// anyReleaseHasPartial reports whether any recorded release sees a Partial
// element, which can happen even without an ambiguous write site (e.g. a
// plain `var x; if cond { x = 1 }` with no else branch) — the bitmap is
// needed in that case too so rewriteConditionalDestroys has a bit to read.
func (c *Checker) anyReleaseHasPartial() bool {
	for i := range c.releases {
		rel := &c.releases[i]
		avail := c.LivenessAt(rel.Block, int(rel.Index), 0, c.obj.N())
		for e := 0; e < c.obj.N(); e++ {
			if o := avail.Get(e); !o.IsUnknown() && o.Kind() == Partial {
				return true
			}
		}
	}
	return false
}

// HadError reports whether any user diagnostic was emitted for this
// object (post-analysis rewrites are skipped in that case, per §7).
func (c *Checker) HadError() bool {
	return c.hadError
}

// isReachable reports whether bb is reachable from f.Entry, computing and
// memoizing the full reachable set on first use (lazy BFS, per §4.4).
func (c *Checker) isReachable(bb mir.BlockID) bool {
	if c.reachable == nil {
		c.reachable = make(map[mir.BlockID]bool, len(c.f.Blocks))
		var stack []mir.BlockID
		stack = append(stack, c.f.Entry)
		c.reachable[c.f.Entry] = true
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, succ := range mirSuccessors(c.f, id) {
				if c.reachable[succ] {
					continue
				}
				c.reachable[succ] = true
				stack = append(stack, succ)
			}
		}
	}
	return c.reachable[bb]
}

// spanForUse resolves the source.Span to attach to a diagnostic for a use,
// falling back to the object's own span for a deleted/terminator-position
// use.
func (c *Checker) spanForUse(u *Use) source.Span {
	block := &c.f.Blocks[u.Block]
	if int(u.Index) >= 0 && int(u.Index) < len(block.Instrs) {
		// internal/mir instructions don't carry per-instruction spans
		// today (only mir.Local and mir.Func do); fall back to the
		// object's declaration span, consistent with how
		// internal/mir/validate.go's errors likewise only have
		// function-level position context.
		return c.obj.Span
	}
	return c.obj.Span
}
