package di

import "surge/internal/mir"

// LOState is the tri-state cache driving the cycle-tolerant live-out
// memoization described in §4.8.
type LOState uint8

const (
	// LOUnknown: live-out has not been computed yet (or a previous attempt
	// left it unresolved because of a cycle).
	LOUnknown LOState = iota
	// LOInProgress: a LiveOut computation for this block is on the call
	// stack; querying it again means we hit a back-edge.
	LOInProgress
	// LOKnown: live-out is cached and fully resolved.
	LOKnown
)

// PerBlockState holds the per-block facts the dataflow needs: the locally
// computed availability (from a reverse scan of the block's own
// instructions), whether the block has any non-load use at all (an
// optimization allowing LivenessAt to skip the local scan when false), and
// the live-out memoization state.
type PerBlockState struct {
	// local is the per-element fact established purely by this block's own
	// instructions, independent of any predecessor. Elements this block
	// never touches stay Unknown here.
	local AvailabilitySet

	hasNonLoadUse bool

	loState LOState
	liveOut AvailabilitySet
}

func newPerBlockState(n int) *PerBlockState {
	return &PerBlockState{
		local:   NewAvailabilitySet(n),
		liveOut: NewAvailabilitySet(n),
	}
}

// predecessorIndex precomputes predecessors for every block once, so
// LiveOut doesn't re-scan the whole function per query. Grounded on
// internal/mir/async_liveness.go's succBlocks-based traversal (same shape
// of problem: build a CFG adjacency view from Terminator fields), inverted
// to a predecessor map built once per Checker.
type predecessorIndex map[mir.BlockID][]mir.BlockID

func buildPredecessorIndex(f *mir.Func) predecessorIndex {
	idx := make(predecessorIndex, len(f.Blocks))
	for i := range f.Blocks {
		from := mir.BlockID(i) //nolint:gosec // bounded by block count
		for _, succ := range mirSuccessors(f, from) {
			idx[succ] = append(idx[succ], from)
		}
	}
	return idx
}

// mirSuccessors returns the successor blocks of bb using only the exported
// mir.Terminator shape (internal/mir's own succBlocks helper is
// unexported). This only needs to understand the terminator kinds DI
// itself ever emits or observes: TermGoto/TermIf/TermSwitchTag, same as
// async_liveness.go's computeBlockUseDef walks InstrKind.
func mirSuccessors(f *mir.Func, bb mir.BlockID) []mir.BlockID {
	if f == nil || int(bb) < 0 || int(bb) >= len(f.Blocks) {
		return nil
	}
	term := &f.Blocks[bb].Term
	switch term.Kind {
	case mir.TermGoto:
		return []mir.BlockID{term.Goto.Target}
	case mir.TermIf:
		return []mir.BlockID{term.If.Then, term.If.Else}
	case mir.TermSwitchTag:
		out := make([]mir.BlockID, 0, len(term.SwitchTag.Cases)+1)
		for _, c := range term.SwitchTag.Cases {
			out = append(out, c.Target)
		}
		return append(out, term.SwitchTag.Default)
	default:
		return nil
	}
}
