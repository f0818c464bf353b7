package di_test

import (
	"testing"
	"time"

	"surge/internal/di"
	"surge/internal/diag"
	"surge/internal/mir"
	"surge/internal/types"
)

// buildLoopFunc builds a while-style loop: the header block is reached both
// from entry (x is No) and from the loop body's back edge (x is Yes after
// one iteration), and exits to a block that reads x. This is the smallest
// CFG shape with an actual back edge, exercising the same cycle a
// PerBlockState's in-progress guard must terminate on.
func buildLoopFunc(interner *types.Interner) *mir.Func {
	intTy := interner.Builtins().Int
	boolTy := interner.Builtins().Bool
	condOp := mir.Operand{Kind: mir.OperandConst, Type: boolTy, Const: mir.Const{Kind: mir.ConstBool, Type: boolTy}}

	return &mir.Func{
		Name:   "test",
		Result: interner.Builtins().Nothing,
		Locals: []mir.Local{
			{Name: "x", Type: intTy},
			{Name: "tmp", Type: intTy, Flags: mir.LocalFlagCopy},
		},
		Blocks: []mir.Block{
			{ // block 0: entry
				Instrs: []mir.Instr{
					{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitVar}},
				},
				Term: mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: 1}},
			},
			{ // block 1: loop header, reached from block 0 and from block 2's back edge
				Term: mir.Terminator{Kind: mir.TermIf, If: mir.IfTerm{Cond: condOp, Then: 2, Else: 3}},
			},
			{ // block 2: loop body, writes x, loops back to the header
				Instrs: []mir.Instr{
					{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
						Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0},
						Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 1)},
					}},
				},
				Term: mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: 1}},
			},
			{ // block 3: loop exit, reads x
				Instrs: []mir.Instr{
					{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
						Dst: mir.Place{Kind: mir.PlaceLocal, Local: 1},
						Src: mir.RValue{Kind: mir.RValueUse, Use: mir.Operand{Kind: mir.OperandCopy, Place: mir.Place{Kind: mir.PlaceLocal, Local: 0}}},
					}},
				},
				Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: false}},
			},
		},
	}
}

// TestLivenessAt_LoopTerminates confirms LivenessAt returns (rather than
// looping forever chasing the header's own back edge) on a CFG with a cycle,
// and that the header settles to Partial: reachable with x already Yes from
// the back edge, and with x still No on the first pass from entry.
func TestLivenessAt_LoopTerminates(t *testing.T) {
	interner := types.NewInterner()
	f := buildLoopFunc(interner)

	obj := di.NewPlainObject(0, "x", f.Locals[0].Span, false, true)
	c := di.NewChecker(f, obj, nil, interner, di.Options{})

	done := make(chan di.Optional, 1)
	go func() {
		avail := c.LivenessAt(1, 0, 0, 1)
		done <- avail.Get(0)
	}()

	select {
	case got := <-done:
		if got.IsUnknown() || got.Kind() != di.Partial {
			t.Errorf("LivenessAt(header) = %v, want Partial", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("LivenessAt did not terminate on a cyclic CFG")
	}
}

// TestLivenessAt_LoopExitSeesPartial confirms the loop exit block, reachable
// only through the header, also observes the header's Partial availability
// rather than either extreme.
func TestLivenessAt_LoopExitSeesPartial(t *testing.T) {
	interner := types.NewInterner()
	f := buildLoopFunc(interner)

	bag, reporter := newBag()
	obj := di.NewPlainObject(0, "x", f.Locals[0].Span, false, true)
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if !c.HadError() {
		t.Fatal("HadError() = false, want true: x is only Partial at the read in block 3")
	}
	if !hasCode(codesOf(bag), diag.DIVariableUsedBeforeInit) {
		t.Errorf("bag codes = %v, want DIVariableUsedBeforeInit for the Partial read", codesOf(bag))
	}
}
