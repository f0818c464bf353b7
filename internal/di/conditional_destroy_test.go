package di_test

import (
	"testing"

	"surge/internal/di"
	"surge/internal/mir"
	"surge/internal/types"
)

// TestChecker_PartialReleaseInsertsRuntimeDrop covers §4.7: a release of a
// plain local that is only Partial at that point (conditionally
// initialized on one branch, never assigned on the other, with no load
// use in between to diagnose it first) gets its single InstrDrop rewritten
// into a runtime-checked diamond rather than an unconditional drop.
func TestChecker_PartialReleaseInsertsRuntimeDrop(t *testing.T) {
	interner := types.NewInterner()
	intTy := interner.Builtins().Int
	boolTy := interner.Builtins().Bool
	condOp := mir.Operand{Kind: mir.OperandConst, Type: boolTy, Const: mir.Const{Kind: mir.ConstBool, Type: boolTy}}

	f := &mir.Func{
		Name:   "test",
		Result: interner.Builtins().Nothing,
		Locals: []mir.Local{
			{Name: "x", Type: intTy},
		},
		Blocks: []mir.Block{
			{ // block 0: entry
				Instrs: []mir.Instr{
					{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitVar}},
				},
				Term: mir.Terminator{Kind: mir.TermIf, If: mir.IfTerm{Cond: condOp, Then: 1, Else: 2}},
			},
			{ // block 1: x = 1
				Instrs: []mir.Instr{
					{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
						Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0},
						Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 1)},
					}},
				},
				Term: mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: 2}},
			},
			{ // block 2: merge; x is Partial here. Release without a prior load.
				Instrs: []mir.Instr{
					{Kind: mir.InstrDrop, Drop: mir.DropInstr{Place: mir.Place{Kind: mir.PlaceLocal, Local: 0}}},
				},
				Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: false}},
			},
		},
	}
	blocksBefore := len(f.Blocks)

	bag, reporter := newBag()
	obj := di.NewPlainObject(0, "x", f.Locals[0].Span, false, true)
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if c.HadError() {
		t.Errorf("HadError() = true, want false; diagnostics: %v", codesOf(bag))
	}
	if len(f.Blocks) <= blocksBefore {
		t.Error("expected rewriteRelease to split block 2 into a runtime-checked diamond")
	}

	for _, instr := range f.Blocks[2].Instrs {
		if instr.Kind == mir.InstrDrop {
			t.Error("block 2 still contains the original unconditional InstrDrop; want it erased")
		}
	}
}
