package di_test

import (
	"testing"

	"surge/internal/di"
	"surge/internal/diag"
	"surge/internal/mir"
	"surge/internal/types"
)

// TestCheckFunc_PlainVar exercises the full discovery-to-diagnostic path
// (DiscoverObjects -> NewChecker -> Run) for a plain uninitialized local,
// the shape internal/driver.RunDI actually calls per mir.Func.
func TestCheckFunc_PlainVar(t *testing.T) {
	interner := types.NewInterner()
	intTy := interner.Builtins().Int

	f := &mir.Func{
		Name:   "test",
		Result: interner.Builtins().Nothing,
		Locals: []mir.Local{
			{Name: "x", Type: intTy, Flags: mir.LocalFlagLet},
			{Name: "tmp", Type: intTy, Flags: mir.LocalFlagCopy},
		},
		Blocks: []mir.Block{
			{Instrs: []mir.Instr{
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitVar}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 1},
					Src: mir.RValue{Kind: mir.RValueUse, Use: mir.Operand{Kind: mir.OperandCopy, Place: mir.Place{Kind: mir.PlaceLocal, Local: 0}}},
				}},
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: false}}},
		},
	}

	bag, reporter := newBag()
	hadError := di.CheckFunc(f, interner, reporter, di.Options{})

	if !hadError {
		t.Error("CheckFunc returned false, want true for a read with no preceding write")
	}
	if !hasCode(codesOf(bag), diag.DIVariableUsedBeforeInit) {
		t.Errorf("bag codes = %v, want DIVariableUsedBeforeInit", codesOf(bag))
	}
}

// TestDiscoverObjects_FindsOneObjectPerMarker confirms DiscoverObjects
// builds exactly one MemoryObject per distinct InstrMarkUninit-marked
// local, regardless of how many times that marker's local is otherwise
// touched.
func TestDiscoverObjects_FindsOneObjectPerMarker(t *testing.T) {
	interner := types.NewInterner()
	intTy := interner.Builtins().Int

	f := &mir.Func{
		Name:   "test",
		Result: interner.Builtins().Nothing,
		Locals: []mir.Local{
			{Name: "x", Type: intTy},
			{Name: "y", Type: intTy},
		},
		Blocks: []mir.Block{
			{Instrs: []mir.Instr{
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitVar}},
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 1, Kind: mir.MarkUninitVar}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0},
					Src: mir.RValue{Kind: mir.RValueUse, Use: mir.Operand{Kind: mir.OperandConst, Type: intTy, Const: mir.Const{Kind: mir.ConstInt, Type: intTy, IntValue: 1}}},
				}},
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: false}}},
		},
	}

	objs := di.DiscoverObjects(f, interner)
	if len(objs) != 2 {
		t.Fatalf("DiscoverObjects found %d objects, want 2", len(objs))
	}
	if objs[0].Name != "x" || objs[1].Name != "y" {
		t.Errorf("objects in order = %q, %q, want x, y", objs[0].Name, objs[1].Name)
	}
}

// TestDiscoverObjects_AggregateFieldsFromProjections confirms field
// elements of a self object are discovered from the place projections
// actually used against it, in first-use order.
func TestDiscoverObjects_AggregateFieldsFromProjections(t *testing.T) {
	interner := types.NewInterner()
	intTy := interner.Builtins().Int

	f := &mir.Func{
		Name:   "init",
		Result: interner.Builtins().Nothing,
		Locals: []mir.Local{
			{Name: "self", Type: intTy},
		},
		Blocks: []mir.Block{
			{Instrs: []mir.Instr{
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitRootSelf}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0, Proj: []mir.PlaceProj{{Kind: mir.PlaceProjField, FieldName: "a"}}},
					Src: mir.RValue{Kind: mir.RValueUse, Use: mir.Operand{Kind: mir.OperandConst, Type: intTy, Const: mir.Const{Kind: mir.ConstInt, Type: intTy, IntValue: 1}}},
				}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0, Proj: []mir.PlaceProj{{Kind: mir.PlaceProjField, FieldName: "b"}}},
					Src: mir.RValue{Kind: mir.RValueUse, Use: mir.Operand{Kind: mir.OperandConst, Type: intTy, Const: mir.Const{Kind: mir.ConstInt, Type: intTy, IntValue: 2}}},
				}},
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: false}}},
		},
	}

	objs := di.DiscoverObjects(f, interner)
	if len(objs) != 1 {
		t.Fatalf("DiscoverObjects found %d objects, want 1", len(objs))
	}
	if n := objs[0].N(); n != 2 {
		t.Fatalf("self object has %d elements, want 2", n)
	}
	if objs[0].PathName(0) != "self.a" || objs[0].PathName(1) != "self.b" {
		t.Errorf("element path names = %q, %q, want self.a, self.b", objs[0].PathName(0), objs[0].PathName(1))
	}
}
