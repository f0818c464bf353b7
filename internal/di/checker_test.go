package di_test

import (
	"testing"

	"surge/internal/di"
	"surge/internal/diag"
	"surge/internal/mir"
	"surge/internal/types"
)

func newBag() (*diag.Bag, diag.Reporter) {
	bag := diag.NewBag(64)
	return bag, diag.BagReporter{Bag: bag}
}

func codesOf(bag *diag.Bag) []diag.Code {
	items := bag.Items()
	out := make([]diag.Code, len(items))
	for i, d := range items {
		out[i] = d.Code
	}
	return out
}

func hasCode(codes []diag.Code, want diag.Code) bool {
	for _, c := range codes {
		if c == want {
			return true
		}
	}
	return false
}

func intConst(interner *types.Interner, v int64) mir.Operand {
	intTy := interner.Builtins().Int
	return mir.Operand{Kind: mir.OperandConst, Type: intTy, Const: mir.Const{Kind: mir.ConstInt, Type: intTy, IntValue: v}}
}

// TestChecker_UseBeforeInit covers the simplest S1 scenario (spec §4.4
// case 5, the plain used-before-init fallback): a plain `let`/`var` read
// with no preceding write at all.
func TestChecker_UseBeforeInit(t *testing.T) {
	interner := types.NewInterner()
	intTy := interner.Builtins().Int

	f := &mir.Func{
		Name:   "test",
		Result: interner.Builtins().Nothing,
		Locals: []mir.Local{
			{Name: "x", Type: intTy},
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
	obj := di.NewPlainObject(0, "x", f.Locals[0].Span, false, true)
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if !c.HadError() {
		t.Fatal("HadError() = false, want true for a read with no preceding write")
	}
	if !hasCode(codesOf(bag), diag.DIVariableUsedBeforeInit) {
		t.Errorf("bag codes = %v, want DIVariableUsedBeforeInit", codesOf(bag))
	}
}

// TestChecker_InitThenUse_NoDiagnostics covers S2: a write that
// definitely precedes every read is accepted silently.
func TestChecker_InitThenUse_NoDiagnostics(t *testing.T) {
	interner := types.NewInterner()
	intTy := interner.Builtins().Int

	f := &mir.Func{
		Name:   "test",
		Result: interner.Builtins().Nothing,
		Locals: []mir.Local{
			{Name: "x", Type: intTy},
			{Name: "tmp", Type: intTy, Flags: mir.LocalFlagCopy},
		},
		Blocks: []mir.Block{
			{Instrs: []mir.Instr{
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitVar}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0},
					Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 1)},
				}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 1},
					Src: mir.RValue{Kind: mir.RValueUse, Use: mir.Operand{Kind: mir.OperandCopy, Place: mir.Place{Kind: mir.PlaceLocal, Local: 0}}},
				}},
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: false}}},
		},
	}

	bag, reporter := newBag()
	obj := di.NewPlainObject(0, "x", f.Locals[0].Span, false, true)
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if c.HadError() {
		t.Errorf("HadError() = true, want false; diagnostics: %v", codesOf(bag))
	}
	if bag.Len() != 0 {
		t.Errorf("bag has %d diagnostics, want 0: %v", bag.Len(), codesOf(bag))
	}
}

// TestChecker_BothBranchesInit_NoDiagnostics covers S3: a write on every
// predecessor of the merge point satisfies a read after the merge.
func TestChecker_BothBranchesInit_NoDiagnostics(t *testing.T) {
	interner := types.NewInterner()
	intTy := interner.Builtins().Int
	boolTy := interner.Builtins().Bool

	f := &mir.Func{
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
				Term: mir.Terminator{Kind: mir.TermIf, If: mir.IfTerm{
					Cond: mir.Operand{Kind: mir.OperandConst, Type: boolTy, Const: mir.Const{Kind: mir.ConstBool, Type: boolTy}},
					Then: 1, Else: 2,
				}},
			},
			{ // block 1: then branch
				Instrs: []mir.Instr{
					{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
						Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0},
						Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 1)},
					}},
				},
				Term: mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: 3}},
			},
			{ // block 2: else branch
				Instrs: []mir.Instr{
					{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
						Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0},
						Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 2)},
					}},
				},
				Term: mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: 3}},
			},
			{ // block 3: merge, reads x
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

	bag, reporter := newBag()
	obj := di.NewPlainObject(0, "x", f.Locals[0].Span, false, true)
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if c.HadError() {
		t.Errorf("HadError() = true, want false; diagnostics: %v", codesOf(bag))
	}
}

// buildAmbiguousWriteFunc builds a function with one unconditional
// initialization followed by a second, conditionally-reached write to the
// same element — the second write is Initialization on the path that
// skipped the first conditional and Assign on the path that took it,
// exactly the §4.3 default case that needs a runtime check.
func buildAmbiguousWriteFunc(interner *types.Interner) *mir.Func {
	intTy := interner.Builtins().Int
	boolTy := interner.Builtins().Bool
	condOp := func() mir.Operand {
		return mir.Operand{Kind: mir.OperandConst, Type: boolTy, Const: mir.Const{Kind: mir.ConstBool, Type: boolTy}}
	}

	return &mir.Func{
		Name:   "test",
		Result: interner.Builtins().Nothing,
		Locals: []mir.Local{
			{Name: "x", Type: intTy},
		},
		Blocks: []mir.Block{
			{ // block 0: entry, first conditional write
				Instrs: []mir.Instr{
					{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitVar}},
				},
				Term: mir.Terminator{Kind: mir.TermIf, If: mir.IfTerm{Cond: condOp(), Then: 1, Else: 2}},
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
			{ // block 2: merge; x is Partial here
				Term: mir.Terminator{Kind: mir.TermIf, If: mir.IfTerm{Cond: condOp(), Then: 3, Else: 4}},
			},
			{ // block 3: x = 2, ambiguous: init on the path that skipped block 1, assign otherwise
				Instrs: []mir.Instr{
					{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
						Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0},
						Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 2)},
					}},
				},
				Term: mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: 4}},
			},
			{ // block 4: return, no further use of x
				Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: false}},
			},
		},
	}
}

// TestChecker_AmbiguousWrite_InsertsRuntimeBitmap covers S4 with the
// default options: an ambiguous write is resolved with a runtime liveness
// bitmap (§4.6) rather than a diagnostic.
func TestChecker_AmbiguousWrite_InsertsRuntimeBitmap(t *testing.T) {
	interner := types.NewInterner()
	f := buildAmbiguousWriteFunc(interner)
	localsBefore := len(f.Locals)

	bag, reporter := newBag()
	obj := di.NewPlainObject(0, "x", f.Locals[0].Span, false, true)
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if c.HadError() {
		t.Fatalf("HadError() = true, want false; diagnostics: %v", codesOf(bag))
	}
	if bag.Len() != 0 {
		t.Errorf("bag has %d diagnostics, want 0: %v", bag.Len(), codesOf(bag))
	}
	if len(f.Locals) <= localsBefore {
		t.Error("no new locals allocated; expected a bitmap temp to be added by rewriteConditionalBitmap")
	}
}

// TestChecker_AmbiguousWrite_DisableConditionalDestroy_Diagnoses covers
// the [di] disable_conditional_destroy configuration: the same ambiguous
// write is rejected outright instead of being rewritten.
func TestChecker_AmbiguousWrite_DisableConditionalDestroy_Diagnoses(t *testing.T) {
	interner := types.NewInterner()
	f := buildAmbiguousWriteFunc(interner)

	bag, reporter := newBag()
	obj := di.NewPlainObject(0, "x", f.Locals[0].Span, false, true)
	c := di.NewChecker(f, obj, reporter, interner, di.Options{DisableConditionalDestroy: true})
	c.Run()

	if !c.HadError() {
		t.Fatal("HadError() = false, want true with disable_conditional_destroy set")
	}
	if !hasCode(codesOf(bag), diag.DIStoredPropertyNotInitialized) {
		t.Errorf("bag codes = %v, want DIStoredPropertyNotInitialized", codesOf(bag))
	}
}

// TestChecker_LetFieldWrittenTwice_Diagnoses exercises the let-already-
// initialized check in classifyInitOrAssign's element-scoped path (a direct
// single-field store, not classifyPartialStore's deeper-projection path):
// a second store to the same let field must be rejected.
func TestChecker_LetFieldWrittenTwice_Diagnoses(t *testing.T) {
	interner := types.NewInterner()
	intTy := interner.Builtins().Int

	f := &mir.Func{
		Name:   "test",
		Result: interner.Builtins().Nothing,
		Locals: []mir.Local{
			{Name: "self", Type: intTy},
		},
		Blocks: []mir.Block{
			{Instrs: []mir.Instr{
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitRootSelf}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0, Proj: []mir.PlaceProj{{Kind: mir.PlaceProjField, FieldName: "value"}}},
					Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 1)},
				}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0, Proj: []mir.PlaceProj{{Kind: mir.PlaceProjField, FieldName: "value"}}},
					Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 2)},
				}},
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: false}}},
		},
	}

	bag, reporter := newBag()
	obj := di.NewAggregateObject(0, "self", f.Locals[0].Span, di.RootClassSelf, []di.FieldDecl{
		{Name: "value", IsLet: true, Trivial: true},
	})
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if !c.HadError() {
		t.Fatal("HadError() = false, want true for a second store to a let field")
	}
	if !hasCode(codesOf(bag), diag.DIImmutablePropertyAlreadyInitialized) {
		t.Errorf("bag codes = %v, want DIImmutablePropertyAlreadyInitialized", codesOf(bag))
	}
}

// TestChecker_FieldByFieldInit_NoDiagnostics covers the ordinary multi-field
// initializer shape: each field is written once, in order, and no field's
// write should require its sibling fields to already be initialized.
func TestChecker_FieldByFieldInit_NoDiagnostics(t *testing.T) {
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
					Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 1)},
				}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0, Proj: []mir.PlaceProj{{Kind: mir.PlaceProjField, FieldName: "b"}}},
					Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 2)},
				}},
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: false}}},
		},
	}

	bag, reporter := newBag()
	obj := di.NewAggregateObject(0, "self", f.Locals[0].Span, di.RootClassSelf, []di.FieldDecl{
		{Name: "a", Trivial: true},
		{Name: "b", Trivial: true},
	})
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if c.HadError() {
		t.Errorf("HadError() = true, want false; writing a before b must not require b to already be Yes: %v", codesOf(bag))
	}
}

// TestChecker_ReturnWithoutInitingAllStoredProperties models an
// initializer returning self (the implicit trailing self-read every
// initializer's return performs) while one of two stored properties was
// never written.
func TestChecker_ReturnWithoutInitingAllStoredProperties(t *testing.T) {
	interner := types.NewInterner()
	intTy := interner.Builtins().Int

	f := &mir.Func{
		Name:   "init",
		Result: intTy,
		Locals: []mir.Local{
			{Name: "self", Type: intTy},
		},
		Blocks: []mir.Block{
			{Instrs: []mir.Instr{
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitRootSelf}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0, Proj: []mir.PlaceProj{{Kind: mir.PlaceProjField, FieldName: "a"}}},
					Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 1)},
				}},
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{
				HasValue: true,
				Value:    mir.Operand{Kind: mir.OperandCopy, Place: mir.Place{Kind: mir.PlaceLocal, Local: 0}},
			}}},
		},
	}

	bag, reporter := newBag()
	obj := di.NewAggregateObject(0, "self", f.Locals[0].Span, di.RootClassSelf, []di.FieldDecl{
		{Name: "a", Trivial: true},
		{Name: "b", Trivial: true},
	})
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if !c.HadError() {
		t.Fatal("HadError() = false, want true: field b is never initialized")
	}
	codes := codesOf(bag)
	if !hasCode(codes, diag.DIReturnFromInitWithoutInitingStoredProperties) && !hasCode(codes, diag.DIReturnFromInitWithoutInitingSelf) {
		t.Errorf("bag codes = %v, want a return-without-full-init diagnostic", codes)
	}
}

// buildPartialStoreIntoLetFunc builds a function with one let-typed stored
// property whose only write is a deeper-than-one-field projection, forcing
// classifyPartialStore's (not classifyInitOrAssign's) let-check path.
func buildPartialStoreIntoLetFunc(interner *types.Interner) *mir.Func {
	intTy := interner.Builtins().Int
	return &mir.Func{
		Name:   "init",
		Result: interner.Builtins().Nothing,
		Locals: []mir.Local{
			{Name: "self", Type: intTy},
		},
		Blocks: []mir.Block{
			{Instrs: []mir.Instr{
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitRootSelf}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0, Proj: []mir.PlaceProj{
						{Kind: mir.PlaceProjField, FieldName: "point"},
						{Kind: mir.PlaceProjField, FieldName: "x"},
					}},
					Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 1)},
				}},
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: false}}},
		},
	}
}

// TestChecker_PartialStoreIntoLet_SilentByDefault covers the default
// [di] warn_on_partial_store_into_let=false behavior: a PartialStore into a
// still-uninitialized let element is accepted with no diagnostic at all
// (only DIStructNotFullyInitialized would fire, and here point is the
// object's only element, so nothing fires).
func TestChecker_PartialStoreIntoLet_SilentByDefault(t *testing.T) {
	interner := types.NewInterner()
	f := buildPartialStoreIntoLetFunc(interner)

	bag, reporter := newBag()
	obj := di.NewAggregateObject(0, "self", f.Locals[0].Span, di.RootClassSelf, []di.FieldDecl{
		{Name: "point", IsLet: true},
	})
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if c.HadError() {
		t.Errorf("HadError() = true, want false; diagnostics: %v", codesOf(bag))
	}
	if hasCode(codesOf(bag), diag.DIPartialStoreIntoLet) {
		t.Errorf("bag codes = %v, want no DIPartialStoreIntoLet with WarnOnPartialStoreIntoLet unset", codesOf(bag))
	}
}

// TestChecker_PartialStoreIntoLet_WarningWhenEnabled covers the
// [di] warn_on_partial_store_into_let=true configuration: the same
// PartialStore now gets a warning-severity diagnostic, but it is still not
// a user error (HadError stays false, so the post-analysis rewrites still
// run).
func TestChecker_PartialStoreIntoLet_WarningWhenEnabled(t *testing.T) {
	interner := types.NewInterner()
	f := buildPartialStoreIntoLetFunc(interner)

	bag, reporter := newBag()
	obj := di.NewAggregateObject(0, "self", f.Locals[0].Span, di.RootClassSelf, []di.FieldDecl{
		{Name: "point", IsLet: true},
	})
	c := di.NewChecker(f, obj, reporter, interner, di.Options{WarnOnPartialStoreIntoLet: true})
	c.Run()

	if c.HadError() {
		t.Errorf("HadError() = true, want false; a warning must not count as a user error: %v", codesOf(bag))
	}
	if !hasCode(codesOf(bag), diag.DIPartialStoreIntoLet) {
		t.Errorf("bag codes = %v, want DIPartialStoreIntoLet", codesOf(bag))
	}
	for _, d := range bag.Items() {
		if d.Code == diag.DIPartialStoreIntoLet && d.Severity != diag.SevWarning {
			t.Errorf("DIPartialStoreIntoLet severity = %v, want SevWarning", d.Severity)
		}
	}
}

// callInstr builds a CallInstr of the given kind whose sole argument is an
// inout reference to local — the shape a lowered super.init(self)/
// self.init(self) call takes.
func callInstr(kind mir.CallKind, local mir.LocalID) mir.Instr {
	return mir.Instr{Kind: mir.InstrCall, Call: mir.CallInstr{
		Kind: kind,
		Callee: mir.Callee{Kind: mir.CalleeSym, Name: "init"},
		Args: []mir.Operand{
			{Kind: mir.OperandAddrOfMut, Place: mir.Place{Kind: mir.PlaceLocal, Local: local}},
		},
	}}
}

// TestChecker_DerivedSelf_SuperInitThenReturn_NoDiagnostics covers a derived
// initializer that writes its own field, calls super.init, then returns
// self: no diagnostics, since both the field and the synthetic super-init
// element are Yes by the return.
func TestChecker_DerivedSelf_SuperInitThenReturn_NoDiagnostics(t *testing.T) {
	interner := types.NewInterner()
	intTy := interner.Builtins().Int

	f := &mir.Func{
		Name:   "init",
		Result: intTy,
		Locals: []mir.Local{
			{Name: "self", Type: intTy},
		},
		Blocks: []mir.Block{
			{Instrs: []mir.Instr{
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitDerivedSelf}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0, Proj: []mir.PlaceProj{{Kind: mir.PlaceProjField, FieldName: "a"}}},
					Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 1)},
				}},
				callInstr(mir.CallSuperInit, 0),
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{
				HasValue: true,
				Value:    mir.Operand{Kind: mir.OperandCopy, Place: mir.Place{Kind: mir.PlaceLocal, Local: 0}},
			}}},
		},
	}

	bag, reporter := newBag()
	obj := di.NewAggregateObject(0, "self", f.Locals[0].Span, di.DerivedClassSelf, []di.FieldDecl{
		{Name: "a", Trivial: true},
	})
	obj.AddSuperInitElement()
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if c.HadError() {
		t.Errorf("HadError() = true, want false; diagnostics: %v", codesOf(bag))
	}
}

// TestChecker_DerivedSelf_SuperInitCalledTwice_Diagnoses covers
// classifySuperInit's own-element check: calling super.init a second time
// must be rejected as a repeat delegation, not treated as re-initializing an
// ordinary field.
func TestChecker_DerivedSelf_SuperInitCalledTwice_Diagnoses(t *testing.T) {
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
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitDerivedSelf}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0, Proj: []mir.PlaceProj{{Kind: mir.PlaceProjField, FieldName: "a"}}},
					Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 1)},
				}},
				callInstr(mir.CallSuperInit, 0),
				callInstr(mir.CallSuperInit, 0),
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: false}}},
		},
	}

	bag, reporter := newBag()
	obj := di.NewAggregateObject(0, "self", f.Locals[0].Span, di.DerivedClassSelf, []di.FieldDecl{
		{Name: "a", Trivial: true},
	})
	obj.AddSuperInitElement()
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if !c.HadError() {
		t.Fatal("HadError() = false, want true: super.init called twice")
	}
	if !hasCode(codesOf(bag), diag.DISelfinitMultipleTimes) {
		t.Errorf("bag codes = %v, want DISelfinitMultipleTimes", codesOf(bag))
	}
}

// TestChecker_DerivedSelf_ReturnWithoutSuperInit_Diagnoses covers
// diagnoseLoadFailure's case 3/4 branch: returning self before super.init
// has ever been called.
func TestChecker_DerivedSelf_ReturnWithoutSuperInit_Diagnoses(t *testing.T) {
	interner := types.NewInterner()
	intTy := interner.Builtins().Int

	f := &mir.Func{
		Name:   "init",
		Result: intTy,
		Locals: []mir.Local{
			{Name: "self", Type: intTy},
		},
		Blocks: []mir.Block{
			{Instrs: []mir.Instr{
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitDerivedSelf}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 0, Proj: []mir.PlaceProj{{Kind: mir.PlaceProjField, FieldName: "a"}}},
					Src: mir.RValue{Kind: mir.RValueUse, Use: intConst(interner, 1)},
				}},
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{
				HasValue: true,
				Value:    mir.Operand{Kind: mir.OperandCopy, Place: mir.Place{Kind: mir.PlaceLocal, Local: 0}},
			}}},
		},
	}

	bag, reporter := newBag()
	obj := di.NewAggregateObject(0, "self", f.Locals[0].Span, di.DerivedClassSelf, []di.FieldDecl{
		{Name: "a", Trivial: true},
	})
	obj.AddSuperInitElement()
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if !c.HadError() {
		t.Fatal("HadError() = false, want true: returning self before super.init")
	}
	if !hasCode(codesOf(bag), diag.DISuperselfinitNotCalledBeforeReturn) {
		t.Errorf("bag codes = %v, want DISuperselfinitNotCalledBeforeReturn", codesOf(bag))
	}
}

// TestChecker_DelegatingSelf_SelfInit_NoDiagnostics covers the clean
// delegating-initializer shape: a bare self.init(self) call with no prior
// use, then return self.
func TestChecker_DelegatingSelf_SelfInit_NoDiagnostics(t *testing.T) {
	interner := types.NewInterner()
	intTy := interner.Builtins().Int

	f := &mir.Func{
		Name:   "init",
		Result: intTy,
		Locals: []mir.Local{
			{Name: "self", Type: intTy},
		},
		Blocks: []mir.Block{
			{Instrs: []mir.Instr{
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitDelegatingSelf}},
				callInstr(mir.CallSelfInit, 0),
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{
				HasValue: true,
				Value:    mir.Operand{Kind: mir.OperandCopy, Place: mir.Place{Kind: mir.PlaceLocal, Local: 0}},
			}}},
		},
	}

	bag, reporter := newBag()
	obj := di.NewAggregateObject(0, "self", f.Locals[0].Span, di.DelegatingSelf, []di.FieldDecl{{Name: "<self.init>"}})
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if c.HadError() {
		t.Errorf("HadError() = true, want false; diagnostics: %v", codesOf(bag))
	}
}

// TestChecker_DelegatingSelf_LoadBeforeSelfInit_Diagnoses covers
// diagnoseLoadFailure's delegating-self branch: reading self before
// self.init is called.
func TestChecker_DelegatingSelf_LoadBeforeSelfInit_Diagnoses(t *testing.T) {
	interner := types.NewInterner()
	intTy := interner.Builtins().Int

	f := &mir.Func{
		Name:   "init",
		Result: interner.Builtins().Nothing,
		Locals: []mir.Local{
			{Name: "self", Type: intTy},
			{Name: "tmp", Type: intTy, Flags: mir.LocalFlagCopy},
		},
		Blocks: []mir.Block{
			{Instrs: []mir.Instr{
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitDelegatingSelf}},
				{Kind: mir.InstrAssign, Assign: mir.AssignInstr{
					Dst: mir.Place{Kind: mir.PlaceLocal, Local: 1},
					Src: mir.RValue{Kind: mir.RValueUse, Use: mir.Operand{Kind: mir.OperandCopy, Place: mir.Place{Kind: mir.PlaceLocal, Local: 0}}},
				}},
				callInstr(mir.CallSelfInit, 0),
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: false}}},
		},
	}

	bag, reporter := newBag()
	obj := di.NewAggregateObject(0, "self", f.Locals[0].Span, di.DelegatingSelf, []di.FieldDecl{{Name: "<self.init>"}})
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if !c.HadError() {
		t.Fatal("HadError() = false, want true: self read before self.init")
	}
	if !hasCode(codesOf(bag), diag.DISelfUseBeforeInitInDelegatingInit) {
		t.Errorf("bag codes = %v, want DISelfUseBeforeInitInDelegatingInit", codesOf(bag))
	}
}

// TestChecker_DelegatingSelf_InOutBeforeSelfInit_Diagnoses covers
// classifyInOut's opaque-escape branch: passing self by mutable reference to
// an ordinary call before self.init completes can't be pinned to one field,
// so it gets the self-before-super/self-init diagnostic.
func TestChecker_DelegatingSelf_InOutBeforeSelfInit_Diagnoses(t *testing.T) {
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
				{Kind: mir.InstrMarkUninit, MarkUninit: mir.MarkUninitInstr{Local: 0, Kind: mir.MarkUninitDelegatingSelf}},
				callInstr(mir.CallPlain, 0),
				callInstr(mir.CallSelfInit, 0),
			}, Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: false}}},
		},
	}

	bag, reporter := newBag()
	obj := di.NewAggregateObject(0, "self", f.Locals[0].Span, di.DelegatingSelf, []di.FieldDecl{{Name: "<self.init>"}})
	c := di.NewChecker(f, obj, reporter, interner, di.Options{})
	c.Run()

	if !c.HadError() {
		t.Fatal("HadError() = false, want true: self escapes by reference before self.init")
	}
	if !hasCode(codesOf(bag), diag.DISelfBeforeSuperselfinit) {
		t.Errorf("bag codes = %v, want DISelfBeforeSuperselfinit", codesOf(bag))
	}
}
