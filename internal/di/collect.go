package di

import "surge/internal/mir"

// Collector walks a mir.Func and yields Use/Release records for a given
// MemoryObject's mir.Local. This mirrors how internal/mir/async_liveness.go
// walks instructions to build use/def sets for the (pre-existing, unrelated)
// async-lowering liveness analysis — same shape of problem, new
// element-precision dataflow.
type Collector struct {
	f   *mir.Func
	obj *MemoryObject
}

// NewCollector returns a Collector for obj's local within f.
func NewCollector(f *mir.Func, obj *MemoryObject) *Collector {
	return &Collector{f: f, obj: obj}
}

// Collect walks every block of f in order and returns the uses and
// releases that touch c.obj's local, in deterministic source order
// (blocks in f.Blocks order, instructions in Block.Instrs order).
func (c *Collector) Collect() (uses []Use, releases []Release) {
	if c == nil || c.f == nil || c.obj == nil {
		return nil, nil
	}
	local := c.obj.Local
	for bi := range c.f.Blocks {
		bb := &c.f.Blocks[bi]
		bbID := mir.BlockID(bi) //nolint:gosec // bounded by block count
		for ii := range bb.Instrs {
			ins := &bb.Instrs[ii]
			idx := InstrIndex(ii) //nolint:gosec // bounded by instruction count
			switch ins.Kind {
			case mir.InstrMarkUninit:
				if ins.MarkUninit.Local == local {
					uses = append(uses, Use{
						Block: bbID, Index: idx, Kind: Initialization,
						FirstElement: 0, NumElements: c.obj.N(),
					})
				}
			case mir.InstrAssign:
				if use, ok := c.classifyAssign(ins, bbID, idx, local); ok {
					uses = append(uses, use)
				}
				if u, ok := c.loadUseFromRValue(&ins.Assign.Src, bbID, idx, local); ok {
					uses = append(uses, u)
				}
			case mir.InstrDrop:
				if placeIsLocal(ins.Drop.Place, local) {
					releases = append(releases, Release{Block: bbID, Index: idx})
				}
			case mir.InstrEndBorrow:
				if placeIsLocal(ins.EndBorrow.Place, local) {
					releases = append(releases, Release{Block: bbID, Index: idx})
				}
			case mir.InstrCall:
				if u, ok := c.specialInitUse(ins, bbID, idx, local); ok {
					uses = append(uses, u)
				} else {
					uses = append(uses, c.loadUsesFromCall(ins, bbID, idx, local)...)
				}
			}
		}
		uses = append(uses, c.loadUsesFromTerminator(bb, bbID, local)...)
	}
	return uses, releases
}

// classifyAssign turns a store into a local into a Use, choosing among
// Initialization/Assign/InitOrAssign/PartialStore per §3.
func (c *Collector) classifyAssign(ins *mir.Instr, bb mir.BlockID, idx InstrIndex, local mir.LocalID) (Use, bool) {
	dst := ins.Assign.Dst
	if dst.Kind != mir.PlaceLocal || dst.Local != local {
		return Use{}, false
	}

	if len(dst.Proj) == 0 {
		// Whole-object store: ambiguous between init and assign until
		// dataflow resolves it.
		return Use{Block: bb, Index: idx, Kind: InitOrAssign, FirstElement: 0, NumElements: c.obj.N()}, true
	}

	if len(dst.Proj) == 1 && dst.Proj[0].Kind == mir.PlaceProjField {
		// A direct write to one of the object's own tracked elements: same
		// ambiguity as a whole-object store, just scoped to that element.
		// `self.a = 1` followed later by `self.b = 2` must not require b to
		// already be Yes when a is written — each field settles
		// independently, the same as a plain local would.
		elt := elementIndexForProj(c.obj, dst.Proj)
		return Use{Block: bb, Index: idx, Kind: InitOrAssign, FirstElement: elt, NumElements: 1}, true
	}

	// A deeper projection (e.g. a field of a field, or an index into an
	// element): the store only touches part of whatever single tracked
	// element it resolves to, so it can never fully settle that element on
	// its own.
	elt := elementIndexForProj(c.obj, dst.Proj)
	return Use{Block: bb, Index: idx, Kind: PartialStore, FirstElement: elt, NumElements: 1}, true
}

// elementIndexForProj maps a field projection onto c.obj's element index by
// matching the projected field name against the object's known path names.
// Any object with N==1 (the common plain-variable case) has no field
// projections to resolve, so this only matters for aggregate (self)
// objects.
func elementIndexForProj(obj *MemoryObject, proj []mir.PlaceProj) int {
	for _, p := range proj {
		if p.Kind != mir.PlaceProjField {
			continue
		}
		for i := 0; i < obj.N(); i++ {
			if hasFieldSuffix(obj.PathName(i), p.FieldName) {
				return i
			}
		}
	}
	return 0
}

func hasFieldSuffix(path, field string) bool {
	if len(path) < len(field) {
		return false
	}
	tail := path[len(path)-len(field):]
	return tail == field && (len(path) == len(field) || path[len(path)-len(field)-1] == '.')
}

func placeIsLocal(p mir.Place, local mir.LocalID) bool {
	return p.Kind == mir.PlaceLocal && p.Local == local
}

// loadUseFromRValue finds a Load/IndirectIn use of local inside an
// RValue's operands (the right-hand side of an InstrAssign other than its
// own destination).
func (c *Collector) loadUseFromRValue(rv *mir.RValue, bb mir.BlockID, idx InstrIndex, local mir.LocalID) (Use, bool) {
	op, ok := operandTouching(rv, local)
	if !ok {
		return Use{}, false
	}
	return c.loadUseFromOperand(op, bb, idx, local)
}

func (c *Collector) loadUseFromOperand(op *mir.Operand, bb mir.BlockID, idx InstrIndex, local mir.LocalID) (Use, bool) {
	if op == nil || op.Place.Kind != mir.PlaceLocal || op.Place.Local != local {
		return Use{}, false
	}
	elt, count := 0, c.obj.N()
	if len(op.Place.Proj) > 0 {
		elt, count = elementIndexForProj(c.obj, op.Place.Proj), 1
	}
	switch op.Kind {
	case mir.OperandCopy, mir.OperandMove:
		return Use{Block: bb, Index: idx, Kind: Load, FirstElement: elt, NumElements: count}, true
	case mir.OperandAddrOf:
		return Use{Block: bb, Index: idx, Kind: IndirectIn, FirstElement: elt, NumElements: count}, true
	case mir.OperandAddrOfMut:
		return Use{Block: bb, Index: idx, Kind: InOutUse, FirstElement: elt, NumElements: count}, true
	default:
		return Use{}, false
	}
}

// operandTouching returns the single Operand within rv that refers to
// local, if any. DI only needs the first match: a well-formed MIR value
// touches a given local in at most one operand position per instruction
// (move/borrow checking upstream already rules out duplicate uses of a
// single-owner value in one RValue).
func operandTouching(rv *mir.RValue, local mir.LocalID) (*mir.Operand, bool) {
	check := func(op *mir.Operand) (*mir.Operand, bool) {
		if op != nil && op.Place.Kind == mir.PlaceLocal && op.Place.Local == local {
			return op, true
		}
		return nil, false
	}
	switch rv.Kind {
	case mir.RValueUse:
		return check(&rv.Use)
	case mir.RValueUnaryOp:
		return check(&rv.Unary.Operand)
	case mir.RValueBinaryOp:
		if op, ok := check(&rv.Binary.Left); ok {
			return op, ok
		}
		return check(&rv.Binary.Right)
	case mir.RValueCast:
		return check(&rv.Cast.Value)
	case mir.RValueField:
		return check(&rv.Field.Object)
	case mir.RValueIndex:
		return check(&rv.Index.Object)
	case mir.RValueTagTest:
		return check(&rv.TagTest.Value)
	case mir.RValueTagPayload:
		return check(&rv.TagPayload.Value)
	case mir.RValueTypeTest:
		return check(&rv.TypeTest.Value)
	case mir.RValueHeirTest:
		return check(&rv.HeirTest.Value)
	default:
		return nil, false
	}
}

// specialInitUse recognizes a call marked mir.CallSuperInit/CallSelfInit
// whose self argument is c.obj's local, producing the SuperInit/SelfInit
// Use §4.3 dispatches on instead of the generic inout/load uses
// loadUsesFromCall would otherwise build for that argument.
func (c *Collector) specialInitUse(ins *mir.Instr, bb mir.BlockID, idx InstrIndex, local mir.LocalID) (Use, bool) {
	switch ins.Call.Kind {
	case mir.CallSuperInit:
		if !callArgTouchesLocal(ins, local) {
			return Use{}, false
		}
		elt := c.obj.SuperInitElement()
		if elt < 0 {
			return Use{}, false
		}
		return Use{Block: bb, Index: idx, Kind: SuperInit, FirstElement: elt, NumElements: 1}, true
	case mir.CallSelfInit:
		if !callArgTouchesLocal(ins, local) || c.obj.N() != 1 {
			return Use{}, false
		}
		return Use{Block: bb, Index: idx, Kind: SelfInit, FirstElement: 0, NumElements: 1}, true
	default:
		return Use{}, false
	}
}

func callArgTouchesLocal(ins *mir.Instr, local mir.LocalID) bool {
	for i := range ins.Call.Args {
		if placeIsLocal(ins.Call.Args[i].Place, local) {
			return true
		}
	}
	return false
}

func (c *Collector) loadUsesFromCall(ins *mir.Instr, bb mir.BlockID, idx InstrIndex, local mir.LocalID) []Use {
	var out []Use
	if ins.Call.Callee.Kind == mir.CalleeValue {
		if u, ok := c.loadUseFromOperand(&ins.Call.Callee.Value, bb, idx, local); ok {
			out = append(out, u)
		}
	}
	for i := range ins.Call.Args {
		if u, ok := c.loadUseFromOperand(&ins.Call.Args[i], bb, idx, local); ok {
			out = append(out, u)
		}
	}
	return out
}

func (c *Collector) loadUsesFromTerminator(bb *mir.Block, bbID mir.BlockID, local mir.LocalID) []Use {
	idx := InstrIndex(len(bb.Instrs)) //nolint:gosec // bounded by instruction count
	var out []Use
	add := func(op *mir.Operand) {
		if u, ok := c.loadUseFromOperand(op, bbID, idx, local); ok {
			out = append(out, u)
		}
	}
	switch bb.Term.Kind {
	case mir.TermReturn:
		if bb.Term.Return.HasValue {
			add(&bb.Term.Return.Value)
		}
	case mir.TermIf:
		add(&bb.Term.If.Cond)
	case mir.TermSwitchTag:
		add(&bb.Term.SwitchTag.Value)
	}
	return out
}
