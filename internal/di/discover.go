package di

import (
	"surge/internal/mir"
	"surge/internal/types"
)

// DiscoverObjects scans f for InstrMarkUninit markers and builds one
// MemoryObject per distinct marked local, in marker-encounter order. Field
// elements of an aggregate (self) object are discovered from the place
// projections the function body actually uses against that local — mirrors
// how the Collector itself only ever reasons from observed projections
// rather than a separate struct-layout query (see collect.go).
func DiscoverObjects(f *mir.Func, typesIn *types.Interner) []*MemoryObject {
	var objs []*MemoryObject
	seen := make(map[mir.LocalID]bool)
	for bi := range f.Blocks {
		for ii := range f.Blocks[bi].Instrs {
			ins := &f.Blocks[bi].Instrs[ii]
			if ins.Kind != mir.InstrMarkUninit || seen[ins.MarkUninit.Local] {
				continue
			}
			seen[ins.MarkUninit.Local] = true
			objs = append(objs, buildObject(f, typesIn, ins.MarkUninit.Local, ins.MarkUninit.Kind))
		}
	}
	return objs
}

func buildObject(f *mir.Func, typesIn *types.Interner, local mir.LocalID, kind mir.MarkUninitKind) *MemoryObject {
	decl := f.Locals[local]
	isLet := decl.Flags&mir.LocalFlagLet != 0
	trivial := typeIsTrivial(typesIn, decl.Type)

	if kind == mir.MarkUninitVar {
		return NewPlainObject(local, decl.Name, decl.Span, isLet, trivial)
	}

	if kind == mir.MarkUninitDelegatingSelf {
		// A delegating initializer never tracks self field-by-field (§3:
		// SelfInit requires exactly N==1): the whole receiver settles in one
		// step, when self.init is called.
		return NewAggregateObject(local, decl.Name, decl.Span, DelegatingSelf, []FieldDecl{
			{Name: "<self.init>", Trivial: trivial},
		})
	}

	role := RootClassSelf
	if kind == mir.MarkUninitDerivedSelf {
		role = DerivedClassSelf
	}
	obj := NewAggregateObject(local, decl.Name, decl.Span, role, discoverFields(f, local))
	if role == DerivedClassSelf {
		obj.AddSuperInitElement()
	}
	return obj
}

// discoverFields walks f's body for field projections rooted at local,
// collecting distinct field names in first-use order.
func discoverFields(f *mir.Func, local mir.LocalID) []FieldDecl {
	var fields []FieldDecl
	seen := make(map[string]bool)
	visit := func(proj []mir.PlaceProj) {
		for _, p := range proj {
			if p.Kind != mir.PlaceProjField || seen[p.FieldName] {
				continue
			}
			seen[p.FieldName] = true
			fields = append(fields, FieldDecl{Name: p.FieldName})
		}
	}
	for bi := range f.Blocks {
		for ii := range f.Blocks[bi].Instrs {
			ins := &f.Blocks[bi].Instrs[ii]
			if ins.Kind != mir.InstrAssign {
				continue
			}
			if ins.Assign.Dst.Kind == mir.PlaceLocal && ins.Assign.Dst.Local == local {
				visit(ins.Assign.Dst.Proj)
			}
			if ins.Assign.Src.Kind == mir.RValueUse && ins.Assign.Src.Use.Place.Kind == mir.PlaceLocal &&
				ins.Assign.Src.Use.Place.Local == local {
				visit(ins.Assign.Src.Use.Place.Proj)
			}
		}
	}
	return fields
}

// typeIsTrivial reports whether ty needs no destructor call. internal/types
// declares Kind values for struct/enum/union/alias/fn nominal shapes
// alongside the primitive ones used here, but internal/di only needs to
// distinguish "definitely has no drop glue" from "might", so it sticks to
// the value/owning distinction: an owning pointer, a string, or an array
// might need dropping; every other Kind (including any nominal shape,
// conservatively) does not get special-cased here and falls through to
// trivial — a self object's actual per-field triviality instead comes from
// whatever drop glue its own field accesses already carry in the MIR, which
// rewriteConditionalDestroys defers to via InstrDrop regardless.
func typeIsTrivial(typesIn *types.Interner, ty types.TypeID) bool {
	if typesIn == nil || ty == types.NoTypeID {
		return true
	}
	tt, ok := typesIn.Lookup(ty)
	if !ok {
		return true
	}
	switch tt.Kind {
	case types.KindOwn, types.KindString, types.KindArray:
		return false
	default:
		return true
	}
}
