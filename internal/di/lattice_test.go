package di_test

import (
	"testing"

	"surge/internal/di"
)

func TestMerge_UnknownIsIdentity(t *testing.T) {
	yes := di.Known(di.Yes)
	if got := di.Merge(di.Unknown, yes); got != yes {
		t.Errorf("Merge(Unknown, Yes) = %v, want %v", got, yes)
	}
	if got := di.Merge(yes, di.Unknown); got != yes {
		t.Errorf("Merge(Yes, Unknown) = %v, want %v", got, yes)
	}
}

func TestMerge_SameKindIsIdempotent(t *testing.T) {
	for _, k := range []di.DIKind{di.No, di.Yes, di.Partial} {
		o := di.Known(k)
		if got := di.Merge(o, o); got != o {
			t.Errorf("Merge(%v, %v) = %v, want %v", o, o, got, o)
		}
	}
}

func TestMerge_DifferentKindsYieldPartial(t *testing.T) {
	tests := []struct{ a, b di.DIKind }{
		{di.No, di.Yes},
		{di.Yes, di.No},
		{di.No, di.Partial},
		{di.Yes, di.Partial},
	}
	for _, tt := range tests {
		got := di.Merge(di.Known(tt.a), di.Known(tt.b))
		if got.IsUnknown() || got.Kind() != di.Partial {
			t.Errorf("Merge(%v, %v) = %v, want Partial", tt.a, tt.b, got)
		}
	}
}

func TestOptional_IsUnknown(t *testing.T) {
	if !di.Unknown.IsUnknown() {
		t.Error("Unknown.IsUnknown() = false, want true")
	}
	if di.Known(di.No).IsUnknown() {
		t.Error("Known(No).IsUnknown() = true, want false")
	}
}

func TestDIKind_String(t *testing.T) {
	tests := map[di.DIKind]string{
		di.No:      "no",
		di.Yes:     "yes",
		di.Partial: "partial",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", k, got, want)
		}
	}
}
