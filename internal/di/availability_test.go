package di_test

import (
	"testing"

	"surge/internal/di"
)

func TestAvailabilitySet_GetSetRoundTrip(t *testing.T) {
	a := di.NewAvailabilitySet(4)
	if got := a.Len(); got != 4 {
		t.Fatalf("Len() = %d, want 4", got)
	}
	for i := 0; i < 4; i++ {
		if o := a.Get(i); !o.IsUnknown() {
			t.Errorf("element %d = %v, want Unknown before any Set", i, o)
		}
	}
	a.Set(1, di.Known(di.Yes))
	a.Set(2, di.Known(di.Partial))
	if o := a.Get(1); o.IsUnknown() || o.Kind() != di.Yes {
		t.Errorf("element 1 = %v, want Yes", o)
	}
	if o := a.Get(2); o.IsUnknown() || o.Kind() != di.Partial {
		t.Errorf("element 2 = %v, want Partial", o)
	}
	if o := a.Get(0); !o.IsUnknown() {
		t.Errorf("element 0 = %v, want still Unknown", o)
	}
}

func TestAvailabilitySet_OutOfRangeIsUnknown(t *testing.T) {
	a := di.NewAvailabilitySet(2)
	if o := a.Get(-1); !o.IsUnknown() {
		t.Errorf("Get(-1) = %v, want Unknown", o)
	}
	if o := a.Get(2); !o.IsUnknown() {
		t.Errorf("Get(2) = %v, want Unknown", o)
	}
	// Set on an out-of-range index must not panic and must be a no-op.
	a.Set(5, di.Known(di.Yes))
}

func TestAvailabilitySet_SetRange(t *testing.T) {
	a := di.NewAvailabilitySet(5)
	a.SetRange(1, 3, di.Known(di.No))
	for i := 1; i < 4; i++ {
		if o := a.Get(i); o.IsUnknown() || o.Kind() != di.No {
			t.Errorf("element %d = %v, want No", i, o)
		}
	}
	if o := a.Get(0); !o.IsUnknown() {
		t.Errorf("element 0 = %v, want Unknown", o)
	}
	if o := a.Get(4); !o.IsUnknown() {
		t.Errorf("element 4 = %v, want Unknown", o)
	}
}

func TestAvailabilitySet_AllYesAllNo(t *testing.T) {
	a := di.NewAvailabilitySet(3)
	a.SetRange(0, 3, di.Known(di.Yes))
	if !a.AllYes(0, 3) {
		t.Error("AllYes(0, 3) = false, want true")
	}
	if a.AllNo(0, 3) {
		t.Error("AllNo(0, 3) = true, want false")
	}
	a.Set(1, di.Known(di.No))
	if a.AllYes(0, 3) {
		t.Error("AllYes(0, 3) = true after one No element, want false")
	}
}

func TestAvailabilitySet_ContainsUnknown(t *testing.T) {
	a := di.NewAvailabilitySet(3)
	if !a.ContainsUnknown(0, 3) {
		t.Error("ContainsUnknown(0, 3) = false on a fresh set, want true")
	}
	a.SetRange(0, 3, di.Known(di.Yes))
	if a.ContainsUnknown(0, 3) {
		t.Error("ContainsUnknown(0, 3) = true after filling every element, want false")
	}
}

func TestAvailabilitySet_Clone(t *testing.T) {
	a := di.NewAvailabilitySet(2)
	a.Set(0, di.Known(di.Yes))
	b := a.Clone()
	b.Set(0, di.Known(di.No))
	if o := a.Get(0); o.IsUnknown() || o.Kind() != di.Yes {
		t.Errorf("original element 0 = %v after mutating clone, want unchanged Yes", o)
	}
}

func TestMergeSets(t *testing.T) {
	a := di.NewAvailabilitySet(2)
	b := di.NewAvailabilitySet(2)
	a.Set(0, di.Known(di.Yes))
	b.Set(0, di.Known(di.Yes))
	a.Set(1, di.Known(di.Yes))
	b.Set(1, di.Known(di.No))

	merged := di.MergeSets(a, b)
	if o := merged.Get(0); o.IsUnknown() || o.Kind() != di.Yes {
		t.Errorf("merged element 0 = %v, want Yes", o)
	}
	if o := merged.Get(1); o.IsUnknown() || o.Kind() != di.Partial {
		t.Errorf("merged element 1 = %v, want Partial", o)
	}
}

func TestBitWidth(t *testing.T) {
	n, err := di.BitWidth(7)
	if err != nil {
		t.Fatalf("BitWidth(7) error: %v", err)
	}
	if n != 7 {
		t.Errorf("BitWidth(7) = %d, want 7", n)
	}

	if _, err := di.BitWidth(1 << 20); err == nil {
		t.Error("BitWidth(1<<20) expected an error for a width that doesn't fit uint8, got nil")
	}
}
