package jvmmeta

import "testing"

func TestBuildVtableAppendsNewMethods(t *testing.T) {
	parent := []vtableSlot{
		{spec: MethodSpec{Name: "a", Descriptor: "()V"}, index: 0},
	}
	child := buildVtable(parent, []MethodSpec{
		{Name: "b", Descriptor: "()V"},
	})
	if len(child) != 2 {
		t.Fatalf("len(child) = %d, want 2", len(child))
	}
	if child[0].spec.Name != "a" || child[1].spec.Name != "b" {
		t.Errorf("unexpected slot order: %+v", child)
	}
	if child[0].index != 0 || child[1].index != 1 {
		t.Errorf("unexpected slot indices: %+v", child)
	}
}

func TestBuildVtableOverridesMatchingSlot(t *testing.T) {
	parent := []vtableSlot{
		{spec: MethodSpec{Name: "run", Descriptor: "()V", TrampolineAddr: 0x1000}, index: 0},
	}
	child := buildVtable(parent, []MethodSpec{
		{Name: "run", Descriptor: "()V", TrampolineAddr: 0x2000},
	})
	if len(child) != 1 {
		t.Fatalf("len(child) = %d, want 1 (override, not append)", len(child))
	}
	if child[0].spec.TrampolineAddr != 0x2000 {
		t.Errorf("expected override to take the new trampoline, got 0x%x", child[0].spec.TrampolineAddr)
	}
}

func TestVtableIndexEncodeDecodeRoundTrip(t *testing.T) {
	for _, idx := range []int{0, 1, 5, 42} {
		enc := VtableIndexEncode(idx)
		if got := VtableIndexDecode(enc); got != idx {
			t.Errorf("index %d: round trip got %d", idx, got)
		}
	}
}
