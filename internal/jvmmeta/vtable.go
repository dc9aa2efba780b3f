package jvmmeta

// vtableSlot is one resolved entry while building a class's method table:
// either inherited from the parent unchanged, or newly provided by this
// class (which may itself be an override of a same-named, same-descriptor
// parent slot).
type vtableSlot struct {
	spec  MethodSpec
	index int
}

// buildVtable lays out the child's method slots: it starts from the
// parent's slots (by name+descriptor, not by copying raw pointers —
// callers always re-materialize every method for the child so overridden
// bodies get new trampolines), overrides any slot a new spec matches by
// (name, descriptor), and appends the rest. Per spec §4.E/§9 this mirrors
// class_instance.rs::instantiate's "child copies parent's vtable,
// overrides matching slots or appends new ones."
func buildVtable(parent []vtableSlot, specs []MethodSpec) []vtableSlot {
	out := make([]vtableSlot, len(parent))
	copy(out, parent)

	for _, spec := range specs {
		full := FullName{Name: spec.Name, Descriptor: spec.Descriptor}
		overridden := false
		for i, slot := range out {
			slotFull := FullName{Name: slot.spec.Name, Descriptor: slot.spec.Descriptor}
			if slotFull.Equal(full) {
				out[i].spec = spec
				overridden = true
				break
			}
		}
		if !overridden {
			out = append(out, vtableSlot{spec: spec, index: len(out)})
		}
	}

	for i := range out {
		out[i].index = i
	}
	return out
}

// VtableIndexEncode encodes a raw vtable slot index the way the field
// block header word stores it: (index*4) << 5. Taken verbatim from
// class_instance.rs::instantiate.
func VtableIndexEncode(index int) uint32 {
	return uint32(index*4) << 5
}

// VtableIndexDecode reverses VtableIndexEncode.
func VtableIndexDecode(encoded uint32) int {
	return int(encoded>>5) / 4
}
