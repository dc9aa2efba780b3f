package jvmmeta

import "fmt"

// InstantiateArray allocates an array instance: the same two-word
// RawInstance header as a regular object, but with a field block sized
// from length*elemSize rather than from the class descriptor's
// FieldsSize, per §4.E's "synthetic array class" construction. ptrClass
// should be a class previously loaded with no declared fields (the
// synthetic array class for this element type); its vtable is still
// consulted for the header word so arrays dispatch through the normal
// method path if the corpus ever calls a method on one (e.g. clone).
//
// As in Instantiate, the header word is a method-count-derived
// placeholder rather than a real per-class vtable index; see the note
// there.
func InstantiateArray(mem Memory, alloc Allocator, ptrClass uint32, elemSize uint32, length uint32) (uint32, error) {
	class, err := ReadClass(mem, ptrClass)
	if err != nil {
		return 0, err
	}
	desc, err := ReadDescriptor(mem, class.PtrDescriptor)
	if err != nil {
		return 0, err
	}

	fieldSize := elemSize * length

	ptrInstance, err := alloc.Alloc(8)
	if err != nil {
		return 0, err
	}
	ptrFields, err := alloc.Alloc(fieldSize + 4)
	if err != nil {
		return 0, err
	}

	zero := make([]byte, fieldSize+4)
	if err := mem.WriteBytes(ptrFields, zero); err != nil {
		return 0, err
	}
	if err := writeStruct(mem, ptrFields, VtableIndexEncode(int(desc.MethodCount))); err != nil {
		return 0, err
	}

	if err := writeStruct(mem, ptrInstance, RawInstance{PtrFields: ptrFields, PtrClass: ptrClass}); err != nil {
		return 0, err
	}
	return ptrInstance, nil
}

// LoadArray reads one element's raw bytes at index, bounds-checked
// against length (the host-side length a caller tracks for this array
// instance — see jvmruntime's array length cache).
func LoadArray(mem Memory, ptrInstance uint32, elemSize, index, length uint32) ([]byte, error) {
	if index >= length {
		return nil, fmt.Errorf("jvmmeta: array index %d out of bounds (length %d)", index, length)
	}
	inst, err := readInstance(mem, ptrInstance)
	if err != nil {
		return nil, err
	}
	return mem.ReadBytes(inst.PtrFields+4+index*elemSize, elemSize)
}

// StoreArray writes one element's raw bytes at index, bounds-checked
// against length.
func StoreArray(mem Memory, ptrInstance uint32, elemSize, index, length uint32, data []byte) error {
	if index >= length {
		return fmt.Errorf("jvmmeta: array index %d out of bounds (length %d)", index, length)
	}
	inst, err := readInstance(mem, ptrInstance)
	if err != nil {
		return err
	}
	return mem.WriteBytes(inst.PtrFields+4+index*elemSize, data)
}
