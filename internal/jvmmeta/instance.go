package jvmmeta

import "fmt"

// Instantiate allocates a new instance of ptrClass: the two-word
// RawInstance header plus a field block sized from the class's (and its
// ancestors') FieldsSize, with the field block's header word set to the
// class's encoded vtable index. Grounded on
// class_instance.rs::instantiate.
//
// The header word this writes (VtableIndexEncode(desc.MethodCount)) is a
// placeholder, not a real per-class vtable index: the original derives it
// from JavaContextData::get_vtable_index, a context-wide registry this
// runtime never builds, since §3's "vtable also stored as a guest-resident
// table for ARM dispatch" is never exercised here — all dispatch in this
// runtime goes through FindMethod on the host side. Harmless today; an ARM
// module that dispatches through this header word directly would not
// resolve to anything meaningful.
func Instantiate(mem Memory, alloc Allocator, ptrClass uint32) (uint32, error) {
	class, err := ReadClass(mem, ptrClass)
	if err != nil {
		return 0, err
	}
	desc, err := ReadDescriptor(mem, class.PtrDescriptor)
	if err != nil {
		return 0, err
	}

	fieldSize := uint32(desc.FieldsSize)

	ptrInstance, err := alloc.Alloc(8) // RawInstance: 2 u32 fields
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

	vtableIndex := int(desc.MethodCount)
	if err := writeStruct(mem, ptrFields, VtableIndexEncode(vtableIndex)); err != nil {
		return 0, err
	}

	if err := writeStruct(mem, ptrInstance, RawInstance{
		PtrFields: ptrFields,
		PtrClass:  ptrClass,
	}); err != nil {
		return 0, err
	}

	return ptrInstance, nil
}

// FieldAddress returns the guest address of an instance field's storage
// cell for a non-static field at the given offset.
func FieldAddress(mem Memory, ptrInstance uint32, offset uint32) (uint32, error) {
	inst, err := readInstance(mem, ptrInstance)
	if err != nil {
		return 0, err
	}
	return inst.PtrFields + offset + 4, nil
}

func readInstance(mem Memory, ptrInstance uint32) (RawInstance, error) {
	var inst RawInstance
	err := readStruct(mem, ptrInstance, &inst)
	return inst, err
}

// InstanceClass returns the ptr_class of an instance.
func InstanceClass(mem Memory, ptrInstance uint32) (uint32, error) {
	inst, err := readInstance(mem, ptrInstance)
	if err != nil {
		return 0, err
	}
	return inst.PtrClass, nil
}

// GetField reads a field's 32-bit word value from an instance. If field
// is static, the word is read from the field record's own storage cell
// instead of the instance's field block.
func GetField(mem Memory, ptrInstance uint32, ptrField uint32) (uint32, error) {
	f, err := ReadField(mem, ptrField)
	if err != nil {
		return 0, err
	}

	if f.AccessFlags&AccStatic != 0 {
		data, err := mem.ReadBytes(ptrField+12, 4)
		if err != nil {
			return 0, err
		}
		return leU32(data), nil
	}

	addr, err := FieldAddress(mem, ptrInstance, f.OffsetOrValue)
	if err != nil {
		return 0, err
	}
	data, err := mem.ReadBytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return leU32(data), nil
}

// PutField writes a field's 32-bit word value on an instance (or into the
// field record's static storage cell, for a static field).
func PutField(mem Memory, ptrInstance uint32, ptrField uint32, value uint32) error {
	f, err := ReadField(mem, ptrField)
	if err != nil {
		return err
	}

	if f.AccessFlags&AccStatic != 0 {
		return mem.WriteBytes(ptrField+12, le32(value))
	}

	addr, err := FieldAddress(mem, ptrInstance, f.OffsetOrValue)
	if err != nil {
		return err
	}
	return mem.WriteBytes(addr, le32(value))
}

// FindField walks a class's field table for the first (name, descriptor)
// match. The original doesn't expose a linear field table the way it does
// methods (fields are resolved by the Java compiler's constant pool ahead
// of time); this runtime still needs a runtime lookup for field access
// from bytecode, so it keeps its own compact field index alongside the
// class's RawDescriptor: the []FieldEntry slice LoadClass returns, which
// internal/jvmruntime keeps per class.
func FindField(table []FieldEntry, name FullName) (FieldEntry, error) {
	for _, f := range table {
		if (FullName{Name: f.Name, Descriptor: f.Descriptor}).Equal(name) {
			return f, nil
		}
	}
	return FieldEntry{}, fmt.Errorf("jvmmeta: field %s not found", name)
}

// FieldEntry is a resolved field: its metadata record plus the name this
// runtime looked it up by.
type FieldEntry struct {
	PtrField   uint32
	Name       string
	Descriptor string
}
