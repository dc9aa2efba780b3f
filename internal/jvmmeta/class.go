package jvmmeta

import "fmt"

// Allocator is the guest heap contract jvmmeta needs for class
// construction. internal/heap.Heap satisfies it.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
}

const (
	rawClassSize      = 5 * 4  // RawClass: 5 u32 fields
	rawDescriptorSize = 6*4 + 6*2 // RawDescriptor: 6 u32 + 6 u16
	rawMethodSize     = 4*4 + 4*2 + 4 // RawMethod: 4 u32, 4 u16, 1 u32
	rawFieldSize      = 4 * 4  // RawField: 4 u32 fields
)

// MethodSpec describes one method to add to (or override in) a class
// being loaded. TrampolineAddr must already be a guest-callable address —
// obtained from internal/nativebridge for native bodies, or from a
// bytecode method's own entry point for interpreted ones. jvmmeta never
// registers trampolines itself; it only lays out the metadata that points
// at them, mirroring JavaMethod::new taking an already-registered
// fn_method from register_java_method.
type MethodSpec struct {
	Name           string
	Descriptor     string
	AccessFlags    uint16
	Native         bool
	TrampolineAddr uint32
}

// FieldSpec describes one field to add to a class being loaded.
type FieldSpec struct {
	Name        string
	Descriptor  string
	AccessFlags uint32
	// StaticInit is the initial value stored at the field's static cell.
	// Ignored for instance fields.
	StaticInit uint32
}

// ClassSpec is the full description LoadClass needs to materialize a
// class's guest-resident metadata.
type ClassSpec struct {
	Name        string
	Parent      uint32 // ptr_class of the superclass, or 0
	AccessFlags uint16
	Methods     []MethodSpec
	Fields      []FieldSpec
}

// ReadClass reads the RawClass header at ptr.
func ReadClass(mem Memory, ptr uint32) (RawClass, error) {
	var c RawClass
	err := readStruct(mem, ptr, &c)
	return c, err
}

// ReadDescriptor reads the RawDescriptor at ptr.
func ReadDescriptor(mem Memory, ptr uint32) (RawDescriptor, error) {
	var d RawDescriptor
	err := readStruct(mem, ptr, &d)
	return d, err
}

// ReadMethod reads the RawMethod at ptr.
func ReadMethod(mem Memory, ptr uint32) (RawMethod, error) {
	var m RawMethod
	err := readStruct(mem, ptr, &m)
	return m, err
}

// ReadField reads the RawField at ptr.
func ReadField(mem Memory, ptr uint32) (RawField, error) {
	var f RawField
	err := readStruct(mem, ptr, &f)
	return f, err
}

// ClassName reads a class's name through its descriptor.
func ClassName(mem Memory, ptrClass uint32) (string, error) {
	class, err := ReadClass(mem, ptrClass)
	if err != nil {
		return "", err
	}
	desc, err := ReadDescriptor(mem, class.PtrDescriptor)
	if err != nil {
		return "", err
	}
	data, err := mem.ReadBytes(desc.PtrName, 256)
	if err != nil {
		return "", err
	}
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), nil
		}
	}
	return string(data), nil
}

// readParentSlots walks an existing class's method table into vtableSlots
// so a child class being loaded can inherit and override them.
func readParentSlots(mem Memory, ptrParentClass uint32) ([]vtableSlot, error) {
	if ptrParentClass == 0 {
		return nil, nil
	}

	class, err := ReadClass(mem, ptrParentClass)
	if err != nil {
		return nil, err
	}
	desc, err := ReadDescriptor(mem, class.PtrDescriptor)
	if err != nil {
		return nil, err
	}

	var slots []vtableSlot
	cursor := desc.PtrMethods
	for i := 0; i < int(desc.MethodCount)+1; i++ {
		entries, err := mem.ReadBytes(cursor, 4)
		if err != nil {
			return nil, err
		}
		ptrMethod := leU32(entries)
		if ptrMethod == 0 {
			break
		}

		m, err := ReadMethod(mem, ptrMethod)
		if err != nil {
			return nil, err
		}
		full, err := ReadFullName(mem, m.PtrName)
		if err != nil {
			return nil, err
		}

		addr, native := m.FnBody, false
		if m.AccessFlags&AccNative != 0 {
			addr, native = m.FnBodyNativeOrExceptionTable, true
		}

		slots = append(slots, vtableSlot{
			index: len(slots),
			spec: MethodSpec{
				Name:           full.Name,
				Descriptor:     full.Descriptor,
				AccessFlags:    m.AccessFlags,
				Native:         native,
				TrampolineAddr: addr,
			},
		})
		cursor += 4
	}

	return slots, nil
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// parentFieldsSize reads a parent class's descriptor FieldsSize, which is
// already the parent's own instance-field bytes plus everything it in turn
// inherited: §4.E step 3 appends a class's own instance fields "after
// parent's instance-field block," so this is the byte offset a child
// class's own fields must start at, and the size a child's FieldsSize must
// include alongside its own.
func parentFieldsSize(mem Memory, ptrParentClass uint32) (uint16, error) {
	if ptrParentClass == 0 {
		return 0, nil
	}
	class, err := ReadClass(mem, ptrParentClass)
	if err != nil {
		return 0, err
	}
	desc, err := ReadDescriptor(mem, class.PtrDescriptor)
	if err != nil {
		return 0, err
	}
	return desc.FieldsSize, nil
}

// LoadClass materializes a class's guest-resident metadata: its RawClass
// header, RawDescriptor, method table (parent slots inherited and
// overridden/appended per buildVtable), and field table. It returns the
// new class's ptr_class and a host-side index of its own (non-inherited)
// fields, since — unlike methods — the original format has no linear,
// guest-walkable field table; field resolution is a host-side lookup by
// (name, descriptor) against records LoadClass itself just allocated.
func LoadClass(mem Memory, alloc Allocator, spec ClassSpec) (uint32, []FieldEntry, error) {
	parentSlots, err := readParentSlots(mem, spec.Parent)
	if err != nil {
		return 0, nil, fmt.Errorf("jvmmeta: read parent slots: %w", err)
	}
	slots := buildVtable(parentSlots, spec.Methods)

	ptrClass, err := alloc.Alloc(rawClassSize)
	if err != nil {
		return 0, nil, err
	}
	// ptr_next mirrors the original's self-referential placeholder
	// (JavaClass::ptr_next = ptr_class + 4); nothing in this runtime
	// chases class-list links through it, but the field is kept for
	// byte-layout fidelity.
	if err := writeStruct(mem, ptrClass, RawClass{PtrNext: ptrClass + 4}); err != nil {
		return 0, nil, err
	}

	ptrMethods, err := alloc.Alloc(uint32(len(slots)+1) * 4)
	if err != nil {
		return 0, nil, err
	}
	cursor := ptrMethods
	for _, slot := range slots {
		ptrMethod, err := writeMethod(mem, alloc, ptrClass, slot.spec, slot.index)
		if err != nil {
			return 0, nil, err
		}
		if err := mem.WriteBytes(cursor, le32(ptrMethod)); err != nil {
			return 0, nil, err
		}
		cursor += 4
	}
	if err := mem.WriteBytes(cursor, le32(0)); err != nil {
		return 0, nil, err
	}

	parentFieldsSz, err := parentFieldsSize(mem, spec.Parent)
	if err != nil {
		return 0, nil, fmt.Errorf("jvmmeta: read parent fields size: %w", err)
	}

	var ownFieldsSize uint16
	for _, f := range spec.Fields {
		if f.AccessFlags&AccStatic == 0 {
			ownFieldsSize += 4
		}
	}
	fieldsSize := parentFieldsSz + ownFieldsSize

	ptrName, err := writeName(mem, alloc, spec.Name)
	if err != nil {
		return 0, nil, err
	}

	ptrDescriptor, err := alloc.Alloc(rawDescriptorSize)
	if err != nil {
		return 0, nil, err
	}
	accessFlags := spec.AccessFlags
	if accessFlags == 0 {
		accessFlags = AccPublic | 0x20 // ACC_PUBLIC | ACC_SUPER
	}
	if err := writeStruct(mem, ptrDescriptor, RawDescriptor{
		PtrName:     ptrName,
		ParentClass: spec.Parent,
		PtrMethods:  ptrMethods,
		MethodCount: uint16(len(slots)),
		FieldsSize:  fieldsSize,
		AccessFlags: accessFlags,
	}); err != nil {
		return 0, nil, err
	}

	// Own fields are laid out after the parent's instance-field block, per
	// §4.E step 3, so a child's offsets never collide with an inherited
	// field's offset.
	instanceOffset := uint32(parentFieldsSz)
	fields := make([]FieldEntry, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		ptrField, err := writeField(mem, alloc, ptrClass, f, instanceOffset)
		if err != nil {
			return 0, nil, err
		}
		fields = append(fields, FieldEntry{PtrField: ptrField, Name: f.Name, Descriptor: f.Descriptor})
		if f.AccessFlags&AccStatic == 0 {
			instanceOffset += 4
		}
	}

	class, err := ReadClass(mem, ptrClass)
	if err != nil {
		return 0, nil, err
	}
	class.PtrDescriptor = ptrDescriptor
	if err := writeStruct(mem, ptrClass, class); err != nil {
		return 0, nil, err
	}

	return ptrClass, fields, nil
}

func writeName(mem Memory, alloc Allocator, name string) (uint32, error) {
	raw := append([]byte(name), 0)
	ptr, err := alloc.Alloc(uint32(len(raw)))
	if err != nil {
		return 0, err
	}
	if err := mem.WriteBytes(ptr, raw); err != nil {
		return 0, err
	}
	return ptr, nil
}

func writeMethod(mem Memory, alloc Allocator, ptrClass uint32, spec MethodSpec, index int) (uint32, error) {
	full := FullName{Name: spec.Name, Descriptor: spec.Descriptor}
	ptrName, err := alloc.Alloc(full.EncodedSize())
	if err != nil {
		return 0, err
	}
	if err := WriteFullName(mem, ptrName, full); err != nil {
		return 0, err
	}

	ptrMethod, err := alloc.Alloc(rawMethodSize)
	if err != nil {
		return 0, err
	}

	raw := RawMethod{
		PtrClass:       ptrClass,
		PtrName:        ptrName,
		IndexInVtable:  uint16(index),
		AccessFlags:    spec.AccessFlags,
	}
	if spec.Native {
		raw.FnBodyNativeOrExceptionTable = spec.TrampolineAddr
	} else {
		raw.FnBody = spec.TrampolineAddr
	}

	if err := writeStruct(mem, ptrMethod, raw); err != nil {
		return 0, err
	}
	return ptrMethod, nil
}

func writeField(mem Memory, alloc Allocator, ptrClass uint32, spec FieldSpec, offset uint32) (uint32, error) {
	full := FullName{Name: spec.Name, Descriptor: spec.Descriptor}
	ptrName, err := alloc.Alloc(full.EncodedSize())
	if err != nil {
		return 0, err
	}
	if err := WriteFullName(mem, ptrName, full); err != nil {
		return 0, err
	}

	ptrField, err := alloc.Alloc(rawFieldSize)
	if err != nil {
		return 0, err
	}

	offsetOrValue := offset
	if spec.AccessFlags&AccStatic != 0 {
		offsetOrValue = spec.StaticInit
	}

	if err := writeStruct(mem, ptrField, RawField{
		AccessFlags:   spec.AccessFlags,
		PtrClass:      ptrClass,
		PtrName:       ptrName,
		OffsetOrValue: offsetOrValue,
	}); err != nil {
		return 0, err
	}
	return ptrField, nil
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// FindMethod walks a class's method table for the first (name,
// descriptor) match, mirroring KtfJvm::get_method's linear scan.
func FindMethod(mem Memory, ptrClass uint32, name FullName) (uint32, error) {
	class, err := ReadClass(mem, ptrClass)
	if err != nil {
		return 0, err
	}
	desc, err := ReadDescriptor(mem, class.PtrDescriptor)
	if err != nil {
		return 0, err
	}

	cursor := desc.PtrMethods
	for {
		entry, err := mem.ReadBytes(cursor, 4)
		if err != nil {
			return 0, err
		}
		ptr := leU32(entry)
		if ptr == 0 {
			return 0, fmt.Errorf("jvmmeta: method %s not found", name)
		}

		m, err := ReadMethod(mem, ptr)
		if err != nil {
			return 0, err
		}
		full, err := ReadFullName(mem, m.PtrName)
		if err != nil {
			return 0, err
		}
		if full.Equal(name) {
			return ptr, nil
		}
		cursor += 4
	}
}
