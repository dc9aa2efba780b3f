package jvmruntime

import (
	"fmt"

	"wipiemu/internal/jvmmeta"
)

// elemSize reports the guest byte width of one array element given its
// field-descriptor-shaped element type (e.g. "I", "C", "Ljava/lang/String;").
func elemSize(elementDescriptor string) (uint32, error) {
	if elementDescriptor == "" {
		return 0, fmt.Errorf("jvmruntime: empty element descriptor")
	}
	switch elementDescriptor[0] {
	case 'J', 'D':
		return 8, nil
	case 'Z', 'B':
		return 1, nil
	case 'C', 'S':
		return 2, nil
	case 'I', 'F', 'L', '[':
		return 4, nil
	default:
		return 0, fmt.Errorf("jvmruntime: unknown element descriptor %q", elementDescriptor)
	}
}

// arrayClassFor returns the synthetic array class for elementDescriptor,
// loading ("[" + elementDescriptor) into the registry on first use. The
// synthetic class declares no methods or fields; array instances carry
// their element storage directly in an oversized field block (see
// jvmmeta.InstantiateArray), not through the descriptor's own FieldsSize.
func (rt *Runtime) arrayClassFor(elementDescriptor string) (*classEntry, error) {
	if entry, ok := rt.arrayClasses[elementDescriptor]; ok {
		return entry, nil
	}

	name := "[" + elementDescriptor
	if _, err := rt.LoadClass(ClassProto{Name: name}); err != nil {
		return nil, fmt.Errorf("jvmruntime: load synthetic array class %s: %w", name, err)
	}
	entry := rt.classes[name]
	rt.arrayClasses[elementDescriptor] = entry
	return entry, nil
}

// NewArray allocates an array of length elements of elementDescriptor's
// type, per §4.E's instantiate_array.
func (rt *Runtime) NewArray(elementDescriptor string, length uint32) (Instance, error) {
	class, err := rt.arrayClassFor(elementDescriptor)
	if err != nil {
		return Instance{}, err
	}
	size, err := elemSize(elementDescriptor)
	if err != nil {
		return Instance{}, err
	}

	ptr, err := jvmmeta.InstantiateArray(rt.core, rt.heap, class.ptr, size, length)
	if err != nil {
		return Instance{}, fmt.Errorf("jvmruntime: instantiate array %s[%d]: %w", elementDescriptor, length, err)
	}
	rt.arrayLengths[ptr] = length
	return Instance{ptr: ptr, rt: rt}, nil
}

// ArrayLength returns an array instance's element count.
func (rt *Runtime) ArrayLength(array Instance) (uint32, error) {
	length, ok := rt.arrayLengths[array.ptr]
	if !ok {
		return 0, fmt.Errorf("jvmruntime: 0x%x is not a tracked array instance", array.ptr)
	}
	return length, nil
}

// LoadArrayElement reads one element's raw bytes.
func (rt *Runtime) LoadArrayElement(array Instance, elementDescriptor string, index uint32) ([]byte, error) {
	length, err := rt.ArrayLength(array)
	if err != nil {
		return nil, err
	}
	size, err := elemSize(elementDescriptor)
	if err != nil {
		return nil, err
	}
	return jvmmeta.LoadArray(rt.core, array.ptr, size, index, length)
}

// StoreArrayElement writes one element's raw bytes.
func (rt *Runtime) StoreArrayElement(array Instance, elementDescriptor string, index uint32, data []byte) error {
	length, err := rt.ArrayLength(array)
	if err != nil {
		return err
	}
	size, err := elemSize(elementDescriptor)
	if err != nil {
		return err
	}
	return jvmmeta.StoreArray(rt.core, array.ptr, size, index, length, data)
}
