package jvmruntime

import (
	"fmt"

	"wipiemu/internal/jvmmeta"
)

// Value re-exports jvmmeta's typed word representation so callers of
// this package never need to import internal/jvmmeta directly.
type Value = jvmmeta.Value

// Instance is a non-owning handle to a guest-resident object: the raw
// pointer plus enough of the runtime to resolve its class and fields.
// Instances are never garbage collected by this runtime; Destroy frees
// the underlying allocation explicitly, per §3's ownership model.
type Instance struct {
	ptr uint32
	rt  *Runtime
}

// Ptr returns the instance's guest pointer, for collaborators that need
// to pass it across the native bridge directly.
func (i Instance) Ptr() uint32 { return i.ptr }

// WrapInstance builds an Instance handle around a guest pointer a caller
// already holds (e.g. an objectref popped off a bytecode interpreter's
// operand stack, or one received from a native argument). The pointer is
// trusted to already be a live instance of some loaded class.
func (rt *Runtime) WrapInstance(ptr uint32) Instance {
	return Instance{ptr: ptr, rt: rt}
}

// resolveMethod finds (name, descriptor) in ptrClass's vtable, which
// already includes every inherited slot by construction, so this single
// lookup satisfies "walk the class chain upward" for both virtual and
// special/static dispatch; callers pick which class pointer to root the
// search at.
func (rt *Runtime) resolveMethod(ptrClass uint32, className, name, descriptor string) (jvmmeta.RawMethod, jvmmeta.Signature, error) {
	ptrMethod, err := jvmmeta.FindMethod(rt.core, ptrClass, jvmmeta.FullName{Name: name, Descriptor: descriptor})
	if err != nil {
		return jvmmeta.RawMethod{}, jvmmeta.Signature{}, &NoSuchMethodError{Class: className, Name: name, Descriptor: descriptor}
	}
	m, err := jvmmeta.ReadMethod(rt.core, ptrMethod)
	if err != nil {
		return jvmmeta.RawMethod{}, jvmmeta.Signature{}, err
	}
	sig, err := jvmmeta.ParseDescriptor(descriptor)
	if err != nil {
		return jvmmeta.RawMethod{}, jvmmeta.Signature{}, err
	}
	return m, sig, nil
}

func (rt *Runtime) callResolved(m jvmmeta.RawMethod, sig jvmmeta.Signature, this uint32, hasThis bool, args []Value) (Value, error) {
	if m.AccessFlags&jvmmeta.AccNative != 0 {
		return rt.bridge.Invoke(m.FnBodyNativeOrExceptionTable, 0, false, args, sig.Return)
	}
	return rt.bridge.Invoke(m.FnBody, this, hasThis, args, sig.Return)
}

// InvokeVirtual dispatches (name, descriptor) against instance's dynamic
// class, per §4.E step 1-4: the vtable lookup on the instance's own
// class already resolves overrides, so there is no separate "resolve to
// vtable slot" step to perform here.
func (rt *Runtime) InvokeVirtual(instance Instance, name, descriptor string, args []Value) (Value, error) {
	ptrClass, err := jvmmeta.InstanceClass(rt.core, instance.ptr)
	if err != nil {
		return Value{}, err
	}
	entry, ok := rt.byPtr[ptrClass]
	className := "?"
	if ok {
		className = entry.name
	}

	m, sig, err := rt.resolveMethod(ptrClass, className, name, descriptor)
	if err != nil {
		return Value{}, err
	}
	return rt.callResolved(m, sig, instance.ptr, true, args)
}

// InvokeSpecial calls the exact method declared on className (or
// inherited into its vtable), bypassing the instance's dynamic class —
// used for super.method() calls and constructor invocation.
func (rt *Runtime) InvokeSpecial(instance Instance, className, name, descriptor string, args []Value) (Value, error) {
	declEntry, ok := rt.classes[className]
	if !ok {
		return Value{}, &ClassNotFoundError{Name: className}
	}
	m, sig, err := rt.resolveMethod(declEntry.ptr, className, name, descriptor)
	if err != nil {
		return Value{}, err
	}
	return rt.callResolved(m, sig, instance.ptr, true, args)
}

// InvokeStatic calls a static method; no receiver is passed.
func (rt *Runtime) InvokeStatic(className, name, descriptor string, args []Value) (Value, error) {
	declEntry, ok := rt.classes[className]
	if !ok {
		return Value{}, &ClassNotFoundError{Name: className}
	}
	m, sig, err := rt.resolveMethod(declEntry.ptr, className, name, descriptor)
	if err != nil {
		return Value{}, err
	}
	return rt.callResolved(m, sig, 0, false, args)
}

// AllocateInstance allocates an instance of className without invoking
// any constructor, for callers (like NewString) that populate fields
// directly rather than through a declared <init>.
func (rt *Runtime) AllocateInstance(className string) (Instance, error) {
	entry, ok := rt.classes[className]
	if !ok {
		return Instance{}, &ClassNotFoundError{Name: className}
	}
	ptrInstance, err := jvmmeta.Instantiate(rt.core, rt.heap, entry.ptr)
	if err != nil {
		return Instance{}, fmt.Errorf("jvmruntime: instantiate %s: %w", className, err)
	}
	return Instance{ptr: ptrInstance, rt: rt}, nil
}

// NewInstance allocates an instance of className and invokes its
// constructor, per §4.E's new_class: (1) look up class, (2) allocate,
// (3) invoke <init>, (4) return the handle.
func (rt *Runtime) NewInstance(className, ctorDescriptor string, args []Value) (Instance, error) {
	instance, err := rt.AllocateInstance(className)
	if err != nil {
		return Instance{}, err
	}
	if _, err := rt.InvokeSpecial(instance, className, "<init>", ctorDescriptor, args); err != nil {
		return Instance{}, fmt.Errorf("jvmruntime: construct %s: %w", className, err)
	}
	return instance, nil
}

// findField resolves (name, descriptor) against instance's class's
// merged field table, searching own fields then inherited ones per the
// order LoadClass appended them in.
func (rt *Runtime) findField(instance Instance, name, descriptor string) (jvmmeta.FieldEntry, string, error) {
	ptrClass, err := jvmmeta.InstanceClass(rt.core, instance.ptr)
	if err != nil {
		return jvmmeta.FieldEntry{}, "", err
	}
	entry, ok := rt.byPtr[ptrClass]
	if !ok {
		return jvmmeta.FieldEntry{}, "", fmt.Errorf("jvmruntime: instance's class is not in the registry")
	}

	field, err := jvmmeta.FindField(entry.fields, jvmmeta.FullName{Name: name, Descriptor: descriptor})
	if err != nil {
		return jvmmeta.FieldEntry{}, entry.name, &NoSuchFieldError{Class: entry.name, Name: name, Descriptor: descriptor}
	}
	return field, entry.name, nil
}

// GetField reads a field's raw word value.
func (rt *Runtime) GetField(instance Instance, name, descriptor string) (uint32, error) {
	field, _, err := rt.findField(instance, name, descriptor)
	if err != nil {
		return 0, err
	}
	return jvmmeta.GetField(rt.core, instance.ptr, field.PtrField)
}

// PutField writes a field's raw word value.
func (rt *Runtime) PutField(instance Instance, name, descriptor string, value uint32) error {
	field, _, err := rt.findField(instance, name, descriptor)
	if err != nil {
		return err
	}
	return jvmmeta.PutField(rt.core, instance.ptr, field.PtrField, value)
}

// findStaticField resolves (name, descriptor) against className's own
// merged field table directly, for getstatic/putstatic bytecode, which
// names its field's declaring class rather than an instance.
func (rt *Runtime) findStaticField(className, name, descriptor string) (jvmmeta.FieldEntry, error) {
	entry, ok := rt.classes[className]
	if !ok {
		return jvmmeta.FieldEntry{}, &ClassNotFoundError{Name: className}
	}
	field, err := jvmmeta.FindField(entry.fields, jvmmeta.FullName{Name: name, Descriptor: descriptor})
	if err != nil {
		return jvmmeta.FieldEntry{}, &NoSuchFieldError{Class: className, Name: name, Descriptor: descriptor}
	}
	return field, nil
}

// GetStaticField reads a static field's raw word value directly from its
// record's storage cell. jvmmeta.GetField ignores the instance pointer
// for static fields, so 0 is passed in its place.
func (rt *Runtime) GetStaticField(className, name, descriptor string) (uint32, error) {
	field, err := rt.findStaticField(className, name, descriptor)
	if err != nil {
		return 0, err
	}
	return jvmmeta.GetField(rt.core, 0, field.PtrField)
}

// PutStaticField writes a static field's raw word value.
func (rt *Runtime) PutStaticField(className, name, descriptor string, value uint32) error {
	field, err := rt.findStaticField(className, name, descriptor)
	if err != nil {
		return err
	}
	return jvmmeta.PutField(rt.core, 0, field.PtrField, value)
}
