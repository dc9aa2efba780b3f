// Package jvmruntime implements Component F (the JVM runtime facade): a
// thin, handle-based shell over internal/jvmmeta that adds a
// process-wide class registry, method dispatch (virtual/static/special),
// object and array construction, and guest string <-> host string
// conversion through a platform.TextCodec.
//
// Grounded on zboralski-galago's pattern of a top-level struct owning
// the emulator core plus whatever per-session bookkeeping a facade
// layer needs (galago's Emulator held hook tables and mock-object maps
// the same way Runtime holds a class registry and array length cache).
package jvmruntime

import (
	"fmt"

	"wipiemu/internal/arm"
	"wipiemu/internal/heap"
	"wipiemu/internal/jvmmeta"
	"wipiemu/internal/nativebridge"
	"wipiemu/internal/platform"
)

// ClassNotFoundError reports a reference to a class name the registry
// has never loaded.
type ClassNotFoundError struct {
	Name string
}

func (e *ClassNotFoundError) Error() string {
	return fmt.Sprintf("jvmruntime: class not found: %s", e.Name)
}

// NoSuchMethodError reports a method resolution failure against a
// concrete class, after walking its full parent chain.
type NoSuchMethodError struct {
	Class, Name, Descriptor string
}

func (e *NoSuchMethodError) Error() string {
	return fmt.Sprintf("jvmruntime: no such method %s.%s%s", e.Class, e.Name, e.Descriptor)
}

// NoSuchFieldError reports a field resolution failure.
type NoSuchFieldError struct {
	Class, Name, Descriptor string
}

func (e *NoSuchFieldError) Error() string {
	return fmt.Sprintf("jvmruntime: no such field %s.%s %s", e.Class, e.Name, e.Descriptor)
}

// classEntry is everything the registry keeps about a loaded class
// beyond its guest pointer: its merged (own + inherited) field table for
// host-side field resolution (methods need no such cache — their vtable
// is guest-walkable and already includes inherited slots by
// construction, per jvmmeta.buildVtable).
type classEntry struct {
	ptr    uint32
	name   string
	fields []jvmmeta.FieldEntry
}

// MethodProto describes one method to add when loading a class. Native
// is a host-implemented body; when set, it is registered with the
// bridge and the resulting trampoline becomes the method's native entry
// point. Leave Native nil for a bytecode method whose BytecodeAddr is
// already a valid guest code address (e.g. resolved by internal/classfile).
type MethodProto struct {
	Name         string
	Descriptor   string
	AccessFlags  uint16
	Native       nativebridge.NativeFunc
	BytecodeAddr uint32
}

// FieldProto describes one field to add when loading a class.
type FieldProto struct {
	Name        string
	Descriptor  string
	AccessFlags uint32
	StaticInit  uint32
}

// ClassProto describes a class to load. Parent is a class name already
// present in the registry, or "" for a root class (java/lang/Object and
// the like). Loading a class whose Parent isn't registered yet fails
// with ClassNotFoundError rather than recursively resolving it — callers
// (internal/classfile, or framework bootstrap code) are responsible for
// loading classes in dependency order, which is also what keeps the
// registry cycle-free without extra bookkeeping.
type ClassProto struct {
	Name        string
	Parent      string
	AccessFlags uint16
	Methods     []MethodProto
	Fields      []FieldProto
}

// Runtime is the handle-level JVM facade: a class registry plus the
// lower layers it's built on.
type Runtime struct {
	core   *arm.Core
	heap   *heap.Heap
	bridge *nativebridge.Bridge
	sys    *platform.System

	classes map[string]*classEntry
	byPtr   map[uint32]*classEntry

	arrayClasses map[string]*classEntry // element descriptor -> synthetic array class
	arrayLengths map[uint32]uint32      // ptrInstance -> length, host-side per jvmmeta's field-table precedent
}

// New creates a Runtime over an already-constructed core and heap.
func New(core *arm.Core, h *heap.Heap, sys *platform.System) *Runtime {
	return &Runtime{
		core:         core,
		heap:         h,
		bridge:       nativebridge.New(core),
		sys:          sys,
		classes:      make(map[string]*classEntry),
		byPtr:        make(map[uint32]*classEntry),
		arrayClasses: make(map[string]*classEntry),
		arrayLengths: make(map[uint32]uint32),
	}
}

// LoadClass materializes spec's guest-resident metadata via jvmmeta and
// publishes it in the registry under spec.Name, per §4.E steps 1-6.
func (rt *Runtime) LoadClass(spec ClassProto) (uint32, error) {
	var parentPtr uint32
	var parentFields []jvmmeta.FieldEntry
	if spec.Parent != "" {
		parent, ok := rt.classes[spec.Parent]
		if !ok {
			return 0, &ClassNotFoundError{Name: spec.Parent}
		}
		parentPtr = parent.ptr
		parentFields = parent.fields
	}

	mspecs := make([]jvmmeta.MethodSpec, 0, len(spec.Methods))
	for _, m := range spec.Methods {
		sig, err := jvmmeta.ParseDescriptor(m.Descriptor)
		if err != nil {
			return 0, err
		}

		ms := jvmmeta.MethodSpec{
			Name:        m.Name,
			Descriptor:  m.Descriptor,
			AccessFlags: m.AccessFlags,
		}
		if m.Native != nil {
			ms.Native = true
			ms.AccessFlags |= jvmmeta.AccNative
			addr, err := rt.bridge.Register(spec.Name+"."+m.Name, sig, m.Native)
			if err != nil {
				return 0, err
			}
			ms.TrampolineAddr = addr
		} else {
			ms.TrampolineAddr = m.BytecodeAddr
		}
		mspecs = append(mspecs, ms)
	}

	fspecs := make([]jvmmeta.FieldSpec, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		fspecs = append(fspecs, jvmmeta.FieldSpec{
			Name:        f.Name,
			Descriptor:  f.Descriptor,
			AccessFlags: f.AccessFlags,
			StaticInit:  f.StaticInit,
		})
	}

	ptrClass, ownFields, err := jvmmeta.LoadClass(rt.core, rt.heap, jvmmeta.ClassSpec{
		Name:        spec.Name,
		Parent:      parentPtr,
		AccessFlags: spec.AccessFlags,
		Methods:     mspecs,
		Fields:      fspecs,
	})
	if err != nil {
		return 0, fmt.Errorf("jvmruntime: load class %s: %w", spec.Name, err)
	}

	entry := &classEntry{
		ptr:    ptrClass,
		name:   spec.Name,
		fields: append(append([]jvmmeta.FieldEntry{}, ownFields...), parentFields...),
	}
	rt.classes[spec.Name] = entry
	rt.byPtr[ptrClass] = entry

	return ptrClass, nil
}

// ClassByName returns a previously loaded class's guest pointer.
func (rt *Runtime) ClassByName(name string) (uint32, error) {
	entry, ok := rt.classes[name]
	if !ok {
		return 0, &ClassNotFoundError{Name: name}
	}
	return entry.ptr, nil
}
