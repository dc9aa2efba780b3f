// Package jvmmeta is the guest JVM metadata layer (spec Component E): the
// raw, byte-exact RawClass/RawDescriptor/RawMethod/RawField/RawInstance
// structures that live inside the guest heap, plus the operations that
// build and walk them (class loading, vtable construction, name
// encode/decode, field layout).
//
// Every Raw* type's field order is taken verbatim from the original
// implementation's JavaClass/JavaClassDescriptor/RawJavaMethod/
// RawJavaField/RawJavaClassInstance structs (wie_ktf's
// runtime/java/jvm_support and src/wipi/module/ktf/runtime/jvm.rs) so a
// guest-resident class built by this package is laid out exactly the way
// the original runtime expects. Fields never read by this implementation
// keep their original "unkN" names rather than being invented a purpose.
package jvmmeta

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Method and field access flag bits, matching the JVM class file format
// subset this runtime cares about.
const (
	AccPublic = 0x0001
	AccStatic = 0x0008
	AccNative = 0x0100
)

// Memory is the guest-memory contract jvmmeta needs. internal/arm's Core
// satisfies it; internal/heap.Heap provides the allocator half separately.
type Memory interface {
	ReadBytes(addr uint32, size uint32) ([]byte, error)
	WriteBytes(addr uint32, data []byte) error
}

// RawClass is the guest-resident class header. ptr_descriptor is 0 until
// the descriptor has been written (load_class fills it in after building
// the method table), mirroring the original two-step construction.
type RawClass struct {
	PtrNext       uint32
	Unk1          uint32
	PtrDescriptor uint32
	Unk2          uint32
	Unk3          uint32
}

// RawDescriptor carries the class's name, parent, method table, and field
// block size.
type RawDescriptor struct {
	PtrName       uint32
	Unk1          uint32
	ParentClass   uint32
	PtrMethods    uint32
	PtrInterfaces uint32
	PtrProperties uint32
	MethodCount   uint16
	FieldsSize    uint16
	AccessFlags   uint16
	Unk6          uint16
	Unk7          uint16
	Unk8          uint16
}

// RawMethod is one guest-resident method record. FnBody holds the
// bytecode-method trampoline address, FnBodyNativeOrExceptionTable holds
// the native trampoline address when Method is native (the original
// overloads this field; this implementation keeps that overload since
// nothing else needs the exception-table case it also covers).
type RawMethod struct {
	FnBody                       uint32
	PtrClass                     uint32
	FnBodyNativeOrExceptionTable uint32
	PtrName                      uint32
	ExceptionTableCount          uint16
	Unk3                         uint16
	IndexInVtable                uint16
	AccessFlags                  uint16
	Unk6                         uint32
}

// RawField is one guest-resident field record. OffsetOrValue is either
// the field's byte offset within an instance's field block (instance
// fields) or, for a static field, the value itself; it sits at
// ptr_raw+12, where GetField/PutField read and write statics (see
// instance.go).
type RawField struct {
	AccessFlags   uint32
	PtrClass      uint32
	PtrName       uint32
	OffsetOrValue uint32
}

// RawInstance is the two-word object header: a pointer to the class and a
// pointer to the field block. The field block's own first word holds the
// encoded vtable index (see instance.go).
type RawInstance struct {
	PtrFields uint32
	PtrClass  uint32
}

func readStruct[T any](m Memory, addr uint32, out *T) error {
	size := uint32(binary.Size(*out))
	data, err := m.ReadBytes(addr, size)
	if err != nil {
		return fmt.Errorf("jvmmeta: read 0x%x: %w", addr, err)
	}
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, out)
}

func writeStruct[T any](m Memory, addr uint32, v T) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return err
	}
	if err := m.WriteBytes(addr, buf.Bytes()); err != nil {
		return fmt.Errorf("jvmmeta: write 0x%x: %w", addr, err)
	}
	return nil
}
