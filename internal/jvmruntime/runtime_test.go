package jvmruntime

import (
	"testing"

	"wipiemu/internal/arm"
	"wipiemu/internal/heap"
	"wipiemu/internal/jvmmeta"
	"wipiemu/internal/platform"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	core, err := arm.New()
	if err != nil {
		t.Fatalf("arm.New: %v", err)
	}
	t.Cleanup(func() { core.Close() })

	h := heap.New(core, arm.HeapBase, arm.HeapSize)
	if err := h.Init(); err != nil {
		t.Fatalf("heap.Init: %v", err)
	}

	rt := New(core, h, &platform.System{})
	if err := rt.BootstrapCoreClasses(); err != nil {
		t.Fatalf("BootstrapCoreClasses: %v", err)
	}
	return rt
}

func TestBootstrapCoreClassesIsIdempotent(t *testing.T) {
	rt := newTestRuntime(t)
	if err := rt.BootstrapCoreClasses(); err != nil {
		t.Fatalf("second BootstrapCoreClasses call: %v", err)
	}
	if _, err := rt.ClassByName("java/lang/Object"); err != nil {
		t.Errorf("java/lang/Object should be registered: %v", err)
	}
	if _, err := rt.ClassByName("java/lang/String"); err != nil {
		t.Errorf("java/lang/String should be registered: %v", err)
	}
}

func TestFieldGetPutRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)

	if _, err := rt.LoadClass(ClassProto{
		Name:   "test/Counter",
		Parent: "java/lang/Object",
		Fields: []FieldProto{
			{Name: "value", Descriptor: "I"},
		},
	}); err != nil {
		t.Fatalf("LoadClass: %v", err)
	}

	instance, err := rt.AllocateInstance("test/Counter")
	if err != nil {
		t.Fatalf("AllocateInstance: %v", err)
	}

	if err := rt.PutField(instance, "value", "I", 42); err != nil {
		t.Fatalf("PutField: %v", err)
	}
	got, err := rt.GetField(instance, "value", "I")
	if err != nil {
		t.Fatalf("GetField: %v", err)
	}
	if got != 42 {
		t.Errorf("GetField = %d, want 42", got)
	}
}

func TestFieldInheritanceAcrossTwoLevels(t *testing.T) {
	rt := newTestRuntime(t)

	if _, err := rt.LoadClass(ClassProto{
		Name:   "test/A",
		Parent: "java/lang/Object",
		Fields: []FieldProto{
			{Name: "x", Descriptor: "I"},
		},
	}); err != nil {
		t.Fatalf("LoadClass A: %v", err)
	}
	if _, err := rt.LoadClass(ClassProto{
		Name:   "test/B",
		Parent: "test/A",
		Fields: []FieldProto{
			{Name: "y", Descriptor: "I"},
		},
	}); err != nil {
		t.Fatalf("LoadClass B: %v", err)
	}

	instance, err := rt.AllocateInstance("test/B")
	if err != nil {
		t.Fatalf("AllocateInstance: %v", err)
	}

	if err := rt.PutField(instance, "x", "I", 42); err != nil {
		t.Fatalf("PutField x: %v", err)
	}
	if err := rt.PutField(instance, "y", "I", 7); err != nil {
		t.Fatalf("PutField y: %v", err)
	}

	x, err := rt.GetField(instance, "x", "I")
	if err != nil {
		t.Fatalf("GetField x: %v", err)
	}
	if x != 42 {
		t.Errorf("GetField x = %d, want 42", x)
	}
	y, err := rt.GetField(instance, "y", "I")
	if err != nil {
		t.Fatalf("GetField y: %v", err)
	}
	if y != 7 {
		t.Errorf("GetField y = %d, want 7", y)
	}
}

func TestInvokeVirtualDispatchesToNativeMethod(t *testing.T) {
	rt := newTestRuntime(t)

	called := false
	if _, err := rt.LoadClass(ClassProto{
		Name:   "test/Greeter",
		Parent: "java/lang/Object",
		Methods: []MethodProto{
			{
				Name:       "twice",
				Descriptor: "(I)I",
				Native: func(args []jvmmeta.Value) (jvmmeta.Value, error) {
					called = true
					return jvmmeta.Value{Kind: jvmmeta.KindInt, Words: [2]uint32{args[0].Word() * 2}}, nil
				},
			},
		},
	}); err != nil {
		t.Fatalf("LoadClass: %v", err)
	}

	instance, err := rt.AllocateInstance("test/Greeter")
	if err != nil {
		t.Fatalf("AllocateInstance: %v", err)
	}

	ret, err := rt.InvokeVirtual(instance, "twice", "(I)I", []Value{
		{Kind: jvmmeta.KindInt, Words: [2]uint32{21}},
	})
	if err != nil {
		t.Fatalf("InvokeVirtual: %v", err)
	}
	if !called {
		t.Error("native method body was not invoked")
	}
	if ret.Word() != 42 {
		t.Errorf("InvokeVirtual returned %d, want 42", ret.Word())
	}
}

func TestClassByNameUnknownReturnsClassNotFoundError(t *testing.T) {
	rt := newTestRuntime(t)
	if _, err := rt.ClassByName("nope/Missing"); err == nil {
		t.Fatal("expected ClassNotFoundError")
	} else if _, ok := err.(*ClassNotFoundError); !ok {
		t.Errorf("expected *ClassNotFoundError, got %T", err)
	}
}
