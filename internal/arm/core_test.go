package arm

import "testing"

// ARM32 test program: MOV R0, #5; MOV R1, #3; ADD R2, R0, R1; BX LR
var addTestCode = []byte{
	0x05, 0x00, 0xA0, 0xE3, // mov r0, #5
	0x03, 0x10, 0xA0, 0xE3, // mov r1, #3
	0x01, 0x20, 0x80, 0xE0, // add r2, r0, r1
	0x1E, 0xFF, 0x2F, 0xE1, // bx lr
}

func TestRunFunctionExecutesLoadedCode(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if err := c.LoadCode(addTestCode); err != nil {
		t.Fatalf("LoadCode: %v", err)
	}

	ret, err := c.RunFunction(CodeBase, nil)
	if err != nil {
		t.Fatalf("RunFunction: %v", err)
	}
	if ret != 5 {
		t.Errorf("RunFunction returned %d, want r0=5", ret)
	}
	if got := c.R(2); got != 8 {
		t.Errorf("r2 = %d, want 8", got)
	}
}

func TestMemoryWordAccessors(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if err := c.WriteU32(HeapBase, 0xDEADBEEF); err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	got, err := c.ReadU32(HeapBase)
	if err != nil {
		t.Fatalf("ReadU32: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Errorf("ReadU32 = 0x%x, want 0xDEADBEEF", got)
	}
}

func TestCStringRoundTrip(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if err := c.WriteCString(HeapBase, "hello"); err != nil {
		t.Fatalf("WriteCString: %v", err)
	}
	s, err := c.ReadCString(HeapBase, 64)
	if err != nil {
		t.Fatalf("ReadCString: %v", err)
	}
	if s != "hello" {
		t.Errorf("ReadCString = %q, want %q", s, "hello")
	}
}

func TestRegisterFunctionIsCallableFromRunFunction(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	called := false
	addr, err := c.RegisterFunction(func(c *Core, args [4]uint32) (uint32, error) {
		called = true
		return args[0] + args[1], nil
	})
	if err != nil {
		t.Fatalf("RegisterFunction: %v", err)
	}

	ret, err := c.RunFunction(addr, []uint32{7, 9})
	if err != nil {
		t.Fatalf("RunFunction: %v", err)
	}
	if !called {
		t.Fatal("registered host function was not invoked")
	}
	if ret != 16 {
		t.Errorf("RunFunction returned %d, want 16", ret)
	}
}
