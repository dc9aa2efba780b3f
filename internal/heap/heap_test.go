package heap

import "testing"

// fakeMemory is a flat byte slice addressed the same way a mapped guest
// region is, letting these tests exercise the allocator without a real
// ARM core.
type fakeMemory struct {
	base uint32
	buf  []byte
}

func newFakeMemory(base, size uint32) *fakeMemory {
	return &fakeMemory{base: base, buf: make([]byte, size)}
}

func (m *fakeMemory) ReadU32(addr uint32) (uint32, error) {
	off := addr - m.base
	return uint32(m.buf[off]) | uint32(m.buf[off+1])<<8 | uint32(m.buf[off+2])<<16 | uint32(m.buf[off+3])<<24, nil
}

func (m *fakeMemory) WriteU32(addr uint32, v uint32) error {
	off := addr - m.base
	m.buf[off] = byte(v)
	m.buf[off+1] = byte(v >> 8)
	m.buf[off+2] = byte(v >> 16)
	m.buf[off+3] = byte(v >> 24)
	return nil
}

func TestAllocSplitsBlock(t *testing.T) {
	mem := newFakeMemory(0x1000, 256)
	h := New(mem, 0x1000, 256)
	if err := h.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ptr, err := h.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if ptr != 0x1000+headerSize {
		t.Errorf("ptr = 0x%x, want 0x%x", ptr, 0x1000+headerSize)
	}

	free, err := h.FreeMemory()
	if err != nil {
		t.Fatalf("FreeMemory: %v", err)
	}
	wantFree := uint32(256) - headerSize - 16 - headerSize
	if free != wantFree {
		t.Errorf("FreeMemory = %d, want %d", free, wantFree)
	}
}

func TestAllocFreeReuse(t *testing.T) {
	mem := newFakeMemory(0x2000, 64)
	h := New(mem, 0x2000, 64)
	if err := h.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	a, err := h.Alloc(8)
	if err != nil {
		t.Fatalf("Alloc a: %v", err)
	}
	if err := h.Free(a); err != nil {
		t.Fatalf("Free a: %v", err)
	}
	b, err := h.Alloc(8)
	if err != nil {
		t.Fatalf("Alloc b: %v", err)
	}
	if a != b {
		t.Errorf("expected freed block to be reused: a=0x%x b=0x%x", a, b)
	}
}

func TestDoubleFreeErrors(t *testing.T) {
	mem := newFakeMemory(0x3000, 64)
	h := New(mem, 0x3000, 64)
	if err := h.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ptr, err := h.Alloc(8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := h.Free(ptr); err != nil {
		t.Fatalf("first Free: %v", err)
	}
	if err := h.Free(ptr); err == nil {
		t.Error("expected double free to error")
	}
}

func TestAllocOutOfHeap(t *testing.T) {
	mem := newFakeMemory(0x4000, 16)
	h := New(mem, 0x4000, 16)
	if err := h.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := h.Alloc(64); err == nil {
		t.Fatal("expected OutOfHeap error")
	} else if _, ok := err.(*OutOfHeap); !ok {
		t.Errorf("expected *OutOfHeap, got %T", err)
	}
}

func TestAllocDoesNotLeaveDegenerateRemainder(t *testing.T) {
	// Region large enough for one 8-byte alloc leaving a remainder that
	// can't itself hold a header plus a word: the whole block should be
	// handed out instead of split.
	mem := newFakeMemory(0x5000, 16)
	h := New(mem, 0x5000, 16)
	if err := h.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	// usable size = 12; requesting 8 leaves remainder 4, which is less
	// than headerSize+4 (8), so no split should occur.
	if _, err := h.Alloc(8); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	free, err := h.FreeMemory()
	if err != nil {
		t.Fatalf("FreeMemory: %v", err)
	}
	if free != 0 {
		t.Errorf("expected no free blocks after whole-block alloc, got %d", free)
	}
}

func TestTotalMemory(t *testing.T) {
	mem := newFakeMemory(0x6000, 128)
	h := New(mem, 0x6000, 128)
	if got := h.TotalMemory(); got != 128 {
		t.Errorf("TotalMemory = %d, want 128", got)
	}
}
