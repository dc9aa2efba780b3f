package jvmmeta

import "testing"

// fakeMemory backs the Memory interface with a zero-padded flat buffer,
// large enough for ReadFullName's fixed-size scan past the end of a
// written name.
type fakeMemory struct {
	buf map[uint32]byte
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{buf: make(map[uint32]byte)}
}

func (m *fakeMemory) ReadBytes(addr, size uint32) ([]byte, error) {
	out := make([]byte, size)
	for i := uint32(0); i < size; i++ {
		out[i] = m.buf[addr+i]
	}
	return out, nil
}

func (m *fakeMemory) WriteBytes(addr uint32, data []byte) error {
	for i, b := range data {
		m.buf[addr+uint32(i)] = b
	}
	return nil
}

func TestFullNameEncodeDecodeRoundTrip(t *testing.T) {
	n := FullName{Tag: 0, Name: "doSomething", Descriptor: "(I)V"}
	mem := newFakeMemory()
	if err := WriteFullName(mem, 0x100, n); err != nil {
		t.Fatalf("WriteFullName: %v", err)
	}

	got, err := ReadFullName(mem, 0x100)
	if err != nil {
		t.Fatalf("ReadFullName: %v", err)
	}
	if !got.Equal(n) {
		t.Errorf("got %+v, want %+v", got, n)
	}
	if got.Tag != n.Tag {
		t.Errorf("tag = %d, want %d", got.Tag, n.Tag)
	}
}

func TestFullNameEqualIgnoresTag(t *testing.T) {
	a := FullName{Tag: 0, Name: "x", Descriptor: "()V"}
	b := FullName{Tag: 7, Name: "x", Descriptor: "()V"}
	if !a.Equal(b) {
		t.Error("Equal should ignore Tag")
	}
}

func TestFullNameEncodedSizeMatchesEncode(t *testing.T) {
	n := FullName{Name: "run", Descriptor: "()V"}
	if int(n.EncodedSize()) != len(n.Encode()) {
		t.Errorf("EncodedSize = %d, len(Encode()) = %d", n.EncodedSize(), len(n.Encode()))
	}
}
