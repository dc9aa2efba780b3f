package arm

import "testing"

func TestDisassembleKnownInstruction(t *testing.T) {
	// mov r0, #5
	text, n := Disassemble([]byte{0x05, 0x00, 0xA0, 0xE3})
	if n != 4 {
		t.Errorf("consumed %d bytes, want 4", n)
	}
	if text == "???" || text == "" {
		t.Errorf("expected a decoded instruction, got %q", text)
	}
}

func TestDisassembleTooShort(t *testing.T) {
	text, n := Disassemble([]byte{0x01, 0x02})
	if text != "???" {
		t.Errorf("text = %q, want ???", text)
	}
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
}
