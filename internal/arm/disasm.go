package arm

import (
	"fmt"

	"golang.org/x/arch/arm/armasm"
)

// Disassemble decodes one ARM-mode instruction from the front of code,
// returning its textual form and the number of bytes it consumed (4 for
// any input of at least 4 bytes, as ARM mode has no Thumb-width
// encodings; shorter input yields "???" and len(code)). Grounded on
// zboralski-galago's cmd/galago disasm helper, adapted from arm64asm to
// armasm since this guest is AArch32, not AArch64.
func Disassemble(code []byte) (string, int) {
	if len(code) < 4 {
		return "???", len(code)
	}
	inst, err := armasm.Decode(code, armasm.ModeARM)
	if err != nil {
		return fmt.Sprintf(".word 0x%08x", uint32(code[0])|uint32(code[1])<<8|uint32(code[2])<<16|uint32(code[3])<<24), 4
	}
	return inst.String(), 4
}
