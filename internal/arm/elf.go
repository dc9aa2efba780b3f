package arm

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
)

// ARM (32-bit, EABI) relocation types this loader understands. WIPI
// native modules are position-independent ARM shared objects, so these
// are the only relocation kinds a typical one carries.
const (
	rARMAbs32    = 2
	rARMGlobDat  = 21
	rARMJumpSlot = 22
	rARMRelative = 23
)

// Module describes an ARM shared object loaded into the guest code
// region via LoadELF: every exported/local symbol's guest address, for
// resolving a manifest's entry_symbol (internal/config) and for
// satisfying the occasional direct symbol lookup a native-method
// implementation needs.
type Module struct {
	Path    string
	Entry   uint32
	Base    uint32
	End     uint32
	Symbols map[string]uint32
}

// Symbol looks up a symbol's guest address; ok is false if the module
// declares no such symbol.
func (m *Module) Symbol(name string) (uint32, bool) {
	addr, ok := m.Symbols[name]
	return addr, ok
}

// LoadELF loads a 32-bit ARM ELF shared object's PT_LOAD segments into
// c's code region at CodeBase, applies its relocations, and returns its
// resolved symbol table. Grounded on zboralski-galago's
// internal/emulator/elf.go, adapted from that loader's AArch64/RELA
// shape to WIPI's 32-bit ARM/REL one: ARM EABI shared objects carry
// `.rel.dyn`/`.rel.plt` sections (no inline addend field — addends for
// R_ARM_RELATIVE/R_ARM_ABS32 live in the relocated word itself) rather
// than ELF64's self-contained RELA entries.
func (c *Core) LoadELF(path string) (*Module, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("arm: open %s: %w", path, err)
	}
	defer f.Close()

	if f.Machine != elf.EM_ARM {
		return nil, fmt.Errorf("arm: %s is %v, want EM_ARM", path, f.Machine)
	}

	fileBase, fileEnd := uint32(0xFFFFFFFF), uint32(0)
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if uint32(prog.Vaddr) < fileBase {
			fileBase = uint32(prog.Vaddr)
		}
		if end := uint32(prog.Vaddr + prog.Memsz); end > fileEnd {
			fileEnd = end
		}
	}
	if fileBase == 0xFFFFFFFF {
		return nil, fmt.Errorf("arm: %s has no PT_LOAD segments", path)
	}

	var relocOffset uint32
	if fileBase < 0x1000 {
		relocOffset = CodeBase - fileBase
	}

	mod := &Module{
		Path:    path,
		Entry:   uint32(f.Entry) + relocOffset,
		Base:    fileBase + relocOffset,
		End:     fileEnd + relocOffset,
		Symbols: make(map[string]uint32),
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("arm: read %s: %w", path, err)
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		loadAddr := uint32(prog.Vaddr) + relocOffset
		if prog.Filesz > 0 {
			end := prog.Off + prog.Filesz
			if end > uint64(len(fileData)) {
				return nil, fmt.Errorf("arm: %s: segment at 0x%x runs past end of file", path, loadAddr)
			}
			if err := c.WriteBytes(loadAddr, fileData[prog.Off:end]); err != nil {
				return nil, fmt.Errorf("arm: write segment at 0x%x: %w", loadAddr, err)
			}
		}
		if prog.Memsz > prog.Filesz {
			bssStart := loadAddr + uint32(prog.Filesz)
			bssSize := uint32(prog.Memsz - prog.Filesz)
			if err := c.WriteBytes(bssStart, make([]byte, bssSize)); err != nil {
				return nil, fmt.Errorf("arm: zero bss at 0x%x: %w", bssStart, err)
			}
		}
	}

	dynSyms, _ := f.DynamicSymbols()
	for _, sym := range dynSyms {
		if sym.Value != 0 && sym.Name != "" {
			mod.Symbols[sym.Name] = uint32(sym.Value) + relocOffset
		}
	}
	allSyms, _ := f.Symbols()
	for _, sym := range allSyms {
		if sym.Value != 0 && sym.Name != "" {
			mod.Symbols[sym.Name] = uint32(sym.Value) + relocOffset
		}
	}

	if err := c.applyELFRelocations(f, relocOffset, dynSyms); err != nil {
		return nil, fmt.Errorf("arm: relocate %s: %w", path, err)
	}

	return mod, nil
}

// applyELFRelocations processes every REL entry in .rel.dyn/.rel.plt.
// ARM's REL format has no stored addend; R_ARM_RELATIVE and R_ARM_ABS32
// read the addend from the target word itself before overwriting it, per
// the ARM ELF ABI.
func (c *Core) applyELFRelocations(f *elf.File, relocOffset uint32, dynSyms []elf.Symbol) error {
	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_REL {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			continue
		}
		const entrySize = 8 // r_offset (4), r_info (4)
		for i := 0; i+entrySize <= len(data); i += entrySize {
			rOffset := binary.LittleEndian.Uint32(data[i:])
			rInfo := binary.LittleEndian.Uint32(data[i+4:])
			relType := rInfo & 0xff
			symIdx := int(rInfo >> 8)

			target := rOffset + relocOffset
			addend, err := c.ReadU32(target)
			if err != nil {
				continue
			}

			var resolved uint32
			switch relType {
			case rARMRelative:
				resolved = relocOffset + addend
			case rARMGlobDat, rARMJumpSlot, rARMAbs32:
				if symIdx <= 0 || symIdx > len(dynSyms) {
					continue
				}
				sym := dynSyms[symIdx-1]
				if sym.Value == 0 {
					continue // unresolved external symbol; left as-is
				}
				resolved = uint32(sym.Value) + relocOffset
				if relType == rARMAbs32 {
					resolved += addend
				}
			default:
				continue
			}

			if err := c.WriteU32(target, resolved); err != nil {
				return err
			}
		}
	}
	return nil
}
