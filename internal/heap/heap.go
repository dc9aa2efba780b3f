// Package heap implements the guest-resident allocator described in
// spec §4.B: a single reserved region of the guest address space holding
// an in-band header free-list. Both ARM code and the JVM metadata layer
// allocate through it, so it speaks in guest addresses (uint32), not host
// pointers.
//
// The header/free-list algorithm is carried over from the original
// implementation's wie_core_arm allocator: one u32 header per block, the
// low 31 bits holding the block's usable size and the high bit marking it
// in-use. There is no coalescing on free — freed blocks simply go back to
// being scanned by the next first-fit search.
package heap

import "fmt"

const headerSize = 4

const inUseBit = uint32(1) << 31

// Memory is the narrow guest-memory contract the allocator needs: typed
// u32 access within a byte-addressable space. internal/arm's Core satisfies
// it directly.
type Memory interface {
	ReadU32(addr uint32) (uint32, error)
	WriteU32(addr uint32, v uint32) error
}

// OutOfHeap is returned when no free block can satisfy a request. Per
// spec §7 this is an ordinary error value, not a panic: callers decide
// whether exhaustion is fatal.
type OutOfHeap struct {
	Requested uint32
	Base      uint32
	Size      uint32
}

func (e *OutOfHeap) Error() string {
	return fmt.Sprintf("heap: no block large enough for %d bytes (region 0x%x..0x%x)", e.Requested, e.Base, e.Base+e.Size)
}

// Heap is a first-fit, non-coalescing allocator over a fixed guest region.
type Heap struct {
	mem  Memory
	base uint32
	size uint32
}

// New wraps an already-mapped guest region [base, base+size) as a heap.
// Init must be called once before the first Alloc to lay down the initial
// free-block header.
func New(mem Memory, base, size uint32) *Heap {
	return &Heap{mem: mem, base: base, size: size}
}

// Init writes the single free-block header spanning the whole region.
func (h *Heap) Init() error {
	if h.size < headerSize {
		return fmt.Errorf("heap: region size %d smaller than header", h.size)
	}
	return h.mem.WriteU32(h.base, h.size-headerSize)
}

func (h *Heap) header(addr uint32) (size uint32, inUse bool, err error) {
	raw, err := h.mem.ReadU32(addr)
	if err != nil {
		return 0, false, err
	}
	return raw &^ inUseBit, raw&inUseBit != 0, nil
}

func (h *Heap) writeHeader(addr, size uint32, inUse bool) error {
	raw := size
	if inUse {
		raw |= inUseBit
	}
	return h.mem.WriteU32(addr, raw)
}

// align4 rounds n up to the next multiple of 4.
func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}

// Alloc reserves size usable bytes and returns the address of the first
// usable byte (immediately after that block's header). First-fit: walks
// blocks from the heap base, returning the first free block whose usable
// size is at least size. If the winning block is large enough to hold a
// second header and a non-empty remainder, it is split in place; the
// remainder becomes a new free block. Per §4.B this implementation will
// not leave a remainder smaller than a header or not a multiple of 4 —
// such a split is skipped and the whole block is handed out instead (the
// original allocator this is grounded on does not perform this check and
// can leave a degenerate zero-byte trailing header).
func (h *Heap) Alloc(size uint32) (uint32, error) {
	size = align4(size)

	addr, err := h.findFree(size)
	if err != nil {
		return 0, err
	}

	blockSize, _, err := h.header(addr)
	if err != nil {
		return 0, err
	}

	remainder := blockSize - size
	if remainder >= headerSize+4 && remainder%4 == 0 {
		if err := h.writeHeader(addr, size, true); err != nil {
			return 0, err
		}
		remainderAddr := addr + headerSize + size
		if err := h.writeHeader(remainderAddr, remainder-headerSize, false); err != nil {
			return 0, err
		}
	} else {
		if err := h.writeHeader(addr, blockSize, true); err != nil {
			return 0, err
		}
	}

	return addr + headerSize, nil
}

// findFree walks the block chain from the heap base and returns the
// address (header location) of the first free block of at least size
// usable bytes.
func (h *Heap) findFree(size uint32) (uint32, error) {
	addr := h.base
	end := h.base + h.size

	for addr < end {
		blockSize, inUse, err := h.header(addr)
		if err != nil {
			return 0, err
		}
		if blockSize == 0 {
			break
		}
		if !inUse && blockSize >= size {
			return addr, nil
		}
		addr += headerSize + blockSize
	}

	return 0, &OutOfHeap{Requested: size, Base: h.base, Size: h.size}
}

// Free marks the block backing ptr (an address previously returned by
// Alloc) as free again. No coalescing with neighbors is attempted.
func (h *Heap) Free(ptr uint32) error {
	addr := ptr - headerSize
	size, inUse, err := h.header(addr)
	if err != nil {
		return err
	}
	if !inUse {
		return fmt.Errorf("heap: double free at 0x%x", ptr)
	}
	return h.writeHeader(addr, size, false)
}

// TotalMemory returns the size of the managed region, mirroring
// CContext::get_total_memory.
func (h *Heap) TotalMemory() uint32 {
	return h.size
}

// FreeMemory sums the usable size of every free block. O(blocks); fine
// for the diagnostic/"info" path this exists for.
func (h *Heap) FreeMemory() (uint32, error) {
	var total uint32
	addr := h.base
	end := h.base + h.size
	for addr < end {
		size, inUse, err := h.header(addr)
		if err != nil {
			return 0, err
		}
		if size == 0 {
			break
		}
		if !inUse {
			total += size
		}
		addr += headerSize + size
	}
	return total, nil
}
