// Package arm implements Component A (the guest address space) and
// Component C (the ARM core facade) from the emulator's design: a 32-bit
// ARM guest, its memory regions, and the map/read/write/register_function/
// run_function operations the JVM metadata and native-bridge layers are
// built on.
//
// Grounded on zboralski/galago's internal/emulator package: the region
// layout, typed memory accessors, register accessors, and address-hook
// dispatch all follow its shape. Two differences from the teacher: this
// guest is AArch32 (WIPI handsets were ARM926/ARM7-class cores, not
// AArch64), and there is no mock-C++-object/RTTI scaffolding — that
// existed in the teacher to keep Android C++ vtables from crashing on
// dynamic_cast, which has no analogue in a Java-metadata guest.
package arm

import (
	"encoding/binary"
	"fmt"
	"sync"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// Guest memory layout. Every region is mapped at Core construction time.
const (
	CodeBase  = 0x00010000
	CodeSize  = 0x00400000 // 4MB for the loaded native module or class image

	StackBase = 0x70000000
	StackSize = 0x00100000 // 1MB

	HeapBase = 0x40000000
	HeapSize = 0x01000000 // 16MB guest heap, backing internal/heap

	StubBase = 0xF0000000
	StubSize = 0x00100000 // 1MB of register_function trampoline slots

	haltAddr = StubBase + StubSize - 4 // run_function's synthetic return address
)

const stubInstrSize = 4 // one ARM32 instruction per trampoline slot

// bx lr, ARM mode, little-endian encoding.
var bxLR = []byte{0x1e, 0xff, 0x2f, 0xe1}

// HostFunc is a host callback reachable from guest code through a
// register_function trampoline. args holds up to 4 register arguments
// (r0-r3); additional arguments are not modelled since no WIPI native
// signature in this corpus needs more than four.
type HostFunc func(c *Core, args [4]uint32) (uint32, error)

// CodeHookFunc observes every executed instruction; used by the trace
// layer, never by core semantics.
type CodeHookFunc func(c *Core, addr uint32, size uint32)

// Core wraps a Unicorn AArch32 engine with the guest address space and the
// register_function/run_function bridge operations.
type Core struct {
	mu uc.Unicorn

	stubNext uint32
	hostFns  map[uint32]HostFunc

	codeHooks []CodeHookFunc
	hookMu    sync.RWMutex

	runErr  error
	running bool
}

// New creates a Core with all guest regions mapped and the stack pointer
// initialized to the top of the stack region.
func New() (*Core, error) {
	mu, err := uc.NewUnicorn(uc.ARCH_ARM, uc.MODE_ARM)
	if err != nil {
		return nil, fmt.Errorf("create unicorn: %w", err)
	}

	c := &Core{
		mu:       mu,
		stubNext: StubBase,
		hostFns:  make(map[uint32]HostFunc),
	}

	if err := c.mapMemory(); err != nil {
		mu.Close()
		return nil, err
	}
	if err := c.setupHooks(); err != nil {
		mu.Close()
		return nil, err
	}

	return c, nil
}

func (c *Core) mapMemory() error {
	regions := []struct {
		base, size uint64
		name       string
	}{
		{CodeBase, CodeSize, "code"},
		{StackBase, StackSize, "stack"},
		{HeapBase, HeapSize, "heap"},
		{StubBase, StubSize, "stubs"},
	}

	for _, r := range regions {
		if err := c.mu.MemMap(r.base, r.size); err != nil {
			return fmt.Errorf("map %s (0x%x): %w", r.name, r.base, err)
		}
	}

	sp := uint64(StackBase + StackSize - 0x10)
	if err := c.mu.RegWrite(uc.ARM_REG_SP, sp); err != nil {
		return fmt.Errorf("set SP: %w", err)
	}

	return nil
}

func (c *Core) setupHooks() error {
	_, err := c.mu.HookAdd(uc.HOOK_CODE, func(mu uc.Unicorn, addr uint64, size uint32) {
		if uint32(addr) == haltAddr {
			c.running = false
			c.mu.Stop()
			return
		}

		c.hookMu.RLock()
		fn, ok := c.hostFns[uint32(addr)]
		c.hookMu.RUnlock()

		if ok {
			ret, err := fn(c, [4]uint32{c.R(0), c.R(1), c.R(2), c.R(3)})
			if err != nil {
				c.runErr = err
				c.running = false
				c.mu.Stop()
				return
			}
			c.SetR(0, ret)
		}

		c.hookMu.RLock()
		hooks := c.codeHooks
		c.hookMu.RUnlock()
		for _, h := range hooks {
			h(c, uint32(addr), size)
		}
	}, 1, 0)
	return err
}

// Close releases the underlying Unicorn engine.
func (c *Core) Close() error {
	return c.mu.Close()
}

// Map maps an additional guest region outside the standard layout (used
// for, e.g., a resource-archive staging area a collaborator wants
// guest-visible).
func (c *Core) Map(addr, size uint32) error {
	if err := c.mu.MemMap(uint64(addr), uint64(size)); err != nil {
		return fmt.Errorf("map 0x%x (%d bytes): %w", addr, size, err)
	}
	return nil
}

// LoadCode writes the native module's executable image at CodeBase.
func (c *Core) LoadCode(code []byte) error {
	return c.mu.MemWrite(CodeBase, code)
}

// ReadBytes reads size bytes from addr.
func (c *Core) ReadBytes(addr uint32, size uint32) ([]byte, error) {
	return c.mu.MemRead(uint64(addr), uint64(size))
}

// WriteBytes writes data at addr.
func (c *Core) WriteBytes(addr uint32, data []byte) error {
	return c.mu.MemWrite(uint64(addr), data)
}

// ReadU32 reads a little-endian uint32, satisfying heap.Memory.
func (c *Core) ReadU32(addr uint32) (uint32, error) {
	data, err := c.mu.MemRead(uint64(addr), 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// WriteU32 writes a little-endian uint32, satisfying heap.Memory.
func (c *Core) WriteU32(addr uint32, v uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return c.mu.MemWrite(uint64(addr), buf)
}

// ReadU16 reads a little-endian uint16.
func (c *Core) ReadU16(addr uint32) (uint16, error) {
	data, err := c.mu.MemRead(uint64(addr), 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// WriteU16 writes a little-endian uint16.
func (c *Core) WriteU16(addr uint32, v uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return c.mu.MemWrite(uint64(addr), buf)
}

// ReadU8 reads a single byte.
func (c *Core) ReadU8(addr uint32) (uint8, error) {
	data, err := c.mu.MemRead(uint64(addr), 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// WriteU8 writes a single byte.
func (c *Core) WriteU8(addr uint32, v uint8) error {
	return c.mu.MemWrite(uint64(addr), []byte{v})
}

// ReadCString reads a null-terminated string starting at addr, scanning at
// most maxLen bytes.
func (c *Core) ReadCString(addr uint32, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = 4096
	}
	data, err := c.mu.MemRead(uint64(addr), uint64(maxLen))
	if err != nil {
		return "", err
	}
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), nil
		}
	}
	return string(data), nil
}

// WriteCString writes s followed by a null terminator.
func (c *Core) WriteCString(addr uint32, s string) error {
	return c.mu.MemWrite(uint64(addr), append([]byte(s), 0))
}

// R reads general-purpose register r0-r12.
func (c *Core) R(n int) uint32 {
	if n < 0 || n > 12 {
		return 0
	}
	val, _ := c.mu.RegRead(uc.ARM_REG_R0 + n)
	return uint32(val)
}

// SetR writes general-purpose register r0-r12.
func (c *Core) SetR(n int, v uint32) error {
	if n < 0 || n > 12 {
		return fmt.Errorf("invalid register r%d", n)
	}
	return c.mu.RegWrite(uc.ARM_REG_R0+n, uint64(v))
}

// PC returns the program counter.
func (c *Core) PC() uint32 {
	v, _ := c.mu.RegRead(uc.ARM_REG_PC)
	return uint32(v)
}

// SetPC sets the program counter.
func (c *Core) SetPC(v uint32) error {
	return c.mu.RegWrite(uc.ARM_REG_PC, uint64(v))
}

// SP returns the stack pointer.
func (c *Core) SP() uint32 {
	v, _ := c.mu.RegRead(uc.ARM_REG_SP)
	return uint32(v)
}

// SetSP sets the stack pointer.
func (c *Core) SetSP(v uint32) error {
	return c.mu.RegWrite(uc.ARM_REG_SP, uint64(v))
}

// LR returns the link register.
func (c *Core) LR() uint32 {
	v, _ := c.mu.RegRead(uc.ARM_REG_LR)
	return uint32(v)
}

// SetLR sets the link register.
func (c *Core) SetLR(v uint32) error {
	return c.mu.RegWrite(uc.ARM_REG_LR, uint64(v))
}

// HookCode registers an observer invoked for every executed instruction.
func (c *Core) HookCode(fn CodeHookFunc) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.codeHooks = append(c.codeHooks, fn)
}

// RegisterFunction allocates a guest-callable trampoline for fn and returns
// its address. Guest code (or this core's own run_function machinery) can
// branch to the returned address like any other function; the trampoline
// traps back into fn with r0-r3 as arguments, stores fn's return value in
// r0, then executes a bx lr like a normal leaf function would.
func (c *Core) RegisterFunction(fn HostFunc) (uint32, error) {
	addr := c.stubNext
	if addr+stubInstrSize > StubBase+StubSize {
		return 0, fmt.Errorf("arm: stub region exhausted")
	}
	c.stubNext += stubInstrSize

	if err := c.mu.MemWrite(uint64(addr), bxLR); err != nil {
		return 0, fmt.Errorf("write trampoline at 0x%x: %w", addr, err)
	}

	c.hookMu.Lock()
	c.hostFns[addr] = fn
	c.hookMu.Unlock()

	return addr, nil
}

// RunFunction invokes the guest function at addr, passing the first four
// arguments in r0-r3 and any further ones on the guest stack (args[4] at
// the new stack pointer, args[5] above it), blocking the calling
// goroutine until it returns (either by
// executing a bx lr back to our synthetic return address, or by the whole
// emulation being stopped from within a trapped call). Per spec §5 this is
// a task suspension point: call it from inside a sched.Task body so the
// scheduler sees the calling task as suspended for its duration.
//
// RunFunction may be called re-entrantly from inside a host function
// trapped via RegisterFunction (a native method calling back into
// bytecode, for instance); Unicorn supports nested Start calls on the same
// engine as long as each call's halt address is reached before the outer
// one resumes.
func (c *Core) RunFunction(addr uint32, args []uint32) (uint32, error) {
	savedLR := c.LR()
	savedSP := c.SP()
	defer func() {
		c.SetLR(savedLR)
		c.SetSP(savedSP)
	}()

	if len(args) > 4 {
		sp := c.SP() - uint32(len(args)-4)*4
		if err := c.SetSP(sp); err != nil {
			return 0, err
		}
		for i, a := range args[4:] {
			if err := c.WriteU32(sp+uint32(i)*4, a); err != nil {
				return 0, err
			}
		}
	}
	for i := 0; i < len(args) && i < 4; i++ {
		c.SetR(i, args[i])
	}

	if err := c.SetLR(haltAddr); err != nil {
		return 0, err
	}
	if err := c.SetPC(addr); err != nil {
		return 0, err
	}

	c.runErr = nil
	c.running = true
	if err := c.mu.Start(uint64(addr), uint64(haltAddr)); err != nil {
		return 0, fmt.Errorf("run 0x%x: %w", addr, err)
	}
	if c.runErr != nil {
		return 0, c.runErr
	}

	return c.R(0), nil
}
