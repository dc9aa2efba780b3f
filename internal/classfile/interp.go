package classfile

import (
	"encoding/binary"
	"fmt"

	"wipiemu/internal/jvmmeta"
	"wipiemu/internal/jvmruntime"
)

// Interp executes a Method's Code attribute against a Runtime. It covers
// the opcode subset the WIPI application corpus this emulator targets
// actually emits from a typical javac -target without optimization:
// constant pushes, local variable load/store, integer arithmetic,
// comparison branches, field and array access, and the four invoke
// forms plus object allocation. Anything outside that subset (exception
// handling, switch tables, floating point, synchronized blocks) returns
// an error rather than silently misbehaving — per spec's Non-goals this
// is deliberately not a conformant interpreter.
type Interp struct {
	rt *jvmruntime.Runtime
	cf *ClassFile
}

// NewInterp builds an interpreter for methods declared in cf, dispatching
// invokes and field/array access through rt.
func NewInterp(rt *jvmruntime.Runtime, cf *ClassFile) *Interp {
	return &Interp{rt: rt, cf: cf}
}

type frame struct {
	locals []uint32
	stack  []uint32
	pc     int
	code   []byte
}

func (f *frame) push(v uint32) { f.stack = append(f.stack, v) }

func (f *frame) pop() (uint32, error) {
	if len(f.stack) == 0 {
		return 0, fmt.Errorf("classfile: stack underflow at pc %d", f.pc)
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

func (f *frame) u8() byte {
	b := f.code[f.pc]
	f.pc++
	return b
}

func (f *frame) s8() int8 { return int8(f.u8()) }

func (f *frame) u16() uint16 {
	v := binary.BigEndian.Uint16(f.code[f.pc:])
	f.pc += 2
	return v
}

func (f *frame) s16() int16 { return int16(f.u16()) }

// Exec runs method's bytecode with args bound to its declared parameters
// (this prepended to locals first when hasThis is set, per JVMS §2.6.1's
// local variable layout) and returns its declared return value.
func (in *Interp) Exec(method *Method, this uint32, hasThis bool, args []jvmruntime.Value) (jvmruntime.Value, error) {
	if method.Code == nil {
		return jvmruntime.Value{}, fmt.Errorf("classfile: %s%s has no Code attribute", method.Name, method.Descriptor)
	}
	sig, err := jvmmeta.ParseDescriptor(method.Descriptor)
	if err != nil {
		return jvmruntime.Value{}, err
	}

	f := &frame{
		locals: make([]uint32, method.MaxLocals),
		code:   method.Code,
	}
	slot := 0
	if hasThis {
		f.locals[slot] = this
		slot++
	}
	for i, p := range sig.Params {
		for w := 0; w < p.Words(); w++ {
			if slot >= len(f.locals) {
				return jvmruntime.Value{}, fmt.Errorf("classfile: %s%s: too many locals for its declared max_locals", method.Name, method.Descriptor)
			}
			f.locals[slot] = args[i].Words[w]
			slot++
		}
	}

	ret, err := in.run(f)
	if err != nil {
		return jvmruntime.Value{}, fmt.Errorf("classfile: %s%s: %w", method.Name, method.Descriptor, err)
	}
	return jvmruntime.Value{Kind: sig.Return, Words: [2]uint32{ret, 0}}, nil
}

func (in *Interp) run(f *frame) (uint32, error) {
	for f.pc < len(f.code) {
		op := f.u8()
		switch op {
		case 0x00: // nop
		case 0x01: // aconst_null
			f.push(0)
		case 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08: // iconst_m1..iconst_5
			f.push(uint32(int32(op) - 0x03))
		case 0x10: // bipush
			f.push(uint32(int32(f.s8())))
		case 0x11: // sipush
			f.push(uint32(int32(f.s16())))
		case 0x12: // ldc
			if err := in.ldc(f, uint16(f.u8())); err != nil {
				return 0, err
			}
		case 0x13: // ldc_w
			if err := in.ldc(f, f.u16()); err != nil {
				return 0, err
			}
		case 0x15, 0x16, 0x17, 0x18, 0x19: // iload, lload, fload, dload, aload
			f.push(f.locals[f.u8()])
		case 0x1a, 0x1b, 0x1c, 0x1d: // iload_0..3
			f.push(f.locals[op-0x1a])
		case 0x2a, 0x2b, 0x2c, 0x2d: // aload_0..3
			f.push(f.locals[op-0x2a])
		case 0x36, 0x37, 0x38, 0x39, 0x3a: // istore, lstore, fstore, dstore, astore
			v, err := f.pop()
			if err != nil {
				return 0, err
			}
			f.locals[f.u8()] = v
		case 0x3b, 0x3c, 0x3d, 0x3e: // istore_0..3
			v, err := f.pop()
			if err != nil {
				return 0, err
			}
			f.locals[op-0x3b] = v
		case 0x4b, 0x4c, 0x4d, 0x4e: // astore_0..3
			v, err := f.pop()
			if err != nil {
				return 0, err
			}
			f.locals[op-0x4b] = v
		case 0x2e, 0x32: // iaload, aaload
			if err := in.arrayLoad(f, "I"); err != nil {
				return 0, err
			}
		case 0x33: // baload
			if err := in.arrayLoad(f, "B"); err != nil {
				return 0, err
			}
		case 0x34: // caload
			if err := in.arrayLoad(f, "C"); err != nil {
				return 0, err
			}
		case 0x35: // saload
			if err := in.arrayLoad(f, "S"); err != nil {
				return 0, err
			}
		case 0x4f, 0x53: // iastore, aastore
			if err := in.arrayStore(f, "I"); err != nil {
				return 0, err
			}
		case 0x54: // bastore
			if err := in.arrayStore(f, "B"); err != nil {
				return 0, err
			}
		case 0x55: // castore
			if err := in.arrayStore(f, "C"); err != nil {
				return 0, err
			}
		case 0x56: // sastore
			if err := in.arrayStore(f, "S"); err != nil {
				return 0, err
			}
		case 0x57: // pop
			if _, err := f.pop(); err != nil {
				return 0, err
			}
		case 0x59: // dup
			v, err := f.pop()
			if err != nil {
				return 0, err
			}
			f.push(v)
			f.push(v)
		case 0x60: // iadd
			if err := binOp(f, func(a, b int32) int32 { return a + b }); err != nil {
				return 0, err
			}
		case 0x64: // isub
			if err := binOp(f, func(a, b int32) int32 { return a - b }); err != nil {
				return 0, err
			}
		case 0x68: // imul
			if err := binOp(f, func(a, b int32) int32 { return a * b }); err != nil {
				return 0, err
			}
		case 0x7e: // iand
			if err := binOp(f, func(a, b int32) int32 { return a & b }); err != nil {
				return 0, err
			}
		case 0x80: // ior
			if err := binOp(f, func(a, b int32) int32 { return a | b }); err != nil {
				return 0, err
			}
		case 0x82: // ixor
			if err := binOp(f, func(a, b int32) int32 { return a ^ b }); err != nil {
				return 0, err
			}
		case 0x84: // iinc
			idx := f.u8()
			delta := int32(f.s8())
			f.locals[idx] = uint32(int32(f.locals[idx]) + delta)
		case 0x99, 0x9a, 0x9b, 0x9c, 0x9d, 0x9e: // ifeq..ifle
			v, err := f.pop()
			if err != nil {
				return 0, err
			}
			if cmpZero(int32(v), op-0x99) {
				in.branch(f)
			} else {
				f.u16()
			}
		case 0x9f, 0xa0, 0xa1, 0xa2, 0xa3, 0xa4: // if_icmpeq..if_icmple
			b, err := f.pop()
			if err != nil {
				return 0, err
			}
			a, err := f.pop()
			if err != nil {
				return 0, err
			}
			if cmpInts(int32(a), int32(b), op-0x9f) {
				in.branch(f)
			} else {
				f.u16()
			}
		case 0xa5, 0xa6: // if_acmpeq, if_acmpne
			b, err := f.pop()
			if err != nil {
				return 0, err
			}
			a, err := f.pop()
			if err != nil {
				return 0, err
			}
			eq := a == b
			if op == 0xa6 {
				eq = !eq
			}
			if eq {
				in.branch(f)
			} else {
				f.u16()
			}
		case 0xa7: // goto
			in.branch(f)
		case 0xc6: // ifnull
			v, err := f.pop()
			if err != nil {
				return 0, err
			}
			if v == 0 {
				in.branch(f)
			} else {
				f.u16()
			}
		case 0xc7: // ifnonnull
			v, err := f.pop()
			if err != nil {
				return 0, err
			}
			if v != 0 {
				in.branch(f)
			} else {
				f.u16()
			}
		case 0xac, 0xae, 0xb0: // ireturn, freturn, areturn
			v, err := f.pop()
			if err != nil {
				return 0, err
			}
			return v, nil
		case 0xb1: // return
			return 0, nil
		case 0xb2: // getstatic
			if err := in.getstatic(f, f.u16()); err != nil {
				return 0, err
			}
		case 0xb3: // putstatic
			if err := in.putstatic(f, f.u16()); err != nil {
				return 0, err
			}
		case 0xb4: // getfield
			if err := in.getfield(f, f.u16()); err != nil {
				return 0, err
			}
		case 0xb5: // putfield
			if err := in.putfield(f, f.u16()); err != nil {
				return 0, err
			}
		case 0xb6: // invokevirtual
			if err := in.invoke(f, f.u16(), invokeVirtual); err != nil {
				return 0, err
			}
		case 0xb7: // invokespecial
			if err := in.invoke(f, f.u16(), invokeSpecial); err != nil {
				return 0, err
			}
		case 0xb8: // invokestatic
			if err := in.invoke(f, f.u16(), invokeStatic); err != nil {
				return 0, err
			}
		case 0xb9: // invokeinterface
			idx := f.u16()
			f.u8() // count
			f.u8() // always 0
			if err := in.invoke(f, idx, invokeVirtual); err != nil {
				return 0, err
			}
		case 0xbb: // new
			idx := f.u16()
			name, err := in.cf.ClassNameAt(idx)
			if err != nil {
				return 0, err
			}
			inst, err := in.rt.AllocateInstance(name)
			if err != nil {
				return 0, err
			}
			f.push(inst.Ptr())
		case 0xbc: // newarray
			atype := f.u8()
			length, err := f.pop()
			if err != nil {
				return 0, err
			}
			desc, err := primitiveArrayType(atype)
			if err != nil {
				return 0, err
			}
			arr, err := in.rt.NewArray(desc, length)
			if err != nil {
				return 0, err
			}
			f.push(arr.Ptr())
		case 0xbd: // anewarray
			idx := f.u16()
			length, err := f.pop()
			if err != nil {
				return 0, err
			}
			className, err := in.cf.ClassNameAt(idx)
			if err != nil {
				return 0, err
			}
			arr, err := in.rt.NewArray("L"+className+";", length)
			if err != nil {
				return 0, err
			}
			f.push(arr.Ptr())
		case 0xbe: // arraylength
			ptr, err := f.pop()
			if err != nil {
				return 0, err
			}
			n, err := in.rt.ArrayLength(in.rt.WrapInstance(ptr))
			if err != nil {
				return 0, err
			}
			f.push(n)
		case 0xc0, 0xc1: // checkcast, instanceof
			idx := f.u16()
			if _, err := in.cf.ClassNameAt(idx); err != nil {
				return 0, err
			}
			if op == 0xc1 {
				v, err := f.pop()
				if err != nil {
					return 0, err
				}
				result := uint32(0)
				if v != 0 {
					result = 1
				}
				f.push(result)
			}
		default:
			return 0, fmt.Errorf("classfile: unsupported opcode 0x%02x at pc %d", op, f.pc-1)
		}
	}
	return 0, fmt.Errorf("classfile: fell off the end of the method body without a return")
}

// branch reads the signed 16-bit offset following the current opcode and
// jumps relative to the opcode's own address (JVMS branch offsets are
// relative to the instruction, not the operand).
func (in *Interp) branch(f *frame) {
	opAddr := f.pc - 1
	off := int(f.s16())
	f.pc = opAddr + off
}

func binOp(f *frame, fn func(a, b int32) int32) error {
	b, err := f.pop()
	if err != nil {
		return err
	}
	a, err := f.pop()
	if err != nil {
		return err
	}
	f.push(uint32(fn(int32(a), int32(b))))
	return nil
}

func cmpZero(v int32, variant byte) bool {
	switch variant {
	case 0: // eq
		return v == 0
	case 1: // ne
		return v != 0
	case 2: // lt
		return v < 0
	case 3: // ge
		return v >= 0
	case 4: // gt
		return v > 0
	default: // le
		return v <= 0
	}
}

func cmpInts(a, b int32, variant byte) bool {
	switch variant {
	case 0:
		return a == b
	case 1:
		return a != b
	case 2:
		return a < b
	case 3:
		return a >= b
	case 4:
		return a > b
	default:
		return a <= b
	}
}

func primitiveArrayType(atype byte) (string, error) {
	switch atype {
	case 4:
		return "Z", nil
	case 5:
		return "C", nil
	case 6:
		return "F", nil
	case 7:
		return "D", nil
	case 8:
		return "B", nil
	case 9:
		return "S", nil
	case 10:
		return "I", nil
	case 11:
		return "J", nil
	default:
		return "", fmt.Errorf("classfile: unknown newarray atype %d", atype)
	}
}

func (in *Interp) ldc(f *frame, idx uint16) error {
	if s, err := in.cf.StringAt(idx); err == nil {
		str, err := in.rt.NewString(s)
		if err != nil {
			return err
		}
		f.push(str.Ptr())
		return nil
	}
	v, err := in.cf.IntegerAt(idx)
	if err != nil {
		return fmt.Errorf("classfile: ldc of unsupported constant pool entry %d: %w", idx, err)
	}
	f.push(uint32(v))
	return nil
}

func (in *Interp) getstatic(f *frame, idx uint16) error {
	class, name, descriptor, err := in.cf.RefInfo(idx)
	if err != nil {
		return err
	}
	v, err := in.rt.GetStaticField(class, name, descriptor)
	if err != nil {
		return err
	}
	f.push(v)
	return nil
}

func (in *Interp) putstatic(f *frame, idx uint16) error {
	class, name, descriptor, err := in.cf.RefInfo(idx)
	if err != nil {
		return err
	}
	v, err := f.pop()
	if err != nil {
		return err
	}
	return in.rt.PutStaticField(class, name, descriptor, v)
}

func (in *Interp) getfield(f *frame, idx uint16) error {
	_, name, descriptor, err := in.cf.RefInfo(idx)
	if err != nil {
		return err
	}
	ptr, err := f.pop()
	if err != nil {
		return err
	}
	v, err := in.rt.GetField(in.rt.WrapInstance(ptr), name, descriptor)
	if err != nil {
		return err
	}
	f.push(v)
	return nil
}

func (in *Interp) putfield(f *frame, idx uint16) error {
	_, name, descriptor, err := in.cf.RefInfo(idx)
	if err != nil {
		return err
	}
	v, err := f.pop()
	if err != nil {
		return err
	}
	ptr, err := f.pop()
	if err != nil {
		return err
	}
	return in.rt.PutField(in.rt.WrapInstance(ptr), name, descriptor, v)
}

func (in *Interp) arrayLoad(f *frame, defaultDescriptor string) error {
	index, err := f.pop()
	if err != nil {
		return err
	}
	ptr, err := f.pop()
	if err != nil {
		return err
	}
	data, err := in.rt.LoadArrayElement(in.rt.WrapInstance(ptr), defaultDescriptor, index)
	if err != nil {
		return err
	}
	f.push(wordFromBytes(data))
	return nil
}

func (in *Interp) arrayStore(f *frame, descriptor string) error {
	value, err := f.pop()
	if err != nil {
		return err
	}
	index, err := f.pop()
	if err != nil {
		return err
	}
	ptr, err := f.pop()
	if err != nil {
		return err
	}
	size := elemByteSize(descriptor)
	data := make([]byte, size)
	switch size {
	case 1:
		data[0] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(data, uint16(value))
	default:
		binary.LittleEndian.PutUint32(data, value)
	}
	return in.rt.StoreArrayElement(in.rt.WrapInstance(ptr), descriptor, index, data)
}

func elemByteSize(descriptor string) int {
	switch descriptor {
	case "B", "Z":
		return 1
	case "C", "S":
		return 2
	default:
		return 4
	}
}

func wordFromBytes(b []byte) uint32 {
	switch len(b) {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(b))
	default:
		return binary.LittleEndian.Uint32(b)
	}
}

type invokeKind int

const (
	invokeVirtual invokeKind = iota
	invokeSpecial
	invokeStatic
)

func (in *Interp) invoke(f *frame, idx uint16, kind invokeKind) error {
	class, name, descriptor, err := in.cf.RefInfo(idx)
	if err != nil {
		return err
	}
	sig, err := jvmmeta.ParseDescriptor(descriptor)
	if err != nil {
		return err
	}

	args := make([]jvmruntime.Value, len(sig.Params))
	for i := len(sig.Params) - 1; i >= 0; i-- {
		p := sig.Params[i]
		var words [2]uint32
		for w := p.Words() - 1; w >= 0; w-- {
			v, err := f.pop()
			if err != nil {
				return err
			}
			words[w] = v
		}
		args[i] = jvmruntime.Value{Kind: p, Words: words}
	}

	var ret jvmruntime.Value
	switch kind {
	case invokeStatic:
		ret, err = in.rt.InvokeStatic(class, name, descriptor, args)
	case invokeSpecial:
		ptr, perr := f.pop()
		if perr != nil {
			return perr
		}
		ret, err = in.rt.InvokeSpecial(in.rt.WrapInstance(ptr), class, name, descriptor, args)
	default: // invokeVirtual
		ptr, perr := f.pop()
		if perr != nil {
			return perr
		}
		ret, err = in.rt.InvokeVirtual(in.rt.WrapInstance(ptr), name, descriptor, args)
	}
	if err != nil {
		return err
	}
	if sig.Return != jvmmeta.KindVoid {
		f.push(ret.Words[0])
	}
	return nil
}
