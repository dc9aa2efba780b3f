package classfile

import (
	"fmt"

	"wipiemu/internal/arm"
	"wipiemu/internal/jvmmeta"
	"wipiemu/internal/jvmruntime"
)

// LoadFile parses a `.class` file's bytes and loads it into rt, returning
// the guest class pointer internal/jvmruntime assigns it. cf's super
// class (if any) must already be loaded into rt, the same ordering rule
// jvmruntime.LoadClass applies to every caller.
//
// Every method backed by a Code attribute is registered as an ordinary
// (non-native) vtable entry whose FnBody is a host trampoline rather
// than translated ARM machine code: spec's Non-goals rule out a full
// bytecode-to-ARM ahead-of-time translator, so this runtime interprets
// Code attributes directly through Interp at call time instead of ever
// producing real machine code for them. The trampoline is synthesized
// with arm.Core.RegisterFunction the same way nativebridge.Register
// does, but classfile decodes its own ABI words rather than going
// through nativebridge: a genuine native method's argument list never
// includes a synthetic this word (the receiver is captured in the
// closure at Register time instead, see nativebridge.NativeFunc), while
// a bytecode instance method's always does (this arrives in r0, per
// nativebridge.Bridge.Invoke's hasThis convention) — reusing
// nativebridge.Register here would misalign the two conventions.
// Dispatch, vtable override, and this-passing are otherwise identical to
// any other loaded class; internal/jvmruntime cannot tell a classfile
// method apart from one declared directly through ClassProto.
func LoadFile(core *arm.Core, rt *jvmruntime.Runtime, data []byte) (uint32, error) {
	cf, err := Parse(data)
	if err != nil {
		return 0, err
	}
	interp := NewInterp(rt, cf)

	proto := jvmruntime.ClassProto{
		Name:        cf.ThisClass,
		Parent:      cf.SuperClass,
		AccessFlags: cf.AccessFlags,
	}

	for i := range cf.Methods {
		m := &cf.Methods[i]
		method := jvmruntime.MethodProto{
			Name:        m.Name,
			Descriptor:  m.Descriptor,
			AccessFlags: m.AccessFlags,
		}
		if m.Code != nil {
			addr, err := registerBytecodeMethod(core, interp, m)
			if err != nil {
				return 0, fmt.Errorf("classfile: register %s%s: %w", m.Name, m.Descriptor, err)
			}
			method.BytecodeAddr = addr
		}
		proto.Methods = append(proto.Methods, method)
	}

	for _, fld := range cf.Fields {
		proto.Fields = append(proto.Fields, jvmruntime.FieldProto{
			Name:        fld.Name,
			Descriptor:  fld.Descriptor,
			AccessFlags: uint32(fld.AccessFlags),
			StaticInit:  fld.ConstantValue,
		})
	}

	return rt.LoadClass(proto)
}

// registerBytecodeMethod synthesizes the guest trampoline backing one
// Code-bearing method. The returned address is only ever invoked through
// jvmruntime's normal FnBody dispatch path, never called directly.
func registerBytecodeMethod(core *arm.Core, interp *Interp, m *Method) (uint32, error) {
	sig, err := jvmmeta.ParseDescriptor(m.Descriptor)
	if err != nil {
		return 0, err
	}
	hasThis := m.AccessFlags&jvmmeta.AccStatic == 0

	addr, err := core.RegisterFunction(func(c *arm.Core, regs [4]uint32) (uint32, error) {
		var this uint32
		startSlot := 0
		if hasThis {
			this = regs[0]
			startSlot = 1
		}

		args, err := bytecodeArgs(c, regs, startSlot, sig.Params)
		if err != nil {
			return 0, fmt.Errorf("classfile: decode args for %s%s: %w", m.Name, m.Descriptor, err)
		}

		ret, err := interp.Exec(m, this, hasThis, args)
		if err != nil {
			return 0, err
		}
		return ret.Words[0], nil
	})
	if err != nil {
		return 0, err
	}
	return addr, nil
}

// bytecodeArgs classifies the ABI word stream (r0-r3 starting at
// startSlot, then guest stack) into typed Values per params, mirroring
// nativebridge's unmarshalArgs but parameterized over where the first
// real parameter word begins (after a leading this word, for an
// instance method).
func bytecodeArgs(c *arm.Core, regs [4]uint32, startSlot int, params []jvmmeta.Kind) ([]jvmruntime.Value, error) {
	var stackIdx uint32
	wordAt := func(i int) (uint32, error) {
		if i < 4 {
			return regs[i], nil
		}
		return c.ReadU32(c.SP() + stackIdx*4)
	}

	out := make([]jvmruntime.Value, 0, len(params))
	slot := startSlot
	for _, k := range params {
		v := jvmruntime.Value{Kind: k}
		n := k.Words()
		for w := 0; w < n; w++ {
			word, err := wordAt(slot)
			if err != nil {
				return nil, err
			}
			if slot >= 4 {
				stackIdx++
			}
			v.Words[w] = word
			slot++
		}
		out = append(out, v)
	}
	return out, nil
}
