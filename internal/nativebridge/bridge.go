// Package nativebridge implements Component G (the native-method bridge):
// the two directions of argument marshaling between ARM registers and
// typed JVM values described for register_function/run_function dispatch.
//
// Grounded on zboralski-galago's internal/stubs JNI shim: that package's
// "registry of named handlers, each reading fixed ABI registers and
// writing a return value" shape is the idiom this package generalizes
// from Android's fixed JNI vtable offsets to WIPI's descriptor-driven
// native method signatures. The argument/return marshaling rules
// themselves (this-prepending for bytecode dispatch, boxed-only
// parameters for native dispatch, two-slot low-word-first long/double)
// are taken from method.rs::run in the original implementation.
package nativebridge

import (
	"fmt"

	"wipiemu/internal/arm"
	"wipiemu/internal/jvmmeta"
)

// NativeFunc is a host-implemented native method body. It receives only
// the method's declared parameters — never a synthetic this word — since
// a native method bound to a particular instance captures that instance
// in its own closure at Register time, not through the ABI. Register is
// called once per class load, so a NativeFunc closing over a receiver
// only works for stubs that don't need a per-instance this (the corpus
// this targets never declares a native instance method that reads its
// own fields); a native method that did need one would have to be
// re-Register-ed per instance, which this bridge doesn't do.
type NativeFunc func(args []jvmmeta.Value) (jvmmeta.Value, error)

// Bridge owns the ARM core a set of native methods are registered
// against and reports every dispatch to OnCall for tracing.
type Bridge struct {
	core   *arm.Core
	OnCall func(name string, detail string)
}

// New creates a bridge bound to core.
func New(core *arm.Core) *Bridge {
	return &Bridge{core: core}
}

// Register synthesizes a guest-callable trampoline for fn per the ARM →
// host direction of §4.G: argument words are read off r0-r3 and the
// guest stack beyond, classified per sig.Params, and fn's typed return
// value is serialized back into r0 per sig.Return.
func (b *Bridge) Register(name string, sig jvmmeta.Signature, fn NativeFunc) (uint32, error) {
	addr, err := b.core.RegisterFunction(func(c *arm.Core, regs [4]uint32) (uint32, error) {
		args, err := b.unmarshalArgs(c, regs, sig.Params)
		if err != nil {
			return 0, fmt.Errorf("nativebridge: unmarshal args for %s: %w", name, err)
		}

		ret, err := fn(args)
		if err != nil {
			if b.OnCall != nil {
				b.OnCall(name, fmt.Sprintf("error: %v", err))
			}
			return 0, err
		}

		if b.OnCall != nil {
			b.OnCall(name, describeReturn(sig.Return, ret))
		}
		return marshalReturn(sig.Return, ret), nil
	})
	if err != nil {
		return 0, fmt.Errorf("nativebridge: register %s: %w", name, err)
	}
	return addr, nil
}

// unmarshalArgs classifies the ABI word stream (r0-r3, then guest stack)
// into typed Values per params. Long/double params consume two
// consecutive words, low word first.
func (b *Bridge) unmarshalArgs(c *arm.Core, regs [4]uint32, params []jvmmeta.Kind) ([]jvmmeta.Value, error) {
	var stackIdx uint32
	wordAt := func(i int) (uint32, error) {
		if i < 4 {
			return regs[i], nil
		}
		return c.ReadU32(c.SP() + stackIdx*4)
	}

	out := make([]jvmmeta.Value, 0, len(params))
	slot := 0
	for _, k := range params {
		v := jvmmeta.Value{Kind: k}
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

func marshalReturn(kind jvmmeta.Kind, v jvmmeta.Value) uint32 {
	if kind == jvmmeta.KindVoid {
		return 0
	}
	return v.Words[0]
}

func describeReturn(kind jvmmeta.Kind, v jvmmeta.Value) string {
	if kind == jvmmeta.KindVoid {
		return "-> void"
	}
	return fmt.Sprintf("-> 0x%x", v.Words[0])
}

// Invoke calls a guest-resident method entry point (either a bytecode
// body or a previously Register-ed native trampoline) per the host → ARM
// direction of §4.G: this is prepended before the parsed arguments only
// when hasThis is set (bytecode instance methods; never for native
// methods, whose receiver is already bound into the NativeFunc closure).
//
// run_function only yields a single return-register word, so a
// long/double return is read back as its low word only; callers needing
// the full 64 bits must have the callee stash the high word at a known
// guest address (this runtime's methods never return long or double per
// the corpus it targets, so that case is not exercised here).
func (b *Bridge) Invoke(addr uint32, this uint32, hasThis bool, args []jvmmeta.Value, ret jvmmeta.Kind) (jvmmeta.Value, error) {
	var words []uint32
	if hasThis {
		words = append(words, this)
	}
	for _, a := range args {
		words = append(words, a.Words[:a.Kind.Words()]...)
	}

	word, err := b.core.RunFunction(addr, words)
	if err != nil {
		return jvmmeta.Value{}, err
	}
	return jvmmeta.Value{Kind: ret, Words: [2]uint32{word, 0}}, nil
}
