package nativebridge

import (
	"testing"

	"wipiemu/internal/jvmmeta"
)

func TestUnmarshalArgsRegistersOnly(t *testing.T) {
	b := &Bridge{}
	regs := [4]uint32{10, 20, 30, 40}
	args, err := b.unmarshalArgs(nil, regs, []jvmmeta.Kind{jvmmeta.KindInt, jvmmeta.KindInt})
	if err != nil {
		t.Fatalf("unmarshalArgs: %v", err)
	}
	if len(args) != 2 {
		t.Fatalf("len(args) = %d, want 2", len(args))
	}
	if args[0].Word() != 10 || args[1].Word() != 20 {
		t.Errorf("args = %+v, want [10, 20]", args)
	}
}

func TestUnmarshalArgsLongSpansTwoWords(t *testing.T) {
	b := &Bridge{}
	regs := [4]uint32{1, 0xAAAA, 0xBBBB, 99}
	args, err := b.unmarshalArgs(nil, regs, []jvmmeta.Kind{jvmmeta.KindInt, jvmmeta.KindLong})
	if err != nil {
		t.Fatalf("unmarshalArgs: %v", err)
	}
	if len(args) != 2 {
		t.Fatalf("len(args) = %d, want 2", len(args))
	}
	if args[0].Word() != 1 {
		t.Errorf("args[0] = %d, want 1", args[0].Word())
	}
	if args[1].Words[0] != 0xAAAA || args[1].Words[1] != 0xBBBB {
		t.Errorf("args[1] = %+v, want low=0xAAAA high=0xBBBB", args[1].Words)
	}
}

func TestMarshalReturnVoidIsZero(t *testing.T) {
	v := jvmmeta.Value{Kind: jvmmeta.KindInt, Words: [2]uint32{42}}
	if got := marshalReturn(jvmmeta.KindVoid, v); got != 0 {
		t.Errorf("marshalReturn(void, ...) = %d, want 0", got)
	}
}

func TestMarshalReturnNonVoidUsesLowWord(t *testing.T) {
	v := jvmmeta.Value{Kind: jvmmeta.KindInt, Words: [2]uint32{42}}
	if got := marshalReturn(jvmmeta.KindInt, v); got != 42 {
		t.Errorf("marshalReturn(int, ...) = %d, want 42", got)
	}
}

func TestDescribeReturnVoid(t *testing.T) {
	if got := describeReturn(jvmmeta.KindVoid, jvmmeta.Value{}); got != "-> void" {
		t.Errorf("describeReturn(void) = %q, want %q", got, "-> void")
	}
}
