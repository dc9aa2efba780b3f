package protoscript

import (
	"testing"

	"wipiemu/internal/jvmmeta"
)

func TestCompileReturnsArg(t *testing.T) {
	s := Stub{
		Class:      "Test",
		Method:     "double",
		Descriptor: "(I)I",
		Script:     "return args[0] * 2;",
	}
	fn := Compile(s)

	ret, err := fn([]jvmmeta.Value{{Kind: jvmmeta.KindInt, Words: [2]uint32{21, 0}}})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if ret.Words[0] != 42 {
		t.Errorf("ret = %d, want 42", ret.Words[0])
	}
}

func TestCompileVoidReturn(t *testing.T) {
	s := Stub{Class: "Test", Method: "noop", Descriptor: "()V", Script: ""}
	fn := Compile(s)

	ret, err := fn(nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if ret.Kind != jvmmeta.KindVoid {
		t.Errorf("Kind = %v, want KindVoid", ret.Kind)
	}
}

func TestRegistryMethodProtos(t *testing.T) {
	r := NewRegistry()
	r.Register("org/kwis/msp/handset/HandsetProperty", "hasProperty", "(I)I", "return args[0] != 0 ? 1 : 0;")

	protos := r.MethodProtos("org/kwis/msp/handset/HandsetProperty")
	if len(protos) != 1 {
		t.Fatalf("MethodProtos = %d, want 1", len(protos))
	}
	if protos[0].Name != "hasProperty" || protos[0].Native == nil {
		t.Errorf("proto = %+v", protos[0])
	}
}

func TestDefaultRegistryHasHandsetStubs(t *testing.T) {
	stubs := Default.For("org/kwis/msp/handset/HandsetProperty")
	if len(stubs) < 2 {
		t.Fatalf("expected handset.go's init() stubs to be registered, got %d", len(stubs))
	}
}
