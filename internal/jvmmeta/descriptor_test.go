package jvmmeta

import "testing"

func TestParseDescriptorParamsAndReturn(t *testing.T) {
	sig, err := ParseDescriptor("(ILjava/lang/String;[BJ)Z")
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	want := []Kind{KindInt, KindReference, KindArray, KindLong}
	if len(sig.Params) != len(want) {
		t.Fatalf("params = %v, want %v", sig.Params, want)
	}
	for i, k := range want {
		if sig.Params[i] != k {
			t.Errorf("param[%d] = %v, want %v", i, sig.Params[i], k)
		}
	}
	if sig.Return != KindBoolean {
		t.Errorf("return = %v, want KindBoolean", sig.Return)
	}
}

func TestParseDescriptorVoidNoArgs(t *testing.T) {
	sig, err := ParseDescriptor("()V")
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if len(sig.Params) != 0 {
		t.Errorf("expected no params, got %v", sig.Params)
	}
	if sig.Return != KindVoid {
		t.Errorf("return = %v, want KindVoid", sig.Return)
	}
}

func TestParseDescriptorMalformed(t *testing.T) {
	cases := []string{"", "I)V", "(I", "(Q)V"}
	for _, c := range cases {
		if _, err := ParseDescriptor(c); err == nil {
			t.Errorf("ParseDescriptor(%q) expected error", c)
		}
	}
}

func TestKindWords(t *testing.T) {
	if KindLong.Words() != 2 {
		t.Error("KindLong should occupy 2 words")
	}
	if KindDouble.Words() != 2 {
		t.Error("KindDouble should occupy 2 words")
	}
	if KindInt.Words() != 1 {
		t.Error("KindInt should occupy 1 word")
	}
}
