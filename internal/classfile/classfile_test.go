package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"wipiemu/internal/jvmmeta"
	"wipiemu/internal/jvmruntime"
)

func intVal(v int32) jvmruntime.Value {
	return jvmruntime.Value{Kind: jvmmeta.KindInt, Words: [2]uint32{uint32(v), 0}}
}

// classBuilder assembles a minimal single-method `.class` file byte by
// byte, for tests that need a concrete class file without shipping a
// compiled fixture.
type classBuilder struct {
	buf        bytes.Buffer
	utf8       map[string]uint16
	nextConst  uint16
	pool       bytes.Buffer
	poolCount  int
}

func newClassBuilder() *classBuilder {
	return &classBuilder{utf8: make(map[string]uint16), nextConst: 1}
}

func (b *classBuilder) addUtf8(s string) uint16 {
	if idx, ok := b.utf8[s]; ok {
		return idx
	}
	idx := b.nextConst
	b.nextConst++
	b.poolCount++
	b.pool.WriteByte(tagUtf8)
	binary.Write(&b.pool, binary.BigEndian, uint16(len(s)))
	b.pool.WriteString(s)
	b.utf8[s] = idx
	return idx
}

func (b *classBuilder) addClass(name string) uint16 {
	nameIdx := b.addUtf8(name)
	idx := b.nextConst
	b.nextConst++
	b.poolCount++
	b.pool.WriteByte(tagClass)
	binary.Write(&b.pool, binary.BigEndian, nameIdx)
	return idx
}

// build assembles a class file with a single method named methodName
// with the given descriptor, access flags, and Code body (maxStack,
// maxLocals, raw bytecode).
func (b *classBuilder) build(methodName, descriptor string, accessFlags uint16, maxStack, maxLocals uint16, code []byte) []byte {
	thisIdx := b.addClass("Test")
	superIdx := b.addClass("java/lang/Object")
	nameIdx := b.addUtf8(methodName)
	descIdx := b.addUtf8(descriptor)
	codeAttrNameIdx := b.addUtf8("Code")

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(magic))
	binary.Write(&out, binary.BigEndian, uint16(0))  // minor
	binary.Write(&out, binary.BigEndian, uint16(52)) // major
	binary.Write(&out, binary.BigEndian, uint16(b.poolCount+1))
	out.Write(b.pool.Bytes())

	binary.Write(&out, binary.BigEndian, uint16(0x0021)) // access_flags: public super
	binary.Write(&out, binary.BigEndian, thisIdx)
	binary.Write(&out, binary.BigEndian, superIdx)
	binary.Write(&out, binary.BigEndian, uint16(0)) // interfaces_count
	binary.Write(&out, binary.BigEndian, uint16(0)) // fields_count

	binary.Write(&out, binary.BigEndian, uint16(1)) // methods_count
	binary.Write(&out, binary.BigEndian, accessFlags)
	binary.Write(&out, binary.BigEndian, nameIdx)
	binary.Write(&out, binary.BigEndian, descIdx)
	binary.Write(&out, binary.BigEndian, uint16(1)) // method attributes_count

	var codeAttr bytes.Buffer
	binary.Write(&codeAttr, binary.BigEndian, maxStack)
	binary.Write(&codeAttr, binary.BigEndian, maxLocals)
	binary.Write(&codeAttr, binary.BigEndian, uint32(len(code)))
	codeAttr.Write(code)
	binary.Write(&codeAttr, binary.BigEndian, uint16(0)) // exception_table_length
	binary.Write(&codeAttr, binary.BigEndian, uint16(0)) // code attributes_count

	binary.Write(&out, binary.BigEndian, codeAttrNameIdx)
	binary.Write(&out, binary.BigEndian, uint32(codeAttr.Len()))
	out.Write(codeAttr.Bytes())

	binary.Write(&out, binary.BigEndian, uint16(0)) // class attributes_count

	return out.Bytes()
}

func TestParseBasicClass(t *testing.T) {
	b := newClassBuilder()
	data := b.build("add", "(II)I", 0x0009, 2, 2, []byte{0x1a, 0x1b, 0x60, 0xac}) // iload_0, iload_1, iadd, ireturn

	cf, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cf.ThisClass != "Test" {
		t.Errorf("ThisClass = %q", cf.ThisClass)
	}
	if cf.SuperClass != "java/lang/Object" {
		t.Errorf("SuperClass = %q", cf.SuperClass)
	}
	if len(cf.Methods) != 1 {
		t.Fatalf("Methods = %d, want 1", len(cf.Methods))
	}
	m := cf.Methods[0]
	if m.Name != "add" || m.Descriptor != "(II)I" {
		t.Errorf("method = %s%s", m.Name, m.Descriptor)
	}
	if m.MaxStack != 2 || m.MaxLocals != 2 {
		t.Errorf("maxStack/maxLocals = %d/%d", m.MaxStack, m.MaxLocals)
	}
	if len(m.Code) != 4 {
		t.Fatalf("Code length = %d, want 4", len(m.Code))
	}
}

func TestInterpExecAdd(t *testing.T) {
	b := newClassBuilder()
	data := b.build("add", "(II)I", 0x0009, 2, 2, []byte{0x1a, 0x1b, 0x60, 0xac})

	cf, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	interp := NewInterp(nil, cf)
	ret, err := interp.Exec(&cf.Methods[0], 0, false, []jvmruntime.Value{intVal(3), intVal(4)})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if ret.Words[0] != 7 {
		t.Errorf("add(3,4) = %d, want 7", ret.Words[0])
	}
}

func TestInterpExecBranch(t *testing.T) {
	// if_icmpge taken: iload_0, iload_1, if_icmpge(+5), iconst_0, ireturn, iconst_1, ireturn
	code := []byte{
		0x1a, 0x1b, // iload_0, iload_1
		0xa2, 0x00, 0x05, // if_icmpge +5: opcode at offset 2, target offset 7 (iconst_1)
		0x03, 0xac, // iconst_0, ireturn
		0x04, 0xac, // iconst_1, ireturn
	}
	b := newClassBuilder()
	data := b.build("ge", "(II)I", 0x0009, 2, 2, code)

	cf, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	interp := NewInterp(nil, cf)

	ret, err := interp.Exec(&cf.Methods[0], 0, false, []jvmruntime.Value{intVal(5), intVal(3)})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if ret.Words[0] != 1 {
		t.Errorf("ge(5,3) = %d, want 1", ret.Words[0])
	}

	ret, err = interp.Exec(&cf.Methods[0], 0, false, []jvmruntime.Value{intVal(1), intVal(3)})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if ret.Words[0] != 0 {
		t.Errorf("ge(1,3) = %d, want 0", ret.Words[0])
	}
}
