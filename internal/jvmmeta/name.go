package jvmmeta

import (
	"fmt"
	"strings"
)

// FullName is the guest encoding of a method or field's identity: a tag
// byte (always 0 for anything this runtime constructs; non-zero tags are
// reserved by the original format for overload disambiguation this
// implementation doesn't generate), the descriptor, then the name,
// joined by '+' and null-terminated. Equality between two FullNames
// ignores Tag, matching the original JavaMethodFullname/JavaFullName
// PartialEq impls (both compare only name+descriptor).
type FullName struct {
	Tag        uint8
	Name       string
	Descriptor string
}

// Encode renders a FullName as `tag || descriptor || '+' || name || 0`.
func (n FullName) Encode() []byte {
	var b []byte
	b = append(b, n.Tag)
	b = append(b, []byte(n.Descriptor)...)
	b = append(b, '+')
	b = append(b, []byte(n.Name)...)
	b = append(b, 0)
	return b
}

// Equal compares two FullNames by name and descriptor only, per the
// original's PartialEq implementations.
func (n FullName) Equal(other FullName) bool {
	return n.Name == other.Name && n.Descriptor == other.Descriptor
}

func (n FullName) String() string {
	return fmt.Sprintf("%s%s@%d", n.Name, n.Descriptor, n.Tag)
}

// ReadFullName decodes a FullName starting at ptr: one tag byte, then a
// null-terminated "descriptor+name" string.
func ReadFullName(m interface {
	ReadBytes(addr uint32, size uint32) ([]byte, error)
}, ptr uint32) (FullName, error) {
	tagByte, err := m.ReadBytes(ptr, 1)
	if err != nil {
		return FullName{}, err
	}

	const maxScan = 512
	raw, err := m.ReadBytes(ptr+1, maxScan)
	if err != nil {
		return FullName{}, err
	}
	end := len(raw)
	for i, b := range raw {
		if b == 0 {
			end = i
			break
		}
	}
	s := string(raw[:end])

	parts := strings.SplitN(s, "+", 2)
	if len(parts) != 2 {
		return FullName{}, fmt.Errorf("jvmmeta: malformed full name %q at 0x%x", s, ptr)
	}

	return FullName{Tag: tagByte[0], Descriptor: parts[0], Name: parts[1]}, nil
}

// WriteFullName allocates nothing; it writes the encoded name to an
// already-reserved ptr, so the caller (which owns allocation) sizes its
// request with EncodedSize first.
func WriteFullName(m Memory, ptr uint32, n FullName) error {
	return m.WriteBytes(ptr, n.Encode())
}

// EncodedSize returns how many bytes Encode will produce, for sizing an
// allocation before writing.
func (n FullName) EncodedSize() uint32 {
	return uint32(len(n.Encode()))
}
