package jvmruntime

import "fmt"

// stringClass and stringValueField name the bootstrap java/lang/String
// shape this runtime expects: a single instance field "value" of type
// "[C" holding the backing char array, the same layout real JVMs use.
// Framework bootstrap must LoadClass this shape (no constructor is
// required — NewString/ReadString never invoke one) before NewString or
// ReadString are called.
const (
	stringClass      = "java/lang/String"
	stringValueField = "value"
	stringValueDesc  = "[C"
)

// NewString builds a guest-resident java/lang/String from a host string,
// per §4.F: the host string is encoded to the handset's native 16-bit
// code unit stream via the platform codec, packed into a "[C" array, and
// wrapped in a java/lang/String instance referencing it.
func (rt *Runtime) NewString(s string) (Instance, error) {
	if rt.sys == nil || rt.sys.Codec == nil {
		return Instance{}, fmt.Errorf("jvmruntime: no text codec configured")
	}
	packed, err := rt.sys.Codec.Encode(s)
	if err != nil {
		return Instance{}, fmt.Errorf("jvmruntime: encode string: %w", err)
	}
	if len(packed)%2 != 0 {
		return Instance{}, fmt.Errorf("jvmruntime: codec produced an odd byte count for a 16-bit char array")
	}

	n := uint32(len(packed) / 2)
	arr, err := rt.NewArray("C", n)
	if err != nil {
		return Instance{}, err
	}
	for i := uint32(0); i < n; i++ {
		if err := rt.StoreArrayElement(arr, "C", i, packed[i*2:i*2+2]); err != nil {
			return Instance{}, err
		}
	}

	str, err := rt.AllocateInstance(stringClass)
	if err != nil {
		return Instance{}, err
	}
	if err := rt.PutField(str, stringValueField, stringValueDesc, arr.ptr); err != nil {
		return Instance{}, err
	}
	return str, nil
}

// ReadString reads a guest-resident java/lang/String back into a host
// string, reversing NewString.
func (rt *Runtime) ReadString(str Instance) (string, error) {
	if rt.sys == nil || rt.sys.Codec == nil {
		return "", fmt.Errorf("jvmruntime: no text codec configured")
	}

	arrPtr, err := rt.GetField(str, stringValueField, stringValueDesc)
	if err != nil {
		return "", err
	}
	arr := Instance{ptr: arrPtr, rt: rt}
	length, err := rt.ArrayLength(arr)
	if err != nil {
		return "", err
	}

	packed := make([]byte, 0, length*2)
	for i := uint32(0); i < length; i++ {
		b, err := rt.LoadArrayElement(arr, "C", i)
		if err != nil {
			return "", err
		}
		packed = append(packed, b...)
	}

	return rt.sys.Codec.Decode(packed)
}
