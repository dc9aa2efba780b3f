package jvmruntime

// BootstrapCoreClasses loads the handful of classes this facade's own
// operations depend on before any application code can run: the root
// java/lang/Object every class's Parent chain bottoms out at, and
// java/lang/String in the "value:[C" shape NewString/ReadString expect.
// This is distinct from the "large catalog of stub framework classes"
// spec §1 rules out of core scope — those are display/card/graphics
// stubs an application calls into; these two are load-bearing for
// Component F itself.
func (rt *Runtime) BootstrapCoreClasses() error {
	if _, ok := rt.classes["java/lang/Object"]; !ok {
		if _, err := rt.LoadClass(ClassProto{Name: "java/lang/Object"}); err != nil {
			return err
		}
	}
	if _, ok := rt.classes[stringClass]; !ok {
		if _, err := rt.LoadClass(ClassProto{
			Name:   stringClass,
			Parent: "java/lang/Object",
			Fields: []FieldProto{
				{Name: stringValueField, Descriptor: stringValueDesc},
			},
		}); err != nil {
			return err
		}
	}
	return nil
}
