package protoscript

// Stubs for org/kwis/msp/handset/HandsetProperty, grounded on
// original_source's wie_wipi_java/src/classes/org/kwis/msp/handset/handset_property.rs:
// that file's get_system_property returns a constant/empty value for
// every property key it doesn't specially recognize, which these two
// stubs mirror for the handful of numeric capability queries the
// corpus actually calls (the string-valued getSystemProperty itself
// needs a guest String allocation protoscript's narrow JS-number
// contract can't produce, and it is not stubbed here).
func init() {
	Register("org/kwis/msp/handset/HandsetProperty", "isPlatformAPISupported", "(I)I", `
		return 1;
	`)
	Register("org/kwis/msp/handset/HandsetProperty", "hasProperty", "(I)I", `
		return args[0] != 0 ? 1 : 0;
	`)
}
