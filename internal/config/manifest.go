// Package config describes the application manifest this emulator boots
// from: which module to load (an ARM-native shared object or a `.class`
// bytecode file), which entry point to call into, where its resource
// archive lives, and any handset property / sizing overrides for the
// session.
//
// There is no teacher analogue for an application manifest (galago
// extracts keys from a binary path given directly on the command line),
// so this package is new; it follows the teacher's general preference
// for plain structs decoded with yaml.v3 over a bespoke format, the same
// way galago's one declared (but in the teacher, unused) yaml.v3
// dependency would have been used for a config file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModuleKind selects which of the two WIPI application formats the
// manifest's Module path holds.
type ModuleKind string

const (
	// ModuleNative is an ARM-native shared module compiled for a
	// specific handset OS.
	ModuleNative ModuleKind = "native"
	// ModuleJava is WIPI Java bytecode (a `.class` file) for the mobile
	// Java profile.
	ModuleJava ModuleKind = "java"
)

// HandsetProperties holds handset property overrides. cmd/wipiemu reads
// only MSP-WIDTH and MSP-HEIGHT from it, to size the screen; the
// properties are not passed on to the running application.
type HandsetProperties map[string]string

// Manifest is the application bundle description the CLI's `run`
// subcommand loads and passes to the emulator.
type Manifest struct {
	// Name is a human-readable label for the application; the driver
	// does not read it.
	Name string `yaml:"name"`

	// Module is the path to the native module or class file to load.
	Module string `yaml:"module"`
	// Kind selects how Module is interpreted. Defaults to ModuleNative
	// if Module ends in ".so" or similar, ModuleJava if it ends in
	// ".class"; explicit values always take precedence.
	Kind ModuleKind `yaml:"kind,omitempty"`

	// EntrySymbol is the native module's entry function name (ModuleNative).
	EntrySymbol string `yaml:"entry_symbol,omitempty"`
	// EntryClass/EntryMethod/EntryDescriptor name the bytecode entry point
	// (ModuleJava) — typically a MIDlet's startApp or a KTF applet's
	// equivalent.
	EntryClass      string `yaml:"entry_class,omitempty"`
	EntryMethod     string `yaml:"entry_method,omitempty"`
	EntryDescriptor string `yaml:"entry_descriptor,omitempty"`

	// ResourceArchive is the path to the bundled resource archive (image,
	// sound, and string-table payloads the ResourceStore collaborator
	// resolves ids against). Archive extraction itself is out of core
	// scope per spec §1; this field only tells the driver where to hand
	// the archive to that external collaborator.
	ResourceArchive string `yaml:"resource_archive,omitempty"`

	// Properties overrides handset system properties.
	Properties HandsetProperties `yaml:"properties,omitempty"`

	// Sizing overrides the default guest memory layout sizes (see
	// internal/arm's {Code,Stack,Heap}Size constants). Zero fields keep
	// the built-in default. Only HeapSize is applied, to the heap the
	// `run` subcommand manages; StackSize and CodeSize are parsed but
	// not applied.
	Sizing SizingOverride `yaml:"sizing,omitempty"`
}

// SizingOverride holds non-default guest region sizes, in bytes. A zero
// value for any field means "use the built-in default".
type SizingOverride struct {
	HeapSize  uint32 `yaml:"heap_size,omitempty"`
	StackSize uint32 `yaml:"stack_size,omitempty"`
	CodeSize  uint32 `yaml:"code_size,omitempty"`
}

// Load reads and parses a manifest file at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: parse manifest %s: %w", path, err)
	}

	if err := m.normalize(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) normalize() error {
	if m.Module == "" {
		return fmt.Errorf("config: manifest has no module path")
	}

	if m.Kind == "" {
		switch ext(m.Module) {
		case ".class":
			m.Kind = ModuleJava
		default:
			m.Kind = ModuleNative
		}
	}

	switch m.Kind {
	case ModuleNative:
		if m.EntrySymbol == "" {
			return fmt.Errorf("config: native module %s needs entry_symbol", m.Module)
		}
	case ModuleJava:
		if m.EntryClass == "" || m.EntryMethod == "" {
			return fmt.Errorf("config: java module %s needs entry_class and entry_method", m.Module)
		}
		if m.EntryDescriptor == "" {
			m.EntryDescriptor = "()V"
		}
	default:
		return fmt.Errorf("config: unknown module kind %q", m.Kind)
	}

	return nil
}

func ext(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}
