package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadNativeManifest(t *testing.T) {
	path := writeManifest(t, `
name: snake
module: snake.so
entry_symbol: cocos_android_app_init
properties:
  "MSP-HEIGHT": "320"
`)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Kind != ModuleNative {
		t.Errorf("Kind = %q, want %q", m.Kind, ModuleNative)
	}
	if m.EntrySymbol != "cocos_android_app_init" {
		t.Errorf("EntrySymbol = %q", m.EntrySymbol)
	}
	if m.Properties["MSP-HEIGHT"] != "320" {
		t.Errorf("Properties[MSP-HEIGHT] = %q", m.Properties["MSP-HEIGHT"])
	}
}

func TestLoadJavaManifestDefaultsKindAndDescriptor(t *testing.T) {
	path := writeManifest(t, `
name: midlet
module: Midlet.class
entry_class: com/example/Midlet
entry_method: startApp
`)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Kind != ModuleJava {
		t.Errorf("Kind = %q, want %q", m.Kind, ModuleJava)
	}
	if m.EntryDescriptor != "()V" {
		t.Errorf("EntryDescriptor = %q, want ()V", m.EntryDescriptor)
	}
}

func TestLoadMissingEntryFails(t *testing.T) {
	path := writeManifest(t, `
module: Midlet.class
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing entry_class/entry_method")
	}
}

func TestLoadNoModuleFails(t *testing.T) {
	path := writeManifest(t, `
name: empty
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing module")
	}
}
