// Package protoscript lets a framework stub class's native method bodies
// be authored as short JavaScript snippets, interpreted by goja, instead
// of as hand-written Go closures. It generalizes
// zboralski-galago's internal/stubs self-registering-stub idiom (a
// package-level registry, populated by each stub file's init(), keyed by
// name) from Lua-backed libc shims to JS-backed WIPI framework methods:
// the same "drop a new stub file in, it registers itself" authoring
// experience, a different embedded language.
//
// Scope is deliberately narrow, matching spec's framework-class
// Non-goals: a stub's JS body only ever sees its arguments as plain
// numbers and returns a plain number (or nothing, for a void method). A
// method that needs to allocate a guest object — a String result, a
// callback into another instance — is better expressed as a Go
// nativebridge.NativeFunc registered directly; protoscript is for the
// high-volume, low-complexity property and constant lookups typical of
// a handset capability surface.
package protoscript

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"wipiemu/internal/jvmmeta"
	"wipiemu/internal/jvmruntime"
	"wipiemu/internal/nativebridge"
)

// Stub is one framework method's JS-authored native body.
type Stub struct {
	Class      string
	Method     string
	Descriptor string
	// Script is a JS statement list; the call's arguments are bound to
	// the `args` array (low word of each, as a number) and the script's
	// `return` value becomes the method's result.
	Script string
}

// Registry holds stubs grouped by declaring class name.
type Registry struct {
	mu    sync.Mutex
	stubs map[string][]Stub
}

// Default is the process-wide registry stub files register into via
// Register, mirroring stubs.DefaultRegistry.
var Default = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stubs: make(map[string][]Stub)}
}

// Register adds a stub to the default registry. Stub files call this
// from their own init(), the same way the teacher's Lua stubs call
// stubs.RegisterFunc.
func Register(class, method, descriptor, script string) {
	Default.Register(class, method, descriptor, script)
}

// Register adds a stub to r.
func (r *Registry) Register(class, method, descriptor, script string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stubs[class] = append(r.stubs[class], Stub{
		Class:      class,
		Method:     method,
		Descriptor: descriptor,
		Script:     script,
	})
}

// For returns the stubs registered for class, in registration order.
func (r *Registry) For(class string) []Stub {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stub, len(r.stubs[class]))
	copy(out, r.stubs[class])
	return out
}

// MethodProtos converts every stub registered for class into a
// jvmruntime.MethodProto ready to splice into a ClassProto.Methods list.
func (r *Registry) MethodProtos(class string) []jvmruntime.MethodProto {
	stubs := r.For(class)
	out := make([]jvmruntime.MethodProto, 0, len(stubs))
	for _, s := range stubs {
		out = append(out, jvmruntime.MethodProto{
			Name:        s.Method,
			Descriptor:  s.Descriptor,
			AccessFlags: jvmmeta.AccPublic,
			Native:      Compile(s),
		})
	}
	return out
}

// Compile turns a Stub into a NativeFunc runnable through nativebridge.
// Each call gets a fresh goja.Runtime: these stub bodies are short and
// infrequent (property lookups, lifecycle callbacks), so paying
// interpreter startup per call is simpler than the synchronization a
// shared *goja.Runtime would need across calls arriving from whatever
// goroutine is currently driving the guest core.
func Compile(s Stub) nativebridge.NativeFunc {
	return func(args []jvmmeta.Value) (jvmmeta.Value, error) {
		sig, err := jvmmeta.ParseDescriptor(s.Descriptor)
		if err != nil {
			return jvmmeta.Value{}, fmt.Errorf("protoscript: %s.%s: %w", s.Class, s.Method, err)
		}

		vm := goja.New()
		jsArgs := make([]interface{}, len(args))
		for i, a := range args {
			jsArgs[i] = int64(int32(a.Words[0]))
		}
		if err := vm.Set("args", jsArgs); err != nil {
			return jvmmeta.Value{}, fmt.Errorf("protoscript: bind args for %s.%s: %w", s.Class, s.Method, err)
		}

		v, err := vm.RunString("(function(){" + s.Script + "})()")
		if err != nil {
			return jvmmeta.Value{}, fmt.Errorf("protoscript: run %s.%s: %w", s.Class, s.Method, err)
		}

		if sig.Return == jvmmeta.KindVoid || v == nil {
			return jvmmeta.Value{Kind: sig.Return}, nil
		}
		return jvmmeta.Value{Kind: sig.Return, Words: [2]uint32{uint32(v.ToInteger()), 0}}, nil
	}
}
