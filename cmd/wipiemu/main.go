// Command wipiemu boots a WIPI application manifest against the
// emulator core, or inspects a native module/class file's metadata
// without running it. Grounded on zboralski/galago's cmd/galago: a
// cobra root command plus subcommands, RunE handlers, typed flags.
// galago's single extract-keys purpose becomes two subcommands here —
// `run` (boot an application) and `info` (show module/class metadata) —
// since this driver has an actual application lifecycle to manage
// instead of a one-shot trace.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wipiemu/internal/arm"
	"wipiemu/internal/classfile"
	"wipiemu/internal/config"
	"wipiemu/internal/heap"
	"wipiemu/internal/hostui"
	"wipiemu/internal/jvmruntime"
	"wipiemu/internal/platform"
	"wipiemu/internal/protoscript"
	"wipiemu/internal/sched"
	"wipiemu/internal/trace"
	"wipiemu/internal/ui/colorize"
	"wipiemu/internal/wlog"
)

const (
	defaultWidth     = 176
	defaultHeight    = 220
	tickInterval     = 16 * time.Millisecond // one handset frame, per spec's Display.callSerially cadence
	entryDisasmBytes = 64                    // leading instructions shown by `info` for a native module
)

var (
	debug    bool
	headless bool
)

func main() {
	root := &cobra.Command{
		Use:   "wipiemu",
		Short: "Run WIPI mobile applications against an emulated handset",
		Long: `wipiemu loads a WIPI application (an ARM-native module or a mobile Java
.class file) described by an application manifest and runs it against an
emulated handset: a guest JVM and ARM core, a cooperative task scheduler,
and a terminal-hosted screen and keypad.

Examples:
  wipiemu run snake.yaml           # boot an application manifest
  wipiemu run snake.yaml --headless
  wipiemu info libapp.so           # show native module symbols
  wipiemu info Midlet.class        # show class file structure`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose structured logging")

	runCmd := &cobra.Command{
		Use:   "run <manifest.yaml>",
		Short: "Boot an application manifest",
		Args:  cobra.ExactArgs(1),
		RunE:  runApp,
	}
	runCmd.Flags().BoolVar(&headless, "headless", false, "run without the terminal screen/keypad UI")
	root.AddCommand(runCmd)

	infoCmd := &cobra.Command{
		Use:   "info <module-or-class-file>",
		Short: "Show native module or class file metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  showInfo,
	}
	root.AddCommand(infoCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runApp(cmd *cobra.Command, args []string) error {
	wlog.Init(debug)
	log := wlog.L
	session := startTraceSession(log)

	manifest, err := config.Load(args[0])
	if err != nil {
		return err
	}

	core, err := arm.New()
	if err != nil {
		return fmt.Errorf("create core: %w", err)
	}
	defer core.Close()

	heapSize := uint32(arm.HeapSize)
	if manifest.Sizing.HeapSize != 0 {
		heapSize = manifest.Sizing.HeapSize
	}
	h := heap.New(core, arm.HeapBase, heapSize)
	if err := h.Init(); err != nil {
		return fmt.Errorf("init heap: %w", err)
	}

	resources, err := platform.NewDirResourceStore(manifest.ResourceArchive)
	if err != nil {
		return err
	}

	width, height := handsetDims(manifest)
	var window *hostui.Window
	var screen platform.Screen
	var events platform.EventSource
	if !headless {
		window = hostui.New(width, height)
		screen, events = window, window
	}

	clock := platform.NewSystemClock()
	sys := &platform.System{
		Clock:     clock,
		Screen:    screen,
		Events:    events,
		Resources: resources,
		Databases: platform.NewMemDatabaseRepository(),
		Codec:     platform.NewUTF16Codec(),
	}

	rt := jvmruntime.New(core, h, sys)
	if err := rt.BootstrapCoreClasses(); err != nil {
		return fmt.Errorf("bootstrap core classes: %w", err)
	}
	if err := loadHandsetStubs(rt); err != nil {
		return fmt.Errorf("load handset property stubs: %w", err)
	}

	scheduler := sched.New()
	done := make(chan error, 1)

	switch manifest.Kind {
	case config.ModuleNative:
		mod, err := core.LoadELF(manifest.Module)
		if err != nil {
			return fmt.Errorf("load native module: %w", err)
		}
		addr, ok := mod.Symbol(manifest.EntrySymbol)
		if !ok {
			return fmt.Errorf("entry symbol %s not found in %s", manifest.EntrySymbol, manifest.Module)
		}
		log.TraceSimple("class-load", manifest.Module, fmt.Sprintf("entry=%s", colorize.Address(addr)))
		scheduler.Spawn(func(t *sched.Task) error {
			_, err := core.RunFunction(addr, nil)
			done <- err
			return err
		})

	case config.ModuleJava:
		data, err := os.ReadFile(manifest.Module)
		if err != nil {
			return fmt.Errorf("read class file: %w", err)
		}
		if _, err := classfile.LoadFile(core, rt, data); err != nil {
			return fmt.Errorf("load class file: %w", err)
		}
		log.TraceSimple("method-invoke", manifest.EntryClass+"."+manifest.EntryMethod, manifest.EntryDescriptor)
		scheduler.Spawn(func(t *sched.Task) error {
			_, err := rt.InvokeStatic(manifest.EntryClass, manifest.EntryMethod, manifest.EntryDescriptor, nil)
			done <- err
			return err
		})
	}

	if window != nil {
		go func() {
			if err := window.Run(); err != nil {
				log.Warn("host window exited", zap.Error(err))
			}
		}()
	}

	pumpScheduler(scheduler, clock)

	if window != nil {
		window.Close()
	}

	select {
	case entryErr := <-done:
		if entryErr != nil {
			log.Error("application entry point failed", zap.Error(entryErr))
			printTraceSummary(session)
			return fmt.Errorf("run: %w", entryErr)
		}
	default:
	}

	printTraceSummary(session)
	return nil
}

// startTraceSession wires a fresh trace.Session into log's trace callback,
// so every log.Trace/TraceSimple call during this command also records a
// correlated trace.Event for printTraceSummary to report on afterward.
func startTraceSession(log *wlog.Logger) *trace.Session {
	session := trace.NewSession()
	log.SetOnTrace(session.Record)
	return session
}

// printTraceSummary reports how many trace events each tag produced during
// the command. Silent for a session with no recorded events (headless
// paths that never call log.Trace).
func printTraceSummary(session *trace.Session) {
	if len(session.Events) == 0 {
		return
	}

	counts := make(map[trace.Tag]int)
	for _, e := range session.Events {
		counts[e.Tags.Primary()]++
	}

	fmt.Printf("%s %d events (session %s)\n", colorize.Header("trace"), len(session.Events), session.ID)
	tags := make([]string, 0, len(counts))
	for t := range counts {
		tags = append(tags, string(t))
	}
	sort.Strings(tags)
	for _, t := range tags {
		fmt.Printf("  #%s  %d\n", t, counts[trace.Tag(t)])
	}
}

// pumpScheduler drives the scheduler's virtual clock forward at one
// handset frame per tick, per §5: the host event loop pumps the
// scheduler deterministically between frames. It returns once no task
// is runnable or asleep.
func pumpScheduler(scheduler *sched.Scheduler, clock *platform.SystemClock) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for range ticker.C {
		scheduler.Tick(clock.NowMs())
		if scheduler.Pending() == 0 {
			return
		}
	}
}

// loadHandsetStubs splices every registered protoscript stub into its
// declaring class. Only org/kwis/msp/handset/HandsetProperty is wired by
// default (see internal/protoscript/handset.go); an application that
// references other framework classes this core doesn't stub is expected
// to fail with jvmruntime.ClassNotFoundError, which the driver reports
// like any other fatal error rather than papering over it.
func loadHandsetStubs(rt *jvmruntime.Runtime) error {
	const handsetProperty = "org/kwis/msp/handset/HandsetProperty"
	methods := protoscript.Default.MethodProtos(handsetProperty)
	if len(methods) == 0 {
		return nil
	}
	_, err := rt.LoadClass(jvmruntime.ClassProto{
		Name:    handsetProperty,
		Parent:  "java/lang/Object",
		Methods: methods,
	})
	return err
}

// handsetDims reads MSP-WIDTH/MSP-HEIGHT overrides from the manifest's
// handset properties, falling back to a common WIPI handset resolution.
func handsetDims(m *config.Manifest) (int, int) {
	width, height := defaultWidth, defaultHeight
	if v, ok := m.Properties["MSP-WIDTH"]; ok {
		if n, err := parsePositiveInt(v); err == nil {
			width = n
		}
	}
	if v, ok := m.Properties["MSP-HEIGHT"]; ok {
		if n, err := parsePositiveInt(v); err == nil {
			height = n
		}
	}
	return width, height
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("not positive: %q", s)
	}
	return n, nil
}

func showInfo(cmd *cobra.Command, args []string) error {
	path := args[0]

	if filepath.Ext(path) == ".class" {
		return showClassInfo(path)
	}
	return showModuleInfo(path)
}

func showClassInfo(path string) error {
	wlog.Init(debug)
	log := wlog.L
	session := startTraceSession(log)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	cf, err := classfile.Parse(data)
	if err != nil {
		return fmt.Errorf("parse class file: %w", err)
	}
	log.TraceSimple("class-load", cf.ThisClass, path)

	fmt.Printf("%s %s extends %s\n", colorize.Header("class"), colorize.FuncName(cf.ThisClass), cf.SuperClass)
	fmt.Printf("  %d fields, %d methods\n", len(cf.Fields), len(cf.Methods))
	for _, f := range cf.Fields {
		fmt.Printf("  field  %s %s\n", f.Name, colorize.Detail(f.Descriptor))
	}
	for _, m := range cf.Methods {
		kind := "bytecode"
		if m.Code == nil {
			kind = "abstract/native"
		}
		fmt.Printf("  method %s%s %s\n", m.Name, colorize.Detail(m.Descriptor), colorize.Comment("("+kind+")"))
	}
	printTraceSummary(session)
	return nil
}

func showModuleInfo(path string) error {
	wlog.Init(debug)
	log := wlog.L
	session := startTraceSession(log)

	core, err := arm.New()
	if err != nil {
		return fmt.Errorf("create core: %w", err)
	}
	defer core.Close()

	mod, err := core.LoadELF(path)
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}
	log.TraceSimple("class-load", path, fmt.Sprintf("entry=%s", colorize.Address(mod.Entry)))

	fmt.Printf("%s %s\n", colorize.Header("module"), path)
	fmt.Printf("  entry  %s\n", colorize.Address(mod.Entry))
	fmt.Printf("  base   %s\n", colorize.Address(mod.Base))
	fmt.Printf("  end    %s\n", colorize.Address(mod.End))
	fmt.Printf("  %d symbols\n", len(mod.Symbols))

	if code, err := core.ReadBytes(mod.Entry, entryDisasmBytes); err == nil {
		fmt.Printf("  %s\n", colorize.Comment("entry point disassembly:"))
		addr := mod.Entry
		for len(code) >= 4 {
			text, n := arm.Disassemble(code)
			fmt.Printf("    %s  %s\n", colorize.Address(addr), colorize.Instruction(text))
			code = code[n:]
			addr += uint32(n)
		}
	}

	names := make([]string, 0, len(mod.Symbols))
	for name := range mod.Symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("    %s  %s\n", colorize.Address(mod.Symbols[name]), name)
	}
	printTraceSummary(session)
	return nil
}
