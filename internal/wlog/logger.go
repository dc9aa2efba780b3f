// Package wlog provides structured logging for the emulator using zap.
// Adapted from zboralski/galago's internal/log: same package-level
// Init/global-logger shape, but its stub-install/detector vocabulary is
// replaced with this domain's — class loads, method dispatch, native
// bridge marshalling, allocator events, and scheduler ticks.
package wlog

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"wipiemu/internal/trace"
)

// Logger wraps zap.Logger with emulator-specific helpers.
type Logger struct {
	*zap.Logger
	onTrace func(*trace.Event)
}

var (
	// L is the global logger instance.
	L    *Logger
	once sync.Once
)

// Init initializes the global logger. Safe to call multiple times; only
// the first call takes effect.
func Init(debug bool) {
	once.Do(func() {
		L = New(debug)
	})
}

// New creates a new Logger instance.
func New(debug bool) *Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}

	return &Logger{Logger: logger}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// SetOnTrace sets the trace callback invoked alongside every Trace call
// with the trace.Event it built, letting the CLI's trace.Session collector
// and the logger share one call site. A *trace.Session's Record method
// satisfies this signature directly.
func (l *Logger) SetOnTrace(fn func(*trace.Event)) {
	l.onTrace = fn
}

// Trace logs a domain event (a method dispatch, an allocator call, a
// scheduler transition) and, if a trace callback is set, builds a
// trace.Event (enriched via trace.DefaultEnricher) and forwards it.
func (l *Logger) Trace(pc uint32, category, name, detail string) {
	if l.onTrace != nil {
		e := trace.NewEvent(pc, trace.Tag(category), name, detail)
		trace.DefaultEnricher(e)
		l.onTrace(e)
	}

	l.Debug("trace",
		zap.String("cat", category),
		zap.String("fn", name),
		zap.String("detail", detail),
		zap.Uint32("pc", pc),
	)
}

// TraceSimple logs a domain event with no associated guest address.
func (l *Logger) TraceSimple(category, name, detail string) {
	l.Trace(0, category, name, detail)
}

// ClassLoad logs a class being resolved into the guest JVM metadata layer.
func (l *Logger) ClassLoad(name string, size uint32, vtableSlots int) {
	l.Debug("class load",
		zap.String("class", name),
		zap.Uint32("size", size),
		zap.Int("vtable_slots", vtableSlots),
	)
}

// MethodDispatch logs an invoke_virtual/invoke_static/invoke_special
// dispatch, noting whether it resolved to native or bytecode.
func (l *Logger) MethodDispatch(class, method, descriptor string, native bool) {
	l.Debug("method dispatch",
		zap.String("class", class),
		zap.String("method", method),
		zap.String("descriptor", descriptor),
		zap.Bool("native", native),
	)
}

// NativeBridgeCall logs a host native-method body being invoked with its
// marshalled argument count.
func (l *Logger) NativeBridgeCall(name string, argc int) {
	l.Debug("native bridge",
		zap.String("fn", name),
		zap.Int("argc", argc),
	)
}

// AllocEvent logs a heap allocator call.
func (l *Logger) AllocEvent(op string, addr, size uint32) {
	l.Debug("heap",
		zap.String("op", op),
		zap.String("addr", Hex(addr)),
		zap.Uint32("size", size),
	)
}

// SchedEvent logs a scheduler transition (spawn, sleep, tick).
func (l *Logger) SchedEvent(op string, taskID string, detail string) {
	l.Debug("sched",
		zap.String("op", op),
		zap.String("task", taskID),
		zap.String("detail", detail),
	)
}

// WithCategory returns a logger with the category field preset.
func (l *Logger) WithCategory(category string) *Logger {
	return &Logger{
		Logger:  l.Logger.With(zap.String("cat", category)),
		onTrace: l.onTrace,
	}
}

// Hex formats a uint32 guest address as a hex string for logging.
func Hex(addr uint32) string {
	return "0x" + hexString(uint64(addr))
}

func hexString(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	buf := make([]byte, 16)
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

// Field helpers for common patterns.

// Addr creates an address field.
func Addr(addr uint32) zap.Field {
	return zap.String("addr", Hex(addr))
}

// Size creates a size field.
func Size(size uint32) zap.Field {
	return zap.Uint32("size", size)
}

// Ptr creates a pointer field.
func Ptr(name string, ptr uint32) zap.Field {
	return zap.String(name, Hex(ptr))
}

// Fn creates a function name field.
func Fn(name string) zap.Field {
	return zap.String("fn", name)
}
