// Package platform declares the collaborator interfaces the core
// consumes and exposes (spec §6): the handset clock, the screen and
// event source a host window implements, the resource/database stores a
// loaded application reads, and the text codec bridging guest UTF-16
// strings to host strings. internal/hostui implements Screen and
// EventSource; this package also ships default implementations
// (SystemClock, UTF16Codec, DirResourceStore, MemDatabaseRepository), so
// internal/jvmruntime can depend on the contracts without depending on
// any particular host toolkit.
package platform

import "time"

// Clock supplies the handset's monotonically non-decreasing wall clock,
// in milliseconds, that the scheduler's timer heap is keyed against.
type Clock interface {
	NowMs() uint64
}

// SystemClock is the real-time Clock implementation used outside tests.
type SystemClock struct{ start time.Time }

// NewSystemClock returns a Clock anchored to the current instant.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// NowMs returns milliseconds elapsed since the clock was created.
func (c *SystemClock) NowMs() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

// Screen is the pixel surface a running application draws into.
type Screen interface {
	Width() int
	Height() int
	// Present replaces the screen's contents with an RGB8 buffer, one
	// row of Width()*3 bytes at a time, Height() rows total.
	Present(rgb []byte) error
}

// KeyEvent is one key transition delivered by an EventSource.
type KeyEvent struct {
	Scancode int
	Down     bool
}

// EventSource delivers host input and lifecycle events to the scheduler
// loop. Update fires once per host tick; Redraw requests a Screen.Present
// before the next Update.
type EventSource interface {
	// Poll returns the next pending event, or ok=false if none is queued.
	Poll() (event any, ok bool)
}

// Redraw and Update are the two non-key event values Poll can return
// alongside KeyEvent.
type (
	Redraw struct{}
	Update struct{}
)

// ResourceStore resolves named application resources (images, archives,
// string tables bundled with the application) to opaque byte payloads.
type ResourceStore interface {
	ID(name string) (id int, ok bool)
	Data(id int) ([]byte, error)
}

// Database is one opened persistent record store, keyed by small integer
// record IDs the way WIPI's RMS-alike persistence model works.
type Database interface {
	Get(id int) ([]byte, error)
	Add(data []byte) (id int, err error)
	RecordIDs() []int
}

// DatabaseRepository opens (creating if absent) named Databases scoped to
// the running application.
type DatabaseRepository interface {
	Open(name string) (Database, error)
}

// TextCodec converts between the handset's native text encoding and Go
// strings. Guest-resident java/lang/String objects store UTF-16 code
// units; TextCodec is the boundary a framework class implementation
// calls through when it needs to hand a string to, or accept one from,
// a host collaborator (resource names, a title bar, typed input).
type TextCodec interface {
	Encode(s string) ([]byte, error)
	Decode(b []byte) (string, error)
}

// System bundles the collaborators a running application's framework
// class implementations are given access to, mirroring the "system
// handle" referenced by §4.F/§6.
type System struct {
	Clock     Clock
	Screen    Screen
	Events    EventSource
	Resources ResourceStore
	Databases DatabaseRepository
	Codec     TextCodec
}
