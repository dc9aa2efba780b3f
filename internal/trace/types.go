// Package trace provides the event types the CLI's trace/info output and
// internal/wlog's structured logs both build on. Adapted from
// zboralski/galago's internal/trace package: same Tag/Tags/Annotations
// shape, a domain vocabulary of class loading, method dispatch, the
// native bridge, the allocator, and the scheduler instead of JNI/libc/Lua
// stub categories, and uuid-stamped events so a session's trace can be
// correlated across the CLI and any host collaborator logging
// independently.
package trace

import (
	"time"

	"github.com/google/uuid"
)

// Tag represents a trace event category. Tags are stored without a '#'
// prefix; callers add it on render.
type Tag string

// Standard tags for trace events.
const (
	ClassLoad    Tag = "class-load"
	MethodInvoke Tag = "method-invoke"
	FieldAccess  Tag = "field-access"
	NativeBridge Tag = "native-bridge"
	VtableBuild  Tag = "vtable-build"
	Alloc        Tag = "alloc"
	Free         Tag = "free"
	SchedSpawn   Tag = "sched-spawn"
	SchedSleep   Tag = "sched-sleep"
	SchedTick    Tag = "sched-tick"
	StringConv   Tag = "string"
	ArrayOp      Tag = "array"
	KeyEvent     Tag = "key-event"
	Redraw       Tag = "redraw"
	DbAccess     Tag = "db-access"
	Fallback     Tag = "fallback"
)

// Tags is a collection of tags with helper methods.
type Tags []Tag

// Has returns true if the tag collection contains the given tag.
func (t Tags) Has(tag Tag) bool {
	for _, x := range t {
		if x == tag {
			return true
		}
	}
	return false
}

// Add adds a tag if not already present.
func (t *Tags) Add(tag Tag) {
	if !t.Has(tag) {
		*t = append(*t, tag)
	}
}

// Strings returns tags as strings with a '#' prefix for display.
func (t Tags) Strings() []string {
	out := make([]string, len(t))
	for i, tag := range t {
		out[i] = "#" + string(tag)
	}
	return out
}

// Raw returns tags as strings without the '#' prefix.
func (t Tags) Raw() []string {
	out := make([]string, len(t))
	for i, tag := range t {
		out[i] = string(tag)
	}
	return out
}

// Primary returns the first tag, or "" if none.
func (t Tags) Primary() Tag {
	if len(t) > 0 {
		return t[0]
	}
	return ""
}

// Annotations holds key-value metadata for a trace event.
type Annotations map[string]string

// Set adds or updates an annotation.
func (a Annotations) Set(k, v string) { a[k] = v }

// Get retrieves an annotation value.
func (a Annotations) Get(k string) string { return a[k] }

// Has returns true if the annotation exists.
func (a Annotations) Has(k string) bool {
	_, ok := a[k]
	return ok
}

// Event represents a single trace event, e.g. one method dispatch or one
// allocator call.
type Event struct {
	ID          uuid.UUID
	PC          uint32 // guest address the event originated at, 0 if not CPU-driven
	Tags        Tags
	Name        string // e.g. "invokevirtual", "MIDlet.startApp"
	Detail      string // e.g. "class=org/kwis/msp/lcdui/Display"
	Annotations Annotations
	Timestamp   time.Time
}

// NewEvent creates a new trace event stamped with a fresh ID and the
// current wall-clock time.
func NewEvent(pc uint32, category Tag, name, detail string) *Event {
	return &Event{
		ID:          uuid.New(),
		PC:          pc,
		Tags:        Tags{category},
		Name:        name,
		Detail:      detail,
		Annotations: make(Annotations),
		Timestamp:   time.Now(),
	}
}

// AddTag adds a tag to the event.
func (e *Event) AddTag(tag Tag) { e.Tags.Add(tag) }

// Annotate sets an annotation on the event.
func (e *Event) Annotate(k, v string) {
	if e.Annotations == nil {
		e.Annotations = make(Annotations)
	}
	e.Annotations.Set(k, v)
}

// PrimaryTag returns the primary (first) tag with a '#' prefix.
func (e *Event) PrimaryTag() string {
	if len(e.Tags) > 0 {
		return "#" + string(e.Tags[0])
	}
	return ""
}

// Session groups every event produced by one emulator run under a single
// correlation ID, so a CLI trace and any external collaborator log can be
// lined back up after the fact.
type Session struct {
	ID     uuid.UUID
	Events []*Event
}

// NewSession starts a fresh, empty trace session.
func NewSession() *Session {
	return &Session{ID: uuid.New()}
}

// Record appends an event to the session.
func (s *Session) Record(e *Event) {
	s.Events = append(s.Events, e)
}

// Enricher enriches trace events based on category and name.
type Enricher func(e *Event)

// DefaultEnricher adds secondary tags based on an event's primary
// category and name, mirroring the teacher's category-to-detail-tag
// expansion.
func DefaultEnricher(e *Event) {
	if len(e.Tags) == 0 {
		return
	}

	switch e.Tags[0] {
	case MethodInvoke:
		if e.Name == "<init>" {
			e.Annotate("kind", "constructor")
		}
	case NativeBridge:
		e.AddTag(MethodInvoke)
	case Alloc, Free:
		e.Annotate("region", "heap")
	}
}
