package hostui

import (
	"testing"

	"wipiemu/internal/platform"
)

func TestPresentQueuesRedrawAndStoresFrame(t *testing.T) {
	w := New(8, 8)
	if w.Width() != 8 || w.Height() != 8 {
		t.Fatalf("dims = %dx%d", w.Width(), w.Height())
	}

	frame := make([]byte, 8*8*3)
	for i := range frame {
		frame[i] = 0xAA
	}
	if err := w.Present(frame); err != nil {
		t.Fatalf("Present: %v", err)
	}

	ev, ok := w.Poll()
	if !ok {
		t.Fatal("expected a queued Redraw event")
	}
	if _, ok := ev.(platform.Redraw); !ok {
		t.Fatalf("unexpected event type %T, want platform.Redraw", ev)
	}

	if w.frame[0] != 0xAA {
		t.Errorf("frame not stored: got %#x", w.frame[0])
	}
}

func TestPresentRejectsWrongSize(t *testing.T) {
	w := New(4, 4)
	if err := w.Present(make([]byte, 3)); err == nil {
		t.Fatal("expected error for mismatched frame size")
	}
}

func TestPollEmptyReturnsFalse(t *testing.T) {
	w := New(4, 4)
	if _, ok := w.Poll(); ok {
		t.Fatal("expected no pending event on a fresh Window")
	}
}

func TestSampleBlockAverages(t *testing.T) {
	w := New(2, 2)
	w.frame = []byte{
		0, 0, 0, 255, 255, 255,
		255, 255, 255, 0, 0, 0,
	}
	r, g, b := w.sampleBlock(0, 0, 2, 2)
	if r != 127 || g != 127 || b != 127 {
		t.Errorf("sampleBlock average = (%d,%d,%d), want ~(127,127,127)", r, g, b)
	}
}
