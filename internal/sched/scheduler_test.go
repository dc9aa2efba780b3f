package sched

import "testing"

func TestSpawnRunsOnNextTick(t *testing.T) {
	s := New()
	ran := false
	s.Spawn(func(task *Task) error {
		ran = true
		return nil
	})
	if ran {
		t.Fatal("task body must not run before the first Tick")
	}
	s.Tick(0)
	if !ran {
		t.Fatal("task body should have run after Tick")
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after a completed task", s.Pending())
	}
}

func TestYieldResumesOnNextTick(t *testing.T) {
	s := New()
	steps := 0
	s.Spawn(func(task *Task) error {
		steps++
		if err := task.Yield(); err != nil {
			return err
		}
		steps++
		return nil
	})

	s.Tick(0)
	if steps != 1 {
		t.Fatalf("steps = %d after first tick, want 1", steps)
	}
	if s.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1 (yielded task)", s.Pending())
	}

	s.Tick(1)
	if steps != 2 {
		t.Fatalf("steps = %d after second tick, want 2", steps)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", s.Pending())
	}
}

func TestSleepWakesAtDeadline(t *testing.T) {
	s := New()
	woke := false
	s.Spawn(func(task *Task) error {
		if err := task.Sleep(100); err != nil {
			return err
		}
		woke = true
		return nil
	})

	s.Tick(0)
	if woke {
		t.Fatal("task should still be asleep")
	}

	s.Tick(50)
	if woke {
		t.Fatal("task should not wake before its deadline")
	}

	s.Tick(100)
	if !woke {
		t.Fatal("task should wake once nowMs reaches its deadline")
	}
}

func TestShutdownUnblocksSleepingTask(t *testing.T) {
	s := New()
	done := make(chan error, 1)
	s.Spawn(func(task *Task) error {
		err := task.Sleep(1000)
		done <- err
		return err
	})
	s.Tick(0)

	s.Shutdown()

	if err := <-done; err != ErrShutdown {
		t.Errorf("expected ErrShutdown, got %v", err)
	}
}

func TestPendingCountsRunnableAndAsleep(t *testing.T) {
	s := New()
	s.Spawn(func(task *Task) error {
		return task.Sleep(500)
	})
	s.Spawn(func(task *Task) error {
		return task.Yield()
	})
	s.Tick(0)
	if got := s.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}
}
