package dirtytag

import (
	"sort"
	"testing"
	"time"
)

func TestMarkThenTakeDrains(t *testing.T) {
	s := New()
	s.Mark("hud")
	s.Mark("main")
	s.Mark("hud") // duplicate, should not appear twice

	got := s.Take()
	sort.Strings(got)
	want := []string{"hud", "main"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Take = %v, want %v", got, want)
	}

	if got := s.Take(); got != nil {
		t.Fatalf("second Take = %v, want nil (already drained)", got)
	}
}

func TestEmptyReflectsUndrainedState(t *testing.T) {
	s := New()
	if !s.Empty() {
		t.Fatal("new Set should be Empty")
	}
	s.Mark("x")
	if s.Empty() {
		t.Fatal("Set should not be Empty after Mark")
	}
	s.Take()
	if !s.Empty() {
		t.Fatal("Set should be Empty after Take")
	}
}

func TestWaitWakesOnMark(t *testing.T) {
	s := New()
	done := make(chan struct{})
	woke := make(chan bool, 1)
	go func() { woke <- s.Wait(done) }()

	time.Sleep(10 * time.Millisecond)
	s.Mark("hud")

	select {
	case ok := <-woke:
		if !ok {
			t.Fatal("Wait returned false, want true (woken by Mark)")
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not wake after Mark")
	}
}

func TestWaitReturnsFalseOnDone(t *testing.T) {
	s := New()
	done := make(chan struct{})
	close(done)
	if ok := s.Wait(done); ok {
		t.Fatal("Wait on closed done should return false")
	}
}
