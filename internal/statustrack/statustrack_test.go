package statustrack

import (
	"testing"
	"time"
)

func TestSetThenGet(t *testing.T) {
	tr := New(time.Unix(0, 0))
	tr.Set("alice", ParticipantStatus{Kind: Thinking})
	got := tr.Get("alice")
	if got.Kind != Thinking {
		t.Fatalf("Get = %+v, want Thinking", got)
	}
}

func TestGetUnknownParticipantIsIdle(t *testing.T) {
	tr := New(time.Unix(0, 0))
	got := tr.Get("nobody")
	if got.Kind != Idle {
		t.Fatalf("Get unknown = %+v, want Idle", got)
	}
}

func TestClearRemovesEntry(t *testing.T) {
	tr := New(time.Unix(0, 0))
	tr.Set("alice", ParticipantStatus{Kind: RunningTool, ToolName: "grep"})
	tr.Clear("alice")
	if got := tr.Get("alice"); got.Kind != Idle {
		t.Fatalf("Get after Clear = %+v, want Idle", got)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	tr := New(time.Unix(0, 0))
	tr.Set("alice", ParticipantStatus{Kind: Idle})
	snap := tr.Snapshot()
	tr.Set("bob", ParticipantStatus{Kind: Errored, Message: "boom"})
	if len(snap) != 1 {
		t.Fatal("Snapshot mutated after later Set")
	}
}

func TestDurationTracksElapsedSinceStart(t *testing.T) {
	start := time.Unix(1000, 0)
	tr := New(start)
	d := tr.Duration(start.Add(5 * time.Second))
	if d != 5*time.Second {
		t.Fatalf("Duration = %v, want 5s", d)
	}
}

func TestPoisonedDegradesToEmptySnapshotNotPanic(t *testing.T) {
	tr := New(time.Unix(0, 0))
	tr.Set("alice", ParticipantStatus{Kind: Idle})
	tr.poisoned = true // simulate a recovered panic having set this

	if got := tr.Get("alice"); got.Kind != Idle {
		t.Fatalf("Get after poisoning = %+v, want zero-value Idle", got)
	}
	if snap := tr.Snapshot(); len(snap) != 0 {
		t.Fatalf("Snapshot after poisoning = %v, want empty", snap)
	}
}
