package termio

import "testing"

func TestDetectTriggerCommand(t *testing.T) {
	kind, start, partial := DetectTrigger("/jo", 3)
	if kind != TriggerCommand || start != 0 || partial != "jo" {
		t.Fatalf("got kind=%v start=%d partial=%q", kind, start, partial)
	}
}

func TestDetectTriggerRoomArg(t *testing.T) {
	line := "/join stu"
	kind, start, partial := DetectTrigger(line, len(line))
	if kind != TriggerRoom || partial != "stu" || start != len("/join ") {
		t.Fatalf("got kind=%v start=%d partial=%q", kind, start, partial)
	}
}

func TestDetectTriggerModelMention(t *testing.T) {
	line := "hello @gpt"
	kind, start, partial := DetectTrigger(line, len(line))
	if kind != TriggerModel || partial != "gpt" || start != len("hello @") {
		t.Fatalf("got kind=%v start=%d partial=%q", kind, start, partial)
	}
}

func TestFilterSortsByDescendingScore(t *testing.T) {
	names := []string{"studio", "study-hall", "gallery"}
	cands := Filter(names, "stu")
	if len(cands) != 2 {
		t.Fatalf("candidates = %+v, want 2 matches", cands)
	}
	for i := 1; i < len(cands); i++ {
		if cands[i-1].Score < cands[i].Score {
			t.Fatalf("candidates not sorted descending: %+v", cands)
		}
	}
}

func TestFilterEmptyPartialMatchesAll(t *testing.T) {
	names := []string{"a", "b", "c"}
	cands := Filter(names, "")
	if len(cands) != 3 {
		t.Fatalf("candidates = %+v, want all 3", cands)
	}
}

func TestFilterAccentFolding(t *testing.T) {
	names := []string{"café"}
	cands := Filter(names, "cafe")
	if len(cands) != 1 {
		t.Fatalf("expected accent-folded match, got %+v", cands)
	}
}
