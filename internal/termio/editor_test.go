package termio

import "testing"

func typeText(e *Editor, s string) {
	for _, r := range s {
		e.Handle(Event{Kind: EventChar, Char: r})
	}
}

func TestBasicInput(t *testing.T) {
	e := NewEditor()
	typeText(e, "hello")
	if e.Value() != "hello" || e.Cursor() != 5 {
		t.Fatalf("got value=%q cursor=%d", e.Value(), e.Cursor())
	}
}

func TestCursorMovement(t *testing.T) {
	e := NewEditor()
	typeText(e, "hello")
	e.Handle(Event{Kind: EventLeft})
	e.Handle(Event{Kind: EventLeft})
	if e.Cursor() != 3 {
		t.Fatalf("cursor = %d, want 3", e.Cursor())
	}
	e.Handle(Event{Kind: EventChar, Char: 'X'})
	if e.Value() != "helXlo" || e.Cursor() != 4 {
		t.Fatalf("got value=%q cursor=%d", e.Value(), e.Cursor())
	}
	e.Handle(Event{Kind: EventRight})
	if e.Cursor() != 5 {
		t.Fatalf("cursor = %d, want 5", e.Cursor())
	}
}

func TestHomeEnd(t *testing.T) {
	e := NewEditor()
	typeText(e, "hello")
	e.Handle(Event{Kind: EventHome})
	if e.Cursor() != 0 {
		t.Fatalf("cursor after Home = %d, want 0", e.Cursor())
	}
	e.Handle(Event{Kind: EventEnd})
	if e.Cursor() != 5 {
		t.Fatalf("cursor after End = %d, want 5", e.Cursor())
	}
}

func TestHistoryNavigation(t *testing.T) {
	e := NewEditor()
	typeText(e, "first")
	e.Handle(Event{Kind: EventEnter})
	typeText(e, "second")
	e.Handle(Event{Kind: EventEnter})

	e.Handle(Event{Kind: EventUp})
	if e.Value() != "second" {
		t.Fatalf("Up #1 = %q, want second", e.Value())
	}
	e.Handle(Event{Kind: EventUp})
	if e.Value() != "first" {
		t.Fatalf("Up #2 = %q, want first", e.Value())
	}
	e.Handle(Event{Kind: EventDown})
	if e.Value() != "second" {
		t.Fatalf("Down #1 = %q, want second", e.Value())
	}
	e.Handle(Event{Kind: EventDown})
	if e.Value() != "" {
		t.Fatalf("Down #2 = %q, want empty (restored draft)", e.Value())
	}
}

func TestKillWord(t *testing.T) {
	e := NewEditor()
	typeText(e, "hello world")
	e.Handle(Event{Kind: EventCtrlW})
	if e.Value() != "hello " {
		t.Fatalf("value after CtrlW = %q, want %q", e.Value(), "hello ")
	}
	if e.KillRing() != "world" {
		t.Fatalf("kill ring = %q, want world", e.KillRing())
	}
}

func TestBackspaceAtZeroIsNoop(t *testing.T) {
	e := NewEditor()
	res := e.Handle(Event{Kind: EventBackspace})
	if res.Action != ActionNone {
		t.Fatalf("Backspace at cursor 0 = %v, want ActionNone", res.Action)
	}
}

func TestCtrlDEmptyQuits(t *testing.T) {
	e := NewEditor()
	res := e.Handle(Event{Kind: EventCtrlD})
	if res.Action != ActionQuit {
		t.Fatalf("CtrlD on empty = %v, want ActionQuit", res.Action)
	}
	typeText(e, "x")
	res = e.Handle(Event{Kind: EventCtrlD})
	if res.Action != ActionNone {
		t.Fatalf("CtrlD non-empty = %v, want ActionNone", res.Action)
	}
}

func TestSubmitDedupesImmediatePreceding(t *testing.T) {
	e := NewEditor()
	typeText(e, "same")
	e.Handle(Event{Kind: EventEnter})
	typeText(e, "same")
	e.Handle(Event{Kind: EventEnter})
	if len(e.History().Entries()) != 1 {
		t.Fatalf("history = %v, want one deduped entry", e.History().Entries())
	}
}

func TestMultibyteCursorAdvancesOneCodepoint(t *testing.T) {
	e := NewEditor()
	e.Handle(Event{Kind: EventChar, Char: '日'})
	if e.Cursor() != 1 || e.Value() != "日" {
		t.Fatalf("cursor=%d value=%q, want cursor=1 value=日", e.Cursor(), e.Value())
	}
}
