package termio

import "testing"

func feedAll(p *EscapeParser, bs ...byte) []Event {
	var events []Event
	for _, b := range bs {
		if ev, ok := p.Feed(b); ok {
			events = append(events, ev)
		}
	}
	return events
}

func TestPrintableChars(t *testing.T) {
	p := NewEscapeParser()
	for _, b := range []byte("aZ5 ") {
		ev, ok := p.Feed(b)
		if !ok || ev.Kind != EventChar || ev.Char != rune(b) {
			t.Fatalf("Feed(%q) = %+v, %v", b, ev, ok)
		}
	}
}

func TestControlChars(t *testing.T) {
	p := NewEscapeParser()
	cases := []struct {
		b    byte
		kind EventKind
	}{
		{0x0d, EventEnter},
		{0x7f, EventBackspace},
		{0x09, EventTab},
		{0x01, EventCtrlA},
		{0x05, EventCtrlE},
	}
	for _, c := range cases {
		ev, ok := p.Feed(c.b)
		if !ok || ev.Kind != c.kind {
			t.Fatalf("Feed(%#x) = %+v, %v, want kind %v", c.b, ev, ok, c.kind)
		}
	}
}

func TestArrowKeys(t *testing.T) {
	p := NewEscapeParser()
	seqs := []struct {
		final byte
		kind  EventKind
	}{
		{'A', EventUp}, {'B', EventDown}, {'C', EventRight}, {'D', EventLeft},
	}
	for _, s := range seqs {
		events := feedAll(p, 0x1b, '[', s.final)
		if len(events) != 1 || events[0].Kind != s.kind {
			t.Fatalf("sequence ESC [ %c = %+v, want single %v", s.final, events, s.kind)
		}
	}
}

func TestDeleteTilde(t *testing.T) {
	p := NewEscapeParser()
	events := feedAll(p, 0x1b, '[', '3', '~')
	if len(events) != 1 || events[0].Kind != EventDelete {
		t.Fatalf("ESC [ 3 ~ = %+v, want single Delete", events)
	}
}

func TestBareEscapeFlush(t *testing.T) {
	p := NewEscapeParser()
	if ev, ok := p.Feed(0x1b); ok {
		t.Fatalf("Feed(ESC) should emit nothing, got %+v", ev)
	}
	ev, ok := p.Flush()
	if !ok || ev.Kind != EventEscape {
		t.Fatalf("Flush() = %+v, %v, want Escape", ev, ok)
	}
	if _, ok := p.Flush(); ok {
		t.Fatalf("second Flush() should emit nothing")
	}
}

func TestFlushAfterNonEscapeEmitsNothing(t *testing.T) {
	p := NewEscapeParser()
	p.Feed('a')
	if _, ok := p.Flush(); ok {
		t.Fatalf("Flush() after Normal state should emit nothing")
	}
}

func TestUTF8Char(t *testing.T) {
	p := NewEscapeParser()
	// U+65E5 (日) encoded as 0xE6 0x97 0xA5
	events := feedAll(p, 0xe6, 0x97, 0xa5)
	if len(events) != 1 || events[0].Kind != EventChar || events[0].Char != '日' {
		t.Fatalf("UTF-8 feed = %+v, want single Char('日')", events)
	}
}

func TestEventCountNeverExceedsByteCount(t *testing.T) {
	p := NewEscapeParser()
	input := []byte{0x1b, '[', '3', '~', 'a', 0x1b, '[', 'A', 0x01}
	events := feedAll(p, input...)
	if len(events) > len(input) {
		t.Fatalf("emitted %d events for %d bytes", len(events), len(input))
	}
}
