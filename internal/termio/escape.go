// Package termio turns a raw SSH byte stream into terminal events and
// maintains the stateful line-editing buffer built on top of them.
package termio

// EventKind discriminates the terminal events emitted by EscapeParser.
type EventKind int

const (
	EventChar EventKind = iota
	EventEnter
	EventBackspace
	EventTab
	EventEscape
	EventUp
	EventDown
	EventLeft
	EventRight
	EventHome
	EventEnd
	EventDelete
	EventPageUp
	EventPageDown
	EventCtrlA
	EventCtrlC
	EventCtrlD
	EventCtrlE
	EventCtrlK
	EventCtrlL
	EventCtrlU
	EventCtrlW
	EventUnknown
)

// Event is one decoded terminal input event. Char carries the decoded
// rune; Unknown carries the byte that produced it.
type Event struct {
	Kind EventKind
	Char rune
	Byte byte
}

func charEvent(r rune) Event     { return Event{Kind: EventChar, Char: r} }
func unknownEvent(b byte) Event  { return Event{Kind: EventUnknown, Byte: b} }
func simpleEvent(k EventKind) Event { return Event{Kind: k} }

type parseState int

const (
	stateNormal parseState = iota
	stateEscape
	stateCSI
	stateUTF8
)

// EscapeParser is a three-state byte-wise state machine turning an SSH
// byte stream into TerminalEvents: Normal, Escape (after 0x1B), CSI
// (after '[' or 'O'). It emits at most one event per fed byte. A
// fourth internal state accumulates multi-byte UTF-8 sequences so
// non-ASCII printable characters still surface as a single Char event.
type EscapeParser struct {
	state   parseState
	params  []byte
	utf8Buf []byte
	utf8Len int
}

// NewEscapeParser returns a parser ready to consume bytes.
func NewEscapeParser() *EscapeParser {
	return &EscapeParser{}
}

func (p *EscapeParser) reset() {
	p.state = stateNormal
	p.params = p.params[:0]
}

// Feed processes one byte and returns the event it produced, if any.
func (p *EscapeParser) Feed(b byte) (Event, bool) {
	switch p.state {
	case stateNormal:
		return p.handleNormal(b)
	case stateEscape:
		return p.handleEscape(b)
	case stateCSI:
		return p.handleCSI(b)
	case stateUTF8:
		return p.handleUTF8(b)
	default:
		return Event{}, false
	}
}

// Flush clears any pending Escape state, emitting a standalone Escape
// event if one was pending. Call before processing a new data packet
// so a bare ESC press isn't swallowed waiting for a sequence that
// never arrives.
func (p *EscapeParser) Flush() (Event, bool) {
	if p.state == stateEscape {
		p.reset()
		return simpleEvent(EventEscape), true
	}
	return Event{}, false
}

func (p *EscapeParser) handleNormal(b byte) (Event, bool) {
	switch b {
	case 0x1b:
		p.state = stateEscape
		return Event{}, false
	case 0x01:
		return simpleEvent(EventCtrlA), true
	case 0x03:
		return simpleEvent(EventCtrlC), true
	case 0x04:
		return simpleEvent(EventCtrlD), true
	case 0x05:
		return simpleEvent(EventCtrlE), true
	case 0x09:
		return simpleEvent(EventTab), true
	case 0x0b:
		return simpleEvent(EventCtrlK), true
	case 0x0c:
		return simpleEvent(EventCtrlL), true
	case 0x0d, 0x0a:
		return simpleEvent(EventEnter), true
	case 0x15:
		return simpleEvent(EventCtrlU), true
	case 0x17:
		return simpleEvent(EventCtrlW), true
	case 0x7f, 0x08:
		return simpleEvent(EventBackspace), true
	}
	if b >= 0x20 && b <= 0x7e {
		return charEvent(rune(b)), true
	}
	if n := utf8SeqLen(b); n > 1 {
		p.state = stateUTF8
		p.utf8Buf = append(p.utf8Buf[:0], b)
		p.utf8Len = n
		return Event{}, false
	}
	return unknownEvent(b), true
}

// utf8SeqLen returns the total byte length of the UTF-8 sequence that
// starts with lead byte b, or 0 if b is not a valid multi-byte lead.
func utf8SeqLen(b byte) int {
	switch {
	case b&0xe0 == 0xc0:
		return 2
	case b&0xf0 == 0xe0:
		return 3
	case b&0xf8 == 0xf0:
		return 4
	default:
		return 0
	}
}

func (p *EscapeParser) handleUTF8(b byte) (Event, bool) {
	if b&0xc0 != 0x80 {
		// Desynced continuation byte; drop the partial sequence.
		p.state = stateNormal
		p.utf8Buf = p.utf8Buf[:0]
		return unknownEvent(b), true
	}
	p.utf8Buf = append(p.utf8Buf, b)
	if len(p.utf8Buf) < p.utf8Len {
		return Event{}, false
	}
	r := decodeRune(p.utf8Buf)
	p.state = stateNormal
	p.utf8Buf = p.utf8Buf[:0]
	return charEvent(r), true
}

func decodeRune(b []byte) rune {
	for _, r := range string(b) {
		return r
	}
	return 0xfffd
}

func (p *EscapeParser) handleEscape(b byte) (Event, bool) {
	switch b {
	case '[', 'O':
		p.state = stateCSI
		p.params = p.params[:0]
		return Event{}, false
	default:
		p.reset()
		return unknownEvent(b), true
	}
}

func (p *EscapeParser) handleCSI(b byte) (Event, bool) {
	switch {
	case b >= '0' && b <= '9', b == ';':
		p.params = append(p.params, b)
		return Event{}, false
	case b == 'A':
		p.reset()
		return simpleEvent(EventUp), true
	case b == 'B':
		p.reset()
		return simpleEvent(EventDown), true
	case b == 'C':
		p.reset()
		return simpleEvent(EventRight), true
	case b == 'D':
		p.reset()
		return simpleEvent(EventLeft), true
	case b == 'H':
		p.reset()
		return simpleEvent(EventHome), true
	case b == 'F':
		p.reset()
		return simpleEvent(EventEnd), true
	case b == '~':
		kind := tildeEvent(p.params)
		p.reset()
		if kind == EventUnknown {
			return unknownEvent('~'), true
		}
		return simpleEvent(kind), true
	default:
		p.reset()
		return unknownEvent(b), true
	}
}

func tildeEvent(params []byte) EventKind {
	switch string(params) {
	case "1", "7":
		return EventHome
	case "3":
		return EventDelete
	case "4", "8":
		return EventEnd
	case "5":
		return EventPageUp
	case "6":
		return EventPageDown
	default:
		return EventUnknown
	}
}
