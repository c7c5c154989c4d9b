package render

import (
	"fmt"
	"strings"
)

// SerializeANSI walks the buffer row by row, emitting styled runs by
// tracking the last-applied SGR attributes so it only emits escape
// codes on a change, with a full reset at each attribute loss or row
// end. Rows are joined by CRLF.
func SerializeANSI(b *Buffer) string {
	var sb strings.Builder
	for y := 0; y < b.Height; y++ {
		var last Cell
		haveStyle := false
		for x := 0; x < b.Width; x++ {
			cell := b.Get(x, y)
			if cell.Ch == 0 {
				cell.Ch = ' '
			}
			if !haveStyle || !sameStyle(cell, last) {
				if haveStyle && isPlain(cell) && !isPlain(last) {
					sb.WriteString("\x1b[0m")
				} else if styleDiffers(cell, last) || !haveStyle {
					sb.WriteString(sgr(cell))
				}
				last = cell
				haveStyle = true
			}
			sb.WriteRune(cell.Ch)
		}
		if haveStyle && !isPlain(last) {
			sb.WriteString("\x1b[0m")
		}
		if y != b.Height-1 {
			sb.WriteString("\r\n")
		}
	}
	return sb.String()
}

func isPlain(c Cell) bool {
	return c.Fg == nil && c.Bg == nil && !c.Bold && !c.Dim && !c.Italic && !c.Underline
}

func sameStyle(a, b Cell) bool {
	return colorEqual(a.Fg, b.Fg) && colorEqual(a.Bg, b.Bg) &&
		a.Bold == b.Bold && a.Dim == b.Dim && a.Italic == b.Italic && a.Underline == b.Underline
}

func styleDiffers(a, b Cell) bool { return !sameStyle(a, b) }

func colorEqual(a, b *Color) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sgr(c Cell) string {
	if isPlain(c) {
		return ""
	}
	var codes []string
	if c.Bold {
		codes = append(codes, "1")
	}
	if c.Dim {
		codes = append(codes, "2")
	}
	if c.Italic {
		codes = append(codes, "3")
	}
	if c.Underline {
		codes = append(codes, "4")
	}
	if c.Fg != nil {
		codes = append(codes, fmt.Sprintf("38;2;%d;%d;%d", c.Fg.R, c.Fg.G, c.Fg.B))
	}
	if c.Bg != nil {
		codes = append(codes, fmt.Sprintf("48;2;%d;%d;%d", c.Bg.R, c.Bg.G, c.Bg.B))
	}
	if len(codes) == 0 {
		return ""
	}
	return "\x1b[0;" + strings.Join(codes, ";") + "m"
}

// Cursor control sequences used by the session render loop around
// each frame write, per spec.md §6's PTY output protocol.
const (
	CursorSave    = "\x1b[s"
	CursorRestore = "\x1b[u"
	ClearLine     = "\x1b[K"
	ClearScreen   = "\x1b[2J\x1b[H"
)

// MoveCursor returns the CSI sequence to move the cursor to (row, col),
// both 1-indexed as the terminal expects.
func MoveCursor(row, col int) string {
	return fmt.Sprintf("\x1b[%d;%dH", row, col)
}

// ScrollRegion returns the CSI sequence constraining scrolling to rows
// [top, bottom] inclusive, 1-indexed.
func ScrollRegion(top, bottom int) string {
	return fmt.Sprintf("\x1b[%d;%dr", top, bottom)
}
