package render

import (
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Color is a 24-bit RGB color; nil on a Cell means "use the terminal
// default".
type Color struct {
	R, G, B uint8
}

// Cell is one terminal cell.
type Cell struct {
	Ch                               rune
	Fg, Bg                           *Color
	Bold, Dim, Italic, Underline     bool
}

// Buffer is a width x height grid of cells, row-major.
type Buffer struct {
	Width, Height int
	cells         []Cell
}

// NewBuffer allocates a buffer filled with spaces.
func NewBuffer(width, height int) *Buffer {
	b := &Buffer{Width: width, Height: height, cells: make([]Cell, width*height)}
	b.Clear()
	return b
}

func (b *Buffer) idx(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return 0, false
	}
	return y*b.Width + x, true
}

// Clear resets every cell to a blank space with no styling.
func (b *Buffer) Clear() {
	for i := range b.cells {
		b.cells[i] = Cell{Ch: ' '}
	}
}

// Get returns the cell at (x, y), or a blank cell if out of bounds.
func (b *Buffer) Get(x, y int) Cell {
	i, ok := b.idx(x, y)
	if !ok {
		return Cell{Ch: ' '}
	}
	return b.cells[i]
}

// Set writes one cell, ignoring out-of-bounds coordinates. A null
// rune is normalized to a space.
func (b *Buffer) Set(x, y int, c Cell) {
	i, ok := b.idx(x, y)
	if !ok {
		return
	}
	if c.Ch == 0 {
		c.Ch = ' '
	}
	b.cells[i] = c
}

// Fill paints the rectangle [x, x+w) x [y, y+h) with c.
func (b *Buffer) Fill(x, y, w, h int, c Cell) {
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			b.Set(col, row, c)
		}
	}
}

// Print writes s starting at (x, y) using the given style template,
// stopping at the buffer edge. It is display-width aware: it consults
// each codepoint's terminal width (0/1/2) via runewidth, steps by
// grapheme cluster via uniseg so combining marks never advance the
// cursor on their own, and stops as soon as the next glyph would cross
// the right edge.
func (b *Buffer) Print(x, y int, s string, style Cell) int {
	col := x
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		cluster := gr.Runes()
		w := runewidth.StringWidth(string(cluster))
		if w == 0 {
			// Zero-width mark with no preceding base in this buffer's
			// coordinate space; skip rather than emit a stray cell.
			continue
		}
		if col+w > b.Width {
			break
		}
		cell := style
		cell.Ch = cluster[0]
		b.Set(col, y, cell)
		for i := 1; i < w; i++ {
			b.Set(col+i, y, Cell{Ch: 0, Fg: style.Fg, Bg: style.Bg})
		}
		col += w
	}
	return col - x
}

// HLine draws a horizontal line of length w starting at (x, y).
func (b *Buffer) HLine(x, y, w int, ch rune, style Cell) {
	style.Ch = ch
	for i := 0; i < w; i++ {
		b.Set(x+i, y, style)
	}
}

// VLine draws a vertical line of length h starting at (x, y).
func (b *Buffer) VLine(x, y, h int, ch rune, style Cell) {
	style.Ch = ch
	for i := 0; i < h; i++ {
		b.Set(x, y+i, style)
	}
}

// DrawBox draws a single-line box border around the w x h rectangle at
// (x, y).
func (b *Buffer) DrawBox(x, y, w, h int, style Cell) {
	if w < 2 || h < 2 {
		return
	}
	b.HLine(x+1, y, w-2, '─', style)
	b.HLine(x+1, y+h-1, w-2, '─', style)
	b.VLine(x, y+1, h-2, '│', style)
	b.VLine(x+w-1, y+1, h-2, '│', style)
	b.Set(x, y, withCh(style, '┌'))
	b.Set(x+w-1, y, withCh(style, '┐'))
	b.Set(x, y+h-1, withCh(style, '└'))
	b.Set(x+w-1, y+h-1, withCh(style, '┘'))
}

func withCh(c Cell, ch rune) Cell { c.Ch = ch; return c }

// Gauge draws a horizontal gauge of width w at (x, y); value is
// clamped to [0, 1] and determines the filled portion, drawn '█' then
// '░'.
func (b *Buffer) Gauge(x, y, w int, value float64, style Cell) {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	filled := int(value * float64(w))
	b.HLine(x, y, filled, '█', style)
	b.HLine(x+filled, y, w-filled, '░', style)
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws len(values) columns at (x, y), normalizing values to
// the block range ▁…█. When the value range is zero, every bar renders
// the mid-block.
func (b *Buffer) Sparkline(x, y int, values []float64, style Cell) {
	if len(values) == 0 {
		return
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	rng := max - min
	for i, v := range values {
		var idx int
		if rng == 0 {
			idx = len(sparkBlocks) / 2
		} else {
			frac := (v - min) / rng
			idx = int(frac * float64(len(sparkBlocks)-1))
		}
		b.Set(x+i, y, withCh(style, sparkBlocks[idx]))
	}
}

// Meter is an alias for Gauge kept for host-function surface parity
// with scripts that name the primitive "meter".
func (b *Buffer) Meter(x, y, w int, value float64, style Cell) {
	b.Gauge(x, y, w, value, style)
}

// DrawContext is a clipped, translated view over a Buffer: local
// coordinates [0, w) x [0, h) map onto the buffer's (x, y, w, h)
// region in parent coordinates. Points outside the region are no-ops.
type DrawContext struct {
	buf          *Buffer
	x, y, w, h   int
}

// NewDrawContext returns the root context covering the whole buffer.
func NewDrawContext(b *Buffer) *DrawContext {
	return &DrawContext{buf: b, w: b.Width, h: b.Height}
}

func (c *DrawContext) translate(lx, ly int) (int, int, bool) {
	if lx < 0 || ly < 0 || lx >= c.w || ly >= c.h {
		return 0, 0, false
	}
	return c.x + lx, c.y + ly, true
}

// Sub returns a child context nested at local (x, y, w, h), with
// coordinates accumulating and size clipped to the parent.
func (c *DrawContext) Sub(x, y, w, h int) *DrawContext {
	gx, gy, ok := c.translate(x, y)
	if !ok {
		return &DrawContext{buf: c.buf}
	}
	maxW := c.w - x
	maxH := c.h - y
	return &DrawContext{buf: c.buf, x: gx, y: gy, w: min(w, maxW), h: min(h, maxH)}
}

func (c *DrawContext) Width() int  { return c.w }
func (c *DrawContext) Height() int { return c.h }

func (c *DrawContext) Set(x, y int, cell Cell) {
	gx, gy, ok := c.translate(x, y)
	if !ok {
		return
	}
	c.buf.Set(gx, gy, cell)
}

func (c *DrawContext) Fill(x, y, w, h int, cell Cell) {
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			c.Set(col, row, cell)
		}
	}
}

func (c *DrawContext) Print(x, y int, s string, style Cell) int {
	gx, gy, ok := c.translate(x, y)
	if !ok {
		return 0
	}
	avail := c.w - x
	if avail <= 0 {
		return 0
	}
	// Print into a scratch sub-buffer bound to the available width so
	// the buffer-level edge-stop logic clips at the context boundary,
	// not the underlying buffer's edge.
	tmp := &Buffer{Width: avail, Height: 1, cells: make([]Cell, avail)}
	for i := range tmp.cells {
		tmp.cells[i] = Cell{Ch: ' '}
	}
	n := tmp.Print(0, 0, s, style)
	for i := 0; i < n; i++ {
		c.buf.Set(gx+i, gy, tmp.Get(i, 0))
	}
	return n
}

func (c *DrawContext) HLine(x, y, w int, ch rune, style Cell) {
	for i := 0; i < w; i++ {
		c.Set(x+i, y, withCh(style, ch))
	}
}

func (c *DrawContext) VLine(x, y, h int, ch rune, style Cell) {
	for i := 0; i < h; i++ {
		c.Set(x, y+i, withCh(style, ch))
	}
}

func (c *DrawContext) Gauge(x, y, w int, value float64, style Cell) {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	filled := int(value * float64(w))
	c.HLine(x, y, filled, '█', style)
	c.HLine(x+filled, y, w-filled, '░', style)
}
