// Package render implements the terminal cell buffer, clipped draw
// contexts, the layout-constraint resolver, and the ANSI serializer
// that together form the structured renderer consumed by the script
// runtime.
package render

import (
	"log/slog"
	"strconv"
	"strings"
)

// Rect is a resolved rectangular region in absolute cell coordinates.
type Rect struct {
	X, Y, Width, Height int
}

// Full returns a Rect covering the entire cols x rows terminal.
func Full(cols, rows int) Rect {
	return Rect{Width: cols, Height: rows}
}

func (r Rect) Right() int  { return r.X + r.Width }
func (r Rect) Bottom() int { return r.Y + r.Height }

func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Sub returns a rect nested within r at relative (x, y), clipped so it
// never extends past r's bounds.
func (r Rect) Sub(x, y, w, h int) Rect {
	return Rect{
		X:      r.X + x,
		Y:      r.Y + y,
		Width:  clampNonNeg(min(w, r.Width-x)),
		Height: clampNonNeg(min(h, r.Height-y)),
	}
}

// Shrink insets r by the given margins, saturating at zero rather than
// going negative.
func (r Rect) Shrink(top, right, bottom, left int) Rect {
	return Rect{
		X:      r.X + left,
		Y:      r.Y + top,
		Width:  satSub(r.Width, left+right),
		Height: satSub(r.Height, top+bottom),
	}
}

func clampNonNeg(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func satSub(a, b int) int {
	if b >= a {
		return 0
	}
	return a - b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Constraint is either an absolute cell count (negative means "from
// the opposite edge") or a percentage of the parent dimension.
type Constraint struct {
	absolute int
	percent  float64
	isPct    bool
}

// Absolute builds an absolute-cell constraint.
func Absolute(n int) Constraint { return Constraint{absolute: n} }

// Percent builds a constraint expressed as a fraction (0.5 = 50%) of
// the parent dimension.
func Percent(p float64) Constraint { return Constraint{percent: p, isPct: true} }

// ParseConstraint accepts an int, float64, or a string like "50%" /
// "-8", mirroring the loose typing scripts pass through the host
// function boundary.
func ParseConstraint(v any) (Constraint, bool) {
	switch t := v.(type) {
	case int:
		return Absolute(t), true
	case int64:
		return Absolute(int(t)), true
	case float64:
		return Absolute(int(t)), true
	case string:
		s := strings.TrimSpace(t)
		if strings.HasSuffix(s, "%") {
			pct, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
			if err != nil {
				return Constraint{}, false
			}
			return Percent(pct / 100), true
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return Constraint{}, false
		}
		return Absolute(n), true
	default:
		return Constraint{}, false
	}
}

// resolve returns the constraint's signed pixel value against
// parentSize (negative for percent-of/absolute-from-end values).
func (c Constraint) resolve(parentSize int) int {
	if c.isPct {
		return int(float64(parentSize) * c.percent)
	}
	return c.absolute
}

// resolvePosition resolves a position constraint: negative values
// count from the far edge, clamped to >= 0.
func (c Constraint) resolvePosition(parentSize int) int {
	v := c.resolve(parentSize)
	if v < 0 {
		v = parentSize + v
		if v < 0 {
			v = 0
		}
	}
	return v
}

// RegionDef is an unresolved named region with up to six optional
// constraints per spec.md §4.4's truth table.
type RegionDef struct {
	Name                          string
	Top, Bottom, Left, Right      *Constraint
	Width, Height                 *Constraint
	Fill                          bool
}

func (d *RegionDef) clampDimension(requested, available int, axis string) int {
	if requested > available {
		slog.Debug("layout constraint clamped",
			"region", d.Name, "axis", axis, "requested", requested, "available", available)
		return available
	}
	return requested
}

// Resolve computes d's rectangle within parent, applying the full
// horizontal/vertical truth table independently per axis.
func (d *RegionDef) Resolve(parent Rect) Rect {
	x, w := d.resolveHorizontal(parent.Width)
	y, h := d.resolveVertical(parent.Height)
	return Rect{X: parent.X + x, Y: parent.Y + y, Width: w, Height: h}
}

func (d *RegionDef) resolveHorizontal(parentWidth int) (int, int) {
	switch {
	case d.Left != nil && d.Right != nil:
		left := d.Left.resolvePosition(parentWidth)
		right := d.Right.resolvePosition(parentWidth)
		return left, satSub(right, left)
	case d.Left != nil && d.Width != nil:
		left := d.Left.resolvePosition(parentWidth)
		width := clampNonNeg(d.Width.resolve(parentWidth))
		available := satSub(parentWidth, left)
		return left, d.clampDimension(width, available, "width")
	case d.Right != nil && d.Width != nil:
		right := d.Right.resolvePosition(parentWidth)
		width := clampNonNeg(d.Width.resolve(parentWidth))
		clamped := d.clampDimension(width, right, "width")
		return satSub(right, clamped), clamped
	case d.Left != nil:
		left := d.Left.resolvePosition(parentWidth)
		return left, satSub(parentWidth, left)
	case d.Right != nil:
		right := d.Right.resolvePosition(parentWidth)
		return 0, right
	case d.Width != nil:
		width := clampNonNeg(d.Width.resolve(parentWidth))
		clamped := d.clampDimension(width, parentWidth, "width")
		return satSub(parentWidth, clamped) / 2, clamped
	default:
		return 0, parentWidth
	}
}

func (d *RegionDef) resolveVertical(parentHeight int) (int, int) {
	bottomY := func(b *Constraint) int {
		v := parentHeight + b.resolve(parentHeight)
		if v < 0 {
			v = 0
		}
		return v
	}
	switch {
	case d.Top != nil && d.Bottom != nil:
		top := d.Top.resolvePosition(parentHeight)
		by := bottomY(d.Bottom)
		return top, satSub(by, top)
	case d.Top != nil && d.Height != nil:
		top := d.Top.resolvePosition(parentHeight)
		height := clampNonNeg(d.Height.resolve(parentHeight))
		available := satSub(parentHeight, top)
		return top, d.clampDimension(height, available, "height")
	case d.Bottom != nil && d.Height != nil:
		by := bottomY(d.Bottom)
		height := clampNonNeg(d.Height.resolve(parentHeight))
		clamped := d.clampDimension(height, by, "height")
		return satSub(by, clamped), clamped
	case d.Top != nil:
		top := d.Top.resolvePosition(parentHeight)
		return top, satSub(parentHeight, top)
	case d.Bottom != nil:
		return 0, bottomY(d.Bottom)
	case d.Height != nil:
		height := clampNonNeg(d.Height.resolve(parentHeight))
		return 0, d.clampDimension(height, parentHeight, "height")
	default:
		return 0, parentHeight
	}
}

// Layout is the resolved set of named regions, kept in resolution
// order (non-fill regions in definition order, then fill regions) for
// deterministic iteration.
type Layout struct {
	regions map[string]Rect
	order   []string
}

func newLayout() *Layout {
	return &Layout{regions: map[string]Rect{}}
}

func (l *Layout) add(name string, r Rect) {
	if _, ok := l.regions[name]; !ok {
		l.order = append(l.order, name)
	}
	l.regions[name] = r
}

// Get returns the named region, if resolved.
func (l *Layout) Get(name string) (Rect, bool) {
	r, ok := l.regions[name]
	return r, ok
}

// Names returns region names in resolution order.
func (l *Layout) Names() []string { return l.order }

// ResolveLayout resolves defs against bounds. Non-fill regions are
// placed first; fill regions receive whatever vertical space remains
// once top/bottom-zero-anchored regions have been placed, per
// spec.md's "fill: true" rule.
func ResolveLayout(defs []*RegionDef, bounds Rect) *Layout {
	layout := newLayout()
	remaining := bounds
	var fillDefs []*RegionDef

	for _, def := range defs {
		if def.Fill {
			fillDefs = append(fillDefs, def)
			continue
		}
		rect := def.Resolve(bounds)
		layout.add(def.Name, rect)

		if def.Top != nil && !def.Top.isPct && def.Top.absolute == 0 {
			remaining.Y = rect.Bottom()
			remaining.Height = satSub(remaining.Height, rect.Height)
		}
		if def.Bottom != nil && !def.Bottom.isPct && def.Bottom.absolute == 0 {
			remaining.Height = satSub(remaining.Height, rect.Height)
		}
	}

	for _, def := range fillDefs {
		layout.add(def.Name, remaining)
	}

	return layout
}

// Area is the script-facing handle for a resolved or derived region:
// field access plus sub/shrink/split operations that compose without
// mutating the original.
type Area struct {
	Rect Rect
	Name string
}

func (a Area) X() int      { return a.Rect.X }
func (a Area) Y() int      { return a.Rect.Y }
func (a Area) W() int      { return a.Rect.Width }
func (a Area) H() int      { return a.Rect.Height }
func (a Area) Right() int  { return a.Rect.Right() }
func (a Area) Bottom() int { return a.Rect.Bottom() }

func (a Area) Sub(x, y, w, h int) Area {
	return Area{Rect: a.Rect.Sub(x, y, w, h), Name: a.Name + ":sub"}
}

func (a Area) Shrink(top, right, bottom, left int) Area {
	return Area{Rect: a.Rect.Shrink(top, right, bottom, left), Name: a.Name + ":shrink"}
}

func (a Area) ShrinkUniform(n int) Area { return a.Shrink(n, n, n, n) }

func (a Area) Contains(x, y int) bool { return a.Rect.Contains(x, y) }

// SplitVertical divides a into (top, bottom) at row `at`, clamped to
// a's height.
func (a Area) SplitVertical(at int) (Area, Area) {
	at = clampNonNeg(min(at, a.Rect.Height))
	top := Area{Rect: Rect{X: a.Rect.X, Y: a.Rect.Y, Width: a.Rect.Width, Height: at}, Name: a.Name + ":top"}
	bottom := Area{Rect: Rect{X: a.Rect.X, Y: a.Rect.Y + at, Width: a.Rect.Width, Height: satSub(a.Rect.Height, at)}, Name: a.Name + ":bottom"}
	return top, bottom
}

// SplitHorizontal divides a into (left, right) at column `at`, clamped
// to a's width.
func (a Area) SplitHorizontal(at int) (Area, Area) {
	at = clampNonNeg(min(at, a.Rect.Width))
	left := Area{Rect: Rect{X: a.Rect.X, Y: a.Rect.Y, Width: at, Height: a.Rect.Height}, Name: a.Name + ":left"}
	right := Area{Rect: Rect{X: a.Rect.X + at, Y: a.Rect.Y, Width: satSub(a.Rect.Width, at), Height: a.Rect.Height}, Name: a.Name + ":right"}
	return left, right
}
