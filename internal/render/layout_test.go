package render

import "testing"

func absPtr(n int) *Constraint { c := Absolute(n); return &c }
func pctPtr(p float64) *Constraint { c := Percent(p); return &c }

func TestScenarioS4LayoutResolution(t *testing.T) {
	defs := []*RegionDef{
		{Name: "main", Top: absPtr(0), Bottom: absPtr(-8)},
		{Name: "hud", Bottom: absPtr(0), Height: absPtr(8)},
	}
	layout := ResolveLayout(defs, Full(80, 24))

	main, ok := layout.Get("main")
	if !ok || main != (Rect{X: 0, Y: 0, Width: 80, Height: 16}) {
		t.Fatalf("main = %+v, ok=%v, want (0,0,80,16)", main, ok)
	}
	hud, ok := layout.Get("hud")
	if !ok || hud != (Rect{X: 0, Y: 16, Width: 80, Height: 8}) {
		t.Fatalf("hud = %+v, ok=%v, want (0,16,80,8)", hud, ok)
	}
}

func TestBothAnchorsIgnoreExplicitSize(t *testing.T) {
	d := &RegionDef{Top: absPtr(5), Bottom: absPtr(-5), Height: absPtr(100)}
	r := d.Resolve(Full(80, 24))
	if r.Y != 5 || r.Height != 14 {
		t.Fatalf("got %+v, want y=5 height=14", r)
	}
}

func TestLeftAnchorExtendsToRight(t *testing.T) {
	d := &RegionDef{Left: absPtr(60)}
	r := d.Resolve(Full(80, 24))
	if r.X != 60 || r.Width != 20 {
		t.Fatalf("got %+v, want x=60 width=20", r)
	}
}

func TestRightAnchorExtendsFromLeft(t *testing.T) {
	d := &RegionDef{Right: absPtr(20)}
	r := d.Resolve(Full(80, 24))
	if r.X != 0 || r.Width != 20 {
		t.Fatalf("got %+v, want x=0 width=20", r)
	}
}

func TestWidthOnlyCentersHorizontally(t *testing.T) {
	d := &RegionDef{Width: absPtr(40)}
	r := d.Resolve(Full(80, 24))
	if r.Width != 40 || r.X != 20 {
		t.Fatalf("got %+v, want width=40 x=20", r)
	}
}

func TestHeightOnlyPositionsAtTop(t *testing.T) {
	d := &RegionDef{Height: absPtr(5)}
	r := d.Resolve(Full(80, 24))
	if r.Height != 5 || r.Y != 0 {
		t.Fatalf("got %+v, want height=5 y=0", r)
	}
}

func TestNeitherFillsParent(t *testing.T) {
	d := &RegionDef{}
	r := d.Resolve(Full(80, 24))
	if r != (Rect{0, 0, 80, 24}) {
		t.Fatalf("got %+v, want full parent", r)
	}
}

func TestOversizedRequestClampsAndNeverNegative(t *testing.T) {
	d := &RegionDef{Top: absPtr(0), Height: absPtr(100)}
	r := d.Resolve(Full(80, 24))
	if r.Bottom() > 24 {
		t.Fatalf("bottom %d exceeds parent", r.Bottom())
	}
}

func TestPercentageConstraints(t *testing.T) {
	d := &RegionDef{Width: pctPtr(0.5), Height: pctPtr(0.5)}
	r := d.Resolve(Full(100, 100))
	if r.Width != 50 || r.Height != 50 || r.X != 25 {
		t.Fatalf("got %+v, want width=50 height=50 x=25", r)
	}
}

func TestResolveTwiceIsIdempotent(t *testing.T) {
	defs := []*RegionDef{
		{Name: "main", Top: absPtr(0), Bottom: absPtr(-8)},
		{Name: "hud", Bottom: absPtr(0), Height: absPtr(8)},
	}
	a := ResolveLayout(defs, Full(80, 24))
	b := ResolveLayout(defs, Full(80, 24))
	for _, name := range a.Names() {
		ra, _ := a.Get(name)
		rb, _ := b.Get(name)
		if ra != rb {
			t.Fatalf("region %q differs between resolutions: %+v vs %+v", name, ra, rb)
		}
		if ra.Right() > 80 || ra.Bottom() > 24 {
			t.Fatalf("region %q extends past parent bounds: %+v", name, ra)
		}
	}
}

func TestAreaSubAccumulatesCoordinates(t *testing.T) {
	outer := Area{Rect: Rect{X: 10, Y: 10, Width: 100, Height: 100}}
	inner := outer.Sub(5, 5, 50, 50)
	nested := inner.Sub(10, 10, 20, 20)
	if inner.X() != 15 {
		t.Fatalf("inner.X() = %d, want 15", inner.X())
	}
	if nested.X() != 25 {
		t.Fatalf("nested.X() = %d, want 25", nested.X())
	}
}

func TestAreaSplitVerticalAtZero(t *testing.T) {
	a := Area{Rect: Rect{Width: 80, Height: 24}}
	top, bottom := a.SplitVertical(0)
	if top.H() != 0 || bottom.H() != 24 || bottom.Y() != 0 {
		t.Fatalf("top=%+v bottom=%+v", top, bottom)
	}
}

func TestAreaSplitVerticalPastBounds(t *testing.T) {
	a := Area{Rect: Rect{Width: 80, Height: 24}}
	top, bottom := a.SplitVertical(100)
	if top.H() != 24 || bottom.H() != 0 {
		t.Fatalf("top=%+v bottom=%+v", top, bottom)
	}
}

func TestRectShrinkSaturatesAtZero(t *testing.T) {
	r := Rect{Width: 10, Height: 10}
	shrunk := r.Shrink(20, 20, 20, 20)
	if shrunk.Width != 0 || shrunk.Height != 0 {
		t.Fatalf("got %+v, want zeroed", shrunk)
	}
}
