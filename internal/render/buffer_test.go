package render

import "testing"

func TestPrintStopsAtRightEdge(t *testing.T) {
	b := NewBuffer(5, 1)
	n := b.Print(0, 0, "hello world", Cell{})
	if n != 5 {
		t.Fatalf("Print wrote %d cells, want 5 (clamped to width)", n)
	}
	if b.Get(4, 0).Ch != 'o' {
		t.Fatalf("last cell = %q, want 'o'", b.Get(4, 0).Ch)
	}
}

func TestPrintWideCodepointAdvancesTwoCols(t *testing.T) {
	b := NewBuffer(4, 1)
	n := b.Print(0, 0, "漢字", Cell{})
	if n != 4 {
		t.Fatalf("Print wrote %d cols, want 4 (two wide runes)", n)
	}
}

func TestSerializationIdempotentAfterClearAndReplay(t *testing.T) {
	b := NewBuffer(10, 2)
	op := func(buf *Buffer) {
		buf.Print(0, 0, "hello", Cell{Bold: true})
		buf.HLine(0, 1, 10, '-', Cell{})
	}
	op(b)
	first := SerializeANSI(b)

	b.Clear()
	op(b)
	second := SerializeANSI(b)

	if first != second {
		t.Fatalf("serialization not idempotent:\n%q\n%q", first, second)
	}
}

func TestGaugeClampsValue(t *testing.T) {
	b := NewBuffer(10, 1)
	b.Gauge(0, 0, 10, 2.0, Cell{})
	for x := 0; x < 10; x++ {
		if b.Get(x, 0).Ch != '█' {
			t.Fatalf("gauge at x=%d = %q, want full block for clamped value", x, b.Get(x, 0).Ch)
		}
	}
}

func TestSparklineZeroRangeUsesMidBlock(t *testing.T) {
	b := NewBuffer(3, 1)
	b.Sparkline(0, 0, []float64{5, 5, 5}, Cell{})
	mid := sparkBlocks[len(sparkBlocks)/2]
	for x := 0; x < 3; x++ {
		if b.Get(x, 0).Ch != mid {
			t.Fatalf("sparkline at x=%d = %q, want mid block %q", x, b.Get(x, 0).Ch, mid)
		}
	}
}

func TestDrawContextClipsToSubRegion(t *testing.T) {
	b := NewBuffer(10, 10)
	root := NewDrawContext(b)
	sub := root.Sub(2, 2, 3, 3)
	sub.Set(10, 10, Cell{Ch: 'x'}) // well outside the 3x3 sub-region
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if b.Get(x, y).Ch == 'x' {
				t.Fatalf("out-of-bounds Set leaked into buffer at (%d,%d)", x, y)
			}
		}
	}
	sub.Set(1, 1, Cell{Ch: 'y'})
	if b.Get(3, 3).Ch != 'y' {
		t.Fatalf("sub.Set(1,1) should land at buffer (3,3), got %q at that cell", b.Get(3, 3).Ch)
	}
}
