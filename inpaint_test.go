package layers

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"
)

// TestApplyStrokeDisc tests that a single normalized point paints a filled
// disc of the expected radius.
func TestApplyStrokeDisc(t *testing.T) {
	s := NewLayerStack(100, 100)
	in := NewInpainter(s)

	// brushSize 0.2 of a 100px canvas: radius 10 around (50, 50).
	if !in.ApplyStroke([]Point{Pt(0.5, 0.5)}, 0.2) {
		t.Fatal("ApplyStroke failed")
	}

	mask := s.MaskLayer().Snapshot()
	tests := []struct {
		name   string
		x, y   int
		inside bool
	}{
		{"center", 50, 50, true},
		{"inside edge", 59, 50, true},
		{"above inside", 50, 41, true},
		{"outside", 50, 38, false},
		{"far corner", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mask.AlphaAt(tt.x, tt.y)
			if tt.inside && a != 255 {
				t.Errorf("Alpha(%d,%d) = %d, want 255", tt.x, tt.y, a)
			}
			if !tt.inside && a != 0 {
				t.Errorf("Alpha(%d,%d) = %d, want 0", tt.x, tt.y, a)
			}
		})
	}
}

// TestApplyStrokeLine tests that two points paint a capsule covering the
// segment between them.
func TestApplyStrokeLine(t *testing.T) {
	s := NewLayerStack(100, 100)
	in := NewInpainter(s)

	if !in.ApplyStroke([]Point{Pt(0.2, 0.5), Pt(0.8, 0.5)}, 0.1) {
		t.Fatal("ApplyStroke failed")
	}
	mask := s.MaskLayer().Snapshot()

	// Midpoint of the segment is painted; a point off the capsule is not.
	if mask.AlphaAt(50, 50) != 255 {
		t.Error("Segment midpoint should be painted")
	}
	if mask.AlphaAt(50, 60) != 0 {
		t.Error("Point beyond the stroke radius should stay clear")
	}
}

// TestApplyStrokeKeepsActive tests that mask painting does not hijack the
// drawing target.
func TestApplyStrokeKeepsActive(t *testing.T) {
	s := NewLayerStack(50, 50)
	working := s.AddLayer("Working")
	in := NewInpainter(s)

	in.ApplyStroke([]Point{Pt(0.5, 0.5)}, 0.2)
	if s.Active() != working {
		t.Error("Stroke painting must not change the active layer")
	}
}

// TestClearMask tests resetting without removing.
func TestClearMask(t *testing.T) {
	s := NewLayerStack(50, 50)
	in := NewInpainter(s)

	if in.ClearMask() {
		t.Error("ClearMask with no mask layer should fail")
	}

	in.ApplyStroke([]Point{Pt(0.5, 0.5)}, 0.2)
	if !in.ClearMask() {
		t.Fatal("ClearMask failed")
	}
	if s.MaskLayer() == nil {
		t.Error("ClearMask should keep the mask layer in place")
	}
	if !s.MaskLayer().Snapshot().IsBlank() {
		t.Error("Mask should be blank after ClearMask")
	}
}

// TestBaseLifecycle tests capture, lazy capture, clear and the version
// counter.
func TestBaseLifecycle(t *testing.T) {
	s := NewLayerStack(10, 10)
	s.Layer(0).Fill(Red)
	in := NewInpainter(s)

	v0 := in.BaseVersion()

	// Lazy capture on first access.
	base := in.Base()
	if base == nil {
		t.Fatal("Expected a lazily captured base")
	}
	if in.BaseVersion() <= v0 {
		t.Error("Capture should bump the version")
	}
	if base.GetPixel(5, 5) != (RGBA{R: 1, A: 1}) {
		t.Error("Base should hold the flattened canvas")
	}

	// The snapshot is stable: later edits do not leak into it.
	s.Layer(0).Fill(Blue)
	if in.Base().GetPixel(5, 5) != (RGBA{R: 1, A: 1}) {
		t.Error("Base must not track later edits")
	}

	v1 := in.BaseVersion()
	in.CaptureBase()
	if in.BaseVersion() <= v1 {
		t.Error("Explicit capture should bump the version")
	}
	if in.Base().GetPixel(5, 5) != (RGBA{B: 1, A: 1}) {
		t.Error("Recapture should pick up the new canvas")
	}

	v2 := in.BaseVersion()
	in.ClearBase()
	if in.BaseVersion() <= v2 {
		t.Error("Clear should bump the version")
	}
}

// TestPrepareMaskedImage tests the payload alpha semantics: painted mask
// regions become transparent, everything else stays opaque.
func TestPrepareMaskedImage(t *testing.T) {
	s := NewLayerStack(20, 20)
	s.Layer(0).Fill(Red)
	in := NewInpainter(s)

	// Paint the left half of the mask.
	in.MaskLayer().Draw(func(pm *Pixmap) {
		for y := 0; y < 20; y++ {
			for x := 0; x < 10; x++ {
				pm.SetPixel(x, y, White)
			}
		}
	})

	masked, err := in.PrepareMaskedImage(0)
	if err != nil {
		t.Fatalf("PrepareMaskedImage: %v", err)
	}
	if !masked.BaseCaptured {
		t.Error("First prepare should auto-capture the base")
	}

	img, err := png.Decode(bytes.NewReader(masked.PNG))
	if err != nil {
		t.Fatalf("Payload is not valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 20 {
		t.Errorf("Payload bounds = %v, want 20x20", img.Bounds())
	}

	alphaAt := func(x, y int) uint32 {
		_, _, _, a := img.At(x, y).RGBA()
		return a >> 8
	}
	if a := alphaAt(3, 10); a != 0 {
		t.Errorf("Painted region alpha = %d, want 0", a)
	}
	if a := alphaAt(16, 10); a != 255 {
		t.Errorf("Untouched region alpha = %d, want 255", a)
	}

	// Untouched regions keep the base color.
	r, _, _, _ := img.At(16, 10).RGBA()
	if r>>8 != 255 {
		t.Errorf("Untouched region R = %d, want 255", r>>8)
	}

	// A second prepare reuses the captured base.
	masked2, err := in.PrepareMaskedImage(0)
	if err != nil {
		t.Fatalf("Second PrepareMaskedImage: %v", err)
	}
	if masked2.BaseCaptured {
		t.Error("Second prepare should reuse the existing base")
	}
}

// TestPrepareMaskedImageFeather tests that feathering widens the transparent
// region with a soft falloff.
func TestPrepareMaskedImageFeather(t *testing.T) {
	s := NewLayerStack(40, 40)
	s.Layer(0).Fill(Red)
	in := NewInpainter(s)
	in.ApplyStroke([]Point{Pt(0.5, 0.5)}, 0.25) // radius 5 at (20, 20)

	masked, err := in.PrepareMaskedImage(4)
	if err != nil {
		t.Fatalf("PrepareMaskedImage: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(masked.PNG))
	if err != nil {
		t.Fatalf("Payload is not valid PNG: %v", err)
	}
	alphaAt := func(x, y int) uint32 {
		_, _, _, a := img.At(x, y).RGBA()
		return a >> 8
	}
	if a := alphaAt(20, 20); a != 0 {
		t.Errorf("Stroke center alpha = %d, want 0", a)
	}
	// Just past the hard edge: feathering pulls alpha below opaque.
	if a := alphaAt(20, 28); a == 255 {
		t.Error("Feathered fringe should not be fully opaque")
	}
	// Far away stays opaque.
	if a := alphaAt(2, 2); a != 255 {
		t.Errorf("Distant region alpha = %d, want 255", a)
	}
}

// TestPrepareMaskedImageErrors tests the failure taxonomy.
func TestPrepareMaskedImageErrors(t *testing.T) {
	s := NewLayerStack(10, 10)
	in := NewInpainter(s)

	// No mask layer at all.
	if _, err := in.PrepareMaskedImage(0); !errors.Is(err, ErrMaskEmpty) {
		t.Errorf("No mask: err = %v, want ErrMaskEmpty", err)
	}

	// Mask exists but nothing painted.
	in.MaskLayer()
	if _, err := in.PrepareMaskedImage(0); !errors.Is(err, ErrMaskEmpty) {
		t.Errorf("Blank mask: err = %v, want ErrMaskEmpty", err)
	}

	// Disposed stack cannot produce a base.
	in.ApplyStroke([]Point{Pt(0.5, 0.5)}, 0.5)
	s.Dispose()
	if _, err := in.PrepareMaskedImage(0); !errors.Is(err, ErrNoImage) {
		t.Errorf("Disposed stack: err = %v, want ErrNoImage", err)
	}
}

// TestAcceptResult tests decoding, resizing and placement of a generated
// payload.
func TestAcceptResult(t *testing.T) {
	s := NewLayerStack(16, 16)
	in := NewInpainter(s)
	in.MaskLayer()

	// A generated result at double resolution.
	src := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i+1] = 255 // green
		src.Pix[i+3] = 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	l, err := in.AcceptResult(buf.Bytes())
	if err != nil {
		t.Fatalf("AcceptResult: %v", err)
	}
	if l.Name() != GeneratedLayerName {
		t.Errorf("Name = %q, want %q", l.Name(), GeneratedLayerName)
	}
	if l.Width() != 16 || l.Height() != 16 {
		t.Errorf("Result layer = %dx%d, want canvas 16x16", l.Width(), l.Height())
	}
	if got := l.Snapshot().GetPixel(8, 8); got.G < 0.95 {
		t.Errorf("Result content lost in resize: %+v", got)
	}

	// Placed as the topmost ordinary layer, below the mask.
	if s.Index(l) != s.Count()-2 {
		t.Errorf("Result at index %d, want %d (below mask)", s.Index(l), s.Count()-2)
	}
	if s.Index(s.MaskLayer()) != s.Count()-1 {
		t.Error("Mask should stay topmost")
	}

	if _, err := in.AcceptResult([]byte("not an image")); err == nil {
		t.Error("Garbage payload should fail to decode")
	}
}

// TestFeather tests the zero-radius identity and the softening behavior.
func TestFeather(t *testing.T) {
	pm := NewPixmap(20, 20)
	for y := 5; y < 15; y++ {
		for x := 5; x < 15; x++ {
			pm.SetPixel(x, y, White)
		}
	}

	// Below the threshold the very same pixmap comes back.
	if Feather(pm, 0) != pm {
		t.Error("Feather(0) should return the input unchanged")
	}
	if Feather(pm, 0.4) != pm {
		t.Error("Feather below 0.5 should return the input unchanged")
	}

	out := Feather(pm, 3)
	if out == pm {
		t.Fatal("Feather should produce a new pixmap")
	}
	// The input is untouched.
	if pm.AlphaAt(4, 10) != 0 {
		t.Error("Feather must not mutate its input")
	}
	// Dilation plus blur spreads coverage past the original edge.
	if out.AlphaAt(3, 10) == 0 {
		t.Error("Feathering should spread alpha outward")
	}
	// The interior stays strong.
	if out.AlphaAt(10, 10) < 200 {
		t.Errorf("Interior alpha = %d, want well above the fringe", out.AlphaAt(10, 10))
	}
	// The fringe decays with distance.
	if out.AlphaAt(1, 10) >= out.AlphaAt(3, 10) {
		t.Error("Alpha should decay away from the painted region")
	}
}

// TestFeatherDilationRounds tests that the dilation amount rounds to the
// nearest pixel, so radius 3 dilates by 2 pixels rather than collapsing
// to 1.
func TestFeatherDilationRounds(t *testing.T) {
	pm := NewPixmap(20, 20)
	for y := 5; y < 15; y++ {
		for x := 5; x < 15; x++ {
			pm.SetPixel(x, y, White)
		}
	}

	out := Feather(pm, 3)
	// With a 2 pixel dilation the opaque box reaches x=3, so after the
	// blur the column just outside still carries substantial coverage.
	if a := out.AlphaAt(3, 10); a < 120 {
		t.Errorf("Alpha at the dilated edge = %d, want at least 120", a)
	}
}
