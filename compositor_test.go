package layers

import (
	"image"
	"testing"
)

func pixelNear(t *testing.T, pm *Pixmap, x, y int, r, g, b, a uint8, tol int) {
	t.Helper()
	i := (y*pm.Width() + x) * 4
	got := pm.Data()[i : i+4]
	want := []uint8{r, g, b, a}
	for c := 0; c < 4; c++ {
		d := int(got[c]) - int(want[c])
		if d < 0 {
			d = -d
		}
		if d > tol {
			t.Errorf("Pixel (%d,%d) = %v, want %v (tolerance %d)", x, y, got, want, tol)
			return
		}
	}
}

// TestFlattenAlphaOver tests the classic half-transparent-over-opaque case:
// blue at 50% opacity over opaque red lands halfway between the two.
func TestFlattenAlphaOver(t *testing.T) {
	s := NewLayerStack(2, 2)
	s.Layer(0).Fill(Red)

	top := s.AddLayer("Top")
	top.Fill(Blue)
	top.SetOpacity(0.5)

	out := Flatten(s)
	pixelNear(t, out, 0, 0, 128, 0, 127, 255, 2)
}

// TestFlattenSkipsHidden tests that invisible layers do not contribute.
func TestFlattenSkipsHidden(t *testing.T) {
	s := NewLayerStack(2, 2)
	s.Layer(0).Fill(Red)

	top := s.AddLayer("Top")
	top.Fill(Blue)
	top.SetVisible(false)

	out := Flatten(s)
	pixelNear(t, out, 0, 0, 255, 0, 0, 255, 0)
}

// TestFlattenExcludesMask tests that the mask layer is a display aid only.
func TestFlattenExcludesMask(t *testing.T) {
	s := NewLayerStack(2, 2)
	s.Layer(0).Fill(Red)
	s.ensureMask().Fill(White)

	out := Flatten(s)
	pixelNear(t, out, 0, 0, 255, 0, 0, 255, 0)
}

// TestFlattenExcludesPreview tests that the preview overlay never reaches
// flattened output.
func TestFlattenExcludesPreview(t *testing.T) {
	s := NewLayerStack(2, 2)
	s.Layer(0).Fill(Red)

	over := NewPixmap(2, 2)
	over.Fill(Blue)
	s.SetPreview(over)

	out := Flatten(s)
	pixelNear(t, out, 0, 0, 255, 0, 0, 255, 0)
}

// TestBlendModesOnCanvas tests a few separable modes end to end through the
// stack, with mid-gray operands where the modes differ most.
func TestBlendModesOnCanvas(t *testing.T) {
	tests := []struct {
		name  string
		mode  BlendMode
		base  RGBA
		top   RGBA
		wantR uint8
	}{
		// 0.5 * 0.5 = 0.25
		{"multiply", BlendMultiply, RGBA{R: 0.5, A: 1}, RGBA{R: 0.5, A: 1}, 64},
		// 1 - (1-0.5)(1-0.5) = 0.75
		{"screen", BlendScreen, RGBA{R: 0.5, A: 1}, RGBA{R: 0.5, A: 1}, 191},
		{"darken", BlendDarken, RGBA{R: 0.8, A: 1}, RGBA{R: 0.3, A: 1}, 76},
		{"lighten", BlendLighten, RGBA{R: 0.3, A: 1}, RGBA{R: 0.8, A: 1}, 204},
		// |0.8 - 0.3| = 0.5
		{"difference", BlendDifference, RGBA{R: 0.8, A: 1}, RGBA{R: 0.3, A: 1}, 127},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewLayerStack(1, 1)
			s.Layer(0).Fill(tt.base)
			top := s.AddLayer("Top")
			top.Fill(tt.top)
			top.SetBlendMode(tt.mode)

			out := Flatten(s)
			pixelNear(t, out, 0, 0, tt.wantR, 0, 0, 255, 2)
		})
	}
}

// TestRenderPreviewSubstitution tests that display rendering swaps the
// preview overlay in for the active layer's content.
func TestRenderPreviewSubstitution(t *testing.T) {
	s := NewLayerStack(2, 2)
	s.Layer(0).Fill(Red)

	over := NewPixmap(2, 2)
	over.Fill(Blue)
	s.SetPreview(over)

	dst := NewPixmap(2, 2)
	Render(s, dst, image.Rect(0, 0, 2, 2))
	pixelNear(t, dst, 0, 0, 0, 0, 255, 255, 2)

	// The layer itself is untouched.
	if s.Layer(0).Snapshot().GetPixel(0, 0) != (RGBA{R: 1, A: 1}) {
		t.Error("Preview rendering must not mutate the layer")
	}
}

// TestRenderMaskVisualization tests that painted mask regions show the
// translucent checker overlay while unpainted regions do not.
func TestRenderMaskVisualization(t *testing.T) {
	s := NewLayerStack(16, 16)
	s.Layer(0).Fill(Red)

	mask := s.ensureMask()
	mask.Draw(func(pm *Pixmap) {
		for y := 0; y < 16; y++ {
			for x := 0; x < 8; x++ {
				pm.SetPixel(x, y, White)
			}
		}
	})

	dst := NewPixmap(16, 16)
	Render(s, dst, image.Rect(0, 0, 16, 16))

	// Unpainted half stays pure red.
	pixelNear(t, dst, 12, 8, 255, 0, 0, 255, 2)

	// Painted half mixes the checker in: green/blue rise above zero.
	i := (8*16 + 2) * 4
	if dst.Data()[i+1] == 0 && dst.Data()[i+2] == 0 {
		t.Error("Painted mask region should show the checker overlay")
	}
}

// TestRenderScales tests uniform scaling into a larger destination rect.
func TestRenderScales(t *testing.T) {
	s := NewLayerStack(2, 2)
	s.Layer(0).Fill(Green)

	dst := NewPixmap(8, 8)
	Render(s, dst, image.Rect(0, 0, 8, 8))
	pixelNear(t, dst, 4, 4, 0, 255, 0, 255, 2)
}

// TestRenderLayerBlendsAgainstDestination tests that a single-layer render
// sees the true destination pixels, so non-normal modes work.
func TestRenderLayerBlendsAgainstDestination(t *testing.T) {
	dst := NewPixmap(4, 4)
	dst.Fill(RGBA{R: 0.5, A: 1})

	l := NewLayer("L", 4, 4)
	l.Fill(RGBA{R: 0.5, A: 1})
	l.SetBlendMode(BlendMultiply)

	RenderLayer(l, dst, image.Rect(0, 0, 4, 4))
	pixelNear(t, dst, 2, 2, 64, 0, 0, 255, 2)
}

// TestRenderLayerClips tests that a destination rect hanging off the edge
// does not write out of bounds.
func TestRenderLayerClips(t *testing.T) {
	dst := NewPixmap(4, 4)

	l := NewLayer("L", 4, 4)
	l.Fill(Blue)

	RenderLayer(l, dst, image.Rect(2, 2, 6, 6))
	pixelNear(t, dst, 3, 3, 0, 0, 255, 255, 2)
	pixelNear(t, dst, 0, 0, 0, 0, 0, 0, 0)
}
