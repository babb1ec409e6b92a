package layers

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/gopaint/layers/internal/blend"
)

// Mask visualization: painted regions reveal an 8x8 two-tone checkerboard
// at maskOverlayAlpha translucency, further scaled by the mask layer's own
// opacity.
const maskOverlayAlpha = 0.6

var maskCheckerboard = NewCheckerPattern(RGB(0.85, 0.85, 0.85), RGB(0.35, 0.35, 0.35), checkerSize)

// compositeOver blends src onto dst in place. Both pixmaps must share
// dimensions. The layer opacity is applied as a constant multiply on every
// premultiplied channel before the blend function runs.
func compositeOver(dst, src *Pixmap, opacity float64, mode BlendMode) {
	if opacity <= 0 {
		return
	}
	fn := mode.fn()
	opByte := uint8(clamp255(opacity * 255))

	d := dst.data
	s := src.data
	n := len(d)
	if len(s) < n {
		n = len(s)
	}
	for i := 0; i+3 < n; i += 4 {
		sr := s[i+0]
		sg := s[i+1]
		sb := s[i+2]
		sa := s[i+3]
		if opByte != 255 {
			sr = blend.MulDiv255(sr, opByte)
			sg = blend.MulDiv255(sg, opByte)
			sb = blend.MulDiv255(sb, opByte)
			sa = blend.MulDiv255(sa, opByte)
		}
		if sa == 0 && sr == 0 && sg == 0 && sb == 0 {
			continue
		}
		d[i+0], d[i+1], d[i+2], d[i+3] = fn(sr, sg, sb, sa, d[i+0], d[i+1], d[i+2], d[i+3])
	}
}

// stencil keeps dst only where src has alpha: destination-in compositing.
func stencil(dst, src *Pixmap) {
	d := dst.data
	s := src.data
	n := len(d)
	if len(s) < n {
		n = len(s)
	}
	for i := 0; i+3 < n; i += 4 {
		d[i+0], d[i+1], d[i+2], d[i+3] = blend.DestinationIn(
			s[i+0], s[i+1], s[i+2], s[i+3],
			d[i+0], d[i+1], d[i+2], d[i+3])
	}
}

// Flatten composites every visible non-mask layer bottom-to-top into a new
// canvas-sized pixmap. The mask layer and the transient preview overlay are
// display aids and never contribute to flattened output.
func Flatten(s *LayerStack) *Pixmap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flattenLocked(false)
}

// flattenLocked renders ordinary visible layers. When forDisplay is set,
// the preview overlay substitutes for the active layer's content.
func (s *LayerStack) flattenLocked(forDisplay bool) *Pixmap {
	out := NewPixmap(s.width, s.height)
	for _, l := range s.ordinary {
		if !l.visible || l.pixmap == nil {
			continue
		}
		src := l.pixmap
		if forDisplay && s.preview != nil && l == s.active {
			src = s.preview
		}
		compositeOver(out, src, l.opacity, l.mode)
	}
	return out
}

// maskOverlayLocked renders the painted-mask visualization: a checkerboard
// stenciled through the mask's alpha, drawn into an intermediate buffer and
// composited at the combined overlay alpha.
func (s *LayerStack) maskOverlayLocked(canvas *Pixmap) {
	m := s.mask
	if m == nil || !m.visible || m.pixmap == nil || m.opacity <= 0 {
		return
	}
	inter := NewPixmap(s.width, s.height)
	fillPattern(inter, maskCheckerboard)
	stencil(inter, m.pixmap)
	compositeOver(canvas, inter, maskOverlayAlpha*m.opacity, BlendNormal)
}

// Render composites the stack for display and draws the result into
// dstRect of dst, scaling uniformly from canvas space. Display rendering
// includes the preview overlay substitution and the mask visualization.
func Render(s *LayerStack, dst *Pixmap, dstRect image.Rectangle) {
	s.mu.Lock()
	composed := s.flattenLocked(true)
	s.maskOverlayLocked(composed)

	src := composed.asImage()
	target := dst.asImage()
	xdraw.ApproxBiLinear.Scale(target, dstRect, src, src.Bounds(), xdraw.Over, nil)
	s.mu.Unlock()
}

// RenderLayer draws a single layer's content into dstRect of dst, applying
// the layer's opacity and blend mode against whatever dst already holds.
// The reserved mask layer renders as its checkerboard visualization.
func RenderLayer(l *Layer, dst *Pixmap, dstRect image.Rectangle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pixmap == nil {
		return
	}

	src := l.pixmap
	opacity := l.opacity
	mode := l.mode
	if l.mask {
		viz := NewPixmap(src.width, src.height)
		fillPattern(viz, maskCheckerboard)
		stencil(viz, src)
		src = viz
		opacity = maskOverlayAlpha * l.opacity
		mode = BlendNormal
	}

	// Resample to the destination size first, then blend the scaled copy so
	// the blend function sees the true destination pixels.
	scaled := NewPixmap(dstRect.Dx(), dstRect.Dy())
	xdraw.ApproxBiLinear.Scale(scaled.asImage(), scaled.Bounds(), src.asImage(), src.Bounds(), xdraw.Src, nil)
	compositeOverAt(dst, scaled, dstRect.Min.X, dstRect.Min.Y, opacity, mode)
}

// compositeOverAt blends src onto dst with its top-left corner at (dx, dy),
// clipping to dst's bounds.
func compositeOverAt(dst, src *Pixmap, dx, dy int, opacity float64, mode BlendMode) {
	if opacity <= 0 {
		return
	}
	fn := mode.fn()
	opByte := uint8(clamp255(opacity * 255))

	for sy := 0; sy < src.height; sy++ {
		ty := sy + dy
		if ty < 0 || ty >= dst.height {
			continue
		}
		for sx := 0; sx < src.width; sx++ {
			tx := sx + dx
			if tx < 0 || tx >= dst.width {
				continue
			}
			si := (sy*src.width + sx) * 4
			di := (ty*dst.width + tx) * 4
			sr := src.data[si+0]
			sg := src.data[si+1]
			sb := src.data[si+2]
			sa := src.data[si+3]
			if opByte != 255 {
				sr = blend.MulDiv255(sr, opByte)
				sg = blend.MulDiv255(sg, opByte)
				sb = blend.MulDiv255(sb, opByte)
				sa = blend.MulDiv255(sa, opByte)
			}
			dst.data[di+0], dst.data[di+1], dst.data[di+2], dst.data[di+3] = fn(
				sr, sg, sb, sa,
				dst.data[di+0], dst.data[di+1], dst.data[di+2], dst.data[di+3])
		}
	}
}

// asImage wraps the pixmap's backing bytes in an image.RGBA header without
// copying, so x/image/draw scalers can write straight into it.
func (p *Pixmap) asImage() *image.RGBA {
	return &image.RGBA{
		Pix:    p.data,
		Stride: p.width * 4,
		Rect:   image.Rect(0, 0, p.width, p.height),
	}
}
