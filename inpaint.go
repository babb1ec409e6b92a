package layers

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	// Generated-result payloads arrive in whatever format the external
	// service produced; register the common decoders.
	_ "image/gif"
	_ "image/jpeg"

	"github.com/gopaint/layers/internal/filter"
)

// GeneratedLayerName is the name given to layers created from a generative
// service's result payload.
const GeneratedLayerName = "Generated"

// MaskedImage is the payload handed to an external inpainting service: a
// loss-less PNG of the base snapshot, canvas-sized, straight alpha, where
// alpha 255 marks regions to preserve and lower (feathered) alpha marks
// regions to regenerate.
type MaskedImage struct {
	// PNG holds the encoded image bytes.
	PNG []byte

	// BaseCaptured reports whether the base snapshot was captured as part
	// of this call, so callers can refresh any "before" thumbnail.
	BaseCaptured bool
}

// Inpainter manages the reserved mask layer and the base snapshot used to
// prepare images for AI-driven inpainting. It shares the stack's buffer
// lock; the base snapshot's version counter is additionally readable
// without the lock for cheap staleness checks.
type Inpainter struct {
	stack       *LayerStack
	base        *Pixmap
	baseVersion atomic.Int64
}

// NewInpainter creates an inpainting subsystem bound to the given stack.
func NewInpainter(s *LayerStack) *Inpainter {
	return &Inpainter{stack: s}
}

// MaskLayer returns the stack's reserved mask layer, creating it (topmost,
// fully transparent) if absent. The active layer selection is untouched so
// drawing tools keep targeting the user's working layer.
func (p *Inpainter) MaskLayer() *Layer {
	return p.stack.ensureMask()
}

// ApplyStroke paints an opaque white stroke into the mask layer. Points are
// normalized (0-1) canvas coordinates; brushSize is relative to the canvas
// width. A single point paints a filled disc, two points a thick line, and
// more a polyline. Painted pixels mark "regenerate this area".
// Returns false when the mask layer rejects the edit or no points are given.
func (p *Inpainter) ApplyStroke(points []Point, brushSize float64) bool {
	if len(points) == 0 {
		return false
	}
	m := p.MaskLayer()
	if m == nil {
		return false
	}
	w := float64(p.stack.Width())
	h := float64(p.stack.Height())
	radius := brushSize * w / 2

	return m.Draw(func(pm *Pixmap) {
		if len(points) == 1 {
			pt := Point{X: points[0].X * w, Y: points[0].Y * h}
			paintCapsule(pm, pt, pt, radius, White)
			return
		}
		for i := 1; i < len(points); i++ {
			p0 := Point{X: points[i-1].X * w, Y: points[i-1].Y * h}
			p1 := Point{X: points[i].X * w, Y: points[i].Y * h}
			paintCapsule(pm, p0, p1, radius, White)
		}
	})
}

// ClearMask resets the mask layer to fully transparent without removing it.
// Returns false when no mask layer exists.
func (p *Inpainter) ClearMask() bool {
	m := p.stack.MaskLayer()
	if m == nil {
		return false
	}
	return m.Clear()
}

// CaptureBase snapshots the flattened canvas as the stable "before" image
// for the next inpainting handoff and bumps the version counter.
func (p *Inpainter) CaptureBase() {
	snap := Flatten(p.stack)
	p.stack.mu.Lock()
	p.base = snap
	p.stack.mu.Unlock()
	p.baseVersion.Add(1)
}

// ClearBase discards the base snapshot and bumps the version counter.
func (p *Inpainter) ClearBase() {
	p.stack.mu.Lock()
	p.base = nil
	p.stack.mu.Unlock()
	p.baseVersion.Add(1)
}

// Base returns a copy of the base snapshot, capturing one first if absent.
func (p *Inpainter) Base() *Pixmap {
	p.stack.mu.Lock()
	base := p.base
	p.stack.mu.Unlock()
	if base == nil {
		p.CaptureBase()
		p.stack.mu.Lock()
		base = p.base
		p.stack.mu.Unlock()
	}
	if base == nil {
		return nil
	}
	return base.Clone()
}

// BaseVersion returns the base snapshot's version counter. It increases
// monotonically on every capture or clear and is read atomically, so
// staleness checks never need the buffer lock.
func (p *Inpainter) BaseVersion() int64 {
	return p.baseVersion.Load()
}

// PrepareMaskedImage feathers the mask, then produces the masked-image
// payload: the base snapshot with each pixel's alpha set to
// 255 - featheredMaskAlpha, so painted regions read as transparent
// ("regenerate here") and everything else stays opaque ("keep").
//
// Fails with ErrMaskEmpty when no mask layer exists or nothing has been
// painted, and with ErrNoImage when no base snapshot can plausibly be
// produced. The result records whether the base was auto-captured during
// this call.
func (p *Inpainter) PrepareMaskedImage(featherRadius float64) (*MaskedImage, error) {
	if p.stack == nil {
		return nil, ErrNoImage
	}

	p.stack.mu.Lock()
	if p.stack.disposed {
		p.stack.mu.Unlock()
		return nil, ErrNoImage
	}
	m := p.stack.mask
	if m == nil || m.pixmap == nil || m.pixmap.IsBlank() {
		p.stack.mu.Unlock()
		return nil, ErrMaskEmpty
	}
	maskCopy := m.pixmap.Clone()

	captured := false
	if p.base == nil {
		p.base = p.stack.flattenLocked(false)
		captured = true
	}
	base := p.base
	nrgba := base.ToNRGBA()
	p.stack.mu.Unlock()

	if captured {
		p.baseVersion.Add(1)
	}

	feathered := Feather(maskCopy, featherRadius)

	Logger().Debug("prepare masked image",
		slog.Float64("feather_radius", featherRadius),
		slog.Bool("base_captured", captured))

	for i := 3; i < len(nrgba.Pix); i += 4 {
		nrgba.Pix[i] = 255 - feathered.data[i]
	}

	out, err := encodePNG(nrgba)
	if err != nil {
		return nil, err
	}
	return &MaskedImage{PNG: out, BaseCaptured: captured}, nil
}

// AcceptResult decodes a generated-image payload returned by the external
// service, resizes it to the canvas dimensions if they differ, and appends
// it as a new ordinary top layer. The mask and base are left untouched.
func (p *Inpainter) AcceptResult(data []byte) (*Layer, error) {
	pm, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	w, h := p.stack.Width(), p.stack.Height()
	if pm.width != w || pm.height != h {
		Logger().Debug("resizing generated result",
			slog.Int("from_w", pm.width), slog.Int("from_h", pm.height),
			slog.Int("to_w", w), slog.Int("to_h", h))
		pm = pm.Scaled(w, h)
	}
	l := p.stack.AddLayerFromPixmap(GeneratedLayerName, pm)
	if l == nil {
		return nil, fmt.Errorf("layers: accept result: %w", ErrNoImage)
	}
	return l, nil
}

// Feather softens a hard-edged mask: the opaque region is dilated by half
// the radius (rounded to the nearest pixel, at least 1), then blurred with
// a Gaussian of sigma radius. For radius < 0.5 the input is returned
// unchanged, same backing bytes.
func Feather(pm *Pixmap, radius float64) *Pixmap {
	if radius < 0.5 {
		return pm
	}
	out := pm.Clone()
	dilate := int(radius*0.5 + 0.5)
	if dilate < 1 {
		dilate = 1
	}
	filter.DilateRGBA(out.data, out.width, out.height, dilate)
	filter.GaussianBlurRGBA(out.data, out.width, out.height, radius)
	return out
}

// paintCapsule fills every pixel within radius r of the segment p0-p1.
// Degenerate segments (p0 == p1) paint a disc.
func paintCapsule(pm *Pixmap, p0, p1 Point, r float64, c RGBA) {
	minX := int(math.Floor(math.Min(p0.X, p1.X) - r))
	maxX := int(math.Ceil(math.Max(p0.X, p1.X) + r))
	minY := int(math.Floor(math.Min(p0.Y, p1.Y) - r))
	maxY := int(math.Ceil(math.Max(p0.Y, p1.Y) + r))

	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX >= pm.width {
		maxX = pm.width - 1
	}
	if maxY >= pm.height {
		maxY = pm.height - 1
	}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if distToSegment(Pt(float64(x), float64(y)), p0, p1) <= r {
				pm.SetPixel(x, y, c)
			}
		}
	}
}

// distToSegment returns the distance from q to the segment p0-p1.
func distToSegment(q, p0, p1 Point) float64 {
	d := p1.Sub(p0)
	lenSq := d.Dot(d)
	if lenSq == 0 {
		return q.Sub(p0).Length()
	}
	t := q.Sub(p0).Dot(d) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := Point{X: p0.X + d.X*t, Y: p0.Y + d.Y*t}
	return q.Sub(closest).Length()
}
