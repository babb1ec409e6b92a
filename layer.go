package layers

import (
	"image"
	"sync"

	"github.com/google/uuid"
)

// Thumbnail geometry: previews fit in a square of thumbMaxEdge pixels and
// are rendered over an 8x8 checkerboard so transparency reads at a glance.
const (
	thumbMaxEdge = 96
	checkerSize  = 8
)

var thumbBackdrop = NewCheckerPattern(RGB(0.78, 0.78, 0.78), RGB(0.55, 0.55, 0.55), checkerSize)

// Layer is one editable raster surface with its own visibility, opacity and
// blend mode. A layer is either detached (self-contained) or owned by a
// LayerStack; ownership shares the stack's buffer mutex so a render pass
// never observes a half-written buffer.
type Layer struct {
	id     uuid.UUID
	name   string
	pixmap *Pixmap
	thumb  *Pixmap

	visible  bool
	opacity  float64
	mode     BlendMode
	locked   bool
	mask     bool
	disposed bool

	// mu points at the owning stack's mutex while attached, otherwise at a
	// private one. onChange is installed by the owning stack.
	mu       *sync.Mutex
	onChange func(*Layer)
}

// NewLayer creates a detached, fully transparent layer of the given size.
func NewLayer(name string, width, height int) *Layer {
	return newLayer(name, NewPixmap(width, height))
}

// NewLayerFromPixmap creates a detached layer whose buffer is a deep copy
// of src.
func NewLayerFromPixmap(name string, src *Pixmap) *Layer {
	return newLayer(name, src.Clone())
}

func newLayer(name string, pm *Pixmap) *Layer {
	l := &Layer{
		id:      uuid.New(),
		name:    name,
		pixmap:  pm,
		visible: true,
		opacity: 1.0,
		mode:    BlendNormal,
		mu:      &sync.Mutex{},
	}
	l.refreshThumb()
	return l
}

// newMaskLayer creates the reserved inpaint-mask layer. Only a LayerStack
// constructs one, which is how "two masks in one stack" stays impossible.
func newMaskLayer(width, height int) *Layer {
	l := NewLayer("Inpaint Mask", width, height)
	l.mask = true
	return l
}

// adopt shares the stack lock and change sink with the layer.
// Called with the stack lock held.
func (l *Layer) adopt(mu *sync.Mutex, onChange func(*Layer)) {
	l.mu = mu
	l.onChange = onChange
}

// release detaches the layer from its stack. Called with the stack lock held.
func (l *Layer) release() {
	l.mu = &sync.Mutex{}
	l.onChange = nil
}

// ID returns the layer's stable identity. Clones get a new identity.
func (l *Layer) ID() uuid.UUID { return l.id }

// Name returns the display name. Names are not unique.
func (l *Layer) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// SetName sets the display name. The name does not affect rendered output,
// so no content notification fires.
func (l *Layer) SetName(name string) {
	l.mu.Lock()
	l.name = name
	l.mu.Unlock()
}

// IsVisible reports whether the layer participates in compositing.
func (l *Layer) IsVisible() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visible
}

// SetVisible toggles the layer's participation in compositing.
func (l *Layer) SetVisible(v bool) {
	l.mu.Lock()
	changed := l.visible != v
	l.visible = v
	l.mu.Unlock()
	if changed {
		l.notify()
	}
}

// Opacity returns the layer opacity in [0, 1].
func (l *Layer) Opacity() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opacity
}

// SetOpacity sets the layer opacity, clamped to [0, 1].
func (l *Layer) SetOpacity(o float64) {
	o = clamp01(o)
	l.mu.Lock()
	changed := l.opacity != o
	l.opacity = o
	l.mu.Unlock()
	if changed {
		l.notify()
	}
}

// BlendMode returns the layer's blend mode.
func (l *Layer) BlendMode() BlendMode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

// SetBlendMode sets the function used to composite this layer onto the
// layers beneath it.
func (l *Layer) SetBlendMode(m BlendMode) {
	l.mu.Lock()
	changed := l.mode != m
	l.mode = m
	l.mu.Unlock()
	if changed {
		l.notify()
	}
}

// IsLocked reports whether edit operations are suppressed.
func (l *Layer) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

// SetLocked suppresses or re-enables edit operations. Locking does not
// change rendered output, so no content notification fires.
func (l *Layer) SetLocked(locked bool) {
	l.mu.Lock()
	l.locked = locked
	l.mu.Unlock()
}

// IsInpaintMask reports whether this is the reserved inpaint-mask layer.
func (l *Layer) IsInpaintMask() bool { return l.mask }

// IsDisposed reports whether the layer's buffer has been released.
func (l *Layer) IsDisposed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disposed
}

// Width returns the buffer width, 0 when disposed.
func (l *Layer) Width() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pixmap == nil {
		return 0
	}
	return l.pixmap.width
}

// Height returns the buffer height, 0 when disposed.
func (l *Layer) Height() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pixmap == nil {
		return 0
	}
	return l.pixmap.height
}

// editable reports whether pixel edits may proceed. Caller holds the lock.
func (l *Layer) editable() bool {
	return !l.locked && !l.disposed && l.pixmap != nil
}

// notify delivers a content-changed notification outside the lock.
func (l *Layer) notify() {
	if fn := l.onChange; fn != nil {
		fn(l)
	}
}

// refreshThumb regenerates the cached preview. Caller holds the lock.
func (l *Layer) refreshThumb() {
	if l.pixmap == nil {
		l.thumb = nil
		return
	}
	tw, th := thumbSize(l.pixmap.width, l.pixmap.height)
	thumb := NewPixmap(tw, th)
	fillPattern(thumb, thumbBackdrop)
	compositeOver(thumb, l.pixmap.Scaled(tw, th), 1.0, BlendNormal)
	l.thumb = thumb
}

// thumbSize fits (w, h) inside the thumbnail square, preserving aspect.
func thumbSize(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	if w >= h {
		th := h * thumbMaxEdge / w
		if th < 1 {
			th = 1
		}
		return thumbMaxEdge, th
	}
	tw := w * thumbMaxEdge / h
	if tw < 1 {
		tw = 1
	}
	return tw, thumbMaxEdge
}

// Thumbnail returns the cached preview rendered over a checkerboard
// backdrop. The returned pixmap is owned by the layer; treat it as
// read-only.
func (l *Layer) Thumbnail() *Pixmap {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.thumb
}

// Snapshot returns a deep copy of the layer's buffer, or nil when disposed.
func (l *Layer) Snapshot() *Pixmap {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pixmap == nil {
		return nil
	}
	return l.pixmap.Clone()
}

// Clear resets the buffer to fully transparent.
// Returns false when the layer is locked or disposed.
func (l *Layer) Clear() bool {
	l.mu.Lock()
	if !l.editable() {
		l.mu.Unlock()
		return false
	}
	l.pixmap.Clear()
	l.refreshThumb()
	l.mu.Unlock()
	l.notify()
	return true
}

// Fill floods the buffer with a solid color.
// Returns false when the layer is locked or disposed.
func (l *Layer) Fill(c RGBA) bool {
	l.mu.Lock()
	if !l.editable() {
		l.mu.Unlock()
		return false
	}
	l.pixmap.Fill(c)
	l.refreshThumb()
	l.mu.Unlock()
	l.notify()
	return true
}

// Draw runs fn against the layer's buffer under the buffer lock, then
// refreshes the thumbnail and fires the content notification. This is the
// entry point pointer-tool collaborators use to submit pixel edits.
// Returns false when the layer is locked or disposed; fn is not called.
func (l *Layer) Draw(fn func(*Pixmap)) bool {
	l.mu.Lock()
	if !l.editable() {
		l.mu.Unlock()
		return false
	}
	fn(l.pixmap)
	l.refreshThumb()
	l.mu.Unlock()
	l.notify()
	return true
}

// ReplaceBuffer atomically swaps in a deep copy of pm. The replacement must
// match the current buffer's dimensions; whole-canvas size changes go
// through Resize or Crop so stacked layers stay in step.
// Returns false when the layer is locked or disposed or dimensions differ.
func (l *Layer) ReplaceBuffer(pm *Pixmap) bool {
	l.mu.Lock()
	if !l.editable() || pm == nil ||
		pm.width != l.pixmap.width || pm.height != l.pixmap.height {
		l.mu.Unlock()
		return false
	}
	l.pixmap = pm.Clone()
	l.refreshThumb()
	l.mu.Unlock()
	l.notify()
	return true
}

// Clone returns a detached copy of the layer with the same buffer content
// and attributes but a new identity.
func (l *Layer) Clone() *Layer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cloneLocked()
}

// cloneLocked is Clone without locking, for callers already holding the
// shared stack lock.
func (l *Layer) cloneLocked() *Layer {
	if l.disposed || l.pixmap == nil {
		return nil
	}
	out := &Layer{
		id:      uuid.New(),
		name:    l.name,
		pixmap:  l.pixmap.Clone(),
		visible: l.visible,
		opacity: l.opacity,
		mode:    l.mode,
		locked:  l.locked,
		mask:    l.mask,
		mu:      &sync.Mutex{},
	}
	out.refreshThumb()
	return out
}

// resizeLocked reallocates the buffer to (w, h), blitting the old content at
// (offsetX, offsetY). Caller holds the lock.
func (l *Layer) resizeLocked(w, h, offsetX, offsetY int) {
	old := l.pixmap
	l.pixmap = NewPixmap(w, h)
	if old != nil {
		l.pixmap.Blit(old, offsetX, offsetY)
	}
	l.refreshThumb()
}

// Resize reallocates the buffer to the new dimensions, placing the old
// content at the given offset. Content falling outside is lost.
// Returns false when the layer is locked or disposed.
func (l *Layer) Resize(w, h, offsetX, offsetY int) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	l.mu.Lock()
	if !l.editable() {
		l.mu.Unlock()
		return false
	}
	l.resizeLocked(w, h, offsetX, offsetY)
	l.mu.Unlock()
	l.notify()
	return true
}

// Crop clips the buffer to rect (in buffer coordinates). Content outside
// the rectangle is lost irrecoverably.
// Returns false when the layer is locked or disposed or rect is empty.
func (l *Layer) Crop(rect image.Rectangle) bool {
	if rect.Empty() {
		return false
	}
	l.mu.Lock()
	if !l.editable() {
		l.mu.Unlock()
		return false
	}
	l.resizeLocked(rect.Dx(), rect.Dy(), -rect.Min.X, -rect.Min.Y)
	l.mu.Unlock()
	l.notify()
	return true
}

// Dispose releases the layer's buffer and thumbnail. Safe to call more
// than once; all subsequent edits fail with a false return.
func (l *Layer) Dispose() {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.disposed = true
	l.pixmap = nil
	l.thumb = nil
	l.mu.Unlock()
}
