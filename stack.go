package layers

import (
	"image"
	"sync"
)

// LayerStack is an ordered, mutable collection of layers sharing one canvas
// size. Index 0 is the bottom; compositing runs bottom to top.
//
// The reserved inpaint-mask layer, when present, is stored apart from the
// ordinary layers and is always presented as the topmost index. Structural
// operations therefore cannot displace it, and a second mask cannot exist.
//
// Invariants:
//   - at least one ordinary layer exists at all times
//   - every layer's buffer matches the stack's canvas dimensions
type LayerStack struct {
	// mu guards all bitmap state reachable from a render pass: layer
	// buffers, the preview overlay and (via Inpainter) the base snapshot.
	// Notification dispatch happens outside of it.
	mu sync.Mutex

	width    int
	height   int
	ordinary []*Layer
	mask     *Layer
	active   *Layer
	preview  *Pixmap
	disposed bool

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// NewLayerStack creates a stack of the given canvas size holding a single
// transparent layer named "Background", which starts active.
func NewLayerStack(width, height int) *LayerStack {
	s := &LayerStack{width: width, height: height}
	base := NewLayer("Background", width, height)
	s.attach(base)
	s.ordinary = []*Layer{base}
	s.active = base
	return s
}

// AssembleStack builds a stack from pre-built layers, bottom first. Every
// layer must match the canvas dimensions and at least one ordinary layer is
// required; mask-flagged layers are rejected (the mask is a transient work
// aid, not persistent content). The first layer starts active.
//
// The deserializer uses this to reconstruct a saved stack.
func AssembleStack(width, height int, ls []*Layer) (*LayerStack, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if len(ls) == 0 {
		return nil, ErrLastLayer
	}
	for _, l := range ls {
		if l.Width() != width || l.Height() != height {
			return nil, ErrLayerSizeMismatch
		}
		if l.IsInpaintMask() {
			return nil, ErrMaskLayerOp
		}
	}
	s := &LayerStack{width: width, height: height}
	s.ordinary = make([]*Layer, len(ls))
	copy(s.ordinary, ls)
	for _, l := range s.ordinary {
		s.attach(l)
	}
	s.active = s.ordinary[0]
	return s, nil
}

// attach shares the stack lock with the layer and wires its change sink.
func (s *LayerStack) attach(l *Layer) {
	l.adopt(&s.mu, s.layerChanged)
}

// layerChanged forwards a layer's content notification to subscribers.
func (s *LayerStack) layerChanged(l *Layer) {
	s.publish(Event{Kind: EventContentChanged, Layer: l})
}

// Width returns the canvas width shared by all layers.
func (s *LayerStack) Width() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}

// Height returns the canvas height shared by all layers.
func (s *LayerStack) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// Count returns the number of layers, including the mask layer if present.
func (s *LayerStack) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked()
}

func (s *LayerStack) countLocked() int {
	n := len(s.ordinary)
	if s.mask != nil {
		n++
	}
	return n
}

// Layer returns the layer at index i (bottom = 0), or nil if out of range.
// The mask layer, if present, occupies the highest index.
func (s *LayerStack) Layer(i int) *Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layerLocked(i)
}

func (s *LayerStack) layerLocked(i int) *Layer {
	if i >= 0 && i < len(s.ordinary) {
		return s.ordinary[i]
	}
	if s.mask != nil && i == len(s.ordinary) {
		return s.mask
	}
	return nil
}

// Layers returns a bottom-to-top snapshot of all layers, the mask last.
func (s *LayerStack) Layers() []*Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Layer, 0, s.countLocked())
	out = append(out, s.ordinary...)
	if s.mask != nil {
		out = append(out, s.mask)
	}
	return out
}

// Index returns the index of l within the stack, or -1 if not present.
func (s *LayerStack) Index(l *Layer) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(l)
}

func (s *LayerStack) indexLocked(l *Layer) int {
	for i, candidate := range s.ordinary {
		if candidate == l {
			return i
		}
	}
	if s.mask != nil && s.mask == l {
		return len(s.ordinary)
	}
	return -1
}

// MaskLayer returns the reserved inpaint-mask layer, or nil if none exists.
func (s *LayerStack) MaskLayer() *Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mask
}

// ensureMask returns the mask layer, creating it if absent. Creation does
// not steal the active selection: drawing tools keep targeting the user's
// working layer.
func (s *LayerStack) ensureMask() *Layer {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	if s.mask != nil {
		m := s.mask
		s.mu.Unlock()
		return m
	}
	m := newMaskLayer(s.width, s.height)
	s.attach(m)
	s.mask = m
	s.mu.Unlock()
	s.publish(Event{Kind: EventStructureChanged, Layer: m})
	return m
}

// Active returns the active layer, the target of editing tools.
func (s *LayerStack) Active() *Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive makes l the active layer. Returns false if l is not a member
// of this stack.
func (s *LayerStack) SetActive(l *Layer) bool {
	s.mu.Lock()
	if s.indexLocked(l) < 0 {
		s.mu.Unlock()
		return false
	}
	changed := s.active != l
	s.active = l
	s.mu.Unlock()
	if changed {
		s.publish(Event{Kind: EventActiveChanged, Layer: l})
	}
	return true
}

// AddLayer appends a new transparent, canvas-sized layer at the top of the
// ordinary layers (just below the mask layer, when one exists) and makes it
// active.
func (s *LayerStack) AddLayer(name string) *Layer {
	return s.addLayer(NewLayer(name, s.Width(), s.Height()))
}

// AddLayerFromPixmap appends a new layer initialized with a deep copy of
// src and makes it active. Returns nil if src does not match the canvas
// dimensions.
func (s *LayerStack) AddLayerFromPixmap(name string, src *Pixmap) *Layer {
	if src == nil || src.width != s.Width() || src.height != s.Height() {
		return nil
	}
	return s.addLayer(NewLayerFromPixmap(name, src))
}

func (s *LayerStack) addLayer(l *Layer) *Layer {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.attach(l)
	s.ordinary = append(s.ordinary, l)
	s.active = l
	s.mu.Unlock()
	s.publish(Event{Kind: EventStructureChanged, Layer: l})
	s.publish(Event{Kind: EventActiveChanged, Layer: l})
	return l
}

// Remove deletes the layer at index i and disposes it. The removal is
// rejected when i addresses the mask layer (use the Inpainter to manage the
// mask) or the last remaining ordinary layer. If the removed layer was
// active, the nearest remaining neighbor becomes active.
func (s *LayerStack) Remove(i int) bool {
	s.mu.Lock()
	l := s.layerLocked(i)
	if l == nil || l == s.mask || len(s.ordinary) <= 1 {
		s.mu.Unlock()
		return false
	}
	s.ordinary = append(s.ordinary[:i], s.ordinary[i+1:]...)
	activeChanged := false
	if s.active == l {
		ni := i
		if ni >= len(s.ordinary) {
			ni = len(s.ordinary) - 1
		}
		s.active = s.ordinary[ni]
		activeChanged = true
	}
	l.release()
	newActive := s.active
	s.mu.Unlock()

	l.Dispose()
	s.publish(Event{Kind: EventStructureChanged, Layer: nil})
	if activeChanged {
		s.publish(Event{Kind: EventActiveChanged, Layer: newActive})
	}
	return true
}

// Duplicate clones the layer at index i, inserts the clone directly above
// the original and makes it active. Duplicating the mask layer is rejected.
func (s *LayerStack) Duplicate(i int) *Layer {
	s.mu.Lock()
	l := s.layerLocked(i)
	if l == nil || l == s.mask || s.disposed {
		s.mu.Unlock()
		return nil
	}
	clone := l.cloneLocked()
	if clone == nil {
		s.mu.Unlock()
		return nil
	}
	s.attach(clone)
	s.ordinary = append(s.ordinary, nil)
	copy(s.ordinary[i+2:], s.ordinary[i+1:])
	s.ordinary[i+1] = clone
	s.active = clone
	s.mu.Unlock()
	s.publish(Event{Kind: EventStructureChanged, Layer: clone})
	s.publish(Event{Kind: EventActiveChanged, Layer: clone})
	return clone
}

// MoveUp swaps the layer at index i with the one above it. Rejected when i
// is already the topmost ordinary layer, when the slot above is the mask
// layer, or when i addresses the mask itself.
func (s *LayerStack) MoveUp(i int) bool {
	s.mu.Lock()
	if i < 0 || i >= len(s.ordinary)-1 {
		s.mu.Unlock()
		return false
	}
	s.ordinary[i], s.ordinary[i+1] = s.ordinary[i+1], s.ordinary[i]
	s.mu.Unlock()
	s.publish(Event{Kind: EventStructureChanged, Layer: nil})
	return true
}

// MoveDown swaps the layer at index i with the one below it. Rejected for
// the bottom layer and for the mask layer.
func (s *LayerStack) MoveDown(i int) bool {
	s.mu.Lock()
	if i <= 0 || i >= len(s.ordinary) {
		s.mu.Unlock()
		return false
	}
	s.ordinary[i], s.ordinary[i-1] = s.ordinary[i-1], s.ordinary[i]
	s.mu.Unlock()
	s.publish(Event{Kind: EventStructureChanged, Layer: nil})
	return true
}

// MergeDown paints the layer at index i onto the layer below it, using the
// top layer's opacity and blend mode, then removes and disposes the top
// layer. The merged lower layer becomes active. The mask layer can neither
// be merged down nor merged into.
func (s *LayerStack) MergeDown(i int) bool {
	s.mu.Lock()
	if i <= 0 || i >= len(s.ordinary) {
		s.mu.Unlock()
		return false
	}
	top := s.ordinary[i]
	bottom := s.ordinary[i-1]
	if !bottom.editable() || top.pixmap == nil {
		s.mu.Unlock()
		return false
	}
	compositeOver(bottom.pixmap, top.pixmap, top.opacity, top.mode)
	bottom.refreshThumb()
	s.ordinary = append(s.ordinary[:i], s.ordinary[i+1:]...)
	top.release()
	s.active = bottom
	s.mu.Unlock()

	top.Dispose()
	s.publish(Event{Kind: EventStructureChanged, Layer: bottom})
	s.publish(Event{Kind: EventActiveChanged, Layer: bottom})
	return true
}

// MergeVisible composites every visible ordinary layer into a single layer
// (placed at the lowest merged slot), disposes the originals and makes the
// merged layer active. Hidden layers are left in place; the mask layer is
// never part of the merge and stays topmost. Returns false if no layer is
// visible.
func (s *LayerStack) MergeVisible() bool {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return false
	}
	lowest := -1
	merged := NewPixmap(s.width, s.height)
	var victims []*Layer
	for i, l := range s.ordinary {
		if !l.visible || l.pixmap == nil {
			continue
		}
		if lowest < 0 {
			lowest = i
		}
		compositeOver(merged, l.pixmap, l.opacity, l.mode)
		victims = append(victims, l)
	}
	if lowest < 0 {
		s.mu.Unlock()
		return false
	}

	result := NewLayerFromPixmap("Merged", merged)
	s.attach(result)

	kept := make([]*Layer, 0, len(s.ordinary))
	for i, l := range s.ordinary {
		if l.visible && l.pixmap != nil {
			if i == lowest {
				kept = append(kept, result)
			}
			l.release()
			continue
		}
		kept = append(kept, l)
	}
	s.ordinary = kept
	s.active = result
	s.mu.Unlock()

	for _, l := range victims {
		l.Dispose()
	}
	s.publish(Event{Kind: EventStructureChanged, Layer: result})
	s.publish(Event{Kind: EventActiveChanged, Layer: result})
	return true
}

// ResizeCanvas changes the canvas dimensions, placing existing content at
// (offsetX, offsetY) in every layer, the mask included.
func (s *LayerStack) ResizeCanvas(w, h, offsetX, offsetY int) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return false
	}
	s.width = w
	s.height = h
	for _, l := range s.ordinary {
		l.resizeLocked(w, h, offsetX, offsetY)
	}
	if s.mask != nil {
		s.mask.resizeLocked(w, h, offsetX, offsetY)
	}
	s.preview = nil
	s.mu.Unlock()
	s.publish(Event{Kind: EventStructureChanged, Layer: nil})
	return true
}

// CropCanvas clips every layer to rect (canvas coordinates). Content
// outside the rectangle is lost irrecoverably.
func (s *LayerStack) CropCanvas(rect image.Rectangle) bool {
	if rect.Empty() {
		return false
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return false
	}
	s.width = rect.Dx()
	s.height = rect.Dy()
	for _, l := range s.ordinary {
		l.resizeLocked(rect.Dx(), rect.Dy(), -rect.Min.X, -rect.Min.Y)
	}
	if s.mask != nil {
		s.mask.resizeLocked(rect.Dx(), rect.Dy(), -rect.Min.X, -rect.Min.Y)
	}
	s.preview = nil
	s.mu.Unlock()
	s.publish(Event{Kind: EventStructureChanged, Layer: nil})
	return true
}

// SetPreview installs a transient overlay shown in place of the active
// layer's content during display renders, for previewing an uncommitted
// adjustment. The overlay must match the canvas dimensions. It never
// mutates any layer unless committed.
func (s *LayerStack) SetPreview(pm *Pixmap) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pm != nil && (pm.width != s.width || pm.height != s.height) {
		return false
	}
	s.preview = pm
	return true
}

// ClearPreview discards the transient overlay without touching any layer.
func (s *LayerStack) ClearPreview() {
	s.mu.Lock()
	s.preview = nil
	s.mu.Unlock()
}

// CommitPreview writes the overlay into the active layer's buffer and
// clears it. Returns false when no overlay is set or the active layer
// rejects the edit.
func (s *LayerStack) CommitPreview() bool {
	s.mu.Lock()
	pm := s.preview
	l := s.active
	if pm == nil || l == nil || !l.editable() {
		s.mu.Unlock()
		return false
	}
	l.pixmap = pm.Clone()
	l.refreshThumb()
	s.preview = nil
	s.mu.Unlock()
	l.notify()
	return true
}

// Dispose releases every layer buffer. Safe to call more than once; all
// subsequent mutations fail closed.
func (s *LayerStack) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	victims := make([]*Layer, 0, s.countLocked())
	victims = append(victims, s.ordinary...)
	if s.mask != nil {
		victims = append(victims, s.mask)
	}
	s.ordinary = nil
	s.mask = nil
	s.active = nil
	s.preview = nil
	for _, l := range victims {
		l.release()
	}
	s.mu.Unlock()

	for _, l := range victims {
		l.Dispose()
	}
}
