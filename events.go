package layers

// EventKind classifies a change notification.
type EventKind int

const (
	// EventContentChanged fires when pixel content or a visual attribute
	// (visibility, opacity, blend mode) of a layer changes.
	EventContentChanged EventKind = iota

	// EventStructureChanged fires when layers are added, removed, moved,
	// merged or the canvas is resized or cropped.
	EventStructureChanged

	// EventActiveChanged fires when the active layer selection changes.
	EventActiveChanged
)

// Event is a change notification from a LayerStack. Layer is the layer the
// change concerns, or nil for stack-wide changes.
type Event struct {
	Kind  EventKind
	Layer *Layer
}

// Subscribe registers fn to receive change notifications. It returns a
// cancel function that removes the subscription. Notifications are
// delivered synchronously on the mutating goroutine, after the buffer lock
// has been released, so handlers may safely trigger renders.
func (s *LayerStack) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.subs == nil {
		s.subs = make(map[int]func(Event))
	}
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// publish delivers an event to all subscribers. Never called with the
// buffer lock held.
func (s *LayerStack) publish(ev Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
