package editor

import (
	"maps"
	"slices"
	"sync"
)

// EventType identifies a change of the editor state.
type EventType string

const (
	EventShapeAdded       EventType = "shape_added"
	EventShapeUpdated     EventType = "shape_updated"
	EventShapeRemoved     EventType = "shape_removed"
	EventShapesReplaced   EventType = "shapes_replaced"
	EventSelectionChanged EventType = "selection_changed"
	EventEditStarted      EventType = "edit_started"
	EventEditClosed       EventType = "edit_closed"
	EventDraftChanged     EventType = "draft_changed"
	EventToolChanged      EventType = "tool_changed"
)

// Event describes one state change. ShapeID is empty for changes that are
// not about a single shape.
type Event struct {
	Type    EventType
	ShapeID string
}

// Listener is called synchronously for every emitted event.
type Listener func(Event)

// Bus fans events out to subscribers. Rendering is one subscriber among
// others; the state mutations never depend on it.
type Bus struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	next      int
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[int]Listener)}
}

// Subscribe registers l and returns a function that removes it.
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.listeners[id] = l
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Emit delivers e to all listeners in subscription order.
func (b *Bus) Emit(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, id := range slices.Sorted(maps.Keys(b.listeners)) {
		listeners = append(listeners, b.listeners[id])
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		l(e)
	}
}
