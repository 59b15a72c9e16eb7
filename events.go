package vidtex

import (
	"slices"
	"sync"
)

var (
	_ EventSink       = (*eventHub)(nil)
	_ EventsInterface = (*eventHub)(nil)
)

// eventHub fans backend events out to a player's listeners.
type eventHub struct {
	mutex     sync.Mutex
	listeners []registeredListener // in registration order
	nextID    uint64
	closed    bool
}

type registeredListener struct {
	id       uint64
	listener EventListener
}

func newEventHub() *eventHub {
	return &eventHub{}
}

func (h *eventHub) AddListener(listener EventListener) func() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.listeners = append(h.listeners, registeredListener{id, listener})

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mutex.Lock()
			h.listeners = slices.DeleteFunc(h.listeners, func(r registeredListener) bool { return r.id == id })
			h.mutex.Unlock()
		})
	}
}

// close drops every listener. Later events are ignored.
func (h *eventHub) close() {
	h.mutex.Lock()
	h.closed = true
	h.listeners = nil
	h.mutex.Unlock()
}

func (h *eventHub) snapshot() []EventListener {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed || len(h.listeners) == 0 {
		return nil
	}
	listeners := make([]EventListener, 0, len(h.listeners))
	for _, r := range h.listeners {
		listeners = append(listeners, r.listener)
	}
	return listeners
}

func (h *eventHub) StateChanged(state PlaybackState) {
	for _, listener := range h.snapshot() {
		if listener.OnStateChange != nil {
			listener.OnStateChange(state)
		}
	}
}

func (h *eventHub) Finished() {
	for _, listener := range h.snapshot() {
		if listener.OnFinished != nil {
			listener.OnFinished()
		}
	}
}

func (h *eventHub) Failed(err error) {
	for _, listener := range h.snapshot() {
		if listener.OnError != nil {
			listener.OnError(err)
		}
	}
}
