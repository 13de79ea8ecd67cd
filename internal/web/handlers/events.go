package handlers

import (
	"sync"

	"github.com/kozaktomas/smart-attendance/internal/constants"
)

// SessionEvent is an event published by a recognition session.
type SessionEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for live sessions.
// Embed this in session structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	listeners []chan SessionEvent
	closed    bool
	mu        sync.RWMutex
}

// AddListener adds an event listener. A closed broadcaster returns a closed channel.
func (b *EventBroadcaster) AddListener() chan SessionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan SessionEvent, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event SessionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Close delivers a final event and closes every listener.
func (b *EventBroadcaster) Close(final SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, listener := range b.listeners {
		select {
		case listener <- final:
		default:
		}
		close(listener)
	}
	b.listeners = nil
}

// ListenerCount returns the number of attached listeners.
func (b *EventBroadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
