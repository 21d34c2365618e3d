package kiosk

import (
	"sync"

	"github.com/kozaktomas/attendance/internal/constants"
)

// Event types sent to status listeners.
const (
	EventStatus     = "status"
	EventAttendance = "attendance"
)

// Event is a kiosk notification for status listeners.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Broadcaster provides listener management and event broadcasting.
type Broadcaster struct {
	listeners []chan Event
	mu        sync.RWMutex
	onChange  func(n int)
}

// AddListener adds an event listener.
func (b *Broadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	if b.onChange != nil {
		b.onChange(len(b.listeners))
	}
	return ch
}

// RemoveListener removes an event listener.
func (b *Broadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			if b.onChange != nil {
				b.onChange(len(b.listeners))
			}
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *Broadcaster) SendEvent(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// ListenerCount returns the number of connected listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
