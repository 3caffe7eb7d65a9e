package server

import (
	"context"
	"sync"
	"time"
)

// Admin event stream topics.
const (
	EventContactReceived  = "contact-received"
	EventFeedbackReceived = "feedback-received"
	EventCVDownloaded     = "cv-downloaded"
)

// Event is one message on the admin dashboard stream.
type Event struct {
	Type    string    `json:"type"`
	Title   string    `json:"title"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// EventDispatcher fans out admin events to connected dashboard
// streams. Slow subscribers drop messages rather than blocking the
// publishing request.
type EventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      int64
	bufferSize  int
}

// NewEventDispatcher constructs an EventDispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		subscribers: make(map[int64]chan Event),
		bufferSize:  16,
	}
}

// Subscribe registers a stream that receives events until the context
// is cancelled or the returned cleanup runs.
func (d *EventDispatcher) Subscribe(ctx context.Context) (<-chan Event, func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	stream := make(chan Event, d.bufferSize)
	d.subscribers[id] = stream
	d.mu.Unlock()

	cleanup := func() {
		d.mu.Lock()
		delete(d.subscribers, id)
		d.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

// Publish delivers the event to every connected subscriber.
func (d *EventDispatcher) Publish(event Event) {
	if event.Type == "" {
		return
	}
	d.mu.RLock()
	copies := make([]chan Event, 0, len(d.subscribers))
	for _, stream := range d.subscribers {
		copies = append(copies, stream)
	}
	d.mu.RUnlock()
	for _, stream := range copies {
		select {
		case stream <- event:
		default:
		}
	}
}
