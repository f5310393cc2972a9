package session

import "time"

type EventKind string

const (
	EventLoaded        EventKind = "loaded"
	EventFailed        EventKind = "failed"
	EventSaved         EventKind = "saved"
	EventSaveFailed    EventKind = "save_failed"
	EventRemoteApplied EventKind = "remote_applied"
	EventChanged       EventKind = "changed"
	EventClosed        EventKind = "closed"
)

// Event is delivered to listeners after the controller releases its lock,
// so a listener may call back into the controller.
type Event struct {
	Kind      EventKind `json:"kind"`
	ProjectID string    `json:"projectId"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Subscribe registers fn for every event of this controller. The returned
// function removes it.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextListener++
	id := c.nextListener
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Controller) emitLocked(kind EventKind, err error) {
	event := Event{Kind: kind, ProjectID: c.projectID, UpdatedAt: c.project.UpdatedAt}
	if err != nil {
		event.Error = err.Error()
	}
	c.outbox = append(c.outbox, event)
}

// unlockAndDispatch releases mu and then delivers queued events.
func (c *Controller) unlockAndDispatch() {
	events := c.outbox
	c.outbox = nil
	var listeners []func(Event)
	if len(events) > 0 {
		listeners = make([]func(Event), 0, len(c.listeners))
		for _, fn := range c.listeners {
			listeners = append(listeners, fn)
		}
	}
	c.mu.Unlock()

	for _, event := range events {
		for _, fn := range listeners {
			fn(event)
		}
	}
}
